// Package token provides the pluggable token encoder used for context budget
// accounting. Packing logic only depends on the Encoder interface, so a real
// tokenizer can replace the heuristics without touching the assembler.
package token

import (
	"strings"
	"unicode/utf8"
)

// Encoder turns text into a countable token sequence.
type Encoder interface {
	// Encode returns one element per token. Values are opaque; only the
	// length matters for budgeting.
	Encode(text string) []int

	// Name identifies the encoder for logging.
	Name() string
}

// Count returns the token count of text under enc.
func Count(enc Encoder, text string) int {
	return len(enc.Encode(text))
}

// WordEncoder is the whitespace-split fallback: one token per word, the
// word's length as the token value.
type WordEncoder struct{}

// NewWordEncoder returns the default fallback encoder.
func NewWordEncoder() WordEncoder {
	return WordEncoder{}
}

func (WordEncoder) Encode(text string) []int {
	fields := strings.Fields(text)
	tokens := make([]int, len(fields))
	for i, field := range fields {
		tokens[i] = len(field)
	}
	return tokens
}

func (WordEncoder) Name() string {
	return "word"
}

// HeuristicEncoder approximates a subword tokenizer at ~4 characters per
// token. Useful when budgets must track a real model more closely than
// whitespace splitting does.
type HeuristicEncoder struct {
	charsPerToken int
}

// NewHeuristicEncoder returns an encoder calibrated for common LLM
// tokenizers.
func NewHeuristicEncoder() HeuristicEncoder {
	return HeuristicEncoder{charsPerToken: 4}
}

func (e HeuristicEncoder) Encode(text string) []int {
	if text == "" {
		return nil
	}
	runes := utf8.RuneCountInString(text)
	n := runes / e.charsPerToken
	if runes%e.charsPerToken != 0 {
		n++
	}
	return make([]int, n)
}

func (e HeuristicEncoder) Name() string {
	return "heuristic"
}
