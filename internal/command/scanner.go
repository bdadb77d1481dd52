// Package command parses and executes the directive protocol embedded in
// model output. A directive is the sentinel token followed by one balanced
// JSON object; a reply may carry any number of them.
package command

import (
	"strings"

	"sigil/internal/logging"
)

// Sentinel marks the start of a directive in model output.
const Sentinel = "⟐CMD"

// Scan extracts balanced JSON object payloads left to right. For each
// sentinel the scanner skips ahead to the first '{' and tracks brace depth,
// honoring string literals and escapes so braces inside quoted strings do
// not count. A directive with no closing brace terminates the scan; nothing
// partial is returned. Payloads are returned raw; callers decide what counts
// as valid JSON.
func Scan(text string) []string {
	var payloads []string
	pos := 0

	for {
		tokenIdx := strings.Index(text[pos:], Sentinel)
		if tokenIdx == -1 {
			break
		}
		tokenIdx += pos

		braceIdx := strings.IndexByte(text[tokenIdx:], '{')
		if braceIdx == -1 {
			break
		}
		braceIdx += tokenIdx

		payload, next := extractObject(text, braceIdx)
		if payload == "" {
			break
		}
		payloads = append(payloads, payload)
		pos = next
	}

	logging.CommandDebug("Scan: extracted %d directive payloads", len(payloads))
	return payloads
}

// extractObject returns the balanced object starting at start, and the index
// just past it. Returns "" when the object never closes. Scanning bytes is
// safe here: the structural characters are all ASCII and multi-byte runes
// never contain ASCII continuation bytes.
func extractObject(text string, start int) (string, int) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], i + 1
			}
		}
	}
	return "", len(text)
}
