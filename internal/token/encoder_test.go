package token

import "testing"

func TestWordEncoder(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"Empty", "", 0},
		{"Single", "anchor", 1},
		{"Sentence", "hold the frame steady", 4},
		{"ExtraWhitespace", "  hold   the  frame ", 3},
	}

	enc := NewWordEncoder()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Count(enc, tt.text); got != tt.want {
				t.Errorf("Count(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestHeuristicEncoder(t *testing.T) {
	enc := NewHeuristicEncoder()

	if got := Count(enc, ""); got != 0 {
		t.Errorf("empty text counted %d tokens", got)
	}
	// 8 runes at 4 chars per token = 2 tokens.
	if got := Count(enc, "abcdefgh"); got != 2 {
		t.Errorf("Count(8 runes) = %d, want 2", got)
	}
	// Partial trailing chunk rounds up.
	if got := Count(enc, "abcde"); got != 2 {
		t.Errorf("Count(5 runes) = %d, want 2", got)
	}
}
