package services

import (
	"strings"
	"testing"
)

func TestEstimatingTokenizer(t *testing.T) {
	tok := EstimatingTokenizer()

	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abc", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"Thiết Thệ", 3},
	}
	for _, tt := range tests {
		if got := tok.Count(tt.text); got != tt.want {
			t.Errorf("Count(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestTokenizerTruncate(t *testing.T) {
	tok := EstimatingTokenizer()
	text := strings.Repeat("abcd ", 50)

	if got := tok.Truncate(text, 1000); got != text {
		t.Error("text under budget should be unchanged")
	}
	if got := tok.Truncate(text, 5); tok.Count(got) > 5 {
		t.Errorf("truncated text has %d tokens", tok.Count(got))
	}
	if got := tok.Truncate(text, 0); got != "" {
		t.Errorf("zero budget = %q", got)
	}
}

func TestNewTokenizerNeverNil(t *testing.T) {
	tok := NewTokenizer("gpt-4o", discardLogger())
	if tok == nil {
		t.Fatal("nil tokenizer")
	}
	if tok.Count("hello world") == 0 {
		t.Error("expected a positive count")
	}
}
