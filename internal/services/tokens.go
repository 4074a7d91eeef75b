package services

import (
	"log/slog"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts and trims text in model tokens. Without a loaded BPE
// it estimates four runes per token.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTokenizer loads the encoding for model, falling back to cl100k_base
// and then to the rune estimate.
func NewTokenizer(model string, logger *slog.Logger) *Tokenizer {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
	}
	if err != nil {
		logger.Warn("Tokenizer unavailable, estimating token counts", "model", model, "error", err)
		return &Tokenizer{}
	}
	return &Tokenizer{enc: enc}
}

// EstimatingTokenizer never touches tiktoken.
func EstimatingTokenizer() *Tokenizer { return &Tokenizer{} }

func (t *Tokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	if t != nil && t.enc != nil {
		return len(t.enc.Encode(text, nil, nil))
	}
	return (len([]rune(text)) + 3) / 4
}

// Truncate keeps at most maxTokens tokens of text.
func (t *Tokenizer) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	if t.Count(text) <= maxTokens {
		return text
	}
	if t != nil && t.enc != nil {
		ids := t.enc.Encode(text, nil, nil)
		return strings.TrimSpace(t.enc.Decode(ids[:maxTokens]))
	}
	r := []rune(text)
	return strings.TrimSpace(string(r[:maxTokens*4]))
}
