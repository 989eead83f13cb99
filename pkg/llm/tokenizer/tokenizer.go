// Package tokenizer counts tokens for prompt-size telemetry.
package tokenizer

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/entrhq/pilot/pkg/types"
)

// DefaultEncoding is the BPE encoding used for counting.
const DefaultEncoding = "cl100k_base"

// perMessageOverhead approximates role and separator tokens per message.
const perMessageOverhead = 4

// Tokenizer counts tokens with tiktoken, falling back to a character
// estimate when no encoding is loaded. A nil *Tokenizer is valid and always
// estimates.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

// New loads the default encoding.
func New() (*Tokenizer, error) {
	enc, err := tiktoken.GetEncoding(DefaultEncoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s encoding: %w", DefaultEncoding, err)
	}
	return &Tokenizer{enc: enc}, nil
}

// CountTokens returns the token count of text.
func (t *Tokenizer) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	if t == nil || t.enc == nil {
		return Estimate(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}

// CountMessages counts the tokens of a message list including per-message
// formatting overhead.
func (t *Tokenizer) CountMessages(messages []*types.Message) int {
	total := 0
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		total += t.CountTokens(string(msg.Role))
		total += t.CountTokens(msg.Content)
		total += perMessageOverhead
	}
	return total
}

// Estimate approximates a token count at roughly four characters per token.
func Estimate(text string) int {
	if text == "" {
		return 0
	}
	chars := len([]rune(text))
	whitespace := strings.Count(text, " ") + strings.Count(text, "\n") + strings.Count(text, "\t")
	estimated := chars/4 + whitespace/6
	if estimated < 1 {
		return 1
	}
	return estimated
}
