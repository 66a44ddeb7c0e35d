// Package budget estimates token usage and trims conversation history to fit
// a model's context window. Because the chat backend supports multiple
// providers with different tokenizers, estimation uses a character heuristic:
// 1 token ≈ 4 characters. The estimate deliberately errs low to leave
// headroom for provider-specific overhead.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	// 4 chars/token is a standard figure for English prose and code.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget. It fits
	// comfortably within 8k-context models while leaving room for the
	// model's answer.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages sums the estimated token count of a message slice,
// including a small per-message overhead.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// TrimHistory drops the oldest exchanges from history until fixed + history
// fits within maxTokens. fixed holds messages that must survive (the system
// prompt and the current user message); history holds committed prior turns
// as alternating user/assistant pairs. Pairs are dropped together so the
// surviving history never opens mid-exchange with an assistant turn.
//
// If even an empty history exceeds the budget, the empty slice is returned;
// fixed messages are never dropped here.
func TrimHistory(fixed, history []*schema.Message, maxTokens int) []*schema.Message {
	if len(history) == 0 {
		return history
	}

	fixedTokens := EstimateMessages(fixed)
	for len(history) > 0 {
		if fixedTokens+EstimateMessages(history) <= maxTokens {
			break
		}
		drop := 1
		if len(history) >= 2 && history[0].Role == schema.User && history[1].Role == schema.Assistant {
			drop = 2
		}
		history = history[drop:]
	}
	return history
}
