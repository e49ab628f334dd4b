// Package guard validates prompts before they reach the upstream model.
package guard

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrEmptyPrompt marks an empty or whitespace-only prompt. Handlers
// treat it as a structural failure: rejected before the quota row is
// touched.
var ErrEmptyPrompt = errors.New("prompt is empty")

// TooLongError marks a prompt over the configured length ceiling.
type TooLongError struct {
	Length int
	Limit  int
}

func (e *TooLongError) Error() string {
	return fmt.Sprintf("prompt is %d characters, limit %d", e.Length, e.Limit)
}

// BlockedError marks a prompt that matched a blocklist rule.
type BlockedError struct {
	Rule Rule
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("prompt matched blocklist rule %q (%s)", e.Rule.Pattern, e.Rule.Category)
}

// Guard checks prompts against a length ceiling and a blocklist.
type Guard struct {
	maxLen int
	rules  []Rule
}

// New creates a Guard with the given length ceiling and rule set.
func New(maxLen int, rules []Rule) *Guard {
	return &Guard{maxLen: maxLen, rules: rules}
}

// Check validates prompt and returns the first violation found:
// ErrEmptyPrompt, *TooLongError or *BlockedError. A nil return means
// the prompt may be forwarded upstream.
func (g *Guard) Check(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return ErrEmptyPrompt
	}

	if n := utf8.RuneCountInString(prompt); n > g.maxLen {
		return &TooLongError{Length: n, Limit: g.maxLen}
	}

	lower := strings.ToLower(prompt)
	for _, rule := range g.rules {
		if strings.Contains(lower, strings.ToLower(rule.Pattern)) {
			return &BlockedError{Rule: rule}
		}
	}
	return nil
}

// MaxLen returns the configured prompt length ceiling.
func (g *Guard) MaxLen() int {
	return g.maxLen
}
