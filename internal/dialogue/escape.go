package dialogue

import (
	"regexp"
	"strings"

	"github.com/ashureev/veltrix/internal/session"
)

var bareInteger = regexp.MustCompile(`^\d+$`)

// newQuerySignals mark a message as a fresh request rather than an answer to
// the current selection prompt.
var newQuerySignals = []string{
	"show", "find", "search", "looking for", "want",
	"need", "get me", "what about", "how about",
	"controller", "mouse", "keyboard", "headset",
	"monitor", "chair", "ps5", "xbox", "suggest",
	"recommend", "best", "budget", "under",
	"order", "track", "refund", "cancel", "delivery",
	"hi", "hello", "hey",
	"what else", "what can", "how can", "guide",
	"help", "categories", "category", "something",
	"racing", "wheels", "pedals", "vr", "sets",
	"mousepad", "headphones", "more",
}

// IsNewQuery reports whether normalized text carries a new-query signal.
func IsNewQuery(text string) bool {
	return containsAny(text, newQuerySignals)
}

// ShouldEscape decides whether the guided flow in s must be abandoned before
// text is handled. text must already be trimmed and lowercased.
func ShouldEscape(s *session.Session, text string) bool {
	switch s.State {
	case session.StateAwaitingCategory:
		return !bareInteger.MatchString(text) &&
			matchCategory(s.CategoryOptions, text) == "" &&
			IsNewQuery(text)
	case session.StateAwaitingProduct:
		return !bareInteger.MatchString(text) && IsNewQuery(text)
	case session.StateAwaitingConfirmation:
		return !strings.Contains(text, "add") &&
			!strings.Contains(text, "buy") &&
			IsNewQuery(text)
	default:
		return false
	}
}

// matchCategory returns the first category whose lowercased name occurs in
// text, or "".
func matchCategory(categories []string, text string) string {
	for _, c := range categories {
		if strings.Contains(text, strings.ToLower(c)) {
			return c
		}
	}
	return ""
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
