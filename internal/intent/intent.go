// Package intent classifies free-text chat messages into routing labels.
//
// Classification is a pure ordered rule cascade over the trimmed, lowercased
// message. The first matching rule wins, so rule order encodes priority:
// name-setting is checked before the gear keywords so "I'm after a mouse"
// never reaches the catalog search path.
package intent

import (
	"regexp"
	"strings"
)

// Label names the purpose of a message.
type Label string

// Intent labels, in the order the classifier tries them.
const (
	Greeting              Label = "GREETING"
	SetName               Label = "SET_NAME"
	LatestOrder           Label = "LATEST_ORDER"
	RecentOrders          Label = "RECENT_ORDERS"
	DeliveryTracking      Label = "DELIVERY_TRACKING"
	RefundPolicy          Label = "REFUND_POLICY"
	CancelOrder           Label = "CANCEL_ORDER"
	VendorStats           Label = "VENDOR_STATS"
	ProductRecommendation Label = "PRODUCT_RECOMMENDATION"
	GeneralAI             Label = "GENERAL_AI"
)

// Result is the outcome of classifying one message. Confidence is 1 for any
// matched rule and 0 for the GeneralAI fallback.
type Result struct {
	Label      Label   `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// Matcher reports whether normalized text satisfies a rule.
type Matcher func(text string) bool

// Rule pairs a predicate with the label it produces.
type Rule struct {
	Label Label
	Match Matcher
}

// Contains matches when text includes any of the given phrases.
func Contains(phrases ...string) Matcher {
	return func(text string) bool {
		for _, p := range phrases {
			if strings.Contains(text, p) {
				return true
			}
		}
		return false
	}
}

// Pattern matches when any regular expression matches text.
func Pattern(res ...*regexp.Regexp) Matcher {
	return func(text string) bool {
		for _, re := range res {
			if re.MatchString(text) {
				return true
			}
		}
		return false
	}
}

// All matches when every matcher does.
func All(ms ...Matcher) Matcher {
	return func(text string) bool {
		for _, m := range ms {
			if !m(text) {
				return false
			}
		}
		return true
	}
}

var (
	greetingRe = regexp.MustCompile(`^(hi|hello|hey|sup|yo|wassup)\b`)
	setNameRes = []*regexp.Regexp{
		regexp.MustCompile(`my name is\s+[a-z]+`),
		regexp.MustCompile(`call me\s+[a-z]+`),
		regexp.MustCompile(`i'm\s+[a-z]+`),
	}
	nameCaptureRe = regexp.MustCompile(`(?i)(?:my name is|call me|i'm)\s+([a-zA-Z]+)`)
)

// DefaultRules is the production rule table.
var DefaultRules = []Rule{
	{Greeting, Pattern(greetingRe)},
	{SetName, Pattern(setNameRes...)},
	{LatestOrder, Contains("latest order", "last order")},
	{RecentOrders, Contains("my orders", "order history", "recent orders", "past orders")},
	{DeliveryTracking, Contains("track", "delivery", "where is my", "eta", "when will", "arrive")},
	{RefundPolicy, Contains("refund", "return", "money back")},
	{CancelOrder, Contains("cancel")},
	{VendorStats, Contains("revenue", "my sales", "vendor stats", "pending shipments", "orders today")},
	{ProductRecommendation, Contains(
		"controller", "mouse", "keyboard", "headset", "monitor", "chair",
		"racing wheel", "mousepad", "under ₹", "under rs",
	)},
	{ProductRecommendation, All(
		Contains("suggest", "recommend"),
		Contains("buy", "get", "purchase"),
	)},
}

// Classifier evaluates an ordered rule table.
type Classifier struct {
	rules []Rule
}

// NewClassifier returns a classifier over rules. A nil table selects
// DefaultRules.
func NewClassifier(rules []Rule) *Classifier {
	if rules == nil {
		rules = DefaultRules
	}
	return &Classifier{rules: rules}
}

// Classify returns the first matching rule's label, or GeneralAI.
func (c *Classifier) Classify(message string) Result {
	text := Normalize(message)
	for _, r := range c.rules {
		if r.Match(text) {
			return Result{Label: r.Label, Confidence: 1}
		}
	}
	return Result{Label: GeneralAI, Confidence: 0}
}

var defaultClassifier = NewClassifier(nil)

// Classify runs the default rule table.
func Classify(message string) Result {
	return defaultClassifier.Classify(message)
}

// Normalize lowercases and trims text the way every matcher expects.
func Normalize(message string) string {
	return strings.ToLower(strings.TrimSpace(message))
}

// ExtractName pulls the name out of "my name is X", "call me X" or "I'm X".
func ExtractName(message string) (string, bool) {
	m := nameCaptureRe.FindStringSubmatch(message)
	if m == nil {
		return "", false
	}
	return m[1], true
}
