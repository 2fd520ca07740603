// Package session holds per-user dialogue state.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ashureev/veltrix/internal/domain"
)

// HistoryLimit caps the in-session history window.
const HistoryLimit = 20

// ContextWindow is the number of trailing history entries handed to the
// fallback generator.
const ContextWindow = 6

// ErrClosed is returned by stores that have been shut down.
var ErrClosed = errors.New("session store closed")

// State is the current step of the guided selection flow.
type State string

const (
	StateIdle                 State = "IDLE"
	StateAwaitingCategory     State = "AWAITING_CATEGORY_SELECTION"
	StateAwaitingProduct      State = "AWAITING_PRODUCT_SELECTION"
	StateAwaitingConfirmation State = "AWAITING_CONFIRMATION"
)

// Session is one user's dialogue record.
type Session struct {
	State            State                   `json:"state"`
	CategoryOptions  []string                `json:"category_options,omitempty"`
	ProductOptions   []domain.ProductSummary `json:"product_options,omitempty"`
	SelectedCategory string                  `json:"selected_category,omitempty"`
	SelectedProduct  *domain.ProductSummary  `json:"selected_product,omitempty"`
	UserName         string                  `json:"user_name,omitempty"`
	History          []domain.Message        `json:"history,omitempty"`
	UpdatedAt        time.Time               `json:"updated_at"`
}

// New returns an idle session.
func New() *Session {
	return &Session{State: StateIdle, UpdatedAt: time.Now()}
}

// Clone returns a deep copy so callers never share slices with the store.
func (s *Session) Clone() *Session {
	c := *s
	c.CategoryOptions = append([]string(nil), s.CategoryOptions...)
	c.ProductOptions = append([]domain.ProductSummary(nil), s.ProductOptions...)
	c.History = append([]domain.Message(nil), s.History...)
	if s.SelectedProduct != nil {
		p := *s.SelectedProduct
		c.SelectedProduct = &p
	}
	return &c
}

// Reset clears the flow fields. UserName and History survive.
func (s *Session) Reset() {
	s.State = StateIdle
	s.CategoryOptions = nil
	s.ProductOptions = nil
	s.SelectedCategory = ""
	s.SelectedProduct = nil
}

// OfferCategories enters category selection.
func (s *Session) OfferCategories(categories []string) {
	s.Reset()
	s.State = StateAwaitingCategory
	s.CategoryOptions = append([]string(nil), categories...)
}

// OfferProducts enters product selection. category may be empty when the
// options came from a free-text search.
func (s *Session) OfferProducts(category string, products []domain.ProductSummary) {
	s.Reset()
	s.State = StateAwaitingProduct
	s.SelectedCategory = category
	s.ProductOptions = append([]domain.ProductSummary(nil), products...)
}

// Select enters confirmation for product.
func (s *Session) Select(product domain.ProductSummary) {
	category := s.SelectedCategory
	s.Reset()
	s.State = StateAwaitingConfirmation
	s.SelectedCategory = category
	s.SelectedProduct = &product
}

// Remember appends a history entry, evicting the oldest beyond HistoryLimit.
func (s *Session) Remember(speaker domain.Speaker, text string) {
	s.History = append(s.History, domain.Message{Speaker: speaker, Text: text, Timestamp: time.Now()})
	if n := len(s.History); n > HistoryLimit {
		s.History = append([]domain.Message(nil), s.History[n-HistoryLimit:]...)
	}
}

// HistoryContext renders the trailing ContextWindow entries as
// "User: ..." / "Veltrix: ..." lines.
func (s *Session) HistoryContext() string {
	h := s.History
	if len(h) > ContextWindow {
		h = h[len(h)-ContextWindow:]
	}
	lines := make([]string, 0, len(h))
	for _, m := range h {
		who := "Veltrix"
		if m.Speaker == domain.SpeakerUser {
			who = "User"
		}
		lines = append(lines, who+": "+m.Text)
	}
	return strings.Join(lines, "\n")
}

// Store is a keyed table of sessions.
//
// Get never returns a nil session: an unknown id yields a fresh idle one.
// Update applies fn to the stored record atomically with respect to other
// Update calls on the same key. Lock serializes whole turns for a key; callers
// that read, decide and then update must hold it.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, id string, fn func(*Session)) error
	Reset(ctx context.Context, id string) error
	Clear(ctx context.Context, id string) error
	Lock(ctx context.Context, id string) (unlock func(), err error)
	Close() error
}
