// Package dialogue runs the guided category, product and confirmation flow.
package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ashureev/veltrix/internal/domain"
	"github.com/ashureev/veltrix/internal/intent"
	"github.com/ashureev/veltrix/internal/metrics"
	"github.com/ashureev/veltrix/internal/session"
	"github.com/ashureev/veltrix/internal/store"
)

// browseTriggers open the category list from an idle session.
var browseTriggers = []string{
	"products", "items", "gear", "catalog",
	"variety", "what do you have", "show all",
	"show me", "what you have", "what do u have",
	"categories", "category", "chategories",
	"browse", "explore", "list", "available",
}

// IsBrowseRequest reports whether normalized text asks to see the catalog.
func IsBrowseRequest(text string) bool {
	return containsAny(text, browseTriggers)
}

// Reply is the outcome of a guided step. Handled is false when the message
// should continue on to intent routing.
type Reply struct {
	Text    string
	Handled bool
}

func handled(text string) Reply {
	return Reply{Text: text, Handled: true}
}

// Machine drives the guided flow against a session store and the catalog.
// Callers must hold the session's turn lock across Enter and Handle.
type Machine struct {
	sessions session.Store
	catalog  store.Catalog
	metrics  *metrics.Metrics
}

// NewMachine creates a state machine.
func NewMachine(sessions session.Store, catalog store.Catalog) *Machine {
	return &Machine{sessions: sessions, catalog: catalog}
}

// WithMetrics makes the machine count escapes on m.
func (m *Machine) WithMetrics(mt *metrics.Metrics) *Machine {
	m.metrics = mt
	return m
}

// Enter is the two-phase read every turn starts with: the session is read,
// the escape hatch runs against that read and may reset the store, and the
// session is then read again. Only the second read may drive branching.
func (m *Machine) Enter(ctx context.Context, userID, message string) (*session.Session, error) {
	text := intent.Normalize(message)

	first, err := m.sessions.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	if ShouldEscape(first, text) {
		slog.Debug("Guided flow abandoned", "user_id", userID, "state", first.State)
		m.metrics.Escape()
		if err := m.sessions.Reset(ctx, userID); err != nil {
			return nil, fmt.Errorf("reset session: %w", err)
		}
	} else if err := m.sessions.Update(ctx, userID, func(*session.Session) {}); err != nil {
		// Every turn counts as activity, reprompts included.
		return nil, fmt.Errorf("touch session: %w", err)
	}

	current, err := m.sessions.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("re-read session: %w", err)
	}
	return current, nil
}

// Handle runs the guided step for the state in s, which must come from Enter.
func (m *Machine) Handle(ctx context.Context, userID string, s *session.Session, message string) (Reply, error) {
	text := intent.Normalize(message)
	switch s.State {
	case session.StateAwaitingCategory:
		return m.handleCategory(ctx, userID, s, text)
	case session.StateAwaitingProduct:
		return m.handleProduct(ctx, userID, s, text)
	case session.StateAwaitingConfirmation:
		return m.handleConfirmation(ctx, userID, s, text)
	default:
		return m.browse(ctx, userID, text)
	}
}

func (m *Machine) handleCategory(ctx context.Context, userID string, s *session.Session, text string) (Reply, error) {
	categories := s.CategoryOptions

	var selected string
	if n, ok := parseIndex(text); ok && n >= 1 && n <= len(categories) {
		selected = categories[n-1]
	}
	if selected == "" {
		selected = matchCategory(categories, text)
	}
	if selected == "" {
		return handled(fmt.Sprintf(
			"Invalid selection. Choose a number between 1 and %d or type a category name.", len(categories),
		)), nil
	}
	return m.offerCategory(ctx, userID, selected, true)
}

// offerCategory lists the products of category and enters product selection.
// resetOnEmpty controls whether an empty category also drops the flow.
func (m *Machine) offerCategory(ctx context.Context, userID, category string, resetOnEmpty bool) (Reply, error) {
	products, err := m.catalog.ListProductsInCategory(ctx, category)
	if err != nil {
		return Reply{}, fmt.Errorf("list products in %s: %w", category, err)
	}
	if len(products) == 0 {
		if resetOnEmpty {
			if err := m.sessions.Reset(ctx, userID); err != nil {
				return Reply{}, fmt.Errorf("reset session: %w", err)
			}
		}
		return handled(fmt.Sprintf("No products available in %s currently.", category)), nil
	}

	if err := m.sessions.Update(ctx, userID, func(s *session.Session) {
		s.OfferProducts(category, products)
	}); err != nil {
		return Reply{}, fmt.Errorf("store product options: %w", err)
	}
	return handled(FormatProductList(category, products)), nil
}

func (m *Machine) handleProduct(ctx context.Context, userID string, s *session.Session, text string) (Reply, error) {
	products := s.ProductOptions

	n, ok := parseIndex(text)
	if !ok {
		return handled(fmt.Sprintf(
			"Please enter a number between 1 and %d, or ask something new.", len(products),
		)), nil
	}
	if n < 1 || n > len(products) {
		return handled(fmt.Sprintf("Please select a number between 1 and %d.", len(products))), nil
	}

	product := products[n-1]
	if err := m.sessions.Update(ctx, userID, func(s *session.Session) {
		s.Select(product)
	}); err != nil {
		return Reply{}, fmt.Errorf("store selection: %w", err)
	}
	return handled(fmt.Sprintf(
		"You selected:\n\n🎮 %s\n💰 ₹%s\n\nType \"add to cart\" or \"buy now\".",
		product.Name, domain.FormatPrice(product.Price),
	)), nil
}

func (m *Machine) handleConfirmation(ctx context.Context, userID string, s *session.Session, text string) (Reply, error) {
	product := s.SelectedProduct
	if product == nil {
		slog.Warn("Confirmation step without a selected product", "user_id", userID)
		if err := m.sessions.Reset(ctx, userID); err != nil {
			return Reply{}, fmt.Errorf("reset session: %w", err)
		}
		return handled("Something went wrong. Please start again."), nil
	}

	var reply string
	switch {
	case strings.Contains(text, "add"):
		reply = fmt.Sprintf("✅ %s added to cart successfully!", product.Name)
	case strings.Contains(text, "buy"):
		reply = fmt.Sprintf("🚀 Redirecting to checkout for %s.", product.Name)
	default:
		return handled(`Please type "add to cart" or "buy now".`), nil
	}

	if err := m.sessions.Reset(ctx, userID); err != nil {
		return Reply{}, fmt.Errorf("reset session: %w", err)
	}
	return handled(reply), nil
}

// browse opens the catalog from an idle session when text asks for it.
func (m *Machine) browse(ctx context.Context, userID, text string) (Reply, error) {
	if !IsBrowseRequest(text) {
		return Reply{}, nil
	}

	categories, err := m.catalog.ListNonEmptyCategories(ctx)
	if err != nil {
		return Reply{}, fmt.Errorf("list categories: %w", err)
	}
	if len(categories) == 0 {
		return handled("No products are currently available."), nil
	}

	if category := matchCategory(categories, text); category != "" {
		return m.offerCategory(ctx, userID, category, false)
	}

	if err := m.sessions.Update(ctx, userID, func(s *session.Session) {
		s.OfferCategories(categories)
	}); err != nil {
		return Reply{}, fmt.Errorf("store category options: %w", err)
	}

	var b strings.Builder
	b.WriteString("Available categories:\n\n")
	for i, c := range categories {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c)
	}
	b.WriteString("\nSelect a number or type a category name.")
	return handled(b.String()), nil
}

// FormatProductList renders the numbered product prompt for a category.
func FormatProductList(category string, products []domain.ProductSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s available:\n\n", category)
	for i, p := range products {
		fmt.Fprintf(&b, "%d. %s — ₹%s\n", i+1, p.Name, domain.FormatPrice(p.Price))
	}
	b.WriteString("\nSelect a number to proceed.")
	return b.String()
}

func parseIndex(text string) (int, bool) {
	if !bareInteger.MatchString(text) {
		return 0, false
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		// Too many digits to be a valid index.
		return -1, true
	}
	return n, true
}
