package support

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/veltrix/internal/domain"
	"github.com/ashureev/veltrix/internal/session"
)

type fakeOrders struct {
	latest      *domain.Order
	recent      []*domain.Order
	vendor      []*domain.Order
	cancelOK    bool
	err         error
	cancelled   []string
	recentLimit int
}

func (f *fakeOrders) LatestOrder(context.Context, string) (*domain.Order, error) {
	return f.latest, f.err
}

func (f *fakeOrders) RecentOrders(_ context.Context, _ string, n int) ([]*domain.Order, error) {
	f.recentLimit = n
	return f.recent, f.err
}

func (f *fakeOrders) CancelOrder(_ context.Context, id string) (bool, error) {
	f.cancelled = append(f.cancelled, id)
	return f.cancelOK, f.err
}

func (f *fakeOrders) VendorOrders(context.Context, string) ([]*domain.Order, error) {
	return f.vendor, f.err
}

type fakeCatalog struct {
	found []domain.ProductSummary
	query string
}

func (f *fakeCatalog) ListNonEmptyCategories(context.Context) ([]string, error) { return nil, nil }

func (f *fakeCatalog) ListProductsInCategory(context.Context, string) ([]domain.ProductSummary, error) {
	return nil, nil
}

func (f *fakeCatalog) SearchProducts(_ context.Context, text string) ([]domain.ProductSummary, error) {
	f.query = text
	return f.found, nil
}

var created = time.Date(2026, time.March, 2, 10, 0, 0, 0, time.Local)

func newDesk(orders *fakeOrders, catalog *fakeCatalog) (*Desk, *session.MemoryStore) {
	sessions := session.NewMemoryStore()
	d := NewDesk(catalog, orders, sessions)
	d.now = func() time.Time { return created }
	return d, sessions
}

func TestLatestOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	d, _ := newDesk(&fakeOrders{}, &fakeCatalog{})
	if got, _ := d.LatestOrder(ctx, "u1"); got != "No recent crossings found." {
		t.Fatalf("unexpected empty reply: %q", got)
	}

	d, _ = newDesk(&fakeOrders{latest: &domain.Order{ID: "o1"}}, &fakeCatalog{})
	if got, _ := d.LatestOrder(ctx, "u1"); got != "Latest crossing located, but no gear attached." {
		t.Fatalf("unexpected itemless reply: %q", got)
	}

	d, _ = newDesk(&fakeOrders{latest: &domain.Order{
		ID: "o1", Status: domain.OrderShipped, TotalAmount: 5998, CreatedAt: created,
		Items: []domain.OrderItem{
			{ProductName: "Viper Mouse", Quantity: 2, Status: domain.OrderShipped},
			{Quantity: 1, Status: domain.OrderProcessing},
		},
	}}, &fakeCatalog{})
	got, err := d.LatestOrder(ctx, "u1")
	if err != nil {
		t.Fatalf("LatestOrder failed: %v", err)
	}
	want := "Latest Crossing Overview:\n\n" +
		"Item 1: Viper Mouse\nQuantity: 2\nStatus: shipped\n\n" +
		"Item 2: Unknown Gear\nQuantity: 1\nStatus: processing\n\n" +
		"Order Status: shipped\nTotal Amount: ₹5998\nDate: Mon Mar 02 2026\n\n— Veltrix"
	if got != want {
		t.Fatalf("unexpected reply:\n%s", got)
	}
}

func TestRecentOrders(t *testing.T) {
	t.Parallel()
	orders := &fakeOrders{recent: []*domain.Order{
		{Status: domain.OrderDelivered, TotalAmount: 3999, CreatedAt: created,
			Items: []domain.OrderItem{{ProductName: "Raptor Headset", Quantity: 1}}},
	}}
	d, _ := newDesk(orders, &fakeCatalog{})

	got, err := d.RecentOrders(context.Background(), "u1")
	if err != nil {
		t.Fatalf("RecentOrders failed: %v", err)
	}
	want := "Recent Crossings:\n\nCrossing 1\n• Raptor Headset (x1)\nOrder Status: delivered\nTotal: ₹3999\nDate: Mon Mar 02 2026\n\n— Veltrix"
	if got != want {
		t.Fatalf("unexpected reply:\n%s", got)
	}
	if orders.recentLimit != RecentOrderCount {
		t.Fatalf("expected limit %d, got %d", RecentOrderCount, orders.recentLimit)
	}
}

func TestDeliveryStatus(t *testing.T) {
	t.Parallel()

	at := func(d time.Duration) *time.Time {
		ts := created.Add(d)
		return &ts
	}
	tests := []struct {
		name  string
		order *domain.Order
		want  string
	}{
		{"none", nil, "No active crossings found."},
		{"unassigned", &domain.Order{Status: domain.OrderProcessing}, "Delivery timeline has not been assigned yet."},
		{"cancelled", &domain.Order{Status: domain.OrderCancelled, EstimatedDelivery: at(time.Hour)}, "This crossing has been cancelled."},
		{"delivered", &domain.Order{Status: domain.OrderDelivered, EstimatedDelivery: at(time.Hour)}, "Crossing delivered successfully."},
		{"overdue", &domain.Order{Status: domain.OrderShipped, EstimatedDelivery: at(-time.Hour)}, "Delivery scheduled for today.\n\n— Veltrix"},
		{"later", &domain.Order{Status: domain.OrderShipped, EstimatedDelivery: at(49 * time.Hour)},
			"Estimated Delivery: Wed Mar 04 2026\nTime Remaining: 3 day(s)\n\n— Veltrix"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d, _ := newDesk(&fakeOrders{latest: tt.order}, &fakeCatalog{})
			got, err := d.DeliveryStatus(context.Background(), "u1")
			if err != nil {
				t.Fatalf("DeliveryStatus failed: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCancelLatestOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name     string
		orders   *fakeOrders
		want     string
		attempts int
	}{
		{"none", &fakeOrders{}, "No active crossings found to cancel.", 0},
		{"delivered", &fakeOrders{latest: &domain.Order{ID: "o1", Status: domain.OrderDelivered}}, "Delivered crossings cannot be cancelled.", 0},
		{"already", &fakeOrders{latest: &domain.Order{ID: "o1", Status: domain.OrderCancelled}}, "This crossing has already been cancelled.", 0},
		{"raced", &fakeOrders{latest: &domain.Order{ID: "o1", Status: domain.OrderShipped}}, "This crossing can no longer be cancelled.", 1},
		{"ok", &fakeOrders{latest: &domain.Order{ID: "o1", Status: domain.OrderProcessing}, cancelOK: true},
			"Crossing cancelled successfully.\nOrder ID: o1\n\n— Veltrix", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d, sessions := newDesk(tt.orders, &fakeCatalog{})
			_ = sessions.Update(ctx, "u1", func(s *session.Session) { s.OfferCategories([]string{"Mice"}) })

			got, err := d.CancelLatestOrder(ctx, "u1")
			if err != nil {
				t.Fatalf("CancelLatestOrder failed: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
			if len(tt.orders.cancelled) != tt.attempts {
				t.Fatalf("expected %d cancel attempts, got %d", tt.attempts, len(tt.orders.cancelled))
			}
			s, _ := sessions.Get(ctx, "u1")
			if tt.orders.cancelOK && s.State != session.StateIdle {
				t.Fatalf("expected session reset after cancel, got %s", s.State)
			}
		})
	}
}

func TestVendorStats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	d, _ := newDesk(&fakeOrders{}, &fakeCatalog{})
	if got, _ := d.VendorStats(ctx, "v1", domain.RoleCustomer); got != "Vendor access required." {
		t.Fatalf("unexpected reply for customer: %q", got)
	}
	if got, _ := d.VendorStats(ctx, "v1", domain.RoleVendor); got != "No sales activity detected yet." {
		t.Fatalf("unexpected reply for idle vendor: %q", got)
	}

	d, _ = newDesk(&fakeOrders{vendor: []*domain.Order{
		{Items: []domain.OrderItem{
			{VendorID: "v1", Quantity: 2, Price: 100, Status: domain.OrderShipped},
			{VendorID: "v2", Quantity: 5, Price: 1000, Status: domain.OrderProcessing},
		}},
		{Items: []domain.OrderItem{
			{VendorID: "v1", Quantity: 1, Price: 49.5, Status: domain.OrderDelivered},
		}},
	}}, &fakeCatalog{})
	got, err := d.VendorStats(ctx, "v1", domain.RoleVendor)
	if err != nil {
		t.Fatalf("VendorStats failed: %v", err)
	}
	want := "Vendor Performance Overview:\n\nTotal Units Sold: 3\nRevenue Generated: ₹249.5\nPending Shipments: 1\nOrders Involved: 2\n\n— Veltrix"
	if got != want {
		t.Fatalf("unexpected reply:\n%s", got)
	}
}

func TestRecommendOpensProductSelection(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	catalog := &fakeCatalog{found: []domain.ProductSummary{{ID: "p1", Name: "Viper Mouse", Price: 2999}}}
	d, sessions := newDesk(&fakeOrders{}, catalog)

	got, err := d.Recommend(ctx, "u1", "viper mouse")
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if got != "Available Gear:\n\n1. Viper Mouse – ₹2999\n\nSelect target number to proceed." {
		t.Fatalf("unexpected reply: %q", got)
	}
	if catalog.query != "viper mouse" {
		t.Fatalf("unexpected search query %q", catalog.query)
	}
	s, _ := sessions.Get(ctx, "u1")
	if s.State != session.StateAwaitingProduct || len(s.ProductOptions) != 1 {
		t.Fatalf("expected product selection, got %+v", s)
	}

	catalog.found = nil
	got, _ = d.Recommend(ctx, "u2", "unobtainium")
	if got != "No matching products available in the shop." {
		t.Fatalf("unexpected reply: %q", got)
	}
	if s, _ := sessions.Get(ctx, "u2"); s.State != session.StateIdle {
		t.Fatalf("expected u2 to stay idle, got %s", s.State)
	}
}

func TestRefundPolicy(t *testing.T) {
	t.Parallel()
	d, _ := newDesk(&fakeOrders{}, &fakeCatalog{})
	if got := d.RefundPolicy(); !strings.HasPrefix(got, "Refund window remains active for 7 days") || !strings.HasSuffix(got, "— Veltrix") {
		t.Fatalf("unexpected policy: %q", got)
	}
}

func TestCollaboratorErrorsPropagate(t *testing.T) {
	t.Parallel()
	boom := errors.New("db down")
	d, _ := newDesk(&fakeOrders{err: boom}, &fakeCatalog{})

	if _, err := d.LatestOrder(context.Background(), "u1"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if _, err := d.VendorStats(context.Background(), "v1", domain.RoleVendor); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
