// Package support answers account and catalog questions with plain text.
package support

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ashureev/veltrix/internal/domain"
	"github.com/ashureev/veltrix/internal/session"
	"github.com/ashureev/veltrix/internal/store"
)

// RecentOrderCount is how many orders the history answer lists.
const RecentOrderCount = 3

const signature = "\n\n— Veltrix"

const dateLayout = "Mon Jan 02 2006"

// Desk holds the collaborators the domain handlers read and write.
type Desk struct {
	catalog  store.Catalog
	orders   store.Orders
	sessions session.Store
	now      func() time.Time
}

// NewDesk creates a support desk.
func NewDesk(catalog store.Catalog, orders store.Orders, sessions session.Store) *Desk {
	return &Desk{catalog: catalog, orders: orders, sessions: sessions, now: time.Now}
}

// LatestOrder summarizes the user's most recent order.
func (d *Desk) LatestOrder(ctx context.Context, userID string) (string, error) {
	order, err := d.orders.LatestOrder(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("latest order: %w", err)
	}
	if order == nil {
		return "No recent crossings found.", nil
	}
	if len(order.Items) == 0 {
		return "Latest crossing located, but no gear attached.", nil
	}

	var b strings.Builder
	b.WriteString("Latest Crossing Overview:\n\n")
	for i, item := range order.Items {
		fmt.Fprintf(&b, "Item %d: %s\n", i+1, itemName(item))
		fmt.Fprintf(&b, "Quantity: %d\n", item.Quantity)
		fmt.Fprintf(&b, "Status: %s\n\n", item.Status)
	}
	fmt.Fprintf(&b, "Order Status: %s", order.Status)
	fmt.Fprintf(&b, "\nTotal Amount: ₹%s", domain.FormatPrice(order.TotalAmount))
	fmt.Fprintf(&b, "\nDate: %s", order.CreatedAt.Format(dateLayout))
	return b.String() + signature, nil
}

// RecentOrders lists the user's last few orders.
func (d *Desk) RecentOrders(ctx context.Context, userID string) (string, error) {
	orders, err := d.orders.RecentOrders(ctx, userID, RecentOrderCount)
	if err != nil {
		return "", fmt.Errorf("recent orders: %w", err)
	}
	if len(orders) == 0 {
		return "No recent crossings found.", nil
	}

	var b strings.Builder
	b.WriteString("Recent Crossings:\n\n")
	for i, order := range orders {
		fmt.Fprintf(&b, "Crossing %d\n", i+1)
		for _, item := range order.Items {
			fmt.Fprintf(&b, "• %s (x%d)\n", itemName(item), item.Quantity)
		}
		fmt.Fprintf(&b, "Order Status: %s\n", order.Status)
		fmt.Fprintf(&b, "Total: ₹%s\n", domain.FormatPrice(order.TotalAmount))
		fmt.Fprintf(&b, "Date: %s\n\n", order.CreatedAt.Format(dateLayout))
	}
	return strings.TrimSpace(b.String()) + signature, nil
}

// RefundPolicy returns the fixed return policy.
func (d *Desk) RefundPolicy() string {
	return "Refund window remains active for 7 days after confirmed delivery.\n" +
		"Initiate the request from your Orders panel.\n" +
		"Verification is required before approval." + signature
}

// DeliveryStatus reports the estimated arrival of the latest order.
func (d *Desk) DeliveryStatus(ctx context.Context, userID string) (string, error) {
	order, err := d.orders.LatestOrder(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("latest order: %w", err)
	}
	if order == nil {
		return "No active crossings found.", nil
	}
	if order.EstimatedDelivery == nil {
		return "Delivery timeline has not been assigned yet.", nil
	}
	switch order.Status {
	case domain.OrderCancelled:
		return "This crossing has been cancelled.", nil
	case domain.OrderDelivered:
		return "Crossing delivered successfully.", nil
	}

	eta := *order.EstimatedDelivery
	days := int(math.Ceil(eta.Sub(d.now()).Hours() / 24))
	if days <= 0 {
		return "Delivery scheduled for today." + signature, nil
	}
	return fmt.Sprintf("Estimated Delivery: %s\nTime Remaining: %d day(s)", eta.Format(dateLayout), days) + signature, nil
}

// CancelLatestOrder cancels the user's most recent order if it has not been
// delivered or cancelled, and drops any guided flow.
func (d *Desk) CancelLatestOrder(ctx context.Context, userID string) (string, error) {
	order, err := d.orders.LatestOrder(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("latest order: %w", err)
	}
	if order == nil {
		return "No active crossings found to cancel.", nil
	}
	if !order.Cancellable() {
		if order.Status == domain.OrderDelivered {
			return "Delivered crossings cannot be cancelled.", nil
		}
		return "This crossing has already been cancelled.", nil
	}

	ok, err := d.orders.CancelOrder(ctx, order.ID)
	if err != nil {
		return "", fmt.Errorf("cancel order %s: %w", order.ID, err)
	}
	if !ok {
		// The status moved on between the read and the guarded update.
		return "This crossing can no longer be cancelled.", nil
	}

	if err := d.sessions.Reset(ctx, userID); err != nil {
		return "", fmt.Errorf("reset session: %w", err)
	}
	return "Crossing cancelled successfully.\nOrder ID: " + order.ID + signature, nil
}

// VendorStats aggregates the caller's sales. Only vendors may ask.
func (d *Desk) VendorStats(ctx context.Context, userID string, role domain.Role) (string, error) {
	if !role.IsVendor() {
		return "Vendor access required.", nil
	}

	orders, err := d.orders.VendorOrders(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("vendor orders: %w", err)
	}
	if len(orders) == 0 {
		return "No sales activity detected yet.", nil
	}

	var revenue float64
	var units, pending int
	for _, order := range orders {
		for _, item := range order.Items {
			if item.VendorID != userID {
				continue
			}
			revenue += item.Price * float64(item.Quantity)
			units += item.Quantity
			if item.IsPendingShipment() {
				pending++
			}
		}
	}

	return fmt.Sprintf("Vendor Performance Overview:\n\n"+
		"Total Units Sold: %d\n"+
		"Revenue Generated: ₹%s\n"+
		"Pending Shipments: %d\n"+
		"Orders Involved: %d",
		units, domain.FormatPrice(revenue), pending, len(orders)) + signature, nil
}

// Recommend searches the catalog for message and, on a hit, opens product
// selection over the results.
func (d *Desk) Recommend(ctx context.Context, userID, message string) (string, error) {
	products, err := d.catalog.SearchProducts(ctx, message)
	if err != nil {
		return "", fmt.Errorf("search products: %w", err)
	}
	if len(products) == 0 {
		return "No matching products available in the shop.", nil
	}

	if err := d.sessions.Update(ctx, userID, func(s *session.Session) {
		s.OfferProducts("", products)
	}); err != nil {
		return "", fmt.Errorf("store product options: %w", err)
	}

	var b strings.Builder
	b.WriteString("Available Gear:\n\n")
	for i, p := range products {
		fmt.Fprintf(&b, "%d. %s – ₹%s\n", i+1, p.Name, domain.FormatPrice(p.Price))
	}
	b.WriteString("\nSelect target number to proceed.")
	return b.String(), nil
}

func itemName(item domain.OrderItem) string {
	if item.ProductName == "" {
		return "Unknown Gear"
	}
	return item.ProductName
}
