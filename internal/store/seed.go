package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ashureev/veltrix/internal/domain"
	"github.com/google/uuid"
)

// Demo identities used by the seed data.
const (
	DemoCustomerID = "demo-customer"
	DemoVendorID   = "demo-vendor"
)

// demoNamespace derives stable product IDs so re-seeding upserts in place.
var demoNamespace = uuid.MustParse("6f1c6a8e-3f7e-4b7e-9a53-0d3c7f2b9e11")

var demoCatalog = []struct {
	name     string
	category string
	price    float64
	stock    int
}{
	{"Viper Mouse", "Mice", 2999, 12},
	{"Phantom Wireless Mouse", "Mice", 4499, 4},
	{"Strix Mousepad XL", "Mousepads", 1299, 30},
	{"Apex Mechanical Keyboard", "Keyboards", 7999, 8},
	{"Nova TKL Keyboard", "Keyboards", 5499, 0},
	{"Raptor Headset", "Headsets", 3999, 15},
	{"Titan Gaming Chair", "Chairs", 18999, 3},
	{"Helix 27in Monitor", "Monitors", 21999, 5},
	{"DualForce Controller", "Controllers", 4999, 20},
	{"Apex Racing Wheel", "Racing Wheels", 24999, 2},
}

// DemoProductID returns the stable ID of a demo product by name.
func DemoProductID(name string) string {
	return uuid.NewSHA1(demoNamespace, []byte(name)).String()
}

// SeedDemoData loads a small gaming-gear catalog plus a few orders for the
// demo customer. It is safe to call repeatedly.
func SeedDemoData(ctx context.Context, repo Repository) error {
	now := time.Now()
	for _, item := range demoCatalog {
		p := &domain.Product{
			ID:        DemoProductID(item.name),
			Name:      item.name,
			Price:     item.price,
			Category:  item.category,
			Stock:     item.stock,
			VendorID:  DemoVendorID,
			CreatedAt: now,
		}
		if err := repo.UpsertProduct(ctx, p); err != nil {
			return fmt.Errorf("seed product %s: %w", item.name, err)
		}
	}

	existing, err := repo.LatestOrder(ctx, DemoCustomerID)
	if err != nil {
		return fmt.Errorf("check demo orders: %w", err)
	}
	if existing != nil {
		return nil
	}

	eta := now.Add(72 * time.Hour)
	orders := []*domain.Order{
		{
			ID:          uuid.NewString(),
			UserID:      DemoCustomerID,
			Status:      domain.OrderDelivered,
			TotalAmount: 3999,
			CreatedAt:   now.Add(-14 * 24 * time.Hour),
			Items: []domain.OrderItem{
				{ProductID: DemoProductID("Raptor Headset"), VendorID: DemoVendorID, Quantity: 1, Price: 3999, Status: domain.OrderDelivered},
			},
		},
		{
			ID:                uuid.NewString(),
			UserID:            DemoCustomerID,
			Status:            domain.OrderShipped,
			TotalAmount:       7297,
			EstimatedDelivery: &eta,
			CreatedAt:         now.Add(-24 * time.Hour),
			Items: []domain.OrderItem{
				{ProductID: DemoProductID("Viper Mouse"), VendorID: DemoVendorID, Quantity: 2, Price: 2999, Status: domain.OrderShipped},
				{ProductID: DemoProductID("Strix Mousepad XL"), VendorID: DemoVendorID, Quantity: 1, Price: 1299, Status: domain.OrderProcessing},
			},
		},
	}
	for _, o := range orders {
		if err := repo.InsertOrder(ctx, o); err != nil {
			return fmt.Errorf("seed order: %w", err)
		}
	}
	return nil
}
