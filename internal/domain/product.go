package domain

import (
	"strconv"
	"time"
)

// Product is a catalog record.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	Stock       int       `json:"stock"`
	VendorID    string    `json:"vendor_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProductSummary is the subset of a product offered during guided selection.
type ProductSummary struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// FormatPrice renders an amount without trailing zeros, e.g. 2999 or 49.5.
func FormatPrice(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}
