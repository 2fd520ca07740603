package domain

import "time"

// OrderStatus is the lifecycle status of an order or an order line.
type OrderStatus string

const (
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// OrderItem is a single line of an order.
type OrderItem struct {
	ProductID   string      `json:"product_id"`
	ProductName string      `json:"product_name,omitempty"`
	VendorID    string      `json:"vendor_id"`
	Quantity    int         `json:"quantity"`
	Price       float64     `json:"price"`
	Status      OrderStatus `json:"status"`
}

// IsPendingShipment returns true if the line has not reached the customer yet.
func (i OrderItem) IsPendingShipment() bool {
	return i.Status == OrderProcessing || i.Status == OrderShipped
}

// Order is a customer order with its lines.
type Order struct {
	ID                string      `json:"id"`
	UserID            string      `json:"user_id"`
	Items             []OrderItem `json:"items"`
	Status            OrderStatus `json:"status"`
	TotalAmount       float64     `json:"total_amount"`
	EstimatedDelivery *time.Time  `json:"estimated_delivery,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// Cancellable returns true if the order may still be cancelled.
func (o *Order) Cancellable() bool {
	return o.Status != OrderDelivered && o.Status != OrderCancelled
}
