package model

import (
	"strings"
	"time"
)

// Order statuses. The admin panel may move an order to any status, the
// service only checks that the value is one of these.
const (
	StatusNew          = "new"
	StatusProcessing   = "processing"
	StatusConfirmed    = "confirmed"
	StatusPaid         = "paid"
	StatusDeliveryPaid = "delivery_paid"
	StatusShipping     = "shipping"
	StatusCompleted    = "completed"
	StatusCancelled    = "cancelled"
)

var orderStatuses = map[string]bool{
	StatusNew:          true,
	StatusProcessing:   true,
	StatusConfirmed:    true,
	StatusPaid:         true,
	StatusDeliveryPaid: true,
	StatusShipping:     true,
	StatusCompleted:    true,
	StatusCancelled:    true,
}

// ValidStatus reports whether s is a known order status.
func ValidStatus(s string) bool {
	return orderStatuses[s]
}

// Customer types
const (
	CustomerIndividual = "individual"
	CustomerLegal      = "legal"
)

// Order represents a row in the orders table. AccessToken is never
// serialized; customer-facing reads are gated on it instead.
type Order struct {
	ID              string     `json:"id"`
	OrderNumber     int64      `json:"order_number"`
	CustomerName    string     `json:"customer_name"`
	CustomerPhone   string     `json:"customer_phone"`
	CustomerEmail   *string    `json:"customer_email,omitempty"`
	CustomerType    string     `json:"customer_type"`
	DeliveryType    string     `json:"delivery_type"`
	DeliveryAddress *string    `json:"delivery_address,omitempty"`
	DeliveryCity    *string    `json:"delivery_city,omitempty"`
	PickupLocation  *string    `json:"pickup_location,omitempty"`
	PaymentMethod   *string    `json:"payment_method,omitempty"`
	AccessToken     string     `json:"-"`
	Status          string     `json:"status"`
	Subtotal        float64    `json:"subtotal"`
	DeliveryCost    float64    `json:"delivery_cost"`
	Total           float64    `json:"total"`
	ManagerComment  *string    `json:"manager_comment,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	Items   []OrderItem          `json:"items,omitempty"`
	History []StatusHistoryEntry `json:"history,omitempty"`
}

// OrderItem represents a row in the order_items table. TotalPrice is
// always quantity*unit_price, recomputed on every change.
type OrderItem struct {
	ID           int64   `json:"id"`
	OrderID      string  `json:"order_id"`
	ProductName  string  `json:"product_name"`
	ProductSKU   *string `json:"product_sku,omitempty"`
	ProductImage *string `json:"product_image,omitempty"`
	Quantity     int     `json:"quantity"`
	UnitPrice    float64 `json:"unit_price"`
	TotalPrice   float64 `json:"total_price"`
}

// StatusHistoryEntry is an append-only audit row. A pure comment entry
// repeats the order's status at the time it was written.
type StatusHistoryEntry struct {
	ID        int64     `json:"id"`
	OrderID   string    `json:"order_id"`
	Status    string    `json:"status"`
	Comment   *string   `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// OrderStats is the aggregate returned to the admin dashboard.
type OrderStats struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"byStatus"`
}

// CreateOrderResult is what the checkout page gets back.
type CreateOrderResult struct {
	OrderID     string `json:"orderId"`
	OrderNumber int64  `json:"orderNumber"`
	AccessToken string `json:"accessToken"`
}

// NewOrder is the checkout payload.
type NewOrder struct {
	CustomerName    string      `json:"customer_name"`
	CustomerPhone   string      `json:"customer_phone"`
	CustomerEmail   *string     `json:"customer_email,omitempty"`
	CustomerType    string      `json:"customer_type"`
	DeliveryType    string      `json:"delivery_type"`
	DeliveryAddress *string     `json:"delivery_address,omitempty"`
	DeliveryCity    *string     `json:"delivery_city,omitempty"`
	PickupLocation  *string     `json:"pickup_location,omitempty"`
	PaymentMethod   *string     `json:"payment_method,omitempty"`
	Items           []ItemInput `json:"items"`
}

// ItemInput accepts both the storefront cart field names (name, sku,
// image, price) and the admin panel names (product_name, product_sku,
// product_image, unit_price). Normalize picks one canonical shape so
// the rest of the service never sees the aliases.
type ItemInput struct {
	Name         string  `json:"name"`
	ProductName  string  `json:"product_name"`
	SKU          string  `json:"sku"`
	ProductSKU   string  `json:"product_sku"`
	Image        string  `json:"image"`
	ProductImage string  `json:"product_image"`
	Quantity     int     `json:"quantity"`
	Price        float64 `json:"price"`
	UnitPrice    float64 `json:"unit_price"`
}

// Normalize resolves the field aliases into a canonical OrderItem.
// The admin names win when both are present.
func (in ItemInput) Normalize() OrderItem {
	name := in.ProductName
	if name == "" {
		name = in.Name
	}
	price := in.UnitPrice
	if price == 0 {
		price = in.Price
	}
	it := OrderItem{
		ProductName: strings.TrimSpace(name),
		Quantity:    in.Quantity,
		UnitPrice:   price,
		TotalPrice:  price * float64(in.Quantity),
	}
	if sku := firstNonEmpty(in.ProductSKU, in.SKU); sku != "" {
		it.ProductSKU = &sku
	}
	if img := firstNonEmpty(in.ProductImage, in.Image); img != "" {
		it.ProductImage = &img
	}
	return it
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
