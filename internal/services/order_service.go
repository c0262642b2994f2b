package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/twelve20/pir-planet-new/internal/apperr"
	"github.com/twelve20/pir-planet-new/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// OrderStore is the persistence contract of the order aggregate. The
// pgx repository implements it; tests swap in an in-memory store.
type OrderStore interface {
	Create(ctx context.Context, o *model.Order, initialComment string) error
	GetByID(ctx context.Context, id string) (*model.Order, error)
	GetByNumber(ctx context.Context, number int64) (*model.Order, error)
	List(ctx context.Context, limit, offset int) ([]model.Order, error)
	UpdateStatus(ctx context.Context, id, status string, comment *string) error
	UpdateDeliveryCost(ctx context.Context, id string, cost float64, comment *string) error
	SetManagerComment(ctx context.Context, id, comment string) error
	ReplaceItems(ctx context.Context, orderID string, items []model.OrderItem) error
	AddItem(ctx context.Context, orderID string, item model.OrderItem) (int64, error)
	UpdateItem(ctx context.Context, orderID string, itemID int64, item model.OrderItem) error
	DeleteItem(ctx context.Context, orderID string, itemID int64) error
	Delete(ctx context.Context, id string) (bool, error)
	Stats(ctx context.Context) (*model.OrderStats, error)
}

type OrderService struct {
	Store    OrderStore
	Notifier Notifier
	Log      zerolog.Logger
}

func NewOrderService(store OrderStore, notifier Notifier, log zerolog.Logger) *OrderService {
	return &OrderService{Store: store, Notifier: notifier, Log: log}
}

// newAccessToken returns 32 random bytes as 64 hex characters.
func newAccessToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func validateItem(it model.OrderItem) error {
	if it.ProductName == "" {
		return apperr.Validation("item product name is required")
	}
	if it.Quantity <= 0 {
		return apperr.Validation("item quantity must be positive")
	}
	if it.UnitPrice < 0 {
		return apperr.Validation("item price must not be negative")
	}
	return nil
}

func normalizeItems(inputs []model.ItemInput) ([]model.OrderItem, error) {
	items := make([]model.OrderItem, 0, len(inputs))
	for _, in := range inputs {
		it := in.Normalize()
		if err := validateItem(it); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

// Create validates the checkout payload and persists the order together
// with its items, order number and first history entry. The manager
// chat is notified after the write commits.
func (s *OrderService) Create(ctx context.Context, in model.NewOrder) (*model.CreateOrderResult, error) {
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.CustomerPhone = strings.TrimSpace(in.CustomerPhone)

	if in.CustomerName == "" {
		return nil, apperr.Validation("customer name is required")
	}
	if in.CustomerPhone == "" {
		return nil, apperr.Validation("customer phone is required")
	}
	if in.DeliveryType == "" {
		return nil, apperr.Validation("delivery type is required")
	}
	if len(in.Items) == 0 {
		return nil, apperr.Validation("order must contain at least one item")
	}

	items, err := normalizeItems(in.Items)
	if err != nil {
		return nil, err
	}

	customerType := in.CustomerType
	if customerType == "" {
		customerType = model.CustomerIndividual
	}
	if customerType != model.CustomerIndividual && customerType != model.CustomerLegal {
		return nil, apperr.Validation("unknown customer type: " + customerType)
	}

	token, err := newAccessToken()
	if err != nil {
		return nil, err
	}

	var subtotal float64
	for _, it := range items {
		subtotal += it.TotalPrice
	}

	o := &model.Order{
		ID:              uuid.NewString(),
		CustomerName:    in.CustomerName,
		CustomerPhone:   in.CustomerPhone,
		CustomerEmail:   in.CustomerEmail,
		CustomerType:    customerType,
		DeliveryType:    in.DeliveryType,
		DeliveryAddress: in.DeliveryAddress,
		DeliveryCity:    in.DeliveryCity,
		PickupLocation:  in.PickupLocation,
		PaymentMethod:   in.PaymentMethod,
		AccessToken:     token,
		Status:          model.StatusNew,
		Subtotal:        subtotal,
		DeliveryCost:    0,
		Total:           subtotal,
		Items:           items,
	}

	if err := s.Store.Create(ctx, o, "Заказ создан"); err != nil {
		return nil, err
	}

	s.notify("order_created", func(ctx context.Context) error {
		return s.Notifier.OrderCreated(ctx, o)
	})

	return &model.CreateOrderResult{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		AccessToken: o.AccessToken,
	}, nil
}

// GetByID returns the full aggregate: order, items in insertion order,
// history newest first. Access control is the caller's job.
func (s *OrderService) GetByID(ctx context.Context, id string) (*model.Order, error) {
	return s.Store.GetByID(ctx, id)
}

// VerifyAccess checks the caller-supplied token against the order's
// access token. The comparison is constant-time.
func (s *OrderService) VerifyAccess(order *model.Order, suppliedToken string) error {
	if suppliedToken == "" {
		return apperr.ErrForbidden
	}
	if subtle.ConstantTimeCompare([]byte(order.AccessToken), []byte(suppliedToken)) != 1 {
		return apperr.ErrForbidden
	}
	return nil
}

// List returns order summaries, newest first.
func (s *OrderService) List(ctx context.Context, limit, offset int) ([]model.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.Store.List(ctx, limit, offset)
}

// UpdateStatus moves the order to any known status. Appends exactly one
// history entry and notifies the manager chat.
func (s *OrderService) UpdateStatus(ctx context.Context, id, status string, comment *string) error {
	if !model.ValidStatus(status) {
		return apperr.Validation("unknown order status: " + status)
	}
	if err := s.Store.UpdateStatus(ctx, id, status, comment); err != nil {
		return err
	}

	s.notify("status_changed", func(ctx context.Context) error {
		o, err := s.Store.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return s.Notifier.StatusChanged(ctx, o, status, comment)
	})
	return nil
}

// UpdateDeliveryCost sets the delivery cost; the total is recomputed
// from the stored subtotal in the same statement.
func (s *OrderService) UpdateDeliveryCost(ctx context.Context, id string, cost float64, comment *string) error {
	if cost < 0 {
		return apperr.Validation("delivery cost must not be negative")
	}
	return s.Store.UpdateDeliveryCost(ctx, id, cost, comment)
}

// SetManagerComment updates the manager note without touching history.
func (s *OrderService) SetManagerComment(ctx context.Context, id, comment string) error {
	return s.Store.SetManagerComment(ctx, id, comment)
}

// ReplaceItems swaps the whole item set. The replacement set obeys the
// same rules as checkout: non-empty, positive quantities, non-negative
// prices.
func (s *OrderService) ReplaceItems(ctx context.Context, orderID string, inputs []model.ItemInput) error {
	if len(inputs) == 0 {
		return apperr.Validation("order must contain at least one item")
	}
	items, err := normalizeItems(inputs)
	if err != nil {
		return err
	}
	return s.Store.ReplaceItems(ctx, orderID, items)
}

// AddItem appends one item to the order.
func (s *OrderService) AddItem(ctx context.Context, orderID string, input model.ItemInput) (int64, error) {
	it := input.Normalize()
	if err := validateItem(it); err != nil {
		return 0, err
	}
	return s.Store.AddItem(ctx, orderID, it)
}

// UpdateItem rewrites one item; total_price is derived, never taken
// from the caller.
func (s *OrderService) UpdateItem(ctx context.Context, orderID string, itemID int64, input model.ItemInput) error {
	it := input.Normalize()
	if err := validateItem(it); err != nil {
		return err
	}
	return s.Store.UpdateItem(ctx, orderID, itemID, it)
}

// DeleteItem removes one item. The store refuses to remove the last
// one.
func (s *OrderService) DeleteItem(ctx context.Context, orderID string, itemID int64) error {
	return s.Store.DeleteItem(ctx, orderID, itemID)
}

// Delete removes the whole aggregate. Idempotent; the bool reports
// whether anything was deleted.
func (s *OrderService) Delete(ctx context.Context, id string) (bool, error) {
	return s.Store.Delete(ctx, id)
}

// Stats returns counts for the admin dashboard.
func (s *OrderService) Stats(ctx context.Context) (*model.OrderStats, error) {
	return s.Store.Stats(ctx)
}

// notify runs fn on its own goroutine with a fresh context, so a slow
// or dead notifier cannot delay the request that triggered it.
// Failures are logged and dropped, never retried.
func (s *OrderService) notify(event string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.Log.Warn().Err(err).Str("event", event).Msg("notification failed")
		}
	}()
}
