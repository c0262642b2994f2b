package services

import (
	"context"

	"github.com/twelve20/pir-planet-new/internal/model"
)

// Notifier forwards human-readable event summaries to the manager chat.
// Delivery is best effort: callers log failures and move on, a dead
// notifier never blocks or rolls back an order write.
type Notifier interface {
	OrderCreated(ctx context.Context, order *model.Order) error
	StatusChanged(ctx context.Context, order *model.Order, newStatus string, comment *string) error
	LeadSubmitted(ctx context.Context, lead model.Lead) error
}

// NoopNotifier is used when Telegram is not configured.
type NoopNotifier struct{}

func (NoopNotifier) OrderCreated(context.Context, *model.Order) error { return nil }

func (NoopNotifier) StatusChanged(context.Context, *model.Order, string, *string) error {
	return nil
}

func (NoopNotifier) LeadSubmitted(context.Context, model.Lead) error { return nil }
