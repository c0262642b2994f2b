package services

import (
	"context"
	"fmt"
	"os"

	mt "github.com/twelve20/pir-planet-new/external/midtrans"
	"github.com/twelve20/pir-planet-new/internal/apperr"
	"github.com/twelve20/pir-planet-new/internal/model"

	"github.com/google/uuid"
	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
)

// PaymentService initiates online payments through Midtrans Snap. The
// order aggregate stays the source of truth: a settled payment simply
// moves the order to "paid" through the regular status update path.
type PaymentService struct {
	Orders *OrderService
	Snap   *snap.Client
}

func NewPaymentService(orders *OrderService, snapClient *snap.Client) *PaymentService {
	return &PaymentService{Orders: orders, Snap: snapClient}
}

// CreateSnapPayment creates a Snap transaction for the order total and
// returns the redirect URL. Token-gated: the customer proves ownership
// of the order with its access token.
func (s *PaymentService) CreateSnapPayment(ctx context.Context, orderID, accessToken string) (string, error) {
	order, err := s.Orders.GetByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	if err := s.Orders.VerifyAccess(order, accessToken); err != nil {
		return "", err
	}

	if order.Total <= 0 {
		return "", apperr.Validation("order total must be positive")
	}
	switch order.Status {
	case model.StatusPaid, model.StatusCompleted, model.StatusCancelled:
		return "", apperr.Validation("order cannot be paid in status " + order.Status)
	}

	// External reference carries the human-readable order number; the
	// webhook maps it back via GetByNumber.
	externalRef := fmt.Sprintf("ORDER-%d-%s", order.OrderNumber, uuid.NewString())

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  externalRef,
			GrossAmt: int64(order.Total),
		},
	}

	resp, snapErr := s.Snap.CreateTransaction(req)
	if snapErr != nil {
		return "", snapErr
	}
	return resp.RedirectURL, nil
}

// HandleNotification processes the Midtrans webhook. Signature is
// verified before anything is trusted; a settled transaction marks the
// order paid through UpdateStatus so history and notifications behave
// like any other status change.
func (s *PaymentService) HandleNotification(ctx context.Context, payload map[string]interface{}) error {
	orderRef, ok := payload["order_id"].(string)
	if !ok {
		return apperr.Validation("missing order_id")
	}

	var orderNumber int64
	if _, err := fmt.Sscanf(orderRef, "ORDER-%d-", &orderNumber); err != nil {
		return apperr.Validation("invalid order reference")
	}

	statusCode, _ := payload["status_code"].(string)
	grossAmount, _ := payload["gross_amount"].(string)
	signature, _ := payload["signature_key"].(string)

	if !mt.VerifySignature(orderRef, statusCode, grossAmount, signature, os.Getenv("MIDTRANS_SERVER_KEY")) {
		return apperr.ErrForbidden
	}

	order, err := s.Orders.Store.GetByNumber(ctx, orderNumber)
	if err != nil {
		return err
	}
	if order.Status == model.StatusPaid {
		// already processed, safely ignore
		return nil
	}

	transactionStatus, _ := payload["transaction_status"].(string)
	fraudStatus, _ := payload["fraud_status"].(string)

	switch transactionStatus {
	case "settlement":
		return s.markPaid(ctx, order)
	case "capture":
		if fraudStatus == "accept" {
			return s.markPaid(ctx, order)
		}
	}
	// pending, expire, cancel, deny: leave the order as-is, an
	// administrator decides what happens next.
	return nil
}

func (s *PaymentService) markPaid(ctx context.Context, order *model.Order) error {
	comment := "Оплата получена (Midtrans)"
	return s.Orders.UpdateStatus(ctx, order.ID, model.StatusPaid, &comment)
}
