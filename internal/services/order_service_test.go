package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/twelve20/pir-planet-new/internal/apperr"
	"github.com/twelve20/pir-planet-new/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() (*OrderService, *memStore, *spyNotifier) {
	store := newMemStore()
	notifier := newSpyNotifier()
	svc := NewOrderService(store, notifier, zerolog.Nop())
	return svc, store, notifier
}

func sampleOrder() model.NewOrder {
	return model.NewOrder{
		CustomerName:  "Иван Петров",
		CustomerPhone: "+7 (900) 123-45-67",
		DeliveryType:  "courier",
		Items: []model.ItemInput{
			{Name: "A", Quantity: 2, Price: 100},
			{Name: "B", Quantity: 1, Price: 50},
		},
	}
}

func TestCreateOrder(t *testing.T) {
	svc, _, notifier := newTestService()

	result, err := svc.Create(context.Background(), sampleOrder())
	require.NoError(t, err)

	assert.NotEmpty(t, result.OrderID)
	assert.Equal(t, int64(1001), result.OrderNumber, "first order against a fresh counter")
	assert.Len(t, result.AccessToken, 64, "32 random bytes in hex")

	o, err := svc.GetByID(context.Background(), result.OrderID)
	require.NoError(t, err)

	assert.Equal(t, model.StatusNew, o.Status)
	assert.Equal(t, model.CustomerIndividual, o.CustomerType, "defaulted")
	assert.Equal(t, 250.0, o.Subtotal)
	assert.Equal(t, 0.0, o.DeliveryCost)
	assert.Equal(t, 250.0, o.Total)

	require.Len(t, o.Items, 2)
	assert.Equal(t, "A", o.Items[0].ProductName)
	assert.Equal(t, 200.0, o.Items[0].TotalPrice)

	require.Len(t, o.History, 1)
	assert.Equal(t, model.StatusNew, o.History[0].Status)

	assert.True(t, notifier.wait("order_created", time.Second))
}

func TestCreateOrderValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*model.NewOrder)
	}{
		{"empty items", func(in *model.NewOrder) { in.Items = nil }},
		{"zero quantity", func(in *model.NewOrder) { in.Items[0].Quantity = 0 }},
		{"negative quantity", func(in *model.NewOrder) { in.Items[0].Quantity = -1 }},
		{"negative price", func(in *model.NewOrder) { in.Items[0].Price = -5 }},
		{"missing name", func(in *model.NewOrder) { in.CustomerName = "  " }},
		{"missing phone", func(in *model.NewOrder) { in.CustomerPhone = "" }},
		{"missing delivery type", func(in *model.NewOrder) { in.DeliveryType = "" }},
		{"unknown customer type", func(in *model.NewOrder) { in.CustomerType = "alien" }},
		{"item without name", func(in *model.NewOrder) { in.Items[0].Name = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, _ := newTestService()
			in := sampleOrder()
			tc.mutate(&in)

			_, err := svc.Create(context.Background(), in)
			assert.True(t, apperr.IsValidation(err), "expected validation error, got %v", err)

			// nothing persisted
			orders, err := svc.List(context.Background(), 100, 0)
			require.NoError(t, err)
			assert.Empty(t, orders)
		})
	}
}

func TestOrderNumbersAreUniqueUnderConcurrency(t *testing.T) {
	svc, _, _ := newTestService()

	const n = 50
	numbers := make(chan int64, n)
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.Create(context.Background(), sampleOrder())
			if err != nil {
				errs <- err
				return
			}
			numbers <- result.OrderNumber
		}()
	}
	wg.Wait()
	close(numbers)
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	seen := map[int64]bool{}
	for num := range numbers {
		assert.False(t, seen[num], "order number %d handed out twice", num)
		assert.Greater(t, num, int64(1000))
		seen[num] = true
	}
	assert.Len(t, seen, n)
}

// Worked example: 2xA@100 + 1xB@50, delivery 30, then drop A.
func TestTotalsFollowItemMutations(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	result, err := svc.Create(ctx, sampleOrder())
	require.NoError(t, err)
	id := result.OrderID

	require.NoError(t, svc.UpdateDeliveryCost(ctx, id, 30, nil))
	o, err := svc.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 250.0, o.Subtotal)
	assert.Equal(t, 280.0, o.Total)

	require.NoError(t, svc.DeleteItem(ctx, id, o.Items[0].ID))
	o, err = svc.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 50.0, o.Subtotal)
	assert.Equal(t, 80.0, o.Total)

	itemID, err := svc.AddItem(ctx, id, model.ItemInput{Name: "C", Quantity: 3, Price: 10})
	require.NoError(t, err)
	o, _ = svc.GetByID(ctx, id)
	assert.Equal(t, 80.0, o.Subtotal)
	assert.Equal(t, 110.0, o.Total)

	require.NoError(t, svc.UpdateItem(ctx, id, itemID, model.ItemInput{Name: "C", Quantity: 1, Price: 10}))
	o, _ = svc.GetByID(ctx, id)
	assert.Equal(t, 60.0, o.Subtotal)
	assert.Equal(t, 90.0, o.Total)

	require.NoError(t, svc.ReplaceItems(ctx, id, []model.ItemInput{{Name: "D", Quantity: 1, Price: 500}}))
	o, _ = svc.GetByID(ctx, id)
	assert.Equal(t, 500.0, o.Subtotal)
	assert.Equal(t, 530.0, o.Total)
}

func TestDeleteLastItemRefused(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	in := sampleOrder()
	in.Items = in.Items[:1]
	result, err := svc.Create(ctx, in)
	require.NoError(t, err)

	before, err := svc.GetByID(ctx, result.OrderID)
	require.NoError(t, err)
	require.Len(t, before.Items, 1)

	err = svc.DeleteItem(ctx, result.OrderID, before.Items[0].ID)
	assert.True(t, apperr.IsValidation(err))

	after, err := svc.GetByID(ctx, result.OrderID)
	require.NoError(t, err)
	assert.Len(t, after.Items, 1)
	assert.Equal(t, before.Subtotal, after.Subtotal)
	assert.Equal(t, before.Total, after.Total)
}

func TestVerifyAccess(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	result, err := svc.Create(ctx, sampleOrder())
	require.NoError(t, err)

	o, err := svc.GetByID(ctx, result.OrderID)
	require.NoError(t, err)

	assert.NoError(t, svc.VerifyAccess(o, result.AccessToken))
	assert.ErrorIs(t, svc.VerifyAccess(o, "wrong-token"), apperr.ErrForbidden)
	assert.ErrorIs(t, svc.VerifyAccess(o, ""), apperr.ErrForbidden)

	// the token never appears in the serialized order
	payload, err := json.Marshal(o)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), result.AccessToken)
	assert.NotContains(t, string(payload), "access_token")
}

func TestUpdateStatus(t *testing.T) {
	svc, _, notifier := newTestService()
	ctx := context.Background()

	result, err := svc.Create(ctx, sampleOrder())
	require.NoError(t, err)

	err = svc.UpdateStatus(ctx, result.OrderID, "teleported", nil)
	assert.True(t, apperr.IsValidation(err))

	assert.ErrorIs(t, svc.UpdateStatus(ctx, "nope", model.StatusConfirmed, nil), apperr.ErrNotFound)

	comment := "Подтвержден менеджером"
	require.NoError(t, svc.UpdateStatus(ctx, result.OrderID, model.StatusConfirmed, &comment))

	o, err := svc.GetByID(ctx, result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, o.Status)
	require.Len(t, o.History, 2, "exactly one new history row")
	assert.Equal(t, model.StatusConfirmed, o.History[0].Status, "newest first")
	require.NotNil(t, o.History[0].Comment)
	assert.Equal(t, comment, *o.History[0].Comment)

	assert.True(t, notifier.wait("status_changed:"+model.StatusConfirmed, time.Second))
}

func TestUpdateDeliveryCost(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	result, err := svc.Create(ctx, sampleOrder())
	require.NoError(t, err)

	err = svc.UpdateDeliveryCost(ctx, result.OrderID, -1, nil)
	assert.True(t, apperr.IsValidation(err))

	assert.ErrorIs(t, svc.UpdateDeliveryCost(ctx, "nope", 30, nil), apperr.ErrNotFound)

	// without a comment: no history row
	require.NoError(t, svc.UpdateDeliveryCost(ctx, result.OrderID, 30, nil))
	o, _ := svc.GetByID(ctx, result.OrderID)
	assert.Len(t, o.History, 1)

	// with a comment: one row repeating the unchanged current status
	comment := "Доставка по тарифу ТК"
	require.NoError(t, svc.UpdateDeliveryCost(ctx, result.OrderID, 45, &comment))
	o, _ = svc.GetByID(ctx, result.OrderID)
	require.Len(t, o.History, 2)
	assert.Equal(t, model.StatusNew, o.History[0].Status)
	assert.Equal(t, 295.0, o.Total)
}

func TestSetManagerComment(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	result, err := svc.Create(ctx, sampleOrder())
	require.NoError(t, err)

	require.NoError(t, svc.SetManagerComment(ctx, result.OrderID, "позвонить после 18:00"))

	o, err := svc.GetByID(ctx, result.OrderID)
	require.NoError(t, err)
	require.NotNil(t, o.ManagerComment)
	assert.Equal(t, "позвонить после 18:00", *o.ManagerComment)
	assert.Len(t, o.History, 1, "manager comment leaves history alone")
}

func TestReplaceItemsRejectsEmptySet(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	result, err := svc.Create(ctx, sampleOrder())
	require.NoError(t, err)

	err = svc.ReplaceItems(ctx, result.OrderID, nil)
	assert.True(t, apperr.IsValidation(err))
}

func TestDeleteOrderIdempotent(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	result, err := svc.Create(ctx, sampleOrder())
	require.NoError(t, err)

	deleted, err := svc.Delete(ctx, result.OrderID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = svc.GetByID(ctx, result.OrderID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	deleted, err = svc.Delete(ctx, result.OrderID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestListAndStats(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, sampleOrder())
		require.NoError(t, err)
	}
	orders, err := svc.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, int64(1003), orders[0].OrderNumber, "newest first")
	assert.Empty(t, orders[0].Items, "summary view")

	require.NoError(t, svc.UpdateStatus(ctx, orders[1].ID, model.StatusCancelled, nil))

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByStatus[model.StatusNew])
	assert.Equal(t, 1, stats.ByStatus[model.StatusCancelled])
}

func TestNotifierFailureDoesNotAffectWrites(t *testing.T) {
	svc, _, notifier := newTestService()
	notifier.fail = true
	ctx := context.Background()

	result, err := svc.Create(ctx, sampleOrder())
	require.NoError(t, err, "a dead notifier never fails the order")

	require.NoError(t, svc.UpdateStatus(ctx, result.OrderID, model.StatusProcessing, nil))

	o, err := svc.GetByID(ctx, result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, o.Status)
}

func TestItemAliasNormalization(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	in := sampleOrder()
	in.Items = []model.ItemInput{
		{ProductName: "PIR panel 50mm", ProductSKU: "PIR-50", Quantity: 4, UnitPrice: 1200},
		{Name: "Glue", SKU: "GL-1", Image: "glue.webp", Quantity: 1, Price: 350},
	}
	result, err := svc.Create(ctx, in)
	require.NoError(t, err)

	o, err := svc.GetByID(ctx, result.OrderID)
	require.NoError(t, err)
	require.Len(t, o.Items, 2)
	assert.Equal(t, "PIR panel 50mm", o.Items[0].ProductName)
	require.NotNil(t, o.Items[0].ProductSKU)
	assert.Equal(t, "PIR-50", *o.Items[0].ProductSKU)
	assert.Equal(t, "Glue", o.Items[1].ProductName)
	assert.Equal(t, 350.0, o.Items[1].UnitPrice)
	require.NotNil(t, o.Items[1].ProductImage)
	assert.Equal(t, "glue.webp", *o.Items[1].ProductImage)
	assert.Equal(t, 4*1200.0+350.0, o.Subtotal)
}

func TestAccessTokensDiffer(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	a, err := svc.Create(ctx, sampleOrder())
	require.NoError(t, err)
	b, err := svc.Create(ctx, sampleOrder())
	require.NoError(t, err)

	assert.NotEqual(t, a.AccessToken, b.AccessToken)
	assert.Equal(t, strings.ToLower(a.AccessToken), a.AccessToken, "hex encoded")
}
