package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/twelve20/pir-planet-new/internal/apperr"
	"github.com/twelve20/pir-planet-new/internal/model"
)

var errNotifierDown = errors.New("notifier down")

// memStore is an in-memory OrderStore with the same semantics as the
// pgx repository: counter increments are atomic, every item mutation
// ends by recomputing the totals, history is returned newest first.
type memStore struct {
	mu            sync.Mutex
	counter       int64
	nextItemID    int64
	nextHistoryID int64
	orders        map[string]*model.Order
}

func newMemStore() *memStore {
	return &memStore{
		counter: 1000,
		orders:  map[string]*model.Order{},
	}
}

func copyOrder(o *model.Order) *model.Order {
	cp := *o
	cp.Items = append([]model.OrderItem(nil), o.Items...)
	// history newest first, like the repository query
	cp.History = make([]model.StatusHistoryEntry, 0, len(o.History))
	for i := len(o.History) - 1; i >= 0; i-- {
		cp.History = append(cp.History, o.History[i])
	}
	return &cp
}

func (m *memStore) addHistory(o *model.Order, status string, comment *string) {
	m.nextHistoryID++
	o.History = append(o.History, model.StatusHistoryEntry{
		ID:        m.nextHistoryID,
		OrderID:   o.ID,
		Status:    status,
		Comment:   comment,
		CreatedAt: time.Now(),
	})
}

func (m *memStore) recalcTotals(o *model.Order) {
	var subtotal float64
	for _, it := range o.Items {
		subtotal += it.TotalPrice
	}
	o.Subtotal = subtotal
	o.Total = subtotal + o.DeliveryCost
	o.UpdatedAt = time.Now()
}

func (m *memStore) Create(_ context.Context, o *model.Order, initialComment string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counter++
	o.OrderNumber = m.counter
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	for i := range o.Items {
		m.nextItemID++
		o.Items[i].ID = m.nextItemID
		o.Items[i].OrderID = o.ID
	}

	stored := copyOrder(o)
	stored.History = nil
	stored.Items = append([]model.OrderItem(nil), o.Items...)
	m.addHistory(stored, o.Status, &initialComment)
	m.orders[o.ID] = stored
	return nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return copyOrder(o), nil
}

func (m *memStore) GetByNumber(_ context.Context, number int64) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.OrderNumber == number {
			return copyOrder(o), nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (m *memStore) List(_ context.Context, limit, offset int) ([]model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]*model.Order, 0, len(m.orders))
	for _, o := range m.orders {
		all = append(all, o)
	}
	// newest first == highest order number first
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			if all[j].OrderNumber > all[i].OrderNumber {
				all[i], all[j] = all[j], all[i]
			}
		}
	}

	var out []model.Order
	for i := offset; i < len(all) && len(out) < limit; i++ {
		cp := copyOrder(all[i])
		cp.Items = nil
		cp.History = nil
		out = append(out, *cp)
	}
	return out, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id, status string, comment *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return apperr.ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	m.addHistory(o, status, comment)
	return nil
}

func (m *memStore) UpdateDeliveryCost(_ context.Context, id string, cost float64, comment *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return apperr.ErrNotFound
	}
	o.DeliveryCost = cost
	o.Total = o.Subtotal + cost
	o.UpdatedAt = time.Now()
	if comment != nil {
		m.addHistory(o, o.Status, comment)
	}
	return nil
}

func (m *memStore) SetManagerComment(_ context.Context, id, comment string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return apperr.ErrNotFound
	}
	o.ManagerComment = &comment
	o.UpdatedAt = time.Now()
	return nil
}

func (m *memStore) ReplaceItems(_ context.Context, orderID string, items []model.OrderItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return apperr.ErrNotFound
	}
	o.Items = nil
	for _, it := range items {
		m.nextItemID++
		it.ID = m.nextItemID
		it.OrderID = orderID
		o.Items = append(o.Items, it)
	}
	m.recalcTotals(o)
	return nil
}

func (m *memStore) AddItem(_ context.Context, orderID string, item model.OrderItem) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return 0, apperr.ErrNotFound
	}
	m.nextItemID++
	item.ID = m.nextItemID
	item.OrderID = orderID
	o.Items = append(o.Items, item)
	m.recalcTotals(o)
	return item.ID, nil
}

func (m *memStore) UpdateItem(_ context.Context, orderID string, itemID int64, item model.OrderItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return apperr.ErrNotFound
	}
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			item.ID = itemID
			item.OrderID = orderID
			o.Items[i] = item
			m.recalcTotals(o)
			return nil
		}
	}
	return apperr.ErrNotFound
}

func (m *memStore) DeleteItem(_ context.Context, orderID string, itemID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return apperr.ErrNotFound
	}
	if len(o.Items) <= 1 {
		return apperr.Validation("cannot delete the last item of an order")
	}
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			o.Items = append(o.Items[:i], o.Items[i+1:]...)
			m.recalcTotals(o)
			return nil
		}
	}
	return apperr.ErrNotFound
}

func (m *memStore) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return false, nil
	}
	delete(m.orders, id)
	return true, nil
}

func (m *memStore) Stats(_ context.Context) (*model.OrderStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &model.OrderStats{ByStatus: map[string]int{}}
	for _, o := range m.orders {
		stats.Total++
		stats.ByStatus[o.Status]++
	}
	return stats, nil
}

// spyNotifier records notifications on a channel so tests can wait for
// the async dispatch.
type spyNotifier struct {
	events chan string
	fail   bool
}

func newSpyNotifier() *spyNotifier {
	return &spyNotifier{events: make(chan string, 16)}
}

func (s *spyNotifier) OrderCreated(context.Context, *model.Order) error {
	if s.fail {
		return errNotifierDown
	}
	s.events <- "order_created"
	return nil
}

func (s *spyNotifier) StatusChanged(_ context.Context, _ *model.Order, newStatus string, _ *string) error {
	if s.fail {
		return errNotifierDown
	}
	s.events <- "status_changed:" + newStatus
	return nil
}

func (s *spyNotifier) LeadSubmitted(context.Context, model.Lead) error {
	if s.fail {
		return errNotifierDown
	}
	s.events <- "lead_submitted"
	return nil
}

func (s *spyNotifier) wait(event string, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		select {
		case got := <-s.events:
			if got == event {
				return true
			}
		case <-deadline:
			return false
		}
	}
}
