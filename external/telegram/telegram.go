package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/twelve20/pir-planet-new/internal/model"
)

// Notifier sends order and lead summaries to the manager chat through
// the Telegram Bot API.
type Notifier struct {
	token   string
	chatID  string
	client  *http.Client
	baseURL string
}

func NewNotifier(token, chatID string) (*Notifier, error) {
	if token == "" || chatID == "" {
		return nil, errors.New("telegram token and chat id are required")
	}
	return &Notifier{
		token:  token,
		chatID: chatID,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		baseURL: "https://api.telegram.org",
	}, nil
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func (n *Notifier) send(ctx context.Context, text string) error {
	body := sendMessageRequest{
		ChatID:    n.chatID,
		Text:      text,
		ParseMode: "HTML",
	}

	b, _ := json.Marshal(body)

	req, _ := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		n.baseURL+"/bot"+n.token+"/sendMessage",
		bytes.NewBuffer(b),
	)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		return errors.New("telegram send failed: " + buf.String())
	}
	return nil
}

var statusLabels = map[string]string{
	model.StatusNew:          "Новый",
	model.StatusProcessing:   "В обработке",
	model.StatusConfirmed:    "Подтвержден",
	model.StatusPaid:         "Оплачен",
	model.StatusDeliveryPaid: "Доставка оплачена",
	model.StatusShipping:     "В доставке",
	model.StatusCompleted:    "Выполнен",
	model.StatusCancelled:    "Отменен",
}

func statusLabel(status string) string {
	if l, ok := statusLabels[status]; ok {
		return l
	}
	return status
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// OrderCreated posts a human-readable summary of a fresh order.
func (n *Notifier) OrderCreated(ctx context.Context, o *model.Order) error {
	var b strings.Builder
	fmt.Fprintf(&b, "🛒 <b>Новый заказ №%d</b>\n\n", o.OrderNumber)
	fmt.Fprintf(&b, "👤 <b>Имя:</b> %s\n", o.CustomerName)
	fmt.Fprintf(&b, "📞 <b>Телефон:</b> %s\n", o.CustomerPhone)
	fmt.Fprintf(&b, "🚚 <b>Доставка:</b> %s\n\n", o.DeliveryType)
	for _, it := range o.Items {
		fmt.Fprintf(&b, "• %s × %d — %s ₽\n", it.ProductName, it.Quantity, formatPrice(it.TotalPrice))
	}
	fmt.Fprintf(&b, "\n💰 <b>Итого:</b> %s ₽", formatPrice(o.Total))

	return n.send(ctx, b.String())
}

// StatusChanged posts the status transition with the optional comment.
func (n *Notifier) StatusChanged(ctx context.Context, o *model.Order, newStatus string, comment *string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "📦 <b>Заказ №%d</b>\n\n", o.OrderNumber)
	fmt.Fprintf(&b, "Новый статус: <b>%s</b>\n", statusLabel(newStatus))
	if comment != nil && *comment != "" {
		fmt.Fprintf(&b, "💬 %s\n", *comment)
	}
	return n.send(ctx, b.String())
}

// LeadSubmitted posts a contact-form submission.
func (n *Notifier) LeadSubmitted(ctx context.Context, lead model.Lead) error {
	var b strings.Builder
	b.WriteString("🔔 <b>Новая заявка с сайта Планета ПИР</b>\n\n")
	fmt.Fprintf(&b, "👤 <b>Имя:</b> %s\n", lead.Name)
	fmt.Fprintf(&b, "📞 <b>Телефон:</b> %s\n", lead.Phone)
	if lead.Comment != "" {
		fmt.Fprintf(&b, "💬 <b>Комментарий:</b> %s\n", lead.Comment)
	}
	fmt.Fprintf(&b, "\n📅 <b>Дата:</b> %s", moscowNow().Format("02.01.2006 15:04"))

	return n.send(ctx, b.String())
}

var moscow = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		return time.FixedZone("MSK", 3*60*60)
	}
	return loc
}()

func moscowNow() time.Time {
	return time.Now().In(moscow)
}
