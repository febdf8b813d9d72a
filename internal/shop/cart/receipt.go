package cart

import (
	"fmt"
	"iter"
	"strings"

	"github.com/m3rciful/doorshop/core/telegram/gateway"
	"github.com/m3rciful/doorshop/internal/shop/media"
	"github.com/m3rciful/doorshop/internal/shop/model"
)

// Receipt is the cart as loaded by View.
type Receipt struct {
	Lines []model.CartLine
	// Media holds the first media of each product, when any.
	Media map[int64]model.Media
}

// Empty reports whether the cart has no lines.
func (r Receipt) Empty() bool { return len(r.Lines) == 0 }

// Total is the grand total of all lines.
func (r Receipt) Total() int64 {
	var sum int64
	for _, l := range r.Lines {
		sum += l.Total()
	}
	return sum
}

// Card is one message of the cart view.
type Card struct {
	// LineID is the cart line the card removes; zero on the summary.
	LineID  int64
	Summary bool
	Text    string
	Media   *gateway.Media
}

// Cards yields one card per line followed by the summary card.
func (r Receipt) Cards() iter.Seq[Card] {
	return func(yield func(Card) bool) {
		for _, l := range r.Lines {
			c := Card{LineID: l.ID, Text: lineText(l)}
			if m, ok := r.Media[l.ProductID]; ok {
				ref := media.Ref(m)
				c.Media = &ref
			}
			if !yield(c) {
				return
			}
		}
		yield(Card{
			Summary: true,
			Text:    fmt.Sprintf("💰 Общая сумма заказа: %d руб.\n\n📦 Товаров в корзине: %d", r.Total(), len(r.Lines)),
		})
	}
}

func lineText(l model.CartLine) string {
	return fmt.Sprintf("🚪 %s\n💰 Цена: %d руб. x %d = %d руб.\n📝 %s",
		l.Name, l.Price, l.Quantity, l.Total(), l.Description)
}

// Item is a cart line frozen at checkout.
type Item struct {
	CartItemID  int64
	ProductID   int64
	Name        string
	Description string
	Price       int64
	Quantity    int
	Total       int64
}

// Snapshot is the immutable cart payload carried by the checkout dialog.
type Snapshot struct {
	Items []Item
	Total int64
}

// NewSnapshot freezes cart lines.
func NewSnapshot(lines []model.CartLine) Snapshot {
	s := Snapshot{Items: make([]Item, 0, len(lines))}
	for _, l := range lines {
		it := Item{
			CartItemID:  l.ID,
			ProductID:   l.ProductID,
			Name:        l.Name,
			Description: l.Description,
			Price:       l.Price,
			Quantity:    l.Quantity,
			Total:       l.Total(),
		}
		s.Items = append(s.Items, it)
		s.Total += it.Total
	}
	return s
}

// ProductIDs lists the distinct products in order of appearance.
func (s Snapshot) ProductIDs() []int64 {
	seen := make(map[int64]bool, len(s.Items))
	var ids []int64
	for _, it := range s.Items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}
	return ids
}

// Confirmation is the text the customer sees after ordering.
func Confirmation(order model.Order) string {
	return fmt.Sprintf("✅ Ваш заказ #%d принят!\n\n💰 Сумма заказа: %d руб.\n📞 Мы свяжемся с вами по номеру: %s\n\nСпасибо за покупку! 🚪",
		order.ID, order.TotalAmount, order.Phone)
}

func orderSummary(order model.Order, customer model.Customer, phone string, snap Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📦 Новый заказ #%d\n\n", order.ID)
	fmt.Fprintf(&b, "👤 Пользователь: %s (ID: %d)\n", customer.Name, customer.UserID)
	fmt.Fprintf(&b, "📞 Телефон: %s\n", phone)
	fmt.Fprintf(&b, "💰 Общая сумма: %d руб.\n\n", order.TotalAmount)
	b.WriteString("🛒 Состав заказа:\n")
	for _, it := range snap.Items {
		fmt.Fprintf(&b, "• %s - %d руб. x %d\n", it.Name, it.Price, it.Quantity)
	}
	return b.String()
}

func itemCaption(it Item, customer model.Customer, phone string) string {
	return fmt.Sprintf("🚪 %s\n💰 %d руб. x %d = %d руб.\n📞 Телефон заказчика: %s\n👤 Имя: %s",
		it.Name, it.Price, it.Quantity, it.Total, phone, customer.Name)
}
