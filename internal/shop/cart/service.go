// Package cart implements the shopping cart and the checkout transaction.
package cart

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/doorshop/core/logger"
	"github.com/m3rciful/doorshop/core/telegram/gateway"
	"github.com/m3rciful/doorshop/core/telegram/sender"
	"github.com/m3rciful/doorshop/internal/shop/media"
	"github.com/m3rciful/doorshop/internal/shop/model"

	tele "gopkg.in/telebot.v4"
)

// Store is the persistence the cart needs.
type Store interface {
	AddToCart(ctx context.Context, userID, productID int64, qty int) (model.CartLine, error)
	CartLines(ctx context.Context, userID int64) ([]model.CartLine, error)
	RemoveCartLine(ctx context.Context, userID, lineID int64) (string, error)
	ClearCart(ctx context.Context, userID int64) (int64, error)
	PlaceOrder(ctx context.Context, customer model.Customer, phone string, items []model.OrderItem) (model.Order, error)
	FirstMedia(ctx context.Context, productIDs []int64) (map[int64]model.Media, error)
}

// Notifier sends the administrator notifications.
type Notifier interface {
	SendText(ctx context.Context, chatID int64, text string, kb *tele.ReplyMarkup) (int, error)
	SendMedia(ctx context.Context, chatID int64, m gateway.Media, caption string, kb *tele.ReplyMarkup) (int, error)
}

// Queue runs jobs in the background. sender.Dispatcher satisfies it.
type Queue interface {
	Enqueue(ctx context.Context, job sender.Job) error
}

// Options configures a Service.
type Options struct {
	Store    Store
	Notifier Notifier
	// Queue is optional; without it notifications are sent inline.
	Queue    Queue
	AdminIDs []int64
}

// Service applies cart and order mutations.
type Service struct {
	store  Store
	notify Notifier
	queue  Queue
	admins []int64
}

// New constructs a Service.
func New(opts Options) *Service {
	return &Service{
		store:  opts.Store,
		notify: opts.Notifier,
		queue:  opts.Queue,
		admins: append([]int64(nil), opts.AdminIDs...),
	}
}

// Add puts qty items of a product into the user's cart, incrementing an
// existing line. qty must be within 1..model.MaxQuantity.
func (s *Service) Add(ctx context.Context, userID, productID int64, qty int) (model.CartLine, error) {
	if qty <= 0 || qty > model.MaxQuantity {
		return model.CartLine{}, fmt.Errorf("%w: %d", model.ErrInvalidQuantity, qty)
	}
	start := time.Now()
	line, err := s.store.AddToCart(ctx, userID, productID, qty)
	logger.Info(ctx, logger.CompCart, "cart.add",
		slog.String("status", logger.Status(err)),
		slog.Int64("product_id", productID),
		slog.Int("qty", qty),
		slog.Int("line_qty", line.Quantity),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
		logger.Err(err),
	)
	if err != nil {
		return model.CartLine{}, fmt.Errorf("add to cart: %w", err)
	}
	return line, nil
}

// View loads the user's cart. Every call reads fresh state.
func (s *Service) View(ctx context.Context, userID int64) (Receipt, error) {
	lines, err := s.store.CartLines(ctx, userID)
	if err != nil {
		return Receipt{}, fmt.Errorf("view cart: %w", err)
	}
	r := Receipt{Lines: lines}
	if len(lines) == 0 {
		return r, nil
	}
	r.Media, err = s.store.FirstMedia(ctx, productIDs(lines))
	if err != nil {
		logger.Warn(ctx, logger.CompCart, "cart.media", logger.Err(err))
		r.Media = nil
	}
	return r, nil
}

// Remove deletes one of the user's cart lines and returns the product name.
func (s *Service) Remove(ctx context.Context, userID, lineID int64) (string, error) {
	name, err := s.store.RemoveCartLine(ctx, userID, lineID)
	logger.Info(ctx, logger.CompCart, "cart.remove",
		slog.String("status", logger.Status(err)),
		slog.Int64("line_id", lineID),
		logger.Err(err),
	)
	if err != nil {
		return "", fmt.Errorf("remove cart line: %w", err)
	}
	return name, nil
}

// Clear empties the user's cart.
func (s *Service) Clear(ctx context.Context, userID int64) (int64, error) {
	n, err := s.store.ClearCart(ctx, userID)
	logger.Info(ctx, logger.CompCart, "cart.clear",
		slog.String("status", logger.Status(err)),
		slog.Int64("lines", n),
		logger.Err(err),
	)
	if err != nil {
		return 0, fmt.Errorf("clear cart: %w", err)
	}
	return n, nil
}

// Checkout snapshots the cart for the phone step.
func (s *Service) Checkout(ctx context.Context, userID int64) (Snapshot, error) {
	lines, err := s.store.CartLines(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("checkout: %w", err)
	}
	if len(lines) == 0 {
		return Snapshot{}, model.ErrEmptyCart
	}
	return NewSnapshot(lines), nil
}

// Finalize turns a snapshot into an order and clears the cart in one
// transaction, then notifies the administrators in the background.
func (s *Service) Finalize(ctx context.Context, customer model.Customer, phone string, snap Snapshot) (model.Order, error) {
	if len(snap.Items) == 0 {
		return model.Order{}, model.ErrEmptyCart
	}
	items := make([]model.OrderItem, len(snap.Items))
	for i, it := range snap.Items {
		pid := it.ProductID
		items[i] = model.OrderItem{
			ProductID:    &pid,
			ProductName:  it.Name,
			ProductPrice: it.Price,
			Quantity:     it.Quantity,
		}
	}

	start := time.Now()
	order, err := s.store.PlaceOrder(ctx, customer, phone, items)
	logger.Info(ctx, logger.CompOrders, "order.place",
		slog.String("status", logger.Status(err)),
		slog.Int64("order_id", order.ID),
		slog.Int("items", len(items)),
		slog.Int64("total", order.TotalAmount),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
		logger.Err(err),
	)
	if err != nil {
		return model.Order{}, fmt.Errorf("place order: %w", err)
	}

	s.notifyAdmins(ctx, order, customer, phone, snap)
	return order, nil
}

func (s *Service) notifyAdmins(ctx context.Context, order model.Order, customer model.Customer, phone string, snap Snapshot) {
	if len(s.admins) == 0 || s.notify == nil {
		return
	}
	summary := orderSummary(order, customer, phone, snap)
	for _, admin := range s.admins {
		s.run(ctx, "order.notify.summary", "sendMessage", admin, func() error {
			_, err := s.notify.SendText(ctx, admin, summary, nil)
			return err
		})
	}

	first, err := s.store.FirstMedia(ctx, snap.ProductIDs())
	if err != nil {
		logger.Warn(ctx, logger.CompOrders, "order.notify.media", logger.Err(err))
		return
	}
	seen := make(map[int64]bool, len(snap.Items))
	for _, it := range snap.Items {
		m, ok := first[it.ProductID]
		if !ok || seen[it.ProductID] {
			continue
		}
		seen[it.ProductID] = true
		ref := media.Ref(m)
		caption := itemCaption(it, customer, phone)
		for _, admin := range s.admins {
			s.run(ctx, "order.notify.media", "sendMedia", admin, func() error {
				_, err := s.notify.SendMedia(ctx, admin, ref, caption, nil)
				return err
			})
		}
	}
}

// run hands a notification to the queue. It is sent once; failures are
// logged only.
func (s *Service) run(ctx context.Context, action, endpoint string, chatID int64, fn func() error) {
	job := func() error {
		err := fn()
		if err != nil {
			logger.Warn(ctx, logger.CompOrders, action,
				slog.Int64("admin_id", chatID),
				logger.Err(err),
			)
		}
		return err
	}
	if s.queue == nil {
		_ = job()
		return
	}
	err := s.queue.Enqueue(ctx, sender.Job{ChatID: chatID, Action: action, Endpoint: endpoint, Run: job, NoRetry: true})
	if err != nil {
		logger.Warn(ctx, logger.CompOrders, "order.notify.enqueue",
			slog.String("action", action),
			slog.Int64("admin_id", chatID),
			logger.Err(err),
		)
	}
}

func productIDs(lines []model.CartLine) []int64 {
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	return ids
}
