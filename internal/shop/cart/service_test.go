package cart_test

import (
	"context"
	"errors"
	"net"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/doorshop/core/telegram/gateway"
	"github.com/m3rciful/doorshop/core/telegram/gateway/gatewaytest"
	"github.com/m3rciful/doorshop/core/telegram/sender"
	"github.com/m3rciful/doorshop/internal/shop/cart"
	"github.com/m3rciful/doorshop/internal/shop/model"

	tele "gopkg.in/telebot.v4"
)

type memStore struct {
	mu       sync.Mutex
	products map[int64]model.Product
	media    map[int64]model.Media
	lines    []model.CartLine
	orders   []model.OrderWithItems
	nextID   int64
	failOrd  error
}

func newMemStore(products ...model.Product) *memStore {
	s := &memStore{products: map[int64]model.Product{}, media: map[int64]model.Media{}}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *memStore) AddToCart(_ context.Context, userID, productID int64, qty int) (model.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return model.CartLine{}, model.ErrNotFound
	}
	for i := range s.lines {
		if s.lines[i].UserID == userID && s.lines[i].ProductID == productID {
			s.lines[i].Quantity += qty
			return s.lines[i], nil
		}
	}
	s.nextID++
	l := model.CartLine{ID: s.nextID, UserID: userID, ProductID: productID, Quantity: qty, Name: p.Name, Description: p.Description, Price: p.Price}
	s.lines = append(s.lines, l)
	return l, nil
}

func (s *memStore) CartLines(_ context.Context, userID int64) ([]model.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.CartLine
	for _, l := range s.lines {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *memStore) RemoveCartLine(_ context.Context, userID, lineID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.lines {
		if l.ID == lineID && l.UserID == userID {
			s.lines = slices.Delete(s.lines, i, i+1)
			return l.Name, nil
		}
	}
	return "", model.ErrNotFound
}

func (s *memStore) ClearCart(_ context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.lines)
	s.lines = slices.DeleteFunc(s.lines, func(l model.CartLine) bool { return l.UserID == userID })
	return int64(before - len(s.lines)), nil
}

func (s *memStore) PlaceOrder(_ context.Context, c model.Customer, phone string, items []model.OrderItem) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOrd != nil {
		return model.Order{}, s.failOrd
	}
	o := model.Order{ID: int64(len(s.orders) + 1), UserID: c.UserID, UserName: c.Name, Phone: phone, Status: model.OrderPending}
	for _, it := range items {
		o.TotalAmount += it.Total()
	}
	s.orders = append(s.orders, model.OrderWithItems{Order: o, Items: items})
	s.lines = slices.DeleteFunc(s.lines, func(l model.CartLine) bool { return l.UserID == c.UserID })
	return o, nil
}

func (s *memStore) FirstMedia(_ context.Context, ids []int64) (map[int64]model.Media, error) {
	out := map[int64]model.Media{}
	for _, id := range ids {
		if m, ok := s.media[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

type syncQueue struct{ chats []int64 }

func (q *syncQueue) Enqueue(_ context.Context, job sender.Job) error {
	q.chats = append(q.chats, job.ChatID)
	_ = job.Run()
	return nil
}

var (
	oak  = model.Product{ID: 1, Name: "Дуб", Description: "массив", Price: 2000}
	pine = model.Product{ID: 2, Name: "Сосна", Description: "шпон", Price: 350}
)

func TestAddIsAdditive(t *testing.T) {
	store := newMemStore(oak)
	svc := cart.New(cart.Options{Store: store})
	ctx := context.Background()

	_, err := svc.Add(ctx, 10, oak.ID, 2)
	require.NoError(t, err)
	line, err := svc.Add(ctx, 10, oak.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, line.Quantity)

	lines, _ := store.CartLines(ctx, 10)
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)
}

func TestAddRejectsQuantityOutOfRange(t *testing.T) {
	store := newMemStore(oak)
	svc := cart.New(cart.Options{Store: store})

	for _, q := range []int{0, -1, model.MaxQuantity + 1} {
		_, err := svc.Add(context.Background(), 10, oak.ID, q)
		assert.ErrorIs(t, err, model.ErrInvalidQuantity, q)
	}
	assert.Empty(t, store.lines)

	_, err := svc.Add(context.Background(), 10, 99, 1)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestViewCards(t *testing.T) {
	store := newMemStore(oak, pine)
	store.media[oak.ID] = model.Media{ProductID: oak.ID, Kind: model.MediaPhoto, FileID: "p"}
	svc := cart.New(cart.Options{Store: store})
	ctx := context.Background()
	_, _ = svc.Add(ctx, 10, oak.ID, 2)
	_, _ = svc.Add(ctx, 10, pine.ID, 3)

	r, err := svc.View(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2*2000+3*350), r.Total())

	var cards []cart.Card
	for c := range r.Cards() {
		cards = append(cards, c)
	}
	require.Len(t, cards, 3)
	assert.Equal(t, "🚪 Дуб\n💰 Цена: 2000 руб. x 2 = 4000 руб.\n📝 массив", cards[0].Text)
	require.NotNil(t, cards[0].Media)
	assert.Equal(t, gateway.Photo, cards[0].Media.Kind)
	assert.Nil(t, cards[1].Media)
	assert.True(t, cards[2].Summary)
	assert.Zero(t, cards[2].LineID)
	assert.Equal(t, "💰 Общая сумма заказа: 5050 руб.\n\n📦 Товаров в корзине: 2", cards[2].Text)

	n := 0
	for range r.Cards() {
		n++
		break
	}
	assert.Equal(t, 1, n, "iteration stops early")

	empty, err := svc.View(ctx, 11)
	require.NoError(t, err)
	assert.True(t, empty.Empty())
}

func TestRemoveChecksOwner(t *testing.T) {
	store := newMemStore(oak)
	svc := cart.New(cart.Options{Store: store})
	ctx := context.Background()
	line, _ := svc.Add(ctx, 10, oak.ID, 1)

	_, err := svc.Remove(ctx, 11, line.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	name, err := svc.Remove(ctx, 10, line.ID)
	require.NoError(t, err)
	assert.Equal(t, "Дуб", name)
}

func TestCheckoutEmptyCart(t *testing.T) {
	svc := cart.New(cart.Options{Store: newMemStore()})
	_, err := svc.Checkout(context.Background(), 10)
	assert.ErrorIs(t, err, model.ErrEmptyCart)
	_, err = svc.Finalize(context.Background(), model.Customer{UserID: 10}, "+7", cart.Snapshot{})
	assert.ErrorIs(t, err, model.ErrEmptyCart)
}

func TestFinalizePlacesOrderAndNotifiesAdmins(t *testing.T) {
	store := newMemStore(oak, pine)
	store.media[oak.ID] = model.Media{ProductID: oak.ID, Kind: model.MediaVideo, FileID: "v"}
	gw := gatewaytest.New()
	queue := &syncQueue{}
	svc := cart.New(cart.Options{Store: store, Notifier: gw, Queue: queue, AdminIDs: []int64{900, 901}})
	ctx := context.Background()

	_, _ = svc.Add(ctx, 10, oak.ID, 2)
	_, _ = svc.Add(ctx, 10, pine.ID, 3)
	snap, err := svc.Checkout(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(5050), snap.Total)

	customer := model.Customer{UserID: 10, ChatID: 10, Name: "Иван"}
	order, err := svc.Finalize(ctx, customer, "+7 900 000", snap)
	require.NoError(t, err)

	var sum int64
	for _, it := range store.orders[0].Items {
		sum += it.Total()
	}
	assert.Equal(t, order.TotalAmount, sum)
	assert.Equal(t, snap.Total, order.TotalAmount)
	lines, _ := store.CartLines(ctx, 10)
	assert.Empty(t, lines)

	texts := gw.CallsOf(gatewaytest.OpSendText)
	require.Len(t, texts, 2)
	assert.Equal(t, int64(900), texts[0].ChatID)
	assert.Contains(t, texts[0].Text, "📦 Новый заказ #1")
	assert.Contains(t, texts[0].Text, "• Сосна - 350 руб. x 3")

	medias := gw.CallsOf(gatewaytest.OpSendMedia)
	require.Len(t, medias, 2, "one media per product that has one, per admin")
	assert.Equal(t, gateway.Video, medias[0].Media[0].Kind)
	assert.Contains(t, medias[0].Text, "📞 Телефон заказчика: +7 900 000")
	assert.Equal(t, []int64{900, 901, 900, 901}, queue.chats, "each job is pinned to its admin chat")

	assert.Contains(t, cart.Confirmation(order), "✅ Ваш заказ #1 принят!")
}

func TestFinalizeSurvivesNotificationFailure(t *testing.T) {
	store := newMemStore(oak)
	gw := gatewaytest.New()
	gw.FailSendTo[900] = true
	svc := cart.New(cart.Options{Store: store, Notifier: gw, AdminIDs: []int64{900, 901}})
	ctx := context.Background()

	_, _ = svc.Add(ctx, 10, oak.ID, 1)
	snap, _ := svc.Checkout(ctx, 10)
	_, err := svc.Finalize(ctx, model.Customer{UserID: 10, Name: "Иван"}, "+7", snap)
	require.NoError(t, err)

	texts := gw.CallsOf(gatewaytest.OpSendText)
	require.Len(t, texts, 1)
	assert.Equal(t, int64(901), texts[0].ChatID)
}

func TestFinalizeRollbackKeepsCart(t *testing.T) {
	store := newMemStore(oak)
	store.failOrd = errors.New("tx aborted")
	gw := gatewaytest.New()
	svc := cart.New(cart.Options{Store: store, Notifier: gw, AdminIDs: []int64{900}})
	ctx := context.Background()

	_, _ = svc.Add(ctx, 10, oak.ID, 1)
	snap, _ := svc.Checkout(ctx, 10)
	_, err := svc.Finalize(ctx, model.Customer{UserID: 10}, "+7", snap)
	require.Error(t, err)

	lines, _ := store.CartLines(ctx, 10)
	assert.Len(t, lines, 1)
	assert.Empty(t, gw.Calls())
}

func TestSnapshotProductIDs(t *testing.T) {
	snap := cart.NewSnapshot([]model.CartLine{
		{ID: 1, ProductID: 5, Price: 10, Quantity: 1},
		{ID: 2, ProductID: 6, Price: 20, Quantity: 2},
		{ID: 3, ProductID: 5, Price: 10, Quantity: 3},
	})
	assert.Equal(t, []int64{5, 6}, snap.ProductIDs())
	assert.Equal(t, int64(10+40+30), snap.Total)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

type flakyNotifier struct{ texts, medias atomic.Int32 }

func (n *flakyNotifier) SendText(context.Context, int64, string, *tele.ReplyMarkup) (int, error) {
	n.texts.Add(1)
	return 0, timeoutErr{}
}

func (n *flakyNotifier) SendMedia(context.Context, int64, gateway.Media, string, *tele.ReplyMarkup) (int, error) {
	n.medias.Add(1)
	return 0, timeoutErr{}
}

func TestFinalizeSendsAdminNotificationsOnce(t *testing.T) {
	store := newMemStore(oak)
	store.media[oak.ID] = model.Media{ProductID: oak.ID, Kind: model.MediaPhoto, FileID: "p"}
	notifier := &flakyNotifier{}
	d := sender.NewDispatcher(sender.Options{Workers: 2, MaxRetries: 2, RetryBackoff: time.Millisecond})
	svc := cart.New(cart.Options{Store: store, Notifier: notifier, Queue: d, AdminIDs: []int64{900}})
	ctx := context.Background()

	_, _ = svc.Add(ctx, 10, oak.ID, 1)
	snap, _ := svc.Checkout(ctx, 10)
	_, err := svc.Finalize(ctx, model.Customer{UserID: 10, Name: "Иван"}, "+7", snap)
	require.NoError(t, err)
	d.Close()

	assert.Equal(t, int32(1), notifier.texts.Load())
	assert.Equal(t, int32(1), notifier.medias.Load())
	assert.Equal(t, sender.Stats{Failed: 2}, d.Stats())
}
