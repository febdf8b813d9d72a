package bot

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tg "github.com/m3rciful/doorshop/core/telegram"
	"github.com/m3rciful/doorshop/core/telegram/callbacks"
	"github.com/m3rciful/doorshop/core/telegram/gateway"
	"github.com/m3rciful/doorshop/core/telegram/gateway/gatewaytest"
	"github.com/m3rciful/doorshop/core/telegram/keyboard"
	"github.com/m3rciful/doorshop/core/telegram/middleware"
	"github.com/m3rciful/doorshop/core/telegram/session"
	"github.com/m3rciful/doorshop/core/telegram/state"
	"github.com/m3rciful/doorshop/internal/shop/cart"
	"github.com/m3rciful/doorshop/internal/shop/catalog"
	"github.com/m3rciful/doorshop/internal/shop/export"
	"github.com/m3rciful/doorshop/internal/shop/media"
	"github.com/m3rciful/doorshop/internal/shop/model"
	"github.com/m3rciful/doorshop/internal/shop/shoptest"

	tele "gopkg.in/telebot.v4"
)

const (
	adminID    int64 = 1
	customerID int64 = 2
)

type harness struct {
	t       *testing.T
	gw      *gatewaytest.Fake
	mem     *shoptest.Memory
	session *session.Store
	dialogs *state.Store
	catalog *catalog.Service
	cart    *cart.Service
	files   *media.Store
	dir     string
	bot     *Bot
	tb      *tele.Bot
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	tb, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)

	gw := gatewaytest.New()
	gw.DownloadBody = []byte("jpeg")
	mem := shoptest.NewMemory()
	dir := t.TempDir()
	files := media.New(dir, gw)
	h := &harness{
		t:       t,
		gw:      gw,
		mem:     mem,
		session: session.New(gw),
		dialogs: state.NewStore(),
		catalog: catalog.New(mem, files, 2),
		cart:    cart.New(cart.Options{Store: mem, Notifier: gw, AdminIDs: []int64{adminID}}),
		files:   files,
		dir:     dir,
		tb:      tb,
	}
	h.bot = New(Deps{
		Gateway: gw,
		Session: h.session,
		Dialogs: h.dialogs,
		Catalog: h.catalog,
		Cart:    h.cart,
		Media:   files,
		Export:  export.New(mem, gw),
		Admin:   middleware.AdminOptions{AdminIDs: []int64{adminID}},
	})
	return h
}

// testContext answers callbacks locally and records the toasts.
type testContext struct {
	tele.Context
	alerts []string
}

func (c *testContext) Respond(resp ...*tele.CallbackResponse) error {
	for _, r := range resp {
		if r != nil {
			c.alerts = append(c.alerts, r.Text)
		}
	}
	return nil
}

func (h *harness) press(userID int64, messageID int, key string, payload ...string) *testContext {
	data := "\f" + key
	if len(payload) > 0 {
		data += "|" + payload[0]
	}
	return &testContext{Context: h.tb.NewContext(tele.Update{ID: 7, Callback: &tele.Callback{
		ID:      "cb",
		Data:    data,
		Sender:  &tele.User{ID: userID, FirstName: "Иван", LastName: "Петров"},
		Message: &tele.Message{ID: messageID, Chat: &tele.Chat{ID: userID}},
	}})}
}

func (h *harness) message(userID int64, msg *tele.Message) *testContext {
	msg.ID = 900
	msg.Sender = &tele.User{ID: userID, FirstName: "Иван"}
	msg.Chat = &tele.Chat{ID: userID}
	return &testContext{Context: h.tb.NewContext(tele.Update{ID: 8, Message: msg})}
}

func (h *harness) text(userID int64, text string) *testContext {
	return h.message(userID, &tele.Message{Text: text})
}

func (h *harness) photo(userID int64, fileID string) *testContext {
	return h.message(userID, &tele.Message{Photo: &tele.Photo{File: tele.File{FileID: fileID}}})
}

func (h *harness) start(userID int64) int {
	h.t.Helper()
	require.NoError(h.t, h.bot.onStart(h.text(userID, "/start")))
	id, ok := h.session.MainMenu(userID)
	require.True(h.t, ok)
	return id
}

// mainMenu returns the text and keyboard of the live main menu.
func (h *harness) mainMenu(chatID int64) gatewaytest.Message {
	h.t.Helper()
	id, ok := h.session.MainMenu(chatID)
	require.True(h.t, ok, "no main menu")
	msg, ok := h.gw.Message(id)
	require.True(h.t, ok, "main menu %d is not visible", id)
	return msg
}

func (h *harness) lastText(chatID int64) string {
	calls := h.gw.CallsOf(gatewaytest.OpSendText)
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].ChatID == chatID {
			return calls[i].Text
		}
	}
	return ""
}

// lastNotice is the last text sent to the chat other than the main menu.
func (h *harness) lastNotice(chatID int64) string {
	menu, _ := h.session.MainMenu(chatID)
	calls := h.gw.CallsOf(gatewaytest.OpSendText)
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].ChatID == chatID && calls[i].MessageID != menu {
			return calls[i].Text
		}
	}
	return ""
}

type seeded struct {
	category model.Category
	typ      model.Type
	product  model.Product
}

// seed creates one category, type and product with n photos stored on disk.
// With n == 0 the product goes straight into the store, since the catalog
// refuses products without media.
func (h *harness) seed(price int64, n int) seeded {
	h.t.Helper()
	ctx := context.Background()
	cat, err := h.catalog.CreateCategory(ctx, "Межкомнатные")
	require.NoError(h.t, err)
	typ, err := h.catalog.CreateType(ctx, cat.ID, "Классика")
	require.NoError(h.t, err)
	np := model.NewProduct{TypeID: typ.ID, Name: "Дверь Верона", Description: "Массив дуба", Price: price}
	for i := range n {
		path := filepath.Join(h.dir, media.Products, "seed_"+string(rune('a'+i))+".jpg")
		require.NoError(h.t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(h.t, os.WriteFile(path, []byte("jpeg"), 0o644))
		np.Media = append(np.Media, model.NewMedia{Kind: model.MediaPhoto, FileID: "file-" + string(rune('a'+i)), FilePath: path})
	}
	create := h.catalog.CreateProduct
	if n == 0 {
		create = h.mem.CreateProduct
	}
	p, err := create(ctx, np)
	require.NoError(h.t, err)
	return seeded{category: cat, typ: typ, product: p}
}

func uniques(kb *tele.ReplyMarkup) []string {
	var out []string
	for _, b := range keyboard.Buttons(kb) {
		out = append(out, b.Unique)
	}
	return out
}

// buttons returns every button carrying unique.
func buttons(kb *tele.ReplyMarkup, unique string) []tele.InlineButton {
	var out []tele.InlineButton
	for _, b := range keyboard.Buttons(kb) {
		if b.Unique == unique {
			out = append(out, b)
		}
	}
	return out
}

func button(t *testing.T, kb *tele.ReplyMarkup, unique string) tele.InlineButton {
	t.Helper()
	for _, b := range keyboard.Buttons(kb) {
		if b.Unique == unique {
			return b
		}
	}
	t.Fatalf("no %q button", unique)
	return tele.InlineButton{}
}

func TestRegisterBindsEveryHandler(t *testing.T) {
	h := newHarness(t)
	reg := tg.NewRegistry()
	require.NoError(t, h.bot.Register(reg))

	for _, key := range []string{keyCatalog, keyProduct, keyAddToCart, keyCheckout, keyChoose, keyCancel} {
		cb, ok := reg.GetCallback(key)
		require.True(t, ok, key)
		assert.False(t, cb.AdminOnly, key)
	}
	for _, key := range []string{keyAdmin, keyAddProduct, keyDropCategory, keyOrders, keyExportOrders} {
		cb, ok := reg.GetCallback(key)
		require.True(t, ok, key)
		assert.True(t, cb.AdminOnly, key)
	}
	_, admin, ok := reg.LookupCommand("/admin")
	require.True(t, ok)
	assert.True(t, admin.AdminOnly)
	assert.NotEmpty(t, h.bot.Routes(reg))
}

func TestStartSendsSingleMainMenu(t *testing.T) {
	h := newHarness(t)
	first := h.start(customerID)
	second := h.start(customerID)

	assert.NotEqual(t, first, second)
	visible := h.gw.Visible(customerID)
	require.Len(t, visible, 1)
	assert.Equal(t, textWelcome, visible[second].Text)
	assert.NotContains(t, uniques(visible[second].Keyboard), keyAdmin)
}

func TestStartOffersAdminPanelToAdmins(t *testing.T) {
	h := newHarness(t)
	h.start(adminID)
	assert.Contains(t, uniques(h.mainMenu(adminID).Keyboard), keyAdmin)
}

func TestCatalogPaginationEditsInPlace(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, name := range []string{"Входные", "Межкомнатные", "Раздвижные"} {
		_, err := h.catalog.CreateCategory(ctx, name)
		require.NoError(t, err)
	}
	menu := h.start(customerID)

	require.NoError(t, h.bot.onCatalog(h.press(customerID, menu, keyCatalog, "0")))
	msg := h.mainMenu(customerID)
	assert.Contains(t, msg.Text, "Страница 1 из 2")
	nav := buttons(msg.Keyboard, keyCatalog)
	require.Len(t, nav, 1, "no back control on the first page")
	next := nav[0]
	assert.Equal(t, "1", next.Data)
	assert.Equal(t, "Вперед ➡️", next.Text)

	require.NoError(t, h.bot.onCatalog(h.press(customerID, menu, keyCatalog, next.Data)))
	msg = h.mainMenu(customerID)
	assert.Contains(t, msg.Text, "Страница 2 из 2")
	nav = buttons(msg.Keyboard, keyCatalog)
	require.Len(t, nav, 1, "no forward control on the last page")
	assert.Equal(t, "⬅️ Назад", nav[0].Text)
	assert.Equal(t, "0", nav[0].Data)

	assert.Len(t, h.gw.CallsOf(gatewaytest.OpSendText), 2, "both pages are edits of the menu")
	assert.Len(t, h.gw.Visible(customerID), 1)
}

func TestCatalogClampsPageOutOfRange(t *testing.T) {
	h := newHarness(t)
	_, err := h.catalog.CreateCategory(context.Background(), "Входные")
	require.NoError(t, err)
	menu := h.start(customerID)

	require.NoError(t, h.bot.onCatalog(h.press(customerID, menu, keyCatalog, "42")))
	assert.Contains(t, h.mainMenu(customerID).Text, "Страница 1 из 1")
}

func TestCatalogEmpty(t *testing.T) {
	h := newHarness(t)
	menu := h.start(customerID)
	require.NoError(t, h.bot.onCatalog(h.press(customerID, menu, keyCatalog, "0")))
	assert.Equal(t, textCatalogEmpty, h.mainMenu(customerID).Text)
}

func TestCategoryAndTypeScreens(t *testing.T) {
	h := newHarness(t)
	s := h.seed(12000, 1)
	menu := h.start(customerID)

	require.NoError(t, h.bot.onCategory(h.press(customerID, menu, keyCategory, callbacks.Payload(s.category.ID, 0))))
	msg := h.mainMenu(customerID)
	assert.Contains(t, msg.Text, "Межкомнатные")
	assert.Equal(t, callbacks.Payload(s.typ.ID, 0), button(t, msg.Keyboard, keyType).Data)

	require.NoError(t, h.bot.onType(h.press(customerID, menu, keyType, callbacks.Payload(s.typ.ID, 0))))
	msg = h.mainMenu(customerID)
	assert.Contains(t, msg.Text, "Классика")
	product := button(t, msg.Keyboard, keyProduct)
	assert.Equal(t, "🚪 Дверь Верона - 12000 руб.", product.Text)
	assert.Equal(t, callbacks.Payload(s.product.ID, 0), product.Data)
}

func TestMissingCategoryFallsBackToCatalog(t *testing.T) {
	h := newHarness(t)
	menu := h.start(customerID)
	ctx := h.press(customerID, menu, keyCategory, callbacks.Payload(99, 0))

	require.NoError(t, h.bot.onCategory(ctx))
	assert.Equal(t, []string{textNoCategory}, ctx.alerts)
	assert.Equal(t, textCatalogEmpty, h.mainMenu(customerID).Text)
}

func TestProductWithOnePhotoIsCaptioned(t *testing.T) {
	h := newHarness(t)
	s := h.seed(12000, 1)
	menu := h.start(customerID)

	require.NoError(t, h.bot.onProduct(h.press(customerID, menu, keyProduct, callbacks.Payload(s.product.ID, 0))))
	sent := h.gw.CallsOf(gatewaytest.OpSendMedia)
	require.Len(t, sent, 1)
	assert.Equal(t, "🚪 Дверь Верона\n\n💰 Цена: 12000 руб.\n\n📝 Массив дуба", sent[0].Text)
	assert.Equal(t, gateway.Media{Kind: gateway.Photo, FileID: "file-a", Path: s.productPath(h, 0)}, sent[0].Media[0])
	assert.Equal(t, []int{sent[0].MessageID}, h.session.Ephemeral(customerID))
	assert.Contains(t, uniques(sent[0].Keyboard), keyAddToCart)
}

func (s seeded) productPath(h *harness, i int) string {
	return filepath.Join(h.dir, media.Products, "seed_"+string(rune('a'+i))+".jpg")
}

func TestProductWithSeveralFilesSendsAlbumThenCard(t *testing.T) {
	h := newHarness(t)
	s := h.seed(9000, 3)
	menu := h.start(customerID)

	require.NoError(t, h.bot.onProduct(h.press(customerID, menu, keyProduct, callbacks.Payload(s.product.ID, 1))))
	groups := h.gw.CallsOf(gatewaytest.OpSendGroup)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Media, 3)
	assert.Empty(t, h.gw.CallsOf(gatewaytest.OpSendMedia))

	eph := h.session.Ephemeral(customerID)
	require.Len(t, eph, 4)
	card, ok := h.gw.Message(eph[3])
	require.True(t, ok)
	assert.Contains(t, card.Text, "Дверь Верона")
	assert.Equal(t, callbacks.Payload(s.product.ID, 1), button(t, card.Keyboard, keyAddToCart).Data)

	// Opening it again replaces the previous messages.
	require.NoError(t, h.bot.onProduct(h.press(customerID, menu, keyProduct, callbacks.Payload(s.product.ID, 1))))
	assert.Len(t, h.gw.Visible(customerID), 5)
}

func TestProductUnreachableChatReportsError(t *testing.T) {
	h := newHarness(t)
	s := h.seed(9000, 1)
	menu := h.start(customerID)
	h.gw.FailSendTo[customerID] = true

	err := h.bot.onProduct(h.press(customerID, menu, keyProduct, callbacks.Payload(s.product.ID, 0)))
	require.ErrorIs(t, err, gatewaytest.ErrInjected)
	assert.Empty(t, h.session.Ephemeral(customerID))
}

func TestSectionPhotoBecomesMediaAnchor(t *testing.T) {
	h := newHarness(t)
	_, err := h.mem.SetSectionPhoto(context.Background(), model.SectionInfo, "/media/sections/info.jpg", "photo-1")
	require.NoError(t, err)
	menu := h.start(customerID)

	require.NoError(t, h.bot.onSection(h.press(customerID, menu, keySection, model.SectionInfo)))
	_, stillThere := h.gw.Message(menu)
	assert.False(t, stillThere, "text menu is replaced by the photo")
	sent := h.gw.CallsOf(gatewaytest.OpSendMedia)
	require.Len(t, sent, 1)
	assert.Equal(t, "photo-1", sent[0].Media[0].FileID)
	anchor, _ := h.session.MainMenu(customerID)
	assert.Equal(t, sent[0].MessageID, anchor)

	// A text screen cannot be edited into a photo, so it is sent anew.
	require.NoError(t, h.bot.onBackToMain(h.press(customerID, anchor, keyBackToMain)))
	visible := h.gw.Visible(customerID)
	require.Len(t, visible, 1)
	assert.Equal(t, textWelcome, h.mainMenu(customerID).Text)
}

func TestSectionWithoutPhotoEditsMenu(t *testing.T) {
	h := newHarness(t)
	menu := h.start(customerID)
	require.NoError(t, h.bot.onSection(h.press(customerID, menu, keySection, model.SectionServices)))

	anchor, _ := h.session.MainMenu(customerID)
	assert.Equal(t, menu, anchor)
	assert.Equal(t, "Раздел services", h.mainMenu(customerID).Text)
}

func TestMainMenuIsResentWhenEditFails(t *testing.T) {
	h := newHarness(t)
	menu := h.start(customerID)
	h.gw.FailEdit = true

	require.NoError(t, h.bot.onCart(h.press(customerID, menu, keyCart)))
	anchor, ok := h.session.MainMenu(customerID)
	require.True(t, ok)
	assert.NotEqual(t, menu, anchor)
	assert.Len(t, h.gw.Visible(customerID), 1)
	assert.Equal(t, textCartMenu, h.mainMenu(customerID).Text)
}

func TestUnknownInputIsEphemeral(t *testing.T) {
	h := newHarness(t)
	h.start(customerID)
	require.NoError(t, h.bot.UnknownText()(h.text(customerID, "привет")))
	assert.Equal(t, textUnknown, h.lastText(customerID))
	assert.Len(t, h.session.Ephemeral(customerID), 1)

	ctx := h.press(customerID, 1, "gone")
	require.NoError(t, h.bot.UnknownCallback()(ctx))
	assert.Equal(t, []string{textStale}, ctx.alerts)
}

func TestIdsUseSenderAndChat(t *testing.T) {
	h := newHarness(t)
	userID, chatID := ids(h.press(customerID, 5, keyCart))
	assert.Equal(t, customerID, userID)
	assert.Equal(t, customerID, chatID)
	assert.True(t, slices.Contains(uniques(startKeyboard(false)), keyCart))
}
