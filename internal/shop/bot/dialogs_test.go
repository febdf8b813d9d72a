package bot

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/doorshop/core/telegram/callbacks"
	"github.com/m3rciful/doorshop/core/telegram/gateway/gatewaytest"
	"github.com/m3rciful/doorshop/internal/shop/dialog"
	"github.com/m3rciful/doorshop/internal/shop/media"
	"github.com/m3rciful/doorshop/internal/shop/model"

	tele "gopkg.in/telebot.v4"
)

func id(v int64) string { return strconv.FormatInt(v, 10) }

func TestCartAddRejectsBadQuantityThenAdds(t *testing.T) {
	h := newHarness(t)
	s := h.seed(1500, 0)
	menu := h.start(customerID)

	require.NoError(t, h.bot.onAddToCart(h.press(customerID, menu, keyAddToCart, callbacks.Payload(s.product.ID, 1))))
	require.True(t, h.bot.InProgress(customerID))
	assert.Contains(t, h.lastText(customerID), "Введите количество товара")

	require.NoError(t, h.bot.Handle(h.text(customerID, "много")))
	assert.Equal(t, "❌ Пожалуйста, введите число! Введите количество товара:", h.lastText(customerID))
	require.NoError(t, h.bot.Handle(h.text(customerID, "0")))
	assert.Contains(t, h.lastText(customerID), "больше 0")
	require.NoError(t, h.bot.Handle(h.text(customerID, "101")))
	assert.Contains(t, h.lastText(customerID), "до 100")
	assert.Empty(t, h.mem.Carts())
	require.True(t, h.bot.InProgress(customerID))

	require.NoError(t, h.bot.Handle(h.text(customerID, " 3 ")))
	assert.False(t, h.bot.InProgress(customerID))
	lines := h.mem.Carts()
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)

	last := h.gw.CallsOf(gatewaytest.OpSendText)
	done := last[len(last)-1]
	assert.Equal(t, "✅ Дверь Верона добавлен в корзину!\n📦 Количество: 3 шт.\n💰 Сумма: 4500 руб.", done.Text)
	assert.Equal(t, callbacks.Payload(s.typ.ID, 1), button(t, done.Keyboard, keyType).Data)
	assert.Equal(t, []int{done.MessageID}, h.session.Ephemeral(customerID), "prompts and errors are cleared")
}

func TestCartAddIsAdditive(t *testing.T) {
	h := newHarness(t)
	s := h.seed(100, 0)
	menu := h.start(customerID)
	for _, qty := range []string{"2", "5"} {
		require.NoError(t, h.bot.onAddToCart(h.press(customerID, menu, keyAddToCart, callbacks.Payload(s.product.ID, 0))))
		require.NoError(t, h.bot.Handle(h.text(customerID, qty)))
	}
	lines := h.mem.Carts()
	require.Len(t, lines, 1)
	assert.Equal(t, 7, lines[0].Quantity)
}

func TestCancelCartAddReturnsToProduct(t *testing.T) {
	h := newHarness(t)
	s := h.seed(100, 0)
	menu := h.start(customerID)
	require.NoError(t, h.bot.onAddToCart(h.press(customerID, menu, keyAddToCart, callbacks.Payload(s.product.ID, 0))))

	require.NoError(t, h.bot.onCancel(h.press(customerID, menu, keyCancel)))
	assert.False(t, h.bot.InProgress(customerID))
	assert.Empty(t, h.mem.Carts())
	assert.Contains(t, h.lastText(customerID), "Дверь Верона")
}

func TestCancelWithoutDialogIsStale(t *testing.T) {
	h := newHarness(t)
	menu := h.start(customerID)
	ctx := h.press(customerID, menu, keyCancel)
	require.NoError(t, h.bot.onCancel(ctx))
	assert.Equal(t, []string{textStale}, ctx.alerts)
}

func TestViewCartAndRemoveLine(t *testing.T) {
	h := newHarness(t)
	s := h.seed(2500, 1)
	ctx := context.Background()
	_, err := h.cart.Add(ctx, customerID, s.product.ID, 2)
	require.NoError(t, err)
	menu := h.start(customerID)

	require.NoError(t, h.bot.onViewCart(h.press(customerID, menu, keyViewCart)))
	media := h.gw.CallsOf(gatewaytest.OpSendMedia)
	require.Len(t, media, 1)
	lineID := button(t, media[0].Keyboard, keyRemoveLine).Data
	assert.Contains(t, h.lastText(customerID), "5000")
	assert.Len(t, h.session.Ephemeral(customerID), 2)

	press := h.press(customerID, menu, keyRemoveLine, lineID)
	require.NoError(t, h.bot.onRemoveLine(press))
	assert.Equal(t, []string{"✅ Дверь Верона удален из корзины"}, press.alerts)
	assert.Empty(t, h.mem.Carts())
	assert.Empty(t, h.session.Ephemeral(customerID))
	assert.Equal(t, textCartMenu, h.mainMenu(customerID).Text)
}

func TestViewEmptyCartAlerts(t *testing.T) {
	h := newHarness(t)
	menu := h.start(customerID)
	ctx := h.press(customerID, menu, keyViewCart)
	require.NoError(t, h.bot.onViewCart(ctx))
	assert.Equal(t, []string{textCartEmpty}, ctx.alerts)
}

func TestCheckoutPlacesOrder(t *testing.T) {
	h := newHarness(t)
	s := h.seed(3000, 1)
	_, err := h.cart.Add(context.Background(), customerID, s.product.ID, 2)
	require.NoError(t, err)
	menu := h.start(customerID)

	require.NoError(t, h.bot.onCheckout(h.press(customerID, menu, keyCheckout)))
	assert.Contains(t, h.lastText(customerID), "номер телефона")

	// A blank phone is refused.
	require.NoError(t, h.bot.Handle(h.text(customerID, "   ")))
	require.True(t, h.bot.InProgress(customerID))

	require.NoError(t, h.bot.Handle(h.text(customerID, "+7 900 000-00-00")))
	assert.False(t, h.bot.InProgress(customerID))
	orders := h.mem.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, "+7 900 000-00-00", orders[0].Phone)
	assert.Equal(t, "Иван", orders[0].UserName)
	assert.EqualValues(t, 6000, orders[0].TotalAmount)
	assert.Empty(t, h.mem.Carts())

	assert.Equal(t, textWelcome, h.mainMenu(customerID).Text)
	assert.Contains(t, h.lastText(adminID), "Новый заказ")
	var confirmed bool
	for _, m := range h.gw.Visible(customerID) {
		if m.Text == "✅ Ваш заказ #"+id(orders[0].ID)+" принят!\n\n💰 Сумма заказа: 6000 руб.\n📞 Мы свяжемся с вами по номеру: +7 900 000-00-00\n\nСпасибо за покупку! 🚪" {
			confirmed = true
		}
	}
	assert.True(t, confirmed, "confirmation stays in the chat")
}

func TestCheckoutWithEmptyCartAlerts(t *testing.T) {
	h := newHarness(t)
	menu := h.start(customerID)
	ctx := h.press(customerID, menu, keyCheckout)
	require.NoError(t, h.bot.onCheckout(ctx))
	assert.Equal(t, []string{textNothingToBuy}, ctx.alerts)
	assert.False(t, h.bot.InProgress(customerID))
}

func TestAdminDialogDroppedForNonAdmin(t *testing.T) {
	h := newHarness(t)
	h.start(customerID)
	h.dialogs.Start(context.Background(), customerID, customerID, dialog.FlowAddCategory, nil)

	require.NoError(t, h.bot.Handle(h.text(customerID, "Входные")))
	assert.False(t, h.bot.InProgress(customerID))
	cats, err := h.catalog.AllCategories(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cats)
	assert.Contains(t, h.lastText(customerID), "нет прав")
}

func TestAddCategoryRetriesOnDuplicate(t *testing.T) {
	h := newHarness(t)
	_, err := h.catalog.CreateCategory(context.Background(), "Входные")
	require.NoError(t, err)
	menu := h.start(adminID)

	require.NoError(t, h.bot.startFlow(dialog.FlowAddCategory)(h.press(adminID, menu, keyAddCategory)))
	require.NoError(t, h.bot.Handle(h.text(adminID, "Входные")))
	assert.Equal(t, "❌ Категория с таким названием уже существует!", h.lastText(adminID))
	d, ok := h.dialogs.Get(adminID)
	require.True(t, ok, "the flow waits for another name")
	assert.Equal(t, 0, d.Step)

	require.NoError(t, h.bot.Handle(h.text(adminID, "Раздвижные")))
	assert.False(t, h.bot.InProgress(adminID))
	cats, err := h.catalog.AllCategories(context.Background())
	require.NoError(t, err)
	assert.Len(t, cats, 2)
	assert.Equal(t, textAdminPanel, h.mainMenu(adminID).Text)
}

func TestAddTypeNeedsCategory(t *testing.T) {
	h := newHarness(t)
	menu := h.start(adminID)
	ctx := h.press(adminID, menu, keyAddType)
	require.NoError(t, h.bot.startFlow(dialog.FlowAddType)(ctx))
	assert.Equal(t, []string{textNoCategories}, ctx.alerts)
	assert.False(t, h.bot.InProgress(adminID))
}

func TestAddTypeFlow(t *testing.T) {
	h := newHarness(t)
	cat, err := h.catalog.CreateCategory(context.Background(), "Входные")
	require.NoError(t, err)
	menu := h.start(adminID)

	require.NoError(t, h.bot.startFlow(dialog.FlowAddType)(h.press(adminID, menu, keyAddType)))
	prompt := h.gw.CallsOf(gatewaytest.OpSendText)
	choice := button(t, prompt[len(prompt)-1].Keyboard, keyChoose)
	assert.Equal(t, id(cat.ID), choice.Data)

	require.NoError(t, h.bot.onChoose(h.press(adminID, menu, keyChoose, choice.Data)))
	require.NoError(t, h.bot.Handle(h.text(adminID, "Металлические")))
	types, err := h.catalog.AllTypes(context.Background(), cat.ID)
	require.NoError(t, err)
	require.Len(t, types, 1)
	assert.Equal(t, "Металлические", types[0].Name)
}

func (h *harness) beginAddProduct(menu int, s seeded) {
	h.t.Helper()
	require.NoError(h.t, h.bot.startFlow(dialog.FlowAddProduct)(h.press(adminID, menu, keyAddProduct)))
	require.NoError(h.t, h.bot.onChoose(h.press(adminID, menu, keyChoose, id(s.category.ID))))
	require.NoError(h.t, h.bot.onChoose(h.press(adminID, menu, keyChoose, id(s.typ.ID))))
	require.NoError(h.t, h.bot.Handle(h.text(adminID, "Дверь Милан")))
	require.NoError(h.t, h.bot.Handle(h.text(adminID, "Шпон ореха")))
	require.NoError(h.t, h.bot.Handle(h.text(adminID, "цена")))
	require.Contains(h.t, h.lastText(adminID), "корректную цену")
	require.NoError(h.t, h.bot.Handle(h.text(adminID, "18000")))
}

func TestAddProductFlowStoresMedia(t *testing.T) {
	h := newHarness(t)
	s := h.seed(100, 0)
	menu := h.start(adminID)
	h.beginAddProduct(menu, s)

	// Finishing without media is refused.
	fin := h.press(adminID, menu, keyFinish)
	require.NoError(t, h.bot.onFinish(fin))
	assert.Contains(t, h.lastText(adminID), "не добавили ни одного")

	require.NoError(t, h.bot.Handle(h.photo(adminID, "ph-1")))
	assert.Equal(t, "✅ Медиафайл добавлен! Всего файлов: 1", h.lastText(adminID))
	require.NoError(t, h.bot.Handle(h.message(adminID, &tele.Message{Video: &tele.Video{File: tele.File{FileID: "vd-1"}}})))
	assert.Equal(t, "✅ Медиафайл добавлен! Всего файлов: 2", h.lastText(adminID))
	require.NoError(t, h.bot.Handle(h.message(adminID, &tele.Message{Document: &tele.Document{File: tele.File{FileID: "doc"}}})))
	assert.Equal(t, "❌ Поддерживаются только фото и видео!", h.lastText(adminID))

	require.NoError(t, h.bot.onFinish(h.press(adminID, menu, keyFinish)))
	assert.False(t, h.bot.InProgress(adminID))
	products, err := h.catalog.AllProducts(context.Background(), s.typ.ID)
	require.NoError(t, err)
	require.Len(t, products, 2)
	var created model.Product
	for _, p := range products {
		if p.Name == "Дверь Милан" {
			created = p
		}
	}
	require.NotZero(t, created.ID)
	assert.EqualValues(t, 18000, created.Price)

	_, files, err := h.catalog.Product(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, model.MediaVideo, files[1].Kind)
	for _, f := range files {
		assert.FileExists(t, f.FilePath)
		assert.Equal(t, filepath.Join(h.dir, media.Products), filepath.Dir(f.FilePath))
	}
	assert.Equal(t, textAdminPanel, h.mainMenu(adminID).Text)
}

func TestCancelAddProductRemovesDownloads(t *testing.T) {
	h := newHarness(t)
	s := h.seed(100, 0)
	menu := h.start(adminID)
	h.beginAddProduct(menu, s)
	require.NoError(t, h.bot.Handle(h.photo(adminID, "ph-1")))

	d, ok := h.dialogs.Get(adminID)
	require.True(t, ok)
	paths := dialog.Paths(d, dialog.FieldMedia)
	require.Len(t, paths, 1)
	assert.FileExists(t, paths[0])

	require.NoError(t, h.bot.onCancel(h.text(adminID, "/cancel")))
	assert.False(t, h.bot.InProgress(adminID))
	assert.NoFileExists(t, paths[0])
	assert.Equal(t, textAdminPanel, h.mainMenu(adminID).Text)
}

func TestStartDuringAddProductRemovesDownloads(t *testing.T) {
	h := newHarness(t)
	s := h.seed(100, 0)
	menu := h.start(adminID)
	h.beginAddProduct(menu, s)
	require.NoError(t, h.bot.Handle(h.photo(adminID, "ph-1")))
	d, _ := h.dialogs.Get(adminID)
	paths := dialog.Paths(d, dialog.FieldMedia)
	require.Len(t, paths, 1)

	h.start(adminID)
	assert.False(t, h.bot.InProgress(adminID))
	assert.NoFileExists(t, paths[0])
}

func TestAddProductAbortsWhenCategoryHasNoTypes(t *testing.T) {
	h := newHarness(t)
	cat, err := h.catalog.CreateCategory(context.Background(), "Пустая")
	require.NoError(t, err)
	menu := h.start(adminID)

	require.NoError(t, h.bot.startFlow(dialog.FlowAddProduct)(h.press(adminID, menu, keyAddProduct)))
	require.NoError(t, h.bot.onChoose(h.press(adminID, menu, keyChoose, id(cat.ID))))
	assert.False(t, h.bot.InProgress(adminID))
	assert.Contains(t, h.lastNotice(adminID), "нет типов! Сначала создайте тип.")
}

func TestEditSectionReplacesPhoto(t *testing.T) {
	h := newHarness(t)
	old := filepath.Join(h.dir, media.Sections, "old.jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(old), 0o755))
	require.NoError(t, os.WriteFile(old, []byte("jpeg"), 0o644))
	_, err := h.mem.SetSectionPhoto(context.Background(), model.SectionInfo, old, "old-file")
	require.NoError(t, err)
	menu := h.start(adminID)

	require.NoError(t, h.bot.startFlow(dialog.FlowEditSection)(h.press(adminID, menu, keyEditSection)))
	require.NoError(t, h.bot.onChoose(h.press(adminID, menu, keyChoose, model.SectionInfo)))
	assert.Contains(t, h.lastText(adminID), "Раздел info")

	require.NoError(t, h.bot.Handle(h.text(adminID, "Мы работаем с 9 до 18")))
	sec, err := h.catalog.Section(context.Background(), model.SectionInfo)
	require.NoError(t, err)
	assert.Equal(t, "Мы работаем с 9 до 18", sec.Content, "text is saved before the photo step")
	assert.Contains(t, h.lastText(adminID), "Текущее фото: есть")

	require.NoError(t, h.bot.onChoose(h.press(adminID, menu, keyChoose, dialog.PhotoReplace)))
	require.NoError(t, h.bot.Handle(h.message(adminID, &tele.Message{Video: &tele.Video{File: tele.File{FileID: "v"}}})))
	assert.Equal(t, "❌ Отправьте фото!", h.lastText(adminID))

	require.NoError(t, h.bot.Handle(h.photo(adminID, "new-file")))
	assert.False(t, h.bot.InProgress(adminID))
	sec, err = h.catalog.Section(context.Background(), model.SectionInfo)
	require.NoError(t, err)
	require.True(t, sec.HasPhoto())
	assert.Equal(t, "new-file", *sec.FileID)
	assert.FileExists(t, *sec.PhotoPath)
	assert.Equal(t, filepath.Join(h.dir, media.Sections), filepath.Dir(*sec.PhotoPath))
	assert.NoFileExists(t, old)
}

func TestEditSectionRemovesPhoto(t *testing.T) {
	h := newHarness(t)
	_, err := h.mem.SetSectionPhoto(context.Background(), model.SectionServices, filepath.Join(h.dir, "x.jpg"), "x")
	require.NoError(t, err)
	menu := h.start(adminID)

	require.NoError(t, h.bot.startFlow(dialog.FlowEditSection)(h.press(adminID, menu, keyEditSection)))
	require.NoError(t, h.bot.onChoose(h.press(adminID, menu, keyChoose, model.SectionServices)))
	require.NoError(t, h.bot.Handle(h.text(adminID, "Монтаж дверей")))
	require.NoError(t, h.bot.onChoose(h.press(adminID, menu, keyChoose, dialog.PhotoRemove)))

	assert.False(t, h.bot.InProgress(adminID))
	sec, err := h.catalog.Section(context.Background(), model.SectionServices)
	require.NoError(t, err)
	assert.False(t, sec.HasPhoto())
	assert.Equal(t, "Монтаж дверей", sec.Content)
}

func TestEditSectionRemovingMissingPhotoSucceeds(t *testing.T) {
	h := newHarness(t)
	menu := h.start(adminID)

	require.NoError(t, h.bot.startFlow(dialog.FlowEditSection)(h.press(adminID, menu, keyEditSection)))
	require.NoError(t, h.bot.onChoose(h.press(adminID, menu, keyChoose, model.SectionConsultation)))
	require.NoError(t, h.bot.Handle(h.text(adminID, "Звоните нам")))
	assert.Contains(t, h.lastText(adminID), "Текущее фото: нет")
	require.NoError(t, h.bot.onChoose(h.press(adminID, menu, keyChoose, dialog.PhotoRemove)))

	assert.False(t, h.bot.InProgress(adminID))
	assert.Equal(t, "✅ Фото удалено! Раздел главного меню обновлен.", h.lastNotice(adminID))
	sec, err := h.catalog.Section(context.Background(), model.SectionConsultation)
	require.NoError(t, err)
	assert.Equal(t, "Звоните нам", sec.Content)
}

func TestChoiceWithoutDialogIsStale(t *testing.T) {
	h := newHarness(t)
	menu := h.start(adminID)
	ctx := h.press(adminID, menu, keyChoose, "1")
	require.NoError(t, h.bot.onChoose(ctx))
	assert.Equal(t, []string{textStale}, ctx.alerts)
}
