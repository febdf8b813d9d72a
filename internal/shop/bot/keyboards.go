package bot

import (
	"fmt"
	"strconv"

	"github.com/m3rciful/doorshop/core/telegram/callbacks"
	"github.com/m3rciful/doorshop/core/telegram/format"
	"github.com/m3rciful/doorshop/core/telegram/keyboard"
	"github.com/m3rciful/doorshop/internal/shop/catalog"
	"github.com/m3rciful/doorshop/internal/shop/dialog"
	"github.com/m3rciful/doorshop/internal/shop/model"

	tele "gopkg.in/telebot.v4"
)

// Callback keys. Payloads are joined with callbacks.Sep.
const (
	keyCatalog    = "catalog" // page
	keySection    = "section" // section key
	keyCart       = "cart"
	keyViewCart   = "view_cart"
	keyClearCart  = "clear_cart"
	keyCheckout   = "checkout"
	keyBackToMain = "back_to_main"
	keyCategory   = "show_category"    // category id|page
	keyType       = "show_type"        // type id|page
	keyProduct    = "show_product"     // product id|page
	keyAddToCart  = "add_to_cart"      // product id|page
	keyRemoveLine = "remove_from_cart" // cart line id
	keyChoose     = "dlg_choose"       // choice value
	keyFinish     = "dlg_finish"
	keyCancel     = "dlg_cancel"
)

// Admin callback keys, guarded by the allowlist.
const (
	keyAdmin           = "admin"
	keyAddCategory     = "admin_add_category"
	keyAddType         = "admin_add_type"
	keyAddProduct      = "admin_add_product"
	keyEditSection     = "admin_edit_section"
	keyDeleteCategory  = "admin_delete_category"
	keyDropCategory    = "admin_drop_category" // category id
	keyDeleteType      = "admin_delete_type"
	keyDeleteTypeIn    = "admin_delete_type_in" // category id
	keyDropType        = "admin_drop_type"      // type id
	keyDeleteProduct   = "admin_delete_product"
	keyDeleteProductIn = "admin_delete_product_in" // category id
	keyDeleteProductOf = "admin_delete_product_of" // type id
	keyDropProduct     = "admin_drop_product"      // product id
	keyOrders          = "admin_orders"
	keyCompleteOrder   = "admin_complete_order" // order id
	keyExportOrders    = "admin_export_orders"
)

const (
	textWelcome      = "Добро пожаловать в магазин дверей! 🚪\n\nВыберите нужный раздел:"
	textCartMenu     = "🛒 Корзина\n\nВыберите действие:"
	textAdminPanel   = "👨‍💻 Панель администратора\n\nВыберите действие:"
	textCatalogEmpty = "📁 Каталог пока пуст"
	textUnavailable  = "Раздел временно недоступен"
	textCartEmpty    = "🛒 Ваша корзина пуста"
	textCartCleared  = "✅ Корзина очищена"
	textNothingToBuy = "❌ Корзина пуста"
	textNoProduct    = "❌ Товар не найден"
	textNoLine       = "❌ Товар не найден в корзине"
	textAddFailed    = "❌ Ошибка при добавлении в корзину"
	textOrderFailed  = "❌ Ошибка при оформлении заказа"
	textStale        = "Действие недоступно"
	textUnknown      = "Используйте кнопки меню или команду /start 🚪"
	textMediaFailed  = "❌ Ошибка при обработке медиафайла!"
	textNoCategories = "❌ Сначала создайте хотя бы одну категорию!"
	textNoOrders     = "📦 Нет активных заказов"
	textNoCategory   = "❌ Категория не найдена!"
	textNoType       = "❌ Тип не найден!"
)

var (
	btnBack       = keyboard.InlineBtn{Text: "🔙 Назад", Unique: keyBackToMain}
	btnToMain     = keyboard.InlineBtn{Text: "🏠 В главное меню", Unique: keyBackToMain}
	btnViewCart   = keyboard.InlineBtn{Text: "🔄 Обновить корзину", Unique: keyViewCart}
	btnBackAdmin  = keyboard.InlineBtn{Text: "🔙 Назад", Unique: keyAdmin}
	btnCancelFlow = keyboard.CancelButton(keyCancel)
)

// sectionButtons labels the main-menu info pages.
var sectionButtons = map[string]string{
	model.SectionServices:     "🛠️ Услуги",
	model.SectionInfo:         "ℹ️ Информация",
	model.SectionConsultation: "💬 Консультация",
}

func startKeyboard(admin bool) *tele.ReplyMarkup {
	section := func(key string) keyboard.InlineBtn {
		return keyboard.InlineBtn{Text: sectionButtons[key], Unique: keySection, Data: key}
	}
	rows := [][]keyboard.InlineBtn{
		{{Text: "📁 Каталог", Unique: keyCatalog, Data: "0"}, section(model.SectionServices)},
		{section(model.SectionInfo), section(model.SectionConsultation)},
		{{Text: "🛒 Корзина", Unique: keyCart}},
	}
	if admin {
		rows = append(rows, []keyboard.InlineBtn{{Text: "👨‍💻 Админ-панель", Unique: keyAdmin}})
	}
	return keyboard.InlineButtonsRows(rows...)
}

func cartMenuKeyboard() *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: "📋 Просмотр корзины", Unique: keyViewCart},
		{Text: "🗑️ Очистить корзину", Unique: keyClearCart},
		btnBack,
	})
}

func adminKeyboard() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{{Text: "➕ Добавить категорию", Unique: keyAddCategory}, {Text: "➖ Удалить категорию", Unique: keyDeleteCategory}},
		[]keyboard.InlineBtn{{Text: "🏷️ Добавить тип", Unique: keyAddType}, {Text: "🗑️ Удалить тип", Unique: keyDeleteType}},
		[]keyboard.InlineBtn{{Text: "🚪 Добавить товар", Unique: keyAddProduct}, {Text: "❌ Удалить товар", Unique: keyDeleteProduct}},
		[]keyboard.InlineBtn{{Text: "📦 Заказы", Unique: keyOrders}, {Text: "📝 Редактировать информацию", Unique: keyEditSection}},
		[]keyboard.InlineBtn{btnToMain},
	)
}

// listKeyboard renders one button per item, the pagination row and a back
// button. nav builds the payload of a neighbouring page.
func listKeyboard(items []keyboard.InlineBtn, page catalog.Page, navKey string, nav func(int) string, back keyboard.InlineBtn) *tele.ReplyMarkup {
	rows := make([][]keyboard.InlineBtn, 0, len(items)+2)
	for _, it := range items {
		rows = append(rows, []keyboard.InlineBtn{it})
	}
	var pager []keyboard.InlineBtn
	if page.HasPrev() {
		pager = append(pager, keyboard.InlineBtn{Text: "⬅️ Назад", Unique: navKey, Data: nav(page.Index - 1)})
	}
	if page.HasNext() {
		pager = append(pager, keyboard.InlineBtn{Text: "Вперед ➡️", Unique: navKey, Data: nav(page.Index + 1)})
	}
	rows = append(rows, pager, []keyboard.InlineBtn{back})
	return keyboard.InlineButtonsRows(rows...)
}

func pageLabel(p catalog.Page) string {
	return fmt.Sprintf("Страница %d из %d", p.Number(), p.Total)
}

func productKeyboard(p model.Product, page int) *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: "🛒 Добавить в корзину", Unique: keyAddToCart, Data: callbacks.Payload(p.ID, int64(page))},
		{Text: "🔙 Назад к товарам", Unique: keyType, Data: callbacks.Payload(p.TypeID, int64(page))},
	})
}

func afterCartKeyboard(typeID int64, page int) *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: "🔙 Назад к товарам", Unique: keyType, Data: callbacks.Payload(typeID, int64(page))},
		btnToMain,
	})
}

func cartLineKeyboard(lineID int64) *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: "❌ Удалить из корзины", Unique: keyRemoveLine, Data: strconv.FormatInt(lineID, 10)},
		btnViewCart,
	})
}

func cartSummaryKeyboard() *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: "✅ Оформить заказ", Unique: keyCheckout},
		btnViewCart,
		btnBack,
	})
}

func orderKeyboard(orderID int64) *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: "✅ Выполнен", Unique: keyCompleteOrder, Data: strconv.FormatInt(orderID, 10)},
	})
}

func ordersKeyboard() *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: "📊 Выгрузить в Excel", Unique: keyExportOrders},
		btnBackAdmin,
	})
}

// pickKeyboard lists admin choices, each pointing at key with the item id.
func pickKeyboard[T any](items []T, key string, label func(T) (int64, string), back keyboard.InlineBtn) *tele.ReplyMarkup {
	btns := make([]keyboard.InlineBtn, 0, len(items)+1)
	for _, it := range items {
		id, text := label(it)
		btns = append(btns, keyboard.InlineBtn{Text: text, Unique: key, Data: strconv.FormatInt(id, 10)})
	}
	return keyboard.InlineButtons(append(btns, back))
}

func categoryLabel(c model.Category) (int64, string) { return c.ID, "📁 " + c.Name }
func typeLabel(t model.Type) (int64, string) { return t.ID, "🏷️ " + t.Name }
func productLabel(p model.Product) (int64, string) {
	return p.ID, "🚪 " + p.Name + " - " + format.Rub(p.Price)
}

// choiceKeyboard renders the options of a dialog choice step followed by
// the cancel button.
func choiceKeyboard(options []keyboard.InlineBtn) *tele.ReplyMarkup {
	rows := make([][]keyboard.InlineBtn, 0, len(options)+1)
	for _, o := range options {
		o.Unique = keyChoose
		rows = append(rows, []keyboard.InlineBtn{o})
	}
	return keyboard.InlineButtonsRows(append(rows, []keyboard.InlineBtn{btnCancelFlow})...)
}

func mediaStepKeyboard() *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: "✅ Завершить добавление медиа", Unique: keyFinish},
		btnCancelFlow,
	})
}

func photoActionOptions() []keyboard.InlineBtn {
	return []keyboard.InlineBtn{
		{Text: "🖼️ Изменить фото", Data: dialog.PhotoReplace},
		{Text: "🗑️ Удалить текущее фото", Data: dialog.PhotoRemove},
		{Text: "➡️ Пропустить", Data: dialog.PhotoSkip},
	}
}

func sectionOptions() []keyboard.InlineBtn {
	out := make([]keyboard.InlineBtn, 0, len(model.SectionKeys))
	for _, key := range model.SectionKeys {
		out = append(out, keyboard.InlineBtn{Text: sectionButtons[key], Data: key})
	}
	return out
}

func productCard(p model.Product) string {
	return fmt.Sprintf("🚪 %s\n\n💰 Цена: %s\n\n📝 %s", p.Name, format.Rub(p.Price), p.Description)
}
