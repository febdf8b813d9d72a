package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/doorshop/core/logger"
	"github.com/m3rciful/doorshop/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/doorshop/core/telegram/helpers"
	"github.com/m3rciful/doorshop/core/telegram/keyboard"
	"github.com/m3rciful/doorshop/core/telegram/state"
	"github.com/m3rciful/doorshop/internal/shop/catalog"
	"github.com/m3rciful/doorshop/internal/shop/dialog"
	"github.com/m3rciful/doorshop/internal/shop/export"
	"github.com/m3rciful/doorshop/internal/shop/model"

	tele "gopkg.in/telebot.v4"
)

func (b *Bot) onAdmin(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	_, chatID := ids(c)
	b.session.PurgeEphemeral(ctx, chatID)
	b.screen(ctx, "admin")
	return b.present(ctx, c, chatID, textAdminPanel, adminKeyboard())
}

// adminResult reports the outcome of an admin action and puts a fresh
// admin panel under the report.
func (b *Bot) adminResult(ctx context.Context, chatID int64, text string) error {
	b.session.PurgeEphemeral(ctx, chatID)
	b.notice(ctx, chatID, text)
	return b.freshMain(ctx, chatID, textAdminPanel, adminKeyboard())
}

func (b *Bot) retryName(ctx context.Context, chatID int64, text string) error {
	return b.sendEphemeral(ctx, chatID, text, keyboard.SingleCancelMarkup(keyCancel))
}

func (b *Bot) completeAddCategory(ctx context.Context, c tele.Context, d state.Dialog) (bool, error) {
	_, chatID := ids(c)
	name := d.String(dialog.FieldName)
	_, err := b.catalog.CreateCategory(ctx, name)
	switch {
	case errors.Is(err, model.ErrDuplicate):
		return true, b.retryName(ctx, chatID, "❌ Категория с таким названием уже существует!")
	case err != nil:
		return false, b.adminResult(ctx, chatID, "❌ Ошибка при добавлении категории!")
	}
	return false, b.adminResult(ctx, chatID, fmt.Sprintf("✅ Категория '%s' успешно добавлена!", name))
}

func (b *Bot) completeAddType(ctx context.Context, c tele.Context, d state.Dialog) (bool, error) {
	_, chatID := ids(c)
	catID, _ := d.Int64(dialog.FieldCategoryID)
	name := d.String(dialog.FieldName)
	_, err := b.catalog.CreateType(ctx, catID, name)
	switch {
	case errors.Is(err, model.ErrDuplicate):
		return true, b.retryName(ctx, chatID, "❌ Тип с таким названием уже существует в этой категории!")
	case errors.Is(err, model.ErrNotFound):
		return false, b.adminResult(ctx, chatID, textNoCategory)
	case err != nil:
		return false, b.adminResult(ctx, chatID, "❌ Ошибка при добавлении типа!")
	}
	return false, b.adminResult(ctx, chatID, fmt.Sprintf("✅ Тип '%s' успешно добавлен в категорию '%s'!", name, d.String(dialog.FieldCategoryName)))
}

// completeAddProduct stores the product with the files downloaded during
// the flow. The files are removed again when the product cannot be saved.
func (b *Bot) completeAddProduct(ctx context.Context, c tele.Context, d state.Dialog) (bool, error) {
	_, chatID := ids(c)
	typeID, _ := d.Int64(dialog.FieldTypeID)
	price, _ := d.Int64(dialog.FieldPrice)
	np := model.NewProduct{
		TypeID:      typeID,
		Name:        d.String(dialog.FieldName),
		Description: d.String(dialog.FieldDescription),
		Price:       price,
	}
	for _, a := range dialog.Attachments(d, dialog.FieldMedia) {
		np.Media = append(np.Media, model.NewMedia{Kind: a.Kind, FileID: a.FileID, FilePath: a.Path})
	}
	if _, err := b.catalog.CreateProduct(ctx, np); err != nil {
		b.discard(ctx, d)
		return false, b.adminResult(ctx, chatID, "❌ Ошибка при сохранении товара!")
	}
	return false, b.adminResult(ctx, chatID, fmt.Sprintf(
		"✅ Товар успешно добавлен!\n\n📁 Категория: %s\n🏷️ Тип: %s\n🚪 Товар: %s\n💰 Цена: %d руб.\n📝 Описание: %s\n🖼️ Медиафайлов: %d",
		d.String(dialog.FieldCategoryName), d.String(dialog.FieldTypeName), np.Name, np.Price, np.Description, len(np.Media)))
}

// completeEditSection applies the photo action; the text was saved when it
// was entered.
func (b *Bot) completeEditSection(ctx context.Context, c tele.Context, d state.Dialog) (bool, error) {
	_, chatID := ids(c)
	key := d.String(dialog.FieldSection)
	switch d.String(dialog.FieldPhotoAction) {
	case dialog.PhotoRemove:
		if _, err := b.catalog.RemoveSectionPhoto(ctx, key); err != nil {
			return false, b.adminResult(ctx, chatID, "❌ Ошибка при удалении фото")
		}
		return false, b.adminResult(ctx, chatID, "✅ Фото удалено! Раздел главного меню обновлен.")
	case dialog.PhotoReplace:
		photo, _ := d.Fields[dialog.FieldPhoto].(dialog.Attachment)
		if err := b.catalog.ReplaceSectionPhoto(ctx, key, photo.Path, photo.FileID); err != nil {
			if photo.Path != "" {
				b.media.Remove(ctx, photo.Path)
			}
			return false, b.adminResult(ctx, chatID, "❌ Ошибка при загрузке фото")
		}
		return false, b.adminResult(ctx, chatID, "✅ Фото обновлено! Раздел главного меню полностью обновлен.")
	default:
		return false, b.adminResult(ctx, chatID, "✅ Раздел главного меню обновлен!")
	}
}

func (b *Bot) onDeleteCategory(c tele.Context) error {
	return b.pickCategory(c, keyDropCategory, "📁 Выберите категорию для удаления:", "❌ Нет категорий для удаления!")
}

func (b *Bot) onDeleteType(c tele.Context) error {
	return b.pickCategory(c, keyDeleteTypeIn, "📁 Выберите категорию:", "❌ Нет категорий для удаления типов!")
}

func (b *Bot) onDeleteProduct(c tele.Context) error {
	return b.pickCategory(c, keyDeleteProductIn, "📁 Выберите категорию:", "❌ Нет категорий для удаления товаров!")
}

func (b *Bot) pickCategory(c tele.Context, key, title, empty string) error {
	ctx := tghelpers.BuildContext(c)
	_, chatID := ids(c)
	cats, err := b.catalog.AllCategories(ctx)
	if err != nil {
		return err
	}
	if len(cats) == 0 {
		return tghelpers.Alert(c, empty)
	}
	b.session.PurgeEphemeral(ctx, chatID)
	return b.showMain(ctx, chatID, title, pickKeyboard(cats, key, categoryLabel, btnBackAdmin))
}

func (b *Bot) onDeleteTypeIn(c tele.Context) error {
	return b.pickType(c, keyDropType, "🏷️ Выберите тип для удаления из категории '%s':",
		keyboard.InlineBtn{Text: "🔙 Назад", Unique: keyDeleteType})
}

func (b *Bot) onDeleteProductIn(c tele.Context) error {
	return b.pickType(c, keyDeleteProductOf, "🏷️ Выберите тип из категории '%s':",
		keyboard.InlineBtn{Text: "🔙 Назад", Unique: keyDeleteProduct})
}

func (b *Bot) pickType(c tele.Context, key, title string, back keyboard.InlineBtn) error {
	catID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return tghelpers.Alert(c, textStale)
	}
	ctx := tghelpers.BuildContext(c)
	_, chatID := ids(c)
	cat, err := b.catalog.Category(ctx, catID)
	if errors.Is(err, model.ErrNotFound) {
		return tghelpers.Alert(c, textNoCategory)
	}
	if err != nil {
		return err
	}
	types, err := b.catalog.AllTypes(ctx, catID)
	if err != nil {
		return err
	}
	if len(types) == 0 {
		return tghelpers.Alert(c, fmt.Sprintf("❌ В категории '%s' нет типов!", cat.Name))
	}
	return b.showMain(ctx, chatID, fmt.Sprintf(title, cat.Name), pickKeyboard(types, key, typeLabel, back))
}

func (b *Bot) onDeleteProductOf(c tele.Context) error {
	typeID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return tghelpers.Alert(c, textStale)
	}
	ctx := tghelpers.BuildContext(c)
	_, chatID := ids(c)
	typ, err := b.catalog.Type(ctx, typeID)
	if errors.Is(err, model.ErrNotFound) {
		return tghelpers.Alert(c, textNoType)
	}
	if err != nil {
		return err
	}
	products, err := b.catalog.AllProducts(ctx, typeID)
	if err != nil {
		return err
	}
	if len(products) == 0 {
		return tghelpers.Alert(c, fmt.Sprintf("❌ В типе '%s' нет товаров!", typ.Name))
	}
	back := keyboard.InlineBtn{Text: "🔙 Назад", Unique: keyDeleteProductIn, Data: callbacks.Payload(typ.CategoryID)}
	return b.showMain(ctx, chatID, fmt.Sprintf("🚪 Выберите товар для удаления из типа '%s':", typ.Name),
		pickKeyboard(products, keyDropProduct, productLabel, back))
}

func (b *Bot) onDropCategory(c tele.Context) error {
	return b.drop(c, b.catalog.DeleteCategory, textNoCategory, "❌ Ошибка при удалении категории!",
		"✅ Категория '%s' и все связанные типы и товары удалены!\n🗑️ Удалено медиафайлов: %d")
}

func (b *Bot) onDropType(c tele.Context) error {
	return b.drop(c, b.catalog.DeleteType, textNoType, "❌ Ошибка при удалении типа!",
		"✅ Тип '%s' и все связанные товары удалены!\n🗑️ Удалено медиафайлов: %d")
}

func (b *Bot) onDropProduct(c tele.Context) error {
	return b.drop(c, b.catalog.DeleteProduct, textNoProduct, "❌ Ошибка при удалении товара!",
		"✅ Товар '%s' и все связанные медиафайлы удалены!\n🗑️ Удалено медиафайлов: %d")
}

// drop runs a cascading delete for the id in the payload. done is a format
// taking the deleted name and the number of removed files.
func (b *Bot) drop(c tele.Context, del func(context.Context, int64) (catalog.Deleted, error), missing, failed, done string) error {
	id, err := callbacks.PayloadInt64(c)
	if err != nil {
		return tghelpers.Alert(c, textStale)
	}
	ctx := tghelpers.BuildContext(c)
	_, chatID := ids(c)
	res, err := del(ctx, id)
	switch {
	case errors.Is(err, model.ErrNotFound):
		return tghelpers.Alert(c, missing)
	case err != nil:
		logger.Error(ctx, logger.CompCatalog, "admin.delete_failed", slog.Int64("id", id), logger.Err(err))
		return tghelpers.Alert(c, failed)
	}
	return b.adminResult(ctx, chatID, fmt.Sprintf(done, res.Name, res.Files))
}

// onOrders lists pending orders, one card each, above a fresh panel that
// offers the workbook export.
func (b *Bot) onOrders(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	_, chatID := ids(c)
	orders, err := b.catalog.PendingOrders(ctx)
	if err != nil {
		return err
	}
	b.screen(ctx, "orders", slog.Int("orders", len(orders)))
	if len(orders) == 0 {
		b.session.PurgeEphemeral(ctx, chatID)
		return b.showMain(ctx, chatID, textNoOrders, keyboard.InlineButtons([]keyboard.InlineBtn{btnBackAdmin}))
	}
	b.session.PurgeAll(ctx, chatID, false)
	for _, o := range orders {
		if err := b.sendEphemeral(ctx, chatID, orderCard(o), orderKeyboard(o.ID)); err != nil {
			return err
		}
	}
	return b.sendMain(ctx, chatID, fmt.Sprintf("📦 Активные заказы: %d", len(orders)), ordersKeyboard())
}

func (b *Bot) onCompleteOrder(c tele.Context) error {
	id, err := callbacks.PayloadInt64(c)
	if err != nil {
		return tghelpers.Alert(c, textStale)
	}
	ctx := tghelpers.BuildContext(c)
	_, chatID := ids(c)
	err = b.catalog.CompleteOrder(ctx, id)
	switch {
	case errors.Is(err, model.ErrNotFound):
		return tghelpers.Alert(c, "❌ Заказ не найден")
	case err != nil:
		return tghelpers.Alert(c, "❌ Ошибка при выполнении заказа")
	}
	if cb := c.Callback(); cb != nil && cb.Message != nil {
		msgID := cb.Message.ID
		b.session.ForgetEphemeral(chatID, msgID)
		err := tghelpers.DispatchOnce(ctx, chatID, "delete.order_card", "deleteMessage", func() error {
			return b.gw.Delete(ctx, chatID, msgID)
		})
		if err != nil {
			logger.Warn(ctx, logger.CompOrders, "order.card_delete_failed", slog.Int64("order_id", id), logger.Err(err))
		}
	}
	return tghelpers.Alert(c, fmt.Sprintf("✅ Заказ #%d выполнен и удален из списка", id))
}

func (b *Bot) onExportOrders(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	_, chatID := ids(c)
	n, err := b.export.SendPending(ctx, chatID)
	switch {
	case errors.Is(err, export.ErrNoOrders):
		return tghelpers.Alert(c, textNoOrders)
	case err != nil:
		logger.Error(ctx, logger.CompExport, "orders.export_failed", logger.Err(err))
		return tghelpers.Alert(c, "❌ Ошибка при выгрузке заказов")
	}
	return tghelpers.Alert(c, fmt.Sprintf("📊 Выгружено заказов: %d", n))
}

func orderCard(o model.OrderWithItems) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📦 Заказ #%d\n👤 Пользователь: %s\n📞 Телефон: %s\n💰 Сумма: %d руб.\n📅 Дата: %s\n🛒 Товары:\n",
		o.ID, o.UserName, o.Phone, o.TotalAmount, o.CreatedAt.Format("02.01.2006 15:04"))
	for _, it := range o.Items {
		fmt.Fprintf(&sb, "• %s - %d руб. x %d\n", it.ProductName, it.ProductPrice, it.Quantity)
	}
	return strings.TrimRight(sb.String(), "\n")
}
