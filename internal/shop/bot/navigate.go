package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/m3rciful/doorshop/core/logger"
	"github.com/m3rciful/doorshop/core/telegram/callbacks"
	"github.com/m3rciful/doorshop/core/telegram/format"
	"github.com/m3rciful/doorshop/core/telegram/gateway"
	tghelpers "github.com/m3rciful/doorshop/core/telegram/helpers"
	"github.com/m3rciful/doorshop/core/telegram/keyboard"
	"github.com/m3rciful/doorshop/internal/shop/media"
	"github.com/m3rciful/doorshop/internal/shop/model"

	tele "gopkg.in/telebot.v4"
)

// maxAlbum is the largest media group Telegram accepts.
const maxAlbum = 10

// onStart drops any dialog and every tracked message, then sends a fresh
// main menu.
func (b *Bot) onStart(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	userID, chatID := ids(c)
	b.dropDialog(ctx, userID)
	b.screen(ctx, "start")
	return b.freshMain(ctx, chatID, textWelcome, startKeyboard(b.isAdmin(userID)))
}

func (b *Bot) onBackToMain(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	userID, chatID := ids(c)
	return b.showStart(ctx, userID, chatID)
}

func (b *Bot) showStart(ctx context.Context, userID, chatID int64) error {
	b.session.PurgeEphemeral(ctx, chatID)
	b.screen(ctx, "start")
	return b.showMain(ctx, chatID, textWelcome, startKeyboard(b.isAdmin(userID)))
}

func (b *Bot) onCatalog(c tele.Context) error {
	page, _ := callbacks.PayloadInt(c)
	ctx := tghelpers.BuildContext(c)
	userID, chatID := ids(c)
	return b.showCatalog(ctx, userID, chatID, page)
}

func (b *Bot) showCatalog(ctx context.Context, userID, chatID int64, index int) error {
	b.session.PurgeEphemeral(ctx, chatID)
	list, err := b.catalog.Categories(ctx, index)
	if err != nil {
		return err
	}
	b.screen(ctx, "catalog", slog.Int("page", list.Page.Index), slog.Int("items", len(list.Items)))
	if list.Empty() {
		return b.showMain(ctx, chatID, textCatalogEmpty, startKeyboard(b.isAdmin(userID)))
	}
	btns := make([]keyboard.InlineBtn, len(list.Items))
	for i, cat := range list.Items {
		btns[i] = keyboard.InlineBtn{Text: "📁 " + cat.Name, Unique: keyCategory, Data: callbacks.Payload(cat.ID, 0)}
	}
	kb := listKeyboard(btns, list.Page, keyCatalog, func(p int) string { return callbacks.Payload(int64(p)) }, btnBack)
	return b.showMain(ctx, chatID, "📁 Выберите категорию:\n\n"+pageLabel(list.Page), kb)
}

func (b *Bot) onCategory(c tele.Context) error {
	args, err := callbacks.PayloadInt64s(c, 2)
	if err != nil {
		return tghelpers.Alert(c, textStale)
	}
	ctx := tghelpers.BuildContext(c)
	userID, chatID := ids(c)
	b.session.PurgeEphemeral(ctx, chatID)
	cat, list, err := b.catalog.Types(ctx, args[0], int(args[1]))
	if errors.Is(err, model.ErrNotFound) {
		_ = tghelpers.Alert(c, textNoCategory)
		return b.showCatalog(ctx, userID, chatID, 0)
	}
	if err != nil {
		return err
	}
	b.screen(ctx, "category_types", slog.Int64("category_id", cat.ID), slog.Int("page", list.Page.Index))
	if list.Empty() {
		return b.showMain(ctx, chatID, fmt.Sprintf("📁 В категории '%s' пока нет типов", cat.Name), startKeyboard(b.isAdmin(userID)))
	}
	btns := make([]keyboard.InlineBtn, len(list.Items))
	for i, t := range list.Items {
		btns[i] = keyboard.InlineBtn{Text: "🏷️ " + t.Name, Unique: keyType, Data: callbacks.Payload(t.ID, 0)}
	}
	back := keyboard.InlineBtn{Text: "🔙 Назад", Unique: keyCatalog, Data: "0"}
	kb := listKeyboard(btns, list.Page, keyCategory, func(p int) string { return callbacks.Payload(cat.ID, int64(p)) }, back)
	return b.showMain(ctx, chatID, fmt.Sprintf("🏷️ Типы в категории '%s':\n\n%s", cat.Name, pageLabel(list.Page)), kb)
}

func (b *Bot) onType(c tele.Context) error {
	args, err := callbacks.PayloadInt64s(c, 2)
	if err != nil {
		return tghelpers.Alert(c, textStale)
	}
	ctx := tghelpers.BuildContext(c)
	userID, chatID := ids(c)
	return b.showType(ctx, c, userID, chatID, args[0], int(args[1]))
}

func (b *Bot) showType(ctx context.Context, c tele.Context, userID, chatID, typeID int64, index int) error {
	b.session.PurgeEphemeral(ctx, chatID)
	typ, list, err := b.catalog.Products(ctx, typeID, index)
	if errors.Is(err, model.ErrNotFound) {
		_ = tghelpers.Alert(c, textNoType)
		return b.showCatalog(ctx, userID, chatID, 0)
	}
	if err != nil {
		return err
	}
	b.screen(ctx, "type_products", slog.Int64("type_id", typ.ID), slog.Int("page", list.Page.Index))
	if list.Empty() {
		return b.showMain(ctx, chatID, fmt.Sprintf("🚪 В типе '%s' пока нет товаров", typ.Name), startKeyboard(b.isAdmin(userID)))
	}
	btns := make([]keyboard.InlineBtn, len(list.Items))
	for i, p := range list.Items {
		id, label := productLabel(p)
		btns[i] = keyboard.InlineBtn{Text: label, Unique: keyProduct, Data: callbacks.Payload(id, int64(list.Page.Index))}
	}
	back := keyboard.InlineBtn{Text: "🔙 Назад", Unique: keyCategory, Data: callbacks.Payload(typ.CategoryID, 0)}
	kb := listKeyboard(btns, list.Page, keyType, func(p int) string { return callbacks.Payload(typ.ID, int64(p)) }, back)
	return b.showMain(ctx, chatID, fmt.Sprintf("🚪 Товары в типе '%s':\n\n%s", typ.Name, pageLabel(list.Page)), kb)
}

func (b *Bot) onProduct(c tele.Context) error {
	args, err := callbacks.PayloadInt64s(c, 2)
	if err != nil {
		return tghelpers.Alert(c, textStale)
	}
	ctx := tghelpers.BuildContext(c)
	_, chatID := ids(c)
	return b.showProduct(ctx, c, chatID, args[0], int(args[1]))
}

// showProduct renders a product as ephemeral messages under the main menu:
// a captioned photo or video for one file, an album followed by the card
// for several, the bare card without media.
func (b *Bot) showProduct(ctx context.Context, c tele.Context, chatID, productID int64, page int) error {
	p, files, err := b.catalog.Product(ctx, productID)
	if errors.Is(err, model.ErrNotFound) {
		return tghelpers.Alert(c, textNoProduct)
	}
	if err != nil {
		return err
	}
	b.session.PurgeEphemeral(ctx, chatID)
	b.screen(ctx, "product_detail", slog.Int64("product_id", p.ID), slog.Int("media", len(files)))

	text, kb := productCard(p), productKeyboard(p, page)
	refs := make([]gateway.Media, len(files))
	for i, f := range files {
		refs[i] = media.Ref(f)
	}
	switch len(refs) {
	case 0:
	case 1:
		id, err := b.gw.SendMedia(ctx, chatID, refs[0], text, kb)
		if err == nil {
			b.session.RegisterEphemeral(chatID, id)
			return nil
		}
		logger.Warn(ctx, logger.CompNavigate, "product.media_failed", slog.Int64("product_id", p.ID), logger.Err(err))
	default:
		for album := range slices.Chunk(refs, maxAlbum) {
			msgIDs, err := b.gw.SendMediaGroup(ctx, chatID, album)
			if err != nil {
				logger.Warn(ctx, logger.CompNavigate, "product.album_failed", slog.Int64("product_id", p.ID), logger.Err(err))
				break
			}
			b.session.RegisterEphemeral(chatID, msgIDs...)
		}
	}
	return b.sendEphemeral(ctx, chatID, text, kb)
}

func (b *Bot) onSection(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	userID, chatID := ids(c)
	key := callbacks.CallbackPayload(c)
	b.session.PurgeEphemeral(ctx, chatID)
	kb := startKeyboard(b.isAdmin(userID))

	sec, err := b.catalog.Section(ctx, key)
	if err != nil {
		logger.Warn(ctx, logger.CompNavigate, "section.unavailable", slog.String("section", key), logger.Err(err))
		return b.showMain(ctx, chatID, textUnavailable, kb)
	}
	b.screen(ctx, "section", slog.String("section", key), slog.Bool("photo", sec.HasPhoto()))
	if !sec.HasPhoto() {
		return b.showMain(ctx, chatID, sec.Content, kb)
	}

	photo := gateway.Media{
		Kind:   gateway.Photo,
		FileID: format.DerefString(sec.FileID, ""),
		Path:   format.DerefString(sec.PhotoPath, ""),
	}
	b.session.PurgeAll(ctx, chatID, false)
	id, err := b.gw.SendMedia(ctx, chatID, photo, sec.Content, kb)
	if err != nil {
		logger.Warn(ctx, logger.CompNavigate, "section.photo_failed", slog.String("section", key), logger.Err(err))
		return b.sendMain(ctx, chatID, sec.Content, kb)
	}
	b.session.RegisterMediaMainMenu(chatID, id)
	return nil
}
