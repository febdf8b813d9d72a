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
	"github.com/m3rciful/doorshop/core/telegram/state"
	"github.com/m3rciful/doorshop/internal/shop/cart"
	"github.com/m3rciful/doorshop/internal/shop/dialog"
	"github.com/m3rciful/doorshop/internal/shop/model"

	tele "gopkg.in/telebot.v4"
)

func (b *Bot) onCart(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	_, chatID := ids(c)
	b.session.PurgeEphemeral(ctx, chatID)
	b.screen(ctx, "cart_menu")
	return b.showMain(ctx, chatID, textCartMenu, cartMenuKeyboard())
}

func (b *Bot) onCartCommand(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	_, chatID := ids(c)
	b.screen(ctx, "cart_menu")
	return b.freshMain(ctx, chatID, textCartMenu, cartMenuKeyboard())
}

func (b *Bot) onViewCart(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	userID, chatID := ids(c)
	receipt, err := b.cart.View(ctx, userID)
	if err != nil {
		return err
	}
	if receipt.Empty() {
		return tghelpers.Alert(c, textCartEmpty)
	}
	return b.showReceipt(ctx, chatID, receipt)
}

// showReceipt replaces the ephemeral messages with one card per cart line
// and the summary card.
func (b *Bot) showReceipt(ctx context.Context, chatID int64, receipt cart.Receipt) error {
	b.session.PurgeEphemeral(ctx, chatID)
	b.screen(ctx, "cart_view", slog.Int("lines", len(receipt.Lines)), slog.Int64("total", receipt.Total()))
	for card := range receipt.Cards() {
		kb := cartSummaryKeyboard()
		if !card.Summary {
			kb = cartLineKeyboard(card.LineID)
		}
		if card.Media != nil {
			id, err := b.gw.SendMedia(ctx, chatID, *card.Media, card.Text, kb)
			if err == nil {
				b.session.RegisterEphemeral(chatID, id)
				continue
			}
			logger.Warn(ctx, logger.CompNavigate, "cart.media_failed", slog.Int64("line_id", card.LineID), logger.Err(err))
		}
		if err := b.sendEphemeral(ctx, chatID, card.Text, kb); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) onRemoveLine(c tele.Context) error {
	lineID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return tghelpers.Alert(c, textStale)
	}
	ctx := tghelpers.BuildContext(c)
	userID, chatID := ids(c)
	name, err := b.cart.Remove(ctx, userID, lineID)
	if errors.Is(err, model.ErrNotFound) {
		return tghelpers.Alert(c, textNoLine)
	}
	if err != nil {
		return err
	}
	_ = tghelpers.Alert(c, fmt.Sprintf("✅ %s удален из корзины", name))

	receipt, err := b.cart.View(ctx, userID)
	if err != nil {
		return err
	}
	if receipt.Empty() {
		b.session.PurgeEphemeral(ctx, chatID)
		return b.showMain(ctx, chatID, textCartMenu, cartMenuKeyboard())
	}
	return b.showReceipt(ctx, chatID, receipt)
}

func (b *Bot) onClearCart(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	userID, chatID := ids(c)
	if _, err := b.cart.Clear(ctx, userID); err != nil {
		return err
	}
	_ = tghelpers.Alert(c, textCartCleared)
	b.session.PurgeEphemeral(ctx, chatID)
	return b.showMain(ctx, chatID, textCartMenu, cartMenuKeyboard())
}

// onAddToCart opens the quantity dialog for a product.
func (b *Bot) onAddToCart(c tele.Context) error {
	args, err := callbacks.PayloadInt64s(c, 2)
	if err != nil {
		return tghelpers.Alert(c, textStale)
	}
	ctx := tghelpers.BuildContext(c)
	userID, chatID := ids(c)
	p, _, err := b.catalog.Product(ctx, args[0])
	if errors.Is(err, model.ErrNotFound) {
		return tghelpers.Alert(c, textNoProduct)
	}
	if err != nil {
		return err
	}
	d := b.begin(ctx, userID, chatID, dialog.FlowCartAdd, map[string]any{
		dialog.FieldProductID:    p.ID,
		dialog.FieldProductName:  p.Name,
		dialog.FieldProductPrice: p.Price,
		dialog.FieldTypeID:       p.TypeID,
		dialog.FieldPage:         args[1],
	})
	return b.prompt(ctx, chatID, dialog.CartAdd, d, false)
}

func (b *Bot) onCheckout(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	userID, chatID := ids(c)
	snap, err := b.cart.Checkout(ctx, userID)
	if errors.Is(err, model.ErrEmptyCart) {
		return tghelpers.Alert(c, textNothingToBuy)
	}
	if err != nil {
		return err
	}
	d := b.begin(ctx, userID, chatID, dialog.FlowCheckout, map[string]any{dialog.FieldCart: snap})
	return b.prompt(ctx, chatID, dialog.Checkout, d, true)
}

// completeCartAdd stores the entered quantity in the cart.
func (b *Bot) completeCartAdd(ctx context.Context, c tele.Context, d state.Dialog) (bool, error) {
	userID, chatID := ids(c)
	productID, _ := d.Int64(dialog.FieldProductID)
	qty, _ := d.Int64(dialog.FieldQuantity)
	line, err := b.cart.Add(ctx, userID, productID, int(qty))
	switch {
	case errors.Is(err, model.ErrNotFound):
		return false, b.sendEphemeral(ctx, chatID, textNoProduct, nil)
	case err != nil:
		return false, b.sendEphemeral(ctx, chatID, textAddFailed, nil)
	}

	typeID, _ := d.Int64(dialog.FieldTypeID)
	page, _ := d.Int64(dialog.FieldPage)
	price, _ := d.Int64(dialog.FieldProductPrice)
	text := fmt.Sprintf("✅ %s добавлен в корзину!\n📦 Количество: %d шт.\n💰 Сумма: %d руб.",
		d.String(dialog.FieldProductName), qty, price*qty)
	b.session.PurgeEphemeral(ctx, chatID)
	logger.Debug(ctx, logger.CompCart, "cart.add.done", slog.Int64("line_id", line.ID), slog.Int("line_qty", line.Quantity))
	return false, b.sendEphemeral(ctx, chatID, text, afterCartKeyboard(typeID, int(page)))
}

// completeCheckout turns the snapshot taken when checkout began into an
// order, confirms it and puts a fresh main menu under the confirmation.
func (b *Bot) completeCheckout(ctx context.Context, c tele.Context, d state.Dialog) (bool, error) {
	userID, chatID := ids(c)
	snap, _ := d.Fields[dialog.FieldCart].(cart.Snapshot)
	order, err := b.cart.Finalize(ctx, customer(c, userID, chatID), d.String(dialog.FieldPhone), snap)
	if err != nil {
		return false, b.sendEphemeral(ctx, chatID, textOrderFailed, nil)
	}
	b.session.PurgeEphemeral(ctx, chatID)
	b.notice(ctx, chatID, cart.Confirmation(order))
	return false, b.freshMain(ctx, chatID, textWelcome, startKeyboard(b.isAdmin(userID)))
}

func customer(c tele.Context, userID, chatID int64) model.Customer {
	cust := model.Customer{UserID: userID, ChatID: chatID}
	if u := c.Sender(); u != nil {
		cust.Name = strings.TrimSpace(u.FirstName + " " + u.LastName)
		if cust.Name == "" {
			cust.Name = u.Username
		}
	}
	return cust
}
