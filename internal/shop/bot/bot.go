// Package bot is the chat surface of the door shop: the navigation
// controller, the dialog handlers and the admin back-office, wired onto the
// core Telegram registry and routers.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/doorshop/core/logger"
	tg "github.com/m3rciful/doorshop/core/telegram"
	"github.com/m3rciful/doorshop/core/telegram/gateway"
	tghelpers "github.com/m3rciful/doorshop/core/telegram/helpers"
	"github.com/m3rciful/doorshop/core/telegram/middleware"
	"github.com/m3rciful/doorshop/core/telegram/router"
	"github.com/m3rciful/doorshop/core/telegram/session"
	"github.com/m3rciful/doorshop/core/telegram/state"
	"github.com/m3rciful/doorshop/core/telegram/ui"
	"github.com/m3rciful/doorshop/internal/shop/cart"
	"github.com/m3rciful/doorshop/internal/shop/catalog"
	"github.com/m3rciful/doorshop/internal/shop/dialog"
	"github.com/m3rciful/doorshop/internal/shop/export"
	"github.com/m3rciful/doorshop/internal/shop/media"

	tele "gopkg.in/telebot.v4"
)

// Deps are the collaborators of a Bot.
type Deps struct {
	Gateway gateway.Gateway
	Session *session.Store
	Dialogs *state.Store
	Catalog *catalog.Service
	Cart    *cart.Service
	Media   *media.Store
	Export  *export.Exporter
	Admin   middleware.AdminOptions
}

// Bot renders screens and runs dialogs for every chat.
type Bot struct {
	gw      gateway.Gateway
	session *session.Store
	dialogs *state.Store
	catalog *catalog.Service
	cart    *cart.Service
	media   *media.Store
	export  *export.Exporter
	admin   middleware.AdminOptions
}

// New constructs a Bot.
func New(d Deps) *Bot {
	return &Bot{
		gw:      d.Gateway,
		session: d.Session,
		dialogs: d.Dialogs,
		catalog: d.Catalog,
		cart:    d.Cart,
		media:   d.Media,
		export:  d.Export,
		admin:   d.Admin,
	}
}

// Register adds the shop commands and callbacks to reg.
func (b *Bot) Register(reg *tg.Registry) error {
	reg.RegisterCommand("/start", tg.Command{Handler: b.onStart, Description: "Главное меню"})
	reg.RegisterCommand("/cart", tg.Command{Handler: b.onCartCommand, Description: "Корзина"})
	reg.RegisterCommand("/cancel", tg.Command{Handler: b.onCancel, Description: "Отменить текущее действие"})
	reg.RegisterCommand("/admin", tg.Command{Handler: b.onAdmin, Description: "Панель администратора", AdminOnly: true, Hidden: true})

	var errs []error
	public := map[string]tele.HandlerFunc{
		keyBackToMain: b.onBackToMain,
		keyCatalog:    b.onCatalog,
		keySection:    b.onSection,
		keyCategory:   b.onCategory,
		keyType:       b.onType,
		keyProduct:    b.onProduct,
		keyCart:       b.onCart,
		keyViewCart:   b.onViewCart,
		keyClearCart:  b.onClearCart,
		keyRemoveLine: b.onRemoveLine,
		keyAddToCart:  b.onAddToCart,
		keyCheckout:   b.onCheckout,
		keyChoose:     b.onChoose,
		keyFinish:     b.onFinish,
		keyCancel:     b.onCancel,
	}
	for key, h := range public {
		errs = append(errs, reg.RegisterCallback(key, h))
	}
	admin := map[string]tele.HandlerFunc{
		keyAdmin:           b.onAdmin,
		keyAddCategory:     b.startFlow(dialog.FlowAddCategory),
		keyAddType:         b.startFlow(dialog.FlowAddType),
		keyAddProduct:      b.startFlow(dialog.FlowAddProduct),
		keyEditSection:     b.startFlow(dialog.FlowEditSection),
		keyDeleteCategory:  b.onDeleteCategory,
		keyDropCategory:    b.onDropCategory,
		keyDeleteType:      b.onDeleteType,
		keyDeleteTypeIn:    b.onDeleteTypeIn,
		keyDropType:        b.onDropType,
		keyDeleteProduct:   b.onDeleteProduct,
		keyDeleteProductIn: b.onDeleteProductIn,
		keyDeleteProductOf: b.onDeleteProductOf,
		keyDropProduct:     b.onDropProduct,
		keyOrders:          b.onOrders,
		keyCompleteOrder:   b.onCompleteOrder,
		keyExportOrders:    b.onExportOrders,
	}
	for key, h := range admin {
		errs = append(errs, reg.RegisterAdminCallback(key, h))
	}
	reg.SetCallbackNotFound(b.UnknownCallback())
	return errors.Join(errs...)
}

// Routes binds the registry and the dialog handler to telebot endpoints.
func (b *Bot) Routes(reg *tg.Registry) []tg.Route {
	admin := b.admin
	admin.OnReject = b.onRejected
	routes := []tg.Route{router.CallbackRoute(reg, router.CallbackOptions{Admin: admin})}
	routes = append(routes, router.CommandRoutes(reg, router.CommandRouteOptions{Admin: admin})...)
	return append(routes, router.MessageRoutes(b, reg, router.MessageOptions{
		UnknownText:  b.UnknownText(),
		UnknownMedia: b.UnknownMedia(),
	})...)
}

// UnknownText answers text that is neither a command nor dialog input.
func (b *Bot) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		_, chatID := ids(c)
		return b.sendEphemeral(tghelpers.BuildContext(c), chatID, textUnknown, nil)
	}
}

// UnknownMedia answers media sent outside a dialog.
func (b *Bot) UnknownMedia() tele.HandlerFunc {
	return b.UnknownText()
}

// UnknownCallback answers buttons that are no longer registered.
func (b *Bot) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.Alert(c, textStale)
	}
}

func (b *Bot) onRejected(c tele.Context) error {
	if c.Callback() != nil {
		return tghelpers.Alert(c, "⛔ У вас нет прав для выполнения этой команды.")
	}
	_, chatID := ids(c)
	return b.sendEphemeral(tghelpers.BuildContext(c), chatID, "⛔ У вас нет прав для выполнения этой команды.", nil)
}

var (
	_ router.Dialog       = (*Bot)(nil)
	_ ui.FallbackProvider = (*Bot)(nil)
)

var ids = tghelpers.IDs

func (b *Bot) isAdmin(userID int64) bool { return b.admin.Allowed(userID) }

// showMain edits the main menu in place, sending and registering a new one
// when the edit is not possible.
func (b *Bot) showMain(ctx context.Context, chatID int64, text string, kb *tele.ReplyMarkup) error {
	if b.session.UpdateMainMenu(ctx, chatID, text, kb) {
		return nil
	}
	return b.sendMain(ctx, chatID, text, kb)
}

// freshMain replaces every tracked message with a new main menu at the
// bottom of the chat.
func (b *Bot) freshMain(ctx context.Context, chatID int64, text string, kb *tele.ReplyMarkup) error {
	b.session.PurgeAll(ctx, chatID, false)
	return b.sendMain(ctx, chatID, text, kb)
}

func (b *Bot) sendMain(ctx context.Context, chatID int64, text string, kb *tele.ReplyMarkup) error {
	id, err := b.gw.SendText(ctx, chatID, text, kb)
	if err != nil {
		return fmt.Errorf("send main menu: %w", err)
	}
	b.session.RegisterMainMenu(chatID, id)
	return nil
}

func (b *Bot) sendEphemeral(ctx context.Context, chatID int64, text string, kb *tele.ReplyMarkup) error {
	id, err := b.gw.SendText(ctx, chatID, text, kb)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	b.session.RegisterEphemeral(chatID, id)
	return nil
}

// notice sends a message that outlives navigation, such as a result report.
func (b *Bot) notice(ctx context.Context, chatID int64, text string) {
	if _, err := b.gw.SendText(ctx, chatID, text, nil); err != nil {
		logger.Warn(ctx, logger.CompNavigate, "notice.failed", logger.Err(err))
	}
}

func (b *Bot) screen(ctx context.Context, name string, attrs ...slog.Attr) {
	logger.Debug(ctx, logger.CompNavigate, "screen", append([]slog.Attr{slog.String("screen", name)}, attrs...)...)
}
