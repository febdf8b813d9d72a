package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/doorshop/core/logger"
	"github.com/m3rciful/doorshop/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/doorshop/core/telegram/helpers"
	"github.com/m3rciful/doorshop/core/telegram/keyboard"
	"github.com/m3rciful/doorshop/core/telegram/state"
	"github.com/m3rciful/doorshop/internal/shop/dialog"
	"github.com/m3rciful/doorshop/internal/shop/media"
	"github.com/m3rciful/doorshop/internal/shop/model"

	tele "gopkg.in/telebot.v4"
)

// mediaDocument marks an attachment that is neither photo nor video.
const mediaDocument model.MediaKind = "document"

// InProgress reports whether the user is inside a flow.
func (b *Bot) InProgress(userID int64) bool {
	return b.dialogs.InProgress(userID)
}

// Handle feeds a text or media message to the user's dialog.
func (b *Bot) Handle(c tele.Context) error {
	msg := c.Message()
	if msg == nil {
		return nil
	}
	in := dialog.Text(msg.Text)
	switch {
	case msg.Photo != nil:
		in = dialog.MediaInput(dialog.Attachment{Kind: model.MediaPhoto, FileID: msg.Photo.FileID, MessageID: msg.ID})
	case msg.Video != nil:
		in = dialog.MediaInput(dialog.Attachment{Kind: model.MediaVideo, FileID: msg.Video.FileID, MessageID: msg.ID})
	case msg.Document != nil:
		in = dialog.MediaInput(dialog.Attachment{Kind: mediaDocument, FileID: msg.Document.FileID, MessageID: msg.ID})
	}
	return b.feed(c, in)
}

func (b *Bot) onChoose(c tele.Context) error {
	return b.feedCallback(c, dialog.Choice(callbacks.CallbackPayload(c)))
}

func (b *Bot) onFinish(c tele.Context) error {
	return b.feedCallback(c, dialog.Finish())
}

func (b *Bot) feedCallback(c tele.Context, in dialog.Input) error {
	userID, _ := ids(c)
	if !b.dialogs.InProgress(userID) {
		return tghelpers.Alert(c, textStale)
	}
	return b.feed(c, in)
}

// feed runs one transition of the user's dialog and the side effects that
// follow it. Media is downloaded only once the step has accepted it.
func (b *Bot) feed(c tele.Context, in dialog.Input) error {
	ctx := tghelpers.BuildContext(c)
	userID, chatID := ids(c)
	d, ok := b.dialogs.Get(userID)
	if !ok {
		return nil
	}
	flow, ok := dialog.Lookup(d.Flow)
	if !ok {
		b.dialogs.Clear(userID)
		return fmt.Errorf("%w: %s", dialog.ErrUnknownFlow, d.Flow)
	}
	if adminFlow(flow.Name) && !b.isAdmin(userID) {
		b.dropDialog(ctx, userID)
		logger.Warn(ctx, logger.CompDialog, "dialog.admin_reject", slog.String("flow", flow.Name))
		return b.onRejected(c)
	}

	res := dialog.Advance(flow, d, in)
	if res.Outcome != dialog.Rejected && in.Kind == dialog.ExpectMedia {
		path, err := b.media.Save(ctx, mediaFolder(flow.Name), media.Upload{
			Kind:      in.Media.Kind,
			FileID:    in.Media.FileID,
			MessageID: in.Media.MessageID,
		})
		if err != nil {
			kb, _ := b.stepKeyboard(ctx, res.Step, d)
			return b.sendEphemeral(ctx, chatID, textMediaFailed, kb)
		}
		in.Media.Path = path
		res = dialog.Advance(flow, d, in)
	}
	logger.Debug(ctx, logger.CompDialog, "dialog.step",
		slog.String("flow", flow.Name),
		slog.String("step", res.Step.Name),
		slog.String("outcome", res.Outcome.String()),
	)

	switch res.Outcome {
	case dialog.Rejected:
		return b.reject(ctx, userID, chatID, flow, d, res.Err)
	case dialog.Stayed:
		b.dialogs.Put(userID, res.Dialog)
		b.session.PurgeEphemeral(ctx, chatID)
		n := len(dialog.Attachments(res.Dialog, res.Step.Field))
		return b.sendEphemeral(ctx, chatID, fmt.Sprintf("✅ Медиафайл добавлен! Всего файлов: %d", n), mediaStepKeyboard())
	}

	next := res.Dialog
	if abort := b.accepted(ctx, flow.Name, res.Step, &next); abort != "" {
		b.dropDialog(ctx, userID)
		return b.adminResult(ctx, chatID, abort)
	}
	if res.Outcome == dialog.Advanced {
		b.dialogs.Put(userID, next)
		return b.prompt(ctx, chatID, flow, next, true)
	}

	retry, err := b.complete(ctx, c, flow.Name, next)
	if !retry {
		b.dialogs.Clear(userID)
		logger.Info(ctx, logger.CompDialog, "dialog.complete",
			slog.String("flow", flow.Name),
			slog.String("status", logger.Status(err)),
			logger.Err(err),
		)
	}
	return err
}

// reject answers an input the step did not accept; the dialog stays as is.
func (b *Bot) reject(ctx context.Context, userID, chatID int64, flow dialog.Flow, d state.Dialog, err error) error {
	var ve *dialog.ValidationError
	if !errors.As(err, &ve) {
		b.dropDialog(ctx, userID)
		return err
	}
	if ve.Message == "" {
		return b.prompt(ctx, chatID, flow, d, true)
	}
	step, _ := flow.Current(d)
	kb, kerr := b.stepKeyboard(ctx, step, d)
	if kerr != nil {
		return kerr
	}
	return b.sendEphemeral(ctx, chatID, ve.Message, kb)
}

// accepted runs the lookups and checkpoints that follow an accepted step,
// storing what later prompts need in d. A non-empty result aborts the flow
// with that message.
func (b *Bot) accepted(ctx context.Context, flow string, step dialog.Step, d *state.Dialog) string {
	switch step.Name {
	case dialog.StepCategory:
		id, _ := d.Int64(dialog.FieldCategoryID)
		cat, err := b.catalog.Category(ctx, id)
		if err != nil {
			return textNoCategory
		}
		d.Fields[dialog.FieldCategoryName] = cat.Name
		if flow != dialog.FlowAddProduct {
			return ""
		}
		types, err := b.catalog.AllTypes(ctx, id)
		if err != nil || len(types) == 0 {
			return fmt.Sprintf("❌ В категории '%s' нет типов! Сначала создайте тип.", cat.Name)
		}
	case dialog.StepType:
		id, _ := d.Int64(dialog.FieldTypeID)
		catID, _ := d.Int64(dialog.FieldCategoryID)
		t, err := b.catalog.Type(ctx, id)
		if err != nil || t.CategoryID != catID {
			return textNoType
		}
		d.Fields[dialog.FieldTypeName] = t.Name
	case dialog.StepSection:
		sec, err := b.catalog.Section(ctx, d.String(dialog.FieldSection))
		if err != nil {
			return "❌ Раздел не найден в базе данных"
		}
		d.Fields[dialog.FieldTitle] = sec.Title
		d.Fields[dialog.FieldContent] = sec.Content
		d.Fields[dialog.FieldHasPhoto] = sec.HasPhoto()
	}
	if step.Checkpoint && flow == dialog.FlowEditSection {
		if err := b.catalog.UpdateSectionText(ctx, d.String(dialog.FieldSection), d.String(dialog.FieldText)); err != nil {
			return "❌ Ошибка при обновлении текста"
		}
	}
	return ""
}

// complete runs the action of a finished flow. retry keeps the stored
// dialog on its last step so the user can correct the input.
func (b *Bot) complete(ctx context.Context, c tele.Context, flow string, d state.Dialog) (retry bool, err error) {
	switch flow {
	case dialog.FlowAddCategory:
		return b.completeAddCategory(ctx, c, d)
	case dialog.FlowAddType:
		return b.completeAddType(ctx, c, d)
	case dialog.FlowAddProduct:
		return b.completeAddProduct(ctx, c, d)
	case dialog.FlowEditSection:
		return b.completeEditSection(ctx, c, d)
	case dialog.FlowCartAdd:
		return b.completeCartAdd(ctx, c, d)
	case dialog.FlowCheckout:
		return b.completeCheckout(ctx, c, d)
	}
	return false, fmt.Errorf("%w: %s", dialog.ErrUnknownFlow, flow)
}

// prompt asks the question of the dialog's current step as an ephemeral
// message. purge clears the earlier ephemeral messages first.
func (b *Bot) prompt(ctx context.Context, chatID int64, flow dialog.Flow, d state.Dialog, purge bool) error {
	step, ok := flow.Current(d)
	if !ok {
		return fmt.Errorf("%w: %s step %d", dialog.ErrUnknownFlow, flow.Name, d.Step)
	}
	kb, err := b.stepKeyboard(ctx, step, d)
	if err != nil {
		return err
	}
	if purge {
		b.session.PurgeEphemeral(ctx, chatID)
	}
	return b.sendEphemeral(ctx, chatID, step.Prompt(d), kb)
}

// stepKeyboard offers the choices of a step, the finish button of the media
// loop and always a cancel button.
func (b *Bot) stepKeyboard(ctx context.Context, step dialog.Step, d state.Dialog) (*tele.ReplyMarkup, error) {
	switch step.Name {
	case dialog.StepCategory:
		cats, err := b.catalog.AllCategories(ctx)
		return choiceKeyboard(options(cats, categoryLabel)), err
	case dialog.StepType:
		catID, _ := d.Int64(dialog.FieldCategoryID)
		types, err := b.catalog.AllTypes(ctx, catID)
		return choiceKeyboard(options(types, typeLabel)), err
	case dialog.StepSection:
		return choiceKeyboard(sectionOptions()), nil
	case dialog.StepPhotoAction:
		return choiceKeyboard(photoActionOptions()), nil
	}
	if step.Repeat {
		return mediaStepKeyboard(), nil
	}
	return keyboard.SingleCancelMarkup(keyCancel), nil
}

// startFlow opens an admin flow from the panel.
func (b *Bot) startFlow(name string) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		userID, chatID := ids(c)
		flow, ok := dialog.Lookup(name)
		if !ok {
			return fmt.Errorf("%w: %s", dialog.ErrUnknownFlow, name)
		}
		if name == dialog.FlowAddType || name == dialog.FlowAddProduct {
			cats, err := b.catalog.AllCategories(ctx)
			if err != nil {
				return err
			}
			if len(cats) == 0 {
				return tghelpers.Alert(c, textNoCategories)
			}
		}
		d := b.begin(ctx, userID, chatID, name, nil)
		return b.prompt(ctx, chatID, flow, d, true)
	}
}

// begin starts flow for the user, replacing any running one.
func (b *Bot) begin(ctx context.Context, userID, chatID int64, flow string, fields map[string]any) state.Dialog {
	if prev, ok := b.dialogs.Get(userID); ok {
		b.discard(ctx, prev)
	}
	return b.dialogs.Start(ctx, userID, chatID, flow, fields)
}

// dropDialog ends the user's dialog without running its action.
func (b *Bot) dropDialog(ctx context.Context, userID int64) (state.Dialog, bool) {
	d, ok := b.dialogs.Clear(userID)
	if ok {
		b.discard(ctx, d)
		logger.Debug(ctx, logger.CompDialog, "dialog.dropped",
			slog.String("flow", d.Flow),
			slog.Int("step", d.Step),
		)
	}
	return d, ok
}

// discard removes files downloaded by an unfinished flow.
func (b *Bot) discard(ctx context.Context, d state.Dialog) {
	if paths := dialog.Paths(d, dialog.FieldMedia); len(paths) > 0 {
		b.media.Remove(ctx, paths...)
	}
}

// onCancel leaves the running dialog and returns to the screen it was
// started from.
func (b *Bot) onCancel(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	userID, chatID := ids(c)
	d, ok := b.dropDialog(ctx, userID)
	if !ok {
		if c.Callback() != nil {
			return tghelpers.Alert(c, textStale)
		}
		return b.freshMain(ctx, chatID, textWelcome, startKeyboard(b.isAdmin(userID)))
	}
	logger.Info(ctx, logger.CompDialog, "dialog.cancel",
		slog.String("flow", d.Flow),
		slog.Int("step", d.Step),
	)

	switch d.Flow {
	case dialog.FlowCartAdd:
		productID, _ := d.Int64(dialog.FieldProductID)
		page, _ := d.Int64(dialog.FieldPage)
		return b.showProduct(ctx, c, chatID, productID, int(page))
	case dialog.FlowCheckout:
		b.session.PurgeEphemeral(ctx, chatID)
		return b.present(ctx, c, chatID, textCartMenu, cartMenuKeyboard())
	default:
		b.session.PurgeEphemeral(ctx, chatID)
		return b.present(ctx, c, chatID, textAdminPanel, adminKeyboard())
	}
}

// present shows a menu in place for button presses and as a new message
// at the bottom of the chat for typed commands.
func (b *Bot) present(ctx context.Context, c tele.Context, chatID int64, text string, kb *tele.ReplyMarkup) error {
	if c.Callback() != nil {
		return b.showMain(ctx, chatID, text, kb)
	}
	return b.freshMain(ctx, chatID, text, kb)
}

func adminFlow(name string) bool {
	return name != dialog.FlowCartAdd && name != dialog.FlowCheckout
}

func mediaFolder(flow string) string {
	if flow == dialog.FlowEditSection {
		return media.Sections
	}
	return media.Products
}

func options[T any](items []T, label func(T) (int64, string)) []keyboard.InlineBtn {
	out := make([]keyboard.InlineBtn, len(items))
	for i, it := range items {
		id, text := label(it)
		out[i] = keyboard.InlineBtn{Text: text, Data: fmt.Sprint(id)}
	}
	return out
}
