package dialog

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/m3rciful/doorshop/core/telegram/state"
	"github.com/m3rciful/doorshop/internal/shop/model"
)

// Flow names.
const (
	FlowAddCategory = "add_category"
	FlowAddType     = "add_type"
	FlowAddProduct  = "add_product"
	FlowEditSection = "edit_section"
	FlowCartAdd     = "cart_add"
	FlowCheckout    = "checkout"
)

// Step names.
const (
	StepName        = "name"
	StepCategory    = "category"
	StepType        = "type"
	StepDescription = "description"
	StepPrice       = "price"
	StepMedia       = "media"
	StepSection     = "section"
	StepText        = "text"
	StepPhotoAction = "photo_action"
	StepPhoto       = "photo"
	StepQuantity    = "quantity"
	StepPhone       = "phone"
)

// Captured field keys. Keys without a step are context stored by the
// caller when the flow starts or a choice is made.
const (
	FieldName         = "name"
	FieldCategoryID   = "category_id"
	FieldCategoryName = "category_name"
	FieldTypeID       = "type_id"
	FieldTypeName     = "type_name"
	FieldDescription  = "description"
	FieldPrice        = "price"
	FieldMedia        = "media"
	FieldSection      = "section"
	FieldTitle        = "title"
	FieldContent      = "content"
	FieldHasPhoto     = "has_photo"
	FieldText         = "text"
	FieldPhotoAction  = "photo_action"
	FieldPhoto        = "photo"
	FieldProductID    = "product_id"
	FieldProductName  = "product_name"
	FieldProductPrice = "product_price"
	FieldPage         = "page"
	FieldQuantity     = "quantity"
	FieldPhone        = "phone"
	FieldCart         = "cart"
)

// Photo actions of the edit-section flow.
const (
	PhotoReplace = "replace"
	PhotoRemove  = "remove"
	PhotoSkip    = "skip"
)

const (
	msgMediaOnly = "❌ Поддерживаются только фото и видео!"
	msgPhotoOnly = "❌ Отправьте фото!"
	msgNoMedia   = "❌ Вы не добавили ни одного медиафайла! Добавьте хотя бы один."
	msgEmptyText = "❌ Текст не может быть пустым!"
)

var flows = map[string]Flow{}

func register(f Flow) Flow {
	flows[f.Name] = f
	return f
}

// Lookup returns the registered flow by name.
func Lookup(name string) (Flow, bool) {
	f, ok := flows[name]
	return f, ok
}

var (
	// AddCategory asks for a new category name.
	AddCategory = register(Flow{Name: FlowAddCategory, Steps: []Step{
		nameStep("📝 Введите название новой категории:"),
	}})

	// AddType picks a category and asks for the type name.
	AddType = register(Flow{Name: FlowAddType, Steps: []Step{
		choiceID(StepCategory, FieldCategoryID, "📁 Выберите категорию для нового типа:"),
		nameStep("🏷️ Введите название нового типа:"),
	}})

	// AddProduct collects a full product with at least one media file.
	AddProduct = register(Flow{Name: FlowAddProduct, Steps: []Step{
		choiceID(StepCategory, FieldCategoryID, "📁 Выберите категорию для товара:"),
		{
			Name:   StepType,
			Expect: ExpectChoice,
			Field:  FieldTypeID,
			Prompt: func(d state.Dialog) string {
				return fmt.Sprintf("🏷️ Выберите тип в категории '%s':", d.String(FieldCategoryName))
			},
			Parse: parseID,
		},
		nameStep("🚪 Введите название товара:"),
		{
			Name:     StepDescription,
			Expect:   ExpectText,
			Field:    FieldDescription,
			Prompt:   static("📝 Введите описание товара:"),
			Parse:    parseNonEmpty,
			Mismatch: msgEmptyText,
		},
		{
			Name:   StepPrice,
			Expect: ExpectText,
			Field:  FieldPrice,
			Prompt: static("💰 Введите цену товара в рублях (только число):"),
			Parse:  parsePrice,
		},
		{
			Name:     StepMedia,
			Expect:   ExpectMedia,
			Field:    FieldMedia,
			Prompt:   static("🖼️ Теперь отправьте фото или видео товара.\nМожно отправить несколько файлов.\nКогда закончите, нажмите кнопку ниже:"),
			Parse:    parseMedia,
			Mismatch: msgMediaOnly,
			Repeat:   true,
			MinItems: 1,
			Empty:    msgNoMedia,
		},
	}})

	// EditSection rewrites a main-menu section. The text is saved as soon
	// as it is entered; the photo step only runs for PhotoReplace.
	EditSection = register(Flow{Name: FlowEditSection, Steps: []Step{
		{
			Name:   StepSection,
			Expect: ExpectChoice,
			Field:  FieldSection,
			Prompt: static("📝 Редактирование главного меню\n\nКакую информацию хотите изменить?"),
			Parse:  parseOneOf(model.SectionKeys...),
		},
		{
			Name:   StepText,
			Expect: ExpectText,
			Field:  FieldText,
			Prompt: func(d state.Dialog) string {
				return fmt.Sprintf("📝 Редактирование раздела: %s\n\nТекущий текст:\n%s\n\nВведите новый текст для этого раздела:",
					d.String(FieldTitle), d.String(FieldContent))
			},
			Parse:      parseNonEmpty,
			Checkpoint: true,
		},
		{
			Name:   StepPhotoAction,
			Expect: ExpectChoice,
			Field:  FieldPhotoAction,
			Prompt: func(d state.Dialog) string {
				has := "нет"
				if v, _ := d.Fields[FieldHasPhoto].(bool); v {
					has = "есть"
				}
				return fmt.Sprintf("✅ Текст раздела обновлен!\n\nТекущее фото: %s\nВыберите действие с фото:", has)
			},
			Parse: parseOneOf(PhotoReplace, PhotoRemove, PhotoSkip),
		},
		{
			Name:     StepPhoto,
			Expect:   ExpectMedia,
			Field:    FieldPhoto,
			Prompt:   static("🖼️ Отправьте новое фото для этого раздела:"),
			Parse:    parsePhoto,
			Mismatch: msgPhotoOnly,
			Skip: func(d state.Dialog) bool {
				return d.String(FieldPhotoAction) != PhotoReplace
			},
		},
	}})

	// CartAdd asks how many items of a product to add.
	CartAdd = register(Flow{Name: FlowCartAdd, Steps: []Step{
		{
			Name:   StepQuantity,
			Expect: ExpectText,
			Field:  FieldQuantity,
			Prompt: func(d state.Dialog) string {
				price, _ := d.Int64(FieldProductPrice)
				return fmt.Sprintf("🚪 %s\n💰 Цена: %d руб.\n\n📝 Введите количество товара:", d.String(FieldProductName), price)
			},
			Parse:    parseQuantity,
			Mismatch: "❌ Пожалуйста, введите число! Введите количество товара:",
		},
	}})

	// Checkout captures a free-form phone number.
	Checkout = register(Flow{Name: FlowCheckout, Steps: []Step{
		{
			Name:   StepPhone,
			Expect: ExpectText,
			Field:  FieldPhone,
			Prompt: static("📞 Для оформления заказа, пожалуйста, отправьте ваш номер телефона для связи.\n\nВы можете отправить номер в любом формате:"),
			Parse:  parseNonEmpty,
		},
	}})
)

func static(text string) func(state.Dialog) string {
	return func(state.Dialog) string { return text }
}

func nameStep(prompt string) Step {
	return Step{
		Name:     StepName,
		Expect:   ExpectText,
		Field:    FieldName,
		Prompt:   static(prompt),
		Parse:    parseNonEmpty,
		Mismatch: msgEmptyText,
	}
}

func choiceID(name, field, prompt string) Step {
	return Step{Name: name, Expect: ExpectChoice, Field: field, Prompt: static(prompt), Parse: parseID}
}

func parseNonEmpty(in Input) (any, error) {
	s := strings.TrimSpace(in.Text)
	if s == "" {
		return nil, invalid(msgEmptyText)
	}
	return s, nil
}

func parseID(in Input) (any, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(in.Text), 10, 64)
	if err != nil || id <= 0 {
		return nil, invalid("")
	}
	return id, nil
}

func parseOneOf(options ...string) func(Input) (any, error) {
	return func(in Input) (any, error) {
		if !slices.Contains(options, in.Text) {
			return nil, invalid("")
		}
		return in.Text, nil
	}
}

func parsePrice(in Input) (any, error) {
	price, err := strconv.ParseInt(strings.TrimSpace(in.Text), 10, 64)
	if err != nil {
		return nil, invalid("❌ Пожалуйста, введите корректную цену (только число):")
	}
	if price <= 0 {
		return nil, invalid("❌ Цена должна быть положительным числом!")
	}
	return price, nil
}

// ParseQuantity validates a cart quantity in 1..model.MaxQuantity.
func ParseQuantity(s string) (int, error) {
	v, err := parseQuantity(Text(s))
	if err != nil {
		return 0, err
	}
	return int(v.(int64)), nil
}

func parseQuantity(in Input) (any, error) {
	q, err := strconv.ParseInt(strings.TrimSpace(in.Text), 10, 64)
	switch {
	case err != nil:
		return nil, invalid("❌ Пожалуйста, введите число! Введите количество товара:")
	case q <= 0:
		return nil, invalid("❌ Количество должно быть больше 0! Введите корректное количество:")
	case q > model.MaxQuantity:
		return nil, invalid(fmt.Sprintf("❌ Слишком большое количество! Введите количество до %d:", model.MaxQuantity))
	}
	return q, nil
}

func parseMedia(in Input) (any, error) {
	switch in.Media.Kind {
	case model.MediaPhoto, model.MediaVideo:
	default:
		return nil, invalid(msgMediaOnly)
	}
	if in.Media.FileID == "" {
		return nil, invalid(msgMediaOnly)
	}
	return in.Media, nil
}

func parsePhoto(in Input) (any, error) {
	if in.Media.Kind != model.MediaPhoto || in.Media.FileID == "" {
		return nil, invalid(msgPhotoOnly)
	}
	return in.Media, nil
}
