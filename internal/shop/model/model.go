// Package model holds the storefront entities shared by the repository,
// the services and the bot.
package model

import (
	"errors"
	"time"
)

var (
	// ErrNotFound marks a missing row, usually a stale button.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate marks a unique-name violation.
	ErrDuplicate = errors.New("already exists")
	// ErrInvalidQuantity marks a cart quantity outside 1..MaxQuantity.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrEmptyCart is returned when checking out an empty cart.
	ErrEmptyCart = errors.New("cart is empty")
)

// MaxQuantity bounds a single cart addition.
const MaxQuantity = 100

// MediaKind is the type of a stored attachment.
type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
)

// OrderStatus is the lifecycle of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
)

// Category is the top level of the catalog.
type Category struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

// Type groups products inside a category.
type Type struct {
	ID         int64  `db:"id"`
	CategoryID int64  `db:"category_id"`
	Name       string `db:"name"`
}

// Product is a sellable door.
type Product struct {
	ID          int64  `db:"id"`
	TypeID      int64  `db:"type_id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	Price       int64  `db:"price"`
}

// Media is a product photo or video kept on disk and in Telegram.
type Media struct {
	ID        int64     `db:"id"`
	ProductID int64     `db:"product_id"`
	Kind      MediaKind `db:"media_type"`
	FileID    string    `db:"file_id"`
	FilePath  string    `db:"file_path"`
}

// NewMedia is a media file captured before its product exists.
type NewMedia struct {
	Kind     MediaKind
	FileID   string
	FilePath string
}

// NewProduct is everything the add-product flow collects.
type NewProduct struct {
	TypeID      int64
	Name        string
	Description string
	Price       int64
	Media       []NewMedia
}

// CartLine is a cart row joined with its product.
type CartLine struct {
	ID          int64  `db:"id"`
	UserID      int64  `db:"user_id"`
	ProductID   int64  `db:"product_id"`
	Quantity    int    `db:"quantity"`
	Name        string `db:"name"`
	Description string `db:"description"`
	Price       int64  `db:"price"`
}

// Total is the line price times quantity.
func (l CartLine) Total() int64 { return l.Price * int64(l.Quantity) }

// Customer identifies who places an order.
type Customer struct {
	UserID int64
	ChatID int64
	Name   string
}

// Order is a placed order.
type Order struct {
	ID          int64       `db:"id"`
	UserID      int64       `db:"user_id"`
	UserName    string      `db:"user_name"`
	Phone       string      `db:"phone_number"`
	TotalAmount int64       `db:"total_amount"`
	Status      OrderStatus `db:"status"`
	CreatedAt   time.Time   `db:"created_at"`
}

// OrderItem snapshots a product at order time. ProductID is nil once the
// product is deleted.
type OrderItem struct {
	ID           int64  `db:"id"`
	OrderID      int64  `db:"order_id"`
	ProductID    *int64 `db:"product_id"`
	ProductName  string `db:"product_name"`
	ProductPrice int64  `db:"product_price"`
	Quantity     int    `db:"quantity"`
}

// Total is the item price times quantity.
func (i OrderItem) Total() int64 { return i.ProductPrice * int64(i.Quantity) }

// OrderWithItems bundles an order and its lines.
type OrderWithItems struct {
	Order
	Items []OrderItem
}

// Section keys of the main-menu info pages.
const (
	SectionServices     = "services"
	SectionInfo         = "info"
	SectionConsultation = "consultation"
)

// SectionKeys lists the editable sections in menu order.
var SectionKeys = []string{SectionServices, SectionInfo, SectionConsultation}

// Section is an editable main-menu page.
type Section struct {
	ID        int64   `db:"id"`
	Key       string  `db:"section_key"`
	Title     string  `db:"title"`
	Content   string  `db:"content"`
	PhotoPath *string `db:"photo_path"`
	FileID    *string `db:"file_id"`
}

// HasPhoto reports whether the section carries a photo.
func (s Section) HasPhoto() bool {
	return s.PhotoPath != nil && *s.PhotoPath != "" || s.FileID != nil && *s.FileID != ""
}

// Removed reports what a cascading delete took with it.
type Removed struct {
	Name  string
	Files []string
}
