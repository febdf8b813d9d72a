// Package catalog serves catalog browsing and the administrative catalog,
// section and order operations.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/doorshop/core/logger"
	"github.com/m3rciful/doorshop/internal/shop/model"
)

// Store is the persistence the catalog needs.
type Store interface {
	CountCategories(ctx context.Context) (int, error)
	ListCategories(ctx context.Context, offset, limit int) ([]model.Category, error)
	AllCategories(ctx context.Context) ([]model.Category, error)
	GetCategory(ctx context.Context, id int64) (model.Category, error)
	CreateCategory(ctx context.Context, name string) (model.Category, error)
	DeleteCategory(ctx context.Context, id int64) (model.Removed, error)

	CountTypes(ctx context.Context, categoryID int64) (int, error)
	ListTypes(ctx context.Context, categoryID int64, offset, limit int) ([]model.Type, error)
	AllTypes(ctx context.Context, categoryID int64) ([]model.Type, error)
	GetType(ctx context.Context, id int64) (model.Type, error)
	CreateType(ctx context.Context, categoryID int64, name string) (model.Type, error)
	DeleteType(ctx context.Context, id int64) (model.Removed, error)

	CountProducts(ctx context.Context, typeID int64) (int, error)
	ListProducts(ctx context.Context, typeID int64, offset, limit int) ([]model.Product, error)
	AllProducts(ctx context.Context, typeID int64) ([]model.Product, error)
	GetProduct(ctx context.Context, id int64) (model.Product, error)
	ProductMedia(ctx context.Context, productID int64) ([]model.Media, error)
	CreateProduct(ctx context.Context, p model.NewProduct) (model.Product, error)
	DeleteProduct(ctx context.Context, id int64) (model.Removed, error)

	Section(ctx context.Context, key string) (model.Section, error)
	UpdateSectionText(ctx context.Context, key, content string) error
	SetSectionPhoto(ctx context.Context, key, path, fileID string) (*string, error)
	ClearSectionPhoto(ctx context.Context, key string) (*string, error)

	PendingOrders(ctx context.Context) ([]model.OrderWithItems, error)
	CompleteOrder(ctx context.Context, id int64) error
}

// Files removes stored media. media.Store satisfies it.
type Files interface {
	Remove(ctx context.Context, paths ...string) int
}

// Deleted reports a cascading delete.
type Deleted struct {
	Name string
	// Files is how many media files were removed from disk.
	Files int
}

// Service wraps the Store with paging and post-commit file cleanup.
type Service struct {
	store    Store
	files    Files
	pageSize int
}

// New constructs a Service showing pageSize items per page.
func New(store Store, files Files, pageSize int) *Service {
	if pageSize <= 0 {
		pageSize = 5
	}
	return &Service{store: store, files: files, pageSize: pageSize}
}

// PageSize returns the listing page size.
func (s *Service) PageSize() int { return s.pageSize }

// Categories returns one page of categories.
func (s *Service) Categories(ctx context.Context, index int) (Listing[model.Category], error) {
	count, err := s.store.CountCategories(ctx)
	if err != nil {
		return Listing[model.Category]{}, fmt.Errorf("categories: %w", err)
	}
	p := s.paginate(ctx, "categories", count, index)
	items, err := s.store.ListCategories(ctx, p.Offset(), p.Size)
	if err != nil {
		return Listing[model.Category]{}, fmt.Errorf("categories: %w", err)
	}
	return Listing[model.Category]{Items: items, Page: p}, nil
}

// Types returns a category and one page of its types.
func (s *Service) Types(ctx context.Context, categoryID int64, index int) (model.Category, Listing[model.Type], error) {
	var out Listing[model.Type]
	c, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		return c, out, fmt.Errorf("category %d: %w", categoryID, err)
	}
	count, err := s.store.CountTypes(ctx, categoryID)
	if err != nil {
		return c, out, fmt.Errorf("types: %w", err)
	}
	out.Page = s.paginate(ctx, "types", count, index)
	out.Items, err = s.store.ListTypes(ctx, categoryID, out.Page.Offset(), out.Page.Size)
	if err != nil {
		return c, out, fmt.Errorf("types: %w", err)
	}
	return c, out, nil
}

// Products returns a type and one page of its products.
func (s *Service) Products(ctx context.Context, typeID int64, index int) (model.Type, Listing[model.Product], error) {
	var out Listing[model.Product]
	t, err := s.store.GetType(ctx, typeID)
	if err != nil {
		return t, out, fmt.Errorf("type %d: %w", typeID, err)
	}
	count, err := s.store.CountProducts(ctx, typeID)
	if err != nil {
		return t, out, fmt.Errorf("products: %w", err)
	}
	out.Page = s.paginate(ctx, "products", count, index)
	out.Items, err = s.store.ListProducts(ctx, typeID, out.Page.Offset(), out.Page.Size)
	if err != nil {
		return t, out, fmt.Errorf("products: %w", err)
	}
	return t, out, nil
}

func (s *Service) paginate(ctx context.Context, what string, count, index int) Page {
	p := Paginate(count, s.pageSize, index)
	if p.Index != index {
		logger.Debug(ctx, logger.CompCatalog, "page.clamped",
			slog.String("list", what),
			slog.Int("requested", index),
			slog.Int("page", p.Index),
		)
	}
	return p
}

// Product returns a product with its media in upload order.
func (s *Service) Product(ctx context.Context, id int64) (model.Product, []model.Media, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return p, nil, fmt.Errorf("product %d: %w", id, err)
	}
	media, err := s.store.ProductMedia(ctx, id)
	if err != nil {
		return p, nil, fmt.Errorf("product %d media: %w", id, err)
	}
	return p, media, nil
}

// AllCategories lists every category for admin choices.
func (s *Service) AllCategories(ctx context.Context) ([]model.Category, error) {
	return s.store.AllCategories(ctx)
}

// AllTypes lists every type of a category for admin choices.
func (s *Service) AllTypes(ctx context.Context, categoryID int64) ([]model.Type, error) {
	return s.store.AllTypes(ctx, categoryID)
}

// AllProducts lists every product of a type for admin choices.
func (s *Service) AllProducts(ctx context.Context, typeID int64) ([]model.Product, error) {
	return s.store.AllProducts(ctx, typeID)
}

// Category loads a category.
func (s *Service) Category(ctx context.Context, id int64) (model.Category, error) {
	return s.store.GetCategory(ctx, id)
}

// Type loads a type.
func (s *Service) Type(ctx context.Context, id int64) (model.Type, error) {
	return s.store.GetType(ctx, id)
}

// CreateCategory adds a category. A taken name yields model.ErrDuplicate.
func (s *Service) CreateCategory(ctx context.Context, name string) (model.Category, error) {
	c, err := s.store.CreateCategory(ctx, strings.TrimSpace(name))
	s.logAdmin(ctx, "category.create", err, slog.Int64("id", c.ID), slog.String("name", c.Name))
	return c, err
}

// CreateType adds a type to a category. Names are unique per category.
func (s *Service) CreateType(ctx context.Context, categoryID int64, name string) (model.Type, error) {
	t, err := s.store.CreateType(ctx, categoryID, strings.TrimSpace(name))
	s.logAdmin(ctx, "type.create", err, slog.Int64("id", t.ID), slog.Int64("category_id", categoryID))
	return t, err
}

// CreateProduct stores a product with its media. At least one media file
// is required.
func (s *Service) CreateProduct(ctx context.Context, np model.NewProduct) (model.Product, error) {
	if len(np.Media) == 0 {
		return model.Product{}, errors.New("product needs at least one media file")
	}
	if np.Price <= 0 {
		return model.Product{}, fmt.Errorf("invalid price %d", np.Price)
	}
	p, err := s.store.CreateProduct(ctx, np)
	s.logAdmin(ctx, "product.create", err,
		slog.Int64("id", p.ID),
		slog.Int64("type_id", np.TypeID),
		slog.Int("media", len(np.Media)),
	)
	return p, err
}

// DeleteCategory removes a category with everything below it. Media files
// are removed after the rows are gone; file failures never undo the delete.
func (s *Service) DeleteCategory(ctx context.Context, id int64) (Deleted, error) {
	return s.cascade(ctx, "category.delete", id, s.store.DeleteCategory)
}

// DeleteType removes a type with its products.
func (s *Service) DeleteType(ctx context.Context, id int64) (Deleted, error) {
	return s.cascade(ctx, "type.delete", id, s.store.DeleteType)
}

// DeleteProduct removes a product with its media.
func (s *Service) DeleteProduct(ctx context.Context, id int64) (Deleted, error) {
	return s.cascade(ctx, "product.delete", id, s.store.DeleteProduct)
}

func (s *Service) cascade(ctx context.Context, event string, id int64, del func(context.Context, int64) (model.Removed, error)) (Deleted, error) {
	start := time.Now()
	removed, err := del(ctx, id)
	if err != nil {
		s.logAdmin(ctx, event, err, slog.Int64("id", id))
		return Deleted{}, err
	}
	files := s.files.Remove(ctx, removed.Files...)
	s.logAdmin(ctx, event, nil,
		slog.Int64("id", id),
		slog.Int("files", len(removed.Files)),
		slog.Int("files_removed", files),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return Deleted{Name: removed.Name, Files: files}, nil
}

// Section loads a main-menu section.
func (s *Service) Section(ctx context.Context, key string) (model.Section, error) {
	return s.store.Section(ctx, key)
}

// UpdateSectionText saves a section's text.
func (s *Service) UpdateSectionText(ctx context.Context, key, text string) error {
	err := s.store.UpdateSectionText(ctx, key, text)
	s.logAdmin(ctx, "section.text", err, slog.String("section", key))
	return err
}

// ReplaceSectionPhoto stores a new photo and removes the previous file.
func (s *Service) ReplaceSectionPhoto(ctx context.Context, key, path, fileID string) error {
	old, err := s.store.SetSectionPhoto(ctx, key, path, fileID)
	s.logAdmin(ctx, "section.photo.replace", err, slog.String("section", key))
	if err != nil {
		return err
	}
	if old != nil && *old != path {
		s.files.Remove(ctx, *old)
	}
	return nil
}

// RemoveSectionPhoto drops a section's photo. It reports whether a photo
// existed; removing a missing photo is a successful no-op.
func (s *Service) RemoveSectionPhoto(ctx context.Context, key string) (bool, error) {
	old, err := s.store.ClearSectionPhoto(ctx, key)
	s.logAdmin(ctx, "section.photo.remove", err,
		slog.String("section", key),
		slog.Bool("had_photo", old != nil),
	)
	if err != nil || old == nil {
		return false, err
	}
	s.files.Remove(ctx, *old)
	return true, nil
}

// PendingOrders lists pending orders newest first.
func (s *Service) PendingOrders(ctx context.Context) ([]model.OrderWithItems, error) {
	return s.store.PendingOrders(ctx)
}

// CompleteOrder marks an order completed.
func (s *Service) CompleteOrder(ctx context.Context, id int64) error {
	err := s.store.CompleteOrder(ctx, id)
	logger.Info(ctx, logger.CompOrders, "order.complete",
		slog.String("status", logger.Status(err)),
		slog.Int64("order_id", id),
		logger.Err(err),
	)
	return err
}

func (s *Service) logAdmin(ctx context.Context, event string, err error, attrs ...slog.Attr) {
	attrs = append(attrs, slog.String("status", logger.Status(err)))
	if err != nil {
		attrs = append(attrs, logger.Err(err))
	}
	logger.Info(ctx, logger.CompCatalog, event, attrs...)
}
