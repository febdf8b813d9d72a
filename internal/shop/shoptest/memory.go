// Package shoptest provides an in-memory stand-in for the shop repository.
package shoptest

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/doorshop/internal/shop/model"
)

// ErrInjected is returned by operations configured to fail.
var ErrInjected = errors.New("shoptest: injected failure")

// Memory mirrors the repository semantics on plain slices: unique names,
// cascading deletes and the additive cart.
type Memory struct {
	mu         sync.Mutex
	seq        int64
	categories []model.Category
	types      []model.Type
	products   []model.Product
	media      []model.Media
	carts      []model.CartLine
	orders     []model.OrderWithItems
	sections   map[string]model.Section

	// FailPlaceOrder makes PlaceOrder roll back.
	FailPlaceOrder bool
	// Now stamps new orders.
	Now func() time.Time
}

// NewMemory returns a store seeded with the default sections.
func NewMemory() *Memory {
	m := &Memory{sections: make(map[string]model.Section), Now: time.Now}
	for i, key := range model.SectionKeys {
		m.sections[key] = model.Section{ID: int64(i + 1), Key: key, Title: key, Content: "Раздел " + key}
	}
	return m
}

func (m *Memory) next() int64 {
	m.seq++
	return m.seq
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	return slices.Clone(items[offset:min(len(items), offset+limit)])
}

func find[T any](items []T, match func(T) bool) (T, error) {
	i := slices.IndexFunc(items, match)
	if i < 0 {
		var zero T
		return zero, model.ErrNotFound
	}
	return items[i], nil
}

func (m *Memory) CountCategories(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.categories), nil
}

func (m *Memory) ListCategories(_ context.Context, offset, limit int) ([]model.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return page(m.categories, offset, limit), nil
}

func (m *Memory) AllCategories(context.Context) ([]model.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.categories), nil
}

func (m *Memory) GetCategory(_ context.Context, id int64) (model.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return find(m.categories, func(c model.Category) bool { return c.ID == id })
}

func (m *Memory) CreateCategory(_ context.Context, name string) (model.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = strings.TrimSpace(name)
	if slices.ContainsFunc(m.categories, func(c model.Category) bool { return c.Name == name }) {
		return model.Category{}, model.ErrDuplicate
	}
	c := model.Category{ID: m.next(), Name: name}
	m.categories = append(m.categories, c)
	return c, nil
}

func (m *Memory) DeleteCategory(_ context.Context, id int64) (model.Removed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := find(m.categories, func(c model.Category) bool { return c.ID == id })
	if err != nil {
		return model.Removed{}, err
	}
	removed := model.Removed{Name: c.Name}
	for _, t := range m.types {
		if t.CategoryID == id {
			removed.Files = append(removed.Files, m.dropType(t.ID)...)
		}
	}
	m.categories = slices.DeleteFunc(m.categories, func(c model.Category) bool { return c.ID == id })
	return removed, nil
}

func (m *Memory) CountTypes(_ context.Context, categoryID int64) (int, error) {
	types, _ := m.AllTypes(context.Background(), categoryID)
	return len(types), nil
}

func (m *Memory) ListTypes(ctx context.Context, categoryID int64, offset, limit int) ([]model.Type, error) {
	types, _ := m.AllTypes(ctx, categoryID)
	return page(types, offset, limit), nil
}

func (m *Memory) AllTypes(_ context.Context, categoryID int64) ([]model.Type, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Type
	for _, t := range m.types {
		if t.CategoryID == categoryID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *Memory) GetType(_ context.Context, id int64) (model.Type, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return find(m.types, func(t model.Type) bool { return t.ID == id })
}

func (m *Memory) CreateType(_ context.Context, categoryID int64, name string) (model.Type, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = strings.TrimSpace(name)
	if !slices.ContainsFunc(m.categories, func(c model.Category) bool { return c.ID == categoryID }) {
		return model.Type{}, model.ErrNotFound
	}
	if slices.ContainsFunc(m.types, func(t model.Type) bool { return t.CategoryID == categoryID && t.Name == name }) {
		return model.Type{}, model.ErrDuplicate
	}
	t := model.Type{ID: m.next(), CategoryID: categoryID, Name: name}
	m.types = append(m.types, t)
	return t, nil
}

func (m *Memory) DeleteType(_ context.Context, id int64) (model.Removed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := find(m.types, func(t model.Type) bool { return t.ID == id })
	if err != nil {
		return model.Removed{}, err
	}
	return model.Removed{Name: t.Name, Files: m.dropType(id)}, nil
}

func (m *Memory) dropType(id int64) []string {
	var files []string
	for _, p := range m.products {
		if p.TypeID == id {
			files = append(files, m.dropProduct(p.ID)...)
		}
	}
	m.types = slices.DeleteFunc(m.types, func(t model.Type) bool { return t.ID == id })
	return files
}

func (m *Memory) CountProducts(ctx context.Context, typeID int64) (int, error) {
	products, _ := m.AllProducts(ctx, typeID)
	return len(products), nil
}

func (m *Memory) ListProducts(ctx context.Context, typeID int64, offset, limit int) ([]model.Product, error) {
	products, _ := m.AllProducts(ctx, typeID)
	return page(products, offset, limit), nil
}

func (m *Memory) AllProducts(_ context.Context, typeID int64) ([]model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Product
	for _, p := range m.products {
		if p.TypeID == typeID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *Memory) GetProduct(_ context.Context, id int64) (model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return find(m.products, func(p model.Product) bool { return p.ID == id })
}

func (m *Memory) ProductMedia(_ context.Context, productID int64) ([]model.Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Media
	for _, md := range m.media {
		if md.ProductID == productID {
			out = append(out, md)
		}
	}
	return out, nil
}

func (m *Memory) FirstMedia(_ context.Context, productIDs []int64) (map[int64]model.Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]model.Media)
	for _, md := range m.media {
		if _, ok := out[md.ProductID]; !ok && slices.Contains(productIDs, md.ProductID) {
			out[md.ProductID] = md
		}
	}
	return out, nil
}

func (m *Memory) CreateProduct(_ context.Context, np model.NewProduct) (model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !slices.ContainsFunc(m.types, func(t model.Type) bool { return t.ID == np.TypeID }) {
		return model.Product{}, model.ErrNotFound
	}
	p := model.Product{ID: m.next(), TypeID: np.TypeID, Name: np.Name, Description: np.Description, Price: np.Price}
	m.products = append(m.products, p)
	for _, nm := range np.Media {
		m.media = append(m.media, model.Media{ID: m.next(), ProductID: p.ID, Kind: nm.Kind, FileID: nm.FileID, FilePath: nm.FilePath})
	}
	return p, nil
}

func (m *Memory) DeleteProduct(_ context.Context, id int64) (model.Removed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := find(m.products, func(p model.Product) bool { return p.ID == id })
	if err != nil {
		return model.Removed{}, err
	}
	return model.Removed{Name: p.Name, Files: m.dropProduct(id)}, nil
}

func (m *Memory) dropProduct(id int64) []string {
	var files []string
	for _, md := range m.media {
		if md.ProductID == id {
			files = append(files, md.FilePath)
		}
	}
	m.media = slices.DeleteFunc(m.media, func(md model.Media) bool { return md.ProductID == id })
	m.carts = slices.DeleteFunc(m.carts, func(l model.CartLine) bool { return l.ProductID == id })
	m.products = slices.DeleteFunc(m.products, func(p model.Product) bool { return p.ID == id })
	for i := range m.orders {
		for j := range m.orders[i].Items {
			if pid := m.orders[i].Items[j].ProductID; pid != nil && *pid == id {
				m.orders[i].Items[j].ProductID = nil
			}
		}
	}
	return files
}

func (m *Memory) AddToCart(_ context.Context, userID, productID int64, qty int) (model.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := find(m.products, func(p model.Product) bool { return p.ID == productID })
	if err != nil {
		return model.CartLine{}, err
	}
	for i, l := range m.carts {
		if l.UserID == userID && l.ProductID == productID {
			m.carts[i].Quantity += qty
			return m.carts[i], nil
		}
	}
	l := model.CartLine{ID: m.next(), UserID: userID, ProductID: productID, Quantity: qty,
		Name: p.Name, Description: p.Description, Price: p.Price}
	m.carts = append(m.carts, l)
	return l, nil
}

func (m *Memory) CartLines(_ context.Context, userID int64) ([]model.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.CartLine
	for _, l := range m.carts {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *Memory) RemoveCartLine(_ context.Context, userID, lineID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, err := find(m.carts, func(l model.CartLine) bool { return l.ID == lineID && l.UserID == userID })
	if err != nil {
		return "", err
	}
	m.carts = slices.DeleteFunc(m.carts, func(c model.CartLine) bool { return c.ID == lineID })
	return l.Name, nil
}

func (m *Memory) ClearCart(_ context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.carts)
	m.carts = slices.DeleteFunc(m.carts, func(l model.CartLine) bool { return l.UserID == userID })
	return int64(before - len(m.carts)), nil
}

func (m *Memory) PlaceOrder(_ context.Context, c model.Customer, phone string, items []model.OrderItem) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPlaceOrder {
		return model.Order{}, ErrInjected
	}
	o := model.Order{ID: m.next(), UserID: c.UserID, UserName: c.Name, Phone: phone,
		Status: model.OrderPending, CreatedAt: m.Now()}
	stored := make([]model.OrderItem, len(items))
	for i, it := range items {
		o.TotalAmount += it.Total()
		it.ID, it.OrderID = m.next(), o.ID
		stored[i] = it
	}
	m.orders = append(m.orders, model.OrderWithItems{Order: o, Items: stored})
	m.carts = slices.DeleteFunc(m.carts, func(l model.CartLine) bool { return l.UserID == c.UserID })
	return o, nil
}

func (m *Memory) PendingOrders(context.Context) ([]model.OrderWithItems, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.OrderWithItems
	for _, o := range m.orders {
		if o.Status == model.OrderPending {
			out = append(out, o)
		}
	}
	slices.SortFunc(out, func(a, b model.OrderWithItems) int { return cmp.Compare(b.ID, a.ID) })
	return out, nil
}

func (m *Memory) CompleteOrder(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, o := range m.orders {
		if o.ID == id && o.Status == model.OrderPending {
			m.orders[i].Status = model.OrderCompleted
			return nil
		}
	}
	return model.ErrNotFound
}

func (m *Memory) Section(_ context.Context, key string) (model.Section, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sections[key]
	if !ok {
		return model.Section{}, model.ErrNotFound
	}
	return s, nil
}

func (m *Memory) UpdateSectionText(_ context.Context, key, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sections[key]
	if !ok {
		return model.ErrNotFound
	}
	s.Content = content
	m.sections[key] = s
	return nil
}

func (m *Memory) SetSectionPhoto(_ context.Context, key, path, fileID string) (*string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sections[key]
	if !ok {
		return nil, model.ErrNotFound
	}
	old := s.PhotoPath
	s.PhotoPath, s.FileID = &path, &fileID
	m.sections[key] = s
	return old, nil
}

func (m *Memory) ClearSectionPhoto(_ context.Context, key string) (*string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sections[key]
	if !ok {
		return nil, model.ErrNotFound
	}
	old := s.PhotoPath
	s.PhotoPath, s.FileID = nil, nil
	m.sections[key] = s
	return old, nil
}

// Carts returns every cart line.
func (m *Memory) Carts() []model.CartLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.carts)
}

// Orders returns every order with items.
func (m *Memory) Orders() []model.OrderWithItems {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.orders)
}
