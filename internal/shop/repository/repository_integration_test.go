//go:build integration

package repository_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	coredatabase "github.com/m3rciful/doorshop/core/database"
	"github.com/m3rciful/doorshop/internal/shop/model"
	"github.com/m3rciful/doorshop/internal/shop/repository"
)

// setupRepo starts PostgreSQL, applies the migrations and seeds sections.
func setupRepo(t *testing.T) *repository.Repository {
	t.Helper()
	ctx := context.Background()

	pg, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("doors"),
		postgres.WithUsername("shop"),
		postgres.WithPassword("shop"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pg.Terminate(context.Background()); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := coredatabase.Config{URL: dsn, MigrationsDir: "../../../migrations"}
	require.NoError(t, cfg.Normalize())
	require.NoError(t, coredatabase.RunMigrations(cfg))

	db, err := coredatabase.Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, repository.SectionSeeder().Seed(ctx, db))
	return repository.New(db)
}

type catalogFixture struct {
	category model.Category
	typ      model.Type
	product  model.Product
}

func seedCatalog(t *testing.T, r *repository.Repository, name string, price int64, files ...string) catalogFixture {
	t.Helper()
	ctx := context.Background()
	c, err := r.CreateCategory(ctx, "Категория "+name)
	require.NoError(t, err)
	ty, err := r.CreateType(ctx, c.ID, "Тип "+name)
	require.NoError(t, err)

	np := model.NewProduct{TypeID: ty.ID, Name: name, Description: "описание", Price: price}
	for i, f := range files {
		kind := model.MediaPhoto
		if i%2 == 1 {
			kind = model.MediaVideo
		}
		np.Media = append(np.Media, model.NewMedia{Kind: kind, FileID: "fid-" + f, FilePath: f})
	}
	p, err := r.CreateProduct(ctx, np)
	require.NoError(t, err)
	return catalogFixture{category: c, typ: ty, product: p}
}

func TestRepository(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()

	t.Run("duplicate names", func(t *testing.T) {
		c, err := r.CreateCategory(ctx, "Межкомнатные")
		require.NoError(t, err)
		_, err = r.CreateCategory(ctx, "Межкомнатные")
		assert.ErrorIs(t, err, model.ErrDuplicate)

		_, err = r.CreateType(ctx, c.ID, "Шпон")
		require.NoError(t, err)
		_, err = r.CreateType(ctx, c.ID, "Шпон")
		assert.ErrorIs(t, err, model.ErrDuplicate)

		other, err := r.CreateCategory(ctx, "Входные")
		require.NoError(t, err)
		_, err = r.CreateType(ctx, other.ID, "Шпон")
		assert.NoError(t, err, "type names are unique per category only")
	})

	t.Run("cart is additive", func(t *testing.T) {
		f := seedCatalog(t, r, "Дверь А", 1500)
		_, err := r.AddToCart(ctx, 1, f.product.ID, 2)
		require.NoError(t, err)
		line, err := r.AddToCart(ctx, 1, f.product.ID, 3)
		require.NoError(t, err)
		assert.Equal(t, 5, line.Quantity)

		lines, err := r.CartLines(ctx, 1)
		require.NoError(t, err)
		require.Len(t, lines, 1)
		assert.Equal(t, int64(7500), lines[0].Total())

		_, err = r.AddToCart(ctx, 1, 999999, 1)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("cart removal checks ownership", func(t *testing.T) {
		f := seedCatalog(t, r, "Дверь Б", 100)
		line, err := r.AddToCart(ctx, 2, f.product.ID, 1)
		require.NoError(t, err)

		_, err = r.RemoveCartLine(ctx, 3, line.ID)
		assert.ErrorIs(t, err, model.ErrNotFound)

		name, err := r.RemoveCartLine(ctx, 2, line.ID)
		require.NoError(t, err)
		assert.Equal(t, "Дверь Б", name)
	})

	t.Run("order totals and cart cleanup", func(t *testing.T) {
		a := seedCatalog(t, r, "Дверь В", 2000)
		b := seedCatalog(t, r, "Дверь Г", 350)
		_, err := r.AddToCart(ctx, 4, a.product.ID, 2)
		require.NoError(t, err)
		_, err = r.AddToCart(ctx, 4, b.product.ID, 3)
		require.NoError(t, err)

		lines, err := r.CartLines(ctx, 4)
		require.NoError(t, err)
		items := make([]model.OrderItem, len(lines))
		for i, l := range lines {
			pid := l.ProductID
			items[i] = model.OrderItem{ProductID: &pid, ProductName: l.Name, ProductPrice: l.Price, Quantity: l.Quantity}
		}
		order, err := r.PlaceOrder(ctx, model.Customer{UserID: 4, Name: "Иван"}, "+7 900", items)
		require.NoError(t, err)
		assert.Equal(t, int64(2*2000+3*350), order.TotalAmount)

		left, err := r.CartLines(ctx, 4)
		require.NoError(t, err)
		assert.Empty(t, left)

		pending, err := r.PendingOrders(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, pending)
		assert.Equal(t, order.ID, pending[0].ID)
		var sum int64
		for _, it := range pending[0].Items {
			sum += it.Total()
		}
		assert.Equal(t, pending[0].TotalAmount, sum)

		require.NoError(t, r.CompleteOrder(ctx, order.ID))
		assert.ErrorIs(t, r.CompleteOrder(ctx, order.ID), model.ErrNotFound)

		_, err = r.DeleteProduct(ctx, a.product.ID)
		require.NoError(t, err)
	})

	t.Run("order keeps snapshot of a deleted product", func(t *testing.T) {
		f := seedCatalog(t, r, "Дверь Е", 4200)
		_, err := r.DeleteProduct(ctx, f.product.ID)
		require.NoError(t, err)

		name := strings.Repeat("Я", 64) + " " + strings.Repeat("Ж", 64)
		phone := "звоните после шести вечера, " + strings.Repeat("+7 900 000-00-00 ", 8)
		pid := f.product.ID
		items := []model.OrderItem{{ProductID: &pid, ProductName: "Дверь Е", ProductPrice: 4200, Quantity: 1}}
		order, err := r.PlaceOrder(ctx, model.Customer{UserID: 5, Name: name}, phone, items)
		require.NoError(t, err)

		pending, err := r.PendingOrders(ctx)
		require.NoError(t, err)
		var got model.OrderWithItems
		for _, o := range pending {
			if o.ID == order.ID {
				got = o
			}
		}
		require.Len(t, got.Items, 1)
		assert.Equal(t, name, got.UserName)
		assert.Equal(t, phone, got.Phone)
		assert.Nil(t, got.Items[0].ProductID)
		assert.Equal(t, "Дверь Е", got.Items[0].ProductName)
		assert.Equal(t, int64(4200), got.TotalAmount)
	})

	t.Run("category cascade returns media files", func(t *testing.T) {
		f := seedCatalog(t, r, "Дверь Д", 10, "/m/products/1.jpg", "/m/products/2.mp4")
		media, err := r.ProductMedia(ctx, f.product.ID)
		require.NoError(t, err)
		require.Len(t, media, 2)
		assert.Equal(t, model.MediaPhoto, media[0].Kind)
		assert.Equal(t, model.MediaVideo, media[1].Kind)

		first, err := r.FirstMedia(ctx, []int64{f.product.ID})
		require.NoError(t, err)
		assert.Equal(t, "/m/products/1.jpg", first[f.product.ID].FilePath)

		removed, err := r.DeleteCategory(ctx, f.category.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"/m/products/1.jpg", "/m/products/2.mp4"}, removed.Files)

		_, err = r.GetType(ctx, f.typ.ID)
		assert.ErrorIs(t, err, model.ErrNotFound)
		_, err = r.GetProduct(ctx, f.product.ID)
		assert.ErrorIs(t, err, model.ErrNotFound)
		media, err = r.ProductMedia(ctx, f.product.ID)
		require.NoError(t, err)
		assert.Empty(t, media)

		_, err = r.DeleteCategory(ctx, f.category.ID)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("sections", func(t *testing.T) {
		s, err := r.Section(ctx, model.SectionInfo)
		require.NoError(t, err)
		assert.False(t, s.HasPhoto())

		require.NoError(t, r.UpdateSectionText(ctx, model.SectionInfo, "Новый текст"))
		old, err := r.ClearSectionPhoto(ctx, model.SectionInfo)
		require.NoError(t, err)
		assert.Nil(t, old, "removing a missing photo is a no-op")

		old, err = r.SetSectionPhoto(ctx, model.SectionInfo, "/m/sections/a.jpg", "fa")
		require.NoError(t, err)
		assert.Nil(t, old)
		old, err = r.SetSectionPhoto(ctx, model.SectionInfo, "/m/sections/b.jpg", "fb")
		require.NoError(t, err)
		require.NotNil(t, old)
		assert.Equal(t, "/m/sections/a.jpg", *old)

		s, err = r.Section(ctx, model.SectionInfo)
		require.NoError(t, err)
		assert.Equal(t, "Новый текст", s.Content)
		assert.True(t, s.HasPhoto())

		require.NoError(t, repository.SectionSeeder().Seed(ctx, r.DB()))
		s, err = r.Section(ctx, model.SectionInfo)
		require.NoError(t, err)
		assert.Equal(t, "Новый текст", s.Content, "seeding keeps edited sections")

		_, err = r.Section(ctx, "missing")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("paging", func(t *testing.T) {
		n, err := r.CountCategories(ctx)
		require.NoError(t, err)
		page, err := r.ListCategories(ctx, 0, n+10)
		require.NoError(t, err)
		assert.Len(t, page, n)
		page, err = r.ListCategories(ctx, n, 5)
		require.NoError(t, err)
		assert.Empty(t, page)
	})
}
