package repository

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/m3rciful/doorshop/internal/shop/model"
)

// CountCategories returns the number of categories.
func (r *Repository) CountCategories(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT count(*) FROM categories`)
	return n, classify(err, "count categories")
}

// ListCategories returns one page of categories ordered by id.
func (r *Repository) ListCategories(ctx context.Context, offset, limit int) ([]model.Category, error) {
	var out []model.Category
	err := r.db.SelectContext(ctx, &out,
		`SELECT id, name FROM categories ORDER BY id OFFSET $1 LIMIT $2`, offset, limit)
	return out, classify(err, "list categories")
}

// AllCategories returns every category ordered by id.
func (r *Repository) AllCategories(ctx context.Context) ([]model.Category, error) {
	var out []model.Category
	err := r.db.SelectContext(ctx, &out, `SELECT id, name FROM categories ORDER BY id`)
	return out, classify(err, "all categories")
}

// GetCategory loads a category by id.
func (r *Repository) GetCategory(ctx context.Context, id int64) (model.Category, error) {
	var c model.Category
	err := r.db.GetContext(ctx, &c, `SELECT id, name FROM categories WHERE id = $1`, id)
	return c, classify(err, "get category")
}

// CreateCategory inserts a category; a taken name yields model.ErrDuplicate.
func (r *Repository) CreateCategory(ctx context.Context, name string) (model.Category, error) {
	c := model.Category{Name: strings.TrimSpace(name)}
	err := r.db.GetContext(ctx, &c.ID,
		`INSERT INTO categories (name) VALUES ($1) RETURNING id`, c.Name)
	return c, classify(err, "create category")
}

// DeleteCategory removes a category with its types, products and media rows
// and returns the media file paths that belonged to it.
func (r *Repository) DeleteCategory(ctx context.Context, id int64) (model.Removed, error) {
	var removed model.Removed
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &removed.Name,
			`SELECT name FROM categories WHERE id = $1 FOR UPDATE`, id); err != nil {
			return err
		}
		if err := tx.SelectContext(ctx, &removed.Files, `
			SELECT m.file_path FROM product_media m
			JOIN products p ON p.id = m.product_id
			JOIN types t ON t.id = p.type_id
			WHERE t.category_id = $1 ORDER BY m.id`, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
		return err
	})
	return removed, classify(err, "delete category")
}

// CountTypes returns the number of types in a category.
func (r *Repository) CountTypes(ctx context.Context, categoryID int64) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT count(*) FROM types WHERE category_id = $1`, categoryID)
	return n, classify(err, "count types")
}

// ListTypes returns one page of a category's types.
func (r *Repository) ListTypes(ctx context.Context, categoryID int64, offset, limit int) ([]model.Type, error) {
	var out []model.Type
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, category_id, name FROM types WHERE category_id = $1
		ORDER BY id OFFSET $2 LIMIT $3`, categoryID, offset, limit)
	return out, classify(err, "list types")
}

// AllTypes returns every type of a category.
func (r *Repository) AllTypes(ctx context.Context, categoryID int64) ([]model.Type, error) {
	var out []model.Type
	err := r.db.SelectContext(ctx, &out,
		`SELECT id, category_id, name FROM types WHERE category_id = $1 ORDER BY id`, categoryID)
	return out, classify(err, "all types")
}

// GetType loads a type by id.
func (r *Repository) GetType(ctx context.Context, id int64) (model.Type, error) {
	var t model.Type
	err := r.db.GetContext(ctx, &t, `SELECT id, category_id, name FROM types WHERE id = $1`, id)
	return t, classify(err, "get type")
}

// CreateType inserts a type; the name must be unique within its category.
func (r *Repository) CreateType(ctx context.Context, categoryID int64, name string) (model.Type, error) {
	t := model.Type{CategoryID: categoryID, Name: strings.TrimSpace(name)}
	err := r.db.GetContext(ctx, &t.ID,
		`INSERT INTO types (category_id, name) VALUES ($1, $2) RETURNING id`, categoryID, t.Name)
	return t, classify(err, "create type")
}

// DeleteType removes a type with its products and returns their media paths.
func (r *Repository) DeleteType(ctx context.Context, id int64) (model.Removed, error) {
	var removed model.Removed
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &removed.Name,
			`SELECT name FROM types WHERE id = $1 FOR UPDATE`, id); err != nil {
			return err
		}
		if err := tx.SelectContext(ctx, &removed.Files, `
			SELECT m.file_path FROM product_media m
			JOIN products p ON p.id = m.product_id
			WHERE p.type_id = $1 ORDER BY m.id`, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM types WHERE id = $1`, id)
		return err
	})
	return removed, classify(err, "delete type")
}

// CountProducts returns the number of products of a type.
func (r *Repository) CountProducts(ctx context.Context, typeID int64) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT count(*) FROM products WHERE type_id = $1`, typeID)
	return n, classify(err, "count products")
}

// ListProducts returns one page of a type's products.
func (r *Repository) ListProducts(ctx context.Context, typeID int64, offset, limit int) ([]model.Product, error) {
	var out []model.Product
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, type_id, name, description, price FROM products WHERE type_id = $1
		ORDER BY id OFFSET $2 LIMIT $3`, typeID, offset, limit)
	return out, classify(err, "list products")
}

// AllProducts returns every product of a type.
func (r *Repository) AllProducts(ctx context.Context, typeID int64) ([]model.Product, error) {
	var out []model.Product
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, type_id, name, description, price FROM products
		WHERE type_id = $1 ORDER BY id`, typeID)
	return out, classify(err, "all products")
}

// GetProduct loads a product by id.
func (r *Repository) GetProduct(ctx context.Context, id int64) (model.Product, error) {
	var p model.Product
	err := r.db.GetContext(ctx, &p,
		`SELECT id, type_id, name, description, price FROM products WHERE id = $1`, id)
	return p, classify(err, "get product")
}

// ProductMedia returns a product's media in upload order.
func (r *Repository) ProductMedia(ctx context.Context, productID int64) ([]model.Media, error) {
	var out []model.Media
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, product_id, media_type, file_id, file_path FROM product_media
		WHERE product_id = $1 ORDER BY id`, productID)
	return out, classify(err, "product media")
}

// FirstMedia returns the earliest media of each listed product.
func (r *Repository) FirstMedia(ctx context.Context, productIDs []int64) (map[int64]model.Media, error) {
	out := make(map[int64]model.Media, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	var rows []model.Media
	err := r.db.SelectContext(ctx, &rows, `
		SELECT DISTINCT ON (product_id) id, product_id, media_type, file_id, file_path
		FROM product_media WHERE product_id = ANY($1)
		ORDER BY product_id, id`, pq.Array(productIDs))
	if err != nil {
		return nil, classify(err, "first media")
	}
	for _, m := range rows {
		out[m.ProductID] = m
	}
	return out, nil
}

// CreateProduct inserts a product and all its media in one transaction.
func (r *Repository) CreateProduct(ctx context.Context, p model.NewProduct) (model.Product, error) {
	created := model.Product{TypeID: p.TypeID, Name: p.Name, Description: p.Description, Price: p.Price}
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &created.ID, `
			INSERT INTO products (type_id, name, description, price)
			VALUES ($1, $2, $3, $4) RETURNING id`,
			p.TypeID, p.Name, p.Description, p.Price); err != nil {
			return err
		}
		for _, m := range p.Media {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO product_media (product_id, media_type, file_id, file_path)
				VALUES ($1, $2, $3, $4)`,
				created.ID, m.Kind, m.FileID, m.FilePath); err != nil {
				return err
			}
		}
		return nil
	})
	return created, classify(err, "create product")
}

// DeleteProduct removes a product and returns its media paths.
func (r *Repository) DeleteProduct(ctx context.Context, id int64) (model.Removed, error) {
	var removed model.Removed
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &removed.Name,
			`SELECT name FROM products WHERE id = $1 FOR UPDATE`, id); err != nil {
			return err
		}
		if err := tx.SelectContext(ctx, &removed.Files,
			`SELECT file_path FROM product_media WHERE product_id = $1 ORDER BY id`, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
		return err
	})
	return removed, classify(err, "delete product")
}
