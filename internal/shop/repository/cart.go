package repository

import (
	"context"

	"github.com/m3rciful/doorshop/internal/shop/model"
)

// AddToCart adds qty of a product to the user's cart, creating the row or
// incrementing it in a single statement. An unknown product yields
// model.ErrNotFound.
func (r *Repository) AddToCart(ctx context.Context, userID, productID int64, qty int) (model.CartLine, error) {
	var line model.CartLine
	err := r.db.GetContext(ctx, &line, `
		WITH up AS (
			INSERT INTO carts (user_id, product_id, quantity) VALUES ($1, $2, $3)
			ON CONFLICT (user_id, product_id)
			DO UPDATE SET quantity = carts.quantity + EXCLUDED.quantity
			RETURNING id, user_id, product_id, quantity
		)
		SELECT up.id, up.user_id, up.product_id, up.quantity, p.name, p.description, p.price
		FROM up JOIN products p ON p.id = up.product_id`,
		userID, productID, qty)
	return line, classify(err, "add to cart")
}

// CartLines returns the user's cart joined with current product data.
func (r *Repository) CartLines(ctx context.Context, userID int64) ([]model.CartLine, error) {
	var out []model.CartLine
	err := r.db.SelectContext(ctx, &out, `
		SELECT c.id, c.user_id, c.product_id, c.quantity, p.name, p.description, p.price
		FROM carts c JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1 ORDER BY c.id`, userID)
	return out, classify(err, "cart lines")
}

// RemoveCartLine deletes one of the user's cart rows and returns the product
// name. Rows of other users are never touched.
func (r *Repository) RemoveCartLine(ctx context.Context, userID, lineID int64) (string, error) {
	var name string
	err := r.db.GetContext(ctx, &name, `
		WITH d AS (
			DELETE FROM carts WHERE id = $1 AND user_id = $2 RETURNING product_id
		)
		SELECT p.name FROM d JOIN products p ON p.id = d.product_id`,
		lineID, userID)
	return name, classify(err, "remove cart line")
}

// ClearCart deletes the user's cart and returns the number of removed rows.
func (r *Repository) ClearCart(ctx context.Context, userID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM carts WHERE user_id = $1`, userID)
	if err != nil {
		return 0, classify(err, "clear cart")
	}
	n, err := res.RowsAffected()
	return n, classify(err, "clear cart")
}
