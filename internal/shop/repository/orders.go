package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/m3rciful/doorshop/internal/shop/model"
)

// PlaceOrder writes the order and its items and empties the customer's cart
// in one transaction. Item totals are summed into total_amount. An item whose
// product was deleted meanwhile keeps its snapshot with a NULL product_id.
func (r *Repository) PlaceOrder(ctx context.Context, customer model.Customer, phone string, items []model.OrderItem) (model.Order, error) {
	order := model.Order{
		UserID:   customer.UserID,
		UserName: customer.Name,
		Phone:    phone,
		Status:   model.OrderPending,
	}
	for _, it := range items {
		order.TotalAmount += it.Total()
	}
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.QueryRowxContext(ctx, `
			INSERT INTO orders (user_id, user_name, phone_number, total_amount, status)
			VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
			order.UserID, order.UserName, order.Phone, order.TotalAmount, order.Status,
		).Scan(&order.ID, &order.CreatedAt); err != nil {
			return err
		}
		for _, it := range items {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO order_items (order_id, product_id, product_name, product_price, quantity)
				VALUES ($1, (SELECT id FROM products WHERE id = $2), $3, $4, $5)`,
				order.ID, it.ProductID, it.ProductName, it.ProductPrice, it.Quantity); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM carts WHERE user_id = $1`, order.UserID)
		return err
	})
	if err != nil {
		return model.Order{}, classify(err, "place order")
	}
	return order, nil
}

// PendingOrders returns pending orders newest first with their items.
func (r *Repository) PendingOrders(ctx context.Context) ([]model.OrderWithItems, error) {
	var orders []model.Order
	if err := r.db.SelectContext(ctx, &orders, `
		SELECT id, user_id, user_name, phone_number, total_amount, status, created_at
		FROM orders WHERE status = $1 ORDER BY created_at DESC, id DESC`,
		model.OrderPending); err != nil {
		return nil, classify(err, "pending orders")
	}
	if len(orders) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	var items []model.OrderItem
	if err := r.db.SelectContext(ctx, &items, `
		SELECT id, order_id, product_id, product_name, product_price, quantity
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`, pq.Array(ids)); err != nil {
		return nil, classify(err, "pending order items")
	}

	byOrder := make(map[int64][]model.OrderItem, len(orders))
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}
	out := make([]model.OrderWithItems, len(orders))
	for i, o := range orders {
		out[i] = model.OrderWithItems{Order: o, Items: byOrder[o.ID]}
	}
	return out, nil
}

// CompleteOrder marks a pending order completed.
func (r *Repository) CompleteOrder(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = $1 WHERE id = $2 AND status = $3`,
		model.OrderCompleted, id, model.OrderPending)
	if err != nil {
		return classify(err, "complete order")
	}
	return expectOne(res, "complete order")
}
