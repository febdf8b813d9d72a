// Package repository is the PostgreSQL store of the shop, built on sqlx.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	coredatabase "github.com/m3rciful/doorshop/core/database"
	"github.com/m3rciful/doorshop/internal/shop/model"
)

// PostgreSQL error codes the store maps to domain errors.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Repository implements the catalog, cart, order and section stores.
type Repository struct {
	db *sqlx.DB
}

// New wraps an open connection pool.
func New(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// DB exposes the pool for seeders and tests.
func (r *Repository) DB() *sqlx.DB { return r.db }

func (r *Repository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return coredatabase.WithTx(ctx, r.db, fn)
}

// classify maps driver errors to model sentinels, keeping the cause.
func classify(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, model.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%s: %w", what, model.ErrDuplicate)
		case codeForeignKeyViolation:
			return fmt.Errorf("%s: %w", what, model.ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

func expectOne(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, model.ErrNotFound)
	}
	return nil
}
