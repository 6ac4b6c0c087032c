// Package repository contains data access logic separated from HTTP handlers
// and the ingestion pipeline.  This file holds the store queries.  Stores are
// keyed by the store_id assigned upstream and are never deleted by normal
// operation.
package repository

import (
	"context"      // context allows passing deadlines and cancellation signals to DB operations
	"database/sql" // sql provides generic database operations and drivers
	"errors"       // errors unwraps driver errors

	"github.com/iliyamo/deal-finder/internal/model"
)

// StoreRepo encapsulates all database queries related to stores.
type StoreRepo struct {
	db *sql.DB // db is the underlying database connection pool
}

// NewStoreRepo constructs a StoreRepo with the provided DB handle.
func NewStoreRepo(db *sql.DB) *StoreRepo {
	return &StoreRepo{db: db}
}

// Upsert inserts the store or replaces name and is_active of the existing
// row with the same store_id.  The single INSERT ... ON DUPLICATE KEY UPDATE
// statement is atomic per row.  created reports whether a new row was
// inserted (MySQL reports one affected row for an insert, two or zero for
// an update).
func (r *StoreRepo) Upsert(ctx context.Context, s model.Store) (created bool, err error) {
	const q = `INSERT INTO stores (store_id, name, is_active) VALUES (?, ?, ?)
	           ON DUPLICATE KEY UPDATE
	               name = VALUES(name),
	               is_active = VALUES(is_active),
	               updated_at = CURRENT_TIMESTAMP`
	res, err := r.db.ExecContext(ctx, q, s.StoreID, s.Name, s.IsActive)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetOrCreate returns the store with the given id, inserting it with the
// placeholder name first if it does not exist yet.  Existing rows are left
// untouched (the no-op update reports zero affected rows).
func (r *StoreRepo) GetOrCreate(ctx context.Context, storeID int, placeholder string) (model.Store, bool, error) {
	const q = `INSERT INTO stores (store_id, name, is_active) VALUES (?, ?, 1)
	           ON DUPLICATE KEY UPDATE store_id = store_id`
	res, err := r.db.ExecContext(ctx, q, storeID, placeholder)
	if err != nil {
		return model.Store{}, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Store{}, false, err
	}
	s, err := r.GetByID(ctx, storeID)
	if err != nil {
		return model.Store{}, false, err
	}
	return s, n == 1, nil
}

// GetByID fetches a store by its id.  It returns ErrStoreNotFound if no row
// is found.
func (r *StoreRepo) GetByID(ctx context.Context, storeID int) (model.Store, error) {
	const q = "SELECT store_id, name, is_active, created_at, updated_at FROM stores WHERE store_id = ?"
	var s model.Store
	if err := r.db.QueryRowContext(ctx, q, storeID).Scan(&s.StoreID, &s.Name, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Store{}, ErrStoreNotFound
		}
		return model.Store{}, err
	}
	return s, nil
}

// ListAll returns every store ordered by id.
func (r *StoreRepo) ListAll(ctx context.Context) ([]model.Store, error) {
	const q = `SELECT store_id, name, is_active, created_at, updated_at FROM stores ORDER BY store_id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Store{}
	for rows.Next() {
		var s model.Store
		if err := rows.Scan(&s.StoreID, &s.Name, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
