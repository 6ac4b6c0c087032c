package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/deal-finder/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userSelect = "SELECT id,username,password_hash,is_active,is_staff,is_superuser,created_at,updated_at FROM users"

func scanUser(sc rowScanner) (model.User, error) {
	var u model.User
	err := sc.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsActive, &u.IsStaff, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	return u, err
}

// CreateWithBootstrap inserts a user and, in the same transaction, tries to
// claim the single admin_bootstrap row.  Only the transaction that inserts
// that row promotes its user to administrator, so concurrent first
// registrations produce exactly one admin.
func (r *UserRepo) CreateWithBootstrap(ctx context.Context, username, passwordHash string) (model.User, error) {
	username = strings.TrimSpace(username)

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.User{}, err
	}
	defer tx.Rollback() // no-op after commit

	res, err := tx.ExecContext(ctx,
		"INSERT INTO users (username, password_hash) VALUES (?,?)",
		username, passwordHash)
	if err != nil {
		if isDuplicateKey(err) {
			return model.User{}, ErrUsernameTaken
		}
		return model.User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, err
	}

	// A second claimant blocks on the row lock until the first commits, then
	// sees the duplicate and affects zero rows.  This relies on the driver
	// reporting changed rows: with clientFoundRows=true in the DSN the no-op
	// update reports 1 and every user would be promoted.
	res, err = tx.ExecContext(ctx,
		"INSERT INTO admin_bootstrap (id, user_id) VALUES (1, ?) ON DUPLICATE KEY UPDATE id = id",
		id)
	if err != nil {
		return model.User{}, err
	}
	claimed, err := res.RowsAffected()
	if err != nil {
		return model.User{}, err
	}
	if claimed == 1 {
		if _, err := tx.ExecContext(ctx,
			"UPDATE users SET is_staff=1, is_superuser=1 WHERE id=?", id); err != nil {
			return model.User{}, err
		}
	}

	u, err := scanUser(tx.QueryRowContext(ctx, userSelect+" WHERE id=? LIMIT 1", id))
	if err != nil {
		return model.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// GetByUsername fetches a user by exact username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, userSelect+" WHERE username=? LIMIT 1", strings.TrimSpace(username)))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, userSelect+" WHERE id=? LIMIT 1", id))
}

// Exists reports whether at least one account has been registered.
func (r *UserRepo) Exists(ctx context.Context) (bool, error) {
	var ok bool
	err := r.DB.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM users)").Scan(&ok)
	return ok, err
}

// Delete removes the account; its refresh tokens go with it (FK cascade).
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}
