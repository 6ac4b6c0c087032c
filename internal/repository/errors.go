// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// catalog and identity services to distinguish between failure scenarios
// without inspecting driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrDealNotFound is returned when no deal has the requested deal_id.
// Handlers translate it into an HTTP 404 response.
var ErrDealNotFound = errors.New("deal not found")

// ErrStoreNotFound is returned when no store has the requested store_id.
var ErrStoreNotFound = errors.New("store not found")

// ErrUserNotFound is returned when no account matches the lookup.
var ErrUserNotFound = errors.New("user not found")

// ErrUsernameTaken is returned when registering a username that already exists.
var ErrUsernameTaken = errors.New("username already exists")

// ErrTokenInvalid is returned for refresh tokens that are unknown, expired
// or already on the revocation list.
var ErrTokenInvalid = errors.New("refresh token invalid")

// mysqlDuplicateEntry is the server error number for unique key violations.
const mysqlDuplicateEntry = 1062

// isDuplicateKey reports whether err is a MySQL duplicate-entry error.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
