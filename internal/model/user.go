package model

import "time"

// Role names carried in access tokens.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// User represents an account as stored in the `users` table.  The first
// account ever created is the bootstrap administrator (IsStaff and
// IsSuperuser set); every later account is unprivileged.
type User struct {
	ID           uint64    // users.id
	Username     string    // users.username
	PasswordHash string    // users.password_hash
	IsActive     bool      // users.is_active
	IsStaff      bool      // users.is_staff
	IsSuperuser  bool      // users.is_superuser
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// Role returns the token role for the user.
func (u User) Role() string {
	if u.IsSuperuser {
		return RoleAdmin
	}
	return RoleUser
}

// RefreshToken models an entry in the `refresh_tokens` table.  The plain
// token is never stored, only its SHA-256 hash.  A non-nil RevokedAt puts
// the token on the revocation list.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
