// Package identity handles accounts and sessions: registration with the
// bootstrap administrator rule, credential checks and the refresh token
// lifecycle.  Access tokens are stateless HS256 JWTs; refresh tokens are
// random strings stored hashed and revoked on logout or rotation.
package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/deal-finder/internal/model"
	"github.com/iliyamo/deal-finder/internal/repository"
	"github.com/iliyamo/deal-finder/internal/utils"
)

var (
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrUsernameTaken      = repository.ErrUsernameTaken
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrInvalidToken       = errors.New("invalid or expired refresh token")
	ErrUserNotFound       = repository.ErrUserNotFound
	ErrCannotDeleteAdmin  = errors.New("the administrator account cannot be deleted")
)

// UserStore persists accounts.
type UserStore interface {
	CreateWithBootstrap(ctx context.Context, username, passwordHash string) (model.User, error)
	GetByUsername(ctx context.Context, username string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	Exists(ctx context.Context) (bool, error)
	Delete(ctx context.Context, id uint64) error
}

// TokenStore persists refresh token hashes.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// Config carries the token and hashing settings.
type Config struct {
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
}

type Service struct {
	users  UserStore
	tokens TokenStore
	cfg    Config

	// dummyHash is compared against for unknown usernames so both failure
	// paths cost one bcrypt comparison.
	dummyOnce sync.Once
	dummyHash string
}

func New(users UserStore, tokens TokenStore, cfg Config) *Service {
	return &Service{users: users, tokens: tokens, cfg: cfg}
}

// UserView is the public representation of an account.
type UserView struct {
	ID          uint64    `json:"id"`
	Username    string    `json:"username"`
	Role        string    `json:"role"`
	IsActive    bool      `json:"is_active"`
	IsStaff     bool      `json:"is_staff"`
	IsSuperuser bool      `json:"is_superuser"`
	CreatedAt   time.Time `json:"created_at"`
}

func viewOf(u model.User) UserView {
	return UserView{
		ID:          u.ID,
		Username:    u.Username,
		Role:        u.Role(),
		IsActive:    u.IsActive,
		IsStaff:     u.IsStaff,
		IsSuperuser: u.IsSuperuser,
		CreatedAt:   u.CreatedAt,
	}
}

// Session is returned by Register and Login.
type Session struct {
	User    UserView `json:"user"`
	Access  string   `json:"access"`
	Refresh string   `json:"refresh"`
}

// TokenPair is returned by Refresh.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Register creates an account.  The first account ever created becomes the
// administrator; the decision is made inside the creating transaction.
func (s *Service) Register(ctx context.Context, username, password, passwordCheck string) (Session, error) {
	if password != passwordCheck {
		return Session{}, ErrPasswordMismatch
	}
	hash, err := utils.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return Session{}, err
	}
	u, err := s.users.CreateWithBootstrap(ctx, strings.TrimSpace(username), hash)
	if err != nil {
		return Session{}, err
	}
	return s.issue(ctx, u)
}

// Login verifies the credentials.  Unknown usernames and wrong passwords
// produce the same error; the active flag is only checked after the
// password matched.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	u, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			utils.VerifyPassword(s.dummy(), password)
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return Session{}, ErrInvalidCredentials
	}
	if !u.IsActive {
		return Session{}, ErrAccountDisabled
	}
	return s.issue(ctx, u)
}

// Logout revokes one refresh token.
func (s *Service) Logout(ctx context.Context, refresh string) error {
	refresh = strings.TrimSpace(refresh)
	if !utils.IsRefreshRaw(refresh) {
		return ErrInvalidToken
	}
	if err := s.tokens.RevokeByHash(ctx, utils.HashRefreshRaw(refresh)); err != nil {
		if errors.Is(err, repository.ErrTokenInvalid) {
			return ErrInvalidToken
		}
		return err
	}
	return nil
}

// LogoutAll revokes every refresh token of the user.
func (s *Service) LogoutAll(ctx context.Context, userID uint64) error {
	return s.tokens.RevokeAllForUser(ctx, userID)
}

// Refresh exchanges a refresh token for a new pair, revoking the old token.
// Two concurrent exchanges of the same token cannot both succeed.
func (s *Service) Refresh(ctx context.Context, refresh string) (TokenPair, error) {
	refresh = strings.TrimSpace(refresh)
	if !utils.IsRefreshRaw(refresh) {
		return TokenPair{}, ErrInvalidToken
	}
	hash := utils.HashRefreshRaw(refresh)
	userID, err := s.tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrTokenInvalid) {
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, err
	}
	if err := s.tokens.RevokeByHash(ctx, hash); err != nil {
		if errors.Is(err, repository.ErrTokenInvalid) {
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, err
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, err
	}
	if !u.IsActive {
		return TokenPair{}, ErrAccountDisabled
	}
	sess, err := s.issue(ctx, u)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: sess.Access, Refresh: sess.Refresh}, nil
}

// AdminExists reports whether any account exists yet.
func (s *Service) AdminExists(ctx context.Context) (bool, error) {
	return s.users.Exists(ctx)
}

// Profile returns the account behind an access token.
func (s *Service) Profile(ctx context.Context, userID uint64) (UserView, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return UserView{}, err
	}
	return viewOf(u), nil
}

// DeleteAccount removes the caller's account.  The administrator account is
// kept.
func (s *Service) DeleteAccount(ctx context.Context, userID uint64) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.IsSuperuser {
		return ErrCannotDeleteAdmin
	}
	return s.users.Delete(ctx, userID)
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = utils.HashPassword("not-a-real-password", s.cfg.BcryptCost)
	})
	return s.dummyHash
}

func (s *Service) issue(ctx context.Context, u model.User) (Session, error) {
	access, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, u.Username, u.Role(), s.cfg.AccessTTLMin)
	if err != nil {
		return Session{}, err
	}
	refresh, err := utils.NewRefreshToken(s.cfg.RefreshTTLDays)
	if err != nil {
		return Session{}, err
	}
	if err := s.tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return Session{}, err
	}
	return Session{User: viewOf(u), Access: access.Token, Refresh: refresh.Raw}, nil
}
