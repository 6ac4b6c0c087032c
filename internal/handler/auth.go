package handler

import (
	"context"  // bounded service calls
	"errors"   // sentinel matching
	"log/slog" // unexpected failures are logged
	"net/http" // HTTP status codes
	"time"     // request timeouts

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/iliyamo/deal-finder/internal/identity"   // account and session service
	"github.com/iliyamo/deal-finder/internal/middleware" // caller identity from the JWT middleware
	"github.com/iliyamo/deal-finder/internal/validator"  // client-facing validation messages
)

// AuthService is the subset of identity.Service used by the auth endpoints.
type AuthService interface {
	Register(ctx context.Context, username, password, passwordCheck string) (identity.Session, error)
	Login(ctx context.Context, username, password string) (identity.Session, error)
	Logout(ctx context.Context, refresh string) error
	LogoutAll(ctx context.Context, userID uint64) error
	Refresh(ctx context.Context, refresh string) (identity.TokenPair, error)
	AdminExists(ctx context.Context) (bool, error)
	Profile(ctx context.Context, userID uint64) (identity.UserView, error)
	DeleteAccount(ctx context.Context, userID uint64) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Auth AuthService
	Log  *slog.Logger
}

func NewAuthHandler(auth AuthService, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{Auth: auth, Log: log}
}

// ----- DTOs -----

type signonReq struct {
	Username      string `json:"username" validate:"required,max=150"`
	Password      string `json:"password" validate:"required,min=8"`
	PasswordCheck string `json:"passwordCheck" validate:"required"`
}
type signinReq struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}
type refreshReq struct {
	Refresh string `json:"refresh" validate:"required"`
}

// bindValid binds and validates the body, writing the 400 response itself.
// ok is false when the response has already been written.
func bindValid(c echo.Context, req interface{}) (ok bool, err error) {
	if err := c.Bind(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": validator.Message(err)})
	}
	return true, nil
}

// Register: create the account and return a session.  The first account
// becomes the administrator.
func (h *AuthHandler) Register(c echo.Context) error {
	var req signonReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sess, err := h.Auth.Register(ctx, req.Username, req.Password, req.PasswordCheck)
	switch {
	case err == nil:
		return c.JSON(http.StatusCreated, sess)
	case errors.Is(err, identity.ErrPasswordMismatch):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "passwords do not match"})
	case errors.Is(err, identity.ErrUsernameTaken):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username already taken"})
	default:
		h.Log.Error("register failed", "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}
}

// Login: verify credentials and return a new session.
func (h *AuthHandler) Login(c echo.Context) error {
	var req signinReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sess, err := h.Auth.Login(ctx, req.Username, req.Password)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, sess)
	case errors.Is(err, identity.ErrInvalidCredentials):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid credentials"})
	case errors.Is(err, identity.ErrAccountDisabled):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "account disabled"})
	default:
		h.Log.Error("login failed", "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
}

// Logout: revoke the given refresh token.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Auth.Logout(ctx, req.Refresh); err != nil {
		if errors.Is(err, identity.ErrInvalidToken) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid refresh token"})
		}
		h.Log.Error("logout failed", "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}
	return c.NoContent(http.StatusResetContent)
}

// LogoutAll: revoke every refresh token of the caller (protected).
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Auth.LogoutAll(ctx, uid); err != nil {
		h.Log.Error("logout all failed", "user_id", uid, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Refresh: rotate the refresh token and return a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	pair, err := h.Auth.Refresh(ctx, req.Refresh)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, pair)
	case errors.Is(err, identity.ErrInvalidToken):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	case errors.Is(err, identity.ErrAccountDisabled):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "account disabled"})
	default:
		h.Log.Error("refresh failed", "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "refresh failed"})
	}
}

// AdminExist reports whether any account exists yet.
func (h *AuthHandler) AdminExist(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	exists, err := h.Auth.AdminExists(ctx)
	if err != nil {
		h.Log.Error("admin lookup failed", "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"adminExist": exists})
}

// Me returns the caller's account.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Auth.Profile(ctx, uid)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		h.Log.Error("profile failed", "user_id", uid, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"user": u})
}

// DeleteAccount removes the caller's account.  The administrator is kept.
func (h *AuthHandler) DeleteAccount(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	switch err := h.Auth.DeleteAccount(ctx, uid); {
	case err == nil:
		return c.NoContent(http.StatusNoContent)
	case errors.Is(err, identity.ErrCannotDeleteAdmin):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, identity.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	default:
		h.Log.Error("delete account failed", "user_id", uid, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
}
