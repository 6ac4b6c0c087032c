package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/deal-finder/internal/model"
)

// StoreLister reads the retailers known to the catalog.
type StoreLister interface {
	ListAll(ctx context.Context) ([]model.Store, error)
}

// StoreHandler exposes stored retailers to administrators.
type StoreHandler struct {
	Stores StoreLister
	Log    *slog.Logger
}

func NewStoreHandler(stores StoreLister, log *slog.Logger) *StoreHandler {
	if log == nil {
		log = slog.Default()
	}
	return &StoreHandler{Stores: stores, Log: log}
}

type storeItem struct {
	StoreID   int       `json:"store_id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	UpdatedAt time.Time `json:"updated_at"`
}

// List returns every stored retailer ordered by store id.
func (h *StoreHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	stores, err := h.Stores.ListAll(ctx)
	if err != nil {
		h.Log.Error("list stores failed", "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]storeItem, 0, len(stores))
	for _, s := range stores {
		out = append(out, storeItem{StoreID: s.StoreID, Name: s.Name, IsActive: s.IsActive, UpdatedAt: s.UpdatedAt})
	}
	return c.JSON(http.StatusOK, echo.Map{"count": len(out), "items": out})
}
