package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/deal-finder/internal/ingest"
	"github.com/iliyamo/deal-finder/internal/middleware"
)

// FetchHandler starts background ingestion runs.
type FetchHandler struct {
	Jobs ingest.Dispatcher
	Log  *slog.Logger
}

func NewFetchHandler(jobs ingest.Dispatcher, log *slog.Logger) *FetchHandler {
	if log == nil {
		log = slog.Default()
	}
	return &FetchHandler{Jobs: jobs, Log: log}
}

// triggerReq accepts max_price and store_id either as JSON numbers or as
// numeric strings.
type triggerReq struct {
	StoresOnly bool            `json:"stores_only"`
	DealsOnly  bool            `json:"deals_only"`
	MaxPrice   json.RawMessage `json:"max_price"`
	StoreID    json.RawMessage `json:"store_id"`
}

type triggerParams struct {
	StoresOnly bool    `json:"stores_only"`
	DealsOnly  bool    `json:"deals_only"`
	MaxPrice   *string `json:"max_price"`
	StoreID    *int    `json:"store_id"`
}

// Trigger serves POST /trigger-fetch.  The run happens in the background;
// its outcome is only visible in logs and metrics.
func (h *FetchHandler) Trigger(c echo.Context) error {
	var req triggerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	job := ingest.NewJob(ingest.SourceAPI)
	job.StoresOnly = req.StoresOnly
	job.DealsOnly = req.DealsOnly
	job.RequestedBy = middleware.Username(c)
	params := triggerParams{StoresOnly: req.StoresOnly, DealsOnly: req.DealsOnly}

	if s, ok, err := numberText(req.MaxPrice); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid max_price"})
	} else if ok {
		p, err := decimal.NewFromString(s)
		if err != nil || p.IsNegative() {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid max_price"})
		}
		job.MaxPrice = &p
		txt := p.String()
		params.MaxPrice = &txt
	}
	if s, ok, err := numberText(req.StoreID); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid store_id"})
	} else if ok {
		id, err := strconv.Atoi(s)
		if err != nil || id < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid store_id"})
		}
		job.StoreIDs = []int{id}
		params.StoreID = &id
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Jobs.Submit(ctx, job); err != nil {
		if errors.Is(err, ingest.ErrPoolFull) || errors.Is(err, ingest.ErrPoolClosed) {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "ingestion is busy, try again later"})
		}
		h.Log.Error("submit fetch job failed", "job_id", job.ID, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not schedule ingestion"})
	}
	h.Log.Info("fetch job accepted", "job_id", job.ID, "requested_by", job.RequestedBy)

	return c.JSON(http.StatusOK, echo.Map{
		"success":    true,
		"message":    "Deal fetching started in background",
		"job_id":     job.ID,
		"parameters": params,
	})
}

// numberText extracts the textual form of a JSON number or numeric string.
// ok is false for absent, null or blank values.
func numberText(raw json.RawMessage) (s string, ok bool, err error) {
	v := strings.TrimSpace(string(raw))
	if v == "" || v == "null" {
		return "", false, nil
	}
	if strings.HasPrefix(v, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return "", false, err
		}
		str = strings.TrimSpace(str)
		return str, str != "", nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", false, err
	}
	return n.String(), true, nil
}
