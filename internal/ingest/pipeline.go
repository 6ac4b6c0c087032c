package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru"

	"github.com/iliyamo/deal-finder/internal/model"
)

// Operation names used in errors, logs and metrics.
const (
	OpSyncStores = "sync stores"
	OpSyncDeals  = "sync deals"
)

// storeNameCacheSize bounds the store id -> name cache.
const storeNameCacheSize = 256

// Error is a fatal ingestion failure: the listing call itself failed
// (transport, non-2xx status or a malformed top-level body).
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// SyncResult counts what one operation did.  Skipped items were logged as
// warnings and left untouched.
type SyncResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

func (r SyncResult) String() string {
	return fmt.Sprintf("%d created, %d updated, %d skipped", r.Created, r.Updated, r.Skipped)
}

// Source is the upstream listing API.
type Source interface {
	Stores(ctx context.Context) ([]json.RawMessage, error)
	Deals(ctx context.Context, q DealQuery) ([]json.RawMessage, error)
}

// StoreWriter persists stores.  Upsert and GetOrCreate must each be atomic
// per row.
type StoreWriter interface {
	Upsert(ctx context.Context, s model.Store) (created bool, err error)
	GetOrCreate(ctx context.Context, storeID int, placeholder string) (model.Store, bool, error)
}

// DealWriter persists deals with full-replace upsert semantics.
type DealWriter interface {
	Upsert(ctx context.Context, d model.Deal) (created bool, err error)
}

// Pipeline reconciles upstream listings into storage.  Items are processed
// in the order received; a bad item is skipped, never fatal.
type Pipeline struct {
	src    Source
	stores StoreWriter
	deals  DealWriter
	names  *lru.Cache // store id -> name
	log    *slog.Logger
}

// NewPipeline wires a pipeline.  A nil logger uses slog.Default().
func NewPipeline(src Source, stores StoreWriter, deals DealWriter, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	names, _ := lru.New(storeNameCacheSize) // only fails for size <= 0
	return &Pipeline{src: src, stores: stores, deals: deals, names: names, log: log}
}

// SyncStores upserts every store of the upstream list by store_id.
func (p *Pipeline) SyncStores(ctx context.Context) (SyncResult, error) {
	var res SyncResult
	items, err := p.src.Stores(ctx)
	if err != nil {
		return res, &Error{Op: OpSyncStores, Err: err}
	}
	for _, raw := range items {
		if err := ctx.Err(); err != nil {
			return res, &Error{Op: OpSyncStores, Err: err}
		}
		s, err := normalizeStore(raw)
		if err != nil {
			res.Skipped++
			p.log.Warn("skipping store", "error", err)
			continue
		}
		created, err := p.stores.Upsert(ctx, s)
		if err != nil {
			res.Skipped++
			p.log.Warn("skipping store", "store_id", s.StoreID, "error", err)
			continue
		}
		p.names.Add(s.StoreID, s.Name)
		if created {
			res.Created++
			p.log.Debug("created store", "store_id", s.StoreID, "name", s.Name)
		} else {
			res.Updated++
			p.log.Debug("updated store", "store_id", s.StoreID, "name", s.Name)
		}
	}
	p.log.Info("stores fetch completed", "created", res.Created, "updated", res.Updated, "skipped", res.Skipped)
	return res, nil
}

// SyncDeals upserts every deal returned for q by deal_id.  Unknown stores
// are created with a placeholder name first.
func (p *Pipeline) SyncDeals(ctx context.Context, q DealQuery) (SyncResult, error) {
	var res SyncResult
	items, err := p.src.Deals(ctx, q)
	if err != nil {
		return res, &Error{Op: OpSyncDeals, Err: err}
	}
	for _, raw := range items {
		if err := ctx.Err(); err != nil {
			return res, &Error{Op: OpSyncDeals, Err: err}
		}
		created, id, err := p.syncDeal(ctx, raw)
		if err != nil {
			res.Skipped++
			p.log.Warn("error processing deal", "deal_id", id, "error", err)
			continue
		}
		if created {
			res.Created++
			p.log.Debug("created deal", "deal_id", id)
		} else {
			res.Updated++
			p.log.Debug("updated deal", "deal_id", id)
		}
	}
	p.log.Info("deals fetch completed", "created", res.Created, "updated", res.Updated, "skipped", res.Skipped)
	return res, nil
}

func (p *Pipeline) syncDeal(ctx context.Context, raw json.RawMessage) (bool, string, error) {
	d, id, err := normalizeDeal(raw)
	if err != nil {
		return false, id, err
	}
	name, err := p.storeName(ctx, d.StoreID)
	if err != nil {
		return false, id, fmt.Errorf("resolve store %d: %w", d.StoreID, err)
	}
	d.StoreNameCache = name
	created, err := p.deals.Upsert(ctx, d)
	return created, id, err
}

// storeName resolves a store id, creating a placeholder row on a miss.
func (p *Pipeline) storeName(ctx context.Context, storeID int) (string, error) {
	if v, ok := p.names.Get(storeID); ok {
		return v.(string), nil
	}
	s, created, err := p.stores.GetOrCreate(ctx, storeID, placeholderStoreName(storeID))
	if err != nil {
		return "", err
	}
	if created {
		p.log.Info("created placeholder store", "store_id", storeID)
	}
	p.names.Add(storeID, s.Name)
	return s.Name, nil
}
