package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/iliyamo/deal-finder/internal/model"
)

type fakeSource struct {
	stores   string
	deals    string
	err      error
	lastDeal DealQuery
}

func (f *fakeSource) Stores(context.Context) ([]json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []json.RawMessage
	return out, json.Unmarshal([]byte(f.stores), &out)
}

func (f *fakeSource) Deals(_ context.Context, q DealQuery) ([]json.RawMessage, error) {
	f.lastDeal = q
	if f.err != nil {
		return nil, f.err
	}
	var out []json.RawMessage
	return out, json.Unmarshal([]byte(f.deals), &out)
}

// memStores is an in-memory StoreWriter keyed by store id.
type memStores struct {
	mu          sync.Mutex
	rows        map[int]model.Store
	getOrCreate int
}

func newMemStores() *memStores { return &memStores{rows: map[int]model.Store{}} }

func (m *memStores) Upsert(_ context.Context, s model.Store) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.rows[s.StoreID]
	m.rows[s.StoreID] = s
	return !exists, nil
}

func (m *memStores) GetOrCreate(_ context.Context, id int, placeholder string) (model.Store, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getOrCreate++
	if s, ok := m.rows[id]; ok {
		return s, false, nil
	}
	s := model.Store{StoreID: id, Name: placeholder, IsActive: true}
	m.rows[id] = s
	return s, true, nil
}

// memDeals is an in-memory DealWriter keyed by deal id.
type memDeals struct {
	mu   sync.Mutex
	rows map[string]model.Deal
	fail map[string]bool
}

func newMemDeals() *memDeals { return &memDeals{rows: map[string]model.Deal{}, fail: map[string]bool{}} }

func (m *memDeals) Upsert(_ context.Context, d model.Deal) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[d.DealID] {
		return false, errors.New("write failed")
	}
	_, exists := m.rows[d.DealID]
	m.rows[d.DealID] = d
	return !exists, nil
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}
