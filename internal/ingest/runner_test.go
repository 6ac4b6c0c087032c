package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type fakeSyncer struct {
	mu        sync.Mutex
	calls     []string
	lastQuery DealQuery
	storesErr error
}

func (f *fakeSyncer) SyncStores(context.Context) (SyncResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "stores")
	return SyncResult{Created: 1}, f.storesErr
}

func (f *fakeSyncer) SyncDeals(_ context.Context, q DealQuery) (SyncResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "deals")
	f.lastQuery = q
	return SyncResult{Updated: 2}, nil
}

func TestRunner_Flags(t *testing.T) {
	tests := []struct {
		name       string
		job        Job
		want       []string
		wantStores bool
		wantDeals  bool
	}{
		{"both", Job{}, []string{"stores", "deals"}, true, true},
		{"stores only", Job{StoresOnly: true}, []string{"stores"}, true, false},
		{"deals only", Job{DealsOnly: true}, []string{"deals"}, false, true},
		{"both flags", Job{StoresOnly: true, DealsOnly: true}, []string{"stores"}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeSyncer{}
			rep, err := NewRunner(s, DealQuery{}, nil).Run(context.Background(), tt.job)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if len(s.calls) != len(tt.want) {
				t.Fatalf("calls = %v, want %v", s.calls, tt.want)
			}
			for i := range tt.want {
				if s.calls[i] != tt.want[i] {
					t.Fatalf("calls = %v, want %v", s.calls, tt.want)
				}
			}
			if (rep.Stores != nil) != tt.wantStores || (rep.Deals != nil) != tt.wantDeals {
				t.Errorf("report = %+v", rep)
			}
		})
	}
}

func TestRunner_QueryOverrides(t *testing.T) {
	defaults := DealQuery{StoreIDs: []int{1, 7, 11}, PageSize: 16}
	r := NewRunner(&fakeSyncer{}, defaults, nil)

	q := r.Query(Job{})
	if len(q.StoreIDs) != 3 || q.UpperPrice != nil || q.PageSize != 16 {
		t.Errorf("default query = %+v", q)
	}
	ceiling := decimal.RequireFromString("15")
	q = r.Query(Job{StoreIDs: []int{7}, MaxPrice: &ceiling})
	if len(q.StoreIDs) != 1 || q.StoreIDs[0] != 7 || q.UpperPrice == nil || !q.UpperPrice.Equal(ceiling) || q.PageSize != 16 {
		t.Errorf("narrowed query = %+v", q)
	}
}

func TestRunner_StoresFailureStopsJob(t *testing.T) {
	s := &fakeSyncer{storesErr: &Error{Op: OpSyncStores, Err: errors.New("502")}}
	_, err := NewRunner(s, DealQuery{}, nil).Run(context.Background(), Job{})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(s.calls) != 1 {
		t.Errorf("deals should not run after a fatal store sync: %v", s.calls)
	}
}

type funcRunner func(ctx context.Context, job Job) (Report, error)

func (f funcRunner) Run(ctx context.Context, job Job) (Report, error) { return f(ctx, job) }

func TestPool_RunsDetachedFromSubmitter(t *testing.T) {
	done := make(chan Job, 1)
	p := NewPool(funcRunner(func(ctx context.Context, job Job) (Report, error) {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("run context should carry the run timeout")
		}
		done <- job
		return Report{}, nil
	}), 1, 4, time.Minute, nil)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	job := NewJob(SourceAPI)
	if err := p.Submit(ctx, job); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	cancel() // the request finishing must not affect the run

	select {
	case got := <-done:
		if got.ID != job.ID {
			t.Errorf("ran %q, want %q", got.ID, job.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("job never ran")
	}
}

func TestPool_RecoversPanics(t *testing.T) {
	var runs atomic.Int32
	p := NewPool(funcRunner(func(ctx context.Context, job Job) (Report, error) {
		if runs.Add(1) == 1 {
			panic("boom")
		}
		return Report{}, nil
	}), 1, 4, 0, nil)

	_ = p.Submit(context.Background(), NewJob(SourceAPI))
	_ = p.Submit(context.Background(), NewJob(SourceAPI))
	p.Close()

	if runs.Load() != 2 {
		t.Errorf("runs = %d, want 2 (worker must survive a panic)", runs.Load())
	}
}

func TestPool_FullAndClosed(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{}, 1)
	p := NewPool(funcRunner(func(ctx context.Context, job Job) (Report, error) {
		started <- struct{}{}
		<-block
		return Report{}, nil
	}), 1, 1, 0, nil)

	if err := p.Submit(context.Background(), NewJob(SourceAPI)); err != nil {
		t.Fatal(err)
	}
	<-started // worker busy, backlog empty
	if err := p.Submit(context.Background(), NewJob(SourceAPI)); err != nil {
		t.Fatal(err)
	}
	if err := p.Submit(context.Background(), NewJob(SourceAPI)); !errors.Is(err, ErrPoolFull) {
		t.Fatalf("err = %v, want ErrPoolFull", err)
	}
	close(block)
	p.Close()
	if err := p.Submit(context.Background(), NewJob(SourceAPI)); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("err = %v, want ErrPoolClosed", err)
	}
}

func TestScheduler_SkipsOverlappingTicks(t *testing.T) {
	release := make(chan struct{})
	var runs atomic.Int32
	s := NewScheduler(funcRunner(func(ctx context.Context, job Job) (Report, error) {
		runs.Add(1)
		<-release
		return Report{}, nil
	}), time.Hour, 0, nil)

	if !s.tick(context.Background()) {
		t.Fatal("first tick should start a run")
	}
	if s.tick(context.Background()) {
		t.Fatal("second tick should be skipped while running")
	}
	close(release)
	s.wg.Wait()
	if !s.tick(context.Background()) {
		t.Fatal("tick after completion should start a run")
	}
	s.wg.Wait()
	if runs.Load() != 2 {
		t.Errorf("runs = %d, want 2", runs.Load())
	}
}

func TestScheduler_DisabledReturnsImmediately(t *testing.T) {
	s := NewScheduler(funcRunner(func(context.Context, Job) (Report, error) { return Report{}, nil }), 0, 0, nil)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
