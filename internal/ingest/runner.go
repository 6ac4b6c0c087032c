package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/deal-finder/internal/metrics"
)

// Job sources, used as a metrics label.
const (
	SourceAPI      = "api"
	SourceSchedule = "schedule"
	SourceCLI      = "cli"
	SourceQueue    = "queue"
)

// Job describes one ingestion run.  StoresOnly syncs stores only, DealsOnly
// syncs deals only, neither syncs stores then deals.  StoreIDs and MaxPrice
// narrow the deal sync; empty values fall back to the runner defaults.
type Job struct {
	ID          string           `json:"job_id"`
	Source      string           `json:"source"`
	StoresOnly  bool             `json:"stores_only"`
	DealsOnly   bool             `json:"deals_only"`
	StoreIDs    []int            `json:"store_ids,omitempty"`
	MaxPrice    *decimal.Decimal `json:"max_price,omitempty"`
	RequestedBy string           `json:"requested_by,omitempty"`
}

// NewJob returns a job with a fresh id.
func NewJob(source string) Job {
	return Job{ID: uuid.NewString(), Source: source}
}

func (j Job) runStores() bool { return j.StoresOnly || !j.DealsOnly }
func (j Job) runDeals() bool  { return !j.StoresOnly }

// Report summarizes a finished job.  Stores or Deals is nil when that
// operation was not part of the job.
type Report struct {
	JobID    string        `json:"job_id"`
	Stores   *SyncResult   `json:"stores,omitempty"`
	Deals    *SyncResult   `json:"deals,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Syncer is implemented by Pipeline.
type Syncer interface {
	SyncStores(ctx context.Context) (SyncResult, error)
	SyncDeals(ctx context.Context, q DealQuery) (SyncResult, error)
}

// JobRunner executes jobs synchronously.
type JobRunner interface {
	Run(ctx context.Context, job Job) (Report, error)
}

// Dispatcher hands a job off for asynchronous execution.  Submit returns
// once the job is accepted; its outcome is only visible in logs and metrics.
type Dispatcher interface {
	Submit(ctx context.Context, job Job) error
}

// Runner executes jobs against a Syncer.
type Runner struct {
	sync     Syncer
	defaults DealQuery
	log      *slog.Logger
}

// NewRunner returns a runner using defaults for deal queries that do not
// name stores or a price ceiling.
func NewRunner(s Syncer, defaults DealQuery, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{sync: s, defaults: defaults, log: log}
}

// Query returns the deal query a job resolves to.
func (r *Runner) Query(job Job) DealQuery {
	q := r.defaults
	if len(job.StoreIDs) > 0 {
		q.StoreIDs = job.StoreIDs
	}
	if job.MaxPrice != nil {
		q.UpperPrice = job.MaxPrice
	}
	return q
}

// Run executes job.  A fatal error in the store sync stops the job before
// deals are fetched.
func (r *Runner) Run(ctx context.Context, job Job) (Report, error) {
	started := time.Now()
	rep := Report{JobID: job.ID}
	log := r.log.With("job_id", job.ID, "source", job.Source)
	log.Info("ingestion started", "stores", job.runStores(), "deals", job.runDeals())

	err := r.run(ctx, job, &rep)
	rep.Duration = time.Since(started)

	outcome := "success"
	if err != nil {
		outcome = "failure"
		log.Error("ingestion failed", "error", err, "duration", rep.Duration)
	} else {
		log.Info("ingestion finished", "duration", rep.Duration)
	}
	metrics.FetchJobs.WithLabelValues(job.Source, outcome).Inc()
	return rep, err
}

func (r *Runner) run(ctx context.Context, job Job, rep *Report) error {
	if job.runStores() {
		res, err := r.sync.SyncStores(ctx)
		record(OpSyncStores, res, err)
		if err != nil {
			return err
		}
		rep.Stores = &res
	}
	if job.runDeals() {
		res, err := r.sync.SyncDeals(ctx, r.Query(job))
		record(OpSyncDeals, res, err)
		if err != nil {
			return err
		}
		rep.Deals = &res
	}
	return nil
}

func record(op string, res SyncResult, err error) {
	outcome := "success"
	var ie *Error
	if errors.As(err, &ie) {
		outcome = "fatal"
	} else if err != nil {
		outcome = "error"
	}
	metrics.IngestRuns.WithLabelValues(op, outcome).Inc()
	metrics.IngestItems.WithLabelValues(op, "created").Add(float64(res.Created))
	metrics.IngestItems.WithLabelValues(op, "updated").Add(float64(res.Updated))
	metrics.IngestItems.WithLabelValues(op, "skipped").Add(float64(res.Skipped))
}
