package main

import (
	"database/sql"

	"github.com/iliyamo/deal-finder/internal/ingest"
	"github.com/iliyamo/deal-finder/internal/repository"
)

// newRunner wires the upstream client and the repositories into a job runner
// using the configured default deal query.
func newRunner(db *sql.DB) *ingest.Runner {
	client := ingest.NewClient(cfg.UpstreamBaseURL, cfg.UpstreamTimeout, cfg.UpstreamRPS, cfg.UpstreamRetries)
	pipeline := ingest.NewPipeline(client, repository.NewStoreRepo(db), repository.NewDealRepo(db), logger)
	defaults := ingest.DealQuery{StoreIDs: cfg.DealStoreIDs, PageSize: cfg.DealPageSize}
	return ingest.NewRunner(pipeline, defaults, logger)
}
