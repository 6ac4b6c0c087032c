package main

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/iliyamo/deal-finder/internal/database"
	"github.com/iliyamo/deal-finder/internal/ingest"
	"github.com/iliyamo/deal-finder/internal/metrics"
)

var (
	fetchStoresOnly bool
	fetchDealsOnly  bool
	fetchStoreIDs   []int
	fetchMaxPrice   string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch-deals",
	Short: "Sync stores and deals from the pricing API and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := fetchJob()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		db, err := database.Open(ctx, cfg.DSN())
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close()
		metrics.Init()

		rep, err := newRunner(db).Run(ctx, job)
		out := cmd.OutOrStdout()
		if rep.Stores != nil {
			fmt.Fprintf(out, "stores: %s\n", rep.Stores)
		}
		if rep.Deals != nil {
			fmt.Fprintf(out, "deals: %s\n", rep.Deals)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "done in %s\n", rep.Duration.Round(time.Millisecond))
		return nil
	},
}

// fetchJob builds the job described by the command flags.
func fetchJob() (ingest.Job, error) {
	job := ingest.NewJob(ingest.SourceCLI)
	job.StoresOnly = fetchStoresOnly
	job.DealsOnly = fetchDealsOnly
	for _, id := range fetchStoreIDs {
		if id < 1 {
			return ingest.Job{}, fmt.Errorf("invalid --store-id %d", id)
		}
	}
	job.StoreIDs = fetchStoreIDs
	if fetchMaxPrice != "" {
		p, err := decimal.NewFromString(fetchMaxPrice)
		if err != nil || p.IsNegative() {
			return ingest.Job{}, fmt.Errorf("invalid --max-price %q", fetchMaxPrice)
		}
		job.MaxPrice = &p
	}
	return job, nil
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchStoresOnly, "stores-only", false, "only sync stores")
	fetchCmd.Flags().BoolVar(&fetchDealsOnly, "deals-only", false, "only sync deals")
	fetchCmd.Flags().IntSliceVar(&fetchStoreIDs, "store-id", nil, "store ids to fetch deals for (default from DEAL_STORE_IDS)")
	fetchCmd.Flags().StringVar(&fetchMaxPrice, "max-price", "", "upper sale price bound")
	rootCmd.AddCommand(fetchCmd)
}
