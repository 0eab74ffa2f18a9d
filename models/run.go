package models

import "time"

// RunStatus is the terminal outcome of one scheduler execution.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial"
	RunFailed  RunStatus = "failed"
	// RunSkipped marks a trigger that was declined because another run was
	// already in flight.
	RunSkipped RunStatus = "skipped"
)

// RunError describes one per-listing failure recorded during a run.
type RunError struct {
	URL     string
	Stage   string // fetch | extract | validate
	Message string
}

// RunReport aggregates the outcome of one scrape run. It is created when the
// run starts, appended to while it executes and finalized once, never
// mutated afterward.
type RunReport struct {
	StartedAt        time.Time
	FinishedAt       time.Time
	ListingsSeen     int
	ListingsNew      int
	ListingsUpdated  int
	ListingsDelisted int
	Errors           []RunError
	Status           RunStatus
}

// Duration returns the wall-clock length of the run.
func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// InsightReport holds market statistics computed over stored listings.
type InsightReport struct {
	TotalListings   int
	OnMarket        int
	OffMarket       int
	AveragePrice    int
	MinPrice        int
	MaxPrice        int
	AvgPricePerSqft int
	ByType          map[PropertyType]int
	ByBeds          map[int]int
}
