package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"housemarket-scraper/extract"
	"housemarket-scraper/models"
	"housemarket-scraper/storage"
	"housemarket-scraper/utils"
)

// Listings above this price are treated as data errors: the source site
// mixes commercial lots into residential searches at this level.
const maxPlausiblePrice = 1_000_000

// ErrNoReconciled is returned by Delist when the run reconciled nothing.
// Mass-delisting on an empty run would wipe the whole store on the back of
// a degraded scrape, so the condition is refused outright.
var ErrNoReconciled = errors.New("refusing delist: no records reconciled this run")

// ValidationError marks a record that parsed but violates a field
// constraint. The record is skipped; the run continues.
type ValidationError struct {
	SourceID string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("listing %s: %s", e.SourceID, e.Reason)
}

// Outcome says what Apply did with a record.
type Outcome int

const (
	OutcomeNew Outcome = iota
	OutcomeUpdated
	OutcomeUnchanged
)

// Reconciler merges freshly extracted records into the persisted store. It
// is the sole writer of listing and blacklist state; Apply serializes its
// read-modify-write internally so pipeline workers may call it
// concurrently.
type Reconciler struct {
	mu       sync.Mutex
	store    storage.ListingStore
	detector *AgentDetector
	logger   *utils.Logger
	now      func() time.Time
}

// NewReconciler creates a Reconciler over the given store and detector.
func NewReconciler(store storage.ListingStore, detector *AgentDetector, logger *utils.Logger) *Reconciler {
	return &Reconciler{
		store:    store,
		detector: detector,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Apply validates one extracted record, applies agent-address suppression
// and upserts it. The record's address may be cleared in place; its
// timestamps are set here, never by callers.
func (r *Reconciler) Apply(rec *models.ListingRecord) (Outcome, error) {
	if err := validate(rec); err != nil {
		return OutcomeUnchanged, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.Address != "" {
		if err := r.suppressAgentAddress(rec); err != nil {
			return OutcomeUnchanged, err
		}
	}

	now := r.now()
	existing, err := r.store.Get(rec.SourceID)
	if err != nil {
		return OutcomeUnchanged, err
	}

	if existing == nil {
		rec.FirstSeen = now
		rec.LastSeen = now
		rec.OnMarket = true
		if err := r.store.Upsert(rec); err != nil {
			return OutcomeUnchanged, err
		}
		return OutcomeNew, nil
	}

	// A delisted record coming back is a relist, a state change even when
	// every field matches.
	changed := fieldsDiffer(existing, rec) || !existing.OnMarket
	rec.FirstSeen = existing.FirstSeen
	rec.LastSeen = now
	rec.OnMarket = true
	if err := r.store.Upsert(rec); err != nil {
		return OutcomeUnchanged, err
	}
	if changed {
		return OutcomeUpdated, nil
	}
	return OutcomeUnchanged, nil
}

// suppressAgentAddress runs the detector over the record's address and
// clears it when the address is agent-flagged or blacklisted. When this
// very observation crosses the threshold, records stored under the address
// in earlier passes are cleaned up too. The listing itself always survives.
func (r *Reconciler) suppressAgentAddress(rec *models.ListingRecord) error {
	entry, crossed, err := r.detector.Observe(rec.Address, rec.SourceID)
	if err != nil {
		return err
	}

	if crossed {
		normalized := extract.NormalizeAddress(rec.Address)
		n, err := r.store.ClearAddress(normalized)
		if err != nil {
			return err
		}
		if n > 0 {
			r.logger.Info("[reconciler] Cleared agent address on %d stored listings", n)
		}
	}

	if (entry != nil && entry.Blacklisted) || r.detector.IsAgentAddress(rec.Address) {
		rec.Address = ""
	}
	return nil
}

// Delist flags previously on-market records that this run did not observe.
// It must run strictly after every Apply of the run has finished.
func (r *Reconciler) Delist(seen map[string]struct{}) (int, error) {
	if len(seen) == 0 {
		return 0, ErrNoReconciled
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Delist(seen)
}

func validate(rec *models.ListingRecord) error {
	if !rec.HasIdentity() {
		return &ValidationError{SourceID: rec.SourceID, Reason: "missing identity"}
	}
	if rec.Price != nil && *rec.Price < 0 {
		return &ValidationError{SourceID: rec.SourceID, Reason: "negative price"}
	}
	if rec.Price != nil && *rec.Price > maxPlausiblePrice {
		return &ValidationError{SourceID: rec.SourceID,
			Reason: fmt.Sprintf("price %d above plausible maximum", *rec.Price)}
	}
	if rec.Beds != nil && *rec.Beds < 0 {
		return &ValidationError{SourceID: rec.SourceID, Reason: "negative beds"}
	}
	if rec.Sqft != nil && *rec.Sqft < 0 {
		return &ValidationError{SourceID: rec.SourceID, Reason: "negative sqft"}
	}
	return nil
}

// fieldsDiffer compares the mutable fields of two records.
func fieldsDiffer(a, b *models.ListingRecord) bool {
	if a.URL != b.URL || a.Title != b.Title || a.Address != b.Address ||
		a.AgentName != b.AgentName || a.PropertyType != b.PropertyType {
		return true
	}
	if intPtrDiffer(a.Price, b.Price) || intPtrDiffer(a.Beds, b.Beds) || intPtrDiffer(a.Sqft, b.Sqft) {
		return true
	}
	if len(a.Images) != len(b.Images) {
		return true
	}
	for i := range a.Images {
		if a.Images[i] != b.Images[i] {
			return true
		}
	}
	return false
}

func intPtrDiffer(a, b *int) bool {
	if (a == nil) != (b == nil) {
		return true
	}
	return a != nil && *a != *b
}
