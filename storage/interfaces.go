package storage

import (
	"time"

	"housemarket-scraper/models"
)

// ListingFilter is the read-side query contract consumed by the dashboard
// API layer. Nil range bounds are open; Search is a case-insensitive
// substring match over address and title.
type ListingFilter struct {
	MinPrice     *int
	MaxPrice     *int
	MinBeds      *int
	MaxBeds      *int
	MinSqft      *int
	MaxSqft      *int
	PropertyType models.PropertyType
	OnMarket     *bool
	Search       string
}

// ListingStore is the persisted record store. Records are never deleted,
// only flagged off-market.
type ListingStore interface {
	// Get returns the record for sourceID, or nil when absent.
	Get(sourceID string) (*models.ListingRecord, error)
	// Upsert writes the record, inserting or replacing by source_id.
	Upsert(rec *models.ListingRecord) error
	// Delist flags every on-market record whose source_id is not in seen
	// as off-market and returns how many were flagged.
	Delist(seen map[string]struct{}) (int, error)
	// ClearAddress blanks the address on records whose normalized address
	// equals normalized, returning how many were touched.
	ClearAddress(normalized string) (int, error)
	// Query returns records matching the filter.
	Query(f ListingFilter) ([]*models.ListingRecord, error)
	// Count returns the total number of stored records.
	Count() (int, error)
}

// BlacklistStore persists agent-address statistics across runs. The
// accumulated counts are the whole value of the table, so it is never
// reset.
type BlacklistStore interface {
	// RecordSighting notes that sourceID produced the normalized address.
	// It is idempotent per (address, source_id) pair and returns the entry
	// with its up-to-date distinct-listing count.
	RecordSighting(normalized, sourceID string, at time.Time) (*models.AgentAddressEntry, error)
	// MarkBlacklisted sets the entry's blacklisted flag. The transition is
	// one-way.
	MarkBlacklisted(normalized string) error
	// Entry returns the entry for the normalized address, or nil when the
	// address has never been seen.
	Entry(normalized string) (*models.AgentAddressEntry, error)
}
