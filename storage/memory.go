package storage

import (
	"sort"
	"strings"
	"sync"
	"time"

	"housemarket-scraper/extract"
	"housemarket-scraper/models"
)

// MemoryStore is a mutex-guarded in-memory implementation of ListingStore
// and BlacklistStore. It backs the test suite and can stand in for the
// database in throwaway runs; it does not survive a restart.
type MemoryStore struct {
	mu        sync.RWMutex
	listings  map[string]*models.ListingRecord
	blacklist map[string]*models.AgentAddressEntry
	sightings map[string]map[string]struct{}
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		listings:  make(map[string]*models.ListingRecord),
		blacklist: make(map[string]*models.AgentAddressEntry),
		sightings: make(map[string]map[string]struct{}),
	}
}

func (m *MemoryStore) Get(sourceID string) (*models.ListingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.listings[sourceID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryStore) Upsert(rec *models.ListingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *rec
	m.listings[rec.SourceID] = &cp
	return nil
}

func (m *MemoryStore) Delist(seen map[string]struct{}) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delisted := 0
	for id, rec := range m.listings {
		if !rec.OnMarket {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		rec.OnMarket = false
		delisted++
	}
	return delisted, nil
}

func (m *MemoryStore) ClearAddress(normalized string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cleared := 0
	for _, rec := range m.listings {
		if rec.Address != "" && extract.NormalizeAddress(rec.Address) == normalized {
			rec.Address = ""
			cleared++
		}
	}
	return cleared, nil
}

func (m *MemoryStore) Query(f ListingFilter) ([]*models.ListingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.ListingRecord
	for _, rec := range m.listings {
		if !matches(rec, f) {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out, nil
}

func (m *MemoryStore) Count() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.listings), nil
}

func matches(rec *models.ListingRecord, f ListingFilter) bool {
	if f.MinPrice != nil && (rec.Price == nil || *rec.Price < *f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && (rec.Price == nil || *rec.Price > *f.MaxPrice) {
		return false
	}
	if f.MinBeds != nil && (rec.Beds == nil || *rec.Beds < *f.MinBeds) {
		return false
	}
	if f.MaxBeds != nil && (rec.Beds == nil || *rec.Beds > *f.MaxBeds) {
		return false
	}
	if f.MinSqft != nil && (rec.Sqft == nil || *rec.Sqft < *f.MinSqft) {
		return false
	}
	if f.MaxSqft != nil && (rec.Sqft == nil || *rec.Sqft > *f.MaxSqft) {
		return false
	}
	if f.PropertyType != models.TypeUnknown && rec.PropertyType != f.PropertyType {
		return false
	}
	if f.OnMarket != nil && rec.OnMarket != *f.OnMarket {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(rec.Address), needle) &&
			!strings.Contains(strings.ToLower(rec.Title), needle) {
			return false
		}
	}
	return true
}

func (m *MemoryStore) RecordSighting(normalized, sourceID string, at time.Time) (*models.AgentAddressEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.blacklist[normalized]
	if !ok {
		entry = &models.AgentAddressEntry{
			NormalizedAddress: normalized,
			FirstSeen:         at,
		}
		m.blacklist[normalized] = entry
		m.sightings[normalized] = make(map[string]struct{})
	}

	if _, dup := m.sightings[normalized][sourceID]; !dup {
		m.sightings[normalized][sourceID] = struct{}{}
		entry.DistinctListingCount++
	}
	entry.LastSeen = at

	cp := *entry
	return &cp, nil
}

func (m *MemoryStore) MarkBlacklisted(normalized string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.blacklist[normalized]; ok {
		entry.Blacklisted = true
	}
	return nil
}

func (m *MemoryStore) Entry(normalized string) (*models.AgentAddressEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.blacklist[normalized]
	if !ok {
		return nil, nil
	}
	cp := *entry
	return &cp, nil
}
