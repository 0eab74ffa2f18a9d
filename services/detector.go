package services

import (
	"time"

	"housemarket-scraper/extract"
	"housemarket-scraper/models"
	"housemarket-scraper/storage"
	"housemarket-scraper/utils"
)

// AgentDetector classifies addresses as likely estate-agent office
// addresses. It combines the keyword heuristic with a cumulative frequency
// count: an address produced by enough distinct listings is an office
// address, because unrelated properties do not share one. The counts
// persist across runs and the blacklist never shrinks.
type AgentDetector struct {
	store     storage.BlacklistStore
	threshold int
	logger    *utils.Logger
}

// NewAgentDetector creates a detector with the given blacklist threshold.
func NewAgentDetector(store storage.BlacklistStore, threshold int, logger *utils.Logger) *AgentDetector {
	return &AgentDetector{store: store, threshold: threshold, logger: logger}
}

// IsAgentAddress is the keyword heuristic. A hit flags the address
// immediately, independent of frequency.
func (d *AgentDetector) IsAgentAddress(address string) bool {
	return extract.IsAgentAddress(address)
}

// Observe records that sourceID produced the address and returns the
// updated entry, plus whether this observation pushed the address over the
// blacklist threshold.
func (d *AgentDetector) Observe(address, sourceID string) (*models.AgentAddressEntry, bool, error) {
	normalized := extract.NormalizeAddress(address)
	if normalized == "" || sourceID == "" {
		return nil, false, nil
	}

	entry, err := d.store.RecordSighting(normalized, sourceID, time.Now().UTC())
	if err != nil {
		return nil, false, err
	}

	if !entry.Blacklisted && entry.DistinctListingCount >= d.threshold {
		if err := d.store.MarkBlacklisted(normalized); err != nil {
			return nil, false, err
		}
		entry.Blacklisted = true
		d.logger.Info("[detector] Blacklisted agent address %q (%d distinct listings)",
			normalized, entry.DistinctListingCount)
		return entry, true, nil
	}

	return entry, false, nil
}

// IsBlacklisted reports whether the address has crossed the threshold.
func (d *AgentDetector) IsBlacklisted(address string) (bool, error) {
	normalized := extract.NormalizeAddress(address)
	if normalized == "" {
		return false, nil
	}
	entry, err := d.store.Entry(normalized)
	if err != nil {
		return false, err
	}
	return entry != nil && entry.Blacklisted, nil
}
