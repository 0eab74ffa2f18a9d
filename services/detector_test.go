package services

import (
	"testing"

	"housemarket-scraper/storage"
	"housemarket-scraper/utils"
)

func newTestLogger() *utils.Logger { return utils.NewLogger() }

func TestDetectorKeywordHeuristic(t *testing.T) {
	d := NewAgentDetector(storage.NewMemoryStore(), 3, newTestLogger())

	tests := []struct {
		address string
		want    bool
	}{
		{"14 Comer Road, Worcester", false},
		{"Connells Estate Agents, 12 High Street", true},
		{"Regional Head Office, Birmingham", true},
	}

	for _, tt := range tests {
		got := d.IsAgentAddress(tt.address)
		if got != tt.want {
			t.Errorf("IsAgentAddress(%q) = %v; want %v", tt.address, got, tt.want)
		}
	}
}

func TestDetectorBlacklistsAtThreshold(t *testing.T) {
	d := NewAgentDetector(storage.NewMemoryStore(), 3, newTestLogger())
	addr := "12 Foregate Street, Worcester"

	entry, crossed, err := d.Observe(addr, "100")
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if crossed || entry.Blacklisted {
		t.Error("first sighting must not blacklist")
	}

	if _, crossed, _ = d.Observe(addr, "101"); crossed {
		t.Error("second sighting must not blacklist")
	}

	entry, crossed, err = d.Observe(addr, "102")
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if !crossed {
		t.Error("third distinct sighting should cross the threshold")
	}
	if !entry.Blacklisted {
		t.Error("entry should be blacklisted after crossing")
	}

	blacklisted, err := d.IsBlacklisted(addr)
	if err != nil {
		t.Fatalf("IsBlacklisted: %v", err)
	}
	if !blacklisted {
		t.Error("IsBlacklisted should report true after crossing")
	}

	// Further sightings keep the entry blacklisted without re-crossing.
	entry, crossed, _ = d.Observe(addr, "103")
	if crossed {
		t.Error("crossing must be reported exactly once")
	}
	if !entry.Blacklisted {
		t.Error("blacklisting must never revert")
	}
}

func TestDetectorSightingsIdempotentPerListing(t *testing.T) {
	d := NewAgentDetector(storage.NewMemoryStore(), 3, newTestLogger())
	addr := "12 Foregate Street, Worcester"

	for i := 0; i < 5; i++ {
		entry, crossed, err := d.Observe(addr, "100")
		if err != nil {
			t.Fatalf("Observe: %v", err)
		}
		if crossed {
			t.Fatal("repeat sightings of one listing must never cross the threshold")
		}
		if entry.DistinctListingCount != 1 {
			t.Fatalf("DistinctListingCount: got %d, want 1", entry.DistinctListingCount)
		}
	}
}

func TestDetectorNormalizesAddresses(t *testing.T) {
	d := NewAgentDetector(storage.NewMemoryStore(), 3, newTestLogger())

	d.Observe("12 Foregate Street, Worcester", "100")
	entry, _, err := d.Observe("  12 FOREGATE   Street, Worcester ", "101")
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if entry.DistinctListingCount != 2 {
		t.Errorf("DistinctListingCount: got %d, want 2", entry.DistinctListingCount)
	}
}
