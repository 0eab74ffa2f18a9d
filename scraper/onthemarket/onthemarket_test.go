package onthemarket

import (
	"context"
	"errors"
	"sync"
	"testing"

	"housemarket-scraper/config"
	"housemarket-scraper/models"
	"housemarket-scraper/utils"
)

// fakeFetcher serves canned pages by URL and records every request.
type fakeFetcher struct {
	mu       sync.Mutex
	pages    map[string]string
	requests []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.requests = append(f.requests, url)
	f.mu.Unlock()

	page, ok := f.pages[url]
	if !ok {
		return nil, errors.New("no such page")
	}
	return []byte(page), nil
}

type fakeBlacklist struct {
	blacklisted map[string]bool
}

func (f *fakeBlacklist) IsBlacklisted(address string) (bool, error) {
	return f.blacklisted[address], nil
}

func testConfig() *config.Config {
	return &config.Config{
		BaseURL:    "https://www.onthemarket.com",
		Location:   "worcester",
		MaxRetries: 1,
	}
}

func newTestScraper(cfg *config.Config, fetcher *fakeFetcher) *Scraper {
	return New(cfg, fetcher, &fakeBlacklist{}, utils.NewLogger())
}

func TestSearchURL(t *testing.T) {
	cfg := testConfig()
	cfg.Location = "Great Malvern"
	s := newTestScraper(cfg, &fakeFetcher{})

	if got := s.SearchURL(1); got != "https://www.onthemarket.com/for-sale/property/great-malvern/" {
		t.Errorf("page 1: got %q", got)
	}
	if got := s.SearchURL(3); got != "https://www.onthemarket.com/for-sale/property/great-malvern/?page=3" {
		t.Errorf("page 3: got %q", got)
	}
}

func TestCollectListingsPaginates(t *testing.T) {
	page1 := `<div class="otm-ResultCount">45 results</div>
	<a href="/details/1/2-bed-flat-worcester">2 bed flat</a>
	<a href="/details/2/3-bed-terraced-house-worcester">3 bed terraced house</a>`
	// Page 2 repeats a page 1 listing under its canonical URL rather than
	// the slugged variant; the id still identifies it as a duplicate.
	page2 := `<a href="/details/3/4-bed-detached-house-worcester">4 bed detached house</a>
	<a href="/details/2/">3 bed terraced house</a>`

	fetcher := &fakeFetcher{pages: map[string]string{
		"https://www.onthemarket.com/for-sale/property/worcester/":        page1,
		"https://www.onthemarket.com/for-sale/property/worcester/?page=2": page2,
	}}
	s := newTestScraper(testConfig(), fetcher)

	records, discarded, err := s.CollectListings(context.Background())
	if err != nil {
		t.Fatalf("CollectListings: %v", err)
	}
	if discarded != 0 {
		t.Errorf("discarded: got %d, want 0", discarded)
	}
	if len(records) != 3 {
		t.Fatalf("records: got %d, want 3", len(records))
	}
	// 45 results at 30 per page means exactly 2 index fetches.
	if len(fetcher.requests) != 2 {
		t.Errorf("requests: got %v, want 2 index pages", fetcher.requests)
	}

	ids := map[string]bool{}
	for _, rec := range records {
		ids[rec.SourceID] = true
	}
	for _, want := range []string{"1", "2", "3"} {
		if !ids[want] {
			t.Errorf("missing listing %s in %v", want, ids)
		}
	}
}

func TestCollectListingsIndexUnreachable(t *testing.T) {
	s := newTestScraper(testConfig(), &fakeFetcher{})

	_, _, err := s.CollectListings(context.Background())
	if err == nil {
		t.Fatal("expected error when the index page cannot be fetched")
	}
}

func TestCollectListingsToleratesMissingPage(t *testing.T) {
	page1 := `<div class="otm-ResultCount">45 results</div>
	<a href="/details/1/2-bed-flat-worcester">2 bed flat</a>`

	fetcher := &fakeFetcher{pages: map[string]string{
		"https://www.onthemarket.com/for-sale/property/worcester/": page1,
	}}
	s := newTestScraper(testConfig(), fetcher)

	records, _, err := s.CollectListings(context.Background())
	if err != nil {
		t.Fatalf("a failed later page must degrade, not abort: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("records: got %d, want 1", len(records))
	}
}

func TestCollectListingsAppliesFilters(t *testing.T) {
	page := `<script type="application/ld+json">
	[{"@type":"RealEstateListing","name":"Cheap flat","url":"/details/1/","offers":{"price":90000}},
	 {"@type":"RealEstateListing","name":"Family house","url":"/details/2/","offers":{"price":400000}}]
	</script><p>2 results</p>`

	cfg := testConfig()
	cfg.MinPrice = 100000
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://www.onthemarket.com/for-sale/property/worcester/": page,
	}}
	s := newTestScraper(cfg, fetcher)

	records, _, err := s.CollectListings(context.Background())
	if err != nil {
		t.Fatalf("CollectListings: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records: got %d, want 1", len(records))
	}
	if records[0].SourceID != "2" {
		t.Errorf("kept listing: got %q, want %q", records[0].SourceID, "2")
	}
}

func TestFetchDetailsOverridesSummary(t *testing.T) {
	detail := `<h1 data-test="property-title">3 bed semi-detached house for sale</h1>
	<div data-test="property-price">£315,000</div>
	<div class="agent-name">Allan Morris Sales</div>
	<div class="address">14 Comer Road, Worcester WR2 5HU</div>
	<p>Around 1,076 sq ft.</p>`

	url := "https://www.onthemarket.com/details/1/"
	fetcher := &fakeFetcher{pages: map[string]string{url: detail}}
	s := newTestScraper(testConfig(), fetcher)

	rec := &models.ListingRecord{
		SourceID: "1",
		URL:      url,
		Title:    "3 bed house",
		Price:    models.IntPtr(325000),
	}
	rec.SetSource(models.FieldPrice, models.TierJSONLD)

	if err := s.FetchDetails(context.Background(), rec); err != nil {
		t.Fatalf("FetchDetails: %v", err)
	}

	if rec.Price == nil || *rec.Price != 315000 {
		t.Errorf("Price: got %v, want 315000", rec.Price)
	}
	if rec.Sources[models.FieldPrice] != models.TierSelector {
		t.Errorf("price tier: got %q, want %q", rec.Sources[models.FieldPrice], models.TierSelector)
	}
	if rec.Address != "14 Comer Road, Worcester WR2 5HU" {
		t.Errorf("Address: got %q", rec.Address)
	}
	if rec.AgentName != "Allan Morris Sales" {
		t.Errorf("AgentName: got %q", rec.AgentName)
	}
	if rec.Sqft == nil || *rec.Sqft != 1076 {
		t.Errorf("Sqft: got %v, want 1076", rec.Sqft)
	}
}

func TestChooseAddress(t *testing.T) {
	cfg := testConfig()
	blacklist := &fakeBlacklist{blacklisted: map[string]bool{
		"12 Foregate Street, Worcester": true,
	}}
	s := New(cfg, &fakeFetcher{}, blacklist, utils.NewLogger())

	tests := []struct {
		name       string
		candidates []string
		fallback   string
		want       string
	}{
		{
			"prefers non-blacklisted",
			[]string{"12 Foregate Street, Worcester", "14 Comer Road, Worcester"},
			"",
			"14 Comer Road, Worcester",
		},
		{
			"blacklisted better than nothing",
			[]string{"12 Foregate Street, Worcester"},
			"",
			"12 Foregate Street, Worcester",
		},
		{
			"summary fallback",
			nil,
			"14 Comer Road, Worcester",
			"14 Comer Road, Worcester",
		},
		{
			"agent-flagged fallback dropped",
			nil,
			"Connells Estate Agents, High Street",
			"",
		},
	}

	for _, tt := range tests {
		got := s.chooseAddress(tt.candidates, tt.fallback)
		if got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}
