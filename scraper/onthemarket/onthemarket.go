// Package onthemarket walks OnTheMarket search results and detail pages,
// turning them into listing records via the extraction strategies.
package onthemarket

import (
	"context"
	"fmt"
	"time"

	"housemarket-scraper/config"
	"housemarket-scraper/extract"
	"housemarket-scraper/fetch"
	"housemarket-scraper/models"
	"housemarket-scraper/utils"
)

// The site paginates search results in fixed chunks.
const resultsPerPage = 30

// BlacklistChecker answers whether an address has been blacklisted as an
// agent-office address. Used to rank detail-page address candidates.
type BlacklistChecker interface {
	IsBlacklisted(address string) (bool, error)
}

// Scraper drives the site walk for one location.
type Scraper struct {
	cfg       *config.Config
	fetcher   fetch.Fetcher
	blacklist BlacklistChecker
	logger    *utils.Logger
	retry     *utils.RetryConfig
}

// New creates a ready-to-use Scraper.
func New(cfg *config.Config, fetcher fetch.Fetcher, blacklist BlacklistChecker, logger *utils.Logger) *Scraper {
	return &Scraper{
		cfg:       cfg,
		fetcher:   fetcher,
		blacklist: blacklist,
		logger:    logger,
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
	}
}

// SearchURL builds the search results URL for one page.
func (s *Scraper) SearchURL(page int) string {
	base := fmt.Sprintf("%s/for-sale/property/%s/", s.cfg.BaseURL, locationSlug(s.cfg.Location))
	if page > 1 {
		return fmt.Sprintf("%s?page=%d", base, page)
	}
	return base
}

// CollectListings fetches the search index and returns deduplicated,
// filtered listing summaries plus the count of entries discarded for
// lacking identity. An error here means the index itself is unreachable
// and the run cannot proceed.
func (s *Scraper) CollectListings(ctx context.Context) ([]*models.ListingRecord, int, error) {
	firstURL := s.SearchURL(1)
	s.logger.Info("[onthemarket] Fetching index %s", firstURL)

	var raw []byte
	err := s.retry.Do("fetch-index", func() error {
		var ferr error
		raw, ferr = s.fetcher.Fetch(ctx, firstURL)
		return ferr
	})
	if err != nil {
		return nil, 0, fmt.Errorf("listing index unreachable: %w", err)
	}

	records, discarded := extract.ParseSearchResults(raw, firstURL)
	s.logger.Info("[onthemarket] Page 1 — %d listings extracted", len(records))

	totalPages := s.cfg.Pages
	if totalPages <= 0 {
		if total, ok := extract.TotalResults(raw); ok {
			totalPages = (total + resultsPerPage - 1) / resultsPerPage
			s.logger.Info("[onthemarket] %d total results, %d pages", total, totalPages)
		} else {
			totalPages = 1
			s.logger.Warn("[onthemarket] Could not determine result count, fetching page 1 only")
		}
	}

	for page := 2; page <= totalPages; page++ {
		if ctx.Err() != nil {
			break
		}

		pageURL := s.SearchURL(page)
		raw, err := s.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			// Missing one index page degrades the run, it does not abort it.
			s.logger.Warn("[onthemarket] Page %d failed: %v", page, err)
			continue
		}

		found, dropped := extract.ParseSearchResults(raw, pageURL)
		discarded += dropped
		s.logger.Info("[onthemarket] Page %d — %d listings extracted", page, len(found))
		records = append(records, found...)
	}

	records = dedupe(records)
	records = s.filter(records)
	s.logger.Info("[onthemarket] Index walk done — %d unique listings after filters", len(records))

	return records, discarded, nil
}

// FetchDetails retrieves the listing's detail page and merges its fields
// into rec. Detail values override summary values because the detail page
// is authoritative, and each overridden field is re-tagged accordingly.
func (s *Scraper) FetchDetails(ctx context.Context, rec *models.ListingRecord) error {
	raw, err := s.fetcher.Fetch(ctx, rec.URL)
	if err != nil {
		return err
	}

	details, err := extract.ParseDetails(raw, s.cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("parse details %s: %w", rec.URL, err)
	}

	if details.Title != "" {
		rec.Title = details.Title
		setSource(rec, models.FieldTitle, models.TierSelector)
	}
	if details.Price != nil {
		rec.Price = details.Price
		setSource(rec, models.FieldPrice, models.TierSelector)
	}
	if addr := s.chooseAddress(details.AddressCandidates, rec.Address); addr != "" {
		rec.Address = addr
		setSource(rec, models.FieldAddress, models.TierSelector)
	}
	if details.Beds != nil {
		rec.Beds = details.Beds
		setSource(rec, models.FieldBeds, models.TierSelector)
	}
	if details.Sqft != nil {
		rec.Sqft = details.Sqft
		setSource(rec, models.FieldSqft, models.TierSelector)
	}
	if details.PropertyType != models.TypeUnknown {
		rec.PropertyType = details.PropertyType
		setSource(rec, models.FieldType, models.TierSelector)
	}
	if len(details.Images) > 0 {
		rec.Images = details.Images
		setSource(rec, models.FieldImages, models.TierSelector)
	}
	rec.AgentName = details.AgentName

	if !rec.HasIdentity() {
		return extract.ErrNoIdentity
	}
	return nil
}

// chooseAddress prefers candidates that are not blacklisted, then any
// candidate, then the summary fallback (unless that is agent-flagged).
func (s *Scraper) chooseAddress(candidates []string, fallback string) string {
	var blacklisted string
	for _, c := range candidates {
		isBL, err := s.blacklist.IsBlacklisted(c)
		if err != nil {
			s.logger.Warn("[onthemarket] Blacklist lookup failed for %q: %v", c, err)
		}
		if isBL {
			if blacklisted == "" {
				blacklisted = c
			}
			continue
		}
		return c
	}
	if blacklisted != "" {
		return blacklisted
	}
	if fallback != "" && !extract.IsAgentAddress(fallback) {
		return fallback
	}
	return ""
}

func (s *Scraper) filter(records []*models.ListingRecord) []*models.ListingRecord {
	if s.cfg.MinPrice == 0 && s.cfg.MaxPrice == 0 && s.cfg.MinBeds == 0 {
		return records
	}

	out := records[:0]
	for _, rec := range records {
		if s.cfg.MinPrice > 0 && (rec.Price == nil || *rec.Price < s.cfg.MinPrice) {
			continue
		}
		if s.cfg.MaxPrice > 0 && (rec.Price == nil || *rec.Price > s.cfg.MaxPrice) {
			continue
		}
		if s.cfg.MinBeds > 0 && (rec.Beds == nil || *rec.Beds < s.cfg.MinBeds) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// dedupe keys on the source id: across pages the same listing can appear
// under URL variants (canonical vs slugged), which a URL key would miss.
func dedupe(records []*models.ListingRecord) []*models.ListingRecord {
	seen := utils.NewURLSet()
	out := records[:0]
	for _, rec := range records {
		if !seen.Add(rec.SourceID) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func locationSlug(location string) string {
	slug := ""
	for _, r := range location {
		switch {
		case r >= 'A' && r <= 'Z':
			slug += string(r + ('a' - 'A'))
		case r == ' ':
			slug += "-"
		default:
			slug += string(r)
		}
	}
	return slug
}

func setSource(rec *models.ListingRecord, field string, tier models.Tier) {
	if rec.Sources == nil {
		rec.Sources = make(map[string]models.Tier)
	}
	rec.Sources[field] = tier
}
