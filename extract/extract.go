// Package extract turns raw page markup into partial listing records.
//
// Search-result pages go through three strategies in priority order:
// embedded JSON-LD, listing-URL patterns, and the legacy card selectors.
// Each strategy is a pure function over the parsed document; their results
// are merged per listing at field level, first strategy to supply a field
// wins and later strategies only fill what is still missing.
package extract

import (
	"bytes"
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"housemarket-scraper/models"
)

// ErrNoIdentity marks a listing that, after every strategy ran, still lacks
// the URL-derived identity fields. Such listings are never stored.
var ErrNoIdentity = errors.New("listing has no identity after extraction")

var (
	priceRe = regexp.MustCompile(`£\s?([\d,]+)`)
	bedsRe  = regexp.MustCompile(`(?i)(\d+)\s*(?:bed|beds|br|bedroom|bedrooms)\b`)
	sqftRe  = regexp.MustCompile(`(?i)([\d,]+)\s*(?:sq\s*ft|sqft|ft²|sq\.)`)
)

// ParseSearchResults extracts listing summaries from a search-results page.
// The returned records all have identity; discarded counts entries that no
// strategy could give one, which callers surface as extraction failures.
func ParseSearchResults(raw []byte, baseURL string) (records []*models.ListingRecord, discarded int) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, 0
	}
	base, _ := url.Parse(baseURL)

	type strategy struct {
		tier models.Tier
		run  func(*goquery.Document, *url.URL) []*models.ListingRecord
	}
	strategies := []strategy{
		{models.TierJSONLD, parseJSONLD},
		{models.TierURLPattern, parseDetailLinks},
		{models.TierSelector, parseLegacyCards},
	}

	// The same listing may surface under URL variants (canonical detail
	// URL vs slugged anchor), so merging keys on the derived source id.
	byID := make(map[string]*models.ListingRecord)
	var order []string

	for _, s := range strategies {
		for _, rec := range s.run(doc, base) {
			id := rec.SourceID
			if id == "" {
				id = SourceIDFromURL(rec.URL)
			}
			if id == "" {
				// A listing no strategy could identify cannot be stored.
				discarded++
				continue
			}
			existing, ok := byID[id]
			if !ok {
				existing = &models.ListingRecord{SourceID: id, URL: rec.URL}
				byID[id] = existing
				order = append(order, id)
			}
			mergeInto(existing, rec, s.tier)
		}
	}

	records = make([]*models.ListingRecord, 0, len(order))
	for _, id := range order {
		rec := byID[id]
		if !rec.HasIdentity() {
			discarded++
			continue
		}
		records = append(records, rec)
	}
	return records, discarded
}

// mergeInto copies fields from src into dst, filling only still-missing
// fields and tagging each fill with the supplying tier.
func mergeInto(dst, src *models.ListingRecord, tier models.Tier) {
	if dst.SourceID == "" && src.SourceID != "" {
		dst.SourceID = src.SourceID
	}
	if dst.Title == "" && src.Title != "" {
		dst.Title = src.Title
		dst.SetSource(models.FieldTitle, tier)
	}
	if dst.Price == nil && src.Price != nil {
		dst.Price = src.Price
		dst.SetSource(models.FieldPrice, tier)
	}
	if dst.Address == "" && src.Address != "" {
		dst.Address = src.Address
		dst.SetSource(models.FieldAddress, tier)
	}
	if dst.Beds == nil && src.Beds != nil {
		dst.Beds = src.Beds
		dst.SetSource(models.FieldBeds, tier)
	}
	if dst.Sqft == nil && src.Sqft != nil {
		dst.Sqft = src.Sqft
		dst.SetSource(models.FieldSqft, tier)
	}
	if dst.PropertyType == models.TypeUnknown && src.PropertyType != models.TypeUnknown {
		dst.PropertyType = src.PropertyType
		dst.SetSource(models.FieldType, tier)
	}
	if len(dst.Images) == 0 && len(src.Images) > 0 {
		dst.Images = src.Images
		dst.SetSource(models.FieldImages, tier)
	}
}

// NormalizePrice pulls a whole-pound sterling amount out of text.
func NormalizePrice(text string) *int {
	m := priceRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return nil
	}
	return &n
}

// NormalizeBeds pulls a bedroom count out of text.
func NormalizeBeds(text string) *int {
	m := bedsRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}

// NormalizeSqft pulls a floor area in square feet out of text.
func NormalizeSqft(text string) *int {
	m := sqftRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return nil
	}
	return &n
}

// propertyTypes is checked in order: compound types first so "semi-detached"
// is never misread as "detached".
var propertyTypes = []struct {
	re        *regexp.Regexp
	canonical models.PropertyType
}{
	{regexp.MustCompile(`(?i)\bsemi[- ]detached\b`), models.TypeSemiDetached},
	{regexp.MustCompile(`(?i)\bend[- ]terraced?\b`), models.TypeEndTerraced},
	{regexp.MustCompile(`(?i)\bdetached\b`), models.TypeDetached},
	{regexp.MustCompile(`(?i)\bterraced?\b`), models.TypeTerraced},
	{regexp.MustCompile(`(?i)\bflat\b`), models.TypeFlat},
	{regexp.MustCompile(`(?i)\bmaisonette\b`), models.TypeMaisonette},
	{regexp.MustCompile(`(?i)\bbungalow\b`), models.TypeBungalow},
	{regexp.MustCompile(`(?i)\bstudio\b`), models.TypeStudio},
	{regexp.MustCompile(`(?i)\bsemi\b`), models.TypeSemiDetached},
}

// MatchPropertyType finds the first property-type word in text.
func MatchPropertyType(text string) models.PropertyType {
	for _, pt := range propertyTypes {
		if pt.re.MatchString(text) {
			return pt.canonical
		}
	}
	return models.TypeUnknown
}

// absURL resolves ref against base, dropping unparseable values.
func absURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	return u.String()
}

// collectImages gathers image URLs from a selection, handling lazy-load
// attributes and srcset lists, skipping inline data URIs.
func collectImages(sel *goquery.Selection, base *url.URL) []string {
	seen := make(map[string]struct{})
	var images []string
	sel.Find("img[src], img[data-src], img[data-srcset]").Each(func(_ int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok || src == "" {
			src, _ = img.Attr("data-src")
		}
		if src == "" {
			src, _ = img.Attr("data-srcset")
		}
		if src == "" || strings.Contains(src, "data:image") {
			return
		}
		// srcset: keep the first candidate only
		if strings.Contains(src, ",") {
			fields := strings.Fields(strings.SplitN(src, ",", 2)[0])
			if len(fields) == 0 {
				return
			}
			src = fields[0]
		}
		abs := absURL(base, src)
		if abs == "" {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		images = append(images, abs)
	})
	return images
}

// cleanText collapses runs of whitespace and trims the result.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
