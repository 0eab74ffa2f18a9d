package extract

import (
	"testing"

	"housemarket-scraper/models"
)

const searchPageHTML = `<!DOCTYPE html>
<html><head>
<script type="application/ld+json">
[
  {"@type":"RealEstateListing","name":"3 bedroom semi-detached house for sale","url":"/details/16584756/","address":{"streetAddress":"14 Comer Road, Worcester"},"offers":{"price":"£325,000"}},
  {"@type":"Product","name":"2 bedroom flat for sale","url":"/details/16590001/","offers":{"price":180000}},
  {"@type":"WebSite","name":"OnTheMarket","url":"/"}
]
</script>
</head><body>
<div class="otm-ResultCount">73 results</div>
<ul class="grid-list">
  <li class="otm-PropertyCard">
    <meta itemprop="url" content="/details/16584756/"/>
    <span class="title"><a href="/details/16584756/3-bed-semi-detached-house-comer-road-worcester">3 bed semi-detached house for sale</a></span>
    <div class="otm-Price"><span class="price">£999,999</span></div>
    <span class="address"><a>Comer Road, Worcester WR2</a></span>
    <span itemprop="numberOfBedrooms">3 beds</span>
  </li>
  <li class="otm-PropertyCard">
    <meta itemprop="url" content="/details/16590001/"/>
    <span class="title">2 bed flat for sale</span>
    <div class="otm-Price"><span class="price">£180,000</span></div>
    <span class="address">Bath Road, Worcester WR5</span>
  </li>
</ul>
<a href="/details/16601234/2-bed-terraced-house-st-johns-worcester">2 bed terraced house</a>
</body></html>`

const searchBase = "https://www.onthemarket.com/for-sale/property/worcester/"

func wantIntPtr(t *testing.T, name string, got *int, want int) {
	t.Helper()
	if got == nil {
		t.Fatalf("%s: got nil, want %d", name, want)
	}
	if *got != want {
		t.Errorf("%s: got %d, want %d", name, *got, want)
	}
}

func TestParseSearchResultsMergesStrategies(t *testing.T) {
	records, discarded := ParseSearchResults([]byte(searchPageHTML), searchBase)
	if discarded != 0 {
		t.Errorf("discarded: got %d, want 0", discarded)
	}
	if len(records) != 3 {
		t.Fatalf("records: got %d, want 3", len(records))
	}

	first := records[0]
	if first.SourceID != "16584756" {
		t.Errorf("SourceID: got %q, want %q", first.SourceID, "16584756")
	}
	if first.URL != "https://www.onthemarket.com/details/16584756/" {
		t.Errorf("URL: got %q", first.URL)
	}
	// Structured data wins the price even though the card shows another.
	wantIntPtr(t, "Price", first.Price, 325000)
	if first.Sources[models.FieldPrice] != models.TierJSONLD {
		t.Errorf("price tier: got %q, want %q", first.Sources[models.FieldPrice], models.TierJSONLD)
	}
	if first.Address != "14 Comer Road, Worcester" {
		t.Errorf("Address: got %q", first.Address)
	}
	if first.Sources[models.FieldAddress] != models.TierJSONLD {
		t.Errorf("address tier: got %q, want %q", first.Sources[models.FieldAddress], models.TierJSONLD)
	}
	// JSON-LD carries no bedrooms or type, so the URL slug fills them.
	wantIntPtr(t, "Beds", first.Beds, 3)
	if first.Sources[models.FieldBeds] != models.TierURLPattern {
		t.Errorf("beds tier: got %q, want %q", first.Sources[models.FieldBeds], models.TierURLPattern)
	}
	if first.PropertyType != models.TypeSemiDetached {
		t.Errorf("PropertyType: got %q, want %q", first.PropertyType, models.TypeSemiDetached)
	}

	second := records[1]
	if second.SourceID != "16590001" {
		t.Errorf("SourceID: got %q, want %q", second.SourceID, "16590001")
	}
	wantIntPtr(t, "Price", second.Price, 180000)
	// No anchor and no structured address: only the card can supply it.
	if second.Address != "Bath Road, Worcester WR5" {
		t.Errorf("Address: got %q", second.Address)
	}
	if second.Sources[models.FieldAddress] != models.TierSelector {
		t.Errorf("address tier: got %q, want %q", second.Sources[models.FieldAddress], models.TierSelector)
	}
	if second.PropertyType != models.TypeFlat {
		t.Errorf("PropertyType: got %q, want %q", second.PropertyType, models.TypeFlat)
	}

	third := records[2]
	if third.SourceID != "16601234" {
		t.Errorf("SourceID: got %q, want %q", third.SourceID, "16601234")
	}
	if third.Title != "2 bed terraced house" {
		t.Errorf("Title: got %q", third.Title)
	}
	wantIntPtr(t, "Beds", third.Beds, 2)
	if third.PropertyType != models.TypeTerraced {
		t.Errorf("PropertyType: got %q, want %q", third.PropertyType, models.TypeTerraced)
	}
	if third.Price != nil {
		t.Errorf("Price: got %d, want nil", *third.Price)
	}
}

func TestParseSearchResultsCountsUnidentifiable(t *testing.T) {
	html := `<script type="application/ld+json">
	{"@type":"RealEstateListing","name":"Mystery home","offers":{"price":200000}}
	</script>`

	records, discarded := ParseSearchResults([]byte(html), searchBase)
	if len(records) != 0 {
		t.Errorf("records: got %d, want 0", len(records))
	}
	if discarded != 1 {
		t.Errorf("discarded: got %d, want 1", discarded)
	}
}

func TestNormalizePrice(t *testing.T) {
	tests := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"£325,000", 325000, true},
		{"Offers over £1,250,000", 1250000, true},
		{"£ 99", 99, true},
		{"325000", 0, false},
		{"POA", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got := NormalizePrice(tt.raw)
		if tt.ok != (got != nil) {
			t.Errorf("NormalizePrice(%q) = %v; want ok=%v", tt.raw, got, tt.ok)
			continue
		}
		if got != nil && *got != tt.want {
			t.Errorf("NormalizePrice(%q) = %d; want %d", tt.raw, *got, tt.want)
		}
	}
}

func TestNormalizeBeds(t *testing.T) {
	tests := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"3 bed semi-detached", 3, true},
		{"4 Bedrooms", 4, true},
		{"2 br", 2, true},
		{"studio", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got := NormalizeBeds(tt.raw)
		if tt.ok != (got != nil) {
			t.Errorf("NormalizeBeds(%q) = %v; want ok=%v", tt.raw, got, tt.ok)
			continue
		}
		if got != nil && *got != tt.want {
			t.Errorf("NormalizeBeds(%q) = %d; want %d", tt.raw, *got, tt.want)
		}
	}
}

func TestNormalizeSqft(t *testing.T) {
	tests := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"1,200 sq ft", 1200, true},
		{"850 sqft", 850, true},
		{"950 ft²", 950, true},
		{"1,076 sq. ft.", 1076, true},
		{"no floor area given", 0, false},
	}

	for _, tt := range tests {
		got := NormalizeSqft(tt.raw)
		if tt.ok != (got != nil) {
			t.Errorf("NormalizeSqft(%q) = %v; want ok=%v", tt.raw, got, tt.ok)
			continue
		}
		if got != nil && *got != tt.want {
			t.Errorf("NormalizeSqft(%q) = %d; want %d", tt.raw, *got, tt.want)
		}
	}
}

func TestMatchPropertyType(t *testing.T) {
	tests := []struct {
		text string
		want models.PropertyType
	}{
		{"3 bed semi-detached house", models.TypeSemiDetached},
		{"Semi detached family home", models.TypeSemiDetached},
		{"end terrace cottage", models.TypeEndTerraced},
		{"End-Terraced", models.TypeEndTerraced},
		{"terraced house", models.TypeTerraced},
		{"detached house with garden", models.TypeDetached},
		{"ground floor flat", models.TypeFlat},
		{"studio apartment", models.TypeStudio},
		{"first floor maisonette", models.TypeMaisonette},
		{"spacious semi in quiet cul-de-sac", models.TypeSemiDetached},
		{"penthouse", models.TypeUnknown},
		{"", models.TypeUnknown},
	}

	for _, tt := range tests {
		got := MatchPropertyType(tt.text)
		if got != tt.want {
			t.Errorf("MatchPropertyType(%q) = %q; want %q", tt.text, got, tt.want)
		}
	}
}

func TestTotalResults(t *testing.T) {
	tests := []struct {
		name string
		html string
		want int
		ok   bool
	}{
		{"count container", `<div class="otm-ResultCount">1,205 results</div>`, 1205, true},
		{"page text fallback", `<p>Showing 73 properties in Worcester</p>`, 73, true},
		{"search page", searchPageHTML, 73, true},
		{"no count", `<p>Nothing to see</p>`, 0, false},
	}

	for _, tt := range tests {
		got, ok := TotalResults([]byte(tt.html))
		if ok != tt.ok {
			t.Errorf("%s: ok = %v, want %v", tt.name, ok, tt.ok)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: got %d, want %d", tt.name, got, tt.want)
		}
	}
}
