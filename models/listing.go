package models

import "time"

// PropertyType is the normalized UK property category of a listing.
type PropertyType string

const (
	TypeDetached     PropertyType = "detached"
	TypeSemiDetached PropertyType = "semi-detached"
	TypeTerraced     PropertyType = "terraced"
	TypeEndTerraced  PropertyType = "end-terraced"
	TypeFlat         PropertyType = "flat"
	TypeBungalow     PropertyType = "bungalow"
	TypeMaisonette   PropertyType = "maisonette"
	TypeStudio       PropertyType = "studio"
	TypeUnknown      PropertyType = ""
)

// Tier identifies which extraction strategy supplied a field.
type Tier string

const (
	TierJSONLD     Tier = "jsonld"
	TierURLPattern Tier = "url-pattern"
	TierSelector   Tier = "selector"
)

// Field names used as keys in ListingRecord.Sources.
const (
	FieldTitle   = "title"
	FieldPrice   = "price"
	FieldAddress = "address"
	FieldBeds    = "beds"
	FieldSqft    = "sqft"
	FieldType    = "property_type"
	FieldImages  = "images"
)

// ListingRecord is one property listing as extracted from the site and
// persisted in the store. Numeric pointers distinguish "unknown" from zero.
type ListingRecord struct {
	SourceID     string
	URL          string
	Title        string
	Address      string
	AgentName    string
	Price        *int
	Beds         *int
	Sqft         *int
	PropertyType PropertyType
	Images       []string

	// Sources maps each populated field to the tier that supplied it,
	// kept for data-quality auditing.
	Sources map[string]Tier

	FirstSeen time.Time
	LastSeen  time.Time
	OnMarket  bool
}

// HasIdentity reports whether the record carries the identity-critical
// fields. Records without identity are never stored.
func (r *ListingRecord) HasIdentity() bool {
	return r != nil && r.SourceID != "" && r.URL != ""
}

// SetSource records the supplying tier for a field, keeping the first
// (highest-priority) tier if one is already recorded.
func (r *ListingRecord) SetSource(field string, tier Tier) {
	if r.Sources == nil {
		r.Sources = make(map[string]Tier)
	}
	if _, ok := r.Sources[field]; !ok {
		r.Sources[field] = tier
	}
}

// IntPtr is a convenience for building records with optional numeric fields.
func IntPtr(v int) *int { return &v }
