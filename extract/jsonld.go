package extract

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"housemarket-scraper/models"
)

// jsonLDItem is the subset of schema.org metadata the site embeds for
// listings. Address and offers come in several shapes, so they are decoded
// lazily.
type jsonLDItem struct {
	Type    string          `json:"@type"`
	Name    string          `json:"name"`
	URL     string          `json:"url"`
	Address json.RawMessage `json:"address"`
	Offers  json.RawMessage `json:"offers"`
}

type jsonLDAddress struct {
	StreetAddress string `json:"streetAddress"`
}

type jsonLDOffer struct {
	Price json.RawMessage `json:"price"`
}

// parseJSONLD is the structured-data strategy: decode every
// application/ld+json block and keep items that look like property
// listings.
func parseJSONLD(doc *goquery.Document, base *url.URL) []*models.ListingRecord {
	var out []*models.ListingRecord

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		for _, item := range decodeJSONLDItems(s.Text()) {
			switch item.Type {
			case "Product", "RealEstateListing", "Offer":
			default:
				continue
			}
			// Only detail-page URLs identify an actual listing. An
			// unambiguous listing without one is still emitted so the
			// caller can count it as unextractable.
			if item.URL == "" && item.Type != "RealEstateListing" {
				continue
			}
			if item.URL != "" && !strings.Contains(item.URL, "/details/") {
				continue
			}

			rec := &models.ListingRecord{
				Title:   cleanText(item.Name),
				Price:   decodeJSONLDPrice(item.Offers),
				Address: decodeJSONLDAddress(item.Address),
			}
			if item.URL != "" {
				rec.URL = absURL(base, item.URL)
				rec.SourceID = SourceIDFromURL(rec.URL)
			}
			out = append(out, rec)
		}
	})

	return out
}

// decodeJSONLDItems accepts a single object or an array of objects.
func decodeJSONLDItems(text string) []jsonLDItem {
	raw := []byte(strings.TrimSpace(text))
	if len(raw) == 0 {
		return nil
	}

	var items []jsonLDItem
	if err := json.Unmarshal(raw, &items); err == nil {
		return items
	}

	var single jsonLDItem
	if err := json.Unmarshal(raw, &single); err == nil {
		return []jsonLDItem{single}
	}
	return nil
}

// decodeJSONLDPrice handles offers as an object or an array, with price as
// a JSON number or a formatted string like "£325,000".
func decodeJSONLDPrice(raw json.RawMessage) *int {
	if len(raw) == 0 {
		return nil
	}

	var offer jsonLDOffer
	if err := json.Unmarshal(raw, &offer); err != nil {
		var offers []jsonLDOffer
		if err := json.Unmarshal(raw, &offers); err != nil || len(offers) == 0 {
			return nil
		}
		offer = offers[0]
	}
	if len(offer.Price) == 0 {
		return nil
	}

	var num float64
	if err := json.Unmarshal(offer.Price, &num); err == nil {
		n := int(num + 0.5)
		return &n
	}

	var str string
	if err := json.Unmarshal(offer.Price, &str); err == nil {
		if p := NormalizePrice(str); p != nil {
			return p
		}
		// Plain numeric strings carry no currency marker.
		return NormalizePrice("£" + str)
	}
	return nil
}

// decodeJSONLDAddress handles address as an object or a bare string.
func decodeJSONLDAddress(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var addr jsonLDAddress
	if err := json.Unmarshal(raw, &addr); err == nil && addr.StreetAddress != "" {
		return cleanText(addr.StreetAddress)
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return cleanText(str)
	}
	return ""
}
