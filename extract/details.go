package extract

import (
	"bytes"
	"net/url"
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"housemarket-scraper/models"
)

var marketedByRe = regexp.MustCompile(`(?i)marketed by[:\s]+([A-Za-z0-9 &'\-\.]+?)(?:,|\n|$)`)

// Details holds the fields readable from a property detail page. Address
// candidates are keyword-filtered and kept in document order so the caller
// can prefer ones that are not blacklisted.
type Details struct {
	Title             string
	Price             *int
	AddressCandidates []string
	Beds              *int
	Sqft              *int
	PropertyType      models.PropertyType
	Images            []string
	AgentName         string
}

// ParseDetails extracts detail-page fields. It is selector-driven and pure;
// the caller merges the result into the search summary record.
func ParseDetails(raw []byte, baseURL string) (*Details, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	base, _ := url.Parse(baseURL)

	d := &Details{}
	pageText := cleanText(doc.Text())

	d.AgentName = extractAgentName(doc, pageText)

	title := doc.Find(`h1[data-test="property-title"]`).First()
	if title.Length() == 0 {
		title = doc.Find("h1.h4").First()
	}
	if title.Length() == 0 {
		title = doc.Find("h1").First()
	}
	d.Title = cleanText(title.Text())

	price := doc.Find(`[data-test="property-price"]`).First()
	if price.Length() == 0 {
		price = doc.Find(".otm-Price .price").First()
	}
	if price.Length() > 0 {
		d.Price = NormalizePrice(price.Text())
	}
	if d.Price == nil {
		d.Price = NormalizePrice(pageText)
	}

	doc.Find(`[itemprop="address"], .address, .text-slate, .otm-Title`).Each(func(_ int, s *goquery.Selection) {
		text := cleanText(s.Text())
		if text == "" || IsAgentAddress(text) {
			return
		}
		for _, existing := range d.AddressCandidates {
			if existing == text {
				return
			}
		}
		d.AddressCandidates = append(d.AddressCandidates, text)
	})

	if beds := doc.Find(`[itemprop="numberOfBedrooms"]`).First(); beds.Length() > 0 {
		d.Beds = NormalizeBeds(beds.Text())
	}
	if d.Beds == nil {
		d.Beds = NormalizeBeds(pageText)
	}

	d.PropertyType = MatchPropertyType(pageText)
	d.Sqft = NormalizeSqft(pageText)
	d.Images = collectImages(doc.Selection, base)

	return d, nil
}

// extractAgentName finds the selling agent's name via known selectors, then
// falls back to the "marketed by ..." phrase anywhere on the page. Matches
// must be meaningful and not suspiciously long.
func extractAgentName(doc *goquery.Document, pageText string) string {
	selectors := []string{
		`[data-test="agent-name"]`, ".agent-name", ".office-name",
		`a[href*="/agent/"]`, `a[href*="/office/"]`,
		`[data-test="branch-name"]`, ".branch-name",
	}
	for _, sel := range selectors {
		if el := doc.Find(sel).First(); el.Length() > 0 {
			name := cleanText(el.Text())
			if len(name) > 3 && len(name) <= 100 {
				return name
			}
		}
	}

	if m := marketedByRe.FindStringSubmatch(pageText); m != nil {
		name := cleanText(m[1])
		if len(name) > 3 && len(name) <= 100 {
			return name
		}
	}
	return ""
}
