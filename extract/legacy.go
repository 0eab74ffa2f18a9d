package extract

import (
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"housemarket-scraper/models"
)

// parseLegacyCards is the last-resort strategy, tied to the site's old
// card markup. It breaks whenever the layout changes, but it is the only
// strategy that can read the per-card price, address and bedroom markup
// when structured data is missing.
func parseLegacyCards(doc *goquery.Document, base *url.URL) []*models.ListingRecord {
	cards := doc.Find("ul.grid-list-tabcontent li.otm-PropertyCard, ul.grid-list li.otm-PropertyCard")
	if cards.Length() == 0 {
		cards = doc.Find("li.otm-PropertyCard")
	}

	var out []*models.ListingRecord
	cards.Each(func(_ int, card *goquery.Selection) {
		rel := ""
		if meta := card.Find(`meta[itemprop="url"]`).First(); meta.Length() > 0 {
			rel, _ = meta.Attr("content")
		}
		if rel == "" {
			if a := card.Find(`a[href*="/details/"]`).First(); a.Length() > 0 {
				rel, _ = a.Attr("href")
			}
		}
		if rel == "" {
			return
		}

		rec := &models.ListingRecord{URL: absURL(base, rel)}

		// The save button carries the property id on some layouts.
		if save := card.Find(".save[data-property-id]").First(); save.Length() > 0 {
			rec.SourceID, _ = save.Attr("data-property-id")
		}
		if rec.SourceID == "" {
			rec.SourceID = SourceIDFromURL(rec.URL)
		}

		title := card.Find(`[itemprop="name"]`).First()
		if title.Length() == 0 {
			title = card.Find(".title a").First()
		}
		if title.Length() == 0 {
			title = card.Find(".title").First()
		}
		rec.Title = cleanText(title.Text())

		price := card.Find(".otm-Price .price").First()
		if price.Length() == 0 {
			price = card.Find(".price").First()
		}
		rec.Price = NormalizePrice(price.Text())

		addr := card.Find("span.address a").First()
		if addr.Length() == 0 {
			addr = card.Find("span.address").First()
		}
		rec.Address = cleanText(addr.Text())

		if beds := card.Find(`[itemprop="numberOfBedrooms"]`).First(); beds.Length() > 0 {
			rec.Beds = NormalizeBeds(beds.Text())
		}

		rec.PropertyType = MatchPropertyType(card.Text())
		rec.Images = collectImages(card, base)

		out = append(out, rec)
	})

	return out
}
