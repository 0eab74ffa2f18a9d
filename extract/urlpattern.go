package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"housemarket-scraper/models"
)

var (
	detailIDRe = regexp.MustCompile(`/details/(\d+)`)
	slugBedsRe = regexp.MustCompile(`(?i)\b(\d+)-bed\b`)
)

// SourceIDFromURL derives the stable listing identity from its URL: the
// numeric id in the /details/ path when present, otherwise the URL itself
// stripped of query and fragment.
func SourceIDFromURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	if m := detailIDRe.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// parseDetailLinks is the URL-convention strategy: every detail-page link
// identifies a listing, the link slug often encodes the property type,
// bedroom count and a location hint, and the card markup around the link
// carries what the slug cannot (price, address, photos). The URL itself
// never yields numerics; those come only from the card context.
func parseDetailLinks(doc *goquery.Document, base *url.URL) []*models.ListingRecord {
	var out []*models.ListingRecord
	seen := make(map[string]struct{})

	doc.Find(`a[href*="/details/"]`).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if href == "" {
			return
		}
		u := absURL(base, href)
		if u == "" {
			return
		}
		if _, dup := seen[u]; dup {
			return
		}
		seen[u] = struct{}{}

		rec := &models.ListingRecord{URL: u, SourceID: SourceIDFromURL(u)}
		rec.PropertyType = MatchPropertyType(slugText(u))
		rec.Beds = slugBeds(u)

		card := cardContainer(a)
		if card != nil {
			cardText := cleanText(card.Text())
			rec.Price = NormalizePrice(cardText)
			if rec.Beds == nil {
				rec.Beds = NormalizeBeds(cardText)
			}
			if rec.PropertyType == models.TypeUnknown {
				rec.PropertyType = MatchPropertyType(cardText)
			}
			rec.Address = cardAddress(card)
			rec.Images = collectImages(card, base)
		}

		if title := cleanText(a.Text()); title != "" {
			rec.Title = title
		} else if card != nil {
			rec.Title = cleanText(card.Find(`[itemprop="name"]`).First().Text())
		}
		if rec.Title == "" {
			if loc := slugLocation(u); loc != "" {
				rec.Title = loc
			} else if m := detailIDRe.FindStringSubmatch(u); m != nil {
				rec.Title = fmt.Sprintf("Property %s", m[1])
			}
		}

		out = append(out, rec)
	})

	return out
}

// cardContainer climbs from a detail link to the element that most likely
// wraps the whole listing card. Loose links directly under body get no
// card context: mining the full page would bleed neighboring listings into
// one record.
func cardContainer(a *goquery.Selection) *goquery.Selection {
	node := a.Parent()
	for depth := 0; depth < 10 && node.Length() > 0; depth++ {
		name := goquery.NodeName(node)
		if name == "body" || name == "html" {
			return nil
		}
		if isCardNode(node, name) {
			return node
		}
		node = node.Parent()
	}

	if p := a.Parent(); p.Length() > 0 {
		if name := goquery.NodeName(p); name != "body" && name != "html" {
			return p
		}
	}
	return nil
}

func isCardNode(s *goquery.Selection, name string) bool {
	switch name {
	case "article", "li", "section":
		return true
	}
	class, _ := s.Attr("class")
	class = strings.ToLower(class)
	for _, kw := range []string{"property", "card", "listing", "result"} {
		if strings.Contains(class, kw) {
			return true
		}
	}
	return false
}

// streetWords hint that a bare text node is a postal address.
var streetWords = []string{
	"road", "street", "avenue", "drive", "lane", "close",
	"court", "place", "way", "square", "terrace", "crescent",
	"park", "gardens", "rise",
}

// cardAddress picks the first address in the card that is not an
// agent-office address: semantic and class-based markup first, then a
// street-word scan over the card's text nodes.
func cardAddress(card *goquery.Selection) string {
	var addr string
	sel := `[itemprop="streetAddress"], [itemprop="address"], .address, [class*="address"]`
	card.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := cleanText(s.Text())
		if text == "" || IsAgentAddress(text) {
			return true
		}
		addr = text
		return false
	})
	if addr != "" {
		return addr
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if addr != "" {
			return
		}
		if n.Type == html.TextNode {
			text := cleanText(n.Data)
			if text == "" {
				return
			}
			lower := strings.ToLower(text)
			for _, w := range streetWords {
				if strings.Contains(lower, w) {
					if !IsAgentAddress(text) {
						addr = text
					}
					return
				}
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range card.Nodes {
		walk(n)
	}
	return addr
}

// slugText flattens the URL path into words so type keywords like
// "semi-detached" can be matched with the usual word boundaries.
func slugText(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ReplaceAll(u.Path, "/", " ")
}

// slugBeds reads a "<n>-bed" convention out of the URL path.
func slugBeds(rawURL string) *int {
	m := slugBedsRe.FindStringSubmatch(slugText(rawURL))
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}

// slugLocation returns the human-readable location segment of a listing
// URL, e.g. "barbourne-worcester" -> "Barbourne Worcester". Numeric and
// known structural segments are skipped.
func slugLocation(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	structural := map[string]struct{}{
		"details": {}, "for-sale": {}, "property": {}, "properties": {},
	}

	var loc string
	for _, seg := range strings.Split(u.Path, "/") {
		if seg == "" {
			continue
		}
		if _, skip := structural[seg]; skip {
			continue
		}
		if _, err := strconv.Atoi(seg); err == nil {
			continue
		}
		loc = seg
	}
	if loc == "" {
		return ""
	}

	words := strings.Split(loc, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
