package extract

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var resultCountRe = regexp.MustCompile(`(?i)([\d,]+)\s+(?:results?|properties)`)

// TotalResults reads the total result count from a search page so the
// caller can derive how many pages to walk. It tries the explicit count
// container first, then the phrase anywhere on the page. ok is false when
// no count could be determined.
func TotalResults(raw []byte) (count int, ok bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return 0, false
	}

	if rc := doc.Find(".otm-ResultCount").First(); rc.Length() > 0 {
		if n, ok := parseResultCount(rc.Text()); ok {
			return n, true
		}
	}

	return parseResultCount(doc.Text())
}

func parseResultCount(text string) (int, bool) {
	m := resultCountRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0, false
	}
	return n, true
}
