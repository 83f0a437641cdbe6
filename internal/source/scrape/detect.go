package scrape

import (
	"bytes"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrBlocked is returned when a page looks like a bot-detection wall.
var ErrBlocked = errors.New("bot detection page")

var blockMarkers = []string{
	"verify you are human",
	"captcha",
	"cloudflare",
	"access denied",
	"blocked",
	"robot",
	"bot detected",
}

// Blocked reports whether visible page text carries a bot-detection marker.
func Blocked(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range blockMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// BlockedPage parses body and reports a bot wall: no listing rows and a
// marker in the body text. Markup such as meta robots tags is not inspected.
func BlockedPage(body []byte, rowSelector string) bool {
	if len(body) == 0 {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	if rowSelector != "" && doc.Find(rowSelector).Length() > 0 {
		return false
	}
	return Blocked(doc.Find("body").Text())
}
