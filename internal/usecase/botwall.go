package usecase

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var botWallMarkers = []string{
	"captcha",
	"access denied",
	"are you a robot",
	"verify you are human",
	"verify you are a human",
	"too many requests",
	"unusual traffic",
	"request blocked",
	"attention required",
	"press and hold",
	"pardon our interruption",
}

// DetectBotWall reports whether the document looks like an anti-bot or rate
// limit interstitial, and the marker that matched.
func DetectBotWall(html string) (bool, string) {
	if strings.TrimSpace(html) == "" {
		return false, ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false, ""
	}

	doc.Find("script, style, noscript").Remove()
	title := strings.ToLower(strings.TrimSpace(doc.Find("title").First().Text()))
	body := strings.ToLower(strings.Join(strings.Fields(doc.Find("body").Text()), " "))

	for _, marker := range botWallMarkers {
		if strings.Contains(title, marker) {
			return true, marker
		}
	}
	// Product pages can mention these words in passing; only short bodies count.
	if len(body) > 2000 {
		return false, ""
	}
	for _, marker := range botWallMarkers {
		if strings.Contains(body, marker) {
			return true, marker
		}
	}
	if doc.Find(`iframe[src*="captcha"], div.g-recaptcha, div.h-captcha, #cf-challenge-running`).Length() > 0 {
		return true, "captcha"
	}
	return false, ""
}
