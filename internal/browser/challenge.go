package browser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var challengeTitles = []string{
	"just a moment",
	"attention required",
	"checking your browser",
	"ddos-guard",
}

var challengeSelectors = []string{
	"#challenge-form",
	"#challenge-running",
	"#cf-challenge-running",
	"#cf-wrapper",
	"iframe[src*='challenges.cloudflare.com']",
	"script[src*='/cdn-cgi/challenge-platform/']",
}

// DetectChallenge reports whether html is an anti-bot interstitial rather
// than the requested page, and which marker matched.
func DetectChallenge(html string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}
	title := strings.ToLower(strings.TrimSpace(doc.Find("title").First().Text()))
	for _, t := range challengeTitles {
		if strings.Contains(title, t) {
			return "title:" + t, true
		}
	}
	for _, sel := range challengeSelectors {
		if doc.Find(sel).Length() > 0 {
			return "element:" + sel, true
		}
	}
	return "", false
}
