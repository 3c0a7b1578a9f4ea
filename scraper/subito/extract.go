package subito

import (
	"fmt"
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Ibino273/raspi-moto-scraper/models"
)

// Candidate selectors, most specific first. The site ships hashed CSS module
// class names, so only stable prefixes are matched.
var (
	priceSelectors = []string{
		`[class*="AdInfo_price"]`,
		`[class*="index-module_price"]`,
		`p[class*="price"]`,
		`[itemprop="price"]`,
	}
	dateSelectors = []string{
		`[class*="insertion-date"]`,
		`[class*="AdInfo_date"]`,
		`span[class*="date"]`,
		`time`,
	}
	likesSelectors = []string{
		`[data-testid="favorite-counter"]`,
		`[class*="favorite"] [class*="counter"]`,
		`[class*="Favorite"] [class*="counter"]`,
	}
	citySelectors = []string{
		`[class*="AdInfo_locationText"]`,
		`[class*="location-text"]`,
		`[class*="AdInfo_location"]`,
	}
	cardTownSelectors = []string{
		`[class*="town"]`,
		`[class*="location"]`,
	}
	featureItemSelectors = []string{
		`[class*="feature-list"] li`,
		`[class*="FeatureList"] li`,
		`[class*="main-data"] li`,
	}
)

// cardLocationRegexp matches the "Torino, 18/10" line of an index card.
var cardLocationRegexp = regexp.MustCompile(`^(\p{L}[\p{L}'’ .()-]*?)\s*,\s*(\d{1,2}/\d{1,2})$`)

// ParseIndex extracts the ad references of an index page. Only anchors that
// point at an ad page (".htm") and carry an h2 title are kept; relative links
// are resolved against base. Repeated links keep their first occurrence.
func ParseIndex(r io.Reader, base string) ([]models.ListingRef, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse index html: %w", err)
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	var refs []models.ListingRef
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		u, err := baseURL.Parse(strings.TrimSpace(href))
		if err != nil || path.Ext(u.Path) != ".htm" {
			return
		}
		title := a.Find("h2").First()
		if title.Length() == 0 {
			return
		}
		u.Fragment = ""
		u.RawQuery = ""
		link := u.String()
		if seen[link] {
			return
		}
		seen[link] = true
		ref := models.ListingRef{URL: link, Title: cleanText(title.Text())}
		ref.City, ref.PostedOn = cardLocation(a)
		refs = append(refs, ref)
	})
	return refs, nil
}

// cardLocation reads the city and "DD/MM" stamp of an index card, either
// from a single "City, DD/MM" line or from a town element.
func cardLocation(card *goquery.Selection) (city, postedOn string) {
	card.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Children().Length() > 0 {
			return true
		}
		if m := cardLocationRegexp.FindStringSubmatch(cleanText(s.Text())); m != nil {
			city, postedOn = m[1], m[2]
			return false
		}
		return true
	})
	if city != "" {
		return city, postedOn
	}
	for _, sel := range cardTownSelectors {
		if town := cleanText(card.Find(sel).First().Text()); town != "" {
			return town, ""
		}
	}
	return "", ""
}

// ParseDetail extracts the raw fields of an ad page. A field key is set only
// when its element exists on the page.
func ParseDetail(r io.Reader, pageURL string) (models.RawDetail, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return models.RawDetail{}, fmt.Errorf("parse detail html: %w", err)
	}

	d := models.RawDetail{URL: pageURL, Fields: make(map[string]string)}
	if h1 := doc.Find("h1").First(); h1.Length() > 0 {
		d.Fields[models.FieldTitle] = cleanText(h1.Text())
	}
	if v, ok := firstText(doc, priceSelectors); ok {
		d.Fields[models.FieldPrice] = v
	}
	if v, ok := firstText(doc, dateSelectors); ok {
		d.Fields[models.FieldPublishDate] = v
	}
	if v, ok := firstText(doc, likesSelectors); ok {
		d.Fields[models.FieldLikes] = v
	}
	if v, ok := firstText(doc, citySelectors); ok {
		d.Fields[models.FieldCity] = v
	}
	d.Features = features(doc)
	return d, nil
}

func firstText(doc *goquery.Document, selectors []string) (string, bool) {
	for _, sel := range selectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			text := cleanText(s.Text())
			if text == "" {
				if content, ok := s.Attr("content"); ok {
					text = cleanText(content)
				}
			}
			return text, true
		}
	}
	return "", false
}

// features reads the label/value table: list items holding a label span and
// a value span, or a definition list as fallback.
func features(doc *goquery.Document) []models.FeaturePair {
	var pairs []models.FeaturePair
	for _, sel := range featureItemSelectors {
		doc.Find(sel).Each(func(_ int, li *goquery.Selection) {
			spans := li.Find("span")
			if spans.Length() < 2 {
				return
			}
			pairs = append(pairs, models.FeaturePair{
				Label: cleanText(spans.First().Text()),
				Value: cleanText(spans.Last().Text()),
			})
		})
		if len(pairs) > 0 {
			return pairs
		}
	}

	doc.Find("dl dt").Each(func(_ int, dt *goquery.Selection) {
		dd := dt.NextFiltered("dd")
		if dd.Length() == 0 {
			return
		}
		pairs = append(pairs, models.FeaturePair{
			Label: cleanText(dt.Text()),
			Value: cleanText(dd.Text()),
		})
	})
	return pairs
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
