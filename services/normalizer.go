package services

import (
	"math"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/Ibino273/raspi-moto-scraper/models"
	"github.com/Ibino273/raspi-moto-scraper/utils"
)

var (
	// relativeDateRegexp matches "oggi alle 14:30" and "ieri alle 09:00".
	relativeDateRegexp = regexp.MustCompile(`^(oggi|ieri)\s+alle\s+(\d{1,2})[:.](\d{2})$`)
	// dayMonthRegexp matches "5 mar alle 10:15"; longer month names are cut to three letters.
	dayMonthRegexp = regexp.MustCompile(`^(\d{1,2})\s+([a-z]{3})[a-z]*\.?\s+alle\s+(\d{1,2})[:.](\d{2})$`)
	// yearRegexp finds a plausible model year inside free text such as "03/2015".
	yearRegexp = regexp.MustCompile(`(?:^|\D)((?:19|20)\d{2})(?:\D|$)`)
	// cardDateRegexp matches the "18/10" day/month stamp of an index card.
	cardDateRegexp = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})$`)
	// adIDRegexp captures the site id at the end of a detail page name.
	adIDRegexp = regexp.MustCompile(`(?:^|[-_])(\d+)$`)
)

var italianMonths = map[string]time.Month{
	"gen": time.January,
	"feb": time.February,
	"mar": time.March,
	"apr": time.April,
	"mag": time.May,
	"giu": time.June,
	"lug": time.July,
	"ago": time.August,
	"set": time.September,
	"ott": time.October,
	"nov": time.November,
	"dic": time.December,
}

// Normalizer turns raw detail text into a Listing. It never fails: anything
// it cannot parse becomes an absent field.
type Normalizer struct {
	logger *utils.Logger
	now    func() time.Time
}

// NewNormalizer creates a Normalizer. now supplies the reference clock for
// relative dates and the scrape timestamp; nil means time.Now.
func NewNormalizer(logger *utils.Logger, now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{logger: logger, now: now}
}

// Normalize builds the Listing for ref from the raw detail fields.
func (n *Normalizer) Normalize(ref models.ListingRef, raw models.RawDetail) *models.Listing {
	now := n.now()
	detailURL := strings.TrimSpace(raw.URL)
	if detailURL == "" {
		detailURL = strings.TrimSpace(ref.URL)
	}

	l := &models.Listing{
		NaturalKey: NaturalKey(detailURL),
		DetailURL:  detailURL,
		ScrapedAt:  now,
	}

	if title, ok := raw.Field(models.FieldTitle); ok {
		l.Title = normaliseText(title)
	}
	if l.Title == "" {
		l.Title = normaliseText(ref.Title)
	}

	if price, ok := raw.Field(models.FieldPrice); ok {
		l.Price = ParsePrice(price)
	}
	if date, ok := raw.Field(models.FieldPublishDate); ok {
		l.PublishDate = ParseDate(date, now)
		if l.PublishDate == nil && strings.TrimSpace(date) != "" {
			n.logger.Debug("[normalizer] Unrecognised publish date %q for %s", date, detailURL)
		}
	}
	if l.PublishDate == nil && ref.PostedOn != "" {
		l.PublishDate = ParseCardDate(ref.PostedOn, now)
	}
	likes, ok := raw.Field(models.FieldLikes)
	l.LikesCount = ParseLikes(likes, ok)
	l.HasLikes = ok

	if city, ok := raw.Field(models.FieldCity); ok {
		l.City = normaliseText(city)
	}
	if l.City == "" {
		l.City = normaliseText(ref.City)
	}

	features := NewFeatureTable(raw.Features)
	if v, ok := features.Brand(); ok {
		l.Brand = CanonicalBrand(v)
	}
	if v, ok := features.Model(); ok {
		l.Model = v
	}
	if v, ok := features.Version(); ok {
		l.Version = v
	}
	if v, ok := features.VehicleType(); ok {
		l.VehicleType = v
	}
	if v, ok := features.Registration(); ok {
		l.Year = ParseYear(v)
	}
	if v, ok := features.Mileage(); ok {
		l.MileageKm = ParseInt(v)
	}
	if v, ok := features.Displacement(); ok {
		l.EngineCC = ParseInt(v)
	}

	return l
}

// NaturalKey derives the listing identity from its detail URL: the numeric id
// ending the page name ("...-560123456.htm" -> "560123456"), or the page name
// itself when it carries no id. Returns "" when the URL has no page name.
func NaturalKey(detailURL string) string {
	detailURL = strings.TrimSpace(detailURL)
	if detailURL == "" {
		return ""
	}
	p := detailURL
	if u, err := url.Parse(detailURL); err == nil {
		p = u.Path
	}
	name := path.Base(strings.TrimRight(p, "/"))
	if name == "." || name == "/" || name == "" {
		return ""
	}
	name = strings.TrimSuffix(name, path.Ext(name))
	if m := adIDRegexp.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	return name
}

// ParsePrice converts an Italian-formatted price ("€12.345,00") to a number.
// It returns nil for empty, unparsable or negative input.
func ParsePrice(raw string) *float64 {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '€' || r == '.' {
			return -1
		}
		if r == ',' {
			return '.'
		}
		return r
	}, raw)
	if cleaned == "" {
		return nil
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// ParseDate recognises "oggi alle HH:MM", "ieri alle HH:MM" and
// "D MON alle HH:MM" relative to now, in now's location. Anything else is nil.
func ParseDate(raw string, now time.Time) *time.Time {
	s := strings.ToLower(normaliseText(raw))
	if s == "" {
		return nil
	}
	loc := now.Location()

	if m := relativeDateRegexp.FindStringSubmatch(s); m != nil {
		hour, minute, ok := clock(m[2], m[3])
		if !ok {
			return nil
		}
		day := now
		if m[1] == "ieri" {
			day = now.AddDate(0, 0, -1)
		}
		t := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
		return &t
	}

	if m := dayMonthRegexp.FindStringSubmatch(s); m != nil {
		month, known := italianMonths[m[2]]
		if !known {
			return nil
		}
		day, err := strconv.Atoi(m[1])
		if err != nil {
			return nil
		}
		hour, minute, ok := clock(m[3], m[4])
		if !ok {
			return nil
		}
		t := time.Date(now.Year(), month, day, hour, minute, 0, 0, loc)
		// time.Date silently rolls 31 feb into march.
		if t.Day() != day || t.Month() != month {
			return nil
		}
		return &t
	}

	return nil
}

// ParseCardDate reads the "DD/MM" stamp of an index card as midnight of that
// day in now's location. The card carries no year: the current one is
// assumed, or the previous one when that would put the date in the future.
func ParseCardDate(raw string, now time.Time) *time.Time {
	m := cardDateRegexp.FindStringSubmatch(normaliseText(raw))
	if m == nil {
		return nil
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return nil
	}
	year := now.Year()
	if time.Month(month) > now.Month() || (time.Month(month) == now.Month() && day > now.Day()) {
		year--
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
	if t.Day() != day {
		return nil
	}
	return &t
}

func clock(h, m string) (int, int, bool) {
	hour, err := strconv.Atoi(h)
	if err != nil || hour > 23 {
		return 0, 0, false
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

// ParseInt keeps only the digits of raw ("12.345 km" -> 12345).
// It returns nil when no digits remain or the value overflows.
func ParseInt(raw string) *int {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if digits == "" {
		return nil
	}
	v, err := strconv.Atoi(digits)
	if err != nil {
		return nil
	}
	return &v
}

// ParseYear returns a 4-digit year. When the digit-only reading is not a
// year (a registration like "03/2015") it looks for a 19xx/20xx group.
func ParseYear(raw string) *int {
	if v := ParseInt(raw); v != nil && *v >= 1000 && *v <= 9999 {
		return v
	}
	m := yearRegexp.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	return ParseInt(m[1])
}

// ParseLikes reads the favourites counter; a missing or unreadable counter is
// 0. Callers track presence separately so a missing counter is not stored.
func ParseLikes(raw string, present bool) int {
	if !present {
		return 0
	}
	if v := ParseInt(raw); v != nil {
		return *v
	}
	return 0
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}
