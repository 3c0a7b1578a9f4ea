package models

import "time"

// Well-known keys of RawDetail.Fields.
const (
	FieldTitle       = "title"
	FieldPrice       = "price"
	FieldPublishDate = "publish_date"
	FieldLikes       = "likes"
	FieldCity        = "city"
)

// ListingRef is a single ad reference found on an index page. City and
// PostedOn ("18/10") come from the card's location line when it has one.
type ListingRef struct {
	URL      string
	Title    string
	City     string
	PostedOn string
	Page     int
}

// FeaturePair is one label/value row of a detail page's feature table.
type FeaturePair struct {
	Label string
	Value string
}

// RawDetail holds unprocessed text scraped from a detail page.
// A key present in Fields means the element was found, even if its text is empty.
type RawDetail struct {
	URL      string
	Fields   map[string]string
	Features []FeaturePair
}

// Field returns the raw text for key and whether it was present on the page.
func (r RawDetail) Field(key string) (string, bool) {
	if r.Fields == nil {
		return "", false
	}
	v, ok := r.Fields[key]
	return v, ok
}

// Listing is the normalized record ready for storage.
// Empty strings and nil pointers mean the field is absent.
type Listing struct {
	NaturalKey  string
	Title       string
	Price       *float64
	Brand       string
	Model       string
	Version     string
	VehicleType string
	Year        *int
	MileageKm   *int
	EngineCC    *int
	LikesCount  int
	City        string
	PublishDate *time.Time
	DetailURL   string
	ScrapedAt   time.Time

	// HasLikes is set when the likes counter was found on the page. Without
	// it LikesCount is stored as 0 on insert and left alone on update.
	HasLikes bool
}

// ListingPatch is a partial update. Nil fields are not sent and the store
// keeps whatever value it already has for them.
type ListingPatch struct {
	Title       *string
	Price       *float64
	Brand       *string
	Model       *string
	Version     *string
	VehicleType *string
	Year        *int
	MileageKm   *int
	EngineCC    *int
	LikesCount  *int
	City        *string
	PublishDate *time.Time
	DetailURL   *string
	ScrapedAt   *time.Time
}

// Patch builds the partial update carrying every field present on l.
func (l *Listing) Patch() ListingPatch {
	p := ListingPatch{
		Price:       l.Price,
		Year:        l.Year,
		MileageKm:   l.MileageKm,
		EngineCC:    l.EngineCC,
		PublishDate: l.PublishDate,
	}
	p.Title = nonEmpty(l.Title)
	p.Brand = nonEmpty(l.Brand)
	p.Model = nonEmpty(l.Model)
	p.Version = nonEmpty(l.Version)
	p.VehicleType = nonEmpty(l.VehicleType)
	p.City = nonEmpty(l.City)
	p.DetailURL = nonEmpty(l.DetailURL)

	if l.HasLikes {
		likes := l.LikesCount
		p.LikesCount = &likes
	}
	scraped := l.ScrapedAt
	p.ScrapedAt = &scraped
	return p
}

// Apply merges p into l, leaving fields p does not carry untouched.
func (l *Listing) Apply(p ListingPatch) {
	if p.Title != nil {
		l.Title = *p.Title
	}
	if p.Price != nil {
		l.Price = p.Price
	}
	if p.Brand != nil {
		l.Brand = *p.Brand
	}
	if p.Model != nil {
		l.Model = *p.Model
	}
	if p.Version != nil {
		l.Version = *p.Version
	}
	if p.VehicleType != nil {
		l.VehicleType = *p.VehicleType
	}
	if p.Year != nil {
		l.Year = p.Year
	}
	if p.MileageKm != nil {
		l.MileageKm = p.MileageKm
	}
	if p.EngineCC != nil {
		l.EngineCC = p.EngineCC
	}
	if p.LikesCount != nil {
		l.LikesCount = *p.LikesCount
		l.HasLikes = true
	}
	if p.City != nil {
		l.City = *p.City
	}
	if p.PublishDate != nil {
		l.PublishDate = p.PublishDate
	}
	if p.DetailURL != nil {
		l.DetailURL = *p.DetailURL
	}
	if p.ScrapedAt != nil {
		l.ScrapedAt = *p.ScrapedAt
	}
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Failure stages recorded in RunStats.
const (
	StageIndex     = "index"
	StageDetail    = "detail"
	StageNormalize = "normalize"
	StagePersist   = "persist"
)

// Failure is one non-fatal error recorded during a run.
type Failure struct {
	Stage string
	Page  int
	URL   string
	Err   error
}

// RunStats summarises a single execution. It is owned by the orchestrator
// and handed back to the caller when the run ends.
type RunStats struct {
	RunID             string
	StartedAt         time.Time
	FinishedAt        time.Time
	PagesVisited      int
	PagesFailed       int
	ListingsProcessed int
	Inserted          int
	Updated           int
	ErrorCount        int
	Failures          []Failure
}

// Duration is the wall-clock length of the run.
func (s RunStats) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// InsightReport holds market analytics over the stored listings.
type InsightReport struct {
	TotalListings    int
	PricedListings   int
	AveragePrice     float64
	MedianPrice      float64
	MinPrice         float64
	MaxPrice         float64
	AverageMileageKm int
	MostExpensive    *Listing
	MostLiked        []*Listing
	ListingsByBrand  map[string]int
}
