package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/Ibino273/raspi-moto-scraper/models"
	"github.com/Ibino273/raspi-moto-scraper/storage"
	"github.com/Ibino273/raspi-moto-scraper/utils"
)

func instantRetry(attempts int) *utils.RetryConfig {
	return &utils.RetryConfig{MaxAttempts: attempts, Multiplier: 2, Logger: newTestLogger()}
}

// memStore is an in-memory ListingStore. failInsert/failUpdate make the
// next n calls for a key fail.
type memStore struct {
	mu         sync.Mutex
	rows       map[string]*models.Listing
	inserts    int
	updates    int
	failFind   map[string]int
	failInsert map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		rows:       make(map[string]*models.Listing),
		failFind:   make(map[string]int),
		failInsert: make(map[string]int),
	}
}

func (m *memStore) FindByNaturalKey(_ context.Context, key string) (*models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFind[key] > 0 {
		m.failFind[key]--
		return nil, fmt.Errorf("find %s: connection reset", key)
	}
	l, ok := m.rows[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *memStore) Insert(_ context.Context, l *models.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert[l.NaturalKey] > 0 {
		m.failInsert[l.NaturalKey]--
		return fmt.Errorf("insert %s: connection reset", l.NaturalKey)
	}
	if _, ok := m.rows[l.NaturalKey]; ok {
		return fmt.Errorf("insert %s: duplicate key", l.NaturalKey)
	}
	cp := *l
	m.rows[l.NaturalKey] = &cp
	m.inserts++
	return nil
}

func (m *memStore) Update(_ context.Context, key string, p models.ListingPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.rows[key]
	if !ok {
		return storage.ErrNotFound
	}
	l.Apply(p)
	m.updates++
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) get(key string) *models.Listing {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[key]
}

// fakeSource serves canned index pages. Pages beyond the map are empty.
// Detail pages are derived from the ref unless listed in failDetail.
type fakeSource struct {
	mu          sync.Mutex
	pages       map[int][]models.ListingRef
	failIndex   map[int]int
	failDetail  map[string]bool
	panicDetail map[string]bool
	indexCalls  []int
	detailCalls []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		pages:       make(map[int][]models.ListingRef),
		failIndex:   make(map[int]int),
		failDetail:  make(map[string]bool),
		panicDetail: make(map[string]bool),
	}
}

// addPage fills page with n listings whose ids start at first.
func (f *fakeSource) addPage(page, first, n int) {
	for i := 0; i < n; i++ {
		id := first + i
		f.pages[page] = append(f.pages[page], models.ListingRef{
			URL:   fmt.Sprintf("https://www.subito.it/moto-e-scooter/moto-torino-%d.htm", id),
			Title: fmt.Sprintf("Moto %d", id),
		})
	}
}

func (f *fakeSource) FetchIndexPage(_ context.Context, page int) ([]models.ListingRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexCalls = append(f.indexCalls, page)
	if f.failIndex[page] != 0 {
		if f.failIndex[page] > 0 {
			f.failIndex[page]--
		}
		return nil, fmt.Errorf("page %d: navigation timeout", page)
	}
	refs := make([]models.ListingRef, len(f.pages[page]))
	copy(refs, f.pages[page])
	return refs, nil
}

func (f *fakeSource) FetchDetail(_ context.Context, ref models.ListingRef) (models.RawDetail, error) {
	f.mu.Lock()
	f.detailCalls = append(f.detailCalls, ref.URL)
	fail, boom := f.failDetail[ref.URL], f.panicDetail[ref.URL]
	f.mu.Unlock()

	if boom {
		panic("unexpected page layout")
	}
	if fail {
		return models.RawDetail{}, fmt.Errorf("detail %s: navigation timeout", ref.URL)
	}
	return models.RawDetail{
		URL: ref.URL,
		Fields: map[string]string{
			models.FieldTitle: ref.Title,
			models.FieldPrice: "€ 3.500",
			models.FieldLikes: "2",
		},
		Features: []models.FeaturePair{{Label: "Marca", Value: "Honda"}},
	}, nil
}
