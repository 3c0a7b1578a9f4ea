package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Ibino273/raspi-moto-scraper/models"
)

type recordingSink struct {
	rows []models.RawDetail
}

func (r *recordingSink) WriteRaw(d models.RawDetail) error {
	r.rows = append(r.rows, d)
	return nil
}

func (r *recordingSink) Close() error { return nil }

func newTestOrchestrator(src *fakeSource, store *memStore, limits Limits) *Orchestrator {
	return NewOrchestrator(src, store, Options{
		Limits:     limits,
		NavRetry:   instantRetry(2),
		StoreRetry: instantRetry(2),
		Now:        fixedNow,
	}, newTestLogger())
}

func TestRunEnforcesTotalBound(t *testing.T) {
	src := newFakeSource()
	src.addPage(1, 100, 5)
	src.addPage(2, 200, 5)
	src.addPage(3, 300, 5)
	store := newMemStore()

	stats, err := newTestOrchestrator(src, store, Limits{MaxPages: 3, MaxListingsPerPage: 999, MaxTotalListings: 6}).
		Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 6, stats.ListingsProcessed)
	require.Equal(t, 6, stats.Inserted)
	require.Zero(t, stats.ErrorCount)
	require.Len(t, src.detailCalls, 6)
	require.Equal(t, []int{1, 2}, src.indexCalls)
	require.NotEmpty(t, stats.RunID)
	require.Equal(t, 2, stats.PagesVisited)
}

func TestRunIsolatesListingFailures(t *testing.T) {
	src := newFakeSource()
	src.addPage(1, 100, 4)
	src.failDetail[src.pages[1][0].URL] = true
	src.panicDetail[src.pages[1][1].URL] = true
	store := newMemStore()
	store.failInsert["102"] = 10

	stats, err := newTestOrchestrator(src, store, Limits{MaxPages: 1, MaxTotalListings: 50}).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 4, stats.ListingsProcessed)
	require.Equal(t, 1, stats.Inserted)
	require.Equal(t, 3, stats.ErrorCount)
	require.Len(t, stats.Failures, 3)
	require.Equal(t, models.StageDetail, stats.Failures[0].Stage)
	require.Equal(t, models.StageDetail, stats.Failures[1].Stage)
	require.Contains(t, stats.Failures[1].Err.Error(), "panic")
	require.Equal(t, models.StagePersist, stats.Failures[2].Stage)
	require.Equal(t, 1, stats.Failures[2].Page)
	require.NotNil(t, store.get("103"))
}

func TestRunSkipsFailedIndexPage(t *testing.T) {
	src := newFakeSource()
	src.addPage(1, 100, 2)
	src.addPage(3, 300, 2)
	src.failIndex[2] = -1
	store := newMemStore()

	stats, err := newTestOrchestrator(src, store, Limits{MaxPages: 3, MaxTotalListings: 50}).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 4, stats.Inserted)
	require.Equal(t, 1, stats.PagesFailed)
	require.Equal(t, 2, stats.PagesVisited)
	require.Len(t, stats.Failures, 1)
	require.Equal(t, models.StageIndex, stats.Failures[0].Stage)
	require.Equal(t, 2, stats.Failures[0].Page)
}

func TestRunTwiceUpdatesInsteadOfDuplicating(t *testing.T) {
	src := newFakeSource()
	src.addPage(1, 100, 3)
	store := newMemStore()
	limits := Limits{MaxPages: 1, MaxTotalListings: 50}

	first, err := newTestOrchestrator(src, store, limits).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, first.Inserted)

	second, err := newTestOrchestrator(src, store, limits).Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, second.Inserted)
	require.Equal(t, 3, second.Updated)
	require.Len(t, store.rows, 3)
	require.NotEqual(t, first.RunID, second.RunID)
}

func TestRunTeesRawDetails(t *testing.T) {
	src := newFakeSource()
	src.addPage(1, 100, 2)
	sink := &recordingSink{}

	o := newTestOrchestrator(src, newMemStore(), Limits{MaxPages: 1}).WithRawWriter(sink)
	_, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sink.rows, 2)
	require.Equal(t, src.pages[1][0].URL, sink.rows[0].URL)
}

func TestRunStopsOnCancel(t *testing.T) {
	src := newFakeSource()
	src.addPage(1, 100, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := newTestOrchestrator(src, newMemStore(), Limits{MaxPages: 1}).Run(ctx)
	require.True(t, errors.Is(err, context.Canceled))
	require.Zero(t, stats.Inserted)
}
