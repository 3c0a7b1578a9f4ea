package services

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Ibino273/raspi-moto-scraper/models"
)

func sampleListings() []*models.Listing {
	return []*models.Listing{
		{NaturalKey: "1", Title: "Ducati Monster", Brand: "Ducati", Price: ptr(9000.0), LikesCount: 7, MileageKm: ptr(10000)},
		{NaturalKey: "2", Title: "Honda Hornet", Brand: "Honda", Price: ptr(3000.0), LikesCount: 2, MileageKm: ptr(30000)},
		{NaturalKey: "3", Title: "Honda SH 125", Brand: "Honda", Price: ptr(2500.0), LikesCount: 9},
		{NaturalKey: "4", Title: "BMW R 1250 GS", Brand: "BMW", Price: ptr(15500.0)},
		{NaturalKey: "5", Title: "Vespa senza prezzo", Brand: "Piaggio", LikesCount: 1},
		{NaturalKey: "6", Title: "Ricambi vari"},
	}
}

func TestInsightCounts(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(sampleListings())
	if r.TotalListings != 6 {
		t.Errorf("TotalListings: got %d, want 6", r.TotalListings)
	}
	if r.PricedListings != 4 {
		t.Errorf("PricedListings: got %d, want 4", r.PricedListings)
	}
}

func TestInsightPrices(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(sampleListings())
	if r.AveragePrice != 7500 {
		t.Errorf("AveragePrice: got %.2f, want 7500", r.AveragePrice)
	}
	if r.MedianPrice != 6000 {
		t.Errorf("MedianPrice: got %.2f, want 6000", r.MedianPrice)
	}
	if r.MinPrice != 2500 {
		t.Errorf("MinPrice: got %.2f, want 2500", r.MinPrice)
	}
	if r.MaxPrice != 15500 {
		t.Errorf("MaxPrice: got %.2f, want 15500", r.MaxPrice)
	}
	if r.AverageMileageKm != 20000 {
		t.Errorf("AverageMileageKm: got %d, want 20000", r.AverageMileageKm)
	}
}

func TestInsightMostExpensive(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(sampleListings())
	if r.MostExpensive == nil {
		t.Fatal("MostExpensive should not be nil")
	}
	if r.MostExpensive.Title != "BMW R 1250 GS" {
		t.Errorf("MostExpensive: got %q, want %q", r.MostExpensive.Title, "BMW R 1250 GS")
	}
}

func TestInsightMostLiked(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(sampleListings())
	if len(r.MostLiked) != 4 {
		t.Fatalf("MostLiked len: got %d, want 4", len(r.MostLiked))
	}
	if r.MostLiked[0].LikesCount != 9 {
		t.Errorf("MostLiked[0].LikesCount: got %d, want 9", r.MostLiked[0].LikesCount)
	}
}

func TestInsightBrandGrouping(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(sampleListings())
	if r.ListingsByBrand["Honda"] != 2 {
		t.Errorf("Honda count: got %d, want 2", r.ListingsByBrand["Honda"])
	}
	if _, ok := r.ListingsByBrand[""]; ok {
		t.Errorf("listings without brand should not be grouped")
	}
}

func TestInsightBrandGroupingFoldsCase(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate([]*models.Listing{
		{NaturalKey: "1", Brand: "HONDA"},
		{NaturalKey: "2", Brand: "honda"},
		{NaturalKey: "3", Brand: "Honda"},
		{NaturalKey: "4", Brand: "BMW"},
		{NaturalKey: "5", Brand: "MV Agusta"},
	})
	want := map[string]int{"Honda": 3, "BMW": 1, "MV Agusta": 1}
	if diff := cmp.Diff(want, r.ListingsByBrand); diff != "" {
		t.Errorf("ListingsByBrand mismatch (-want +got):\n%s", diff)
	}
}

func TestInsightEmptyInput(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(nil)
	if r.TotalListings != 0 {
		t.Errorf("expected 0 total listings for empty input")
	}
	if r.MostExpensive != nil {
		t.Errorf("expected no most expensive listing for empty input")
	}
}

func TestInsightPrint(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	var buf bytes.Buffer
	svc.Print(&buf, svc.Generate(sampleListings()))

	out := buf.String()
	for _, want := range []string{"Overview", "€ 7500.00", "Honda SH 125", "Listings by brand", "Ducati"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}
