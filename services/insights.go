package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Ibino273/raspi-moto-scraper/models"
	"github.com/Ibino273/raspi-moto-scraper/utils"
)

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate computes market analytics over listings. Listings without a
// price are counted but left out of the price statistics.
func (s *InsightService) Generate(listings []*models.Listing) *models.InsightReport {
	report := &models.InsightReport{
		ListingsByBrand: make(map[string]int),
	}

	if len(listings) == 0 {
		return report
	}

	report.TotalListings = len(listings)

	var prices []float64
	var liked []*models.Listing
	var mileageTotal, mileageCount int

	for _, l := range listings {
		if l.Price != nil {
			prices = append(prices, *l.Price)
			if report.MostExpensive == nil || *l.Price > *report.MostExpensive.Price {
				report.MostExpensive = l
			}
		}
		if l.LikesCount > 0 {
			liked = append(liked, l)
		}
		if l.MileageKm != nil {
			mileageTotal += *l.MileageKm
			mileageCount++
		}
		if brand := CanonicalBrand(l.Brand); brand != "" {
			report.ListingsByBrand[brand]++
		}
	}

	report.PricedListings = len(prices)
	if len(prices) > 0 {
		sort.Float64s(prices)
		var total float64
		for _, p := range prices {
			total += p
		}
		report.AveragePrice = round2(total / float64(len(prices)))
		report.MinPrice = round2(prices[0])
		report.MaxPrice = round2(prices[len(prices)-1])
		mid := len(prices) / 2
		if len(prices)%2 == 0 {
			report.MedianPrice = round2((prices[mid-1] + prices[mid]) / 2)
		} else {
			report.MedianPrice = round2(prices[mid])
		}
	}
	if mileageCount > 0 {
		report.AverageMileageKm = mileageTotal / mileageCount
	}

	// Top 5 by likes
	sort.SliceStable(liked, func(i, j int) bool {
		return liked[i].LikesCount > liked[j].LikesCount
	})
	if len(liked) > 5 {
		report.MostLiked = liked[:5]
	} else {
		report.MostLiked = liked
	}

	s.logger.Debug("[insights] %d listings, %d priced, %d brands",
		report.TotalListings, report.PricedListings, len(report.ListingsByBrand))
	return report
}

// Print renders the report as tables on w.
func (s *InsightService) Print(w io.Writer, r *models.InsightReport) {
	fmt.Fprintf(w, "\n\033[1;35m  MOTORCYCLE MARKET INSIGHTS\033[0m\n")

	overview := table.NewWriter()
	overview.SetOutputMirror(w)
	overview.SetTitle("Overview")
	overview.AppendRows([]table.Row{
		{"Listings stored", r.TotalListings},
		{"With a price", r.PricedListings},
	})
	if r.PricedListings > 0 {
		overview.AppendRows([]table.Row{
			{"Average price", euro(r.AveragePrice)},
			{"Median price", euro(r.MedianPrice)},
			{"Minimum price", euro(r.MinPrice)},
			{"Maximum price", euro(r.MaxPrice)},
		})
	}
	if r.AverageMileageKm > 0 {
		overview.AppendRow(table.Row{"Average mileage", fmt.Sprintf("%d km", r.AverageMileageKm)})
	}
	if r.MostExpensive != nil {
		overview.AppendRow(table.Row{"Most expensive", truncate(r.MostExpensive.Title, 50)})
	}
	overview.SetStyle(table.StyleRounded)
	overview.Render()

	if len(r.MostLiked) > 0 {
		liked := table.NewWriter()
		liked.SetOutputMirror(w)
		liked.SetTitle("Most liked")
		liked.AppendHeader(table.Row{"#", "Title", "Price", "Likes"})
		for i, l := range r.MostLiked {
			price := "-"
			if l.Price != nil {
				price = euro(*l.Price)
			}
			liked.AppendRow(table.Row{i + 1, truncate(l.Title, 40), price, l.LikesCount})
		}
		liked.SetStyle(table.StyleRounded)
		liked.Render()
	}

	if len(r.ListingsByBrand) > 0 {
		type brandCount struct {
			brand string
			count int
		}
		var brands []brandCount
		for b, n := range r.ListingsByBrand {
			brands = append(brands, brandCount{b, n})
		}
		sort.Slice(brands, func(i, j int) bool {
			if brands[i].count != brands[j].count {
				return brands[i].count > brands[j].count
			}
			return brands[i].brand < brands[j].brand
		})

		byBrand := table.NewWriter()
		byBrand.SetOutputMirror(w)
		byBrand.SetTitle("Listings by brand")
		byBrand.AppendHeader(table.Row{"Brand", "Listings", ""})
		for _, bc := range brands {
			byBrand.AppendRow(table.Row{truncate(bc.brand, 28), bc.count, strings.Repeat("█", bc.count)})
		}
		byBrand.SetStyle(table.StyleRounded)
		byBrand.Render()
	}
}

func euro(f float64) string {
	return fmt.Sprintf("€ %.2f", f)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
