package services

import (
	"fmt"
	"sort"
	"strings"

	"housemarket-scraper/models"
	"housemarket-scraper/utils"
)

// InsightService computes market statistics over stored listings for the
// end-of-run console summary.
type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

func (s *InsightService) Generate(listings []*models.ListingRecord) *models.InsightReport {
	report := &models.InsightReport{
		ByType: make(map[models.PropertyType]int),
		ByBeds: make(map[int]int),
	}

	if len(listings) == 0 {
		return report
	}

	report.TotalListings = len(listings)

	var priceTotal, priceCount int
	var ppsqftTotal, ppsqftCount int

	for _, l := range listings {
		if l.OnMarket {
			report.OnMarket++
		} else {
			report.OffMarket++
		}
		if l.PropertyType != models.TypeUnknown {
			report.ByType[l.PropertyType]++
		}
		if l.Beds != nil {
			report.ByBeds[*l.Beds]++
		}
		if l.Price == nil {
			continue
		}

		p := *l.Price
		priceTotal += p
		priceCount++
		if report.MinPrice == 0 || p < report.MinPrice {
			report.MinPrice = p
		}
		if p > report.MaxPrice {
			report.MaxPrice = p
		}
		if l.Sqft != nil && *l.Sqft > 0 {
			ppsqftTotal += p / *l.Sqft
			ppsqftCount++
		}
	}

	if priceCount > 0 {
		report.AveragePrice = priceTotal / priceCount
	}
	if ppsqftCount > 0 {
		report.AvgPricePerSqft = ppsqftTotal / ppsqftCount
	}

	return report
}

func (s *InsightService) Print(r *models.InsightReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  📊 HOUSE MARKET SNAPSHOT\033[0m\n")
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	fmt.Printf("\033[1;33m  Overview\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Listings tracked : \033[1m%d\033[0m\n", r.TotalListings)
	fmt.Printf("  On market        : \033[1m%d\033[0m\n", r.OnMarket)
	fmt.Printf("  Off market       : \033[1m%d\033[0m\n", r.OffMarket)
	fmt.Println()

	fmt.Printf("\033[1;33m  Asking Prices\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if r.AveragePrice > 0 {
		fmt.Printf("  Average : \033[1;32m£%s\033[0m\n", formatThousands(r.AveragePrice))
		fmt.Printf("  Minimum : \033[1;32m£%s\033[0m\n", formatThousands(r.MinPrice))
		fmt.Printf("  Maximum : \033[1;32m£%s\033[0m\n", formatThousands(r.MaxPrice))
		if r.AvgPricePerSqft > 0 {
			fmt.Printf("  Avg £/sqft : \033[1;32m£%d\033[0m\n", r.AvgPricePerSqft)
		}
	} else {
		fmt.Printf("  No price data available\n")
	}
	fmt.Println()

	fmt.Printf("\033[1;33m  By Property Type\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if len(r.ByType) == 0 {
		fmt.Printf("  No property type data\n")
	} else {
		type typeCount struct {
			t models.PropertyType
			n int
		}
		var types []typeCount
		for t, n := range r.ByType {
			types = append(types, typeCount{t, n})
		}
		sort.Slice(types, func(i, j int) bool { return types[i].n > types[j].n })
		for _, tc := range types {
			bar := strings.Repeat("█", tc.n)
			fmt.Printf("  %-15s %s (%d)\n", tc.t, bar, tc.n)
		}
	}
	fmt.Println()

	fmt.Printf("\033[1;33m  By Bedrooms\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if len(r.ByBeds) == 0 {
		fmt.Printf("  No bedroom data\n")
	} else {
		var beds []int
		for b := range r.ByBeds {
			beds = append(beds, b)
		}
		sort.Ints(beds)
		for _, b := range beds {
			fmt.Printf("  %d bed %s (%d)\n", b, strings.Repeat("█", r.ByBeds[b]), r.ByBeds[b])
		}
	}

	fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
}

func formatThousands(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	return s + "," + strings.Join(parts, ",")
}
