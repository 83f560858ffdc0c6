package model

import (
	"slices"
	"strings"
)

// Catalog is the merged result of a crawl, keyed by Record.URL.
type Catalog map[string]Record

// CatalogStats summarizes a Catalog for logs and reports.
type CatalogStats struct {
	// Total is the number of distinct creators.
	Total int `json:"total"`

	// Recommended is the number of creators kept in their recommended form.
	Recommended int `json:"recommended"`

	// UnknownMetrics counts creators with at least one unparseable number.
	UnknownMetrics int `json:"unknown_metrics"`
}

// Sorted returns the records ordered by URL.
func (c Catalog) Sorted() []Record {
	records := make([]Record, 0, len(c))
	for _, r := range c {
		records = append(records, r)
	}
	slices.SortFunc(records, func(a, b Record) int {
		return strings.Compare(a.URL, b.URL)
	})
	return records
}

// Stats counts the catalog's records.
func (c Catalog) Stats() CatalogStats {
	stats := CatalogStats{Total: len(c)}
	for _, r := range c {
		if r.IsRecommended {
			stats.Recommended++
		}
		if r.HasUnknownMetric() {
			stats.UnknownMetrics++
		}
	}
	return stats
}

// TopByMonthlyRevenue returns up to n records with the highest monthly
// revenue. Records with an unknown monthly revenue are skipped.
// Ties are broken by URL so the order is stable.
func (c Catalog) TopByMonthlyRevenue(n int) []Record {
	records := make([]Record, 0, len(c))
	for _, r := range c {
		if r.MonthlyRevenue == Unknown {
			continue
		}
		records = append(records, r)
	}
	slices.SortFunc(records, func(a, b Record) int {
		switch {
		case a.MonthlyRevenue > b.MonthlyRevenue:
			return -1
		case a.MonthlyRevenue < b.MonthlyRevenue:
			return 1
		}
		return strings.Compare(a.URL, b.URL)
	})
	if n >= 0 && len(records) > n {
		records = records[:n]
	}
	return records
}
