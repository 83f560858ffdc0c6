package model

import (
	"slices"
	"strings"
)

// RecordChange pairs two snapshots of the same creator.
type RecordChange struct {
	Before Record `json:"before"`
	After  Record `json:"after"`
}

// MonthlyDelta is the change in monthly revenue, or 0 when either side is
// Unknown.
func (c RecordChange) MonthlyDelta() float64 {
	if c.Before.MonthlyRevenue == Unknown || c.After.MonthlyRevenue == Unknown {
		return 0
	}
	return c.After.MonthlyRevenue - c.Before.MonthlyRevenue
}

// CatalogDiff describes how a newer catalog differs from an older one.
type CatalogDiff struct {
	Added   []Record       `json:"added"`
	Removed []Record       `json:"removed"`
	Changed []RecordChange `json:"changed"`
}

// Empty reports whether the two catalogs were identical.
func (d CatalogDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// DiffCatalogs compares older with newer. Records present in both are
// changed when their fingerprints differ. Every list is ordered by URL.
func DiffCatalogs(older, newer Catalog) CatalogDiff {
	d := CatalogDiff{
		Added:   make([]Record, 0),
		Removed: make([]Record, 0),
		Changed: make([]RecordChange, 0),
	}

	for _, r := range newer.Sorted() {
		prev, ok := older[r.URL]
		if !ok {
			d.Added = append(d.Added, r)
			continue
		}
		if prev.Fingerprint() != r.Fingerprint() {
			d.Changed = append(d.Changed, RecordChange{Before: prev, After: r})
		}
	}
	for _, r := range older.Sorted() {
		if _, ok := newer[r.URL]; !ok {
			d.Removed = append(d.Removed, r)
		}
	}

	return d
}

// TopMovers returns up to n changes with the largest absolute monthly
// revenue delta.
func (d CatalogDiff) TopMovers(n int) []RecordChange {
	movers := slices.Clone(d.Changed)
	slices.SortFunc(movers, func(a, b RecordChange) int {
		da, db := abs(a.MonthlyDelta()), abs(b.MonthlyDelta())
		switch {
		case da > db:
			return -1
		case da < db:
			return 1
		}
		return strings.Compare(a.After.URL, b.After.URL)
	})
	if n >= 0 && len(movers) > n {
		movers = movers[:n]
	}
	return movers
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
