package crawler

import (
	"slices"

	"github.com/nao1215/creatorcrawl/internal/model"
)

// Merge deduplicates records by URL. The first occurrence is kept unless a
// later duplicate is recommended, in which case that one replaces it. A
// recommended record is therefore never displaced by a non-recommended one.
// Records without a URL are dropped.
//
// Merge is idempotent: Merge(append(s, s...)) equals Merge(s).
func Merge(records []model.Record) model.Catalog {
	catalog := make(model.Catalog, len(records))
	for _, r := range records {
		if !r.Valid() {
			continue
		}
		if _, seen := catalog[r.URL]; seen && !r.IsRecommended {
			continue
		}
		r.Tags = slices.Clone(r.Tags)
		catalog[r.URL] = r
	}
	return catalog
}
