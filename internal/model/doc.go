// Package model defines the data structures shared by the crawler, the sinks
// and the report writers.
//
// This package contains the following main types:
//   - Record: one creator profile extracted from a listing page
//   - Catalog: the deduplicated set of records keyed by profile URL
//   - Harvest: the state of one crawl run as it moves through the pipeline
//   - CatalogDiff: what changed between two stored runs
//
// Models live in their own package so that crawler, sink, database and report
// can share them without import cycles. All types serialize to JSON for
// reports and the snapshot database.
package model
