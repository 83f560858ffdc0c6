// Package crawler harvests creator records from a paginated, category
// organized listing site.
//
// # Components
//
//   - ParseAmount: turns "2 tys. zł" style figures into numbers
//   - Fetcher: downloads a page through resty, retrying per RetryPolicy
//   - Extractor: reads records from listing cards with goquery
//   - Discovery: lists the categories from the tag bar of one page
//   - CategoryCrawler: walks page 1..N of a category until a page is missing
//   - Orchestrator: runs discovery, crawls every category concurrently and
//     merges the results with Merge
//
// # Termination
//
// Listings carry no page count. A category ends at the first page that is
// not found (any HTTP error other than 429) or that lacks the listing
// section. Network failures and 429 responses are retried, forever by
// default, so a run is bounded by its context.
//
// # Usage
//
//	fetcher := crawler.NewFetcher("https://patronite.pl/")
//	discovery := crawler.NewDiscovery(fetcher, "https://patronite.pl/", "/kategoria/47/polityka")
//	walker := crawler.NewCategoryCrawler(fetcher)
//	result, err := crawler.NewOrchestrator(discovery, walker).Run(ctx)
package crawler
