// Package pipeline runs one crawl as a sequence of steps over a
// model.Harvest: the crawl step fills the catalog and the sink step hands
// it to every configured sink.
//
// Runner wraps pipeline construction and execution so the CLI, the HTTP
// trigger and the scheduler start runs the same way, and refuses to start a
// run while another one is still going.
package pipeline
