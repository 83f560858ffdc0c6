// Package main provides the entry point for the creatorcrawl CLI.
//
// creatorcrawl harvests creator profiles from a category-organized listing
// site and writes them to InfluxDB.
//
// Usage:
//
//	creatorcrawl crawl
//	creatorcrawl serve
//	creatorcrawl history
//
// See --help for all available options.
package main

func main() {
	Execute()
}
