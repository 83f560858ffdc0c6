// Package report renders crawl runs for people and tools.
//
// Three writers share the Writer interface:
//   - SimpleWriter: plain text for the terminal
//   - JSONWriter: structured output for other programs
//   - MarkdownWriter: tables and a mermaid chart for sharing
//
// Every writer renders two documents: the summary of one Harvest and the
// Comparison of two stored runs used by the history command.
package report
