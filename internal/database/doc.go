// Package database provides the SQLite snapshot store of creatorcrawl.
//
// Every successful harvest can be saved as a run: one row in "runs" and one
// row per deduplicated record in "records", together with the record's
// fingerprint. The crawler never reads snapshots back; they exist for the
// history command, which lists runs and compares two of them.
//
// SQLite is used through modernc.org/sqlite, a CGO-free driver, in WAL mode.
package database
