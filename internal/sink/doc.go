// Package sink delivers a finished Harvest to its destinations.
//
// InfluxSink writes one point per creator to InfluxDB, SnapshotSink keeps a
// copy in the local SQLite database for the history command, and ReportSink
// renders a run report. Go runs any Sink in the background and returns a
// Task the caller can wait on.
package sink
