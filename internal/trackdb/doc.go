// Package trackdb persists tracking runs to SQLite for external
// evaluation.
//
// The schema is managed by golang-migrate from the embedded migrations
// directory. A Store owns one database; a Run is one tracking run's write
// handle and implements pipeline.ResultSink.
package trackdb
