// Package audit appends room membership changes to PostgreSQL.
//
// The log is write-only: nothing reads it back to rebuild rooms. Events
// are buffered, written in batches on a size or time trigger, and flushed
// one last time on Stop.
package audit
