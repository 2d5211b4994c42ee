// Package metrics is an in-process counter set for packet drops, kept
// deliberately without an exporter (spec.md §1's non-goals exclude metrics
// exporters; this is ambient bookkeeping, not observability infrastructure).
package metrics

import (
	"sync"
	"sync/atomic"
)

var drops sync.Map // reason string -> *int64

// IncDrop increments the drop counter for reason (typically an error's
// Error() string) and returns the new total.
func IncDrop(reason string) int64 {
	v, _ := drops.LoadOrStore(reason, new(int64))
	return atomic.AddInt64(v.(*int64), 1)
}

// Snapshot returns a point-in-time copy of every reason's drop count, for
// a status endpoint or periodic log line.
func Snapshot() map[string]int64 {
	out := make(map[string]int64)
	drops.Range(func(k, v interface{}) bool {
		out[k.(string)] = atomic.LoadInt64(v.(*int64))
		return true
	})
	return out
}

// Reset clears every counter. Exposed for tests.
func Reset() {
	drops.Range(func(k, _ interface{}) bool {
		drops.Delete(k)
		return true
	})
}
