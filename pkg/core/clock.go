package core

import (
	"sync/atomic"
	"time"
)

var lastStamp atomic.Int64

// nextStamp returns a wall-clock nanosecond timestamp strictly greater than
// every value it returned before, across all books in the process.
func nextStamp() int64 {
	for {
		now := time.Now().UnixNano()
		last := lastStamp.Load()
		if now <= last {
			now = last + 1
		}
		if lastStamp.CompareAndSwap(last, now) {
			return now
		}
	}
}
