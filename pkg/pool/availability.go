package pool

import (
	"math"
	"time"
)

// Availability is the outcome of evaluating one WorkerStatus.
type Availability struct {
	Online bool

	// LastSeenAge is how long ago the pool last saw the worker, rounded to
	// whole seconds. It is negative when the pool clock runs ahead of ours.
	LastSeenAge time.Duration
}

// Evaluate decides whether a worker is online.
//
// With a positive timeUntilOffline (minutes) the worker is online only while
// its last-seen age is strictly below the threshold. Otherwise the pool's own
// online flag decides and the age is informational.
func Evaluate(status WorkerStatus, timeUntilOffline float64, now time.Time) Availability {
	seconds := math.Round(float64(now.UnixNano())/float64(time.Second) - float64(status.LastSeen))
	age := time.Duration(seconds) * time.Second

	online := status.IsOnline
	if timeUntilOffline > 0 {
		online = seconds/60 < timeUntilOffline
	}

	return Availability{Online: online, LastSeenAge: age}
}
