// Package clock abstracts time for everything that stamps or expires data:
// envelope timestamps, cookie expiries and rate-limit windows all take a
// Clock so tests can pin the instant.
package clock

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

var RealClockProvider = sync.OnceValue(func() Clock {
	return &RealClock{}
})

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}
