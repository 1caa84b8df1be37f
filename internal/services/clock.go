package services

import (
	"time"
)

// SystemClock is the wall-clock backed domain.Clock used outside of tests.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
