package common

import "time"

// Clock supplies the current time. Lock expiry is always evaluated against
// the API instance's clock, never the database's.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock in UTC
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
