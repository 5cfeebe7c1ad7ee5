package ports

import "time"

// SystemClock is the production Clock, backed by the wall clock.
type SystemClock struct{}

func (SystemClock) Now() int64 { return time.Now().Unix() }
