package scheduler

import (
	"fmt"
	"time"
)

// Every runs a job at a fixed interval. Intervals under one second are
// raised to one second.
type Every time.Duration

// Next returns t plus the interval.
func (e Every) Next(t time.Time) time.Time {
	d := time.Duration(e)
	if d < time.Second {
		d = time.Second
	}
	return t.Add(d)
}

func (e Every) String() string {
	return fmt.Sprintf("@every %s", time.Duration(e))
}
