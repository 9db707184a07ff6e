package utils

import "time"

// HourBucket truncates a timestamp to the start of its hour.
func HourBucket(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}
