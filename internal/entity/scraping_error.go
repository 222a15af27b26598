package entity

import "time"

// ScrapingError is one entry of the end-of-run error report.
type ScrapingError struct {
	URL       string
	Kind      string
	Message   string
	Context   string
	Timestamp time.Time
	// Streak is the number of consecutive failed cycles for the URL, when known.
	Streak int64
}
