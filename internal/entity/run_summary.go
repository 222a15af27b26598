package entity

import "time"

// RunSummary describes one completed check cycle.
type RunSummary struct {
	RunID      string        `json:"run_id"`
	Total      int           `json:"total"`
	Processed  int           `json:"processed"`
	OK         int           `json:"ok"`
	Changed    int           `json:"changed"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
}
