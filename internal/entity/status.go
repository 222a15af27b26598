package entity

import "strings"

// Status is the outcome of the last check of a tracked product.
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusOK      Status = "ok"
	StatusError   Status = "error"
)

// ParseStatus maps a stored status cell onto a Status. Empty or unrecognized
// values become StatusUnknown; the legacy "fail" marker is read as StatusError.
func ParseStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ok":
		return StatusOK
	case "error", "fail", "failed":
		return StatusError
	default:
		return StatusUnknown
	}
}
