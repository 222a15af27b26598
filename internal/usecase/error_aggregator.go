package usecase

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/user/pricewatch/internal/entity"
	"github.com/user/pricewatch/internal/repository"
)

// NoErrorsReport is what Report renders when nothing was added.
const NoErrorsReport = "No errors."

// ErrorAggregator collects failures from concurrent tasks for the end of run
// report. It is safe for concurrent use.
type ErrorAggregator struct {
	mu      sync.Mutex
	entries []entity.ScrapingError
	now     func() time.Time
}

func NewErrorAggregator() *ErrorAggregator {
	return &ErrorAggregator{now: time.Now}
}

// Add records err for url. Recovered panics keep their stack as context.
func (a *ErrorAggregator) Add(url string, err error) {
	a.AddWithContext(url, err, panicStack(err))
}

// AddAttempts records err for url after the given number of attempts.
func (a *ErrorAggregator) AddAttempts(url string, err error, attempts int) {
	detail := fmt.Sprintf("attempts: %d", attempts)
	if stack := panicStack(err); stack != "" {
		detail += "\n" + stack
	}
	a.AddWithContext(url, err, detail)
}

func panicStack(err error) string {
	var p repository.PanicError
	if errors.As(err, &p) {
		return strings.TrimSpace(p.Stack)
	}
	return ""
}

// AddWithContext records err for url with a free-form context string.
func (a *ErrorAggregator) AddWithContext(url string, err error, detail string) {
	if err == nil {
		return
	}
	entry := entity.ScrapingError{
		URL:     url,
		Kind:    repository.Kind(err),
		Message: err.Error(),
		Context: detail,
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	entry.Timestamp = a.now()
	a.entries = append(a.entries, entry)
}

// SetStreak annotates every entry for url with its consecutive failure count.
func (a *ErrorAggregator) SetStreak(url string, streak int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.entries {
		if a.entries[i].URL == url {
			a.entries[i].Streak = streak
		}
	}
}

func (a *ErrorAggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// Entries returns a copy of the recorded entries in insertion order.
func (a *ErrorAggregator) Entries() []entity.ScrapingError {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]entity.ScrapingError, len(a.entries))
	copy(out, a.entries)
	return out
}

// Report renders all entries in insertion order, or NoErrorsReport.
func (a *ErrorAggregator) Report() string {
	entries := a.Entries()
	if len(entries) == 0 {
		return NoErrorsReport
	}

	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, e.URL)
		fmt.Fprintf(&b, "   kind: %s\n", e.Kind)
		fmt.Fprintf(&b, "   message: %s\n", e.Message)
		fmt.Fprintf(&b, "   time: %s\n", e.Timestamp.UTC().Format(time.RFC3339))
		if e.Streak > 0 {
			fmt.Fprintf(&b, "   consecutive failures: %d\n", e.Streak)
		}
		if e.Context != "" {
			b.WriteString("   context:\n")
			for _, line := range strings.Split(e.Context, "\n") {
				b.WriteString("     ")
				b.WriteString(line)
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}
