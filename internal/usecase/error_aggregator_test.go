package usecase

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/user/pricewatch/internal/repository"
)

func TestErrorAggregatorEmptyReport(t *testing.T) {
	a := NewErrorAggregator()
	if got := a.Report(); got != NoErrorsReport {
		t.Fatalf("Report() = %q, want %q", got, NoErrorsReport)
	}
	a.Add("https://shop.test/a", nil)
	if a.Len() != 0 {
		t.Fatalf("nil errors should not be recorded")
	}
}

func TestErrorAggregatorReportOrderAndFields(t *testing.T) {
	a := NewErrorAggregator()
	a.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	a.Add("https://shop.test/a", repository.ElementNotFoundError{Locator: "#price", Err: errors.New("timeout")})
	a.Add("https://shop.test/b", repository.ParseError{Text: "N/A", Err: errors.New("no digits")})
	a.SetStreak("https://shop.test/b", 3)

	report := a.Report()
	first := strings.Index(report, "https://shop.test/a")
	second := strings.Index(report, "https://shop.test/b")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("entries out of order:\n%s", report)
	}
	for _, want := range []string{
		"kind: element_not_found",
		"kind: parse_error",
		"time: 2024-05-01T12:00:00Z",
		"consecutive failures: 3",
		`parse price "N/A": no digits`,
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
	if report != a.Report() {
		t.Fatal("Report should be deterministic")
	}
}

func TestErrorAggregatorPanicContext(t *testing.T) {
	a := NewErrorAggregator()
	a.Add("https://shop.test/a", repository.PanicError{Value: "nil map", Stack: "goroutine 7 [running]:\nmain.task()"})

	e := a.Entries()[0]
	if e.Kind != repository.KindPanic {
		t.Fatalf("kind = %s, want panic", e.Kind)
	}
	if !strings.Contains(a.Report(), "goroutine 7 [running]:") {
		t.Fatalf("report should carry the stack:\n%s", a.Report())
	}
}

func TestErrorAggregatorAttemptsContext(t *testing.T) {
	a := NewErrorAggregator()
	a.AddAttempts("https://shop.test/a", errors.New("timeout"), 3)
	a.AddAttempts("https://shop.test/b", repository.PanicError{Value: "boom", Stack: "goroutine 9 [running]:"}, 1)

	entries := a.Entries()
	if entries[0].Context != "attempts: 3" {
		t.Fatalf("context = %q, want attempts: 3", entries[0].Context)
	}
	if entries[1].Context != "attempts: 1\ngoroutine 9 [running]:" {
		t.Fatalf("panic context = %q", entries[1].Context)
	}
	if !strings.Contains(a.Report(), "     attempts: 3\n") {
		t.Fatalf("report should carry the attempt count:\n%s", a.Report())
	}
}

func TestErrorAggregatorConcurrentAdd(t *testing.T) {
	a := NewErrorAggregator()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a.Add(fmt.Sprintf("https://shop.test/%d", i), errors.New("boom"))
		}(i)
	}
	wg.Wait()

	if a.Len() != 50 {
		t.Fatalf("Len() = %d, want 50", a.Len())
	}
}
