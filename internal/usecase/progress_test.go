package usecase

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestComputeProgress(t *testing.T) {
	p := computeProgress(5, 20, 10*time.Second)
	if p.Percent != 25 {
		t.Fatalf("percent = %v, want 25", p.Percent)
	}
	if p.AvgPerItem != 2*time.Second {
		t.Fatalf("avg = %v, want 2s", p.AvgPerItem)
	}
	if p.ETA != 30*time.Second {
		t.Fatalf("eta = %v, want 30s", p.ETA)
	}

	zero := computeProgress(0, 0, time.Second)
	if zero.Percent != 0 || zero.ETA != 0 {
		t.Fatalf("empty run should not divide by zero: %+v", zero)
	}
}

func TestProgressTrackerLogsEveryIntervalAndLast(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	clock := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }
	tr := newProgressTracker(12, 5, now, zap.New(core))

	var logged []int
	for i := 1; i <= 12; i++ {
		clock = clock.Add(time.Second)
		if tr.Done() {
			logged = append(logged, i)
		}
	}

	want := []int{5, 10, 12}
	if len(logged) != len(want) {
		t.Fatalf("logged at %v, want %v", logged, want)
	}
	for i := range want {
		if logged[i] != want[i] {
			t.Fatalf("logged at %v, want %v", logged, want)
		}
	}

	entries := logs.FilterMessage("progress").All()
	if len(entries) != 3 {
		t.Fatalf("progress lines = %d, want 3", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["processed"] != int64(5) || fields["total"] != int64(12) {
		t.Fatalf("unexpected fields: %v", fields)
	}
	if fields["percent"] != "41.7%" {
		t.Fatalf("percent = %v, want 41.7%%", fields["percent"])
	}
	if fields["eta"] != 7*time.Second {
		t.Fatalf("eta = %v, want 7s", fields["eta"])
	}
}
