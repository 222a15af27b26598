package usecase

import (
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Progress is a snapshot of a running cycle.
type Progress struct {
	Processed  int
	Total      int
	Percent    float64
	Elapsed    time.Duration
	AvgPerItem time.Duration
	ETA        time.Duration
}

func computeProgress(processed, total int, elapsed time.Duration) Progress {
	p := Progress{Processed: processed, Total: total, Elapsed: elapsed}
	if total > 0 {
		p.Percent = float64(processed) / float64(total) * 100
	}
	if processed > 0 {
		p.AvgPerItem = elapsed / time.Duration(processed)
		p.ETA = time.Duration(total-processed) * p.AvgPerItem
	}
	return p
}

// progressTracker is owned by the collecting goroutine and is not safe for
// concurrent use.
type progressTracker struct {
	total     int
	interval  int
	processed int
	start     time.Time
	now       func() time.Time
	logger    *zap.Logger
}

func newProgressTracker(total, interval int, now func() time.Time, logger *zap.Logger) *progressTracker {
	if interval <= 0 {
		interval = 1
	}
	return &progressTracker{total: total, interval: interval, start: now(), now: now, logger: logger}
}

// Done counts one completion and logs every interval completions and on the
// last one. It reports whether a line was logged.
func (t *progressTracker) Done() bool {
	t.processed++
	if t.processed%t.interval != 0 && t.processed != t.total {
		return false
	}

	p := computeProgress(t.processed, t.total, t.now().Sub(t.start))
	t.logger.Info("progress",
		zap.Int("processed", p.Processed),
		zap.Int("total", p.Total),
		zap.String("percent", formatPercent(p.Percent)),
		zap.Duration("elapsed", p.Elapsed),
		zap.Duration("avg_per_item", p.AvgPerItem),
		zap.Duration("eta", p.ETA),
	)
	return true
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}
