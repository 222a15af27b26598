package usecase

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/user/pricewatch/internal/repository"
)

const (
	scrollMinY      = 300
	scrollMaxY      = 1200
	minFocusActions = 2
	maxFocusActions = 5
)

const focusRandomElementJS = `const nodes = Array.from(document.querySelectorAll('a, button, img, p, h1, h2, h3, span'))
	.filter((n) => n.offsetParent !== null);
if (nodes.length > 0) {
	nodes[Math.floor(Math.random() * nodes.length)].scrollIntoView({behavior: 'smooth', block: 'center'});
}`

// HumanBehavior scrolls and pauses on a freshly loaded page so the session
// does not look completely static. It never fails the task.
type HumanBehavior struct {
	mu     sync.Mutex
	rng    *rand.Rand
	sleep  func(ctx context.Context, d time.Duration) error
	logger *zap.Logger
}

// NewHumanBehavior builds the stage. A nil rng gets a randomly seeded one.
func NewHumanBehavior(rng *rand.Rand, logger *zap.Logger) *HumanBehavior {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &HumanBehavior{rng: rng, sleep: sleepCtx, logger: logger}
}

// Perform runs one scroll and a few scroll-into-view actions with short
// randomized pauses. Script errors are logged at debug level and ignored; a
// cancelled ctx ends the sequence early.
func (h *HumanBehavior) Perform(ctx context.Context, session repository.Session) {
	y := h.intBetween(scrollMinY, scrollMaxY)
	if err := session.Eval(ctx, fmt.Sprintf("window.scrollTo(0, %d)", y)); err != nil {
		h.logger.Debug("scroll failed", zap.Error(err))
	}
	if h.sleep(ctx, h.durationBetween(500*time.Millisecond, 1500*time.Millisecond)) != nil {
		return
	}

	actions := h.intBetween(minFocusActions, maxFocusActions)
	for i := 0; i < actions; i++ {
		if err := session.Eval(ctx, focusRandomElementJS); err != nil {
			h.logger.Debug("scroll into view failed", zap.Error(err))
		}
		if h.sleep(ctx, h.durationBetween(300*time.Millisecond, time.Second)) != nil {
			return
		}
	}
}

func (h *HumanBehavior) intBetween(lo, hi int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return lo + h.rng.IntN(hi-lo+1)
}

func (h *HumanBehavior) durationBetween(lo, hi time.Duration) time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return lo + time.Duration(h.rng.Int64N(int64(hi-lo)+1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
