package usecase

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/user/pricewatch/internal/entity"
	"github.com/user/pricewatch/internal/repository"
	"github.com/user/pricewatch/pkg/config"
	"github.com/user/pricewatch/pkg/metrics"
	"github.com/user/pricewatch/pkg/retry"
	"github.com/user/pricewatch/pkg/utils"
)

const (
	PriceChangeSubject = "Price Change Detected for Product"

	notifyTimeout   = 30 * time.Second
	inspectTimeout  = 5 * time.Second
	sinkTimeout     = 30 * time.Second
	runIDTimeLayout = "20060102T150405.000000000Z"
)

var (
	// ErrRunInProgress is returned by RunCycle while another cycle of the same
	// tracker is running.
	ErrRunInProgress = errors.New("a check cycle is already running")
	// ErrRunLocked is returned when another process holds the run lock.
	ErrRunLocked = errors.New("run lock held by another process")

	errEmptyLocator = errors.New("empty locator")
)

// TrackerConfig is the run configuration handed to the tracker.
type TrackerConfig struct {
	MaxWorkers          int
	PerAttemptTimeout   time.Duration
	NavigationTimeout   time.Duration
	RetryAttempts       int
	RetryBaseDelay      time.Duration
	RetryMaxDelay       time.Duration
	RetryJitter         time.Duration
	ProgressLogInterval int
	RunLockTTL          time.Duration
	// RateLimitDelay replaces the backoff after a blocked page. Zero keeps
	// the normal backoff.
	RateLimitDelay      time.Duration
	// Fractional thresholds for price alerts; zero disables a direction.
	DropAlertThreshold  float64
	RiseAlertThreshold  float64
	Session             repository.SessionOptions
}

// NewTrackerConfig maps the process configuration onto the tracker.
func NewTrackerConfig(cfg *config.Config) TrackerConfig {
	return TrackerConfig{
		MaxWorkers:          cfg.MaxWorkers,
		PerAttemptTimeout:   cfg.PerAttemptTimeout,
		NavigationTimeout:   cfg.NavigationTimeout,
		RetryAttempts:       cfg.RetryAttempts,
		RetryBaseDelay:      cfg.RetryBaseDelay,
		RetryMaxDelay:       cfg.RetryMaxDelay,
		RetryJitter:         cfg.RetryJitter,
		ProgressLogInterval: cfg.ProgressLogInterval,
		RunLockTTL:          cfg.RunLockTTL,
		RateLimitDelay:      cfg.RateLimitDelay,
		DropAlertThreshold:  cfg.PriceDropAlertThreshold,
		RiseAlertThreshold:  cfg.PriceRiseAlertThreshold,
		Session: repository.SessionOptions{
			Headless:               cfg.Headless,
			UserAgent:              cfg.UserAgent,
			WindowWidth:            cfg.WindowWidth,
			WindowHeight:           cfg.WindowHeight,
			DisableWebRTC:          cfg.DisableWebRTC,
			DisablePasswordManager: cfg.DisablePasswordManager,
			AcceptLanguage:         cfg.AcceptLanguage,
			NavigationTimeout:      cfg.NavigationTimeout,
		},
	}
}

// CheckOutcome is everything a single pass over the products produced.
type CheckOutcome struct {
	Products []entity.TrackedProduct
	Checks   []entity.PriceCheck
	Errors   *ErrorAggregator
	Summary  entity.RunSummary
}

// TrackerOption customizes a Tracker.
type TrackerOption func(*Tracker)

// WithCheckHistory appends every check to repo after a cycle.
func WithCheckHistory(repo repository.CheckHistoryRepository) TrackerOption {
	return func(t *Tracker) { t.history = repo }
}

// WithFailureStreaks counts consecutive failures per URL in repo.
func WithFailureStreaks(repo repository.FailureStreakRepository) TrackerOption {
	return func(t *Tracker) { t.streaks = repo }
}

// WithRunLock guards cycles with a lock shared between processes.
func WithRunLock(repo repository.RunLockRepository) TrackerOption {
	return func(t *Tracker) { t.lock = repo }
}

// WithHumanBehavior runs h after every navigation.
func WithHumanBehavior(h *HumanBehavior) TrackerOption {
	return func(t *Tracker) { t.behavior = h }
}

func WithMetrics(m *metrics.Metrics) TrackerOption {
	return func(t *Tracker) { t.metrics = m }
}

// WithSleep replaces the wait used between retries.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) TrackerOption {
	return func(t *Tracker) { t.sleep = sleep }
}

func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// Tracker checks every tracked product with a bounded pool of browser
// sessions, folds the results back into the dataset and reports changes and
// failures.
type Tracker struct {
	cfg      TrackerConfig
	store    repository.ProductStore
	sessions repository.SessionFactory
	notifier repository.Notifier
	history  repository.CheckHistoryRepository
	streaks  repository.FailureStreakRepository
	lock     repository.RunLockRepository
	behavior *HumanBehavior
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error

	running   atomic.Bool
	triggered sync.WaitGroup

	mu           sync.RWMutex
	lastSummary  *entity.RunSummary
	lastProducts []entity.TrackedProduct
}

func NewTracker(
	cfg TrackerConfig,
	store repository.ProductStore,
	sessions repository.SessionFactory,
	notifier repository.Notifier,
	logger *zap.Logger,
	opts ...TrackerOption,
) *Tracker {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	t := &Tracker{
		cfg:      cfg,
		store:    store,
		sessions: sessions,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Running reports whether a cycle is in progress.
func (t *Tracker) Running() bool {
	return t.running.Load()
}

// LastSummary returns the summary of the last persisted cycle.
func (t *Tracker) LastSummary() (entity.RunSummary, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.lastSummary == nil {
		return entity.RunSummary{}, false
	}
	return *t.lastSummary, true
}

// LastProducts returns a copy of the dataset as last persisted by this tracker.
func (t *Tracker) LastProducts() []entity.TrackedProduct {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]entity.TrackedProduct, len(t.lastProducts))
	copy(out, t.lastProducts)
	return out
}

// RunCycle loads the dataset, checks every product, persists the dataset
// exactly once and sends the error report. A load or save failure is returned
// as a repository.StoreError. When ctx is cancelled mid-run the completed rows
// are still persisted and ctx.Err() is returned.
func (t *Tracker) RunCycle(ctx context.Context) (entity.RunSummary, error) {
	if !t.running.CompareAndSwap(false, true) {
		return entity.RunSummary{}, ErrRunInProgress
	}
	defer t.running.Store(false)
	return t.runCycle(ctx)
}

// Trigger starts a cycle in the background and reports whether it did. It
// returns false while another cycle is running.
func (t *Tracker) Trigger(ctx context.Context) bool {
	if !t.running.CompareAndSwap(false, true) {
		return false
	}
	t.triggered.Add(1)
	go func() {
		defer t.triggered.Done()
		defer t.running.Store(false)
		if _, err := t.runCycle(ctx); err != nil && !errors.Is(err, ErrRunLocked) {
			t.logger.Error("triggered cycle failed", zap.Error(err))
		}
	}()
	return true
}

// Wait blocks until every cycle started by Trigger has returned.
func (t *Tracker) Wait() {
	t.triggered.Wait()
}

func (t *Tracker) runCycle(ctx context.Context) (entity.RunSummary, error) {
	if t.lock != nil {
		acquired, err := t.lock.Acquire(ctx, t.cfg.RunLockTTL)
		switch {
		case err != nil:
			t.logger.Warn("run lock unavailable, continuing without it", zap.Error(err))
		case !acquired:
			t.logger.Info("skipping cycle, another process holds the run lock")
			return entity.RunSummary{}, ErrRunLocked
		default:
			defer func() {
				releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
				defer cancel()
				if err := t.lock.Release(releaseCtx); err != nil {
					t.logger.Warn("failed to release run lock", zap.Error(err))
				}
			}()
		}
	}

	products, err := t.store.Load(ctx)
	if err != nil {
		t.logger.Error("failed to load dataset", zap.Error(err))
		return entity.RunSummary{}, err
	}

	out := t.Check(ctx, products)

	persistCtx := context.WithoutCancel(ctx)
	if err := t.store.Save(persistCtx, out.Products); err != nil {
		t.logger.Error("failed to persist dataset, results of this cycle are lost",
			zap.String("run_id", out.Summary.RunID), zap.Error(err))
		return out.Summary, err
	}

	t.mu.Lock()
	summary := out.Summary
	t.lastSummary = &summary
	t.lastProducts = out.Products
	t.mu.Unlock()

	t.updateStreaks(persistCtx, out)
	t.recordHistory(persistCtx, out.Checks)
	if out.Errors.Len() > 0 {
		subject := fmt.Sprintf("Price check errors: %d of %d products failed", out.Summary.Failed, out.Summary.Total)
		t.notify(persistCtx, "error_report", subject, out.Errors.Report())
	}

	t.metrics.ObserveRun(out.Summary.Duration)
	t.logger.Info("check cycle finished",
		zap.String("run_id", out.Summary.RunID),
		zap.Int("total", out.Summary.Total),
		zap.Int("ok", out.Summary.OK),
		zap.Int("changed", out.Summary.Changed),
		zap.Int("failed", out.Summary.Failed),
		zap.Int("skipped", out.Summary.Skipped),
		zap.Duration("duration", out.Summary.Duration),
	)
	return out.Summary, ctx.Err()
}

type job struct {
	index   int
	product entity.TrackedProduct
}

type indexedResult struct {
	index  int
	result entity.TaskResult
}

// Check runs one task per product on a pool of at most MaxWorkers sessions
// and returns the updated products. Results are applied by the calling
// goroutine only, matched to their row by index. Once ctx is done no new task
// is dispatched; tasks already running finish on their own timeouts.
func (t *Tracker) Check(ctx context.Context, products []entity.TrackedProduct) *CheckOutcome {
	start := t.now()
	updated := make([]entity.TrackedProduct, len(products))
	copy(updated, products)

	out := &CheckOutcome{
		Products: updated,
		Checks:   make([]entity.PriceCheck, 0, len(products)),
		Errors:   NewErrorAggregator(),
		Summary: entity.RunSummary{
			RunID:     start.UTC().Format(runIDTimeLayout),
			Total:     len(products),
			StartedAt: start,
		},
	}
	out.Errors.now = t.now

	t.logger.Info("starting check cycle",
		zap.String("run_id", out.Summary.RunID),
		zap.Int("total", len(products)),
		zap.Int("workers", min(t.cfg.MaxWorkers, len(products))),
	)

	jobs := make(chan job)
	results := make(chan indexedResult)
	taskCtx := context.WithoutCancel(ctx)

	go func() {
		defer close(jobs)
		for i, p := range updated {
			if ctx.Err() != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case jobs <- job{index: i, product: p}:
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < min(t.cfg.MaxWorkers, len(products)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results <- indexedResult{index: j.index, result: t.runTask(taskCtx, j.product)}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	progress := newProgressTracker(len(products), t.cfg.ProgressLogInterval, t.now, t.logger)
	for r := range results {
		t.collect(ctx, out, r)
		progress.Done()
	}

	out.Summary.Skipped = out.Summary.Total - out.Summary.Processed
	out.Summary.FinishedAt = t.now()
	out.Summary.Duration = out.Summary.FinishedAt.Sub(start)
	if out.Summary.Skipped > 0 {
		t.logger.Warn("cycle interrupted, some products were not checked",
			zap.Int("skipped", out.Summary.Skipped), zap.Error(ctx.Err()))
	}
	return out
}

func (t *Tracker) collect(ctx context.Context, out *CheckOutcome, r indexedResult) {
	p := &out.Products[r.index]
	res := r.result
	previous := p.Price
	changed := res.Status == entity.StatusOK && p.PriceChanged(res.Price.Decimal)

	p.Apply(res)
	out.Summary.Processed++

	check := entity.PriceCheck{
		RunID:         out.Summary.RunID,
		URL:           res.URL,
		Status:        res.Status,
		PreviousPrice: previous,
		Price:         res.Price,
		Attempts:      res.Attempts,
		DurationMS:    res.Duration.Milliseconds(),
		CheckedAt:     res.Timestamp,
	}

	if res.Status == entity.StatusOK {
		out.Summary.OK++
		t.logger.Debug("price checked",
			zap.Int("row", p.Row),
			zap.String("url", res.URL),
			zap.String("price", utils.FormatAmount(res.Price.Decimal)),
			zap.Int("attempt", res.Attempts),
		)
		if !previous.Valid {
			t.logger.Debug("first price recorded",
				zap.Int("row", p.Row),
				zap.String("url", res.URL),
				zap.String("price", utils.FormatAmount(res.Price.Decimal)),
			)
		}
		if changed {
			out.Summary.Changed++
			t.metrics.IncPriceChange()
			t.logger.Info("price changed",
				zap.String("url", res.URL),
				zap.String("old", utils.FormatAmount(previous.Decimal)),
				zap.String("new", utils.FormatAmount(res.Price.Decimal)),
			)
			t.alertIfSignificant(res.URL, previous.Decimal, res.Price.Decimal)
			t.notify(ctx, "price_change", PriceChangeSubject, PriceChangeBody(res.URL, previous.Decimal, res.Price.Decimal))
		}
	} else {
		out.Summary.Failed++
		kind := repository.Kind(res.Err)
		check.ErrorKind = kind
		check.ErrorMessage = errString(res.Err)
		out.Errors.AddAttempts(res.URL, res.Err, res.Attempts)
		t.metrics.IncError(kind)
		t.logger.Warn("price check failed",
			zap.Int("row", p.Row),
			zap.String("url", res.URL),
			zap.String("error_kind", kind),
			zap.Int("attempt", res.Attempts),
			zap.Error(res.Err),
		)
	}
	out.Checks = append(out.Checks, check)
}

// alertIfSignificant logs a price alert when the relative change reaches the
// drop or rise threshold.
func (t *Tracker) alertIfSignificant(url string, old, current decimal.Decimal) {
	if old.IsZero() {
		return
	}
	change := current.Sub(old).Div(old)
	var direction string
	switch {
	case t.cfg.DropAlertThreshold > 0 && change.LessThanOrEqual(decimal.NewFromFloat(-t.cfg.DropAlertThreshold)):
		direction = "decreased"
	case t.cfg.RiseAlertThreshold > 0 && change.GreaterThanOrEqual(decimal.NewFromFloat(t.cfg.RiseAlertThreshold)):
		direction = "increased"
	default:
		return
	}
	t.metrics.IncPriceAlert(direction)
	t.logger.Warn("price alert",
		zap.String("url", url),
		zap.String("direction", direction),
		zap.String("old", utils.FormatAmount(old)),
		zap.String("new", utils.FormatAmount(current)),
		zap.String("change_percent", change.Mul(decimal.NewFromInt(100)).StringFixed(2)),
	)
}

// PriceChangeBody renders the notification body for a detected change.
func PriceChangeBody(url string, old, current decimal.Decimal) string {
	body := fmt.Sprintf("The price for the product at %s has changed from $%s to $%s",
		url, utils.FormatAmount(old), utils.FormatAmount(current))
	if old.IsZero() {
		return body + "."
	}
	pct := current.Sub(old).Div(old).Mul(decimal.NewFromInt(100))
	sign := ""
	if pct.IsPositive() {
		sign = "+"
	}
	return fmt.Sprintf("%s (%s%s%%).", body, sign, pct.StringFixed(2))
}

// runTask checks one product. It always returns a result; panics are
// recovered into a repository.PanicError and the session is closed on every
// path.
func (t *Tracker) runTask(ctx context.Context, p entity.TrackedProduct) (res entity.TaskResult) {
	start := time.Now()
	attempts := 0
	var session repository.Session

	t.metrics.TaskStarted()
	defer func() {
		if r := recover(); r != nil {
			res = entity.Failed(p, repository.PanicError{Value: r, Stack: string(debug.Stack())}, t.now())
		}
		if session != nil {
			if err := session.Close(); err != nil {
				t.logger.Debug("failed to close session", zap.String("url", p.URL), zap.Error(err))
			}
		}
		res.Attempts = attempts
		res.Duration = time.Since(start)
		t.metrics.TaskFinished()
		t.metrics.ObserveCheck(string(res.Status), res.Duration)
	}()

	if err := validateProduct(p); err != nil {
		return entity.Failed(p, err, t.now())
	}

	navigated := false
	policy := retry.Policy{
		Attempts:  t.cfg.RetryAttempts,
		BaseDelay: t.cfg.RetryBaseDelay,
		MaxDelay:  t.cfg.RetryMaxDelay,
		Jitter:    t.cfg.RetryJitter,
		DelayFor:  t.blockedDelay,
		Sleep:     t.sleep,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			t.metrics.IncRetries()
			t.logger.Warn("attempt failed, retrying",
				zap.String("url", p.URL),
				zap.Int("attempt", attempt),
				zap.String("error_kind", repository.Kind(err)),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
		},
	}

	price, err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) (decimal.Decimal, error) {
		attempts = attempt
		if session == nil {
			s, err := t.sessions.NewSession(ctx, t.cfg.Session)
			if err != nil {
				return decimal.Zero, asSessionError("start", err)
			}
			session = s
		}
		if !navigated {
			if err := t.navigate(ctx, session, p.URL); err != nil {
				return decimal.Zero, t.inspect(ctx, session, err)
			}
			navigated = true
			if t.behavior != nil {
				t.behavior.Perform(ctx, session)
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, t.cfg.PerAttemptTimeout)
		defer cancel()
		price, err := ExtractPrice(attemptCtx, session, p.Locator, t.cfg.PerAttemptTimeout)
		if err != nil {
			return decimal.Zero, t.inspect(ctx, session, err)
		}
		return price, nil
	})
	if err != nil {
		return entity.Failed(p, err, t.now())
	}
	return entity.Succeeded(p, price, t.now())
}

// blockedDelay holds a rate-limited or bot-walled page back for
// RateLimitDelay before the next attempt.
func (t *Tracker) blockedDelay(err error) (time.Duration, bool) {
	var blocked repository.BlockedError
	if t.cfg.RateLimitDelay <= 0 || !errors.As(err, &blocked) {
		return 0, false
	}
	return t.cfg.RateLimitDelay, true
}

func (t *Tracker) navigate(ctx context.Context, session repository.Session, url string) error {
	if t.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.NavigationTimeout)
		defer cancel()
	}
	if err := session.Navigate(ctx, url); err != nil {
		return asSessionError("navigate", err)
	}
	return nil
}

// inspect upgrades err to a repository.BlockedError when the page currently
// shows a bot wall.
func (t *Tracker) inspect(ctx context.Context, session repository.Session, err error) error {
	var blocked repository.BlockedError
	if errors.As(err, &blocked) {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, inspectTimeout)
	defer cancel()
	html, htmlErr := session.HTML(ctx)
	if htmlErr != nil {
		return err
	}
	if ok, reason := DetectBotWall(html); ok {
		return repository.BlockedError{Reason: reason, Err: err}
	}
	return err
}

func (t *Tracker) notify(ctx context.Context, kind, subject, body string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	err := t.notifier.Send(ctx, subject, body)
	t.metrics.IncNotification(kind, err)
	if err != nil {
		t.logger.Error("failed to send notification",
			zap.String("kind", kind),
			zap.String("error_kind", repository.Kind(err)),
			zap.Error(err),
		)
	}
}

func (t *Tracker) updateStreaks(ctx context.Context, out *CheckOutcome) {
	if t.streaks == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, sinkTimeout)
	defer cancel()
	for _, c := range out.Checks {
		if c.Status == entity.StatusOK {
			if err := t.streaks.Reset(ctx, c.URL); err != nil {
				t.logger.Warn("failed to reset failure streak", zap.String("url", c.URL), zap.Error(err))
			}
			continue
		}
		streak, err := t.streaks.Increment(ctx, c.URL)
		if err != nil {
			t.logger.Warn("failed to increment failure streak", zap.String("url", c.URL), zap.Error(err))
			continue
		}
		out.Errors.SetStreak(c.URL, streak)
	}
}

func (t *Tracker) recordHistory(ctx context.Context, checks []entity.PriceCheck) {
	if t.history == nil || len(checks) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, sinkTimeout)
	defer cancel()
	if err := t.history.SaveBatch(ctx, checks); err != nil {
		t.logger.Warn("failed to record check history", zap.Int("checks", len(checks)), zap.Error(err))
	}
}

func validateProduct(p entity.TrackedProduct) error {
	if err := utils.ValidateProductURL(p.URL); err != nil {
		return repository.ValidationError{Field: "url", Err: err}
	}
	if strings.TrimSpace(p.Locator) == "" {
		return repository.ValidationError{Field: "locator", Err: errEmptyLocator}
	}
	return nil
}

func asSessionError(op string, err error) error {
	var session repository.SessionError
	if errors.As(err, &session) {
		return err
	}
	return repository.SessionError{Op: op, Err: err}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
