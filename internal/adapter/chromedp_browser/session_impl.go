package chromedp_browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/user/pricewatch/internal/repository"
)

// hideAutomationJS runs before any page script in every new document.
const hideAutomationJS = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
window.chrome = window.chrome || {runtime: {}};
Object.defineProperty(navigator, 'plugins', {get: () => [1, 2, 3, 4, 5]});`

type ChromedpSessionFactory struct {
	logger *zap.Logger
}

// NewChromedpSessionFactory creates a session factory that starts one Chrome
// process per session.
func NewChromedpSessionFactory(logger *zap.Logger) repository.SessionFactory {
	return &ChromedpSessionFactory{logger: logger}
}

// chromeFlags translates session options into Chrome command line switches.
func chromeFlags(opts repository.SessionOptions) map[string]interface{} {
	flags := map[string]interface{}{
		"headless":                      opts.Headless,
		"disable-gpu":                   true,
		"no-sandbox":                    true,
		"disable-dev-shm-usage":         true,
		"enable-automation":             false,
		"disable-blink-features":        "AutomationControlled",
		"disable-infobars":              true,
		"no-first-run":                  true,
		"no-default-browser-check":      true,
		"disable-background-networking": true,
		"disable-features":              "Translate,OptimizationHints",
		"force-device-scale-factor":     "1",
	}
	if opts.DisableWebRTC {
		flags["force-webrtc-ip-handling-policy"] = "disable_non_proxied_udp"
		flags["webrtc-ip-handling-policy"] = "disable_non_proxied_udp"
	}
	if opts.DisablePasswordManager {
		flags["password-store"] = "basic"
		flags["disable-save-password-bubble"] = true
	}
	if opts.AcceptLanguage != "" {
		flags["lang"] = opts.AcceptLanguage
	}
	return flags
}

// NewSession starts Chrome, prepares the first tab and returns it as a session.
func (f *ChromedpSessionFactory) NewSession(ctx context.Context, opts repository.SessionOptions) (repository.Session, error) {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for name, value := range chromeFlags(opts) {
		allocOpts = append(allocOpts, chromedp.Flag(name, value))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight))
	}

	// The browser outlives the caller's per-attempt context; Close ends it.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(f.logger.Sugar().Debugf))

	s := &chromedpSession{
		ctx: tabCtx,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
	}

	setup := chromedp.Tasks{
		network.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(hideAutomationJS).Do(ctx)
			return err
		}),
	}
	if opts.AcceptLanguage != "" {
		setup = append(setup, network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": opts.AcceptLanguage}))
	}

	runCtx, cancel := s.scoped(ctx, 0)
	defer cancel()
	if err := chromedp.Run(runCtx, setup); err != nil {
		s.Close()
		return nil, repository.SessionError{Op: "start", Err: err}
	}
	return s, nil
}

type chromedpSession struct {
	ctx       context.Context
	cancel    func()
	closeOnce sync.Once
}

// scoped derives a context for one chromedp.Run from the tab context that is
// also cancelled when ctx is done, so a caller deadline never closes the tab.
func (s *chromedpSession) scoped(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(s.ctx)
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, timeout)
		parentCancel := cancel
		cancel = func() {
			cancelTimeout()
			parentCancel()
		}
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (s *chromedpSession) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := s.scoped(ctx, 0)
	defer cancel()

	resp, err := chromedp.RunResponse(runCtx, chromedp.Navigate(url))
	if err != nil {
		return repository.SessionError{Op: "navigate", Err: err}
	}
	if resp != nil && (resp.Status == 403 || resp.Status == 429) {
		return repository.BlockedError{
			Reason: fmt.Sprintf("http %d", resp.Status),
			Err:    fmt.Errorf("navigate %s: %s", url, resp.StatusText),
		}
	}
	return nil
}

func (s *chromedpSession) WaitVisible(ctx context.Context, locator string, timeout time.Duration) (repository.Element, error) {
	runCtx, cancel := s.scoped(ctx, timeout)
	defer cancel()

	var nodes []*cdp.Node
	if err := chromedp.Run(runCtx, chromedp.Nodes(locator, &nodes, chromedp.BySearch, chromedp.NodeVisible)); err != nil {
		return nil, repository.ElementNotFoundError{Locator: locator, Err: err}
	}
	if len(nodes) == 0 {
		return nil, repository.ElementNotFoundError{Locator: locator, Err: fmt.Errorf("no nodes matched")}
	}
	return &chromedpElement{session: s, node: nodes[0]}, nil
}

func (s *chromedpSession) Eval(ctx context.Context, script string) error {
	runCtx, cancel := s.scoped(ctx, 0)
	defer cancel()

	var ok bool
	return chromedp.Run(runCtx, chromedp.Evaluate(fmt.Sprintf("(() => { %s; return true; })()", script), &ok))
}

func (s *chromedpSession) HTML(ctx context.Context) (string, error) {
	runCtx, cancel := s.scoped(ctx, 0)
	defer cancel()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (s *chromedpSession) Close() error {
	s.closeOnce.Do(s.cancel)
	return nil
}

type chromedpElement struct {
	session *chromedpSession
	node    *cdp.Node
}

func (e *chromedpElement) Text(ctx context.Context) (string, error) {
	runCtx, cancel := e.session.scoped(ctx, 0)
	defer cancel()

	var text string
	if err := chromedp.Run(runCtx, chromedp.Text([]cdp.NodeID{e.node.NodeID}, &text, chromedp.ByNodeID)); err != nil {
		return "", err
	}
	return text, nil
}
