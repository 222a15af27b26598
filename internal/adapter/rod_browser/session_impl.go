package rod_browser

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"

	"github.com/user/pricewatch/internal/repository"
)

type RodSessionFactory struct {
	bin    string
	logger *zap.Logger
}

// NewRodSessionFactory creates a factory that launches a stealth-patched
// Chromium through rod. An empty bin lets rod find or download a browser.
func NewRodSessionFactory(bin string, logger *zap.Logger) repository.SessionFactory {
	return &RodSessionFactory{bin: bin, logger: logger}
}

func launchFlags(opts repository.SessionOptions) map[flags.Flag]string {
	out := map[flags.Flag]string{
		"disable-blink-features": "AutomationControlled",
		"disable-dev-shm-usage":  "",
		"no-first-run":           "",
	}
	if opts.UserAgent != "" {
		out["user-agent"] = opts.UserAgent
	}
	if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
		out["window-size"] = strconv.Itoa(opts.WindowWidth) + "," + strconv.Itoa(opts.WindowHeight)
	}
	if opts.DisableWebRTC {
		out["force-webrtc-ip-handling-policy"] = "disable_non_proxied_udp"
	}
	if opts.DisablePasswordManager {
		out["password-store"] = "basic"
		out["disable-save-password-bubble"] = ""
	}
	if opts.AcceptLanguage != "" {
		out["lang"] = opts.AcceptLanguage
	}
	return out
}

func (f *RodSessionFactory) NewSession(ctx context.Context, opts repository.SessionOptions) (repository.Session, error) {
	l := launcher.New().
		Context(context.WithoutCancel(ctx)).
		Headless(opts.Headless).
		NoSandbox(true).
		Leakless(false)
	if f.bin != "" {
		l = l.Bin(f.bin)
	}
	for name, value := range launchFlags(opts) {
		if value == "" {
			l = l.Set(name)
			continue
		}
		l = l.Set(name, value)
	}

	controlURL, err := l.Launch()
	if err != nil {
		// Cleanup waits for the process to exit, so only call it once one was started.
		l.Kill()
		if l.PID() != 0 {
			l.Cleanup()
		}
		return nil, repository.SessionError{Op: "launch", Err: err}
	}

	s := &rodSession{launcher: l, logger: f.logger}
	s.browser = rod.New().ControlURL(controlURL).Context(context.WithoutCancel(ctx))
	if err := s.browser.Connect(); err != nil {
		s.Close()
		return nil, repository.SessionError{Op: "connect", Err: err}
	}

	page, err := stealth.Page(s.browser)
	if err != nil {
		s.Close()
		return nil, repository.SessionError{Op: "open page", Err: err}
	}
	s.page = page

	if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
		if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             opts.WindowWidth,
			Height:            opts.WindowHeight,
			DeviceScaleFactor: 1,
		}); err != nil {
			f.logger.Debug("set viewport failed", zap.Error(err))
		}
	}
	if opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      opts.UserAgent,
			AcceptLanguage: opts.AcceptLanguage,
		}); err != nil {
			f.logger.Debug("set user agent failed", zap.Error(err))
		}
	}
	return s, nil
}

type rodSession struct {
	launcher  *launcher.Launcher
	browser   *rod.Browser
	page      *rod.Page
	logger    *zap.Logger
	closeOnce sync.Once
}

func (s *rodSession) Navigate(ctx context.Context, url string) error {
	eventCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	responses := make(chan *proto.NetworkResponse, 1)
	wait := s.page.Context(eventCtx).EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type != proto.NetworkResourceTypeDocument {
			return false
		}
		responses <- e.Response
		return true
	})
	go wait()

	p := s.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return repository.SessionError{Op: "navigate", Err: err}
	}
	if err := p.WaitLoad(); err != nil {
		return repository.SessionError{Op: "wait load", Err: err}
	}

	select {
	case resp := <-responses:
		return blockedStatus(url, resp.Status, resp.StatusText)
	default:
		return nil
	}
}

// blockedStatus maps the document's HTTP status to a repository.BlockedError
// for forbidden and rate limited responses.
func blockedStatus(url string, status int, text string) error {
	if status != http.StatusForbidden && status != http.StatusTooManyRequests {
		return nil
	}
	return repository.BlockedError{
		Reason: fmt.Sprintf("http %d", status),
		Err:    fmt.Errorf("navigate %s: %s", url, text),
	}
}

func isXPath(locator string) bool {
	locator = strings.TrimSpace(locator)
	return strings.HasPrefix(locator, "/") || strings.HasPrefix(locator, "(") || strings.HasPrefix(locator, "./")
}

func (s *rodSession) WaitVisible(ctx context.Context, locator string, timeout time.Duration) (repository.Element, error) {
	p := s.page.Context(ctx)
	if timeout > 0 {
		p = p.Timeout(timeout)
		defer p.CancelTimeout()
	}

	var (
		el  *rod.Element
		err error
	)
	if isXPath(locator) {
		el, err = p.ElementX(locator)
	} else {
		el, err = p.Element(locator)
	}
	if err != nil {
		return nil, repository.ElementNotFoundError{Locator: locator, Err: err}
	}
	if err := el.WaitVisible(); err != nil {
		return nil, repository.ElementNotFoundError{Locator: locator, Err: err}
	}
	return &rodElement{el: el}, nil
}

func (s *rodSession) Eval(ctx context.Context, script string) error {
	_, err := s.page.Context(ctx).Eval(fmt.Sprintf("() => { %s; }", script))
	return err
}

func (s *rodSession) HTML(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

func (s *rodSession) Close() error {
	s.closeOnce.Do(func() {
		if s.page != nil {
			if err := s.page.Close(); err != nil {
				s.logger.Debug("close page failed", zap.Error(err))
			}
		}
		if s.browser != nil {
			if err := s.browser.Close(); err != nil {
				s.logger.Debug("close browser failed", zap.Error(err))
			}
		}
		s.launcher.Kill()
		s.launcher.Cleanup()
	})
	return nil
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}
