package chromedp_browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/user/pricewatch/internal/repository"
)

func TestChromeFlags(t *testing.T) {
	flags := chromeFlags(repository.SessionOptions{
		Headless:               false,
		DisableWebRTC:          true,
		DisablePasswordManager: true,
		AcceptLanguage:         "de-DE",
	})

	if flags["headless"] != false {
		t.Fatalf("headless = %v, want false", flags["headless"])
	}
	if flags["disable-blink-features"] != "AutomationControlled" || flags["enable-automation"] != false {
		t.Fatalf("automation flags not suppressed: %v", flags)
	}
	if flags["force-webrtc-ip-handling-policy"] != "disable_non_proxied_udp" {
		t.Fatalf("webrtc not restricted: %v", flags)
	}
	if flags["password-store"] != "basic" {
		t.Fatalf("password manager not disabled: %v", flags)
	}
	if flags["lang"] != "de-DE" {
		t.Fatalf("lang = %v", flags["lang"])
	}

	plain := chromeFlags(repository.SessionOptions{Headless: true})
	if _, ok := plain["force-webrtc-ip-handling-policy"]; ok {
		t.Fatalf("webrtc flag set without DisableWebRTC")
	}
	if _, ok := plain["password-store"]; ok {
		t.Fatalf("password flag set without DisablePasswordManager")
	}
}

// Requires a local Chrome; enable with PRICEWATCH_BROWSER_TESTS=1.
func TestSessionAgainstLocalPage(t *testing.T) {
	if os.Getenv("PRICEWATCH_BROWSER_TESTS") == "" {
		t.Skip("set PRICEWATCH_BROWSER_TESTS=1 to run against a local Chrome")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/blocked" {
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `<html><head><title>Kettle</title></head><body>
<div style="height:2000px"></div><span id="price">$1,299.00</span></body></html>`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	f := NewChromedpSessionFactory(zap.NewNop())
	s, err := f.NewSession(ctx, repository.SessionOptions{Headless: true, WindowWidth: 1280, WindowHeight: 800})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer s.Close()

	if err := s.Navigate(ctx, srv.URL); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	el, err := s.WaitVisible(ctx, "//span[@id='price']", 10*time.Second)
	if err != nil {
		t.Fatalf("WaitVisible: %v", err)
	}
	text, err := el.Text(ctx)
	if err != nil || strings.TrimSpace(text) != "$1,299.00" {
		t.Fatalf("Text = %q, %v", text, err)
	}
	if err := s.Eval(ctx, "window.scrollTo(0, 500)"); err != nil {
		t.Fatalf("Eval: %v", err)
	}
	html, err := s.HTML(ctx)
	if err != nil || !strings.Contains(html, "Kettle") {
		t.Fatalf("HTML = %q, %v", html, err)
	}

	if _, err := s.WaitVisible(ctx, "#missing", 500*time.Millisecond); repository.Kind(err) != repository.KindElementNotFound {
		t.Fatalf("missing element err = %v", err)
	}
	if err := s.Navigate(ctx, srv.URL+"/blocked"); repository.Kind(err) != repository.KindBlocked {
		t.Fatalf("429 err = %v, want blocked", err)
	}
}
