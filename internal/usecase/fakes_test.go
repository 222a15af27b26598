package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/user/pricewatch/internal/entity"
	"github.com/user/pricewatch/internal/repository"
)

var errWaitTimeout = errors.New("context deadline exceeded waiting for element")

// fakePage scripts what a URL renders.
type fakePage struct {
	texts   []string
	waitErr error
	navErr  error
	html    string
	panics  bool
}

type fakeSession struct {
	mu      sync.Mutex
	factory *fakeFactory

	url     string
	texts   []string
	waitErr error
	navErr  error
	evalErr error
	html    string
	panics  bool

	evals       []string
	waits       int
	navigations int
	closed      int
}

type fakeElement struct{ text string }

func (e fakeElement) Text(context.Context) (string, error) { return e.text, nil }

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.url = url
	s.navigations++
	if s.factory != nil {
		page := s.factory.page(url)
		s.texts, s.waitErr, s.navErr, s.html, s.panics = page.texts, page.waitErr, page.navErr, page.html, page.panics
	}
	return s.navErr
}

func (s *fakeSession) WaitVisible(ctx context.Context, locator string, timeout time.Duration) (repository.Element, error) {
	s.mu.Lock()
	s.waits++
	idx := s.waits - 1
	panics, waitErr, texts := s.panics, s.waitErr, s.texts
	s.mu.Unlock()

	if s.factory != nil && s.factory.delay > 0 {
		time.Sleep(s.factory.delay)
	}
	if panics {
		panic("nil pointer in page script")
	}
	if waitErr != nil {
		return nil, waitErr
	}
	if len(texts) == 0 {
		return nil, errWaitTimeout
	}
	return fakeElement{text: texts[min(idx, len(texts)-1)]}, nil
}

func (s *fakeSession) Eval(ctx context.Context, script string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evals = append(s.evals, script)
	return s.evalErr
}

func (s *fakeSession) HTML(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.html, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()
	if s.factory != nil {
		s.factory.release()
	}
	return nil
}

func (s *fakeSession) evalScripts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.evals...)
}

type fakeFactory struct {
	mu       sync.Mutex
	pages    map[string]fakePage
	startErr error
	delay    time.Duration

	opened      int
	inFlight    int
	maxInFlight int
	sessions    []*fakeSession
}

func newFakeFactory(pages map[string]fakePage) *fakeFactory {
	return &fakeFactory{pages: pages}
}

func (f *fakeFactory) NewSession(ctx context.Context, opts repository.SessionOptions) (repository.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.opened++
	f.inFlight++
	f.maxInFlight = max(f.maxInFlight, f.inFlight)
	s := &fakeSession{factory: f}
	f.sessions = append(f.sessions, s)
	return s, nil
}

func (f *fakeFactory) page(url string) fakePage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pages[url]
}

func (f *fakeFactory) release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
}

func (f *fakeFactory) unclosed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sessions {
		s.mu.Lock()
		if s.closed == 0 {
			n++
		}
		s.mu.Unlock()
	}
	return n
}

type sentMessage struct {
	subject string
	body    string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (n *fakeNotifier) Send(ctx context.Context, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return repository.DeliveryError{Err: n.err}
	}
	n.sent = append(n.sent, sentMessage{subject: subject, body: body})
	return nil
}

func (n *fakeNotifier) bySubject(subject string) []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentMessage
	for _, m := range n.sent {
		if m.subject == subject {
			out = append(out, m)
		}
	}
	return out
}

type fakeStore struct {
	mu       sync.Mutex
	products []entity.TrackedProduct
	saved    [][]entity.TrackedProduct
	loadErr  error
	saveErr  error
}

func (s *fakeStore) Load(ctx context.Context) ([]entity.TrackedProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	out := make([]entity.TrackedProduct, len(s.products))
	copy(out, s.products)
	return out, nil
}

func (s *fakeStore) Save(ctx context.Context, products []entity.TrackedProduct) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, append([]entity.TrackedProduct(nil), products...))
	return nil
}

type fakeHistory struct {
	mu     sync.Mutex
	checks []entity.PriceCheck
	err    error
}

func (h *fakeHistory) SaveBatch(ctx context.Context, checks []entity.PriceCheck) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.checks = append(h.checks, checks...)
	return nil
}

func (h *fakeHistory) FindByURL(ctx context.Context, url string, limit int) ([]*entity.PriceCheck, error) {
	return nil, nil
}

type fakeStreaks struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (s *fakeStreaks) Increment(ctx context.Context, url string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counts == nil {
		s.counts = map[string]int64{}
	}
	s.counts[url]++
	return s.counts[url], nil
}

func (s *fakeStreaks) Reset(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counts, url)
	return nil
}

type fakeLock struct {
	held     bool
	acquired int
	released int
}

func (l *fakeLock) Acquire(ctx context.Context, ttl time.Duration) (bool, error) {
	if l.held {
		return false, nil
	}
	l.held = true
	l.acquired++
	return true, nil
}

func (l *fakeLock) Release(ctx context.Context) error {
	l.held = false
	l.released++
	return nil
}
