package browserpool

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
)

var errFake = errors.New("fake failure")

// fakeContext implements only the BrowserContext methods the pool calls.
type fakeContext struct {
	playwright.BrowserContext

	mu       sync.Mutex
	closed   bool
	closeErr error
	timeout  float64
}

func (c *fakeContext) Close(options ...playwright.BrowserContextCloseOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.closeErr
}

func (c *fakeContext) SetDefaultTimeout(timeout float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = timeout
}

func (c *fakeContext) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeBrowser implements only the Browser methods the engine and pool call.
type fakeBrowser struct {
	playwright.Browser

	mu            sync.Mutex
	connected     bool
	closed        bool
	closeErr      error
	contextErr    error // returned by every NewContext when set
	failContexts  int   // number of upcoming NewContext calls that fail
	contextDelay  time.Duration
	contexts      []*fakeContext
	lastOptions   playwright.BrowserNewContextOptions
	closeContexts error // closeErr given to every created context
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{connected: true}
}

func (b *fakeBrowser) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *fakeBrowser) NewContext(options ...playwright.BrowserNewContextOptions) (playwright.BrowserContext, error) {
	b.mu.Lock()
	delay := b.contextDelay
	b.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected {
		return nil, fmt.Errorf("target closed: %w", errFake)
	}
	if b.contextErr != nil {
		return nil, b.contextErr
	}
	if b.failContexts > 0 {
		b.failContexts--
		return nil, errFake
	}
	if len(options) > 0 {
		b.lastOptions = options[0]
	}
	c := &fakeContext{closeErr: b.closeContexts}
	b.contexts = append(b.contexts, c)
	return c, nil
}

func (b *fakeBrowser) Close(options ...playwright.BrowserCloseOptions) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.connected = false
	return b.closeErr
}

// crash simulates the browser process dying underneath the pool.
func (b *fakeBrowser) crash() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
}

func (b *fakeBrowser) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *fakeBrowser) contextCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.contexts)
}

// fakeLauncher hands out fakeBrowsers and counts launches.
type fakeLauncher struct {
	mu           sync.Mutex
	launches     int
	failLaunches int   // number of upcoming launches that fail
	launchErr    error // returned by every launch when set
	delay        time.Duration
	contextErr   error // applied to every browser launched
	closes       int
	browsers     []*fakeBrowser
}

func (l *fakeLauncher) Launch() (playwright.Browser, error) {
	l.mu.Lock()
	delay := l.delay
	l.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.launches++
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	if l.failLaunches > 0 {
		l.failLaunches--
		return nil, errFake
	}
	b := newFakeBrowser()
	b.contextErr = l.contextErr
	l.browsers = append(l.browsers, b)
	return b, nil
}

func (l *fakeLauncher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closes++
	return nil
}

func (l *fakeLauncher) launchCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}

func (l *fakeLauncher) closeCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closes
}

func (l *fakeLauncher) browser(i int) *fakeBrowser {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.browsers[i]
}

func (l *fakeLauncher) setLaunchErr(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launchErr = err
}

// recordLogger keeps every entry so tests can assert on logged failures.
type recordLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *recordLogger) add(level, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, level+" "+fmt.Sprintf(format, v...))
}

func (l *recordLogger) Debugf(format string, v ...interface{}) { l.add("DEBUG", format, v...) }
func (l *recordLogger) Infof(format string, v ...interface{})  { l.add("INFO", format, v...) }
func (l *recordLogger) Warnf(format string, v ...interface{})  { l.add("WARN", format, v...) }
func (l *recordLogger) Errorf(format string, v ...interface{}) { l.add("ERROR", format, v...) }

func (l *recordLogger) has(level, substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if strings.HasPrefix(e, level+" ") && strings.Contains(e, substr) {
			return true
		}
	}
	return false
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newTestPool builds a pool on a fake launcher and clock without starting the
// reaper. The pool is shut down when the test ends.
func newTestPool(t *testing.T, opts Options) (*Pool, *fakeLauncher, *fakeClock, *recordLogger) {
	t.Helper()

	launcher := &fakeLauncher{}
	log := &recordLogger{}
	clock := newFakeClock()

	opts.Logger = log
	p := newPool(opts, launcher)
	p.now = clock.Now
	t.Cleanup(p.Shutdown)

	return p, launcher, clock, log
}
