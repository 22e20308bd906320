package browserpool

import (
	"sync"

	"github.com/playwright-community/playwright-go"
	"golang.org/x/sync/singleflight"
)

const launchKey = "launch"

// Engine owns the single browser process shared by every session.
// Only the Engine replaces or closes it.
type Engine struct {
	launcher Launcher
	log      Logger

	mu         sync.Mutex
	browser    playwright.Browser
	terminated bool

	launches singleflight.Group
}

// NewEngine creates an Engine that launches browsers with launcher.
// Nothing is started until EnsureLive is called.
func NewEngine(launcher Launcher, log Logger) *Engine {
	return &Engine{
		launcher: launcher,
		log:      log,
	}
}

// EnsureLive returns a connected browser, launching one if none exists or the
// current one has disconnected. Concurrent callers share a single launch.
func (e *Engine) EnsureLive() (playwright.Browser, error) {
	if browser, ok := e.current(); ok {
		return browser, nil
	}

	v, err, _ := e.launches.Do(launchKey, func() (interface{}, error) {
		// Another caller may have finished a launch while we waited to get here.
		if browser, ok := e.current(); ok {
			return browser, nil
		}

		e.mu.Lock()
		if e.terminated {
			e.mu.Unlock()
			return nil, ErrPoolClosed
		}
		stale := e.browser
		e.browser = nil
		e.mu.Unlock()

		if stale != nil {
			e.log.Warnf("browser disconnected, relaunching")
			e.closeBrowser(stale)
		}

		browser, err := e.launcher.Launch()
		if err != nil {
			e.log.Errorf("browser launch failed: %v", err)
			return nil, &EngineLaunchError{Err: err}
		}

		e.mu.Lock()
		if e.terminated {
			e.mu.Unlock()
			e.closeBrowser(browser)
			return nil, ErrPoolClosed
		}
		e.browser = browser
		e.mu.Unlock()

		e.log.Infof("browser launched")
		return browser, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(playwright.Browser), nil
}

// Invalidate drops stale if it is still the current browser and closes it.
// It is a no-op when another caller already replaced the browser. Sessions
// created from stale are no longer Owned and get recreated on next Acquire.
func (e *Engine) Invalidate(stale playwright.Browser) {
	if stale == nil {
		return
	}

	e.mu.Lock()
	if e.browser != stale {
		e.mu.Unlock()
		return
	}
	e.browser = nil
	e.mu.Unlock()

	e.log.Warnf("dropping cached browser after session failure")
	e.closeBrowser(stale)
}

// Terminate closes the current browser and the launcher. It is idempotent;
// after it returns, EnsureLive fails with ErrPoolClosed.
func (e *Engine) Terminate() {
	e.mu.Lock()
	if e.terminated {
		e.mu.Unlock()
		return
	}
	e.terminated = true
	browser := e.browser
	e.browser = nil
	e.mu.Unlock()

	if browser != nil {
		e.closeBrowser(browser)
	}
	if err := e.launcher.Close(); err != nil {
		e.log.Warnf("failed to stop browser driver: %v", err)
	}
}

// Owns reports whether browser is the current browser and still connected.
// Sessions created from any other browser are stale.
func (e *Engine) Owns(browser playwright.Browser) bool {
	current, ok := e.current()
	return ok && browser != nil && current == browser
}

// Alive reports whether a connected browser is currently cached.
func (e *Engine) Alive() bool {
	_, ok := e.current()
	return ok
}

func (e *Engine) current() (playwright.Browser, bool) {
	e.mu.Lock()
	browser := e.browser
	e.mu.Unlock()

	if browser == nil || !browser.IsConnected() {
		return nil, false
	}
	return browser, true
}

// closeBrowser closes browser best-effort; failures are logged only.
func (e *Engine) closeBrowser(browser playwright.Browser) {
	if err := browser.Close(); err != nil {
		e.log.Warnf("failed to close browser: %v", err)
	}
}
