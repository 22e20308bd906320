package browserpool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Pool lends out browser contexts keyed by caller-chosen identifiers. All
// contexts are created from one shared browser owned by the pool's Engine.
//
// Calls for the same key are serialized; calls for different keys run
// concurrently.
type Pool struct {
	opts   Options
	engine *Engine
	log    Logger
	now    func() time.Time
	keys   *keyLock
	reaper *Reaper

	mu       sync.RWMutex
	sessions map[string]*entry
	closed   bool

	shutdownOnce sync.Once
}

// Acquire returns the session registered under key, creating it if the key is
// unknown, its session is no longer active, or its session belongs to a
// browser that has since died or been replaced. The returned context is owned
// by the pool: callers use it until Release and must not close it themselves.
func (p *Pool) Acquire(ctx context.Context, key string) (playwright.BrowserContext, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock := p.keys.Lock(key)
	defer unlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	existing, ok := p.sessions[key]
	if ok && existing.active && p.engine.Owns(existing.browser) {
		existing.lastUsed = p.now()
		browserContext := existing.context
		p.mu.Unlock()
		return browserContext, nil
	}
	if ok {
		// Parked or stale: recreated, never handed back.
		delete(p.sessions, key)
	}
	p.mu.Unlock()

	if ok {
		if existing.active {
			p.log.Infof("session %q belongs to a replaced browser, recreating", key)
		}
		p.closeContext(key, existing.context)
	}

	browserContext, browser, err := p.createContext(ctx, key)
	if err != nil {
		return nil, err
	}

	now := p.now()
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.closeContext(key, browserContext)
		return nil, ErrPoolClosed
	}
	p.sessions[key] = &entry{
		context:   browserContext,
		browser:   browser,
		createdAt: now,
		lastUsed:  now,
		active:    true,
	}
	p.mu.Unlock()

	p.log.Debugf("created session %q", key)
	return browserContext, nil
}

// Release gives the session for key back to the pool. The session is closed
// and forgotten, or parked for the reaper when the pool runs with DeferClose.
// Releasing an unknown key does nothing. Close failures are logged.
func (p *Pool) Release(key string) {
	unlock := p.keys.Lock(key)
	defer unlock()

	p.mu.Lock()
	e, ok := p.sessions[key]
	if !ok {
		p.mu.Unlock()
		return
	}

	if p.opts.DeferClose && !p.closed {
		if e.active {
			e.active = false
			e.lastUsed = p.now()
			p.log.Debugf("parked session %q", key)
		}
		p.mu.Unlock()
		return
	}

	e.active = false
	delete(p.sessions, key)
	p.mu.Unlock()

	p.closeContext(key, e.context)
	p.log.Debugf("released session %q", key)
}

// Has reports whether key is registered and, if so, whether it is active.
func (p *Pool) Has(key string) (active bool, ok bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	e, ok := p.sessions[key]
	if !ok {
		return false, false
	}
	return e.active, true
}

// Len returns the number of registered sessions, active or parked.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.sessions)
}

// Sessions returns a snapshot of every registered session sorted by key.
func (p *Pool) Sessions() []SessionInfo {
	p.mu.RLock()
	infos := make([]SessionInfo, 0, len(p.sessions))
	for key, e := range p.sessions {
		infos = append(infos, e.info(key))
	}
	p.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos
}

// createContext creates a context from a live browser. If that fails, the
// browser used is dropped and the whole sequence is retried exactly once.
// It returns the browser the context was created from.
func (p *Pool) createContext(ctx context.Context, key string) (playwright.BrowserContext, playwright.Browser, error) {
	browserContext, browser, err := p.tryCreateContext()
	if err == nil {
		return browserContext, browser, nil
	}
	if errors.Is(err, ErrPoolClosed) {
		return nil, nil, err
	}

	p.log.Warnf("error creating session %q, relaunching browser: %v", key, err)
	p.engine.Invalidate(browser)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, nil, ctxErr
	}

	browserContext, browser, err = p.tryCreateContext()
	if err != nil {
		if errors.Is(err, ErrPoolClosed) {
			return nil, nil, err
		}
		p.log.Errorf("retry creating session %q failed: %v", key, err)
		return nil, nil, &SessionCreationError{Key: key, Err: err}
	}

	p.log.Infof("reestablished browser and created session %q", key)
	return browserContext, browser, nil
}

// tryCreateContext returns the browser it used even on failure so the caller
// can invalidate exactly that instance.
func (p *Pool) tryCreateContext() (playwright.BrowserContext, playwright.Browser, error) {
	browser, err := p.engine.EnsureLive()
	if err != nil {
		return nil, nil, err
	}

	browserContext, err := browser.NewContext(p.opts.Session.contextOptions())
	if err != nil {
		return nil, browser, fmt.Errorf("failed to create context: %w", err)
	}
	browserContext.SetDefaultTimeout(p.opts.Session.Timeout)
	return browserContext, browser, nil
}

// closeContext closes a session best-effort; failures are logged only.
func (p *Pool) closeContext(key string, browserContext playwright.BrowserContext) {
	if err := browserContext.Close(); err != nil {
		p.log.Warnf("failed to close session %q: %v", key, err)
	}
}
