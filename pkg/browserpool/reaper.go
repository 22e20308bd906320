package browserpool

import (
	"context"
	"sync"
	"time"
)

// Reaper periodically evicts sessions that have been inactive for longer
// than the pool's idle timeout. It runs on its own goroutine until Stop.
type Reaper struct {
	interval time.Duration
	sweep    func(now time.Time) int
	now      func() time.Time
	log      Logger

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

func newReaper(interval time.Duration, sweep func(time.Time) int, now func() time.Time, log Logger) *Reaper {
	return &Reaper{
		interval: interval,
		sweep:    sweep,
		now:      now,
		log:      log,
		done:     make(chan struct{}),
	}
}

// start launches the sweep loop. It must be called at most once.
func (r *Reaper) start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	r.cancel = cancel
	go r.run(ctx)
}

func (r *Reaper) run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick()
		}
	}
}

func (r *Reaper) tick() {
	r.log.Debugf("cleaning up idle sessions")
	if n := r.sweep(r.now()); n > 0 {
		r.log.Infof("reaped %d idle sessions", n)
	}
}

// Stop cancels the loop and waits for an in-progress sweep to finish.
// Safe to call more than once, and on a reaper that was never started.
func (r *Reaper) Stop() {
	r.stopOnce.Do(func() {
		if r.cancel == nil {
			return
		}
		r.cancel()
		<-r.done
	})
}

// reapIdle closes and removes every inactive session idle for longer than
// IdleTimeout at now. Active sessions are never touched. It returns the
// number of sessions removed.
func (p *Pool) reapIdle(now time.Time) int {
	p.mu.RLock()
	var candidates []string
	for key, e := range p.sessions {
		if e.idleFor(now, p.opts.IdleTimeout) {
			candidates = append(candidates, key)
		}
	}
	p.mu.RUnlock()

	reaped := 0
	for _, key := range candidates {
		if p.reapOne(key, now) {
			reaped++
		}
	}
	return reaped
}

// reapOne re-checks key under its lock, since an Acquire may have revived it
// after the candidate scan.
func (p *Pool) reapOne(key string, now time.Time) bool {
	unlock := p.keys.Lock(key)
	defer unlock()

	p.mu.Lock()
	e, ok := p.sessions[key]
	if !ok || !e.idleFor(now, p.opts.IdleTimeout) {
		p.mu.Unlock()
		return false
	}
	delete(p.sessions, key)
	p.mu.Unlock()

	p.closeContext(key, e.context)
	p.log.Debugf("reaped idle session %q", key)
	return true
}
