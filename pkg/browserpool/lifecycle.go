package browserpool

import (
	"context"
	"sync"
	"time"

	"github.com/entrhq/browserpool/pkg/logging"
	"golang.org/x/sync/errgroup"
)

var (
	// instance is the process-wide pool returned by Instance
	instance       *Pool
	instanceClosed bool
	instanceMu     sync.Mutex

	// newLauncher builds the launcher used by Instance
	newLauncher = func(opts EngineOptions) Launcher {
		return NewPlaywrightLauncher(opts)
	}
)

// New creates a pool, launches its browser and starts the idle reaper.
// It returns only once the browser is running; on failure nothing is left
// running.
func New(opts Options, launcher Launcher) (*Pool, error) {
	p := newPool(opts, launcher)

	if _, err := p.engine.EnsureLive(); err != nil {
		p.engine.Terminate()
		return nil, err
	}

	p.reaper = newReaper(p.opts.SweepInterval, p.reapIdle, p.now, p.log)
	p.reaper.start(context.Background())

	p.log.Infof("browser pool ready (sweep every %s, idle timeout %s)", p.opts.SweepInterval, p.opts.IdleTimeout)
	return p, nil
}

// newPool builds a pool without launching anything.
func newPool(opts Options, launcher Launcher) *Pool {
	opts = opts.withDefaults()

	log := opts.Logger
	if log == nil {
		// On error NewLogger returns a stderr logger that has already said why.
		fileLog, _ := logging.NewLogger("browserpool")
		log = fileLog
		opts.Logger = fileLog
	}

	return &Pool{
		opts:     opts,
		engine:   NewEngine(launcher, log),
		log:      log,
		now:      time.Now,
		keys:     newKeyLock(),
		sessions: make(map[string]*entry),
	}
}

// Shutdown closes every session, stops the reaper and terminates the browser.
// Close failures are logged. Later calls do nothing; after Shutdown every
// Acquire fails with ErrPoolClosed.
func (p *Pool) Shutdown() {
	p.shutdownOnce.Do(func() {
		p.log.Infof("shutting down browser pool")

		p.mu.Lock()
		p.closed = true
		sessions := p.sessions
		p.sessions = make(map[string]*entry)
		p.mu.Unlock()

		if p.reaper != nil {
			p.reaper.Stop()
		}

		var g errgroup.Group
		g.SetLimit(shutdownParallelism)
		for key, e := range sessions {
			key := key
			browserContext := e.context
			g.Go(func() error {
				p.closeContext(key, browserContext)
				return nil
			})
		}
		_ = g.Wait()

		p.engine.Terminate()
		p.log.Infof("browser pool shut down (%d sessions closed)", len(sessions))
	})
}

// Instance returns the process-wide pool, creating it with opts on first use.
// Concurrent first callers wait for a single construction. A failed
// construction is not kept, so a later call tries again. Once Shutdown has
// run, Instance returns ErrPoolClosed.
func Instance(opts Options) (*Pool, error) {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instanceClosed {
		return nil, ErrPoolClosed
	}
	if instance != nil {
		return instance, nil
	}

	p, err := New(opts, newLauncher(opts.Engine))
	if err != nil {
		return nil, err
	}
	instance = p
	return instance, nil
}

// Shutdown shuts down the process-wide pool, if one was created, and prevents
// Instance from creating another. Safe to call more than once.
func Shutdown() {
	instanceMu.Lock()
	p := instance
	instanceClosed = true
	instanceMu.Unlock()

	if p != nil {
		p.Shutdown()
	}
}
