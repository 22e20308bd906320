package browserpool

import (
	"time"

	"github.com/playwright-community/playwright-go"
)

// Default values for engine, session and reaper settings.
const (
	DefaultBrowser        = "chromium"
	DefaultTimeout        = 30000.0 // 30 seconds in milliseconds
	DefaultViewportWidth  = 1000
	DefaultViewportHeight = 1000
	DefaultSweepInterval  = 15 * time.Minute
	DefaultIdleTimeout    = 15 * time.Minute

	// shutdownParallelism bounds concurrent context closes during Shutdown
	shutdownParallelism = 8
)

// Logger is the logging surface the pool writes to. *logging.Logger
// satisfies it.
type Logger interface {
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
}

// EngineOptions configures how the shared browser process is launched.
// Values are passed to Playwright unmodified.
type EngineOptions struct {
	// Browser selects the browser type: chromium, firefox or webkit
	Browser string

	// Args are extra command line flags for the browser process
	Args []string

	// Headless controls whether the browser runs without a visible window
	Headless bool

	// SlowMo slows down every Playwright operation (in milliseconds)
	SlowMo float64

	// LaunchTimeout bounds browser startup (in milliseconds, 0 means Playwright's default)
	LaunchTimeout float64

	// InstallBrowsers downloads the Playwright driver and browsers before first launch
	InstallBrowsers bool
}

// SessionOptions configures every browser context created by the pool.
type SessionOptions struct {
	// Viewport sets the initial viewport size
	Viewport *Viewport

	// Timeout sets the default timeout for page operations (in milliseconds)
	Timeout float64

	// DisableJavaScript turns off script execution in the context
	DisableJavaScript bool

	// BypassCSP disables Content-Security-Policy enforcement
	BypassCSP bool
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}

// Options configures a Pool.
type Options struct {
	Engine  EngineOptions
	Session SessionOptions

	// SweepInterval is how often the reaper runs
	SweepInterval time.Duration

	// IdleTimeout is how long an inactive session is retained before it is reaped
	IdleTimeout time.Duration

	// DeferClose makes Release park sessions as inactive instead of closing
	// them; the reaper closes them once IdleTimeout has passed.
	DeferClose bool

	// Logger receives pool diagnostics. Nil means a "browserpool" file logger.
	Logger Logger
}

// withDefaults fills unset fields.
func (o Options) withDefaults() Options {
	if o.Engine.Browser == "" {
		o.Engine.Browser = DefaultBrowser
	}
	if o.Session.Viewport == nil {
		o.Session.Viewport = &Viewport{
			Width:  DefaultViewportWidth,
			Height: DefaultViewportHeight,
		}
	}
	if o.Session.Timeout == 0 {
		o.Session.Timeout = DefaultTimeout
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = DefaultSweepInterval
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	return o
}

// contextOptions converts SessionOptions into Playwright's context options.
func (o SessionOptions) contextOptions() playwright.BrowserNewContextOptions {
	opts := playwright.BrowserNewContextOptions{
		JavaScriptEnabled: playwright.Bool(!o.DisableJavaScript),
		BypassCSP:         playwright.Bool(o.BypassCSP),
	}
	if o.Viewport != nil {
		opts.Viewport = &playwright.Size{
			Width:  o.Viewport.Width,
			Height: o.Viewport.Height,
		}
	}
	return opts
}

// SessionInfo contains metadata about a pooled session.
type SessionInfo struct {
	Key        string    `json:"key"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
}
