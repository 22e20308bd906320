package browserpool

import (
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"
)

// Launcher starts browser processes for an Engine.
type Launcher interface {
	// Launch starts a new browser process.
	Launch() (playwright.Browser, error)

	// Close releases whatever the launcher itself holds (driver process, connections).
	Close() error
}

// PlaywrightLauncher launches browsers through a lazily started Playwright driver.
type PlaywrightLauncher struct {
	opts EngineOptions

	mu sync.Mutex
	pw *playwright.Playwright
}

// NewPlaywrightLauncher creates a launcher for the given engine options.
func NewPlaywrightLauncher(opts EngineOptions) *PlaywrightLauncher {
	if opts.Browser == "" {
		opts.Browser = DefaultBrowser
	}
	return &PlaywrightLauncher{opts: opts}
}

// Launch starts the driver if needed and launches a browser of the configured type.
func (l *PlaywrightLauncher) Launch() (playwright.Browser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pw == nil {
		if err := l.startDriver(); err != nil {
			return nil, err
		}
	}

	browserType, err := l.browserType()
	if err != nil {
		return nil, err
	}

	browser, err := browserType.Launch(l.launchOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to launch %s: %w", l.opts.Browser, err)
	}
	return browser, nil
}

// Close stops the Playwright driver. Safe to call when it never started.
func (l *PlaywrightLauncher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pw == nil {
		return nil
	}
	pw := l.pw
	l.pw = nil
	if err := pw.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}

// startDriver installs (optionally) and runs the Playwright driver with its
// output discarded so it cannot interleave with ours.
func (l *PlaywrightLauncher) startDriver() error {
	runOpts := &playwright.RunOptions{
		Browsers: []string{l.opts.Browser},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}

	if l.opts.InstallBrowsers {
		if err := playwright.Install(runOpts); err != nil {
			return fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}
	l.pw = pw
	return nil
}

func (l *PlaywrightLauncher) browserType() (playwright.BrowserType, error) {
	switch l.opts.Browser {
	case "chromium":
		return l.pw.Chromium, nil
	case "firefox":
		return l.pw.Firefox, nil
	case "webkit":
		return l.pw.WebKit, nil
	default:
		return nil, fmt.Errorf("unsupported browser type %q", l.opts.Browser)
	}
}

func (l *PlaywrightLauncher) launchOptions() playwright.BrowserTypeLaunchOptions {
	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.opts.Headless),
	}
	if len(l.opts.Args) > 0 {
		opts.Args = append([]string(nil), l.opts.Args...)
	}
	if l.opts.SlowMo > 0 {
		opts.SlowMo = playwright.Float(l.opts.SlowMo)
	}
	if l.opts.LaunchTimeout > 0 {
		opts.Timeout = playwright.Float(l.opts.LaunchTimeout)
	}
	return opts
}
