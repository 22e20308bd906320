// Package visit loads a URL in a pooled browser session and reports what the
// page contains.
package visit

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/playwright-community/playwright-go"
)

// ErrInvalidURL is returned for URLs that are not absolute http(s) URLs.
var ErrInvalidURL = errors.New("invalid url")

// DefaultMaxLength bounds the text summary of a page (in bytes).
const DefaultMaxLength = 10000

// scrollToBottom triggers lazy-loaded content before the page is read.
const scrollToBottom = "() => window.scrollTo(0, document.body.scrollHeight)"

// SessionSource lends out browser contexts by key. *browserpool.Pool
// satisfies it.
type SessionSource interface {
	Acquire(ctx context.Context, key string) (playwright.BrowserContext, error)
	Release(key string)
}

// Options configures a visit.
type Options struct {
	// WaitUntil specifies when navigation is considered finished
	// Valid values: "load", "domcontentloaded", "networkidle", "commit"
	WaitUntil string

	// Timeout for navigation in milliseconds (0 means the session default)
	Timeout float64

	// SettleDelay is waited after navigation and again after scrolling
	SettleDelay time.Duration

	// MaxLength limits the summary text (0 means DefaultMaxLength)
	MaxLength int

	// Keep leaves the session registered for reuse under the same key
	// instead of releasing it when the visit succeeds
	Keep bool
}

// Result describes a visited page.
type Result struct {
	Key         string    `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Description string    `json:"description,omitempty"`
	Summary     string    `json:"summary"`
	Truncated   bool      `json:"truncated"`
	Timestamp   time.Time `json:"timestamp"`
}

// Visit opens rawURL in a new page of the session registered under key,
// scrolls to the bottom and reads the page. The page is always closed. The
// session is released afterwards unless opts.Keep is set and the visit
// succeeded.
func Visit(ctx context.Context, src SessionSource, key, rawURL string, opts Options) (result *Result, err error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = DefaultMaxLength
	}

	browserContext, err := src.Acquire(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire session: %w", err)
	}
	defer func() {
		if !opts.Keep || err != nil {
			src.Release(key)
		}
	}()

	page, err := browserContext.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer func() { _ = page.Close() }()

	if err := navigate(page, rawURL, opts); err != nil {
		return nil, err
	}

	if err := settle(ctx, opts.SettleDelay); err != nil {
		return nil, err
	}
	if _, err := page.Evaluate(scrollToBottom); err != nil {
		return nil, fmt.Errorf("scroll failed: %w", err)
	}
	if err := settle(ctx, opts.SettleDelay); err != nil {
		return nil, err
	}

	title, err := page.Title()
	if err != nil {
		return nil, fmt.Errorf("failed to read title: %w", err)
	}

	content, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	summary, err := summarize(content, opts.MaxLength)
	if err != nil {
		return nil, err
	}
	if title == "" {
		title = summary.Title
	}

	return &Result{
		Key:         key,
		Title:       title,
		URL:         page.URL(),
		Description: summary.Description,
		Summary:     summary.Text,
		Truncated:   summary.Truncated,
		Timestamp:   time.Now().UTC(),
	}, nil
}

func navigate(page playwright.Page, rawURL string, opts Options) error {
	gotoOpts := playwright.PageGotoOptions{}

	if opts.WaitUntil != "" {
		waitUntil := playwright.WaitUntilState(opts.WaitUntil)
		gotoOpts.WaitUntil = &waitUntil
	}

	if opts.Timeout > 0 {
		gotoOpts.Timeout = &opts.Timeout
	}

	if _, err := page.Goto(rawURL, gotoOpts); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// settle waits d unless ctx ends first.
func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w %q: scheme must be http or https", ErrInvalidURL, rawURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w %q: host is required", ErrInvalidURL, rawURL)
	}
	return nil
}
