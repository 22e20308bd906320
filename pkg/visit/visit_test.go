package visit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFake = errors.New("fake failure")

type fakePage struct {
	playwright.Page

	url         string
	title       string
	content     string
	gotoErr     error
	evaluateErr error

	gotoURL   string
	gotoOpts  playwright.PageGotoOptions
	evaluated []string
	closed    bool
}

func (p *fakePage) Goto(url string, options ...playwright.PageGotoOptions) (playwright.Response, error) {
	p.gotoURL = url
	if len(options) > 0 {
		p.gotoOpts = options[0]
	}
	if p.gotoErr != nil {
		return nil, p.gotoErr
	}
	if p.url == "" {
		p.url = url
	}
	return nil, nil
}

func (p *fakePage) Evaluate(expression string, arg ...interface{}) (interface{}, error) {
	p.evaluated = append(p.evaluated, expression)
	return nil, p.evaluateErr
}

func (p *fakePage) Title() (string, error) { return p.title, nil }

func (p *fakePage) Content() (string, error) { return p.content, nil }

func (p *fakePage) URL() string { return p.url }

func (p *fakePage) Close(options ...playwright.PageCloseOptions) error {
	p.closed = true
	return nil
}

type fakeContext struct {
	playwright.BrowserContext

	page    *fakePage
	pageErr error
}

func (c *fakeContext) NewPage() (playwright.Page, error) {
	if c.pageErr != nil {
		return nil, c.pageErr
	}
	return c.page, nil
}

type fakeSource struct {
	context    *fakeContext
	acquireErr error

	acquired []string
	released []string
}

func (s *fakeSource) Acquire(ctx context.Context, key string) (playwright.BrowserContext, error) {
	s.acquired = append(s.acquired, key)
	if s.acquireErr != nil {
		return nil, s.acquireErr
	}
	return s.context, nil
}

func (s *fakeSource) Release(key string) {
	s.released = append(s.released, key)
}

func newFakeSource(page *fakePage) *fakeSource {
	return &fakeSource{context: &fakeContext{page: page}}
}

const testPage = `<html>
	<head><title>Example Domain</title><meta name="description" content="An example"></head>
	<body><h1>Example Domain</h1><p>For use in examples.</p></body>
</html>`

func TestVisit_ReadsPageAndReleasesSession(t *testing.T) {
	page := &fakePage{title: "Example Domain", content: testPage, url: "https://example.com/"}
	src := newFakeSource(page)

	result, err := Visit(context.Background(), src, "k1", "https://example.com", Options{WaitUntil: "load"})
	require.NoError(t, err)

	assert.Equal(t, "k1", result.Key)
	assert.Equal(t, "Example Domain", result.Title)
	assert.Equal(t, "https://example.com/", result.URL)
	assert.Equal(t, "An example", result.Description)
	assert.Equal(t, "Example Domain\nFor use in examples.", result.Summary)
	assert.False(t, result.Truncated)
	assert.False(t, result.Timestamp.IsZero())

	assert.Equal(t, "https://example.com", page.gotoURL)
	require.NotNil(t, page.gotoOpts.WaitUntil)
	assert.Equal(t, playwright.WaitUntilState("load"), *page.gotoOpts.WaitUntil)
	assert.Nil(t, page.gotoOpts.Timeout)
	assert.Equal(t, []string{scrollToBottom}, page.evaluated)
	assert.True(t, page.closed)

	assert.Equal(t, []string{"k1"}, src.acquired)
	assert.Equal(t, []string{"k1"}, src.released)
}

func TestVisit_KeepLeavesSessionRegistered(t *testing.T) {
	page := &fakePage{content: testPage}
	src := newFakeSource(page)

	_, err := Visit(context.Background(), src, "sticky", "http://example.com", Options{Keep: true, Timeout: 5000})
	require.NoError(t, err)

	assert.Empty(t, src.released)
	assert.True(t, page.closed)
	require.NotNil(t, page.gotoOpts.Timeout)
	assert.Equal(t, 5000.0, *page.gotoOpts.Timeout)
}

func TestVisit_ErrorsReleaseSession(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(*fakeSource, *fakePage)
		errMsg string
	}{
		{
			name:   "page creation fails",
			setup:  func(s *fakeSource, _ *fakePage) { s.context.pageErr = errFake },
			errMsg: "failed to open page",
		},
		{
			name:   "navigation fails",
			setup:  func(_ *fakeSource, p *fakePage) { p.gotoErr = errFake },
			errMsg: "navigation failed",
		},
		{
			name:   "scroll fails",
			setup:  func(_ *fakeSource, p *fakePage) { p.evaluateErr = errFake },
			errMsg: "scroll failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := &fakePage{content: testPage}
			src := newFakeSource(page)
			tt.setup(src, page)

			// Keep only applies to successful visits.
			result, err := Visit(context.Background(), src, "k", "https://example.com", Options{Keep: true})

			assert.Nil(t, result)
			assert.ErrorContains(t, err, tt.errMsg)
			assert.ErrorIs(t, err, errFake)
			assert.Equal(t, []string{"k"}, src.released)
		})
	}
}

func TestVisit_AcquireFailure(t *testing.T) {
	src := &fakeSource{acquireErr: errFake}

	result, err := Visit(context.Background(), src, "k", "https://example.com", Options{})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, errFake)
	assert.ErrorContains(t, err, "failed to acquire session")
	assert.Empty(t, src.released, "nothing to release when nothing was acquired")
}

func TestVisit_InvalidURL(t *testing.T) {
	for _, rawURL := range []string{"", "example.com", "ftp://example.com/file", "http://", "://bad"} {
		t.Run(rawURL, func(t *testing.T) {
			src := newFakeSource(&fakePage{})

			_, err := Visit(context.Background(), src, "k", rawURL, Options{})

			assert.ErrorIs(t, err, ErrInvalidURL)
			assert.Empty(t, src.acquired)
		})
	}
}

func TestVisit_ContextCancelledWhileSettling(t *testing.T) {
	page := &fakePage{content: testPage}
	src := newFakeSource(page)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Visit(ctx, src, "k", "https://example.com", Options{SettleDelay: time.Hour})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, page.evaluated)
	assert.True(t, page.closed)
	assert.Equal(t, []string{"k"}, src.released)
}

func TestVisit_MaxLength(t *testing.T) {
	page := &fakePage{content: testPage}
	src := newFakeSource(page)

	result, err := Visit(context.Background(), src, "k", "https://example.com", Options{MaxLength: 10})
	require.NoError(t, err)

	assert.True(t, result.Truncated)
	assert.Equal(t, "Example Do...", result.Summary)
}

func TestVisit_TitleFallsBackToDocument(t *testing.T) {
	tests := []struct {
		name      string
		pageTitle string
		want      string
	}{
		{"page title wins", "Live Title", "Live Title"},
		{"empty page title uses document title", "", "Example Domain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource(&fakePage{title: tt.pageTitle, content: testPage})

			result, err := Visit(context.Background(), src, "k", "https://example.com", Options{})
			require.NoError(t, err)

			assert.Equal(t, tt.want, result.Title)
		})
	}
}
