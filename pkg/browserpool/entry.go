package browserpool

import (
	"time"

	"github.com/playwright-community/playwright-go"
)

// entry is the registry record for one pooled session. Fields other than
// context are guarded by Pool.mu.
type entry struct {
	context playwright.BrowserContext
	// browser is the browser context was created from
	browser   playwright.Browser
	createdAt time.Time
	lastUsed  time.Time
	active    bool
}

// idleFor reports whether e is inactive and was last used more than d before now.
func (e *entry) idleFor(now time.Time, d time.Duration) bool {
	return !e.active && now.Sub(e.lastUsed) > d
}

func (e *entry) info(key string) SessionInfo {
	return SessionInfo{
		Key:        key,
		Active:     e.active,
		CreatedAt:  e.createdAt,
		LastUsedAt: e.lastUsed,
	}
}
