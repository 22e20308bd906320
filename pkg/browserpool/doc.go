// Package browserpool lends out isolated browser contexts derived from a
// single shared browser process.
//
// Launching a browser is slow and can fail, so the pool keeps one browser
// running and hands out cheap Playwright browser contexts keyed by a
// caller-chosen string. Repeated requests for the same key reuse the same
// context until it is released.
//
// # Architecture
//
//  1. Engine: owns the browser process. Launches it lazily, relaunches it when
//     it disconnects, and lets concurrent callers share a single launch.
//  2. Pool: the key to session registry. Acquire creates on miss and reuses on
//     hit; Release closes the session (or parks it, with DeferClose).
//  3. Reaper: a background sweep that closes parked sessions once they have
//     been idle longer than the idle timeout. Active sessions are never reaped.
//
// # Failure handling
//
// If creating a context fails, the browser that was used is dropped and the
// launch-and-create sequence is retried once. A second failure is returned as
// a *SessionCreationError. Errors from closing sessions or the browser are
// logged and never returned.
//
// # Lifecycle
//
// New builds a pool explicitly and is the preferred entry point for servers
// that wire their dependencies at startup. Instance and Shutdown manage a
// process-wide pool for callers that cannot carry one around.
//
// # Example Usage
//
//	pool, err := browserpool.New(opts, browserpool.NewPlaywrightLauncher(opts.Engine))
//	if err != nil {
//	    return err
//	}
//	defer pool.Shutdown()
//
//	browserContext, err := pool.Acquire(ctx, requestID)
//	if err != nil {
//	    return err
//	}
//	defer pool.Release(requestID)
//
//	page, err := browserContext.NewPage()
package browserpool
