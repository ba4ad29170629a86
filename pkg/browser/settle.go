package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/MaTriXy/stagehand/api/schemas"
)

// settleInstrumentationJS records the time of the last DOM mutation. It is
// installed once per tab for every new document; the guard keeps a second
// injection from stacking observers.
const settleInstrumentationJS = `(() => {
	if (window.__stagehand_settle__) return;
	const state = {last: Date.now()};
	window.__stagehand_settle__ = state;
	const observer = new MutationObserver(() => { state.last = Date.now(); });
	const arm = () => {
		if (document.documentElement) {
			observer.observe(document.documentElement, {
				childList: true,
				subtree: true,
				attributes: true,
				characterData: true,
			});
		}
	};
	if (document.readyState === "loading") {
		document.addEventListener("DOMContentLoaded", arm, {once: true});
	} else {
		arm();
	}
})();`

// settleProbeJS reads the instrumentation state: milliseconds since the last
// mutation and the document ready state. Null means the instrumentation is
// not present in the current document.
const settleProbeJS = `(() => {
	const state = window.__stagehand_settle__;
	if (!state) return null;
	return {since: Date.now() - state.last, ready: document.readyState};
})()`

type settleProbe struct {
	Since float64 `json:"since"`
	Ready string  `json:"ready"`
}

// consecutiveProbeLimit is how many failed or instrumentation-less probes in
// a row the wait tolerates. A couple are normal while a document is being
// replaced mid-navigation; a persistent run means the wait cannot conclude.
const consecutiveProbeLimit = 5

// pollInterval derives the probe cadence from the quiet window, clamped so
// short windows still sample meaningfully and long ones do not overshoot.
func pollInterval(quiet time.Duration) time.Duration {
	interval := quiet / 4
	if interval < 25*time.Millisecond {
		interval = 25 * time.Millisecond
	}
	if interval > 250*time.Millisecond {
		interval = 250 * time.Millisecond
	}
	return interval
}

// WaitForSettle blocks until the document has been mutation-free for the
// configured quiet window and is past the loading state, or until the settle
// timeout expires. Callers decide whether a failure matters; completing an
// action on a page that never goes fully quiet is normal.
func (p *Page) WaitForSettle(ctx context.Context) error {
	quiet := p.cfg.Settle.Quiet
	timeout := p.cfg.Settle.Timeout

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	interval := pollInterval(quiet)
	var failures, missing int

	for {
		var probe *settleProbe
		err := p.run(waitCtx, chromedp.Evaluate(settleProbeJS, &probe))

		switch {
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil && waitCtx.Err() != nil:
			return fmt.Errorf("%w: document still busy after %s", schemas.ErrSettleTimeout, timeout)
		case err != nil:
			// Transient while the document is being swapped out under us.
			failures++
			missing = 0
			if failures >= consecutiveProbeLimit {
				return fmt.Errorf("%w: %v", schemas.ErrSettleInterrupted, err)
			}
		case probe == nil:
			failures = 0
			missing++
			if missing >= consecutiveProbeLimit {
				return fmt.Errorf("%w: no mutation observer in document", schemas.ErrSettleInstrumentation)
			}
		default:
			failures, missing = 0, 0
			if probe.Ready != "loading" && time.Duration(probe.Since)*time.Millisecond >= quiet {
				return nil
			}
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: document still busy after %s", schemas.ErrSettleTimeout, timeout)
		case <-time.After(interval):
		}
	}
}
