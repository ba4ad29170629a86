package browser

import "context"

// combineContext derives a context that carries the values of primary but is
// cancelled as soon as either primary or secondary is done. chromedp stores
// its session handles in context values, so CDP calls must run on a context
// descended from the tab's; this lets a caller's deadline cut those calls
// short without owning the tab.
func combineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)

	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-combined.Done():
			// Released by the caller's cancel or by primary ending.
		}
	}()

	return combined, cancel
}
