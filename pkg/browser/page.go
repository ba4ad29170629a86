package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MaTriXy/stagehand/api/schemas"
	"github.com/MaTriXy/stagehand/internal/browser/dom"
	"github.com/MaTriXy/stagehand/internal/config"
)

// maskAutomationJS hides the most common automation tell. Sites that gate on
// navigator.webdriver would otherwise serve a different document than the one
// a user sees, and the snapshot would describe the wrong page.
const maskAutomationJS = `(() => {
	if (navigator.webdriver) {
		Object.defineProperty(Object.getPrototypeOf(navigator), 'webdriver', {
			get: () => undefined,
			configurable: true,
		});
	}
})();`

// Page is one browser tab. It produces snapshots of the document's
// interactive surface and executes resolved commands against the live DOM.
// Methods are safe to call from one goroutine at a time; a Page is not a
// concurrent structure.
type Page struct {
	id     string
	logger *zap.Logger
	cfg    config.BrowserConfig

	ctx    context.Context
	cancel context.CancelFunc

	onClose func()

	mu     sync.Mutex
	closed bool
}

var (
	_ schemas.SnapshotProvider = (*Page)(nil)
	_ schemas.DocumentDriver   = (*Page)(nil)
)

func newPage(tabCtx context.Context, cancel context.CancelFunc, cfg config.BrowserConfig, logger *zap.Logger, onClose func()) *Page {
	id := uuid.New().String()
	return &Page{
		id:      id,
		logger:  logger.Named("page").With(zap.String("page_id", id[:8])),
		cfg:     cfg,
		ctx:     tabCtx,
		cancel:  cancel,
		onClose: onClose,
	}
}

// init installs the scripts every document in this tab needs: the automation
// mask and the settle instrumentation. Installation covers future documents;
// the extra Evaluate arms the current one.
func (p *Page) init(ctx context.Context) error {
	for _, script := range []string{maskAutomationJS, settleInstrumentationJS} {
		script := script
		err := p.run(ctx,
			chromedp.ActionFunc(func(ctx context.Context) error {
				_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
				return err
			}),
			chromedp.Evaluate(script, nil),
		)
		if err != nil {
			return fmt.Errorf("install page scripts: %w", err)
		}
	}
	return nil
}

// ID returns the page's stable identifier, suitable as a session id.
func (p *Page) ID() string {
	return p.id
}

// run executes chromedp actions on the tab while honoring the caller's
// context. The tab context carries the CDP session; the caller's context
// carries the deadline.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := combineContext(p.ctx, ctx)
	defer cancel()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if p.ctx.Err() != nil {
			return fmt.Errorf("page is closed: %w", p.ctx.Err())
		}
		return err
	}
	return nil
}

// Navigate loads the URL and waits for the document to render and settle.
// A failed settle wait is logged and swallowed: the page is usable, just
// still busy.
func (p *Page) Navigate(ctx context.Context, url string) error {
	p.logger.Debug("navigating", zap.String("url", url))

	navCtx, cancel := context.WithTimeout(ctx, p.cfg.NavTimeout)
	defer cancel()

	err := p.run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}

	if err := p.WaitForSettle(ctx); err != nil {
		p.logger.Warn("page did not settle after navigation",
			zap.String("reason", schemas.SettleReason(err)),
			zap.Error(err),
		)
	}
	return nil
}

// Snapshot reads the current document and enumerates its interactive
// elements. The returned selector map is only meaningful against the
// document as it stands right now.
func (p *Page) Snapshot(ctx context.Context) (*schemas.Snapshot, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	doc, err := dom.Parse(html)
	if err != nil {
		return nil, err
	}

	analysis := dom.Analyze(doc, p.cfg.SnapshotLimit)
	snapshot := analysis.Snapshot()

	p.logger.Debug("snapshot built",
		zap.Int("elements", len(analysis.Elements)),
		zap.Int("omitted", analysis.Omitted),
		zap.Int("unresolvable", analysis.Unresolvable),
		zap.String("digest", dom.Digest(snapshot.Text)),
	)
	return snapshot, nil
}

// Close shuts the tab down. It is safe to call more than once.
func (p *Page) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	err := chromedp.Cancel(p.ctx)
	p.cancel()
	p.onClose()

	if err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Debug("tab close reported error", zap.Error(err))
	}
	p.logger.Debug("page closed")
	return nil
}
