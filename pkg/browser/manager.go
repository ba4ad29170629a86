// Package browser owns the headless Chrome process and the pages opened in
// it. A Page is one isolated tab: it produces numbered snapshots of the
// document's interactive surface, executes resolved interaction commands
// against the live DOM, and waits for the document to settle afterwards.
package browser

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/MaTriXy/stagehand/internal/config"
)

// startupProbeTimeout bounds the initial about:blank navigation that proves
// the browser process actually came up.
const startupProbeTimeout = 30 * time.Second

// Manager launches and owns a single browser process. Pages share its
// allocator; the manager tracks them so Shutdown can wait for in-flight work
// before tearing the process down.
type Manager struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc

	wg sync.WaitGroup
}

// NewManager starts the browser process and verifies it responds. The given
// context scopes the process lifetime: cancelling it kills the browser.
func NewManager(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Manager, error) {
	m := &Manager{
		logger: logger.Named("browser"),
		cfg:    cfg,
	}

	m.allocatorCtx, m.allocatorCancel = chromedp.NewExecAllocator(ctx, allocatorOptions(cfg)...)

	// Probe with a throwaway tab. NewExecAllocator is lazy; without this the
	// first real navigation would be the one to discover a broken install.
	probeCtx, cancelProbe := context.WithTimeout(m.allocatorCtx, startupProbeTimeout)
	defer cancelProbe()
	tabCtx, cancelTab := chromedp.NewContext(probeCtx)
	defer cancelTab()

	if err := chromedp.Run(tabCtx, chromedp.Navigate("about:blank")); err != nil {
		m.allocatorCancel()
		return nil, fmt.Errorf("browser failed to start: %w", err)
	}

	m.logger.Info("browser launched",
		zap.Bool("headless", cfg.Headless),
		zap.Int("window_width", cfg.WindowWidth),
		zap.Int("window_height", cfg.WindowHeight),
	)
	return m, nil
}

// allocatorOptions translates the browser configuration into Chrome launch
// flags. The chromedp defaults already disable most background noise; the
// additions here keep pages deterministic and hide the automation banner
// that shifts layout on some sites.
func allocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("mute-audio", true),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)

	if cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromePath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	if runtime.GOOS == "linux" {
		// Containers usually lack a usable sandbox and mount /dev/shm too
		// small for a renderer.
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-setuid-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
	}
	return opts
}

// NewPage opens a fresh tab and prepares it for use: settle instrumentation
// is installed so every future document in the tab reports mutation activity.
func (m *Manager) NewPage(ctx context.Context) (*Page, error) {
	if m.allocatorCtx.Err() != nil {
		return nil, fmt.Errorf("browser is shut down: %w", m.allocatorCtx.Err())
	}

	tabCtx, cancelTab := chromedp.NewContext(m.allocatorCtx)

	m.wg.Add(1)
	p := newPage(tabCtx, cancelTab, m.cfg, m.logger, m.wg.Done)

	if err := p.init(ctx); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("initialize page: %w", err)
	}

	m.logger.Debug("page opened", zap.String("page_id", p.ID()))
	return p, nil
}

// Shutdown waits for open pages to close, then terminates the browser
// process. It returns once the process is gone or the context expires.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("shutting down browser")

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("shutdown proceeding with pages still open", zap.Error(ctx.Err()))
	}

	m.allocatorCancel()

	select {
	case <-m.allocatorCtx.Done():
	case <-ctx.Done():
		return fmt.Errorf("browser did not terminate: %w", ctx.Err())
	}

	m.logger.Info("browser terminated")
	return nil
}
