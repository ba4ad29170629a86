package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MaTriXy/stagehand/internal/cache"
	"github.com/MaTriXy/stagehand/internal/config"
	"github.com/MaTriXy/stagehand/internal/observability"
	"github.com/MaTriXy/stagehand/internal/oracle"
	"github.com/MaTriXy/stagehand/pkg/browser"
	"github.com/MaTriXy/stagehand/pkg/engine"
)

// shutdownGrace bounds component teardown once a session ends.
const shutdownGrace = 15 * time.Second

// sessionComponents holds everything one resolution session needs: the cache,
// the oracle, the browser with one open page, and the engine wired over them.
type sessionComponents struct {
	Cache   *cache.Cache
	Oracle  *oracle.Oracle
	Manager *browser.Manager
	Page    *browser.Page
	Engine  *engine.Engine

	logger *zap.Logger
}

// newSession assembles the components in dependency order. On failure the
// partially built set is returned alongside the error so the caller can shut
// down whatever already came up.
func newSession(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*sessionComponents, error) {
	components := &sessionComponents{logger: logger}

	c, err := cache.Open(ctx, cfg.Cache, logger)
	if err != nil {
		return components, fmt.Errorf("open cache: %w", err)
	}
	components.Cache = c

	orc, err := oracle.Open(ctx, cfg.Oracle, logger)
	if err != nil {
		return components, fmt.Errorf("open oracle: %w", err)
	}
	components.Oracle = orc

	manager, err := browser.NewManager(ctx, cfg.Browser, logger)
	if err != nil {
		return components, fmt.Errorf("launch browser: %w", err)
	}
	components.Manager = manager

	page, err := manager.NewPage(ctx)
	if err != nil {
		return components, fmt.Errorf("open page: %w", err)
	}
	components.Page = page

	components.Engine = engine.New(c, page, orc, page, page.ID(), logger)
	return components, nil
}

// runInstruction brings up a session, points it at pageURL, and hands the
// ready engine to fn. Teardown happens on every path.
func runInstruction(cmd *cobra.Command, pageURL string, noCache bool, fn func(ctx context.Context, eng *engine.Engine) error) error {
	ctx := cmd.Context()
	logger := observability.GetLogger()

	cfg, err := sessionConfig(cmd)
	if err != nil {
		return err
	}
	if noCache {
		cfg.Cache.Enabled = false
	}

	session, err := newSession(ctx, &cfg, logger)
	if err != nil {
		session.Shutdown()
		return fmt.Errorf("initialize session: %w", err)
	}
	defer session.Shutdown()

	if err := session.Page.Navigate(ctx, pageURL); err != nil {
		return err
	}
	return fn(ctx, session.Engine)
}

// Shutdown tears the session down in reverse order. A fresh background
// context bounds the work so teardown still completes after Ctrl+C.
func (sc *sessionComponents) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if sc.Page != nil {
		if err := sc.Page.Close(); err != nil {
			sc.logger.Warn("page close failed", zap.Error(err))
		}
	}
	if sc.Manager != nil {
		if err := sc.Manager.Shutdown(ctx); err != nil {
			sc.logger.Warn("browser shutdown failed", zap.Error(err))
		}
	}
	if sc.Oracle != nil {
		if err := sc.Oracle.Close(); err != nil {
			sc.logger.Warn("oracle close failed", zap.Error(err))
		}
	}
	if sc.Cache != nil {
		if err := sc.Cache.Close(); err != nil {
			sc.logger.Warn("cache close failed", zap.Error(err))
		}
	}
}
