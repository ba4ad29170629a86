// Package engine turns free-text instructions into concrete interactions
// against a live document. Resolutions come from a reasoning oracle and are
// keyed by the exact instruction text: observation resolutions persist across
// runs, action resolutions are executed but never written back.
//
// Cached locators are revalidated for existence only. A locator that still
// matches something in the current document is trusted even when the page has
// shifted meaning underneath it; closing that staleness gap is left to a
// future invalidation design.
package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/MaTriXy/stagehand/api/schemas"
	"github.com/MaTriXy/stagehand/internal/cache"
)

// Engine is the action resolver: it owns the cache-hit/cache-miss control
// flow for observations and actions. It holds no locks and spawns no
// goroutines; callers issue calls sequentially per document, and every
// deadline belongs to a collaborator, never to the engine itself.
type Engine struct {
	cache     *cache.Cache
	snapshots schemas.SnapshotProvider
	oracle    schemas.ReasoningOracle
	driver    schemas.DocumentDriver
	sessionID string
	logger    *zap.Logger
}

// New wires the engine to its collaborators. The session identifier tags
// every cache write made on behalf of this engine; it is metadata only and
// never participates in key derivation.
func New(c *cache.Cache, snapshots schemas.SnapshotProvider, oracle schemas.ReasoningOracle, driver schemas.DocumentDriver, sessionID string, logger *zap.Logger) *Engine {
	return &Engine{
		cache:     c,
		snapshots: snapshots,
		oracle:    oracle,
		driver:    driver,
		sessionID: sessionID,
		logger:    logger.Named("engine").With(zap.String("session_id", sessionID)),
	}
}

// Observe resolves the instruction to a cached locator key. The returned bool
// reports whether a resolution exists: an oracle not-found is a normal
// ("", false, nil) outcome, not an error.
//
// On a hit the stored locator is verified to match at least one attached
// element before the key is returned; the oracle is not consulted. On a miss
// the oracle names an element in a fresh snapshot, the resolved locator is
// verified live, and only then is the entry persisted. A verification failure
// is a hard error that leaves the cache untouched.
func (e *Engine) Observe(ctx context.Context, instruction string) (schemas.CacheKey, bool, error) {
	key := cache.DeriveKey(instruction)
	log := e.logger.With(zap.String("key", string(key)[:8]))

	if entry, ok := e.cache.Lookup(schemas.NamespaceObservations, key); ok {
		log.Debug("observation cache hit", zap.String("locator", entry.Result))
		n, err := e.driver.CountMatches(ctx, entry.Result)
		if err != nil {
			return "", false, fmt.Errorf("verify cached locator: %w", err)
		}
		if n < 1 {
			return "", false, fmt.Errorf("%w: cached locator %q", schemas.ErrTargetUnattached, entry.Result)
		}
		e.settle(ctx, log, "observe")
		return key, true, nil
	}

	log.Debug("observation cache miss, consulting oracle")
	snap, err := e.snapshots.Snapshot(ctx)
	if err != nil {
		return "", false, fmt.Errorf("snapshot document: %w", err)
	}
	elementID, found, err := e.oracle.ResolveLocator(ctx, instruction, snap.Text)
	if err != nil {
		return "", false, fmt.Errorf("resolve locator: %w", err)
	}
	if !found {
		log.Debug("oracle found no matching element")
		e.settle(ctx, log, "observe")
		return "", false, nil
	}
	locator, ok := snap.Selectors[elementID]
	if !ok {
		return "", false, fmt.Errorf("%w: element %d", schemas.ErrUnknownElement, elementID)
	}
	n, err := e.driver.CountMatches(ctx, locator)
	if err != nil {
		return "", false, fmt.Errorf("verify resolved locator: %w", err)
	}
	if n < 1 {
		return "", false, fmt.Errorf("%w: resolved locator %q", schemas.ErrTargetUnattached, locator)
	}

	entry := schemas.CacheEntry{Result: locator, SessionID: e.sessionID}
	if err := e.cache.Write(ctx, schemas.NamespaceObservations, key, entry); err != nil {
		return "", false, err
	}
	log.Debug("observation resolved",
		zap.Int("element_id", elementID),
		zap.String("locator", locator),
	)
	e.settle(ctx, log, "observe")
	return key, true, nil
}

// Act resolves the instruction to an ordered command sequence and executes it
// against the current document.
//
// On a hit the stored sequence is decoded (single command or list, both
// accepted) and replayed as-is; a stored command still targeting a numeric
// element id is a hard error, because ids mean nothing outside the snapshot
// that minted them. On a miss the oracle plans a fresh sequence against a
// fresh snapshot, every numeric target is translated through that snapshot's
// selector map before anything executes, and the sequence then runs in order.
// Fresh resolutions are never persisted, so an exact repeat of a missed
// instruction consults the oracle again.
func (e *Engine) Act(ctx context.Context, instruction string) error {
	key := cache.DeriveKey(instruction)
	log := e.logger.With(zap.String("key", string(key)[:8]))

	if entry, ok := e.cache.Lookup(schemas.NamespaceActions, key); ok {
		cmds, err := schemas.ParseCommandList([]byte(entry.Result))
		if err != nil {
			return fmt.Errorf("decode cached action sequence: %w", err)
		}
		for i, cmd := range cmds {
			if id, isID := cmd.Target.ElementID(); isID {
				return fmt.Errorf("%w: cached command %d targets snapshot element %d", schemas.ErrInvalidCommand, i, id)
			}
		}
		log.Debug("action cache hit", zap.Int("commands", len(cmds)))
		if err := e.execute(ctx, cmds); err != nil {
			return err
		}
		e.settle(ctx, log, "act")
		return nil
	}

	log.Debug("action cache miss, consulting oracle")
	snap, err := e.snapshots.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot document: %w", err)
	}
	cmds, err := e.oracle.ResolveActions(ctx, instruction, snap.Text)
	if err != nil {
		return fmt.Errorf("resolve actions: %w", err)
	}
	for i := range cmds {
		if id, isID := cmds[i].Target.ElementID(); isID {
			locator, ok := snap.Selectors[id]
			if !ok {
				return fmt.Errorf("%w: command %d targets element %d", schemas.ErrUnknownElement, i, id)
			}
			cmds[i].Target = schemas.TargetForLocator(locator)
		}
	}
	log.Debug("actions resolved", zap.Int("commands", len(cmds)))
	if err := e.execute(ctx, cmds); err != nil {
		return err
	}
	e.settle(ctx, log, "act")
	return nil
}

// Extract asks the oracle to pull instruction-described data out of a fresh
// snapshot. Extractions are read-only and never cached; the payload passes
// through as raw JSON without interpretation.
func (e *Engine) Extract(ctx context.Context, instruction string) (json.RawMessage, error) {
	snap, err := e.snapshots.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot document: %w", err)
	}
	data, err := e.oracle.Extract(ctx, instruction, snap.Text)
	if err != nil {
		return nil, fmt.Errorf("extract data: %w", err)
	}
	return data, nil
}

// execute applies the sequence in order, stopping at the first failure. All
// targets have been resolved to locators before this runs.
func (e *Engine) execute(ctx context.Context, cmds []schemas.Command) error {
	for i, cmd := range cmds {
		if err := e.driver.Execute(ctx, cmd); err != nil {
			return fmt.Errorf("execute command %d of %d: %w", i+1, len(cmds), err)
		}
	}
	return nil
}

// settle waits for document quiescence at the end of a resolution call: a
// postcondition of this call and a precondition of the next. Settle failures
// are surfaced as structured warnings with a stable reason code and never
// fail the resolution.
func (e *Engine) settle(ctx context.Context, log *zap.Logger, operation string) {
	if err := e.driver.WaitForSettle(ctx); err != nil {
		log.Warn("document did not settle",
			zap.String("operation", operation),
			zap.String("reason", schemas.SettleReason(err)),
			zap.Error(err),
		)
	}
}
