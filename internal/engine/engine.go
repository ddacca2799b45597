// Package engine implements the sync engine: full and incremental
// reconciliation of the local replica against the remote note service,
// coordinated with the operation queue so pending local writes are not
// clobbered by incoming reads.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/satchel/internal/processor"
	"github.com/mesh-intelligence/satchel/internal/queue"
	"github.com/mesh-intelligence/satchel/pkg/types"
)

// State is the engine's current activity, visible to the status surface.
type State string

const (
	StateIdle               State = "idle"
	StateFullSyncing        State = "full_syncing"
	StateIncrementalSyncing State = "incremental_syncing"
)

// Engine reconciles the local replica with the remote service. At most one
// sync pass runs at a time; a pass started while another is in flight fails
// with ErrSyncInProgress. The engine never retries internally: callers
// re-trigger on a timer, on demand, or when the network comes back.
type Engine struct {
	store  types.Store
	queue  *queue.Queue
	proc   *processor.Processor
	client types.RemoteClient
	cfg    types.Config
	clock  types.Clock
	notify types.Notifier
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	trigger chan syncRequest
}

type syncRequest struct {
	full bool
}

// New creates an engine. A nil clock uses wall time, a nil logger uses the
// default slog logger, and a nil notifier discards events.
func New(store types.Store, q *queue.Queue, proc *processor.Processor,
	client types.RemoteClient, cfg types.Config, clock types.Clock,
	notify types.Notifier, logger *slog.Logger) *Engine {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:   store,
		queue:   q,
		proc:    proc,
		client:  client,
		cfg:     cfg.WithDefaults(),
		clock:   clock,
		notify:  notify,
		logger:  logger,
		state:   StateIdle,
		trigger: make(chan syncRequest, 1),
	}
}

// State returns the engine's current activity.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// begin claims the engine for one pass, or fails with ErrSyncInProgress.
func (e *Engine) begin(s State) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateIdle {
		return types.ErrSyncInProgress
	}
	e.state = s
	return nil
}

func (e *Engine) end() {
	e.mu.Lock()
	e.state = StateIdle
	e.mu.Unlock()
}

// Run drives the engine until the context is cancelled: incremental passes on
// a timer plus whatever TriggerSync and NetworkRestored request.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.runPass(ctx, false)
		case req := <-e.trigger:
			e.runPass(ctx, req.full)
		}
	}
}

// TriggerSync requests an on-demand pass from the Run loop. Non-blocking; a
// request is dropped if one is already waiting.
func (e *Engine) TriggerSync(full bool) {
	select {
	case e.trigger <- syncRequest{full: full}:
	default:
	}
}

// NetworkRestored requests an incremental pass, which flushes the queued
// offline writes once the pull completes.
func (e *Engine) NetworkRestored() {
	e.TriggerSync(false)
}

// runPass executes one pass and logs the outcome; Run itself never fails on a
// sync error.
func (e *Engine) runPass(ctx context.Context, full bool) {
	var err error
	if full {
		err = e.FullSync(ctx)
	} else {
		err = e.IncrementalSync(ctx)
	}
	if err != nil {
		if !errors.Is(err, types.ErrSyncInProgress) {
			e.logger.Error("sync pass failed",
				slog.Bool("full", full), slog.String("err", err.Error()))
		}
		return
	}

	if !full {
		// A full sync drains up front; an incremental pass delivers the
		// queued offline writes after the pull, so the local edit lands on
		// top of the pulled version.
		if err := e.proc.RunCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Error("post-sync queue flush failed", slog.String("err", err.Error()))
		}
	}
}

// FullSync drains the queue (bounded by DrainTimeout), fetches the complete
// remote entity set, replaces the local replica wholesale, and resets the
// cursor to a fresh sync tag. A failure mid-fetch leaves the previous replica
// untouched. Rows the drain could not deliver stay queued and are delivered
// by later processor cycles.
func (e *Engine) FullSync(ctx context.Context) error {
	if err := e.begin(StateFullSyncing); err != nil {
		return err
	}
	defer e.end()

	e.emitStarted(true)

	if err := e.drainQueue(ctx); err != nil {
		if !errors.Is(err, types.ErrDrainTimeout) {
			e.emitFinished(true, err)
			return err
		}
		e.logger.Warn("queue not fully drained before full sync, proceeding")
	}

	entities, err := e.client.FetchAll(ctx)
	if err != nil {
		e.emitFinished(true, err)
		return fmt.Errorf("fetching remote entity set: %w", err)
	}

	if err := e.store.ReplaceAll(entities); err != nil {
		e.emitFinished(true, err)
		return fmt.Errorf("replacing replica: %w", err)
	}

	now := e.clock.Now()
	cursor := types.SyncCursor{
		LastSyncAt:     now,
		SyncTag:        newSyncTag(),
		LastFullSyncAt: now,
	}
	if err := e.store.PutCursor(cursor); err != nil {
		e.emitFinished(true, err)
		return fmt.Errorf("saving cursor: %w", err)
	}

	e.logger.Info("full sync finished", slog.Int("entities", len(entities)))
	e.emitFinished(true, nil)
	return nil
}

// IncrementalSync pulls remote changes since the cursor's sync tag, resolves
// per-entity conflicts by last writer wins (remote preferred on an exact
// tie), applies deletions, and advances the cursor only on success. Queued
// local writes survive the pull untouched: they are delivered by processor
// cycles after the pass, so the local edit lands after the pulled version.
func (e *Engine) IncrementalSync(ctx context.Context) error {
	if err := e.begin(StateIncrementalSyncing); err != nil {
		return err
	}
	defer e.end()

	e.emitStarted(false)

	cursor, err := e.store.GetCursor()
	if err != nil {
		e.emitFinished(false, err)
		return fmt.Errorf("loading cursor: %w", err)
	}

	changes, err := e.client.FetchChanges(ctx, cursor.SyncTag)
	if err != nil {
		// The cursor stays put, so the next attempt retries the same window.
		e.emitFinished(false, err)
		return fmt.Errorf("fetching changes since %q: %w", cursor.SyncTag, err)
	}

	applied := 0
	for _, remote := range changes.Entities {
		keep, err := e.keepRemote(remote)
		if err != nil {
			e.emitFinished(false, err)
			return err
		}
		if !keep {
			continue
		}
		if err := e.store.UpsertEntity(remote); err != nil {
			e.emitFinished(false, err)
			return fmt.Errorf("applying change to %s: %w", remote.ID, err)
		}
		applied++
	}

	for _, id := range changes.Deleted {
		if err := e.store.DeleteEntity(id); err != nil {
			e.emitFinished(false, err)
			return fmt.Errorf("applying deletion of %s: %w", id, err)
		}
	}

	cursor.SyncTag = changes.SyncTag
	cursor.LastSyncAt = e.clock.Now()
	if err := e.store.PutCursor(cursor); err != nil {
		e.emitFinished(false, err)
		return fmt.Errorf("saving cursor: %w", err)
	}

	e.logger.Info("incremental sync finished",
		slog.Int("applied", applied),
		slog.Int("deleted", len(changes.Deleted)))
	e.emitFinished(false, nil)
	return nil
}

// keepRemote decides whether a pulled entity replaces the local version: the
// later modification timestamp wins, and an exact tie prefers remote, the
// durable source of truth.
func (e *Engine) keepRemote(remote types.Entity) (bool, error) {
	local, err := e.store.GetEntity(remote.ID)
	if errors.Is(err, types.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading local %s: %w", remote.ID, err)
	}
	return !remote.UpdatedAt.Before(local.UpdatedAt), nil
}

// drainQueue runs processor cycles until the queue is empty, the drain
// timeout expires, or no progress is being made (rows held by backoff or
// terminal failure). ErrDrainTimeout is informational: the caller proceeds
// and the remaining rows stay queued.
func (e *Engine) drainQueue(ctx context.Context) error {
	dctx, cancel := context.WithTimeout(ctx, e.cfg.DrainTimeout)
	defer cancel()

	for {
		depth, err := e.queue.Depth()
		if err != nil {
			return err
		}
		if depth == 0 {
			return nil
		}

		if err := e.proc.RunCycle(dctx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return types.ErrDrainTimeout
			}
			return err
		}

		remaining, err := e.queue.Depth()
		if err != nil {
			return err
		}
		if remaining >= depth {
			// The cycle delivered nothing; waiting out backoff timers inside
			// a sync pass is not worth blocking the pull.
			return types.ErrDrainTimeout
		}
	}
}

func (e *Engine) emitStarted(full bool) {
	e.notify.Emit(types.Event{
		Kind: types.EventSyncStarted,
		At:   e.clock.Now(),
		Full: full,
	})
}

func (e *Engine) emitFinished(full bool, cause error) {
	ev := types.Event{
		Kind: types.EventSyncFinished,
		At:   e.clock.Now(),
		Full: full,
	}
	if cause != nil {
		ev.Error = cause.Error()
	}
	e.notify.Emit(ev)
}

// newSyncTag returns a fresh opaque sync tag.
func newSyncTag() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
