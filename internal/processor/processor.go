// Package processor drains the operation queue against the remote note
// service: bounded-concurrency dispatch with per-entity serialization, id
// resolution through the mapping registry, and classification-driven retry
// with exponential backoff.
package processor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mesh-intelligence/satchel/internal/queue"
	"github.com/mesh-intelligence/satchel/internal/registry"
	"github.com/mesh-intelligence/satchel/pkg/types"
)

// Processor executes queued operations. One cycle runs until the queue has
// no dispatchable work; callers re-run cycles on a timer or when the network
// comes back.
type Processor struct {
	queue    *queue.Queue
	registry *registry.Registry
	client   types.RemoteClient
	cfg      types.Config
	clock    types.Clock
	notify   types.Notifier
	logger   *slog.Logger
	handlers map[string]Handler
}

// New creates a processor. A nil clock uses wall time, a nil logger uses the
// default slog logger, and a nil notifier discards events.
func New(q *queue.Queue, reg *registry.Registry, client types.RemoteClient,
	cfg types.Config, clock types.Clock, notify types.Notifier, logger *slog.Logger) *Processor {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		queue:    q,
		registry: reg,
		client:   client,
		cfg:      cfg.WithDefaults(),
		clock:    clock,
		notify:   notify,
		logger:   logger,
		handlers: defaultHandlers(),
	}
}

// RunCycle repeatedly dequeues ready operations and dispatches them until no
// work remains or the context is cancelled. Cancellation is observed between
// operations, never mid-operation: an in-flight remote call always completes
// or times out before the cycle returns.
func (p *Processor) RunCycle(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := p.queue.DequeueReady(p.cfg.MaxConcurrency)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		if p.dispatchBatch(ctx, batch) == 0 {
			// Every row was skipped or lost its claim; nothing would make
			// progress by retrying immediately.
			return nil
		}
	}
}

// dispatchBatch runs one batch of operations in parallel, at most one per
// entity. Returns the number of operations dispatched. Entities are keyed by
// resolved id so a row still carrying a temporary id can never run alongside
// one carrying the real id for the same entity.
func (p *Processor) dispatchBatch(ctx context.Context, batch []types.Operation) int {
	claimed := make(map[string]bool, len(batch))
	var wg sync.WaitGroup
	dispatched := 0

	for _, op := range batch {
		key := op.Family() + "/" + p.registry.Resolve(op.EntityID)
		if claimed[key] {
			continue
		}
		claimed[key] = true

		if err := p.queue.MarkProcessing(op); err != nil {
			// Lost the claim to a concurrent cycle; the row is not ours.
			p.logger.Debug("skipping operation, claim lost",
				slog.String("operation", op.ID), slog.String("err", err.Error()))
			continue
		}

		dispatched++
		wg.Add(1)
		go func(op types.Operation) {
			defer wg.Done()
			p.process(ctx, op)
		}(op)
	}

	wg.Wait()
	return dispatched
}

// process executes one claimed operation end to end.
func (p *Processor) process(ctx context.Context, op types.Operation) {
	resolved, err := p.resolveIDs(op)
	if err != nil {
		p.fail(op, err)
		return
	}

	handler, ok := p.handlers[resolved.Family()]
	if !ok {
		p.fail(op, &types.APIError{Class: types.ClassValidationError,
			Message: "no handler for kind " + resolved.Kind})
		return
	}

	p.logger.Debug("dispatching operation",
		slog.String("operation", op.ID),
		slog.String("kind", op.Kind),
		slog.String("entity", resolved.EntityID))

	result, err := handler.Execute(ctx, resolved, p.client)
	if err != nil {
		p.fail(op, err)
		return
	}

	// Register the id mapping before completing the row, so an operation
	// enqueued while this create was in flight is rewritten before it can
	// ever be dispatched.
	if resolved.IsCreate() && result.AssignedID != "" && result.AssignedID != resolved.EntityID {
		rewritten, err := p.registry.RegisterAndRewrite(op.EntityID, result.AssignedID)
		if err != nil {
			p.logger.Error("registering id mapping failed",
				slog.String("temp", op.EntityID),
				slog.String("real", result.AssignedID),
				slog.String("err", err.Error()))
		} else if rewritten > 0 {
			p.logger.Debug("rewrote queued operations",
				slog.String("temp", op.EntityID),
				slog.Int("rows", rewritten))
		}
	}

	if err := p.queue.MarkCompleted(op.ID); err != nil {
		p.logger.Error("completing operation failed",
			slog.String("operation", op.ID), slog.String("err", err.Error()))
		return
	}

	p.notify.Emit(types.Event{
		Kind:        types.EventOperationCompleted,
		At:          p.clock.Now(),
		OperationID: op.ID,
		EntityID:    resolved.EntityID,
	})
}

// fail records a failed dispatch: silently dropped, rescheduled with
// backoff, or surfaced as terminal, depending on classification.
func (p *Processor) fail(op types.Operation, cause error) {
	if types.DroppedSilently(cause) {
		// The entity is already gone server-side; there is nothing to retry
		// and nothing for the operator to act on.
		if err := p.queue.MarkCompleted(op.ID); err != nil {
			p.logger.Error("dropping operation failed",
				slog.String("operation", op.ID), slog.String("err", err.Error()))
		}
		return
	}

	attempt := op.RetryCount + 1
	terminal := !types.Retryable(cause) || attempt > p.cfg.MaxRetry

	var nextRetryAt time.Time
	if !terminal {
		nextRetryAt = p.clock.Now().Add(backoffDelay(p.cfg.BaseRetryDelay, attempt))
	}

	if err := p.queue.MarkFailed(op, cause.Error(), nextRetryAt); err != nil {
		p.logger.Error("recording failure failed",
			slog.String("operation", op.ID), slog.String("err", err.Error()))
		return
	}

	p.logger.Warn("operation failed",
		slog.String("operation", op.ID),
		slog.String("kind", op.Kind),
		slog.Int("attempt", attempt),
		slog.Bool("terminal", terminal),
		slog.String("err", cause.Error()))

	p.notify.Emit(types.Event{
		Kind:        types.EventOperationFailed,
		At:          p.clock.Now(),
		OperationID: op.ID,
		EntityID:    op.EntityID,
		Error:       cause.Error(),
	})
}

// resolveIDs returns a copy of the operation with its entity id and any
// embedded foreign ids replaced through the registry.
func (p *Processor) resolveIDs(op types.Operation) (types.Operation, error) {
	op.EntityID = p.registry.Resolve(op.EntityID)
	payload, err := resolvePayloadRefs(op.Payload, p.registry.Resolve)
	if err != nil {
		return op, err
	}
	op.Payload = payload
	return op, nil
}

// backoffDelay returns base * 2^(attempt-1): base, 2*base, 4*base, ...
func backoffDelay(base time.Duration, attempt int) time.Duration {
	return base << (attempt - 1)
}
