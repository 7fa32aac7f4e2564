package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	dErrors "trustscore/pkg/domain-errors"
	"trustscore/pkg/platform/tx"
	"trustscore/pkg/requestcontext"
)

// Appender persists entries. Implementations must join the transaction carried
// by ctx.
type Appender interface {
	Append(ctx context.Context, entry *Entry) error
}

// Writer is the only path by which audited entities are mutated: the entity
// write and its entry commit together or not at all.
type Writer struct {
	runner tx.Runner
	store  Appender
	tracer trace.Tracer
	logger *slog.Logger
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

func WithWriterLogger(logger *slog.Logger) WriterOption {
	return func(w *Writer) {
		w.logger = logger
	}
}

func WithTracer(tracer trace.Tracer) WriterOption {
	return func(w *Writer) {
		w.tracer = tracer
	}
}

func NewWriter(runner tx.Runner, store Appender, opts ...WriterOption) *Writer {
	w := &Writer{
		runner: runner,
		store:  store,
		tracer: otel.Tracer("trustscore/audit"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Execute runs mutate and then build inside one transaction, persists the entry
// build returns, and commits. On any failure nothing is committed and the
// zero T is returned. Errors already classified by mutate or build keep their
// code; anything else surfaces as CodePersistenceFailure.
func Execute[T any](
	ctx context.Context,
	w *Writer,
	mutate func(ctx context.Context) (T, error),
	build func(result T) (*Entry, error),
) (T, *Entry, error) {
	ctx, span := w.tracer.Start(ctx, "audit.Execute")
	defer span.End()

	var (
		result T
		entry  *Entry
	)
	err := w.runner.RunInTx(ctx, func(txCtx context.Context) error {
		r, err := mutate(txCtx)
		if err != nil {
			return err
		}
		e, err := build(r)
		if err != nil {
			return err
		}
		if err := stamp(txCtx, e); err != nil {
			return err
		}
		span.SetAttributes(
			attribute.String("audit.entity_type", e.EntityType),
			attribute.String("audit.entity_id", e.EntityID),
			attribute.String("audit.action", string(e.Action)),
		)
		if err := w.store.Append(txCtx, e); err != nil {
			return fmt.Errorf("append audit entry: %w", err)
		}
		result, entry = r, e
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transaction aborted")
		var zero T
		return zero, nil, classify(err)
	}

	if w.logger != nil {
		w.logger.InfoContext(ctx, "audit entry committed",
			"log_type", "audit",
			"audit_id", entry.ID.String(),
			"entity_type", entry.EntityType,
			"entity_id", entry.EntityID,
			"action", string(entry.Action),
			"actor_id", entry.Actor.ID,
			"request_id", entry.RequestID,
		)
	}
	return result, entry, nil
}

// stamp fills identity, actor, and time, and rejects malformed entries.
func stamp(ctx context.Context, e *Entry) error {
	if e == nil {
		return dErrors.New(dErrors.CodeInternal, "audit entry is required")
	}
	if e.EntityType == "" || e.EntityID == "" {
		return dErrors.New(dErrors.CodeInternal, "audit entry requires entity type and id")
	}
	if !e.Action.Valid() {
		return dErrors.New(dErrors.CodeInternal, fmt.Sprintf("audit entry has invalid action %q", e.Action))
	}
	if e.Changes.Len() == 0 {
		return dErrors.New(dErrors.CodeInternal, "audit entry has no changes")
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Actor.ID == "" {
		if actor := requestcontext.Actor(ctx); !actor.IsZero() {
			e.Actor = Actor{ID: actor.ID, Name: actor.Name, Role: actor.Role}
		} else {
			e.Actor = SystemActor
		}
	}
	if e.RequestID == "" {
		e.RequestID = requestcontext.RequestID(ctx)
	}
	if e.ClientIP == "" && e.Device == "" {
		client := requestcontext.Client(ctx)
		e.ClientIP, e.Device = client.IP, client.Device
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = requestcontext.Now(ctx)
	}
	return nil
}

func classify(err error) error {
	if _, ok := dErrors.From(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return dErrors.Wrap(err, dErrors.CodePersistenceFailure, "failed to persist change")
}
