package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"trustscore/internal/audit"
	"trustscore/internal/scoring/metrics"
	"trustscore/internal/scoring/models"
	"trustscore/internal/scoring/registry"
	"trustscore/internal/scoring/store"
	"trustscore/internal/scoring/validator"
	dErrors "trustscore/pkg/domain-errors"
	"trustscore/pkg/platform/tx"
	"trustscore/pkg/requestcontext"
)

// Store is the evaluation persistence primitive. Writes join the transaction
// carried by ctx.
type Store interface {
	GetByFirm(ctx context.Context, firmID string) (*models.Evaluation, error)
	UpsertFactor(ctx context.Context, firmID string, ref models.FactorRef, value float64) (*models.FactorChange, error)
	ClearFactor(ctx context.Context, firmID string, ref models.FactorRef) (*models.FactorChange, error)
}

// Cache holds read copies of evaluations. Get returns store.ErrNotFound on a miss.
type Cache interface {
	Get(ctx context.Context, firmID string) (*models.Evaluation, error)
	Set(ctx context.Context, e *models.Evaluation) error
	Invalidate(ctx context.Context, firmID string) error
}

// Service validates and applies factor writes, pairing each with an audit entry.
type Service struct {
	registry  *registry.Registry
	validator *validator.Validator
	store     Store
	writer    *audit.Writer
	cache     Cache
	logger    *slog.Logger
	metrics   *metrics.Metrics
	loads     singleflight.Group
}

type Option func(*Service)

func WithCache(cache Cache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service. The registry is shared read-only.
func New(reg *registry.Registry, store Store, writer *audit.Writer, opts ...Option) *Service {
	s := &Service{
		registry:  reg,
		validator: validator.New(reg),
		store:     store,
		writer:    writer,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// FactorUpdate is one proposed write. Value is coerced to a number during validation.
type FactorUpdate struct {
	Ref   models.FactorRef
	Value any
}

// UpdateResult is a committed write and the entry recorded with it.
type UpdateResult struct {
	Evaluation *models.Evaluation
	Entry      *audit.Entry
}

// UpdateFactor validates one write and applies it atomically with its audit entry.
func (s *Service) UpdateFactor(ctx context.Context, firmID string, update FactorUpdate) (*UpdateResult, error) {
	return s.UpdateFactors(ctx, firmID, []FactorUpdate{update})
}

// UpdateFactors validates every write first; a single rejection refuses the
// whole batch. Accepted writes are applied in order inside one transaction and
// recorded as one audit entry.
func (s *Service) UpdateFactors(ctx context.Context, firmID string, updates []FactorUpdate) (*UpdateResult, error) {
	firmID = strings.TrimSpace(firmID)
	if firmID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "firmId is required")
	}
	if len(updates) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one factor update is required")
	}

	accepted := make([]validator.Validated, 0, len(updates))
	for _, u := range updates {
		v, err := s.validator.Validate(firmID, u.Ref, u.Value)
		if err != nil {
			return nil, s.reject(ctx, err)
		}
		accepted = append(accepted, v)
	}

	start := time.Now()
	ctx = tx.WithShardKey(ctx, firmID)
	out, entry, err := audit.Execute(ctx, s.writer,
		func(txCtx context.Context) (*writeOutcome, error) {
			o := &writeOutcome{}
			for _, v := range accepted {
				change, err := s.store.UpsertFactor(txCtx, firmID, v.Ref, v.Value)
				if err != nil {
					return nil, err
				}
				o.changes = append(o.changes, change)
			}
			return o.reload(txCtx, s.store, firmID)
		},
		func(o *writeOutcome) (*audit.Entry, error) {
			return factorEntry(firmID, o.changes), nil
		},
	)
	if err != nil {
		return nil, s.writeFailed(ctx, firmID, err)
	}

	s.committed(ctx, firmID, entry, start)
	if entry.Action == audit.ActionCreate && s.metrics != nil {
		s.metrics.EvaluationCreated.Inc()
	}
	return &UpdateResult{Evaluation: out.evaluation, Entry: entry}, nil
}

// ClearFactor returns one factor to the unscored state. The path must resolve in
// the registry unless the evaluation still holds a value there, so entries left
// behind by a retired factor can be removed.
func (s *Service) ClearFactor(ctx context.Context, firmID string, ref models.FactorRef) (*UpdateResult, error) {
	firmID = strings.TrimSpace(firmID)
	if firmID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "firmId is required")
	}
	if _, rej := s.validator.Resolve(ref); rej != nil {
		rej.FirmID = firmID
		current, err := s.store.GetByFirm(ctx, firmID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodePersistenceFailure, "failed to load evaluation")
		}
		if current == nil {
			return nil, s.reject(ctx, rej)
		}
		if _, stored := current.Scores.Get(ref); !stored {
			return nil, s.reject(ctx, rej)
		}
	}

	start := time.Now()
	ctx = tx.WithShardKey(ctx, firmID)
	out, entry, err := audit.Execute(ctx, s.writer,
		func(txCtx context.Context) (*writeOutcome, error) {
			change, err := s.store.ClearFactor(txCtx, firmID, ref)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return nil, evaluationNotFound(firmID)
				}
				return nil, err
			}
			o := &writeOutcome{changes: []*models.FactorChange{change}}
			return o.reload(txCtx, s.store, firmID)
		},
		func(o *writeOutcome) (*audit.Entry, error) {
			return factorEntry(firmID, o.changes), nil
		},
	)
	if err != nil {
		return nil, s.writeFailed(ctx, firmID, err)
	}

	s.committed(ctx, firmID, entry, start)
	return &UpdateResult{Evaluation: out.evaluation, Entry: entry}, nil
}

// View is an evaluation as read by callers.
type View struct {
	Evaluation      *models.Evaluation
	Summary         Summary
	Stale           []validator.Stale
	RegistryVersion string
}

// GetEvaluation loads a firm's evaluation and checks it against the current registry.
func (s *Service) GetEvaluation(ctx context.Context, firmID string) (*View, error) {
	firmID = strings.TrimSpace(firmID)
	if firmID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "firmId is required")
	}

	e, err := s.load(ctx, firmID)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		return nil, evaluationNotFound(firmID)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "evaluation read aborted: context cancelled")
	default:
		return nil, dErrors.Wrap(err, dErrors.CodePersistenceFailure, "failed to load evaluation")
	}

	stale := s.validator.CheckStored(e.Scores)
	if len(stale) > 0 {
		s.logger.WarnContext(ctx, "evaluation holds entries outside the current registry",
			"request_id", requestcontext.RequestID(ctx),
			"firm_id", firmID,
			"stale", len(stale),
			"registry_version", s.registry.Version(),
		)
	}

	return &View{
		Evaluation:      e,
		Summary:         Summarize(s.registry, e.Scores),
		Stale:           stale,
		RegistryVersion: s.registry.Version(),
	}, nil
}

// Registry exposes the schema the service validates against.
func (s *Service) Registry() *registry.Registry {
	return s.registry
}

func (s *Service) load(ctx context.Context, firmID string) (*models.Evaluation, error) {
	if s.cache != nil {
		e, err := s.cache.Get(ctx, firmID)
		switch {
		case err == nil:
			s.incRead("cache")
			return e, nil
		case !errors.Is(err, store.ErrNotFound):
			s.logger.WarnContext(ctx, "evaluation cache read failed",
				"firm_id", firmID,
				"error", err,
			)
		}
	}

	// The shared load ignores caller cancellation; each caller stops waiting
	// on its own ctx.
	flight := context.WithoutCancel(ctx)
	ch := s.loads.DoChan(firmID, func() (any, error) {
		e, err := s.store.GetByFirm(flight, firmID)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.Set(flight, e); err != nil {
				s.logger.WarnContext(flight, "evaluation cache fill failed",
					"firm_id", firmID,
					"error", err,
				)
			}
		}
		return e, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		s.incRead("store")
		return res.Val.(*models.Evaluation).Clone(), nil
	}
}

type writeOutcome struct {
	changes    []*models.FactorChange
	evaluation *models.Evaluation
}

func (o *writeOutcome) reload(ctx context.Context, st Store, firmID string) (*writeOutcome, error) {
	e, err := st.GetByFirm(ctx, firmID)
	if err != nil {
		return nil, err
	}
	o.evaluation = e
	return o, nil
}

// factorEntry records a write as CREATE when it brought the evaluation into
// existence and UPDATE otherwise. Changes are grouped by pillar and category.
func factorEntry(firmID string, changes []*models.FactorChange) *audit.Entry {
	action := audit.ActionUpdate
	if len(changes) > 0 && changes[0].Created {
		action = audit.ActionCreate
	}

	rec := audit.NewRecorder()
	for _, c := range changes {
		payload := []audit.Field{{Name: c.Ref.FactorKey, Value: c.Current}}
		if c.Created {
			rec.RecordCreate(c.Ref.Section(), payload)
			continue
		}
		previous := c.Previous
		rec.RecordUpdate(c.Ref.Section(), func(string) (any, bool) {
			return previous, previous != nil
		}, payload)
	}

	return &audit.Entry{
		EntityType: audit.EntityEvaluation,
		EntityID:   firmID,
		Action:     action,
		Changes:    rec.Changes(),
	}
}

func (s *Service) reject(ctx context.Context, err error) error {
	var rej *validator.Rejection
	if !errors.As(err, &rej) {
		return err
	}
	s.logger.InfoContext(ctx, "factor write rejected",
		"request_id", requestcontext.RequestID(ctx),
		"firm_id", rej.FirmID,
		"reason", string(rej.Reason),
		"factor", rej.Ref.String(),
	)
	if s.metrics != nil {
		s.metrics.IncRejection(string(rej.Code()))
	}
	return rej.DomainError()
}

func (s *Service) writeFailed(ctx context.Context, firmID string, err error) error {
	code := dErrors.CodeInternal
	if de, ok := dErrors.From(err); ok {
		code = de.Code
	}
	if code == dErrors.CodeEvaluationNotFound {
		s.logger.InfoContext(ctx, "factor write on missing evaluation",
			"request_id", requestcontext.RequestID(ctx),
			"firm_id", firmID,
		)
	} else {
		s.logger.ErrorContext(ctx, "factor write aborted",
			"request_id", requestcontext.RequestID(ctx),
			"firm_id", firmID,
			"code", string(code),
			"error", err,
		)
	}
	if s.metrics != nil {
		s.metrics.IncRejection(string(code))
	}
	// A failed commit may still have landed, so the cached copy is not trusted.
	if code != dErrors.CodeEvaluationNotFound {
		s.invalidate(ctx, firmID)
	}
	return err
}

func (s *Service) committed(ctx context.Context, firmID string, entry *audit.Entry, start time.Time) {
	s.invalidate(ctx, firmID)
	if s.metrics != nil {
		s.metrics.ObserveWrite(start)
		s.metrics.IncFactorWrite(string(entry.Action))
	}
}

func (s *Service) invalidate(ctx context.Context, firmID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(context.WithoutCancel(ctx), firmID); err != nil {
		s.logger.WarnContext(ctx, "evaluation cache invalidation failed",
			"firm_id", firmID,
			"error", err,
		)
	}
}

func (s *Service) incRead(source string) {
	if s.metrics != nil {
		s.metrics.IncRead(source)
	}
}

func evaluationNotFound(firmID string) *dErrors.Error {
	return dErrors.New(dErrors.CodeEvaluationNotFound, "evaluation not found").
		WithDetails(map[string]any{"firmId": firmID})
}
