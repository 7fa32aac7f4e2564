package audit

import (
	"context"
	"strings"

	dErrors "trustscore/pkg/domain-errors"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Reader is the read side of the audit log.
type Reader interface {
	ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]*Entry, error)
}

// Service is the read-only audit query surface.
type Service struct {
	store Reader
}

func NewService(store Reader) *Service {
	return &Service{store: store}
}

// ListByEntity returns entries for one entity, newest first.
func (s *Service) ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]*Entry, error) {
	entityType = strings.TrimSpace(entityType)
	entityID = strings.TrimSpace(entityID)
	if entityType == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "entityType is required")
	}
	if entityID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "entityId is required")
	}
	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}

	entries, err := s.store.ListByEntity(ctx, entityType, entityID, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistenceFailure, "failed to list audit entries")
	}
	return entries, nil
}
