package handler

import (
	"encoding/json"
	"fmt"
	"strings"

	"trustscore/internal/scoring/models"
	"trustscore/internal/scoring/service"
	dErrors "trustscore/pkg/domain-errors"
)

const (
	maxIdentifierLen = 64
	maxBatchSize     = 100
)

// UpdateFactorRequest is the HTTP request body for a single factor write.
// Value is kept raw so a non-numeric input reaches the validator and is
// rejected as not_a_number rather than as a decoding failure.
type UpdateFactorRequest struct {
	PillarID   string          `json:"pillarId"`
	CategoryID string          `json:"categoryId"`
	FactorKey  string          `json:"factorKey"`
	Value      json.RawMessage `json:"value"`
}

// Validate trims and checks the path identifiers.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *UpdateFactorRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.PillarID = strings.TrimSpace(r.PillarID)
	r.CategoryID = strings.TrimSpace(r.CategoryID)
	r.FactorKey = strings.TrimSpace(r.FactorKey)

	for _, f := range []struct{ name, value string }{
		{"pillarId", r.PillarID},
		{"categoryId", r.CategoryID},
		{"factorKey", r.FactorKey},
	} {
		if f.value == "" {
			return dErrors.New(dErrors.CodeValidation, f.name+" is required")
		}
		if len(f.value) > maxIdentifierLen {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s must be at most %d characters", f.name, maxIdentifierLen))
		}
	}
	return nil
}

// Ref returns the addressed factor path.
func (r *UpdateFactorRequest) Ref() models.FactorRef {
	return models.FactorRef{PillarID: r.PillarID, CategoryID: r.CategoryID, FactorKey: r.FactorKey}
}

// ToUpdate converts the request to a service write.
func (r *UpdateFactorRequest) ToUpdate() service.FactorUpdate {
	return service.FactorUpdate{Ref: r.Ref(), Value: r.Value}
}

// BatchUpdateRequest is the HTTP request body for a batch of factor writes.
type BatchUpdateRequest struct {
	Updates []UpdateFactorRequest `json:"updates"`
}

func (r *BatchUpdateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Updates) == 0 {
		return dErrors.New(dErrors.CodeValidation, "updates must not be empty")
	}
	if len(r.Updates) > maxBatchSize {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("updates must contain at most %d entries", maxBatchSize))
	}
	for i := range r.Updates {
		if err := r.Updates[i].Validate(); err != nil {
			if de, ok := dErrors.From(err); ok {
				return dErrors.New(de.Code, fmt.Sprintf("updates[%d]: %s", i, de.Message))
			}
			return err
		}
	}
	return nil
}

// ToUpdates converts the batch in submission order.
func (r *BatchUpdateRequest) ToUpdates() []service.FactorUpdate {
	out := make([]service.FactorUpdate, len(r.Updates))
	for i := range r.Updates {
		out[i] = r.Updates[i].ToUpdate()
	}
	return out
}
