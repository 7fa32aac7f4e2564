// Package validator checks proposed factor writes against the registry.
//
// Validation is pure and is re-run on every write: factor bounds may change
// between deployments, so a value accepted yesterday is not trusted today.
package validator

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"trustscore/internal/scoring/models"
	"trustscore/internal/scoring/registry"
	dErrors "trustscore/pkg/domain-errors"
)

// Reason classifies a rejected write.
type Reason string

const (
	ReasonUnknownPillar   Reason = "UnknownPillar"
	ReasonUnknownCategory Reason = "UnknownCategory"
	ReasonUnknownFactor   Reason = "UnknownFactor"
	ReasonNotANumber      Reason = "NotANumber"
	ReasonOutOfRange      Reason = "OutOfRange"
)

var reasonCodes = map[Reason]dErrors.Code{
	ReasonUnknownPillar:   dErrors.CodeUnknownPillar,
	ReasonUnknownCategory: dErrors.CodeUnknownCategory,
	ReasonUnknownFactor:   dErrors.CodeUnknownFactor,
	ReasonNotANumber:      dErrors.CodeNotANumber,
	ReasonOutOfRange:      dErrors.CodeOutOfRange,
}

// Rejection carries everything an operator needs to understand a refused write.
// Label, Value and Max are set only once the factor resolved.
type Rejection struct {
	Reason Reason
	FirmID string
	Ref    models.FactorRef
	Label  string
	Raw    string
	Value  float64
	Max    float64
}

func (r *Rejection) Error() string {
	switch r.Reason {
	case ReasonUnknownPillar:
		return fmt.Sprintf("unknown pillar %q", r.Ref.PillarID)
	case ReasonUnknownCategory:
		return fmt.Sprintf("unknown category %q in pillar %q", r.Ref.CategoryID, r.Ref.PillarID)
	case ReasonUnknownFactor:
		return fmt.Sprintf("unknown factor %q in category %q", r.Ref.FactorKey, r.Ref.CategoryID)
	case ReasonNotANumber:
		return fmt.Sprintf("%s: value %q is not a number", r.Label, r.Raw)
	case ReasonOutOfRange:
		return fmt.Sprintf("%s must be between 0 and %g, got %g", r.Label, r.Max, r.Value)
	}
	return string(r.Reason)
}

// Code maps the reason onto the shared error taxonomy.
func (r *Rejection) Code() dErrors.Code {
	return reasonCodes[r.Reason]
}

// Details is the structured payload rendered alongside the error.
func (r *Rejection) Details() map[string]any {
	d := map[string]any{
		"reason":     string(r.Reason),
		"pillarId":   r.Ref.PillarID,
		"categoryId": r.Ref.CategoryID,
		"factorKey":  r.Ref.FactorKey,
	}
	if r.Label != "" {
		d["label"] = r.Label
	}
	switch r.Reason {
	case ReasonNotANumber:
		d["value"] = r.Raw
	case ReasonOutOfRange:
		d["value"] = r.Value
		d["min"] = 0.0
		d["max"] = r.Max
	}
	return d
}

// DomainError wraps the rejection for transport.
func (r *Rejection) DomainError() *dErrors.Error {
	return dErrors.Wrap(r, r.Code(), r.Error()).WithDetails(r.Details())
}

// Validated is an accepted write.
type Validated struct {
	Ref    models.FactorRef
	Factor registry.FactorConfig
	Value  float64
}

// Validator resolves and bounds-checks writes against one registry.
type Validator struct {
	registry *registry.Registry
}

func New(reg *registry.Registry) *Validator {
	return &Validator{registry: reg}
}

// Resolve walks pillar → category → factor.
func (v *Validator) Resolve(ref models.FactorRef) (registry.FactorConfig, *Rejection) {
	pillar, ok := v.registry.FindPillar(ref.PillarID)
	if !ok {
		return registry.FactorConfig{}, &Rejection{Reason: ReasonUnknownPillar, Ref: ref}
	}
	category, ok := v.registry.FindCategory(pillar, ref.CategoryID)
	if !ok {
		return registry.FactorConfig{}, &Rejection{Reason: ReasonUnknownCategory, Ref: ref}
	}
	factor, ok := v.registry.FindFactor(category, ref.FactorKey)
	if !ok {
		return registry.FactorConfig{}, &Rejection{Reason: ReasonUnknownFactor, Ref: ref}
	}
	return factor, nil
}

// Validate returns the accepted write or a *Rejection.
func (v *Validator) Validate(firmID string, ref models.FactorRef, raw any) (Validated, error) {
	factor, rej := v.Resolve(ref)
	if rej != nil {
		rej.FirmID = firmID
		return Validated{}, rej
	}

	value, ok := Coerce(raw)
	if !ok {
		return Validated{}, &Rejection{
			Reason: ReasonNotANumber,
			FirmID: firmID,
			Ref:    ref,
			Label:  factor.Label,
			Raw:    rawString(raw),
		}
	}

	if value < 0 || value > factor.Max {
		return Validated{}, &Rejection{
			Reason: ReasonOutOfRange,
			FirmID: firmID,
			Ref:    ref,
			Label:  factor.Label,
			Value:  value,
			Max:    factor.Max,
		}
	}

	return Validated{Ref: ref, Factor: factor, Value: value}, nil
}

// Stale is a stored entry that no longer satisfies the current registry.
type Stale struct {
	Ref    models.FactorRef
	Value  float64
	Reason Reason
	Max    float64
}

// CheckStored reports stored entries that fail today's registry. Nothing is mutated.
func (v *Validator) CheckStored(scores models.Scores) []Stale {
	var stale []Stale
	for _, entry := range scores.Entries() {
		factor, rej := v.Resolve(entry.Ref)
		if rej != nil {
			stale = append(stale, Stale{Ref: entry.Ref, Value: entry.Value, Reason: rej.Reason})
			continue
		}
		if entry.Value < 0 || entry.Value > factor.Max {
			stale = append(stale, Stale{Ref: entry.Ref, Value: entry.Value, Reason: ReasonOutOfRange, Max: factor.Max})
		}
	}
	return stale
}

// Coerce converts a loosely-typed input to a finite float64.
func Coerce(raw any) (float64, bool) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case json.Number:
		return parseNumber(string(v))
	case json.RawMessage:
		return coerceJSON(v)
	case string:
		return parseNumber(v)
	default:
		return 0, false
	}
	return f, finite(f)
}

func coerceJSON(raw json.RawMessage) (float64, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		return parseNumber(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return parseNumber(string(n))
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, finite(f)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func rawString(raw any) string {
	switch v := raw.(type) {
	case nil:
		return "null"
	case string:
		return v
	case json.RawMessage:
		return string(v)
	}
	return fmt.Sprint(raw)
}
