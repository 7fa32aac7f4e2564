package validator

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustscore/internal/scoring/models"
	"trustscore/internal/scoring/registry"
	dErrors "trustscore/pkg/domain-errors"
)

var noControversies = models.FactorRef{
	PillarID:   "credibility",
	CategoryID: "trust_signals",
	FactorKey:  "no_controversies",
}

func newValidator(t *testing.T) *Validator {
	t.Helper()
	reg, err := registry.Default()
	require.NoError(t, err)
	return New(reg)
}

func rejectionOf(t *testing.T, err error) *Rejection {
	t.Helper()
	var rej *Rejection
	require.True(t, errors.As(err, &rej), "expected *Rejection, got %v", err)
	return rej
}

func TestValidateBounds(t *testing.T) {
	v := newValidator(t)
	const eps = 1e-9

	tests := []struct {
		name  string
		value float64
		ok    bool
	}{
		{"zero", 0, true},
		{"max", 10, true},
		{"inside", 8, true},
		{"above max", 10 + eps, false},
		{"below zero", -eps, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Validate("F1", noControversies, tt.value)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.value, got.Value)
				assert.Equal(t, 10.0, got.Factor.Max)
				return
			}
			rej := rejectionOf(t, err)
			assert.Equal(t, ReasonOutOfRange, rej.Reason)
			assert.Equal(t, tt.value, rej.Value)
			assert.Equal(t, 10.0, rej.Max)
			assert.Equal(t, "No major controversies", rej.Label)
		})
	}
}

func TestValidateUnknownPath(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name   string
		ref    models.FactorRef
		reason Reason
		code   dErrors.Code
	}{
		{
			name:   "pillar",
			ref:    models.FactorRef{PillarID: "vibes", CategoryID: "trust_signals", FactorKey: "no_controversies"},
			reason: ReasonUnknownPillar,
			code:   dErrors.CodeUnknownPillar,
		},
		{
			name:   "category",
			ref:    models.FactorRef{PillarID: "credibility", CategoryID: "vibes", FactorKey: "no_controversies"},
			reason: ReasonUnknownCategory,
			code:   dErrors.CodeUnknownCategory,
		},
		{
			name:   "factor",
			ref:    models.FactorRef{PillarID: "credibility", CategoryID: "trust_signals", FactorKey: "vibes"},
			reason: ReasonUnknownFactor,
			code:   dErrors.CodeUnknownFactor,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate("F1", tt.ref, 1)
			rej := rejectionOf(t, err)
			assert.Equal(t, tt.reason, rej.Reason)
			assert.Equal(t, "F1", rej.FirmID)
			assert.Equal(t, tt.code, rej.Code())
			assert.True(t, dErrors.HasCode(rej.DomainError(), tt.code))
		})
	}
}

func TestValidateNotANumber(t *testing.T) {
	v := newValidator(t)

	for _, raw := range []any{"abc", "", nil, true, json.RawMessage(`{}`), json.RawMessage(`"NaN"`), math.Inf(1), "Infinity"} {
		_, err := v.Validate("F1", noControversies, raw)
		rej := rejectionOf(t, err)
		assert.Equal(t, ReasonNotANumber, rej.Reason, "raw=%v", raw)
		assert.Equal(t, "No major controversies", rej.Label)
	}
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		raw  any
		want float64
	}{
		{8, 8},
		{int64(3), 3},
		{float32(2.5), 2.5},
		{" 7.25 ", 7.25},
		{json.Number("4"), 4},
		{json.RawMessage(`6`), 6},
		{json.RawMessage(`"9.5"`), 9.5},
	}
	for _, tt := range tests {
		got, ok := Coerce(tt.raw)
		require.True(t, ok, "raw=%v", tt.raw)
		assert.Equal(t, tt.want, got)
	}
}

func TestRejectionDetails(t *testing.T) {
	v := newValidator(t)
	_, err := v.Validate("F1", noControversies, 11)
	de := rejectionOf(t, err).DomainError()

	assert.Equal(t, dErrors.CodeOutOfRange, de.Code)
	assert.Equal(t, 11.0, de.Details["value"])
	assert.Equal(t, 10.0, de.Details["max"])
	assert.Equal(t, "No major controversies", de.Details["label"])
	assert.Equal(t, "No major controversies must be between 0 and 10, got 11", de.Message)
}

func TestCheckStored(t *testing.T) {
	v := newValidator(t)
	scores := make(models.Scores)
	scores.Set(noControversies, 8)
	scores.Set(models.FactorRef{PillarID: "credibility", CategoryID: "trust_signals", FactorKey: "years_in_operation"}, 9)
	scores.Set(models.FactorRef{PillarID: "retired", CategoryID: "x", FactorKey: "y"}, 1)

	stale := v.CheckStored(scores)
	require.Len(t, stale, 2)
	assert.Equal(t, "credibility.trust_signals.years_in_operation", stale[0].Ref.String())
	assert.Equal(t, ReasonOutOfRange, stale[0].Reason)
	assert.Equal(t, 5.0, stale[0].Max)
	assert.Equal(t, ReasonUnknownPillar, stale[1].Reason)
}
