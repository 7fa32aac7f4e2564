package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"trustscore/internal/audit"
	"trustscore/internal/scoring/handler/mocks"
	"trustscore/internal/scoring/models"
	"trustscore/internal/scoring/registry"
	"trustscore/internal/scoring/service"
	"trustscore/internal/scoring/validator"
	dErrors "trustscore/pkg/domain-errors"
	"trustscore/pkg/requestcontext"
	"trustscore/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service
type ScoringHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
	now     time.Time
}

func TestScoringHandlerSuite(t *testing.T) {
	suite.Run(t, new(ScoringHandlerSuite))
}

func (s *ScoringHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := New(s.service, logger)
	r := chi.NewRouter()
	h.Register(r)
	r.Route("/admin", h.RegisterAdmin)
	s.router = r
	s.now = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
}

func (s *ScoringHandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *ScoringHandlerSuite) decode(w *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func (s *ScoringHandlerSuite) result(firmID string, action audit.Action) *service.UpdateResult {
	e := models.NewEvaluation(uuid.New(), firmID, s.now)
	e.Scores.Set(noControversies, 8)
	return &service.UpdateResult{
		Evaluation: e,
		Entry: &audit.Entry{
			ID:         uuid.New(),
			Actor:      audit.Actor{ID: "u-1", Name: "Ana", Role: "admin"},
			EntityType: audit.EntityEvaluation,
			EntityID:   firmID,
			Action:     action,
			Changes: audit.Changes{
				"scores.credibility.trust_signals": {{Field: "no_controversies", OldValue: nil, NewValue: 8.0}},
			},
			CreatedAt: s.now,
		},
	}
}

var noControversies = models.FactorRef{PillarID: "credibility", CategoryID: "trust_signals", FactorKey: "no_controversies"}

func (s *ScoringHandlerSuite) TestUpdateFactor() {
	s.service.EXPECT().UpdateFactor(gomock.Any(), "F1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, u service.FactorUpdate) (*service.UpdateResult, error) {
			s.Equal(noControversies, u.Ref)
			s.Equal(json.RawMessage("8"), u.Value)
			return s.result("F1", audit.ActionCreate), nil
		})

	w := s.do(http.MethodPut, "/admin/firms/F1/evaluation/factors",
		`{"pillarId":"credibility","categoryId":" trust_signals ","factorKey":"no_controversies","value":8}`)

	s.Equal(http.StatusOK, w.Code)
	body := s.decode(w)
	evaluation := body["evaluation"].(map[string]any)
	s.Equal("F1", evaluation["firmId"])
	s.Equal(8.0, evaluation["scores"].(map[string]any)["credibility"].(map[string]any)["trust_signals"].(map[string]any)["no_controversies"])

	entry := body["auditEntry"].(map[string]any)
	s.Equal("CREATE", entry["action"])
	change := entry["changes"].(map[string]any)["scores.credibility.trust_signals"].([]any)[0].(map[string]any)
	s.Equal(map[string]any{"field": "no_controversies", "oldValue": nil, "newValue": 8.0}, change)
}

func (s *ScoringHandlerSuite) TestUpdateFactorInvalidBody() {
	cases := map[string]struct {
		body   string
		status int
	}{
		"empty body":      {body: "", status: http.StatusBadRequest},
		"malformed":       {body: `{"pillarId":`, status: http.StatusBadRequest},
		"missing factor":  {body: `{"pillarId":"credibility","categoryId":"trust_signals","value":1}`, status: http.StatusUnprocessableEntity},
		"oversized field": {body: `{"pillarId":"` + strings.Repeat("p", 65) + `","categoryId":"c","factorKey":"f","value":1}`, status: http.StatusUnprocessableEntity},
	}
	for name, tc := range cases {
		s.Run(name, func() {
			w := s.do(http.MethodPut, "/admin/firms/F1/evaluation/factors", tc.body)
			s.Equal(tc.status, w.Code)
		})
	}
}

func (s *ScoringHandlerSuite) TestUpdateFactorRejected() {
	rej := &validator.Rejection{
		Reason: validator.ReasonOutOfRange,
		FirmID: "F1",
		Ref:    noControversies,
		Label:  "No controversies",
		Value:  11,
		Max:    10,
	}
	s.service.EXPECT().UpdateFactor(gomock.Any(), "F1", gomock.Any()).Return(nil, rej.DomainError())

	w := s.do(http.MethodPut, "/admin/firms/F1/evaluation/factors",
		`{"pillarId":"credibility","categoryId":"trust_signals","factorKey":"no_controversies","value":11}`)

	s.Equal(http.StatusUnprocessableEntity, w.Code)
	body := s.decode(w)
	s.Equal("out_of_range", body["error"])
	s.Equal("No controversies must be between 0 and 10, got 11", body["error_description"])
	details := body["details"].(map[string]any)
	s.Equal(10.0, details["max"])
	s.Equal("No controversies", details["label"])
}

func (s *ScoringHandlerSuite) TestUpdateFactorPersistenceFailure() {
	s.service.EXPECT().UpdateFactor(gomock.Any(), "F1", gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodePersistenceFailure, "failed to persist change"))

	w := s.do(http.MethodPut, "/admin/firms/F1/evaluation/factors",
		`{"pillarId":"credibility","categoryId":"trust_signals","factorKey":"no_controversies","value":1}`)

	s.Equal(http.StatusInternalServerError, w.Code)
	s.Equal("persistence_failure", s.decode(w)["error"])
}

func (s *ScoringHandlerSuite) TestBatchUpdate() {
	s.service.EXPECT().UpdateFactors(gomock.Any(), "F1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, updates []service.FactorUpdate) (*service.UpdateResult, error) {
			s.Require().Len(updates, 2)
			s.Equal("no_controversies", updates[0].Ref.FactorKey)
			s.Equal("payout_speed", updates[1].Ref.FactorKey)
			return s.result("F1", audit.ActionUpdate), nil
		})

	w := s.do(http.MethodPost, "/admin/firms/F1/evaluation/factors:batch", `{"updates":[
		{"pillarId":"credibility","categoryId":"trust_signals","factorKey":"no_controversies","value":8},
		{"pillarId":"credibility","categoryId":"payout_reliability","factorKey":"payout_speed","value":"7"}
	]}`)
	s.Equal(http.StatusOK, w.Code)
}

func (s *ScoringHandlerSuite) TestBatchUpdateValidation() {
	w := s.do(http.MethodPost, "/admin/firms/F1/evaluation/factors:batch", `{"updates":[]}`)
	s.Equal(http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodPost, "/admin/firms/F1/evaluation/factors:batch",
		`{"updates":[{"pillarId":"credibility","categoryId":"trust_signals","value":8}]}`)
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Equal("updates[0]: factorKey is required", s.decode(w)["error_description"])
}

func (s *ScoringHandlerSuite) TestClearFactor() {
	s.service.EXPECT().ClearFactor(gomock.Any(), "F1", noControversies).
		Return(s.result("F1", audit.ActionUpdate), nil)

	w := s.do(http.MethodDelete, "/admin/firms/F1/evaluation/factors/credibility/trust_signals/no_controversies", "")
	s.Equal(http.StatusOK, w.Code)
}

func (s *ScoringHandlerSuite) TestGetEvaluation() {
	reg, err := registry.Default()
	s.Require().NoError(err)
	e := models.NewEvaluation(uuid.New(), "F1", s.now)
	e.Scores.Set(noControversies, 8)

	s.service.EXPECT().GetEvaluation(gomock.Any(), "F1").Return(&service.View{
		Evaluation:      e,
		Summary:         service.Summarize(reg, e.Scores),
		RegistryVersion: reg.Version(),
	}, nil)

	w := s.do(http.MethodGet, "/firms/F1/evaluation", "")
	s.Equal(http.StatusOK, w.Code)
	body := s.decode(w)
	s.Equal(reg.Version(), body["registryVersion"])
	s.Equal([]any{}, body["stale"])
	score := body["summary"].(map[string]any)["score"].(map[string]any)
	s.Equal(80.0, score["percent"])
}

func (s *ScoringHandlerSuite) TestGetEvaluationNotFound() {
	s.service.EXPECT().GetEvaluation(gomock.Any(), "F404").
		Return(nil, dErrors.New(dErrors.CodeEvaluationNotFound, "evaluation not found"))

	w := s.do(http.MethodGet, "/firms/F404/evaluation", "")
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("evaluation_not_found", s.decode(w)["error"])
}

func TestRegistryEndpoint(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	reg, err := registry.Default()
	require.NoError(t, err)
	svc.EXPECT().Registry().Return(reg)

	r := chi.NewRouter()
	New(svc, slog.New(slog.DiscardHandler)).Register(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/registry", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body RegistryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, reg.Version(), body.Version)
	require.NotEmpty(t, body.Pillars)
	assert.Equal(t, "credibility", body.Pillars[0].ID)
	assert.Equal(t, 25.0, body.Pillars[0].Categories[0].Max)
}

func (s *ScoringHandlerSuite) TestWriteCarriesRequestContext() {
	s.service.EXPECT().ClearFactor(gomock.Any(), "F1", noControversies).
		DoAndReturn(func(ctx context.Context, _ string, _ models.FactorRef) (*service.UpdateResult, error) {
			actor := requestcontext.Actor(ctx)
			s.Equal("u-9", actor.ID)
			s.Equal("moderator", actor.Role)
			s.Equal("req-42", requestcontext.RequestID(ctx))
			s.Equal(s.now, requestcontext.Now(ctx))
			return s.result("F1", audit.ActionUpdate), nil
		})

	req := testutil.NewRequest(http.MethodDelete, "/admin/firms/F1/evaluation/factors/credibility/trust_signals/no_controversies", "")
	req = testutil.WithActor(req, "u-9", "moderator")
	req = testutil.WithRequest(req, "req-42", s.now)

	w := testutil.DoRequest(s.router, req)
	s.Equal(http.StatusOK, w.Code)
}
