package handler

import (
	"time"

	"trustscore/internal/audit"
	"trustscore/internal/scoring/models"
	"trustscore/internal/scoring/registry"
	"trustscore/internal/scoring/service"
)

// EvaluationResponse is an evaluation as returned to callers.
type EvaluationResponse struct {
	ID        string        `json:"id"`
	FirmID    string        `json:"firmId"`
	Scores    models.Scores `json:"scores"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// ViewResponse is the body of GET /firms/{firmID}/evaluation.
type ViewResponse struct {
	Evaluation      EvaluationResponse `json:"evaluation"`
	Summary         SummaryResponse    `json:"summary"`
	Stale           []StaleResponse    `json:"stale"`
	RegistryVersion string             `json:"registryVersion"`
}

type ScoreResponse struct {
	Scored  float64 `json:"scored"`
	Max     float64 `json:"max"`
	Percent float64 `json:"percent"`
}

type CategorySummaryResponse struct {
	ID            string        `json:"id"`
	Label         string        `json:"label"`
	Score         ScoreResponse `json:"score"`
	FactorsScored int           `json:"factorsScored"`
	FactorsTotal  int           `json:"factorsTotal"`
}

type PillarSummaryResponse struct {
	ID         string                    `json:"id"`
	Label      string                    `json:"label"`
	Score      ScoreResponse             `json:"score"`
	Categories []CategorySummaryResponse `json:"categories"`
}

type SummaryResponse struct {
	Score         ScoreResponse           `json:"score"`
	FactorsScored int                     `json:"factorsScored"`
	FactorsTotal  int                     `json:"factorsTotal"`
	Pillars       []PillarSummaryResponse `json:"pillars"`
}

// StaleResponse flags a stored value the current registry no longer accepts.
type StaleResponse struct {
	PillarID   string  `json:"pillarId"`
	CategoryID string  `json:"categoryId"`
	FactorKey  string  `json:"factorKey"`
	Value      float64 `json:"value"`
	Reason     string  `json:"reason"`
	Max        float64 `json:"max,omitempty"`
}

// WriteResponse is the body of every successful factor write.
type WriteResponse struct {
	Evaluation EvaluationResponse `json:"evaluation"`
	AuditEntry *audit.Entry       `json:"auditEntry"`
}

// RegistryResponse is the body of GET /registry.
type RegistryResponse struct {
	Version string           `json:"version"`
	Pillars []PillarResponse `json:"pillars"`
}

type PillarResponse struct {
	ID         string             `json:"id"`
	Label      string             `json:"label"`
	Categories []CategoryResponse `json:"categories"`
}

type CategoryResponse struct {
	ID      string           `json:"id"`
	Label   string           `json:"label"`
	Max     float64          `json:"max"`
	Factors []FactorResponse `json:"factors"`
}

type FactorResponse struct {
	Key   string  `json:"key"`
	Label string  `json:"label"`
	Max   float64 `json:"max"`
}

func FromEvaluation(e *models.Evaluation) EvaluationResponse {
	scores := e.Scores
	if scores == nil {
		scores = models.Scores{}
	}
	return EvaluationResponse{
		ID:        e.ID.String(),
		FirmID:    e.FirmID,
		Scores:    scores,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func FromResult(result *service.UpdateResult) *WriteResponse {
	return &WriteResponse{
		Evaluation: FromEvaluation(result.Evaluation),
		AuditEntry: result.Entry,
	}
}

func FromView(view *service.View) *ViewResponse {
	stale := make([]StaleResponse, 0, len(view.Stale))
	for _, s := range view.Stale {
		stale = append(stale, StaleResponse{
			PillarID:   s.Ref.PillarID,
			CategoryID: s.Ref.CategoryID,
			FactorKey:  s.Ref.FactorKey,
			Value:      s.Value,
			Reason:     string(s.Reason),
			Max:        s.Max,
		})
	}
	return &ViewResponse{
		Evaluation:      FromEvaluation(view.Evaluation),
		Summary:         fromSummary(view.Summary),
		Stale:           stale,
		RegistryVersion: view.RegistryVersion,
	}
}

func fromSummary(s service.Summary) SummaryResponse {
	out := SummaryResponse{
		Score:         ScoreResponse(s.Score),
		FactorsScored: s.FactorsScored,
		FactorsTotal:  s.FactorsTotal,
		Pillars:       make([]PillarSummaryResponse, 0, len(s.Pillars)),
	}
	for _, p := range s.Pillars {
		ps := PillarSummaryResponse{
			ID:         p.ID,
			Label:      p.Label,
			Score:      ScoreResponse(p.Score),
			Categories: make([]CategorySummaryResponse, 0, len(p.Categories)),
		}
		for _, c := range p.Categories {
			ps.Categories = append(ps.Categories, CategorySummaryResponse{
				ID:            c.ID,
				Label:         c.Label,
				Score:         ScoreResponse(c.Score),
				FactorsScored: c.FactorsScored,
				FactorsTotal:  c.FactorsTotal,
			})
		}
		out.Pillars = append(out.Pillars, ps)
	}
	return out
}

func FromRegistry(reg *registry.Registry) *RegistryResponse {
	out := &RegistryResponse{Version: reg.Version()}
	for _, p := range reg.Pillars() {
		pr := PillarResponse{ID: p.ID, Label: p.Label}
		for _, c := range p.Categories() {
			cr := CategoryResponse{ID: c.ID, Label: c.Label, Max: c.MaxTotal()}
			for _, f := range c.Factors() {
				cr.Factors = append(cr.Factors, FactorResponse{Key: f.Key, Label: f.Label, Max: f.Max})
			}
			pr.Categories = append(pr.Categories, cr)
		}
		out.Pillars = append(out.Pillars, pr)
	}
	return out
}
