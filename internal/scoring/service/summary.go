package service

import (
	"math"

	"trustscore/internal/scoring/models"
	"trustscore/internal/scoring/registry"
)

// Score is an aggregate over scored factors. Unscored factors count toward
// neither Scored nor Max; Percent is 0 until something is scored.
type Score struct {
	Scored  float64
	Max     float64
	Percent float64
}

type CategorySummary struct {
	ID            string
	Label         string
	Score         Score
	FactorsScored int
	FactorsTotal  int
}

type PillarSummary struct {
	ID         string
	Label      string
	Score      Score
	Categories []CategorySummary
}

// Summary rolls stored factor values up through the registry tree.
type Summary struct {
	Score         Score
	FactorsScored int
	FactorsTotal  int
	Pillars       []PillarSummary
}

// Summarize aggregates scores against reg. Entries that do not resolve or lie
// outside today's bounds are ignored.
func Summarize(reg *registry.Registry, scores models.Scores) Summary {
	var out Summary
	for _, p := range reg.Pillars() {
		ps := PillarSummary{ID: p.ID, Label: p.Label}
		for _, c := range p.Categories() {
			cs := CategorySummary{ID: c.ID, Label: c.Label}
			for _, f := range c.Factors() {
				cs.FactorsTotal++
				v, ok := scores.Get(models.FactorRef{PillarID: p.ID, CategoryID: c.ID, FactorKey: f.Key})
				if !ok || v < 0 || v > f.Max {
					continue
				}
				cs.FactorsScored++
				cs.Score.Scored += v
				cs.Score.Max += f.Max
			}
			cs.Score.Percent = percent(cs.Score)

			ps.Score.Scored += cs.Score.Scored
			ps.Score.Max += cs.Score.Max
			out.FactorsScored += cs.FactorsScored
			out.FactorsTotal += cs.FactorsTotal
			ps.Categories = append(ps.Categories, cs)
		}
		ps.Score.Percent = percent(ps.Score)

		out.Score.Scored += ps.Score.Scored
		out.Score.Max += ps.Score.Max
		out.Pillars = append(out.Pillars, ps)
	}
	out.Score.Percent = percent(out.Score)
	return out
}

func percent(s Score) float64 {
	if s.Max == 0 {
		return 0
	}
	return math.Round(s.Scored/s.Max*10000) / 100
}
