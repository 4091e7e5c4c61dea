package engine

import (
	"context"
	"fmt"

	"github.com/piwi3910/PanelCut/internal/model"
)

// ComparisonScenario defines a named strategy/kerf combination to compare.
type ComparisonScenario struct {
	Name      string         `json:"name"`
	Strategy  model.Strategy `json:"strategy"`
	KerfWidth float64        `json:"kerfWidth"`
}

// ComparisonResult holds the optimization result and computed statistics
// for a single scenario.
type ComparisonResult struct {
	Scenario      ComparisonScenario       `json:"scenario"`
	Result        model.OptimizationResult `json:"result"`
	PanelsUsed    int                      `json:"panelsUsed"`
	TotalCuts     int                      `json:"totalCuts"`
	WastePercent  float64                  `json:"wastePercent"`
	TotalCost     float64                  `json:"totalCost"`
	UnplacedCount int                      `json:"unplacedCount"`
}

// CompareScenarios runs the optimizer once per scenario against the same
// pieces and panels and returns the results in scenario order. The first
// fatal error aborts the comparison.
func (o *Optimizer) CompareScenarios(ctx context.Context, scenarios []ComparisonScenario, pieces []model.Piece, panels []model.Panel) ([]ComparisonResult, error) {
	results := make([]ComparisonResult, 0, len(scenarios))

	for _, scenario := range scenarios {
		result, err := o.Optimize(ctx, Request{
			Pieces:    pieces,
			Panels:    panels,
			Strategy:  scenario.Strategy,
			KerfWidth: scenario.KerfWidth,
		})
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
		}

		totalCuts := 0
		for _, plan := range result.CuttingPlans {
			totalCuts += len(plan.Cuts)
		}

		results = append(results, ComparisonResult{
			Scenario:      scenario,
			Result:        result,
			PanelsUsed:    len(result.CuttingPlans),
			TotalCuts:     totalCuts,
			WastePercent:  result.WastePercentage,
			TotalCost:     result.TotalCost,
			UnplacedCount: len(result.UnplacedPieces),
		})
	}

	return results, nil
}

// BuildDefaultScenarios generates what-if alternatives around a base
// strategy and kerf: the base itself, every other strategy, and a half-kerf
// run when the blade is thicker than a millimetre.
func BuildDefaultScenarios(base model.Strategy, kerf float64) []ComparisonScenario {
	scenarios := []ComparisonScenario{
		{Name: "Current Settings", Strategy: base, KerfWidth: kerf},
	}

	for _, s := range model.Strategies {
		if s == base {
			continue
		}
		scenarios = append(scenarios, ComparisonScenario{
			Name:      s.String(),
			Strategy:  s,
			KerfWidth: kerf,
		})
	}

	if kerf > 1.0 {
		half := kerf * 0.5
		scenarios = append(scenarios, ComparisonScenario{
			Name:      fmt.Sprintf("Kerf %.1fmm (half)", half),
			Strategy:  base,
			KerfWidth: half,
		})
	}

	return scenarios
}

// BestScenario returns the index of the result that places the most pieces,
// then uses the fewest panels, then costs least. It returns -1 for no results.
func BestScenario(results []ComparisonResult) int {
	best := -1
	for i, r := range results {
		if best < 0 {
			best = i
			continue
		}
		b := results[best]
		switch {
		case r.UnplacedCount != b.UnplacedCount:
			if r.UnplacedCount < b.UnplacedCount {
				best = i
			}
		case r.PanelsUsed != b.PanelsUsed:
			if r.PanelsUsed < b.PanelsUsed {
				best = i
			}
		case r.TotalCost < b.TotalCost:
			best = i
		}
	}
	return best
}
