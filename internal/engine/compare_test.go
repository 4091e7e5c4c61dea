package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/PanelCut/internal/model"
)

func TestBuildDefaultScenarios(t *testing.T) {
	scenarios := BuildDefaultScenarios(model.StrategyWasteMinimize, 4)
	require.Len(t, scenarios, 5)
	assert.Equal(t, "Current Settings", scenarios[0].Name)
	assert.Equal(t, model.StrategyWasteMinimize, scenarios[0].Strategy)
	for _, s := range scenarios[1:4] {
		assert.NotEqual(t, model.StrategyWasteMinimize, s.Strategy)
		assert.Equal(t, 4.0, s.KerfWidth)
	}
	assert.Equal(t, 2.0, scenarios[4].KerfWidth)
	assert.Equal(t, "Kerf 2.0mm (half)", scenarios[4].Name)

	assert.Len(t, BuildDefaultScenarios(model.StrategyLengthFirst, 1), 4, "no half-kerf scenario for thin blades")
}

func TestCompareScenarios(t *testing.T) {
	opt := New(model.DefaultSettings())
	pieces := []model.Piece{piece("Q", 1400, 1035, 5)}
	panels := []model.Panel{panel("P", 2800, 2070, 1)}

	results, err := opt.CompareScenarios(context.Background(), BuildDefaultScenarios(model.StrategyLengthFirst, 3), pieces, panels)
	require.NoError(t, err)
	require.Len(t, results, 5)
	for _, r := range results {
		assert.Equal(t, 1, r.PanelsUsed)
		assert.Equal(t, 5, r.Result.PlacedCount()+r.UnplacedCount)
		assert.Equal(t, r.Result.WastePercentage, r.WastePercent)
	}

	best := BestScenario(results)
	require.GreaterOrEqual(t, best, 0)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.UnplacedCount, results[best].UnplacedCount)
	}
}

func TestCompareScenarios_FatalError(t *testing.T) {
	opt := New(model.DefaultSettings())
	_, err := opt.CompareScenarios(context.Background(),
		[]ComparisonScenario{{Name: "bad", Strategy: model.StrategyLengthFirst, KerfWidth: -2}},
		[]model.Piece{piece("A", 10, 10, 1)}, []model.Panel{panel("P", 100, 100, 1)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidKerf))
}

func TestBestScenario(t *testing.T) {
	assert.Equal(t, -1, BestScenario(nil))
	results := []ComparisonResult{
		{UnplacedCount: 1, PanelsUsed: 1},
		{UnplacedCount: 0, PanelsUsed: 3, TotalCost: 30},
		{UnplacedCount: 0, PanelsUsed: 2, TotalCost: 50},
		{UnplacedCount: 0, PanelsUsed: 2, TotalCost: 40},
	}
	assert.Equal(t, 3, BestScenario(results))
}
