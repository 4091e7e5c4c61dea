package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUsableOffcut(t *testing.T) {
	assert.True(t, IsUsableOffcut(Rect{Width: 100, Height: 100}))
	assert.False(t, IsUsableOffcut(Rect{Width: 49, Height: 1000}), "too narrow")
	assert.False(t, IsUsableOffcut(Rect{Width: 60, Height: 150}), "too small in area")
}

func TestDetectOffcuts(t *testing.T) {
	free := []Rect{
		{X: 1400, Y: 0, Width: 600, Height: 500},
		{X: 0, Y: 2000, Width: 2000, Height: 20},
		{X: 0, Y: 1000, Width: 1000, Height: 300},
		{X: 1000, Y: 1000, Width: 300, Height: 1000},
		{X: 1800, Y: 1800, Width: 90, Height: 90},
	}
	got := DetectOffcuts(free)
	require.Len(t, got, 3)
	assert.Equal(t, Rect{X: 1400, Y: 0, Width: 600, Height: 500}, got[0])
	assert.Equal(t, Rect{X: 0, Y: 1000, Width: 1000, Height: 300}, got[1], "equal area sorts by position")
	assert.Equal(t, Rect{X: 1000, Y: 1000, Width: 300, Height: 1000}, got[2])

	assert.Empty(t, DetectOffcuts(nil))
}

func TestOffcutPanels(t *testing.T) {
	plan := CuttingPlan{
		PanelInstanceID: "ply#2",
		Material:        "Birch",
		Offcuts: []Rect{
			{X: 0, Y: 1000, Width: 1200, Height: 400},
			{X: 1200, Y: 0, Width: 300, Height: 300},
		},
	}
	panels := plan.OffcutPanels(40, GrainVertical)
	require.Len(t, panels, 2)
	assert.Equal(t, Panel{
		ID:            "ply#2-offcut-1",
		Label:         "Offcut ply#2",
		Width:         1200,
		Height:        400,
		Material:      "Birch",
		PricePerArea:  40,
		StockQuantity: 1,
		Grain:         GrainVertical,
	}, panels[0])
	assert.Equal(t, "ply#2-offcut-2", panels[1].ID)

	assert.Empty(t, CuttingPlan{}.OffcutPanels(0, GrainNone))
}

func TestTotalOffcutArea(t *testing.T) {
	assert.Equal(t, 570000.0, TotalOffcutArea([]Rect{{Width: 1200, Height: 400}, {Width: 300, Height: 300}}))
	assert.Zero(t, TotalOffcutArea(nil))
}
