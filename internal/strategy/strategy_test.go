package strategy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/PanelCut/internal/model"
)

func unit(id string, w, h float64, n int) model.PieceUnit {
	return model.PieceUnit{Piece: model.Piece{ID: id, Width: w, Height: h, Quantity: n + 1}, Unit: n}
}

func ids(units []model.PieceUnit) []string {
	out := make([]string, len(units))
	for i, u := range units {
		out[i] = u.Piece.ID
	}
	return out
}

func TestFor_AllStrategies(t *testing.T) {
	for _, s := range model.Strategies {
		p, err := For(s)
		require.NoError(t, err)
		assert.Equal(t, s, p.Strategy())
	}
}

func TestFor_Unknown(t *testing.T) {
	_, err := For(model.Strategy("RANDOM"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrStrategyNotSupported))
}

func TestLengthFirst_OrderPieces(t *testing.T) {
	p, _ := For(model.StrategyLengthFirst)
	in := []model.PieceUnit{
		unit("b", 500, 300, 0),
		unit("a", 800, 100, 0),
		unit("c", 500, 400, 0),
		unit("a2", 500, 300, 0),
	}
	out := p.OrderPieces(in)
	assert.Equal(t, []string{"a", "c", "a2", "b"}, ids(out))
	assert.Equal(t, "b", in[0].Piece.ID, "input untouched")
}

func TestWidthFirst_OrderPieces(t *testing.T) {
	p, _ := For(model.StrategyWidthFirst)
	out := p.OrderPieces([]model.PieceUnit{
		unit("a", 800, 100, 0),
		unit("b", 300, 500, 0),
		unit("c", 400, 500, 0),
	})
	assert.Equal(t, []string{"c", "b", "a"}, ids(out))
}

func TestWasteMinimize_OrderPieces(t *testing.T) {
	p, _ := For(model.StrategyWasteMinimize)
	out := p.OrderPieces([]model.PieceUnit{
		unit("sq", 200, 200, 0),   // 40000, long 200
		unit("long", 400, 100, 0), // 40000, long 400
		unit("big", 500, 500, 0),
		unit("long", 400, 100, 1),
	})
	assert.Equal(t, []string{"big", "long", "long", "sq"}, ids(out))
	assert.Equal(t, 0, out[1].Unit)
	assert.Equal(t, 1, out[2].Unit)
}

func TestOrderFreeRects(t *testing.T) {
	rects := func() []model.FreeRect {
		return []model.FreeRect{
			{Rect: model.Rect{X: 0, Y: 500, Width: 1000, Height: 500}, Instance: 0, Index: 0},
			{Rect: model.Rect{X: 600, Y: 0, Width: 400, Height: 500}, Instance: 0, Index: 1},
			{Rect: model.Rect{X: 0, Y: 0, Width: 100, Height: 100}, Instance: 1, Index: 0},
		}
	}

	lf, _ := For(model.StrategyLengthFirst)
	r := rects()
	lf.OrderFreeRects(r)
	assert.Equal(t, 600.0, r[0].X)
	assert.Equal(t, 500.0, r[1].Y)
	assert.Equal(t, 1, r[2].Instance)

	wf, _ := For(model.StrategyWidthFirst)
	r = rects()
	wf.OrderFreeRects(r)
	assert.Equal(t, 0.0, r[0].X)
	assert.Equal(t, 600.0, r[1].X)

	wm, _ := For(model.StrategyWasteMinimize)
	r = rects()
	wm.OrderFreeRects(r)
	assert.Equal(t, 1, r[0].Instance, "smallest rect first, across instances")
	assert.Equal(t, 600.0, r[1].X)
}

func TestOrientations(t *testing.T) {
	base, _ := For(model.StrategyWasteMinimize)
	grain, _ := For(model.StrategyGrainRespect)

	cases := []struct {
		piece, panel              model.Grain
		baseNormal, baseRotated   bool
		grainNormal, grainRotated bool
	}{
		{model.GrainNone, model.GrainNone, true, true, true, true},
		{model.GrainNone, model.GrainVertical, true, true, true, false},
		{model.GrainVertical, model.GrainNone, true, false, true, false},
		{model.GrainVertical, model.GrainVertical, true, false, true, false},
		{model.GrainVertical, model.GrainHorizontal, false, false, false, false},
	}
	for _, c := range cases {
		n, r := base.Orientations(c.piece, c.panel)
		assert.Equal(t, c.baseNormal, n, "%v on %v", c.piece, c.panel)
		assert.Equal(t, c.baseRotated, r, "%v on %v", c.piece, c.panel)
		n, r = grain.Orientations(c.piece, c.panel)
		assert.Equal(t, c.grainNormal, n, "%v on %v", c.piece, c.panel)
		assert.Equal(t, c.grainRotated, r, "%v on %v", c.piece, c.panel)
	}
}

func TestHorizontalFirst(t *testing.T) {
	free := model.Rect{Width: 1000, Height: 1000}
	lf, _ := For(model.StrategyLengthFirst)
	wf, _ := For(model.StrategyWidthFirst)
	wm, _ := For(model.StrategyWasteMinimize)

	assert.True(t, lf.HorizontalFirst(free, 100, 900))
	assert.False(t, wf.HorizontalFirst(free, 900, 100))
	assert.False(t, wm.HorizontalFirst(free, 100, 900))
	assert.True(t, wm.HorizontalFirst(free, 900, 100))
}
