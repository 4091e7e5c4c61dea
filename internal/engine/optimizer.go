package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"k8s.io/klog/v2"

	"github.com/piwi3910/PanelCut/internal/catalog"
	"github.com/piwi3910/PanelCut/internal/model"
	"github.com/piwi3910/PanelCut/internal/strategy"
)

// Recorder receives run-level observations. telemetry.Metrics implements it.
type Recorder interface {
	ObserveRun(result model.OptimizationResult, elapsed time.Duration)
	CacheLookup(hit bool)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRun(model.OptimizationResult, time.Duration) {}
func (nopRecorder) CacheLookup(bool)                                   {}

// Request is the input of one optimization run.
type Request struct {
	Pieces    []model.Piece
	Panels    []model.Panel
	Strategy  model.Strategy
	KerfWidth float64 // mm, >= 0
	// Timeout bounds the packing phase. Zero means no limit beyond ctx.
	Timeout time.Duration
}

// Optimizer runs the guillotine bin-packing algorithm.
type Optimizer struct {
	Settings model.Settings
	cache    *Cache
	recorder Recorder
}

func New(settings model.Settings) *Optimizer {
	return &Optimizer{Settings: settings, recorder: nopRecorder{}}
}

// WithCache enables result caching for repeated identical requests.
func (o *Optimizer) WithCache(c *Cache) *Optimizer {
	o.cache = c
	return o
}

// WithRecorder sets the sink for run metrics.
func (o *Optimizer) WithRecorder(r Recorder) *Optimizer {
	if r == nil {
		r = nopRecorder{}
	}
	o.recorder = r
	return o
}

// Optimize allocates the requested pieces to panels. Malformed input is
// rejected with a *model.Error before any panel is opened. Pieces that cannot
// be placed are never an error; they are listed in the result's
// UnplacedPieces with a reason. When ctx is cancelled or the request timeout
// expires mid-run, the plans built so far are returned and every piece not
// yet attempted is reported as cancelled.
func (o *Optimizer) Optimize(ctx context.Context, req Request) (model.OptimizationResult, error) {
	logger := klog.FromContext(ctx)

	if req.KerfWidth < 0 || math.IsNaN(req.KerfWidth) || math.IsInf(req.KerfWidth, 0) {
		return model.OptimizationResult{}, &model.Error{
			Code:    model.CodeInvalidKerf,
			Field:   "kerfWidth",
			Message: fmt.Sprintf("kerf width must be a non-negative number, got %v", req.KerfWidth),
		}
	}
	if t := o.Settings.EdgeTrim; t < 0 || math.IsNaN(t) || math.IsInf(t, 0) {
		return model.OptimizationResult{}, &model.Error{
			Code:    model.CodeInvalidDimensions,
			Field:   "edgeTrim",
			Message: fmt.Sprintf("edge trim must be a non-negative number, got %v", t),
		}
	}
	policy, err := strategy.For(req.Strategy)
	if err != nil {
		return model.OptimizationResult{}, err
	}
	if err := catalog.Verify(req.Pieces, req.Panels); err != nil {
		return model.OptimizationResult{}, err
	}

	var key uint64
	if o.cache != nil {
		key = CacheKey(req, o.Settings.EdgeTrim)
		if cached, ok := o.cache.Get(key); ok {
			o.recorder.CacheLookup(true)
			cached.Cached = true
			logger.V(2).Info("Returning cached optimization result", "strategy", req.Strategy, "panels", len(cached.CuttingPlans))
			return cached, nil
		}
		o.recorder.CacheLookup(false)
	}

	runCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	units := catalog.Expand(req.Pieces)
	start := time.Now()
	a := newAllocator(policy, req.Panels, req.KerfWidth, o.Settings, logger)
	run := a.run(runCtx, units)
	elapsed := time.Since(start)

	result := buildResult(policy.Strategy(), req.KerfWidth, req.Panels, run, elapsed)
	o.recorder.ObserveRun(result, elapsed)

	if o.cache != nil && !run.cancelled {
		o.cache.Put(key, result)
	}

	logger.V(2).Info("Optimization finished",
		"strategy", result.Strategy,
		"units", len(units),
		"placed", result.PlacedCount(),
		"unplaced", len(result.UnplacedPieces),
		"panels", len(result.CuttingPlans),
		"efficiency", fmt.Sprintf("%.2f", result.Efficiency),
		"cancelled", run.cancelled,
		"elapsed", elapsed,
	)
	return result, nil
}
