// Package server exposes the optimizer over a JSON HTTP API.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/piwi3910/PanelCut/internal/catalog"
	"github.com/piwi3910/PanelCut/internal/engine"
	"github.com/piwi3910/PanelCut/internal/export"
	"github.com/piwi3910/PanelCut/internal/model"
)

// Error codes for failures that are not domain validation errors.
const (
	CodeInvalidRequest  model.Code = "InvalidRequest"
	CodeRequestTooLarge model.Code = "RequestTooLarge"
	CodeNothingToExport model.Code = "NothingToExport"
	CodeInternal        model.Code = "Internal"
)

const (
	shutdownTimeout     = 10 * time.Second
	defaultMaxBodyBytes = 8 << 20
)

// Options holds the request defaults applied when a request leaves a field out.
type Options struct {
	Strategy  model.Strategy
	KerfWidth float64
	Timeout   time.Duration
	// MaxBodyBytes caps request bodies. Zero means 8 MiB.
	MaxBodyBytes int64
	// Gatherer backs GET /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// OptimizeRequest is the body of POST /v1/optimize.
type OptimizeRequest struct {
	Pieces    []catalog.RawPiece `json:"pieces"`
	Panels    []catalog.RawPanel `json:"panels"`
	Strategy  string             `json:"strategy,omitempty"`
	KerfWidth *float64           `json:"kerfWidth,omitempty"`
	TimeoutMs int64              `json:"timeoutMs,omitempty"`
}

// OptimizeResponse is the result plus the records dropped during validation.
type OptimizeResponse struct {
	model.OptimizationResult
	ValidationErrors []*model.Error `json:"validationErrors,omitempty"`
}

// CompareRequest is the body of POST /v1/compare. Without scenarios the
// default set around the request's strategy and kerf is compared.
type CompareRequest struct {
	OptimizeRequest
	Scenarios []engine.ComparisonScenario `json:"scenarios,omitempty"`
}

// CompareResponse lists one entry per scenario and the index of the best one.
type CompareResponse struct {
	Results          []engine.ComparisonResult `json:"results"`
	Best             int                       `json:"best"`
	ValidationErrors []*model.Error            `json:"validationErrors,omitempty"`
}

// Server routes HTTP requests to an optimizer.
type Server struct {
	optimizer *engine.Optimizer
	opts      Options
	router    *gin.Engine
}

// New builds the router. Call gin.SetMode beforehand to change the gin mode.
func New(optimizer *engine.Optimizer, opts Options) *Server {
	s := &Server{
		optimizer: optimizer,
		opts:      opts,
		router:    gin.New(),
	}
	if s.opts.MaxBodyBytes <= 0 {
		s.opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	s.router.Use(gin.Recovery(), requestLogger(), limitBody(s.opts.MaxBodyBytes))

	s.router.GET("/healthz", s.handleHealth)
	if opts.Gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := s.router.Group("/v1")
	v1.GET("/strategies", s.handleStrategies)
	v1.POST("/optimize", s.handleOptimize)
	v1.POST("/optimize/pdf", s.handleOptimizePDF)
	v1.POST("/compare", s.handleCompare)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	logger := klog.FromContext(ctx)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting HTTP server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// requestLogger attaches a request-scoped klog logger to the request context
// and logs each completed request at V(2).
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		logger := klog.LoggerWithValues(klog.Background(), "method", c.Request.Method, "path", c.Request.URL.Path)
		c.Request = c.Request.WithContext(klog.NewContext(c.Request.Context(), logger))

		c.Next()

		logger.V(2).Info("Handled request", "status", c.Writer.Status(), "latency", time.Since(start))
	}
}

func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"strategies": model.Strategies, "default": s.opts.Strategy})
}

func (s *Server) handleOptimize(c *gin.Context) {
	var req OptimizeRequest
	if !bind(c, &req) {
		return
	}
	resp, err := s.optimize(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleOptimizePDF(c *gin.Context) {
	var req OptimizeRequest
	if !bind(c, &req) {
		return
	}
	resp, err := s.optimize(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WritePDF(&buf, resp.OptimizationResult); err != nil {
		if errors.Is(err, export.ErrNothingToExport) {
			c.JSON(http.StatusUnprocessableEntity, &model.Error{Code: CodeNothingToExport, Message: err.Error()})
			return
		}
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="cutting-plan.pdf"`)
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

func (s *Server) handleCompare(c *gin.Context) {
	var req CompareRequest
	if !bind(c, &req) {
		return
	}
	strategy, kerf, timeout, err := s.defaults(req.OptimizeRequest)
	if err != nil {
		writeError(c, err)
		return
	}

	scenarios := req.Scenarios
	if len(scenarios) == 0 {
		scenarios = engine.BuildDefaultScenarios(strategy, kerf)
	}
	for i := range scenarios {
		parsed, err := model.ParseStrategy(string(scenarios[i].Strategy))
		if err != nil {
			writeError(c, err)
			return
		}
		scenarios[i].Strategy = parsed
		if scenarios[i].Name == "" {
			scenarios[i].Name = parsed.String()
		}
	}

	normalized := catalog.Normalize(req.Pieces, req.Panels)
	ctx := c.Request.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	results, err := s.optimizer.CompareScenarios(ctx, scenarios, normalized.Pieces, normalized.Panels)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, CompareResponse{
		Results:          results,
		Best:             engine.BestScenario(results),
		ValidationErrors: normalized.Errors,
	})
}

func (s *Server) optimize(ctx context.Context, req OptimizeRequest) (OptimizeResponse, error) {
	strategy, kerf, timeout, err := s.defaults(req)
	if err != nil {
		return OptimizeResponse{}, err
	}

	normalized := catalog.Normalize(req.Pieces, req.Panels)
	result, err := s.optimizer.Optimize(ctx, engine.Request{
		Pieces:    normalized.Pieces,
		Panels:    normalized.Panels,
		Strategy:  strategy,
		KerfWidth: kerf,
		Timeout:   timeout,
	})
	if err != nil {
		return OptimizeResponse{}, err
	}
	return OptimizeResponse{OptimizationResult: result, ValidationErrors: normalized.Errors}, nil
}

// defaults fills the request-level settings from the server options.
func (s *Server) defaults(req OptimizeRequest) (model.Strategy, float64, time.Duration, error) {
	strategy := s.opts.Strategy
	if req.Strategy != "" {
		parsed, err := model.ParseStrategy(req.Strategy)
		if err != nil {
			return "", 0, 0, err
		}
		strategy = parsed
	}

	kerf := s.opts.KerfWidth
	if req.KerfWidth != nil {
		kerf = *req.KerfWidth
	}

	timeout := s.opts.Timeout
	switch {
	case req.TimeoutMs < 0:
		return "", 0, 0, &model.Error{
			Code:    CodeInvalidRequest,
			Field:   "timeoutMs",
			Message: fmt.Sprintf("timeout must be >= 0, got %d", req.TimeoutMs),
		}
	case req.TimeoutMs > 0:
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}
	return strategy, kerf, timeout, nil
}

// bind decodes the JSON body into v and writes the error response itself
// when that fails.
func bind(c *gin.Context, v any) bool {
	err := c.ShouldBindJSON(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, &model.Error{
			Code:    CodeRequestTooLarge,
			Message: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
		})
		return false
	}
	writeError(c, &model.Error{Code: CodeInvalidRequest, Message: err.Error()})
	return false
}

// writeError maps domain errors to 400 and anything else to 500.
func writeError(c *gin.Context, err error) {
	if e, ok := model.AsError(err); ok {
		c.JSON(http.StatusBadRequest, e)
		return
	}
	klog.FromContext(c.Request.Context()).Error(err, "Request failed")
	c.JSON(http.StatusInternalServerError, &model.Error{Code: CodeInternal, Message: err.Error()})
}
