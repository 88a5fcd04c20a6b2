package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"QuantCore/internal/model"
	"QuantCore/internal/recorder"
	"QuantCore/internal/strategy"
)

// Engine is the part of the pipeline the API serves.
type Engine interface {
	Analyze(ctx context.Context, req *model.Request) (*model.Response, error)
	Backtest(ctx context.Context, req *model.BacktestRequest) (*model.BacktestResult, error)
	Registry() *strategy.Registry
}

// Server exposes the engine over HTTP.
type Server struct {
	engine   Engine
	recorder recorder.Recorder
	logger   *zap.Logger
	router   *gin.Engine
	started  time.Time
}

// NewServer wires the routes. rec may be nil.
func NewServer(eng Engine, rec recorder.Recorder, logger *zap.Logger) *Server {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{engine: eng, recorder: rec, logger: logger, router: r, started: time.Now()}
	s.setupRoutes(r)
	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.POST("/analyze", s.handleAnalyze)
		api.POST("/backtest", s.handleBacktest)
		api.GET("/strategies", s.handleStrategies)
		api.GET("/strategies/:id", s.handleStrategy)
		api.GET("/runs", s.handleRuns)
		api.GET("/health", s.handleHealthCheck)
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req model.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorPayload{Error: model.KindInvalidParameter, Details: err.Error()})
		return
	}

	resp, err := s.engine.Analyze(c.Request.Context(), &req)
	if err != nil {
		s.fail(c, "http", err)
		return
	}

	if err := s.recorder.RecordRun(&recorder.RunRecord{
		Source:     "http",
		Strategies: req.StrategyIDs,
		Response:   resp,
	}); err != nil {
		s.logger.Error("record run failed", zap.String("run_id", resp.RunID), zap.Error(err))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleBacktest(c *gin.Context) {
	var req model.BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorPayload{Error: model.KindInvalidParameter, Details: err.Error()})
		return
	}

	res, err := s.engine.Backtest(c.Request.Context(), &req)
	if err != nil {
		s.fail(c, "", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"strategies": s.engine.Registry().List()})
}

func (s *Server) handleStrategy(c *gin.Context) {
	def, err := s.engine.Registry().Lookup(c.Param("id"))
	if err != nil {
		s.fail(c, "", err)
		return
	}
	c.JSON(http.StatusOK, def)
}

func (s *Server) handleRuns(c *gin.Context) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, model.ErrorPayload{Error: model.KindInvalidParameter, Details: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	runs, err := s.recorder.RecentRuns(limit)
	if err != nil {
		s.fail(c, "", err)
		return
	}
	if runs == nil {
		runs = []recorder.RunSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleHealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"timestamp":  time.Now().Unix(),
		"uptime":     time.Since(s.started).Round(time.Second).String(),
		"strategies": len(s.engine.Registry().List()),
	})
}

// fail writes the error payload. A non-empty source also records the
// failure in the run history.
func (s *Server) fail(c *gin.Context, source string, err error) {
	p := model.Payload(err)
	status := StatusFor(p.Error)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	if source != "" {
		if rerr := s.recorder.RecordRunError(&recorder.RunErrorEvent{Source: source, Kind: p.Error, Details: p.Details}); rerr != nil {
			s.logger.Error("record run error failed", zap.Error(rerr))
		}
	}
	c.JSON(status, p)
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(k model.Kind) int {
	switch k {
	case model.KindDataValidation, model.KindDuplicateRecord, model.KindInvalidParameter:
		return http.StatusBadRequest
	case model.KindUnknownStrategy:
		return http.StatusNotFound
	case model.KindInsufficientData, model.KindInsufficientCapital:
		return http.StatusUnprocessableEntity
	case model.KindComputationTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}
