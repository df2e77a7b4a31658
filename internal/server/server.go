// Package server exposes the fixer pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dm/esfixer/internal/client"
	"github.com/dm/esfixer/internal/model"
	"github.com/dm/esfixer/internal/validator"
)

const maxHistoryLimit = 100

// Pipeline is the orchestrator surface the HTTP API drives.
type Pipeline interface {
	Diagnose(ctx context.Context) ([]model.Issue, error)
	GenerateFix(ctx context.Context, issue model.Issue) model.FixProposal
	Benchmark(ctx context.Context, fix model.FixProposal) model.BenchmarkResult
	ApplyFix(ctx context.Context, fix model.FixProposal) (model.ApplyResult, error)
	RunCycle(ctx context.Context) model.CycleResult
	History(ctx context.Context, limit int) []model.HistoryRecord
}

// ClusterInfo reports cluster identity for the health check.
type ClusterInfo interface {
	Info(ctx context.Context) (*client.ClusterInfo, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Addr         string
	APIPrefix    string
	HistoryLimit int
}

// Server provides the HTTP endpoints.
type Server struct {
	echo     *echo.Echo
	pipeline Pipeline
	cluster  ClusterInfo
	logger   *zap.Logger
	config   Config
}

// New creates a Server.
func New(pipeline Pipeline, cluster ClusterInfo, logger *zap.Logger, cfg Config) (*Server, error) {
	if pipeline == nil {
		return nil, errors.New("pipeline cannot be nil")
	}
	if cluster == nil {
		return nil, errors.New("cluster info cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger is required for request tracking and debugging")
	}
	if cfg.Addr == "" {
		cfg.Addr = "0.0.0.0:8000"
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger.Named("http")))
	e.Use(instrument())

	s := &Server{
		echo:     e,
		pipeline: pipeline,
		cluster:  cluster,
		logger:   logger.Named("server"),
		config:   cfg,
	}
	s.registerRoutes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleHealth)
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group(s.config.APIPrefix)
	v1.GET("/diagnose", s.handleDiagnose)
	v1.POST("/generate-fix", s.handleGenerateFix)
	v1.POST("/benchmark", s.handleBenchmark)
	v1.POST("/apply-fix", s.handleApplyFix)
	v1.POST("/agent/run-cycle", s.handleRunCycle)
	v1.GET("/agent/history", s.handleHistory)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	ClusterName string `json:"cluster_name,omitempty"`
	Error       string `json:"error,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	info, err := s.cluster.Info(c.Request().Context())
	if err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{
			Status:  "error",
			Version: "unknown",
			Error:   err.Error(),
		})
	}
	return c.JSON(http.StatusOK, HealthResponse{
		Status:      "ok",
		Version:     info.Version.Number,
		ClusterName: info.ClusterName,
	})
}

func (s *Server) handleDiagnose(c echo.Context) error {
	issues, err := s.pipeline.Diagnose(c.Request().Context())
	if err != nil {
		s.logger.Error("diagnose failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusServiceUnavailable, fmt.Sprintf("diagnosis failed: %v", err))
	}
	if issues == nil {
		issues = []model.Issue{}
	}
	return c.JSON(http.StatusOK, issues)
}

func (s *Server) handleGenerateFix(c echo.Context) error {
	var issue model.Issue
	if err := bindAndValidate(c, &issue); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.pipeline.GenerateFix(c.Request().Context(), issue))
}

func (s *Server) handleBenchmark(c echo.Context) error {
	var fix model.FixProposal
	if err := bindAndValidate(c, &fix); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.pipeline.Benchmark(c.Request().Context(), fix))
}

func (s *Server) handleApplyFix(c echo.Context) error {
	var fix model.FixProposal
	if err := bindAndValidate(c, &fix); err != nil {
		return err
	}

	result, err := s.pipeline.ApplyFix(c.Request().Context(), fix)
	if err != nil {
		if errors.Is(err, validator.ErrInvalidSyntax) {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid Elasticsearch Syntax")
		}
		s.logger.Error("apply failed", zap.String("issue_id", fix.IssueID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if result.Status == model.ApplyError {
		return c.JSON(http.StatusInternalServerError, result)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleRunCycle(c echo.Context) error {
	res := s.pipeline.RunCycle(c.Request().Context())
	if res.Status == model.CycleError {
		return c.JSON(http.StatusInternalServerError, res)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleHistory(c echo.Context) error {
	limit := s.config.HistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be an integer")
		}
		limit = n
	}
	limit = max(1, min(limit, maxHistoryLimit))

	return c.JSON(http.StatusOK, s.pipeline.History(c.Request().Context(), limit))
}

func bindAndValidate(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// Start serves until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.config.Addr))
	if err := s.echo.Start(s.config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
