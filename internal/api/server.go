// Package api exposes the protocol evidence engine over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/protocol-evidence-server/internal/domain"
	"github.com/protocol-evidence-server/internal/middleware"
	"github.com/protocol-evidence-server/internal/review"
)

// Synthesizer produces a protocol evidence synthesis for a validated request.
type Synthesizer interface {
	Synthesize(ctx context.Context, req *domain.SynthesisRequest) (*domain.ProtocolEvidenceSynthesis, error)
}

// RiskAssessor scores a patient risk profile.
type RiskAssessor interface {
	Assess(profile *domain.PatientRiskProfile) *domain.RiskAssessment
}

// HealthChecker reports database connectivity.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// BreakerReporter exposes the search-backend circuit breaker states.
type BreakerReporter interface {
	BreakerStates() map[string]string
}

// Dependencies are the collaborators the server routes requests to. Store
// fields may be nil; the corresponding endpoints then return 503.
type Dependencies struct {
	Synthesizer Synthesizer
	RiskScorer  RiskAssessor
	Syntheses   domain.SynthesisStore
	Assessments domain.AssessmentStore
	Reviews     review.Store
	Database    HealthChecker
	Search      BreakerReporter
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
	deps          Dependencies
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, logger *logrus.Logger, deps Dependencies) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger())
	router.Use(middleware.RequestTimeout(cfg.Server.WriteTimeout))
	router.Use(corsMiddleware())

	server := &Server{
		configManager: configManager,
		logger:        logger,
		router:        router,
		deps:          deps,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// Start starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// Handler returns the underlying router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.GET("/health", s.handleHealth)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/protocols/synthesize", s.handleSynthesizeProtocol)
		v1.POST("/risk/assess", s.handleAssessRisk)
		v1.GET("/syntheses", s.handleListSyntheses)
		v1.GET("/syntheses/:id", s.handleGetSynthesis)
		v1.GET("/assessments/:id", s.handleGetAssessment)
		v1.POST("/reviews", s.handleSaveReview)
		v1.GET("/reviews", s.handleListReviews)
		v1.GET("/reviews/export", s.handleExportReviews)
	}
}

// handleHealth reports readiness: database connectivity plus the state of
// the search-backend circuit breakers. A failing database degrades the
// status but still returns 200 so load balancers keep probing.
func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	checks := gin.H{}

	if s.deps.Database != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Database.Health(ctx); err != nil {
			status = "degraded"
			checks["database"] = err.Error()
		} else {
			checks["database"] = "ok"
		}
	}
	if s.deps.Search != nil {
		checks["search_breakers"] = s.deps.Search.BreakerStates()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"version":   "1.0.0",
		"checks":    checks,
	})
}

// handleSynthesizeProtocol runs a protocol evidence synthesis. The synthesis
// is persisted fire-and-forget: a store failure is logged and never changes
// the response.
func (s *Server) handleSynthesizeProtocol(c *gin.Context) {
	var req domain.SynthesisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}

	synthesis, err := s.deps.Synthesizer.Synthesize(c.Request.Context(), &req)
	if err != nil {
		if domain.IsValidation(err) {
			s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, err.Error())
			return
		}
		s.logger.WithError(err).Error("Protocol synthesis failed")
		s.respondError(c, http.StatusInternalServerError, domain.ErrCodeInternalServer, "synthesis failed")
		return
	}

	if s.deps.Syntheses != nil {
		go s.persistSynthesis(synthesis)
	}

	c.JSON(http.StatusOK, synthesis)
}

// handleAssessRisk scores a patient risk profile. Validation is the only
// client-visible failure; the scorer itself never errors.
func (s *Server) handleAssessRisk(c *gin.Context) {
	var profile domain.PatientRiskProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}
	if err := profile.Validate(); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, err.Error())
		return
	}

	assessment := s.deps.RiskScorer.Assess(&profile)

	if s.deps.Assessments != nil {
		go s.persistAssessment(assessment)
	}

	c.JSON(http.StatusOK, assessment)
}

// handleGetSynthesis returns a stored synthesis by ID.
func (s *Server) handleGetSynthesis(c *gin.Context) {
	if s.deps.Syntheses == nil {
		s.respondError(c, http.StatusServiceUnavailable, domain.ErrCodeDatabaseError, "persistence is not configured")
		return
	}

	synthesis, err := s.deps.Syntheses.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.respondError(c, http.StatusNotFound, domain.ErrCodeInvalidInput, "synthesis not found")
			return
		}
		s.logger.WithError(err).Error("Failed to load synthesis")
		s.respondError(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError, "failed to load synthesis")
		return
	}

	c.JSON(http.StatusOK, synthesis)
}

// handleListSyntheses returns stored syntheses for a condition, newest first.
func (s *Server) handleListSyntheses(c *gin.Context) {
	if s.deps.Syntheses == nil {
		s.respondError(c, http.StatusServiceUnavailable, domain.ErrCodeDatabaseError, "persistence is not configured")
		return
	}

	condition := c.Query("condition")
	if condition == "" {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "condition query parameter is required")
		return
	}
	limit := intQuery(c, "limit", 20, 100)
	offset := intQuery(c, "offset", 0, 1<<30)

	syntheses, err := s.deps.Syntheses.ListByCondition(c.Request.Context(), condition, limit, offset)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list syntheses")
		s.respondError(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError, "failed to list syntheses")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"condition": condition,
		"count":     len(syntheses),
		"syntheses": syntheses,
	})
}

// handleGetAssessment returns a stored risk assessment by ID.
func (s *Server) handleGetAssessment(c *gin.Context) {
	if s.deps.Assessments == nil {
		s.respondError(c, http.StatusServiceUnavailable, domain.ErrCodeDatabaseError, "persistence is not configured")
		return
	}

	assessment, err := s.deps.Assessments.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.respondError(c, http.StatusNotFound, domain.ErrCodeInvalidInput, "assessment not found")
			return
		}
		s.logger.WithError(err).Error("Failed to load assessment")
		s.respondError(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError, "failed to load assessment")
		return
	}

	c.JSON(http.StatusOK, assessment)
}

// reviewRequest is the payload for recording a clinician review. The system
// grade and condition are filled from the stored synthesis, so reviewers
// cannot misreport what the engine concluded.
type reviewRequest struct {
	SynthesisID    string `json:"synthesis_id" binding:"required"`
	ReviewerID     string `json:"reviewer_id" binding:"required"`
	ReviewerGrade  string `json:"reviewer_grade" binding:"required"`
	ReviewerAgreed bool   `json:"reviewer_agreed"`
	Notes          string `json:"notes"`
}

// handleSaveReview records a clinician's agreement or disagreement with a
// synthesis' overall grade.
func (s *Server) handleSaveReview(c *gin.Context) {
	if s.deps.Reviews == nil || s.deps.Syntheses == nil {
		s.respondError(c, http.StatusServiceUnavailable, domain.ErrCodeDatabaseError, "review store is not configured")
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}
	grade := domain.QualityGrade(req.ReviewerGrade)
	if !grade.IsValid() {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "unknown reviewer grade: "+req.ReviewerGrade)
		return
	}

	synthesis, err := s.deps.Syntheses.GetByID(c.Request.Context(), req.SynthesisID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.respondError(c, http.StatusNotFound, domain.ErrCodeInvalidInput, "synthesis not found")
			return
		}
		s.logger.WithError(err).Error("Failed to load synthesis for review")
		s.respondError(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError, "failed to load synthesis")
		return
	}

	rev := &review.Review{
		SynthesisID:    synthesis.ID,
		Condition:      synthesis.Condition,
		SystemGrade:    synthesis.OverallQuality.Grade,
		ReviewerGrade:  grade,
		ReviewerID:     req.ReviewerID,
		ReviewerAgreed: req.ReviewerAgreed,
		Notes:          req.Notes,
	}
	if err := s.deps.Reviews.Save(c.Request.Context(), rev); err != nil {
		s.logger.WithError(err).Error("Failed to save review")
		s.respondError(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError, "failed to save review")
		return
	}

	c.JSON(http.StatusCreated, rev)
}

// handleListReviews returns recorded clinician reviews with pagination.
func (s *Server) handleListReviews(c *gin.Context) {
	if s.deps.Reviews == nil {
		s.respondError(c, http.StatusServiceUnavailable, domain.ErrCodeDatabaseError, "review store is not configured")
		return
	}

	limit := intQuery(c, "limit", 50, 500)
	offset := intQuery(c, "offset", 0, 1<<30)

	reviews, err := s.deps.Reviews.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list reviews")
		s.respondError(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError, "failed to list reviews")
		return
	}
	total, err := s.deps.Reviews.Count(c.Request.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to count reviews")
		s.respondError(c, http.StatusInternalServerError, domain.ErrCodeDatabaseError, "failed to count reviews")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":   total,
		"count":   len(reviews),
		"reviews": reviews,
	})
}

// handleExportReviews streams the full review set as a JSON document.
func (s *Server) handleExportReviews(c *gin.Context) {
	if s.deps.Reviews == nil {
		s.respondError(c, http.StatusServiceUnavailable, domain.ErrCodeDatabaseError, "review store is not configured")
		return
	}

	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", `attachment; filename="reviews.json"`)
	if err := s.deps.Reviews.ExportJSON(c.Request.Context(), c.Writer); err != nil {
		s.logger.WithError(err).Error("Failed to export reviews")
	}
}

// persistSynthesis saves a synthesis on a detached context. Failures are
// logged only; the response to the caller is already decided.
func (s *Server) persistSynthesis(synthesis *domain.ProtocolEvidenceSynthesis) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.deps.Syntheses.Save(ctx, synthesis); err != nil {
		s.logger.WithError(err).WithField("synthesis_id", synthesis.ID).Warn("Failed to persist synthesis")
	}
}

// persistAssessment saves a risk assessment on a detached context.
func (s *Server) persistAssessment(assessment *domain.RiskAssessment) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.deps.Assessments.Save(ctx, assessment); err != nil {
		s.logger.WithError(err).WithField("assessment_id", assessment.ID).Warn("Failed to persist risk assessment")
	}
}

// respondError writes the common error envelope.
func (s *Server) respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"error":          message,
		"code":           code,
		"correlation_id": c.GetString("correlation_id"),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

// intQuery parses a bounded non-negative integer query parameter.
func intQuery(c *gin.Context, name string, def, max int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	var v int
	if _, err := fmt.Sscanf(raw, "%d", &v); err != nil || v < 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-API-Key")
		c.Header("Access-Control-Expose-Headers", "Content-Length")
		c.Header("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
