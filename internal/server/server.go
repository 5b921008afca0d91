// ABOUTME: gin HTTP wrapper around the session service
// ABOUTME: JSON routes to start consultations, answer questions and fetch results
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/harper/dermacheck/internal/core"
	"github.com/harper/dermacheck/internal/service"
	"go.uber.org/zap"
)

// ReanswerHint accompanies every rejected answer
const ReanswerHint = "please re-answer the question"

// Server holds the state for the REST API server.
type Server struct {
	svc    *service.Service
	router *gin.Engine
	logger *zap.Logger
}

// AnswerRequest is the body of POST /api/sessions/:id/answers.
// Ident defaults to the pending question.
type AnswerRequest struct {
	Ident string `json:"ident"`
	Value string `json:"value" binding:"required"`
}

// NewServer creates a new Server instance.
func NewServer(svc *service.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		svc:    svc,
		router: r,
		logger: logger,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router for embedding and tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is canceled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	api := s.router.Group("/api")
	api.POST("/sessions", s.handleCreate)
	api.GET("/sessions", s.handleList)
	api.GET("/sessions/:id", s.handleStatus)
	api.DELETE("/sessions/:id", s.handleDelete)
	api.POST("/sessions/:id/answers", s.handleAnswer)
	api.GET("/sessions/:id/diagnosis", s.handleDiagnosis)
	api.GET("/sessions/:id/firings", s.handleFirings)
}

// Health check
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "knowledge": s.svc.Knowledge().Summary()})
}

func (s *Server) handleCreate(c *gin.Context) {
	st, err := s.svc.Create(c.Request.Context())
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

func (s *Server) handleList(c *gin.Context) {
	records, err := s.svc.List(c.Request.Context())
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": records})
}

func (s *Server) handleStatus(c *gin.Context) {
	st, err := s.svc.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleDelete(c *gin.Context) {
	if err := s.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleAnswer(c *gin.Context) {
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	if req.Ident == "" {
		st, err := s.svc.Status(ctx, id)
		if err != nil {
			s.handleError(c, err)
			return
		}
		if st.State.Kind != core.StateNeedInput {
			c.JSON(http.StatusConflict, gin.H{"error": "no question is pending", "state": st.State})
			return
		}
		req.Ident = st.State.Question.Ident
	}

	st, err := s.svc.Answer(ctx, id, req.Ident, req.Value)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleDiagnosis(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	report, err := s.svc.Diagnosis(ctx, id)
	if err != nil {
		s.handleError(c, err)
		return
	}
	if c.Query("explain") != "true" {
		c.JSON(http.StatusOK, report)
		return
	}

	exp, err := s.svc.Explain(ctx, id)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report, "explanation": exp})
}

func (s *Server) handleFirings(c *gin.Context) {
	firings, err := s.svc.Firings(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"firings": firings})
}

// handleError maps service errors to HTTP responses
func (s *Server) handleError(c *gin.Context, err error) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		body := gin.H{"error": verr.Error(), "ident": verr.Ident, "hint": ReanswerHint}
		if verr.Suggestion != "" {
			body["suggestion"] = verr.Suggestion
		}
		c.JSON(http.StatusUnprocessableEntity, body)
	case errors.Is(err, service.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotCompleted), errors.Is(err, core.ErrSessionFailed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
