// Package server exposes the HTTP API: policy ingestion, claim intake,
// audit execution and auditor feedback.
package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/apca/claimaudit/internal/ingest"
	"github.com/apca/claimaudit/internal/model"
	"github.com/apca/claimaudit/internal/store"
	"github.com/apca/claimaudit/internal/vector"
)

// Auditor runs the audit workflow for one claim.
type Auditor interface {
	Audit(ctx context.Context, claim model.Claim) (model.AuditOutput, error)
}

// Deps carries everything the handlers need.
type Deps struct {
	Store    store.Store
	Chunks   vector.Store
	Pipeline *ingest.Pipeline
	Auditor  Auditor
	Logger   *zap.Logger
}

// Server wires the gin router to the application services.
type Server struct {
	router   *gin.Engine
	store    store.Store
	chunks   vector.Store
	pipeline *ingest.Pipeline
	auditor  Auditor
	logger   *zap.Logger
}

func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		router:   gin.New(),
		store:    deps.Store,
		chunks:   deps.Chunks,
		pipeline: deps.Pipeline,
		auditor:  deps.Auditor,
		logger:   logger,
	}
	s.router.Use(gin.Recovery(), s.requestLog())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/healthz", s.health)

	v1 := s.router.Group("/v1")
	{
		v1.POST("/policies", s.createPolicy)
		v1.GET("/policies", s.listPolicies)
		v1.GET("/policies/:id", s.getPolicy)
		v1.DELETE("/policies/:id", s.deletePolicy)

		v1.POST("/claims", s.createClaim)
		v1.GET("/claims", s.listClaims)
		v1.GET("/claims/:id", s.getClaim)
		v1.GET("/claims/:id/audits", s.listClaimAudits)

		v1.POST("/audits", s.runAudit)
		v1.GET("/audits/:id", s.getAudit)
		v1.GET("/audits/:id/feedback", s.listAuditFeedback)

		v1.POST("/feedback", s.createFeedback)
	}
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	s.logger.Info("http server listening", zap.String("addr", addr))
	return s.router.Run(addr)
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()))
	}
}

func errorJSON(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
