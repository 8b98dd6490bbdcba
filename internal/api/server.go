package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"sceneforge/internal/generation"
	"sceneforge/internal/logging"
	"sceneforge/internal/services"
	"sceneforge/internal/store"
)

// Server serves the HTTP surface of the engine.
type Server struct {
	engine *gin.Engine
	store  *store.Store
	orch   *generation.Orchestrator
	logger *slog.Logger
}

// New builds a server around the store and orchestrator. A nil logger
// disables request logging.
func New(st *store.Store, orch *generation.Orchestrator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	s := &Server{
		engine: engine,
		store:  st,
		orch:   orch,
		logger: logger.With(logging.String(logging.FieldComponent, "api")),
	}
	engine.Use(gin.Recovery(), s.requestLogger())

	engine.GET("/healthz", s.handleHealth)
	v1 := engine.Group("/v1")
	{
		v1.POST("/projects", s.handleCreateProject)
		v1.POST("/projects/:projectID/generations", s.handleGenerate)
		v1.GET("/projects/:projectID", s.handleGetProject)
		v1.GET("/projects/:projectID/scenes", s.handleListScenes)
		v1.GET("/projects/:projectID/ledger/:key", s.handleGetLedger)
	}
	return s
}

// Handler returns the underlying HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the context is cancelled, then drains in-flight
// requests for up to ten seconds.
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	s.logger.Info("http server listening", logging.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// requestLogger stamps a request id into the context and logs one line
// per request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		ctx := services.WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)

		started := time.Now()
		c.Next()
		s.logger.Info("request",
			logging.String(logging.FieldRequestID, requestID),
			logging.String("method", c.Request.Method),
			logging.String("path", c.FullPath()),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("elapsed", time.Since(started)))
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) renderError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(services.HTTPStatus(err), errorResponse{Error: err.Error()})
}

type createProjectRequest struct {
	ID      string `json:"id"`
	OwnerID string `json:"ownerId"`
}

func (s *Server) handleCreateProject(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, services.Wrap(services.ErrValidation, "api", "create project", "invalid request body", err))
		return
	}
	project, err := s.store.CreateProject(c.Request.Context(), req.ID, req.OwnerID)
	if err != nil {
		s.renderError(c, services.Wrap(services.ErrValidation, "api", "create project", "create failed", err))
		return
	}
	c.JSON(http.StatusCreated, projectView(project))
}

func (s *Server) handleGenerate(c *gin.Context) {
	var req generation.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, services.Wrap(services.ErrValidation, "api", "generate", "invalid request body", err))
		return
	}
	req.ProjectID = c.Param("projectID")

	result, err := s.orch.Handle(c.Request.Context(), req)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetProject(c *gin.Context) {
	project, err := s.store.GetProject(c.Request.Context(), c.Param("projectID"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, projectView(project))
}

func (s *Server) handleListScenes(c *gin.Context) {
	projectID := c.Param("projectID")
	if _, err := s.store.GetProject(c.Request.Context(), projectID); err != nil {
		s.renderError(c, err)
		return
	}
	includeDeleted := c.Query("includeDeleted") == "1"
	scenes, err := s.store.ListScenes(c.Request.Context(), projectID, includeDeleted)
	if err != nil {
		s.renderError(c, err)
		return
	}
	views := make([]sceneJSON, 0, len(scenes))
	for _, scene := range scenes {
		views = append(views, sceneView(scene))
	}
	c.JSON(http.StatusOK, gin.H{"scenes": views})
}

func (s *Server) handleGetLedger(c *gin.Context) {
	record, err := s.store.GetLedgerRecord(c.Request.Context(), c.Param("projectID"), c.Param("key"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	if record == nil {
		s.renderError(c, services.Wrap(services.ErrNotFound, "api", "get ledger",
			"no record for key "+c.Param("key"), nil))
		return
	}
	c.JSON(http.StatusOK, ledgerView(record))
}

func (s *Server) handleHealth(c *gin.Context) {
	health, err := s.store.CheckHealth(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": health})
}
