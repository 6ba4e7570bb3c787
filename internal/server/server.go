package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"worklenz/finance/internal/config"
	"worklenz/finance/internal/finance"
	"worklenz/finance/internal/storage/sqlite"
)

// Server provides HTTP handlers for the project finance backend.
type Server struct {
	engine  *gin.Engine
	store   *sqlite.Store
	finance *finance.Engine
	logger  *slog.Logger

	defaults config.ProjectConfig
}

// New constructs the HTTP server with routes and middleware configured.
// defaults fill in the currency and hours per day of new projects.
func New(store *sqlite.Store, logger *slog.Logger, defaults config.ProjectConfig) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/api/healthz", "/metrics"))

	srv := &Server{
		engine:  router,
		store:   store,
		finance: finance.NewEngine(logger),
		logger:  logger,

		defaults: defaults,
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API handlers together.
func (s *Server) registerRoutes() {
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)

		api.GET("/job-titles", s.handleListJobTitles)
		api.POST("/job-titles", s.handleCreateJobTitle)
		api.POST("/team-members", s.handleCreateTeamMember)
		api.GET("/priorities", s.handleListPriorities)

		projects := api.Group("/projects")
		{
			projects.GET("", s.handleListProjects)
			projects.POST("", s.handleCreateProject)
			projects.GET(":id", s.handleGetProject)
			projects.PUT(":id", s.handleUpdateProject)
			projects.DELETE(":id", s.handleDeleteProject)
			projects.GET(":id/statuses", s.handleListStatuses)
			projects.GET(":id/phases", s.handleListPhases)
			projects.POST(":id/phases", s.handleCreatePhase)
			projects.GET(":id/tasks", s.handleListTasks)
			projects.POST(":id/tasks", s.handleCreateTask)

			projects.GET(":id/members", s.handleListMembers)
			projects.POST(":id/members", s.handleAddMember)
			projects.GET(":id/members/:memberId/rate", s.handleResolveRate)
			projects.PUT(":id/members/:memberId/rate-card", s.handleToggleMemberRateCard)

			projects.GET(":id/rate-cards", s.handleListRateCards)
			projects.PUT(":id/rate-cards", s.handleUpsertRateCards)
			projects.DELETE(":id/rate-cards", s.handleDeleteProjectRateCards)
			projects.POST(":id/rate-cards/import", s.handleImportRateCard)

			projects.GET(":id/finance/tasks", s.handleFinanceTasks)
			projects.GET(":id/finance/tasks/:taskId/subtasks", s.handleFinanceSubtasks)
			projects.PUT(":id/finance/settings", s.handleUpdateFinanceSettings)
		}

		api.GET("/rate-cards", s.handleListRateCardLibrary)
		api.POST("/rate-cards", s.handleCreateRateCard)
		api.GET("/rate-cards/:id", s.handleGetRateCard)
		api.PUT("/rate-cards/:id", s.handleUpdateRateCard)
		api.DELETE("/rate-cards/:id", s.handleDeleteRateCard)

		api.PUT("/project-rate-cards/:id", s.handleUpdateRateCardRole)
		api.DELETE("/project-rate-cards/:id", s.handleDeleteRateCardRole)

		api.PUT("/tasks/:id", s.handleUpdateTask)
		api.DELETE("/tasks/:id", s.handleArchiveTask)
		api.POST("/tasks/:id/assignees", s.handleAssignTask)
		api.POST("/tasks/:id/work-logs", s.handleCreateWorkLog)
		api.DELETE("/work-logs/:id", s.handleDeleteWorkLog)

		api.GET("/finance/tasks/:id/breakdown", s.handleTaskBreakdown)
		api.PUT("/finance/tasks/:id/fixed-cost", s.handleUpdateFixedCost)
	}

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})
}

// handleHealth provides a basic readiness endpoint.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseID reads a path parameter and rejects blank identifiers.
func parseID(c *gin.Context, name string) (string, bool) {
	id := strings.TrimSpace(c.Param(name))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identifier"})
		return "", false
	}
	return id, true
}

// statusFor maps storage and engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, sqlite.ErrNotFound), errors.Is(err, finance.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, sqlite.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, sqlite.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// fail responds with the status that matches err.
func (s *Server) fail(c *gin.Context, err error) {
	s.respondError(c, statusFor(err), err)
}

// respondError logs the error and returns a JSON payload.
func (s *Server) respondError(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	s.logger.Warn("request rejected", slog.String("path", c.FullPath()), slog.Int("status", status), slog.String("error", err.Error()))
	c.JSON(status, gin.H{"error": err.Error()})
}

// respondSuccess writes payload as JSON, or only the status when payload is nil.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}
