package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/astromatch/astromatch/internal/interfaces"
	"github.com/astromatch/astromatch/internal/middleware"
)

// HealthChecker is a dependency the health endpoint probes.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Server wires the matching core's operations onto the HTTP surface.
type Server struct {
	users     interfaces.UserReader
	discovery interfaces.CandidateFinder
	scorer    interfaces.CompatibilityScorer
	requests  interfaces.RequestLifecycle
	matches   interfaces.MatchManager
	invites   interfaces.InviteLimiter
	edges     interfaces.EdgeRecorder

	health map[string]HealthChecker
}

type Config struct {
	Users     interfaces.UserReader
	Discovery interfaces.CandidateFinder
	Scorer    interfaces.CompatibilityScorer
	Requests  interfaces.RequestLifecycle
	Matches   interfaces.MatchManager
	Invites   interfaces.InviteLimiter
	Edges     interfaces.EdgeRecorder
	Health    map[string]HealthChecker
}

func NewServer(cfg Config) *Server {
	return &Server{
		users:     cfg.Users,
		discovery: cfg.Discovery,
		scorer:    cfg.Scorer,
		requests:  cfg.Requests,
		matches:   cfg.Matches,
		invites:   cfg.Invites,
		edges:     cfg.Edges,
		health:    cfg.Health,
	}
}

// Router builds the gin engine with the full middleware chain.
func (s *Server) Router(serviceName string) *gin.Engine {
	router := gin.New()
	router.Use(
		otelgin.Middleware(serviceName),
		middleware.CorrelationID(),
		middleware.RequestLogging(),
		middleware.ErrorHandler(),
		middleware.ClientRateLimit(60, time.Second),
	)

	s.registerRoutes(router)
	return router
}

func (s *Server) registerRoutes(router *gin.Engine) {
	router.GET("/health", s.handleHealth)

	users := router.Group("/users/:id")
	{
		users.GET("", s.handleGetUser)
		users.GET("/candidates", s.handleGetCandidates)
		users.GET("/matches", s.handleListMatches)
		users.PUT("/chart", s.handleSaveChart)
		users.PUT("/questionnaire", s.handleSaveQuestionnaire)
	}

	router.GET("/compatibility/:userA/:userB", s.handleComputeCompatibility)

	requests := router.Group("/match-requests")
	{
		requests.POST("", s.handleCreateMatchRequest)
		requests.POST("/:id/respond", s.handleRespondToMatchRequest)
		requests.DELETE("/:id", s.handleDeleteMatchRequest)
	}

	router.POST("/invites/consume", s.handleConsumeInvite)
	router.POST("/unmatch", s.handleUnmatch)
	router.POST("/swipes", s.handleRecordSwipe)
	router.POST("/blocks", s.handleRecordBlock)
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx := c.Request.Context()
	status := http.StatusOK
	checks := make(gin.H, len(s.health))

	for name, checker := range s.health {
		if err := checker.Health(ctx); err != nil {
			checks[name] = gin.H{"status": "down", "error": err.Error()}
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = gin.H{"status": "up"}
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "degraded"
	}
	c.JSON(status, gin.H{"status": overall, "checks": checks})
}
