// Package server exposes the simulation core over HTTP. The wire surface is
// deliberately thin: validation, run submission, scenario what-if analysis
// and read-only result access for the chart collaborator.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Aidin1998/riskfolio/internal/persistence"
	"github.com/Aidin1998/riskfolio/internal/service"
)

// HistoryStore is the optional read side of the persistence collaborator.
type HistoryStore interface {
	Recent(ctx context.Context, limit int) ([]persistence.RunRecord, error)
}

// Server is the HTTP boundary around the simulation service.
type Server struct {
	router   *gin.Engine
	logger   *zap.Logger
	svc      *service.Service
	history  HistoryStore
	upgrader websocket.Upgrader
}

// NewServer wires routes and middleware. history may be nil.
func NewServer(logger *zap.Logger, svc *service.Service, history HistoryStore) *Server {
	s := &Server{
		logger:  logger,
		svc:     svc,
		history: history,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/simulations", s.runSimulation)
		v1.POST("/simulations/validate", s.validateParameters)
		v1.GET("/simulations/:id", s.getSimulation)
		v1.DELETE("/simulations/:id", s.cancelSimulation)
		v1.GET("/simulations/:id/progress", s.streamProgress)
		v1.GET("/simulations/:id/analysis", s.analyzeSimulation)
		v1.POST("/scenarios", s.createScenario)
		v1.POST("/scenarios/:id/simulate", s.simulateScenario)
		v1.POST("/scenarios/compare", s.compareScenarios)
		v1.GET("/history", s.listHistory)
	}

	s.router = router
	return s
}

// Run starts the HTTP listener.
func (s *Server) Run(addr string) error {
	s.logger.Info("HTTP server listening", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Router exposes the underlying engine for tests.
func (s *Server) Router() *gin.Engine { return s.router }
