// Package server exposes the prediction tool, the compound database and the auth flows
// over HTTP with gin.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Skufu/excipredict/internal/analytics"
	"github.com/Skufu/excipredict/internal/auth"
	"github.com/Skufu/excipredict/internal/dataset"
	"github.com/Skufu/excipredict/internal/logging"
	"github.com/Skufu/excipredict/internal/prediction"
	"github.com/Skufu/excipredict/internal/store"
	"github.com/Skufu/excipredict/internal/table"
)

const maxBodyBytes = 1 << 20 // 1MB

type Deps struct {
	// DB is nil when the database is disabled.
	DB         store.HealthChecker
	Auth       *auth.Service
	Records    []dataset.Record
	Pipeline   *prediction.Pipeline
	Analytics  *analytics.Service
	Logger     *zap.Logger
	StaticRoot string
}

type Server struct {
	deps Deps

	tableMu sync.Mutex
	table   *table.Engine
}

func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	engine, err := table.New(deps.Records)
	if err != nil {
		return nil, fmt.Errorf("build compound table: %w", err)
	}
	return &Server{deps: deps, table: engine}, nil
}

func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(
		logging.Middleware(s.deps.Logger),
		gin.Recovery(),
		limitBodySize(maxBodyBytes),
		cors.New(cors.Config{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
			MaxAge:       12 * time.Hour,
		}),
	)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", s.handleReady)

	s.registerPages(router)

	api := router.Group("/api")
	api.GET("/session", s.handleSession)

	authGroup := api.Group("/auth")
	authGroup.POST("/login", s.handleLogin)
	authGroup.POST("/signup", s.handleSignup)
	authGroup.POST("/logout", s.handleLogout)
	authGroup.POST("/forgot", s.handleForgot)
	authGroup.POST("/reset", s.handleReset)

	protected := api.Group("", s.requireSession(false))
	protected.GET("/compounds", s.handleCompounds)
	protected.GET("/suggestions", s.handleSuggestions)
	protected.GET("/excipients", s.handleExcipients)
	protected.POST("/predictions", s.handlePredict)
	protected.GET("/predictions/state", s.handlePredictionState)
	protected.GET("/analytics", s.handleAnalytics)

	return router
}

func (s *Server) handleReady(c *gin.Context) {
	resp := gin.H{"status": "ok", "session": string(s.deps.Auth.Store().Current().Status)}
	if s.deps.DB == nil {
		resp["db"] = "disabled"
		c.JSON(http.StatusOK, resp)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.deps.DB.Ping(ctx); err != nil {
		resp["status"] = "degraded"
		resp["db"] = fmt.Sprintf("unhealthy: %v", err)
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	resp["db"] = "ok"
	c.JSON(http.StatusOK, resp)
}

func limitBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
