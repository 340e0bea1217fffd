package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"meal-planner-backend/internal/auth"
	"meal-planner-backend/internal/mealplan"
	"meal-planner-backend/internal/user"
)

// Server wires the HTTP routes to the underlying services.
type Server struct {
	http  *http.Server
	log   *zap.SugaredLogger
	users *user.Service
	plans *mealplan.Service
	auth  *auth.Manager
}

func New(addr string, users *user.Service, plans *mealplan.Service, tokens *auth.Manager, logger *zap.SugaredLogger) *Server {
	s := &Server{
		log:   logger,
		users: users,
		plans: plans,
		auth:  tokens,
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))
	s.routes(router)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes(router *gin.Engine) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", s.handleRegister)
	authGroup.POST("/login", s.handleLogin)
	authGroup.POST("/refresh", s.handleRefresh)
	authGroup.POST("/logout", auth.Middleware(s.auth), s.handleLogout)

	plans := api.Group("/users/:userId/meal-plans", auth.Middleware(s.auth))
	plans.POST("", s.handleCreatePlan)
	plans.GET("", s.handleListPlans)
	plans.GET("/latest", s.handleLatestPlan)
	plans.GET("/:planId", s.handleGetPlan)
	plans.POST("/:planId/regenerate", s.handleRegeneratePlan)
	plans.DELETE("/:planId", s.handleDeletePlan)
}

// Run serves until the context is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	s.log.Infow("http server listening", "addr", s.http.Addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

func requestLogger(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Infow("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
