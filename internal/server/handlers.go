package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"meal-planner-backend/internal/auth"
	"meal-planner-backend/internal/mealplan"
	"meal-planner-backend/internal/spoonacular"
	"meal-planner-backend/internal/user"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	u, err := s.users.Register(c.Request.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		s.fail(c, err)
		return
	}

	tokens, err := s.auth.Issue(c.Request.Context(), u.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": u, "tokens": tokens})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	u, err := s.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		s.fail(c, err)
		return
	}

	tokens, err := s.auth.Issue(c.Request.Context(), u.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "tokens": tokens})
}

func (s *Server) handleRefresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tokens, err := s.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrTokenExpired) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
			return
		}
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

func (s *Server) handleLogout(c *gin.Context) {
	if err := s.auth.Revoke(c.Request.Context(), auth.UserID(c)); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleCreatePlan(c *gin.Context) {
	var req mealplan.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Days == 0 {
		req.Days = 1
	}

	planID, err := s.plans.CreatePlan(c.Request.Context(), auth.UserID(c), req)
	if err != nil {
		s.planError(c, err)
		return
	}

	plan, err := s.plans.GetPlanByID(c.Request.Context(), auth.UserID(c), planID)
	if err != nil {
		s.planError(c, err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}

func (s *Server) handleListPlans(c *gin.Context) {
	plans, err := s.plans.GetUserPlans(c.Request.Context(), auth.UserID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	if plans == nil {
		plans = []mealplan.PlanSummary{}
	}
	c.JSON(http.StatusOK, plans)
}

func (s *Server) handleLatestPlan(c *gin.Context) {
	plan, err := s.plans.GetLatestPlanForUser(c.Request.Context(), auth.UserID(c))
	if err != nil {
		s.planError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (s *Server) handleGetPlan(c *gin.Context) {
	planID, ok := pathID(c, "planId")
	if !ok {
		return
	}
	plan, err := s.plans.GetPlanByID(c.Request.Context(), auth.UserID(c), planID)
	if err != nil {
		s.planError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (s *Server) handleRegeneratePlan(c *gin.Context) {
	planID, ok := pathID(c, "planId")
	if !ok {
		return
	}
	newID, err := s.plans.Regenerate(c.Request.Context(), auth.UserID(c), planID)
	if err != nil {
		s.planError(c, err)
		return
	}
	plan, err := s.plans.GetPlanByID(c.Request.Context(), auth.UserID(c), newID)
	if err != nil {
		s.planError(c, err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}

func (s *Server) handleDeletePlan(c *gin.Context) {
	planID, ok := pathID(c, "planId")
	if !ok {
		return
	}
	if err := s.plans.DeletePlan(c.Request.Context(), auth.UserID(c), planID); err != nil {
		s.planError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// planError maps domain errors onto HTTP statuses.
func (s *Server) planError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, mealplan.ErrInvalidDays):
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be 1 or 7"})
	case errors.Is(err, mealplan.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "meal plan not found"})
	case errors.Is(err, spoonacular.ErrQuotaExceeded):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "provider quota exceeded"})
	case errors.Is(err, mealplan.ErrUpstreamEmpty), errors.Is(err, spoonacular.ErrUpstream):
		c.JSON(http.StatusBadGateway, gin.H{"error": "provider unavailable"})
	default:
		s.fail(c, err)
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	s.log.Errorw("request failed",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"error", err,
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
