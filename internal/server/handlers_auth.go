package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Skufu/excipredict/internal/auth"
)

type loginRequest struct {
	auth.Credentials
	Next string `json:"next"`
}

type signupRequest struct {
	auth.SignupRequest
	Next string `json:"next"`
}

type forgotRequest struct {
	Email string `json:"email"`
}

type sessionResponse struct {
	Session  *auth.Session `json:"session"`
	Redirect string        `json:"redirect"`
}

func (s *Server) handleSession(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Auth.Store().Current())
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}
	sess, err := s.deps.Auth.Login(c.Request.Context(), req.Credentials)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{Session: sess, Redirect: safeRedirect(nextParam(c, req.Next))})
}

func (s *Server) handleSignup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}
	sess, err := s.deps.Auth.Signup(c.Request.Context(), req.SignupRequest)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sessionResponse{Session: sess, Redirect: safeRedirect(nextParam(c, req.Next))})
}

func (s *Server) handleLogout(c *gin.Context) {
	if err := s.deps.Auth.Logout(c.Request.Context()); err != nil {
		s.writeError(c, err)
		return
	}
	s.deps.Pipeline.Reset()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleForgot(c *gin.Context) {
	var req forgotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}
	msg, err := s.deps.Auth.RequestPasswordReset(c.Request.Context(), req.Email)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (s *Server) handleReset(c *gin.Context) {
	var req auth.ResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}
	if err := s.deps.Auth.ResetPassword(c.Request.Context(), req); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "redirect": "/login"})
}

func nextParam(c *gin.Context, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return c.Query("next")
}
