package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Skufu/excipredict/internal/auth"
	"github.com/Skufu/excipredict/internal/prediction"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func abortError(c *gin.Context, status int, kind, msg string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: msg, Kind: kind})
}

var authStatus = map[auth.Kind]int{
	auth.KindInvalidCredentials: http.StatusUnauthorized,
	auth.KindAccountDisabled:    http.StatusForbidden,
	auth.KindTooManyAttempts:    http.StatusTooManyRequests,
	auth.KindEmailInUse:         http.StatusConflict,
	auth.KindWeakPassword:       http.StatusUnprocessableEntity,
	auth.KindPasswordMismatch:   http.StatusUnprocessableEntity,
	auth.KindInvalidEmail:       http.StatusUnprocessableEntity,
	auth.KindInvalidResetToken:  http.StatusBadRequest,
}

// writeError maps a domain failure onto a status code and the {error, kind} body.
func (s *Server) writeError(c *gin.Context, err error) {
	var (
		authErr       *auth.AuthError
		validationErr *prediction.ValidationError
		remoteErr     *prediction.RemoteError
	)
	switch {
	case errors.As(err, &authErr):
		status, ok := authStatus[authErr.Kind]
		if !ok {
			status = http.StatusInternalServerError
			s.deps.Logger.Error("auth backend failure", zap.Error(err))
		}
		abortError(c, status, string(authErr.Kind), authErr.UserMessage())
	case errors.As(err, &validationErr):
		abortError(c, http.StatusUnprocessableEntity, "validation", validationErr.Message)
	case errors.Is(err, prediction.ErrSuperseded):
		abortError(c, http.StatusConflict, "superseded", err.Error())
	case errors.Is(err, prediction.ErrClosed):
		abortError(c, http.StatusServiceUnavailable, "closed", err.Error())
	case errors.As(err, &remoteErr):
		abortError(c, http.StatusBadGateway, "remote", remoteErr.Message)
	default:
		s.deps.Logger.Error("request failed", zap.Error(err))
		abortError(c, http.StatusInternalServerError, "internal", "internal error")
	}
}
