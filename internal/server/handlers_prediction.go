package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Skufu/excipredict/internal/prediction"
)

type predictionResponse struct {
	Generation uint64             `json:"generation"`
	Outcome    prediction.Outcome `json:"outcome"`
}

type stateResponse struct {
	prediction.Snapshot
	Error string `json:"error,omitempty"`
}

// handlePredict submits the form and waits for this submission's own result. A newer
// submission from another tab wins; this request then gets 409.
func (s *Server) handlePredict(c *gin.Context) {
	var in prediction.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		abortError(c, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}

	ticket, err := s.deps.Pipeline.Submit(in)
	if err != nil {
		s.writeError(c, err)
		return
	}
	outcome, err := ticket.Wait(c.Request.Context())
	if err != nil {
		if c.Request.Context().Err() != nil {
			c.Abort()
			return
		}
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, predictionResponse{Generation: ticket.Generation, Outcome: outcome})
}

func (s *Server) handlePredictionState(c *gin.Context) {
	snap := s.deps.Pipeline.Snapshot()
	resp := stateResponse{Snapshot: snap}
	if snap.Err != nil {
		resp.Error = snap.Err.Error()
	}
	c.JSON(http.StatusOK, resp)
}
