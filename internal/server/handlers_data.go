package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Skufu/excipredict/internal/prediction"
	"github.com/Skufu/excipredict/internal/table"
)

const defaultSuggestionLimit = 10

func (s *Server) handleCompounds(c *gin.Context) {
	field, err := table.ParseField(c.DefaultQuery("sort", string(table.FieldDrugName)))
	if err != nil {
		abortError(c, http.StatusBadRequest, "invalid_sort", err.Error())
		return
	}
	dir, err := table.ParseDirection(c.DefaultQuery("dir", string(table.Asc)))
	if err != nil {
		abortError(c, http.StatusBadRequest, "invalid_sort", err.Error())
		return
	}

	s.tableMu.Lock()
	defer s.tableMu.Unlock()
	if err := s.table.SetSort(field, dir); err != nil {
		abortError(c, http.StatusBadRequest, "invalid_sort", err.Error())
		return
	}
	s.table.SetQuery(c.Query("q"))
	c.JSON(http.StatusOK, s.table.View())
}

func (s *Server) handleSuggestions(c *gin.Context) {
	field, err := table.ParseField(c.Query("field"))
	if err != nil {
		abortError(c, http.StatusBadRequest, "invalid_field", err.Error())
		return
	}
	limit := defaultSuggestionLimit
	if v := c.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			abortError(c, http.StatusBadRequest, "invalid_limit", "limit must be a number")
			return
		}
	}

	s.tableMu.Lock()
	values, err := s.table.Suggest(field, c.Query("q"), limit)
	s.tableMu.Unlock()
	if err != nil {
		abortError(c, http.StatusBadRequest, "invalid_field", err.Error())
		return
	}
	if values == nil {
		values = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"field": field, "suggestions": values})
}

func (s *Server) handleExcipients(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"excipients": prediction.Excipients})
}

func (s *Server) handleAnalytics(c *gin.Context) {
	summary, err := s.deps.Analytics.Summary(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
