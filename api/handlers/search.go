package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/caseindex/logger"
	"github.com/meghashyamc/caseindex/services/search"
	"github.com/meghashyamc/caseindex/validation"
)

type SearchResponse struct {
	Results         []search.SearchResult `json:"results"`
	Total           int                   `json:"total"`
	HasMore         bool                  `json:"has_more"`
	ExecutionTimeMS float64               `json:"execution_time_ms"`
	PageDetails     *Pagination           `json:"page_details,omitempty"`
}

func SetupSearch(router gin.IRouter, logger logger.Logger, service *search.Service, validator *validation.Validator) {
	router.POST("/search", handleSearch(service, logger, validator))
}

func handleSearch(service *search.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := search.SearchQuery{}
		if err := c.ShouldBindJSON(&request); err != nil {
			logger.Warn("could not extract expected params from search request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request body parameters"})
			return
		}

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate search request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		results, err := service.Search(c.Request.Context(), userIDFrom(c), request)
		if err != nil {
			writeSearchError(c, logger, err)
			return
		}

		limit := request.Limit
		if limit == 0 {
			limit = search.DefaultLimit
		}
		searchResponse := newSearchResponse(results)
		pagination := calculatePagination(results.Total, limit, request.Offset)
		searchResponse.PageDetails = &pagination

		writeResponse(c, searchResponse, http.StatusOK, nil)
	}
}

func newSearchResponse(results *search.SearchResponse) SearchResponse {
	return SearchResponse{
		Results:         results.Results,
		Total:           results.Total,
		HasMore:         results.HasMore,
		ExecutionTimeMS: float64(results.ExecutionTime.Microseconds()) / 1000,
	}
}

func writeSearchError(c *gin.Context, logger logger.Logger, err error) {
	c.Abort()
	if errors.Is(err, search.ErrInvalidQuery) {
		logger.Warn("search query rejected", "err", err.Error())
		writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
		return
	}
	logger.Error("search failed", "err", err.Error())
	writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
}
