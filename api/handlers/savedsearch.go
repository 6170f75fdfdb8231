package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/caseindex/logger"
	"github.com/meghashyamc/caseindex/services/savedsearch"
	"github.com/meghashyamc/caseindex/services/search"
	"github.com/meghashyamc/caseindex/validation"
)

type SaveSearchRequest struct {
	Name  string             `json:"name" validate:"required,valid_name,max=200"`
	Query search.SearchQuery `json:"query"`
}

type savedSearchURI struct {
	ID int64 `uri:"id" validate:"min=1"`
}

type SuggestionsRequest struct {
	Prefix string `form:"prefix" json:"prefix" validate:"max=200"`
	Limit  int    `form:"limit" json:"limit" validate:"min=0,max=50"`
}

func SetupSavedSearches(router gin.IRouter, logger logger.Logger, service *savedsearch.Service, validator *validation.Validator) {
	group := router.Group("/saved-searches")
	group.GET("", handleListSavedSearches(service, logger))
	group.POST("", handleSaveSearch(service, logger, validator))
	group.GET("/suggestions", handleSuggestions(service, logger, validator))
	group.DELETE("/:id", handleDeleteSavedSearch(service, logger, validator))
	group.POST("/:id/execute", handleExecuteSavedSearch(service, logger, validator))
}

func handleSaveSearch(service *savedsearch.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := SaveSearchRequest{}
		if err := c.ShouldBindJSON(&request); err != nil {
			logger.Warn("could not extract expected params from save search request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request body parameters"})
			return
		}

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate save search request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		saved, err := service.SaveSearch(c.Request.Context(), userIDFrom(c), request.Name, request.Query)
		if errors.Is(err, savedsearch.ErrInvalidName) {
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}
		if err != nil {
			logger.Error("could not save search", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}

		writeResponse(c, saved, http.StatusCreated, nil)
	}
}

func handleListSavedSearches(service *savedsearch.Service, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		searches, err := service.GetSavedSearches(c.Request.Context(), userIDFrom(c))
		if err != nil {
			logger.Error("could not list saved searches", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}
		if searches == nil {
			searches = []savedsearch.SavedSearch{}
		}
		writeResponse(c, searches, http.StatusOK, nil)
	}
}

func handleDeleteSavedSearch(service *savedsearch.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		uri, ok := bindSavedSearchURI(c, logger, validator)
		if !ok {
			return
		}

		deleted, err := service.DeleteSavedSearch(c.Request.Context(), userIDFrom(c), uri.ID)
		if err != nil {
			logger.Error("could not delete saved search", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}
		if !deleted {
			c.Abort()
			writeResponse(c, nil, http.StatusNotFound, []string{savedsearch.ErrNotFound.Error()})
			return
		}

		writeResponse(c, nil, http.StatusNoContent, nil)
	}
}

func handleExecuteSavedSearch(service *savedsearch.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		uri, ok := bindSavedSearchURI(c, logger, validator)
		if !ok {
			return
		}

		results, err := service.ExecuteSavedSearch(c.Request.Context(), userIDFrom(c), uri.ID)
		if errors.Is(err, savedsearch.ErrNotFound) {
			c.Abort()
			writeResponse(c, nil, http.StatusNotFound, []string{err.Error()})
			return
		}
		if err != nil {
			writeSearchError(c, logger, err)
			return
		}

		writeResponse(c, newSearchResponse(results), http.StatusOK, nil)
	}
}

func handleSuggestions(service *savedsearch.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := SuggestionsRequest{}
		if err := c.ShouldBindQuery(&request); err != nil {
			logger.Warn("could not extract expected query params for suggestions", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract query parameters"})
			return
		}

		if err := validator.Validate(request); err != nil {
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		suggestions, err := service.GetSearchSuggestions(c.Request.Context(), userIDFrom(c), request.Prefix, request.Limit)
		if err != nil {
			logger.Error("could not load search suggestions", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}

		writeResponse(c, suggestions, http.StatusOK, nil)
	}
}

func bindSavedSearchURI(c *gin.Context, logger logger.Logger, validator *validation.Validator) (savedSearchURI, bool) {
	uri := savedSearchURI{}
	if err := c.ShouldBindUri(&uri); err != nil {
		logger.Warn("could not extract saved search id", "err", err.Error())
		c.Abort()
		writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract path parameters"})
		return uri, false
	}
	if err := validator.Validate(uri); err != nil {
		c.Abort()
		writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
		return uri, false
	}
	return uri, true
}
