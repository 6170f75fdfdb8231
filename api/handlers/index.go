package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/caseindex/db/searchdb"
	"github.com/meghashyamc/caseindex/logger"
	"github.com/meghashyamc/caseindex/services/index"
	"github.com/meghashyamc/caseindex/validation"
)

type RebuildRequest struct {
	UserID *int64 `json:"user_id" validate:"omitempty,min=1"`
}

type RebuildResponse struct {
	RequestID string `json:"request_id"`
}

type rebuildStatusURI struct {
	RequestID string `uri:"id" validate:"required,max=64"`
}

type entityURI struct {
	EntityType string `uri:"type" validate:"valid_entity_type"`
	EntityID   int64  `uri:"id" validate:"min=1"`
}

func SetupIndex(router gin.IRouter, logger logger.Logger, service *index.Service, jobs *index.Jobs, validator *validation.Validator, adminToken string) {
	group := router.Group("/index", RequireAdmin(logger, adminToken))
	group.POST("/rebuild", handleRebuild(jobs, logger, validator))
	group.GET("/rebuild/:id", handleRebuildStatus(jobs, logger, validator))
	group.POST("/optimize", handleOptimize(service, logger))
	group.GET("/stats", handleStats(service, logger))
	group.PUT("/:type/:id", handleUpdateEntity(service, logger, validator))
	group.DELETE("/:type/:id", handleRemoveEntity(service, logger, validator))
}

func handleRebuild(jobs *index.Jobs, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := RebuildRequest{}
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&request); err != nil {
				logger.Warn("could not extract expected params from rebuild request", "err", err.Error())
				c.Abort()
				writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request body parameters"})
				return
			}
		}

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate rebuild request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		requestID, err := jobs.Submit(request.UserID)
		if errors.Is(err, index.ErrRebuildInProgress) {
			c.Abort()
			writeResponse(c, nil, http.StatusConflict, []string{err.Error()})
			return
		}
		if err != nil {
			logger.Error("could not start index rebuild", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}

		writeResponse(c, RebuildResponse{RequestID: requestID}, http.StatusAccepted, nil)
	}
}

func handleRebuildStatus(jobs *index.Jobs, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		uri := rebuildStatusURI{}
		if err := c.ShouldBindUri(&uri); err != nil {
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract path parameters"})
			return
		}
		if err := validator.Validate(uri); err != nil {
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		status, err := jobs.Status(uri.RequestID)
		if err != nil {
			logger.Warn("could not get rebuild status", "request_id", uri.RequestID, "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusNotFound, []string{err.Error()})
			return
		}

		writeResponse(c, status, http.StatusOK, nil)
	}
}

func handleOptimize(service *index.Service, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := service.OptimizeIndex(c.Request.Context()); err != nil {
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}
		writeResponse(c, nil, http.StatusNoContent, nil)
	}
}

func handleStats(service *index.Service, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := service.GetIndexStats(c.Request.Context())
		if err != nil {
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}
		writeResponse(c, stats, http.StatusOK, nil)
	}
}

func handleUpdateEntity(service *index.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		uri, ok := bindEntityURI(c, logger, validator)
		if !ok {
			return
		}

		err := service.UpdateInIndex(c.Request.Context(), searchdb.EntityType(uri.EntityType), uri.EntityID)
		var failure *index.RecordFailure
		if errors.As(err, &failure) {
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{err.Error()})
			return
		}
		if err != nil {
			logger.Error("could not update index entry", "entity_type", uri.EntityType, "entity_id", uri.EntityID, "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}

		writeResponse(c, nil, http.StatusNoContent, nil)
	}
}

func handleRemoveEntity(service *index.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		uri, ok := bindEntityURI(c, logger, validator)
		if !ok {
			return
		}

		if err := service.RemoveFromIndex(c.Request.Context(), searchdb.EntityType(uri.EntityType), uri.EntityID); err != nil {
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}

		writeResponse(c, nil, http.StatusNoContent, nil)
	}
}

func bindEntityURI(c *gin.Context, logger logger.Logger, validator *validation.Validator) (entityURI, bool) {
	uri := entityURI{}
	if err := c.ShouldBindUri(&uri); err != nil {
		logger.Warn("could not extract entity from path", "err", err.Error())
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
