package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/caseindex/api/handlers"
	"github.com/meghashyamc/caseindex/app"
	"github.com/meghashyamc/caseindex/validation"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func setupRoutes(router *gin.Engine, a *app.App, validator *validation.Validator, adminToken string) {
	router.GET("/health", health())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.SetupIndex(router, a.Logger, a.Index, a.Jobs, validator, adminToken)

	userRoutes := router.Group("", handlers.RequireUser(a.Logger))
	handlers.SetupSearch(userRoutes, a.Logger, a.Search, validator)
	handlers.SetupSavedSearches(userRoutes, a.Logger, a.SavedSearch, validator)
}

func health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	}
}

func newRouter() *gin.Engine {
	router := gin.New()
	router.UseRawPath = true
	router.Use(_CORSMiddleware())
	router.Use(gin.Recovery())

	return router
}
