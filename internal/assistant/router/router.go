// Package router provides study-assistant service routing.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/studyrag/internal/assistant/handler"
	"github.com/kart-io/studyrag/internal/assistant/metrics"
	"github.com/kart-io/studyrag/pkg/middleware"
)

// New builds the gin engine with middleware and all service routes.
func New(queryHandler *handler.QueryHandler) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Logger())

	Register(engine, queryHandler)
	return engine
}

// Register registers the study-assistant routes.
func Register(engine *gin.Engine, queryHandler *handler.QueryHandler) {
	logger.Info("Registering assistant routes...")

	engine.GET("/healthz", queryHandler.Healthz)
	engine.GET("/metrics", func(c *gin.Context) {
		c.String(http.StatusOK, metrics.Get().Export("studyrag", "assistant"))
	})

	v1 := engine.Group("/v1")
	{
		assistant := v1.Group("/assistant")
		{
			assistant.POST("/query", queryHandler.Query)
			assistant.POST("/query/stream", queryHandler.QueryStream)
			assistant.GET("/stats", queryHandler.Stats)
			assistant.GET("/vocabulary", queryHandler.Vocabulary)
			assistant.DELETE("/cache", queryHandler.ClearCache)
		}
	}

	logger.Info("HTTP routes registered")
}
