// Package router provides docquery service routing.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/docquery/internal/docquery/handler"
)

// Register registers the docquery routes.
func Register(engine *gin.Engine, h *handler.Handler) {
	logger.Info("Registering docquery routes...")

	engine.GET("/healthz", h.Healthz)

	v1 := engine.Group("/v1")
	{
		projects := v1.Group("/projects/:project")
		{
			// Document endpoints
			projects.POST("/documents", h.Ingest)
			projects.POST("/documents/batch", h.IngestBatch)
			projects.GET("/documents", h.ListDocuments)
			projects.DELETE("/documents/:document", h.DeleteDocument)

			// Query endpoint (chat and table modes)
			projects.POST("/query", h.Query)

			// Table history endpoints
			projects.GET("/history", h.ListTableHistory)
			projects.GET("/history/:id", h.GetTableHistory)

			// Evaluation endpoint
			projects.POST("/evaluate", h.Evaluate)

			// Stats endpoint
			projects.GET("/stats", h.Stats)
		}
	}

	logger.Info("HTTP routes registered")
}
