// Package router wires the document QA HTTP routes.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/internal/docqa/handler"
	"github.com/kart-io/docqa/pkg/middleware"
)

// New builds the Gin engine with all routes and middleware.
func New(mode string, h *handler.Handler) *gin.Engine {
	gin.SetMode(mode)

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Logger("/health", "/health/ready"),
		middleware.Recovery(),
	)

	engine.GET("/health", h.Health)
	engine.GET("/health/ready", h.Ready)

	documents := engine.Group("/documents")
	{
		documents.POST("/upload", h.Upload)
		documents.POST("/load", h.Load)
		documents.GET("/info", h.Info)
		documents.DELETE("/collection", h.DropCollection)
	}

	query := engine.Group("/query")
	{
		query.POST("", h.Query)
		query.POST("/stream", h.QueryStream)
		query.POST("/search", h.QuerySearch)
	}

	logger.Infow("HTTP routes registered")
	return engine
}
