package server

import (
	"net/http"
	"time"

	"scout/internal/model"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.CORS.AllowedOrigins,
		AllowMethods:     s.config.CORS.AllowedMethods,
		AllowHeaders:     s.config.CORS.AllowedHeaders,
		AllowCredentials: s.config.CORS.AllowCredentials,
		MaxAge:           time.Duration(s.config.CORS.MaxAge) * time.Second,
	}))

	r.GET("/health", s.healthHandler)

	// Webhook from the scrape source; dedupe happens in the controller
	r.POST("/ingest/ready", s.sourceReadyHandler)

	r.POST("/ingest/items", s.AuthMiddleware(model.RoleAdmin, model.RoleIngest), s.ingestItemsHandler)
	r.GET("/batches/:id", s.AuthMiddleware(model.RoleAdmin, model.RoleIngest), s.getBatchHandler)
	r.PUT("/owners/:id/profile", s.AuthMiddleware(model.RoleAdmin), s.uploadProfileHandler)

	return r
}
