package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"scout/internal/database"
	"scout/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func (s *Server) healthHandler(c *gin.Context) {
	if err := s.db.Health(); err != nil {
		c.String(http.StatusInternalServerError, "database unreachable")
		return
	}
	if err := s.rabbit.Health(); err != nil {
		c.String(http.StatusInternalServerError, "queue broker unreachable")
		return
	}
	if err := s.cache.Ping(c.Request.Context()); err != nil {
		c.String(http.StatusInternalServerError, "cache unreachable")
		return
	}

	c.String(http.StatusOK, "healthy")
}

// sourceReadyHandler receives the scrape source's completion webhook. The
// source retries delivery, so every business outcome answers 200 to stop the
// retry loop.
func (s *Server) sourceReadyHandler(c *gin.Context) {
	type ReadyRequest struct {
		SourceID string `json:"sourceId"`
		Status   string `json:"status"`
	}

	var req ReadyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":   false,
			"error":     "Invalid request body",
			"timestamp": time.Now(),
		})
		return
	}

	if req.Status != "" && req.Status != "ready" {
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"message":   "Event ignored, status is not ready",
			"timestamp": time.Now(),
		})
		return
	}

	batch, duplicate, err := s.ic.HandleSourceReady(c.Request.Context(), req.SourceID)
	if err != nil {
		log.Error().Err(err).Str("sourceID", req.SourceID).Msg("Failed to handle ready event")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"error":     err.Error(),
			"timestamp": time.Now(),
		})
		return
	}

	if duplicate {
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"message":   "Duplicate event ignored",
			"timestamp": time.Now(),
		})
		return
	}

	if batch.Status == model.BatchEmpty {
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"message":   "No items found in results",
			"batchId":   batch.ID,
			"timestamp": time.Now(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Batch dispatched",
		"batchId":   batch.ID,
		"timestamp": time.Now(),
	})
}

func (s *Server) ingestItemsHandler(c *gin.Context) {
	type ItemsRequest struct {
		OwnerID  string          `json:"ownerId"`
		SearchID string          `json:"searchId"`
		Items    []model.RawItem `json:"items"`
	}

	var req ItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":   false,
			"error":     "Invalid request body",
			"timestamp": time.Now(),
		})
		return
	}

	if req.OwnerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":   false,
			"error":     "ownerId is required",
			"timestamp": time.Now(),
		})
		return
	}

	batch, err := s.ic.IngestItems(c.Request.Context(), req.OwnerID, req.SearchID, req.Items)
	if err != nil {
		log.Error().Err(err).Str("ownerID", req.OwnerID).Msg("Failed to ingest items")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"error":     err.Error(),
			"timestamp": time.Now(),
		})
		return
	}

	message := "Batch dispatched"
	if batch.Status == model.BatchEmpty {
		message = "No items to score"
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   message,
		"batchId":   batch.ID,
		"totalJobs": batch.TotalJobs,
		"timestamp": time.Now(),
	})
}

func (s *Server) getBatchHandler(c *gin.Context) {
	batchID := c.Param("id")

	batch, err := s.db.GetBatchByID(c.Request.Context(), batchID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success":   false,
				"error":     "Batch not found",
				"timestamp": time.Now(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"error":     err.Error(),
			"timestamp": time.Now(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"batch":     batch,
		"timestamp": time.Now(),
	})
}

func (s *Server) uploadProfileHandler(c *gin.Context) {
	ownerID := c.Param("id")

	type ProfileRequest struct {
		Profile string `json:"profile"`
	}

	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":   false,
			"error":     "Invalid request body",
			"timestamp": time.Now(),
		})
		return
	}

	if strings.TrimSpace(req.Profile) == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":   false,
			"error":     "profile text is required",
			"timestamp": time.Now(),
		})
		return
	}

	url, err := s.profiles.UploadProfile(c.Request.Context(), ownerID, strings.NewReader(req.Profile))
	if err != nil {
		log.Error().Err(err).Str("ownerID", ownerID).Msg("Failed to upload profile")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"error":     err.Error(),
			"timestamp": time.Now(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"url":       url,
		"timestamp": time.Now(),
	})
}
