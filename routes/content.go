package routes

import (
	"io"
	"net/http"
	"strings"

	"ai-learning-platform/internal/logger"
	"ai-learning-platform/internal/queue"
	"ai-learning-platform/models"
	"ai-learning-platform/services"
	"ai-learning-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

// SetupContentRoutes registers the indexing control endpoints. The actual
// indexing runs detached in the worker; these handlers only enqueue and
// report.
func SetupContentRoutes(router *gin.Engine, store *services.ContentStore, indexer *services.IndexerService, client *asynq.Client) {
	api := router.Group("/api/content")

	api.POST("/:id/index", handleEnqueueIndex(store, client))
	api.POST("/:id/reindex", handleEnqueueReindex(store, client))
	api.GET("/:id/index-status", handleIndexStatus(indexer))
}

func handleEnqueueIndex(store *services.ContentStore, client *asynq.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		documentID := c.Param("id")

		if _, err := store.Get(c.Request.Context(), documentID); err != nil {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "Missing file upload", nil)
			return
		}
		defer file.Close()

		content, err := io.ReadAll(file)
		if err != nil || len(content) == 0 {
			utils.RespondWithBadRequest(c, "Empty or unreadable file", nil)
			return
		}

		mimeType := header.Header.Get("Content-Type")
		filename := header.Filename

		if err := store.SaveRawFile(c.Request.Context(), documentID, content, filename, mimeType); err != nil {
			utils.RespondWithInternalError(c, "Failed to stage upload", nil)
			return
		}
		if err := store.SetStatus(c.Request.Context(), documentID, models.StatusPending); err != nil {
			logger.Warn("Failed to mark document pending", "document_id", documentID, "error", err)
		}

		task, err := queue.NewIndexContentTask(documentID, filename, mimeType)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to create indexing task", nil)
			return
		}
		info, err := client.Enqueue(task)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to enqueue indexing task", nil)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"document_id": documentID,
			"task_id":     info.ID,
			"queue":       info.Queue,
			"status":      models.StatusPending,
		})
	}
}

func handleEnqueueReindex(store *services.ContentStore, client *asynq.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		documentID := c.Param("id")

		doc, err := store.Get(c.Request.Context(), documentID)
		if err != nil {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}
		if len(doc.TextContent) == 0 {
			utils.RespondWithBadRequest(c, "Document has never been indexed; upload its file first", nil)
			return
		}

		task, err := queue.NewReindexContentTask(documentID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to create reindex task", nil)
			return
		}
		info, err := client.Enqueue(task)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to enqueue reindex task", nil)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"document_id": documentID,
			"task_id":     info.ID,
			"queue":       info.Queue,
		})
	}
}

func handleIndexStatus(indexer *services.IndexerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		documentID := c.Param("id")

		status, err := indexer.IndexStatus(c.Request.Context(), documentID)
		if err != nil {
			if strings.Contains(err.Error(), "not found") {
				utils.RespondWithNotFound(c, "Document not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to read index status", nil)
			return
		}

		c.JSON(http.StatusOK, status)
	}
}
