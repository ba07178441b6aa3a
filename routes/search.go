package routes

import (
	"errors"
	"net/http"

	"ai-learning-platform/models"
	"ai-learning-platform/services"
	"ai-learning-platform/utils"

	"github.com/gin-gonic/gin"
)

type searchRequest struct {
	Query          string               `json:"query" binding:"required"`
	TopK           int                  `json:"top_k"`
	SemanticWeight float64              `json:"semantic_weight"`
	KeywordWeight  float64              `json:"keyword_weight"`
	Language       string               `json:"language"`
	Filters        models.SearchFilters `json:"filters"`
}

type groundingRequest struct {
	Answer  string          `json:"answer" binding:"required"`
	Sources []models.Source `json:"sources"`
}

// SetupSearchRoutes registers the retrieval and grounding endpoints.
func SetupSearchRoutes(router *gin.Engine, retriever *services.RetrieverService, grounding *services.GroundingService) {
	api := router.Group("/api")

	api.POST("/search", handleSemanticSearch(retriever))
	api.POST("/search/hybrid", handleHybridSearch(retriever))
	api.POST("/search/code", handleCodeSearch(retriever))
	api.POST("/validate/grounding", handleValidateGrounding(grounding))
}

func handleSemanticSearch(retriever *services.RetrieverService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req searchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid search request", err.Error())
			return
		}

		results, err := retriever.SemanticSearch(c.Request.Context(), req.Query, req.TopK, req.Filters)
		if err != nil {
			respondSearchError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"query":   req.Query,
			"results": results,
			"count":   len(results),
		})
	}
}

func handleHybridSearch(retriever *services.RetrieverService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req searchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid search request", err.Error())
			return
		}

		results, err := retriever.HybridSearch(c.Request.Context(), req.Query, req.TopK, req.SemanticWeight, req.KeywordWeight, req.Filters)
		if err != nil {
			respondSearchError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"query":   req.Query,
			"results": results,
			"count":   len(results),
		})
	}
}

func handleCodeSearch(retriever *services.RetrieverService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req searchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid search request", err.Error())
			return
		}

		results, err := retriever.SearchCode(c.Request.Context(), req.Query, req.TopK, req.Language, req.Filters)
		if err != nil {
			respondSearchError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"query":   req.Query,
			"results": results,
			"count":   len(results),
		})
	}
}

func handleValidateGrounding(grounding *services.GroundingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req groundingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid grounding request", err.Error())
			return
		}

		report := grounding.Verify(req.Answer, req.Sources)
		c.JSON(http.StatusOK, report)
	}
}

func respondSearchError(c *gin.Context, err error) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		utils.RespondWithBadRequest(c, verr.Message, nil)
		return
	}
	utils.RespondWithInternalError(c, "Search failed", nil)
}
