package controllers

import (
	"net/http"
	"strconv"
	"time"

	"nutrilens/services"

	"github.com/gin-gonic/gin"
)

type NutritionController struct {
	Summaries *services.SummaryService
}

func NewNutritionController(summaries *services.SummaryService) *NutritionController {
	return &NutritionController{Summaries: summaries}
}

// Daily returns nutrient totals for one calendar day. ?date=YYYY-MM-DD,
// defaulting to today (UTC).
func (nc *NutritionController) Daily(c *gin.Context) {
	day := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		day = parsed
	}

	summary, err := nc.Summaries.Daily(c.GetUint("userID"), day)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build daily summary"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// Summary aggregates a trailing window of days, default 7.
func (nc *NutritionController) Summary(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days < 1 || days > 90 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be between 1 and 90"})
		return
	}

	summary, err := nc.Summaries.Summary(c.GetUint("userID"), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build summary"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// Insights runs the period summary through the language model.
func (nc *NutritionController) Insights(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days < 1 || days > 90 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be between 1 and 90"})
		return
	}

	report, err := nc.Summaries.Insights(c.Request.Context(), c.GetUint("userID"), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate insights"})
		return
	}

	c.JSON(http.StatusOK, report)
}
