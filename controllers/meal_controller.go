package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"nutrilens/models"
	"nutrilens/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type MealController struct {
	Meals *services.MealService
}

func NewMealController(meals *services.MealService) *MealController {
	return &MealController{Meals: meals}
}

// Upload accepts a multipart file plus optional meal_type and meal_date
// fields and runs the full ingestion pipeline synchronously.
func (mc *MealController) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is required"})
		return
	}

	mealType, err := models.ParseMealType(c.PostForm("meal_type"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mealDate, err := parseOptionalTime(c.PostForm("meal_date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "meal_date must be RFC 3339 or YYYY-MM-DD"})
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload"})
		return
	}
	defer src.Close()

	path, source, err := mc.Meals.SaveUpload(fileHeader.Filename, src)
	if err != nil {
		if errors.Is(err, services.ErrUnsupportedFileType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store upload"})
		return
	}

	meal, err := mc.Meals.IngestUpload(c.Request.Context(), c.GetUint("userID"), mealType, mealDate, path, source)
	if err != nil {
		if errors.Is(err, services.ErrExtraction) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process meal"})
		return
	}

	c.JSON(http.StatusCreated, meal)
}

type CreateMealInput struct {
	MealType  string                    `json:"meal_type"`
	Notes     string                    `json:"notes"`
	MealDate  string                    `json:"meal_date"`
	FoodItems []services.ManualFoodItem `json:"food_items" binding:"required,min=1,dive"`
}

// Create logs a meal from explicit food entries, no file involved.
func (mc *MealController) Create(c *gin.Context) {
	var input CreateMealInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mealType, err := models.ParseMealType(input.MealType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mealDate, err := parseOptionalTime(input.MealDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "meal_date must be RFC 3339 or YYYY-MM-DD"})
		return
	}

	meal, err := mc.Meals.CreateManual(c.Request.Context(), c.GetUint("userID"), mealType, input.Notes, mealDate, input.FoodItems)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create meal"})
		return
	}

	c.JSON(http.StatusCreated, meal)
}

func (mc *MealController) List(c *gin.Context) {
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	startDate, err := parseOptionalTime(c.Query("start_date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_date must be RFC 3339 or YYYY-MM-DD"})
		return
	}
	endDate, err := parseOptionalTime(c.Query("end_date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_date must be RFC 3339 or YYYY-MM-DD"})
		return
	}

	meals, err := mc.Meals.List(c.GetUint("userID"), skip, limit, startDate, endDate)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list meals"})
		return
	}

	c.JSON(http.StatusOK, meals)
}

func (mc *MealController) Get(c *gin.Context) {
	mealID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid meal id"})
		return
	}

	meal, totals, err := mc.Meals.Get(c.GetUint("userID"), uint(mealID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Meal not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load meal"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"meal":            meal,
		"nutrient_totals": totals,
	})
}

func (mc *MealController) Delete(c *gin.Context) {
	mealID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid meal id"})
		return
	}

	err = mc.Meals.Delete(c.Request.Context(), c.GetUint("userID"), uint(mealID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Meal not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete meal"})
		return
	}

	c.Status(http.StatusNoContent)
}

// parseOptionalTime accepts RFC 3339 timestamps or bare dates; empty input
// means "unset".
func parseOptionalTime(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
