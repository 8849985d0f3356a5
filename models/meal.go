package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnack     MealType = "snack"
	MealOther     MealType = "other"
)

func ParseMealType(s string) (MealType, error) {
	switch MealType(s) {
	case MealBreakfast, MealLunch, MealDinner, MealSnack, MealOther:
		return MealType(s), nil
	case "":
		return MealOther, nil
	}
	return "", fmt.Errorf("invalid meal type: %q", s)
}

type MealSource string

const (
	SourceImage  MealSource = "image"
	SourcePDF    MealSource = "pdf"
	SourceCSV    MealSource = "csv"
	SourceManual MealSource = "manual"
)

// Meal timestamps are stored timezone-naive and treated as UTC; callers
// normalize before writing.
type Meal struct {
	gorm.Model
	UserID         uint       `gorm:"index;not null" json:"user_id"`
	MealType       MealType   `gorm:"size:16;not null" json:"meal_type"`
	SourceType     MealSource `gorm:"size:16;not null" json:"source_type"`
	SourceFilePath string     `json:"source_file_path,omitempty"`
	RawText        string     `gorm:"type:text" json:"raw_text,omitempty"`
	Notes          string     `gorm:"type:text" json:"notes,omitempty"`
	MealDate       time.Time  `gorm:"index;not null" json:"meal_date"`
	FoodItems      []FoodItem `gorm:"constraint:OnDelete:CASCADE" json:"food_items"`
}
