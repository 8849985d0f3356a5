package models

import (
	"gorm.io/gorm"
)

type FoodItem struct {
	gorm.Model
	MealID         uint       `gorm:"index;not null" json:"meal_id"`
	Name           string     `gorm:"index;not null" json:"name"`
	NormalizedName string     `gorm:"index" json:"normalized_name,omitempty"`
	Quantity       float64    `json:"quantity"`
	Unit           string     `json:"unit,omitempty"`
	Brand          string     `json:"brand,omitempty"`
	Barcode        string     `gorm:"index" json:"barcode,omitempty"`
	Description    string     `gorm:"type:text" json:"description,omitempty"`
	Nutrients      []Nutrient `gorm:"constraint:OnDelete:CASCADE" json:"nutrients"`
}
