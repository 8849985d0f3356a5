package models

import (
	"time"

	"gorm.io/gorm"
)

// DailyNutrition is a per-day rollup, uniquely keyed per user/date/nutrient.
// Schema only for now; ingestion does not populate it.
type DailyNutrition struct {
	gorm.Model
	UserID       uint      `gorm:"uniqueIndex:ux_daily_user_date_nutrient;not null" json:"user_id"`
	Date         time.Time `gorm:"uniqueIndex:ux_daily_user_date_nutrient;type:date;not null" json:"date"`
	NutrientName string    `gorm:"uniqueIndex:ux_daily_user_date_nutrient;not null" json:"nutrient_name"`
	TotalValue   float64   `gorm:"not null" json:"total_value"`
	Unit         string    `gorm:"not null" json:"unit"`
}
