package models

import (
	"time"

	"gorm.io/gorm"
)

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

type RiskType string

const (
	RiskDeficiency  RiskType = "deficiency"
	RiskExcess      RiskType = "excess"
	RiskImbalance   RiskType = "imbalance"
	RiskAllergy     RiskType = "allergy"
	RiskInteraction RiskType = "interaction"
)

// RiskScore is a per-user/nutrient risk classification (0-100 score).
// Schema only for now; ingestion does not populate it.
type RiskScore struct {
	gorm.Model
	UserID         uint      `gorm:"index;not null" json:"user_id"`
	RiskType       RiskType  `gorm:"size:16;index;not null" json:"risk_type"`
	NutrientName   string    `gorm:"index" json:"nutrient_name,omitempty"`
	RiskLevel      RiskLevel `gorm:"size:16;index;not null" json:"risk_level"`
	Score          float64   `gorm:"not null" json:"score"`
	Description    string    `gorm:"type:text" json:"description,omitempty"`
	Explanation    string    `gorm:"type:text" json:"explanation,omitempty"`
	Recommendation string    `gorm:"type:text" json:"recommendation,omitempty"`
	CalculatedAt   time.Time `gorm:"index;not null" json:"calculated_at"`
}
