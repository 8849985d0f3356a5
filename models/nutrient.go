package models

import (
	"strings"

	"gorm.io/gorm"
)

// NutrientKind is the closed vocabulary the resolution service works in.
// Anything outside it (label-declared nutrients, mostly) falls through to
// NutrientOther and keeps whatever name/unit the source declared.
type NutrientKind string

const (
	NutrientCalories  NutrientKind = "calories"
	NutrientProtein   NutrientKind = "protein"
	NutrientCarbs     NutrientKind = "carbs"
	NutrientFiber     NutrientKind = "fiber"
	NutrientFat       NutrientKind = "fat"
	NutrientSugars    NutrientKind = "sugars"
	NutrientSodium    NutrientKind = "sodium"
	NutrientCalcium   NutrientKind = "calcium"
	NutrientIron      NutrientKind = "iron"
	NutrientPotassium NutrientKind = "potassium"
	NutrientVitaminC  NutrientKind = "vitamin_c"
	NutrientOther     NutrientKind = "other"
)

// Unit returns the storage unit associated with the kind.
func (k NutrientKind) Unit() string {
	switch k {
	case NutrientCalories:
		return "kcal"
	case NutrientProtein, NutrientCarbs, NutrientFiber, NutrientFat, NutrientSugars:
		return "g"
	case NutrientSodium, NutrientCalcium, NutrientIron, NutrientPotassium, NutrientVitaminC:
		return "mg"
	}
	return "g"
}

func KindFromName(name string) NutrientKind {
	switch NutrientKind(strings.ToLower(strings.TrimSpace(name))) {
	case NutrientCalories:
		return NutrientCalories
	case NutrientProtein:
		return NutrientProtein
	case NutrientCarbs:
		return NutrientCarbs
	case NutrientFiber:
		return NutrientFiber
	case NutrientFat:
		return NutrientFat
	case NutrientSugars:
		return NutrientSugars
	case NutrientSodium:
		return NutrientSodium
	case NutrientCalcium:
		return NutrientCalcium
	case NutrientIron:
		return NutrientIron
	case NutrientPotassium:
		return NutrientPotassium
	case NutrientVitaminC:
		return NutrientVitaminC
	}
	return NutrientOther
}

// Nutrient names are lowercase with underscores, e.g. "total_fat".
// Per100 is value/(quantity/100) at insert time; null for label-declared rows.
type Nutrient struct {
	gorm.Model
	FoodItemID uint     `gorm:"index;not null" json:"food_item_id"`
	Name       string   `gorm:"index;not null" json:"name"`
	Value      float64  `gorm:"not null" json:"value"`
	Unit       string   `gorm:"not null" json:"unit"`
	Per100     *float64 `json:"per_100,omitempty"`
}
