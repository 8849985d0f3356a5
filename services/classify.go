package services

import "strings"

// labelKeywords is the decision table for the label-vs-food-list branch.
// Any single hit classifies the text as a nutrition facts panel.
var labelKeywords = []string{
	"nutrition facts",
	"calories",
	"total fat",
	"serving size",
	"daily value",
}

// LooksLikeNutritionLabel decides locally, before any LLM call, whether the
// extracted text is a nutrition facts panel.
func LooksLikeNutritionLabel(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range labelKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
