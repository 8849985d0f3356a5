package services

import (
	"context"
	"fmt"
	"time"

	"nutrilens/models"

	"gorm.io/gorm"
)

// Disclaimer appended to every generated insight.
const InsightDisclaimer = "This information is for general educational purposes only and is not intended as medical advice. Please consult with a healthcare professional for personalized recommendations."

// SummaryService aggregates stored nutrient rows into daily and multi-day
// reports and asks the language model for dietary insights.
type SummaryService struct {
	db  *gorm.DB
	llm InsightGenerator
}

func NewSummaryService(db *gorm.DB, llm InsightGenerator) *SummaryService {
	return &SummaryService{db: db, llm: llm}
}

// DailySummary is the nutrition report for one calendar day (UTC).
type DailySummary struct {
	Date      string          `json:"date"`
	MealCount int             `json:"meal_count"`
	Nutrients []NutrientTotal `json:"nutrients"`
}

// PeriodSummary covers a trailing window of whole days ending today.
type PeriodSummary struct {
	Days          int                `json:"days"`
	StartDate     string             `json:"start_date"`
	EndDate       string             `json:"end_date"`
	TotalMeals    int                `json:"total_meals"`
	Totals        map[string]float64 `json:"totals"`
	AveragePerDay map[string]float64 `json:"average_per_day"`
}

// InsightReport is the LLM commentary on a period, always carrying the
// disclaimer.
type InsightReport struct {
	Period          string             `json:"period"`
	Totals          map[string]float64 `json:"totals"`
	Explanation     string             `json:"explanation"`
	Recommendations string             `json:"recommendations"`
	Disclaimer      string             `json:"disclaimer"`
}

// Daily sums every nutrient logged on the given UTC day. A day with no
// meals yields an empty nutrient list, not an error.
func (s *SummaryService) Daily(userID uint, day time.Time) (*DailySummary, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	meals, err := s.mealsBetween(userID, start, end)
	if err != nil {
		return nil, err
	}

	var items []models.FoodItem
	for _, m := range meals {
		items = append(items, m.FoodItems...)
	}

	return &DailySummary{
		Date:      start.Format("2006-01-02"),
		MealCount: len(meals),
		Nutrients: sumNutrients(items),
	}, nil
}

// Summary aggregates the last `days` whole days, today included. Averages
// divide by the window length, not by days with data.
func (s *SummaryService) Summary(userID uint, days int) (*PeriodSummary, error) {
	if days <= 0 {
		days = 7
	}
	now := time.Now().UTC()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	start := end.AddDate(0, 0, -days)

	meals, err := s.mealsBetween(userID, start, end)
	if err != nil {
		return nil, err
	}

	totals := map[string]float64{}
	for _, m := range meals {
		for _, item := range m.FoodItems {
			for _, n := range item.Nutrients {
				totals[n.Name] += n.Value
			}
		}
	}

	averages := make(map[string]float64, len(totals))
	for name, total := range totals {
		averages[name] = total / float64(days)
	}

	return &PeriodSummary{
		Days:          days,
		StartDate:     start.Format("2006-01-02"),
		EndDate:       end.AddDate(0, 0, -1).Format("2006-01-02"),
		TotalMeals:    len(meals),
		Totals:        totals,
		AveragePerDay: averages,
	}, nil
}

// Insights summarizes the period and asks the model to comment on it.
func (s *SummaryService) Insights(ctx context.Context, userID uint, days int) (*InsightReport, error) {
	summary, err := s.Summary(userID, days)
	if err != nil {
		return nil, err
	}

	period := "1 day"
	if summary.Days > 1 {
		period = fmt.Sprintf("%d days", summary.Days)
	}

	insight := s.llm.GenerateHealthInsight(ctx, summary.Totals, period)

	return &InsightReport{
		Period:          period,
		Totals:          summary.Totals,
		Explanation:     insight.Explanation,
		Recommendations: insight.Recommendations,
		Disclaimer:      InsightDisclaimer,
	}, nil
}

func (s *SummaryService) mealsBetween(userID uint, start, end time.Time) ([]models.Meal, error) {
	var meals []models.Meal
	err := s.db.
		Preload("FoodItems.Nutrients").
		Where("user_id = ? AND meal_date >= ? AND meal_date < ?", userID, start, end).
		Find(&meals).Error
	return meals, err
}
