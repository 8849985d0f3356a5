package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"nutrilens/models"
	"nutrilens/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MealService orchestrates the ingestion pipeline: extract, normalize,
// resolve, persist. Extraction failures abort an upload; everything after
// extraction degrades rather than failing the request.
type MealService struct {
	db        *gorm.DB
	extractor TextExtractor
	llm       Normalizer
	nutrition Resolver
	uploadDir string
	archiver  *utils.S3Archiver // optional
	hub       *EventHub         // optional
}

func NewMealService(db *gorm.DB, extractor TextExtractor, llm Normalizer, nutrition Resolver, uploadDir string, archiver *utils.S3Archiver, hub *EventHub) *MealService {
	return &MealService{
		db:        db,
		extractor: extractor,
		llm:       llm,
		nutrition: nutrition,
		uploadDir: uploadDir,
		archiver:  archiver,
		hub:       hub,
	}
}

// SourceTypeForFile classifies an upload by extension.
func SourceTypeForFile(filename string) (models.MealSource, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp":
		return models.SourceImage, nil
	case ".pdf":
		return models.SourcePDF, nil
	case ".csv":
		return models.SourceCSV, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, filepath.Ext(filename))
}

// SaveUpload rejects unsupported extensions before touching disk, then
// stores the file under a fresh uuid name keeping the original extension.
func (s *MealService) SaveUpload(filename string, r io.Reader) (string, models.MealSource, error) {
	source, err := SourceTypeForFile(filename)
	if err != nil {
		return "", "", err
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create upload dir: %w", err)
	}

	path := filepath.Join(s.uploadDir, uuid.New().String()+strings.ToLower(filepath.Ext(filename)))
	f, err := os.Create(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to store upload: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", "", fmt.Errorf("failed to store upload: %w", err)
	}
	return path, source, nil
}

// IngestUpload runs the full pipeline for one stored file and persists the
// resulting Meal with its FoodItems and Nutrients as a single transaction.
func (s *MealService) IngestUpload(ctx context.Context, userID uint, mealType models.MealType, mealDate *time.Time, filePath string, source models.MealSource) (*models.Meal, error) {
	rawText, err := s.extractor.Extract(ctx, filePath, source)
	if err != nil {
		return nil, err
	}

	normalized := s.llm.Normalize(ctx, rawText)

	meal := &models.Meal{
		UserID:         userID,
		MealType:       mealType,
		SourceType:     source,
		SourceFilePath: filePath,
		RawText:        rawText,
		MealDate:       normalizeMealDate(mealDate),
	}

	var sources []string
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(meal).Error; err != nil {
			return err
		}
		if normalized.IsNutritionLabel {
			return s.persistLabel(tx, meal.ID, normalized)
		}
		srcs, err := s.persistFoodList(ctx, tx, meal.ID, normalized.FoodItems)
		sources = srcs
		return err
	})
	if err != nil {
		return nil, err
	}

	full, err := s.reload(meal.ID)
	if err != nil {
		return nil, err
	}
	s.finishIngestion(ctx, full, sources)
	return full, nil
}

// ManualFoodItem is one explicitly entered food entry.
type ManualFoodItem struct {
	Name     string  `json:"name" binding:"required"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
	Brand    string  `json:"brand"`
	Barcode  string  `json:"barcode"`
}

// CreateManual skips extraction and normalization and goes straight to
// nutrient resolution.
func (s *MealService) CreateManual(ctx context.Context, userID uint, mealType models.MealType, notes string, mealDate *time.Time, items []ManualFoodItem) (*models.Meal, error) {
	meal := &models.Meal{
		UserID:     userID,
		MealType:   mealType,
		SourceType: models.SourceManual,
		Notes:      notes,
		MealDate:   normalizeMealDate(mealDate),
	}

	var sources []string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(meal).Error; err != nil {
			return err
		}
		for _, item := range items {
			foodItem := &models.FoodItem{
				MealID:   meal.ID,
				Name:     item.Name,
				Quantity: item.Quantity,
				Unit:     orDefault(item.Unit, "g"),
				Brand:    item.Brand,
				Barcode:  item.Barcode,
			}
			if err := tx.Create(foodItem).Error; err != nil {
				return err
			}
			res := s.nutrition.Resolve(ctx, item.Name, item.Quantity, foodItem.Unit, item.Barcode)
			sources = append(sources, res.Source.String())
			if err := s.insertResolvedNutrients(tx, foodItem, res); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	full, err := s.reload(meal.ID)
	if err != nil {
		return nil, err
	}
	s.finishIngestion(ctx, full, sources)
	return full, nil
}

// persistLabel creates the single synthetic food item for a nutrition facts
// panel and attaches its declared nutrients verbatim. Label values are
// authoritative; resolution and per-100 scaling are skipped.
func (s *MealService) persistLabel(tx *gorm.DB, mealID uint, normalized NormalizedText) error {
	serving := orDefault(normalized.ServingSize, "1 serving")
	foodItem := &models.FoodItem{
		MealID:         mealID,
		Name:           fmt.Sprintf("Food item (%s)", serving),
		NormalizedName: "nutrition_label_item",
		Quantity:       1,
		Unit:           "serving",
		Description:    "Nutrition label - " + serving,
	}
	if err := tx.Create(foodItem).Error; err != nil {
		return err
	}

	for _, n := range normalized.Nutrients {
		name := strings.TrimSpace(n.Name)
		if name == "" {
			log.Printf("skipping label nutrient with empty name")
			continue
		}
		value, ok := asFloat(n.Value)
		if !ok {
			log.Printf("skipping label nutrient %q with non-numeric value %v", name, n.Value)
			continue
		}
		nutrient := &models.Nutrient{
			FoodItemID: foodItem.ID,
			Name:       strings.ReplaceAll(strings.ToLower(name), " ", "_"),
			Value:      value,
			Unit:       orDefault(n.Unit, models.KindFromName(name).Unit()),
		}
		if err := tx.Create(nutrient).Error; err != nil {
			return err
		}
	}
	return nil
}

// persistFoodList creates one food item per normalized entry and resolves
// nutrients for each, returning the resolution sources used.
func (s *MealService) persistFoodList(ctx context.Context, tx *gorm.DB, mealID uint, items []NormalizedFood) ([]string, error) {
	var sources []string
	for _, item := range items {
		if strings.TrimSpace(item.Name) == "" {
			continue
		}
		quantity, _ := asFloat(item.Quantity)
		foodItem := &models.FoodItem{
			MealID:         mealID,
			Name:           item.Name,
			NormalizedName: item.Name,
			Quantity:       quantity,
			Unit:           orDefault(item.Unit, "g"),
			Brand:          item.Brand,
			Barcode:        item.Barcode,
		}
		if err := tx.Create(foodItem).Error; err != nil {
			return sources, err
		}
		res := s.nutrition.Resolve(ctx, item.Name, quantity, foodItem.Unit, item.Barcode)
		sources = append(sources, res.Source.String())
		if err := s.insertResolvedNutrients(tx, foodItem, res); err != nil {
			return sources, err
		}
	}
	return sources, nil
}

func (s *MealService) insertResolvedNutrients(tx *gorm.DB, foodItem *models.FoodItem, res Resolution) error {
	for kind, value := range res.Nutrients {
		per100 := value
		if foodItem.Quantity > 0 {
			per100 = value / (foodItem.Quantity / 100.0)
		}
		nutrient := &models.Nutrient{
			FoodItemID: foodItem.ID,
			Name:       string(kind),
			Value:      value,
			Unit:       kind.Unit(),
			Per100:     &per100,
		}
		if err := tx.Create(nutrient).Error; err != nil {
			return err
		}
	}
	return nil
}

// finishIngestion handles the best-effort tail: S3 archival and the
// websocket event.
func (s *MealService) finishIngestion(ctx context.Context, meal *models.Meal, sources []string) {
	if s.archiver != nil && meal.SourceFilePath != "" {
		if err := s.archiver.Archive(ctx, meal.SourceFilePath); err != nil {
			log.Printf("archive of %s failed: %v", meal.SourceFilePath, err)
		}
	}
	if s.hub != nil {
		s.hub.Publish(meal.UserID, MealIngestedEvent{
			Kind:              "meal.ingested",
			MealID:            meal.ID,
			FoodItems:         len(meal.FoodItems),
			ResolutionSources: sources,
		})
	}
}

func (s *MealService) reload(mealID uint) (*models.Meal, error) {
	var meal models.Meal
	err := s.db.
		Preload("FoodItems.Nutrients").
		First(&meal, mealID).Error
	if err != nil {
		return nil, err
	}
	return &meal, nil
}

// List returns the user's meals, newest first, with optional date bounds.
func (s *MealService) List(userID uint, skip, limit int, startDate, endDate *time.Time) ([]models.Meal, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	q := s.db.
		Preload("FoodItems.Nutrients").
		Where("user_id = ?", userID).
		Order("meal_date DESC").
		Offset(skip).
		Limit(limit)
	if startDate != nil {
		q = q.Where("meal_date >= ?", *startDate)
	}
	if endDate != nil {
		q = q.Where("meal_date <= ?", *endDate)
	}

	var meals []models.Meal
	err := q.Find(&meals).Error
	return meals, err
}

// NutrientTotal is one nutrient-name-grouped sum. The unit comes from
// whichever row populated the group first.
type NutrientTotal struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Get returns one meal with its nutrient-name-grouped totals.
func (s *MealService) Get(userID, mealID uint) (*models.Meal, []NutrientTotal, error) {
	var meal models.Meal
	err := s.db.
		Preload("FoodItems.Nutrients").
		Where("id = ? AND user_id = ?", mealID, userID).
		First(&meal).Error
	if err != nil {
		return nil, nil, err // could be ErrRecordNotFound
	}

	totals := sumNutrients(meal.FoodItems)
	return &meal, totals, nil
}

// Delete removes the meal and its descendants, then best-effort removes the
// source file from disk (and the archive copy, if any).
func (s *MealService) Delete(ctx context.Context, userID, mealID uint) error {
	var meal models.Meal
	if err := s.db.
		Where("id = ? AND user_id = ?", mealID, userID).
		First(&meal).Error; err != nil {
		return err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("food_item_id IN (?)",
				tx.Model(&models.FoodItem{}).Select("id").Where("meal_id = ?", meal.ID)).
			Delete(&models.Nutrient{}).Error; err != nil {
			return err
		}
		if err := tx.Where("meal_id = ?", meal.ID).Delete(&models.FoodItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&meal).Error
	})
	if err != nil {
		return err
	}

	if meal.SourceFilePath != "" {
		if err := os.Remove(meal.SourceFilePath); err != nil && !os.IsNotExist(err) {
			log.Printf("could not remove %s: %v", meal.SourceFilePath, err)
		}
		if s.archiver != nil {
			if err := s.archiver.Remove(ctx, meal.SourceFilePath); err != nil {
				log.Printf("could not remove archived copy of %s: %v", meal.SourceFilePath, err)
			}
		}
	}
	return nil
}

func sumNutrients(items []models.FoodItem) []NutrientTotal {
	idx := map[string]int{}
	var totals []NutrientTotal
	for _, item := range items {
		for _, n := range item.Nutrients {
			if i, ok := idx[n.Name]; ok {
				totals[i].Value += n.Value
				continue
			}
			idx[n.Name] = len(totals)
			totals = append(totals, NutrientTotal{Name: n.Name, Value: n.Value, Unit: n.Unit})
		}
	}
	return totals
}

// normalizeMealDate stores timestamps as UTC regardless of the offset the
// client supplied; nil defaults to now.
func normalizeMealDate(t *time.Time) time.Time {
	if t == nil {
		return time.Now().UTC()
	}
	return t.UTC()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
