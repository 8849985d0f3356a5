package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"nutrilens/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Meal{}, &models.FoodItem{}, &models.Nutrient{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{Email: "test@example.com", Username: "tester", HashedPassword: "x", IsActive: true}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(ctx context.Context, filePath string, kind models.MealSource) (string, error) {
	return f.text, f.err
}

type fakeNormalizer struct {
	result NormalizedText
}

func (f *fakeNormalizer) Normalize(ctx context.Context, rawText string) NormalizedText {
	return f.result
}

type fakeResolver struct {
	res Resolution
}

func (f *fakeResolver) Resolve(ctx context.Context, foodName string, quantity float64, unit, barcode string) Resolution {
	return f.res
}

func newTestMealService(t *testing.T, db *gorm.DB, extractor TextExtractor, normalizer Normalizer, resolver Resolver) *MealService {
	t.Helper()
	return NewMealService(db, extractor, normalizer, resolver, t.TempDir(), nil, nil)
}

func TestSourceTypeForFile(t *testing.T) {
	tests := []struct {
		filename string
		want     models.MealSource
		wantErr  bool
	}{
		{"lunch.jpg", models.SourceImage, false},
		{"lunch.JPEG", models.SourceImage, false},
		{"receipt.png", models.SourceImage, false},
		{"menu.pdf", models.SourcePDF, false},
		{"export.csv", models.SourceCSV, false},
		{"notes.txt", "", true},
		{"archive.zip", "", true},
		{"noextension", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, err := SourceTypeForFile(tt.filename)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedFileType) {
					t.Fatalf("err = %v, want ErrUnsupportedFileType", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("source = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSaveUploadRejectsBeforeWriting(t *testing.T) {
	db := newTestDB(t)
	dir := t.TempDir()
	svc := NewMealService(db, &fakeExtractor{}, &fakeNormalizer{}, &fakeResolver{}, dir, nil, nil)

	_, _, err := svc.SaveUpload("malware.exe", strings.NewReader("data"))
	if !errors.Is(err, ErrUnsupportedFileType) {
		t.Fatalf("err = %v, want ErrUnsupportedFileType", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("upload dir should stay empty on rejection, found %d entries", len(entries))
	}
}

func TestSaveUploadStoresUnderFreshName(t *testing.T) {
	db := newTestDB(t)
	svc := newTestMealService(t, db, &fakeExtractor{}, &fakeNormalizer{}, &fakeResolver{})

	path, source, err := svc.SaveUpload("dinner photo.JPG", strings.NewReader("imagedata"))
	if err != nil {
		t.Fatalf("SaveUpload: %v", err)
	}
	if source != models.SourceImage {
		t.Errorf("source = %v", source)
	}
	if filepath.Ext(path) != ".jpg" {
		t.Errorf("stored extension = %q, want .jpg", filepath.Ext(path))
	}
	if strings.Contains(filepath.Base(path), "dinner") {
		t.Errorf("original name leaked into stored path %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "imagedata" {
		t.Errorf("stored content = %q, err %v", data, err)
	}
}

func TestIngestUploadLabelBranch(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)

	normalizer := &fakeNormalizer{result: NormalizedText{
		IsNutritionLabel: true,
		ServingSize:      "1 cup (240ml)",
		Nutrients: []LabelNutrient{
			{Name: "Calories", Value: 150.0, Unit: "kcal"},
			{Name: "Total Fat", Value: "8", Unit: "g"},
			{Name: "Sodium", Value: 160.0, Unit: "mg"},
			{Name: "", Value: 5.0, Unit: "g"},          // skipped: no name
			{Name: "Mystery", Value: "n/a", Unit: "g"}, // skipped: non-numeric
		},
	}}
	svc := newTestMealService(t, db, &fakeExtractor{text: "Nutrition Facts ..."}, normalizer, &fakeResolver{})

	meal, err := svc.IngestUpload(context.Background(), user.ID, models.MealBreakfast, nil, "/tmp/label.jpg", models.SourceImage)
	if err != nil {
		t.Fatalf("IngestUpload: %v", err)
	}

	if len(meal.FoodItems) != 1 {
		t.Fatalf("got %d food items, want 1 synthetic label item", len(meal.FoodItems))
	}
	item := meal.FoodItems[0]
	if item.Name != "Food item (1 cup (240ml))" {
		t.Errorf("item name = %q", item.Name)
	}
	if item.Quantity != 1 || item.Unit != "serving" {
		t.Errorf("quantity/unit = %v/%q, want 1/serving", item.Quantity, item.Unit)
	}

	if len(item.Nutrients) != 3 {
		t.Fatalf("got %d nutrients, want 3 (two skipped)", len(item.Nutrients))
	}
	byName := map[string]models.Nutrient{}
	for _, n := range item.Nutrients {
		byName[n.Name] = n
	}
	if n := byName["calories"]; n.Value != 150 || n.Unit != "kcal" {
		t.Errorf("calories = %+v", n)
	}
	if n := byName["total_fat"]; n.Value != 8 {
		t.Errorf("total_fat = %+v, want string value coerced to 8", n)
	}
	if n := byName["sodium"]; n.Per100 != nil {
		t.Errorf("label values must not carry a per-100 basis, got %v", *n.Per100)
	}
}

func TestIngestUploadFoodListBranch(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)

	normalizer := &fakeNormalizer{result: NormalizedText{
		FoodItems: []NormalizedFood{
			{Name: "apple", Quantity: 150.0, Unit: "g"},
			{Name: "", Quantity: 1.0, Unit: "piece"}, // skipped
		},
	}}
	resolver := &fakeResolver{res: Resolution{
		Nutrients: map[models.NutrientKind]float64{
			models.NutrientCalories: 78,
			models.NutrientCarbs:    21,
		},
		Source: SourceNameSearch,
	}}
	svc := newTestMealService(t, db, &fakeExtractor{text: "an apple"}, normalizer, resolver)

	meal, err := svc.IngestUpload(context.Background(), user.ID, models.MealSnack, nil, "/tmp/note.csv", models.SourceCSV)
	if err != nil {
		t.Fatalf("IngestUpload: %v", err)
	}

	if len(meal.FoodItems) != 1 {
		t.Fatalf("got %d food items, want 1 (empty-name entry skipped)", len(meal.FoodItems))
	}
	item := meal.FoodItems[0]
	if item.Quantity != 150 {
		t.Errorf("quantity = %v", item.Quantity)
	}

	byName := map[string]models.Nutrient{}
	for _, n := range item.Nutrients {
		byName[n.Name] = n
	}
	cal := byName["calories"]
	if cal.Value != 78 || cal.Unit != "kcal" {
		t.Errorf("calories = %+v", cal)
	}
	if cal.Per100 == nil || *cal.Per100 != 52 {
		t.Errorf("per-100 calories = %v, want 52 (78 at 150g)", cal.Per100)
	}
}

func TestIngestUploadExtractionFailureIsFatal(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)

	svc := newTestMealService(t, db,
		&fakeExtractor{err: ErrExtraction},
		&fakeNormalizer{}, &fakeResolver{})

	_, err := svc.IngestUpload(context.Background(), user.ID, models.MealLunch, nil, "/tmp/bad.jpg", models.SourceImage)
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("err = %v, want ErrExtraction", err)
	}

	var count int64
	db.Model(&models.Meal{}).Count(&count)
	if count != 0 {
		t.Errorf("no meal should persist on extraction failure, found %d", count)
	}
}

func TestIngestUploadDegradedNormalizationStillPersists(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)

	// empty normalization result: meal persists with raw text, zero items
	svc := newTestMealService(t, db,
		&fakeExtractor{text: "unreadable scrawl"},
		&fakeNormalizer{result: NormalizedText{FoodItems: []NormalizedFood{}}},
		&fakeResolver{})

	meal, err := svc.IngestUpload(context.Background(), user.ID, models.MealDinner, nil, "/tmp/blurry.jpg", models.SourceImage)
	if err != nil {
		t.Fatalf("IngestUpload: %v", err)
	}
	if meal.RawText != "unreadable scrawl" {
		t.Errorf("raw text = %q", meal.RawText)
	}
	if len(meal.FoodItems) != 0 {
		t.Errorf("expected zero food items, got %d", len(meal.FoodItems))
	}
}

func TestCreateManual(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)

	resolver := &fakeResolver{res: Resolution{
		Nutrients: map[models.NutrientKind]float64{models.NutrientCalories: 130},
		Source:    SourceLocalTable,
	}}
	svc := newTestMealService(t, db, &fakeExtractor{}, &fakeNormalizer{}, resolver)

	when := time.Date(2026, 8, 20, 12, 30, 0, 0, time.UTC)
	meal, err := svc.CreateManual(context.Background(), user.ID, models.MealLunch, "leftovers", &when,
		[]ManualFoodItem{{Name: "rice", Quantity: 200, Unit: "g"}})
	if err != nil {
		t.Fatalf("CreateManual: %v", err)
	}

	if meal.SourceType != models.SourceManual {
		t.Errorf("source = %v", meal.SourceType)
	}
	if meal.Notes != "leftovers" {
		t.Errorf("notes = %q", meal.Notes)
	}
	if !meal.MealDate.Equal(when) {
		t.Errorf("meal date = %v, want %v", meal.MealDate, when)
	}
	if len(meal.FoodItems) != 1 || len(meal.FoodItems[0].Nutrients) != 1 {
		t.Fatalf("unexpected shape: %+v", meal.FoodItems)
	}
}

func TestListFiltersAndPaginates(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	other := &models.User{Email: "other@example.com", Username: "other", HashedPassword: "x"}
	db.Create(other)

	svc := newTestMealService(t, db, &fakeExtractor{}, &fakeNormalizer{}, &fakeResolver{})

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		db.Create(&models.Meal{UserID: user.ID, MealType: models.MealLunch, SourceType: models.SourceManual, MealDate: base.AddDate(0, 0, i)})
	}
	db.Create(&models.Meal{UserID: other.ID, MealType: models.MealLunch, SourceType: models.SourceManual, MealDate: base})

	meals, err := svc.List(user.ID, 0, 100, nil, nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(meals) != 5 {
		t.Fatalf("got %d meals, want 5 (other user's excluded)", len(meals))
	}
	if !meals[0].MealDate.After(meals[4].MealDate) {
		t.Errorf("meals not ordered newest first")
	}

	start := base.AddDate(0, 0, 2)
	end := base.AddDate(0, 0, 3)
	window, err := svc.List(user.ID, 0, 100, &start, &end)
	if err != nil {
		t.Fatalf("List window: %v", err)
	}
	if len(window) != 2 {
		t.Errorf("windowed list = %d meals, want 2", len(window))
	}

	page, err := svc.List(user.ID, 2, 2, nil, nil)
	if err != nil {
		t.Fatalf("List page: %v", err)
	}
	if len(page) != 2 {
		t.Errorf("page = %d meals, want 2", len(page))
	}
}

func TestGetComputesNutrientTotals(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	svc := newTestMealService(t, db, &fakeExtractor{}, &fakeNormalizer{}, &fakeResolver{})

	meal := &models.Meal{UserID: user.ID, MealType: models.MealDinner, SourceType: models.SourceManual, MealDate: time.Now().UTC()}
	db.Create(meal)
	item1 := &models.FoodItem{MealID: meal.ID, Name: "rice", Quantity: 200, Unit: "g"}
	item2 := &models.FoodItem{MealID: meal.ID, Name: "chicken", Quantity: 150, Unit: "g"}
	db.Create(item1)
	db.Create(item2)
	db.Create(&models.Nutrient{FoodItemID: item1.ID, Name: "calories", Value: 260, Unit: "kcal"})
	db.Create(&models.Nutrient{FoodItemID: item2.ID, Name: "calories", Value: 248, Unit: "kcal"})
	db.Create(&models.Nutrient{FoodItemID: item2.ID, Name: "protein", Value: 46, Unit: "g"})

	got, totals, err := svc.Get(user.ID, meal.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.FoodItems) != 2 {
		t.Fatalf("food items = %d", len(got.FoodItems))
	}

	byName := map[string]NutrientTotal{}
	for _, tot := range totals {
		byName[tot.Name] = tot
	}
	if c := byName["calories"]; c.Value != 508 || c.Unit != "kcal" {
		t.Errorf("calories total = %+v, want 508 kcal", c)
	}
	if p := byName["protein"]; p.Value != 46 {
		t.Errorf("protein total = %+v", p)
	}
}

func TestGetEnforcesOwnership(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	other := &models.User{Email: "other@example.com", Username: "other", HashedPassword: "x"}
	db.Create(other)

	svc := newTestMealService(t, db, &fakeExtractor{}, &fakeNormalizer{}, &fakeResolver{})

	meal := &models.Meal{UserID: other.ID, MealType: models.MealLunch, SourceType: models.SourceManual, MealDate: time.Now().UTC()}
	db.Create(meal)

	_, _, err := svc.Get(user.ID, meal.ID)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("err = %v, want ErrRecordNotFound for foreign meal", err)
	}
}

func TestDeleteCascadesAndRemovesFile(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	svc := newTestMealService(t, db, &fakeExtractor{}, &fakeNormalizer{}, &fakeResolver{})

	file := filepath.Join(t.TempDir(), "upload.jpg")
	if err := os.WriteFile(file, []byte("img"), 0o644); err != nil {
		t.Fatal(err)
	}

	meal := &models.Meal{UserID: user.ID, MealType: models.MealLunch, SourceType: models.SourceImage, SourceFilePath: file, MealDate: time.Now().UTC()}
	db.Create(meal)
	item := &models.FoodItem{MealID: meal.ID, Name: "apple", Quantity: 100, Unit: "g"}
	db.Create(item)
	db.Create(&models.Nutrient{FoodItemID: item.ID, Name: "calories", Value: 52, Unit: "kcal"})

	if err := svc.Delete(context.Background(), user.ID, meal.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var meals, items, nutrients int64
	db.Model(&models.Meal{}).Count(&meals)
	db.Model(&models.FoodItem{}).Count(&items)
	db.Model(&models.Nutrient{}).Count(&nutrients)
	if meals != 0 || items != 0 || nutrients != 0 {
		t.Errorf("leftovers after delete: meals=%d items=%d nutrients=%d", meals, items, nutrients)
	}

	if _, err := os.Stat(file); !os.IsNotExist(err) {
		t.Errorf("source file still on disk")
	}
}

func TestDeleteForeignMealFails(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	other := &models.User{Email: "other@example.com", Username: "other", HashedPassword: "x"}
	db.Create(other)

	svc := newTestMealService(t, db, &fakeExtractor{}, &fakeNormalizer{}, &fakeResolver{})

	meal := &models.Meal{UserID: other.ID, MealType: models.MealLunch, SourceType: models.SourceManual, MealDate: time.Now().UTC()}
	db.Create(meal)

	if err := svc.Delete(context.Background(), user.ID, meal.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("err = %v, want ErrRecordNotFound", err)
	}

	var count int64
	db.Model(&models.Meal{}).Count(&count)
	if count != 1 {
		t.Errorf("foreign meal deleted")
	}
}
