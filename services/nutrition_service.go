package services

import (
	"context"
	"log"
	"strings"
	"time"

	"nutrilens/models"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ResolutionSource says where a nutrient profile came from, so callers and
// tests can tell a real lookup from a sensible default.
type ResolutionSource int

const (
	SourceBarcodeLookup ResolutionSource = iota
	SourceNameSearch
	SourceLocalTable
	SourceDefaultProfile
)

func (s ResolutionSource) String() string {
	switch s {
	case SourceBarcodeLookup:
		return "barcode"
	case SourceNameSearch:
		return "search"
	case SourceLocalTable:
		return "local"
	}
	return "default"
}

// Resolution is a resolved, quantity-scaled nutrient profile.
type Resolution struct {
	Nutrients map[models.NutrientKind]float64
	Source    ResolutionSource
}

// Resolver maps a food name (and optional barcode) to scaled nutrient values.
type Resolver interface {
	Resolve(ctx context.Context, foodName string, quantity float64, unit, barcode string) Resolution
}

type barcodeLookup interface {
	LookupBarcode(ctx context.Context, barcode string) (map[models.NutrientKind]float64, error)
}

type nameSearch interface {
	Search(ctx context.Context, query string) (map[models.NutrientKind]float64, error)
}

// Fallback profiles per 100 units, from a trimmed USDA export. Used when
// every external source fails.
var localFoods = map[string]map[models.NutrientKind]float64{
	"apple":          {models.NutrientCalories: 52, models.NutrientProtein: 0.3, models.NutrientCarbs: 14, models.NutrientFiber: 2.4, models.NutrientFat: 0.2, models.NutrientVitaminC: 4.6},
	"banana":         {models.NutrientCalories: 89, models.NutrientProtein: 1.1, models.NutrientCarbs: 23, models.NutrientFiber: 2.6, models.NutrientFat: 0.3, models.NutrientPotassium: 358},
	"chicken breast": {models.NutrientCalories: 165, models.NutrientProtein: 31, models.NutrientFat: 3.6},
	"chicken":        {models.NutrientCalories: 165, models.NutrientProtein: 31, models.NutrientFat: 3.6},
	"rice":           {models.NutrientCalories: 130, models.NutrientProtein: 2.7, models.NutrientCarbs: 28, models.NutrientFiber: 0.4, models.NutrientFat: 0.3},
	"egg":            {models.NutrientCalories: 155, models.NutrientProtein: 13, models.NutrientCarbs: 1.1, models.NutrientFat: 11},
	"bread":          {models.NutrientCalories: 265, models.NutrientProtein: 9, models.NutrientCarbs: 49, models.NutrientFiber: 2.7, models.NutrientFat: 3.2},
	"milk":           {models.NutrientCalories: 42, models.NutrientProtein: 3.4, models.NutrientCarbs: 5, models.NutrientFat: 1},
	"salad":          {models.NutrientCalories: 20, models.NutrientProtein: 1.5, models.NutrientCarbs: 3.5, models.NutrientFiber: 2, models.NutrientFat: 0.2, models.NutrientVitaminC: 15},
	"fish":           {models.NutrientCalories: 136, models.NutrientProtein: 20, models.NutrientFat: 5.9},
	"beef":           {models.NutrientCalories: 250, models.NutrientProtein: 26, models.NutrientFat: 15, models.NutrientIron: 2.6},
	"pasta":          {models.NutrientCalories: 131, models.NutrientProtein: 5, models.NutrientCarbs: 25, models.NutrientFiber: 1.8, models.NutrientFat: 1.1},
}

// Average meal estimate for completely unknown foods.
var defaultProfile = map[models.NutrientKind]float64{
	models.NutrientCalories: 150,
	models.NutrientProtein:  8,
	models.NutrientCarbs:    20,
	models.NutrientFiber:    2,
	models.NutrientFat:      5,
}

// NutritionService resolves per-100 nutrient profiles: barcode lookup first,
// then name search, then the local table, then the default profile. Name
// search hits are cached per normalized food name.
type NutritionService struct {
	barcodes barcodeLookup
	search   nameSearch
	cache    *expirable.LRU[string, map[models.NutrientKind]float64]
}

func NewNutritionService(barcodes barcodeLookup, search nameSearch) *NutritionService {
	return &NutritionService{
		barcodes: barcodes,
		search:   search,
		cache:    expirable.NewLRU[string, map[models.NutrientKind]float64](512, nil, time.Hour),
	}
}

var _ Resolver = (*NutritionService)(nil)

// Resolve returns nutrient values scaled by quantity/100. The scaling basis
// is always "per 100 of whatever quantity unit was supplied"; no conversion
// between units happens here. A non-positive quantity counts as 100.
func (s *NutritionService) Resolve(ctx context.Context, foodName string, quantity float64, unit, barcode string) Resolution {
	if quantity <= 0 {
		quantity = 100
	}

	if barcode != "" {
		if profile, err := s.barcodes.LookupBarcode(ctx, barcode); err == nil {
			return Resolution{Nutrients: scale(profile, quantity), Source: SourceBarcodeLookup}
		} else {
			log.Printf("barcode lookup for %q failed: %v", barcode, err)
		}
	}

	key := NormalizeFoodName(foodName)

	if profile, ok := s.cache.Get(key); ok {
		return Resolution{Nutrients: scale(profile, quantity), Source: SourceNameSearch}
	}
	if profile, err := s.search.Search(ctx, foodName); err == nil {
		s.cache.Add(key, profile)
		return Resolution{Nutrients: scale(profile, quantity), Source: SourceNameSearch}
	} else {
		log.Printf("name search for %q failed: %v", foodName, err)
	}

	if profile, ok := lookupLocal(key); ok {
		return Resolution{Nutrients: scale(profile, quantity), Source: SourceLocalTable}
	}
	return Resolution{Nutrients: scale(defaultProfile, quantity), Source: SourceDefaultProfile}
}

// ClearCache drops every cached name lookup.
func (s *NutritionService) ClearCache() {
	s.cache.Purge()
}

func NormalizeFoodName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func lookupLocal(normalized string) (map[models.NutrientKind]float64, bool) {
	if normalized == "" {
		return nil, false
	}
	if profile, ok := localFoods[normalized]; ok {
		return profile, true
	}
	for key, profile := range localFoods {
		if strings.Contains(normalized, key) || strings.Contains(key, normalized) {
			return profile, true
		}
	}
	return nil, false
}

func scale(per100 map[models.NutrientKind]float64, quantity float64) map[models.NutrientKind]float64 {
	multiplier := quantity / 100.0
	out := make(map[models.NutrientKind]float64, len(per100))
	for kind, value := range per100 {
		out[kind] = value * multiplier
	}
	return out
}
