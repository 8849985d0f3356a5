package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"nutrilens/models"
)

// FoodData Central nutrient ids.
const (
	fdcEnergyKcal = 1008
	fdcEnergyKJ   = 1062
	fdcProtein    = 1003
	fdcFat        = 1004
	fdcCarbs      = 1005
	fdcFiber      = 1079
	fdcSugars     = 2000
	fdcCalcium    = 1087
	fdcIron       = 1089
	fdcPotassium  = 1092
	fdcSodium     = 1093
	fdcVitaminC   = 1162
)

// USDAClient searches USDA FoodData Central by food name and maps the best
// match's per-100g nutrients into the internal vocabulary.
type USDAClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewUSDAClient(apiKey string) *USDAClient {
	return &USDAClient{
		baseURL: "https://api.nal.usda.gov",
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type fdcSearchResponse struct {
	Foods []struct {
		Description   string `json:"description"`
		FoodNutrients []struct {
			NutrientID int     `json:"nutrientId"`
			Value      float64 `json:"value"`
		} `json:"foodNutrients"`
	} `json:"foods"`
}

func (c *USDAClient) Search(ctx context.Context, query string) (map[models.NutrientKind]float64, error) {
	u := fmt.Sprintf("%s/fdc/v1/foods/search?api_key=%s&query=%s&pageSize=1",
		c.baseURL, url.QueryEscape(c.apiKey), url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call FoodData Central: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read FoodData Central response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fooddata central API error %d: %s", resp.StatusCode, string(body))
	}

	var sr fdcSearchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("failed to parse FoodData Central JSON: %w", err)
	}
	if len(sr.Foods) == 0 {
		return nil, fmt.Errorf("no match for %q", query)
	}

	byID := map[int]float64{}
	for _, fn := range sr.Foods[0].FoodNutrients {
		byID[fn.NutrientID] = fn.Value
	}

	profile := map[models.NutrientKind]float64{}

	kcal := byID[fdcEnergyKcal]
	if kcal == 0 && byID[fdcEnergyKJ] > 0 {
		kcal = byID[fdcEnergyKJ] / 4.184
	}
	if kcal > 0 {
		profile[models.NutrientCalories] = kcal
	}

	for id, kind := range map[int]models.NutrientKind{
		fdcProtein:   models.NutrientProtein,
		fdcFat:       models.NutrientFat,
		fdcCarbs:     models.NutrientCarbs,
		fdcFiber:     models.NutrientFiber,
		fdcSugars:    models.NutrientSugars,
		fdcCalcium:   models.NutrientCalcium,
		fdcIron:      models.NutrientIron,
		fdcPotassium: models.NutrientPotassium,
		fdcSodium:    models.NutrientSodium,
		fdcVitaminC:  models.NutrientVitaminC,
	} {
		if v := byID[id]; v > 0 {
			profile[kind] = v
		}
	}

	if len(profile) == 0 {
		return nil, fmt.Errorf("match for %q has no usable nutrients", query)
	}
	return profile, nil
}
