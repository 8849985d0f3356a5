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

// OpenFoodFactsClient resolves barcodes against the Open Food Facts product
// database. All values map into the internal per-100 vocabulary.
type OpenFoodFactsClient struct {
	baseURL string
	client  *http.Client
}

func NewOpenFoodFactsClient() *OpenFoodFactsClient {
	return &OpenFoodFactsClient{
		baseURL: "https://world.openfoodfacts.org",
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type offProductResponse struct {
	Status  int `json:"status"`
	Product struct {
		Nutriments map[string]interface{} `json:"nutriments"`
	} `json:"product"`
}

// LookupBarcode fetches the product and maps its serving-normalized fields.
// Sodium, calcium, iron and potassium arrive in grams and convert to mg;
// energy falls back from kJ to kcal when no kcal figure is declared.
func (c *OpenFoodFactsClient) LookupBarcode(ctx context.Context, barcode string) (map[models.NutrientKind]float64, error) {
	u := fmt.Sprintf("%s/api/v2/product/%s.json", c.baseURL, url.PathEscape(barcode))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call Open Food Facts: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read Open Food Facts response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("open food facts API error %d: %s", resp.StatusCode, string(body))
	}

	var pr offProductResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, fmt.Errorf("failed to parse Open Food Facts JSON: %w", err)
	}
	if pr.Status != 1 || pr.Product.Nutriments == nil {
		return nil, fmt.Errorf("product %s not found", barcode)
	}

	n := pr.Product.Nutriments
	get := func(key string) float64 {
		v, _ := asFloat(n[key])
		return v
	}

	profile := map[models.NutrientKind]float64{}

	kcal := get("energy-kcal_100g")
	if kcal == 0 {
		// energy_100g is kJ
		kcal = get("energy_100g") / 4.184
	}
	if kcal > 0 {
		profile[models.NutrientCalories] = kcal
	}
	if v := get("proteins_100g"); v > 0 {
		profile[models.NutrientProtein] = v
	}
	if v := get("carbohydrates_100g"); v > 0 {
		profile[models.NutrientCarbs] = v
	}
	if v := get("fiber_100g"); v > 0 {
		profile[models.NutrientFiber] = v
	}
	if v := get("fat_100g"); v > 0 {
		profile[models.NutrientFat] = v
	}
	if v := get("sugars_100g"); v > 0 {
		profile[models.NutrientSugars] = v
	}
	if v := get("sodium_100g"); v > 0 {
		profile[models.NutrientSodium] = v * 1000
	}
	if v := get("calcium_100g"); v > 0 {
		profile[models.NutrientCalcium] = v * 1000
	}
	if v := get("iron_100g"); v > 0 {
		profile[models.NutrientIron] = v * 1000
	}
	if v := get("potassium_100g"); v > 0 {
		profile[models.NutrientPotassium] = v * 1000
	}
	if v := get("vitamin-c_100g"); v > 0 {
		profile[models.NutrientVitaminC] = v * 1000
	}

	if len(profile) == 0 {
		return nil, fmt.Errorf("product %s has no usable nutriments", barcode)
	}
	return profile, nil
}
