package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// LabelNutrient is one declared nutrient from a nutrition facts panel.
// Value is left loosely typed because models occasionally emit strings;
// entries that cannot be coerced to a number are skipped individually.
type LabelNutrient struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
	Unit  string      `json:"unit"`
}

// NormalizedFood is one structured food entry extracted from free text.
type NormalizedFood struct {
	Name     string      `json:"name"`
	Quantity interface{} `json:"quantity"`
	Unit     string      `json:"unit"`
	Brand    string      `json:"brand"`
	Barcode  string      `json:"barcode,omitempty"`
}

// NormalizedText is the normalization adapter's result. The zero value
// (IsNutritionLabel false, empty FoodItems) is the degraded best-effort
// outcome for any backend or parse failure.
type NormalizedText struct {
	IsNutritionLabel     bool             `json:"is_nutrition_label"`
	ServingSize          string           `json:"serving_size"`
	ServingsPerContainer interface{}      `json:"servings_per_container"`
	Nutrients            []LabelNutrient  `json:"nutrients"`
	FoodItems            []NormalizedFood `json:"food_items"`
}

type Insight struct {
	Explanation     string `json:"explanation"`
	Recommendations string `json:"recommendations"`
}

// Normalizer converts raw extracted text into structured food data.
type Normalizer interface {
	Normalize(ctx context.Context, rawText string) NormalizedText
}

// InsightGenerator turns aggregated nutrient totals into prose.
type InsightGenerator interface {
	GenerateHealthInsight(ctx context.Context, summary map[string]float64, period string) Insight
}

// LLMService talks to an Ollama backend. Timeouts and connection failures
// never propagate; callers always get a usable (possibly empty) result.
type LLMService struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewLLMService(baseURL, model string) *LLMService {
	return &LLMService{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		// label parsing can take a while on small hosts
		client: &http.Client{Timeout: 180 * time.Second},
	}
}

var _ Normalizer = (*LLMService)(nil)
var _ InsightGenerator = (*LLMService)(nil)

const labelPromptFmt = `This is a nutrition facts label. Extract ALL nutritional information from the text.

Return a JSON object with:
- "is_nutrition_label": true
- "serving_size": the serving size text (e.g., "1 Serving (720g)" or "1 cup (255g)")
- "servings_per_container": number of servings per container (if mentioned)
- "nutrients": an array of ALL nutrient objects found, each with:
  * "name": normalized nutrient name (use lowercase, underscores: calories, total_fat, saturated_fat, trans_fat, cholesterol, sodium, total_carbohydrate, dietary_fiber, total_sugars, added_sugars, protein, vitamin_d, calcium, iron, potassium, etc.)
  * "value": numeric value (float or int)
  * "unit": unit of measurement (g, mg, mcg, kcal, etc.)

IMPORTANT:
- Extract ALL nutrients mentioned in the label, not just the main ones
- Convert percentage values to actual amounts if needed (e.g., if it says "Total Fat 16g (21%%)", use 16g, not 21%%)
- If a value is 0, still include it (e.g., "Trans Fat 0g")
- Parse numbers carefully - handle decimals, fractions, and various formats

Text to parse:
%s

Return only valid JSON, no other text.`

const foodListPromptFmt = `Extract food items from the following text and normalize them.
Return a JSON object with:
- "is_nutrition_label": false
- "food_items": array of food objects, each with: name (normalized food name), quantity (number), unit (g, ml, pieces, etc.), and brand (if mentioned).

Text: %s

Return only valid JSON, no other text. Example:
{
  "is_nutrition_label": false,
  "food_items": [
    {"name": "apple", "quantity": 1, "unit": "piece", "brand": null},
    {"name": "whole milk", "quantity": 250, "unit": "ml", "brand": "Organic Valley"}
  ]
}`

const insightPromptFmt = `Based on the following nutrient intake over %s, provide:
1. A brief explanation of the nutritional status
2. Recommendations for improvement

Nutrient Summary: %s

IMPORTANT: Do not provide medical diagnosis or treatment advice. Only provide general nutritional information and recommendations.

Return JSON format:
{
  "explanation": "brief explanation",
  "recommendations": "actionable recommendations"
}`

// Normalize classifies the text locally, then asks the backend for strict
// JSON in the matching mode. Anything unexpected degrades to the empty
// result rather than returning an error.
func (s *LLMService) Normalize(ctx context.Context, rawText string) NormalizedText {
	empty := NormalizedText{FoodItems: []NormalizedFood{}}

	var prompt string
	if LooksLikeNutritionLabel(rawText) {
		prompt = fmt.Sprintf(labelPromptFmt, rawText)
	} else {
		prompt = fmt.Sprintf(foodListPromptFmt, rawText)
	}

	responseText, err := s.generate(ctx, prompt)
	if err != nil {
		log.Printf("llm normalization failed: %v", err)
		return empty
	}

	cleaned := stripCodeFences(responseText)

	var parsed NormalizedText
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		// legacy shape: a bare array of food items
		var items []NormalizedFood
		if err2 := json.Unmarshal([]byte(extractJSONArray(cleaned)), &items); err2 == nil && len(items) > 0 {
			return NormalizedText{FoodItems: items}
		}
		log.Printf("llm returned unparsable JSON: %v", err)
		return empty
	}

	if parsed.IsNutritionLabel {
		if parsed.ServingSize == "" {
			parsed.ServingSize = "1 serving"
		}
		if parsed.Nutrients == nil {
			parsed.Nutrients = []LabelNutrient{}
		}
		parsed.FoodItems = []NormalizedFood{}
		return parsed
	}
	if parsed.FoodItems == nil {
		return empty
	}
	return NormalizedText{IsNutritionLabel: false, FoodItems: parsed.FoodItems}
}

// GenerateHealthInsight returns explanation/recommendation strings; canned
// fallbacks stand in when the backend misbehaves.
func (s *LLMService) GenerateHealthInsight(ctx context.Context, summary map[string]float64, period string) Insight {
	fallback := Insight{
		Explanation:     "Unable to generate insight at this time.",
		Recommendations: "Please consult with a healthcare professional.",
	}

	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fallback
	}

	responseText, err := s.generate(ctx, fmt.Sprintf(insightPromptFmt, period, summaryJSON))
	if err != nil {
		log.Printf("llm insight generation failed: %v", err)
		return fallback
	}

	var insight Insight
	if err := json.Unmarshal([]byte(stripCodeFences(responseText)), &insight); err != nil {
		return fallback
	}
	return insight
}

// generate calls Ollama /api/generate in non-streaming JSON mode.
func (s *LLMService) generate(ctx context.Context, prompt string) (string, error) {
	payload := map[string]interface{}{
		"model":  s.model,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/generate", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to parse ollama response: %w", err)
	}
	return out.Response, nil
}

// stripCodeFences removes Markdown code-fence wrappers and narrows the text
// to its outermost JSON object when one is present.
func stripCodeFences(text string) string {
	if i := strings.Index(text, "```json"); i != -1 {
		text = text[i+len("```json"):]
		if j := strings.Index(text, "```"); j != -1 {
			text = text[:j]
		}
	} else if i := strings.Index(text, "```"); i != -1 {
		text = text[i+3:]
		if j := strings.Index(text, "```"); j != -1 {
			text = text[:j]
		}
	}
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "[") {
		return text
	}
	if match := jsonObjectRe.FindString(text); match != "" {
		return match
	}
	return text
}

var jsonObjectRe = regexp.MustCompile(`\{[\s\S]*\}`)

func extractJSONArray(text string) string {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end == -1 || end <= start {
		return text
	}
	return text[start : end+1]
}

// asFloat coerces the loosely typed numbers the LLM emits. A nil value
// counts as zero; unparsable strings do not count at all.
func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, true
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
