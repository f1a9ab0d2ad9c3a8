package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"recipeassistant/nutrition"
)

// RecipeExtractor turns free recipe text into a structured ingredient list.
type RecipeExtractor interface {
	ExtractRecipe(ctx context.Context, text string) (nutrition.Recipe, error)
}

// Analyzer computes nutrient totals for a structured recipe.
type Analyzer interface {
	Analyze(ctx context.Context, recipe nutrition.Recipe) (nutrition.Result, error)
}

type NutritionInfo struct {
	extractor RecipeExtractor
	analyzer  Analyzer
}

func NewNutritionInfo(extractor RecipeExtractor, analyzer Analyzer) *NutritionInfo {
	return &NutritionInfo{extractor: extractor, analyzer: analyzer}
}

func (t *NutritionInfo) Name() string  { return "nutrition_info" }
func (t *NutritionInfo) Title() string { return "Nutrition Info" }
func (t *NutritionInfo) Description() string {
	return "Fetches nutritional information (calories, protein, fat, carbohydrates, sugar) for a recipe. Input must be the full recipe text including its ingredients with quantities."
}

func (t *NutritionInfo) InputSchema() *jsonschema.Schema {
	return textInputSchema("The recipe text, including ingredient quantities.")
}

// Invoke extracts the ingredients, submits them for analysis and returns the
// nutrient totals as a JSON object.
func (t *NutritionInfo) Invoke(ctx context.Context, recipeText string) (string, error) {
	recipe, err := t.extractor.ExtractRecipe(ctx, recipeText)
	if err != nil {
		return "", fmt.Errorf("extract ingredients: %w", err)
	}
	if err := recipe.Validate(); err != nil {
		return "", fmt.Errorf("extract ingredients: %w", err)
	}

	result, err := t.analyzer.Analyze(ctx, recipe)
	if err != nil {
		return "", fmt.Errorf("analyze nutrition: %w", err)
	}

	b, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
