package analyzer

import (
	"time"

	"github.com/google/uuid"
	"github.com/snapcal/snapcal/pkg/models"
)

// Normalize maps a raw analysis answer into the persisted record shape.
// The record and each ingredient get fresh identifiers; totals are copied
// from the answer as-is (recomputation only happens on later user edits).
// The preprocessed image bytes are embedded for later display.
func Normalize(result *models.AnalysisResult, imageData []byte, usage *models.Usage) *models.FoodAnalysis {
	ingredients := make([]models.Ingredient, 0, len(result.Ingredients))
	for _, ing := range result.Ingredients {
		ingredients = append(ingredients, models.Ingredient{
			ID:       uuid.New().String(),
			Name:     ing.Name,
			Quantity: ing.Quantity,
			Unit:     ing.Unit,
			Calories: ing.Calories,
			Protein:  ing.Protein,
			Carbs:    ing.Carbs,
			Fat:      ing.Fat,
		})
	}

	record := &models.FoodAnalysis{
		ID:            uuid.New().String(),
		CreatedAt:     time.Now(),
		MealName:      result.MealName,
		ImageData:     imageData,
		TotalCalories: result.TotalCalories,
		Confidence:    result.Confidence,
		Ingredients:   ingredients,
		Totals: models.NutritionInfo{
			Calories: result.Totals.Calories,
			Protein:  result.Totals.Protein,
			Carbs:    result.Totals.Carbs,
			Fat:      result.Totals.Fat,
		},
	}

	if usage != nil {
		record.PromptTokens = usage.PromptTokens
		record.CompletionTokens = usage.CompletionTokens
	}

	return record
}
