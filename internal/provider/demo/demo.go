// Package demo is the offline fallback: a deterministic analysis result
// used when no valid credential is configured, or when the user asks for
// demo mode explicitly. Its output shape is identical to a real analysis
// so nothing downstream needs to branch.
package demo

import (
	"context"
	"time"

	"github.com/snapcal/snapcal/pkg/models"
)

const defaultDelay = 2 * time.Second

// MealName is the fixed name of the demo result.
const MealName = "Grilled Chicken Salad (Demo)"

type Provider struct {
	delay time.Duration
}

func New(delay time.Duration) *Provider {
	if delay <= 0 {
		delay = defaultDelay
	}
	return &Provider{delay: delay}
}

// Analyze waits out the simulated processing delay and returns the fixed
// demonstration meal. The wait is abortable through ctx.
func (p *Provider) Analyze(ctx context.Context, jpeg []byte) (*models.AnalysisResult, *models.Usage, error) {
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case <-time.After(p.delay):
	}

	return Result(), nil, nil
}

// Result builds the fixed demo analysis.
func Result() *models.AnalysisResult {
	return &models.AnalysisResult{
		MealName:      MealName,
		TotalCalories: 400,
		Confidence:    0.92,
		Ingredients: []models.IngredientData{
			{Name: "Grilled Chicken Breast", Quantity: 150, Unit: "grams", Calories: 247, Protein: 46.4, Carbs: 0, Fat: 5.4},
			{Name: "Mixed Greens", Quantity: 100, Unit: "grams", Calories: 20, Protein: 2.2, Carbs: 3.7, Fat: 0.2},
			{Name: "Cherry Tomatoes", Quantity: 50, Unit: "grams", Calories: 9, Protein: 0.4, Carbs: 1.9, Fat: 0.1},
			{Name: "Olive Oil Dressing", Quantity: 15, Unit: "ml", Calories: 124, Protein: 0, Carbs: 0, Fat: 14},
		},
		Totals: models.NutritionData{Calories: 400, Protein: 49.0, Carbs: 5.6, Fat: 19.7},
	}
}
