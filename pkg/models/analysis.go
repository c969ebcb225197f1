package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrIngredientNotFound = errors.New("ingredient not found")

// Ingredient is a single line item of an analyzed meal. It has no identity
// outside its parent FoodAnalysis.
type Ingredient struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
	Calories int     `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// NewIngredient assigns a fresh identifier to an ingredient.
func NewIngredient(name string, quantity float64, unit string, calories int, protein, carbs, fat float64) Ingredient {
	return Ingredient{
		ID:       uuid.New().String(),
		Name:     name,
		Quantity: quantity,
		Unit:     unit,
		Calories: calories,
		Protein:  protein,
		Carbs:    carbs,
		Fat:      fat,
	}
}

// NutritionInfo holds aggregate macros for a meal.
type NutritionInfo struct {
	Calories int     `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

func (n NutritionInfo) FormattedProtein() string { return fmt.Sprintf("%.1fg", n.Protein) }
func (n NutritionInfo) FormattedCarbs() string   { return fmt.Sprintf("%.1fg", n.Carbs) }
func (n NutritionInfo) FormattedFat() string     { return fmt.Sprintf("%.1fg", n.Fat) }

// FoodAnalysis is the persisted form of one completed analysis, real or
// demo. Ingredients may be edited after the fact; every mutation goes
// through the methods below so the totals never drift from the line items.
type FoodAnalysis struct {
	ID               string        `json:"id"`
	CreatedAt        time.Time     `json:"created_at"`
	MealName         string        `json:"meal_name"`
	ImageData        []byte        `json:"image_data,omitempty"`
	TotalCalories    int           `json:"total_calories"`
	Confidence       float64       `json:"confidence"`
	Ingredients      []Ingredient  `json:"ingredients"`
	Totals           NutritionInfo `json:"totals"`
	PromptTokens     int           `json:"prompt_tokens,omitempty"`
	CompletionTokens int           `json:"completion_tokens,omitempty"`
}

// RecalculateTotals recomputes the aggregate macros from the current
// ingredient list. Called by every mutation; callers that replace
// Ingredients wholesale must call it themselves.
func (a *FoodAnalysis) RecalculateTotals() {
	totals := NutritionInfo{}
	for _, ing := range a.Ingredients {
		totals.Calories += ing.Calories
		totals.Protein += ing.Protein
		totals.Carbs += ing.Carbs
		totals.Fat += ing.Fat
	}
	a.Totals = totals
	a.TotalCalories = totals.Calories
}

func (a *FoodAnalysis) AddIngredient(ing Ingredient) {
	if ing.ID == "" {
		ing.ID = uuid.New().String()
	}
	a.Ingredients = append(a.Ingredients, ing)
	a.RecalculateTotals()
}

func (a *FoodAnalysis) UpdateIngredient(updated Ingredient) error {
	for i := range a.Ingredients {
		if a.Ingredients[i].ID == updated.ID {
			a.Ingredients[i] = updated
			a.RecalculateTotals()
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrIngredientNotFound, updated.ID)
}

func (a *FoodAnalysis) RemoveIngredient(id string) error {
	for i := range a.Ingredients {
		if a.Ingredients[i].ID == id {
			a.Ingredients = append(a.Ingredients[:i], a.Ingredients[i+1:]...)
			a.RecalculateTotals()
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrIngredientNotFound, id)
}

// Ingredient returns the ingredient with the given id, if present.
func (a *FoodAnalysis) Ingredient(id string) (Ingredient, bool) {
	for _, ing := range a.Ingredients {
		if ing.ID == id {
			return ing, true
		}
	}
	return Ingredient{}, false
}
