package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/snapcal/snapcal/internal/display"
	"github.com/snapcal/snapcal/pkg/models"
)

var (
	flagIngName     string
	flagIngQuantity float64
	flagIngUnit     string
	flagIngCalories int
	flagIngProtein  float64
	flagIngCarbs    float64
	flagIngFat      float64
)

func newIngredientCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingredient",
		Short: "Edit the ingredients of a logged meal",
		Long: `Ingredient adds, edits, or removes a single ingredient of a logged
meal. The meal's totals are recalculated from its ingredients after
every change.`,
	}

	cmd.AddCommand(
		newIngredientAddCmd(app),
		newIngredientEditCmd(app),
		newIngredientRemoveCmd(app),
	)
	return cmd
}

func ingredientFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagIngName, "name", "", "ingredient name")
	cmd.Flags().Float64Var(&flagIngQuantity, "quantity", 0, "amount in the given unit")
	cmd.Flags().StringVar(&flagIngUnit, "unit", "g", "unit of measure (g, ml, pcs, ...)")
	cmd.Flags().IntVar(&flagIngCalories, "calories", 0, "calories (kcal)")
	cmd.Flags().Float64Var(&flagIngProtein, "protein", 0, "protein in grams")
	cmd.Flags().Float64Var(&flagIngCarbs, "carbs", 0, "carbohydrates in grams")
	cmd.Flags().Float64Var(&flagIngFat, "fat", 0, "fat in grams")
}

func newIngredientAddCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <meal-id>",
		Short: "Add an ingredient to a meal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagIngName == "" {
				return fmt.Errorf("--name is required")
			}
			return runIngredientAdd(cmd.Context(), args[0], app)
		},
	}
	ingredientFlags(cmd)
	return cmd
}

func runIngredientAdd(ctx context.Context, mealID string, app *App) error {
	store, err := app.NewHistory()
	if err != nil {
		return fmt.Errorf("failed to open meal log: %w", err)
	}
	defer store.Close()

	analysis, err := findAnalysis(ctx, store, mealID)
	if err != nil {
		return err
	}

	ing := models.NewIngredient(flagIngName, flagIngQuantity, flagIngUnit,
		flagIngCalories, flagIngProtein, flagIngCarbs, flagIngFat)
	analysis.AddIngredient(ing)

	if err := store.Update(ctx, analysis); err != nil {
		return err
	}
	display.New(app.Out).Analysis(analysis, app.Config.Model)
	return nil
}

func newIngredientEditCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <meal-id> <ingredient-id>",
		Short: "Edit an ingredient of a meal",
		Long: `Edit changes the given fields of one ingredient; flags that are not
set keep their current value.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngredientEdit(cmd.Context(), cmd, args[0], args[1], app)
		},
	}
	ingredientFlags(cmd)
	return cmd
}

func runIngredientEdit(ctx context.Context, cmd *cobra.Command, mealID, ingID string, app *App) error {
	store, err := app.NewHistory()
	if err != nil {
		return fmt.Errorf("failed to open meal log: %w", err)
	}
	defer store.Close()

	analysis, err := findAnalysis(ctx, store, mealID)
	if err != nil {
		return err
	}

	ing, err := findIngredient(analysis, ingID)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("name") {
		ing.Name = flagIngName
	}
	if cmd.Flags().Changed("quantity") {
		ing.Quantity = flagIngQuantity
	}
	if cmd.Flags().Changed("unit") {
		ing.Unit = flagIngUnit
	}
	if cmd.Flags().Changed("calories") {
		ing.Calories = flagIngCalories
	}
	if cmd.Flags().Changed("protein") {
		ing.Protein = flagIngProtein
	}
	if cmd.Flags().Changed("carbs") {
		ing.Carbs = flagIngCarbs
	}
	if cmd.Flags().Changed("fat") {
		ing.Fat = flagIngFat
	}

	if err := analysis.UpdateIngredient(ing); err != nil {
		return err
	}
	if err := store.Update(ctx, analysis); err != nil {
		return err
	}
	display.New(app.Out).Analysis(analysis, app.Config.Model)
	return nil
}

func newIngredientRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <meal-id> <ingredient-id>",
		Short: "Remove an ingredient from a meal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngredientRemove(cmd.Context(), args[0], args[1], app)
		},
	}
}

func runIngredientRemove(ctx context.Context, mealID, ingID string, app *App) error {
	store, err := app.NewHistory()
	if err != nil {
		return fmt.Errorf("failed to open meal log: %w", err)
	}
	defer store.Close()

	analysis, err := findAnalysis(ctx, store, mealID)
	if err != nil {
		return err
	}

	ing, err := findIngredient(analysis, ingID)
	if err != nil {
		return err
	}

	if err := analysis.RemoveIngredient(ing.ID); err != nil {
		return err
	}
	if err := store.Update(ctx, analysis); err != nil {
		return err
	}
	display.New(app.Out).Analysis(analysis, app.Config.Model)
	return nil
}

// findIngredient resolves a full or prefix ingredient ID within one
// meal.
func findIngredient(a *models.FoodAnalysis, id string) (models.Ingredient, error) {
	if ing, ok := a.Ingredient(id); ok {
		return ing, nil
	}

	var match *models.Ingredient
	for i := range a.Ingredients {
		if len(id) >= 4 && len(a.Ingredients[i].ID) >= len(id) && a.Ingredients[i].ID[:len(id)] == id {
			if match != nil {
				return models.Ingredient{}, fmt.Errorf("ingredient ID prefix %q is ambiguous", id)
			}
			match = &a.Ingredients[i]
		}
	}
	if match == nil {
		return models.Ingredient{}, fmt.Errorf("no ingredient with ID %q", id)
	}
	return *match, nil
}
