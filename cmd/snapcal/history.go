package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/snapcal/snapcal/internal/display"
	"github.com/snapcal/snapcal/internal/history"
	"github.com/snapcal/snapcal/pkg/models"
)

var (
	flagDate      string
	flagWeek      bool
	flagShowImage bool
)

func newHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List logged meals",
		Long: `History lists logged meals, newest first. With --date it shows a
single day with its calorie total; with --week it shows per-day totals
for the last seven days.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd.Context(), app)
		},
	}

	cmd.Flags().StringVar(&flagDate, "date", "", "show one day (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&flagWeek, "week", false, "show per-day totals for the last 7 days")

	return cmd
}

func runHistory(ctx context.Context, app *App) error {
	store, err := app.NewHistory()
	if err != nil {
		return fmt.Errorf("failed to open meal log: %w", err)
	}
	defer store.Close()

	r := display.New(app.Out)

	if flagWeek {
		days, err := store.WeeklyCalories(ctx, time.Now())
		if err != nil {
			return err
		}
		r.Week(days)
		return nil
	}

	if flagDate != "" {
		day, err := time.Parse("2006-01-02", flagDate)
		if err != nil {
			return fmt.Errorf("invalid date %q: use YYYY-MM-DD", flagDate)
		}
		analyses, err := store.ListByDate(ctx, day)
		if err != nil {
			return err
		}
		r.History(analyses)
		if len(analyses) > 0 {
			total, err := store.TotalCaloriesFor(ctx, day)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "\nTotal for %s: %d kcal\n", flagDate, total)
		}
		return nil
	}

	analyses, err := store.List(ctx)
	if err != nil {
		return err
	}
	r.History(analyses)
	return nil
}

func newShowCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one logged meal in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd.Context(), args[0], app)
		},
	}

	cmd.Flags().BoolVar(&flagShowImage, "image", false, "render the stored photo inline (kitty-capable terminals)")

	return cmd
}

func runShow(ctx context.Context, id string, app *App) error {
	store, err := app.NewHistory()
	if err != nil {
		return fmt.Errorf("failed to open meal log: %w", err)
	}
	defer store.Close()

	analysis, err := findAnalysis(ctx, store, id)
	if err != nil {
		return err
	}

	r := display.New(app.Out)
	r.Analysis(analysis, app.Config.Model)

	if flagShowImage {
		if !display.IsTerminalSupported() {
			fmt.Fprintln(app.Err, "Warning: this terminal does not support inline images")
		}
		return r.ShowImage(analysis)
	}
	return nil
}

func newDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a logged meal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd.Context(), args[0], app)
		},
	}
}

func runDelete(ctx context.Context, id string, app *App) error {
	store, err := app.NewHistory()
	if err != nil {
		return fmt.Errorf("failed to open meal log: %w", err)
	}
	defer store.Close()

	analysis, err := findAnalysis(ctx, store, id)
	if err != nil {
		return err
	}

	if err := store.Delete(ctx, analysis.ID); err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Deleted %s (%s)\n", analysis.ID[:8], analysis.MealName)
	return nil
}

// findAnalysis resolves a full or prefix ID. Prefixes must be
// unambiguous and at least 4 characters.
func findAnalysis(ctx context.Context, store *history.Store, id string) (*models.FoodAnalysis, error) {
	analysis, err := store.Get(ctx, id)
	if err == nil {
		return analysis, nil
	}
	if !errors.Is(err, history.ErrNotFound) {
		return nil, err
	}

	if len(id) < 4 {
		return nil, fmt.Errorf("no meal with ID %q (prefixes need at least 4 characters)", id)
	}

	all, err := store.List(ctx)
	if err != nil {
		return nil, err
	}

	var match *models.FoodAnalysis
	for _, a := range all {
		if strings.HasPrefix(a.ID, id) {
			if match != nil {
				return nil, fmt.Errorf("ID prefix %q is ambiguous", id)
			}
			match = a
		}
	}
	if match == nil {
		return nil, fmt.Errorf("no meal with ID %q", id)
	}
	return match, nil
}
