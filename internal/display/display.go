// Package display renders analyses and history listings for the
// terminal, with an optional inline photo preview on terminals that
// speak the Kitty graphics protocol.
package display

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/snapcal/snapcal/internal/cost"
	"github.com/snapcal/snapcal/internal/history"
	"github.com/snapcal/snapcal/pkg/models"
)

type Renderer struct {
	out  io.Writer
	calc *cost.Calculator
}

func New(out io.Writer) *Renderer {
	return &Renderer{out: out, calc: cost.NewCalculator()}
}

// Analysis prints the full breakdown of one record.
func (r *Renderer) Analysis(a *models.FoodAnalysis, model string) {
	fmt.Fprintf(r.out, "%s\n", a.MealName)
	fmt.Fprintf(r.out, "  ID:         %s\n", a.ID)
	fmt.Fprintf(r.out, "  Logged:     %s (%s)\n", a.CreatedAt.Format("2006-01-02 15:04"), humanize.Time(a.CreatedAt))
	fmt.Fprintf(r.out, "  Confidence: %.0f%%\n", a.Confidence*100)
	if len(a.ImageData) > 0 {
		fmt.Fprintf(r.out, "  Photo:      %s\n", humanize.Bytes(uint64(len(a.ImageData))))
	}
	fmt.Fprintln(r.out)

	if len(a.Ingredients) > 0 {
		fmt.Fprintf(r.out, "  %-24s %12s %6s %9s %8s %7s\n", "INGREDIENT", "QUANTITY", "KCAL", "PROTEIN", "CARBS", "FAT")
		for _, ing := range a.Ingredients {
			qty := fmt.Sprintf("%.4g %s", ing.Quantity, ing.Unit)
			fmt.Fprintf(r.out, "  %-24s %12s %6d %8.1fg %7.1fg %6.1fg\n",
				truncate(ing.Name, 24), qty, ing.Calories, ing.Protein, ing.Carbs, ing.Fat)
		}
		fmt.Fprintln(r.out)
	}

	fmt.Fprintf(r.out, "  Total: %d kcal  (protein %s, carbs %s, fat %s)\n",
		a.TotalCalories, a.Totals.FormattedProtein(), a.Totals.FormattedCarbs(), a.Totals.FormattedFat())

	if a.PromptTokens > 0 || a.CompletionTokens > 0 {
		info := r.calc.ForUsage(model, a.PromptTokens, a.CompletionTokens)
		if info.Known {
			fmt.Fprintf(r.out, "  Tokens: %d in / %d out  (~$%.4f)\n", a.PromptTokens, a.CompletionTokens, info.Total)
		} else {
			fmt.Fprintf(r.out, "  Tokens: %d in / %d out\n", a.PromptTokens, a.CompletionTokens)
		}
	}
}

// History prints a compact listing, newest first.
func (r *Renderer) History(analyses []*models.FoodAnalysis) {
	if len(analyses) == 0 {
		fmt.Fprintln(r.out, "No meals logged.")
		return
	}

	for _, a := range analyses {
		fmt.Fprintf(r.out, "%s  %-32s %5d kcal  %s\n",
			a.ID[:8], truncate(a.MealName, 32), a.TotalCalories, humanize.Time(a.CreatedAt))
	}
}

// Week prints per-day calorie totals.
func (r *Renderer) Week(days []history.DayCalories) {
	for _, d := range days {
		bar := strings.Repeat("#", d.Calories/100)
		fmt.Fprintf(r.out, "%s  %5d kcal  %s\n", d.Date.Format("Mon 01-02"), d.Calories, bar)
	}
}

// ShowImage writes the record's embedded photo to the terminal using the
// Kitty graphics protocol.
func (r *Renderer) ShowImage(a *models.FoodAnalysis) error {
	if len(a.ImageData) == 0 {
		return fmt.Errorf("record %s has no embedded photo", a.ID)
	}
	if err := encodeKitty(r.out, a.ImageData); err != nil {
		return fmt.Errorf("failed to render image: %w", err)
	}
	fmt.Fprintln(r.out)
	return nil
}

// IsTerminalSupported reports whether the current terminal is known to
// handle the Kitty graphics protocol.
func IsTerminalSupported() bool {
	termProgram := strings.ToLower(os.Getenv("TERM_PROGRAM"))
	supportedPrograms := []string{"kitty", "ghostty", "iterm.app", "wezterm"}

	for _, prog := range supportedPrograms {
		if termProgram == prog {
			return true
		}
	}

	if os.Getenv("KITTY_WINDOW_ID") != "" {
		return true
	}

	if os.Getenv("ITERM_SESSION_ID") != "" {
		return true
	}

	term := strings.ToLower(os.Getenv("TERM"))
	return strings.Contains(term, "kitty") || strings.Contains(term, "ghostty")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
