package main

import (
	"bytes"
	"context"
	"errors"
	goimage "image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/snapcal/snapcal/internal/config"
	"github.com/snapcal/snapcal/internal/history"
	"github.com/snapcal/snapcal/internal/provider"
	"github.com/snapcal/snapcal/internal/provider/demo"
	"github.com/snapcal/snapcal/pkg/models"
)

// mockAnalyzer implements provider.Analyzer for testing.
type mockAnalyzer struct {
	result *models.AnalysisResult
	usage  *models.Usage
	err    error
	calls  int
}

func (m *mockAnalyzer) Analyze(_ context.Context, _ []byte) (*models.AnalysisResult, *models.Usage, error) {
	m.calls++
	if m.err != nil {
		return nil, nil, m.err
	}
	if m.result != nil {
		return m.result, m.usage, nil
	}
	return &models.AnalysisResult{
		MealName:      "Avocado Toast",
		TotalCalories: 290,
		Confidence:    0.81,
		Ingredients: []models.IngredientData{
			{Name: "Sourdough Bread", Quantity: 60, Unit: "grams", Calories: 160, Protein: 6, Carbs: 30, Fat: 1},
			{Name: "Avocado", Quantity: 70, Unit: "grams", Calories: 130, Protein: 1.4, Carbs: 6, Fat: 11},
		},
		Totals: models.NutritionData{Calories: 290, Protein: 7.4, Carbs: 36, Fat: 12},
	}, &models.Usage{PromptTokens: 800, CompletionTokens: 150}, nil
}

// resetFlags resets all global flags to their default values.
func resetFlags() {
	flagDemo = false
	flagBatch = false
	flagNoSave = false
	flagAPIKey = ""
	flagVerbose = false
	flagParallel = 1
	flagStopOnError = false
	flagDate = ""
	flagWeek = false
	flagShowImage = false
	flagIngName = ""
	flagIngQuantity = 0
	flagIngUnit = "g"
	flagIngCalories = 0
	flagIngProtein = 0
	flagIngCarbs = 0
	flagIngFat = 0
}

// newTestApp creates an App with isolated storage, a mock provider, and
// a fast demo delay.
func newTestApp(t *testing.T, out *bytes.Buffer, mock *mockAnalyzer) *App {
	t.Helper()
	resetFlags()
	t.Setenv("SNAPCAL_DB_PATH", filepath.Join(t.TempDir(), "meals.db"))
	t.Setenv("SNAPCAL_CONFIG_DIR", t.TempDir())
	t.Setenv("SNAPCAL_DEMO_DELAY", "1ms")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	return &App{
		Out:    out,
		Err:    out,
		GetEnv: func(string) string { return "" },
		Config: cfg,
		NewHistory: func() (*history.Store, error) {
			return history.NewStoreWithPath(cfg.DatabasePath)
		},
		NewProvider: func(_ string, _ bool) (provider.Analyzer, error) {
			return mock, nil
		},
		NewDemo: func() provider.Analyzer {
			return demo.New(time.Millisecond)
		},
		Probe: func(context.Context) bool { return true },
	}
}

func execute(t *testing.T, app *App, args ...string) error {
	t.Helper()
	root := newRootCmd(app)
	root.SetArgs(args)
	return root.Execute()
}

func writeTestJPEG(t *testing.T, path string) {
	t.Helper()
	img := goimage.NewRGBA(goimage.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 90, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, nil); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}
}

func listMeals(t *testing.T, app *App) []*models.FoodAnalysis {
	t.Helper()
	store, err := app.NewHistory()
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()
	meals, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("failed to list meals: %v", err)
	}
	return meals
}

func TestAnalyze_Demo(t *testing.T) {
	var out bytes.Buffer
	mock := &mockAnalyzer{}
	app := newTestApp(t, &out, mock)

	photo := filepath.Join(t.TempDir(), "lunch.jpg")
	writeTestJPEG(t, photo)

	if err := execute(t, app, "analyze", "--demo", photo); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(out.String(), demo.MealName) {
		t.Errorf("output missing demo meal name:\n%s", out.String())
	}
	if mock.calls != 0 {
		t.Errorf("demo mode must not call the real provider, got %d calls", mock.calls)
	}

	meals := listMeals(t, app)
	if len(meals) != 1 {
		t.Fatalf("expected 1 logged meal, got %d", len(meals))
	}
	if meals[0].TotalCalories != 400 {
		t.Errorf("expected demo total 400, got %d", meals[0].TotalCalories)
	}
}

func TestAnalyze_WithProvider(t *testing.T) {
	var out bytes.Buffer
	mock := &mockAnalyzer{}
	app := newTestApp(t, &out, mock)

	photo := filepath.Join(t.TempDir(), "breakfast.jpg")
	writeTestJPEG(t, photo)

	err := execute(t, app, "analyze", "--api-key", "sk-test1234567890abcdefgh", photo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if mock.calls != 1 {
		t.Fatalf("expected 1 provider call, got %d", mock.calls)
	}
	if !strings.Contains(out.String(), "Avocado Toast") {
		t.Errorf("output missing meal name:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "800 in / 150 out") {
		t.Errorf("output missing token usage:\n%s", out.String())
	}

	meals := listMeals(t, app)
	if len(meals) != 1 {
		t.Fatalf("expected 1 logged meal, got %d", len(meals))
	}
	if len(meals[0].ImageData) == 0 {
		t.Error("logged meal should embed the compressed photo")
	}
}

func TestAnalyze_NoKeyFallsBackToDemo(t *testing.T) {
	var out bytes.Buffer
	mock := &mockAnalyzer{}
	app := newTestApp(t, &out, mock)

	photo := filepath.Join(t.TempDir(), "snack.jpg")
	writeTestJPEG(t, photo)

	if err := execute(t, app, "analyze", photo); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mock.calls != 0 {
		t.Errorf("missing key must not call the real provider, got %d calls", mock.calls)
	}
	if !strings.Contains(out.String(), demo.MealName) {
		t.Errorf("output missing demo meal name:\n%s", out.String())
	}
}

func TestAnalyze_Offline(t *testing.T) {
	var out bytes.Buffer
	app := newTestApp(t, &out, &mockAnalyzer{})
	app.Probe = func(context.Context) bool { return false }

	photo := filepath.Join(t.TempDir(), "dinner.jpg")
	writeTestJPEG(t, photo)

	err := execute(t, app, "analyze", "--api-key", "sk-test1234567890abcdefgh", photo)
	if err == nil {
		t.Fatal("expected error while offline")
	}
	if !strings.Contains(err.Error(), "no internet connection") {
		t.Errorf("expected connectivity message, got %q", err.Error())
	}
	if meals := listMeals(t, app); len(meals) != 0 {
		t.Errorf("nothing should be logged while offline, got %d meals", len(meals))
	}
}

func TestAnalyze_NoSave(t *testing.T) {
	var out bytes.Buffer
	app := newTestApp(t, &out, &mockAnalyzer{})

	photo := filepath.Join(t.TempDir(), "taste.jpg")
	writeTestJPEG(t, photo)

	if err := execute(t, app, "analyze", "--demo", "--no-save", photo); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meals := listMeals(t, app); len(meals) != 0 {
		t.Errorf("expected no logged meals with --no-save, got %d", len(meals))
	}
}

func TestAnalyze_ProviderError(t *testing.T) {
	var out bytes.Buffer
	mock := &mockAnalyzer{err: provider.ErrInvalidCredential}
	app := newTestApp(t, &out, mock)

	photo := filepath.Join(t.TempDir(), "lunch.jpg")
	writeTestJPEG(t, photo)

	err := execute(t, app, "analyze", "--api-key", "sk-test1234567890abcdefgh", photo)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "rejected") {
		t.Errorf("expected credential message, got %q", err.Error())
	}
}

func TestAnalyze_MissingPhoto(t *testing.T) {
	var out bytes.Buffer
	app := newTestApp(t, &out, &mockAnalyzer{})

	err := execute(t, app, "analyze", "--demo", filepath.Join(t.TempDir(), "nope.jpg"))
	if err == nil {
		t.Fatal("expected error for missing photo")
	}
}

func TestAnalyze_Batch(t *testing.T) {
	var out bytes.Buffer
	app := newTestApp(t, &out, &mockAnalyzer{})

	dir := t.TempDir()
	writeTestJPEG(t, filepath.Join(dir, "a.jpg"))
	writeTestJPEG(t, filepath.Join(dir, "b.jpg"))

	if err := execute(t, app, "analyze", "--demo", "--batch", dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "Done: 2 analyzed, 0 failed") {
		t.Errorf("output missing batch summary:\n%s", out.String())
	}
	if meals := listMeals(t, app); len(meals) != 2 {
		t.Errorf("expected 2 logged meals, got %d", len(meals))
	}
}

func TestHistory_Empty(t *testing.T) {
	var out bytes.Buffer
	app := newTestApp(t, &out, &mockAnalyzer{})

	if err := execute(t, app, "history"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "No meals logged.") {
		t.Errorf("expected empty-state message:\n%s", out.String())
	}
}

func seedMeal(t *testing.T, app *App) *models.FoodAnalysis {
	t.Helper()
	store, err := app.NewHistory()
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	a := &models.FoodAnalysis{
		ID:         "11112222-3333-4000-8000-000000000001",
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
		MealName:   "Lentil Soup",
		Confidence: 0.9,
		Ingredients: []models.Ingredient{
			{ID: "aaaa0000-0000-4000-8000-000000000001", Name: "Lentils", Quantity: 80, Unit: "g", Calories: 270, Protein: 19, Carbs: 45, Fat: 1},
		},
	}
	a.RecalculateTotals()
	if err := store.Create(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	return a
}

func TestShow_ByPrefix(t *testing.T) {
	var out bytes.Buffer
	app := newTestApp(t, &out, &mockAnalyzer{})
	meal := seedMeal(t, app)

	if err := execute(t, app, "show", meal.ID[:8]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "Lentil Soup") {
		t.Errorf("output missing meal:\n%s", out.String())
	}
}

func TestShow_UnknownID(t *testing.T) {
	var out bytes.Buffer
	app := newTestApp(t, &out, &mockAnalyzer{})

	if err := execute(t, app, "show", "ffffffff"); err == nil {
		t.Fatal("expected error for unknown ID")
	}
}

func TestDelete(t *testing.T) {
	var out bytes.Buffer
	app := newTestApp(t, &out, &mockAnalyzer{})
	meal := seedMeal(t, app)

	if err := execute(t, app, "delete", meal.ID[:8]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "Deleted") {
		t.Errorf("output missing confirmation:\n%s", out.String())
	}
	if meals := listMeals(t, app); len(meals) != 0 {
		t.Errorf("expected 0 meals after delete, got %d", len(meals))
	}
}

func TestIngredient_Add(t *testing.T) {
	var out bytes.Buffer
	app := newTestApp(t, &out, &mockAnalyzer{})
	meal := seedMeal(t, app)

	err := execute(t, app, "ingredient", "add", meal.ID,
		"--name", "Carrot", "--quantity", "40", "--unit", "g",
		"--calories", "16", "--carbs", "3.8")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	meals := listMeals(t, app)
	if len(meals[0].Ingredients) != 2 {
		t.Fatalf("expected 2 ingredients, got %d", len(meals[0].Ingredients))
	}
	if meals[0].TotalCalories != 286 {
		t.Errorf("totals not recalculated: got %d kcal", meals[0].TotalCalories)
	}
}

func TestIngredient_Edit(t *testing.T) {
	var out bytes.Buffer
	app := newTestApp(t, &out, &mockAnalyzer{})
	meal := seedMeal(t, app)
	ingID := meal.Ingredients[0].ID

	err := execute(t, app, "ingredient", "edit", meal.ID, ingID, "--calories", "300")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	meals := listMeals(t, app)
	if meals[0].Ingredients[0].Calories != 300 {
		t.Errorf("calories not updated: got %d", meals[0].Ingredients[0].Calories)
	}
	if meals[0].Ingredients[0].Name != "Lentils" {
		t.Errorf("untouched field changed: %q", meals[0].Ingredients[0].Name)
	}
	if meals[0].TotalCalories != 300 {
		t.Errorf("totals not recalculated: got %d", meals[0].TotalCalories)
	}
}

func TestIngredient_Remove(t *testing.T) {
	var out bytes.Buffer
	app := newTestApp(t, &out, &mockAnalyzer{})
	meal := seedMeal(t, app)

	err := execute(t, app, "ingredient", "remove", meal.ID, meal.Ingredients[0].ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	meals := listMeals(t, app)
	if len(meals[0].Ingredients) != 0 {
		t.Fatalf("expected 0 ingredients, got %d", len(meals[0].Ingredients))
	}
	if meals[0].TotalCalories != 0 {
		t.Errorf("totals not recalculated: got %d", meals[0].TotalCalories)
	}
}

func TestExportImport_RoundTrip(t *testing.T) {
	var out bytes.Buffer
	app := newTestApp(t, &out, &mockAnalyzer{})
	meal := seedMeal(t, app)

	dir := t.TempDir()
	exportPath := filepath.Join(dir, "meals.json")
	if err := execute(t, app, "export", exportPath); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	if err := execute(t, app, "delete", meal.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := execute(t, app, "import", exportPath); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	meals := listMeals(t, app)
	if len(meals) != 1 {
		t.Fatalf("expected 1 meal after import, got %d", len(meals))
	}
	if meals[0].ID != meal.ID {
		t.Errorf("import changed the record ID: %s", meals[0].ID)
	}
}

func TestExport_RejectsTraversal(t *testing.T) {
	var out bytes.Buffer
	app := newTestApp(t, &out, &mockAnalyzer{})

	if err := execute(t, app, "export", filepath.Join("..", "meals.json")); err == nil {
		t.Fatal("expected error for traversal path")
	}
}

func TestKeys_SetShowClear(t *testing.T) {
	var out bytes.Buffer
	app := newTestApp(t, &out, &mockAnalyzer{})

	key := "sk-test1234567890abcdefgh"
	if err := execute(t, app, "keys", "set", key); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if strings.Contains(out.String(), key) {
		t.Error("full key must never be printed")
	}

	out.Reset()
	if err := execute(t, app, "keys", "show"); err != nil {
		t.Fatalf("show failed: %v", err)
	}
	if !strings.Contains(out.String(), "sk-t") {
		t.Errorf("masked key missing from output:\n%s", out.String())
	}

	out.Reset()
	if err := execute(t, app, "keys", "clear"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	out.Reset()
	if err := execute(t, app, "keys", "show"); err != nil {
		t.Fatalf("show after clear failed: %v", err)
	}
	if !strings.Contains(out.String(), "No API key stored") {
		t.Errorf("expected empty-state message:\n%s", out.String())
	}
}

func TestKeys_SetRejectsMalformed(t *testing.T) {
	var out bytes.Buffer
	app := newTestApp(t, &out, &mockAnalyzer{})

	if err := execute(t, app, "keys", "set", "not-a-key"); err == nil {
		t.Fatal("expected error for malformed key")
	}
}

func TestHumanize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "offline", err: provider.ErrNoConnection, want: "no internet connection"},
		{name: "bad key", err: provider.ErrInvalidCredential, want: "rejected"},
		{name: "rate limit", err: provider.ErrRateLimited, want: "rate limit"},
		{name: "image too large", err: provider.ErrImageTooLarge, want: "compressed"},
		{name: "decode", err: provider.ErrDecoding, want: "understood"},
		{name: "other passes through", err: errors.New("boom"), want: "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := humanize(tt.err); !strings.Contains(got.Error(), tt.want) {
				t.Errorf("expected %q in %q", tt.want, got.Error())
			}
		})
	}
}
