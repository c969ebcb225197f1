package analyzer

import (
	"context"
	"errors"
	goimage "image"
	"image/color"
	"testing"
	"time"

	snapimage "github.com/snapcal/snapcal/internal/image"
	"github.com/snapcal/snapcal/internal/provider"
	"github.com/snapcal/snapcal/internal/provider/demo"
	"github.com/snapcal/snapcal/pkg/models"
)

type fakeCreds struct {
	key   string
	valid bool
}

func (f *fakeCreds) Get() string   { return f.key }
func (f *fakeCreds) IsValid() bool { return f.valid }

type fakeNetwork struct{ up bool }

func (f *fakeNetwork) Available() bool { return f.up }

type fakeProvider struct {
	result *models.AnalysisResult
	usage  *models.Usage
	err    error
	calls  int
	jpeg   []byte
}

func (f *fakeProvider) Analyze(ctx context.Context, jpeg []byte) (*models.AnalysisResult, *models.Usage, error) {
	f.calls++
	f.jpeg = jpeg
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.result, f.usage, nil
}

func testImage() goimage.Image {
	img := goimage.NewNRGBA(goimage.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.NRGBA{R: 120, G: 90, B: 60, A: 255})
		}
	}
	return img
}

func newTestService(creds *fakeCreds, network *fakeNetwork, real *fakeProvider) *Service {
	return NewService(
		creds,
		network,
		snapimage.DefaultOptions(),
		func(apiKey string) (provider.Analyzer, error) { return real, nil },
		demo.New(time.Millisecond),
	)
}

func TestAnalyze_NoConnection(t *testing.T) {
	real := &fakeProvider{}
	svc := newTestService(&fakeCreds{valid: true}, &fakeNetwork{up: false}, real)

	_, err := svc.Analyze(context.Background(), testImage())
	if !errors.Is(err, provider.ErrNoConnection) {
		t.Errorf("Analyze() error = %v, want ErrNoConnection", err)
	}
	if real.calls != 0 {
		t.Errorf("provider called %d times while offline, want 0", real.calls)
	}
}

func TestAnalyze_InvalidCredentialFallsBackToDemo(t *testing.T) {
	real := &fakeProvider{}
	svc := newTestService(&fakeCreds{valid: false}, &fakeNetwork{up: true}, real)

	record, err := svc.Analyze(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if real.calls != 0 {
		t.Errorf("real provider called %d times without credential, want 0", real.calls)
	}
	if record.MealName != "Grilled Chicken Salad (Demo)" {
		t.Errorf("MealName = %q, want demo meal", record.MealName)
	}
	if record.TotalCalories != 400 {
		t.Errorf("TotalCalories = %d, want 400", record.TotalCalories)
	}
	if record.ID == "" {
		t.Error("record should get a fresh identifier")
	}
	if len(record.ImageData) == 0 {
		t.Error("demo record should embed the compressed photo")
	}
}

func TestAnalyze_SuccessNormalizesResult(t *testing.T) {
	real := &fakeProvider{
		result: &models.AnalysisResult{
			MealName:      "Pasta",
			TotalCalories: 600,
			Confidence:    0.8,
			Ingredients: []models.IngredientData{
				{Name: "Spaghetti", Quantity: 200, Unit: "grams", Calories: 310, Protein: 11, Carbs: 62, Fat: 1.8},
				{Name: "Tomato Sauce", Quantity: 150, Unit: "grams", Calories: 290, Protein: 3, Carbs: 20, Fat: 22},
			},
			Totals: models.NutritionData{Calories: 600, Protein: 14, Carbs: 82, Fat: 23.8},
		},
		usage: &models.Usage{PromptTokens: 900, CompletionTokens: 150},
	}
	svc := newTestService(&fakeCreds{key: "sk-valid-key-1234567890", valid: true}, &fakeNetwork{up: true}, real)

	record, err := svc.Analyze(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if real.calls != 1 {
		t.Errorf("provider calls = %d, want 1", real.calls)
	}
	if len(real.jpeg) == 0 {
		t.Error("provider should receive the compressed payload")
	}
	if record.MealName != "Pasta" {
		t.Errorf("MealName = %q", record.MealName)
	}
	if len(record.Ingredients) != 2 {
		t.Fatalf("len(Ingredients) = %d, want 2", len(record.Ingredients))
	}
	if record.Ingredients[0].ID == "" || record.Ingredients[1].ID == "" {
		t.Error("ingredients should get fresh identifiers")
	}
	if record.Ingredients[0].ID == record.Ingredients[1].ID {
		t.Error("ingredient identifiers should be distinct")
	}
	// Totals are copied from the answer, not recomputed at this stage.
	if record.Totals.Calories != 600 || record.Totals.Fat != 23.8 {
		t.Errorf("Totals = %+v, want copied from raw result", record.Totals)
	}
	if record.PromptTokens != 900 || record.CompletionTokens != 150 {
		t.Errorf("token usage = %d/%d, want 900/150", record.PromptTokens, record.CompletionTokens)
	}
	if record.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestAnalyze_ProviderErrorPropagates(t *testing.T) {
	real := &fakeProvider{err: provider.ErrRateLimited}
	svc := newTestService(&fakeCreds{key: "sk-valid-key-1234567890", valid: true}, &fakeNetwork{up: true}, real)

	_, err := svc.Analyze(context.Background(), testImage())
	if !errors.Is(err, provider.ErrRateLimited) {
		t.Errorf("Analyze() error = %v, want ErrRateLimited", err)
	}
}

func TestAnalyze_ImageTooLarge(t *testing.T) {
	real := &fakeProvider{}
	svc := NewService(
		&fakeCreds{key: "sk-valid-key-1234567890", valid: true},
		&fakeNetwork{up: true},
		snapimage.Options{MaxBytes: 8, StartQuality: 100, QualityStep: 10, QualityFloor: 10, ResizeWidth: 16, ResizeHeight: 16, ResizeQuality: 80},
		func(apiKey string) (provider.Analyzer, error) { return real, nil },
		demo.New(time.Millisecond),
	)

	_, err := svc.Analyze(context.Background(), testImage())
	if !errors.Is(err, provider.ErrImageTooLarge) {
		t.Errorf("Analyze() error = %v, want ErrImageTooLarge", err)
	}
	if real.calls != 0 {
		t.Errorf("provider called %d times after encode failure, want 0", real.calls)
	}
}

func TestAnalyzeDemo_ExplicitDemoMode(t *testing.T) {
	real := &fakeProvider{}
	// Valid credential, but demo mode is requested explicitly.
	svc := newTestService(&fakeCreds{key: "sk-valid-key-1234567890", valid: true}, &fakeNetwork{up: true}, real)

	record, err := svc.AnalyzeDemo(context.Background(), testImage())
	if err != nil {
		t.Fatalf("AnalyzeDemo() error = %v", err)
	}
	if real.calls != 0 {
		t.Errorf("real provider called %d times in demo mode, want 0", real.calls)
	}
	if record.MealName != "Grilled Chicken Salad (Demo)" {
		t.Errorf("MealName = %q, want demo meal", record.MealName)
	}
}

func TestNormalize_EmptyIngredients(t *testing.T) {
	record := Normalize(&models.AnalysisResult{MealName: "Water"}, nil, nil)
	if record.Ingredients == nil {
		t.Error("Ingredients should be an empty slice, not nil")
	}
	if record.PromptTokens != 0 {
		t.Errorf("PromptTokens = %d, want 0 without usage", record.PromptTokens)
	}
}
