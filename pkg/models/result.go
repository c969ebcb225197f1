package models

// AnalysisResult is the raw shape the vision model is instructed to return.
// It is a direct decode of the model's JSON answer after fence stripping;
// no semantic validation happens at this layer.
type AnalysisResult struct {
	MealName      string           `json:"meal_name"`
	TotalCalories int              `json:"total_calories"`
	Confidence    float64          `json:"confidence"`
	Ingredients   []IngredientData `json:"ingredients"`
	Totals        NutritionData    `json:"totals"`
}

type IngredientData struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
	Calories int     `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

type NutritionData struct {
	Calories int     `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// Usage reports token consumption for one completed API call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}
