package model

import "time"

// MealRecord is the persisted form of a successful analysis.
type MealRecord struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Date      string            `json:"date,omitempty"`
	Source    Modality          `json:"source"`
	MealType  MealType          `json:"meal_type"`
	Foods     []FoodItem        `json:"foods"`
	Nutrition NutritionEstimate `json:"nutrition"`
	Provider  ProviderTag       `json:"provider"`
	Raw       string            `json:"raw"`

	// Modality-derived fields.
	ImageURL       string `json:"image_url,omitempty"`
	AudioURL       string `json:"audio_url,omitempty"`
	Transcript     string `json:"transcript,omitempty"`
	NormalizedText string `json:"normalized_text,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewMealRecord builds the record persisted for req once resp exists.
// The ID and CreatedAt are assigned by the store.
func NewMealRecord(req *AnalysisRequest, resp *AnalysisResponse) MealRecord {
	foods := resp.Foods
	if foods == nil {
		foods = []FoodItem{}
	}
	return MealRecord{
		UserID:         req.SubjectUserID,
		Date:           req.Date,
		Source:         req.Modality,
		MealType:       resp.MealType,
		Foods:          foods,
		Nutrition:      resp.Nutrition,
		Provider:       resp.Provider,
		Raw:            resp.Raw,
		ImageURL:       req.ImageURL,
		AudioURL:       req.AudioURL,
		Transcript:     resp.Transcript,
		NormalizedText: resp.NormalizedText,
	}
}

// MealFilter selects stored meals for a user.
type MealFilter struct {
	UserID string `json:"user_id"`
	Date   string `json:"date,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}
