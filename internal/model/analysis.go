package model

// Modality identifies the kind of user input an analysis request carries.
type Modality string

const (
	ModalityImage Modality = "image"
	ModalityAudio Modality = "audio"
	ModalityText  Modality = "text"
)

// Valid reports whether m is one of the accepted modalities.
func (m Modality) Valid() bool {
	switch m {
	case ModalityImage, ModalityAudio, ModalityText:
		return true
	}
	return false
}

// MealType is the canonical meal slot of an analyzed meal.
type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnack     MealType = "snack"
)

// DefaultMealType is used when neither the provider nor the caller supplies a valid meal.
const DefaultMealType = MealSnack

// ParseMealType returns the meal type for s and whether s is in the enum.
// Matching is exact; callers normalize case beforehand if they want to.
func ParseMealType(s string) (MealType, bool) {
	switch mt := MealType(s); mt {
	case MealBreakfast, MealLunch, MealDinner, MealSnack:
		return mt, true
	}
	return "", false
}

// ProviderTag names which backend produced an analysis.
type ProviderTag string

const (
	ProviderPrimary   ProviderTag = "primary"
	ProviderSecondary ProviderTag = "secondary"
)

// AnalysisRequest is a validated inbound request. It lives for one call only.
type AnalysisRequest struct {
	Modality      Modality `json:"modality"`
	SubjectUserID string   `json:"user_id"`
	Date          string   `json:"date,omitempty"`
	MealHint      MealType `json:"meal_hint,omitempty"`

	// Exactly one payload is populated per modality.
	ImageURL      string `json:"image_url,omitempty"`
	AudioURL      string `json:"audio_url,omitempty"`
	AudioData     []byte `json:"-"`
	AudioMimeType string `json:"audio_mime_type,omitempty"`
	Text          string `json:"text,omitempty"`
}

// FoodItem is a single detected food. Items with an empty label or a confidence outside [0,1] are dropped.
type FoodItem struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Quantity   string  `json:"quantity,omitempty"`
}

// Macros holds macronutrient grams. All values are >= 0.
type Macros struct {
	Protein float64 `json:"protein"`
	Carbs   float64 `json:"carbs"`
	Fat     float64 `json:"fat"`
}

// NutritionEstimate is the calorie and macro estimate of a meal.
type NutritionEstimate struct {
	Calories float64 `json:"calories"`
	Macros   Macros  `json:"macros"`
}

// AnalysisResponse is the canonical output for every modality and provider.
type AnalysisResponse struct {
	MealType       MealType          `json:"meal_type"`
	Foods          []FoodItem        `json:"foods"`
	Nutrition      NutritionEstimate `json:"nutrition"`
	Transcript     string            `json:"transcript,omitempty"`
	NormalizedText string            `json:"normalized_text,omitempty"`
	Provider       ProviderTag       `json:"provider"`
	Raw            string            `json:"raw"`
}

// AttemptOutcome classifies the result of one provider call.
type AttemptOutcome string

const (
	OutcomeSuccess      AttemptOutcome = "success"
	OutcomeNetworkError AttemptOutcome = "networkError"
	OutcomeEmptyContent AttemptOutcome = "emptyContent"
	OutcomeParseError   AttemptOutcome = "parseError"
)

// ProviderAttempt records one provider call. It is never returned to callers.
type ProviderAttempt struct {
	Provider ProviderTag
	Outcome  AttemptOutcome
	Err      error
}
