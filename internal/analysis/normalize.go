package analysis

import (
	"encoding/json"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/meal-analyzer/internal/model"
)

var mealKeys = []string{"meal", "meal_type", "mealType"}

// Project maps a decoded provider object onto the canonical schema field by
// field. Invalid food items are dropped and counted; nutrition values that
// are missing, non-numeric or negative become 0.
func Project(obj map[string]any, hint model.MealType) (*model.AnalysisResponse, int) {
	foods, dropped := projectFoods(obj["foods"])
	return &model.AnalysisResponse{
		MealType:  projectMeal(obj, hint),
		Foods:     foods,
		Nutrition: projectNutrition(obj["nutrition"]),
	}, dropped
}

func projectMeal(obj map[string]any, hint model.MealType) model.MealType {
	for _, k := range mealKeys {
		s, ok := obj[k].(string)
		if !ok {
			continue
		}
		if mt, ok := model.ParseMealType(strings.ToLower(strings.TrimSpace(s))); ok {
			return mt
		}
	}
	if mt, ok := model.ParseMealType(string(hint)); ok {
		return mt
	}
	return model.DefaultMealType
}

func projectFoods(v any) ([]model.FoodItem, int) {
	foods := []model.FoodItem{}
	if v == nil {
		return foods, 0
	}
	items, ok := v.([]any)
	if !ok {
		zap.L().Warn("analysis: foods is not an array, ignoring")
		return foods, 0
	}

	dropped := 0
	for i, it := range items {
		item, reason := projectFoodItem(it)
		if reason != "" {
			dropped++
			zap.L().Warn("analysis: dropped food item",
				zap.Int("index", i),
				zap.String("reason", reason),
			)
			continue
		}
		foods = append(foods, item)
	}
	return foods, dropped
}

// projectFoodItem returns the item or a non-empty reason it was rejected.
// Values are never coerced across types.
func projectFoodItem(v any) (model.FoodItem, string) {
	m, ok := v.(map[string]any)
	if !ok {
		return model.FoodItem{}, "not an object"
	}

	label, ok := m["label"].(string)
	if !ok {
		return model.FoodItem{}, "label is not a string"
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return model.FoodItem{}, "label is empty"
	}

	n, ok := m["confidence"].(json.Number)
	if !ok {
		return model.FoodItem{}, "confidence is not a number"
	}
	conf, err := n.Float64()
	if err != nil || math.IsNaN(conf) || conf < 0 || conf > 1 {
		return model.FoodItem{}, "confidence out of range"
	}

	var quantity string
	switch q := m["quantity"].(type) {
	case nil:
	case string:
		quantity = strings.TrimSpace(q)
	default:
		return model.FoodItem{}, "quantity is not a string"
	}

	return model.FoodItem{Label: label, Confidence: conf, Quantity: quantity}, ""
}

func projectNutrition(v any) model.NutritionEstimate {
	m, _ := v.(map[string]any)
	macros, ok := m["macros"].(map[string]any)
	if !ok {
		// Some answers put macros next to calories.
		macros = m
	}
	return model.NutritionEstimate{
		Calories: nonNegative(m["calories"]),
		Macros: model.Macros{
			Protein: nonNegative(macros["protein"]),
			Carbs:   nonNegative(macros["carbs"]),
			Fat:     nonNegative(macros["fat"]),
		},
	}
}

// nonNegative returns v as a float when it is a finite number >= 0, else 0.
func nonNegative(v any) float64 {
	n, ok := v.(json.Number)
	if !ok {
		return 0
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}
