package usecase

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/example/foodsnap/internal/recognition"
	"github.com/example/foodsnap/internal/repository"
)

// buildMealItems normalizes recognized items for persistence: weights are
// clamped to a 1 gram minimum, macro quantities coerced to non-negative
// numbers.
func buildMealItems(items []recognition.Item) []repository.MealItem {
	out := make([]repository.MealItem, 0, len(items))
	for _, item := range items {
		out = append(out, repository.MealItem{
			Name:        item.Name,
			WeightGrams: clampWeight(item.Weight),
			Calories:    coerceMacro(item.Calories),
			Protein:     coerceMacro(item.Protein),
			Fat:         coerceMacro(item.Fat),
			Carbs:       coerceMacro(item.Carbs),
			Confidence:  item.Confidence,
		})
	}
	return out
}

// clampWeight rounds the raw weight and clamps it to a minimum of 1 gram.
// Missing, non-numeric, zero and negative values all become 1.
func clampWeight(raw json.RawMessage) int {
	value, ok := asFloat(raw)
	if !ok {
		return 1
	}
	grams := int(math.Round(value))
	if grams < 1 {
		return 1
	}
	return grams
}

// coerceMacro turns a raw macro quantity into a non-negative float, treating
// anything unparseable as zero.
func coerceMacro(raw json.RawMessage) float64 {
	value, ok := asFloat(raw)
	if !ok || value < 0 {
		return 0
	}
	return value
}

func asFloat(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return parsed, true
		}
	}
	return 0, false
}
