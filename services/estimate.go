package services

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NutritionEstimate is the validated model output for one meal.
type NutritionEstimate struct {
	Description string  `json:"description"`
	Calories    int     `json:"calories"`
	Protein     int     `json:"protein"`
	Carbs       int     `json:"carbs"`
	Fat         int     `json:"fat"`
	Confidence  float64 `json:"confidence"`
}

const defaultConfidence = 0.9

var requiredEstimateFields = []string{"description", "calories", "protein", "fat", "carbs"}

// ExtractJSONObject pulls the JSON object out of the model's free-form reply:
// first "{" to last "}", then parse. Best-effort — it assumes no unrelated
// braces wrap the real object. Pure function.
func ExtractJSONObject(raw string) (map[string]interface{}, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, &MalformedOutputError{Err: fmt.Errorf("no JSON object in output")}
	}

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &obj); err != nil {
		return nil, &MalformedOutputError{Err: err}
	}
	return obj, nil
}

// ValidateEstimate checks the five required fields and coerces the macros to
// integers. A missing field is a hard failure, never defaulted; confidence
// alone gets a default. Range checking is deliberately absent.
func ValidateEstimate(obj map[string]interface{}) (*NutritionEstimate, error) {
	for _, field := range requiredEstimateFields {
		if _, ok := obj[field]; !ok {
			return nil, &ValidationError{Field: field}
		}
	}

	est := &NutritionEstimate{
		Description: fmt.Sprintf("%v", obj["description"]),
		Confidence:  defaultConfidence,
	}

	macros := map[string]*int{
		"calories": &est.Calories,
		"protein":  &est.Protein,
		"fat":      &est.Fat,
		"carbs":    &est.Carbs,
	}
	for field, dst := range macros {
		n, ok := coerceInt(obj[field])
		if !ok {
			return nil, &ValidationError{Field: field}
		}
		*dst = n
	}

	if v, ok := obj["confidence"]; ok {
		if f, ok := coerceFloat(v); ok {
			est.Confidence = f
		}
	}
	return est, nil
}

func coerceInt(v interface{}) (int, bool) {
	f, ok := coerceFloat(v)
	if !ok {
		return 0, false
	}
	return int(math.Round(f)), true
}

func coerceFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
