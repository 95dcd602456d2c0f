package utils

import (
	"fmt"
)

// Single-meal thresholds, roughly a third of common daily reference values.
// These produce advisory warnings only, never a failure.
const (
	mealCalorieLimit = 1200
	mealFatLimitG    = 40
	mealCarbLimitG   = 120
	estimateAccuracyNote   = "values are AI estimates and may be imprecise"
)

// AssessEstimateSafety scans a validated estimate and returns human-readable
// warnings for a heavy single meal.
func AssessEstimateSafety(calories, protein, carbs, fat int) []string {
	var warnings []string

	if calories > mealCalorieLimit {
		warnings = append(warnings,
			fmt.Sprintf("very high calorie meal: %d kcal exceeds %d kcal", calories, mealCalorieLimit))
	}
	if fat > mealFatLimitG {
		warnings = append(warnings,
			fmt.Sprintf("high fat content: %dg exceeds %dg", fat, mealFatLimitG))
	}
	if carbs > mealCarbLimitG {
		warnings = append(warnings,
			fmt.Sprintf("high carbohydrate content: %dg exceeds %dg", carbs, mealCarbLimitG))
	}
	if len(warnings) > 0 {
		warnings = append(warnings, estimateAccuracyNote)
	}
	return warnings
}
