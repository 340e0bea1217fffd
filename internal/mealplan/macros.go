package mealplan

import (
	"strconv"
	"strings"

	"meal-planner-backend/internal/spoonacular"
)

// Macros is a per-day macro-nutrient tuple. Calories in kcal, the rest in
// grams.
type Macros struct {
	Kcal    int `json:"kcal"`
	Protein int `json:"protein_g"`
	Carb    int `json:"carb_g"`
	Fat     int `json:"fat_g"`
}

// Variance thresholds: a plan whose actual macros deviate from the target by
// more than these is flagged in the logs. Never fatal.
const (
	kcalThreshold  = 200
	macroThreshold = 20
)

// MacroVariance holds the absolute per-macro deltas between a plan's target
// and actual macros, plus the names of the macros whose delta exceeded its
// threshold.
type MacroVariance struct {
	KcalDelta    int
	ProteinDelta int
	CarbDelta    int
	FatDelta     int
	Exceeded     []string
}

// Flagged reports whether any macro exceeded its threshold.
func (v MacroVariance) Flagged() bool {
	return len(v.Exceeded) > 0
}

// compareMacros computes the variance between target and actual macros.
// Pure and stateless.
func compareMacros(target, actual Macros) MacroVariance {
	v := MacroVariance{
		KcalDelta:    abs(actual.Kcal - target.Kcal),
		ProteinDelta: abs(actual.Protein - target.Protein),
		CarbDelta:    abs(actual.Carb - target.Carb),
		FatDelta:     abs(actual.Fat - target.Fat),
	}
	if v.KcalDelta > kcalThreshold {
		v.Exceeded = append(v.Exceeded, "kcal")
	}
	if v.ProteinDelta > macroThreshold {
		v.Exceeded = append(v.Exceeded, "protein")
	}
	if v.CarbDelta > macroThreshold {
		v.Exceeded = append(v.Exceeded, "carb")
	}
	if v.FatDelta > macroThreshold {
		v.Exceeded = append(v.Exceeded, "fat")
	}
	return v
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// resolveTargets computes the effective target macros from caller input,
// falling back per-field to the provider's per-day averages. The actual
// macros always come from the provider.
func resolveTargets(kcal, protein, carb, fat *int, n spoonacular.Nutrients) (target, actual Macros) {
	actual = Macros{
		Kcal:    int(n.Calories),
		Protein: int(n.Protein),
		Carb:    int(n.Carbohydrates),
		Fat:     int(n.Fat),
	}

	target = actual
	if kcal != nil {
		target.Kcal = *kcal
	}
	if protein != nil {
		target.Protein = *protein
	}
	if carb != nil {
		target.Carb = *carb
	}
	if fat != nil {
		target.Fat = *fat
	}
	return target, actual
}

// parseNutritionValue extracts the numeric part of a free-text nutrition
// value like "529 kcal" or "30g". Returns false when nothing parseable
// remains.
func parseNutritionValue(input string) (float64, bool) {
	var b strings.Builder
	for _, r := range input {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
