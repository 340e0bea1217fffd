package mealplan

import (
	"math"
	"strconv"
	"strings"
)

// unitToGrams maps normalized unit names to their gram equivalent per unit.
// Loaded once; read-only after init.
var unitToGrams = map[string]float64{
	"g":           1,
	"gram":        1,
	"grams":       1,
	"tbsp":        15,
	"tablespoon":  15,
	"tablespoons": 15,
	"tsp":         5,
	"teaspoon":    5,
	"teaspoons":   5,
	"cup":         240,
	"cups":        240,
	"clove":       3,
	"pinch":       0.3,
	"medium":      100,
	"serving":     150,
}

// normalizeUnit lowercases and trims a raw unit string.
func normalizeUnit(unit string) string {
	return strings.ToLower(strings.TrimSpace(unit))
}

// convertQuantity normalizes one quantity/unit pair. Known units convert to
// grams; unknown units pass through with the normalized unit string.
func convertQuantity(amount float64, unit string) (value float64, normalized string) {
	u := normalizeUnit(unit)
	if factor, ok := unitToGrams[u]; ok {
		return amount * factor, "g"
	}
	return amount, u
}

// formatAmount renders a quantity with trailing zeros stripped. Values are
// rounded to micro precision first so float accumulation artifacts do not
// leak into the persisted text.
func formatAmount(v float64) string {
	v = math.Round(v*1e6) / 1e6
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// renderQuantity produces the human-readable quantity text stored on
// shopping list items, e.g. "250 g" or "2 bunch" or "3".
func renderQuantity(value float64, unit string) string {
	text := formatAmount(value)
	if unit != "" {
		text += " " + unit
	}
	return text
}
