package mealplan

import (
	"strconv"
	"strings"
)

// ingredientQuantity is one raw (ingredient, quantity, unit) contribution,
// one per recipe ingredient per plan meal. A recipe cooked on several days
// contributes its ingredients once per meal slot.
type ingredientQuantity struct {
	IngredientID int64
	Amount       float64
	Unit         string
}

// aggregatedQuantity is the consolidated write-path result for one distinct
// ingredient: a rendered, unit-resolved quantity string such as "250 g".
type aggregatedQuantity struct {
	IngredientID int64
	QuantityText string
}

// aggregateQuantities groups raw contributions by ingredient id and keeps
// one running total per ingredient. Each contribution converts to grams
// when its unit is in the conversion table; otherwise the raw value is
// added as-is. The rendered unit is fixed by the ingredient's first
// contribution, so mixed-unit ingredients sum numerically under that unit —
// callers needing multi-unit precision must convert upstream.
func aggregateQuantities(rows []ingredientQuantity) []aggregatedQuantity {
	type total struct {
		value float64
		unit  string
	}

	totals := make(map[int64]*total)
	var order []int64

	for _, row := range rows {
		value, unit := convertQuantity(row.Amount, row.Unit)
		if t, ok := totals[row.IngredientID]; ok {
			t.value += value
			continue
		}
		totals[row.IngredientID] = &total{value: value, unit: unit}
		order = append(order, row.IngredientID)
	}

	result := make([]aggregatedQuantity, 0, len(order))
	for _, id := range order {
		t := totals[id]
		result = append(result, aggregatedQuantity{
			IngredientID: id,
			QuantityText: renderQuantity(t.value, t.unit),
		})
	}
	return result
}

// StoredShoppingItem is a persisted shopping list row as read back from the
// database.
type StoredShoppingItem struct {
	Name         string
	QuantityText string
}

// ShoppingListItem is one consolidated row of the shopping list view.
type ShoppingListItem struct {
	Name         string `json:"name"`
	QuantityText string `json:"quantity"`
}

// mergeShoppingItems is the defensive read-time normalization pass. It
// re-parses persisted quantity strings, tolerating free-text formats that
// were not convertible at write time, and merges rows by case-insensitive
// name plus unit suffix. Because the write path merges by ingredient id and
// this pass merges by display name, two distinct ingredients sharing a name
// collapse into one row here.
func mergeShoppingItems(items []StoredShoppingItem) []ShoppingListItem {
	type entry struct {
		name  string
		unit  string
		value float64
	}

	merged := make(map[string]*entry)
	var order []string

	for _, item := range items {
		name := strings.ToLower(strings.TrimSpace(item.Name))
		value, unit := parseQuantityText(item.QuantityText)

		key := name + "_" + unit
		if e, ok := merged[key]; ok {
			e.value += value
			continue
		}
		merged[key] = &entry{name: name, unit: unit, value: value}
		order = append(order, key)
	}

	result := make([]ShoppingListItem, 0, len(order))
	for _, key := range order {
		e := merged[key]
		result = append(result, ShoppingListItem{
			Name:         e.name,
			QuantityText: renderQuantity(e.value, e.unit),
		})
	}
	return result
}

// parseQuantityText splits a stored quantity string into its numeric value
// and unit suffix. The number keeps digits and dots only; the unit is
// everything else minus digits, dots and whitespace. Unparseable numbers
// count as zero.
func parseQuantityText(text string) (float64, string) {
	var number, unit strings.Builder
	for _, r := range text {
		switch {
		case (r >= '0' && r <= '9') || r == '.':
			number.WriteRune(r)
		case r == ' ' || r == '\t':
			// dropped from both parts
		default:
			unit.WriteRune(r)
		}
	}

	value := 0.0
	if v, err := strconv.ParseFloat(number.String(), 64); err == nil {
		value = v
	}
	return value, unit.String()
}
