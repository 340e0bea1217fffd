package mealplan

import "time"

// CreatePlanRequest carries the caller's (partially optional) macro targets
// and the requested day count. Nil targets fall back per-field to the
// provider's averages.
type CreatePlanRequest struct {
	TargetKcal *int `json:"targetKcal"`
	ProteinG   *int `json:"proteinG"`
	CarbG      *int `json:"carbG"`
	FatG       *int `json:"fatG"`
	Days       int  `json:"days"`
}

// IngredientView is one ingredient of a recipe as served to clients.
type IngredientView struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
}

// RecipeView is the recipe payload embedded in a plan's meals.
type RecipeView struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	PrepTime    int              `json:"prepTime"`
	Servings    int              `json:"servings"`
	URL         string           `json:"url"`
	Ingredients []IngredientView `json:"ingredients"`
}

// MealEntry places a recipe at its (day, slot) coordinates.
type MealEntry struct {
	DayIndex int        `json:"dayIndex"`
	Slot     string     `json:"slot"`
	Recipe   RecipeView `json:"recipe"`
}

// PlanDetails is the full reconstructed view of a persisted plan.
type PlanDetails struct {
	ID           int64              `json:"id"`
	Target       Macros             `json:"target"`
	Actual       Macros             `json:"actual"`
	Days         int                `json:"days"`
	CreatedAt    time.Time          `json:"createdAt"`
	Meals        []MealEntry        `json:"meals"`
	ShoppingList []ShoppingListItem `json:"shoppingList"`
}

// PlanSummary is one row of a user's plan listing, newest first.
type PlanSummary struct {
	ID         int64     `json:"id"`
	TargetKcal int       `json:"targetKcal"`
	ActualKcal int       `json:"actualKcal"`
	CreatedAt  time.Time `json:"createdAt"`
}
