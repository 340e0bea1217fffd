package mealplan

import "errors"

// ErrInvalidDays is returned when a plan is requested for a day count other
// than 1 or 7.
var ErrInvalidDays = errors.New("days must be 1 or 7")

// ErrUpstreamEmpty is returned when the external provider produced no meals;
// nothing is persisted in that case.
var ErrUpstreamEmpty = errors.New("provider returned no meals")

// ErrNotFound is returned when a plan does not exist or is owned by another
// user. The two cases are deliberately indistinguishable to callers.
var ErrNotFound = errors.New("meal plan not found")
