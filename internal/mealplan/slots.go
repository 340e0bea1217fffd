package mealplan

// Meal slots cycle breakfast, lunch, dinner within each day.
const (
	SlotBreakfast = "breakfast"
	SlotLunch     = "lunch"
	SlotDinner    = "dinner"
)

// mealSlot maps a zero-based position in the provider's meal sequence to its
// (day, slot) coordinates. Three meals per day, provider order preserved.
func mealSlot(index int) (dayIndex int, slot string) {
	dayIndex = index / 3
	switch index % 3 {
	case 0:
		slot = SlotBreakfast
	case 1:
		slot = SlotLunch
	default:
		slot = SlotDinner
	}
	return dayIndex, slot
}
