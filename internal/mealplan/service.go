package mealplan

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"meal-planner-backend/internal/spoonacular"
)

// Service assembles, persists and serves meal plans. All writes for one
// plan happen inside a single transaction: either the whole plan
// materializes or none of it does.
type Service struct {
	db     *sql.DB
	source spoonacular.API
	log    *zap.SugaredLogger
}

// NewService creates a new meal plan service.
func NewService(db *sql.DB, source spoonacular.API, logger *zap.SugaredLogger) *Service {
	return &Service{
		db:     db,
		source: source,
		log:    logger,
	}
}

// CreatePlan generates a plan via the external provider and persists it for
// the user, returning the new plan's id. Caller-supplied targets win
// per-field over the provider's averages. A failed recipe fetch aborts the
// whole plan; the nutrition summary fetch is best-effort and never does.
func (s *Service) CreatePlan(ctx context.Context, userID int64, req CreatePlanRequest) (int64, error) {
	if req.Days != 1 && req.Days != 7 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidDays, req.Days)
	}

	apiPlan, err := s.source.GeneratePlan(ctx, req.TargetKcal, req.Days)
	if err != nil {
		return 0, fmt.Errorf("failed to generate plan upstream: %w", err)
	}
	if len(apiPlan.Meals) == 0 {
		return 0, fmt.Errorf("%w: kcal=%v days=%d", ErrUpstreamEmpty, req.TargetKcal, req.Days)
	}

	target, actual := resolveTargets(req.TargetKcal, req.ProteinG, req.CarbG, req.FatG, apiPlan.Nutrients)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO meal_plan (
			user_id, days,
			target_kcal, target_protein_g, target_carb_g, target_fat_g,
			actual_kcal, actual_protein_g, actual_carb_g, actual_fat_g,
			created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, req.Days,
		target.Kcal, target.Protein, target.Carb, target.Fat,
		actual.Kcal, actual.Protein, actual.Carb, actual.Fat,
		time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert meal plan: %w", err)
	}
	planID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read meal plan id: %w", err)
	}

	if v := compareMacros(target, actual); v.Flagged() {
		s.log.Warnw("plan differs from targets",
			"planId", planID,
			"kcalDelta", v.KcalDelta,
			"proteinDelta", v.ProteinDelta,
			"carbDelta", v.CarbDelta,
			"fatDelta", v.FatDelta,
			"exceeded", v.Exceeded,
		)
	}

	for idx, meal := range apiPlan.Meals {
		details, err := s.source.GetRecipe(ctx, meal.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to fetch recipe %d: %w", meal.ID, err)
		}

		if err := s.upsertRecipe(ctx, tx, details); err != nil {
			return 0, err
		}
		if err := s.upsertIngredients(ctx, tx, details); err != nil {
			return 0, err
		}

		dayIndex, slot := mealSlot(idx)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO meal_plan_recipe (meal_plan_id, recipe_id, day_index, meal_slot)
			VALUES (?, ?, ?, ?)`,
			planID, details.ID, dayIndex, slot,
		); err != nil {
			return 0, fmt.Errorf("failed to insert plan meal: %w", err)
		}
	}

	if err := s.buildShoppingList(ctx, tx, planID); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit meal plan: %w", err)
	}
	return planID, nil
}

// upsertRecipe inserts the recipe or, when it already exists, refreshes only
// its title. The nutrition summary is a separate best-effort provider call:
// when it fails the recipe simply stays without macro detail.
func (s *Service) upsertRecipe(ctx context.Context, tx *sql.Tx, r *spoonacular.RecipeDetails) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO recipe (id, name, prep_time, servings, url)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name`,
		r.ID, r.Title, r.ReadyInMinutes, r.Servings, r.SourceURL,
	); err != nil {
		return fmt.Errorf("failed to upsert recipe %d: %w", r.ID, err)
	}

	widget, err := s.source.NutritionWidget(ctx, r.ID)
	if err != nil {
		s.log.Debugw("nutrition summary unavailable", "recipeId", r.ID, "error", err)
		return nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE recipe SET calories = ?, protein = ?, fat = ?, carbohydrates = ?
		WHERE id = ?`,
		nullableValue(widget.Calories),
		nullableValue(widget.Protein),
		nullableValue(widget.Fat),
		nullableValue(widget.Carbs),
		r.ID,
	); err != nil {
		return fmt.Errorf("failed to update recipe macros %d: %w", r.ID, err)
	}
	return nil
}

func nullableValue(text string) sql.NullFloat64 {
	if v, ok := parseNutritionValue(text); ok {
		return sql.NullFloat64{Float64: v, Valid: true}
	}
	return sql.NullFloat64{}
}

// upsertIngredients records the recipe's ingredients and quantities.
// Ingredients never mutate once created; the quantity/unit of a
// (recipe, ingredient) pairing is fixed at first import.
func (s *Service) upsertIngredients(ctx context.Context, tx *sql.Tx, r *spoonacular.RecipeDetails) error {
	for _, ing := range r.Ingredients {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ingredient (id, name) VALUES (?, ?)
			ON CONFLICT (id) DO NOTHING`,
			ing.ID, ing.Name,
		); err != nil {
			return fmt.Errorf("failed to upsert ingredient %d: %w", ing.ID, err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO recipe_ingredient (recipe_id, ingredient_id, quantity, unit)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (recipe_id, ingredient_id) DO NOTHING`,
			r.ID, ing.ID, ing.Amount, ing.Unit,
		); err != nil {
			return fmt.Errorf("failed to upsert recipe ingredient %d/%d: %w", r.ID, ing.ID, err)
		}
	}
	return nil
}

// buildShoppingList aggregates every ingredient contribution of the plan's
// meals into one consolidated list. Runs once, after all meals are
// persisted.
func (s *Service) buildShoppingList(ctx context.Context, tx *sql.Tx, planID int64) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO shopping_list (meal_plan_id) VALUES (?)`, planID)
	if err != nil {
		return fmt.Errorf("failed to insert shopping list: %w", err)
	}
	listID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read shopping list id: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT ri.ingredient_id, ri.quantity, ri.unit
		FROM meal_plan_recipe mpr
		JOIN recipe_ingredient ri ON ri.recipe_id = mpr.recipe_id
		WHERE mpr.meal_plan_id = ?
		ORDER BY mpr.id`,
		planID)
	if err != nil {
		return fmt.Errorf("failed to query plan ingredients: %w", err)
	}
	defer rows.Close()

	var contributions []ingredientQuantity
	for rows.Next() {
		var q ingredientQuantity
		var amount sql.NullFloat64
		if err := rows.Scan(&q.IngredientID, &amount, &q.Unit); err != nil {
			return fmt.Errorf("failed to scan plan ingredient: %w", err)
		}
		q.Amount = amount.Float64 // missing quantity counts as zero
		contributions = append(contributions, q)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate plan ingredients: %w", err)
	}

	for _, item := range aggregateQuantities(contributions) {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO shopping_list_item (shopping_list_id, ingredient_id, quantity)
			VALUES (?, ?, ?)`,
			listID, item.IngredientID, item.QuantityText,
		); err != nil {
			return fmt.Errorf("failed to insert shopping list item: %w", err)
		}
	}
	return nil
}

// GetPlanByID reconstructs the full plan view for its owner. Ownership is
// enforced here: a plan owned by someone else is indistinguishable from a
// missing one.
func (s *Service) GetPlanByID(ctx context.Context, userID, planID int64) (*PlanDetails, error) {
	var plan PlanDetails
	err := s.db.QueryRowContext(ctx, `
		SELECT id,
		       target_kcal, target_protein_g, target_carb_g, target_fat_g,
		       actual_kcal, actual_protein_g, actual_carb_g, actual_fat_g,
		       created_at
		FROM meal_plan
		WHERE id = ? AND user_id = ?`,
		planID, userID,
	).Scan(
		&plan.ID,
		&plan.Target.Kcal, &plan.Target.Protein, &plan.Target.Carb, &plan.Target.Fat,
		&plan.Actual.Kcal, &plan.Actual.Protein, &plan.Actual.Carb, &plan.Actual.Fat,
		&plan.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: plan %d", ErrNotFound, planID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load meal plan: %w", err)
	}

	meals, err := s.loadMeals(ctx, planID)
	if err != nil {
		return nil, err
	}
	plan.Meals = meals

	// Day count is derived from what is actually stored, not trusted from
	// the request that created the plan.
	plan.Days = 0
	for _, m := range meals {
		if m.DayIndex+1 > plan.Days {
			plan.Days = m.DayIndex + 1
		}
	}

	shoppingList, err := s.loadShoppingList(ctx, planID)
	if err != nil {
		return nil, err
	}
	plan.ShoppingList = shoppingList

	return &plan, nil
}

func (s *Service) loadMeals(ctx context.Context, planID int64) ([]MealEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT mpr.day_index, mpr.meal_slot,
		       r.id, r.name, r.prep_time, r.servings, r.url
		FROM meal_plan_recipe mpr
		JOIN recipe r ON r.id = mpr.recipe_id
		WHERE mpr.meal_plan_id = ?
		ORDER BY mpr.id`,
		planID)
	if err != nil {
		return nil, fmt.Errorf("failed to query plan meals: %w", err)
	}
	defer rows.Close()

	var meals []MealEntry
	for rows.Next() {
		var m MealEntry
		if err := rows.Scan(
			&m.DayIndex, &m.Slot,
			&m.Recipe.ID, &m.Recipe.Name, &m.Recipe.PrepTime, &m.Recipe.Servings, &m.Recipe.URL,
		); err != nil {
			return nil, fmt.Errorf("failed to scan plan meal: %w", err)
		}
		meals = append(meals, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate plan meals: %w", err)
	}

	// Ingredient lists are joined fresh on every read.
	for i := range meals {
		ingredients, err := s.loadRecipeIngredients(ctx, meals[i].Recipe.ID)
		if err != nil {
			return nil, err
		}
		meals[i].Recipe.Ingredients = ingredients
	}
	return meals, nil
}

func (s *Service) loadRecipeIngredients(ctx context.Context, recipeID int64) ([]IngredientView, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.name, ri.quantity, ri.unit
		FROM recipe_ingredient ri
		JOIN ingredient i ON i.id = ri.ingredient_id
		WHERE ri.recipe_id = ?
		ORDER BY i.id`,
		recipeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipe ingredients: %w", err)
	}
	defer rows.Close()

	var ingredients []IngredientView
	for rows.Next() {
		var ing IngredientView
		if err := rows.Scan(&ing.ID, &ing.Name, &ing.Amount, &ing.Unit); err != nil {
			return nil, fmt.Errorf("failed to scan recipe ingredient: %w", err)
		}
		ingredients = append(ingredients, ing)
	}
	return ingredients, rows.Err()
}

func (s *Service) loadShoppingList(ctx context.Context, planID int64) ([]ShoppingListItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.name, sli.quantity
		FROM shopping_list_item sli
		JOIN shopping_list sl ON sl.id = sli.shopping_list_id
		JOIN ingredient i ON i.id = sli.ingredient_id
		WHERE sl.meal_plan_id = ?
		ORDER BY sli.id`,
		planID)
	if err != nil {
		return nil, fmt.Errorf("failed to query shopping list: %w", err)
	}
	defer rows.Close()

	var stored []StoredShoppingItem
	for rows.Next() {
		var item StoredShoppingItem
		if err := rows.Scan(&item.Name, &item.QuantityText); err != nil {
			return nil, fmt.Errorf("failed to scan shopping list item: %w", err)
		}
		stored = append(stored, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shopping list: %w", err)
	}

	return mergeShoppingItems(stored), nil
}

// GetUserPlans lists the user's plan summaries, newest first.
func (s *Service) GetUserPlans(ctx context.Context, userID int64) ([]PlanSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, target_kcal, actual_kcal, created_at
		FROM meal_plan
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user plans: %w", err)
	}
	defer rows.Close()

	var summaries []PlanSummary
	for rows.Next() {
		var p PlanSummary
		if err := rows.Scan(&p.ID, &p.TargetKcal, &p.ActualKcal, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan plan summary: %w", err)
		}
		summaries = append(summaries, p)
	}
	return summaries, rows.Err()
}

// GetLatestPlanForUser returns the most recently created plan for the user.
func (s *Service) GetLatestPlanForUser(ctx context.Context, userID int64) (*PlanDetails, error) {
	var planID int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM meal_plan
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		userID,
	).Scan(&planID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: no plans for user %d", ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest plan: %w", err)
	}
	return s.GetPlanByID(ctx, userID, planID)
}

// Regenerate creates a brand-new plan with the same targets and day count
// as an existing one. The source plan is left untouched.
func (s *Service) Regenerate(ctx context.Context, userID, planID int64) (int64, error) {
	var days, kcal, protein, carb, fat int
	err := s.db.QueryRowContext(ctx, `
		SELECT days, target_kcal, target_protein_g, target_carb_g, target_fat_g
		FROM meal_plan
		WHERE id = ? AND user_id = ?`,
		planID, userID,
	).Scan(&days, &kcal, &protein, &carb, &fat)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%w: plan %d", ErrNotFound, planID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load plan targets: %w", err)
	}

	return s.CreatePlan(ctx, userID, CreatePlanRequest{
		TargetKcal: &kcal,
		ProteinG:   &protein,
		CarbG:      &carb,
		FatG:       &fat,
		Days:       days,
	})
}

// DeletePlan removes a plan and everything it owns, child rows first.
// Recipes and ingredients are shared reference data and survive.
func (s *Service) DeletePlan(ctx context.Context, userID, planID int64) error {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM meal_plan WHERE id = ? AND user_id = ?`,
		planID, userID,
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: plan %d", ErrNotFound, planID)
	}
	if err != nil {
		return fmt.Errorf("failed to check plan ownership: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	statements := []string{
		`DELETE FROM shopping_list_item WHERE shopping_list_id IN
			(SELECT id FROM shopping_list WHERE meal_plan_id = ?)`,
		`DELETE FROM shopping_list WHERE meal_plan_id = ?`,
		`DELETE FROM meal_plan_recipe WHERE meal_plan_id = ?`,
		`DELETE FROM meal_plan WHERE id = ?`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, planID); err != nil {
			return fmt.Errorf("failed to delete plan %d: %w", planID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit plan deletion: %w", err)
	}
	return nil
}
