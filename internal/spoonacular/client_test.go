package spoonacular

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"meal-planner-backend/internal/config"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		SpoonacularBaseURL: srv.URL,
		SpoonacularAPIKey:  "test-key",
	}
	return NewClient(cfg, zap.NewNop().Sugar()), srv
}

func TestGeneratePlanDay(t *testing.T) {
	var gotQuery atomic.Value
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query())
		w.Write([]byte(`{
			"meals": [
				{"id": 101, "title": "Omelette", "readyInMinutes": 10, "servings": 2, "imageType": "jpg", "sourceUrl": "http://x/omelette"},
				{"id": 102, "title": "Salad", "readyInMinutes": 15, "servings": 1, "imageType": "jpg", "sourceUrl": "http://x/salad"},
				{"id": 103, "title": "Stew", "readyInMinutes": 45, "servings": 4, "imageType": "jpg", "sourceUrl": "http://x/stew"}
			],
			"nutrients": {"calories": 1800.5, "protein": 120, "fat": 60, "carbohydrates": 180}
		}`))
	}))

	kcal := 1800
	plan, err := client.GeneratePlan(context.Background(), &kcal, 1)
	if err != nil {
		t.Fatalf("GeneratePlan failed: %v", err)
	}

	if len(plan.Meals) != 3 {
		t.Fatalf("Expected 3 meals, got %d", len(plan.Meals))
	}
	if plan.Meals[0].ID != 101 || plan.Meals[0].Title != "Omelette" {
		t.Errorf("Unexpected first meal: %+v", plan.Meals[0])
	}
	if plan.Nutrients.Calories != 1800.5 {
		t.Errorf("Expected calories 1800.5, got %v", plan.Nutrients.Calories)
	}

	q := gotQuery.Load().(url.Values)
	if got := q["timeFrame"]; len(got) != 1 || got[0] != "day" {
		t.Errorf("Expected timeFrame=day, got %v", got)
	}
	if got := q["targetCalories"]; len(got) != 1 || got[0] != "1800" {
		t.Errorf("Expected targetCalories=1800, got %v", got)
	}
	if got := q["apiKey"]; len(got) != 1 || got[0] != "test-key" {
		t.Errorf("Expected apiKey=test-key, got %v", got)
	}
}

func TestGeneratePlanWeek(t *testing.T) {
	// Each day carries one meal and flat nutrients so the averaging and the
	// monday-first ordering are easy to assert.
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("timeFrame"); got != "week" {
			t.Errorf("Expected timeFrame=week, got %q", got)
		}
		w.Write([]byte(`{"week": {
			"tuesday":  {"meals": [{"id": 2, "title": "Tue"}], "nutrients": {"calories": 2200, "protein": 110, "fat": 70, "carbohydrates": 210}},
			"monday":   {"meals": [{"id": 1, "title": "Mon"}], "nutrients": {"calories": 2000, "protein": 100, "fat": 60, "carbohydrates": 200}},
			"wednesday":{"meals": [{"id": 3, "title": "Wed"}], "nutrients": {"calories": 1800, "protein": 90, "fat": 50, "carbohydrates": 190}}
		}}`))
	}))

	plan, err := client.GeneratePlan(context.Background(), nil, 7)
	if err != nil {
		t.Fatalf("GeneratePlan failed: %v", err)
	}

	if len(plan.Meals) != 3 {
		t.Fatalf("Expected 3 meals, got %d", len(plan.Meals))
	}
	for i, want := range []int64{1, 2, 3} {
		if plan.Meals[i].ID != want {
			t.Errorf("Meal %d: expected id %d, got %d", i, want, plan.Meals[i].ID)
		}
	}
	// (2000+2200+1800)/3 = 2000, (100+110+90)/3 = 100
	if plan.Nutrients.Calories != 2000 {
		t.Errorf("Expected averaged calories 2000, got %v", plan.Nutrients.Calories)
	}
	if plan.Nutrients.Protein != 100 {
		t.Errorf("Expected averaged protein 100, got %v", plan.Nutrients.Protein)
	}
}

func TestGeneratePlanQuotaExceeded(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.GeneratePlan(context.Background(), nil, 1)
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("Expected ErrQuotaExceeded, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Quota errors must not be retried: expected 1 call, got %d", got)
	}
}

func TestGetRecipeRetriesServerErrors(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{
			"id": 7, "title": "Chili", "readyInMinutes": 40, "servings": 6,
			"sourceUrl": "http://x/chili",
			"extendedIngredients": [
				{"id": 11, "name": "Beans", "amount": 400, "unit": "g"},
				{"id": 12, "name": "Onion", "amount": 1, "unit": "medium"}
			]
		}`))
	}))

	details, err := client.GetRecipe(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetRecipe failed: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("Expected 2 calls (one retry), got %d", got)
	}
	if details.Title != "Chili" || len(details.Ingredients) != 2 {
		t.Errorf("Unexpected recipe details: %+v", details)
	}
	if details.Ingredients[1].Unit != "medium" {
		t.Errorf("Expected second ingredient unit 'medium', got %q", details.Ingredients[1].Unit)
	}
}

func TestGetRecipeExhaustsRetries(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.GetRecipe(context.Background(), 7)
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("Expected ErrUpstream, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

func TestNutritionWidget(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"calories": "529 kcal", "protein": "30g", "fat": "12g", "carbs": "72g"}`))
	}))

	widget, err := client.NutritionWidget(context.Background(), 7)
	if err != nil {
		t.Fatalf("NutritionWidget failed: %v", err)
	}
	if widget.Calories != "529 kcal" {
		t.Errorf("Expected calories '529 kcal', got %q", widget.Calories)
	}
	if widget.Protein != "30g" {
		t.Errorf("Expected protein '30g', got %q", widget.Protein)
	}
}
