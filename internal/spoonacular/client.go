package spoonacular

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"meal-planner-backend/internal/config"
)

// ErrQuotaExceeded indicates the provider rejected the request because the
// daily quota is exhausted. Not retryable until the quota resets.
var ErrQuotaExceeded = errors.New("spoonacular quota exceeded")

// ErrUpstream indicates a provider failure that persisted across retries.
var ErrUpstream = errors.New("spoonacular upstream error")

// Meal is a single meal entry of a generated plan, in provider order.
type Meal struct {
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	ImageType      string `json:"imageType"`
	ReadyInMinutes int    `json:"readyInMinutes"`
	Servings       int    `json:"servings"`
	SourceURL      string `json:"sourceUrl"`
}

// Nutrients are the provider's per-day macro averages for a generated plan.
type Nutrients struct {
	Calories      float64 `json:"calories"`
	Protein       float64 `json:"protein"`
	Fat           float64 `json:"fat"`
	Carbohydrates float64 `json:"carbohydrates"`
}

// GeneratedPlan is the flattened result of a plan generation call. Meals
// keep the exact order the provider returned them in.
type GeneratedPlan struct {
	Meals     []Meal    `json:"meals"`
	Nutrients Nutrients `json:"nutrients"`
}

// Ingredient is one ingredient of a recipe, with its provider identity.
type Ingredient struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
}

// RecipeDetails is the full recipe record fetched per meal.
type RecipeDetails struct {
	ID             int64        `json:"id"`
	Title          string       `json:"title"`
	ReadyInMinutes int          `json:"readyInMinutes"`
	Servings       int          `json:"servings"`
	SourceURL      string       `json:"sourceUrl"`
	Ingredients    []Ingredient `json:"extendedIngredients"`
}

// NutritionWidget carries the provider's free-text nutrition summary,
// e.g. Calories "529 kcal", Protein "30g".
type NutritionWidget struct {
	Calories string `json:"calories"`
	Protein  string `json:"protein"`
	Fat      string `json:"fat"`
	Carbs    string `json:"carbs"`
}

// API is the capability contract for the external recipe provider.
type API interface {
	GeneratePlan(ctx context.Context, targetKcal *int, days int) (*GeneratedPlan, error)
	GetRecipe(ctx context.Context, id int64) (*RecipeDetails, error)
	NutritionWidget(ctx context.Context, id int64) (*NutritionWidget, error)
}

const (
	requestTimeout = 15 * time.Second
	maxAttempts    = 3
	retryBackoff   = 500 * time.Millisecond
)

// Client is the HTTP implementation of the Spoonacular API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	log        *zap.SugaredLogger
}

// NewClient creates a new Spoonacular API client.
func NewClient(cfg *config.Config, logger *zap.SugaredLogger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    cfg.SpoonacularBaseURL,
		apiKey:     cfg.SpoonacularAPIKey,
		log:        logger,
	}
}

// GeneratePlan asks the provider for a 1-day or multi-day plan. Single-day
// plans forward the caller's calorie target; the week endpoint cannot target
// calories, so multi-day plans are generated untargeted and averaged.
func (c *Client) GeneratePlan(ctx context.Context, targetKcal *int, days int) (*GeneratedPlan, error) {
	if days == 1 {
		return c.generateDayPlan(ctx, targetKcal)
	}
	return c.generateWeekPlan(ctx, days)
}

func (c *Client) generateDayPlan(ctx context.Context, targetKcal *int) (*GeneratedPlan, error) {
	q := url.Values{}
	q.Set("timeFrame", "day")
	if targetKcal != nil {
		q.Set("targetCalories", strconv.Itoa(*targetKcal))
	}

	body, err := c.get(ctx, "/mealplanner/generate", q)
	if err != nil {
		return nil, err
	}

	var plan GeneratedPlan
	if err := json.Unmarshal(body, &plan); err != nil {
		return nil, fmt.Errorf("failed to decode day plan: %w", err)
	}
	return &plan, nil
}

// weekResponse mirrors the provider's week-shaped payload. The fields are
// enumerated so the days are consumed in calendar order; Go maps would
// scramble them.
type weekResponse struct {
	Week struct {
		Monday    *weekDay `json:"monday"`
		Tuesday   *weekDay `json:"tuesday"`
		Wednesday *weekDay `json:"wednesday"`
		Thursday  *weekDay `json:"thursday"`
		Friday    *weekDay `json:"friday"`
		Saturday  *weekDay `json:"saturday"`
		Sunday    *weekDay `json:"sunday"`
	} `json:"week"`
}

type weekDay struct {
	Meals     []Meal    `json:"meals"`
	Nutrients Nutrients `json:"nutrients"`
}

func (c *Client) generateWeekPlan(ctx context.Context, days int) (*GeneratedPlan, error) {
	q := url.Values{}
	q.Set("timeFrame", "week")

	body, err := c.get(ctx, "/mealplanner/generate", q)
	if err != nil {
		return nil, err
	}

	var raw weekResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode week plan: %w", err)
	}

	ordered := []*weekDay{
		raw.Week.Monday, raw.Week.Tuesday, raw.Week.Wednesday,
		raw.Week.Thursday, raw.Week.Friday, raw.Week.Saturday, raw.Week.Sunday,
	}

	var plan GeneratedPlan
	var kcal, protein, carb, fat int
	dayCount := 0
	for _, d := range ordered {
		if d == nil {
			continue
		}
		if dayCount == days {
			break
		}
		dayCount++

		kcal += int(d.Nutrients.Calories)
		protein += int(d.Nutrients.Protein)
		carb += int(d.Nutrients.Carbohydrates)
		fat += int(d.Nutrients.Fat)
		plan.Meals = append(plan.Meals, d.Meals...)
	}

	if dayCount == 0 {
		return &plan, nil
	}

	plan.Nutrients = Nutrients{
		Calories:      float64(kcal / dayCount),
		Protein:       float64(protein / dayCount),
		Carbohydrates: float64(carb / dayCount),
		Fat:           float64(fat / dayCount),
	}
	return &plan, nil
}

// GetRecipe fetches full recipe detail, including the ingredient list.
func (c *Client) GetRecipe(ctx context.Context, id int64) (*RecipeDetails, error) {
	q := url.Values{}
	q.Set("includeNutrition", "true")

	body, err := c.get(ctx, fmt.Sprintf("/recipes/%d/information", id), q)
	if err != nil {
		return nil, err
	}

	var details RecipeDetails
	if err := json.Unmarshal(body, &details); err != nil {
		return nil, fmt.Errorf("failed to decode recipe %d: %w", id, err)
	}
	return &details, nil
}

// NutritionWidget fetches the free-text nutrition summary for a recipe.
// Callers treat failures as non-fatal.
func (c *Client) NutritionWidget(ctx context.Context, id int64) (*NutritionWidget, error) {
	body, err := c.get(ctx, fmt.Sprintf("/recipes/%d/nutritionWidget.json", id), nil)
	if err != nil {
		return nil, err
	}

	var widget NutritionWidget
	if err := json.Unmarshal(body, &widget); err != nil {
		return nil, fmt.Errorf("failed to decode nutrition widget %d: %w", id, err)
	}
	return &widget, nil
}

// get performs a GET with the API key attached, retrying transport errors
// and 5xx responses with a linear backoff. Quota responses (402/429) fail
// immediately: retrying them only burns more quota.
func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	if q == nil {
		q = url.Values{}
	}
	q.Set("apiKey", c.apiKey)
	fullURL := c.baseURL + path + "?" + q.Encode()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt-1) * retryBackoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			c.log.Warnw("spoonacular request failed", "path", path, "attempt", attempt, "error", err)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			if readErr != nil {
				lastErr = readErr
				continue
			}
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusPaymentRequired:
			return nil, fmt.Errorf("%w: status %d", ErrQuotaExceeded, resp.StatusCode)
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			c.log.Warnw("spoonacular server error", "path", path, "attempt", attempt, "status", resp.StatusCode)
			continue
		default:
			return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrUpstream, lastErr)
}
