package planner

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"pantry-planner/internal/ingredient"
)

// MealType is the slot a meal fills within a day.
type MealType string

const (
	MealTypeBreakfast MealType = "breakfast"
	MealTypeLunch     MealType = "lunch"
	MealTypeDinner    MealType = "dinner"
	MealTypeSnack     MealType = "snack"
)

// ParseMealType accepts a meal type case-insensitively.
func ParseMealType(s string) (MealType, bool) {
	switch mt := MealType(strings.ToLower(strings.TrimSpace(s))); mt {
	case MealTypeBreakfast, MealTypeLunch, MealTypeDinner, MealTypeSnack:
		return mt, true
	}
	return "", false
}

// Ingredient is one line of a recipe.
type Ingredient struct {
	Name          string  `json:"name"`
	Quantity      float64 `json:"quantity"`
	Unit          string  `json:"unit"`
	FromInventory bool    `json:"fromInventory"`
	EstimatedCost float64 `json:"estimatedCost"`
}

// NutritionInfo holds per-meal macros.
type NutritionInfo struct {
	Calories float64  `json:"calories"`
	Protein  float64  `json:"protein"`
	Carbs    float64  `json:"carbs"`
	Fat      float64  `json:"fat"`
	Fiber    *float64 `json:"fiber,omitempty"`
}

// MealPlanItem is a single meal inside a plan.
type MealPlanItem struct {
	ID            string        `json:"id,omitempty"`
	MealPlanID    string        `json:"mealPlanId,omitempty"`
	DayOfWeek     int           `json:"dayOfWeek"`
	MealType      MealType      `json:"mealType"`
	RecipeName    string        `json:"recipeName"`
	Ingredients   []Ingredient  `json:"ingredients"`
	EstimatedCost float64       `json:"estimatedCost"`
	NutritionInfo NutritionInfo `json:"nutritionInfo"`
	Instructions  string        `json:"instructions"`
	PrepTime      int           `json:"prepTime"`
	CookTime      int           `json:"cookTime"`
}

// MealPlan is a persisted weekly plan together with its meals.
type MealPlan struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"userId"`
	WeekStartDate time.Time `json:"weekStartDate"`
	TotalBudget   float64   `json:"totalBudget"`
	EstimatedCost float64   `json:"estimatedCost"`
	// NutritionGoals is stored verbatim as supplied with the request.
	NutritionGoals json.RawMessage `json:"nutritionGoals,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	Items          []MealPlanItem  `json:"items"`
}

// ShoppingItem is an aggregated purchase line.
type ShoppingItem struct {
	Name          string              `json:"name"`
	Quantity      float64             `json:"quantity"`
	Unit          string              `json:"unit"`
	EstimatedCost float64             `json:"estimatedCost"`
	Category      ingredient.Category `json:"category"`
	Priority      string              `json:"priority"`
}

// Shopping priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// NutritionSummary is the model's estimate of average daily intake over the plan.
type NutritionSummary struct {
	AverageDailyCalories float64 `json:"averageDailyCalories"`
	AverageDailyProtein  float64 `json:"averageDailyProtein"`
	AverageDailyCarbs    float64 `json:"averageDailyCarbs"`
	AverageDailyFat      float64 `json:"averageDailyFat"`
}

// MealPlanResponse combines the persisted plan identifiers with the parsed model output.
type MealPlanResponse struct {
	MealPlanID         string           `json:"mealPlanId"`
	WeekStartDate      time.Time        `json:"weekStartDate"`
	TotalBudget        float64          `json:"totalBudget"`
	EstimatedCost      float64          `json:"estimatedCost"`
	Meals              []MealPlanItem   `json:"meals"`
	ShoppingList       []ShoppingItem   `json:"shoppingList"`
	NutritionSummary   NutritionSummary `json:"nutritionSummary"`
	WasteReductionTips []string         `json:"wasteReductionTips"`
	// ExtractionMethod records how the JSON payload was located in the model output.
	ExtractionMethod string `json:"extractionMethod"`
}

// PlanStore persists meal plans. Find methods return nil, nil when nothing matches.
type PlanStore interface {
	CreateWithItems(ctx context.Context, plan *MealPlan) error
	FindWithItems(ctx context.Context, id, ownerID string) (*MealPlan, error)
	ListForUser(ctx context.Context, ownerID string, limit int) ([]MealPlan, error)
}
