package planner

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// MealPlanRequest is the input to GenerateMealPlan.
type MealPlanRequest struct {
	UserID         string          `json:"userId" validate:"required"`
	WeekStartDate  time.Time       `json:"weekStartDate" validate:"required"`
	TotalBudget    float64         `json:"totalBudget" validate:"gt=0"`
	InventoryItems []InventoryItem `json:"inventoryItems,omitempty" validate:"dive"`
	NutritionGoals *NutritionGoals `json:"nutritionGoals,omitempty"`
	Preferences    *Preferences    `json:"preferences,omitempty"`
}

// InventoryItem is an ingredient the household already has.
type InventoryItem struct {
	Name          string     `json:"name" validate:"required"`
	Quantity      float64    `json:"quantity" validate:"gte=0"`
	Unit          string     `json:"unit"`
	ExpiryDate    *time.Time `json:"expiryDate,omitempty"`
	EstimatedCost *float64   `json:"estimatedCost,omitempty"`
}

// NutritionGoals are daily targets.
type NutritionGoals struct {
	DailyCalories float64  `json:"dailyCalories" validate:"gte=0"`
	ProteinGrams  float64  `json:"proteinGrams" validate:"gte=0"`
	CarbsGrams    float64  `json:"carbsGrams" validate:"gte=0"`
	FatGrams      float64  `json:"fatGrams" validate:"gte=0"`
	FiberGrams    *float64 `json:"fiberGrams,omitempty" validate:"omitempty,gte=0"`
}

// Preferences narrow what the model may suggest.
type Preferences struct {
	CuisineTypes     []string `json:"cuisineTypes,omitempty"`
	AvoidIngredients []string `json:"avoidIngredients,omitempty"`
	MealComplexity   string   `json:"mealComplexity,omitempty" validate:"omitempty,oneof=simple moderate complex"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names so messages match what callers sent.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the request before any model call is made.
func (r *MealPlanRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return &ValidationError{Err: err}
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}
	return &ValidationError{Fields: fields, Err: err}
}
