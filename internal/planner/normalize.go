package planner

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"pantry-planner/internal/ingredient"
)

const (
	defaultRecipeName   = "Untitled Recipe"
	defaultInstructions = "No instructions provided"
)

// planPayload is the model output after defaults have been applied.
type planPayload struct {
	Meals              []MealPlanItem
	ShoppingList       []ShoppingItem
	TotalEstimatedCost float64
	NutritionSummary   NutritionSummary
	WasteReductionTips []string
}

// normalizePayload coerces an extracted JSON value into a plan. Objects are read by field;
// a bare array is taken as the meal list. Anything else cannot carry a plan.
func normalizePayload(v any) (*planPayload, error) {
	out := &planPayload{
		Meals:              []MealPlanItem{},
		ShoppingList:       []ShoppingItem{},
		WasteReductionTips: []string{},
	}

	switch root := v.(type) {
	case map[string]any:
		out.Meals = normalizeMeals(root["meals"])
		out.ShoppingList = normalizeShoppingList(root["shoppingList"])
		out.TotalEstimatedCost, _ = number(root["totalEstimatedCost"])
		out.NutritionSummary = normalizeSummary(root["nutritionSummary"])
		out.WasteReductionTips = stringList(root["wasteReductionTips"])
	case []any:
		out.Meals = normalizeMeals(root)
	default:
		return nil, fmt.Errorf("expected a JSON object or array, got %T", v)
	}
	return out, nil
}

func normalizeMeals(v any) []MealPlanItem {
	raw, _ := v.([]any)
	meals := make([]MealPlanItem, 0, len(raw))
	for i, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			logrus.WithField("index", i).Warnf("Skipping meal entry of type %T", entry)
			continue
		}
		meals = append(meals, normalizeMeal(m))
	}
	return meals
}

func normalizeMeal(m map[string]any) MealPlanItem {
	item := MealPlanItem{
		DayOfWeek:     0,
		MealType:      MealTypeBreakfast,
		RecipeName:    defaultRecipeName,
		Ingredients:   normalizeIngredients(m["ingredients"]),
		NutritionInfo: normalizeNutrition(m["nutritionInfo"]),
		Instructions:  defaultInstructions,
	}

	if day, ok := integer(m["dayOfWeek"]); ok && day >= 0 && day <= 6 {
		item.DayOfWeek = day
	}
	if s, ok := m["mealType"].(string); ok {
		if mt, ok := ParseMealType(s); ok {
			item.MealType = mt
		}
	}
	if s := text(m["recipeName"]); s != "" {
		item.RecipeName = s
	}
	item.EstimatedCost, _ = number(m["estimatedCost"])
	if s := instructions(m["instructions"]); s != "" {
		item.Instructions = s
	}
	if n, ok := integer(m["prepTime"]); ok && n > 0 {
		item.PrepTime = n
	}
	if n, ok := integer(m["cookTime"]); ok && n > 0 {
		item.CookTime = n
	}
	return item
}

func normalizeIngredients(v any) []Ingredient {
	raw, _ := v.([]any)
	out := make([]Ingredient, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		name := text(m["name"])
		if name == "" {
			continue
		}
		ing := Ingredient{Name: name, Unit: text(m["unit"])}
		ing.Quantity, _ = number(m["quantity"])
		ing.EstimatedCost, _ = number(m["estimatedCost"])
		ing.FromInventory = boolean(m["fromInventory"])
		out = append(out, ing)
	}
	return out
}

func normalizeNutrition(v any) NutritionInfo {
	m, _ := v.(map[string]any)
	var n NutritionInfo
	n.Calories, _ = number(m["calories"])
	n.Protein, _ = number(m["protein"])
	n.Carbs, _ = number(m["carbs"])
	n.Fat, _ = number(m["fat"])
	if fiber, ok := number(m["fiber"]); ok {
		n.Fiber = &fiber
	}
	return n
}

func normalizeShoppingList(v any) []ShoppingItem {
	raw, _ := v.([]any)
	out := make([]ShoppingItem, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		name := text(m["name"])
		if name == "" {
			continue
		}
		item := ShoppingItem{
			Name:     name,
			Unit:     text(m["unit"]),
			Category: ingredient.Category(strings.ToLower(text(m["category"]))),
			Priority: PriorityMedium,
		}
		item.Quantity, _ = number(m["quantity"])
		item.EstimatedCost, _ = number(m["estimatedCost"])
		if item.Category == "" {
			item.Category = ingredient.Categorize(name)
		}
		switch p := strings.ToLower(text(m["priority"])); p {
		case PriorityHigh, PriorityMedium, PriorityLow:
			item.Priority = p
		}
		out = append(out, item)
	}
	return out
}

func normalizeSummary(v any) NutritionSummary {
	m, _ := v.(map[string]any)
	var s NutritionSummary
	s.AverageDailyCalories, _ = number(m["averageDailyCalories"])
	s.AverageDailyProtein, _ = number(m["averageDailyProtein"])
	s.AverageDailyCarbs, _ = number(m["averageDailyCarbs"])
	s.AverageDailyFat, _ = number(m["averageDailyFat"])
	return s
}

// number accepts JSON numbers and numeric strings.
func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// integer accepts whole numbers only.
func integer(v any) (int, bool) {
	f, ok := number(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func boolean(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, _ := strconv.ParseBool(strings.TrimSpace(b))
		return parsed
	}
	return false
}

func text(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// instructions accepts either a single string or a list of steps.
func instructions(v any) string {
	if steps, ok := v.([]any); ok {
		return strings.Join(stringList(steps), "\n")
	}
	return text(v)
}

func stringList(v any) []string {
	raw, _ := v.([]any)
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		if s := text(entry); s != "" {
			out = append(out, s)
		}
	}
	return out
}
