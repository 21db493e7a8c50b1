package planner

import (
	"bytes"
	_ "embed"
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/template"
	"time"

	"pantry-planner/internal/profile"
)

//go:embed mealplan_prompt.md
var mealPlanPrompt string

var mealPlanTemplate = template.Must(template.New("mealplan").Parse(mealPlanPrompt))

// expiringSoonDays is the horizon within which inventory is flagged for priority use.
const expiringSoonDays = 7

type promptData struct {
	Budget             string
	WeekStart          string
	HouseholdSize      string
	DietaryPreferences string
	BudgetRange        string
	Location           string
	Inventory          []string
	Nutrition          *promptNutrition
	Preferences        *promptPreferences
}

type promptNutrition struct {
	Calories, Protein, Carbs, Fat, Fiber string
}

type promptPreferences struct {
	Cuisines, Avoid, Complexity string
}

// BuildPrompt renders the meal plan instruction for req. The request's inventory is used
// as given, so callers resolve the default inventory pool first. now anchors expiry maths.
func BuildPrompt(req MealPlanRequest, p *profile.UserProfile, now time.Time) (string, error) {
	data := promptData{
		Budget:             strconv.FormatFloat(req.TotalBudget, 'f', 2, 64),
		WeekStart:          req.WeekStartDate.Format("Monday, 2006-01-02"),
		HouseholdSize:      householdSize(p.HouseholdSize),
		DietaryPreferences: joinOr(p.DietaryPreferences, "None"),
		BudgetRange:        p.BudgetRange,
		Location:           p.Location,
	}

	for _, item := range req.InventoryItems {
		line := fmt.Sprintf("%s: %s %s", item.Name, formatNumber(item.Quantity), item.Unit)
		if item.ExpiryDate != nil {
			line += " (" + expiryNote(*item.ExpiryDate, now) + ")"
		}
		data.Inventory = append(data.Inventory, strings.TrimSpace(line))
	}

	if g := req.NutritionGoals; g != nil {
		data.Nutrition = &promptNutrition{
			Calories: formatNumber(g.DailyCalories),
			Protein:  formatNumber(g.ProteinGrams),
			Carbs:    formatNumber(g.CarbsGrams),
			Fat:      formatNumber(g.FatGrams),
		}
		if g.FiberGrams != nil && *g.FiberGrams > 0 {
			data.Nutrition.Fiber = formatNumber(*g.FiberGrams)
		}
	}

	if pr := req.Preferences; pr != nil {
		data.Preferences = &promptPreferences{
			Cuisines:   strings.Join(pr.CuisineTypes, ", "),
			Avoid:      strings.Join(pr.AvoidIngredients, ", "),
			Complexity: pr.MealComplexity,
		}
	}

	var buf bytes.Buffer
	if err := mealPlanTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render meal plan prompt: %w", err)
	}
	return buf.String(), nil
}

// daysUntil is the whole number of days to expiry, rounded up.
func daysUntil(expiry, now time.Time) int {
	return int(math.Ceil(expiry.Sub(now).Hours() / 24))
}

func expiryNote(expiry, now time.Time) string {
	days := daysUntil(expiry, now)
	switch {
	case days < 0:
		return fmt.Sprintf("expired %d days ago - check before use", -days)
	case days <= expiringSoonDays:
		return fmt.Sprintf("expires in %d days - USE SOON!", days)
	default:
		return fmt.Sprintf("expires in %d days", days)
	}
}

func householdSize(n int) string {
	if n == 1 {
		return "1 person"
	}
	return fmt.Sprintf("%d people", n)
}

func joinOr(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return strings.Join(values, ", ")
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
