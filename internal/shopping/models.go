// Package shopping derives purchase lists from stored meal plans.
package shopping

import "pantry-planner/internal/planner"

// List is a shopping list built for one meal plan. It is recomputed on every request.
type List struct {
	MealPlanID         string                 `json:"mealPlanId"`
	Items              []planner.ShoppingItem `json:"items"`
	TotalEstimatedCost float64                `json:"totalEstimatedCost"`
	ItemCount          int                    `json:"itemCount"`
}
