package shopping

import (
	"strings"

	"github.com/sirupsen/logrus"

	"pantry-planner/internal/ingredient"
	"pantry-planner/internal/planner"
)

// Aggregate merges the ingredients of items that are not already in the pantry into one
// line per name. Names match case-insensitively; the first occurrence fixes name, unit and
// category and later occurrences add their quantity and cost. Units are not converted, so
// "2 cups flour" and "500 g flour" are summed as if they matched; a warning is logged.
func Aggregate(items []planner.MealPlanItem) []planner.ShoppingItem {
	list := []planner.ShoppingItem{}
	index := make(map[string]int)

	for _, item := range items {
		for _, ing := range item.Ingredients {
			if ing.FromInventory {
				continue
			}
			key := strings.ToLower(strings.TrimSpace(ing.Name))
			if key == "" {
				continue
			}

			if i, ok := index[key]; ok {
				existing := &list[i]
				if !strings.EqualFold(existing.Unit, ing.Unit) {
					logrus.WithFields(logrus.Fields{
						"ingredient": existing.Name,
						"unit":       existing.Unit,
						"other_unit": ing.Unit,
					}).Warn("Merging ingredient quantities with different units")
				}
				existing.Quantity += ing.Quantity
				existing.EstimatedCost += ing.EstimatedCost
				continue
			}

			index[key] = len(list)
			list = append(list, planner.ShoppingItem{
				Name:          ing.Name,
				Quantity:      ing.Quantity,
				Unit:          ing.Unit,
				EstimatedCost: ing.EstimatedCost,
				Category:      ingredient.Categorize(ing.Name),
				Priority:      planner.PriorityMedium,
			})
		}
	}
	return list
}
