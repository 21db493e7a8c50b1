package shopping

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"pantry-planner/internal/planner"
)

// PlanFinder loads a meal plan owned by a user. It returns nil, nil when none matches.
type PlanFinder interface {
	FindWithItems(ctx context.Context, id, ownerID string) (*planner.MealPlan, error)
}

// Service builds shopping lists from stored plans.
type Service struct {
	plans PlanFinder
}

// NewService creates a new Service.
func NewService(plans PlanFinder) *Service {
	return &Service{plans: plans}
}

// GenerateShoppingList aggregates everything the plan needs that is not already in the
// pantry. It fails with *planner.MealPlanNotFoundError when the user has no such plan.
func (s *Service) GenerateShoppingList(ctx context.Context, mealPlanID, userID string) (*List, error) {
	plan, err := s.plans.FindWithItems(ctx, mealPlanID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load meal plan %s: %w", mealPlanID, err)
	}
	if plan == nil {
		return nil, &planner.MealPlanNotFoundError{MealPlanID: mealPlanID, UserID: userID}
	}

	items := Aggregate(plan.Items)
	list := &List{
		MealPlanID: plan.ID,
		Items:      items,
		ItemCount:  len(items),
	}
	for _, item := range items {
		list.TotalEstimatedCost += item.EstimatedCost
	}

	logrus.WithFields(logrus.Fields{
		"meal_plan_id": plan.ID,
		"items":        list.ItemCount,
	}).Info("Shopping list generated")
	return list, nil
}
