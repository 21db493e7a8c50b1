package planner

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PlanRepository is a database-backed repository for meal plans.
type PlanRepository struct {
	db *sql.DB
}

// NewPlanRepository creates a new PlanRepository.
func NewPlanRepository(d *sql.DB) *PlanRepository {
	return &PlanRepository{db: d}
}

const itemColumns = `id, meal_plan_id, day_of_week, meal_type, recipe_name, ingredients,
	estimated_cost, nutrition_info, instructions, prep_time, cook_time`

// Breakfast to snack, then generation order.
const itemOrder = `ORDER BY day_of_week,
	CASE meal_type WHEN 'breakfast' THEN 0 WHEN 'lunch' THEN 1 WHEN 'dinner' THEN 2 ELSE 3 END,
	position`

// CreateWithItems inserts the plan and all of its items in one transaction, assigning ids
// to the plan and every item. Nothing is written if any insert fails.
func (r *PlanRepository) CreateWithItems(ctx context.Context, plan *MealPlan) error {
	plan.ID = uuid.NewString()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now().UTC()
	}
	goals := plan.NutritionGoals
	if len(goals) == 0 {
		goals = json.RawMessage("{}")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO meal_plans (id, user_id, week_start_date, total_budget, estimated_cost, nutrition_goals, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		plan.ID, plan.OwnerID, plan.WeekStartDate.UTC(), plan.TotalBudget, plan.EstimatedCost, string(goals), plan.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert meal plan: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO meal_plan_items (`+itemColumns+`, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare meal plan item insert: %w", err)
	}
	defer stmt.Close()

	for i := range plan.Items {
		item := &plan.Items[i]
		item.ID = uuid.NewString()
		item.MealPlanID = plan.ID
		if item.Ingredients == nil {
			item.Ingredients = []Ingredient{}
		}

		ingredients, err := json.Marshal(item.Ingredients)
		if err != nil {
			return fmt.Errorf("failed to encode ingredients for %q: %w", item.RecipeName, err)
		}
		nutrition, err := json.Marshal(item.NutritionInfo)
		if err != nil {
			return fmt.Errorf("failed to encode nutrition for %q: %w", item.RecipeName, err)
		}

		_, err = stmt.ExecContext(ctx,
			item.ID, item.MealPlanID, item.DayOfWeek, string(item.MealType), item.RecipeName, string(ingredients),
			item.EstimatedCost, string(nutrition), item.Instructions, item.PrepTime, item.CookTime, i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert meal plan item %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit meal plan: %w", err)
	}
	return nil
}

// FindWithItems returns the plan with its items, or nil, nil if no plan with that id
// belongs to ownerID.
func (r *PlanRepository) FindWithItems(ctx context.Context, id, ownerID string) (*MealPlan, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, week_start_date, total_budget, estimated_cost, nutrition_goals, created_at
		FROM meal_plans
		WHERE id = ? AND user_id = ?`,
		id, ownerID,
	)
	plan, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query meal plan %s: %w", id, err)
	}

	plan.Items, err = r.listItems(ctx, plan.ID)
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// ListForUser retrieves the most recent meal plans for a user, newest first.
func (r *PlanRepository) ListForUser(ctx context.Context, ownerID string, limit int) ([]MealPlan, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, week_start_date, total_budget, estimated_cost, nutrition_goals, created_at
		FROM meal_plans
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?`,
		ownerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list meal plans for user %s: %w", ownerID, err)
	}

	var plans []MealPlan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan meal plan: %w", err)
		}
		plans = append(plans, *plan)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range plans {
		plans[i].Items, err = r.listItems(ctx, plans[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return plans, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (*MealPlan, error) {
	var (
		plan  MealPlan
		goals sql.NullString
	)
	if err := row.Scan(&plan.ID, &plan.OwnerID, &plan.WeekStartDate, &plan.TotalBudget, &plan.EstimatedCost, &goals, &plan.CreatedAt); err != nil {
		return nil, err
	}
	if goals.Valid && goals.String != "" {
		plan.NutritionGoals = json.RawMessage(goals.String)
	}
	return &plan, nil
}

func (r *PlanRepository) listItems(ctx context.Context, planID string) ([]MealPlanItem, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM meal_plan_items WHERE meal_plan_id = ? `+itemOrder, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items for meal plan %s: %w", planID, err)
	}
	defer rows.Close()

	items := []MealPlanItem{}
	for rows.Next() {
		var (
			item        MealPlanItem
			mealType    string
			ingredients string
			nutrition   string
		)
		err := rows.Scan(&item.ID, &item.MealPlanID, &item.DayOfWeek, &mealType, &item.RecipeName, &ingredients,
			&item.EstimatedCost, &nutrition, &item.Instructions, &item.PrepTime, &item.CookTime)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meal plan item: %w", err)
		}
		item.MealType = MealType(mealType)
		if err := json.Unmarshal([]byte(ingredients), &item.Ingredients); err != nil {
			return nil, fmt.Errorf("failed to decode ingredients for item %s: %w", item.ID, err)
		}
		if err := json.Unmarshal([]byte(nutrition), &item.NutritionInfo); err != nil {
			return nil, fmt.Errorf("failed to decode nutrition for item %s: %w", item.ID, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
