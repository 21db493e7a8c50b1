package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pantry-planner/internal/ingredient"
)

// Repository is a database-backed store of user profiles.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// FindUserProfile loads a profile and its inventory. It returns nil, nil when the user does not exist.
func (r *Repository) FindUserProfile(ctx context.Context, userID string) (*UserProfile, error) {
	var (
		p        UserProfile
		prefs    string
		location sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, household_size, dietary_preferences, budget_range, location FROM users WHERE id = ?`,
		userID,
	).Scan(&p.ID, &p.HouseholdSize, &prefs, &p.BudgetRange, &location)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user %s: %w", userID, err)
	}

	if err := json.Unmarshal([]byte(prefs), &p.DietaryPreferences); err != nil {
		return nil, fmt.Errorf("failed to decode dietary preferences for user %s: %w", userID, err)
	}
	p.Location = location.String

	p.Inventory, err = r.listInventory(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) listInventory(ctx context.Context, userID string) ([]InventoryItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, quantity, unit, category, expiry_date, cost_per_unit
		FROM inventory_items
		WHERE user_id = ?
		ORDER BY expiry_date IS NULL, expiry_date, name`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory for user %s: %w", userID, err)
	}
	defer rows.Close()

	var items []InventoryItem
	for rows.Next() {
		var (
			item   InventoryItem
			expiry sql.NullTime
			cost   sql.NullFloat64
		)
		if err := rows.Scan(&item.ID, &item.Name, &item.Quantity, &item.Unit, &item.Category, &expiry, &cost); err != nil {
			return nil, fmt.Errorf("failed to scan inventory item: %w", err)
		}
		if expiry.Valid {
			t := expiry.Time
			item.ExpiryDate = &t
		}
		if cost.Valid {
			c := cost.Float64
			item.CostPerUnit = &c
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Save upserts the user row and replaces the stored inventory in one transaction.
// Missing ids are generated and items without a category are categorised by name.
func (r *Repository) Save(ctx context.Context, p *UserProfile) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	prefs := p.DietaryPreferences
	if prefs == nil {
		prefs = []string{}
	}
	prefsJSON, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode dietary preferences: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, household_size, dietary_preferences, budget_range, location, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			household_size = excluded.household_size,
			dietary_preferences = excluded.dietary_preferences,
			budget_range = excluded.budget_range,
			location = excluded.location`,
		p.ID, p.HouseholdSize, string(prefsJSON), p.BudgetRange, nullString(p.Location), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save user %s: %w", p.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM inventory_items WHERE user_id = ?`, p.ID); err != nil {
		return fmt.Errorf("failed to clear inventory for user %s: %w", p.ID, err)
	}

	now := time.Now().UTC()
	for i := range p.Inventory {
		item := &p.Inventory[i]
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		if item.Category == "" {
			item.Category = string(ingredient.Categorize(item.Name))
		}
		var expiry any
		if item.ExpiryDate != nil {
			expiry = item.ExpiryDate.UTC()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO inventory_items (id, user_id, name, quantity, unit, category, expiry_date, cost_per_unit, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, p.ID, item.Name, item.Quantity, item.Unit, item.Category, expiry, item.CostPerUnit, now,
		)
		if err != nil {
			return fmt.Errorf("failed to save inventory item %q: %w", item.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit profile: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
