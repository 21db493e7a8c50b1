// Package profile stores household profiles and their current food inventory.
package profile

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Budget tiers accepted for UserProfile.BudgetRange.
const (
	BudgetLow    = "Low"
	BudgetMedium = "Medium"
	BudgetHigh   = "High"
)

// UserProfile is the planning-relevant view of a user.
type UserProfile struct {
	ID                 string          `json:"id"`
	HouseholdSize      int             `json:"householdSize" validate:"min=1"`
	DietaryPreferences []string        `json:"dietaryPreferences"`
	BudgetRange        string          `json:"budgetRange" validate:"oneof=Low Medium High"`
	Location           string          `json:"location,omitempty"`
	Inventory          []InventoryItem `json:"inventory" validate:"dive"`
}

// InventoryItem is a stored pantry item.
type InventoryItem struct {
	ID          string     `json:"id,omitempty"`
	Name        string     `json:"name" validate:"required"`
	Quantity    float64    `json:"quantity" validate:"gte=0"`
	Unit        string     `json:"unit"`
	Category    string     `json:"category,omitempty"`
	ExpiryDate  *time.Time `json:"expiryDate,omitempty"`
	CostPerUnit *float64   `json:"costPerUnit,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the profile before it is stored.
func (p *UserProfile) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid user profile: %w", err)
	}
	return nil
}
