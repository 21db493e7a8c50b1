package chat

import (
	"fmt"
	"strings"
	"testing"

	"pantry-planner/internal/profile"
)

func TestBuildSystemPrompt(t *testing.T) {
	t.Run("EveryTopicHasAPersona", func(t *testing.T) {
		for _, topic := range []Topic{TopicFoodWaste, TopicNutrition, TopicBudget, TopicLeftovers, TopicFoodSharing, TopicEnvironmental, TopicGeneral} {
			prompt, err := BuildSystemPrompt(topic, nil)
			if err != nil {
				t.Fatalf("topic %s: expected no error, got %v", topic, err)
			}
			if !strings.HasPrefix(prompt, "You are NourishBot") {
				t.Errorf("topic %s: unexpected prompt %q", topic, prompt)
			}
			if strings.Contains(prompt, "User Context") {
				t.Errorf("topic %s: expected no user context without a profile", topic)
			}
		}
	})

	t.Run("UnknownTopic", func(t *testing.T) {
		if _, err := BuildSystemPrompt(Topic("gossip"), nil); err == nil {
			t.Error("Expected an error for an unknown topic")
		}
	})

	t.Run("WithProfile", func(t *testing.T) {
		p := &profile.UserProfile{
			HouseholdSize:      3,
			DietaryPreferences: []string{"vegetarian", "nut-free"},
			BudgetRange:        profile.BudgetLow,
			Location:           "Porto",
			Inventory:          []profile.InventoryItem{{Name: "Spinach"}, {Name: "Rice"}},
		}
		prompt, err := BuildSystemPrompt(TopicLeftovers, p)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		for _, want := range []string{
			"creative culinary assistant",
			"- Household size: 3 people",
			"- Dietary preferences: vegetarian, nut-free",
			"- Budget range: Low",
			"- Location: Porto",
			"- Currently in the pantry: Spinach, Rice",
			"Use this context to personalize your responses.",
		} {
			if !strings.Contains(prompt, want) {
				t.Errorf("Expected prompt to contain %q, got:\n%s", want, prompt)
			}
		}
	})

	t.Run("SparseProfile", func(t *testing.T) {
		p := &profile.UserProfile{HouseholdSize: 1, BudgetRange: profile.BudgetMedium}
		prompt, err := BuildSystemPrompt(TopicGeneral, p)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if !strings.Contains(prompt, "- Household size: 1 person") || !strings.Contains(prompt, "- Dietary preferences: None specified") {
			t.Errorf("Unexpected prompt:\n%s", prompt)
		}
		if strings.Contains(prompt, "Location") || strings.Contains(prompt, "pantry") {
			t.Errorf("Expected optional lines to be omitted, got:\n%s", prompt)
		}
	})

	t.Run("InventoryIsCapped", func(t *testing.T) {
		p := &profile.UserProfile{HouseholdSize: 2, BudgetRange: profile.BudgetHigh}
		for i := 0; i < maxContextInventory+3; i++ {
			p.Inventory = append(p.Inventory, profile.InventoryItem{Name: fmt.Sprintf("item%d", i)})
		}
		prompt, err := BuildSystemPrompt(TopicGeneral, p)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if !strings.Contains(prompt, "item14 and 3 more") || strings.Contains(prompt, "item15") {
			t.Errorf("Expected inventory capped at %d items, got:\n%s", maxContextInventory, prompt)
		}
	})
}
