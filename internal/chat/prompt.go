package chat

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"pantry-planner/internal/profile"
)

//go:embed prompts/*.md
var personaPrompts embed.FS

//go:embed user_context_prompt.md
var userContextPrompt string

var userContextTemplate = template.Must(template.New("user_context").Parse(userContextPrompt))

// maxContextInventory caps how many pantry items are named in the system prompt.
const maxContextInventory = 15

type userContextData struct {
	Base               string
	HouseholdSize      string
	DietaryPreferences string
	BudgetRange        string
	Location           string
	Inventory          string
}

// BuildSystemPrompt returns the persona prompt for topic, followed by the user's
// household details when p is not nil.
func BuildSystemPrompt(topic Topic, p *profile.UserProfile) (string, error) {
	base, err := personaPrompts.ReadFile("prompts/" + string(topic) + ".md")
	if err != nil {
		return "", fmt.Errorf("no system prompt for topic %q: %w", topic, err)
	}
	if p == nil {
		return strings.TrimSpace(string(base)), nil
	}

	data := userContextData{
		Base:               strings.TrimSpace(string(base)),
		HouseholdSize:      householdSize(p.HouseholdSize),
		DietaryPreferences: "None specified",
		BudgetRange:        p.BudgetRange,
		Location:           p.Location,
	}
	if len(p.DietaryPreferences) > 0 {
		data.DietaryPreferences = strings.Join(p.DietaryPreferences, ", ")
	}
	if len(p.Inventory) > 0 {
		names := make([]string, 0, min(len(p.Inventory), maxContextInventory))
		for _, item := range p.Inventory {
			if len(names) == maxContextInventory {
				break
			}
			names = append(names, item.Name)
		}
		data.Inventory = strings.Join(names, ", ")
		if len(p.Inventory) > maxContextInventory {
			data.Inventory += fmt.Sprintf(" and %d more", len(p.Inventory)-maxContextInventory)
		}
	}

	var buf bytes.Buffer
	if err := userContextTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render system prompt: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func householdSize(n int) string {
	if n == 1 {
		return "1 person"
	}
	return fmt.Sprintf("%d people", n)
}
