package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"pantry-planner/internal/jsonextract"
	"pantry-planner/internal/llm"
	"pantry-planner/internal/profile"
	"pantry-planner/internal/shared"
)

const (
	// AgentName labels planner calls in the execution metrics.
	AgentName = "MealPlanner"

	// DefaultListLimit is used by GetUserMealPlans when no positive limit is given.
	DefaultListLimit = 10

	systemInstruction = "You are a meal planning assistant. You MUST respond with ONLY valid JSON. " +
		"Do not include any explanatory text, markdown formatting, or code blocks. " +
		"Return ONLY the raw JSON object as specified in the prompt."
)

// ProfileFinder looks up a user's planning profile. It returns nil, nil when absent.
type ProfileFinder interface {
	FindUserProfile(ctx context.Context, userID string) (*profile.UserProfile, error)
}

// MetricsRecorder persists per-call usage.
type MetricsRecorder interface {
	RecordMeta(ctx context.Context, meta shared.AgentMeta) error
}

// Planner handles the generation and retrieval of meal plans.
type Planner struct {
	profiles        ProfileFinder
	plans           PlanStore
	textGen         llm.TextGenerator
	metrics         MetricsRecorder
	maxOutputTokens int32
	now             func() time.Time
}

// NewPlanner creates a new Planner instance. metrics may be nil.
func NewPlanner(
	profiles ProfileFinder,
	plans PlanStore,
	textGen llm.TextGenerator,
	metrics MetricsRecorder,
	maxOutputTokens int32,
) *Planner {
	return &Planner{
		profiles:        profiles,
		plans:           plans,
		textGen:         textGen,
		metrics:         metrics,
		maxOutputTokens: maxOutputTokens,
		now:             time.Now,
	}
}

// GenerateMealPlan asks the model for a weekly plan, persists it and returns it. The model
// is called at most once; failures are returned to the caller rather than retried.
func (p *Planner) GenerateMealPlan(ctx context.Context, req MealPlanRequest) (*MealPlanResponse, error) {
	log := logrus.WithField("user_id", req.UserID)

	// 1. Resolve the requesting user's profile
	userProfile, err := p.profiles.FindUserProfile(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user profile: %w", err)
	}
	if userProfile == nil {
		log.Warn("User not found")
		return nil, &UserNotFoundError{UserID: req.UserID}
	}
	log.Debug("User profile loaded")

	// 2. Prefer the request's inventory, fall back to what the user has stored
	if len(req.InventoryItems) == 0 {
		req.InventoryItems = inventoryFromProfile(userProfile)
	}
	log.WithField("inventory_items", len(req.InventoryItems)).Info("Building meal plan prompt")

	// 3. Build the prompt
	prompt, err := BuildPrompt(req, userProfile, p.now())
	if err != nil {
		return nil, err
	}

	// 4. Call the model
	start := time.Now()
	resp, err := p.textGen.GenerateContent(ctx, prompt, llm.GenerateOptions{
		Temperature:       0.4,
		TopK:              40,
		TopP:              0.95,
		MaxOutputTokens:   p.maxOutputTokens,
		JSONBiased:        true,
		SystemInstruction: systemInstruction,
	})
	if err != nil {
		log.WithError(err).Error("Model call failed")
		return nil, &GenerationError{Err: err}
	}
	p.recordUsage(ctx, shared.NewAgentMeta(AgentName, resp.Usage, start))
	log.WithField("length", len(resp.Content)).Info("Model response received")
	log.Debugf("Raw model response: %s", resp.Content)

	// 5. Locate the JSON payload
	extracted, err := jsonextract.Extract(resp.Content)
	if err != nil {
		log.WithError(err).Errorf("Could not extract JSON from model response: %s", resp.Content)
		return nil, &MalformedResponseError{Raw: resp.Content, Err: err}
	}

	// 6. Apply defaults for anything the model left out
	payload, err := normalizePayload(extracted.Value)
	if err != nil {
		log.WithError(err).Errorf("Model response is not a meal plan: %s", resp.Content)
		return nil, &MalformedResponseError{Raw: resp.Content, Err: err}
	}
	log.WithFields(logrus.Fields{"method": extracted.Method, "meals": len(payload.Meals)}).Info("Meal plan parsed")

	// 7. Persist plan and items together
	goals, err := nutritionGoalsJSON(req.NutritionGoals)
	if err != nil {
		return nil, err
	}
	plan := &MealPlan{
		OwnerID:        req.UserID,
		WeekStartDate:  req.WeekStartDate,
		TotalBudget:    req.TotalBudget,
		EstimatedCost:  payload.TotalEstimatedCost,
		NutritionGoals: goals,
		Items:          payload.Meals,
	}
	if err := p.plans.CreateWithItems(ctx, plan); err != nil {
		return nil, fmt.Errorf("failed to save meal plan: %w", err)
	}
	log.WithField("meal_plan_id", plan.ID).Info("Meal plan created")

	// 8. Respond with the stored identifiers and the parsed detail
	return &MealPlanResponse{
		MealPlanID:         plan.ID,
		WeekStartDate:      plan.WeekStartDate,
		TotalBudget:        plan.TotalBudget,
		EstimatedCost:      plan.EstimatedCost,
		Meals:              plan.Items,
		ShoppingList:       payload.ShoppingList,
		NutritionSummary:   payload.NutritionSummary,
		WasteReductionTips: payload.WasteReductionTips,
		ExtractionMethod:   extracted.Method,
	}, nil
}

// GetUserMealPlans lists the user's most recent plans, newest first.
func (p *Planner) GetUserMealPlans(ctx context.Context, userID string, limit int) ([]MealPlan, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	plans, err := p.plans.ListForUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list meal plans for user %s: %w", userID, err)
	}
	return plans, nil
}

// GetMealPlan loads one plan owned by userID.
func (p *Planner) GetMealPlan(ctx context.Context, mealPlanID, userID string) (*MealPlan, error) {
	plan, err := p.plans.FindWithItems(ctx, mealPlanID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load meal plan %s: %w", mealPlanID, err)
	}
	if plan == nil {
		return nil, &MealPlanNotFoundError{MealPlanID: mealPlanID, UserID: userID}
	}
	return plan, nil
}

func (p *Planner) recordUsage(ctx context.Context, meta shared.AgentMeta) {
	if p.metrics == nil {
		return
	}
	if err := p.metrics.RecordMeta(ctx, meta); err != nil {
		logrus.WithError(err).Warnf("Failed to record metrics for %s", meta.AgentName)
	}
}

func inventoryFromProfile(p *profile.UserProfile) []InventoryItem {
	items := make([]InventoryItem, 0, len(p.Inventory))
	for _, it := range p.Inventory {
		items = append(items, InventoryItem{
			Name:          it.Name,
			Quantity:      it.Quantity,
			Unit:          it.Unit,
			ExpiryDate:    it.ExpiryDate,
			EstimatedCost: it.CostPerUnit,
		})
	}
	return items
}

func nutritionGoalsJSON(goals *NutritionGoals) (json.RawMessage, error) {
	if goals == nil {
		return json.RawMessage("{}"), nil
	}
	b, err := json.Marshal(goals)
	if err != nil {
		return nil, fmt.Errorf("failed to encode nutrition goals: %w", err)
	}
	return b, nil
}
