package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"pantry-planner/internal/ingredient"
	"pantry-planner/internal/jsonextract"
	"pantry-planner/internal/llm"
	"pantry-planner/internal/profile"
	"pantry-planner/internal/shared"
)

// MockTextGenerator returns a canned response and records what it was asked.
type MockTextGenerator struct {
	Response string
	Err      error

	Calls   int
	Prompt  string
	Options llm.GenerateOptions
}

func (m *MockTextGenerator) GenerateContent(ctx context.Context, prompt string, opts llm.GenerateOptions) (llm.ContentResponse, error) {
	m.Calls++
	m.Prompt = prompt
	m.Options = opts
	if m.Err != nil {
		return llm.ContentResponse{}, m.Err
	}
	return llm.ContentResponse{
		Content: m.Response,
		Usage:   shared.TokenUsage{PromptTokens: 900, CompletionTokens: 4000, TotalTokens: 4900, Model: "mock-model"},
	}, nil
}

type MockProfileFinder struct {
	Profiles map[string]*profile.UserProfile
	Err      error
}

func (m *MockProfileFinder) FindUserProfile(ctx context.Context, userID string) (*profile.UserProfile, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Profiles[userID], nil
}

// MockPlanStore keeps plans in memory.
type MockPlanStore struct {
	Plans     []*MealPlan
	CreateErr error
	LastLimit int
}

func (m *MockPlanStore) CreateWithItems(ctx context.Context, plan *MealPlan) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	plan.ID = fmt.Sprintf("plan-%d", len(m.Plans)+1)
	for i := range plan.Items {
		plan.Items[i].ID = fmt.Sprintf("%s-item-%d", plan.ID, i)
		plan.Items[i].MealPlanID = plan.ID
	}
	m.Plans = append(m.Plans, plan)
	return nil
}

func (m *MockPlanStore) FindWithItems(ctx context.Context, id, ownerID string) (*MealPlan, error) {
	for _, p := range m.Plans {
		if p.ID == id && p.OwnerID == ownerID {
			return p, nil
		}
	}
	return nil, nil
}

func (m *MockPlanStore) ListForUser(ctx context.Context, ownerID string, limit int) ([]MealPlan, error) {
	m.LastLimit = limit
	var out []MealPlan
	for i := len(m.Plans) - 1; i >= 0 && len(out) < limit; i-- {
		if m.Plans[i].OwnerID == ownerID {
			out = append(out, *m.Plans[i])
		}
	}
	return out, nil
}

type MockMetricsRecorder struct {
	Metas []shared.AgentMeta
}

func (m *MockMetricsRecorder) RecordMeta(ctx context.Context, meta shared.AgentMeta) error {
	m.Metas = append(m.Metas, meta)
	return nil
}

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestPlanner(gen *MockTextGenerator) (*Planner, *MockPlanStore, *MockMetricsRecorder) {
	expiry := testNow.Add(36 * time.Hour)
	profiles := &MockProfileFinder{Profiles: map[string]*profile.UserProfile{
		"user-1": {
			ID:                 "user-1",
			HouseholdSize:      2,
			DietaryPreferences: []string{"pescatarian"},
			BudgetRange:        profile.BudgetMedium,
			Inventory: []profile.InventoryItem{
				{Name: "Spinach", Quantity: 200, Unit: "g", ExpiryDate: &expiry},
			},
		},
	}}
	store := &MockPlanStore{}
	recorder := &MockMetricsRecorder{}
	p := NewPlanner(profiles, store, gen, recorder, 8192)
	p.now = func() time.Time { return testNow }
	return p, store, recorder
}

func baseRequest() MealPlanRequest {
	return MealPlanRequest{
		UserID:        "user-1",
		WeekStartDate: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		TotalBudget:   150,
	}
}

// weekOfMeals renders a full 21-meal payload wrapped in a markdown fence.
func weekOfMeals(t *testing.T, totalCost any) string {
	t.Helper()
	var meals []map[string]any
	for day := 0; day < 7; day++ {
		for _, mt := range []string{"breakfast", "lunch", "dinner"} {
			meals = append(meals, map[string]any{
				"dayOfWeek":  day,
				"mealType":   mt,
				"recipeName": fmt.Sprintf("Day %d %s", day, mt),
				"ingredients": []map[string]any{
					{"name": "Eggs", "quantity": 2, "unit": "pieces", "fromInventory": false, "estimatedCost": 0.5},
				},
				"estimatedCost": 6.5,
				"nutritionInfo": map[string]any{"calories": 500, "protein": 30, "carbs": 50, "fat": 20},
				"instructions":  "Cook it.",
				"prepTime":      10,
				"cookTime":      15,
			})
		}
	}
	payload := map[string]any{
		"meals":              meals,
		"shoppingList":       []map[string]any{{"name": "Eggs", "quantity": 42, "unit": "pieces", "estimatedCost": 10.5, "category": "protein", "priority": "high"}},
		"wasteReductionTips": []string{"Freeze leftover spinach"},
		"nutritionSummary":   map[string]any{"averageDailyCalories": 1500, "averageDailyProtein": 90, "averageDailyCarbs": 150, "averageDailyFat": 60},
	}
	if totalCost != nil {
		payload["totalEstimatedCost"] = totalCost
	}
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		t.Fatalf("failed to build payload: %v", err)
	}
	return "```json\n" + string(b) + "\n```"
}

func TestGenerateMealPlan_FencedFullWeek(t *testing.T) {
	gen := &MockTextGenerator{Response: weekOfMeals(t, 142.75)}
	p, store, recorder := newTestPlanner(gen)

	resp, err := p.GenerateMealPlan(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(resp.Meals) != 21 {
		t.Errorf("Expected 21 meals, got %d", len(resp.Meals))
	}
	if len(store.Plans) != 1 {
		t.Fatalf("Expected 1 stored plan, got %d", len(store.Plans))
	}
	stored := store.Plans[0]
	if stored.EstimatedCost != 142.75 {
		t.Errorf("Expected stored estimated cost 142.75, got %v", stored.EstimatedCost)
	}
	if len(stored.Items) != 21 {
		t.Errorf("Expected 21 stored items, got %d", len(stored.Items))
	}
	if resp.MealPlanID != stored.ID || resp.EstimatedCost != 142.75 || resp.TotalBudget != 150 {
		t.Errorf("Unexpected response header %+v", resp)
	}
	if string(stored.NutritionGoals) != "{}" {
		t.Errorf("Expected empty nutrition goals blob, got %s", stored.NutritionGoals)
	}
	if !strings.HasPrefix(resp.ExtractionMethod, "scanned") {
		t.Errorf("Expected a scanned extraction, got '%s'", resp.ExtractionMethod)
	}

	if len(resp.ShoppingList) != 1 || resp.ShoppingList[0].Priority != PriorityHigh {
		t.Errorf("Expected the model's shopping list to pass through, got %+v", resp.ShoppingList)
	}
	if resp.NutritionSummary.AverageDailyCalories != 1500 {
		t.Errorf("Expected nutrition summary to pass through, got %+v", resp.NutritionSummary)
	}
	if len(resp.WasteReductionTips) != 1 {
		t.Errorf("Expected one waste tip, got %v", resp.WasteReductionTips)
	}

	last := resp.Meals[20]
	if last.DayOfWeek != 6 || last.MealType != MealTypeDinner || last.PrepTime != 10 || last.CookTime != 15 {
		t.Errorf("Unexpected last meal %+v", last)
	}

	if gen.Calls != 1 {
		t.Errorf("Expected exactly one model call, got %d", gen.Calls)
	}
	opts := gen.Options
	if opts.Temperature != 0.4 || opts.TopK != 40 || opts.TopP != 0.95 || opts.MaxOutputTokens != 8192 || !opts.JSONBiased {
		t.Errorf("Unexpected generation options %+v", opts)
	}
	if !strings.Contains(opts.SystemInstruction, "ONLY valid JSON") {
		t.Errorf("Unexpected system instruction '%s'", opts.SystemInstruction)
	}

	// No inventory in the request, so the stored inventory is used.
	if !strings.Contains(gen.Prompt, "- Spinach: 200 g (expires in 2 days - USE SOON!)") {
		t.Errorf("Expected stored inventory in prompt, got:\n%s", gen.Prompt)
	}
	if !strings.Contains(gen.Prompt, "Household size: 2 people") || !strings.Contains(gen.Prompt, "$150.00") {
		t.Errorf("Expected profile and budget in prompt, got:\n%s", gen.Prompt)
	}

	if len(recorder.Metas) != 1 {
		t.Fatalf("Expected 1 recorded metric, got %d", len(recorder.Metas))
	}
	if recorder.Metas[0].AgentName != AgentName || recorder.Metas[0].Usage.CompletionTokens != 4000 {
		t.Errorf("Unexpected recorded meta %+v", recorder.Metas[0])
	}
}

func TestGenerateMealPlan_MissingTotalCostDefaultsToZero(t *testing.T) {
	gen := &MockTextGenerator{Response: weekOfMeals(t, nil)}
	p, store, _ := newTestPlanner(gen)

	resp, err := p.GenerateMealPlan(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if resp.EstimatedCost != 0 || store.Plans[0].EstimatedCost != 0 {
		t.Errorf("Expected zero estimated cost, got %v", resp.EstimatedCost)
	}
}

func TestGenerateMealPlan_ProseWithoutJSON(t *testing.T) {
	prose := "I'm sorry, but I can't put together a plan for that budget right now."
	gen := &MockTextGenerator{Response: prose}
	p, store, _ := newTestPlanner(gen)

	_, err := p.GenerateMealPlan(context.Background(), baseRequest())
	if err == nil {
		t.Fatal("Expected an error, got nil")
	}

	var malformed *MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("Expected *MalformedResponseError, got %T: %v", err, err)
	}
	if malformed.Raw != prose {
		t.Errorf("Expected raw response to be kept, got '%s'", malformed.Raw)
	}
	var extractionErr *jsonextract.ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Errorf("Expected the extraction error to be wrapped, got %v", err)
	}
	if len(store.Plans) != 0 {
		t.Errorf("Expected no plan to be stored, got %d", len(store.Plans))
	}
}

func TestGenerateMealPlan_ScalarPayloadIsMalformed(t *testing.T) {
	gen := &MockTextGenerator{Response: `"here is your plan"`}
	p, store, _ := newTestPlanner(gen)

	_, err := p.GenerateMealPlan(context.Background(), baseRequest())
	var malformed *MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("Expected *MalformedResponseError, got %v", err)
	}
	if len(store.Plans) != 0 {
		t.Errorf("Expected no plan to be stored, got %d", len(store.Plans))
	}
}

func TestGenerateMealPlan_UserNotFound(t *testing.T) {
	gen := &MockTextGenerator{Response: "{}"}
	p, _, _ := newTestPlanner(gen)

	req := baseRequest()
	req.UserID = "ghost"
	_, err := p.GenerateMealPlan(context.Background(), req)

	var notFound *UserNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Expected *UserNotFoundError, got %v", err)
	}
	if notFound.UserID != "ghost" {
		t.Errorf("Expected user id 'ghost', got '%s'", notFound.UserID)
	}
	if gen.Calls != 0 {
		t.Errorf("Expected no model call, got %d", gen.Calls)
	}
}

func TestGenerateMealPlan_ModelFailure(t *testing.T) {
	providerErr := errors.New("quota exceeded")
	gen := &MockTextGenerator{Err: providerErr}
	p, store, recorder := newTestPlanner(gen)

	_, err := p.GenerateMealPlan(context.Background(), baseRequest())

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("Expected *GenerationError, got %v", err)
	}
	if !errors.Is(err, providerErr) {
		t.Errorf("Expected the provider error to be wrapped, got %v", err)
	}
	if gen.Calls != 1 {
		t.Errorf("Expected exactly one model call, got %d", gen.Calls)
	}
	if len(store.Plans) != 0 || len(recorder.Metas) != 0 {
		t.Errorf("Expected nothing stored or recorded")
	}
}

func TestGenerateMealPlan_StoreFailure(t *testing.T) {
	gen := &MockTextGenerator{Response: weekOfMeals(t, 10)}
	p, store, _ := newTestPlanner(gen)
	store.CreateErr = errors.New("disk full")

	_, err := p.GenerateMealPlan(context.Background(), baseRequest())
	if err == nil || !strings.Contains(err.Error(), "failed to save meal plan") {
		t.Fatalf("Expected a save error, got %v", err)
	}
}

func TestGenerateMealPlan_FillsDefaults(t *testing.T) {
	gen := &MockTextGenerator{Response: `{
		"meals": [
			{},
			{
				"dayOfWeek": 9,
				"mealType": "Brunch",
				"recipeName": "   ",
				"ingredients": [{"name": ""}, {"name": "Oats", "quantity": "50", "unit": "g", "fromInventory": "true"}],
				"estimatedCost": "2.5",
				"nutritionInfo": "lots",
				"instructions": ["Soak oats.", "Serve."],
				"prepTime": "x"
			},
			"not a meal",
			{"dayOfWeek": 4, "mealType": "SNACK", "recipeName": "Apple", "cookTime": -5}
		],
		"shoppingList": [{"name": "Chicken thighs", "quantity": 1, "priority": "urgent"}, {"quantity": 3}]
	}`}
	p, _, _ := newTestPlanner(gen)

	resp, err := p.GenerateMealPlan(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if resp.ExtractionMethod != jsonextract.MethodDirect {
		t.Errorf("Expected direct extraction, got '%s'", resp.ExtractionMethod)
	}
	if len(resp.Meals) != 3 {
		t.Fatalf("Expected 3 meals, got %d", len(resp.Meals))
	}

	empty := resp.Meals[0]
	if empty.DayOfWeek != 0 || empty.MealType != MealTypeBreakfast || empty.RecipeName != "Untitled Recipe" ||
		empty.Instructions != "No instructions provided" || empty.EstimatedCost != 0 || len(empty.Ingredients) != 0 {
		t.Errorf("Expected all defaults, got %+v", empty)
	}
	if empty.Ingredients == nil {
		t.Error("Expected an empty, non-nil ingredient list")
	}
	if empty.NutritionInfo.Calories != 0 || empty.NutritionInfo.Fiber != nil {
		t.Errorf("Expected zero nutrition, got %+v", empty.NutritionInfo)
	}

	odd := resp.Meals[1]
	if odd.DayOfWeek != 0 || odd.MealType != MealTypeBreakfast || odd.RecipeName != "Untitled Recipe" {
		t.Errorf("Expected invalid values to be defaulted, got %+v", odd)
	}
	if odd.EstimatedCost != 2.5 {
		t.Errorf("Expected numeric string cost 2.5, got %v", odd.EstimatedCost)
	}
	if len(odd.Ingredients) != 1 || odd.Ingredients[0].Name != "Oats" || odd.Ingredients[0].Quantity != 50 || !odd.Ingredients[0].FromInventory {
		t.Errorf("Unexpected ingredients %+v", odd.Ingredients)
	}
	if odd.Instructions != "Soak oats.\nServe." {
		t.Errorf("Expected joined instructions, got '%s'", odd.Instructions)
	}
	if odd.PrepTime != 0 {
		t.Errorf("Expected prep time 0, got %d", odd.PrepTime)
	}

	snack := resp.Meals[2]
	if snack.DayOfWeek != 4 || snack.MealType != MealTypeSnack || snack.CookTime != 0 {
		t.Errorf("Unexpected snack %+v", snack)
	}

	if len(resp.ShoppingList) != 1 {
		t.Fatalf("Expected 1 shopping item, got %+v", resp.ShoppingList)
	}
	if item := resp.ShoppingList[0]; item.Category != ingredient.Protein || item.Priority != PriorityMedium {
		t.Errorf("Expected categorised medium priority item, got %+v", item)
	}
	if resp.NutritionSummary != (NutritionSummary{}) {
		t.Errorf("Expected zero nutrition summary, got %+v", resp.NutritionSummary)
	}
	if resp.WasteReductionTips == nil || len(resp.WasteReductionTips) != 0 {
		t.Errorf("Expected empty waste tips, got %v", resp.WasteReductionTips)
	}
	if resp.EstimatedCost != 0 {
		t.Errorf("Expected zero estimated cost, got %v", resp.EstimatedCost)
	}
}

func TestGenerateMealPlan_ArrayPayload(t *testing.T) {
	gen := &MockTextGenerator{Response: `Here you go: [{"recipeName": "Soup", "mealType": "dinner", "dayOfWeek": 3}]`}
	p, store, _ := newTestPlanner(gen)

	resp, err := p.GenerateMealPlan(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(resp.Meals) != 1 || resp.Meals[0].RecipeName != "Soup" || resp.Meals[0].DayOfWeek != 3 {
		t.Errorf("Unexpected meals %+v", resp.Meals)
	}
	if len(store.Plans[0].Items) != 1 {
		t.Errorf("Expected 1 stored item, got %d", len(store.Plans[0].Items))
	}
}

func TestGenerateMealPlan_RequestInventoryOverridesStored(t *testing.T) {
	gen := &MockTextGenerator{Response: `{"meals": []}`}
	p, store, _ := newTestPlanner(gen)

	fiber := 30.0
	req := baseRequest()
	req.InventoryItems = []InventoryItem{{Name: "Lentils", Quantity: 1, Unit: "kg"}}
	req.NutritionGoals = &NutritionGoals{DailyCalories: 2000, ProteinGrams: 100, CarbsGrams: 220, FatGrams: 70, FiberGrams: &fiber}

	if _, err := p.GenerateMealPlan(context.Background(), req); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(gen.Prompt, "- Lentils: 1 kg") {
		t.Errorf("Expected request inventory in prompt")
	}
	if strings.Contains(gen.Prompt, "Spinach") {
		t.Errorf("Did not expect stored inventory in prompt")
	}

	var goals NutritionGoals
	if err := json.Unmarshal(store.Plans[0].NutritionGoals, &goals); err != nil {
		t.Fatalf("Expected nutrition goals JSON, got %v", err)
	}
	if goals.DailyCalories != 2000 || goals.FiberGrams == nil || *goals.FiberGrams != 30 {
		t.Errorf("Unexpected stored goals %+v", goals)
	}
}

func TestGetUserMealPlans(t *testing.T) {
	p, store, _ := newTestPlanner(&MockTextGenerator{})
	for i := 0; i < 12; i++ {
		store.CreateWithItems(context.Background(), &MealPlan{OwnerID: "user-1"})
	}
	store.CreateWithItems(context.Background(), &MealPlan{OwnerID: "user-2"})

	plans, err := p.GetUserMealPlans(context.Background(), "user-1", 0)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if store.LastLimit != DefaultListLimit || len(plans) != DefaultListLimit {
		t.Errorf("Expected default limit %d, got limit %d and %d plans", DefaultListLimit, store.LastLimit, len(plans))
	}

	plans, _ = p.GetUserMealPlans(context.Background(), "user-1", 3)
	if len(plans) != 3 || plans[0].ID != "plan-12" {
		t.Errorf("Expected the 3 newest plans, got %d starting at %v", len(plans), plans)
	}
}

func TestGetMealPlan(t *testing.T) {
	p, store, _ := newTestPlanner(&MockTextGenerator{})
	store.CreateWithItems(context.Background(), &MealPlan{OwnerID: "user-1"})

	plan, err := p.GetMealPlan(context.Background(), "plan-1", "user-1")
	if err != nil || plan == nil {
		t.Fatalf("Expected the plan, got %v, %v", plan, err)
	}

	_, err = p.GetMealPlan(context.Background(), "plan-1", "user-2")
	var notFound *MealPlanNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Expected *MealPlanNotFoundError, got %v", err)
	}
	if notFound.MealPlanID != "plan-1" || notFound.UserID != "user-2" {
		t.Errorf("Unexpected error fields %+v", notFound)
	}
}
