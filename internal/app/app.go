package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"pantry-planner/internal/chat"
	"pantry-planner/internal/database"
	"pantry-planner/internal/llm"
	"pantry-planner/internal/metrics"
	"pantry-planner/internal/planner"
	"pantry-planner/internal/profile"
	"pantry-planner/internal/shopping"
)

// App holds the application's dependencies.
type App struct {
	db           *database.DB
	profiles     *profile.Repository
	plans        *planner.PlanRepository
	metricsStore *metrics.Store
	mealPlanner  *planner.Planner
	shopping     *shopping.Service
	chat         *chat.Service
	chatSessions *chat.SessionRepository
	dataDir      string
}

// Options tune the planner.
type Options struct {
	// DatabasePath locates the data directory reported by Health.
	DatabasePath    string
	MaxOutputTokens int32
}

// NewApp wires the repositories and services on top of an open database. textGen may be
// nil for commands that never call the model.
func NewApp(db *database.DB, textGen llm.TextGenerator, opts Options) *App {
	profiles := profile.NewRepository(db.SQL)
	plans := planner.NewPlanRepository(db.SQL)
	metricsStore := metrics.NewStore(db.SQL)
	chatSessions := chat.NewSessionRepository(db.SQL)

	return &App{
		db:           db,
		profiles:     profiles,
		plans:        plans,
		metricsStore: metricsStore,
		mealPlanner:  planner.NewPlanner(profiles, plans, textGen, metricsStore, opts.MaxOutputTokens),
		shopping:     shopping.NewService(plans),
		chat:         chat.NewService(profiles, chatSessions, textGen, metricsStore, chat.DefaultMaxOutputTokens),
		chatSessions: chatSessions,
		dataDir:      filepath.Dir(opts.DatabasePath),
	}
}

// GenerateMealPlan validates the request and generates a new plan.
func (a *App) GenerateMealPlan(ctx context.Context, req planner.MealPlanRequest) (*planner.MealPlanResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return a.mealPlanner.GenerateMealPlan(ctx, req)
}

// GetUserMealPlans lists a user's most recent plans. A non-positive limit uses the default.
func (a *App) GetUserMealPlans(ctx context.Context, userID string, limit int) ([]planner.MealPlan, error) {
	return a.mealPlanner.GetUserMealPlans(ctx, userID, limit)
}

// GetMealPlan loads a single plan owned by userID.
func (a *App) GetMealPlan(ctx context.Context, mealPlanID, userID string) (*planner.MealPlan, error) {
	return a.mealPlanner.GetMealPlan(ctx, mealPlanID, userID)
}

// GenerateShoppingList builds the shopping list for a stored plan.
func (a *App) GenerateShoppingList(ctx context.Context, mealPlanID, userID string) (*shopping.List, error) {
	return a.shopping.GenerateShoppingList(ctx, mealPlanID, userID)
}

// ImportProfile stores a user profile and replaces its inventory.
func (a *App) ImportProfile(ctx context.Context, p *profile.UserProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := a.profiles.Save(ctx, p); err != nil {
		return fmt.Errorf("failed to import profile: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"user_id":         p.ID,
		"inventory_items": len(p.Inventory),
	}).Info("Profile imported")
	return nil
}

// Chat answers a message from the user, resuming the given session when it exists.
func (a *App) Chat(ctx context.Context, req chat.Request) (*chat.Reply, error) {
	return a.chat.Chat(ctx, req)
}

// LatestChatSession returns the user's most recently active conversation, or nil.
func (a *App) LatestChatSession(ctx context.Context, userID string) (*chat.Session, error) {
	return a.chat.LatestSession(ctx, userID)
}

// ChatHistory lists the user's recent conversations.
func (a *App) ChatHistory(ctx context.Context, userID string, limit int) ([]chat.Session, error) {
	return a.chat.History(ctx, userID, limit)
}

// ChatSession loads one conversation owned by userID.
func (a *App) ChatSession(ctx context.Context, sessionID, userID string) (*chat.Session, error) {
	return a.chat.Session(ctx, sessionID, userID)
}

// DeleteChatSession removes one conversation owned by userID.
func (a *App) DeleteChatSession(ctx context.Context, sessionID, userID string) error {
	return a.chat.DeleteSession(ctx, sessionID, userID)
}

// CleanupChats removes conversations idle for more than days.
func (a *App) CleanupChats(ctx context.Context, days int) (int64, error) {
	return a.chatSessions.CleanupIdle(ctx, days)
}

// DailyUsage reports model usage for the last days.
func (a *App) DailyUsage(ctx context.Context, days int) ([]metrics.DailyUsage, error) {
	return a.metricsStore.GetDailyUsage(ctx, days)
}

// CleanupMetrics removes usage records older than days.
func (a *App) CleanupMetrics(ctx context.Context, days int) (int64, error) {
	return a.metricsStore.Cleanup(ctx, days)
}

// Health reports process and data directory statistics.
func (a *App) Health() metrics.SysHealth {
	return metrics.GetSysHealth(a.dataDir)
}
