package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"pantry-planner/internal/app"
	"pantry-planner/internal/chat"
	"pantry-planner/internal/config"
	"pantry-planner/internal/database"
	"pantry-planner/internal/llm"
	"pantry-planner/internal/planner"
	"pantry-planner/internal/profile"
)

// errUsage marks a command line that could not be understood.
var errUsage = errors.New("invalid usage")

// commands maps each subcommand to whether it calls the language model.
var commands = map[string]bool{
	"generate":       true,
	"plans":          false,
	"plan":           false,
	"shopping-list":  false,
	"import-profile": false,
	"chat":           true,
	"chat-history":   false,
	"chat-delete":    false,
	"stats":          false,
	"cleanup":        false,
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			printUsage()
		}
		logrus.Error(err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: missing command", errUsage)
	}
	command, args := args[0], args[1:]
	needsModel, ok := commands[command]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}

	// A missing .env file is fine; the environment may already be populated.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.Warnf("Failed to load .env file: %v", err)
	}

	cfg, err := config.NewFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	configureLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var textGen llm.TextGenerator
	if needsModel {
		if err := cfg.ValidateLLM(); err != nil {
			return err
		}
		model := cfg.PlanningModel
		if command == "chat" {
			model = chatModel(cfg)
		}
		textGen, err = newTextGenerator(ctx, cfg, model)
		if err != nil {
			return fmt.Errorf("failed to initialize LLM client: %w", err)
		}
		if c, ok := textGen.(llm.Closer); ok {
			defer c.Close()
		}
	}

	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	application := app.NewApp(db, textGen, app.Options{
		DatabasePath:    cfg.DatabasePath,
		MaxOutputTokens: cfg.LLMMaxOutputTokens,
	})

	switch command {
	case "generate":
		err = runGenerate(ctx, application, args)
	case "plans":
		err = runPlans(ctx, application, args)
	case "plan":
		err = runPlan(ctx, application, args)
	case "shopping-list":
		err = runShoppingList(ctx, application, args)
	case "import-profile":
		err = runImportProfile(ctx, application, args)
	case "chat":
		err = runChat(ctx, application, args)
	case "chat-history":
		err = runChatHistory(ctx, application, args)
	case "chat-delete":
		err = runChatDelete(ctx, application, args)
	case "stats":
		err = runStats(ctx, application, args)
	case "cleanup":
		err = runCleanup(ctx, application, args)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}

	if err != nil {
		return fmt.Errorf("%s failed: %w", command, err)
	}
	return nil
}

func configureLogging(level string) {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.Warnf("Unknown LOG_LEVEL %q, using info", level)
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}

func newTextGenerator(ctx context.Context, cfg *config.Config, model string) (llm.TextGenerator, error) {
	var gen llm.TextGenerator
	switch cfg.LLMProvider {
	case config.ProviderGroq:
		gen = llm.NewGroqClient(cfg.GroqAPIKey, model)
	default:
		client, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, model)
		if err != nil {
			return nil, err
		}
		gen = client
	}
	return llm.NewRateLimitedGenerator(gen, cfg.LLMRequestsPerMinute), nil
}

// chatModel picks the model for chat replies. Gemini falls back to its lighter chat
// model; Groq uses the client default.
func chatModel(cfg *config.Config) string {
	if cfg.ChatModel != "" {
		return cfg.ChatModel
	}
	if cfg.LLMProvider == config.ProviderGemini {
		return llm.DefaultGeminiChatModel
	}
	return ""
}

func runGenerate(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	requestPath := fs.String("request", "", "Path to a JSON meal plan request")
	userID := fs.String("user", "", "User ID (when no -request file is given)")
	budget := fs.Float64("budget", 0, "Total weekly budget (when no -request file is given)")
	week := fs.String("week", "", "Week start date, YYYY-MM-DD (defaults to next Monday)")
	asJSON := fs.Bool("json", false, "Print the full response as JSON")
	fs.Parse(args)

	req, err := loadRequest(*requestPath, *userID, *budget, *week, time.Now())
	if err != nil {
		return err
	}

	fmt.Printf("Generating meal plan for %s (budget $%s)...\n", req.UserID, money(req.TotalBudget))
	resp, err := a.GenerateMealPlan(ctx, req)
	if err != nil {
		var malformed *planner.MalformedResponseError
		if errors.As(err, &malformed) {
			fmt.Fprintf(os.Stderr, "\n--- raw model response ---\n%s\n--------------------------\n", malformed.Raw)
		}
		return err
	}

	if *asJSON {
		return printJSON(resp)
	}

	fmt.Printf("\n=== MEAL PLAN %s ===\n", resp.MealPlanID)
	fmt.Printf("Week of %s | Budget $%s | Estimated $%s | parsed via %s\n",
		resp.WeekStartDate.Format("2006-01-02"), money(resp.TotalBudget), money(resp.EstimatedCost), resp.ExtractionMethod)
	printMeals(resp.Meals)

	if len(resp.ShoppingList) > 0 {
		fmt.Println("\n=== SUGGESTED SHOPPING ===")
		for _, item := range resp.ShoppingList {
			fmt.Printf("- %s: %s %s ($%s, %s, %s)\n", item.Name, humanize.Ftoa(item.Quantity), item.Unit, money(item.EstimatedCost), item.Category, item.Priority)
		}
	}
	if len(resp.WasteReductionTips) > 0 {
		fmt.Println("\n=== WASTE REDUCTION TIPS ===")
		for _, tip := range resp.WasteReductionTips {
			fmt.Printf("- %s\n", tip)
		}
	}
	return nil
}

// loadRequest reads a request file or assembles a request from flags.
func loadRequest(path, userID string, budget float64, week string, now time.Time) (planner.MealPlanRequest, error) {
	var req planner.MealPlanRequest
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return req, fmt.Errorf("failed to read request file: %w", err)
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return req, fmt.Errorf("failed to parse request file: %w", err)
		}
	}

	if userID != "" {
		req.UserID = userID
	}
	if budget > 0 {
		req.TotalBudget = budget
	}
	if week != "" {
		start, err := time.Parse(time.DateOnly, week)
		if err != nil {
			return req, fmt.Errorf("invalid -week %q: %w", week, err)
		}
		req.WeekStartDate = start
	}
	if req.WeekStartDate.IsZero() {
		req.WeekStartDate = nextMonday(now)
	}
	return req, nil
}

func nextMonday(now time.Time) time.Time {
	days := (int(time.Monday) - int(now.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	y, m, d := now.AddDate(0, 0, days).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func runPlans(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("plans", flag.ExitOnError)
	userID := fs.String("user", "", "User ID")
	limit := fs.Int("limit", planner.DefaultListLimit, "Maximum number of plans")
	fs.Parse(args)

	plans, err := a.GetUserMealPlans(ctx, *userID, *limit)
	if err != nil {
		return err
	}
	if len(plans) == 0 {
		fmt.Println("No meal plans found.")
		return nil
	}
	for _, p := range plans {
		fmt.Printf("%s  week of %s  %2d meals  budget $%s  estimated $%s  (created %s)\n",
			p.ID, p.WeekStartDate.Format("2006-01-02"), len(p.Items), money(p.TotalBudget), money(p.EstimatedCost), humanize.Time(p.CreatedAt))
	}
	return nil
}

func runPlan(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	userID := fs.String("user", "", "User ID")
	planID := fs.String("id", "", "Meal plan ID")
	asJSON := fs.Bool("json", false, "Print the plan as JSON")
	fs.Parse(args)

	plan, err := a.GetMealPlan(ctx, *planID, *userID)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(plan)
	}
	fmt.Printf("=== MEAL PLAN %s ===\n", plan.ID)
	fmt.Printf("Week of %s | Budget $%s | Estimated $%s\n", plan.WeekStartDate.Format("2006-01-02"), money(plan.TotalBudget), money(plan.EstimatedCost))
	printMeals(plan.Items)
	return nil
}

func runShoppingList(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("shopping-list", flag.ExitOnError)
	userID := fs.String("user", "", "User ID")
	planID := fs.String("id", "", "Meal plan ID")
	asJSON := fs.Bool("json", false, "Print the list as JSON")
	fs.Parse(args)

	list, err := a.GenerateShoppingList(ctx, *planID, *userID)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(list)
	}
	fmt.Printf("=== SHOPPING LIST (%d items, $%s) ===\n", list.ItemCount, money(list.TotalEstimatedCost))
	for _, item := range list.Items {
		fmt.Printf("- [%s] %s: %s %s ($%s)\n", item.Category, item.Name, humanize.Ftoa(item.Quantity), item.Unit, money(item.EstimatedCost))
	}
	return nil
}

func runImportProfile(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("import-profile", flag.ExitOnError)
	path := fs.String("file", "", "Path to a JSON user profile")
	fs.Parse(args)

	data, err := os.ReadFile(*path)
	if err != nil {
		return fmt.Errorf("failed to read profile file: %w", err)
	}
	var p profile.UserProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("failed to parse profile file: %w", err)
	}
	if err := a.ImportProfile(ctx, &p); err != nil {
		return err
	}
	fmt.Printf("Imported profile %s with %d inventory items.\n", p.ID, len(p.Inventory))
	return nil
}

func runChat(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	userID := fs.String("user", "", "User ID")
	sessionID := fs.String("session", "", "Conversation to continue (defaults to the latest one)")
	message := fs.String("message", "", "Message to send")
	fresh := fs.Bool("new", false, "Start a new conversation")
	fs.Parse(args)

	if *message == "" && fs.NArg() > 0 {
		*message = strings.Join(fs.Args(), " ")
	}

	if *sessionID == "" && !*fresh {
		latest, err := a.LatestChatSession(ctx, *userID)
		if err != nil {
			return err
		}
		if latest != nil {
			*sessionID = latest.ID
		}
	}

	reply, err := a.Chat(ctx, chat.Request{UserID: *userID, SessionID: *sessionID, Message: *message})
	if err != nil {
		return err
	}
	fmt.Println(reply.Response)
	fmt.Printf("\n[session %s | topic %s]\n", reply.SessionID, reply.Topic)
	return nil
}

func runChatHistory(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("chat-history", flag.ExitOnError)
	userID := fs.String("user", "", "User ID")
	sessionID := fs.String("session", "", "Show one conversation in full")
	limit := fs.Int("limit", chat.DefaultHistoryLimit, "Maximum number of conversations")
	fs.Parse(args)

	if *sessionID != "" {
		session, err := a.ChatSession(ctx, *sessionID, *userID)
		if err != nil {
			return err
		}
		fmt.Printf("=== %s (%s) ===\n", session.Title, session.ID)
		for _, m := range session.Messages {
			fmt.Printf("\n[%s] %s\n%s\n", m.Role, humanize.Time(m.CreatedAt), m.Content)
		}
		return nil
	}

	sessions, err := a.ChatHistory(ctx, *userID, *limit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No conversations found.")
		return nil
	}
	for _, s := range sessions {
		fmt.Printf("%s  %-50s  %3d messages  (active %s)\n", s.ID, s.Title, len(s.Messages), humanize.Time(s.UpdatedAt))
	}
	return nil
}

func runChatDelete(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("chat-delete", flag.ExitOnError)
	userID := fs.String("user", "", "User ID")
	sessionID := fs.String("session", "", "Conversation to delete")
	fs.Parse(args)

	if err := a.DeleteChatSession(ctx, *sessionID, *userID); err != nil {
		return err
	}
	fmt.Printf("Deleted conversation %s.\n", *sessionID)
	return nil
}

func runCleanup(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("cleanup", flag.ExitOnError)
	days := fs.Int("days", 30, "Keep records for the last N days")
	fs.Parse(args)

	removedMetrics, err := a.CleanupMetrics(ctx, *days)
	if err != nil {
		return err
	}
	removedChats, err := a.CleanupChats(ctx, *days)
	if err != nil {
		return err
	}
	fmt.Printf("Successfully removed %d old metric records and %d idle conversations.\n", removedMetrics, removedChats)
	return nil
}

func runStats(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	days := fs.Int("days", 7, "Number of days to report")
	fs.Parse(args)

	usage, err := a.DailyUsage(ctx, *days)
	if err != nil {
		return err
	}
	fmt.Printf("=== LLM USAGE (last %d days) ===\n", *days)
	if len(usage) == 0 {
		fmt.Println("No recorded calls.")
	}
	for _, u := range usage {
		fmt.Printf("%s  calls %-4d prompt %-10s completion %s\n",
			u.Date, u.TotalExecution, humanize.Comma(int64(u.TotalPrompt)), humanize.Comma(int64(u.TotalCompletion)))
	}

	h := a.Health()
	fmt.Println("\n=== SYSTEM ===")
	fmt.Printf("Memory: alloc %s, total %s, sys %s | GC runs %d | goroutines %d | data %s\n",
		h.Alloc, h.TotalAlloc, h.Sys, h.NumGC, h.Goroutines, h.DataDiskSize)
	return nil
}

var dayNames = [...]string{"Day 1", "Day 2", "Day 3", "Day 4", "Day 5", "Day 6", "Day 7"}

func printMeals(meals []planner.MealPlanItem) {
	for _, m := range meals {
		day := "Day ?"
		if m.DayOfWeek >= 0 && m.DayOfWeek < len(dayNames) {
			day = dayNames[m.DayOfWeek]
		}
		fmt.Printf("%-6s %-10s %s ($%s)\n", day, m.MealType, m.RecipeName, money(m.EstimatedCost))
	}
}

func money(v float64) string {
	return humanize.FormatFloat("#,###.##", v)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printUsage() {
	fmt.Println("Usage: pantry-planner <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  generate           Generate a weekly meal plan (-request file.json | -user ID -budget N [-week YYYY-MM-DD])")
	fmt.Println("  plans              List a user's recent meal plans (-user ID [-limit N])")
	fmt.Println("  plan               Show a meal plan (-user ID -id PLAN)")
	fmt.Println("  shopping-list      Build the shopping list for a meal plan (-user ID -id PLAN)")
	fmt.Println("  import-profile     Store a user profile and inventory (-file profile.json)")
	fmt.Println("  chat               Ask the assistant (-user ID -message TEXT [-session ID | -new])")
	fmt.Println("  chat-history       List conversations or show one (-user ID [-session ID] [-limit N])")
	fmt.Println("  chat-delete        Delete a conversation (-user ID -session ID)")
	fmt.Println("  stats              Show LLM usage and system health (-days N)")
	fmt.Println("  cleanup            Remove old metric records and idle conversations (-days N)")
}
