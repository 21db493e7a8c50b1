// Package telegram exposes the chat assistant through a Telegram webhook.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"pantry-planner/internal/chat"
	"pantry-planner/internal/config"
	"pantry-planner/internal/metrics"
	"pantry-planner/internal/planner"
)

// maxMessageLength is Telegram's limit for one text message.
const maxMessageLength = 4096

const helpText = "Hi! I'm your pantry assistant. Ask me about leftovers, food waste, nutrition or budget meals.\n\n" +
	"/new <question> starts a fresh conversation\n" +
	"/metrics shows usage (admin only)"

// Sender delivers messages to Telegram. *tgbotapi.BotAPI satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Assistant is what the bot needs from the application.
type Assistant interface {
	Chat(ctx context.Context, req chat.Request) (*chat.Reply, error)
	LatestChatSession(ctx context.Context, userID string) (*chat.Session, error)
	DailyUsage(ctx context.Context, days int) ([]metrics.DailyUsage, error)
	Health() metrics.SysHealth
}

// Bot routes Telegram messages to the chat assistant.
type Bot struct {
	api          *tgbotapi.BotAPI
	sender       Sender
	assistant    Assistant
	allowed      map[int64]bool
	adminID      int64
	replyTimeout time.Duration
}

// NewBot initializes the Telegram API and sets the webhook.
func NewBot(cfg *config.Config, assistant Assistant) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	logrus.Infof("Authorized on account %s", api.Self.UserName)

	wh, err := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook url %s: %w", cfg.TelegramWebhookURL, err)
	}
	resp, err := api.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
	}
	logrus.Infof("Webhook set response: %s", resp.Description)

	b := newBot(api, assistant, cfg.TelegramAllowedUserIDs, cfg.AdminTelegramID)
	b.api = api
	return b, nil
}

func newBot(sender Sender, assistant Assistant, allowedIDs []int64, adminID int64) *Bot {
	allowed := make(map[int64]bool, len(allowedIDs))
	for _, id := range allowedIDs {
		allowed[id] = true
	}
	return &Bot{
		sender:       sender,
		assistant:    assistant,
		allowed:      allowed,
		adminID:      adminID,
		replyTimeout: 2 * time.Minute,
	}
}

// RegisterHandlers registers the webhook and health endpoints on mux.
func (b *Bot) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/webhook", b.handleWebhook)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		logrus.WithError(err).Warn("Error parsing update")
		return
	}
	if update.Message == nil || update.Message.From == nil || update.Message.Text == "" {
		return
	}

	go func(msg *tgbotapi.Message) {
		ctx, cancel := context.WithTimeout(context.Background(), b.replyTimeout)
		defer cancel()
		b.processMessage(ctx, msg)
	}(update.Message)
}

func (b *Bot) processMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !b.allowed[msg.From.ID] {
		logrus.Warnf("Unauthorized access attempt from UserID: %d (@%s)", msg.From.ID, msg.From.UserName)
		return
	}

	command, args := splitCommand(msg.Text)
	switch command {
	case "/start", "/help":
		b.reply(msg.Chat.ID, helpText)
	case "/metrics":
		if msg.From.ID != b.adminID {
			b.reply(msg.Chat.ID, "Access denied: admin only.")
			return
		}
		b.handleMetrics(ctx, msg.Chat.ID)
	case "/new":
		if args == "" {
			b.reply(msg.Chat.ID, "Send /new followed by your question to start a fresh conversation.")
			return
		}
		b.handleChat(ctx, msg, args, false)
	case "":
		b.handleChat(ctx, msg, msg.Text, true)
	default:
		b.reply(msg.Chat.ID, helpText)
	}
}

func (b *Bot) handleChat(ctx context.Context, msg *tgbotapi.Message, text string, resume bool) {
	userID := strconv.FormatInt(msg.From.ID, 10)
	log := logrus.WithField("user_id", userID)

	status, err := b.sender.Send(tgbotapi.NewMessage(msg.Chat.ID, "Thinking..."))
	if err != nil {
		log.WithError(err).Error("Failed to send initial reply")
		return
	}

	req := chat.Request{UserID: userID, Message: text}
	if resume {
		latest, err := b.assistant.LatestChatSession(ctx, userID)
		if err != nil {
			log.WithError(err).Warn("Failed to look up latest chat session")
		} else if latest != nil {
			req.SessionID = latest.ID
		}
	}

	var parts []string
	reply, err := b.assistant.Chat(ctx, req)
	var notFound *planner.UserNotFoundError
	switch {
	case errors.As(err, &notFound):
		parts = []string{fmt.Sprintf("I don't have a household profile for you yet. Import one with user id %s first.", userID)}
	case err != nil:
		log.WithError(err).Error("Chat failed")
		parts = []string{"Sorry, I couldn't answer that right now. Please try again."}
	default:
		parts = splitMessage(reply.Response, maxMessageLength)
	}

	if _, err := b.sender.Send(tgbotapi.NewEditMessageText(msg.Chat.ID, status.MessageID, parts[0])); err != nil {
		log.WithError(err).Error("Failed to send reply")
		return
	}
	for _, part := range parts[1:] {
		b.reply(msg.Chat.ID, part)
	}
}

func (b *Bot) handleMetrics(ctx context.Context, chatID int64) {
	usage, err := b.assistant.DailyUsage(ctx, 7)
	if err != nil {
		logrus.WithError(err).Error("Failed to load usage")
		b.reply(chatID, "Error fetching metrics.")
		return
	}
	b.reply(chatID, formatUsageReport(usage, b.assistant.Health()))
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		logrus.WithError(err).Warn("Failed to send message")
	}
}

func formatUsageReport(usage []metrics.DailyUsage, health metrics.SysHealth) string {
	var sb strings.Builder
	sb.WriteString("Usage & Health Report\n\n")

	sb.WriteString("Recent LLM activity\n")
	if len(usage) == 0 {
		sb.WriteString("No data yet\n")
	}
	for _, d := range usage {
		sb.WriteString(fmt.Sprintf("- %s: %d tokens (%d calls)\n", d.Date, d.TotalPrompt+d.TotalCompletion, d.TotalExecution))
	}

	sb.WriteString("\nSystem health\n")
	sb.WriteString(fmt.Sprintf("- RAM: %s (alloc) / %s (sys)\n", health.Alloc, health.Sys))
	sb.WriteString(fmt.Sprintf("- Goroutines: %d\n", health.Goroutines))
	sb.WriteString(fmt.Sprintf("- Disk data: %s\n", health.DataDiskSize))
	return sb.String()
}

// splitCommand separates a leading "/command" (with any "@botname" suffix) from its
// arguments. Plain text yields an empty command.
func splitCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	command, args, _ := strings.Cut(text, " ")
	command, _, _ = strings.Cut(command, "@")
	return strings.ToLower(command), strings.TrimSpace(args)
}

// splitMessage cuts text into chunks of at most limit runes, preferring line breaks.
func splitMessage(text string, limit int) []string {
	if text == "" {
		return []string{"(empty reply)"}
	}
	var parts []string
	for utf8.RuneCountInString(text) > limit {
		runes := []rune(text)
		cut := limit
		if i := strings.LastIndex(string(runes[:limit]), "\n"); i > 0 {
			cut = utf8.RuneCountInString(string(runes[:limit])[:i])
		}
		parts = append(parts, strings.TrimRight(string(runes[:cut]), "\n"))
		text = strings.TrimLeft(string(runes[cut:]), "\n")
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}
