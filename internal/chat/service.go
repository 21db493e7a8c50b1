package chat

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"pantry-planner/internal/llm"
	"pantry-planner/internal/planner"
	"pantry-planner/internal/profile"
	"pantry-planner/internal/shared"
)

const (
	// AgentName labels chat calls in the execution metrics.
	AgentName = "ChatAssistant"

	// HistoryWindow is how many earlier messages are replayed to the model.
	HistoryWindow = 20

	// DefaultMaxOutputTokens keeps chat replies short.
	DefaultMaxOutputTokens = 2048

	// DefaultHistoryLimit is used by History when no positive limit is given.
	DefaultHistoryLimit = 10

	defaultTitle   = "New Conversation"
	titleMaxLength = 50
)

// ProfileFinder looks up a user's profile. It returns nil, nil when absent.
type ProfileFinder interface {
	FindUserProfile(ctx context.Context, userID string) (*profile.UserProfile, error)
}

// SessionStore persists conversations. Find and Latest return nil, nil when nothing matches.
type SessionStore interface {
	Find(ctx context.Context, sessionID, userID string) (*Session, error)
	Latest(ctx context.Context, userID string) (*Session, error)
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error)
	ListForUser(ctx context.Context, userID string, limit int) ([]Session, error)
	SaveExchange(ctx context.Context, s *Session, question, answer Message) error
	Delete(ctx context.Context, sessionID, userID string) (bool, error)
}

// MetricsRecorder persists per-call usage.
type MetricsRecorder interface {
	RecordMeta(ctx context.Context, meta shared.AgentMeta) error
}

// Request is one user message. An empty or unknown SessionID starts a new conversation.
type Request struct {
	UserID    string `json:"userId" validate:"required"`
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message" validate:"required"`
}

// Reply is the assistant's answer and the session it was stored in.
type Reply struct {
	Response  string `json:"response"`
	SessionID string `json:"sessionId"`
	Topic     Topic  `json:"topic"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Service answers chat messages with the user's profile and recent history as context.
type Service struct {
	profiles        ProfileFinder
	sessions        SessionStore
	textGen         llm.TextGenerator
	metrics         MetricsRecorder
	maxOutputTokens int32
}

// NewService creates a new Service. metrics may be nil.
func NewService(profiles ProfileFinder, sessions SessionStore, textGen llm.TextGenerator, metrics MetricsRecorder, maxOutputTokens int32) *Service {
	return &Service{
		profiles:        profiles,
		sessions:        sessions,
		textGen:         textGen,
		metrics:         metrics,
		maxOutputTokens: maxOutputTokens,
	}
}

// Chat answers one message. The exchange is stored only when the model replies, so a
// failed call leaves no half-written session behind.
func (s *Service) Chat(ctx context.Context, req Request) (*Reply, error) {
	req.Message = strings.TrimSpace(req.Message)
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid chat request: %w", err)
	}
	log := logrus.WithField("user_id", req.UserID)

	// 1. Load the profile for personalisation
	userProfile, err := s.profiles.FindUserProfile(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user profile: %w", err)
	}
	if userProfile == nil {
		return nil, &planner.UserNotFoundError{UserID: req.UserID}
	}

	// 2. Resume the session or start a new one
	session, history, err := s.resolveSession(ctx, req)
	if err != nil {
		return nil, err
	}
	log = log.WithField("session_id", session.ID)

	// 3. Pick the persona and build the system prompt
	topic := DetectTopic(req.Message)
	systemPrompt, err := BuildSystemPrompt(topic, userProfile)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"topic": topic, "history": len(history)}).Info("Sending chat message")

	// 4. Call the model with the replayed history
	start := time.Now()
	resp, err := s.textGen.GenerateContent(ctx, req.Message, llm.GenerateOptions{
		Temperature:       0.7,
		TopK:              40,
		TopP:              0.95,
		MaxOutputTokens:   s.maxOutputTokens,
		SystemInstruction: systemPrompt,
		History:           toLLMHistory(history),
	})
	if err != nil {
		log.WithError(err).Error("Chat model call failed")
		return nil, fmt.Errorf("failed to process chat message: %w", err)
	}
	s.recordUsage(ctx, shared.NewAgentMeta(AgentName, resp.Usage, start))

	// 5. Store both sides of the exchange
	question := Message{Role: llm.RoleUser, Content: req.Message, Topic: topic}
	answer := Message{Role: llm.RoleAssistant, Content: resp.Content, Topic: topic}
	if err := s.sessions.SaveExchange(ctx, session, question, answer); err != nil {
		return nil, fmt.Errorf("failed to save chat exchange: %w", err)
	}
	log.WithField("session_id", session.ID).Debug("Chat exchange stored")

	return &Reply{Response: resp.Content, SessionID: session.ID, Topic: topic}, nil
}

func (s *Service) resolveSession(ctx context.Context, req Request) (*Session, []Message, error) {
	if req.SessionID != "" {
		existing, err := s.sessions.Find(ctx, req.SessionID, req.UserID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load chat session: %w", err)
		}
		if existing != nil {
			history, err := s.sessions.RecentMessages(ctx, existing.ID, HistoryWindow)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to load chat history: %w", err)
			}
			existing.Messages = nil
			return existing, history, nil
		}
		logrus.WithFields(logrus.Fields{"user_id": req.UserID, "session_id": req.SessionID}).
			Warn("Chat session not found, starting a new one")
	}
	return &Session{UserID: req.UserID, Title: sessionTitle(req.Message)}, nil, nil
}

// LatestSession returns the user's most recently active session, or nil when there is none.
func (s *Service) LatestSession(ctx context.Context, userID string) (*Session, error) {
	return s.sessions.Latest(ctx, userID)
}

// History lists the user's recent sessions with their messages.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	sessions, err := s.sessions.ListForUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history for user %s: %w", userID, err)
	}
	return sessions, nil
}

// Session loads one conversation owned by userID.
func (s *Service) Session(ctx context.Context, sessionID, userID string) (*Session, error) {
	session, err := s.sessions.Find(ctx, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat session %s: %w", sessionID, err)
	}
	if session == nil {
		return nil, &SessionNotFoundError{SessionID: sessionID, UserID: userID}
	}
	return session, nil
}

// DeleteSession removes one conversation owned by userID.
func (s *Service) DeleteSession(ctx context.Context, sessionID, userID string) error {
	deleted, err := s.sessions.Delete(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return &SessionNotFoundError{SessionID: sessionID, UserID: userID}
	}
	return nil
}

func (s *Service) recordUsage(ctx context.Context, meta shared.AgentMeta) {
	if s.metrics == nil {
		return
	}
	if err := s.metrics.RecordMeta(ctx, meta); err != nil {
		logrus.WithError(err).Warnf("Failed to record metrics for %s", meta.AgentName)
	}
}

// sessionTitle is the first message cut to titleMaxLength runes.
func sessionTitle(message string) string {
	if message == "" {
		return defaultTitle
	}
	if utf8.RuneCountInString(message) <= titleMaxLength {
		return message
	}
	return string([]rune(message)[:titleMaxLength]) + "..."
}

func toLLMHistory(msgs []Message) []llm.Message {
	if len(msgs) == 0 {
		return nil
	}
	history := make([]llm.Message, len(msgs))
	for i, m := range msgs {
		history[i] = llm.Message{Role: m.Role, Content: m.Content}
	}
	return history
}
