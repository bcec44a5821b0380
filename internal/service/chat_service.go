package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-agent-chat/internal/agent"
	"go-agent-chat/internal/model"
	"go-agent-chat/pkg/apierror"
)

const sessionTitleMaxLen = 60

type sessionStore interface {
	Create(ctx context.Context, sessionID string, userID int64, title string) (model.Session, error)
	Get(ctx context.Context, sessionID string, userID int64) (model.Session, error)
	AppendMessages(ctx context.Context, sessionID string, userID int64, messages []model.Message) error
	ListByUser(ctx context.Context, userID int64) ([]model.SessionSummary, error)
}

// ChatService is the session-bound agent proxy. Every call is scoped to a
// (user id, session id) pair: a message with no session id starts a new
// session whose id is announced in the first stream fragment, and a
// session id owned by another user behaves exactly like a missing one.
type ChatService struct {
	runtime  agent.Runtime
	sessions sessionStore
	logger   *slog.Logger
}

func NewChatService(runtime agent.Runtime, sessions sessionStore, logger *slog.Logger) *ChatService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatService{runtime: runtime, sessions: sessions, logger: logger}
}

// Send drives one streamed agent turn. Fragments are passed to emit in
// production order: RunStarted first, then one RunResponseContent per
// chunk, then RunCompleted. A non-nil emit error (typically a client
// disconnect) stops the runtime; a runtime error is returned to the
// caller after whatever fragments were already emitted.
func (s *ChatService) Send(ctx context.Context, userID int64, sessionID string, message string, emit func(ctx context.Context, f model.Fragment) error) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return apierror.BadRequest("message is required", "message")
	}

	var history []model.Message
	if sessionID == "" {
		sessionID = uuid.NewString()
		if _, err := s.sessions.Create(ctx, sessionID, userID, sessionTitle(message)); err != nil {
			return err
		}
		s.logger.Info("session created", "session_id", sessionID, "user_id", userID)
	} else {
		// Session ids are UUIDs; anything else can never match a stored
		// session and must not reach the uuid-typed column.
		if _, err := uuid.Parse(sessionID); err != nil {
			return model.ErrSessionNotFound
		}
		sess, err := s.sessions.Get(ctx, sessionID, userID)
		if err != nil {
			return err
		}
		history = sess.Messages
	}

	if err := emit(ctx, s.fragment(model.EventRunStarted, "", sessionID)); err != nil {
		return err
	}

	final, err := s.runtime.Generate(ctx, history, message, func(cctx context.Context, text string) error {
		return emit(cctx, s.fragment(model.EventRunContent, text, sessionID))
	})
	if err != nil {
		return fmt.Errorf("run agent: %w", err)
	}

	// Transcript appends are best-effort: the response already streamed,
	// and this layer neither deduplicates nor retries the write.
	turns := []model.Message{
		{Role: "user", Content: message},
		{Role: "model", Content: final},
	}
	if err := s.sessions.AppendMessages(ctx, sessionID, userID, turns); err != nil {
		s.logger.Error("failed to append transcript turns", "session_id", sessionID, "error", err)
	}

	return emit(ctx, s.fragment(model.EventRunCompleted, "", sessionID))
}

// History returns the caller's session summaries, most recent first.
func (s *ChatService) History(ctx context.Context, userID int64) ([]model.SessionSummary, error) {
	return s.sessions.ListByUser(ctx, userID)
}

func (s *ChatService) fragment(event string, content string, sessionID string) model.Fragment {
	return model.Fragment{
		Event:     event,
		Content:   content,
		SessionID: sessionID,
		CreatedAt: time.Now().Unix(),
	}
}

func sessionTitle(message string) string {
	title := strings.TrimSpace(message)
	if runes := []rune(title); len(runes) > sessionTitleMaxLen {
		title = strings.TrimSpace(string(runes[:sessionTitleMaxLen]))
	}
	return title
}
