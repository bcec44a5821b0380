package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go-agent-chat/internal/middleware"
	"go-agent-chat/internal/model"
	"go-agent-chat/pkg/apierror"
)

type chatProxy interface {
	Send(ctx context.Context, userID int64, sessionID string, message string, emit func(ctx context.Context, f model.Fragment) error) error
	History(ctx context.Context, userID int64) ([]model.SessionSummary, error)
}

type ChatHandler struct {
	chat chatProxy
}

func NewChatHandler(chat chatProxy) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// Stream handles POST /stream_response. Fragments are written as
// newline-delimited JSON in production order and flushed per record.
//
// Failure semantics are deterministic: an error before any fragment was
// written produces a normal JSON error response with a non-2xx status; an
// error after the stream started appends one terminal RunError record and
// closes the stream. Every completed stream ends in exactly one of
// RunCompleted or RunError.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	var payload model.StreamRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.BadRequest("invalid JSON body", ""))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, errors.New("streaming unsupported by response writer"))
		return
	}

	var (
		streaming     bool
		lastSessionID = payload.SessionID
	)

	emit := func(_ context.Context, f model.Fragment) error {
		if !streaming {
			w.Header().Set("Content-Type", "application/x-ndjson")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("X-Accel-Buffering", "no")
			w.WriteHeader(http.StatusOK)
			streaming = true
		}

		lastSessionID = f.SessionID
		if err := writeFragment(w, f); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	err := h.chat.Send(r.Context(), user.ID, payload.SessionID, payload.Message, emit)
	if err == nil {
		return
	}

	if errors.Is(err, context.Canceled) {
		slog.Info("chat stream cancelled by client", "user_id", user.ID, "session_id", lastSessionID)
		return
	}

	if !streaming {
		// Nothing sent yet; a regular error response is still possible.
		var apiErr *apierror.APIError
		if errors.As(err, &apiErr) || errors.Is(err, model.ErrSessionNotFound) {
			writeError(w, err)
			return
		}
		slog.Error("chat dispatch failed", "user_id", user.ID, "error", err)
		writeError(w, apierror.New("UPSTREAM_ERROR", "agent runtime unavailable", "", http.StatusBadGateway))
		return
	}

	// Mid-stream fault: the 200 header is out, so the failure is surfaced
	// as a terminal error record instead of being swallowed.
	slog.Error("chat stream failed", "user_id", user.ID, "session_id", lastSessionID, "error", err)
	_ = writeFragment(w, model.Fragment{
		Event:     model.EventRunError,
		Content:   "agent run failed",
		SessionID: lastSessionID,
		CreatedAt: time.Now().Unix(),
	})
	flusher.Flush()
}

// Sessions handles GET /sessions.
func (h *ChatHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	sessions, err := h.chat.History(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.SessionsResponse{Sessions: sessions})
}

func writeFragment(w http.ResponseWriter, f model.Fragment) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return err
	}

	if _, err := w.Write(raw); err != nil {
		return err
	}
	_, err = w.Write([]byte{'\n'})
	return err
}
