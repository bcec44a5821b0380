package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-agent-chat/internal/middleware"
	"go-agent-chat/internal/model"
	"go-agent-chat/pkg/apierror"
)

// stubChatProxy replays fragments into emit and then returns err. Fragments
// with an empty SessionID inherit the request's session id (or a fixed new
// one when the request had none).
type stubChatProxy struct {
	fragments []model.Fragment
	err       error
	summaries []model.SessionSummary

	gotUserID    int64
	gotSessionID string
	gotMessage   string
}

func (s *stubChatProxy) Send(ctx context.Context, userID int64, sessionID string, message string, emit func(ctx context.Context, f model.Fragment) error) error {
	s.gotUserID = userID
	s.gotSessionID = sessionID
	s.gotMessage = message

	if sessionID == "" {
		sessionID = "new-session"
	}
	for _, f := range s.fragments {
		if f.SessionID == "" {
			f.SessionID = sessionID
		}
		if err := emit(ctx, f); err != nil {
			return err
		}
	}
	return s.err
}

func (s *stubChatProxy) History(_ context.Context, userID int64) ([]model.SessionSummary, error) {
	s.gotUserID = userID
	return s.summaries, s.err
}

func authedRequest(method string, target string, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := middleware.WithUser(req.Context(), model.User{ID: 42, Username: "alice", IsActive: true})
	return req.WithContext(ctx)
}

func decodeNDJSON(t *testing.T, body *bytes.Buffer) []model.Fragment {
	t.Helper()

	var fragments []model.Fragment
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var f model.Fragment
		require.NoError(t, json.Unmarshal([]byte(line), &f), "line %q", line)
		fragments = append(fragments, f)
	}
	require.NoError(t, scanner.Err())
	return fragments
}

func TestStream_HappyPath(t *testing.T) {
	proxy := &stubChatProxy{fragments: []model.Fragment{
		{Event: model.EventRunStarted},
		{Event: model.EventRunContent, Content: "Hel"},
		{Event: model.EventRunContent, Content: "lo"},
		{Event: model.EventRunCompleted},
	}}
	h := NewChatHandler(proxy)

	rec := httptest.NewRecorder()
	h.Stream(rec, authedRequest(http.MethodPost, "/stream_response", `{"message":"hi"}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	fragments := decodeNDJSON(t, rec.Body)
	require.Len(t, fragments, 4)
	assert.Equal(t, model.EventRunStarted, fragments[0].Event)
	assert.Equal(t, "new-session", fragments[0].SessionID)
	assert.Equal(t, "Hel", fragments[1].Content)
	assert.Equal(t, "lo", fragments[2].Content)
	assert.Equal(t, model.EventRunCompleted, fragments[3].Event)

	assert.Equal(t, int64(42), proxy.gotUserID)
	assert.Equal(t, "hi", proxy.gotMessage)
	assert.Empty(t, proxy.gotSessionID)
}

func TestStream_ExistingSessionPassedThrough(t *testing.T) {
	proxy := &stubChatProxy{fragments: []model.Fragment{
		{Event: model.EventRunStarted},
		{Event: model.EventRunCompleted},
	}}
	h := NewChatHandler(proxy)

	rec := httptest.NewRecorder()
	h.Stream(rec, authedRequest(http.MethodPost, "/stream_response",
		`{"message":"hi","session_id":"sess-1"}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sess-1", proxy.gotSessionID)

	fragments := decodeNDJSON(t, rec.Body)
	require.NotEmpty(t, fragments)
	assert.Equal(t, "sess-1", fragments[0].SessionID)
}

func TestStream_NoUserInContext(t *testing.T) {
	h := NewChatHandler(&stubChatProxy{})

	req := httptest.NewRequest(http.MethodPost, "/stream_response", strings.NewReader(`{"message":"hi"}`))
	rec := httptest.NewRecorder()
	h.Stream(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStream_InvalidJSON(t *testing.T) {
	h := NewChatHandler(&stubChatProxy{})

	rec := httptest.NewRecorder()
	h.Stream(rec, authedRequest(http.MethodPost, "/stream_response", "{nope"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestStream_ErrorBeforeFirstFragment(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "session not found", err: model.ErrSessionNotFound, wantStatus: http.StatusNotFound, wantCode: "NOT_FOUND"},
		{name: "empty message", err: apierror.BadRequest("message is required", "message"), wantStatus: http.StatusBadRequest, wantCode: "BAD_REQUEST"},
		{name: "runtime down", err: errors.New("connect refused"), wantStatus: http.StatusBadGateway, wantCode: "UPSTREAM_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewChatHandler(&stubChatProxy{err: tt.err})

			rec := httptest.NewRecorder()
			h.Stream(rec, authedRequest(http.MethodPost, "/stream_response", `{"message":"hi"}`))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body model.APIResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.wantCode, body.Error.Code)
		})
	}
}

func TestStream_MidStreamFailureEmitsRunError(t *testing.T) {
	proxy := &stubChatProxy{
		fragments: []model.Fragment{
			{Event: model.EventRunStarted},
			{Event: model.EventRunContent, Content: "partial"},
		},
		err: errors.New("model crashed"),
	}
	h := NewChatHandler(proxy)

	rec := httptest.NewRecorder()
	h.Stream(rec, authedRequest(http.MethodPost, "/stream_response",
		`{"message":"hi","session_id":"sess-1"}`))

	// The 200 header is already out; failure must ride the stream itself.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

	fragments := decodeNDJSON(t, rec.Body)
	require.Len(t, fragments, 3)
	assert.Equal(t, model.EventRunStarted, fragments[0].Event)
	assert.Equal(t, model.EventRunContent, fragments[1].Event)
	assert.Equal(t, model.EventRunError, fragments[2].Event)
	assert.Equal(t, "sess-1", fragments[2].SessionID)
	assert.NotEmpty(t, fragments[2].Content)
}

func TestStream_ClientCancelSilent(t *testing.T) {
	proxy := &stubChatProxy{
		fragments: []model.Fragment{{Event: model.EventRunStarted}},
		err:       context.Canceled,
	}
	h := NewChatHandler(proxy)

	rec := httptest.NewRecorder()
	h.Stream(rec, authedRequest(http.MethodPost, "/stream_response", `{"message":"hi"}`))

	// No RunError record is appended for a client-side disconnect.
	fragments := decodeNDJSON(t, rec.Body)
	require.Len(t, fragments, 1)
	assert.Equal(t, model.EventRunStarted, fragments[0].Event)
}

func TestSessions_ReturnsWrappedList(t *testing.T) {
	proxy := &stubChatProxy{summaries: []model.SessionSummary{
		{SessionID: "sess-2", Title: "newer"},
		{SessionID: "sess-1", Title: "older"},
	}}
	h := NewChatHandler(proxy)

	rec := httptest.NewRecorder()
	h.Sessions(rec, authedRequest(http.MethodGet, "/sessions", ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), proxy.gotUserID)

	var body model.SessionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Sessions, 2)
	assert.Equal(t, "sess-2", body.Sessions[0].SessionID)
}

func TestSessions_EmptyList(t *testing.T) {
	h := NewChatHandler(&stubChatProxy{})

	rec := httptest.NewRecorder()
	h.Sessions(rec, authedRequest(http.MethodGet, "/sessions", ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sessions":null}`, rec.Body.String())
}

func TestSessions_StoreError(t *testing.T) {
	h := NewChatHandler(&stubChatProxy{err: errors.New("db down")})

	rec := httptest.NewRecorder()
	h.Sessions(rec, authedRequest(http.MethodGet, "/sessions", ""))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
