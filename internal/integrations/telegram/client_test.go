package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"keeper-bot/internal/integrations/paramstore"
)

// fakeGetter is a minimal paramstore.Getter stub.
type fakeGetter struct {
	val    string
	err    error
	onCall func()
}

func (f *fakeGetter) GetParameter(_ context.Context, _ string) (string, error) {
	if f.onCall != nil {
		f.onCall()
	}
	return f.val, f.err
}

func newTestClient(t *testing.T, serverURL, token string) *Client {
	t.Helper()
	c, err := NewClient(&fakeGetter{val: token}, "/keeper-bot", WithBaseURL(serverURL))
	require.NoError(t, err)
	return c
}

func TestNewClient_NilGetter(t *testing.T) {
	_, err := NewClient(nil, "/keeper-bot")
	require.Error(t, err)
	require.Contains(t, err.Error(), "nil")
}

func TestNewClient_EmptyPrefix(t *testing.T) {
	_, err := NewClient(&fakeGetter{}, "  ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "prefix")
}

func TestResolveToken_CachedAfterFirstCall(t *testing.T) {
	calls := 0
	g := &fakeGetter{val: "123:abc"}
	g.onCall = func() { calls++ }
	c, err := NewClient(g, "/keeper-bot")
	require.NoError(t, err)

	require.NoError(t, c.Ready(context.Background()))
	require.NoError(t, c.Ready(context.Background()))
	require.Equal(t, 1, calls, "SSM must only be called once per process lifetime")
}

func TestReady_ParameterMissing(t *testing.T) {
	g := &fakeGetter{err: paramstore.ErrParameterNotFound}
	c, err := NewClient(g, "/keeper-bot")
	require.NoError(t, err)
	require.ErrorIs(t, c.Ready(context.Background()), ErrNotConfigured)
}

func TestReady_EmptyToken(t *testing.T) {
	g := &fakeGetter{val: "  "}
	c, err := NewClient(g, "/keeper-bot")
	require.NoError(t, err)
	require.ErrorIs(t, c.Ready(context.Background()), ErrNotConfigured)
}

func TestReady_TransportError(t *testing.T) {
	g := &fakeGetter{err: errors.New("ssm unavailable")}
	c, err := NewClient(g, "/keeper-bot")
	require.NoError(t, err)
	err = c.Ready(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotConfigured)
}

func TestSendMessage_HappyPath(t *testing.T) {
	var gotPath string
	var gotBody sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "123:abc")
	err := c.SendMessage(context.Background(), 42, "hello there")
	require.NoError(t, err)
	require.Equal(t, "/bot123:abc/sendMessage", gotPath)
	require.Equal(t, int64(42), gotBody.ChatID)
	require.Equal(t, "hello there", gotBody.Text)
}

func TestSendMessage_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "123:abc")
	err := c.SendMessage(context.Background(), 42, "hello")
	require.Error(t, err)
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusBadRequest, statusErr.HTTPStatusCode())
}

func TestAnswerCallbackQuery_HappyPath(t *testing.T) {
	var gotPath string
	var gotBody answerCallbackRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "123:abc")
	err := c.AnswerCallbackQuery(context.Background(), "cb-1")
	require.NoError(t, err)
	require.Equal(t, "/bot123:abc/answerCallbackQuery", gotPath)
	require.Equal(t, "cb-1", gotBody.CallbackQueryID)
}

func TestGetUpdates_HappyPath(t *testing.T) {
	var gotOffset, gotTimeout string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOffset = r.URL.Query().Get("offset")
		gotTimeout = r.URL.Query().Get("timeout")
		_, _ = w.Write([]byte(`{"ok":true,"result":[{"update_id":7,"message":{"message_id":1,"chat":{"id":42},"text":"hi"}}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "123:abc")
	updates, err := c.GetUpdates(context.Background(), 6, 5)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	require.Equal(t, int64(7), updates[0].UpdateID)
	require.NotNil(t, updates[0].Message)
	require.Equal(t, int64(42), updates[0].Message.Chat.ID)
	require.Equal(t, "6", gotOffset)
	require.Equal(t, "5", gotTimeout)
}

func TestGetUpdates_ZeroOffsetOmitted(t *testing.T) {
	var hasOffset bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hasOffset = r.URL.Query().Has("offset")
		_, _ = w.Write([]byte(`{"ok":true,"result":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "123:abc")
	_, err := c.GetUpdates(context.Background(), 0, 5)
	require.NoError(t, err)
	require.False(t, hasOffset)
}

func TestGetUpdates_NotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"result":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "123:abc")
	_, err := c.GetUpdates(context.Background(), 0, 5)
	require.Error(t, err)
	require.Contains(t, err.Error(), "ok=false")
}

func TestSendMessage_NotConfigured_NoCallAttempted(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		called = true
	}))
	defer srv.Close()

	c, err := NewClient(&fakeGetter{err: paramstore.ErrParameterNotFound}, "/keeper-bot", WithBaseURL(srv.URL))
	require.NoError(t, err)
	err = c.SendMessage(context.Background(), 42, "hello")
	require.ErrorIs(t, err, ErrNotConfigured)
	require.False(t, called)
}
