package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubSender struct {
	name string
	err  error
	sent []string
}

func (s *stubSender) Send(ctx context.Context, title, message string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, title)
	return nil
}

func (s *stubSender) Name() string { return s.name }

func TestNotifierFansOutToAllSenders(t *testing.T) {
	a := &stubSender{name: "a"}
	b := &stubSender{name: "b"}
	n := New([]Sender{a, b}, testLogger())

	require.NoError(t, n.Alert(context.Background(), "execution failed", "details"))
	assert.Equal(t, []string{"execution failed"}, a.sent)
	assert.Equal(t, []string{"execution failed"}, b.sent)
}

func TestNotifierContinuesPastFailedSender(t *testing.T) {
	bad := &stubSender{name: "bad", err: errors.New("down")}
	good := &stubSender{name: "good"}
	n := New([]Sender{bad, good}, testLogger())

	err := n.Alert(context.Background(), "title", "msg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.Len(t, good.sent, 1)
}

func TestNotifierNoSendersIsNoop(t *testing.T) {
	n := New(nil, testLogger())
	require.NoError(t, n.Alert(context.Background(), "t", "m"))
}

func TestDiscordSenderPostsWebhook(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	require.NoError(t, s.Send(context.Background(), "halted", "risk limit hit"))
	assert.Contains(t, got["content"], "**halted**")
	assert.Contains(t, got["content"], "risk limit hit")
}

func TestDiscordSenderSurfacesErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad webhook", http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	err := s.Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}
