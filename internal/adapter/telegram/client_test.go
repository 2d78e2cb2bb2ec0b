package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessage(t *testing.T) {
	var got sendMessageRequest
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer server.Close()

	c := NewClient(Config{BotToken: "123:abc", ChatId: "-42", ApiUrl: server.URL})
	require.NoError(t, c.SendMessage(context.Background(), "System started."))
	assert.Equal(t, "/bot123:abc/sendMessage", path)
	assert.Equal(t, sendMessageRequest{ChatId: "-42", Text: "System started."}, got)
}

func TestSendMessageRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer server.Close()

	c := NewClient(Config{BotToken: "123:abc", ChatId: "-42", ApiUrl: server.URL})
	err := c.SendMessage(context.Background(), "hello")
	require.ErrorIs(t, err, ErrSendFailed)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestSendMessageErrorHidesToken(t *testing.T) {
	c := NewClient(Config{BotToken: "secret-token", ChatId: "1", ApiUrl: "http://127.0.0.1:1"})
	err := c.SendMessage(context.Background(), "hello")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret-token")
}

func TestConfigEnabled(t *testing.T) {
	assert.False(t, Config{BotToken: "x"}.Enabled())
	assert.False(t, Config{ChatId: "1"}.Enabled())
	assert.True(t, Config{BotToken: "x", ChatId: "1"}.Enabled())
	assert.Equal(t, DEFAULT_API_URL, NewClient(Config{}).Config.ApiUrl)
}
