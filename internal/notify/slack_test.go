package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlackPoster_Post(t *testing.T) {
	var payload map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, _ = w.Write([]byte(`{"ok":true,"ts":"123.456"}`))
	}))
	defer srv.Close()

	poster := NewSlackPoster("xoxb-test", "#leads", nil)
	poster.apiURL = srv.URL

	require.NoError(t, poster.Post(context.Background(), "", "hello"))
	assert.Equal(t, "Bearer xoxb-test", auth)
	assert.Equal(t, "#leads", payload["channel"])
	assert.Equal(t, "hello", payload["text"])

	require.NoError(t, poster.Post(context.Background(), "#escalations", "urgent"))
	assert.Equal(t, "#escalations", payload["channel"])
}

func TestSlackPoster_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	defer srv.Close()

	poster := NewSlackPoster("xoxb-test", "#missing", nil)
	poster.apiURL = srv.URL

	err := poster.Post(context.Background(), "", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel_not_found")
}

func TestSlackPoster_RequiresChannelAndToken(t *testing.T) {
	assert.Nil(t, NewSlackPoster("", "#x", nil))
	poster := NewSlackPoster("xoxb-test", "", nil)
	assert.Error(t, poster.Post(context.Background(), "", "hello"))
}
