package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscordNotifier_Notify(t *testing.T) {
	var payload map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewDiscordNotifier(srv.URL).Notify(context.Background(), "download finished: file.bin")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"content": "download finished: file.bin"}, payload)
}

func TestDiscordNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscordNotifier(srv.URL).Notify(context.Background(), "hello")
	assert.EqualError(t, err, "webhook failed with status 429")
}

func TestDiscordNotifier_MissingURL(t *testing.T) {
	err := (&DiscordNotifier{}).Notify(context.Background(), "hello")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	assert.IsType(t, Nop{}, New(""))
	assert.IsType(t, &DiscordNotifier{}, New("http://example.com/hook"))
	assert.NoError(t, Nop{}.Notify(context.Background(), "ignored"))
}
