package printbridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fakeBridge(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/files/exists", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]bool{"exists": r.URL.Query().Get("path") == "/art/front.png"})
	})
	mux.HandleFunc("/files/open", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["path"] != "/art/front.png" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientAgainstBridge(t *testing.T) {
	srv := fakeBridge(t)
	c := New(srv.URL, time.Second, zap.NewNop())
	ctx := context.Background()

	assert.True(t, c.IsConnected(ctx))

	exists, err := c.CheckFileExists(ctx, "/art/front.png")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = c.CheckFileExists(ctx, "/art/missing.png")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, c.OpenFile(ctx, "/art/front.png"))
	assert.ErrorIs(t, c.OpenFile(ctx, "/art/missing.png"), ErrOpenFailed)
}

func TestClientBreakerOpensWhenBridgeIsDown(t *testing.T) {
	srv := fakeBridge(t)
	c := New(srv.URL, 200*time.Millisecond, zap.NewNop())
	srv.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.False(t, c.IsConnected(ctx))
	}
	err := c.OpenFile(ctx, "/art/front.png")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "breaker open")
}

func TestClientWithoutURLIsUnavailable(t *testing.T) {
	c := New("", time.Second, zap.NewNop())
	ctx := context.Background()

	assert.False(t, c.IsConnected(ctx))
	_, err := c.CheckFileExists(ctx, "/art/front.png")
	assert.ErrorIs(t, err, ErrUnavailable)
}
