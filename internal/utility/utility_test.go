package utility

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRealIP(t *testing.T) {
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", GetRealIP(e.NewContext(req, httptest.NewRecorder())))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", GetRealIP(e.NewContext(req, httptest.NewRecorder())))
}

func TestGetUserIDFromContext(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	_, err := GetUserIDFromContext(c)
	require.Error(t, err)

	c.Set("user_id", "u-1")
	id, err := GetUserIDFromContext(c)
	require.NoError(t, err)
	assert.Equal(t, "u-1", id)
}

func TestLoggerFallsBackToGlobal(t *testing.T) {
	assert.NotNil(t, Logger(context.Background()))

	l := zerolog.New(nil).With().Str("request_id", "r").Logger()
	ctx := l.WithContext(context.Background())
	assert.NotSame(t, &log.Logger, Logger(ctx))
	assert.Same(t, &log.Logger, Logger(context.Background()))
}

func TestEnvInt(t *testing.T) {
	t.Setenv("NS_TEST_INT", "42")
	assert.Equal(t, 42, EnvInt("NS_TEST_INT", 7))

	t.Setenv("NS_TEST_INT", "forty")
	assert.Equal(t, 7, EnvInt("NS_TEST_INT", 7))

	t.Setenv("NS_TEST_INT", "")
	assert.Equal(t, 7, EnvInt("NS_TEST_INT", 7))
	assert.Equal(t, "x", EnvString("NS_TEST_UNSET_STRING", "x"))
}

func TestKeyedLimiter(t *testing.T) {
	l := NewKeyedLimiter(1, 2, 8)

	assert.True(t, l.Allow("alice"))
	assert.True(t, l.Allow("alice"))
	assert.False(t, l.Allow("alice"), "burst exhausted")

	assert.True(t, l.Allow("bob"), "keys have separate buckets")
}

func TestKeyedLimiterUnlimited(t *testing.T) {
	l := NewKeyedLimiter(0, 1, 8)
	for i := 0; i < 50; i++ {
		require.True(t, l.Allow("alice"))
	}
}

func TestProgressHubSend(t *testing.T) {
	hub := NewProgressHub()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register("u-1", conn)
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()

	require.Eventually(t, func() bool { return hub.Connections("u-1") == 1 }, time.Second, 10*time.Millisecond)

	hub.Send("u-2", map[string]string{"stage": "ignored"})
	hub.Send("u-1", map[string]string{"stage": "analyzing"})

	var got map[string]string
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, client.ReadJSON(&got))
	assert.Equal(t, "analyzing", got["stage"])
}

func TestProgressHubSendDoesNotBlockOnStalledClient(t *testing.T) {
	hub := NewProgressHub()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(r.URL.Query().Get("user"), conn)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	stalled, _, err := websocket.DefaultDialer.Dial(wsURL+"?user=stalled", nil)
	require.NoError(t, err)
	defer stalled.Close()
	healthy, _, err := websocket.DefaultDialer.Dial(wsURL+"?user=healthy", nil)
	require.NoError(t, err)
	defer healthy.Close()

	require.Eventually(t, func() bool {
		return hub.Connections("stalled") == 1 && hub.Connections("healthy") == 1
	}, time.Second, 10*time.Millisecond)

	// The stalled peer never reads, so its socket buffers fill up.
	payload := map[string]string{"stage": "analyzing", "message": strings.Repeat("x", 64<<10)}
	sent := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Send("stalled", payload)
		}
		close(sent)
	}()

	select {
	case <-sent:
	case <-time.After(5 * time.Second):
		t.Fatal("Send blocked on a client that does not read")
	}
	require.Eventually(t, func() bool { return hub.Connections("stalled") == 0 }, 2*time.Second, 10*time.Millisecond)

	hub.Send("healthy", map[string]string{"stage": "done"})
	var got map[string]string
	require.NoError(t, healthy.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, healthy.ReadJSON(&got))
	assert.Equal(t, "done", got["stage"])
}
