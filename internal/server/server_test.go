package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NutriScan/internal/auth"
	"NutriScan/internal/database"
	"NutriScan/internal/geminiservice"
	"NutriScan/internal/imagehost"
	"NutriScan/internal/questionnaire"
	"NutriScan/internal/scan"
	"NutriScan/internal/user"
	"NutriScan/internal/utility"
)

type nopUploader struct{}

func (nopUploader) Upload(context.Context, imagehost.Image) (string, error) { return "https://img/x.jpg", nil }

type nopCompleter struct{}

func (nopCompleter) Complete(context.Context, geminiservice.ScanPrompt) (string, error) {
	return "{}", nil
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	require.NoError(t, auth.InitAuth("server-test-secret"))

	mem := database.NewMemoryStore()
	bank := questionnaire.Default()
	cache := scan.NewProfileCache(mem, bank, nil)
	user.InitUserPackage(user.Deps{
		Store:    mem,
		Bank:     bank,
		Profiles: cache,
		Scanner:  scan.NewService(mem, nopUploader{}, nopCompleter{}, cache),
		Hub:      utility.NewProgressHub(),
	})

	s := &Server{port: 0, startedAt: time.Now()}
	return s.RegisterRoutes()
}

func TestHealthWithMemoryStore(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "up", body["status"])
	assert.Equal(t, "memory", body["database"].(map[string]any)["driver"])
	assert.Contains(t, body["runtime"], "uptime")
}

func TestLoggerMiddlewareGeneratesRequestID(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/questionnaire/bank", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)
	assert.Contains(t, rec.Body.String(), `"allergyList"`)
}

func TestProtectedRoutes(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := auth.GenerateAccessToken("user-9", "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/questionnaire", strings.NewReader(`{"dietaryPreferences":{"1":"No","3":["Keto"]}}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/profile/health", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Keto"`)

	req = httptest.NewRequest(http.MethodGet, "/records?filter=low_carb", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"records":[],"count":0}`, rec.Body.String())
}

func TestLoggerMiddlewareTagsClientIP(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	req.Header.Set("X-Request-ID", "req-ip")
	c := e.NewContext(req, httptest.NewRecorder())

	h := LoggerMiddleware(func(c echo.Context) error {
		utility.LoggerFromContext(c).Info().Msg("handled")
		utility.Logger(c.Request().Context()).Info().Msg("from ctx")
		return nil
	})
	require.NoError(t, h(c))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		assert.Equal(t, "203.0.113.7", entry["ip"])
		assert.Equal(t, "req-ip", entry["request_id"])
	}
}
