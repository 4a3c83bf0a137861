package server

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ai-notetaking-pipeline/internal/bootstrap"
	"ai-notetaking-pipeline/internal/config"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const opsSecret = "ops-secret"

func testConfig(dir string) *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Port:               "0",
			Environment:        "test",
			LogFilePath:        filepath.Join(dir, "pipeline.log"),
			WorkDir:            dir,
			OpsJWTSecret:       opsSecret,
			CorsAllowedOrigins: "*",
		},
		Queue: config.QueueConfig{
			Transport:     "memory",
			MaxAttempts:   3,
			BaseBackoff:   time.Second,
			MaxBackoff:    time.Second,
			Concurrency:   1,
			Retention:     time.Hour,
			JanitorSpec:   "@every 1h",
			SubjectPrefix: "test",
		},
		Storage: config.StorageConfig{
			Backend:       "local",
			LocalRoot:     filepath.Join(dir, "objects"),
			PublicBaseURL: "http://localhost/objects",
			SigningSecret: "sign-secret",
		},
		Ai: config.AIConfig{
			LLMProvider:   "ollama",
			LLMModel:      "llama3",
			OllamaBaseURL: "http://127.0.0.1:1",
		},
		Visuals: config.VisualConfig{
			SearchCount:   5,
			MinSimilarity: 0.15,
			CacheTTL:      time.Minute,
			RatePerSecond: 5,
			Burst:         5,
		},
		Assembly: config.AssemblyConfig{ContentFormat: "html", MinTags: 3, MaxTags: 5},
	}
}

func newTestServer(t *testing.T) (*Server, *bootstrap.Container) {
	t.Helper()
	cfg := testConfig(t.TempDir())
	container, err := bootstrap.NewContainer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })
	return New(cfg, container), container
}

func operatorToken(t *testing.T) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ops@example.com",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(opsSecret))
	require.NoError(t, err)
	return token
}

type envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
}

func doRequest(t *testing.T, s *Server, req *http.Request) (int, envelope, []byte) {
	t.Helper()
	resp, err := s.GetApp().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var env envelope
	_ = json.Unmarshal(body, &env)
	return resp.StatusCode, env, body
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)

	status, env, _ := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
}

func TestCreateTextSourceRequiresOperator(t *testing.T) {
	s, _ := newTestServer(t)
	body, _ := json.Marshal(map[string]interface{}{
		"user_id": uuid.NewString(),
		"text":    "Photosynthesis converts light into chemical energy.",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/sources/text", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	status, _, _ := doRequest(t, s, req)
	assert.Equal(t, http.StatusUnauthorized, status)

	req = httptest.NewRequest(http.MethodPost, "/api/sources/text", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+operatorToken(t))
	status, env, raw := doRequest(t, s, req)
	require.Equal(t, http.StatusAccepted, status, string(raw))

	sourceId, ok := env.Data["source_id"].(string)
	require.True(t, ok)

	status, env, raw = doRequest(t, s, httptest.NewRequest(http.MethodGet, "/api/sources/"+sourceId+"/status", nil))
	require.Equal(t, http.StatusOK, status, string(raw))
	assert.Equal(t, sourceId, env.Data["id"])
	assert.Equal(t, "TEXT", env.Data["kind"])
}

func TestUnknownSourceIsNotFound(t *testing.T) {
	s, _ := newTestServer(t)

	status, env, _ := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/api/sources/"+uuid.NewString()+"/status", nil))
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, env.Success)
}

func TestJobStats(t *testing.T) {
	s, _ := newTestServer(t)

	status, env, _ := doRequest(t, s, httptest.NewRequest(http.MethodGet, "/api/jobs/stats", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, env.Data, "counts")
}

func TestSignedObjectDownload(t *testing.T) {
	s, c := newTestServer(t)
	ctx := context.Background()

	local := filepath.Join(t.TempDir(), "slide.txt")
	require.NoError(t, os.WriteFile(local, []byte("slide text"), 0o644))
	_, err := c.Objects.Upload(ctx, local, "sources/abc/slide.txt", "text/plain")
	require.NoError(t, err)

	signed, err := c.Objects.SignedURL(ctx, "sources/abc/slide.txt", time.Minute)
	require.NoError(t, err)
	u, err := url.Parse(signed)
	require.NoError(t, err)

	status, _, body := doRequest(t, s, httptest.NewRequest(http.MethodGet, u.RequestURI(), nil))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "slide text", string(body))

	status, _, _ = doRequest(t, s, httptest.NewRequest(http.MethodGet, "/objects/sources/abc/slide.txt?token=forged", nil))
	assert.Equal(t, http.StatusForbidden, status)
}
