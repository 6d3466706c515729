package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/S-Corkum/atlas-core/pkg/atlas"
	"github.com/S-Corkum/atlas-core/pkg/observability"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(jwtSecret string) *Server {
	core := atlas.New(atlas.Options{Logger: observability.NewNoopLogger()})
	return NewServer(core, nil, Fabric{}, Config{JWTSecret: jwtSecret}, observability.NewNoopLogger())
}

func signToken(t *testing.T, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "tester",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestHealthRequiresNoAuth(t *testing.T) {
	s := newTestServer("test-secret")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSnapshotRejectsMissingToken(t *testing.T) {
	s := newTestServer("test-secret")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshot", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSnapshotRejectsInvalidToken(t *testing.T) {
	s := newTestServer("test-secret")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshot", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSnapshotAcceptsValidToken(t *testing.T) {
	s := newTestServer("test-secret")
	token := signToken(t, "test-secret")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshot", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot atlas.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, "medium", snapshot.ConsciousnessLevel)
}

func TestSnapshotRejectsTokenSignedWithWrongSecret(t *testing.T) {
	s := newTestServer("test-secret")
	token := signToken(t, "wrong-secret")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshot", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPerceiveEndpoint(t *testing.T) {
	s := newTestServer("test-secret")
	token := signToken(t, "test-secret")

	body, err := json.Marshal(map[string]interface{}{
		"source": "sensor-a",
		"data":   map[string]interface{}{"priority": 8},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/perceive", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result atlas.PerceiveResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Perceived)
	assert.Equal(t, "sensor-a", result.Source)
}

func TestActEndpoint(t *testing.T) {
	s := newTestServer("test-secret")
	token := signToken(t, "test-secret")

	body, err := json.Marshal(map[string]interface{}{
		"action":         "deploy",
		"target_systems": []string{"svc-a"},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/act", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthDisabledWhenNoSecretConfigured(t *testing.T) {
	s := newTestServer("")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshot", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
