package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/policy-docs-api/internal/models"
	"github.com/noah-isme/policy-docs-api/pkg/config"
	appErrors "github.com/noah-isme/policy-docs-api/pkg/errors"
)

type tokenStub map[string]*models.JWTClaims

func (s tokenStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.ErrInvalidToken
}

var testTokens = tokenStub{
	"staff":       {UserID: "staff-1", Role: models.RoleStaff, InstitutionID: "inst-a"},
	"hod":         {UserID: "hod-1", Role: models.RoleHOD, InstitutionID: "inst-a"},
	"implementor": {UserID: "impl-1", Role: models.RoleImplementor, InstitutionID: "inst-a"},
	"student":     {UserID: "student-1", Role: models.RoleStudent, InstitutionID: "inst-a"},
}

func testConfig() *config.Config {
	return &config.Config{
		Env:       config.EnvDevelopment,
		APIPrefix: "/api/v1",
		RateLimit: config.RateLimitConfig{Requests: 0, Window: time.Minute},
	}
}

func newTestEngine(register func(api *gin.RouterGroup)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r, api := NewEngine(EngineParams{Config: testConfig()})
	register(api)
	return r
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func doRequest(t *testing.T, r http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			payload, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(payload)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func newRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}
