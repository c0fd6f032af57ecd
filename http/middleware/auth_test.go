package middlewares

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tnqbao/gau-media-service/config"
	"github.com/tnqbao/gau-media-service/utils"
)

func newAuthRouter(cfg *config.EnvConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware(cfg))
	r.POST("/files", func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		c.String(http.StatusOK, c.GetString("subject")+"|"+string(body))
	})
	return r
}

func jwtConfig() *config.EnvConfig {
	cfg := &config.EnvConfig{}
	cfg.JWT.SecretKey = "jwt-secret"
	cfg.JWT.Algorithm = "HS256"
	return cfg
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestAuthDisabledWithoutSecrets(t *testing.T) {
	r := newAuthRouter(&config.EnvConfig{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/files", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJWTAuth(t *testing.T) {
	r := newAuthRouter(jwtConfig())
	exp := time.Now().Add(time.Hour).Unix()

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"valid token", "Bearer " + signToken(t, "jwt-secret", jwt.MapClaims{"user_id": "u-1", "exp": exp}), http.StatusOK},
		{"wrong secret", "Bearer " + signToken(t, "other", jwt.MapClaims{"user_id": "u-1", "exp": exp}), http.StatusUnauthorized},
		{"expired", "Bearer " + signToken(t, "jwt-secret", jwt.MapClaims{"user_id": "u-1", "exp": time.Now().Add(-time.Hour).Unix()}), http.StatusUnauthorized},
		{"no subject", "Bearer " + signToken(t, "jwt-secret", jwt.MapClaims{"exp": exp}), http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/files", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestJWTSubjectReachesHandler(t *testing.T) {
	r := newAuthRouter(jwtConfig())
	req := httptest.NewRequest(http.MethodPost, "/files", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "jwt-secret", jwt.MapClaims{"sub": "svc-7"}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "svc-7|", w.Body.String())
}

func hmacRequest(secret, accessKey, body string, ts time.Time) *http.Request {
	unix := ts.Unix()
	sig := utils.ComputeHMACSHA256(secret, utils.BuildStringToSign(http.MethodPost, "/files", unix, utils.HashBodySHA256([]byte(body))))
	req := httptest.NewRequest(http.MethodPost, "/files?dry_run=1", strings.NewReader(body))
	req.Header.Set("Authorization", "HMAC "+accessKey+":"+sig)
	req.Header.Set("X-Timestamp", strconv.FormatInt(unix, 10))
	return req
}

func TestHMACAuth(t *testing.T) {
	cfg := &config.EnvConfig{}
	cfg.HMAC.AccessKey = "media-worker"
	cfg.HMAC.SecretKey = "hmac-secret"
	r := newAuthRouter(cfg)

	t.Run("valid signature keeps the body readable", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, hmacRequest("hmac-secret", "media-worker", `{"name":"a"}`, time.Now()))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `media-worker|{"name":"a"}`, w.Body.String())
	})

	t.Run("wrong secret", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, hmacRequest("nope", "media-worker", "x", time.Now()))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown access key", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, hmacRequest("hmac-secret", "intruder", "x", time.Now()))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, hmacRequest("hmac-secret", "media-worker", "x", time.Now().Add(-10*time.Minute)))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("oversized body", func(t *testing.T) {
		limited := *cfg
		limited.HMAC.MaxBodyBytes = 8
		w := httptest.NewRecorder()
		newAuthRouter(&limited).ServeHTTP(w, hmacRequest("hmac-secret", "media-worker", "0123456789", time.Now()))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.NotContains(t, w.Body.String(), "media-worker|")
	})

	t.Run("body at the limit", func(t *testing.T) {
		limited := *cfg
		limited.HMAC.MaxBodyBytes = 10
		w := httptest.NewRecorder()
		newAuthRouter(&limited).ServeHTTP(w, hmacRequest("hmac-secret", "media-worker", "0123456789", time.Now()))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "media-worker|0123456789", w.Body.String())
	})

	t.Run("bearer rejected when only hmac is configured", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/files", nil)
		req.Header.Set("Authorization", "Bearer abc")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.EnvConfig{}
	cfg.CORS.AllowDomains = "https://app.example.com, https://admin.example.com"

	handler, err := CORSMiddleware(cfg)
	require.NoError(t, err)
	r := gin.New()
	r.Use(handler)
	r.GET("/files", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/files", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://admin.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/files", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCORSAllowsAllWithoutDomains(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, err := CORSMiddleware(&config.EnvConfig{})
	require.NoError(t, err)
	r := gin.New()
	r.Use(handler)
	r.GET("/files", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/files", nil)
	req.Header.Set("Origin", "https://anywhere.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
