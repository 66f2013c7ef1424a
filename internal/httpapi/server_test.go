package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/prometheus"
)

type fixture struct {
	engine *goSession.Engine
	store  *goSession.RedisAccountStore
	redis  *miniredis.Miniredis
	logs   *observer.ObservedLogs
	server *httptest.Server
}

func newFixture(t *testing.T, mutate func(*goSession.Config)) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := goSession.DefaultConfig()
	cfg.Signing.PrivateKey = []byte("httpapi-test-secret-0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.Salt = []byte("httpapi-test-salt-01")
	cfg.Metrics.Enabled = true
	if mutate != nil {
		mutate(&cfg)
	}

	engine, err := goSession.New().WithConfig(cfg).WithRedis(client).Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	store := goSession.NewRedisAccountStore(client, cfg.Security.RedisPrefix)
	require.NoError(t, store.Put(context.Background(), goSession.Account{
		ID:             "acc_1",
		Username:       "alice",
		PasswordDigest: engine.Hash("correct horse"),
	}))

	core, logs := observer.New(zap.DebugLevel)
	srv := New(engine, zap.New(core), Options{
		Info:    Info{Name: "sessiond", Version: "test", Description: "session service"},
		Metrics: prometheus.NewExporter(engine).Handler(),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &fixture{engine: engine, store: store, redis: mr, logs: logs, server: ts}
}

func basic(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

func (f *fixture) do(t *testing.T, method, path string, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, nil)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	}
	return resp, body
}

func (f *fixture) login(t *testing.T) (string, string) {
	t.Helper()
	resp, body := f.do(t, http.MethodPost, "/session", map[string]string{"Authorization": basic("alice", "correct horse")})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return body["credential"].(string), body["xsrf"].(string)
}

func TestIssueSession(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.do(t, http.MethodPost, "/session", map[string]string{"Authorization": basic("alice", "correct horse")})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, body["credential"])
	assert.NotEmpty(t, body["xsrf"])
	assert.EqualValues(t, 3600, body["expiresIn"])
}

func TestIssueSessionRejectsBadCredentials(t *testing.T) {
	f := newFixture(t, nil)

	for _, auth := range []string{basic("alice", "wrong"), basic("mallory", "correct horse"), basic("", "")} {
		resp, body := f.do(t, http.MethodPost, "/session", map[string]string{"Authorization": auth})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, map[string]any{"status": float64(401), "message": "E_UNAUTHORIZED"}, body)
	}
}

func TestIssueSessionRejectsBadScheme(t *testing.T) {
	f := newFixture(t, nil)

	for _, headers := range []map[string]string{
		{"Authorization": "Bearer abc"},
		{"Authorization": "Basic %%%"},
		{},
	} {
		resp, body := f.do(t, http.MethodPost, "/session", headers)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "E_BAD_REQUEST", body["message"])
		assert.Equal(t, "R_BAD_AUTHORIZATION_HEADER_TYPE", body["reason"])
	}
}

func TestIssueSessionThrottled(t *testing.T) {
	f := newFixture(t, func(cfg *goSession.Config) {
		cfg.Security.MaxLoginAttempts = 2
		cfg.Security.LoginCooldownDuration = time.Minute
	})

	for i := 0; i < 2; i++ {
		resp, _ := f.do(t, http.MethodPost, "/session", map[string]string{"Authorization": basic("alice", "wrong")})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp, body := f.do(t, http.MethodPost, "/session", map[string]string{"Authorization": basic("alice", "correct horse")})
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, goSession.CodeRateLimited, body["message"])

	f.redis.FastForward(2 * time.Minute)
	resp, _ = f.do(t, http.MethodPost, "/session", map[string]string{"Authorization": basic("alice", "correct horse")})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestIssueSessionStoreDown(t *testing.T) {
	f := newFixture(t, func(cfg *goSession.Config) {
		cfg.Security.MaxLoginAttempts = 0
	})
	f.redis.Close()

	resp, body := f.do(t, http.MethodPost, "/session", map[string]string{"Authorization": basic("alice", "correct horse")})
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, goSession.CodeInternal, body["message"])

	entries := f.logs.FilterMessage("session request failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, goSession.CodeInternal, entries[0].ContextMap()["code"])
}

func TestVerifySession(t *testing.T) {
	f := newFixture(t, nil)
	credential, xsrf := f.login(t)

	resp, body := f.do(t, http.MethodGet, "/session", map[string]string{
		"Authorization": "Bearer " + credential,
		"X-XSRF-Token":  xsrf,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"id": "acc_1", "username": "alice"}, body["identity"])
	assert.Equal(t, xsrf, body["xsrf"])
	assert.Equal(t, "sessiond", body["issuer"])
	assert.Equal(t, []any{"sessiond"}, body["audience"])
	issuedAt := body["issuedAt"].(float64)
	expiresAt := body["expiresAt"].(float64)
	assert.Equal(t, float64(3600), expiresAt-issuedAt)
}

func TestVerifySessionFailures(t *testing.T) {
	f := newFixture(t, nil)
	credential, xsrf := f.login(t)
	_, otherXSRF := f.login(t)

	cases := map[string]map[string]string{
		"missing xsrf":  {"Authorization": "Bearer " + credential},
		"wrong xsrf":    {"Authorization": "Bearer " + credential, "X-XSRF-Token": otherXSRF},
		"garbage token": {"Authorization": "Bearer not.a.token", "X-XSRF-Token": xsrf},
	}
	for name, headers := range cases {
		t.Run(name, func(t *testing.T) {
			resp, body := f.do(t, http.MethodGet, "/session", headers)
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, map[string]any{"status": float64(401), "message": "E_UNAUTHORIZED"}, body)
		})
	}

	resp, body := f.do(t, http.MethodGet, "/session", map[string]string{"Authorization": basic("alice", "correct horse")})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "R_BAD_AUTHORIZATION_HEADER_TYPE", body["reason"])
}

func TestVerifySessionUnknownAccount(t *testing.T) {
	f := newFixture(t, nil)
	issued, err := f.engine.IssueSession(context.Background(), "acc_deleted")
	require.NoError(t, err)

	resp, _ := f.do(t, http.MethodGet, "/session", map[string]string{
		"Authorization": "Bearer " + issued.Credential,
		"X-XSRF-Token":  issued.XSRF,
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestManifest(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "sessiond", body["name"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, map[string]any{
		"/":        []any{"GET"},
		"/session": []any{"GET", "POST"},
		"/healthz": []any{"GET"},
		"/metrics": []any{"GET"},
	}, body["routes"])

	resp, _ = f.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, nil)
	f.login(t)

	resp, body := f.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	req, err := http.NewRequest(http.MethodGet, f.server.URL+"/metrics", nil)
	require.NoError(t, err)
	mresp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer mresp.Body.Close()
	require.Equal(t, http.StatusOK, mresp.StatusCode)

	raw, err := io.ReadAll(mresp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "gosession_login_success_total 1")
}

func TestRequestLogging(t *testing.T) {
	f := newFixture(t, nil)
	f.do(t, http.MethodGet, "/healthz", nil)

	entries := f.logs.FilterMessage("request").All()
	require.NotEmpty(t, entries)
	fields := entries[len(entries)-1].ContextMap()
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/healthz", fields["path"])
	assert.EqualValues(t, http.StatusOK, fields["status"])
}
