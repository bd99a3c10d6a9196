package api

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/openarb-backend/internal/logging"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	cases := []struct {
		name   string
		apiKey string
		method string
		path   string
		header string
		want   int
	}{
		{"no key configured", "", http.MethodGet, "/v1/trades/history", "", http.StatusOK},
		{"health bypass", "secret123", http.MethodGet, "/health", "", http.StatusOK},
		{"metrics bypass", "secret123", http.MethodGet, "/metrics", "", http.StatusOK},
		{"preflight bypass", "secret123", http.MethodOptions, "/v1/trades", "", http.StatusOK},
		{"missing header", "secret123", http.MethodGet, "/v1/user", "", http.StatusUnauthorized},
		{"wrong key", "secret123", http.MethodGet, "/v1/user", "Bearer wrong_key", http.StatusUnauthorized},
		{"malformed bearer", "secret123", http.MethodGet, "/v1/user", "Basic secret123", http.StatusUnauthorized},
		{"correct key", "secret123", http.MethodPost, "/v1/trades", "Bearer secret123", http.StatusOK},
		{"stream token", "secret123", http.MethodGet, "/v1/ws/trades?access_token=secret123", "", http.StatusOK},
		{"stream wrong token", "secret123", http.MethodGet, "/v1/ws/trades?access_token=nope", "", http.StatusUnauthorized},
		{"token only on stream", "secret123", http.MethodGet, "/v1/user?access_token=secret123", "", http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := &Server{apiKey: tc.apiKey}
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			s.authMiddleware(okHandler()).ServeHTTP(rr, req)
			assert.Equal(t, tc.want, rr.Code)
		})
	}
}

func TestCorsMiddleware_Headers(t *testing.T) {
	handler := corsMiddleware(okHandler(), "https://myapp.example.com")

	req := httptest.NewRequest(http.MethodGet, "/v1/prices/feed", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, "https://myapp.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "PUT")
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "X-Wallet-Address")
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestCorsMiddleware_Preflight(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("inner handler should not be called for OPTIONS")
	})
	handler := corsMiddleware(inner, "")

	req := httptest.NewRequest(http.MethodOptions, "/v1/settings", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLogger_SetsRequestID(t *testing.T) {
	s := &Server{log: logging.Component(logging.Discard(), "api")}
	handler := s.requestLogger(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Len(t, rr.Header().Get(requestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "caller-supplied")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, "caller-supplied", rr.Header().Get(requestIDHeader))
}

func TestRecoverer(t *testing.T) {
	s := &Server{log: logging.Component(logging.Discard(), "api")}
	handler := s.recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	require.NotPanics(t, func() {
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/user", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestStatusRecorder(t *testing.T) {
	rr := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rr, status: http.StatusOK}
	sr.WriteHeader(http.StatusTeapot)
	sr.WriteHeader(http.StatusOK)
	assert.Equal(t, http.StatusTeapot, sr.status)

	_, _, err := sr.Hijack()
	assert.Error(t, err, "recorder does not support hijacking")
}

type hijackableWriter struct {
	*httptest.ResponseRecorder
	hijacked bool
}

func (h *hijackableWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h.hijacked = true
	return nil, nil, nil
}

func TestStatusRecorder_HijackDelegates(t *testing.T) {
	hw := &hijackableWriter{ResponseRecorder: httptest.NewRecorder()}
	sr := &statusRecorder{ResponseWriter: hw, status: http.StatusOK}
	_, _, err := sr.Hijack()
	require.NoError(t, err)
	assert.True(t, hw.hijacked)
	assert.Equal(t, http.StatusSwitchingProtocols, sr.status)
}
