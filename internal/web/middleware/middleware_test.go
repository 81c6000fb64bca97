package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JonMunkholm/stocksync/internal/core"
)

func requesterHandler(got *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = core.RequestedByFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAPIKeyAuth(t *testing.T) {
	keys := []string{"first", "second"}

	tests := []struct {
		name     string
		required bool
		key      string
		wantCode int
		wantWho  string
	}{
		{"optional without key uses client ip", false, "", http.StatusNoContent, "192.0.2.1"},
		{"optional with valid key names the key", false, "second", http.StatusNoContent, "api-key-2"},
		{"optional with wrong key falls back to ip", false, "nope", http.StatusNoContent, "192.0.2.1"},
		{"required without key", true, "", http.StatusUnauthorized, ""},
		{"required with wrong key", true, "nope", http.StatusForbidden, ""},
		{"required with valid key", true, "first", http.StatusNoContent, "api-key-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var who string
			h := APIKeyAuth(keys, tt.required)(requesterHandler(&who))

			req := httptest.NewRequest(http.MethodGet, "/api/template", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantCode, rr.Code)
			assert.Equal(t, tt.wantWho, who)
		})
	}
}

func TestMatchAPIKey(t *testing.T) {
	assert.Equal(t, -1, matchAPIKey("", []string{""}))
	assert.Equal(t, -1, matchAPIKey("x", nil))
	assert.Equal(t, 0, matchAPIKey("a", []string{"a", "b"}))
	assert.Equal(t, 1, matchAPIKey("b", []string{"a", "b"}))
}

func TestTrustedRealIP(t *testing.T) {
	mw := TrustedRealIP([]string{"10.0.0.0/8", "192.168.1.5", "garbage"})

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"untrusted source keeps address", "203.0.113.9:5000", map[string]string{"X-Real-IP": "1.2.3.4"}, "203.0.113.9:5000"},
		{"trusted cidr uses x-real-ip", "10.1.2.3:5000", map[string]string{"X-Real-IP": "1.2.3.4"}, "1.2.3.4"},
		{"trusted single ip uses first forwarded", "192.168.1.5:80", map[string]string{"X-Forwarded-For": "5.6.7.8, 10.0.0.1"}, "5.6.7.8"},
		{"invalid header value ignored", "10.1.2.3:5000", map[string]string{"X-Real-IP": "not-an-ip"}, "10.1.2.3:5000"},
		{"no headers", "10.1.2.3:5000", nil, "10.1.2.3:5000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoggerPreservesStatusAndFlusher(t *testing.T) {
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
		w.(http.Flusher).Flush()
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.True(t, rr.Flushed)
	assert.Equal(t, "ok", rr.Body.String())
}
