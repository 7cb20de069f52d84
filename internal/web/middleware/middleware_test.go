package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JonMunkholm/masterfile/internal/config"
	"github.com/JonMunkholm/masterfile/internal/core"
)

func TestAPIKeyAuth(t *testing.T) {
	cfg := &config.SecurityConfig{
		RequireAPIKey: true,
		APIKeys:       []string{"ana:s3cret", "plainkey"},
	}

	var gotOperator string
	h := APIKeyAuth(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOperator = core.OperatorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name         string
		key          string
		wantStatus   int
		wantOperator string
	}{
		{"missing", "", http.StatusUnauthorized, ""},
		{"invalid", "nope", http.StatusForbidden, ""},
		{"named key", "s3cret", http.StatusNoContent, "ana"},
		{"plain key", "plainkey", http.StatusNoContent, ""},
		{"operator name is not a key", "ana", http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotOperator = ""
			req := httptest.NewRequest(http.MethodGet, "/api/counter", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if gotOperator != tt.wantOperator {
				t.Errorf("operator = %q, want %q", gotOperator, tt.wantOperator)
			}
		})
	}
}

func TestAPIKeyAuth_Disabled(t *testing.T) {
	h := APIKeyAuth(&config.SecurityConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/counter", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestLogger_RecordsStatusAndOperator(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	auth := APIKeyAuth(&config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"luis:k1"}})
	h := Logger(auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	})))

	req := httptest.NewRequest(http.MethodPost, "/api/publish", nil)
	req.Header.Set("X-API-Key", "k1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, want := range []string{"status=202", "operator=luis", "bytes=2", "path=/api/publish"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q: %s", want, out)
		}
	}
}

func TestTrustedRealIP(t *testing.T) {
	h := TrustedRealIP([]string{"10.0.0.0/8", "127.0.0.1", "bogus"})

	tests := []struct {
		name   string
		remote string
		header map[string]string
		want   string
	}{
		{"untrusted keeps remote", "203.0.113.5:4000", map[string]string{"X-Real-IP": "1.2.3.4"}, "203.0.113.5:4000"},
		{"trusted uses real ip", "10.1.2.3:4000", map[string]string{"X-Real-IP": "1.2.3.4"}, "1.2.3.4"},
		{"trusted single address", "127.0.0.1:4000", map[string]string{"X-Forwarded-For": "5.6.7.8, 10.0.0.1"}, "5.6.7.8"},
		{"invalid header ignored", "10.1.2.3:4000", map[string]string{"X-Real-IP": "not-an-ip"}, "10.1.2.3:4000"},
		{"no header", "10.1.2.3:4000", nil, "10.1.2.3:4000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			handler := h(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { got = r.RemoteAddr }))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", got, tt.want)
			}
		})
	}
}
