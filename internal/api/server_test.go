package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInternalOnlyMiddleware(t *testing.T) {
	handler := internalOnlyMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		wantStatus int
	}{
		{"loopback", "127.0.0.1:5000", "", http.StatusOK},
		{"private 10.x", "10.1.2.3:5000", "", http.StatusOK},
		{"private 192.168.x", "192.168.1.10:5000", "", http.StatusOK},
		{"public address", "203.0.113.7:5000", "", http.StatusForbidden},
		{"behind load balancer", "127.0.0.1:5000", "203.0.113.7", http.StatusForbidden},
		{"garbage address", "nonsense", "", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
