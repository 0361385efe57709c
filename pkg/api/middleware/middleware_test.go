package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/reelforge/reelforge/pkg/api/auth"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testVerifier(t *testing.T) *auth.Verifier {
	t.Helper()
	v, err := auth.NewVerifier(auth.Config{Secret: testSecret})
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func testToken(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func TestAuthenticate(t *testing.T) {
	var gotUserID string
	handler := Authenticate(testVerifier(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			t.Error("no principal in context")
			return
		}
		gotUserID = principal.UserID
	}))

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer " + testToken(t, "user-7"), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}

	if gotUserID != "user-7" {
		t.Errorf("principal UserID = %q, want user-7", gotUserID)
	}
}

func TestRateLimiterPerKey(t *testing.T) {
	rl := newRateLimiter(1, 2)

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("burst of 2 should admit two calls")
	}
	if rl.Allow("a") {
		t.Error("third call should be rejected")
	}
	// An independent principal has its own bucket.
	if !rl.Allow("b") {
		t.Error("other key should not be affected")
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := newRateLimiter(1, 1)
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.1"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", rec.Code)
	}
}

func TestBindChunk(t *testing.T) {
	tests := []struct {
		name         string
		contentRange string
		body         string
		wantStatus   int
		wantProbe    bool
		wantLength   int64
	}{
		{"missing header", "", "", http.StatusBadRequest, false, 0},
		{"malformed", "bytes banana", "x", http.StatusBadRequest, false, 0},
		{"probe with body", "bytes */*", "data", http.StatusBadRequest, false, 0},
		{"probe", "bytes */1024", "", http.StatusOK, true, 0},
		{"chunk", "bytes 0-3/1024", "data", http.StatusOK, false, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var info *ChunkInfo
			handler := BindChunk(time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, ok := ChunkFromContext(r.Context())
				if !ok {
					t.Error("no chunk info in context")
					return
				}
				info = got
				if _, hasDeadline := r.Context().Deadline(); !hasDeadline {
					t.Error("expected request deadline")
				}
			}))

			req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(tt.body))
			if tt.contentRange != "" {
				req.Header.Set("Content-Range", tt.contentRange)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			if info.Range.StatusProbe != tt.wantProbe {
				t.Errorf("StatusProbe = %v, want %v", info.Range.StatusProbe, tt.wantProbe)
			}
			if info.ContentLength != tt.wantLength {
				t.Errorf("ContentLength = %d, want %d", info.ContentLength, tt.wantLength)
			}
		})
	}
}
