package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gatehouse-labs/gatehouse"
)

type fakeAuth struct {
	identity *gatehouse.Identity
}

func (f *fakeAuth) Authenticate(_ context.Context, tok string) (*gatehouse.Identity, error) {
	if tok == "good-token" && f.identity != nil {
		return f.identity, nil
	}
	return nil, gatehouse.E(gatehouse.CodeUnauthorized, "Invalid or expired token")
}

func okHandler() (http.Handler, *bool) {
	called := false
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}), &called
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc123", "abc123"},
		{"bearer abc123", "abc123"},
		{"Basic abc123", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		if got := BearerToken(r); got != tt.want {
			t.Errorf("header %q: got %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestRequireAuthAttachesIdentity(t *testing.T) {
	auth := &fakeAuth{identity: &gatehouse.Identity{ID: "u1", Permissions: []string{"user:read"}}}
	var seen *gatehouse.Identity
	h := RequireAuth(auth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer good-token")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if seen == nil || seen.ID != "u1" {
		t.Fatalf("identity = %+v", seen)
	}
}

func TestRequireAuthRejects(t *testing.T) {
	auth := &fakeAuth{}
	inner, called := okHandler()
	h := RequireAuth(auth)(inner)

	for _, header := range []string{"", "Bearer bad-token"} {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, w.Code)
		}
		var body struct {
			Success bool   `json:"success"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body.Success || body.Message == "" {
			t.Errorf("body = %+v", body)
		}
	}
	if *called {
		t.Fatal("handler reached without authentication")
	}
}

func withIdentity(id *gatehouse.Identity) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), contextKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func TestRequirePermission(t *testing.T) {
	tests := []struct {
		name     string
		identity *gatehouse.Identity
		want     int
	}{
		{"held", &gatehouse.Identity{Permissions: []string{"user:read"}}, http.StatusOK},
		{"wildcard", &gatehouse.Identity{Permissions: []string{"*"}}, http.StatusOK},
		{"admin", &gatehouse.Identity{RoleName: "ADMIN"}, http.StatusOK},
		{"missing", &gatehouse.Identity{Permissions: []string{"profile:read"}}, http.StatusForbidden},
		{"no identity", nil, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner, _ := okHandler()
			h := withIdentity(tt.identity)(RequirePermission("user:read")(inner))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestRequireOwnership(t *testing.T) {
	resolve := func(r *http.Request) string { return r.PathValue("id") }

	tests := []struct {
		name     string
		identity *gatehouse.Identity
		path     string
		want     int
	}{
		{"owner", &gatehouse.Identity{ID: "u1"}, "/users/u1", http.StatusOK},
		{"admin", &gatehouse.Identity{ID: "u2", RoleName: "ADMIN"}, "/users/u1", http.StatusOK},
		{"other", &gatehouse.Identity{ID: "u3"}, "/users/u1", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner, _ := okHandler()
			mux := http.NewServeMux()
			mux.Handle("GET /users/{id}",
				withIdentity(tt.identity)(RequireOwnership(resolve)(inner)))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

type fakeLimiter struct {
	count int64
	err   error
}

func (f *fakeLimiter) IncrRateLimit(context.Context, string, string, time.Duration) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.count++
	return f.count, nil
}

func TestRateLimit(t *testing.T) {
	limiter := &fakeLimiter{}
	inner, _ := okHandler()
	h := RateLimit(limiter, RateLimitConfig{Bucket: "t", Max: 2, Window: time.Minute}, nil, nil)(inner)

	for i, want := range []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		if w.Code != want {
			t.Errorf("request %d: status = %d, want %d", i+1, w.Code, want)
		}
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	limiter := &fakeLimiter{err: errors.New("redis down")}
	inner, called := okHandler()
	h := RateLimit(limiter, RateLimitConfig{Bucket: "t", Max: 1, Window: time.Minute}, nil, nil)(inner)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK || !*called {
		t.Fatalf("status = %d, called = %v; limiter outage must not block", w.Code, *called)
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	if ip := clientIP(r); ip != "10.0.0.1" {
		t.Errorf("remote addr ip = %q", ip)
	}

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if ip := clientIP(r); ip != "203.0.113.7" {
		t.Errorf("forwarded ip = %q", ip)
	}
}
