package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/gatehouse-labs/gatehouse"
	"github.com/gatehouse-labs/gatehouse/cache"
	"github.com/gatehouse-labs/gatehouse/middleware"
	"github.com/gatehouse-labs/gatehouse/token"
)

type memUsers struct {
	mu   sync.Mutex
	rows map[string]*gatehouse.User
	seq  int
	role *gatehouse.Role
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*gatehouse.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.rows {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gatehouse.ErrNotFound
}

func (m *memUsers) FindByID(_ context.Context, id string) (*gatehouse.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok {
		return nil, gatehouse.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) Create(_ context.Context, email, hash, roleID string, name *string) (*gatehouse.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	u := &gatehouse.User{
		ID:           fmt.Sprintf("u%d", m.seq),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		RoleID:       roleID,
		RoleName:     m.role.Name,
		Permissions:  m.role.Permissions,
		CreatedAt:    time.Now(),
	}
	m.rows[u.ID] = u
	return u, nil
}

func (m *memUsers) UpdateProfile(_ context.Context, id string, name *string) (*gatehouse.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok {
		return nil, gatehouse.ErrNotFound
	}
	u.Name = name
	cp := *u
	return &cp, nil
}

func (m *memUsers) SoftDelete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return gatehouse.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memUsers) List(_ context.Context, _, _ int) ([]*gatehouse.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*gatehouse.User
	for _, u := range m.rows {
		cp := *u
		out = append(out, &cp)
	}
	return out, len(out), nil
}

type memRoles struct{ roles map[string]*gatehouse.Role }

func (m *memRoles) ByID(_ context.Context, id string) (*gatehouse.Role, error) {
	for _, r := range m.roles {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, gatehouse.ErrNotFound
}

func (m *memRoles) ByName(_ context.Context, name string) (*gatehouse.Role, error) {
	r, ok := m.roles[name]
	if !ok {
		return nil, gatehouse.ErrNotFound
	}
	return r, nil
}

type apiEnv struct {
	srv   *httptest.Server
	users *memUsers
}

func newAPIEnv(t *testing.T, defaultRole *gatehouse.Role, extraRoles ...*gatehouse.Role) *apiEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	codec, err := token.NewCodec(token.Config{Secret: strings.Repeat("k", 32)})
	if err != nil {
		t.Fatal(err)
	}
	roles := &memRoles{roles: map[string]*gatehouse.Role{defaultRole.Name: defaultRole}}
	for _, r := range extraRoles {
		roles.roles[r.Name] = r
	}
	users := &memUsers{rows: map[string]*gatehouse.User{}, role: defaultRole}
	sessions := cache.New(rdb, cache.Config{Prefix: "t:"})

	engine, err := gatehouse.New(gatehouse.Deps{
		Users:    users,
		Roles:    roles,
		Sessions: sessions,
		Codec:    codec,
	}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	api := New(Options{
		Engine:      engine,
		Limiter:     sessions,
		CachePinger: sessions,
		WebRateLimit: middleware.RateLimitConfig{
			Bucket: "web", Max: 50, Window: time.Minute,
		},
	})
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return &apiEnv{srv: srv, users: users}
}

func (e *apiEnv) do(t *testing.T, method, path, bearer string, body any) (*http.Response, Envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("%s %s: decode: %v", method, path, err)
	}
	return resp, env
}

func authData(t *testing.T, env Envelope) (access, refresh string) {
	t.Helper()
	data, ok := env.Data.(map[string]any)
	if !ok {
		t.Fatalf("data = %#v", env.Data)
	}
	access, _ = data["accessToken"].(string)
	refresh, _ = data["refreshToken"].(string)
	if access == "" || refresh == "" {
		t.Fatalf("tokens missing from %#v", data)
	}
	return access, refresh
}

var userRole = &gatehouse.Role{ID: "r-user", Name: "USER",
	Permissions: []string{"profile:read", "profile:update"}}

func TestAuthLifecycle(t *testing.T) {
	env := newAPIEnv(t, userRole)

	resp, out := env.do(t, http.MethodPost, "/api/web/v1/auth/register", "", map[string]any{
		"email": "ada@example.com", "password": "long-enough-pw", "name": "Ada",
	})
	if resp.StatusCode != http.StatusCreated || !out.Success {
		t.Fatalf("register: %d %+v", resp.StatusCode, out)
	}
	access, refresh := authData(t, out)

	resp, _ = env.do(t, http.MethodGet, "/api/web/v1/profile", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("profile without token: %d, want 401", resp.StatusCode)
	}

	resp, out = env.do(t, http.MethodGet, "/api/web/v1/profile", access, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile: %d %+v", resp.StatusCode, out)
	}

	resp, out = env.do(t, http.MethodPost, "/api/web/v1/auth/refresh", "", map[string]any{
		"refreshToken": refresh,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: %d %+v", resp.StatusCode, out)
	}
	newAccess, _ := authData(t, out)

	resp, _ = env.do(t, http.MethodPost, "/api/web/v1/auth/refresh", "", map[string]any{
		"refreshToken": refresh,
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh reuse: %d, want 401", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodPost, "/api/web/v1/auth/logout", newAccess, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodGet, "/api/web/v1/profile", newAccess, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("profile after logout: %d, want 401", resp.StatusCode)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newAPIEnv(t, userRole)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing email", map[string]any{"password": "long-enough-pw"}},
		{"bad email", map[string]any{"email": "nope", "password": "long-enough-pw"}},
		{"short password", map[string]any{"email": "a@example.com", "password": "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := env.do(t, http.MethodPost, "/api/web/v1/auth/register", "", tt.body)
			if resp.StatusCode != http.StatusBadRequest || out.Success {
				t.Errorf("status = %d, body = %+v", resp.StatusCode, out)
			}
		})
	}
}

func TestDuplicateRegistrationConflicts(t *testing.T) {
	env := newAPIEnv(t, userRole)
	body := map[string]any{"email": "ada@example.com", "password": "long-enough-pw"}

	if resp, _ := env.do(t, http.MethodPost, "/api/web/v1/auth/register", "", body); resp.StatusCode != http.StatusCreated {
		t.Fatalf("first register: %d", resp.StatusCode)
	}
	resp, _ := env.do(t, http.MethodPost, "/api/web/v1/auth/register", "", body)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second register: %d, want 409", resp.StatusCode)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := newAPIEnv(t, userRole)
	env.do(t, http.MethodPost, "/api/web/v1/auth/register", "", map[string]any{
		"email": "ada@example.com", "password": "long-enough-pw",
	})

	resp, out := env.do(t, http.MethodPost, "/api/web/v1/auth/login", "", map[string]any{
		"email": "ada@example.com", "password": "wrong-password",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if out.Message != "Invalid email or password" {
		t.Errorf("message = %q", out.Message)
	}
}

func TestUserListRequiresPermission(t *testing.T) {
	env := newAPIEnv(t, userRole)
	_, out := env.do(t, http.MethodPost, "/api/web/v1/auth/register", "", map[string]any{
		"email": "ada@example.com", "password": "long-enough-pw",
	})
	access, _ := authData(t, out)

	resp, _ := env.do(t, http.MethodGet, "/api/web/v1/users", access, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("plain user listing users: %d, want 403", resp.StatusCode)
	}
}

func TestAdminCanListUsers(t *testing.T) {
	admin := &gatehouse.Role{ID: "r-admin", Name: "ADMIN", Permissions: []string{"*"}}
	env := newAPIEnv(t, admin)

	_, out := env.do(t, http.MethodPost, "/api/web/v1/auth/register", "", map[string]any{
		"email": "root@example.com", "password": "long-enough-pw", "role": "ADMIN",
	})
	access, _ := authData(t, out)

	resp, list := env.do(t, http.MethodGet, "/api/web/v1/users?page=1&limit=10", access, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin list: %d %+v", resp.StatusCode, list)
	}
	if list.Meta == nil || list.Meta.Total != 1 {
		t.Errorf("meta = %+v", list.Meta)
	}
}

func TestMobileContextUsesMobileExpiry(t *testing.T) {
	env := newAPIEnv(t, userRole)
	resp, out := env.do(t, http.MethodPost, "/api/mobile/v1/auth/register", "", map[string]any{
		"email": "ada@example.com", "password": "long-enough-pw",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("mobile register: %d", resp.StatusCode)
	}
	data := out.Data.(map[string]any)
	if data["expiresIn"] != "30d" {
		t.Errorf("expiresIn = %v, want 30d", data["expiresIn"])
	}
}

func TestHealthz(t *testing.T) {
	env := newAPIEnv(t, userRole)
	resp, out := env.do(t, http.MethodGet, "/healthz", "", nil)
	if resp.StatusCode != http.StatusOK || !out.Success {
		t.Fatalf("healthz: %d %+v", resp.StatusCode, out)
	}
}
