package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sandeepkv93/session-console/internal/domain"
	"github.com/sandeepkv93/session-console/internal/health"
	"github.com/sandeepkv93/session-console/internal/http/handler"
	"github.com/sandeepkv93/session-console/internal/repository"
	"github.com/sandeepkv93/session-console/internal/security"
	"github.com/sandeepkv93/session-console/internal/service"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type unhealthyChecker struct{}

func (unhealthyChecker) Check(ctx context.Context) health.CheckResult {
	return health.CheckResult{Name: "db", Healthy: false, Error: "db down"}
}

type fixture struct {
	dep      Dependencies
	sessions *service.SessionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repository.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	svc := service.NewSessionService(repository.NewSessionRepository(db), time.Hour, nil)
	return &fixture{
		sessions: svc,
		dep: Dependencies{
			SessionHandler:  handler.NewSessionHandler(svc, nil),
			JWTManager:      security.NewJWTManager("iss", "aud", "abcdefghijklmnopqrstuvwxyz123456"),
			SessionResolver: svc,
			APIRateLimitRPM: 1000,
		},
	}
}

func (f *fixture) login(t *testing.T, userID uint, ua, ip string) (*domain.Session, string) {
	t.Helper()
	s, err := f.sessions.Create(context.Background(), userID, service.NewSession{UserAgent: ua, IP: ip})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	token, err := f.dep.JWTManager.SignAccessToken(userID, s.ID, time.Hour)
	if err != nil {
		t.Fatalf("sign access token: %v", err)
	}
	return s, token
}

func perform(r http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.RemoteAddr = "10.10.10.10:1234"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

type envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func TestRouterHealthReadyNilAndUnreadyBranches(t *testing.T) {
	t.Run("nil readiness returns ready", func(t *testing.T) {
		f := newFixture(t)
		r := NewRouter(f.dep)

		rr := perform(r, http.MethodGet, "/health/ready", "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if !strings.Contains(rr.Body.String(), `"status":"ready"`) {
			t.Fatalf("expected ready status payload, got %s", rr.Body.String())
		}
	})

	t.Run("unready dependency returns 503", func(t *testing.T) {
		f := newFixture(t)
		f.dep.Readiness = health.NewProbeRunner(time.Second, 0, unhealthyChecker{})
		r := NewRouter(f.dep)

		rr := perform(r, http.MethodGet, "/health/ready", "", "")
		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rr.Code)
		}
		if !strings.Contains(rr.Body.String(), `"code":"DEPENDENCY_UNREADY"`) {
			t.Fatalf("expected DEPENDENCY_UNREADY error envelope, got %s", rr.Body.String())
		}
	})
}

func TestRouterHealthLive(t *testing.T) {
	rr := perform(NewRouter(newFixture(t).dep), http.MethodGet, "/health/live", "", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected health live response %d %s", rr.Code, rr.Body.String())
	}
}

func TestRouterSessionsRequireAuth(t *testing.T) {
	r := NewRouter(newFixture(t).dep)
	rr := perform(r, http.MethodGet, "/api/v1/me/sessions", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if env := decode[any](t, rr); env.Error == nil || env.Error.Code != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED envelope, got %+v", env)
	}
}

func TestRouterListsCurrentAndDeviceSessions(t *testing.T) {
	f := newFixture(t)
	r := NewRouter(f.dep)
	cur, token := f.login(t, 1, "ua-laptop", "8.8.8.8")
	f.login(t, 1, "ua-laptop", "1.1.1.1")
	f.login(t, 1, "ua-phone", "9.9.9.9")
	f.login(t, 2, "ua-laptop", "4.4.4.4")

	rr := perform(r, http.MethodGet, "/api/v1/me/session", token, "")
	current := decode[domain.SessionView](t, rr)
	if rr.Code != http.StatusOK || current.Data.ID != cur.ID || current.Data.Token != cur.Token || current.Data.IPAddress != "8.8.8.8" {
		t.Fatalf("unexpected current session %d %+v", rr.Code, current)
	}

	rr = perform(r, http.MethodGet, "/api/v1/me/sessions", token, "")
	if list := decode[[]domain.SessionView](t, rr); len(list.Data) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(list.Data))
	}

	rr = perform(r, http.MethodGet, "/api/v1/me/device-sessions", token, "")
	if device := decode[[]domain.SessionView](t, rr); len(device.Data) != 2 {
		t.Fatalf("expected 2 device sessions, got %d", len(device.Data))
	}
}

func TestRouterRevokeSession(t *testing.T) {
	f := newFixture(t)
	r := NewRouter(f.dep)
	_, token := f.login(t, 1, "ua", "8.8.8.8")
	other, otherToken := f.login(t, 1, "ua", "1.1.1.1")

	rr := perform(r, http.MethodPost, "/api/v1/me/sessions/revoke", token, `{"token":"`+other.Token+`"}`)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"status":"revoked"`) {
		t.Fatalf("unexpected revoke response %d %s", rr.Code, rr.Body.String())
	}

	rr = perform(r, http.MethodGet, "/api/v1/me/sessions", otherToken, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("access token of a revoked session must stop working, got %d", rr.Code)
	}

	rr = perform(r, http.MethodPost, "/api/v1/me/sessions/revoke", token, `{"token":"nope"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown token, got %d", rr.Code)
	}
	rr = perform(r, http.MethodPost, "/api/v1/me/sessions/revoke", token, `{"token":""}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty token, got %d", rr.Code)
	}
	rr = perform(r, http.MethodPost, "/api/v1/me/sessions/revoke", token, `{`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad body, got %d", rr.Code)
	}
}

func TestRouterRevokeOthersKeepsCaller(t *testing.T) {
	f := newFixture(t)
	r := NewRouter(f.dep)
	_, token := f.login(t, 1, "ua", "8.8.8.8")
	for i := 0; i < 3; i++ {
		f.login(t, 1, "ua", fmt.Sprintf("10.0.0.%d", i))
	}

	rr := perform(r, http.MethodPost, "/api/v1/me/sessions/revoke-others", token, "")
	if env := decode[map[string]int64](t, rr); rr.Code != http.StatusOK || env.Data["revoked"] != 3 {
		t.Fatalf("unexpected revoke-others response %d %+v", rr.Code, env)
	}
	rr = perform(r, http.MethodGet, "/api/v1/me/sessions", token, "")
	if list := decode[[]domain.SessionView](t, rr); len(list.Data) != 1 {
		t.Fatalf("expected only the caller's session, got %d", len(list.Data))
	}
}

func TestRouterAPIRateLimitPerUser(t *testing.T) {
	f := newFixture(t)
	f.dep.APIRateLimitRPM = 1
	r := NewRouter(f.dep)
	_, token := f.login(t, 1, "ua", "8.8.8.8")
	_, otherUser := f.login(t, 2, "ua", "8.8.8.8")

	if rr := perform(r, http.MethodGet, "/api/v1/me/sessions", token, ""); rr.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", rr.Code)
	}
	if rr := perform(r, http.MethodGet, "/api/v1/me/sessions", token, ""); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", rr.Code)
	}
	if rr := perform(r, http.MethodGet, "/api/v1/me/sessions", otherUser, ""); rr.Code != http.StatusOK {
		t.Fatalf("other user keeps its own budget, got %d", rr.Code)
	}
	if rr := perform(r, http.MethodGet, "/health/live", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("health is not rate limited, got %d", rr.Code)
	}
}
