package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sandeepkv93/session-console/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSessionServiceForTest(t *testing.T) *SessionService {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repository.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewSessionService(repository.NewSessionRepository(db), 24*time.Hour, nil)
}

func TestSessionServiceCreateAssignsIdentity(t *testing.T) {
	svc := newSessionServiceForTest(t)
	s, err := svc.Create(context.Background(), 1, NewSession{UserAgent: " curl/8.0 ", IP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.ID == "" || len(s.Token) != 32 || s.ID == s.Token {
		t.Fatalf("unexpected identity id=%q token=%q", s.ID, s.Token)
	}
	if s.UserAgent != "curl/8.0" {
		t.Fatalf("expected trimmed user agent, got %q", s.UserAgent)
	}
	if got := s.ExpiresAt.Sub(s.CreatedAt); got != 24*time.Hour {
		t.Fatalf("expected ttl 24h, got %s", got)
	}
}

func TestSessionServiceListDeviceSessions(t *testing.T) {
	ctx := context.Background()
	svc := newSessionServiceForTest(t)
	cur, _ := svc.Create(ctx, 1, NewSession{UserAgent: "ua-a", IP: "1.1.1.1"})
	_, _ = svc.Create(ctx, 1, NewSession{UserAgent: "ua-a", IP: "2.2.2.2"})
	_, _ = svc.Create(ctx, 1, NewSession{UserAgent: "ua-b", IP: "3.3.3.3"})
	_, _ = svc.Create(ctx, 2, NewSession{UserAgent: "ua-a", IP: "4.4.4.4"})

	device, err := svc.ListDeviceSessions(ctx, 1, cur.ID)
	if err != nil {
		t.Fatalf("device sessions: %v", err)
	}
	if len(device) != 2 {
		t.Fatalf("expected 2 sessions for the device, got %d", len(device))
	}
	all, err := svc.ListActiveSessions(ctx, 1)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 sessions for user 1, got %d err=%v", len(all), err)
	}
}

func TestSessionServiceRevokeSession(t *testing.T) {
	ctx := context.Background()
	svc := newSessionServiceForTest(t)
	s, _ := svc.Create(ctx, 1, NewSession{UserAgent: "ua", IP: "1.1.1.1"})

	if _, err := svc.RevokeSession(ctx, 1, "  "); !errors.Is(err, ErrEmptyToken) {
		t.Fatalf("expected ErrEmptyToken, got %v", err)
	}
	if _, err := svc.RevokeSession(ctx, 2, s.Token); !errors.Is(err, repository.ErrSessionNotFound) {
		t.Fatalf("expected not found for another user, got %v", err)
	}
	status, err := svc.RevokeSession(ctx, 1, s.Token)
	if err != nil || status != RevokeStatusRevoked {
		t.Fatalf("expected revoked, got %q err=%v", status, err)
	}
	status, err = svc.RevokeSession(ctx, 1, s.Token)
	if err != nil || status != RevokeStatusAlreadyRevoked {
		t.Fatalf("expected already_revoked, got %q err=%v", status, err)
	}
	if _, err := svc.Current(ctx, 1, s.ID); !errors.Is(err, repository.ErrSessionNotFound) {
		t.Fatalf("revoked session must not resolve as current, got %v", err)
	}
}

func TestSessionServiceRevokeOtherSessions(t *testing.T) {
	ctx := context.Background()
	svc := newSessionServiceForTest(t)
	seeded, err := svc.Seed(ctx, 3, 5)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	keep := seeded[0]

	n, err := svc.RevokeOtherSessions(ctx, 3, keep.ID)
	if err != nil || n != 4 {
		t.Fatalf("expected 4 revoked, got %d err=%v", n, err)
	}
	left, _ := svc.ListActiveSessions(ctx, 3)
	if len(left) != 1 || left[0].ID != keep.ID {
		t.Fatalf("expected only the current session left, got %+v", left)
	}
}

func TestSessionServiceSeed(t *testing.T) {
	ctx := context.Background()
	svc := newSessionServiceForTest(t)
	if _, err := svc.Seed(ctx, 1, 0); err == nil {
		t.Fatal("expected error for zero count")
	}
	seeded, err := svc.Seed(ctx, 1, 20)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	tokens := map[string]struct{}{}
	for i, s := range seeded {
		if _, dup := tokens[s.Token]; dup {
			t.Fatalf("duplicate token at %d", i)
		}
		tokens[s.Token] = struct{}{}
		if i > 0 && !s.CreatedAt.Before(seeded[i-1].CreatedAt) {
			t.Fatalf("seeded sessions must go back in time, %d is not older than %d", i, i-1)
		}
	}
}

func TestSessionServiceSeedKeepsEverySessionActive(t *testing.T) {
	ctx := context.Background()
	svc := newSessionServiceForTest(t)
	svc.sessionTTL = time.Hour

	seeded, err := svc.Seed(ctx, 7, 6)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if age := seeded[0].CreatedAt.Sub(seeded[len(seeded)-1].CreatedAt); age <= time.Hour {
		t.Fatalf("expected seeded sessions older than the ttl, spread is only %s", age)
	}
	active, err := svc.ListActiveSessions(ctx, 7)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != len(seeded) {
		t.Fatalf("expected all %d seeded sessions active, got %d", len(seeded), len(active))
	}
	n, err := svc.CleanupExpired(ctx)
	if err != nil || n != 0 {
		t.Fatalf("expected nothing to clean up, got %d err=%v", n, err)
	}
}

func TestSessionServiceCleanupExpired(t *testing.T) {
	ctx := context.Background()
	svc := newSessionServiceForTest(t)
	_, _ = svc.Create(ctx, 1, NewSession{CreatedAt: time.Now().Add(-48 * time.Hour)})
	_, _ = svc.Create(ctx, 1, NewSession{})

	n, err := svc.CleanupExpired(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 removed, got %d err=%v", n, err)
	}
}
