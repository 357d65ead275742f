package panel

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeAuth struct {
	mu          sync.Mutex
	current     Session
	sessions    []Session
	device      []Session
	revoked     []string
	revokeErr   map[string]error
	othersCalls int
	othersErr   error
	listErr     error
}

func (f *fakeAuth) CurrentSession(context.Context) (Session, error) {
	return f.current, nil
}

func (f *fakeAuth) ListSessions(context.Context) ([]Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]Session(nil), f.sessions...), nil
}

func (f *fakeAuth) ListDeviceSessions(context.Context) ([]Session, error) {
	return append([]Session(nil), f.device...), nil
}

func (f *fakeAuth) RevokeSession(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.revokeErr[token]; err != nil {
		return err
	}
	f.revoked = append(f.revoked, token)
	kept := f.sessions[:0]
	for _, s := range f.sessions {
		if s.Token != token {
			kept = append(kept, s)
		}
	}
	f.sessions = kept
	return nil
}

func (f *fakeAuth) RevokeOtherSessions(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.othersCalls++
	if f.othersErr != nil {
		return f.othersErr
	}
	f.sessions = []Session{f.current}
	return nil
}

func (f *fakeAuth) revokedTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.revoked...)
}

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// makeSessions builds n valid sessions, one minute apart, oldest first.
func makeSessions(n int) []Session {
	out := make([]Session, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Session{
			ID:        fmt.Sprintf("s-%02d", i),
			Token:     fmt.Sprintf("t-%02d", i),
			IPAddress: fmt.Sprintf("10.0.0.%d", i),
			UserAgent: chromeUA,
			CreatedAt: baseTime.Add(time.Duration(i) * time.Minute),
		})
	}
	return out
}

// staticClassifier maps user agents to fixed classifications.
func staticClassifier(m map[string]Classification) Classifier {
	return ClassifierFunc(func(ua string) Classification { return m[ua] })
}

func newTestController(t testing.TB, auth *fakeAuth, currentID string, opts ...ControllerOption) *SessionListController {
	t.Helper()
	opts = append([]ControllerOption{WithClock(func() time.Time { return baseTime.Add(time.Hour) })}, opts...)
	c := NewSessionListController(auth, opts...)
	if err := c.Load(Snapshot{CurrentSessionID: currentID, Sessions: auth.sessions}); err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	return c
}

func ids(sessions []Session) []string {
	out := make([]string, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.ID)
	}
	return out
}
