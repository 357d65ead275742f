package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sandeepkv93/session-console/internal/domain"
)

var seedUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.43 Mobile Safari/537.36",
	"Mozilla/5.0 (iPad; CPU OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
}

var seedIPs = []string{"8.8.8.8", "1.1.1.1", "9.9.9.9", "208.67.222.222", "185.228.168.9", "94.140.14.14"}

// Seed creates count development sessions for userID, spread back in time
// across a few days. The first returned session is the newest. Every seeded
// session stays active for a full TTL from now, however far back it was
// created.
func (s *SessionService) Seed(ctx context.Context, userID uint, count int) ([]domain.Session, error) {
	if count < 1 {
		return nil, fmt.Errorf("seed count must be at least 1, got %d", count)
	}
	now := s.now().UTC()
	expires := now.Add(s.sessionTTL)
	out := make([]domain.Session, 0, count)
	for i := 0; i < count; i++ {
		session, err := s.Create(ctx, userID, NewSession{
			UserAgent: seedUserAgents[i%len(seedUserAgents)],
			IP:        seedIPs[i%len(seedIPs)],
			CreatedAt: now.Add(-time.Duration(i) * 97 * time.Minute),
			ExpiresAt: expires,
		})
		if err != nil {
			return out, err
		}
		out = append(out, *session)
	}
	return out, nil
}
