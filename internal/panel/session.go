// Package panel holds the state behind the session management panel: the
// session table controller, the IP lookup widget and the glue between them.
//
// Nothing in this package renders anything. Hosts read rows, selection and
// lookup state from it and call its action methods; network work is handed
// back to the host as RevokeOp and LookupRequest values so it can run off the
// owning goroutine and be applied back with Complete and Resolve.
package panel

import (
	"context"
	"time"

	"github.com/sandeepkv93/session-console/internal/geo"
)

// Placeholder is shown for labels that could not be derived.
const Placeholder = "—"

// PageSize is the number of rows per page.
const PageSize = 15

// Session is one authenticated login as reported by the auth service.
// Empty IPAddress/UserAgent and a zero CreatedAt mean the field is absent.
type Session struct {
	ID        string
	Token     string
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

// Valid reports whether the session carries everything the table needs.
func (s Session) Valid() bool {
	return s.UserAgent != "" && !s.CreatedAt.IsZero() && s.IPAddress != ""
}

// AuthService is the auth collaborator the panel issues commands to.
type AuthService interface {
	CurrentSession(ctx context.Context) (Session, error)
	ListSessions(ctx context.Context) ([]Session, error)
	ListDeviceSessions(ctx context.Context) ([]Session, error)
	RevokeSession(ctx context.Context, token string) error
	RevokeOtherSessions(ctx context.Context) error
}

// GeoLookup resolves an IP address through the geolocation provider.
type GeoLookup interface {
	Lookup(ctx context.Context, ip string) (geo.Response, error)
}

// Snapshot is one read of the session source.
type Snapshot struct {
	CurrentSessionID string
	Sessions         []Session
	DeviceSessions   []Session
}
