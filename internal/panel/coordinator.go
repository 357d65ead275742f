package panel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Coordinator ties table rows to the lookup widget and owns the explicit
// refresh of the session source.
type Coordinator struct {
	auth       AuthService
	sessions   *SessionListController
	widget     *IPLookupWidget
	classifier Classifier
	logger     *slog.Logger
}

func NewCoordinator(auth AuthService, sessions *SessionListController, widget *IPLookupWidget, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		auth:       auth,
		sessions:   sessions,
		widget:     widget,
		classifier: sessions.classifier,
		logger:     logger,
	}
}

func (c *Coordinator) Sessions() *SessionListController { return c.sessions }

func (c *Coordinator) Widget() *IPLookupWidget { return c.widget }

// LookupRow starts a lookup of the IP bound to row. A row without an IP is
// rejected with ErrNoIPAddress before the widget is touched.
func (c *Coordinator) LookupRow(row Row) (LookupRequest, error) {
	return c.LookupIP(row.Session.IPAddress)
}

func (c *Coordinator) LookupIP(ip string) (LookupRequest, error) {
	ip = strings.TrimSpace(ip)
	if ip == "" || ip == Placeholder {
		return LookupRequest{}, ErrNoIPAddress
	}
	req, _ := c.widget.Lookup(ip)
	return req, nil
}

// SearchLabel filters the table by a clicked label. Placeholders and empty
// labels do nothing.
func (c *Coordinator) SearchLabel(text string) bool {
	if strings.TrimSpace(text) == "" || text == Placeholder {
		return false
	}
	c.sessions.SetSearchTerm(text)
	return true
}

func (c *Coordinator) DescribeUserAgent(ua string) Classification {
	return c.classifier.Classify(ua)
}

// Fetch reads the current session, the session list and the device sessions
// concurrently. It does not touch the controller.
func (c *Coordinator) Fetch(ctx context.Context) (Snapshot, error) {
	var (
		snap    Snapshot
		current Session
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := c.auth.CurrentSession(gctx)
		if err != nil {
			return fmt.Errorf("current session: %w", err)
		}
		current = s
		return nil
	})
	g.Go(func() error {
		list, err := c.auth.ListSessions(gctx)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		snap.Sessions = list
		return nil
	})
	g.Go(func() error {
		list, err := c.auth.ListDeviceSessions(gctx)
		if err != nil {
			return fmt.Errorf("list device sessions: %w", err)
		}
		snap.DeviceSessions = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	snap.CurrentSessionID = current.ID
	return snap, nil
}

// Apply loads a fetched snapshot into the controller.
func (c *Coordinator) Apply(snap Snapshot) error {
	if err := c.sessions.Load(snap); err != nil {
		c.logger.Error("reject session snapshot", "error", err)
		return err
	}
	return nil
}

// Reload is the re-fetch command handed out after a successful revoke.
func (c *Coordinator) Reload(ctx context.Context) error {
	snap, err := c.Fetch(ctx)
	if err != nil {
		c.logger.Warn("reload sessions failed", "error", err)
		return err
	}
	return c.Apply(snap)
}

// Settle applies the parts of a revoke outcome that belong to the owner
// goroutine and reports whether the session source must be re-fetched.
func (c *Coordinator) Settle(out Outcome) bool {
	if out.ClearSelection {
		c.sessions.ClearSelection()
	}
	return out.Refresh
}

// Finish settles out and, when asked to, reloads synchronously.
func (c *Coordinator) Finish(ctx context.Context, out Outcome) error {
	if !c.Settle(out) {
		return nil
	}
	return c.Reload(ctx)
}

// NoticeFor turns an action error into the message shown to the user.
func NoticeFor(err error) Notice {
	if errors.Is(err, ErrNoIPAddress) {
		return errorNotice("No valid IP address found")
	}
	return errorNotice(failureMessage(err, err.Error()))
}
