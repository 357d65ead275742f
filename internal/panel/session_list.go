package panel

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

type SortDirection int

const (
	SortDesc SortDirection = iota
	SortAsc
)

func (d SortDirection) String() string {
	if d == SortAsc {
		return "asc"
	}
	return "desc"
}

// CheckState is the state of the select-all control.
type CheckState int

const (
	Unchecked CheckState = iota
	Indeterminate
	Checked
)

// Row is one rendered table line. It carries the session it was built from,
// so actions on the row never have to recover data from labels.
type Row struct {
	Session      Session
	DeviceType   string
	DeviceLabel  string
	OSLabel      string
	BrowserLabel string
	IPLabel      string
	CreatedLabel string

	IsCurrent     bool
	Selected      bool
	Selectable    bool
	Busy          bool
	ActionLabel   string
	ActionEnabled bool
}

// SessionListController owns the filtered, sorted and paginated view of a
// user's sessions together with the selection used for bulk revocation.
//
// It is not safe for concurrent use; one goroutine owns it and network work
// leaves through RevokeOp.
type SessionListController struct {
	auth       AuthService
	classifier Classifier
	now        func() time.Time
	bulkLimit  int

	currentID string
	valid     []Session
	byToken   map[string]Session
	labels    map[string]Classification
	deviceN   int

	searchTerm string
	sortDir    SortDirection
	page       int
	filtered   []Session

	selected      map[string]struct{}
	busySessionID string
	bulkBusy      bool
}

type ControllerOption func(*SessionListController)

func WithClassifier(c Classifier) ControllerOption {
	return func(s *SessionListController) { s.classifier = c }
}

func WithClock(now func() time.Time) ControllerOption {
	return func(s *SessionListController) { s.now = now }
}

// WithBulkConcurrency caps the number of revoke calls a bulk revoke keeps in
// flight. Zero or less means unlimited.
func WithBulkConcurrency(n int) ControllerOption {
	return func(s *SessionListController) { s.bulkLimit = n }
}

func NewSessionListController(auth AuthService, opts ...ControllerOption) *SessionListController {
	c := &SessionListController{
		auth:       auth,
		classifier: NewUAClassifier(),
		now:        time.Now,
		byToken:    make(map[string]Session),
		labels:     make(map[string]Classification),
		selected:   make(map[string]struct{}),
		page:       1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load replaces the session source. Sessions missing a user agent, creation
// time or IP address are dropped. Selected tokens that are no longer present
// are pruned. A snapshot whose sessions share a token is rejected and the
// previous state is kept.
func (c *SessionListController) Load(snap Snapshot) error {
	valid := make([]Session, 0, len(snap.Sessions))
	byToken := make(map[string]Session, len(snap.Sessions))
	for _, s := range snap.Sessions {
		if !s.Valid() {
			continue
		}
		if _, dup := byToken[s.Token]; dup {
			return fmt.Errorf("load sessions: %w (session %s)", ErrDuplicateToken, s.ID)
		}
		byToken[s.Token] = s
		valid = append(valid, s)
	}

	labels := make(map[string]Classification, len(valid))
	for _, s := range valid {
		labels[s.ID] = c.classifier.Classify(s.UserAgent)
	}

	c.currentID = snap.CurrentSessionID
	c.valid = valid
	c.byToken = byToken
	c.labels = labels
	c.deviceN = len(snap.DeviceSessions)
	for token := range c.selected {
		s, ok := byToken[token]
		if !ok || s.ID == c.currentID {
			delete(c.selected, token)
		}
	}
	c.recompute()
	return nil
}

// SetSearchTerm filters by user agent, OS, browser or IP and always returns
// to the first page.
func (c *SessionListController) SetSearchTerm(term string) {
	c.searchTerm = term
	c.page = 1
	c.recompute()
}

func (c *SessionListController) ClearSearch() { c.SetSearchTerm("") }

func (c *SessionListController) SearchTerm() string { return c.searchTerm }

func (c *SessionListController) ToggleSort() {
	if c.sortDir == SortDesc {
		c.sortDir = SortAsc
	} else {
		c.sortDir = SortDesc
	}
	c.recompute()
}

func (c *SessionListController) SortDirection() SortDirection { return c.sortDir }

func (c *SessionListController) recompute() {
	term := strings.ToLower(c.searchTerm)
	filtered := make([]Session, 0, len(c.valid))
	for _, s := range c.valid {
		if c.matches(s, term) {
			filtered = append(filtered, s)
		}
	}
	asc := c.sortDir == SortAsc
	sort.SliceStable(filtered, func(i, j int) bool {
		if asc {
			return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
		}
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})
	c.filtered = filtered
	c.page = clampPage(c.page, c.TotalPages())
}

func (c *SessionListController) matches(s Session, term string) bool {
	if term == "" {
		return true
	}
	cl := c.labels[s.ID]
	return strings.Contains(strings.ToLower(s.UserAgent), term) ||
		strings.Contains(strings.ToLower(cl.OS), term) ||
		strings.Contains(strings.ToLower(cl.Browser), term) ||
		strings.Contains(strings.ToLower(s.IPAddress), term)
}

// Pagination

func (c *SessionListController) FilteredCount() int { return len(c.filtered) }

// TotalSessions is the number of valid sessions before searching.
func (c *SessionListController) TotalSessions() int { return len(c.valid) }

// DeviceSessionCount is the number of sessions signed in on this device.
func (c *SessionListController) DeviceSessionCount() int { return c.deviceN }

func (c *SessionListController) TotalPages() int {
	return calcTotalPages(len(c.filtered), PageSize)
}

func (c *SessionListController) CurrentPage() int { return c.page }

func (c *SessionListController) HasNextPage() bool { return c.page < c.TotalPages() }

func (c *SessionListController) HasPrevPage() bool { return c.page > 1 }

func (c *SessionListController) NextPage() { c.SetPage(c.page + 1) }

func (c *SessionListController) PrevPage() { c.SetPage(c.page - 1) }

func (c *SessionListController) SetPage(page int) { c.page = clampPage(page, c.TotalPages()) }

func calcTotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}

func clampPage(page, totalPages int) int {
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}

// WorkingSet returns the sessions on the current page.
func (c *SessionListController) WorkingSet() []Session {
	start := (c.page - 1) * PageSize
	if start >= len(c.filtered) {
		return []Session{}
	}
	end := start + PageSize
	if end > len(c.filtered) {
		end = len(c.filtered)
	}
	out := make([]Session, end-start)
	copy(out, c.filtered[start:end])
	return out
}

// Rows returns the current page with derived labels and per-row state.
func (c *SessionListController) Rows() []Row {
	page := c.WorkingSet()
	now := c.now()
	rows := make([]Row, 0, len(page))
	for _, s := range page {
		cl := c.labels[s.ID]
		current := s.ID == c.currentID
		_, selected := c.selected[s.Token]
		action := "Revoke"
		if current {
			action = "Sign out"
		}
		rows = append(rows, Row{
			Session:       s,
			DeviceType:    cl.DeviceType,
			DeviceLabel:   label(cl.DeviceType),
			OSLabel:       label(cl.OS),
			BrowserLabel:  label(cl.Browser),
			IPLabel:       label(s.IPAddress),
			CreatedLabel:  RelativeTime(s.CreatedAt, now),
			IsCurrent:     current,
			Selected:      selected,
			Selectable:    !current,
			Busy:          c.busySessionID != "" && c.busySessionID == s.ID,
			ActionLabel:   action,
			ActionEnabled: !current,
		})
	}
	return rows
}

// Selection

func (c *SessionListController) eligible() []string {
	tokens := make([]string, 0, len(c.filtered))
	for _, s := range c.filtered {
		if s.ID != c.currentID {
			tokens = append(tokens, s.Token)
		}
	}
	return tokens
}

// SelectAll adds every filtered session except the current one, across all
// pages.
func (c *SessionListController) SelectAll() {
	for _, token := range c.eligible() {
		c.selected[token] = struct{}{}
	}
}

func (c *SessionListController) ClearSelection() {
	c.selected = make(map[string]struct{})
}

// SetSelectAll mirrors the select-all checkbox.
func (c *SessionListController) SetSelectAll(checked bool) {
	if checked {
		c.SelectAll()
		return
	}
	c.ClearSelection()
}

// ToggleSelect flips one token. The current session and unknown tokens are
// ignored; the return value reports whether the selection changed.
func (c *SessionListController) ToggleSelect(token string) bool {
	s, ok := c.byToken[token]
	if !ok || s.ID == c.currentID {
		return false
	}
	if _, on := c.selected[token]; on {
		delete(c.selected, token)
	} else {
		c.selected[token] = struct{}{}
	}
	return true
}

// Select adds one token to the selection. Unlike ToggleSelect it is
// idempotent and reports why a token cannot be selected.
func (c *SessionListController) Select(token string) error {
	s, ok := c.byToken[token]
	if !ok {
		return ErrUnknownSession
	}
	if s.ID == c.currentID {
		return ErrCurrentSession
	}
	c.selected[token] = struct{}{}
	return nil
}

func (c *SessionListController) IsSelected(token string) bool {
	_, ok := c.selected[token]
	return ok
}

func (c *SessionListController) SelectionCount() int { return len(c.selected) }

// SelectedTokens returns the selection in a stable order.
func (c *SessionListController) SelectedTokens() []string {
	out := make([]string, 0, len(c.selected))
	for token := range c.selected {
		out = append(out, token)
	}
	sort.Strings(out)
	return out
}

func (c *SessionListController) SelectAllState() CheckState {
	eligible := c.eligible()
	if len(eligible) == 0 {
		return Unchecked
	}
	hit := 0
	for _, token := range eligible {
		if _, ok := c.selected[token]; ok {
			hit++
		}
	}
	switch {
	case hit == len(eligible):
		return Checked
	case len(c.selected) > 0:
		return Indeterminate
	default:
		return Unchecked
	}
}

// Revocation

type RevokeKind int

const (
	RevokeKindOne RevokeKind = iota
	RevokeKindSelected
	RevokeKindOthers
)

func (k RevokeKind) String() string {
	switch k {
	case RevokeKindOne:
		return "revoke_one"
	case RevokeKindSelected:
		return "revoke_selected"
	default:
		return "revoke_others"
	}
}

// RevokeOp is a revoke command that has been accepted by the controller and
// still has to reach the auth service. Execute touches no controller state.
type RevokeOp struct {
	Kind      RevokeKind
	SessionID string
	Tokens    []string

	auth  AuthService
	limit int
}

// Outcome is what the host has to do once a revoke settled.
type Outcome struct {
	Notice         Notice
	Refresh        bool
	ClearSelection bool
	Err            error
}

func (op *RevokeOp) Execute(ctx context.Context) error {
	switch op.Kind {
	case RevokeKindOne:
		return op.auth.RevokeSession(ctx, op.Tokens[0])
	case RevokeKindOthers:
		return op.auth.RevokeOtherSessions(ctx)
	}
	var g errgroup.Group
	if op.limit > 0 {
		g.SetLimit(op.limit)
	}
	for _, token := range op.Tokens {
		g.Go(func() error {
			return op.auth.RevokeSession(ctx, token)
		})
	}
	return g.Wait()
}

func (c *SessionListController) BeginRevokeOne(token string) (*RevokeOp, error) {
	s, ok := c.byToken[token]
	if !ok {
		return nil, ErrUnknownSession
	}
	if s.ID == c.currentID {
		return nil, ErrCurrentSession
	}
	if c.busySessionID != "" {
		return nil, ErrActionInFlight
	}
	c.busySessionID = s.ID
	return &RevokeOp{Kind: RevokeKindOne, SessionID: s.ID, Tokens: []string{token}, auth: c.auth}, nil
}

func (c *SessionListController) BeginRevokeSelected() (*RevokeOp, error) {
	if c.bulkBusy {
		return nil, ErrActionInFlight
	}
	tokens := c.SelectedTokens()
	if len(tokens) == 0 {
		return nil, ErrNothingSelected
	}
	c.bulkBusy = true
	return &RevokeOp{Kind: RevokeKindSelected, Tokens: tokens, auth: c.auth, limit: c.bulkLimit}, nil
}

func (c *SessionListController) BeginRevokeOthers() (*RevokeOp, error) {
	if c.bulkBusy {
		return nil, ErrActionInFlight
	}
	c.bulkBusy = true
	return &RevokeOp{Kind: RevokeKindOthers, auth: c.auth}, nil
}

// Complete settles op. Local sessions are left untouched either way; on
// success the outcome asks the host to re-fetch the session source.
func (c *SessionListController) Complete(op *RevokeOp, err error) Outcome {
	switch op.Kind {
	case RevokeKindOne:
		if c.busySessionID == op.SessionID {
			c.busySessionID = ""
		}
		if err != nil {
			return Outcome{Notice: errorNotice(failureMessage(err, "Failed to terminate session.")), Err: err}
		}
		return Outcome{Notice: successNotice("Session terminated"), Refresh: true}
	case RevokeKindSelected:
		c.bulkBusy = false
		if err != nil {
			return Outcome{Notice: errorNotice(failureMessage(err, "Failed to terminate sessions.")), Err: err}
		}
		return Outcome{Notice: successNotice("Selected sessions terminated."), Refresh: true, ClearSelection: true}
	default:
		c.bulkBusy = false
		if err != nil {
			return Outcome{Notice: errorNotice(failureMessage(err, "Failed to revoke sessions.")), Err: err}
		}
		return Outcome{Notice: successNotice("All other sessions revoked."), Refresh: true, ClearSelection: true}
	}
}

// RevokeOne revokes a single session and blocks until it settles.
func (c *SessionListController) RevokeOne(ctx context.Context, token string) Outcome {
	op, err := c.BeginRevokeOne(token)
	if err != nil {
		return rejected(err)
	}
	return c.Complete(op, op.Execute(ctx))
}

// RevokeSelected revokes every selected session concurrently and blocks
// until all of them settled.
func (c *SessionListController) RevokeSelected(ctx context.Context) Outcome {
	op, err := c.BeginRevokeSelected()
	if err != nil {
		return rejected(err)
	}
	return c.Complete(op, op.Execute(ctx))
}

// RevokeAllOthers uses the auth service's dedicated revoke-others call.
func (c *SessionListController) RevokeAllOthers(ctx context.Context) Outcome {
	op, err := c.BeginRevokeOthers()
	if err != nil {
		return rejected(err)
	}
	return c.Complete(op, op.Execute(ctx))
}

func rejected(err error) Outcome {
	return Outcome{Notice: errorNotice(err.Error()), Err: err}
}

func (c *SessionListController) BusySessionID() string { return c.busySessionID }

func (c *SessionListController) BulkBusy() bool { return c.bulkBusy }

// BulkActionLabel is the caption of the header action.
func (c *SessionListController) BulkActionLabel() string {
	switch {
	case c.bulkBusy:
		return "Terminating..."
	case len(c.selected) > 0:
		return fmt.Sprintf("Revoke selected: %d", len(c.selected))
	default:
		return "Revoke other"
	}
}

func (c *SessionListController) CurrentSessionID() string { return c.currentID }
