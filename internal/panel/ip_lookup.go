package panel

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/sandeepkv93/session-console/internal/geo"
)

// GeoState is the single lookup slot. It is exactly one of GeoIdle,
// GeoLoading, GeoSuccess or GeoError.
type GeoState interface {
	geoState()
}

type GeoIdle struct{}

type GeoLoading struct {
	IP string
}

type GeoSuccess struct {
	IP     string
	Result geo.LookupResult
}

type GeoError struct {
	IP      string
	Message string
}

func (GeoIdle) geoState()    {}
func (GeoLoading) geoState() {}
func (GeoSuccess) geoState() {}
func (GeoError) geoState()   {}

// StateIP returns the address a state refers to, empty for GeoIdle.
func StateIP(s GeoState) string {
	switch st := s.(type) {
	case GeoLoading:
		return st.IP
	case GeoSuccess:
		return st.IP
	case GeoError:
		return st.IP
	default:
		return ""
	}
}

const (
	lookupRejectedMessage  = "IP lookup failed"
	lookupTransportMessage = "Failed to fetch IP data"
)

// LookupRequest identifies one lookup. Seq grows with every Lookup call, so
// a request for the same IP issued later still supersedes an earlier one.
type LookupRequest struct {
	IP  string
	Seq uint64
}

// LookupOutcome is a settled provider call for Request.
type LookupOutcome struct {
	Request  LookupRequest
	Response geo.Response
	Err      error
}

// IPLookupWidget resolves one IP address at a time. Starting a new lookup
// abandons interest in any earlier one; its outcome is dropped on Resolve.
type IPLookupWidget struct {
	lookup GeoLookup
	maps   geo.MapLinker
	logger *slog.Logger

	mu      sync.Mutex
	state   GeoState
	current LookupRequest
	seq     uint64
}

type WidgetOption func(*IPLookupWidget)

func WithMapLinker(m geo.MapLinker) WidgetOption {
	return func(w *IPLookupWidget) { w.maps = m }
}

func WithWidgetLogger(logger *slog.Logger) WidgetOption {
	return func(w *IPLookupWidget) { w.logger = logger }
}

func NewIPLookupWidget(lookup GeoLookup, opts ...WidgetOption) *IPLookupWidget {
	w := &IPLookupWidget{
		lookup: lookup,
		logger: slog.Default(),
		state:  GeoIdle{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Lookup moves the slot to Loading(ip) and returns the request to fetch. An
// empty ip resets the slot to Idle and returns false; nothing is fetched.
func (w *IPLookupWidget) Lookup(ip string) (LookupRequest, bool) {
	ip = strings.TrimSpace(ip)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seq++
	w.current = LookupRequest{IP: ip, Seq: w.seq}
	if ip == "" {
		w.state = GeoIdle{}
		return LookupRequest{}, false
	}
	w.state = GeoLoading{IP: ip}
	return w.current, true
}

// Fetch performs the provider call for req without touching the slot.
func (w *IPLookupWidget) Fetch(ctx context.Context, req LookupRequest) LookupOutcome {
	resp, err := w.lookup.Lookup(ctx, req.IP)
	return LookupOutcome{Request: req, Response: resp, Err: err}
}

// Resolve applies out if it belongs to the most recent lookup and reports
// whether it did.
func (w *IPLookupWidget) Resolve(out LookupOutcome) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if out.Request != w.current || out.Request.IP == "" {
		return false
	}
	ip := out.Request.IP
	switch {
	case out.Err != nil:
		w.logger.Warn("ip lookup failed", "ip", ip, "error", out.Err)
		w.state = GeoError{IP: ip, Message: lookupTransportMessage}
	case !out.Response.Success:
		msg := strings.TrimSpace(out.Response.Message)
		if msg == "" {
			msg = lookupRejectedMessage
		}
		w.state = GeoError{IP: ip, Message: msg}
	default:
		w.state = GeoSuccess{IP: ip, Result: out.Response.Result()}
	}
	return true
}

// Run looks ip up and blocks until the slot settled.
func (w *IPLookupWidget) Run(ctx context.Context, ip string) GeoState {
	req, ok := w.Lookup(ip)
	if ok {
		w.Resolve(w.Fetch(ctx, req))
	}
	return w.State()
}

func (w *IPLookupWidget) State() GeoState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *IPLookupWidget) Loading() bool {
	_, ok := w.State().(GeoLoading)
	return ok
}

// Title is the widget heading.
func (w *IPLookupWidget) Title() string {
	if ip := StateIP(w.State()); ip != "" {
		return "IP Lookup: " + ip
	}
	return "IP Lookup: No IP selected"
}

// MapURLs returns the viewer and embed URLs for a successful lookup.
func (w *IPLookupWidget) MapURLs() (view, embed string, ok bool) {
	st, isSuccess := w.State().(GeoSuccess)
	if !isSuccess {
		return "", "", false
	}
	return w.maps.ViewURL(st.Result.Lat, st.Result.Lon), w.maps.EmbedURL(st.Result.Lat, st.Result.Lon), true
}
