package sessionctl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sandeepkv93/session-console/internal/panel"
)

// listLines renders every page of the filtered sessions, one line each.
func listLines(s *panel.SessionListController) []string {
	lines := []string{fmt.Sprintf("sessions=%d shown=%d device=%d sort=%s",
		s.TotalSessions(), s.FilteredCount(), s.DeviceSessionCount(), s.SortDirection())}
	for page := 1; page <= s.TotalPages(); page++ {
		s.SetPage(page)
		for _, row := range s.Rows() {
			lines = append(lines, rowLine(row))
		}
	}
	s.SetPage(1)
	return lines
}

func rowLine(row panel.Row) string {
	line := fmt.Sprintf("%s  %-8s %-14s %-14s %-16s %s",
		row.Session.Token, row.DeviceLabel, row.OSLabel, row.BrowserLabel, row.IPLabel, row.CreatedLabel)
	if row.IsCurrent {
		line += "  (current)"
	}
	return line
}

func lookupLines(w *panel.IPLookupWidget) ([]string, error) {
	switch st := w.State().(type) {
	case panel.GeoSuccess:
		r := st.Result
		lines := []string{
			w.Title(),
			"location=" + strings.Join(nonEmpty(r.City, r.Region, r.Country), ", "),
			fmt.Sprintf("coordinates=%.4f,%.4f", r.Lat, r.Lon),
			"isp=" + r.ISP,
			"asn=" + r.ASN,
		}
		if view, _, ok := w.MapURLs(); ok {
			lines = append(lines, "map="+view)
		}
		return lines, nil
	case panel.GeoError:
		return []string{w.Title()}, errors.New(st.Message)
	default:
		return []string{w.Title()}, panel.ErrNoIPAddress
	}
}

func nonEmpty(parts ...string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}
