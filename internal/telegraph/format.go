package telegraph

import (
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/signalbox/internal/assemble"
	"github.com/zulandar/signalbox/internal/route"
	"github.com/zulandar/signalbox/internal/storage"
	"github.com/zulandar/signalbox/internal/trace"
)

// Sidebar colors.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// routeColor maps a route to a sidebar color: verified answers green,
// thin or unverified ones amber, clarifications blue.
func routeColor(r route.Route) string {
	switch r {
	case route.DirectSpecialist:
		return ColorSuccess
	case route.SpecialistWithEnrichment, route.ResearchFallback:
		return ColorWarning
	default:
		return ColorInfo
	}
}

// FormatResponse renders an answer as a chat attachment.
func FormatResponse(resp *assemble.Response) FormattedEvent {
	evt := FormattedEvent{
		Title: "Answer",
		Body:  resp.Answer,
		Color: routeColor(resp.Route),
	}
	if resp.Route == route.Clarification {
		evt.Title = "Need a few more details"
	}
	if resp.Unverified {
		evt.Title = "Unverified answer"
	}

	var b strings.Builder
	b.WriteString(resp.Answer)
	for _, n := range resp.Notes {
		fmt.Fprintf(&b, "\n\n> %s", n)
	}
	if len(resp.FollowUps) > 0 {
		b.WriteString("\n\n*Next steps*")
		for _, f := range resp.FollowUps {
			fmt.Fprintf(&b, "\n• %s", f)
		}
	}
	evt.Body = b.String()

	if ids := resp.AtomIDs(); len(ids) > 0 {
		evt.Fields = append(evt.Fields, Field{Name: "Sources", Value: strings.Join(ids, ", "), Short: true})
	}
	evt.Fields = append(evt.Fields, Field{Name: "Route", Value: fmt.Sprintf("%s (%s)", resp.Route, resp.Route.Description()), Short: true})
	return evt
}

// FormatHealth renders storage provider states.
func FormatHealth(statuses []storage.ProviderStatus) FormattedEvent {
	evt := FormattedEvent{Title: "Storage health", Color: ColorSuccess}
	healthy := 0
	for _, s := range statuses {
		value := s.Health
		if s.LastError != "" {
			value += " (" + truncate(s.LastError, 60) + ")"
		}
		evt.Fields = append(evt.Fields, Field{Name: fmt.Sprintf("%d. %s", s.Priority+1, s.Name), Value: value})
		if s.Health == storage.Healthy.String() {
			healthy++
		}
	}
	switch {
	case len(statuses) == 0:
		evt.Body = "No storage providers configured."
		evt.Color = ColorError
	case healthy == 0:
		evt.Body = "All storage providers are down. Requests will fail until one recovers."
		evt.Color = ColorError
	case healthy < len(statuses):
		evt.Body = fmt.Sprintf("%d of %d providers healthy.", healthy, len(statuses))
		evt.Color = ColorWarning
	default:
		evt.Body = fmt.Sprintf("All %d providers healthy.", healthy)
	}
	return evt
}

// FormatDigest renders a routing summary for the period ending at now.
func FormatDigest(s trace.Summary, period time.Duration) FormattedEvent {
	evt := FormattedEvent{
		Title: fmt.Sprintf("Signalbox digest: %d request(s) in the last %s", s.Total, humanPeriod(period)),
		Color: ColorInfo,
	}
	var b strings.Builder
	for _, r := range []route.Route{route.DirectSpecialist, route.SpecialistWithEnrichment, route.ResearchFallback, route.Clarification} {
		fmt.Fprintf(&b, "%s %-28s %d\n", r, r.Description(), s.ByRoute[r.String()])
	}
	evt.Body = strings.TrimRight(b.String(), "\n")

	evt.Fields = append(evt.Fields,
		Field{Name: "Failed", Value: fmt.Sprintf("%d", s.Failed), Short: true},
		Field{Name: "Cancelled", Value: fmt.Sprintf("%d", s.Cancelled), Short: true},
		Field{Name: "Mean latency", Value: s.MeanLatency.Round(time.Millisecond).String(), Short: true},
		Field{Name: "Claims replaced", Value: fmt.Sprintf("%d", s.Replacements), Short: true},
	)
	if flags := s.SortedFlags(); len(flags) > 0 {
		parts := make([]string, 0, len(flags))
		for _, f := range flags {
			parts = append(parts, fmt.Sprintf("%s ×%d", f, s.ByFlag[f]))
		}
		evt.Fields = append(evt.Fields, Field{Name: "Degradations", Value: strings.Join(parts, ", ")})
	}
	if s.Failed > 0 || s.ByFlag[trace.FlagStorageUnavailable] > 0 {
		evt.Color = ColorWarning
	}
	return evt
}

func humanPeriod(d time.Duration) string {
	if d%(24*time.Hour) == 0 {
		days := int(d / (24 * time.Hour))
		if days == 1 {
			return "24h"
		}
		return fmt.Sprintf("%d days", days)
	}
	return d.String()
}

// truncate returns s cut to maxLen with "..." appended if needed.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
