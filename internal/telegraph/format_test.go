package telegraph

import (
	"strings"
	"testing"
	"time"

	"github.com/zulandar/signalbox/internal/assemble"
	"github.com/zulandar/signalbox/internal/route"
	"github.com/zulandar/signalbox/internal/storage"
	"github.com/zulandar/signalbox/internal/trace"
)

func TestFormatResponse(t *testing.T) {
	resp := &assemble.Response{
		Answer: "Check the braking resistor.",
		Citations: []assemble.Citation{
			{Kind: assemble.KindAtom, ID: "atom-1"},
			{Kind: assemble.KindAtom, ID: "atom-2"},
			{Kind: assemble.KindCase, ID: "case-9"},
		},
		FollowUps: []string{"Log the DC bus voltage."},
		Notes:     []string{"Similar resolved case: OV on decel."},
		Route:     route.SpecialistWithEnrichment,
	}
	evt := FormatResponse(resp)
	if evt.Color != ColorWarning {
		t.Errorf("Color = %q, want warning for route B", evt.Color)
	}
	for _, want := range []string{"braking resistor", "> Similar resolved case", "• Log the DC bus voltage."} {
		if !strings.Contains(evt.Body, want) {
			t.Errorf("Body missing %q:\n%s", want, evt.Body)
		}
	}
	if evt.Fields[0].Name != "Sources" || evt.Fields[0].Value != "atom-1, atom-2" {
		t.Errorf("Sources field = %+v", evt.Fields[0])
	}
}

func TestFormatResponse_Titles(t *testing.T) {
	tests := []struct {
		resp  assemble.Response
		title string
	}{
		{assemble.Response{Route: route.DirectSpecialist}, "Answer"},
		{assemble.Response{Route: route.Clarification}, "Need a few more details"},
		{assemble.Response{Route: route.ResearchFallback, Unverified: true}, "Unverified answer"},
	}
	for _, tt := range tests {
		if got := FormatResponse(&tt.resp).Title; got != tt.title {
			t.Errorf("route %s title = %q, want %q", tt.resp.Route, got, tt.title)
		}
	}
}

func TestFormatHealth(t *testing.T) {
	tests := []struct {
		name     string
		statuses []storage.ProviderStatus
		color    string
		body     string
	}{
		{"none", nil, ColorError, "No storage providers"},
		{"all healthy", []storage.ProviderStatus{{Name: "a", Health: "healthy"}}, ColorSuccess, "All 1 providers healthy"},
		{"partial", []storage.ProviderStatus{{Name: "a", Health: "unhealthy"}, {Name: "b", Health: "healthy", Priority: 1}}, ColorWarning, "1 of 2"},
		{"all down", []storage.ProviderStatus{{Name: "a", Health: "recovering"}}, ColorError, "All storage providers are down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt := FormatHealth(tt.statuses)
			if evt.Color != tt.color || !strings.Contains(evt.Body, tt.body) {
				t.Errorf("evt = %+v", evt)
			}
		})
	}
}

func TestFormatDigest(t *testing.T) {
	s := trace.Summary{
		Total:       4,
		ByRoute:     map[string]int{"A": 2, "D": 2},
		ByFlag:      map[string]int{"coverage_timeout": 1, "enhancement_timeout": 3},
		MeanLatency: 42 * time.Millisecond,
	}
	evt := FormatDigest(s, 24*time.Hour)
	if evt.Title != "Signalbox digest: 4 request(s) in the last 24h" {
		t.Errorf("Title = %q", evt.Title)
	}
	last := evt.Fields[len(evt.Fields)-1]
	if last.Name != "Degradations" || !strings.HasPrefix(last.Value, "enhancement_timeout ×3") {
		t.Errorf("Degradations = %+v", last)
	}
	if evt.Color != ColorInfo {
		t.Errorf("Color = %q", evt.Color)
	}
}
