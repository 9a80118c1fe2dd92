package trace

import (
	"sort"
	"time"
)

// Summary aggregates a set of traces for digests and the API.
type Summary struct {
	Total        int            `json:"total"`
	Failed       int            `json:"failed"`
	Cancelled    int            `json:"cancelled"`
	ByRoute      map[string]int `json:"by_route"`
	ByFlag       map[string]int `json:"by_flag"`
	MeanLatency  time.Duration  `json:"mean_latency"`
	Replacements int            `json:"replacements"`
}

// Summarize aggregates traces.
func Summarize(traces []AgentTrace) Summary {
	s := Summary{ByRoute: map[string]int{}, ByFlag: map[string]int{}}
	var total time.Duration
	for _, t := range traces {
		s.Total++
		total += t.Total
		switch {
		case t.Cancelled:
			s.Cancelled++
		case !t.Success:
			s.Failed++
		}
		if t.Route != "" {
			s.ByRoute[t.Route]++
		}
		for _, f := range t.Flags {
			s.ByFlag[f]++
		}
		s.Replacements += t.Substitutions
	}
	if s.Total > 0 {
		s.MeanLatency = total / time.Duration(s.Total)
	}
	return s
}

// SortedFlags returns flag names ordered by descending count.
func (s Summary) SortedFlags() []string {
	out := make([]string, 0, len(s.ByFlag))
	for f := range s.ByFlag {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if s.ByFlag[out[i]] != s.ByFlag[out[j]] {
			return s.ByFlag[out[i]] > s.ByFlag[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}
