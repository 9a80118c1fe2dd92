package knowledge

import (
	"sort"
	"strings"

	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/vector"
)

func rank(atoms []models.KnowledgeAtom, q Query) []Match {
	matches := make([]Match, 0, len(atoms))
	if len(q.Embedding) > 0 {
		var unranked []Match
		for _, a := range atoms {
			if len(a.Embedding) == 0 {
				unranked = append(unranked, Match{Atom: a})
				continue
			}
			score := vector.Cosine(q.Embedding, a.Embedding)
			if score < q.MinSimilarity {
				continue
			}
			matches = append(matches, Match{Atom: a, Score: score, Ranked: true})
		}
		sortMatches(matches)
		return append(matches, unranked...)
	}

	terms := normalizeTerms(q.Terms)
	for _, a := range atoms {
		matches = append(matches, Match{Atom: a, Score: float64(overlap(a, terms)), Ranked: true})
	}
	sortMatches(matches)
	return matches
}

func sortMatches(m []Match) {
	sort.SliceStable(m, func(i, j int) bool {
		if m[i].Score != m[j].Score {
			return m[i].Score > m[j].Score
		}
		return m[i].Atom.ID < m[j].Atom.ID
	})
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func overlap(a models.KnowledgeAtom, terms []string) int {
	if len(terms) == 0 {
		return 0
	}
	text := strings.ToLower(a.Title + " " + a.Body)
	n := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			n++
		}
	}
	return n
}
