package intent

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"
)

// Score weights. A fault-code match only counts for a vendor already
// identified by name or product family.
const (
	nameWeight      = 0.5
	familyWeight    = 0.25
	faultCodeWeight = 0.15
	classBonus      = 0.1
	genericBase     = 0.2
	maxConfidence   = 0.95
)

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true, "has": true,
	"have": true, "our": true, "what": true, "why": true, "how": true, "does": true,
	"this": true, "that": true, "after": true, "when": true, "keeps": true, "is": true,
	"on": true, "in": true, "of": true, "to": true, "it": true, "my": true, "a": true,
	"an": true, "we": true, "can": true, "not": true, "are": true, "was": true,
}

type compiledVendor struct {
	tag      Vendor
	names    []string
	families []string
	codes    []*regexp.Regexp
}

type compiledClass struct {
	name     string
	keywords []string
}

// Classifier maps request text to an Intent. It is safe for concurrent use.
type Classifier struct {
	vendors       []compiledVendor
	classes       []compiledClass
	safetyTerms   []string
	safetyClasses map[string]bool
}

// NewClassifier compiles lex. A nil lexicon uses DefaultLexicon.
func NewClassifier(lex *Lexicon) (*Classifier, error) {
	if lex == nil {
		lex = DefaultLexicon()
	}
	c := &Classifier{safetyClasses: make(map[string]bool)}
	for _, v := range lex.Vendors {
		if v.Tag == "" {
			return nil, fmt.Errorf("intent: lexicon vendor tag is required")
		}
		cv := compiledVendor{
			tag:      Vendor(strings.ToUpper(string(v.Tag))),
			names:    phrases(v.Names),
			families: phrases(v.Families),
		}
		for _, expr := range v.FaultCodes {
			re, err := regexp.Compile("(?i)" + expr)
			if err != nil {
				return nil, fmt.Errorf("intent: vendor %s fault code %q: %w", v.Tag, expr, err)
			}
			cv.codes = append(cv.codes, re)
		}
		c.vendors = append(c.vendors, cv)
	}
	for _, cl := range lex.Classes {
		c.classes = append(c.classes, compiledClass{name: cl.Name, keywords: phrases(cl.Keywords)})
	}
	c.safetyTerms = phrases(lex.SafetyTerms)
	for _, name := range lex.SafetyClasses {
		c.safetyClasses[name] = true
	}
	return c, nil
}

// Classify derives an Intent from req. It never fails: text with no vendor
// signal, or with two equally strong vendors, yields GENERIC at low
// confidence.
func (c *Classifier) Classify(req Request) Intent {
	text := req.Text()
	tokens := tokenize(text)
	padded := " " + strings.Join(tokens, " ") + " "

	in := Intent{RequestID: req.ID, Vendor: Generic}

	bestScore := 0.0
	var best *compiledVendor
	var bestCodes []string
	tie := false
	for i := range c.vendors {
		v := &c.vendors[i]
		score, codes := v.score(text, padded)
		switch {
		case score == 0:
		case score > bestScore:
			bestScore, best, bestCodes, tie = score, v, codes, false
		case score == bestScore && v.tag != best.tag:
			tie = true
		}
	}

	in.EquipmentClass = c.matchClass(padded)

	switch {
	case best == nil:
		in.Confidence = genericBase
	case tie:
		in.Ambiguous = true
		in.Confidence = genericBase
	default:
		in.Vendor = best.tag
		in.Confidence = bestScore
		in.FaultCodes = bestCodes
	}
	if in.EquipmentClass != "" {
		in.Confidence += classBonus
	}
	in.Confidence = round2(math.Min(in.Confidence, maxConfidence))

	in.SafetyCritical = c.safetyClasses[in.EquipmentClass] || containsAny(padded, c.safetyTerms)
	in.Terms = terms(tokens, in.FaultCodes)
	return in
}

func (v *compiledVendor) score(text, padded string) (float64, []string) {
	score := 0.0
	if containsAny(padded, v.names) {
		score += nameWeight
	}
	if containsAny(padded, v.families) {
		score += familyWeight
	}
	if score == 0 {
		return 0, nil
	}
	var codes []string
	for _, re := range v.codes {
		for _, m := range re.FindAllString(text, -1) {
			codes = append(codes, strings.ToUpper(m))
		}
	}
	if len(codes) > 0 {
		score += faultCodeWeight
	}
	return score, dedupe(codes)
}

// matchClass returns the class with the most keyword hits, preferring the
// earlier class on ties.
func (c *Classifier) matchClass(padded string) string {
	best, bestHits := "", 0
	for _, cl := range c.classes {
		hits := 0
		for _, kw := range cl.keywords {
			if strings.Contains(padded, kw) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = cl.name, hits
		}
	}
	return best
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// phrases converts lexicon entries to padded token sequences so matching
// respects word boundaries.
func phrases(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		toks := tokenize(s)
		if len(toks) == 0 {
			continue
		}
		out = append(out, " "+strings.Join(toks, " ")+" ")
	}
	return out
}

func containsAny(padded string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(padded, p) {
			return true
		}
	}
	return false
}

func terms(tokens, codes []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(t string) {
		t = strings.ToLower(t)
		if seen[t] {
			return
		}
		seen[t] = true
		out = append(out, t)
	}
	for _, code := range codes {
		add(code)
	}
	for _, t := range tokens {
		if len(t) < 2 || stopwords[t] {
			continue
		}
		add(t)
	}
	return out
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
