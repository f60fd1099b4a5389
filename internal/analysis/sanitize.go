package analysis

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/brightfield-ai/scout/internal/catalog"
)

// sentinel is the phrase the module prompt tells the model to emit when
// the context holds nothing usable. It never reaches the caller: output
// that is empty or reduces to the sentinel becomes an empty string, so
// absence of content has exactly one representation in the API.
const sentinel = "no relevant outcomes"

// sourcesPrefix marks citation lines the model is told not to emit but
// sometimes does anyway.
const sourcesPrefix = "sources:"

// Sanitizer enforces capability ownership on free-text model output.
// The prompt asks the model to stay inside its agent's scope, but the
// model offers no hard guarantee of respecting instructions — this filter
// is the actual enforcement mechanism.
//
// Matching is line-based and deletion-based: a line mentioning a term
// owned by another agent is dropped outright, since partial redaction
// would leave grammatically broken output. Safe phrases are masked before
// forbidden-term matching so legitimate collocations survive. Running the
// sanitizer twice on its own output deletes nothing further.
type Sanitizer struct {
	rules map[string]agentRules
}

type agentRules struct {
	forbidden []*regexp.Regexp
	safe      []*regexp.Regexp
}

// NewSanitizer compiles per-agent rule sets from the catalog.
func NewSanitizer() (*Sanitizer, error) {
	rules := make(map[string]agentRules, len(catalog.Codes()))
	for _, code := range catalog.Codes() {
		agent, err := catalog.Get(code)
		if err != nil {
			return nil, err
		}

		var ar agentRules
		for _, term := range catalog.ForbiddenTerms(code) {
			re, err := compileTerm(term)
			if err != nil {
				return nil, fmt.Errorf("analysis: compile forbidden term %q: %w", term, err)
			}
			ar.forbidden = append(ar.forbidden, re)
		}
		for _, phrase := range agent.SafePhrases {
			re, err := regexp.Compile(`(?i)` + phrase)
			if err != nil {
				return nil, fmt.Errorf("analysis: compile safe phrase %q: %w", phrase, err)
			}
			ar.safe = append(ar.safe, re)
		}
		rules[code] = ar
	}
	return &Sanitizer{rules: rules}, nil
}

// compileTerm builds a case-insensitive whole-phrase matcher. Words inside
// a multi-word term may be separated by any whitespace run.
func compileTerm(term string) (*regexp.Regexp, error) {
	words := strings.Fields(term)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return regexp.Compile(`(?i)\b` + strings.Join(words, `\s+`) + `\b`)
}

// Sanitize filters model output for the given agent. Returns the filtered
// text, or an empty string when nothing substantive remains.
func (s *Sanitizer) Sanitize(agentCode, text string) string {
	ar, ok := s.rules[agentCode]
	if !ok {
		// Unknown agents own nothing; suppress the output entirely.
		return ""
	}

	text = stripFences(text)

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(trimmed), sourcesPrefix) {
			continue
		}

		// Mask safe phrases first so they cannot trip forbidden matching
		// (e.g. "knowledge base article" when "knowledge base" is owned
		// elsewhere but the collocation is permitted for this agent).
		masked := line
		for _, re := range ar.safe {
			masked = re.ReplaceAllStringFunc(masked, func(m string) string {
				return strings.Repeat("*", len(m))
			})
		}

		if matchesAny(masked, ar.forbidden) {
			continue
		}
		kept = append(kept, line)
	}

	out := strings.TrimSpace(strings.Join(kept, "\n"))
	if out == "" || isSentinel(out) {
		return ""
	}
	return out
}

// stripFences removes fenced code blocks, fences included.
func stripFences(text string) string {
	var kept []string
	inFence := false
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if !inFence {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func matchesAny(line string, res []*regexp.Regexp) bool {
	for _, re := range res {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// isSentinel reports whether text is just the no-content sentinel,
// allowing for trailing punctuation or ellipsis.
func isSentinel(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	t = strings.TrimRight(t, ".…! ")
	return t == sentinel
}
