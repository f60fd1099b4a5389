// Package catalog holds the fixed registry of the eight capability agents:
// their codes, human-readable descriptions, and the capability terms each
// agent owns. Ownership is exclusive — a term belongs to exactly one agent,
// and the sanitizer deletes lines where an agent's output mentions a term
// owned by another agent.
//
// The catalog is configuration: loaded once, immutable for process lifetime.
package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownAgent is returned when a requested agent code is outside the
// fixed catalog.
var ErrUnknownAgent = errors.New("catalog: unknown agent")

// Agent is one entry in the capability catalog.
type Agent struct {
	Code        string
	Name        string
	Description string

	// OwnedTerms are the capability phrases this agent exclusively owns.
	// Matched case-insensitively as whole phrases during sanitization.
	OwnedTerms []string

	// SafePhrases are regular expressions for legitimate collocations that
	// must not trigger ownership rejection for this agent. A safe phrase is
	// masked out of the text before forbidden-term matching runs.
	SafePhrases []string
}

// codeOrder is the canonical catalog order, used for prompt assembly and
// deterministic iteration.
var codeOrder = []string{"HYPE", "STRIKE", "CARE", "VISION", "FLOW", "ASSET", "TEAM", "CODE"}

var agents = map[string]Agent{
	"HYPE": {
		Code:        "HYPE",
		Name:        "Marketing Intelligence Agent",
		Description: "Transforms marketing into a revenue engine via intelligent automation and data-driven campaign optimization. Core scope includes AI social content creation, cross-platform social management, A/B testing and optimization, and personalized email campaign automation.",
		OwnedTerms: []string{
			"social content creation", "social media management", "campaign optimization",
			"a/b testing", "email campaign",
		},
	},
	"STRIKE": {
		Code:        "STRIKE",
		Name:        "Sales Acceleration Agent",
		Description: "Transforms sales through intelligent pipeline management and automated relationship building. Core scope includes lead scoring, automated pipeline progression, cold outreach (research/persona/outreach/follow-ups), meeting scheduling and follow-up, and proposal/quotation automation.",
		OwnedTerms: []string{
			"lead scoring", "pipeline progression", "cold outreach",
			"meeting scheduling", "proposal automation", "quotation automation",
		},
	},
	"CARE": {
		Code:        "CARE",
		Name:        "Customer Experience Agent",
		Description: "Delivers omnichannel customer support that blends AI efficiency with human escalation. Core scope includes AI voice receptionist, omnichannel chatbot/ticket routing with sentiment, customer onboarding automation, and feedback/experience analytics.",
		OwnedTerms: []string{
			"voice receptionist", "ticket routing", "chatbot",
			"customer onboarding", "sentiment analysis", "feedback analytics",
		},
		SafePhrases: []string{
			// A support agent may point customers at self-serve articles
			// without claiming TEAM's knowledge management capability.
			`knowledge base articles?`,
		},
	},
	"VISION": {
		Code:        "VISION",
		Name:        "Strategic Intelligence Agent",
		Description: "Provides executive-level strategic intelligence turning data into actionable insights and competitive advantage. Core scope includes business health diagnostics, cross-functional performance dashboards, competitive response coordination, and customer intelligence/LTV optimization.",
		OwnedTerms: []string{
			"business health diagnostics", "performance dashboards",
			"competitive response", "customer intelligence", "ltv optimization",
		},
	},
	"FLOW": {
		Code:        "FLOW",
		Name:        "Operations Excellence Agent",
		Description: "Optimizes operational efficiency via intelligent process automation and supply chain intelligence. Core scope includes inventory management/forecasting, supplier/vendor management, quality/compliance monitoring, and order fulfillment & delivery optimization.",
		OwnedTerms: []string{
			"inventory management", "inventory forecasting", "supplier management",
			"vendor management", "compliance monitoring", "order fulfillment",
			"delivery optimization",
		},
	},
	"ASSET": {
		Code:        "ASSET",
		Name:        "Financial Intelligence Agent",
		Description: "Transforms financial management via intelligent automation and predictive planning. Core scope includes intelligent accounts receivable, automated invoice processing and matching, expense management and approvals, and cash-flow management and forecasting.",
		OwnedTerms: []string{
			"accounts receivable", "invoice processing", "invoice matching",
			"invoice reconciliation", "expense management", "cash flow forecasting",
		},
	},
	"TEAM": {
		Code:        "TEAM",
		Name:        "Human Capital Agent",
		Description: "Optimizes human potential with intelligent recruitment, development, and performance management. Core scope includes automated onboarding, recruitment & screening, performance monitoring & development, and internal knowledge management.",
		OwnedTerms: []string{
			"recruitment", "candidate screening", "employee onboarding",
			"performance monitoring", "knowledge management", "knowledge base",
		},
	},
	"CODE": {
		Code:        "CODE",
		Name:        "Technology Intelligence Agent",
		Description: "Provides the technology foundation for AI-driven transformation through intelligent infrastructure management. Core scope includes business tool connection hub, data architecture & ML foundation, cloud infrastructure & cybersecurity, and predictive BI & ML engines.",
		OwnedTerms: []string{
			"tool connection hub", "data architecture", "ml foundation",
			"cloud infrastructure", "cybersecurity", "predictive bi",
		},
	},
}

// Codes returns all agent codes in canonical order.
func Codes() []string {
	out := make([]string, len(codeOrder))
	copy(out, codeOrder)
	return out
}

// Get looks up an agent by code. The lookup is case-sensitive: codes are
// upper-case by contract and the caller normalizes input once at the API
// boundary.
func Get(code string) (Agent, error) {
	a, ok := agents[code]
	if !ok {
		return Agent{}, fmt.Errorf("%w: %q", ErrUnknownAgent, code)
	}
	return a, nil
}

// Known reports whether code is in the catalog.
func Known(code string) bool {
	_, ok := agents[code]
	return ok
}

// ForbiddenTerms returns the capability terms owned by every agent except
// the named one. These are the phrases the named agent's output must never
// claim.
func ForbiddenTerms(code string) []string {
	var out []string
	for _, other := range codeOrder {
		if other == code {
			continue
		}
		out = append(out, agents[other].OwnedTerms...)
	}
	return out
}

// ReferenceBlock formats the full catalog as a prompt-ready reference list,
// one line per agent.
func ReferenceBlock() string {
	var b strings.Builder
	for _, code := range codeOrder {
		a := agents[code]
		fmt.Fprintf(&b, "- %s (%s): %s\n", a.Code, a.Name, a.Description)
	}
	return b.String()
}
