package analysis

import (
	"errors"
	"fmt"
)

// ErrParseFailure is returned when the classifier's output contains no
// decodable record. Callers recover locally by treating the result as an
// empty record — no pain points, no eligible agents — rather than failing
// the request.
var ErrParseFailure = errors.New("analysis: classifier output unparsable")

// ErrClassifierTimeout is returned when the classifier call exceeds the
// configured deadline.
var ErrClassifierTimeout = errors.New("analysis: classifier timed out")

// ErrSessionNotFound is returned when a session is neither cached nor
// recoverable from persistence.
var ErrSessionNotFound = errors.New("analysis: session not found")

// IneligibleAgentError rejects a module-generation request for an agent
// outside the session's eligible set. It is a rejection with guidance,
// not an internal failure; force bypasses it.
type IneligibleAgentError struct {
	AgentCode      string
	EligibleAgents []string
}

func (e *IneligibleAgentError) Error() string {
	return fmt.Sprintf("analysis: agent %s is not in the eligible set %v", e.AgentCode, e.EligibleAgents)
}
