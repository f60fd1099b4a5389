package index

import (
	"context"
	"fmt"

	"github.com/brightfield-ai/scout/internal/model"
)

// EvidenceSet is the ordered sequence of segments selected for one
// classification call: transcript segments first, then agent reference,
// then company info. The ordering is deliberate — it biases the
// classifier's attention toward client-specific evidence over generic
// catalog text. Recreated per query, never persisted.
type EvidenceSet []model.Segment

// Quotas caps how many segments of each role an evidence set may contain.
type Quotas struct {
	Transcript     int
	AgentReference int
	CompanyInfo    int
}

// Retriever queries an Index and assembles a bounded, role-balanced
// evidence set. There is no relevance threshold: the retriever always
// fills its quotas from whatever the index returns, even when similarity
// is poor — precision is delegated to the classifier's evidence-citation
// requirement.
type Retriever struct {
	index  Index
	k      int
	quotas Quotas
}

// NewRetriever creates a retriever over an index. k is the candidate pool
// fetched from the index before quota partitioning.
func NewRetriever(idx Index, k int, quotas Quotas) *Retriever {
	return &Retriever{index: idx, k: k, quotas: quotas}
}

// Retrieve queries the index and partitions the ranked results by role,
// truncating each partition to its quota. Relative ranking within a role
// is preserved.
func (r *Retriever) Retrieve(ctx context.Context, query string) (EvidenceSet, error) {
	ranked, err := r.index.Query(ctx, query, r.k)
	if err != nil {
		return nil, fmt.Errorf("index: retrieve evidence: %w", err)
	}

	var transcript, agentRef, company []model.Segment
	for _, seg := range ranked {
		switch seg.Role {
		case model.RoleTranscript:
			if len(transcript) < r.quotas.Transcript {
				transcript = append(transcript, seg)
			}
		case model.RoleAgentReference:
			if len(agentRef) < r.quotas.AgentReference {
				agentRef = append(agentRef, seg)
			}
		case model.RoleCompanyInfo:
			if len(company) < r.quotas.CompanyInfo {
				company = append(company, seg)
			}
		}
	}

	out := make(EvidenceSet, 0, len(transcript)+len(agentRef)+len(company))
	out = append(out, transcript...)
	out = append(out, agentRef...)
	out = append(out, company...)
	return out, nil
}
