package mutation

import (
	"github.com/aretw0/topograph/pkg/domain"
)

// Result is the transport-neutral envelope of a mutation:
// {ok:true, node|edge, auditId} or {ok:false, status, message}.
type Result struct {
	OK        bool            `json:"ok"`
	Node      *domain.Node    `json:"node,omitempty"`
	Edge      *domain.Edge    `json:"edge,omitempty"`
	Edges     []domain.Edge   `json:"edges,omitempty"`
	Channel   *domain.Channel `json:"channel,omitempty"`
	AuditID   string          `json:"auditId,omitempty"`
	AuditIDs  []string        `json:"auditIds,omitempty"`
	Removed   []string        `json:"removed,omitempty"`
	Status    int             `json:"status,omitempty"`
	Code      string          `json:"code,omitempty"`
	Message   string          `json:"message,omitempty"`
	Retryable bool            `json:"retryable,omitempty"`
}

// Outcome renders the result of a Service call. result is one of *NodeResult,
// *EdgeResult, *RouterResult or *DiagramResult; err wins when set.
func Outcome(result any, err error) Result {
	if err != nil {
		de := domain.AsError(err)
		return Result{
			Status:    de.Status(),
			Code:      de.Code,
			Message:   de.Message,
			Retryable: de.Retryable,
		}
	}

	out := Result{OK: true}
	switch r := result.(type) {
	case *NodeResult:
		if r != nil {
			out.Node, out.Edges, out.AuditID = &r.Node, r.Edges, r.AuditID
		}
	case *EdgeResult:
		if r != nil {
			out.Edge, out.AuditID = &r.Edge, r.AuditID
		}
	case *RouterResult:
		if r != nil {
			out.Node, out.Edges, out.AuditIDs, out.Removed = &r.Router, r.Edges, r.AuditIDs, r.Removed
		}
	case *DiagramResult:
		if r != nil {
			out.Channel = r.Channel
		}
	}
	return out
}
