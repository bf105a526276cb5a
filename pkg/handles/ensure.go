package handles

import (
	"fmt"
	"strings"

	"github.com/aretw0/topograph/pkg/domain"
)

// Code classifies a failed Ensure.
type Code string

const (
	CodeMissing      Code = "missing"
	CodeInvalid      Code = "invalid"
	CodeTypeMismatch Code = "type_mismatch"
)

// Check is the outcome of Ensure.
type Check struct {
	OK       bool
	HandleID string
	Code     Code
	Error    string
}

func fail(code Code, format string, args ...any) Check {
	return Check{Code: code, Error: fmt.Sprintf(format, args...)}
}

// Ensure validates that handleID can anchor an edge end of the expected type on n.
//
// Nodes without declared ports run in implicit-port mode: any non-empty id is
// accepted, canonicalized when it parses and kept verbatim otherwise. Nodes
// with declared ports require the id to name one of them with a matching type.
func Ensure(n domain.Node, handleID string, expected domain.HandleType) Check {
	raw := strings.TrimSpace(handleID)
	if IsNullLike(raw) {
		return fail(CodeMissing, "handle id is required for node %q", n.ID)
	}

	id, parsed := Normalize(raw)
	if !Declares(n) {
		if !parsed {
			id = raw
		}
		return Check{OK: true, HandleID: id}
	}

	if !parsed {
		return fail(CodeInvalid, "handle %q is not a valid port id", raw)
	}
	for _, p := range n.Handles {
		if p.ID != id {
			continue
		}
		if p.Type != expected {
			return fail(CodeTypeMismatch, "port %q on node %q is a %s port, expected %s", id, n.ID, p.Type, expected)
		}
		return Check{OK: true, HandleID: id}
	}
	return fail(CodeInvalid, "node %q does not declare port %q", n.ID, id)
}
