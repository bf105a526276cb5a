// Package validator checks a diagram payload before it is stored.
package validator

import (
	"fmt"
	"strings"

	"github.com/aretw0/topograph/pkg/diagram"
	"github.com/aretw0/topograph/pkg/domain"
	"github.com/aretw0/topograph/pkg/handles"
)

// Problem is a single finding. Subject is the node or edge id it concerns,
// empty for findings about the payload as a whole.
type Problem struct {
	Subject string `json:"subject,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error aggregates every problem found in a diagram.
type Error struct {
	Problems []Problem
}

func (e *Error) Error() string {
	lines := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		lines[i] = p.Message
	}
	return fmt.Sprintf("found %d errors:\n- %s", len(lines), strings.Join(lines, "\n- "))
}

// Subjects lists the ids problems were reported against.
func (e *Error) Subjects() []string {
	var ids []string
	for _, p := range e.Problems {
		if p.Subject != "" {
			ids = append(ids, p.Subject)
		}
	}
	return ids
}

// ValidateDiagram prepares raw the way a save would and reports everything
// the save would silently repair: discarded entries, edge handles that do not
// resolve on their node, and ports shared by several edges. The prepared
// channel is returned either way.
func ValidateDiagram(raw any) (domain.Channel, error) {
	ch, report := diagram.Prepare(raw)

	var problems []Problem
	add := func(subject, code, format string, args ...any) {
		problems = append(problems, Problem{Subject: subject, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	counts := []struct {
		n    int
		code string
		what string
	}{
		{report.DroppedNodes, "dropped_node", "node(s) without an id were dropped"},
		{report.DroppedEdges, "dropped_edge", "edge(s) without an id or endpoints were dropped"},
		{report.DuplicateNodes, "duplicate_node", "duplicate node id(s), the first occurrence wins"},
		{report.DuplicateEdges, "duplicate_edge", "duplicate edge id(s), the first occurrence wins"},
		{report.UnresolvedEdges, "unresolved_edge", "edge(s) point at unknown nodes and were dropped"},
	}
	for _, c := range counts {
		if c.n > 0 {
			add("", c.code, "%d %s", c.n, c.what)
		}
	}

	nodes := ch.NodeIndex()
	for _, e := range ch.Edges {
		ends := []struct {
			node   string
			handle string
			typ    domain.HandleType
		}{
			{e.Source, e.SourceHandle, domain.HandleSource},
			{e.Target, e.TargetHandle, domain.HandleTarget},
		}
		for _, end := range ends {
			check := handles.Ensure(nodes[end.node], end.handle, end.typ)
			if !check.OK {
				add(e.ID, string(check.Code), "edge %q: %s", e.ID, check.Error)
			}
		}
	}

	for _, c := range report.Collisions {
		add(c.NodeID, "collision", "port %q on node %q is shared by edges %s",
			c.HandleID, c.NodeID, strings.Join(c.EdgeIDs, ", "))
	}

	if len(problems) > 0 {
		return ch, &Error{Problems: problems}
	}
	return ch, nil
}
