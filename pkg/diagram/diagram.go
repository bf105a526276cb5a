// Package diagram runs the full preparation pipeline over a raw diagram:
// canonicalization, port allocation and edge rules, in that order.
package diagram

import (
	"github.com/aretw0/topograph/pkg/allocator"
	"github.com/aretw0/topograph/pkg/canon"
	"github.com/aretw0/topograph/pkg/domain"
	"github.com/aretw0/topograph/pkg/rules"
)

// Report describes what preparation dropped and which ports ended up shared.
type Report struct {
	canon.Report
	Collisions []allocator.Collision `json:"collisions,omitempty"`
}

// Prepare turns a raw editor diagram into the stored form.
func Prepare(raw any) (domain.Channel, Report) {
	ch, report := canon.NormalizeChannelReport(raw)
	ch.Edges = allocator.Allocate(ch.Nodes, ch.Edges)
	ch = rules.Apply(ch)
	return ch, Report{Report: report, Collisions: allocator.Collisions(ch.Edges)}
}
