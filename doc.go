/*
Package topograph is the engine behind TV signal-chain topology diagrams.

A diagram is a channel: devices (satellites, IRDs, routers, switches, generic
and custom boxes) wired by directed edges that attach to named ports on the
node borders. The engine keeps those diagrams canonical and consistent while
an editor mutates them one entity at a time.

# Concept

Three pure stages turn loose editor payloads into stored form:

  - Canonicalization (pkg/canon) trims, coerces and deduplicates nodes and edges.
  - Allocation (pkg/allocator) assigns the closest free port to every edge end.
  - Edge rules (pkg/rules) pin Satellite to IRD links and derive auto labels.

Single-entity mutations run through one transaction each: the current state
is read, validated, updated element by element and an audit record is
appended before commit. A failing call leaves the store untouched and
returns a *domain.Error whose status is one of 400, 404, 409 or 500.

# Usage

	eng := topograph.New(
		topograph.WithStore(redis.NewFromClient(client)),
		topograph.WithLogger(logger),
	)
	defer eng.Close()

	res, err := eng.ReconnectEdge(ctx, "channel-7", "e-12", topograph.EdgePatch{
		Target:       topograph.Value("ird-2"),
		TargetHandle: topograph.Value("in-left-1"),
	})
	out := topograph.Outcome(res, err) // {ok, edge, auditId} or {ok:false, status, message}
*/
package topograph
