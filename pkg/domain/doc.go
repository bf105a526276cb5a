/*
Package domain contains the core domain models of a signal topology diagram.

It defines the channel aggregate (nodes and edges), the port (handle) model used to
anchor edges, the audit record written for every single-entity mutation, and the
error taxonomy surfaced to callers. This package is kept pure and free of external
dependencies like I/O or persistence, following Hexagonal Architecture principles.

# Key Entities

  - Channel: The root aggregate, one diagram per signal channel.
  - Node: A device in the topology (Router, Satellite, Ird, Switch, Default, Custom).
  - Edge: A signal link between two nodes, anchored on ports.
  - Port: A named attachment point with a direction and a side.
  - AuditRecord: The immutable before/after trail of a mutation.
*/
package domain
