/*
Package observability provides Prometheus instrumentation for the topograph engine.

It counts mutations by operation and outcome, times them, tracks how store
transactions end and records what canonicalization had to discard. All
collectors register on an injectable prometheus.Registerer so tests and
embedders can keep them off the global registry.
*/
package observability
