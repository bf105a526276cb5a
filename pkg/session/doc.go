/*
Package session serializes writers to a channel.

A Manager hands out transactions scoped to one channel while holding a
process-local lock for it, and optionally a distributed lock so replicas
sharing a store take turns. Locks are reference counted and released as soon
as no caller waits on them.
*/
package session
