// Package goldenpath runs ordered, named steps across external systems with
// per-step circuit breaking, bounded retries with exponential backoff, and
// optional best-effort fallbacks on terminal failure.
//
// Pipelines are declared once via NewBuilder and are safe for concurrent use.
// Circuit breakers are shared process-wide by step name, so a failing
// collaborator trips the breaker for every pipeline that calls it.
package goldenpath
