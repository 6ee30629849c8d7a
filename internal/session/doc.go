// Package session ties push connections to the emitter tasks feeding them.
//
// # Lifecycle
//
// [Manager.Open] creates an id, dials the connection, registers the pair in the [Registry], hooks the
// connection's close callback to [Manager.Teardown] and starts the task. From then on every way a
// session can end converges on Teardown:
//
//   - the task fails or completes and ends the connection, which fires the close callback
//   - the peer disconnects, which fires the close callback
//   - an operator cancels the session by id
//   - the session outlives the configured max duration
//   - the server shuts down
//
// Teardown removes the entry with [Registry.Take], so only the first caller for an id does any work and
// every later call is a no-op. The outcome is recorded once the task goroutine has returned.
package session
