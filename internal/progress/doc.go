// Package progress produces the periodic counter values streamed to clients.
//
// # Emitter
//
// A [Task] ticks on a fixed interval, draws the next value from a [Counter] and pushes it to a [Sink].
// It stops for one of four reasons, recorded as its terminal [State]:
//
//   - [Cancelled] : [Task.Cancel] was called or the parent context ended
//   - [Failed] : the value was a multiple of the failure period or [Sink.Send] returned an error,
//     including a connection the peer already closed
//   - [Completed] : the configured number of values was sent
//
// On failure the task ends the sink with [Sink.CompleteWithError]; on completion it calls [Sink.Complete].
// Cancellation signals nothing on the sink since whoever cancelled owns the connection.
//
// # Counters
//
// [AtomicCounter] starts at 1 and is safe for concurrent use. [NewCounterSource] decides whether each
// session gets its own counter or all sessions share a single one.
package progress
