// Package services implements a client for a running pulse server.
//
// # Service Interface
//
// [Service] covers everything the CLI and the watch TUI need from a server:
// status, the live session list, cancellation and progress streams.
// [APIService] implements it over HTTP.
//
// # Streams
//
// [APIService.Subscribe] opens a stream over Server-Sent Events or a WebSocket
// and decodes it into [StreamEvent] values:
//   - [EventSession] : first event, carries the server-assigned session id
//   - [EventValue] : one per emitted counter value
//   - [EventEnd] : last event; Err is nil on normal completion
//
// A failed stream ends with an error wrapping [shared.ErrStreamFailed] whose
// text is the failure the server reported. Cancelling the context closes the
// channel without an [EventEnd].
//
// # Error Handling
//
// Requests return typed errors from the shared package:
//   - [shared.ErrAPIRequest] : transport failure or unexpected status
//   - [shared.ErrSessionNotFound] : unknown session id (404)
//   - [shared.ErrServiceUnavailable] : server is shutting down (503)
package services
