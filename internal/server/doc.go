// Package server provides the HTTP surface of pulse: push transports, routing, middleware and status reporting.
//
// # Push Transports
//
// [SSEConn] and [WSConn] implement the session connection contract over Server-Sent Events and WebSockets.
// Both queue frames in a bounded buffer that a single serving goroutine (the request handler) drains:
//
//   - Send fails with [ErrSlowClient] when the queue is full and [ErrConnectionClosed] once the connection has ended
//   - Complete and CompleteWithError end the stream; the first call wins
//   - close callbacks fire once, after the serving loop returns, whatever ended it
//
// An SSE stream opens with an "event:session" frame carrying the session id and ends an errored stream
// with an "event:error" frame. A WebSocket stream opens with {"session": id} and ends with close code
// 1000, or 1011 plus the error text.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] added first runs outermost.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns internally and is itself a [Handler],
// so routers can be mounted inside one another.
//
// # Routes
//
//   - GET /sse, GET /ws : open a session (admission rate limited)
//   - GET /sessions, GET /sessions/{id} : inspect live sessions
//   - DELETE /sessions/{id} : cancel a live session
//   - GET /status : [ReportingStatus] as JSON
//   - GET /metrics : Prometheus exposition
//   - GET / : the browser client page
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
