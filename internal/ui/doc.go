// Package ui implements the watch terminal interface using bubbletea's Elm architecture.
//
// The TUI opens one progress stream against a running server and follows it:
//  1. [StreamView] : live counter values and the task state as they arrive
//  2. [SessionsView] : every live session on the server, with cancellation
//  3. [ResultView] : how the stream ended, with an option to open a new one
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Stream events flow through the channel returned by [services.Service.Subscribe]; each read is a tea.Cmd so the UI never blocks.
//
// Keyboard bindings (c, s, r, esc, q) come with contextual help displayed via charmbracelet/bubbles/help.
package ui
