// Package models defines the persisted entities of the pulse server.
//
// Live streaming state is never persisted. The only entity is [SessionRecord], the journal entry written
// once a session has ended, describing how long it ran, how many values it sent and why it stopped.
//
// Entities implement [Model], and the [Repository] interface defines the data access operations the
// repositories package provides for them.
package models
