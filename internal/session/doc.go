// Package session provides conversation persistence with PostgreSQL.
//
// A session is a single ongoing conversation owned by a user; it owns an
// ordered list of messages (cascade delete). Messages are immutable once
// persisted and totally ordered by creation time within a session.
//
// Key operations:
//
//   - Session lifecycle: [Store.CreateSession], [Store.Session], [Store.Sessions], [Store.DeleteSession]
//   - Message persistence: [Store.AppendMessage], [Store.Messages], [Store.History]
//
// # Concurrency
//
// Store is safe for concurrent use. All state lives in PostgreSQL; no shared
// Go-side state exists. Concurrent appends to the same session are not
// serialized by this layer; ordering is whatever created_at timestamps the
// database assigns.
package session
