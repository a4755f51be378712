// Package chat orchestrates conversation turns.
//
// A turn persists the user's message, trims the session history to a token
// budget, calls the completion provider (batch or streaming), persists the
// assistant's reply, and invalidates the session's message cache. The
// paginated message read goes through the cache first and falls back to the
// store.
//
// # Concurrency
//
// Service is stateless and safe for concurrent use. Concurrent turns on the
// same session are not serialized; appends may interleave, and cache
// invalidation is last-write-wins per session, which can evict more than
// strictly necessary but never leaves a stale entry behind.
package chat
