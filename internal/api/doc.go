// Package api exposes the chat service over HTTP.
//
// Routes:
//   - POST   /chat/new                - create a session
//   - GET    /chat/all                - list the caller's sessions
//   - GET    /chat/stats/cache        - message cache statistics
//   - GET    /chat/{chatId}           - one session
//   - GET    /chat/{chatId}/messages  - paginated messages (?page&limit)
//   - POST   /chat/{chatId}/message   - one batch conversation turn
//   - POST   /chat/{chatId}/stream    - one streaming turn (SSE)
//   - DELETE /chat/{chatId}           - delete a session
//   - GET    /health                  - liveness probe
//   - GET    /ready                   - readiness probe (pings the database)
//
// The caller's identity arrives in the X-User-ID header; authentication
// itself is out of scope and expected from an upstream proxy.
package api
