// Package api exposes deer-flow over HTTP: a chat endpoint that starts a
// workflow and streams its event frames as server-sent events, a
// reconnect endpoint that replays a live or persisted stream from any
// offset, and CRUD endpoints for conversation metadata.
//
// Frames come out of the workflow manager already in SSE wire form, so
// the streaming handlers forward them verbatim; the HTTP layer never
// inspects event contents. Caller identity is pluggable via UserFunc and
// travels in the request context.
package api
