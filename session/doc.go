// Package session provides core.SessionStore implementations. Crews and the
// runner depend on the core interface; the in-memory store is the default.
package session
