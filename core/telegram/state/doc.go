// Package state keeps the in-memory dialog of every user: which flow is
// running, the current step and the fields captured so far. It knows nothing
// about the flows themselves.
package state
