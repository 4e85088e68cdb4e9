// Package channel implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns the one live transport to the desk event server
//   - Serializes connect/disconnect and reconnect attempts
//   - Retries failed connections on a fixed interval up to a budget
//   - Re-attaches registered subscriptions after every reconnect
//   - Correlates acknowledged emits with exactly-once settlement
package channel
