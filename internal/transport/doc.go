// Package transport implements the bidirectional message transport.
//
// The wire format is one JSON frame per WebSocket text message:
//   - {"type":"event","event":...,"payload":...} for named events
//   - {"type":"event",...,"ack":id} when the emitter wants an acknowledgement
//   - {"type":"ack","id":...,"payload":...,"error":...} for the answer
//
// A Transport is one live connection. The Connection Manager owns it
// exclusively and replaces it wholesale on reconnect; nothing outside the
// manager should hold one across a reconnect.
package transport
