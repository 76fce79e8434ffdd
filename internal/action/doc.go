// Package action owns device-side procedures driven by inbound link events.
//
// Ownership boundary:
// - the Action capability (start, handle event, done)
// - the connection handshake (ConnectAction) and its bring-up timer
//
// An Action never touches the link or the session manager directly; it sends
// serialized messages through a Sender and reports through a Monitor.
package action
