// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Maintains one authenticated WebSocket connection to the event endpoint
//   - Sends the current access token as an ACCESSTOKEN cookie on every attempt
//   - Retries failed attempts with linear backoff: at most 2 attempts for the
//     initial connection, effectively unbounded after a connection was lost
//   - Reconnects on involuntary close or on request (authentication_failed)
//   - Forwards inbound messages, in order, to the Message Router
package connection
