// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns at most one WebSocket session to the PC peer
//   - Publishes a single observable State (disconnected, connecting, connected,
//     reconnecting, error)
//   - Retries failed or dropped sessions with exponential backoff unless the
//     user disconnected on purpose
//   - Streams controller snapshots through a conflating slot so only the
//     latest input is ever sent
package connection
