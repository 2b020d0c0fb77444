// Package protocol encodes and decodes the JSON messages exchanged with the PC peer.
//
// Every frame is a single JSON object with a "type" discriminator:
//   - Outbound: input, mouse, keyboard, ping, disconnect
//   - Inbound: connected, error, pong
//
// Decoding inbound frames never fails; anything unrecognised becomes Unknown.
package protocol
