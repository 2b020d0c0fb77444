// Package peer is a reference PC-side endpoint speaking the controller wire
// protocol. It assigns player slots, answers heartbeats and records the last
// input per player. It does not drive any virtual device.
package peer
