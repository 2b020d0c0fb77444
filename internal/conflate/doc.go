// Package conflate provides a single-slot mailbox where a new value replaces
// any value that has not been taken yet.
//
// It sits between the on-screen controls and the network sender: producers
// never block, memory stays bounded, and the consumer always sees the most
// recent state.
package conflate
