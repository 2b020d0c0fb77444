// Package input defines the gamepad snapshot produced by the on-screen controls
// and the small pure transforms applied to it before it is sent.
//
// Conventions:
//   - Triggers are in [0, 1], stick axes in [-1, 1]
//   - Snapshots are values; producers build a new one for every input event
package input
