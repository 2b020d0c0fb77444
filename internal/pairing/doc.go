// Package pairing turns the text scanned from the PC's QR code into a connection target.
package pairing
