// Package message owns the envelope model: the 24-byte header, the closed
// command set and the payload variant dispatched by each command.
//
// Ownership boundary:
// - command tokens and header layout
// - payload encode/decode keyed by an already-decoded command
// - derived length/checksum on construction
//
// Framing over partial input lives in package frame.
package message
