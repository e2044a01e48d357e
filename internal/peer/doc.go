// Package peer drives one outbound connection to a Bitcoin node: dial with
// retry, the version/verack handshake, ping replies and a read loop that
// hands every decoded message to a caller-supplied handler.
//
// A Session has one reader. Send may be called from any goroutine.
package peer
