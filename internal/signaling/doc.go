// Package signaling implements the relay core: a registry of connected
// peers, an index of live streams, a router that forwards session
// negotiation between them, and a liveness sweep that evicts unresponsive
// connections.
//
// The relay never touches media. It only moves offers, answers and ICE
// candidates between peer identifiers, and tells multi-viewers which streams
// currently exist.
package signaling
