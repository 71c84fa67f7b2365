// Package protolog captures UDP protocol traffic as structured events.
//
// The transport emits one event per datagram sent, received or discarded,
// tagged with the exchange correlation ID. Events can be mirrored to the
// console via SlogAdapter, persisted to a compact CBOR stream via
// FileLogger, or fanned out with MultiLogger. Reader replays a capture
// file with optional filtering, which is the primary debugging tool for
// flaky units on a noisy network.
package protolog
