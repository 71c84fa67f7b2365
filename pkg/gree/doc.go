// Package gree holds the device registry and the session orchestrator.
//
// The registry (State) maps device MACs to the metadata learned from the
// last scan, the per-device session key obtained by binding, and a
// timestamped tree of the variable values most recently reported by each
// device. Aliases give devices human-friendly names.
//
// The orchestrator (Gree) sits on top of a low-level protocol client and
// decides when the network needs to be rescanned, binds devices on first
// use, and retries a failed operation once after forcing a rescan. Scan
// freshness is governed by two ages: a scan older than MaxScanAge is
// always refreshed, and a forced refresh is honored only once the scan is
// older than MinScanAge, so a burst of failing operations cannot flood
// the network with broadcasts.
package gree
