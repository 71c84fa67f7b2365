// Package vars enumerates the Gree protocol variables and implements the
// Bag used to stage reads and writes against a device.
//
// Every variable has a declared value domain (on/off bit, small integer
// enum, or free-form string) checked before any network I/O. A Bag slot
// tracks a pending-read flag (set until the first network read populates
// it) and a pending-write flag (set by a local write, cleared when the
// device confirms).
package vars
