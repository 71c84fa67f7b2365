// Package wire defines the Gree UDP message shapes and builds the four
// request/response pairs of the protocol: scan, bind, status and command.
//
// Every message except the scan request travels inside a generic JSON
// envelope whose "pack" field carries the codec-encrypted inner payload.
// The scan request is the fixed literal {"t":"scan"} sent as a plain
// broadcast datagram.
package wire
