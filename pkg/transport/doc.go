// Package transport owns the UDP socket used to talk to Gree units.
//
// A Client binds one socket and runs a background reader goroutine that
// decodes every inbound datagram into a (sender, message) pair and feeds
// a queue. Foreground operations send a request and then pull from the
// queue, discarding datagrams from other senders, until a matching reply
// arrives or the receive timeout fires. The queue is drained before each
// operation so a delayed reply from an earlier, already-completed
// exchange can never be consumed by a later one.
//
// Scan is the broadcast variant: it keeps collecting replies until either
// the requested device count is reached or a receive timeout occurs,
// which is the normal "no more devices" termination rather than an error.
package transport
