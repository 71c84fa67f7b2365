package gree

import (
	"errors"
	"net"

	"github.com/vvvy/gree-go/pkg/transport"
)

var (
	// ErrNotFound indicates the target is neither a known MAC nor an
	// alias of one, even after a rescan.
	ErrNotFound = errors.New("device not found")

	// ErrNotBound indicates a device has no session key. Seen when a
	// device answers the bind exchange without issuing a key.
	ErrNotBound = errors.New("device not bound")

	// ErrTimeout is the transport receive timeout.
	ErrTimeout = transport.ErrTimeout
)

// IsNotFound reports whether err means the target device is unknown.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTimeout reports whether err is a receive timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsTransient reports whether err is worth retrying later: a receive
// timeout or a network-level failure, as opposed to a protocol or
// validation error.
func IsTransient(err error) bool {
	if errors.Is(err, ErrTimeout) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
