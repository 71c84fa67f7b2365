package protolog

import (
	"time"
)

// Event represents one captured datagram or transport error.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ExchangeID correlates the datagrams of one exchange (UUID).
	// Empty for datagrams outside any exchange.
	ExchangeID string `cbor:"2,keyasint,omitempty"`

	// Direction indicates datagram flow.
	Direction Direction `cbor:"3,keyasint"`

	// Kind classifies the datagram.
	Kind Kind `cbor:"4,keyasint"`

	// RemoteAddr is the peer address (IP:port), or the broadcast target
	// for scan requests.
	RemoteAddr string `cbor:"5,keyasint,omitempty"`

	// Size is the datagram size in bytes.
	Size int `cbor:"6,keyasint,omitempty"`

	// Payload holds the raw datagram bytes, possibly truncated.
	Payload []byte `cbor:"7,keyasint,omitempty"`

	// Truncated indicates the payload was cut at the capture limit.
	Truncated bool `cbor:"8,keyasint,omitempty"`

	// Err carries the error text for ErrorKind events.
	Err string `cbor:"9,keyasint,omitempty"`
}

// Direction indicates the direction of datagram flow.
type Direction uint8

const (
	// DirectionIn indicates an inbound datagram.
	DirectionIn Direction = 0
	// DirectionOut indicates an outbound datagram.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Kind classifies a captured event.
type Kind uint8

const (
	// KindScanRequest is the broadcast discovery datagram.
	KindScanRequest Kind = 0

	// KindRequest is a unicast envelope sent to a device.
	KindRequest Kind = 1

	// KindReply is an inbound datagram consumed by an exchange or scan.
	KindReply Kind = 2

	// KindDiscard is an inbound datagram dropped by the sender filter or
	// the pre-exchange queue drain.
	KindDiscard Kind = 3

	// KindError is a transport-level failure.
	KindError Kind = 4
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindScanRequest:
		return "SCAN"
	case KindRequest:
		return "REQUEST"
	case KindReply:
		return "REPLY"
	case KindDiscard:
		return "DISCARD"
	case KindError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MaxPayloadCapture caps the payload bytes stored per event.
const MaxPayloadCapture = 1024

// CapturePayload trims data for inclusion in an event, flagging
// truncation.
func CapturePayload(data []byte) ([]byte, bool) {
	if len(data) <= MaxPayloadCapture {
		out := make([]byte, len(data))
		copy(out, data)
		return out, false
	}
	out := make([]byte, MaxPayloadCapture)
	copy(out, data)
	return out, true
}
