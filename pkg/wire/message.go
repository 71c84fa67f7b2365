package wire

import (
	"encoding/json"
	"fmt"
)

// Message is the generic inbound envelope. All fields are optional on the
// wire; absent fields decode to their zero values.
//
// JSON encoding:
//
//	{
//	  "cid":  "<device MAC or 'app'>",
//	  "i":    0|1,
//	  "pack": "<encrypted, base64-encoded inner payload>",
//	  "t":    "pack",
//	  "tcid": "<target MAC>",
//	  "uid":  0
//	}
type Message struct {
	Cid  string `json:"cid"`
	I    int    `json:"i"`
	Pack string `json:"pack"`
	T    string `json:"t"`
	Tcid string `json:"tcid"`
	UID  int    `json:"uid"`
}

// OutMessage is the generic outbound envelope.
type OutMessage struct {
	Cid  string `json:"cid"`
	I    int    `json:"i"`
	Pack string `json:"pack"`
	T    string `json:"t"`
	Tcid string `json:"tcid"`
	UID  int    `json:"uid"`
}

// DecodeMessage parses a raw datagram into a Message.
func DecodeMessage(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return &m, nil
}

// Encode serializes the envelope for transmission.
func (m *OutMessage) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return data, nil
}
