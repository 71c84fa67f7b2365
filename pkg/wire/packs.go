package wire

import (
	"encoding/json"
	"fmt"

	"github.com/vvvy/gree-go/pkg/codec"
)

// scanMessage is the only unencrypted, unwrapped request of the protocol.
var scanMessage = []byte(`{"t":"scan"}`)

// ScanRequest returns the broadcast discovery datagram.
func ScanRequest() []byte {
	return scanMessage
}

// ScanResponsePack is the scan reply payload, encrypted with the generic
// key. The MAC is the device's stable protocol identity; the remaining
// fields are vendor-reported metadata.
type ScanResponsePack struct {
	T       string `json:"t"`
	Cid     string `json:"cid"`
	Bc      string `json:"bc"`
	Brand   string `json:"brand"`
	Catalog string `json:"catalog"`
	Mac     string `json:"mac"`
	Mid     string `json:"mid"`
	Model   string `json:"model"`
	Name    string `json:"name"`
	Lock    int    `json:"lock"`
	Series  string `json:"series"`
	Vender  string `json:"vender"`
	Ver     string `json:"ver"`
}

// BindResponsePack carries the per-device session key issued at bind.
type BindResponsePack struct {
	T   string `json:"t"`
	Mac string `json:"mac"`
	Key string `json:"key"`
	R   int    `json:"r"`
}

// StatusResponsePack pairs Cols and Dat positionally.
type StatusResponsePack struct {
	T    string `json:"t"`
	Mac  string `json:"mac"`
	R    int    `json:"r"`
	Cols []string `json:"cols"`
	Dat  []any    `json:"dat"`
}

// CommandResponsePack echoes the request in Opt/P; Val carries the values
// the device reports as applied.
type CommandResponsePack struct {
	T   string   `json:"t"`
	Mac string   `json:"mac"`
	R   int      `json:"r"`
	Opt []string `json:"opt"`
	P   []any    `json:"p"`
	Val []any    `json:"val"`
}

type bindRequestPack struct {
	Mac string `json:"mac"`
	T   string `json:"t"`
	UID int    `json:"uid"`
}

type statusRequestPack struct {
	Cols []string `json:"cols"`
	Mac  string   `json:"mac"`
	T    string   `json:"t"`
}

type commandRequestPack struct {
	Opt []string `json:"opt"`
	P   []any    `json:"p"`
	T   string   `json:"t"`
}

// BindRequest builds the bind envelope for the given MAC, encrypted with
// the generic key.
func BindRequest(mac string) (*OutMessage, error) {
	return buildRequest(mac, 1, codec.GenericKey, bindRequestPack{
		Mac: mac,
		T:   "bind",
		UID: 0,
	})
}

// StatusRequest builds a variable read envelope, encrypted with the
// device's session key.
func StatusRequest(mac, key string, cols []string) (*OutMessage, error) {
	return buildRequest(mac, 0, key, statusRequestPack{
		Cols: cols,
		Mac:  mac,
		T:    "status",
	})
}

// CommandRequest builds a variable write envelope, encrypted with the
// device's session key. Names and values are positionally paired.
func CommandRequest(mac, key string, names []string, values []any) (*OutMessage, error) {
	return buildRequest(mac, 0, key, commandRequestPack{
		Opt: names,
		P:   values,
		T:   "cmd",
	})
}

func buildRequest(mac string, i int, key string, inner any) (*OutMessage, error) {
	payload, err := json.Marshal(inner)
	if err != nil {
		return nil, fmt.Errorf("encode pack: %w", err)
	}
	pack, err := codec.Encrypt(payload, []byte(key))
	if err != nil {
		return nil, err
	}
	return &OutMessage{
		Cid:  "app",
		I:    i,
		Pack: pack,
		T:    "pack",
		Tcid: mac,
		UID:  0,
	}, nil
}

// DecodePack decrypts a message's pack field with the given key and
// parses it into the typed response pack T.
func DecodePack[T any](m *Message, key string) (*T, error) {
	payload, err := codec.Decrypt(m.Pack, []byte(key))
	if err != nil {
		return nil, err
	}
	var pack T
	if err := json.Unmarshal(payload, &pack); err != nil {
		return nil, fmt.Errorf("decode pack: %w", err)
	}
	return &pack, nil
}

// DecodeScanPack decrypts a scan reply with the generic key.
func DecodeScanPack(m *Message) (*ScanResponsePack, error) {
	return DecodePack[ScanResponsePack](m, codec.GenericKey)
}

// DecodeBindPack decrypts a bind reply with the generic key.
func DecodeBindPack(m *Message) (*BindResponsePack, error) {
	return DecodePack[BindResponsePack](m, codec.GenericKey)
}

// DecodeStatusPack decrypts a status reply with the device session key.
func DecodeStatusPack(m *Message, key string) (*StatusResponsePack, error) {
	return DecodePack[StatusResponsePack](m, key)
}

// DecodeCommandPack decrypts a command reply with the device session key.
func DecodeCommandPack(m *Message, key string) (*CommandResponsePack, error) {
	return DecodePack[CommandResponsePack](m, key)
}
