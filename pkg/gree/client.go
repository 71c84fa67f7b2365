package gree

import (
	"context"
	"fmt"
	"net"

	"github.com/vvvy/gree-go/pkg/transport"
	"github.com/vvvy/gree-go/pkg/wire"
)

// Exchanger is the transport surface the protocol client needs.
// Implemented by transport.Client.
type Exchanger interface {
	Exchange(ctx context.Context, ip net.IP, out *wire.OutMessage) (*wire.Message, error)
	Scan(ctx context.Context, bcast net.IP, maxCount int) ([]transport.ScanResult, error)
}

// Client is the low-level protocol client: one method per protocol
// exchange, addressing devices by explicit IP, MAC and key. The
// orchestrator builds on it; tools that manage their own device list can
// use it directly.
type Client struct {
	ex Exchanger
}

// NewClient creates a Client over the given transport.
func NewClient(ex Exchanger) *Client {
	return &Client{ex: ex}
}

// Scan broadcasts discovery and returns the devices that answered.
func (c *Client) Scan(ctx context.Context, bcast net.IP, maxCount int) ([]transport.ScanResult, error) {
	return c.ex.Scan(ctx, bcast, maxCount)
}

// Bind performs the key exchange and returns the session key pack.
func (c *Client) Bind(ctx context.Context, ip net.IP, mac string) (*wire.BindResponsePack, error) {
	out, err := wire.BindRequest(mac)
	if err != nil {
		return nil, err
	}
	msg, err := c.ex.Exchange(ctx, ip, out)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", mac, err)
	}
	pack, err := wire.DecodeBindPack(msg)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", mac, err)
	}
	if pack.T != "bindok" {
		return nil, fmt.Errorf("bind %s: device answered %q", mac, pack.T)
	}
	return pack, nil
}

// Status reads the named variables and returns the response pack.
// Cols and Dat in the pack are guaranteed to have equal length.
func (c *Client) Status(ctx context.Context, ip net.IP, mac, key string, names []string) (*wire.StatusResponsePack, error) {
	out, err := wire.StatusRequest(mac, key, names)
	if err != nil {
		return nil, err
	}
	msg, err := c.ex.Exchange(ctx, ip, out)
	if err != nil {
		return nil, fmt.Errorf("status %s: %w", mac, err)
	}
	pack, err := wire.DecodeStatusPack(msg, key)
	if err != nil {
		return nil, fmt.Errorf("status %s: %w", mac, err)
	}
	if len(pack.Cols) != len(pack.Dat) {
		return nil, fmt.Errorf("status %s: %d cols but %d values",
			mac, len(pack.Cols), len(pack.Dat))
	}
	return pack, nil
}

// Command writes the positionally paired variables and returns the
// response pack. Opt and P in the pack are guaranteed to have equal
// length.
func (c *Client) Command(ctx context.Context, ip net.IP, mac, key string, names []string, values []any) (*wire.CommandResponsePack, error) {
	out, err := wire.CommandRequest(mac, key, names, values)
	if err != nil {
		return nil, err
	}
	msg, err := c.ex.Exchange(ctx, ip, out)
	if err != nil {
		return nil, fmt.Errorf("command %s: %w", mac, err)
	}
	pack, err := wire.DecodeCommandPack(msg, key)
	if err != nil {
		return nil, fmt.Errorf("command %s: %w", mac, err)
	}
	if len(pack.Opt) != len(pack.P) {
		return nil, fmt.Errorf("command %s: %d names but %d values",
			mac, len(pack.Opt), len(pack.P))
	}
	return pack, nil
}

// ProtocolClient is the client surface the orchestrator needs.
// Implemented by Client.
type ProtocolClient interface {
	Scan(ctx context.Context, bcast net.IP, maxCount int) ([]transport.ScanResult, error)
	Bind(ctx context.Context, ip net.IP, mac string) (*wire.BindResponsePack, error)
	Status(ctx context.Context, ip net.IP, mac, key string, names []string) (*wire.StatusResponsePack, error)
	Command(ctx context.Context, ip net.IP, mac, key string, names []string, values []any) (*wire.CommandResponsePack, error)
}

// Compile-time interface satisfaction checks.
var (
	_ ProtocolClient = (*Client)(nil)
)
