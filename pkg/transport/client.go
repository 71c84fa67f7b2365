package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vvvy/gree-go/pkg/protolog"
	"github.com/vvvy/gree-go/pkg/wire"
)

// Defaults for Config fields left at their zero value.
const (
	// DefaultPort is the UDP port Gree units listen on.
	DefaultPort = 7000

	// DefaultLocalAddr binds the client one port above the device port.
	DefaultLocalAddr = ":7001"

	// DefaultRecvTimeout is the per-receive timeout.
	DefaultRecvTimeout = 3 * time.Second

	// DefaultBufferSize fits the largest envelope units send.
	DefaultBufferSize = 2048

	// DefaultQueueDepth is the inbound datagram queue capacity.
	DefaultQueueDepth = 32
)

// Transport errors.
var (
	ErrTimeout = errors.New("receive timed out")
	ErrClosed  = errors.New("client is closed")
)

// Config configures a Client.
type Config struct {
	// LocalAddr is the local bind address (default ":7001").
	LocalAddr string

	// Port is the device port datagrams are sent to (default 7000).
	Port int

	// RecvTimeout is the receive timeout per exchange step (default 3s).
	RecvTimeout time.Duration

	// BufferSize is the receive buffer size (default 2048).
	BufferSize int

	// QueueDepth is the inbound queue capacity (default 32).
	QueueDepth int

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// ProtocolLogger receives one event per datagram sent, received or
	// discarded. If nil, capture is disabled.
	ProtocolLogger protolog.Logger
}

// Datagram is an inbound message tagged with its sender.
type Datagram struct {
	Addr *net.UDPAddr
	Msg  *wire.Message
}

// ScanResult is one device's reply to a broadcast scan.
type ScanResult struct {
	IP   net.IP
	Msg  *wire.Message
	Pack *wire.ScanResponsePack
}

// Client owns a UDP socket bound to the configured local address.
// A background goroutine drains the socket into the queue; Exchange and
// Scan consume from the queue. A Client supports one logical operation
// in flight at a time; callers needing concurrency serialize externally.
type Client struct {
	conn   *net.UDPConn
	cfg    Config
	queue  chan Datagram
	done   chan struct{}
	logger *slog.Logger
	plog   protolog.Logger

	closeOnce sync.Once
}

// NewClient binds the socket and starts the background reader.
func NewClient(cfg Config) (*Client, error) {
	if cfg.LocalAddr == "" {
		cfg.LocalAddr = DefaultLocalAddr
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.RecvTimeout == 0 {
		cfg.RecvTimeout = DefaultRecvTimeout
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.QueueDepth == 0 {
		cfg.QueueDepth = DefaultQueueDepth
	}
	if cfg.ProtocolLogger == nil {
		cfg.ProtocolLogger = protolog.NoopLogger{}
	}

	laddr, err := net.ResolveUDPAddr("udp4", cfg.LocalAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve local address: %w", err)
	}
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return nil, fmt.Errorf("bind: %w", err)
	}

	c := &Client{
		conn:   conn,
		cfg:    cfg,
		queue:  make(chan Datagram, cfg.QueueDepth),
		done:   make(chan struct{}),
		logger: cfg.Logger,
		plog:   cfg.ProtocolLogger,
	}
	go c.readLoop()

	if c.logger != nil {
		c.logger.Debug("transport bound", "laddr", conn.LocalAddr())
	}
	return c, nil
}

// LocalAddr returns the bound local address.
func (c *Client) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Close stops the reader and releases the socket.
// It is safe to call Close multiple times.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// readLoop decodes inbound datagrams and feeds the queue.
func (c *Client) readLoop() {
	buf := make([]byte, c.cfg.BufferSize)
	for {
		n, addr, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			c.capture(protolog.Event{
				Direction: protolog.DirectionIn,
				Kind:      protolog.KindError,
				Err:       err.Error(),
			})
			continue
		}

		msg, err := wire.DecodeMessage(buf[:n])
		if err != nil {
			if c.logger != nil {
				c.logger.Debug("dropping undecodable datagram", "from", addr, "error", err)
			}
			payload, truncated := protolog.CapturePayload(buf[:n])
			c.capture(protolog.Event{
				Direction:  protolog.DirectionIn,
				Kind:       protolog.KindDiscard,
				RemoteAddr: addr.String(),
				Size:       n,
				Payload:    payload,
				Truncated:  truncated,
				Err:        err.Error(),
			})
			continue
		}

		select {
		case c.queue <- Datagram{Addr: addr, Msg: msg}:
		default:
			// Queue full. Dropping is safe: the exchange that should
			// have consumed this datagram will time out and retry.
			if c.logger != nil {
				c.logger.Debug("inbound queue full, dropping datagram", "from", addr)
			}
		}
	}
}

// Exchange sends the request to ip and receives until a datagram from ip
// arrives or the receive timeout fires. Datagrams from other senders are
// discarded; the timeout restarts after each discarded datagram, so the
// worst case wait is one timeout per noisy sender.
func (c *Client) Exchange(ctx context.Context, ip net.IP, out *wire.OutMessage) (*wire.Message, error) {
	exID := uuid.NewString()
	c.drain(exID)

	data, err := out.Encode()
	if err != nil {
		return nil, err
	}

	peer := &net.UDPAddr{IP: ip, Port: c.cfg.Port}
	if _, err := c.conn.WriteToUDP(data, peer); err != nil {
		return nil, fmt.Errorf("send to %s: %w", peer, err)
	}
	payload, truncated := protolog.CapturePayload(data)
	c.capture(protolog.Event{
		ExchangeID: exID,
		Direction:  protolog.DirectionOut,
		Kind:       protolog.KindRequest,
		RemoteAddr: peer.String(),
		Size:       len(data),
		Payload:    payload,
		Truncated:  truncated,
	})

	for {
		d, err := c.receive(ctx)
		if err != nil {
			return nil, err
		}
		if !d.Addr.IP.Equal(ip) {
			c.capture(protolog.Event{
				ExchangeID: exID,
				Direction:  protolog.DirectionIn,
				Kind:       protolog.KindDiscard,
				RemoteAddr: d.Addr.String(),
			})
			continue
		}
		c.capture(protolog.Event{
			ExchangeID: exID,
			Direction:  protolog.DirectionIn,
			Kind:       protolog.KindReply,
			RemoteAddr: d.Addr.String(),
		})
		return d.Msg, nil
	}
}

// Scan broadcasts the discovery request and collects up to maxCount
// replies, each decoded with the generic key. A receive timeout ends the
// collection normally; scan errors only on send or decode failures.
func (c *Client) Scan(ctx context.Context, bcast net.IP, maxCount int) ([]ScanResult, error) {
	exID := uuid.NewString()
	c.drain(exID)

	data := wire.ScanRequest()
	peer := &net.UDPAddr{IP: bcast, Port: c.cfg.Port}
	if _, err := c.conn.WriteToUDP(data, peer); err != nil {
		return nil, fmt.Errorf("broadcast to %s: %w", peer, err)
	}
	c.capture(protolog.Event{
		ExchangeID: exID,
		Direction:  protolog.DirectionOut,
		Kind:       protolog.KindScanRequest,
		RemoteAddr: peer.String(),
		Size:       len(data),
		Payload:    data,
	})

	var results []ScanResult
	for len(results) < maxCount {
		d, err := c.receive(ctx)
		if err != nil {
			if errors.Is(err, ErrTimeout) {
				break // no more devices
			}
			return nil, err
		}

		pack, err := wire.DecodeScanPack(d.Msg)
		if err != nil {
			return nil, fmt.Errorf("scan reply from %s: %w", d.Addr, err)
		}
		c.capture(protolog.Event{
			ExchangeID: exID,
			Direction:  protolog.DirectionIn,
			Kind:       protolog.KindReply,
			RemoteAddr: d.Addr.String(),
		})
		results = append(results, ScanResult{IP: d.Addr.IP, Msg: d.Msg, Pack: pack})
	}
	return results, nil
}

// receive pulls one datagram from the queue with the configured timeout.
func (c *Client) receive(ctx context.Context) (Datagram, error) {
	timer := time.NewTimer(c.cfg.RecvTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return Datagram{}, ctx.Err()
	case <-c.done:
		return Datagram{}, ErrClosed
	case <-timer.C:
		return Datagram{}, fmt.Errorf("%w after %s", ErrTimeout, c.cfg.RecvTimeout)
	case d := <-c.queue:
		return d, nil
	}
}

// drain removes datagrams queued before the current operation started.
// Without this, a delayed duplicate reply from a previous exchange could
// be matched to an unrelated later request from the same device.
func (c *Client) drain(exID string) {
	for {
		select {
		case d := <-c.queue:
			c.capture(protolog.Event{
				ExchangeID: exID,
				Direction:  protolog.DirectionIn,
				Kind:       protolog.KindDiscard,
				RemoteAddr: d.Addr.String(),
			})
		default:
			return
		}
	}
}

func (c *Client) capture(e protolog.Event) {
	e.Timestamp = time.Now()
	c.plog.Log(e)
}
