package transport

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vvvy/gree-go/pkg/codec"
	"github.com/vvvy/gree-go/pkg/wire"
)

// fakeDevice is a UDP listener standing in for an air conditioner.
type fakeDevice struct {
	t    *testing.T
	conn *net.UDPConn
}

func newFakeDevice(t *testing.T, addr string) *fakeDevice {
	t.Helper()
	laddr, err := net.ResolveUDPAddr("udp4", addr)
	require.NoError(t, err)
	conn, err := net.ListenUDP("udp4", laddr)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &fakeDevice{t: t, conn: conn}
}

func (d *fakeDevice) port() int {
	return d.conn.LocalAddr().(*net.UDPAddr).Port
}

// awaitRequest blocks until one datagram arrives and returns the sender.
func (d *fakeDevice) awaitRequest() *net.UDPAddr {
	d.t.Helper()
	buf := make([]byte, 2048)
	d.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, addr, err := d.conn.ReadFromUDP(buf)
	require.NoError(d.t, err)
	return addr
}

func (d *fakeDevice) send(to *net.UDPAddr, payload []byte) {
	d.t.Helper()
	_, err := d.conn.WriteToUDP(payload, to)
	require.NoError(d.t, err)
}

// envelope builds a reply datagram at the wire level.
func envelope(t *testing.T, cid, pack string) []byte {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"t":    "pack",
		"i":    0,
		"cid":  cid,
		"tcid": "app",
		"uid":  0,
		"pack": pack,
	})
	require.NoError(t, err)
	return data
}

// scanReply builds a scan response envelope encrypted with the generic
// key, as a real device would.
func scanReply(t *testing.T, mac string) []byte {
	t.Helper()
	inner, err := json.Marshal(wire.ScanResponsePack{
		T:     "dev",
		Mac:   mac,
		Name:  "bedroom",
		Brand: "gree",
	})
	require.NoError(t, err)
	pack, err := codec.Encrypt(inner, []byte(codec.GenericKey))
	require.NoError(t, err)
	return envelope(t, mac, pack)
}

func newTestClient(t *testing.T, port int, recvTimeout time.Duration) *Client {
	t.Helper()
	c, err := NewClient(Config{
		LocalAddr:   "127.0.0.1:0",
		Port:        port,
		RecvTimeout: recvTimeout,
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestExchangeRoundTrip(t *testing.T) {
	dev := newFakeDevice(t, "127.0.0.1:0")
	c := newTestClient(t, dev.port(), 2*time.Second)

	go func() {
		from := dev.awaitRequest()
		dev.send(from, envelope(t, "f4911e000000", "reply"))
	}()

	out, err := wire.BindRequest("f4911e000000")
	require.NoError(t, err)

	msg, err := c.Exchange(context.Background(), net.IPv4(127, 0, 0, 1), out)
	require.NoError(t, err)
	require.Equal(t, "f4911e000000", msg.Cid)
	require.Equal(t, "reply", msg.Pack)
}

func TestExchangeFiltersOtherSenders(t *testing.T) {
	dev := newFakeDevice(t, "127.0.0.1:0")
	stray := newFakeDevice(t, "127.0.0.2:0")
	c := newTestClient(t, dev.port(), 2*time.Second)

	clientAddr := c.LocalAddr().(*net.UDPAddr)
	target := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: clientAddr.Port}

	go func() {
		from := dev.awaitRequest()
		// Stray datagram from a different host first, real reply after.
		stray.send(target, envelope(t, "intruder", "noise"))
		time.Sleep(50 * time.Millisecond)
		dev.send(from, envelope(t, "f4911e000000", "reply"))
	}()

	out, err := wire.BindRequest("f4911e000000")
	require.NoError(t, err)

	msg, err := c.Exchange(context.Background(), net.IPv4(127, 0, 0, 1), out)
	require.NoError(t, err)
	require.Equal(t, "f4911e000000", msg.Cid)
}

func TestExchangeTimeout(t *testing.T) {
	dev := newFakeDevice(t, "127.0.0.1:0")
	c := newTestClient(t, dev.port(), 100*time.Millisecond)

	out, err := wire.BindRequest("f4911e000000")
	require.NoError(t, err)

	start := time.Now()
	_, err = c.Exchange(context.Background(), net.IPv4(127, 0, 0, 1), out)
	require.ErrorIs(t, err, ErrTimeout)
	require.Less(t, time.Since(start), time.Second)
}

func TestExchangeDrainsStaleDatagrams(t *testing.T) {
	dev := newFakeDevice(t, "127.0.0.1:0")
	c := newTestClient(t, dev.port(), 2*time.Second)

	clientAddr := c.LocalAddr().(*net.UDPAddr)
	target := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: clientAddr.Port}

	// A late reply from a previous exchange sits in the queue.
	dev.send(target, envelope(t, "f4911e000000", "stale"))
	time.Sleep(100 * time.Millisecond)

	go func() {
		from := dev.awaitRequest()
		dev.send(from, envelope(t, "f4911e000000", "fresh"))
	}()

	out, err := wire.BindRequest("f4911e000000")
	require.NoError(t, err)

	msg, err := c.Exchange(context.Background(), net.IPv4(127, 0, 0, 1), out)
	require.NoError(t, err)
	require.Equal(t, "fresh", msg.Pack)
}

func TestExchangeContextCancel(t *testing.T) {
	dev := newFakeDevice(t, "127.0.0.1:0")
	c := newTestClient(t, dev.port(), 10*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	out, err := wire.BindRequest("f4911e000000")
	require.NoError(t, err)

	_, err = c.Exchange(ctx, net.IPv4(127, 0, 0, 1), out)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestScanCollectsReplies(t *testing.T) {
	dev := newFakeDevice(t, "127.0.0.1:0")
	second := newFakeDevice(t, "127.0.0.2:0")
	c := newTestClient(t, dev.port(), 200*time.Millisecond)

	go func() {
		from := dev.awaitRequest()
		dev.send(from, scanReply(t, "f4911e000001"))
		second.send(from, scanReply(t, "f4911e000002"))
	}()

	results, err := c.Scan(context.Background(), net.IPv4(127, 0, 0, 1), 5)
	require.NoError(t, err)
	require.Len(t, results, 2)

	macs := map[string]bool{}
	for _, r := range results {
		macs[r.Pack.Mac] = true
		require.NotNil(t, r.IP)
	}
	require.True(t, macs["f4911e000001"])
	require.True(t, macs["f4911e000002"])
}

func TestScanStopsAtMaxCount(t *testing.T) {
	dev := newFakeDevice(t, "127.0.0.1:0")
	c := newTestClient(t, dev.port(), 5*time.Second)

	go func() {
		from := dev.awaitRequest()
		dev.send(from, scanReply(t, "f4911e000001"))
		dev.send(from, scanReply(t, "f4911e000002"))
	}()

	start := time.Now()
	results, err := c.Scan(context.Background(), net.IPv4(127, 0, 0, 1), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	// Returned on count, not on the 5s receive timeout.
	require.Less(t, time.Since(start), time.Second)
}

func TestScanNoDevices(t *testing.T) {
	dev := newFakeDevice(t, "127.0.0.1:0")
	c := newTestClient(t, dev.port(), 100*time.Millisecond)

	results, err := c.Scan(context.Background(), net.IPv4(127, 0, 0, 1), 10)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestScanBadReply(t *testing.T) {
	dev := newFakeDevice(t, "127.0.0.1:0")
	c := newTestClient(t, dev.port(), 500*time.Millisecond)

	go func() {
		from := dev.awaitRequest()
		// Valid envelope, but the pack is not valid base64 ciphertext.
		dev.send(from, envelope(t, "f4911e000001", "!!!"))
	}()

	_, err := c.Scan(context.Background(), net.IPv4(127, 0, 0, 1), 5)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrTimeout)
}

func TestCloseIdempotent(t *testing.T) {
	dev := newFakeDevice(t, "127.0.0.1:0")
	c := newTestClient(t, dev.port(), time.Second)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestUndecodableDatagramIsDropped(t *testing.T) {
	dev := newFakeDevice(t, "127.0.0.1:0")
	c := newTestClient(t, dev.port(), 2*time.Second)

	clientAddr := c.LocalAddr().(*net.UDPAddr)
	target := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: clientAddr.Port}

	go func() {
		from := dev.awaitRequest()
		dev.send(target, []byte("not json at all"))
		time.Sleep(50 * time.Millisecond)
		dev.send(from, envelope(t, "f4911e000000", "reply"))
	}()

	out, err := wire.BindRequest("f4911e000000")
	require.NoError(t, err)

	msg, err := c.Exchange(context.Background(), net.IPv4(127, 0, 0, 1), out)
	require.NoError(t, err)
	require.Equal(t, "reply", msg.Pack)
}
