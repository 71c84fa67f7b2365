package gree

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vvvy/gree-go/pkg/transport"
	"github.com/vvvy/gree-go/pkg/vars"
	"github.com/vvvy/gree-go/pkg/wire"
)

// fakeProtocol scripts the network: which devices a scan finds, which
// bind/status/command exchanges succeed, and counts every call.
type fakeProtocol struct {
	devices map[string]string // mac -> ip answering scans

	scans    int
	binds    int
	statuses int
	commands int

	scanErr    error
	bindErr    error
	bindKey    string
	statusErr  func(call int) error
	commandErr error
}

func newFakeProtocol(devices map[string]string) *fakeProtocol {
	return &fakeProtocol{devices: devices, bindKey: testKey}
}

func (f *fakeProtocol) Scan(ctx context.Context, bcast net.IP, maxCount int) ([]transport.ScanResult, error) {
	f.scans++
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	var out []transport.ScanResult
	for mac, ip := range f.devices {
		out = append(out, scanResult(mac, ip))
		if len(out) >= maxCount {
			break
		}
	}
	return out, nil
}

func (f *fakeProtocol) Bind(ctx context.Context, ip net.IP, mac string) (*wire.BindResponsePack, error) {
	f.binds++
	if f.bindErr != nil {
		return nil, f.bindErr
	}
	return &wire.BindResponsePack{T: "bindok", Mac: mac, Key: f.bindKey, R: 200}, nil
}

func (f *fakeProtocol) Status(ctx context.Context, ip net.IP, mac, key string, names []string) (*wire.StatusResponsePack, error) {
	f.statuses++
	if f.statusErr != nil {
		if err := f.statusErr(f.statuses); err != nil {
			return nil, err
		}
	}
	dat := make([]any, len(names))
	for i := range names {
		dat[i] = 1
	}
	return &wire.StatusResponsePack{T: "dat", Mac: mac, Cols: names, Dat: dat}, nil
}

func (f *fakeProtocol) Command(ctx context.Context, ip net.IP, mac, key string, names []string, values []any) (*wire.CommandResponsePack, error) {
	f.commands++
	if f.commandErr != nil {
		return nil, f.commandErr
	}
	return &wire.CommandResponsePack{T: "res", Mac: mac, Opt: names, P: values, Val: values}, nil
}

var _ ProtocolClient = (*fakeProtocol)(nil)

// newTestGree wires an orchestrator to the fake with a controllable
// clock starting at a fixed instant.
func newTestGree(t *testing.T, fp *fakeProtocol, cfg Config) (*Gree, *time.Time) {
	t.Helper()
	g, err := New(cfg, fp)
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }
	return g, &now
}

func TestNetReadBindsOnce(t *testing.T) {
	fp := newFakeProtocol(map[string]string{"aa": "10.0.0.1"})
	g, _ := newTestGree(t, fp, Config{})

	for i := 0; i < 3; i++ {
		bag, err := vars.FromNames([]string{"Pow", "SetTem"})
		require.NoError(t, err)
		require.NoError(t, g.NetRead(context.Background(), "aa", bag))
		require.Empty(t, bag.PendingReads())
		require.Equal(t, 1, bag[vars.Pow].Value)
	}

	require.Equal(t, 1, fp.scans, "one initial scan")
	require.Equal(t, 1, fp.binds, "bind must be idempotent")
	require.Equal(t, 3, fp.statuses)
}

func TestNetWrite(t *testing.T) {
	fp := newFakeProtocol(map[string]string{"aa": "10.0.0.1"})
	g, _ := newTestGree(t, fp, Config{})

	bag, err := vars.FromPairs(map[string]string{"Pow": "1", "SetTem": "23"})
	require.NoError(t, err)
	require.NoError(t, g.NetWrite(context.Background(), "aa", bag))

	names, _ := bag.PendingWrites()
	require.Empty(t, names, "write flags cleared by device echo")
	require.Equal(t, 1, fp.commands)

	// The echoed values land in the device value tree.
	err = g.WithDevice(context.Background(), "aa", func(d *Device) error {
		require.Equal(t, 23, d.Values[vars.SetTem].Value)
		return nil
	})
	require.NoError(t, err)
}

func TestAliasResolution(t *testing.T) {
	fp := newFakeProtocol(map[string]string{"f4911e000001": "10.0.0.1"})
	g, _ := newTestGree(t, fp, Config{
		Aliases: map[string]string{"bedroom": "f4911e000001"},
	})

	require.NoError(t, g.Bind(context.Background(), "bedroom"))
	require.Equal(t, 1, fp.binds)
}

func TestUnknownTargetIsNotFound(t *testing.T) {
	fp := newFakeProtocol(map[string]string{"aa": "10.0.0.1"})
	g, now := newTestGree(t, fp, Config{})

	err := g.Bind(context.Background(), "zz")
	require.ErrorIs(t, err, ErrNotFound)
	// First scan plus the forced retry scan, throttled no further
	// because the scan was younger than MinScanAge.
	require.Equal(t, 1, fp.scans)

	*now = now.Add(2 * DefaultMinScanAge)
	err = g.Bind(context.Background(), "zz")
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 2, fp.scans, "forced rescan honored past MinScanAge")
}

func TestRetryAfterForcedRescan(t *testing.T) {
	fp := newFakeProtocol(map[string]string{"aa": "10.0.0.1"})
	g, now := newTestGree(t, fp, Config{})

	// The first status exchange fails and lets enough time pass that
	// the forced rescan clears MinScanAge; the retry succeeds.
	fp.statusErr = func(call int) error {
		if call == 1 {
			*now = now.Add(2 * DefaultMinScanAge)
			return transport.ErrTimeout
		}
		return nil
	}

	bag, err := vars.FromNames([]string{"Pow"})
	require.NoError(t, err)
	require.NoError(t, g.NetRead(context.Background(), "aa", bag))

	require.Equal(t, 2, fp.scans, "failure forces a rescan")
	require.Equal(t, 2, fp.statuses, "exactly one retry")
}

func TestRetryThrottledByMinScanAge(t *testing.T) {
	fp := newFakeProtocol(map[string]string{"aa": "10.0.0.1"})
	fp.statusErr = func(int) error { return transport.ErrTimeout }
	g, _ := newTestGree(t, fp, Config{})

	bag, err := vars.FromNames([]string{"Pow"})
	require.NoError(t, err)
	err = g.NetRead(context.Background(), "aa", bag)
	require.ErrorIs(t, err, ErrTimeout)

	// The scan was fresh, so the forced refresh was suppressed but the
	// operation still got its single retry.
	require.Equal(t, 1, fp.scans)
	require.Equal(t, 2, fp.statuses)
}

func TestSecondFailurePropagates(t *testing.T) {
	fp := newFakeProtocol(map[string]string{"aa": "10.0.0.1"})
	fp.statusErr = func(int) error { return errors.New("device busy") }
	g, now := newTestGree(t, fp, Config{MinScanAge: time.Nanosecond})
	*now = now.Add(time.Second)

	bag, err := vars.FromNames([]string{"Pow"})
	require.NoError(t, err)
	err = g.NetRead(context.Background(), "aa", bag)
	require.ErrorContains(t, err, "device busy")
	require.Equal(t, 2, fp.statuses, "no third attempt")
}

func TestMaxScanAgeRefreshes(t *testing.T) {
	fp := newFakeProtocol(map[string]string{"aa": "10.0.0.1"})
	g, now := newTestGree(t, fp, Config{})

	require.NoError(t, g.Bind(context.Background(), "aa"))
	require.Equal(t, 1, fp.scans)

	// Within MaxScanAge nothing rescans.
	*now = now.Add(time.Hour)
	require.NoError(t, g.Bind(context.Background(), "aa"))
	require.Equal(t, 1, fp.scans)

	*now = now.Add(DefaultMaxScanAge)
	require.NoError(t, g.Bind(context.Background(), "aa"))
	require.Equal(t, 2, fp.scans, "stale scan refreshed without force")
	require.Equal(t, 1, fp.binds, "key survives the rescan")
}

func TestPublicScanIsUnconditional(t *testing.T) {
	fp := newFakeProtocol(map[string]string{"aa": "10.0.0.1"})
	g, _ := newTestGree(t, fp, Config{})

	require.NoError(t, g.Scan(context.Background()))
	require.NoError(t, g.Scan(context.Background()))
	require.Equal(t, 2, fp.scans)
}

func TestBindWithoutKeyIsNotBound(t *testing.T) {
	fp := newFakeProtocol(map[string]string{"aa": "10.0.0.1"})
	fp.bindKey = ""
	g, _ := newTestGree(t, fp, Config{})

	err := g.Bind(context.Background(), "aa")
	require.ErrorIs(t, err, ErrNotBound)
}

func TestScanErrorPropagates(t *testing.T) {
	fp := newFakeProtocol(nil)
	fp.scanErr = transport.ErrTimeout
	g, _ := newTestGree(t, fp, Config{})

	// Scan itself never treats a timeout as fatal inside transport, but
	// a transport-level failure surfacing here must reach the caller.
	err := g.Scan(context.Background())
	require.ErrorIs(t, err, ErrTimeout)
}

func TestWithStateListsDevices(t *testing.T) {
	fp := newFakeProtocol(map[string]string{"aa": "10.0.0.1", "bb": "10.0.0.2"})
	g, _ := newTestGree(t, fp, Config{})

	var macs []string
	err := g.WithState(context.Background(), func(s *State) error {
		for _, d := range s.Devices() {
			macs = append(macs, d.Mac())
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"aa", "bb"}, macs)
}

func TestStatePersistsAcrossOrchestrators(t *testing.T) {
	statePath := t.TempDir() + "/state.json"

	fp := newFakeProtocol(map[string]string{"aa": "10.0.0.1"})
	g, _ := newTestGree(t, fp, Config{StatePath: statePath})
	require.NoError(t, g.Bind(context.Background(), "aa"))
	require.Equal(t, 1, fp.binds)

	// A fresh orchestrator over the same state file does not re-bind.
	fp2 := newFakeProtocol(map[string]string{"aa": "10.0.0.1"})
	g2, _ := newTestGree(t, fp2, Config{StatePath: statePath})
	require.NoError(t, g2.Bind(context.Background(), "aa"))
	require.Equal(t, 0, fp2.binds)
}
