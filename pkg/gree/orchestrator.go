package gree

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/vvvy/gree-go/pkg/vars"
)

// Gree is the session orchestrator. It owns the registry, decides when
// the network is rescanned, binds devices on first use and retries a
// failed operation once after forcing a rescan.
//
// A Gree is not safe for concurrent use; front ends serving concurrent
// requests serialize around it.
type Gree struct {
	cfg    Config
	cl     ProtocolClient
	state  *State
	store  *StateStore
	logger *slog.Logger
	bcast  net.IP

	lastScan time.Time

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// New creates an orchestrator over the given protocol client. The config
// is defaulted and validated; if StatePath is set, previously saved
// session keys are loaded.
func New(cfg Config, cl ProtocolClient) (*Gree, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &Gree{
		cfg:    cfg,
		cl:     cl,
		state:  NewState(cfg.Aliases),
		logger: cfg.Logger,
		bcast:  net.ParseIP(cfg.BroadcastAddr),
		now:    time.Now,
	}

	if cfg.StatePath != "" {
		g.store = NewStateStore(cfg.StatePath)
		if err := g.store.Load(g.state); err != nil {
			return nil, fmt.Errorf("loading state %s: %w", cfg.StatePath, err)
		}
	}
	return g, nil
}

// Scan refreshes the registry unconditionally, ignoring scan ages.
func (g *Gree) Scan(ctx context.Context) error {
	return g.scan(ctx)
}

// Bind ensures the target device has a session key. Already-bound
// devices are left alone.
func (g *Gree) Bind(ctx context.Context, target string) error {
	return g.applyWithRetry(ctx, target, func(ctx context.Context, d *Device) error {
		return nil // ensureBound already ran
	})
}

// NetRead reads the bag's pending variables from the target device.
// Values land both in the bag and in the device's value tree.
func (g *Gree) NetRead(ctx context.Context, target string, bag vars.Bag) error {
	return g.applyWithRetry(ctx, target, func(ctx context.Context, d *Device) error {
		return g.netRead(ctx, d, bag)
	})
}

// NetWrite commits the bag's pending variables to the target device.
// The values the device echoes back are authoritative and land both in
// the bag and in the device's value tree.
func (g *Gree) NetWrite(ctx context.Context, target string, bag vars.Bag) error {
	return g.applyWithRetry(ctx, target, func(ctx context.Context, d *Device) error {
		return g.netWrite(ctx, d, bag)
	})
}

// WithState runs fn against the registry after ensuring scan freshness.
func (g *Gree) WithState(ctx context.Context, fn func(*State) error) error {
	if err := g.maybeScan(ctx, false); err != nil {
		return err
	}
	return fn(g.state)
}

// WithDevice runs fn against the target's registry entry, with the same
// rescan-and-retry policy as the network operations.
func (g *Gree) WithDevice(ctx context.Context, target string, fn func(*Device) error) error {
	if err := g.maybeScan(ctx, false); err != nil {
		return err
	}
	mac := g.state.Resolve(target)
	if d, ok := g.state.Device(mac); ok {
		return fn(d)
	}
	if err := g.maybeScan(ctx, true); err != nil {
		return err
	}
	d, ok := g.state.Device(mac)
	if !ok {
		return fmt.Errorf("%q: %w", target, ErrNotFound)
	}
	return fn(d)
}

// applyWithRetry runs op against the resolved, bound target: ensure scan
// freshness, try once, and on failure force a rescan and try again. The
// second failure is the caller's.
func (g *Gree) applyWithRetry(ctx context.Context, target string, op func(context.Context, *Device) error) error {
	if err := g.maybeScan(ctx, false); err != nil {
		return err
	}

	err := g.apply(ctx, target, op)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return err
	}
	if g.logger != nil {
		g.logger.Debug("operation failed, rescanning", "target", target, "error", err)
	}

	if scanErr := g.maybeScan(ctx, true); scanErr != nil {
		return scanErr
	}
	return g.apply(ctx, target, op)
}

// apply resolves the target, binds it if needed and runs op.
func (g *Gree) apply(ctx context.Context, target string, op func(context.Context, *Device) error) error {
	mac := g.state.Resolve(target)
	d, err := g.ensureBound(ctx, mac)
	if err != nil {
		return err
	}
	return op(ctx, d)
}

// ensureBound returns the device's registry entry, performing the key
// exchange first if the device has no session key yet. Binding an
// already-bound device is a no-op.
func (g *Gree) ensureBound(ctx context.Context, mac string) (*Device, error) {
	d, ok := g.state.Device(mac)
	if !ok {
		return nil, fmt.Errorf("%q: %w", mac, ErrNotFound)
	}
	if d.Key != "" {
		return d, nil
	}

	pack, err := g.cl.Bind(ctx, d.IP, mac)
	if err != nil {
		return nil, err
	}
	if pack.Key == "" {
		return nil, fmt.Errorf("%q: %w", mac, ErrNotBound)
	}

	g.state.RecordBind(mac, pack.Key)
	g.saveState()
	if g.logger != nil {
		g.logger.Info("device bound", "mac", mac)
	}
	return d, nil
}

func (g *Gree) netRead(ctx context.Context, d *Device, bag vars.Bag) error {
	names := bag.PendingReads()
	if len(names) == 0 {
		return nil
	}

	pack, err := g.cl.Status(ctx, d.IP, d.Mac(), d.Key, names)
	if err != nil {
		return err
	}

	reported := make(map[string]any, len(pack.Cols))
	for i, col := range pack.Cols {
		bag.ApplyReadResult(col, pack.Dat[i])
		reported[col] = pack.Dat[i]
	}
	g.state.RecordValues(d.Mac(), reported, g.now())
	return nil
}

func (g *Gree) netWrite(ctx context.Context, d *Device, bag vars.Bag) error {
	names, values := bag.PendingWrites()
	if len(names) == 0 {
		return nil
	}

	pack, err := g.cl.Command(ctx, d.IP, d.Mac(), d.Key, names, values)
	if err != nil {
		return err
	}

	reported := make(map[string]any, len(pack.Opt))
	for i, name := range pack.Opt {
		bag.ApplyWriteResult(name, pack.P[i])
		reported[name] = pack.P[i]
	}
	g.state.RecordValues(d.Mac(), reported, g.now())
	return nil
}

// maybeScan refreshes the registry when the last scan is stale. Without
// force, only a scan older than MaxScanAge is refreshed. With force, a
// refresh is honored once the scan is older than MinScanAge; younger
// scans are left alone so failing operations cannot flood the network
// with broadcasts.
func (g *Gree) maybeScan(ctx context.Context, force bool) error {
	age := g.now().Sub(g.lastScan)
	switch {
	case g.lastScan.IsZero():
	case age >= g.cfg.MaxScanAge:
	case force && age >= g.cfg.MinScanAge:
	default:
		return nil
	}
	return g.scan(ctx)
}

func (g *Gree) scan(ctx context.Context) error {
	results, err := g.cl.Scan(ctx, g.bcast, g.cfg.MaxCount)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	now := g.now()
	g.state.RecordScan(results, now)
	g.lastScan = now
	g.saveState()

	if g.logger != nil {
		g.logger.Info("scan complete", "devices", len(results))
	}
	return nil
}

func (g *Gree) saveState() {
	if g.store == nil {
		return
	}
	if err := g.store.Save(g.state); err != nil && g.logger != nil {
		g.logger.Warn("saving state failed", "path", g.cfg.StatePath, "error", err)
	}
}
