package gree

import (
	"net"
	"sort"
	"time"

	"github.com/vvvy/gree-go/pkg/transport"
	"github.com/vvvy/gree-go/pkg/vars"
	"github.com/vvvy/gree-go/pkg/wire"
)

// VarValue is one variable value as last reported by the device.
type VarValue struct {
	Value   any
	Updated time.Time
}

// Device is the registry entry for one air conditioner.
type Device struct {
	// IP is the address the device last answered a scan from.
	IP net.IP

	// Info is the scan reply metadata. Info.Mac is the registry key.
	Info wire.ScanResponsePack

	// Key is the session key issued at bind, empty until bound.
	Key string

	// Updated is when the device last appeared in a scan.
	Updated time.Time

	// Values holds the last value each variable was seen with, fed from
	// status and command replies.
	Values map[vars.VarName]VarValue
}

// Mac returns the device's MAC, its stable protocol identity.
func (d *Device) Mac() string {
	return d.Info.Mac
}

// State is the device registry: devices keyed by MAC plus the alias
// table. State is not internally synchronized; the orchestrator owns it
// and concurrent front ends serialize around the orchestrator.
type State struct {
	devices map[string]*Device
	aliases map[string]string

	// pendingKeys holds session keys restored from a state file for
	// devices not yet seen by a scan.
	pendingKeys map[string]string
}

// NewState creates an empty registry with the given alias table
// (alias name to MAC).
func NewState(aliases map[string]string) *State {
	s := &State{
		devices:     make(map[string]*Device),
		aliases:     make(map[string]string),
		pendingKeys: make(map[string]string),
	}
	for name, mac := range aliases {
		s.aliases[name] = mac
	}
	return s
}

// RecordScan replaces the device set with the scan results. Devices that
// did not answer are dropped. A device that answered again keeps its
// session key and value tree, so a routine rescan does not force a
// re-bind.
func (s *State) RecordScan(results []transport.ScanResult, at time.Time) {
	next := make(map[string]*Device, len(results))
	for _, r := range results {
		d := &Device{
			IP:      r.IP,
			Info:    *r.Pack,
			Updated: at,
			Values:  make(map[vars.VarName]VarValue),
		}
		if prev, ok := s.devices[r.Pack.Mac]; ok {
			d.Key = prev.Key
			d.Values = prev.Values
		} else if key, ok := s.pendingKeys[r.Pack.Mac]; ok {
			d.Key = key
			delete(s.pendingKeys, r.Pack.Mac)
		}
		next[r.Pack.Mac] = d
	}
	s.devices = next
}

// seedKey registers a session key for a device, typically restored from
// a state file before the first scan. If the device is not known yet the
// key is attached when a scan first finds the MAC.
func (s *State) seedKey(mac, key string) {
	if d, ok := s.devices[mac]; ok {
		if d.Key == "" {
			d.Key = key
		}
		return
	}
	s.pendingKeys[mac] = key
}

// RecordBind stores the session key for a known device.
// Unknown MACs are ignored.
func (s *State) RecordBind(mac, key string) {
	if d, ok := s.devices[mac]; ok {
		d.Key = key
	}
}

// RecordValues merges reported variable values into a device's value
// tree. Unknown MACs and unknown variable names are ignored.
func (s *State) RecordValues(mac string, values map[string]any, at time.Time) {
	d, ok := s.devices[mac]
	if !ok {
		return
	}
	for name, v := range values {
		vn, ok := vars.Name(name)
		if !ok {
			continue
		}
		d.Values[vn] = VarValue{Value: v, Updated: at}
	}
}

// Resolve maps a target to a MAC: alias lookup first, otherwise the
// target is taken to be a MAC itself. Whether a device with that MAC is
// actually known is a separate question answered by Device.
func (s *State) Resolve(target string) string {
	if mac, ok := s.aliases[target]; ok {
		return mac
	}
	return target
}

// Device returns the registry entry for a MAC.
func (s *State) Device(mac string) (*Device, bool) {
	d, ok := s.devices[mac]
	return d, ok
}

// Devices returns all known devices ordered by MAC.
func (s *State) Devices() []*Device {
	out := make([]*Device, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Mac() < out[j].Mac() })
	return out
}

// Aliases returns a copy of the alias table.
func (s *State) Aliases() map[string]string {
	out := make(map[string]string, len(s.aliases))
	for name, mac := range s.aliases {
		out[name] = mac
	}
	return out
}
