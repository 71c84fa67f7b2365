package gree

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
broadcast_addr: 192.168.1.255
max_count: 4
min_scan_age: 30s
max_scan_age: 12h
recv_timeout: 500ms
local_addr: ":7777"
state_path: /var/lib/gree/state.json
aliases:
  bedroom: f4911e000001
  kitchen: f4911e000002
`))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	if cfg.BroadcastAddr != "192.168.1.255" {
		t.Errorf("broadcast_addr = %q", cfg.BroadcastAddr)
	}
	if cfg.MaxCount != 4 {
		t.Errorf("max_count = %d", cfg.MaxCount)
	}
	if cfg.MinScanAge != 30*time.Second || cfg.MaxScanAge != 12*time.Hour {
		t.Errorf("ages = %s/%s", cfg.MinScanAge, cfg.MaxScanAge)
	}
	if cfg.RecvTimeout != 500*time.Millisecond {
		t.Errorf("recv_timeout = %s", cfg.RecvTimeout)
	}
	if cfg.LocalAddr != ":7777" {
		t.Errorf("local_addr = %q", cfg.LocalAddr)
	}
	if cfg.StatePath != "/var/lib/gree/state.json" {
		t.Errorf("state_path = %q", cfg.StatePath)
	}
	if cfg.Aliases["bedroom"] != "f4911e000001" {
		t.Errorf("aliases = %v", cfg.Aliases)
	}
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`aliases: {bedroom: f4911e000001}`))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	want := DefaultConfig()
	if cfg.BroadcastAddr != want.BroadcastAddr ||
		cfg.MaxCount != want.MaxCount ||
		cfg.MinScanAge != want.MinScanAge ||
		cfg.MaxScanAge != want.MaxScanAge ||
		cfg.RecvTimeout != want.RecvTimeout ||
		cfg.LocalAddr != want.LocalAddr {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{name: "bad yaml", yaml: `:{`, want: "parsing config YAML"},
		{name: "bad duration", yaml: `min_scan_age: soon`, want: "min_scan_age"},
		{name: "ages inverted", yaml: "min_scan_age: 2h\nmax_scan_age: 1h", want: "min_scan_age 2h"},
		{name: "bad broadcast", yaml: `broadcast_addr: nowhere`, want: "broadcast_addr"},
		{name: "negative count", yaml: `max_count: -1`, want: "max_count"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidateRejectsEqualAges(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinScanAge = time.Hour
	cfg.MaxScanAge = time.Hour
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for min == max")
	}
}
