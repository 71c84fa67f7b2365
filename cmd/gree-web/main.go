// Command gree-web exposes Gree air conditioner control over HTTP.
//
// The server keeps one orchestrator behind a mutex: requests are
// serialized, device session keys are reused across requests and the
// network is rescanned only when the registry goes stale.
//
// Usage:
//
//	gree-web [flags]
//
// Flags:
//
//	-addr string        HTTP listen address (default ":8000")
//	-config string      Configuration file path (YAML)
//	-bcast string       Broadcast address for scans
//	-state string       State file for persisted session keys
//	-log-level string   Log level: debug, info, warn, error (default "info")
//
// Routes:
//
//	GET  /api/v1/health                         - liveness probe
//	GET  /api/v1/devices                        - list known devices
//	POST /api/v1/scan                           - force a rescan
//	POST /api/v1/dev/{target}/bind              - bind a device
//	GET  /api/v1/dev/{target}/get?name=Pow&...  - read variables
//	POST /api/v1/dev/{target}/set?Pow=1&...     - write variables
package main

import (
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/vvvy/gree-go/pkg/gree"
	"github.com/vvvy/gree-go/pkg/transport"
)

var opts struct {
	addr       string
	configFile string
	bcast      string
	statePath  string
	logLevel   string
}

func init() {
	flag.StringVar(&opts.addr, "addr", ":8000", "HTTP listen address")
	flag.StringVar(&opts.configFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&opts.bcast, "bcast", "", "Broadcast address for scans")
	flag.StringVar(&opts.statePath, "state", "", "State file for persisted session keys")
	flag.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

func main() {
	flag.Parse()

	logger := newLogger(opts.logLevel)

	cfg := gree.DefaultConfig()
	if opts.configFile != "" {
		var err error
		if cfg, err = gree.LoadConfig(opts.configFile); err != nil {
			log.Fatalf("config: %v", err)
		}
	}
	if opts.bcast != "" {
		cfg.BroadcastAddr = opts.bcast
	}
	if opts.statePath != "" {
		cfg.StatePath = opts.statePath
	}
	cfg.Logger = logger

	tc, err := transport.NewClient(transport.Config{
		LocalAddr:   cfg.LocalAddr,
		RecvTimeout: cfg.RecvTimeout,
		Logger:      logger,
	})
	if err != nil {
		log.Fatalf("transport: %v", err)
	}
	defer tc.Close()

	g, err := gree.New(cfg, gree.NewClient(tc))
	if err != nil {
		log.Fatalf("orchestrator: %v", err)
	}

	srv := NewServer(g, logger)

	logger.Info("listening", "addr", opts.addr)
	if err := http.ListenAndServe(opts.addr, srv); err != nil {
		log.Fatalf("http: %v", err)
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
