// Command greectl controls Gree air conditioners on the local network.
//
// One-shot operations talk to the device directly: a scan finds it, a
// bind obtains the session key, and the requested exchange runs. The
// interactive mode keeps a device registry between commands and reuses
// session keys.
//
// Usage:
//
//	greectl [flags]
//
// Flags:
//
//	-config string      Configuration file path (YAML)
//	-bcast string       Broadcast address for scans
//	-count int          Maximum devices a scan collects
//	-local string       Local UDP bind address
//	-state string       State file for persisted session keys
//	-log-level string   Log level: debug, info, warn, error (default "info")
//	-protolog string    Write a CBOR datagram capture to this file
//	-scan               Scan and list devices
//	-bind string        Bind the target device (MAC or alias)
//	-get string         Read variables from the target device
//	-name string        Comma-separated variable names for -get
//	-set string         Write variables to the target device
//	-var value          NAME=VALUE pair for -set (repeatable)
//	-interactive        Start the interactive command loop
//
// Examples:
//
//	# Find devices on the LAN
//	greectl -scan -bcast 192.168.1.255
//
//	# Read power state and target temperature
//	greectl -get bedroom -name Pow,SetTem -config ~/.gree.yaml
//
//	# Switch on and set 23 degrees
//	greectl -set bedroom -var Pow=1 -var SetTem=23 -config ~/.gree.yaml
//
//	# Interactive session with persistent keys
//	greectl -interactive -state ~/.gree-state.json
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/vvvy/gree-go/cmd/greectl/interactive"
	"github.com/vvvy/gree-go/pkg/gree"
	"github.com/vvvy/gree-go/pkg/protolog"
	"github.com/vvvy/gree-go/pkg/transport"
	"github.com/vvvy/gree-go/pkg/vars"
)

// varFlag collects repeatable NAME=VALUE pairs.
type varFlag map[string]string

func (v varFlag) String() string { return fmt.Sprint(map[string]string(v)) }

func (v varFlag) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	if !ok {
		return fmt.Errorf("want NAME=VALUE, got %q", s)
	}
	v[name] = value
	return nil
}

var opts struct {
	configFile  string
	bcast       string
	count       int
	local       string
	statePath   string
	logLevel    string
	protologOut string

	scan        bool
	bind        string
	get         string
	names       string
	set         string
	vars        varFlag
	interactive bool
}

func init() {
	opts.vars = make(varFlag)

	flag.StringVar(&opts.configFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&opts.bcast, "bcast", "", "Broadcast address for scans")
	flag.IntVar(&opts.count, "count", 0, "Maximum devices a scan collects")
	flag.StringVar(&opts.local, "local", "", "Local UDP bind address")
	flag.StringVar(&opts.statePath, "state", "", "State file for persisted session keys")
	flag.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&opts.protologOut, "protolog", "", "Write a CBOR datagram capture to this file")

	flag.BoolVar(&opts.scan, "scan", false, "Scan and list devices")
	flag.StringVar(&opts.bind, "bind", "", "Bind the target device (MAC or alias)")
	flag.StringVar(&opts.get, "get", "", "Read variables from the target device")
	flag.StringVar(&opts.names, "name", "", "Comma-separated variable names for -get")
	flag.StringVar(&opts.set, "set", "", "Write variables to the target device")
	flag.Var(opts.vars, "var", "NAME=VALUE pair for -set (repeatable)")
	flag.BoolVar(&opts.interactive, "interactive", false, "Start the interactive command loop")
}

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(opts.logLevel)

	plog, plogClose, err := newProtoLogger(logger)
	if err != nil {
		log.Fatalf("protolog: %v", err)
	}
	defer plogClose()

	tc, err := transport.NewClient(transport.Config{
		LocalAddr:      cfg.LocalAddr,
		RecvTimeout:    cfg.RecvTimeout,
		Logger:         logger,
		ProtocolLogger: plog,
	})
	if err != nil {
		log.Fatalf("transport: %v", err)
	}
	defer tc.Close()

	cl := gree.NewClient(tc)

	switch {
	case opts.scan:
		err = runScan(cfg, cl)
	case opts.bind != "":
		err = runBind(cfg, cl, opts.bind)
	case opts.get != "":
		err = runGet(cfg, cl, opts.get, opts.names)
	case opts.set != "":
		err = runSet(cfg, cl, opts.set, opts.vars)
	case opts.interactive:
		err = runInteractive(cfg, cl, logger)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

// loadConfig reads the config file when given and applies flag
// overrides on top.
func loadConfig() (gree.Config, error) {
	cfg := gree.DefaultConfig()
	if opts.configFile != "" {
		var err error
		if cfg, err = gree.LoadConfig(opts.configFile); err != nil {
			return gree.Config{}, err
		}
	}

	if opts.bcast != "" {
		cfg.BroadcastAddr = opts.bcast
	}
	if opts.count != 0 {
		cfg.MaxCount = opts.count
	}
	if opts.local != "" {
		cfg.LocalAddr = opts.local
	}
	if opts.statePath != "" {
		cfg.StatePath = opts.statePath
	}
	return cfg, cfg.Validate()
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

// newProtoLogger builds the datagram capture chain: a CBOR file when
// -protolog is set, plus slog output at debug level.
func newProtoLogger(logger *slog.Logger) (protolog.Logger, func(), error) {
	adapters := []protolog.Logger{protolog.NewSlogAdapter(logger)}
	closeFn := func() {}

	if opts.protologOut != "" {
		fl, err := protolog.NewFileLogger(opts.protologOut)
		if err != nil {
			return nil, nil, err
		}
		adapters = append(adapters, fl)
		closeFn = func() { fl.Close() }
	}
	return protolog.NewMultiLogger(adapters...), closeFn, nil
}

// scanAndFind scans the network and locates the target by MAC or alias.
func scanAndFind(ctx context.Context, cfg gree.Config, cl *gree.Client, target string) (*transport.ScanResult, error) {
	mac := target
	if m, ok := cfg.Aliases[target]; ok {
		mac = m
	}

	results, err := cl.Scan(ctx, net.ParseIP(cfg.BroadcastAddr), cfg.MaxCount)
	if err != nil {
		return nil, err
	}
	for i := range results {
		if results[i].Pack.Mac == mac {
			return &results[i], nil
		}
	}
	return nil, fmt.Errorf("device %q did not answer the scan", target)
}

func runScan(cfg gree.Config, cl *gree.Client) error {
	results, err := cl.Scan(context.Background(), net.ParseIP(cfg.BroadcastAddr), cfg.MaxCount)
	if err != nil {
		return err
	}

	fmt.Printf("%-14s %-16s %-16s %s\n", "MAC", "IP", "NAME", "VERSION")
	for _, r := range results {
		fmt.Printf("%-14s %-16s %-16s %s\n", r.Pack.Mac, r.IP, r.Pack.Name, r.Pack.Ver)
	}
	fmt.Printf("%d device(s)\n", len(results))
	return nil
}

func runBind(cfg gree.Config, cl *gree.Client, target string) error {
	ctx := context.Background()
	r, err := scanAndFind(ctx, cfg, cl, target)
	if err != nil {
		return err
	}
	pack, err := cl.Bind(ctx, r.IP, r.Pack.Mac)
	if err != nil {
		return err
	}
	fmt.Printf("%s bound, key %s\n", r.Pack.Mac, pack.Key)
	return nil
}

func runGet(cfg gree.Config, cl *gree.Client, target, nameList string) error {
	if nameList == "" {
		return fmt.Errorf("-get needs -name")
	}
	names := strings.Split(nameList, ",")
	for _, n := range names {
		if _, ok := vars.Name(n); !ok {
			return fmt.Errorf("unknown variable %q", n)
		}
	}

	ctx := context.Background()
	r, err := scanAndFind(ctx, cfg, cl, target)
	if err != nil {
		return err
	}
	bind, err := cl.Bind(ctx, r.IP, r.Pack.Mac)
	if err != nil {
		return err
	}
	pack, err := cl.Status(ctx, r.IP, r.Pack.Mac, bind.Key, names)
	if err != nil {
		return err
	}

	for i, col := range pack.Cols {
		fmt.Printf("%s=%v\n", col, pack.Dat[i])
	}
	return nil
}

func runSet(cfg gree.Config, cl *gree.Client, target string, pairs map[string]string) error {
	if len(pairs) == 0 {
		return fmt.Errorf("-set needs at least one -var NAME=VALUE")
	}
	bag, err := vars.FromPairs(pairs)
	if err != nil {
		return err
	}
	names, values := bag.PendingWrites()

	ctx := context.Background()
	r, err := scanAndFind(ctx, cfg, cl, target)
	if err != nil {
		return err
	}
	bind, err := cl.Bind(ctx, r.IP, r.Pack.Mac)
	if err != nil {
		return err
	}
	pack, err := cl.Command(ctx, r.IP, r.Pack.Mac, bind.Key, names, values)
	if err != nil {
		return err
	}

	for i, name := range pack.Opt {
		fmt.Printf("%s=%v\n", name, pack.P[i])
	}
	return nil
}

func runInteractive(cfg gree.Config, cl *gree.Client, logger *slog.Logger) error {
	cfg.Logger = logger
	g, err := gree.New(cfg, cl)
	if err != nil {
		return err
	}

	ic, err := interactive.New(g)
	if err != nil {
		return err
	}
	// Route log output through readline so it does not mangle the prompt.
	log.SetOutput(ic.Stdout())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ic.Run(ctx, cancel)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("received signal: %v", sig)
	case <-ctx.Done():
	}
	return nil
}
