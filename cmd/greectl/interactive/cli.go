// Package interactive provides the interactive command loop for
// greectl.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/vvvy/gree-go/pkg/gree"
	"github.com/vvvy/gree-go/pkg/vars"
)

// CLI handles interactive mode for greectl.
type CLI struct {
	g  *gree.Gree
	rl *readline.Instance
}

// New creates a new interactive handler over the orchestrator.
func New(g *gree.Gree) (*CLI, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "gree> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &CLI{g: g, rl: rl}, nil
}

// Stdout returns a writer that coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (c *CLI) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Run starts the interactive command loop.
func (c *CLI) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()

		case "scan":
			c.cmdScan(ctx)

		case "list", "ls", "devices":
			c.cmdList(ctx)

		case "bind":
			c.cmdBind(ctx, args)

		case "get", "g":
			c.cmdGet(ctx, args)

		case "set", "s":
			c.cmdSet(ctx, args)

		case "state":
			c.cmdState(ctx, args)

		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *CLI) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
Gree Commands:
  scan                         - Rescan the network
  list                         - List known devices
  bind <target>                - Obtain the target's session key
  get <target> <name> [...]    - Read variables (e.g. get bedroom Pow SetTem)
  set <target> NAME=VALUE [..] - Write variables (e.g. set bedroom Pow=1)
  state <target>               - Show the target's last known values
  quit                         - Exit`)
}

func (c *CLI) cmdScan(ctx context.Context) {
	if err := c.g.Scan(ctx); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "scan failed: %v\n", err)
		return
	}
	c.cmdList(ctx)
}

func (c *CLI) cmdList(ctx context.Context) {
	err := c.g.WithState(ctx, func(s *gree.State) error {
		devs := s.Devices()
		if len(devs) == 0 {
			fmt.Fprintln(c.rl.Stdout(), "no devices known, try 'scan'")
			return nil
		}

		aliases := make(map[string]string) // mac -> alias
		for name, mac := range s.Aliases() {
			aliases[mac] = name
		}

		fmt.Fprintf(c.rl.Stdout(), "%-14s %-16s %-12s %-6s %s\n",
			"MAC", "IP", "NAME", "BOUND", "ALIAS")
		for _, d := range devs {
			bound := "no"
			if d.Key != "" {
				bound = "yes"
			}
			fmt.Fprintf(c.rl.Stdout(), "%-14s %-16s %-12s %-6s %s\n",
				d.Mac(), d.IP, d.Info.Name, bound, aliases[d.Mac()])
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "list failed: %v\n", err)
	}
}

func (c *CLI) cmdBind(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.rl.Stdout(), "usage: bind <target>")
		return
	}
	if err := c.g.Bind(ctx, args[0]); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "bind failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "%s bound\n", args[0])
}

func (c *CLI) cmdGet(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.rl.Stdout(), "usage: get <target> <name> [name...]")
		return
	}

	bag, err := vars.FromNames(args[1:])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "%v\n", err)
		return
	}
	if err := c.g.NetRead(ctx, args[0], bag); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "get failed: %v\n", err)
		return
	}
	c.printBag(bag)
}

func (c *CLI) cmdSet(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.rl.Stdout(), "usage: set <target> NAME=VALUE [NAME=VALUE...]")
		return
	}

	pairs := make(map[string]string, len(args)-1)
	for _, arg := range args[1:] {
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			fmt.Fprintf(c.rl.Stdout(), "want NAME=VALUE, got %q\n", arg)
			return
		}
		pairs[name] = value
	}

	bag, err := vars.FromPairs(pairs)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "%v\n", err)
		return
	}
	if err := c.g.NetWrite(ctx, args[0], bag); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "set failed: %v\n", err)
		return
	}
	c.printBag(bag)
}

func (c *CLI) cmdState(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.rl.Stdout(), "usage: state <target>")
		return
	}

	err := c.g.WithDevice(ctx, args[0], func(d *gree.Device) error {
		fmt.Fprintf(c.rl.Stdout(), "%s at %s, last scan %s\n",
			d.Mac(), d.IP, d.Updated.Format("15:04:05"))
		if len(d.Values) == 0 {
			fmt.Fprintln(c.rl.Stdout(), "no values reported yet, try 'get'")
			return nil
		}
		for _, name := range vars.All {
			if v, ok := d.Values[name]; ok {
				fmt.Fprintf(c.rl.Stdout(), "  %s=%v (as of %s)\n",
					name, v.Value, v.Updated.Format("15:04:05"))
			}
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "state failed: %v\n", err)
	}
}

func (c *CLI) printBag(bag vars.Bag) {
	for _, name := range vars.All {
		if slot, ok := bag[name]; ok {
			fmt.Fprintf(c.rl.Stdout(), "%s=%v\n", name, slot.Value)
		}
	}
}
