// Package interactive provides the interactive command-line interface
// for zoneremote.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/zoneremote/zoneremote-go/pkg/browse"
	"github.com/zoneremote/zoneremote-go/pkg/command"
	"github.com/zoneremote/zoneremote-go/pkg/service"
	"github.com/zoneremote/zoneremote-go/pkg/wire"
	"github.com/zoneremote/zoneremote-go/pkg/zone"
)

// Remote is the part of the service the console drives.
type Remote interface {
	Status() string
	CoreInfo() *wire.CoreInfo
	Zones() []zone.Zone
	Execute(ctx context.Context, nameOrID, cmd string) (command.Result, zone.Zone, error)
	Browse(ctx context.Context, nameOrID string, opts browse.Options) (service.BrowseResult, error)
	Play(ctx context.Context, nameOrID, itemKey string) (service.PlayResult, error)
	BrowseState() browse.State
}

// commandTimeout bounds each console command.
const commandTimeout = 30 * time.Second

// Console handles interactive mode for zoneremote.
type Console struct {
	remote Remote
	rl     *readline.Instance
	out    io.Writer
}

// New creates a new console. The remote is bound by Run, so logging can be
// routed through Stdout before the service exists.
func New() (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "remote> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("zones"),
			readline.PcItem("control",
				readline.PcItem("play"),
				readline.PcItem("pause"),
				readline.PcItem("playpause"),
				readline.PcItem("next"),
				readline.PcItem("previous"),
				readline.PcItem("mute"),
				readline.PcItem("unmute"),
				readline.PcItem("pause_all"),
			),
			readline.PcItem("browse"),
			readline.PcItem("play"),
			readline.PcItem("items"),
			readline.PcItem("status"),
			readline.PcItem("help"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Console{rl: rl, out: rl.Stdout()}, nil
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Run starts the interactive command loop against remote.
func (c *Console) Run(ctx context.Context, remote Remote, cancel context.CancelFunc) {
	defer c.rl.Close()
	c.remote = remote

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
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}

		if quit := c.Handle(ctx, line); quit {
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}
	}
}

// Handle runs one command line. It returns true when the line asks to quit.
func (c *Console) Handle(ctx context.Context, line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()
	case "zones", "z":
		c.cmdZones()
	case "control", "c":
		c.cmdControl(ctx, args)
	case "browse", "b":
		c.cmdBrowse(ctx, args)
	case "play", "p":
		c.cmdPlay(ctx, args)
	case "items", "ls":
		c.cmdItems()
	case "status", "s":
		c.cmdStatus()
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
Commands:
  zones                          List zones
  control <command> <zone>       Send play, pause, playpause, next, previous,
                                 mute, unmute or pause_all to a zone
  browse <item_key|root> <zone>  Browse the hierarchy for a zone
  play <zone> [item_key]         Browse to an item and toggle playback
  items                          Show the cached browse list
  status                         Show remote status
  help                           Show this help
  quit                           Exit`)
}

func (c *Console) cmdZones() {
	zones := c.remote.Zones()
	if len(zones) == 0 {
		fmt.Fprintln(c.out, "No zones")
		return
	}
	for _, z := range zones {
		state := z.State
		if state == "" {
			state = "-"
		}
		fmt.Fprintf(c.out, "  %-24s %-10s %s (%d outputs)\n", z.DisplayName, state, z.ID, len(z.Outputs))
		if z.NowPlaying != nil && z.NowPlaying.Title != "" {
			fmt.Fprintf(c.out, "    now playing: %s - %s\n", z.NowPlaying.Artist, z.NowPlaying.Title)
		}
	}
}

func (c *Console) cmdControl(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "Usage: control <command> <zone>")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	name := strings.Join(args[1:], " ")
	res, z, err := c.remote.Execute(ctx, name, args[0])
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "%s on %s: %s\n", args[0], z.DisplayName, res)
}

func (c *Console) cmdBrowse(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "Usage: browse <item_key|root> <zone>")
		return
	}

	opts := browse.Options{ItemKey: args[0]}
	if args[0] == "root" {
		opts = browse.Options{PopAll: true}
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	res, err := c.remote.Browse(ctx, strings.Join(args[1:], " "), opts)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}

	switch res.Action {
	case browse.ActionList:
		c.printState(res.State)
	case browse.ActionMessage:
		if res.IsError {
			fmt.Fprintf(c.out, "Core error: %s\n", res.Message)
		} else {
			fmt.Fprintf(c.out, "Core message: %s\n", res.Message)
		}
	default:
		fmt.Fprintf(c.out, "Result: %s\n", res.Action)
	}
}

func (c *Console) cmdPlay(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: play <zone> [item_key]")
		return
	}

	// The item key is the trailing numeric argument, if any.
	name, key := args, ""
	if n := len(args); n > 1 && isKey(args[n-1]) {
		name, key = args[:n-1], args[n-1]
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	res, err := c.remote.Play(ctx, strings.Join(name, " "), key)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	title := ""
	if res.Browse.State.List != nil {
		title = res.Browse.State.List.Title
	}
	fmt.Fprintf(c.out, "Playing in %s (%s): %s\n", res.Zone.DisplayName, title, res.Command)
}

func (c *Console) cmdItems() {
	c.printState(c.remote.BrowseState())
}

func (c *Console) printState(st browse.State) {
	if st.List == nil {
		fmt.Fprintln(c.out, "No browse list loaded")
		return
	}
	fmt.Fprintf(c.out, "%s (level %d, %d items)\n", st.List.Title, st.List.Level, st.List.Count)
	for _, it := range st.Items {
		key := it.ItemKey
		if key == "" {
			key = "-"
		}
		line := fmt.Sprintf("  [%s] %s", key, it.Title)
		if it.Subtitle != "" {
			line += " - " + it.Subtitle
		}
		fmt.Fprintln(c.out, line)
	}
}

func (c *Console) cmdStatus() {
	fmt.Fprintf(c.out, "Status: %s\n", c.remote.Status())
	if info := c.remote.CoreInfo(); info != nil {
		fmt.Fprintf(c.out, "Core:   %s (%s) version %s\n", info.DisplayName, info.CoreID, info.Version)
	}
	fmt.Fprintf(c.out, "Zones:  %d\n", len(c.remote.Zones()))
}

func isKey(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
