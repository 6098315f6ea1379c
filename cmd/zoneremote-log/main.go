// Command zoneremote-log is a tool for viewing and analyzing protocol log
// files.
//
// Log files are written by zoneremote and zoneremote-sim when run with the
// -protocol-log flag.
//
// Usage:
//
//	zoneremote-log <command> [flags] <file.zlog>
//
// Commands:
//
//	view     View log file in human-readable format
//	export   Export log file to JSON or CSV format
//	filter   Filter log file and write to new file
//	stats    Summarize operations, browse chains and zone events
//
// Every command accepts the same selection flags (-conn-id, -core-id,
// -since, -until, -layer, -direction, -category, -op, -zone, -zone-events).
//
// Examples:
//
//	# Follow one browse session on the kitchen zone
//	zoneremote-log view -op browse -zone kitchen remote.zlog
//
//	# Count zone changes seen by one core
//	zoneremote-log stats -core-id 1c2d -zone-events remote.zlog
//
//	# Export to CSV
//	zoneremote-log export -format csv -o remote.csv remote.zlog
//
//	# Keep only errors of one connection
//	zoneremote-log filter -conn-id abc12345 -category error -o errors.zlog remote.zlog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/zoneremote/zoneremote-go/cmd/zoneremote-log/commands"
)

const usage = `zoneremote-log - Zone Remote Protocol Log Analyzer

Usage:
  zoneremote-log <command> [flags] <file.zlog>

Commands:
  view     View log file in human-readable format
  export   Export log file to JSON or CSV format
  filter   Filter log file and write to new file
  stats    Summarize operations, browse chains and zone events

Use "zoneremote-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// parseArgs parses fs and returns the log file argument.
func parseArgs(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func newFlagSet(name, synopsis string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "zoneremote-log %s - %s\n\nUsage:\n  zoneremote-log %s [flags] <file.zlog>\n\nFlags:\n",
			name, synopsis, name)
		fs.PrintDefaults()
	}
	return fs
}

// criteriaFlags registers the selection flags shared by every subcommand.
func criteriaFlags(fs *flag.FlagSet) *commands.Criteria {
	c := &commands.Criteria{}
	fs.StringVar(&c.ConnID, "conn-id", "", "Filter by connection ID")
	fs.StringVar(&c.CoreID, "core-id", "", "Filter by core ID")
	fs.StringVar(&c.Since, "since", "", "Keep events at or after this time (RFC3339)")
	fs.StringVar(&c.Until, "until", "", "Keep events before this time (RFC3339)")
	fs.StringVar(&c.Layer, "layer", "", "Filter by layer (transport, wire, service)")
	fs.StringVar(&c.Direction, "direction", "", "Filter by direction (in, out)")
	fs.StringVar(&c.Category, "category", "", "Filter by category (message, control, state, error)")
	fs.StringVar(&c.Operation, "op", "", "Filter by operation (e.g. browse, load, control)")
	fs.StringVar(&c.Zone, "zone", "", "Filter by target zone or output ID")
	fs.BoolVar(&c.ZoneEvents, "zone-events", false, "Keep only zone subscription events")
	return c
}

func runView(args []string) {
	fs := newFlagSet("view", "View log file in human-readable format")
	c := criteriaFlags(fs)
	path := parseArgs(fs, args)

	if err := commands.RunView(path, *c, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs := newFlagSet("export", "Export log file to JSON or CSV format")
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	c := criteriaFlags(fs)
	path := parseArgs(fs, args)

	if err := commands.RunExport(path, *format, *output, *c); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs := newFlagSet("filter", "Filter log file and write to new file")
	output := fs.String("o", "", "Output file (required)")
	c := criteriaFlags(fs)
	path := parseArgs(fs, args)

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	n, err := commands.RunFilter(path, *output, *c)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Filtered %d events to %s\n", n, *output)
}

func runStats(args []string) {
	fs := newFlagSet("stats", "Summarize operations, browse chains and zone events")
	c := criteriaFlags(fs)
	path := parseArgs(fs, args)

	if err := commands.RunStats(path, *c, os.Stdout); err != nil {
		fail(err)
	}
}
