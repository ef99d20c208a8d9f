// Package cli implements the odyssey subcommands that run outside the HTTP server.
package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/odyssey-erp/odyssey-receivables/jobs"
)

// Commands handled by Run.
var Commands = []string{"analyze", "customers", "refresh", "jobs"}

// IsCommand reports whether name is a CLI subcommand.
func IsCommand(name string) bool {
	for _, c := range Commands {
		if c == name {
			return true
		}
	}
	return name == "help" || name == "-h" || name == "--help"
}

// Deps carries the helpers Run dispatches to. Jobs may be nil.
type Deps struct {
	Receivables *ReceivablesCLI
	Jobs        *JobsCLI
	Stdout      io.Writer
	Stderr      io.Writer
}

// Run parses args (without the program name) and executes the subcommand.
func Run(ctx context.Context, args []string, deps Deps) int {
	stdout, stderr := streams(deps.Stdout, deps.Stderr)
	if len(args) == 0 || !IsCommand(args[0]) {
		usage(stderr)
		return ExitUsage
	}
	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(stdout)
		return ExitOK
	}
	if deps.Receivables == nil && args[0] != "jobs" {
		_, _ = fmt.Fprintf(stderr, "%s: receivables service not configured\n", args[0])
		return ExitError
	}

	switch args[0] {
	case "analyze":
		fs := newFlagSet("analyze", stderr)
		opts := AnalyzeOptions{Stdout: stdout, Stderr: stderr}
		fs.StringVar(&opts.CustomerID, "customer", "", "customer identifier (default: all customers)")
		fs.StringVar(&opts.CustomerKey, "key", "", `customer selector "<id> - <name>"`)
		fs.StringVar(&opts.AsOf, "as-of", "", "analysis date YYYY-MM-DD (default: today)")
		fs.StringVar(&opts.Format, "format", FormatText, "output format: text, json or csv")
		fs.BoolVar(&opts.FailOnCritical, "fail-on-critical", false, "exit 10 when the risk grade is critical")
		if err := fs.Parse(args[1:]); err != nil {
			return ExitUsage
		}
		return deps.Receivables.AnalyzeCommand(ctx, opts)
	case "customers":
		fs := newFlagSet("customers", stderr)
		opts := CustomersOptions{Stdout: stdout, Stderr: stderr}
		fs.BoolVar(&opts.JSONOutput, "json", false, "print JSON")
		if err := fs.Parse(args[1:]); err != nil {
			return ExitUsage
		}
		return deps.Receivables.CustomersCommand(ctx, opts)
	case "refresh":
		fs := newFlagSet("refresh", stderr)
		opts := RefreshOptions{Stdout: stdout, Stderr: stderr}
		enqueue := fs.Bool("enqueue", false, "queue the refresh for the worker instead of running it here")
		fs.BoolVar(&opts.JSONOutput, "json", false, "print JSON")
		if err := fs.Parse(args[1:]); err != nil {
			return ExitUsage
		}
		if *enqueue {
			return trigger(ctx, deps.Jobs, jobs.TaskDatasetRefresh, stdout, stderr)
		}
		return deps.Receivables.RefreshCommand(ctx, opts)
	default:
		return runJobs(ctx, args[1:], deps.Jobs, stdout, stderr)
	}
}

func runJobs(ctx context.Context, args []string, c *JobsCLI, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stderr, "jobs: expected status or trigger <task>")
		return ExitUsage
	}
	switch args[0] {
	case "status":
		stats, err := c.InspectQueue(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs status: %v\n", err)
			return ExitError
		}
		if err := json.NewEncoder(stdout).Encode(stats); err != nil {
			return ExitError
		}
		return ExitOK
	case "trigger":
		if len(args) < 2 {
			_, _ = fmt.Fprintln(stderr, "jobs trigger: task name required")
			return ExitUsage
		}
		return trigger(ctx, c, args[1], stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "jobs: unknown subcommand %q\n", args[0])
		return ExitUsage
	}
}

func trigger(ctx context.Context, c *JobsCLI, name string, stdout, stderr io.Writer) int {
	id, err := c.Trigger(ctx, name)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "jobs trigger: %v\n", err)
		return ExitError
	}
	_, _ = fmt.Fprintf(stdout, "enqueued %s as %s\n", name, id)
	return ExitOK
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func usage(w io.Writer) {
	_, _ = fmt.Fprint(w, `usage: odyssey [serve]
       odyssey analyze [--customer ID | --key "ID - NAME"] [--as-of YYYY-MM-DD] [--format text|json|csv] [--fail-on-critical]
       odyssey customers [--json]
       odyssey refresh [--json] [--enqueue]
       odyssey jobs status
       odyssey jobs trigger receivables:dataset:refresh
`)
}
