// Command pipeline runs one bronze to silver transformation and exits.
//
// Exit codes: 0 on success, 1 when the bronze contract is broken, 2 on any
// other failure. With -reset it drops the silver and gold tables instead.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"text/tabwriter"

	"github.com/JonMunkholm/medallion/internal/config"
	"github.com/JonMunkholm/medallion/internal/core"
	"github.com/JonMunkholm/medallion/internal/logging"
	"github.com/JonMunkholm/medallion/internal/pipeline"
	"github.com/JonMunkholm/medallion/internal/tracing"
	"github.com/joho/godotenv"
)

const (
	exitFault = 1
	exitError = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	reset := flag.Bool("reset", false, "drop silver and gold tables instead of running")
	resetLedger := flag.Bool("reset-ledger", false, "with -reset, also drop the rejection ledger")
	flag.Parse()

	if err := godotenv.Overload(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return exitError
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())

	shutdownTracing, err := tracing.Setup(context.Background(), cfg.Tracing)
	if err != nil {
		slog.Error("failed to set up tracing", "error", err)
		return exitError
	}
	defer shutdownTracing(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wiring, err := pipeline.Build(ctx, cfg, nil)
	if err != nil {
		slog.Error("failed to set up pipeline", "error", err)
		return exitError
	}
	defer wiring.Close()

	if *reset {
		if wiring.Warehouse == nil {
			slog.Error("-reset needs a database connection")
			return exitError
		}
		if err := wiring.Warehouse.Reset(ctx, *resetLedger); err != nil {
			slog.Error("reset failed", "error", err)
			return exitError
		}
		slog.Info("reset complete", "ledger", *resetLedger)
		return 0
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Pipeline.RunTimeout)
	defer cancel()

	res, err := wiring.Runner.Run(ctx)
	if res != nil && res.Report != nil {
		printReport(os.Stdout, res)
	}
	if err != nil {
		slog.Error("run failed", "code", core.MapError(err).Code, "error", err)
		printFailure(os.Stderr, err)
		if core.IsStructural(err) {
			return exitFault
		}
		return exitError
	}
	return 0
}

// printFailure writes the user-facing message for err, the raw error when no
// specific message exists, and every structural fault.
func printFailure(w io.Writer, err error) {
	fmt.Fprintln(w, core.FormatUserError(err))
	if !core.IsUserFacing(err) {
		fmt.Fprintf(w, "error: %v\n", err)
	}
	var contract *core.ContractError
	if errors.As(err, &contract) {
		for _, f := range contract.Faults {
			fmt.Fprintf(w, "fault: %s\n", f.Error())
		}
	}
}

func printReport(w io.Writer, res *pipeline.RunResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "run %s (%s, policy %s)\n", res.RunID, res.Status, res.Report.Policy)
	fmt.Fprintln(tw, "TABLE\tINPUT\tACCEPTED\tREJECTED")
	for _, t := range res.Report.Tables {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", t.Table, t.Input, t.Accepted, t.Rejected)
		for _, rc := range t.Rules {
			fmt.Fprintf(tw, "  %s\t\t\t%d\t%s\n", rc.Rule, rc.Rows, rc.Reason)
		}
	}
	in, accepted, rejected := res.Report.Totals()
	fmt.Fprintf(tw, "TOTAL\t%d\t%d\t%d\n", in, accepted, rejected)
	for _, table := range slices.Sorted(maps.Keys(res.GoldRows)) {
		fmt.Fprintf(tw, "gold %s\t%d\t\t\n", table, res.GoldRows[table])
	}
	for _, path := range res.Exported {
		fmt.Fprintf(tw, "exported %s\n", path)
	}
	tw.Flush()
}
