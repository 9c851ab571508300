// Command xprocdemo hosts the entry points exercised by this module's
// integration tests: a thin flag-based CLI around bootstrap.Main/Spawn, in
// the style of kstaniek-go-ampio-server's cmd/can-server (flag, not cobra —
// there is exactly one subcommand switch here, not a command tree).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"code.hybscloud.com/xproc/bootstrap"
	"code.hybscloud.com/xproc/xproclog"
	"code.hybscloud.com/xproc/xprocmetrics"
)

func main() {
	// A re-exec'd child must be recognized before flag.Parse touches
	// os.Args, since its argv carries the bootstrap sentinel and handle
	// numbers, not this program's own flags.
	bootstrap.Main()

	logFormat := flag.String("log-format", "text", "log format: text|json")
	logLevel := flag.String("log-level", "info", "log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "metrics listen address (e.g. :9100); empty disables")
	entry := flag.String("entry", "", "entry id to spawn and wait for (demo mode)")
	flag.Parse()

	xproclog.Set(xproclog.New(*logFormat, xproclog.ParseLevel(*logLevel), os.Stderr))

	os.Exit(run(*metricsAddr, *entry))
}

// run holds everything that needs an orderly deferred shutdown before exit,
// since os.Exit in main itself would skip every defer.
func run(metricsAddr, entry string) int {
	if metricsAddr != "" {
		srv := xprocmetrics.ServeHTTP(metricsAddr)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := xprocmetrics.Shutdown(ctx, srv); err != nil {
				xproclog.L().Error("metrics_shutdown_failed", "error", err)
			}
		}()
	}

	if entry == "" {
		fmt.Fprintln(os.Stderr, "xprocdemo: -entry is required outside of tests")
		return 2
	}

	ctx := context.Background()
	child, err := bootstrap.Spawn(ctx, entry, struct{}{})
	if err != nil {
		xproclog.L().Error("spawn_failed", "entry", entry, "error", err)
		return 1
	}
	code, err := child.Wait(ctx)
	if err != nil {
		xproclog.L().Error("wait_failed", "entry", entry, "error", err)
		return 1
	}
	xproclog.L().Log(ctx, slog.LevelInfo, "child_exit", "entry", entry, "code", code)
	return code
}
