// Command gcload loads local files into the Genomcore data platform: time
// series from CSV, records from JSON, report-style records from a
// spreadsheet, record deletion, and time-series query and analysis.
//
// Credentials come from the environment (TOKEN, REFRESH_TOKEN, ENV),
// optionally seeded from a .env file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	// register every ledger backend; --ledger picks one by DSN scheme.
	_ "gcload/internal/ledger/all"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := newApp()
	err := newRootCmd(a).ExecuteContext(ctx)
	a.close()
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "gcload:", err)
		os.Exit(1)
	}
}
