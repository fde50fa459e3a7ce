package common

import (
	"context"
	"os"
	"time"

	"github.com/whitecard/whitecard-backend/internal/observability"
	"github.com/whitecard/whitecard-backend/internal/tools/ui"
)

// RunAction runs fn behind the interactive progress view, or directly when ci
// is set. Either way fn gets at most timeout and the run is recorded in the
// tool command metrics.
func RunAction(tool, command string, ci bool, timeout time.Duration, fn func(context.Context) ([]string, error)) CommandResult {
	start := time.Now()
	res := CommandResult{Tool: tool, Command: command}
	if ci {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		res.Details, res.Err = fn(ctx)
		cancel()
	} else {
		res.Details, res.Err = ui.Run(tool+" "+command, timeout, fn)
	}
	res.Duration = time.Since(start)

	outcome := "success"
	if res.Err != nil {
		outcome = "error"
	}
	observability.RecordToolCommandRun(context.Background(), tool, command, outcome)
	observability.RecordToolCommandDuration(context.Background(), tool, command, outcome, res.Duration)
	return res
}

// Finish prints the CI payload when requested and exits with code on failure.
func Finish(res CommandResult, ci bool, code int) {
	if ci {
		_ = PrintCIResult(os.Stdout, res)
	}
	if res.Err != nil {
		os.Exit(code)
	}
}
