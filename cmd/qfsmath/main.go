// Command qfsmath evaluates, replays and verifies audited fixed-point
// computations.
//
// Exit codes:
//
//	0 = success
//	1 = a computation, expectation or verification failed
//	2 = usage or runtime error
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/RealDaniG/QFS-sub007/pkg/config"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

const (
	exitOK      = 0
	exitFailed  = 1
	exitRuntime = 2
)

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// failed reports a negative outcome that has already been printed.
func failed() error { return &exitError{code: exitFailed} }

func runtimeErr(err error) error { return &exitError{code: exitRuntime, err: err} }

// app is the per-invocation state shared by subcommands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	cfg := config.Load()
	a := &app{
		cfg:    cfg,
		logger: slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})),
		stdout: stdout,
		stderr: stderr,
	}

	root := a.rootCmd()
	if len(args) > 1 {
		root.SetArgs(args[1:])
	} else {
		root.SetArgs([]string{})
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", ee.err)
		}
		return ee.code
	}
	_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitRuntime
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "qfsmath",
		Short:         "Certified fixed-point arithmetic with a verifiable audit trail",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if err := a.cfg.Validate(); err != nil {
				return runtimeErr(err)
			}
			slog.SetDefault(a.logger)
			return nil
		},
	}
	root.AddCommand(
		a.evalCmd(),
		a.replayCmd(),
		a.verifyCmd(),
		a.fingerprintCmd(),
	)
	return root
}

func (a *app) writeJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return runtimeErr(err)
	}
	return nil
}
