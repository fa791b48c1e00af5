package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RealDaniG/QFS-sub007/pkg/replay"
)

func (a *app) evalCmd() *cobra.Command {
	var (
		session   string
		timestamp int64
		pqcCID    string
		expect    string
		jsonOut   bool
		showLog   bool
	)
	cmd := &cobra.Command{
		Use:   "eval OP [ARG...]",
		Short: "Run one audited operation and print its result and session digest",
		Example: `  qfsmath eval sqrt 2
  qfsmath eval pow 2.5 1.5 --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			step := replay.Step{Op: args[0], Args: args[1:], PQCCID: pqcCID, Expect: expect}
			if cmd.Flags().Changed("timestamp") {
				step.Timestamp = &timestamp
			}
			runner, err := replay.NewRunner(replay.WithLogger(a.logger))
			if err != nil {
				return runtimeErr(err)
			}
			res, err := runner.Run(cmd.Context(), &replay.Script{Session: session, Steps: []replay.Step{step}})
			if err != nil {
				return runtimeErr(err)
			}

			last := res.Steps[len(res.Steps)-1]
			switch {
			case jsonOut:
				if err := a.writeJSON(res); err != nil {
					return err
				}
			case last.Error != "":
				_, _ = fmt.Fprintf(a.stdout, "error: %s (%s)\ndigest: %s\n", last.Error, last.Code, res.Digest)
			default:
				_, _ = fmt.Fprintf(a.stdout, "result: %s\ndigest: %s\n", last.Result, res.Digest)
			}
			if showLog {
				_, _ = fmt.Fprintf(a.stdout, "%s\n", res.Bundle.Log)
			}
			if last.Error != "" || !res.OK() {
				return failed()
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&session, "session", "eval", "Session ID of the audit log")
	cmd.Flags().Int64Var(&timestamp, "timestamp", 0, "Logical timestamp recorded in the entry")
	cmd.Flags().StringVar(&pqcCID, "pqc-cid", "", "Content ID of an external PQC signature")
	cmd.Flags().StringVar(&expect, "expect", "", "CEL expectation over result, ok and error")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the full result as JSON")
	cmd.Flags().BoolVar(&showLog, "log", false, "Print the canonical audit log")
	return cmd
}
