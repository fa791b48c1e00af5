package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RealDaniG/QFS-sub007/pkg/artifacts"
	"github.com/RealDaniG/QFS-sub007/pkg/certmath"
	"github.com/RealDaniG/QFS-sub007/pkg/config"
	"github.com/RealDaniG/QFS-sub007/pkg/observability"
	"github.com/RealDaniG/QFS-sub007/pkg/replay"
	"github.com/RealDaniG/QFS-sub007/pkg/store"
)

type replayReport struct {
	Root    string            `json:"root"`
	OK      bool              `json:"ok"`
	Results []*replay.Result  `json:"results"`
	Archive map[string]bool   `json:"archived,omitempty"`
	Exports map[string]string `json:"exports,omitempty"`
}

func (a *app) replayCmd() *cobra.Command {
	var (
		parallel    int
		archive     bool
		export      bool
		profileName string
		profilesDir string
	)
	cmd := &cobra.Command{
		Use:   "replay SCRIPT...",
		Short: "Run replay scripts and report digests, failures and expectation mismatches",
		Long: `Runs each script in its own audit session, concurrently. The report
includes every session digest and a Merkle root over all of them.
Closed bundles can be archived (QFS_ARCHIVE_*) and exported (QFS_EXPORT_STORE).`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, paths []string) error {
			ctx := cmd.Context()

			scripts := make([]*replay.Script, 0, len(paths))
			for _, p := range paths {
				s, err := replay.LoadScript(p)
				if err != nil {
					return runtimeErr(err)
				}
				scripts = append(scripts, s)
			}

			if profileName != "" {
				profile, err := config.LoadProfile(profilesDir, profileName)
				if err != nil {
					return runtimeErr(err)
				}
				if err := profile.CheckFingerprint(certmath.EngineVersion, certmath.SystemFingerprint); err != nil {
					_, _ = fmt.Fprintf(a.stderr, "Error: %v\n", err)
					return failed()
				}
				for _, s := range scripts {
					s.Session = profile.SessionID(s.Session)
				}
			}

			telemetry, err := observability.New(ctx, observability.ConfigFrom(a.cfg, certmath.EngineVersion))
			if err != nil {
				return runtimeErr(err)
			}
			defer func() { _ = telemetry.Shutdown(context.WithoutCancel(ctx)) }()

			runner, err := replay.NewRunner(replay.WithLogger(a.logger), replay.WithTelemetry(telemetry))
			if err != nil {
				return runtimeErr(err)
			}
			batch, err := runner.RunAll(ctx, scripts, parallel)
			if err != nil {
				return runtimeErr(err)
			}

			report := &replayReport{Root: batch.Root, OK: batch.OK(), Results: batch.Results}
			if archive {
				if report.Archive, err = a.archive(ctx, batch); err != nil {
					return runtimeErr(err)
				}
			}
			if export {
				if report.Exports, err = a.export(ctx, batch); err != nil {
					return runtimeErr(err)
				}
			}

			if err := a.writeJSON(report); err != nil {
				return err
			}
			if !report.OK {
				return failed()
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&parallel, "parallel", 4, "Maximum sessions run at once (0 = unlimited)")
	cmd.Flags().BoolVar(&archive, "archive", false, "Store closed bundles in the configured archive")
	cmd.Flags().BoolVar(&export, "export", false, "Write closed bundles to the configured export store")
	cmd.Flags().StringVar(&profileName, "profile", "", "Engine profile to enforce (profile_<name>.yaml)")
	cmd.Flags().StringVar(&profilesDir, "profiles-dir", "profiles", "Directory holding engine profiles")
	return cmd
}

// archive returns, per session, whether a new row was written.
func (a *app) archive(ctx context.Context, batch *replay.Batch) (map[string]bool, error) {
	arc, err := store.Open(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = arc.Close() }()

	out := make(map[string]bool, len(batch.Results))
	for _, res := range batch.Results {
		inserted, err := arc.Put(ctx, res.Bundle)
		if err != nil {
			return nil, err
		}
		out[res.Session] = inserted
	}
	return out, nil
}

// export returns the content key of each exported session.
func (a *app) export(ctx context.Context, batch *replay.Batch) (map[string]string, error) {
	sink, err := artifacts.NewStoreFromConfig(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, errors.New("--export given but QFS_EXPORT_STORE is none")
	}
	exporter := artifacts.NewExporter(sink, a.logger)

	out := make(map[string]string, len(batch.Results))
	for _, res := range batch.Results {
		key, err := exporter.Export(ctx, res.Bundle)
		if err != nil {
			return nil, err
		}
		out[res.Session] = key
	}
	return out, nil
}
