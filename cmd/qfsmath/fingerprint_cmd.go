package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RealDaniG/QFS-sub007/pkg/certmath"
	"github.com/RealDaniG/QFS-sub007/pkg/config"
)

type fingerprintReport struct {
	EngineVersion string         `json:"engine_version"`
	Fingerprint   string         `json:"system_fingerprint"`
	Profile       map[string]any `json:"profile"`
	Pinned        string         `json:"pinned_by,omitempty"`
}

func (a *app) fingerprintCmd() *cobra.Command {
	var (
		profileName string
		profilesDir string
	)
	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the engine fingerprint and the constant table it commits to",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			report := fingerprintReport{
				EngineVersion: certmath.EngineVersion,
				Fingerprint:   certmath.SystemFingerprint,
				Profile:       certmath.Profile(),
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
				report.Pinned = profile.Name
			}
			return a.writeJSON(report)
		},
	}
	cmd.Flags().StringVar(&profileName, "profile", "", "Check the fingerprint against profile_<name>.yaml")
	cmd.Flags().StringVar(&profilesDir, "profiles-dir", "profiles", "Directory holding engine profiles")
	return cmd
}
