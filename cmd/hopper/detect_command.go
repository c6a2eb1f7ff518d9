package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"hopper/internal/encoder"
	"hopper/internal/logging"
)

func newDetectCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Probe hardware encoders and show the selected profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			detector := encoder.NewDetector(cfg, logging.NewNop())
			profile, err := detector.Detect(cmd.Context())
			if err != nil {
				return fmt.Errorf("detect encoder: %w", err)
			}

			if asJSON {
				return writeJSON(cmd, map[string]any{
					"name":     profile.Name,
					"tier":     profile.Tier.String(),
					"codec":    profile.Codec,
					"hardware": profile.Hardware,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Selected encoder: %s\n", profile.Name)
			fmt.Fprintf(out, "Tier: %s\n", profile.Tier)
			fmt.Fprintf(out, "Codec: %s\n", profile.Codec)
			fmt.Fprintf(out, "Hardware accelerated: %s\n", yesNo(profile.Hardware))
			if len(profile.VideoArgs) > 0 {
				fmt.Fprintf(out, "Video args: %s\n", strings.Join(profile.VideoArgs, " "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	return cmd
}
