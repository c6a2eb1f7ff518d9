package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hopper/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run environment preflight checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			results := preflight.RunAll(cmd.Context(), cfg)

			if asJSON {
				type checkView struct {
					Name   string `json:"name"`
					Passed bool   `json:"passed"`
					Detail string `json:"detail,omitempty"`
				}
				views := make([]checkView, 0, len(results))
				failed := 0
				for _, result := range results {
					if !result.Passed {
						failed++
					}
					views = append(views, checkView{
						Name:   result.Name,
						Passed: result.Passed,
						Detail: result.Detail,
					})
				}
				if err := writeJSON(cmd, views); err != nil {
					return err
				}
				if failed > 0 {
					return fmt.Errorf("%d preflight checks failed", failed)
				}
				return nil
			}

			rows := make([][]string, 0, len(results))
			failed := 0
			for _, result := range results {
				state := "OK"
				if !result.Passed {
					state = "FAIL"
					failed++
				}
				rows = append(rows, []string{result.Name, state, result.Detail})
			}
			rendered := renderTable(cmd.OutOrStdout(),
				[]string{"Check", "Result", "Detail"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), rendered)

			if failed > 0 {
				return fmt.Errorf("%d preflight checks failed", failed)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All checks passed")
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	return cmd
}
