package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sadopc/sprintboard/internal/export"
)

func newExportCmd(flags *globalFlags) *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export tasks to CSV or JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(format)
			if format != "csv" && format != "json" {
				return fmt.Errorf("--format must be csv or json, got %q", format)
			}

			e, err := openEnv(cmd.Context(), *flags)
			if err != nil {
				return err
			}
			defer e.Close()

			if out == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return fmt.Errorf("locate home directory: %w", err)
				}
				out = filepath.Join(home, fmt.Sprintf("sprintboard-export-%s.%s", today(), format))
			}

			s := e.board.Store()
			tasks := s.Tasks()
			names := export.NamesFrom(s)
			if format == "csv" {
				err = export.ToCSV(tasks, names, out)
			} else {
				err = export.ToJSON(tasks, names, out)
			}
			if err != nil {
				return err
			}
			e.logger.Info("tasks exported", "path", out, "count", len(tasks))
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d tasks to %s\n", len(tasks), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "csv or json")
	cmd.Flags().StringVar(&out, "out", "", "output file (default ~/sprintboard-export-<date>.<format>)")
	return cmd
}
