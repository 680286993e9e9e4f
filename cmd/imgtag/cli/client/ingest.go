package client

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mwantia/imgtag/internal/library"
)

func NewIngestCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "ingest <path>...",
		Short: "Ingest image files and directories",
		Long: `Ingest image files and directories into the library.

Directories are walked for files with a configured extension (library.extensions).
PNG generation parameters are stored with each image, and with library.auto_tag
every prompt token is attached as a tag.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(cmd, func(ctx context.Context, lib *library.Library) error {
				recursive := viper.GetBool("library.recursive")

				reports := make([]*library.IngestReport, 0, len(args))
				for _, path := range args {
					info, err := os.Stat(path)
					if err != nil {
						return err
					}

					if !info.IsDir() {
						if err := lib.IngestFile(ctx, path); err != nil {
							return err
						}
						continue
					}

					report, err := lib.IngestDirectory(ctx, path, recursive)
					if err != nil {
						return err
					}
					reports = append(reports, report)
				}

				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), reports)
				}
				for _, report := range reports {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: scanned %d, ingested %d, failed %d\n",
						report.RunID, report.Scanned, report.Ingested, report.Failed)
				}
				return nil
			})
		},
	}

	cmd.Flags().Bool("recursive", true, "descend into subdirectories")
	cmd.Flags().Bool("auto-tag", false, "attach every prompt token as a tag")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print run reports as JSON")

	viper.BindPFlag("library.recursive", cmd.Flags().Lookup("recursive"))
	viper.BindPFlag("library.auto_tag", cmd.Flags().Lookup("auto-tag"))

	return cmd
}
