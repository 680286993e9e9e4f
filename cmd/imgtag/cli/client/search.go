package client

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mwantia/imgtag/internal/library"
)

func NewSearchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search images",
		Long: `Search images by tags or by their generation parameters.

Results are ordered by file name, descending.`,
	}

	cmd.PersistentFlags().Bool("json", false, "print matching paths as a JSON array")

	cmd.AddCommand(newSearchCommand("any <tag>...", "Images carrying at least one of the tags", cobra.MinimumNArgs(1),
		func(ctx context.Context, lib *library.Library, args []string) ([]string, error) {
			return lib.Store().SearchAnyTags(ctx, args)
		}))
	cmd.AddCommand(newSearchCommand("all [tag]...", "Images carrying every one of the tags", cobra.ArbitraryArgs,
		func(ctx context.Context, lib *library.Library, args []string) ([]string, error) {
			return lib.Store().SearchAllTags(ctx, args)
		}))
	cmd.AddCommand(newSearchParamsCommand())
	cmd.AddCommand(newSearchTagsCommand())

	return cmd
}

type searchFunc func(ctx context.Context, lib *library.Library, args []string) ([]string, error)

func newSearchCommand(use, short string, args cobra.PositionalArgs, search searchFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, args, search)
		},
	}
}

func runSearch(cmd *cobra.Command, args []string, search searchFunc) error {
	return withLibrary(cmd, func(ctx context.Context, lib *library.Library) error {
		paths, err := search(ctx, lib, args)
		if err != nil {
			return err
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return printJSON(cmd.OutOrStdout(), paths)
		}
		printLines(cmd.OutOrStdout(), paths)
		return nil
	})
}

func newSearchParamsCommand() *cobra.Command {
	return newSearchCommand("params <text>", "Images whose parameters contain the text (case-sensitive)", cobra.ExactArgs(1),
		func(ctx context.Context, lib *library.Library, args []string) ([]string, error) {
			return lib.Store().SearchParams(ctx, args[0])
		})
}

func newSearchTagsCommand() *cobra.Command {
	var include, exclude []string

	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Images carrying every included tag and none of the excluded tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, args, func(ctx context.Context, lib *library.Library, _ []string) ([]string, error) {
				return lib.Store().SearchTagsAdvanced(ctx, include, exclude)
			})
		},
	}

	cmd.Flags().StringSliceVarP(&include, "include", "i", nil, "tags every result must carry")
	cmd.Flags().StringSliceVarP(&exclude, "exclude", "e", nil, "tags no result may carry")

	return cmd
}
