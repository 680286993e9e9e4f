package client

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mwantia/imgtag/internal/library"
)

func NewImageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Manage library images",
		Long:  "Manage the images recorded in the library and their generation parameters.",
	}

	cmd.AddCommand(newImageAddCommand())
	cmd.AddCommand(newImageListCommand())
	cmd.AddCommand(newImageShowCommand())
	cmd.AddCommand(newImageParamsCommand())
	cmd.AddCommand(newImageMoveCommand())
	cmd.AddCommand(newImageRemoveCommand())

	return cmd
}

// absPaths resolves every argument the same way ingestion does
func absPaths(args []string) ([]string, error) {
	paths := make([]string, len(args))
	for i, arg := range args {
		path, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve '%s': %w", arg, err)
		}
		paths[i] = path
	}
	return paths, nil
}

func newImageAddCommand() *cobra.Command {
	var params string

	cmd := &cobra.Command{
		Use:   "add <path>...",
		Short: "Record images without reading them",
		Long:  "Records the paths as library images. Existing images are left untouched, including their parameters.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := absPaths(args)
			if err != nil {
				return err
			}

			return withLibrary(cmd, func(ctx context.Context, lib *library.Library) error {
				for _, path := range paths {
					if cmd.Flags().Changed("params") {
						err = lib.Store().UpsertImageWithParams(ctx, path, params)
					} else {
						err = lib.Store().UpsertImage(ctx, path)
					}
					if err != nil {
						return fmt.Errorf("failed to add '%s': %w", path, err)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&params, "params", "p", "", "generation parameters stored with newly added images")

	return cmd
}

func newImageListCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List library images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(cmd, func(ctx context.Context, lib *library.Library) error {
				images, err := lib.Store().ListImages(ctx)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), images)
				}
				for _, image := range images {
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", image.ID, image.Path)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print images as JSON")

	return cmd
}

func newImageShowCommand() *cobra.Command {
	var byID bool

	cmd := &cobra.Command{
		Use:   "show <path|id>",
		Short: "Show an image with its tags and parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(cmd, func(ctx context.Context, lib *library.Library) error {
				if byID {
					id, err := strconv.ParseUint(args[0], 10, 64)
					if err != nil {
						return fmt.Errorf("invalid image id '%s': %w", args[0], err)
					}
					tags, err := lib.Store().GetImageTagsByID(ctx, uint(id))
					if err != nil {
						return err
					}
					printLines(cmd.OutOrStdout(), tags)
					return nil
				}

				paths, err := absPaths(args)
				if err != nil {
					return err
				}
				image, err := lib.Store().GetImage(ctx, paths[0])
				if err != nil {
					return fmt.Errorf("failed to get '%s': %w", paths[0], err)
				}
				tags, err := lib.Store().GetImageTags(ctx, image.Path)
				if err != nil {
					return err
				}

				return printJSON(cmd.OutOrStdout(), struct {
					ID     uint     `json:"id"`
					Path   string   `json:"path"`
					Name   string   `json:"name"`
					Params *string  `json:"params"`
					Tags   []string `json:"tags"`
				}{image.ID, image.Path, image.Name, image.Params, tags})
			})
		},
	}

	cmd.Flags().BoolVar(&byID, "id", false, "treat the argument as an image id and print only its tags")

	return cmd
}

func newImageParamsCommand() *cobra.Command {
	var value string

	cmd := &cobra.Command{
		Use:   "params <path>",
		Short: "Print or overwrite generation parameters",
		Long:  "Prints the stored generation parameters of an image. With --set the parameters are overwritten and the image is recorded if needed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := absPaths(args)
			if err != nil {
				return err
			}

			return withLibrary(cmd, func(ctx context.Context, lib *library.Library) error {
				if cmd.Flags().Changed("set") {
					return lib.Store().SetParams(ctx, paths[0], value)
				}

				params, err := lib.Store().GetParams(ctx, paths[0])
				if err != nil {
					return err
				}
				if params == nil {
					return fmt.Errorf("no parameters recorded for '%s'", paths[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), *params)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&value, "set", "", "overwrite the parameters with this value")

	return cmd
}

func newImageMoveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mv <old> <new>",
		Short: "Change the recorded path of an image",
		Long:  "Changes the recorded path of an image, keeping its parameters and tags. Files on disk are not touched.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := absPaths(args)
			if err != nil {
				return err
			}

			return withLibrary(cmd, func(ctx context.Context, lib *library.Library) error {
				return lib.Move(ctx, paths[0], paths[1])
			})
		},
	}

	return cmd
}

func newImageRemoveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <path>...",
		Short: "Forget images",
		Long:  "Removes images and their tag associations from the library. A directory path removes every image below it. Files on disk are not touched.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := absPaths(args)
			if err != nil {
				return err
			}

			return withLibrary(cmd, func(ctx context.Context, lib *library.Library) error {
				for _, path := range paths {
					removed, err := lib.Untrack(ctx, path)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %d image(s) at '%s'\n", removed, path)
				}
				return nil
			})
		},
	}

	return cmd
}
