package client

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mwantia/imgtag/internal/library"
)

func NewTagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage tags",
		Long:  "Create and list tags and attach them to or detach them from images.",
	}

	cmd.AddCommand(newTagCreateCommand())
	cmd.AddCommand(newTagListCommand())
	cmd.AddCommand(newTagAddCommand())
	cmd.AddCommand(newTagRemoveCommand())
	cmd.AddCommand(newTagLinkCommand())
	cmd.AddCommand(newTagUnlinkCommand())

	return cmd
}

func newTagCreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>...",
		Short: "Create tags",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(cmd, func(ctx context.Context, lib *library.Library) error {
				for _, name := range args {
					if err := lib.Store().CreateTag(ctx, name); err != nil {
						return fmt.Errorf("failed to create tag '%s': %w", name, err)
					}
				}
				return nil
			})
		},
	}

	return cmd
}

func newTagListCommand() *cobra.Command {
	var counts bool

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLibrary(cmd, func(ctx context.Context, lib *library.Library) error {
				if !counts {
					tags, err := lib.Store().ListTags(ctx)
					if err != nil {
						return err
					}
					printLines(cmd.OutOrStdout(), tags)
					return nil
				}

				usage, err := lib.Store().TagCounts(ctx)
				if err != nil {
					return err
				}
				for _, tag := range usage {
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", tag.Count, tag.Name)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&counts, "counts", "c", false, "print how many images carry each tag")

	return cmd
}

func newTagAddCommand() *cobra.Command {
	var noCreate bool

	cmd := &cobra.Command{
		Use:   "add <path> <tag>...",
		Short: "Attach tags to an image",
		Long:  "Attaches tags to a recorded image. Missing tags are created unless --no-create is set, in which case they are skipped.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := absPaths(args[:1])
			if err != nil {
				return err
			}

			return withLibrary(cmd, func(ctx context.Context, lib *library.Library) error {
				for _, tag := range args[1:] {
					if noCreate {
						err = lib.Store().AttachTag(ctx, paths[0], tag)
					} else {
						err = lib.TagImage(ctx, paths[0], tag)
					}
					if err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&noCreate, "no-create", false, "only attach tags that already exist")

	return cmd
}

func newTagRemoveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <path> <tag>...",
		Short: "Detach tags from an image",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := absPaths(args[:1])
			if err != nil {
				return err
			}

			return withLibrary(cmd, func(ctx context.Context, lib *library.Library) error {
				for _, tag := range args[1:] {
					if err := lib.UntagImage(ctx, paths[0], tag); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	return cmd
}

func parseIDs(imageArg, tagArg string) (uint, uint, error) {
	imageID, err := strconv.ParseUint(imageArg, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid image id '%s': %w", imageArg, err)
	}
	tagID, err := strconv.ParseUint(tagArg, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid tag id '%s': %w", tagArg, err)
	}
	return uint(imageID), uint(tagID), nil
}

func newTagLinkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link <image-id> <tag-id>",
		Short: "Attach a tag to an image by their ids",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			imageID, tagID, err := parseIDs(args[0], args[1])
			if err != nil {
				return err
			}

			return withLibrary(cmd, func(ctx context.Context, lib *library.Library) error {
				return lib.Store().AttachTagByID(ctx, imageID, tagID)
			})
		},
	}

	return cmd
}

func newTagUnlinkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unlink <image-id> <tag-id>",
		Short: "Detach a tag from an image by their ids",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			imageID, tagID, err := parseIDs(args[0], args[1])
			if err != nil {
				return err
			}

			return withLibrary(cmd, func(ctx context.Context, lib *library.Library) error {
				return lib.Store().DetachTagByID(ctx, imageID, tagID)
			})
		},
	}

	return cmd
}
