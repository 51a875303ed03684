package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDescribeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <image-path-or-url>",
		Short: "Describe a garment image as structured item metadata",
		Long: `Send an image to the vision model and print the extracted description.
The output can be passed to recommend --item-description.

Examples:
  lookbook describe ./dress.jpg
  lookbook describe https://example.com/shirt.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := imageArg(args[0])
			if err != nil {
				return err
			}
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.logger.Sync() }()

			gen, _, err := a.generator(cmd.Context(), nil)
			if err != nil {
				return err
			}
			describer, err := a.describer(gen)
			if err != nil {
				return err
			}
			desc, err := describer.Describe(cmd.Context(), img)
			if err != nil {
				return err //nolint:wrapcheck // ErrCaption with detail
			}
			fmt.Fprintln(cmd.OutOrStdout(), desc)
			return nil
		},
	}
}
