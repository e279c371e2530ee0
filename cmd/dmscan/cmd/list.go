package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/dmscan/internal/batch"
	"github.com/spf13/cobra"
)

func (a *app) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list <folder>",
		Short: "List the images a batch run would process, in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := batch.DiscoverImages(args[0])
			if err != nil {
				return err
			}
			for _, p := range paths {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			a.logger.Debug("listed images", "folder", args[0], "count", len(paths))
			return nil
		},
	}
}
