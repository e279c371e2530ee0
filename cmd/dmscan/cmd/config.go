package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/dmscan/internal/config"
	"github.com/spf13/cobra"
)

func (a *app) configCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}

	initCmd := &cobra.Command{
		Use:   "init [file]",
		Short: "Write the default configuration as YAML (default dmscan.yaml)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var file string
			if len(args) == 1 {
				file = args[0]
			}
			written, err := config.GenerateDefaultConfigFile(file)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", written)
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.WriteYAML(cmd.OutOrStdout(), *a.cfg)
		},
	}

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Print where configuration is loaded from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := config.NewLoaderWithViper(a.v)
			loader.PrintConfigInfo(cmd.OutOrStdout())
			return nil
		},
	}

	configCmd.AddCommand(initCmd, showCmd, infoCmd)
	return configCmd
}
