package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSettingsCmd(flags *configFlags) *cobra.Command {
	var savePath string

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Print the resolved cache configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := flags.resolve()
			if err != nil {
				return err
			}

			cmd.SilenceUsage = true

			config.WriteSettings(cmd.OutOrStdout())

			if savePath == "" {
				return nil
			}

			if err := config.SaveConfig(savePath); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Configuration saved to %s\n", savePath)

			return nil
		},
	}

	cmd.Flags().StringVar(&savePath, "save", "", "Write the configuration as JSON to this file")

	return cmd
}
