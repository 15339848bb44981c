package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var version = "dev"

func versionString() string {
	return fmt.Sprintf("%s %s", productName, version)
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the citadelctl version",
		Args:  cobra.NoArgs,
		// version needs no configuration
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), versionString())
			return nil
		},
	}
}
