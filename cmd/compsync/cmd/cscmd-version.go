// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print the version number of compsync",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		WriteStdout("compsync v%s\n", CompsyncVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
