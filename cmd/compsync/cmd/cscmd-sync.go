// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"github.com/wavetermdev/compsync/pkg/inspect"
)

var syncJsonArg bool

var syncCmd = &cobra.Command{
	Use:   "sync <layout.xml>",
	Short: "render a layout file once and print its component tree",
	Args:  cobra.ExactArgs(1),
	RunE:  runSyncCmd,
}

func init() {
	syncCmd.Flags().BoolVar(&syncJsonArg, "json", false, "print the tree as json")
	rootCmd.AddCommand(syncCmd)
}

func runSyncCmd(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	model, _, err := openModel(cmdContext(cmd), args[0], settings)
	if err != nil {
		return err
	}
	defer model.Close()
	if syncJsonArg {
		barr, err := json.MarshalIndent(inspect.ConvertRoots(model.Components()), "", "  ")
		if err != nil {
			return err
		}
		WriteStdout("%s\n", barr)
		return nil
	}
	WriteStdout("%s", FormatTree(model.Components()))
	return nil
}
