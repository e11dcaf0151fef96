// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/spf13/cobra"
	"github.com/wavetermdev/compsync/pkg/csconfig"
	"github.com/wavetermdev/compsync/pkg/util/utilfn"
)

var schemaOutArg string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "print the json schema of the settings file",
	Args:  cobra.NoArgs,
	RunE:  runSchemaCmd,
}

func init() {
	schemaCmd.Flags().StringVarP(&schemaOutArg, "output", "o", "", "write the schema to a file instead of stdout")
	rootCmd.AddCommand(schemaCmd)
}

func runSchemaCmd(cmd *cobra.Command, args []string) error {
	barr, err := csconfig.GenerateSettingsSchema()
	if err != nil {
		return err
	}
	if schemaOutArg == "" {
		WriteStdout("%s\n", barr)
		return nil
	}
	written, err := utilfn.WriteFileIfDifferent(schemaOutArg, barr)
	if err != nil {
		return err
	}
	if !written {
		WriteStderr("no changes to %s\n", schemaOutArg)
	}
	return nil
}
