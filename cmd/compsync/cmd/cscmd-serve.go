// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/spf13/cobra"
	"github.com/wavetermdev/compsync/pkg/inspect"
	"golang.org/x/sync/errgroup"
)

var serveAddrArg string

var serveCmd = &cobra.Command{
	Use:   "serve <layout.xml>",
	Short: "watch a layout file and serve its live component tree over http/websocket",
	Args:  cobra.ExactArgs(1),
	RunE:  runServeCmd,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddrArg, "addr", "", "listen address (overrides the inspectaddr setting)")
	rootCmd.AddCommand(serveCmd)
}

func runServeCmd(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	addr := settings.InspectAddr
	if serveAddrArg != "" {
		addr = serveAddrArg
	}
	model, doc, err := openModel(cmdContext(cmd), args[0], settings)
	if err != nil {
		return err
	}
	defer model.Close()
	server := inspect.MakeServer(model)
	defer server.Close()
	g, ctx := errgroup.WithContext(cmdContext(cmd))
	g.Go(func() error {
		return server.Run(ctx, addr)
	})
	g.Go(func() error {
		return watchFiles(ctx, args[0], model, doc)
	})
	return g.Wait()
}
