// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/wavetermdev/compsync/pkg/comptree"
	"github.com/wavetermdev/compsync/pkg/csconfig"
	"github.com/wavetermdev/compsync/pkg/docnode"
	"github.com/wavetermdev/compsync/pkg/layoutmodel"
	"golang.org/x/term"
)

const clearScreen = "\x1b[H\x1b[2J"

var watchQuietArg bool

var watchCmd = &cobra.Command{
	Use:   "watch <layout.xml>",
	Short: "re-sync the component tree every time the layout file changes",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatchCmd,
}

func init() {
	watchCmd.Flags().BoolVarP(&watchQuietArg, "quiet", "q", false, "print only reconciliation stats, not the tree")
	rootCmd.AddCommand(watchCmd)
}

func runWatchCmd(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	model, doc, err := openModel(cmdContext(cmd), args[0], settings)
	if err != nil {
		return err
	}
	defer model.Close()
	model.ReadTx(func(roots []*comptree.Node, version int64, lastErr error) {
		WriteStdout("%s", FormatTree(roots))
	})
	model.AddListener(printUpdate)
	return watchFiles(cmdContext(cmd), args[0], model, doc)
}

func printUpdate(event layoutmodel.UpdateEvent) {
	if event.Err != nil {
		WriteStderr("render error: %v\n", event.Err)
	}
	if !watchQuietArg && stdoutIsTerminal() {
		WriteStdout("%s", clearScreen)
	}
	WriteStdout("-- v%d %s\n", event.Version, FormatStats(event.Stats))
	if !watchQuietArg {
		WriteStdout("%s", FormatTree(event.Roots))
	}
}

// stdoutIsTerminal is false when Stdout is redirected (or replaced in tests)
func stdoutIsTerminal() bool {
	fd, ok := Stdout.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(fd.Fd()))
}

// watchFiles reparses the layout file (and reloads settings) on change until ctx is done.
// A reparse fires an edit event, which schedules the model update.
func watchFiles(ctx context.Context, fileName string, model *layoutmodel.Model, doc *docnode.Document) error {
	watcher, err := csconfig.MakeFileWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	err = watcher.Watch(fileName, func(name string) {
		if err := reparseFile(doc, name); err != nil {
			log.Printf("[error] reparsing %s: %v\n", name, err)
		}
	})
	if err != nil {
		return err
	}
	if settingsFileArg != "" {
		err = watcher.Watch(settingsFileArg, func(name string) {
			settings, err := csconfig.ReadSettingsWithEnvFile(name, envFileArg)
			if err != nil {
				log.Printf("[error] reloading settings: %v\n", err)
				return
			}
			settings.Apply()
			model.Queue().SetDelay(settings.Debounce())
			log.Printf("settings reloaded (debounce %v)\n", settings.Debounce())
		})
		if err != nil {
			return err
		}
	}
	log.Printf("watching %s\n", fileName)
	<-ctx.Done()
	return nil
}
