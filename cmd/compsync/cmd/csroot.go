// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/wavetermdev/compsync/pkg/comptree"
	"github.com/wavetermdev/compsync/pkg/csconfig"
	"github.com/wavetermdev/compsync/pkg/docnode"
	"github.com/wavetermdev/compsync/pkg/layoutmodel"
	"github.com/wavetermdev/compsync/pkg/reconcile"
	"github.com/wavetermdev/compsync/pkg/rendertree"
)

const CompsyncVersion = "0.1.0"

var (
	rootCmd = &cobra.Command{
		Use:          "compsync",
		Short:        "keep a component tree in sync with a layout document",
		Long:         `compsync parses a layout markup file, renders it with a simple stack layout engine and maintains an identity-stable component tree with bounds.`,
		SilenceUsage: true,
	}
)

var settingsFileArg string
var envFileArg string
var decorArg bool
var viewportWidthArg int

var Stdout io.Writer = os.Stdout
var Stderr io.Writer = os.Stderr

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsFileArg, "settings", "", "settings file (json, or ini for .ini files)")
	rootCmd.PersistentFlags().StringVar(&envFileArg, "env-file", "", "dotenv file with COMPSYNC_* overrides")
	rootCmd.PersistentFlags().BoolVar(&decorArg, "decor", false, "wrap the rendered layout in a window decor frame")
	rootCmd.PersistentFlags().IntVar(&viewportWidthArg, "width", rendertree.DefaultWidth, "viewport width")
}

func WriteStdout(fmtStr string, args ...any) {
	fmt.Fprintf(Stdout, fmtStr, args...)
}

func WriteStderr(fmtStr string, args ...any) {
	fmt.Fprintf(Stderr, fmtStr, args...)
}

func Execute() {
	ctx, cancelFn := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancelFn()
	if err != nil {
		os.Exit(1)
	}
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func loadSettings() (csconfig.SettingsType, error) {
	settings, err := csconfig.ReadSettingsWithEnvFile(settingsFileArg, envFileArg)
	if err != nil {
		return settings, err
	}
	settings.Apply()
	return settings, nil
}

func readMarkupFile(fileName string) (*docnode.Node, error) {
	fd, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer fd.Close()
	root, err := docnode.ParseMarkup(fd)
	if err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", fileName, err)
	}
	return root, nil
}

// openModel parses the markup file and performs the first synchronous render
func openModel(ctx context.Context, fileName string, settings csconfig.SettingsType) (*layoutmodel.Model, *docnode.Document, error) {
	root, err := readMarkupFile(fileName)
	if err != nil {
		return nil, nil, err
	}
	doc := docnode.MakeDocument(root)
	cfg := settings.ModelConfig()
	cfg.RenderContext = rendertree.Viewport{Width: viewportWidthArg}
	model := layoutmodel.MakeModel(doc, &rendertree.StackRenderer{Decor: decorArg}, cfg)
	if err := model.RenderNow(ctx); err != nil {
		WriteStderr("render error: %v\n", err)
	}
	return model, doc, nil
}

func reparseFile(doc *docnode.Document, fileName string) error {
	fd, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer fd.Close()
	return doc.Reparse(fd)
}

func FormatTree(roots []*comptree.Node) string {
	var sb strings.Builder
	var write func(n *comptree.Node, depth int)
	write = func(n *comptree.Node, depth int) {
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(n.TagName())
		if id := n.Id(); id != "" {
			sb.WriteString(" " + id)
		}
		sb.WriteString(fmt.Sprintf(" %s [%s]\n", n.Bounds, shortId(n.CompId)))
		for _, child := range n.Children {
			write(child, depth+1)
		}
	}
	for _, root := range roots {
		write(root, 0)
	}
	return sb.String()
}

func FormatStats(stats reconcile.Stats) string {
	return fmt.Sprintf("reused:%d created:%d orphaned:%d (id:%d sig:%d survivor:%d) positioned:%d fixedup:%d resets:%d",
		stats.Reused, stats.Created, stats.Orphaned,
		stats.MatchedById, stats.MatchedBySignature, stats.MatchedBySurvivor,
		stats.Positioned, stats.FixedUp, stats.GlobalResets)
}

func shortId(compId string) string {
	if len(compId) > 8 {
		return compId[:8]
	}
	return compId
}
