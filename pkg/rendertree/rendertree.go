// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package rendertree holds the transient output of a layout pass: positioned boxes,
// relative to their parent, optionally carrying a cookie that links a box back to the
// snapshot it was rendered from.
package rendertree

import (
	"context"

	"github.com/wavetermdev/compsync/pkg/docnode"
	"github.com/wavetermdev/compsync/pkg/snapshot"
)

// Cookie is a closed sum type: SnapshotCookie or OpaqueCookie
type Cookie interface {
	isCookie()
}

type SnapshotCookie struct {
	Snapshot *snapshot.Snapshot
}

// OpaqueCookie carries renderer-private data the reconciler does not understand
type OpaqueCookie struct {
	Value any
}

func (SnapshotCookie) isCookie() {}
func (OpaqueCookie) isCookie()   {}

// SnapshotOf returns the snapshot a cookie links to, or nil
func SnapshotOf(cookie Cookie) *snapshot.Snapshot {
	switch c := cookie.(type) {
	case SnapshotCookie:
		return c.Snapshot
	case *SnapshotCookie:
		if c == nil {
			return nil
		}
		return c.Snapshot
	default:
		return nil
	}
}

type Node struct {
	Left     int
	Top      int
	Right    int
	Bottom   int
	Children []*Node
	Cookie   Cookie
}

func (n *Node) Width() int {
	return n.Right - n.Left
}

func (n *Node) Height() int {
	return n.Bottom - n.Top
}

// Walk visits n and its descendants in pre-order
func (n *Node) Walk(fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, child := range n.Children {
		child.Walk(fn)
	}
}

// CollectSnapshots indexes snapshot cookies by source document node; the first box
// for a node wins
func CollectSnapshots(roots []*Node) map[*docnode.Node]*snapshot.Snapshot {
	rtn := make(map[*docnode.Node]*snapshot.Snapshot)
	for _, root := range roots {
		root.Walk(func(n *Node) {
			snap := SnapshotOf(n.Cookie)
			if snap == nil || snap.Source == nil {
				return
			}
			if _, found := rtn[snap.Source]; !found {
				rtn[snap.Source] = snap
			}
		})
	}
	return rtn
}

// Renderer is the layout collaborator. rctx is opaque configuration (device, theme, ...).
// Render may block on I/O; it must honor ctx cancellation.
type Renderer interface {
	Render(ctx context.Context, root *docnode.Node, rctx any) ([]*Node, error)
}

type RendererFunc func(ctx context.Context, root *docnode.Node, rctx any) ([]*Node, error)

func (fn RendererFunc) Render(ctx context.Context, root *docnode.Node, rctx any) ([]*Node, error) {
	return fn(ctx, root, rctx)
}
