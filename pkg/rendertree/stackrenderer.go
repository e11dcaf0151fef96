// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package rendertree

import (
	"context"
	"fmt"
	"strconv"

	"github.com/wavetermdev/compsync/pkg/docnode"
	"github.com/wavetermdev/compsync/pkg/snapshot"
)

const (
	AttrLayoutWidth  = "layout_width"
	AttrLayoutHeight = "layout_height"
	AttrOrientation  = "orientation"
	AttrVisibility   = "visibility"

	Orientation_Horizontal = "horizontal"
	Visibility_Gone        = "gone"

	DefaultItemSize = 20
	DefaultWidth    = 320
	DecorTop        = 24
)

// Viewport is the rctx understood by StackRenderer
type Viewport struct {
	Width  int
	Height int
}

// StackRenderer is a minimal linear-layout engine: children stack vertically (or
// horizontally with orientation="horizontal"), sizes come from integer layout_width /
// layout_height attributes. visibility="gone" elements get no box at all.
type StackRenderer struct {
	// Decor wraps the output in a frame box with an opaque cookie, like a system window decor
	Decor bool
}

func (sr *StackRenderer) Render(ctx context.Context, root *docnode.Node, rctx any) ([]*Node, error) {
	if root == nil {
		return nil, nil
	}
	width := DefaultWidth
	if vp, ok := rctx.(Viewport); ok && vp.Width > 0 {
		width = vp.Width
	}
	snap := snapshot.Capture(root)
	rootBox, err := sr.layout(ctx, root, snap, width)
	if err != nil {
		return nil, err
	}
	if rootBox == nil {
		return nil, nil
	}
	if !sr.Decor {
		return []*Node{rootBox}, nil
	}
	rootBox.Top += DecorTop
	rootBox.Bottom += DecorTop
	decor := &Node{
		Right:    rootBox.Right,
		Bottom:   rootBox.Bottom,
		Children: []*Node{rootBox},
		Cookie:   OpaqueCookie{Value: "decor"},
	}
	return []*Node{decor}, nil
}

// layout returns the box for node at (0,0); the caller offsets it
func (sr *StackRenderer) layout(ctx context.Context, node *docnode.Node, snap *snapshot.Snapshot, availWidth int) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if vis, _ := node.GetAttribute(docnode.AndroidNS, AttrVisibility); vis == Visibility_Gone {
		return nil, nil
	}
	if vis, _ := node.GetAttribute("", AttrVisibility); vis == Visibility_Gone {
		return nil, nil
	}
	width, err := sizeAttr(node, AttrLayoutWidth, availWidth)
	if err != nil {
		return nil, err
	}
	horizontal := layoutAttr(node, AttrOrientation) == Orientation_Horizontal
	box := &Node{Cookie: SnapshotCookie{Snapshot: snap}}
	offset := 0
	crossMax := 0
	for idx, child := range node.Children() {
		var childSnap *snapshot.Snapshot
		if snap != nil && idx < len(snap.Children) {
			childSnap = snap.Children[idx]
		}
		childAvail := width
		if horizontal {
			childAvail = DefaultItemSize
		}
		childBox, err := sr.layout(ctx, child, childSnap, childAvail)
		if err != nil {
			return nil, err
		}
		if childBox == nil {
			continue
		}
		w, h := childBox.Width(), childBox.Height()
		if horizontal {
			childBox.Left, childBox.Right = offset, offset+w
			childBox.Top, childBox.Bottom = 0, h
			offset += w
			crossMax = max(crossMax, h)
		} else {
			childBox.Left, childBox.Right = 0, w
			childBox.Top, childBox.Bottom = offset, offset+h
			offset += h
			crossMax = max(crossMax, w)
		}
		box.Children = append(box.Children, childBox)
	}
	wrapHeight := DefaultItemSize
	if node.NumChildren() > 0 {
		wrapHeight = offset
		if horizontal {
			wrapHeight = crossMax
		}
	}
	height, err := sizeAttr(node, AttrLayoutHeight, wrapHeight)
	if err != nil {
		return nil, err
	}
	box.Right = width
	box.Bottom = height
	return box, nil
}

func layoutAttr(node *docnode.Node, name string) string {
	if val, ok := node.GetAttribute(docnode.AndroidNS, name); ok {
		return val
	}
	val, _ := node.GetAttribute("", name)
	return val
}

// sizeAttr reads an integer size; "", match_parent and wrap_content fall back to def
func sizeAttr(node *docnode.Node, name string, def int) (int, error) {
	val := layoutAttr(node, name)
	switch val {
	case "", "match_parent", "fill_parent", "wrap_content":
		return def, nil
	}
	size, err := strconv.Atoi(trimUnit(val))
	if err != nil || size < 0 {
		return 0, fmt.Errorf("invalid %s %q on <%s>", name, val, node.TagName())
	}
	return size, nil
}

func trimUnit(val string) string {
	for _, unit := range []string{"dp", "px", "dip"} {
		if len(val) > len(unit) && val[len(val)-len(unit):] == unit {
			return val[:len(val)-len(unit)]
		}
	}
	return val
}
