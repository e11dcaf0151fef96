// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package rendertree

import (
	"context"
	"errors"
	"testing"

	"github.com/wavetermdev/compsync/pkg/docnode"
	"github.com/wavetermdev/compsync/pkg/snapshot"
)

func render(t *testing.T, sr *StackRenderer, markup string, rctx any) ([]*Node, *docnode.Node) {
	t.Helper()
	root := docnode.MustParse(markup)
	boxes, err := sr.Render(context.Background(), root, rctx)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	return boxes, root
}

func checkBox(t *testing.T, n *Node, left, top, right, bottom int) {
	t.Helper()
	if n.Left != left || n.Top != top || n.Right != right || n.Bottom != bottom {
		t.Errorf("expected box (%d,%d,%d,%d), got (%d,%d,%d,%d)", left, top, right, bottom, n.Left, n.Top, n.Right, n.Bottom)
	}
}

func TestVerticalStack(t *testing.T) {
	boxes, root := render(t, &StackRenderer{}, `<L><A layout_height="10"/><B layout_height="15dp" layout_width="100"/><C/></L>`, nil)
	if len(boxes) != 1 {
		t.Fatalf("expected 1 root box, got %d", len(boxes))
	}
	box := boxes[0]
	checkBox(t, box, 0, 0, DefaultWidth, 10+15+DefaultItemSize)
	checkBox(t, box.Children[0], 0, 0, DefaultWidth, 10)
	checkBox(t, box.Children[1], 0, 10, 100, 25)
	checkBox(t, box.Children[2], 0, 25, DefaultWidth, 25+DefaultItemSize)
	if SnapshotOf(box.Cookie).Source != root {
		t.Errorf("root box should carry the root snapshot")
	}
	if SnapshotOf(box.Children[1].Cookie).Source != root.ChildAt(1) {
		t.Errorf("child box should carry the child snapshot")
	}
}

func TestHorizontalStack(t *testing.T) {
	boxes, _ := render(t, &StackRenderer{}, `<L android:orientation="horizontal"><A layout_width="30" layout_height="5"/><B layout_width="40" layout_height="8"/></L>`, Viewport{Width: 200})
	box := boxes[0]
	checkBox(t, box, 0, 0, 200, 8)
	checkBox(t, box.Children[0], 0, 0, 30, 5)
	checkBox(t, box.Children[1], 30, 0, 70, 8)
}

func TestGoneProducesNoBox(t *testing.T) {
	boxes, _ := render(t, &StackRenderer{}, `<L><A visibility="gone"/><B layout_height="10"/></L>`, nil)
	if len(boxes[0].Children) != 1 {
		t.Fatalf("gone child should have no box, got %d children", len(boxes[0].Children))
	}
	checkBox(t, boxes[0].Children[0], 0, 0, DefaultWidth, 10)
	rootGone, _ := render(t, &StackRenderer{}, `<L android:visibility="gone"/>`, nil)
	if len(rootGone) != 0 {
		t.Errorf("gone root should render nothing")
	}
}

func TestDecor(t *testing.T) {
	boxes, _ := render(t, &StackRenderer{Decor: true}, `<L layout_height="50"/>`, nil)
	if len(boxes) != 1 {
		t.Fatalf("expected a decor box")
	}
	decor := boxes[0]
	if SnapshotOf(decor.Cookie) != nil {
		t.Errorf("decor should carry an opaque cookie")
	}
	if _, ok := decor.Cookie.(OpaqueCookie); !ok {
		t.Errorf("unexpected decor cookie %T", decor.Cookie)
	}
	checkBox(t, decor.Children[0], 0, DecorTop, DefaultWidth, DecorTop+50)
}

func TestInvalidSize(t *testing.T) {
	root := docnode.MustParse(`<L><A layout_height="tall"/></L>`)
	if _, err := (&StackRenderer{}).Render(context.Background(), root, nil); err == nil {
		t.Errorf("expected an error for a non-numeric size")
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancelFn := context.WithCancel(context.Background())
	cancelFn()
	_, err := (&StackRenderer{}).Render(ctx, docnode.MustParse(`<L/>`), nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNilRoot(t *testing.T) {
	boxes, err := (&StackRenderer{}).Render(context.Background(), nil, nil)
	if err != nil || boxes != nil {
		t.Errorf("nil root should render nothing, got %v %v", boxes, err)
	}
}

func TestSnapshotOf(t *testing.T) {
	snap := snapshot.Capture(docnode.MakeNode("A"))
	if SnapshotOf(SnapshotCookie{Snapshot: snap}) != snap {
		t.Errorf("value cookie")
	}
	if SnapshotOf(&SnapshotCookie{Snapshot: snap}) != snap {
		t.Errorf("pointer cookie")
	}
	var nilCookie *SnapshotCookie
	if SnapshotOf(nilCookie) != nil || SnapshotOf(nil) != nil || SnapshotOf(OpaqueCookie{Value: snap}) != nil {
		t.Errorf("non-snapshot cookies should resolve to nil")
	}
}

func TestCollectSnapshotsFirstWins(t *testing.T) {
	a := docnode.MakeNode("A")
	first := snapshot.Capture(a)
	second := snapshot.Capture(a)
	roots := []*Node{{
		Cookie: OpaqueCookie{},
		Children: []*Node{
			{Cookie: SnapshotCookie{Snapshot: first}},
			{Cookie: SnapshotCookie{Snapshot: second}},
		},
	}}
	snaps := CollectSnapshots(roots)
	if len(snaps) != 1 || snaps[a] != first {
		t.Errorf("expected the first snapshot to win, got %v", snaps)
	}
}
