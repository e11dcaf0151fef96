// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"context"
	"testing"

	"github.com/wavetermdev/compsync/pkg/comptree"
	"github.com/wavetermdev/compsync/pkg/docnode"
	"github.com/wavetermdev/compsync/pkg/rendertree"
	"github.com/wavetermdev/compsync/pkg/snapshot"
)

func renderDoc(t *testing.T, root *docnode.Node) []*rendertree.Node {
	t.Helper()
	sr := &rendertree.StackRenderer{}
	rtn, err := sr.Render(context.Background(), root, nil)
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	return rtn
}

func sync(t *testing.T, old []*comptree.Node, root *docnode.Node) ([]*comptree.Node, Stats) {
	t.Helper()
	roots, stats := ReconcileEx(old, root, renderDoc(t, root), Options{})
	if err := comptree.CheckStructure(roots); err != nil {
		t.Fatalf("structure check failed: %v", err)
	}
	return roots, stats
}

// byPath maps "0", "0/1", ... to components, following child indexes
func byPath(roots []*comptree.Node) map[string]*comptree.Node {
	rtn := make(map[string]*comptree.Node)
	var walk func(n *comptree.Node, path string)
	walk = func(n *comptree.Node, path string) {
		rtn[path] = n
		for idx, child := range n.Children {
			walk(child, path+"/"+string(rune('0'+idx)))
		}
	}
	for idx, root := range roots {
		walk(root, string(rune('0'+idx)))
	}
	return rtn
}

func checkShape(t *testing.T, comp *comptree.Node, tag *docnode.Node) {
	t.Helper()
	if comp.Tag != tag {
		t.Fatalf("component %s not bound to its document node <%s>", comp, tag.TagName())
	}
	if len(comp.Children) != tag.NumChildren() {
		t.Fatalf("component %s has %d children, document node has %d", comp, len(comp.Children), tag.NumChildren())
	}
	for idx, child := range comp.Children {
		checkShape(t, child, tag.ChildAt(idx))
	}
}

func checkUniqueClaims(t *testing.T, comps []*comptree.Node) {
	t.Helper()
	seen := make(map[*docnode.Node]*comptree.Node)
	for _, comp := range comps {
		if comp.Tag == nil {
			continue
		}
		if other, found := seen[comp.Tag]; found && other != comp {
			t.Fatalf("document node <%s> claimed by %s and %s", comp.Tag.TagName(), other.CompId, comp.CompId)
		}
		seen[comp.Tag] = comp
	}
}

const listMarkup = `
<LinearLayout>
	<TextView text="a" layout_height="10"/>
	<TextView text="a" layout_height="10"/>
	<Button id="go" text="go" layout_height="30"/>
	<FrameLayout>
		<ImageView src="x" layout_height="15"/>
	</FrameLayout>
</LinearLayout>`

func TestShapeAndBounds(t *testing.T) {
	doc := docnode.MustParse(listMarkup)
	roots, stats := sync(t, nil, doc)
	if len(roots) != 1 {
		t.Fatalf("expected 1 root, got %d", len(roots))
	}
	checkShape(t, roots[0], doc)
	if stats.Created != doc.Count() || stats.Reused != 0 {
		t.Errorf("expected %d created / 0 reused, got %+v", doc.Count(), stats)
	}
	for _, comp := range comptree.Flatten(roots) {
		if comp.Bounds.W < 1 || comp.Bounds.H < 1 {
			t.Errorf("component %s has bounds below the visibility floor", comp)
		}
		if comp.Snapshot == nil {
			t.Errorf("component %s has no snapshot after render", comp)
		}
	}
	p := byPath(roots)
	want := map[string]comptree.Rect{
		"0":     {X: 0, Y: 0, W: 320, H: 65},
		"0/0":   {X: 0, Y: 0, W: 320, H: 10},
		"0/1":   {X: 0, Y: 10, W: 320, H: 10},
		"0/2":   {X: 0, Y: 20, W: 320, H: 30},
		"0/3":   {X: 0, Y: 50, W: 320, H: 15},
		"0/3/0": {X: 0, Y: 50, W: 320, H: 15},
	}
	for path, rect := range want {
		if p[path].Bounds != rect {
			t.Errorf("%s: expected bounds %s, got %s", path, rect, p[path].Bounds)
		}
	}
}

func TestIdentityStableAcrossInPlaceEdit(t *testing.T) {
	doc := docnode.MustParse(listMarkup)
	roots, _ := sync(t, nil, doc)
	before := comptree.Flatten(roots)

	doc.ChildAt(2).SetAttribute("", "text", "stop")
	roots2, stats := sync(t, roots, doc)
	after := comptree.Flatten(roots2)
	if len(before) != len(after) {
		t.Fatalf("expected %d components, got %d", len(before), len(after))
	}
	for idx := range before {
		if before[idx] != after[idx] {
			t.Errorf("component %d replaced: %s -> %s", idx, before[idx], after[idx])
		}
	}
	if stats.Created != 0 || stats.Orphaned != 0 {
		t.Errorf("expected no creations/orphans, got %+v", stats)
	}
}

func TestIdentityStableAcrossReparse(t *testing.T) {
	doc := docnode.MustParse(`
<LinearLayout>
	<TextView text="a"/>
	<TextView text="a"/>
	<Button text="go"/>
</LinearLayout>`)
	roots, _ := sync(t, nil, doc)
	before := comptree.Flatten(roots)

	// full reparse: every document node is replaced, one attribute differs
	doc2 := docnode.MustParse(`
<LinearLayout>
	<TextView text="a"/>
	<TextView text="a"/>
	<Button text="stop"/>
</LinearLayout>`)
	roots2, stats := sync(t, roots, doc2)
	checkShape(t, roots2[0], doc2)
	after := comptree.Flatten(roots2)
	for idx := range before {
		if before[idx] != after[idx] {
			t.Errorf("component %d replaced: %s -> %s", idx, before[idx], after[idx])
		}
	}
	if stats.MatchedBySignature != 3 || stats.MatchedBySurvivor != 1 {
		t.Errorf("expected 3 signature matches and 1 survivor match, got %+v", stats)
	}
	if v, _ := after[3].Snapshot.GetAttribute("", "text"); v != "stop" {
		t.Errorf("edited component kept a stale snapshot (text=%q)", v)
	}
}

func TestIdempotent(t *testing.T) {
	doc := docnode.MustParse(listMarkup)
	render := renderDoc(t, doc)
	roots, _ := ReconcileEx(nil, doc, render, Options{})
	first := comptree.Flatten(roots)
	bounds := make([]comptree.Rect, len(first))
	for idx, comp := range first {
		bounds[idx] = comp.Bounds
	}
	roots2, stats := ReconcileEx(roots, doc, render, Options{})
	second := comptree.Flatten(roots2)
	if len(first) != len(second) {
		t.Fatalf("expected %d components, got %d", len(first), len(second))
	}
	for idx := range first {
		if first[idx] != second[idx] {
			t.Errorf("component %d replaced on identical input", idx)
		}
		if second[idx].Bounds != bounds[idx] {
			t.Errorf("component %d bounds changed: %s -> %s", idx, bounds[idx], second[idx].Bounds)
		}
	}
	if stats.Reused != len(first) {
		t.Errorf("expected %d reused, got %+v", len(first), stats)
	}
}

// <A><B id="x"/><C/></A> reparsed as <A><B id="x"/><D/></A>
func TestScenarioRenameAfterReparse(t *testing.T) {
	doc := docnode.MustParse(`<A><B id="x"/><C/></A>`)
	roots, _ := sync(t, nil, doc)
	oldA, oldB, oldC := roots[0], roots[0].Children[0], roots[0].Children[1]

	doc2 := docnode.MustParse(`<A><B id="x"/><D/></A>`)
	roots2, stats := sync(t, roots, doc2)
	if roots2[0].Children[0] != oldB {
		t.Errorf("B should be reused (matched by id)")
	}
	if roots2[0] != oldA {
		t.Errorf("A should be reused (matched by signature)")
	}
	newD := roots2[0].Children[1]
	if newD == oldC {
		t.Errorf("D must be a new component, tag names differ")
	}
	if newD.TagName() != "D" {
		t.Errorf("expected D, got %s", newD.TagName())
	}
	if stats.MatchedById != 1 || stats.Created != 1 || stats.Orphaned != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if oldC.HasBounds() || oldC.Snapshot != nil {
		t.Errorf("orphaned C should have reset bounds and no snapshot, got %s", oldC)
	}
	if oldC.ParentId != oldA.CompId {
		t.Errorf("orphaned C should stay linked to its old parent")
	}
}

func TestScenarioMiddleRemoved(t *testing.T) {
	doc := docnode.MustParse(`<L><I n="1"/><I n="2"/><I n="3"/></L>`)
	roots, _ := sync(t, nil, doc)
	first, middle, third := roots[0].Children[0], roots[0].Children[1], roots[0].Children[2]

	doc.RemoveChild(doc.ChildAt(1))
	roots2, stats := sync(t, roots, doc)
	if roots2[0] != roots[0] {
		t.Errorf("root should be reused")
	}
	if len(roots2[0].Children) != 2 || roots2[0].Children[0] != first || roots2[0].Children[1] != third {
		t.Fatalf("expected first and third reused, got %v", roots2[0].Children)
	}
	if middle.HasBounds() || middle.Snapshot != nil {
		t.Errorf("middle should be orphaned with reset bounds, got %s", middle)
	}
	if stats.Orphaned != 1 {
		t.Errorf("expected 1 orphan, got %+v", stats)
	}
	if third.Bounds.Y != 20 {
		t.Errorf("third should move up to y=20, got %s", third.Bounds)
	}
}

func TestMiddleRemovedAfterReparse(t *testing.T) {
	doc := docnode.MustParse(`<L><I n="1"/><I n="2"/><I n="3"/></L>`)
	roots, _ := sync(t, nil, doc)
	first, middle, third := roots[0].Children[0], roots[0].Children[1], roots[0].Children[2]

	doc2 := docnode.MustParse(`<L><I n="1"/><I n="3"/></L>`)
	roots2, stats := sync(t, roots, doc2)
	if roots2[0].Children[0] != first || roots2[0].Children[1] != third {
		t.Errorf("expected first and third matched by signature")
	}
	if stats.MatchedBySignature != 2 {
		t.Errorf("expected 2 signature matches, got %+v", stats)
	}
	if middle.HasBounds() {
		t.Errorf("middle should be orphaned")
	}
}

func TestScenarioNoRenderTree(t *testing.T) {
	doc := docnode.MustParse(`<A><B/><C/></A>`)
	roots, stats := ReconcileEx(nil, doc, nil, Options{})
	if err := comptree.CheckStructure(roots); err != nil {
		t.Fatalf("structure check failed: %v", err)
	}
	for _, comp := range comptree.Flatten(roots) {
		if comp.Bounds != (comptree.Rect{}) {
			t.Errorf("expected inherited zero bounds for %s", comp)
		}
	}
	if stats.FixedUp != 3 || stats.Positioned != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestInPlaceRenameResetsMatches(t *testing.T) {
	doc := docnode.MustParse(`<A><B/><C/></A>`)
	roots, _ := sync(t, nil, doc)
	oldA, oldB, oldC := roots[0], roots[0].Children[0], roots[0].Children[1]

	doc.ChildAt(0).SetTagName("X")
	roots2, stats := sync(t, roots, doc)
	if roots2[0] != oldA {
		t.Errorf("A precedes the corrupt match and should be reused")
	}
	if roots2[0].Children[0] == oldB || roots2[0].Children[1] == oldC {
		t.Errorf("everything after the corrupt match should be rebuilt fresh")
	}
	if stats.GlobalResets != 1 {
		t.Errorf("expected 1 global reset, got %+v", stats)
	}
	all := append(comptree.Flatten(roots2), oldB, oldC)
	checkUniqueClaims(t, all)
}

func TestNoDuplicateClaimsOverSequence(t *testing.T) {
	doc := docnode.MustParse(listMarkup)
	var roots []*comptree.Node
	var everything []*comptree.Node
	edits := []func(){
		func() { doc.ChildAt(0).SetAttribute("", "text", "b") },
		func() { doc.AppendChild(docnode.MakeNode("Space")) },
		func() { doc.ChildAt(3).SetTagName("LinearLayout") },
		func() { doc.RemoveChild(doc.ChildAt(1)) },
		func() { doc.InsertChild(0, docnode.MakeNode("TextView", docnode.A("text", "a"))) },
	}
	roots, _ = sync(t, nil, doc)
	everything = append(everything, comptree.Flatten(roots)...)
	for _, edit := range edits {
		edit()
		roots, _ = sync(t, roots, doc)
		checkShape(t, roots[0], doc)
		everything = append(everything, comptree.Flatten(roots)...)
		checkUniqueClaims(t, uniqueComps(everything))
	}
}

func uniqueComps(comps []*comptree.Node) []*comptree.Node {
	seen := make(map[*comptree.Node]bool)
	var rtn []*comptree.Node
	for _, comp := range comps {
		if !seen[comp] {
			seen[comp] = true
			rtn = append(rtn, comp)
		}
	}
	return rtn
}

func TestIdenticalSiblingsMatchInOrder(t *testing.T) {
	doc := docnode.MustParse(`<L><I/><I/><I/><J k="1"/></L>`)
	roots, _ := sync(t, nil, doc)
	old := roots[0].Children

	doc2 := docnode.MustParse(`<L><I/><I/><I/><J k="2"/></L>`)
	roots2, stats := sync(t, roots, doc2)
	for idx := range old {
		if roots2[0].Children[idx] != old[idx] {
			t.Errorf("child %d not matched in encounter order", idx)
		}
	}
	if stats.MatchedBySignature != 4 || stats.MatchedBySurvivor != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestStrictSingleSurvivor(t *testing.T) {
	oldMarkup := `<L id="l"><P k="1"><Q id="q"/></P></L>`
	// Q moves up a level, P is edited and loses its only child
	newMarkup := `<L id="l"><P k="2"/><Q id="q"/></L>`
	for _, strict := range []bool{false, true} {
		doc := docnode.MustParse(oldMarkup)
		roots, _ := sync(t, nil, doc)
		oldP, oldQ := roots[0].Children[0], roots[0].Children[0].Children[0]

		doc2 := docnode.MustParse(newMarkup)
		roots2, stats := ReconcileEx(roots, doc2, renderDoc(t, doc2), Options{StrictSingleSurvivor: strict})
		if err := comptree.CheckStructure(roots2); err != nil {
			t.Fatalf("structure check failed: %v", err)
		}
		if roots2[0] != roots[0] || roots2[0].Children[1] != oldQ {
			t.Errorf("strict=%v: L and Q should be matched by id", strict)
		}
		reused := roots2[0].Children[0] == oldP
		if reused == strict {
			t.Errorf("strict=%v: P reused=%v", strict, reused)
		}
		if strict && stats.MatchedBySurvivor != 0 {
			t.Errorf("strict mode should not pair elements with different child counts, got %+v", stats)
		}
	}
}

func TestSingleSurvivorDefault(t *testing.T) {
	doc := docnode.MustParse(`<L><P k="1"/></L>`)
	roots, _ := sync(t, nil, doc)
	oldP := roots[0].Children[0]

	doc2 := docnode.MustParse(`<L><P k="2"/></L>`)
	roots2, stats := sync(t, roots, doc2)
	if roots2[0].Children[0] != oldP {
		t.Errorf("single survivor with equal tag names should be reused")
	}
	if stats.MatchedBySurvivor != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestEmptyDocument(t *testing.T) {
	doc := docnode.MustParse(`<A><B/></A>`)
	roots, _ := sync(t, nil, doc)
	roots2, stats := ReconcileEx(roots, nil, nil, Options{})
	if len(roots2) != 0 {
		t.Fatalf("expected an empty tree, got %d roots", len(roots2))
	}
	if stats.Orphaned != 2 {
		t.Errorf("expected 2 orphans, got %+v", stats)
	}
	if roots[0].HasBounds() {
		t.Errorf("orphaned root should have reset bounds")
	}
}

func TestGoneChildInheritsParentPosition(t *testing.T) {
	doc := docnode.MustParse(`
<L>
	<A layout_height="10"/>
	<F>
		<G visibility="gone"/>
		<H layout_height="5"/>
	</F>
</L>`)
	roots, stats := sync(t, nil, doc)
	p := byPath(roots)
	gone := p["0/1/0"]
	if gone.Bounds != (comptree.Rect{X: 0, Y: 10, W: 0, H: 0}) {
		t.Errorf("gone view should inherit parent position with zero size, got %s", gone.Bounds)
	}
	if stats.FixedUp != 1 {
		t.Errorf("expected 1 fixup, got %+v", stats)
	}
}

func TestCollapsedContainerGrowsToChildren(t *testing.T) {
	doc := docnode.MustParse(`<L><F><A/><B/></F></L>`)
	f := doc.ChildAt(0)
	a, b := f.ChildAt(0), f.ChildAt(1)
	// hand-built render tree: F produced no box, its children did
	render := renderDoc(t, doc)
	rootBox := render[0]
	fBox := rootBox.Children[0]
	rootBox.Children = []*rendertree.Node{
		{Left: 5, Top: 7, Right: 15, Bottom: 9, Cookie: fBox.Children[0].Cookie},
		{Left: 20, Top: 30, Right: 22, Bottom: 40, Cookie: fBox.Children[1].Cookie},
	}
	roots, _ := ReconcileEx(nil, doc, render, Options{})
	comps := byPath(roots)
	if comps["0/0"].Tag != f || comps["0/0/0"].Tag != a || comps["0/0/1"].Tag != b {
		t.Fatalf("unexpected tree shape")
	}
	want := comptree.Rect{X: 0, Y: 0, W: 22, H: 40}
	if comps["0/0"].Bounds != want {
		t.Errorf("collapsed container should grow to %s, got %s", want, comps["0/0"].Bounds)
	}
}

func TestDecorOffsetsAndOpaqueCookies(t *testing.T) {
	doc := docnode.MustParse(`<L><A layout_height="10"/><B layout_height="10"/></L>`)
	sr := &rendertree.StackRenderer{Decor: true}
	render, err := sr.Render(context.Background(), doc, rendertree.Viewport{Width: 100})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	roots, _ := ReconcileEx(nil, doc, render, Options{})
	p := byPath(roots)
	if p["0"].Bounds != (comptree.Rect{X: 0, Y: rendertree.DecorTop, W: 100, H: 20}) {
		t.Errorf("unexpected root bounds %s", p["0"].Bounds)
	}
	if p["0/1"].Bounds != (comptree.Rect{X: 0, Y: rendertree.DecorTop + 10, W: 100, H: 10}) {
		t.Errorf("unexpected child bounds %s", p["0/1"].Bounds)
	}
}

func TestZeroSizeBoxClamped(t *testing.T) {
	doc := docnode.MustParse(`<L><A layout_height="0"/></L>`)
	roots, _ := sync(t, nil, doc)
	a := roots[0].Children[0]
	if a.Bounds.H != MinVisibleSize {
		t.Errorf("zero height should clamp to %d, got %s", MinVisibleSize, a.Bounds)
	}
}

func TestDuplicateBoxesKeepFirstSnapshot(t *testing.T) {
	doc := docnode.MustParse(`<L><A/></L>`)
	a := doc.ChildAt(0)
	first := snapshot.Capture(a)
	second := snapshot.Capture(a)
	render := []*rendertree.Node{{
		Right:  100,
		Bottom: 50,
		Cookie: rendertree.SnapshotCookie{Snapshot: snapshot.Capture(doc)},
		Children: []*rendertree.Node{
			{Left: 0, Top: 0, Right: 50, Bottom: 10, Cookie: rendertree.SnapshotCookie{Snapshot: first}},
			{Left: 0, Top: 20, Right: 60, Bottom: 30, Cookie: rendertree.SnapshotCookie{Snapshot: second}},
		},
	}}
	roots, stats := ReconcileEx(nil, doc, render, Options{})
	comp := roots[0].Children[0]
	if comp.Snapshot != first {
		t.Errorf("component should keep the first box's snapshot")
	}
	if comp.Bounds != (comptree.Rect{X: 0, Y: 0, W: 50, H: 10}) {
		t.Errorf("component should keep the first box's bounds, got %s", comp.Bounds)
	}
	if stats.Positioned != 2 {
		t.Errorf("expected 2 positioned components, got %d", stats.Positioned)
	}
}
