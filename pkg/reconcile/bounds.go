// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"github.com/wavetermdev/compsync/pkg/comptree"
	"github.com/wavetermdev/compsync/pkg/rendertree"
	"github.com/wavetermdev/compsync/pkg/snapshot"
)

// MinVisibleSize keeps empty views selectable with the pointer
const MinVisibleSize = 1

// phase F
func (rc *reconcileCtx) applyRenderBounds(renderRoots []*rendertree.Node) {
	for _, root := range renderRoots {
		rc.applyBounds(root, 0, 0)
	}
}

func (rc *reconcileCtx) applyBounds(rn *rendertree.Node, parentX int, parentY int) {
	if rn == nil {
		return
	}
	if snap := rendertree.SnapshotOf(rn.Cookie); snap != nil {
		comp := rc.resolveSnapshot(snap)
		// the first box wins when several boxes come from the same element
		if comp != nil && !rc.positioned[comp] {
			rc.positioned[comp] = true
			width := max(rn.Right-rn.Left, MinVisibleSize)
			height := max(rn.Bottom-rn.Top, MinVisibleSize)
			comp.SetBounds(parentX+rn.Left, parentY+rn.Top, width, height)
			rc.stats.Positioned++
		}
	}
	parentX += rn.Left
	parentY += rn.Top
	for _, child := range rn.Children {
		rc.applyBounds(child, parentX, parentY)
	}
}

func (rc *reconcileCtx) resolveSnapshot(snap *snapshot.Snapshot) *comptree.Node {
	if comp := rc.builtSnapshot[snap]; comp != nil && (snap.Source == nil || snap.Source == comp.Tag) {
		return comp
	}
	if snap.Source == nil {
		return nil
	}
	comp := rc.built.Get(snap.Source)
	if comp == nil {
		return nil
	}
	// an earlier box already supplied both bounds and snapshot
	if rc.positioned[comp] {
		return comp
	}
	if comp.Snapshot != nil && rc.builtSnapshot[comp.Snapshot] == comp {
		delete(rc.builtSnapshot, comp.Snapshot)
	}
	comp.Snapshot = snap
	rc.builtSnapshot[snap] = comp
	return comp
}

// phase G: components the renderer produced no box for inherit the parent's position
// with zero size, then grow to cover whatever their children got
func (rc *reconcileCtx) fixBounds(comp *comptree.Node, parent *comptree.Node) {
	computeBounds := false
	if !comp.HasBounds() {
		computeBounds = true
		if parent != nil {
			comp.SetBounds(parent.Bounds.X, parent.Bounds.Y, 0, 0)
		} else {
			comp.SetBounds(0, 0, 0, 0)
		}
		rc.stats.FixedUp++
	}
	for _, child := range comp.Children {
		rc.fixBounds(child, comp)
	}
	if computeBounds && len(comp.Children) > 0 {
		rect := comp.Bounds
		for _, child := range comp.Children {
			rect = rect.Union(child.Bounds)
		}
		comp.Bounds = rect
	}
}
