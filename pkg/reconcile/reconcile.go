// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package reconcile merges the previous component tree with a new document tree and a
// new render tree. The resulting tree has exactly the shape of the document, reuses old
// component identities wherever a match can be established, and carries bounds from
// the render tree (with a fixup pass for components the renderer did not position).
//
// Matching runs in fixed priority order:
//
//  1. document-node identity (the common case: nothing was reparsed)
//  2. identifier attribute
//  3. structural signature of the snapshots
//  4. single survivor: one unmatched old component, one unmatched document node,
//     same tag name (usually a single edited attribute)
package reconcile

import (
	"github.com/wavetermdev/compsync/pkg/comptree"
	"github.com/wavetermdev/compsync/pkg/docnode"
	"github.com/wavetermdev/compsync/pkg/rendertree"
	"github.com/wavetermdev/compsync/pkg/snapshot"
	"github.com/wavetermdev/compsync/pkg/util/logutil"
)

type Options struct {
	// StrictSingleSurvivor additionally requires equal child counts before the
	// single-survivor fallback binds a pair
	StrictSingleSurvivor bool
}

type Stats struct {
	Reused             int `json:"reused"`
	Created            int `json:"created"`
	Orphaned           int `json:"orphaned"`
	MatchedById        int `json:"matchedbyid"`
	MatchedBySignature int `json:"matchedbysignature"`
	MatchedBySurvivor  int `json:"matchedbysurvivor"`
	Positioned         int `json:"positioned"`
	FixedUp            int `json:"fixedup"`
	GlobalResets       int `json:"globalresets"`
}

// reconcileCtx is owned by a single Reconcile call and never escapes it
type reconcileCtx struct {
	opts Options

	// matching state (phases A-C), discarded wholesale on a global reset
	claims     *comptree.ClaimSet
	snapToComp map[*snapshot.Snapshot]*comptree.Node

	oldComps []*comptree.Node                      // old tree, pre-order
	newSnaps map[*docnode.Node]*snapshot.Snapshot // from the new render tree

	// rebuild state (phases D-G)
	built         *comptree.ClaimSet
	used          map[*comptree.Node]bool
	builtSnapshot map[*snapshot.Snapshot]*comptree.Node
	positioned    map[*comptree.Node]bool

	stats Stats
}

func Reconcile(oldRoots []*comptree.Node, newDocRoot *docnode.Node, renderRoots []*rendertree.Node) []*comptree.Node {
	roots, _ := ReconcileEx(oldRoots, newDocRoot, renderRoots, Options{})
	return roots
}

// ReconcileEx always runs to completion; a nil newDocRoot yields an empty tree
// and nil renderRoots leave only fixup bounds.
func ReconcileEx(oldRoots []*comptree.Node, newDocRoot *docnode.Node, renderRoots []*rendertree.Node, opts Options) ([]*comptree.Node, Stats) {
	rc := &reconcileCtx{
		opts:          opts,
		claims:        comptree.MakeClaimSet(),
		snapToComp:    make(map[*snapshot.Snapshot]*comptree.Node),
		newSnaps:      rendertree.CollectSnapshots(renderRoots),
		built:         comptree.MakeClaimSet(),
		used:          make(map[*comptree.Node]bool),
		builtSnapshot: make(map[*snapshot.Snapshot]*comptree.Node),
		positioned:    make(map[*comptree.Node]bool),
	}
	rc.indexOld(oldRoots)
	var newRoots []*comptree.Node
	if newDocRoot != nil {
		rc.mapOldToNew(newDocRoot)
		newRoots = []*comptree.Node{rc.buildTree(newDocRoot)}
		newRoots[0].ParentId = ""
	}
	rc.resetStale()
	rc.applyRenderBounds(renderRoots)
	for _, root := range newRoots {
		rc.fixBounds(root, nil)
	}
	logutil.DevPrintf("reconcile: reused:%d created:%d orphaned:%d (id:%d sig:%d survivor:%d) positioned:%d fixedup:%d resets:%d\n",
		rc.stats.Reused, rc.stats.Created, rc.stats.Orphaned,
		rc.stats.MatchedById, rc.stats.MatchedBySignature, rc.stats.MatchedBySurvivor,
		rc.stats.Positioned, rc.stats.FixedUp, rc.stats.GlobalResets)
	return newRoots, rc.stats
}

// phase A
func (rc *reconcileCtx) indexOld(oldRoots []*comptree.Node) {
	rc.oldComps = comptree.Flatten(oldRoots)
	for _, comp := range rc.oldComps {
		if comp.Tag != nil {
			rc.claims.Claim(comp.Tag, comp)
		}
		if comp.Snapshot != nil {
			rc.snapToComp[comp.Snapshot] = comp
		}
	}
}

// phases B and C
func (rc *reconcileCtx) mapOldToNew(newDocRoot *docnode.Node) {
	remaining := make(map[*docnode.Node]bool, rc.claims.Len())
	for _, tag := range rc.claims.Tags() {
		remaining[tag] = true
	}
	var missing []*docnode.Node
	newDocRoot.Walk(func(tag *docnode.Node) bool {
		if remaining[tag] {
			delete(remaining, tag)
		} else {
			missing = append(missing, tag)
		}
		return true
	})
	// pure removal: every document node still has its component
	if len(missing) == 0 {
		return
	}
	// pure addition (or full reparse with nothing to salvage): all components are new
	if len(remaining) == 0 {
		return
	}
	missing = rc.matchById(missing, remaining)
	if len(missing) == 0 || len(remaining) == 0 {
		return
	}
	missing = rc.matchBySignature(missing, remaining)
	if len(missing) == 1 && len(remaining) == 1 {
		rc.matchSingleSurvivor(missing[0], remaining)
	}
}

// remainingComps lists the components whose tags are still unmatched, in old-tree order
func (rc *reconcileCtx) remainingComps(remaining map[*docnode.Node]bool) []*comptree.Node {
	var rtn []*comptree.Node
	for _, comp := range rc.oldComps {
		tag := rc.claims.TagOf(comp)
		if tag != nil && remaining[tag] {
			rtn = append(rtn, comp)
		}
	}
	return rtn
}

func (rc *reconcileCtx) bind(tag *docnode.Node, comp *comptree.Node, remaining map[*docnode.Node]bool) {
	if oldTag := rc.claims.TagOf(comp); oldTag != nil {
		delete(remaining, oldTag)
	}
	rc.claims.Claim(tag, comp)
}

func (rc *reconcileCtx) matchById(missing []*docnode.Node, remaining map[*docnode.Node]bool) []*docnode.Node {
	oldIds := make(map[string]*comptree.Node)
	for _, comp := range rc.remainingComps(remaining) {
		if comp.Snapshot == nil {
			continue
		}
		id := comp.Snapshot.Id()
		if id == "" {
			continue
		}
		if _, found := oldIds[id]; !found {
			oldIds[id] = comp
		}
	}
	if len(oldIds) == 0 {
		return missing
	}
	rtn := missing[:0:0]
	for _, tag := range missing {
		id := tag.Id()
		comp := oldIds[id]
		if id == "" || comp == nil {
			rtn = append(rtn, tag)
			continue
		}
		delete(oldIds, id)
		rc.bind(tag, comp, remaining)
		rc.stats.MatchedById++
	}
	return rtn
}

func (rc *reconcileCtx) matchBySignature(missing []*docnode.Node, remaining map[*docnode.Node]bool) []*docnode.Node {
	// a multimap so identical siblings are matched in encounter order rather than merged
	oldSigs := make(map[uint64][]*snapshot.Snapshot)
	for _, comp := range rc.remainingComps(remaining) {
		if comp.Snapshot != nil {
			sig := comp.Snapshot.Signature()
			oldSigs[sig] = append(oldSigs[sig], comp.Snapshot)
		}
	}
	if len(oldSigs) == 0 {
		return missing
	}
	rtn := missing[:0:0]
	for _, tag := range missing {
		newSnap := rc.newSnaps[tag]
		if newSnap == nil {
			rtn = append(rtn, tag)
			continue
		}
		sig := newSnap.Signature()
		candidates := oldSigs[sig]
		if len(candidates) == 0 {
			rtn = append(rtn, tag)
			continue
		}
		comp := rc.snapToComp[candidates[0]]
		if comp == nil {
			rtn = append(rtn, tag)
			continue
		}
		oldSigs[sig] = candidates[1:]
		rc.bind(tag, comp, remaining)
		rc.stats.MatchedBySignature++
	}
	return rtn
}

// matchSingleSurvivor is a heuristic: it can pair unrelated elements when exactly one
// of each is left over by coincidence
func (rc *reconcileCtx) matchSingleSurvivor(tag *docnode.Node, remaining map[*docnode.Node]bool) {
	var oldTag *docnode.Node
	for t := range remaining {
		oldTag = t
	}
	comp := rc.claims.Get(oldTag)
	if comp == nil || comp.Snapshot == nil {
		return
	}
	if comp.Snapshot.TagName != tag.TagName() {
		return
	}
	if rc.opts.StrictSingleSurvivor && len(comp.Snapshot.Children) != tag.NumChildren() {
		return
	}
	rc.bind(tag, comp, remaining)
	rc.stats.MatchedBySurvivor++
}

// resetMatches drops every pending match; the rest of the tree is built fresh
func (rc *reconcileCtx) resetMatches() {
	rc.claims.Clear()
	clear(rc.snapToComp)
	rc.stats.GlobalResets++
}

// phase D
func (rc *reconcileCtx) buildTree(tag *docnode.Node) *comptree.Node {
	comp := rc.claims.Get(tag)
	if comp != nil && comp.TagName() != tag.TagName() {
		// the match was wrong (document nodes were reused unpredictably), don't trust any other
		logutil.DevPrintf("reconcile: discarding match %s for <%s>, resetting matches\n", comp, tag.TagName())
		rc.resetMatches()
		comp = nil
	}
	if comp != nil && rc.used[comp] {
		comp = nil
	}
	if comp == nil {
		comp = comptree.New(tag)
		rc.stats.Created++
	} else {
		rc.stats.Reused++
	}
	rc.used[comp] = true
	comp.Bind(tag)
	rc.built.Claim(tag, comp)
	comp.ResetBounds()
	if comp.Snapshot != nil {
		rc.builtSnapshot[comp.Snapshot] = comp
	}
	var children []*comptree.Node
	for _, childTag := range tag.Children() {
		children = append(children, rc.buildTree(childTag))
	}
	comp.SetChildren(children)
	return comp
}

// phase E. stale components stay linked to their old parent: a selection may still
// hold them for a frame
func (rc *reconcileCtx) resetStale() {
	for _, comp := range rc.oldComps {
		if rc.used[comp] {
			continue
		}
		comp.ResetBounds()
		comp.Snapshot = nil
		if comp.Tag != nil && rc.built.Get(comp.Tag) != nil {
			comp.Tag = nil
		}
		rc.claims.Release(comp)
		rc.stats.Orphaned++
	}
}
