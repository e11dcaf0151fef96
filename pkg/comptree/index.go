// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package comptree

import (
	"github.com/wavetermdev/compsync/pkg/docnode"
)

// Index resolves CompId handles (including parent handles) for one tree
type Index struct {
	byId map[string]*Node
}

func MakeIndex(roots []*Node) *Index {
	idx := &Index{byId: make(map[string]*Node)}
	for _, root := range roots {
		root.Walk(func(n *Node) {
			idx.byId[n.CompId] = n
		})
	}
	return idx
}

func (idx *Index) Get(compId string) *Node {
	if idx == nil {
		return nil
	}
	return idx.byId[compId]
}

// Parent returns nil for roots and for nodes outside the indexed tree
func (idx *Index) Parent(n *Node) *Node {
	if n == nil || n.ParentId == "" {
		return nil
	}
	return idx.Get(n.ParentId)
}

func (idx *Index) Contains(n *Node) bool {
	return n != nil && idx.Get(n.CompId) == n
}

func (idx *Index) Len() int {
	return len(idx.byId)
}

// ClaimSet keeps the document-node -> component mapping one-to-one.
// claiming a tag for a component revokes that component's previous claim, and the
// tag's previous owner loses it.
type ClaimSet struct {
	tagToComp map[*docnode.Node]*Node
	compToTag map[*Node]*docnode.Node
}

func MakeClaimSet() *ClaimSet {
	return &ClaimSet{
		tagToComp: make(map[*docnode.Node]*Node),
		compToTag: make(map[*Node]*docnode.Node),
	}
}

func (cs *ClaimSet) Claim(tag *docnode.Node, comp *Node) {
	if prevTag, ok := cs.compToTag[comp]; ok {
		delete(cs.tagToComp, prevTag)
	}
	if prevComp, ok := cs.tagToComp[tag]; ok && prevComp != comp {
		delete(cs.compToTag, prevComp)
	}
	cs.compToTag[comp] = tag
	cs.tagToComp[tag] = comp
}

func (cs *ClaimSet) Get(tag *docnode.Node) *Node {
	return cs.tagToComp[tag]
}

func (cs *ClaimSet) TagOf(comp *Node) *docnode.Node {
	return cs.compToTag[comp]
}

func (cs *ClaimSet) Release(comp *Node) {
	if tag, ok := cs.compToTag[comp]; ok {
		delete(cs.tagToComp, tag)
		delete(cs.compToTag, comp)
	}
}

func (cs *ClaimSet) Clear() {
	clear(cs.tagToComp)
	clear(cs.compToTag)
}

func (cs *ClaimSet) Len() int {
	return len(cs.tagToComp)
}

// Tags returns the claimed document nodes (unordered)
func (cs *ClaimSet) Tags() []*docnode.Node {
	rtn := make([]*docnode.Node, 0, len(cs.tagToComp))
	for tag := range cs.tagToComp {
		rtn = append(rtn, tag)
	}
	return rtn
}

// Components returns the components holding a claim (unordered)
func (cs *ClaimSet) Components() []*Node {
	rtn := make([]*Node, 0, len(cs.compToTag))
	for comp := range cs.compToTag {
		rtn = append(rtn, comp)
	}
	return rtn
}
