// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package comptree

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/wavetermdev/compsync/pkg/docnode"
	"github.com/wavetermdev/compsync/pkg/snapshot"
)

// BoundsUninitialized marks W/H as "not computed this pass"
const BoundsUninitialized = -1

type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.W, r.H)
}

// Union treats zero-size rects as points
func (r Rect) Union(o Rect) Rect {
	x1, y1 := min(r.X, o.X), min(r.Y, o.Y)
	x2, y2 := max(r.X+r.W, o.X+o.W), max(r.Y+r.H, o.Y+o.H)
	return Rect{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

// Node is a component in the persistent tree. This is the identity external code
// (selection, listeners, drag handles) holds on to, so the reconciler mutates nodes
// in place instead of replacing them whenever it can.
type Node struct {
	CompId   string             // stable id, assigned at creation
	Tag      *docnode.Node      // document node currently represented
	Snapshot *snapshot.Snapshot // latest snapshot, nil until rendered
	Bounds   Rect

	// parent is a handle (the parent's CompId), resolve it through an Index
	ParentId string
	Children []*Node

	tagName string // tag name at the time of the last bind
}

func New(tag *docnode.Node) *Node {
	return &Node{
		CompId:  uuid.New().String(),
		Tag:     tag,
		tagName: tag.TagName(),
		Bounds:  Rect{W: BoundsUninitialized, H: BoundsUninitialized},
	}
}

// TagName is the tag name this component was last bound with, which survives a
// later rename of the document node (the reconciler relies on that to detect
// corrupt matches)
func (n *Node) TagName() string {
	return n.tagName
}

// Bind points the component at a document node. Use a ClaimSet to keep claims unique.
func (n *Node) Bind(tag *docnode.Node) {
	n.Tag = tag
	n.tagName = tag.TagName()
}

// SetChildren replaces the child list and repoints every child's parent handle
func (n *Node) SetChildren(children []*Node) {
	if len(children) == 0 {
		n.Children = nil
		return
	}
	n.Children = children
	for _, child := range children {
		child.ParentId = n.CompId
	}
}

func (n *Node) ResetBounds() {
	n.Bounds = Rect{W: BoundsUninitialized, H: BoundsUninitialized}
}

func (n *Node) SetBounds(x, y, w, h int) {
	n.Bounds = Rect{X: x, Y: y, W: w, H: h}
}

func (n *Node) HasBounds() bool {
	return n.Bounds.W != BoundsUninitialized || n.Bounds.H != BoundsUninitialized
}

func (n *Node) Id() string {
	if n.Snapshot != nil {
		return n.Snapshot.Id()
	}
	if n.Tag != nil {
		return n.Tag.Id()
	}
	return ""
}

func (n *Node) String() string {
	if id := n.Id(); id != "" {
		return fmt.Sprintf("<%s id=%s>%s", n.TagName(), id, n.Bounds)
	}
	return fmt.Sprintf("<%s>%s", n.TagName(), n.Bounds)
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

func Flatten(roots []*Node) []*Node {
	var rtn []*Node
	for _, root := range roots {
		root.Walk(func(n *Node) {
			rtn = append(rtn, n)
		})
	}
	return rtn
}

func Find(roots []*Node, pred func(*Node) bool) *Node {
	for _, n := range Flatten(roots) {
		if pred(n) {
			return n
		}
	}
	return nil
}
