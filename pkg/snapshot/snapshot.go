// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package snapshot captures immutable, point-in-time copies of document nodes.
// Renderers attach snapshots to their output boxes so positions can be traced back
// to the document state they were computed from.
package snapshot

import (
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/wavetermdev/compsync/pkg/docnode"
)

// Snapshot must not be mutated after Capture/Make returns.
// identity (pointer) matters: the reconciler keys maps by *Snapshot.
type Snapshot struct {
	TagName  string
	Attrs    []docnode.Attr
	Children []*Snapshot
	Source   *docnode.Node // the document node that was captured, may be stale

	sigOnce sync.Once
	sig     uint64
}

// Make builds a snapshot from explicit parts (source may be nil)
func Make(source *docnode.Node, tagName string, attrs []docnode.Attr, children ...*Snapshot) *Snapshot {
	return &Snapshot{
		TagName:  tagName,
		Attrs:    append([]docnode.Attr(nil), attrs...),
		Children: children,
		Source:   source,
	}
}

// Capture deep-copies node and its subtree
func Capture(node *docnode.Node) *Snapshot {
	if node == nil {
		return nil
	}
	var children []*Snapshot
	for _, child := range node.Children() {
		children = append(children, Capture(child))
	}
	return &Snapshot{
		TagName:  node.TagName(),
		Attrs:    node.Attrs(),
		Children: children,
		Source:   node,
	}
}

// Signature is a structural fingerprint over tag name, attributes and child count.
// equal signatures mean "probably the same element"; collisions are possible.
func (s *Snapshot) Signature() uint64 {
	s.sigOnce.Do(func() {
		s.sig = computeSignature(s.TagName, s.Attrs, len(s.Children))
	})
	return s.sig
}

func computeSignature(tagName string, attrs []docnode.Attr, numChildren int) uint64 {
	d := xxhash.New()
	// field separators keep ("ab","c") distinct from ("a","bc")
	d.WriteString(tagName)
	d.Write([]byte{0})
	for _, attr := range attrs {
		d.WriteString(attr.Namespace)
		d.Write([]byte{1})
		d.WriteString(attr.Name)
		d.Write([]byte{2})
		d.WriteString(attr.Value)
		d.Write([]byte{3})
	}
	d.WriteString(strconv.Itoa(numChildren))
	return d.Sum64()
}

func (s *Snapshot) GetAttribute(ns string, name string) (string, bool) {
	for _, attr := range s.Attrs {
		if attr.Namespace == ns && attr.Name == name {
			return attr.Value, true
		}
	}
	return "", false
}

func (s *Snapshot) Id() string {
	return docnode.IdFromAttrs(s.Attrs)
}

// Walk visits s and its descendants in pre-order
func (s *Snapshot) Walk(fn func(*Snapshot)) {
	if s == nil {
		return
	}
	fn(s)
	for _, child := range s.Children {
		child.Walk(fn)
	}
}
