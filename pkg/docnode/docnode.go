// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package docnode is the in-memory document tree: the editable markup tree a layout is
// defined by. Nodes are compared by pointer identity. A Document may swap its whole
// tree out at any time (see Document.Reparse), so callers must not assume a node
// survives across edits.
package docnode

import (
	"encoding/xml"
	"fmt"
	"strings"
)

const AndroidNS = "http://schemas.android.com/apk/res/android"
const IdAttrName = "id"

type Attr struct {
	Namespace string `json:"ns,omitempty"`
	Name      string `json:"name"`
	Value     string `json:"value"`
}

func (a Attr) String() string {
	if a.Namespace == "" {
		return fmt.Sprintf("%s=%q", a.Name, a.Value)
	}
	return fmt.Sprintf("{%s}%s=%q", a.Namespace, a.Name, a.Value)
}

type Node struct {
	tagName  string
	attrs    []Attr
	children []*Node
	parent   *Node
}

func MakeNode(tagName string, attrs ...Attr) *Node {
	n := &Node{tagName: tagName}
	if len(attrs) > 0 {
		n.attrs = append([]Attr(nil), attrs...)
	}
	return n
}

// E builds a node with children attached, handy for tests and literals
func E(tagName string, attrs []Attr, children ...*Node) *Node {
	n := MakeNode(tagName, attrs...)
	for _, child := range children {
		n.AppendChild(child)
	}
	return n
}

// A is shorthand for an un-namespaced attribute
func A(name string, value string) Attr {
	return Attr{Name: name, Value: value}
}

func (n *Node) TagName() string {
	if n == nil {
		return ""
	}
	return n.tagName
}

func (n *Node) SetTagName(tagName string) {
	n.tagName = tagName
}

func (n *Node) Parent() *Node {
	return n.parent
}

// Attrs returns a copy of the attribute list in document order
func (n *Node) Attrs() []Attr {
	if len(n.attrs) == 0 {
		return nil
	}
	return append([]Attr(nil), n.attrs...)
}

// Children returns a copy of the child list
func (n *Node) Children() []*Node {
	if len(n.children) == 0 {
		return nil
	}
	return append([]*Node(nil), n.children...)
}

func (n *Node) NumChildren() int {
	return len(n.children)
}

func (n *Node) ChildAt(idx int) *Node {
	if idx < 0 || idx >= len(n.children) {
		return nil
	}
	return n.children[idx]
}

func (n *Node) GetAttribute(ns string, name string) (string, bool) {
	for _, attr := range n.attrs {
		if attr.Namespace == ns && attr.Name == name {
			return attr.Value, true
		}
	}
	return "", false
}

func (n *Node) SetAttribute(ns string, name string, value string) {
	for idx := range n.attrs {
		if n.attrs[idx].Namespace == ns && n.attrs[idx].Name == name {
			n.attrs[idx].Value = value
			return
		}
	}
	n.attrs = append(n.attrs, Attr{Namespace: ns, Name: name, Value: value})
}

func (n *Node) RemoveAttribute(ns string, name string) bool {
	for idx := range n.attrs {
		if n.attrs[idx].Namespace == ns && n.attrs[idx].Name == name {
			n.attrs = append(n.attrs[:idx], n.attrs[idx+1:]...)
			return true
		}
	}
	return false
}

// Id returns the identifier attribute, preferring the android namespace
func (n *Node) Id() string {
	return IdFromAttrs(n.attrs)
}

func IdFromAttrs(attrs []Attr) string {
	plain := ""
	for _, attr := range attrs {
		if attr.Name != IdAttrName {
			continue
		}
		if attr.Namespace == AndroidNS {
			return attr.Value
		}
		if attr.Namespace == "" && plain == "" {
			plain = attr.Value
		}
	}
	return plain
}

func (n *Node) AppendChild(child *Node) {
	n.InsertChild(len(n.children), child)
}

// InsertChild detaches child from any previous parent before inserting it
func (n *Node) InsertChild(idx int, child *Node) {
	if child.parent != nil {
		child.parent.RemoveChild(child)
	}
	if idx < 0 || idx > len(n.children) {
		idx = len(n.children)
	}
	n.children = append(n.children, nil)
	copy(n.children[idx+1:], n.children[idx:])
	n.children[idx] = child
	child.parent = n
}

func (n *Node) RemoveChild(child *Node) bool {
	for idx, c := range n.children {
		if c == child {
			n.children = append(n.children[:idx], n.children[idx+1:]...)
			child.parent = nil
			return true
		}
	}
	return false
}

// Walk visits n and its descendants in document (pre-) order.
// returning false from fn skips that node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, child := range n.children {
		child.Walk(fn)
	}
}

func (n *Node) Count() int {
	count := 0
	n.Walk(func(*Node) bool {
		count++
		return true
	})
	return count
}

// Clone returns a deep copy with fresh node identities
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	rtn := MakeNode(n.tagName, n.attrs...)
	for _, child := range n.children {
		rtn.AppendChild(child.Clone())
	}
	return rtn
}

func (n *Node) String() string {
	var sb strings.Builder
	n.writeMarkup(&sb)
	return sb.String()
}

func (n *Node) writeMarkup(sb *strings.Builder) {
	if n == nil {
		return
	}
	sb.WriteString("<")
	sb.WriteString(n.tagName)
	for _, attr := range n.attrs {
		sb.WriteString(" ")
		if attr.Namespace == AndroidNS {
			sb.WriteString("android:")
		}
		sb.WriteString(attr.Name)
		sb.WriteString(`="`)
		xml.EscapeText(sb, []byte(attr.Value))
		sb.WriteString(`"`)
	}
	if len(n.children) == 0 {
		sb.WriteString("/>")
		return
	}
	sb.WriteString(">")
	for _, child := range n.children {
		child.writeMarkup(sb)
	}
	sb.WriteString("</")
	sb.WriteString(n.tagName)
	sb.WriteString(">")
}
