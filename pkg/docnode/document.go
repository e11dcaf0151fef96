// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package docnode

import (
	"fmt"
	"io"
	"sync"

	"github.com/wavetermdev/compsync/pkg/panichandler"
	"github.com/wavetermdev/compsync/pkg/utilds"
)

const (
	EditType_Attr    = "attr"
	EditType_Insert  = "insert"
	EditType_Remove  = "remove"
	EditType_Rename  = "rename"
	EditType_Reparse = "reparse"
)

type EditEvent struct {
	EditType string
	Node     *Node // nil for reparse
}

type EditListener func(EditEvent)

// Document owns a document tree and reports edits to listeners.
// Listeners run synchronously on the editing goroutine, after the lock is released.
type Document struct {
	lock      sync.RWMutex
	root      *Node
	listeners utilds.IdList[EditListener]
}

func MakeDocument(root *Node) *Document {
	return &Document{root: root}
}

func (d *Document) Root() *Node {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return d.root
}

func (d *Document) SetRoot(root *Node) {
	d.lock.Lock()
	d.root = root
	d.lock.Unlock()
	d.fireEdit(EditEvent{EditType: EditType_Reparse})
}

// Reparse replaces the whole tree; every node identity changes
func (d *Document) Reparse(r io.Reader) error {
	root, err := ParseMarkup(r)
	if err != nil {
		return err
	}
	d.SetRoot(root)
	return nil
}

func (d *Document) GetAttribute(node *Node, ns string, name string) (string, bool) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return node.GetAttribute(ns, name)
}

func (d *Document) SetAttribute(node *Node, ns string, name string, value string) {
	d.lock.Lock()
	node.SetAttribute(ns, name, value)
	d.lock.Unlock()
	d.fireEdit(EditEvent{EditType: EditType_Attr, Node: node})
}

func (d *Document) RemoveAttribute(node *Node, ns string, name string) {
	d.lock.Lock()
	removed := node.RemoveAttribute(ns, name)
	d.lock.Unlock()
	if removed {
		d.fireEdit(EditEvent{EditType: EditType_Attr, Node: node})
	}
}

func (d *Document) InsertChild(parent *Node, idx int, child *Node) {
	d.lock.Lock()
	parent.InsertChild(idx, child)
	d.lock.Unlock()
	d.fireEdit(EditEvent{EditType: EditType_Insert, Node: child})
}

func (d *Document) AppendChild(parent *Node, child *Node) {
	d.InsertChild(parent, -1, child)
}

func (d *Document) RemoveNode(node *Node) error {
	d.lock.Lock()
	if node == d.root {
		d.root = nil
		d.lock.Unlock()
		d.fireEdit(EditEvent{EditType: EditType_Remove, Node: node})
		return nil
	}
	parent := node.Parent()
	if parent == nil || !parent.RemoveChild(node) {
		d.lock.Unlock()
		return fmt.Errorf("node <%s> is not attached to this document", node.TagName())
	}
	d.lock.Unlock()
	d.fireEdit(EditEvent{EditType: EditType_Remove, Node: node})
	return nil
}

func (d *Document) RenameTag(node *Node, tagName string) {
	d.lock.Lock()
	node.SetTagName(tagName)
	d.lock.Unlock()
	d.fireEdit(EditEvent{EditType: EditType_Rename, Node: node})
}

// ReadTx runs fn under the read lock, for walking the tree while no edit can land
func (d *Document) ReadTx(fn func(root *Node)) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	fn(d.root)
}

func (d *Document) AddEditListener(fn EditListener) string {
	return d.listeners.Register(fn)
}

func (d *Document) RemoveEditListener(id string) {
	d.listeners.Unregister(id)
}

func (d *Document) fireEdit(event EditEvent) {
	for _, fn := range d.listeners.GetList() {
		callEditListener(fn, event)
	}
}

func callEditListener(fn EditListener, event EditEvent) {
	defer func() {
		panichandler.PanicHandler(fmt.Sprintf("document edit listener (%s)", event.EditType), recover())
	}()
	fn(event)
}
