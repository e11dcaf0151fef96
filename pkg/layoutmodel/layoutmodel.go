// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package layoutmodel owns the live component tree for one document. Document changes
// and render requests go through a coalescing update queue; each completed refresh
// renders the document, reconciles the component tree and publishes it to listeners.
package layoutmodel

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/wavetermdev/compsync/pkg/comptree"
	"github.com/wavetermdev/compsync/pkg/docnode"
	"github.com/wavetermdev/compsync/pkg/panichandler"
	"github.com/wavetermdev/compsync/pkg/reconcile"
	"github.com/wavetermdev/compsync/pkg/rendertree"
	"github.com/wavetermdev/compsync/pkg/updatequeue"
	"github.com/wavetermdev/compsync/pkg/util/logutil"
	"github.com/wavetermdev/compsync/pkg/utilds"
)

const (
	TaskName_ModelUpdate = "model.update"
	TaskName_ModelRender = "model.render"
	TaskTarget_Model     = "model"
)

const ErrCode_Render = "render"

// DocumentSource is the document the model mirrors
type DocumentSource interface {
	Root() *docnode.Node
	GetAttribute(node *docnode.Node, ns string, name string) (string, bool)
	SetAttribute(node *docnode.Node, ns string, name string, value string)
}

// editSource is implemented by sources (docnode.Document) that report their own edits
type editSource interface {
	AddEditListener(fn docnode.EditListener) string
	RemoveEditListener(id string)
}

type txSource interface {
	ReadTx(fn func(root *docnode.Node))
}

type Config struct {
	// negative selects updatequeue.DefaultDelay
	Delay          time.Duration
	Reconcile      reconcile.Options
	CheckIntegrity bool
	// passed through to the renderer
	RenderContext any
}

type UpdateEvent struct {
	Roots   []*comptree.Node
	Stats   reconcile.Stats
	Err     error // render failure; the tree was still reconciled
	Version int64
}

type UpdateListener func(UpdateEvent)

type Model struct {
	doc      DocumentSource
	renderer rendertree.Renderer
	cfg      Config
	queue    *updatequeue.Queue

	// serializes whole refreshes so versions publish in order
	refreshLock sync.Mutex

	lock    sync.RWMutex
	roots   []*comptree.Node
	version int64
	lastErr error

	cbLock          sync.Mutex
	renderCallbacks []func()

	listeners    utilds.IdList[UpdateListener]
	editListenId string
}

func MakeModel(doc DocumentSource, renderer rendertree.Renderer, cfg Config) *Model {
	m := &Model{
		doc:      doc,
		renderer: renderer,
		cfg:      cfg,
		queue:    updatequeue.MakeQueue("android.layout.rendering", cfg.Delay),
	}
	if es, ok := doc.(editSource); ok {
		m.editListenId = es.AddEditListener(func(event docnode.EditEvent) {
			m.RequestModelUpdate()
		})
	}
	return m
}

func MakeRenderError(err error) error {
	return utilds.MakeCodedError(ErrCode_Render, fmt.Errorf("render failed: %w", err))
}

func IsRenderError(err error) bool {
	return utilds.GetErrorCode(err) == ErrCode_Render
}

func (m *Model) Document() DocumentSource {
	return m.doc
}

func (m *Model) Queue() *updatequeue.Queue {
	return m.queue
}

func (m *Model) AddListener(fn UpdateListener) string {
	return m.listeners.Register(fn)
}

func (m *Model) RemoveListener(id string) bool {
	return m.listeners.Unregister(id)
}

// RequestModelUpdate schedules a refresh after a document change. It supersedes a
// pending render-only refresh.
func (m *Model) RequestModelUpdate() {
	m.enqueue(TaskName_ModelUpdate, updatequeue.PriorityHigh)
}

func (m *Model) RequestRender() {
	m.enqueue(TaskName_ModelRender, updatequeue.PriorityLow)
}

// RequestRenderWithCallback runs fn once after the next completed refresh
func (m *Model) RequestRenderWithCallback(fn func()) {
	m.cbLock.Lock()
	m.renderCallbacks = append(m.renderCallbacks, fn)
	m.cbLock.Unlock()
	m.RequestRender()
}

func (m *Model) enqueue(name string, prio updatequeue.Priority) {
	err := m.queue.Enqueue(updatequeue.Task{
		Name:     name,
		Priority: prio,
		Target:   TaskTarget_Model,
		Run: func(ctx context.Context) {
			m.refresh(ctx, name)
		},
	})
	if err != nil {
		logutil.DevPrintf("layoutmodel: dropping %s: %v\n", name, err)
	}
}

// RenderNow refreshes synchronously on the calling goroutine. The returned error is
// the render failure, if any; the tree is published either way.
func (m *Model) RenderNow(ctx context.Context) error {
	return m.refresh(ctx, "render-now")
}

// Flush runs queued refreshes immediately and waits for them
func (m *Model) Flush(ctx context.Context) error {
	return m.queue.Flush(ctx)
}

// Deactivate drops queued refreshes (the document is no longer shown)
func (m *Model) Deactivate() {
	m.queue.CancelAll()
}

func (m *Model) Close() {
	if m.editListenId != "" {
		if es, ok := m.doc.(editSource); ok {
			es.RemoveEditListener(m.editListenId)
		}
	}
	m.queue.Close()
}

func (m *Model) refresh(ctx context.Context, reason string) error {
	m.refreshLock.Lock()
	defer m.refreshLock.Unlock()
	m.cbLock.Lock()
	callbacks := m.renderCallbacks
	m.renderCallbacks = nil
	m.cbLock.Unlock()

	startTs := time.Now()
	var roots []*comptree.Node
	var stats reconcile.Stats
	var renderErr error
	var version int64
	m.readDoc(func(docRoot *docnode.Node) {
		var renderRoots []*rendertree.Node
		if docRoot != nil && m.renderer != nil {
			renderRoots, renderErr = m.render(ctx, docRoot)
			if renderErr != nil {
				log.Printf("[error] layoutmodel %s: %v\n", reason, renderErr)
				renderRoots = nil
			}
		}
		m.lock.Lock()
		defer m.lock.Unlock()
		roots, stats = reconcile.ReconcileEx(m.roots, docRoot, renderRoots, m.cfg.Reconcile)
		m.roots = roots
		m.version++
		m.lastErr = renderErr
		version = m.version
	})

	if m.cfg.CheckIntegrity {
		if err := comptree.CheckStructure(roots); err != nil {
			log.Printf("[error] layoutmodel integrity check failed (v%d): %v\n", version, err)
		}
	}
	logutil.DevPrintf("layoutmodel %s: v%d in %v\n", reason, version, time.Since(startTs))
	event := UpdateEvent{Roots: roots, Stats: stats, Err: renderErr, Version: version}
	for _, fn := range m.listeners.GetList() {
		callListener(fn, event)
	}
	for _, fn := range callbacks {
		panichandler.SafeRun("layoutmodel render callback", fn)
	}
	return renderErr
}

// readDoc holds the document's read lock (when it has one) so edits cannot land
// between render and reconcile
func (m *Model) readDoc(fn func(docRoot *docnode.Node)) {
	if tx, ok := m.doc.(txSource); ok {
		tx.ReadTx(fn)
		return
	}
	fn(m.doc.Root())
}

func (m *Model) render(ctx context.Context, docRoot *docnode.Node) (rtn []*rendertree.Node, rtnErr error) {
	defer func() {
		if panicErr := panichandler.PanicHandler("layoutmodel renderer", recover()); panicErr != nil {
			rtn = nil
			rtnErr = MakeRenderError(panicErr)
		}
	}()
	renderRoots, err := m.renderer.Render(ctx, docRoot, m.cfg.RenderContext)
	if err != nil {
		return nil, MakeRenderError(err)
	}
	return renderRoots, nil
}

func callListener(fn UpdateListener, event UpdateEvent) {
	defer func() {
		panichandler.PanicHandler("layoutmodel update listener", recover())
	}()
	fn(event)
}

// ReadTx runs fn with the published tree under the read lock. Refreshes rebuild the
// nodes in place, so reading node fields outside fn races with the next refresh.
func (m *Model) ReadTx(fn func(roots []*comptree.Node, version int64, lastErr error)) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	fn(m.roots, m.version, m.lastErr)
}

// Components returns the current roots. The nodes are live: their fields change on the
// next refresh, so concurrent readers should go through ReadTx.
func (m *Model) Components() []*comptree.Node {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return append([]*comptree.Node(nil), m.roots...)
}

func (m *Model) Flatten() []*comptree.Node {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return comptree.Flatten(m.roots)
}

func (m *Model) FindByTag(tag *docnode.Node) *comptree.Node {
	if tag == nil {
		return nil
	}
	m.lock.RLock()
	defer m.lock.RUnlock()
	return comptree.Find(m.roots, func(n *comptree.Node) bool {
		return n.Tag == tag
	})
}

// FindById finds a component by its identifier attribute
func (m *Model) FindById(id string) *comptree.Node {
	if id == "" {
		return nil
	}
	m.lock.RLock()
	defer m.lock.RUnlock()
	return comptree.Find(m.roots, func(n *comptree.Node) bool {
		return n.Id() == id
	})
}

func (m *Model) FindByCompId(compId string) *comptree.Node {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return comptree.MakeIndex(m.roots).Get(compId)
}

func (m *Model) Version() int64 {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.version
}

func (m *Model) LastError() error {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.lastErr
}

// SetAttribute edits the document and schedules a model update
func (m *Model) SetAttribute(node *docnode.Node, ns string, name string, value string) {
	m.doc.SetAttribute(node, ns, name, value)
	if _, ok := m.doc.(editSource); !ok {
		m.RequestModelUpdate()
	}
}

func (m *Model) GetAttribute(node *docnode.Node, ns string, name string) (string, bool) {
	return m.doc.GetAttribute(node, ns, name)
}
