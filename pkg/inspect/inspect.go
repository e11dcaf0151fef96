// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package inspect serves the live component tree of a layout model over HTTP:
// GET /tree returns it as json, GET /ws and GET /events (server-sent events) stream
// every published update.
package inspect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/launchdarkly/eventsource"
	"github.com/wavetermdev/compsync/pkg/comptree"
	"github.com/wavetermdev/compsync/pkg/layoutmodel"
	"github.com/wavetermdev/compsync/pkg/reconcile"
)

const (
	HttpReadTimeout    = 5 * time.Second
	HttpWriteTimeout   = 21 * time.Second
	HttpMaxHeaderBytes = 60000

	wsReadWaitTimeout    = 15 * time.Second
	wsWriteWaitTimeout   = 10 * time.Second
	wsPingPeriodTickTime = 10 * time.Second
	wsOutputChSize       = 16
)

const MessageType_Tree = "tree"

const SSEChannel_Tree = "tree"

type BoundsJson struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type NodeJson struct {
	CompId   string      `json:"compid"`
	ParentId string      `json:"parentid,omitempty"`
	Tag      string      `json:"tag"`
	Id       string      `json:"id,omitempty"`
	Bounds   BoundsJson  `json:"bounds"`
	Children []*NodeJson `json:"children,omitempty"`
}

type TreeMessage struct {
	Type    string           `json:"type"`
	Version int64            `json:"version"`
	Stats   *reconcile.Stats `json:"stats,omitempty"`
	Error   string           `json:"error,omitempty"`
	Roots   []*NodeJson      `json:"roots"`
}

func ConvertNode(n *comptree.Node) *NodeJson {
	rtn := &NodeJson{
		CompId:   n.CompId,
		ParentId: n.ParentId,
		Tag:      n.TagName(),
		Id:       n.Id(),
		Bounds:   BoundsJson{X: n.Bounds.X, Y: n.Bounds.Y, W: n.Bounds.W, H: n.Bounds.H},
	}
	for _, child := range n.Children {
		rtn.Children = append(rtn.Children, ConvertNode(child))
	}
	return rtn
}

func ConvertRoots(roots []*comptree.Node) []*NodeJson {
	rtn := make([]*NodeJson, 0, len(roots))
	for _, root := range roots {
		rtn = append(rtn, ConvertNode(root))
	}
	return rtn
}

func makeTreeMessage(event layoutmodel.UpdateEvent) TreeMessage {
	msg := TreeMessage{
		Type:    MessageType_Tree,
		Version: event.Version,
		Stats:   &event.Stats,
		Roots:   ConvertRoots(event.Roots),
	}
	if event.Err != nil {
		msg.Error = event.Err.Error()
	}
	return msg
}

// treeEvent is a TreeMessage framed as a server-sent event
type treeEvent struct {
	id   string
	data string
}

func (e treeEvent) Id() string    { return e.id }
func (e treeEvent) Event() string { return MessageType_Tree }
func (e treeEvent) Data() string  { return e.data }

func makeTreeEvent(msg TreeMessage) (treeEvent, error) {
	barr, err := json.Marshal(msg)
	if err != nil {
		return treeEvent{}, err
	}
	return treeEvent{id: strconv.FormatInt(msg.Version, 10), data: string(barr)}, nil
}

type Server struct {
	model      *layoutmodel.Model
	listenerId string
	sse        *eventsource.Server

	lock  sync.Mutex
	conns map[string]chan any
}

func MakeServer(model *layoutmodel.Model) *Server {
	s := &Server{
		model: model,
		conns: make(map[string]chan any),
		sse:   eventsource.NewServer(),
	}
	s.sse.ReplayAll = true
	s.sse.Register(SSEChannel_Tree, s)
	s.listenerId = model.AddListener(s.broadcast)
	return s
}

func (s *Server) Close() {
	s.model.RemoveListener(s.listenerId)
	s.sse.Close()
}

// Replay gives every new event stream the current tree as its first event
func (s *Server) Replay(channel string, id string) chan eventsource.Event {
	rtn := make(chan eventsource.Event, 1)
	defer close(rtn)
	ev, err := makeTreeEvent(s.currentTree())
	if err != nil {
		log.Printf("[error] cannot marshal tree event: %v\n", err)
		return rtn
	}
	rtn <- ev
	return rtn
}

func (s *Server) NumConns() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.conns)
}

// broadcast never blocks the model: slow connections drop updates (the next one carries
// the full tree anyway)
func (s *Server) broadcast(event layoutmodel.UpdateEvent) {
	msg := makeTreeMessage(event)
	s.sendToConns(msg)
	ev, err := makeTreeEvent(msg)
	if err != nil {
		log.Printf("[error] cannot marshal tree event: %v\n", err)
		return
	}
	s.sse.Publish([]string{SSEChannel_Tree}, ev)
}

func (s *Server) sendToConns(msg TreeMessage) {
	s.lock.Lock()
	defer s.lock.Unlock()
	for connId, ch := range s.conns {
		select {
		case ch <- msg:
		default:
			log.Printf("inspect: dropping update v%d for slow connection %s\n", msg.Version, connId)
		}
	}
}

// currentTree converts the published tree while the model holds its read lock
func (s *Server) currentTree() TreeMessage {
	var msg TreeMessage
	s.model.ReadTx(func(roots []*comptree.Node, version int64, lastErr error) {
		msg = TreeMessage{
			Type:    MessageType_Tree,
			Version: version,
			Roots:   ConvertRoots(roots),
		}
		if lastErr != nil {
			msg.Error = lastErr.Error()
		}
	})
	return msg
}

func (s *Server) Router() *mux.Router {
	gr := mux.NewRouter()
	gr.HandleFunc("/tree", webFnWrap(s.handleTree)).Methods(http.MethodGet)
	gr.HandleFunc("/tree/{compid}", webFnWrap(s.handleNode)).Methods(http.MethodGet)
	gr.HandleFunc("/render", webFnWrap(s.handleRender)).Methods(http.MethodPost)
	gr.HandleFunc("/ws", s.handleWs)
	gr.HandleFunc("/events", s.sse.Handler(SSEChannel_Tree)).Methods(http.MethodGet)
	return gr
}

// Run serves until ctx is cancelled
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:           addr,
		ReadTimeout:    HttpReadTimeout,
		WriteTimeout:   HttpWriteTimeout,
		MaxHeaderBytes: HttpMaxHeaderBytes,
		Handler:        s.Router(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancelFn := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancelFn()
		server.Shutdown(shutdownCtx)
	}()
	log.Printf("running inspector on http://%s\n", addr)
	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

type webFnType = func(http.ResponseWriter, *http.Request)

func webFnWrap(fn webFnType) webFnType {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recErr := recover()
			if recErr == nil {
				return
			}
			log.Printf("[panic] inspect handler %s: %v\n", r.URL.Path, recErr)
			debug.PrintStack()
			http.Error(w, fmt.Sprintf("panic: %v", recErr), http.StatusInternalServerError)
		}()
		w.Header().Set("Cache-Control", "no-cache")
		fn(w, r)
	}
}

func writeJson(w http.ResponseWriter, val any) {
	barr, err := json.Marshal(val)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(barr)
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	writeJson(w, s.currentTree())
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	compId := mux.Vars(r)["compid"]
	var node *NodeJson
	s.model.ReadTx(func(roots []*comptree.Node, version int64, lastErr error) {
		if comp := comptree.MakeIndex(roots).Get(compId); comp != nil {
			node = ConvertNode(comp)
		}
	})
	if node == nil {
		http.Error(w, fmt.Sprintf("component %q not found", compId), http.StatusNotFound)
		return
	}
	writeJson(w, node)
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	s.model.RequestRender()
	w.WriteHeader(http.StatusAccepted)
}

var WebSocketUpgrader = websocket.Upgrader{
	ReadBufferSize:   4 * 1024,
	WriteBufferSize:  32 * 1024,
	HandshakeTimeout: 1 * time.Second,
	CheckOrigin:      func(r *http.Request) bool { return true },
}

// registerConn queues the current tree on ch and registers it under one lock, so every
// update published after that tree reaches ch
func (s *Server) registerConn(connId string, ch chan any) {
	s.lock.Lock()
	defer s.lock.Unlock()
	ch <- s.currentTree()
	s.conns[connId] = ch
}

func (s *Server) unregisterConn(connId string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.conns, connId)
}

func (s *Server) handleWs(w http.ResponseWriter, r *http.Request) {
	conn, err := WebSocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[error] inspect websocket upgrade failed: %v\n", err)
		return
	}
	defer conn.Close()
	connId := uuid.New().String()
	outputCh := make(chan any, wsOutputChSize)
	closeCh := make(chan any)
	s.registerConn(connId, outputCh)
	defer s.unregisterConn(connId)
	log.Printf("inspect: new websocket connection %s\n", connId)
	go readLoop(conn, closeCh)
	writeLoop(conn, outputCh, closeCh)
}

// readLoop only watches for the client going away; inspector clients don't send commands
func readLoop(conn *websocket.Conn, closeCh chan any) {
	defer close(closeCh)
	conn.SetReadLimit(64 * 1024)
	conn.SetReadDeadline(time.Now().Add(wsReadWaitTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsReadWaitTimeout))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsReadWaitTimeout))
	}
}

func writeLoop(conn *websocket.Conn, outputCh chan any, closeCh chan any) {
	ticker := time.NewTicker(wsPingPeriodTickTime)
	defer ticker.Stop()
	for {
		select {
		case msg := <-outputCh:
			barr, err := json.Marshal(msg)
			if err != nil {
				log.Printf("[error] cannot marshal websocket message: %v\n", err)
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWaitTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, barr); err != nil {
				log.Printf("inspect: websocket write error: %v\n", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWaitTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closeCh:
			return
		}
	}
}
