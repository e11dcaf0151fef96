// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package updatequeue is a coalescing, debounced, two-band task queue with a single
// worker goroutine. Tasks are identified by name: enqueueing a name that is already
// queued replaces the queued task and restarts its debounce.
package updatequeue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/emirpasic/gods/trees/binaryheap"
	"github.com/wavetermdev/compsync/pkg/panichandler"
	"github.com/wavetermdev/compsync/pkg/util/logutil"
)

type Priority int

const (
	PriorityHigh Priority = 0
	PriorityLow  Priority = 1
)

func (p Priority) String() string {
	if p == PriorityHigh {
		return "high"
	}
	return "low"
}

const DefaultDelay = 10 * time.Millisecond

var ErrClosed = errors.New("update queue is closed")

type Task struct {
	Name     string
	Priority Priority
	// a queued low priority task is dropped when a high priority task with the same
	// (non-empty) target is enqueued
	Target string
	Run    func(ctx context.Context)
}

type queuedTask struct {
	task    Task
	seq     uint64
	readyAt time.Time
}

func readyComparator(aArg, bArg any) int {
	a := aArg.(*queuedTask)
	b := bArg.(*queuedTask)
	if a.task.Priority != b.task.Priority {
		return int(a.task.Priority) - int(b.task.Priority)
	}
	if a.seq < b.seq {
		return -1
	} else if a.seq > b.seq {
		return 1
	}
	return 0
}

type Queue struct {
	lock        sync.Mutex
	name        string
	delay       time.Duration
	queued      map[string]*queuedTask
	seq         uint64
	running     string
	closed      bool
	started     bool
	idleWaiters []chan struct{}
	wakeCh      chan struct{}
	doneCh      chan struct{}
	ctx         context.Context
	cancelFn    context.CancelFunc
}

// MakeQueue creates a queue; a negative delay selects DefaultDelay.
// The worker goroutine starts on the first Enqueue.
func MakeQueue(name string, delay time.Duration) *Queue {
	if delay < 0 {
		delay = DefaultDelay
	}
	ctx, cancelFn := context.WithCancel(context.Background())
	return &Queue{
		name:     name,
		delay:    delay,
		queued:   make(map[string]*queuedTask),
		wakeCh:   make(chan struct{}, 1),
		doneCh:   make(chan struct{}),
		ctx:      ctx,
		cancelFn: cancelFn,
	}
}

func (q *Queue) SetDelay(delay time.Duration) {
	if delay < 0 {
		delay = DefaultDelay
	}
	q.lock.Lock()
	defer q.lock.Unlock()
	q.delay = delay
}

func (q *Queue) Delay() time.Duration {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.delay
}

func (q *Queue) Enqueue(task Task) error {
	if task.Name == "" {
		return fmt.Errorf("update queue %s: task has no name", q.name)
	}
	if task.Run == nil {
		return fmt.Errorf("update queue %s: task %q has no run func", q.name, task.Name)
	}
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.closed {
		return ErrClosed
	}
	if task.Priority == PriorityHigh && task.Target != "" {
		for name, qt := range q.queued {
			if name != task.Name && qt.task.Priority == PriorityLow && qt.task.Target == task.Target {
				logutil.DevPrintf("updatequeue %s: %q superseded by %q\n", q.name, name, task.Name)
				delete(q.queued, name)
			}
		}
	}
	q.seq++
	q.queued[task.Name] = &queuedTask{
		task:    task,
		seq:     q.seq,
		readyAt: time.Now().Add(q.delay),
	}
	if !q.started {
		q.started = true
		go q.worker()
	}
	q.wake()
	return nil
}

func (q *Queue) wake() {
	select {
	case q.wakeCh <- struct{}{}:
	default:
	}
}

// CancelAll drops every queued task. A task that is already running is not interrupted.
func (q *Queue) CancelAll() {
	q.lock.Lock()
	defer q.lock.Unlock()
	clear(q.queued)
	q.notifyIdle_nolock()
}

// Pending returns the queued task names in execution order (ignoring debounce)
func (q *Queue) Pending() []string {
	q.lock.Lock()
	defer q.lock.Unlock()
	tasks := make([]*queuedTask, 0, len(q.queued))
	for _, qt := range q.queued {
		tasks = append(tasks, qt)
	}
	sort.Slice(tasks, func(i, j int) bool {
		return readyComparator(tasks[i], tasks[j]) < 0
	})
	rtn := make([]string, len(tasks))
	for idx, qt := range tasks {
		rtn[idx] = qt.task.Name
	}
	return rtn
}

func (q *Queue) IsIdle() bool {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.isIdle_nolock()
}

func (q *Queue) isIdle_nolock() bool {
	return len(q.queued) == 0 && q.running == ""
}

// Flush makes every queued task eligible immediately and waits until the queue is idle.
// Must not be called from inside a task.
func (q *Queue) Flush(ctx context.Context) error {
	q.lock.Lock()
	if q.closed {
		q.lock.Unlock()
		return ErrClosed
	}
	if q.isIdle_nolock() {
		q.lock.Unlock()
		return nil
	}
	for _, qt := range q.queued {
		qt.readyAt = time.Time{}
	}
	waitCh := make(chan struct{})
	q.idleWaiters = append(q.idleWaiters, waitCh)
	q.wake()
	q.lock.Unlock()
	select {
	case <-waitCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) notifyIdle_nolock() {
	if !q.closed && !q.isIdle_nolock() {
		return
	}
	for _, ch := range q.idleWaiters {
		close(ch)
	}
	q.idleWaiters = nil
}

// Close drops queued tasks, cancels the context passed to a running task, and waits
// for the worker to exit
func (q *Queue) Close() {
	q.lock.Lock()
	if q.closed {
		q.lock.Unlock()
		<-q.doneCh
		return
	}
	q.closed = true
	clear(q.queued)
	started := q.started
	q.notifyIdle_nolock()
	q.lock.Unlock()
	q.cancelFn()
	if !started {
		close(q.doneCh)
		return
	}
	q.wake()
	<-q.doneCh
}

// nextReady_nolock picks the highest priority eligible task. When none is eligible it
// returns how long until the earliest one will be (hasWait is false for an empty queue).
func (q *Queue) nextReady_nolock(now time.Time) (rtn *queuedTask, wait time.Duration, hasWait bool) {
	ready := binaryheap.NewWith(readyComparator)
	for _, qt := range q.queued {
		if !qt.readyAt.After(now) {
			ready.Push(qt)
			continue
		}
		untilReady := qt.readyAt.Sub(now)
		if !hasWait || untilReady < wait {
			wait = untilReady
			hasWait = true
		}
	}
	if top, ok := ready.Pop(); ok {
		return top.(*queuedTask), 0, false
	}
	return nil, wait, hasWait
}

func (q *Queue) worker() {
	defer close(q.doneCh)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		q.lock.Lock()
		if q.closed {
			q.lock.Unlock()
			return
		}
		qt, wait, hasWait := q.nextReady_nolock(time.Now())
		if qt != nil {
			delete(q.queued, qt.task.Name)
			q.running = qt.task.Name
		} else {
			q.notifyIdle_nolock()
		}
		q.lock.Unlock()

		if qt != nil {
			q.runTask(qt.task)
			q.lock.Lock()
			q.running = ""
			q.notifyIdle_nolock()
			q.lock.Unlock()
			continue
		}

		var timerC <-chan time.Time
		if hasWait {
			if timer == nil {
				timer = time.NewTimer(wait)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(wait)
			}
			timerC = timer.C
		}
		select {
		case <-q.wakeCh:
		case <-timerC:
		case <-q.ctx.Done():
		}
	}
}

func (q *Queue) runTask(task Task) {
	startTs := time.Now()
	err := panichandler.SafeRun(fmt.Sprintf("updatequeue %s task %q", q.name, task.Name), func() {
		task.Run(q.ctx)
	})
	if err != nil {
		log.Printf("[error] updatequeue %s: task %q failed: %v\n", q.name, task.Name, err)
	}
	logutil.DevPrintf("updatequeue %s: ran %q (%s) in %v\n", q.name, task.Name, task.Priority, time.Since(startTs))
}
