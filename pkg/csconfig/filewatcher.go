// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package csconfig

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher reports changes to a set of files. It watches the parent directories
// so editors that replace the file on save (rename over) are still seen.
type FileWatcher struct {
	lock     sync.Mutex
	watcher  *fsnotify.Watcher
	handlers map[string]func(fileName string)
	closed   bool
	doneCh   chan struct{}
}

func MakeFileWatcher() (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &FileWatcher{
		watcher:  watcher,
		handlers: make(map[string]func(string)),
		doneCh:   make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Watch calls onChange (on the watcher goroutine) whenever fileName is written or recreated
func (w *FileWatcher) Watch(fileName string, onChange func(fileName string)) error {
	absName, err := filepath.Abs(fileName)
	if err != nil {
		return err
	}
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.closed {
		return fmt.Errorf("file watcher is closed")
	}
	if err := w.watcher.Add(filepath.Dir(absName)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(absName), err)
	}
	w.handlers[absName] = onChange
	return nil
}

func (w *FileWatcher) Close() {
	w.lock.Lock()
	if w.closed {
		w.lock.Unlock()
		return
	}
	w.closed = true
	w.lock.Unlock()
	w.watcher.Close()
	<-w.doneCh
}

func (w *FileWatcher) run() {
	defer close(w.doneCh)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[error] file watcher: %v\n", err)
		}
	}
}

func (w *FileWatcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	absName, err := filepath.Abs(event.Name)
	if err != nil {
		return
	}
	w.lock.Lock()
	handler := w.handlers[absName]
	w.lock.Unlock()
	if handler != nil {
		handler(absName)
	}
}
