// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package utilds

import (
	"sync"

	"github.com/google/uuid"
)

// IdList is an ordered set of values keyed by a generated id (listener registries).
// GetList returns a snapshot so callers may invoke entries without holding the lock.
type IdList[T any] struct {
	lock  sync.RWMutex
	order []string
	vals  map[string]T
}

func (il *IdList[T]) Register(val T) string {
	id := uuid.New().String()
	il.RegisterWithId(id, val)
	return id
}

func (il *IdList[T]) RegisterWithId(id string, val T) {
	il.lock.Lock()
	defer il.lock.Unlock()
	if il.vals == nil {
		il.vals = make(map[string]T)
	}
	if _, found := il.vals[id]; !found {
		il.order = append(il.order, id)
	}
	il.vals[id] = val
}

func (il *IdList[T]) Unregister(id string) bool {
	il.lock.Lock()
	defer il.lock.Unlock()
	if _, found := il.vals[id]; !found {
		return false
	}
	delete(il.vals, id)
	for idx, oid := range il.order {
		if oid == id {
			il.order = append(il.order[:idx], il.order[idx+1:]...)
			break
		}
	}
	return true
}

func (il *IdList[T]) Len() int {
	il.lock.RLock()
	defer il.lock.RUnlock()
	return len(il.order)
}

func (il *IdList[T]) GetList() []T {
	il.lock.RLock()
	defer il.lock.RUnlock()
	rtn := make([]T, 0, len(il.order))
	for _, id := range il.order {
		rtn = append(rtn, il.vals[id])
	}
	return rtn
}
