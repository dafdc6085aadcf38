package containers

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/anima-texel/engine/core"
)

// HandleTable hands out small integer handles for pooled resources, e.g. the
// slot a texture occupies in a shader-visible descriptor array. Freed slots
// are reused lowest index first. The capacity is fixed; running out of slots
// is an error.
type HandleTable[T comparable] struct {
	mu      sync.Mutex
	owners  []T
	used    []bool
	handles map[T]uint32
	// every slot below hint is taken
	hint uint32
}

func NewHandleTable[T comparable](capacity uint32) *HandleTable[T] {
	return &HandleTable[T]{
		owners:  make([]T, capacity),
		used:    make([]bool, capacity),
		handles: make(map[T]uint32, capacity),
	}
}

// Alloc returns the handle of resource, taking the lowest free slot if the
// resource does not have one yet.
func (ht *HandleTable[T]) Alloc(resource T) (uint32, error) {
	ht.mu.Lock()
	defer ht.mu.Unlock()

	if h, ok := ht.handles[resource]; ok {
		return h, nil
	}

	length := uint32(len(ht.used))
	for i := ht.hint; i < length; i++ {
		// Existing free spot. Take it.
		if !ht.used[i] {
			ht.used[i] = true
			ht.owners[i] = resource
			ht.handles[resource] = i
			ht.hint = i + 1
			return i, nil
		}
	}
	return 0, errors.Wrapf(core.ErrOutOfHandles, "all %d handles are in use", length)
}

// Dealloc releases the handle held by resource.
func (ht *HandleTable[T]) Dealloc(resource T) error {
	ht.mu.Lock()
	defer ht.mu.Unlock()

	h, ok := ht.handles[resource]
	if !ok {
		return errors.Wrap(core.ErrUnknownHandle, "resource holds no handle")
	}

	var zero T
	delete(ht.handles, resource)
	ht.owners[h] = zero
	ht.used[h] = false
	if h < ht.hint {
		ht.hint = h
	}
	return nil
}

// Lookup returns the resource that currently owns handle.
func (ht *HandleTable[T]) Lookup(handle uint32) (T, bool) {
	ht.mu.Lock()
	defer ht.mu.Unlock()

	var zero T
	if handle >= uint32(len(ht.used)) || !ht.used[handle] {
		return zero, false
	}
	return ht.owners[handle], true
}

// Handle returns the handle held by resource, if any.
func (ht *HandleTable[T]) Handle(resource T) (uint32, bool) {
	ht.mu.Lock()
	defer ht.mu.Unlock()

	h, ok := ht.handles[resource]
	return h, ok
}

func (ht *HandleTable[T]) Len() int {
	ht.mu.Lock()
	defer ht.mu.Unlock()
	return len(ht.handles)
}

func (ht *HandleTable[T]) Cap() int {
	return len(ht.used)
}
