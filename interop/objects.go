package interop

import (
	"sync"

	"go.uber.org/zap"
)

// Handle is an opaque reference to an object in a table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// EventType identifies an object lifecycle notification.
type EventType uint8

const (
	EventCreated EventType = iota
	EventAddRef
	EventReleased
	EventDropped
)

// Event represents an object lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	Refs   uint32
	Type   EventType
}

// Observer receives notifications about object lifecycle events.
type Observer interface {
	OnObjectEvent(Event)
}

// Dropper is optionally implemented by objects that need cleanup when
// their last reference is released.
type Dropper interface {
	Drop()
}

// Objects is a reference-counted object table.
type Objects struct {
	entries   []entry
	freeList  []Handle
	observers []Observer
	mu        sync.RWMutex
	obsMu     sync.RWMutex
	closed    bool
}

type entry struct {
	value any
	refs  uint32
	valid bool
}

// NewObjects creates an empty table.
func NewObjects() *Objects {
	return &Objects{
		entries:  make([]entry, 0, 64),
		freeList: make([]Handle, 0, 16),
	}
}

// Insert stores value with one reference and returns its handle.
// A closed table returns 0.
func (o *Objects) Insert(value any) Handle {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return 0
	}
	e := entry{value: value, refs: 1, valid: true}
	var h Handle
	if len(o.freeList) > 0 {
		h = o.freeList[len(o.freeList)-1]
		o.freeList = o.freeList[:len(o.freeList)-1]
		o.entries[h-1] = e
	} else {
		o.entries = append(o.entries, e)
		h = Handle(len(o.entries))
	}
	o.mu.Unlock()

	o.notify(Event{Type: EventCreated, Handle: h, Refs: 1, Value: value})
	return h
}

// Get retrieves an object by handle without touching its reference count.
func (o *Objects) Get(h Handle) (any, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	e, ok := o.lookup(h)
	if !ok {
		return nil, false
	}
	return e.value, true
}

// AddRef adds a reference and returns the new count.
func (o *Objects) AddRef(h Handle) (uint32, bool) {
	o.mu.Lock()
	e, ok := o.lookup(h)
	if !ok {
		o.mu.Unlock()
		return 0, false
	}
	e.refs++
	refs, value := e.refs, e.value
	o.mu.Unlock()

	o.notify(Event{Type: EventAddRef, Handle: h, Refs: refs, Value: value})
	return refs, true
}

// Release drops a reference and returns the remaining count. The object is
// removed, and dropped if it implements Dropper, when the count reaches zero.
func (o *Objects) Release(h Handle) (uint32, bool) {
	o.mu.Lock()
	e, ok := o.lookup(h)
	if !ok {
		o.mu.Unlock()
		Logger().Warn("release of unknown object handle", zap.Uint32("handle", uint32(h)))
		return 0, false
	}
	e.refs--
	refs, value := e.refs, e.value
	if refs == 0 {
		*e = entry{}
		o.freeList = append(o.freeList, h)
	}
	o.mu.Unlock()

	if refs > 0 {
		o.notify(Event{Type: EventReleased, Handle: h, Refs: refs, Value: value})
		return refs, true
	}
	if d, ok := value.(Dropper); ok {
		d.Drop()
	}
	Logger().Debug("object dropped", zap.Uint32("handle", uint32(h)))
	o.notify(Event{Type: EventDropped, Handle: h, Value: value})
	return 0, true
}

// RefCount returns the current reference count, or 0 for an invalid handle.
func (o *Objects) RefCount(h Handle) uint32 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	e, ok := o.lookup(h)
	if !ok {
		return 0
	}
	return e.refs
}

// Len returns the number of live objects.
func (o *Objects) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.entries) - len(o.freeList)
}

// Subscribe adds an observer for lifecycle events.
func (o *Objects) Subscribe(obs Observer) {
	o.obsMu.Lock()
	defer o.obsMu.Unlock()
	o.observers = append(o.observers, obs)
}

// Unsubscribe removes an observer.
func (o *Objects) Unsubscribe(obs Observer) {
	o.obsMu.Lock()
	defer o.obsMu.Unlock()
	for i, cur := range o.observers {
		if cur == obs {
			o.observers = append(o.observers[:i], o.observers[i+1:]...)
			return
		}
	}
}

// Close drops every object regardless of reference count and stops
// accepting inserts.
func (o *Objects) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	entries := o.entries
	o.entries = nil
	o.freeList = nil
	o.mu.Unlock()

	for _, e := range entries {
		if !e.valid {
			continue
		}
		if d, ok := e.value.(Dropper); ok {
			d.Drop()
		}
	}
	return nil
}

// lookup must be called with o.mu held.
func (o *Objects) lookup(h Handle) (*entry, bool) {
	if h == 0 || int(h) > len(o.entries) {
		return nil, false
	}
	e := &o.entries[h-1]
	if !e.valid {
		return nil, false
	}
	return e, true
}

func (o *Objects) notify(e Event) {
	o.obsMu.RLock()
	observers := make([]Observer, len(o.observers))
	copy(observers, o.observers)
	o.obsMu.RUnlock()

	for _, obs := range observers {
		obs.OnObjectEvent(e)
	}
}

// Releaser gives back one reference to a handle.
type Releaser interface {
	Release(h Handle) (uint32, bool)
}

// Owned is a handle whose reference belongs to the holder.
type Owned struct {
	r Releaser
	h Handle
}

// Adopt takes ownership of one existing reference to h.
func Adopt(r Releaser, h Handle) *Owned {
	return &Owned{r: r, h: h}
}

// Handle returns the wrapped handle, or 0 after Release or Detach.
func (w *Owned) Handle() Handle {
	return w.h
}

// Release gives the reference back. Calling it again is a no-op.
func (w *Owned) Release() {
	if w.h == 0 || w.r == nil {
		return
	}
	h := w.h
	w.h = 0
	w.r.Release(h)
}

// Detach transfers the reference to the caller without releasing it.
func (w *Owned) Detach() Handle {
	h := w.h
	w.h = 0
	return h
}
