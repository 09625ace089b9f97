package dylink

import (
	"reflect"
	"slices"
	"sync"
	"unsafe"

	"go.uber.org/zap"
)

// EventType is the kind of a handle table change.
type EventType int

const (
	EventRegistered EventType = iota
	EventUnregistered
)

// Event describes a handle table change.
type Event struct {
	Table  string
	Handle uintptr
	Type   EventType
}

// Observer receives handle table events.
type Observer interface {
	OnHandleEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnHandleEvent calls f(e).
func (f ObserverFunc) OnHandleEvent(e Event) { f(e) }

// HandleTable tracks live native object handles in creation order.
// HandleTable is safe for concurrent use.
type HandleTable struct {
	name      string
	handles   []uintptr
	observers []Observer
	mu        sync.RWMutex
	obsMu     sync.RWMutex
}

// Lifecycle tables maintained by the generated Vulkan entry points and
// consulted by the Vulkan resolver.
var (
	Instances = NewHandleTable("instance")
	Devices   = NewHandleTable("device")
)

// NewHandleTable creates an empty table.
func NewHandleTable(name string) *HandleTable {
	return &HandleTable{name: name}
}

// Name returns the table name.
func (t *HandleTable) Name() string { return t.name }

// Insert adds a handle. Zero and already present handles are ignored.
func (t *HandleTable) Insert(h uintptr) bool {
	if h == 0 {
		return false
	}
	t.mu.Lock()
	if slices.Contains(t.handles, h) {
		t.mu.Unlock()
		return false
	}
	t.handles = append(t.handles, h)
	t.mu.Unlock()

	t.notify(Event{Table: t.name, Handle: h, Type: EventRegistered})
	return true
}

// Remove drops a handle and reports whether it was present.
func (t *HandleTable) Remove(h uintptr) bool {
	t.mu.Lock()
	i := slices.Index(t.handles, h)
	if i < 0 {
		t.mu.Unlock()
		return false
	}
	t.handles = slices.Delete(t.handles, i, i+1)
	t.mu.Unlock()

	t.notify(Event{Table: t.name, Handle: h, Type: EventUnregistered})
	return true
}

// Contains reports whether h is tracked.
func (t *HandleTable) Contains(h uintptr) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Contains(t.handles, h)
}

// Snapshot returns the tracked handles in insertion order.
func (t *HandleTable) Snapshot() []uintptr {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.handles)
}

// Len returns the number of tracked handles.
func (t *HandleTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.handles)
}

// Clear drops all handles.
func (t *HandleTable) Clear() {
	for _, h := range t.Snapshot() {
		t.Remove(h)
	}
}

// RegisterOutput tracks the handle written through an output parameter.
// out is a pointer to a handle (a pointer to an integer or pointer type, or an
// unsafe.Pointer to pointer-sized storage). Anything else is logged and ignored.
func (t *HandleTable) RegisterOutput(out any) {
	h, ok := handleValue(out, true)
	if !ok {
		Logger().Warn("cannot read handle from output parameter",
			zap.String("table", t.name),
			zap.String("type", typeName(out)))
		return
	}
	t.Insert(h)
}

// Unregister stops tracking a handle passed by value.
func (t *HandleTable) Unregister(handle any) {
	h, ok := handleValue(handle, false)
	if !ok {
		Logger().Warn("cannot read handle parameter",
			zap.String("table", t.name),
			zap.String("type", typeName(handle)))
		return
	}
	t.Remove(h)
}

// Subscribe adds an observer for handle events.
func (t *HandleTable) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *HandleTable) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

func (t *HandleTable) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnHandleEvent(e)
	}
}

func handleValue(v any, deref bool) (uintptr, bool) {
	if v == nil {
		return 0, !deref
	}
	if p, ok := v.(unsafe.Pointer); ok {
		if !deref {
			return uintptr(p), true
		}
		if p == nil {
			return 0, true
		}
		return *(*uintptr)(p), true
	}

	rv := reflect.ValueOf(v)
	if deref {
		if rv.Kind() != reflect.Pointer {
			return 0, false
		}
		if rv.IsNil() {
			return 0, true
		}
		rv = rv.Elem()
	}
	return scalarHandle(rv)
}

func scalarHandle(rv reflect.Value) (uintptr, bool) {
	switch rv.Kind() {
	case reflect.Uintptr, reflect.Uint, reflect.Uint64, reflect.Uint32:
		return uintptr(rv.Uint()), true
	case reflect.Int, reflect.Int64, reflect.Int32:
		return uintptr(rv.Int()), true
	case reflect.Pointer, reflect.UnsafePointer:
		return rv.Pointer(), true
	}
	return 0, false
}

func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}
