// Package headless implements the engine collaborators without a display.
// Elements form an in-memory tree, object URLs resolve to host files,
// images are decoded into thumbnails, and 3D model loading reports
// ErrNoLoader so rigid-model tiles show their inline error.
package headless

import (
	"sort"
	"sync"

	"github.com/justyntemme/assetgrid/internal/engine"
)

// Element is a node in the headless tree.
type Element struct {
	mu        sync.Mutex
	tag       string
	attrs     map[string]string
	text      string
	children  []engine.Element
	parent    *Element
	rect      engine.Rect
	nextID    int
	listeners map[string]map[int]engine.Listener

	counter *listenerCounter
}

type listenerCounter struct {
	mu sync.Mutex
	n  int
}

func (c *listenerCounter) add(d int) {
	c.mu.Lock()
	c.n += d
	c.mu.Unlock()
}

func (c *listenerCounter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func newElement(tag string, counter *listenerCounter) *Element {
	return &Element{tag: tag, attrs: map[string]string{}, counter: counter}
}

// Tag returns the element tag.
func (e *Element) Tag() string { return e.tag }

func (e *Element) Listen(event string, fn engine.Listener) func() {
	e.mu.Lock()
	if e.listeners == nil {
		e.listeners = make(map[string]map[int]engine.Listener)
	}
	if e.listeners[event] == nil {
		e.listeners[event] = make(map[int]engine.Listener)
	}
	e.nextID++
	id := e.nextID
	e.listeners[event][id] = fn
	e.mu.Unlock()
	e.counter.add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.listeners[event], id)
			e.mu.Unlock()
			e.counter.add(-1)
		})
	}
}

// Dispatch delivers ev to the element's listeners in registration order.
func (e *Element) Dispatch(ev engine.Event) {
	e.mu.Lock()
	ids := make([]int, 0, len(e.listeners[ev.Type]))
	for id := range e.listeners[ev.Type] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]engine.Listener, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, e.listeners[ev.Type][id])
	}
	e.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (e *Element) SetAttr(name, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attrs[name] = value
}

// Attr returns an attribute value.
func (e *Element) Attr(name string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attrs[name]
}

func (e *Element) SetText(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.text = text
}

// Text returns the element text.
func (e *Element) Text() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.text
}

func (e *Element) Append(child engine.Element) {
	e.mu.Lock()
	e.children = append(e.children, child)
	e.mu.Unlock()
	if c := node(child); c != nil {
		c.mu.Lock()
		c.parent = e
		c.mu.Unlock()
	}
}

func (e *Element) Remove() {
	e.mu.Lock()
	parent := e.parent
	e.parent = nil
	e.mu.Unlock()
	if parent == nil {
		return
	}
	parent.mu.Lock()
	defer parent.mu.Unlock()
	for i, ch := range parent.children {
		if node(ch) == e {
			parent.children = append(parent.children[:i], parent.children[i+1:]...)
			return
		}
	}
}

func (e *Element) Rect() engine.Rect {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rect
}

// SetRect positions the element in viewport coordinates.
func (e *Element) SetRect(r engine.Rect) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rect = r
}

// Children returns the element's children.
func (e *Element) Children() []engine.Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]engine.Element(nil), e.children...)
}

func (e *Element) clear() {
	e.mu.Lock()
	children := e.children
	e.children = nil
	e.mu.Unlock()
	for _, ch := range children {
		if c := node(ch); c != nil {
			c.mu.Lock()
			c.parent = nil
			c.mu.Unlock()
		}
	}
}

type noder interface {
	node() *Element
}

func (e *Element) node() *Element { return e }

func node(el engine.Element) *Element {
	if n, ok := el.(noder); ok {
		return n.node()
	}
	return nil
}
