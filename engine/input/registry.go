// Package input maps keyboard shortcuts to press and release callbacks. It is fed raw key events by
// a window and knows nothing about any particular windowing library.
package input

import (
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-tiny/common"
)

// Binding describes one registered shortcut, as listed by a control panel.
type Binding struct {
	Description string
	Shortcut    Shortcut
	Active      bool
}

type binding struct {
	description string
	shortcut    Shortcut
	press       func()
	release     func()
	active      bool
	order       int
}

type registryImpl struct {
	mu       *sync.Mutex
	bindings map[Shortcut]*binding
	held     map[int]bool
	order    int
}

// Registry is a keyed shortcut registry. Each shortcut holds at most one binding; binding a
// shortcut again replaces the previous callbacks.
type Registry interface {
	// Bind registers callbacks for a shortcut.
	//
	// Parameters:
	//   - description: the text shown next to the shortcut in a control panel
	//   - shortcut: the shortcut, e.g. "w" or "ctrl+shift+x"
	//   - press: called when the shortcut is pressed, may be nil
	//   - release: called when its key is released after a press, may be nil
	//
	// Returns:
	//   - error: an error if the shortcut cannot be parsed
	Bind(description, shortcut string, press, release func()) error

	// BindShortcut is Bind with an already parsed shortcut.
	BindShortcut(description string, shortcut Shortcut, press, release func())

	// Unbind removes the binding of a shortcut. An active binding is released first.
	//
	// Parameters:
	//   - shortcut: the shortcut text
	//
	// Returns:
	//   - bool: true if a binding was removed
	//   - error: an error if the shortcut cannot be parsed
	Unbind(shortcut string) (bool, error)

	// Press feeds a key press. Repeats of a key already held are ignored.
	//
	// Parameters:
	//   - key: the key code
	//   - mods: the modifier bits held with it
	//
	// Returns:
	//   - bool: true if a binding fired
	Press(key, mods int) bool

	// Release feeds a key release. Every active binding on the key is released regardless of the
	// modifiers still held.
	//
	// Parameters:
	//   - key: the key code
	//
	// Returns:
	//   - bool: true if a binding was released
	Release(key int) bool

	// ReleaseAll releases every active binding, used when the window loses focus.
	ReleaseAll()

	// Held reports whether a key is currently down.
	Held(key int) bool

	// Bindings lists every binding in registration order.
	Bindings() []Binding
}

var _ Registry = &registryImpl{}

// NewRegistry creates an empty registry.
func NewRegistry() Registry {
	return &registryImpl{
		mu:       &sync.Mutex{},
		bindings: make(map[Shortcut]*binding),
		held:     make(map[int]bool),
	}
}

func (r *registryImpl) Bind(description, shortcut string, press, release func()) error {
	sc, err := ParseShortcut(shortcut)
	if err != nil {
		return err
	}
	r.BindShortcut(description, sc, press, release)
	return nil
}

func (r *registryImpl) BindShortcut(description string, sc Shortcut, press, release func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order := r.order
	if prev, ok := r.bindings[sc]; ok {
		common.LogDebug("shortcut rebound", "shortcut", sc.String(), "was", prev.description, "now", description)
		order = prev.order
	} else {
		r.order++
	}
	r.bindings[sc] = &binding{
		description: description,
		shortcut:    sc,
		press:       press,
		release:     release,
		order:       order,
	}
}

func (r *registryImpl) Unbind(shortcut string) (bool, error) {
	sc, err := ParseShortcut(shortcut)
	if err != nil {
		return false, err
	}
	r.mu.Lock()
	b, ok := r.bindings[sc]
	if ok {
		delete(r.bindings, sc)
	}
	r.mu.Unlock()
	if ok && b.active && b.release != nil {
		b.release()
	}
	return ok, nil
}

func (r *registryImpl) Press(key, mods int) bool {
	r.mu.Lock()
	if r.held[key] {
		r.mu.Unlock()
		return false
	}
	r.held[key] = true
	b, ok := r.bindings[Shortcut{Key: key, Mods: mods}]
	if ok {
		b.active = true
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	if b.press != nil {
		b.press()
	}
	return true
}

func (r *registryImpl) Release(key int) bool {
	r.mu.Lock()
	delete(r.held, key)
	var fired []*binding
	for _, b := range r.bindings {
		if b.active && b.shortcut.Key == key {
			b.active = false
			fired = append(fired, b)
		}
	}
	r.mu.Unlock()

	for _, b := range fired {
		if b.release != nil {
			b.release()
		}
	}
	return len(fired) > 0
}

func (r *registryImpl) ReleaseAll() {
	r.mu.Lock()
	clear(r.held)
	var fired []*binding
	for _, b := range r.bindings {
		if b.active {
			b.active = false
			fired = append(fired, b)
		}
	}
	r.mu.Unlock()

	for _, b := range fired {
		if b.release != nil {
			b.release()
		}
	}
}

func (r *registryImpl) Held(key int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.held[key]
}

func (r *registryImpl) Bindings() []Binding {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*binding, 0, len(r.bindings))
	for _, b := range r.bindings {
		all = append(all, b)
	}
	slices.SortFunc(all, func(a, b *binding) int { return a.order - b.order })

	out := make([]Binding, len(all))
	for i, b := range all {
		out[i] = Binding{Description: b.description, Shortcut: b.shortcut, Active: b.active}
	}
	return out
}

// String renders a binding the way a control panel lists it.
func (b Binding) String() string {
	return fmt.Sprintf("%s (%s)", b.Description, b.Shortcut)
}
