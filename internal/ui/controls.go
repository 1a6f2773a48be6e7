package ui

import (
	"sync"
)

const (
	// ProcessingLabel replaces a control's label while its request is pending.
	ProcessingLabel = "Processing..."
	// DefaultLabel is restored when a control had no label of its own.
	DefaultLabel = "Submit"
)

// Control is a snapshot of one submit control.
type Control struct {
	Name     string
	Label    string
	Disabled bool
}

type control struct {
	label    string
	original string
	holds    int
}

// Buttons guards the submit controls of a dashboard.
//
// Overlapping acquisitions are counted, so a control is re-enabled only when
// the last pending request on it settles.
type Buttons struct {
	mu       sync.Mutex
	order    []string
	controls map[string]*control
	watchers []func(Control)
}

// NewButtons creates an empty guard.
func NewButtons() *Buttons {
	return &Buttons{controls: make(map[string]*control)}
}

// Add registers a control. Adding an existing name relabels it.
func (b *Buttons) Add(name, label string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.controls[name]; ok {
		c.label = label
		return
	}
	b.order = append(b.order, name)
	b.controls[name] = &control{label: label}
}

// Watch registers fn to be called on every state change.
func (b *Buttons) Watch(fn func(Control)) {
	b.mu.Lock()
	b.watchers = append(b.watchers, fn)
	b.mu.Unlock()
}

// Acquire disables the named controls, or every control when names is
// empty, and returns the function that releases them. The release function
// is safe to call more than once; only the first call has an effect.
func (b *Buttons) Acquire(names ...string) (release func()) {
	b.mu.Lock()
	if len(names) == 0 {
		names = append([]string(nil), b.order...)
	}
	var changed []Control
	var held []string
	for _, name := range names {
		c, ok := b.controls[name]
		if !ok {
			continue
		}
		held = append(held, name)
		c.holds++
		if c.holds == 1 {
			c.original = c.label
			c.label = ProcessingLabel
			changed = append(changed, Control{Name: name, Label: c.label, Disabled: true})
		}
	}
	b.mu.Unlock()
	b.notify(changed)

	var once sync.Once
	return func() {
		once.Do(func() { b.release(held) })
	}
}

func (b *Buttons) release(names []string) {
	b.mu.Lock()
	var changed []Control
	for _, name := range names {
		c := b.controls[name]
		if c.holds == 0 {
			continue
		}
		c.holds--
		if c.holds == 0 {
			c.label = c.original
			if c.label == "" {
				c.label = DefaultLabel
			}
			changed = append(changed, Control{Name: name, Label: c.label})
		}
	}
	b.mu.Unlock()
	b.notify(changed)
}

// Get returns the current state of a control.
func (b *Buttons) Get(name string) (Control, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.controls[name]
	if !ok {
		return Control{}, false
	}
	return Control{Name: name, Label: c.label, Disabled: c.holds > 0}, true
}

// Controls returns every control in registration order.
func (b *Buttons) Controls() []Control {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Control, 0, len(b.order))
	for _, name := range b.order {
		c := b.controls[name]
		out = append(out, Control{Name: name, Label: c.label, Disabled: c.holds > 0})
	}
	return out
}

func (b *Buttons) notify(changed []Control) {
	if len(changed) == 0 {
		return
	}
	b.mu.Lock()
	watchers := append([]func(Control){}, b.watchers...)
	b.mu.Unlock()
	for _, c := range changed {
		for _, w := range watchers {
			w(c)
		}
	}
}
