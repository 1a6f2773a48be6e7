package ui

import (
	"context"
	"sync"
)

// Modal is a closable overlay holding a form.
type Modal struct {
	Name string

	mu   sync.Mutex
	open bool
}

// NewModal returns a closed modal.
func NewModal(name string) *Modal {
	return &Modal{Name: name}
}

func (m *Modal) Open() {
	m.mu.Lock()
	m.open = true
	m.mu.Unlock()
}

func (m *Modal) Close() {
	m.mu.Lock()
	m.open = false
	m.mu.Unlock()
}

func (m *Modal) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// Reloader re-reads the current page.
type Reloader interface {
	Reload(ctx context.Context) error
}

// ReloadFunc adapts a function to Reloader.
type ReloadFunc func(ctx context.Context) error

func (f ReloadFunc) Reload(ctx context.Context) error { return f(ctx) }

// Confirmer asks a yes/no question before a destructive action.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// AlwaysConfirm answers yes without asking.
var AlwaysConfirm = ConfirmFunc(func(string) bool { return true })
