// Package ui is the interaction view-model behind the portal dashboards:
// notifications, guarded submit controls, overlays and the submit helper
// that ties them to the API client.
package ui

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

// Kind is the notification style.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

// DefaultNotificationTTL is how long a notification stays up.
const DefaultNotificationTTL = 5 * time.Second

// Notification is one transient message.
type Notification struct {
	ID      string
	Message string
	Kind    Kind
	ShownAt time.Time
}

// Sink observes notifications, e.g. a terminal renderer.
type Sink interface {
	Shown(Notification)
	Dismissed(Notification)
}

// NotifierConfig selects the notification behavior of a dashboard.
type NotifierConfig struct {
	TTL time.Duration
	// Exclusive removes any visible notification before showing a new one.
	Exclusive bool
}

// Notifier keeps the set of visible notifications.
type Notifier struct {
	clock clock.Clock
	cfg   NotifierConfig
	sinks []Sink

	mu     sync.Mutex
	active []Notification
	timers map[string]*clock.Timer
}

// NewNotifier creates a notifier. A zero TTL means DefaultNotificationTTL.
func NewNotifier(clk clock.Clock, cfg NotifierConfig, sinks ...Sink) *Notifier {
	if clk == nil {
		clk = clock.New()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultNotificationTTL
	}
	return &Notifier{
		clock:  clk,
		cfg:    cfg,
		sinks:  sinks,
		timers: make(map[string]*clock.Timer),
	}
}

// Show displays message and schedules its removal after the TTL.
func (n *Notifier) Show(message string, kind Kind) Notification {
	note := Notification{
		ID:      uuid.NewString(),
		Message: message,
		Kind:    kind,
		ShownAt: n.clock.Now(),
	}

	n.mu.Lock()
	var evicted []Notification
	if n.cfg.Exclusive {
		evicted = n.active
		n.active = nil
		for _, old := range evicted {
			n.stopLocked(old.ID)
		}
	}
	n.active = append(n.active, note)
	n.timers[note.ID] = n.clock.AfterFunc(n.cfg.TTL, func() { n.Dismiss(note.ID) })
	n.mu.Unlock()

	for _, old := range evicted {
		n.emitDismissed(old)
	}
	for _, s := range n.sinks {
		s.Shown(note)
	}
	return note
}

// Dismiss removes a notification early. It reports whether id was visible.
func (n *Notifier) Dismiss(id string) bool {
	n.mu.Lock()
	idx := -1
	for i, note := range n.active {
		if note.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		n.mu.Unlock()
		return false
	}
	note := n.active[idx]
	n.active = append(n.active[:idx:idx], n.active[idx+1:]...)
	n.stopLocked(id)
	n.mu.Unlock()

	n.emitDismissed(note)
	return true
}

// Active returns the visible notifications, oldest first.
func (n *Notifier) Active() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, len(n.active))
	copy(out, n.active)
	return out
}

// Latest returns the most recent visible notification.
func (n *Notifier) Latest() (Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.active) == 0 {
		return Notification{}, false
	}
	return n.active[len(n.active)-1], true
}

func (n *Notifier) stopLocked(id string) {
	if t, ok := n.timers[id]; ok {
		t.Stop()
		delete(n.timers, id)
	}
}

func (n *Notifier) emitDismissed(note Notification) {
	for _, s := range n.sinks {
		s.Dismissed(note)
	}
}
