package ui

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"collegeportal/internal/client"
)

// Outcome is how a submit settled.
type Outcome int

const (
	// Invalid: local validation failed and nothing was sent.
	Invalid Outcome = iota
	// Succeeded: the server answered success=true.
	Succeeded
	// Rejected: the server answered success=false.
	Rejected
	// Failed: no usable reply (network or parse failure).
	Failed
	// Declined: a confirmation prompt was answered no.
	Declined
)

func (o Outcome) String() string {
	switch o {
	case Invalid:
		return "invalid"
	case Succeeded:
		return "succeeded"
	case Rejected:
		return "rejected"
	case Failed:
		return "failed"
	case Declined:
		return "declined"
	default:
		return "unknown"
	}
}

// Action describes one form submission or button press.
type Action struct {
	Name string
	// Form is validated with Validate before sending, when set.
	Form any
	// Check runs after Form validation; its error message is notified.
	Check func() error
	// Confirm is asked first when non-empty.
	Confirm string
	// Controls lists the guarded controls; empty guards every control.
	Controls []string
	Send     func(ctx context.Context) (client.Result, error)

	// Success picks the success notification; nil uses the server message.
	Success func(client.Result) string
	// Fallback is notified on transport failure.
	Fallback string

	Modal     *Modal
	ResetForm bool
	OnSuccess func(client.Result)
	ReloadIn  time.Duration
	Refresh   func(ctx context.Context) error
}

// Fixed returns a Success func that ignores the reply.
func Fixed(msg string) func(client.Result) string {
	return func(client.Result) string { return msg }
}

// Submitter runs actions against the shared view-model.
type Submitter struct {
	Notifier  *Notifier
	Buttons   *Buttons
	Reloader  Reloader
	Confirmer Confirmer
	Clock     clock.Clock
	Log       *zap.Logger

	mu      sync.Mutex
	pending []*clock.Timer
}

// NewSubmitter wires a submitter. A nil confirmer answers yes.
func NewSubmitter(n *Notifier, b *Buttons, r Reloader, c Confirmer, clk clock.Clock, log *zap.Logger) *Submitter {
	if c == nil {
		c = AlwaysConfirm
	}
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Submitter{Notifier: n, Buttons: b, Reloader: r, Confirmer: c, Clock: clk, Log: log}
}

// Submit validates, sends and settles a.
func (s *Submitter) Submit(ctx context.Context, a Action) Outcome {
	if a.Confirm != "" && !s.Confirmer.Confirm(a.Confirm) {
		return Declined
	}
	if a.Form != nil {
		if err := Validate(a.Form); err != nil {
			s.Notifier.Show(err.Error(), KindError)
			return Invalid
		}
	}
	if a.Check != nil {
		if err := a.Check(); err != nil {
			s.Notifier.Show(err.Error(), KindError)
			return Invalid
		}
	}

	release := s.Buttons.Acquire(a.Controls...)
	// the deferred call only matters when Send panics
	defer release()
	res, err := a.Send(ctx)
	release()

	if err != nil {
		s.Log.Debug("action failed", zap.String("action", a.Name), zap.Error(err))
		msg := a.Fallback
		if msg == "" {
			msg = "An error occurred. Please try again."
		}
		if !errors.Is(err, client.ErrTransport) {
			s.Log.Warn("action error", zap.String("action", a.Name), zap.Error(err))
		}
		s.Notifier.Show(msg, KindError)
		return Failed
	}
	if !res.Success {
		s.Notifier.Show("Error: "+res.Message, KindError)
		return Rejected
	}

	if a.Modal != nil {
		a.Modal.Close()
	}
	if a.ResetForm {
		if r, ok := a.Form.(Resetter); ok {
			r.Reset()
		}
	}
	if a.OnSuccess != nil {
		a.OnSuccess(res)
	}
	msg := res.Message
	if a.Success != nil {
		msg = a.Success(res)
	}
	if msg != "" {
		s.Notifier.Show(msg, KindSuccess)
	}

	if a.Refresh != nil {
		if err := a.Refresh(ctx); err != nil {
			s.Log.Debug("refresh failed", zap.String("action", a.Name), zap.Error(err))
		}
	}
	if a.ReloadIn > 0 && s.Reloader != nil {
		s.scheduleReload(a.Name, a.ReloadIn)
	}
	return Succeeded
}

func (s *Submitter) scheduleReload(action string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, s.Clock.AfterFunc(d, func() {
		if err := s.Reloader.Reload(context.Background()); err != nil {
			s.Log.Debug("reload failed", zap.String("action", action), zap.Error(err))
		}
	}))
}

// Stop cancels reloads that have not fired yet.
func (s *Submitter) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.pending {
		t.Stop()
	}
	s.pending = nil
}
