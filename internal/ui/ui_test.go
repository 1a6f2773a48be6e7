package ui

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collegeportal/internal/client"
)

type recordSink struct {
	mu        sync.Mutex
	shown     []string
	dismissed []string
}

func (r *recordSink) Shown(n Notification) {
	r.mu.Lock()
	r.shown = append(r.shown, n.Message)
	r.mu.Unlock()
}

func (r *recordSink) Dismissed(n Notification) {
	r.mu.Lock()
	r.dismissed = append(r.dismissed, n.Message)
	r.mu.Unlock()
}

func (r *recordSink) dismissedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.dismissed)
}

func TestNotificationsAutoDismiss(t *testing.T) {
	mock := clock.NewMock()
	sink := &recordSink{}
	n := NewNotifier(mock, NotifierConfig{}, sink)

	first := n.Show("Saved", KindSuccess)
	n.Show("Careful", KindInfo)
	require.Len(t, n.Active(), 2)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, mock.Now(), first.ShownAt)

	mock.Add(4999 * time.Millisecond)
	assert.Len(t, n.Active(), 2)

	mock.Add(time.Millisecond)
	assert.Eventually(t, func() bool { return len(n.Active()) == 0 }, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return sink.dismissedCount() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"Saved", "Careful"}, sink.shown)
}

func TestNotificationDismissEarly(t *testing.T) {
	mock := clock.NewMock()
	n := NewNotifier(mock, NotifierConfig{TTL: time.Second})

	note := n.Show("x", KindError)
	assert.True(t, n.Dismiss(note.ID))
	assert.False(t, n.Dismiss(note.ID))
	assert.Empty(t, n.Active())

	_, ok := n.Latest()
	assert.False(t, ok)
}

func TestExclusiveNotifierReplaces(t *testing.T) {
	mock := clock.NewMock()
	sink := &recordSink{}
	n := NewNotifier(mock, NotifierConfig{Exclusive: true}, sink)

	n.Show("one", KindInfo)
	mock.Add(3 * time.Second)
	n.Show("two", KindSuccess)

	active := n.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "two", active[0].Message)
	assert.Equal(t, 1, sink.dismissedCount())

	// the replaced notification's timer must not remove the new one
	mock.Add(2 * time.Second)
	time.Sleep(5 * time.Millisecond)
	assert.Len(t, n.Active(), 1)

	mock.Add(3 * time.Second)
	assert.Eventually(t, func() bool { return len(n.Active()) == 0 }, time.Second, time.Millisecond)
}

func TestButtonsAcquireRelease(t *testing.T) {
	b := NewButtons()
	b.Add("add-user", "Add Student")
	b.Add("save-attendance", "")

	var changes []Control
	b.Watch(func(c Control) { changes = append(changes, c) })

	release := b.Acquire()
	for _, c := range b.Controls() {
		assert.True(t, c.Disabled, c.Name)
		assert.Equal(t, ProcessingLabel, c.Label)
	}
	release()
	release()

	c, _ := b.Get("add-user")
	assert.False(t, c.Disabled)
	assert.Equal(t, "Add Student", c.Label)
	c, _ = b.Get("save-attendance")
	assert.Equal(t, DefaultLabel, c.Label)
	assert.Len(t, changes, 4)

	release = b.Acquire("save-attendance")
	c, _ = b.Get("add-user")
	assert.False(t, c.Disabled)
	c, _ = b.Get("save-attendance")
	assert.True(t, c.Disabled)
	release()
}

func TestButtonsOverlappingAcquire(t *testing.T) {
	b := NewButtons()
	b.Add("submit", "Save")

	r1 := b.Acquire()
	r2 := b.Acquire()
	r1()
	c, _ := b.Get("submit")
	assert.True(t, c.Disabled)
	r2()
	c, _ = b.Get("submit")
	assert.False(t, c.Disabled)
	assert.Equal(t, "Save", c.Label)
}

func TestValidateMessages(t *testing.T) {
	assert.EqualError(t, Validate(&StudentForm{Password: "x", Name: "n"}), "Username is required")
	assert.NoError(t, Validate(&StudentForm{Username: "u", Password: "x", Name: "n"}))

	assert.EqualError(t, Validate(&PasswordForm{CurrentPassword: "a", NewPassword: "b", ConfirmPassword: "c"}), "New passwords do not match")
	assert.NoError(t, Validate(&PasswordForm{CurrentPassword: "a", NewPassword: "b", ConfirmPassword: "b"}))

	assert.EqualError(t, Validate(&ClubEventForm{Name: "Chess"}), "Type is required")
	assert.EqualError(t, Validate(&PermissionForm{Reason: "x"}), "Date is required")
	assert.EqualError(t, Validate(&UploadForm{}), "Please select an Excel file (.xlsx or .xls)")
}

func TestFormsLeaveFormatsToServer(t *testing.T) {
	assert.NoError(t, Validate(&StudentForm{Username: "u", Password: "x", Name: "n", Email: "bad"}))
	assert.NoError(t, Validate(&ClubEventForm{Name: "Chess", Type: "party"}))
	assert.NoError(t, Validate(&PermissionForm{Date: "14/03/2024", Reason: "x"}))
	assert.NoError(t, Validate(&UploadForm{Filename: "roster.csv"}))
}

func TestStudentPayloadCarriesDepartment(t *testing.T) {
	f := StudentForm{Username: "jdoe", Password: "x", Name: "J Doe", Department: "CSE"}
	b, err := json.Marshal(f.Payload())
	require.NoError(t, err)
	assert.JSONEq(t, `{"username":"jdoe","password":"x","name":"J Doe","department":"CSE"}`, string(b))

	f.Department = ""
	b, err = json.Marshal(f.Payload())
	require.NoError(t, err)
	assert.JSONEq(t, `{"username":"jdoe","password":"x","name":"J Doe"}`, string(b))
}

func TestWatchersSeeEveryChange(t *testing.T) {
	b := NewButtons()
	b.Add("submit", "Save")
	var mu sync.Mutex
	var seen []Control
	b.Watch(func(c Control) {
		mu.Lock()
		seen = append(seen, c)
		mu.Unlock()
	})
	b.Acquire()()
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Control{
		{Name: "submit", Label: ProcessingLabel, Disabled: true},
		{Name: "submit", Label: "Save"},
	}, seen)
}

func TestAttendanceSheet(t *testing.T) {
	var s AttendanceSheet
	s.Mark(4, "present")
	s.Mark(5, "absent")
	s.Mark(5, "")
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, map[string]string{"4": "present"}, s.Payload())
	s.Reset()
	assert.Zero(t, s.Len())
}

type harness struct {
	mock     *clock.Mock
	notifier *Notifier
	buttons  *Buttons
	sub      *Submitter
	reloads  atomic.Int32
	enables  atomic.Int32
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{mock: clock.NewMock()}
	h.notifier = NewNotifier(h.mock, NotifierConfig{})
	h.buttons = NewButtons()
	h.buttons.Add("submit", "Add Student")
	h.buttons.Add("cancel", "Cancel")
	h.buttons.Watch(func(c Control) {
		if !c.Disabled {
			h.enables.Add(1)
		}
	})
	reload := ReloadFunc(func(context.Context) error {
		h.reloads.Add(1)
		return nil
	})
	h.sub = NewSubmitter(h.notifier, h.buttons, reload, nil, h.mock, nil)
	return h
}

func (h *harness) latest(t *testing.T) Notification {
	t.Helper()
	n, ok := h.notifier.Latest()
	require.True(t, ok)
	return n
}

func TestSubmitSuccessClosesResetsAndReloads(t *testing.T) {
	h := newHarness(t)
	var disabledDuring bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, _ := h.buttons.Get("submit")
		disabledDuring = c.Disabled && c.Label == ProcessingLabel
		_, _ = io.WriteString(w, `{"success":true,"message":"Student added successfully"}`)
	}))
	defer srv.Close()
	api := client.New(srv.URL)

	form := &StudentForm{Username: "jdoe", Password: "x", Name: "J Doe"}
	modal := NewModal("add-user")
	modal.Open()

	out := h.sub.Submit(context.Background(), Action{
		Name:      "add-user",
		Form:      form,
		Send:      func(ctx context.Context) (client.Result, error) { return api.AddUser(ctx, form.Payload()) },
		Success:   Fixed("Student added successfully!"),
		Modal:     modal,
		ResetForm: true,
		ReloadIn:  time.Second,
	})
	assert.Equal(t, Succeeded, out)
	assert.True(t, disabledDuring)
	assert.EqualValues(t, 2, h.enables.Load())
	assert.False(t, modal.IsOpen())
	assert.Equal(t, StudentForm{}, *form)

	n := h.latest(t)
	assert.Equal(t, "Student added successfully!", n.Message)
	assert.Equal(t, KindSuccess, n.Kind)

	h.mock.Add(999 * time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	assert.Zero(t, h.reloads.Load())
	h.mock.Add(time.Millisecond)
	assert.Eventually(t, func() bool { return h.reloads.Load() == 1 }, time.Second, time.Millisecond)
}

func TestSubmitRejectedKeepsForm(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"success":false,"message":"Username already exists"}`)
	}))
	defer srv.Close()
	api := client.New(srv.URL)

	form := &StudentForm{Username: "jdoe", Password: "x", Name: "J Doe"}
	modal := NewModal("add-user")
	modal.Open()

	out := h.sub.Submit(context.Background(), Action{
		Form:      form,
		Send:      func(ctx context.Context) (client.Result, error) { return api.AddUser(ctx, form.Payload()) },
		Modal:     modal,
		ResetForm: true,
		ReloadIn:  time.Second,
	})
	assert.Equal(t, Rejected, out)
	assert.EqualValues(t, 2, h.enables.Load())
	assert.True(t, modal.IsOpen())
	assert.Equal(t, "jdoe", form.Username)

	n := h.latest(t)
	assert.Equal(t, "Error: Username already exists", n.Message)
	assert.Equal(t, KindError, n.Kind)

	h.mock.Add(time.Minute)
	time.Sleep(5 * time.Millisecond)
	assert.Zero(t, h.reloads.Load())
}

func TestSubmitTransportFailureUsesFallback(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	api := client.New(url)

	form := &StudentForm{Username: "jdoe", Password: "x", Name: "J Doe"}
	out := h.sub.Submit(context.Background(), Action{
		Form:     form,
		Send:     func(ctx context.Context) (client.Result, error) { return api.AddUser(ctx, form.Payload()) },
		Fallback: "An error occurred while adding student.",
		ReloadIn: time.Second,
	})
	assert.Equal(t, Failed, out)
	assert.EqualValues(t, 2, h.enables.Load())
	assert.Equal(t, "An error occurred while adding student.", h.latest(t).Message)
	assert.Equal(t, "jdoe", form.Username)

	h.mock.Add(time.Minute)
	time.Sleep(5 * time.Millisecond)
	assert.Zero(t, h.reloads.Load())
}

func TestSubmitInvalidSendsNothing(t *testing.T) {
	h := newHarness(t)
	var sent atomic.Int32

	out := h.sub.Submit(context.Background(), Action{
		Form: &PasswordForm{CurrentPassword: "old", NewPassword: "new1", ConfirmPassword: "new2"},
		Send: func(context.Context) (client.Result, error) {
			sent.Add(1)
			return client.Result{Success: true}, nil
		},
	})
	assert.Equal(t, Invalid, out)
	assert.Zero(t, sent.Load())
	assert.Zero(t, h.enables.Load())
	for _, c := range h.buttons.Controls() {
		assert.False(t, c.Disabled)
	}
	assert.Equal(t, "New passwords do not match", h.latest(t).Message)
}

func TestSubmitDeclinedConfirmation(t *testing.T) {
	h := newHarness(t)
	h.sub.Confirmer = ConfirmFunc(func(prompt string) bool {
		assert.Equal(t, "Are you sure you want to delete this student?", prompt)
		return false
	})
	out := h.sub.Submit(context.Background(), Action{
		Confirm: "Are you sure you want to delete this student?",
		Send: func(context.Context) (client.Result, error) {
			t.Fatal("request sent after decline")
			return client.Result{}, nil
		},
	})
	assert.Equal(t, Declined, out)
	assert.Empty(t, h.notifier.Active())
}

func TestSubmitRefreshInsteadOfReload(t *testing.T) {
	h := newHarness(t)
	var refreshed bool
	out := h.sub.Submit(context.Background(), Action{
		Controls: []string{"submit"},
		Send: func(context.Context) (client.Result, error) {
			c, _ := h.buttons.Get("cancel")
			assert.False(t, c.Disabled)
			return client.Result{Success: true, Message: "Club added successfully"}, nil
		},
		Refresh: func(context.Context) error {
			refreshed = true
			return nil
		},
	})
	assert.Equal(t, Succeeded, out)
	assert.True(t, refreshed)
	assert.EqualValues(t, 1, h.enables.Load())
	assert.Equal(t, "Club added successfully", h.latest(t).Message)

	h.mock.Add(time.Minute)
	time.Sleep(5 * time.Millisecond)
	assert.Zero(t, h.reloads.Load())
}

func TestStopCancelsPendingReload(t *testing.T) {
	h := newHarness(t)
	h.sub.Submit(context.Background(), Action{
		Send:     func(context.Context) (client.Result, error) { return client.Result{Success: true}, nil },
		ReloadIn: 2 * time.Second,
	})
	h.sub.Stop()
	h.mock.Add(time.Minute)
	time.Sleep(5 * time.Millisecond)
	assert.Zero(t, h.reloads.Load())
}

func TestSubmitReleasesControlsWhenSendPanics(t *testing.T) {
	h := newHarness(t)
	assert.Panics(t, func() {
		h.sub.Submit(context.Background(), Action{
			Name:     "boom",
			Controls: []string{"submit"},
			Send:     func(context.Context) (client.Result, error) { panic("boom") },
		})
	})
	c, _ := h.buttons.Get("submit")
	assert.False(t, c.Disabled)
	assert.Equal(t, "Add Student", c.Label)
	assert.Equal(t, int32(1), h.enables.Load())
}
