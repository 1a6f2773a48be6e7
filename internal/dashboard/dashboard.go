// Package dashboard binds the portal's dashboard actions (admin, faculty,
// student) to the API client through the shared ui view-model.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"collegeportal/internal/client"
	"collegeportal/internal/ui"
)

// Control names.
const (
	ControlSubmit         = "submit"
	ControlUpload         = "upload"
	ControlSaveAttendance = "save-attendance"
)

// Modal names.
const (
	ModalAddUser         = "add-user"
	ModalAddFaculty      = "add-faculty"
	ModalUploadStudents  = "upload-students"
	ModalUploadFaculty   = "upload-faculty"
	ModalAddClubEvent    = "add-club-event"
	ModalEditClubEvent   = "edit-club-event"
	ModalEditUser        = "edit-user"
	ModalApplyPermission = "apply-permission"
	ModalChangePassword  = "change-password"
)

var modalNames = []string{
	ModalAddUser, ModalAddFaculty, ModalUploadStudents, ModalUploadFaculty,
	ModalAddClubEvent, ModalEditClubEvent, ModalEditUser,
	ModalApplyPermission, ModalChangePassword,
}

// Config parameterizes a dashboard.
type Config struct {
	Role          string
	Notifications ui.NotifierConfig
	// ShortReload follows single-record changes, LongReload bulk ones.
	ShortReload time.Duration
	LongReload  time.Duration
}

// DefaultConfig returns the settings the portal's dashboards use. The
// role dashboards show one notification at a time.
func DefaultConfig(role string) Config {
	return Config{
		Role:          role,
		Notifications: ui.NotifierConfig{TTL: ui.DefaultNotificationTTL, Exclusive: role != ""},
		ShortReload:   time.Second,
		LongReload:    2 * time.Second,
	}
}

// Forms holds the transient form state of a dashboard.
type Forms struct {
	Student    ui.StudentForm
	Faculty    ui.FacultyForm
	Upload     ui.UploadForm
	ClubEvent  ui.ClubEventForm
	EditClub   ui.ClubEventForm
	EditUser   ui.EditUserForm
	Permission ui.PermissionForm
	Password   ui.PasswordForm
	Attendance ui.AttendanceSheet
}

// Dashboard is one open dashboard page.
type Dashboard struct {
	cfg    Config
	api    *client.Client
	log    *zap.Logger
	Notify *ui.Notifier
	Guard  *ui.Buttons
	Submit *ui.Submitter
	Modals map[string]*ui.Modal
	Forms  Forms

	mu          sync.Mutex
	page        client.Result
	clubsEvents []client.ClubEvent
	onReload    []func(client.Result)
}

// New creates a dashboard. sinks receive its notifications.
func New(api *client.Client, cfg Config, clk clock.Clock, confirm ui.Confirmer, log *zap.Logger, sinks ...ui.Sink) *Dashboard {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dashboard{
		cfg:    cfg,
		api:    api,
		log:    log,
		Notify: ui.NewNotifier(clk, cfg.Notifications, sinks...),
		Guard:  ui.NewButtons(),
		Modals: make(map[string]*ui.Modal, len(modalNames)),
	}
	d.Guard.Add(ControlSubmit, "Submit")
	d.Guard.Add(ControlUpload, "Upload")
	d.Guard.Add(ControlSaveAttendance, "Save Attendance")
	for _, name := range modalNames {
		d.Modals[name] = ui.NewModal(name)
	}
	d.Submit = ui.NewSubmitter(d.Notify, d.Guard, d, confirm, clk, log)
	return d
}

// OnReload registers fn to receive every freshly loaded page.
func (d *Dashboard) OnReload(fn func(client.Result)) {
	d.mu.Lock()
	d.onReload = append(d.onReload, fn)
	d.mu.Unlock()
}

// Reload re-reads the dashboard from the server.
func (d *Dashboard) Reload(ctx context.Context) error {
	res, err := d.api.Dashboard(ctx)
	if err != nil {
		return err
	}
	if err := res.Err(); err != nil {
		return fmt.Errorf("load dashboard: %w", err)
	}
	d.mu.Lock()
	d.page = res
	hooks := append([]func(client.Result){}, d.onReload...)
	d.mu.Unlock()
	for _, fn := range hooks {
		fn(res)
	}
	return nil
}

// Page returns the last loaded dashboard.
func (d *Dashboard) Page() client.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.page
}

// ClubsEvents returns the last loaded club/event list.
func (d *Dashboard) ClubsEvents() []client.ClubEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]client.ClubEvent(nil), d.clubsEvents...)
}

// Close cancels pending reloads.
func (d *Dashboard) Close() {
	d.Submit.Stop()
}

func (d *Dashboard) modal(name string) *ui.Modal {
	return d.Modals[name]
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
