package dashboard

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"collegeportal/internal/auth"
	"collegeportal/internal/client"
	"collegeportal/internal/handler"
	"collegeportal/internal/metrics"
	"collegeportal/internal/portal"
	"collegeportal/internal/store"
	"collegeportal/internal/ui"
)

const (
	testKey    = "dashboard-test-key"
	testIssuer = "college-portal-test"
)

type noRevoke struct{}

func (noRevoke) Revoke(context.Context, string, time.Time) error { return nil }
func (noRevoke) Revoked(context.Context, string) (bool, error)   { return false, nil }

func newPortal(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "portal.db") + "?_foreign_keys=on"
	db, err := store.NewDB(ctx, "sqlite3", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	svc := portal.NewService(portal.NewRepository(db.Client), nil, zap.NewNop())
	_, err = svc.Seed(ctx)
	require.NoError(t, err)

	h := handler.New(svc, handler.Options{Issuer: testIssuer, SigningKey: testKey, SessionTTL: time.Hour, UploadMaxBytes: 1 << 20},
		noRevoke{}, metrics.New(prometheus.NewRegistry()), zap.NewNop())
	r := gin.New()
	r.Use(auth.Sessions(testKey, testIssuer, noRevoke{}, zap.NewNop()))
	h.Register(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

type session struct {
	d       *Dashboard
	mock    *clock.Mock
	reloads atomic.Int32
	asked   []string
}

func open(t *testing.T, srv *httptest.Server, username, password, role string) *session {
	t.Helper()
	api := client.New(srv.URL)
	res, err := api.Login(context.Background(), username, password, role)
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)

	s := &session{mock: clock.NewMock()}
	confirm := ui.ConfirmFunc(func(prompt string) bool {
		s.asked = append(s.asked, prompt)
		return true
	})
	s.d = New(api, DefaultConfig(role), s.mock, confirm, zap.NewNop())
	s.d.OnReload(func(client.Result) { s.reloads.Add(1) })
	require.NoError(t, s.d.Reload(context.Background()))
	s.reloads.Store(0)
	t.Cleanup(s.d.Close)
	return s
}

func (s *session) message(t *testing.T) string {
	t.Helper()
	n, ok := s.d.Notify.Latest()
	require.True(t, ok)
	return n.Message
}

func (s *session) waitReload(t *testing.T, after time.Duration) {
	t.Helper()
	s.mock.Add(after - time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	assert.Zero(t, s.reloads.Load(), "reloaded before %s", after)
	s.mock.Add(time.Millisecond)
	assert.Eventually(t, func() bool { return s.reloads.Load() == 1 }, time.Second, time.Millisecond)
}

func TestAdminAddUserReloadsAfterOneSecond(t *testing.T) {
	srv := newPortal(t)
	s := open(t, srv, "admin", "admin123", auth.RoleAdmin)
	assert.EqualValues(t, 2, s.d.Page().Get("dashboard.students_count").Int())

	s.d.Modals[ModalAddUser].Open()
	s.d.Forms.Student = ui.StudentForm{Username: "jdoe", Password: "x", Name: "J Doe", Email: "j@x.com", Class: "10A"}
	assert.Equal(t, ui.Succeeded, s.d.AddUser(context.Background()))

	assert.Equal(t, "Student added successfully!", s.message(t))
	assert.False(t, s.d.Modals[ModalAddUser].IsOpen())
	assert.Equal(t, ui.StudentForm{}, s.d.Forms.Student)
	c, _ := s.d.Guard.Get(ControlSubmit)
	assert.False(t, c.Disabled)

	s.waitReload(t, time.Second)
	assert.EqualValues(t, 3, s.d.Page().Get("dashboard.students_count").Int())
}

func TestAdminDuplicateUserKeepsForm(t *testing.T) {
	srv := newPortal(t)
	s := open(t, srv, "admin", "admin123", auth.RoleAdmin)

	s.d.Modals[ModalAddUser].Open()
	s.d.Forms.Student = ui.StudentForm{Username: "student1", Password: "x", Name: "Again"}
	assert.Equal(t, ui.Rejected, s.d.AddUser(context.Background()))
	assert.Equal(t, "Error: Username already exists", s.message(t))
	assert.True(t, s.d.Modals[ModalAddUser].IsOpen())
	assert.Equal(t, "student1", s.d.Forms.Student.Username)

	s.mock.Add(time.Minute)
	time.Sleep(5 * time.Millisecond)
	assert.Zero(t, s.reloads.Load())
}

func TestAdminAddFacultyReloadsAfterTwoSeconds(t *testing.T) {
	srv := newPortal(t)
	s := open(t, srv, "admin", "admin123", auth.RoleAdmin)

	s.d.Forms.Faculty = ui.FacultyForm{Username: "prof", Password: "p", Name: "Prof", Department: "Maths"}
	assert.Equal(t, ui.Succeeded, s.d.AddFaculty(context.Background()))
	assert.Equal(t, "Faculty added successfully", s.message(t))
	s.waitReload(t, 2*time.Second)
}

func TestAdminUploadStudents(t *testing.T) {
	srv := newPortal(t)
	s := open(t, srv, "admin", "admin123", auth.RoleAdmin)

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Name", "RollNo", "Email", "Section", "Department", "Password"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"Asha", "301", "asha@x.com", "A", "CSE", "pw301"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	s.d.Forms.Upload = ui.UploadForm{Content: buf.Bytes()}
	assert.Equal(t, ui.Invalid, s.d.UploadStudents(context.Background()))
	assert.Equal(t, "Please select an Excel file (.xlsx or .xls)", s.message(t))

	// the file type is checked by the server
	s.d.Forms.Upload.Filename = "roster.csv"
	assert.Equal(t, ui.Rejected, s.d.UploadStudents(context.Background()))
	assert.Equal(t, "Error: Invalid file type", s.message(t))

	s.d.Forms.Upload.Filename = "roster.xlsx"
	assert.Equal(t, ui.Succeeded, s.d.UploadStudents(context.Background()))
	assert.Contains(t, s.message(t), "Successfully added 1 students.")
	assert.Equal(t, ui.UploadForm{}, s.d.Forms.Upload)
	s.waitReload(t, 2*time.Second)
}

func TestAdminClubEventsRefreshInPlace(t *testing.T) {
	srv := newPortal(t)
	s := open(t, srv, "admin", "admin123", auth.RoleAdmin)
	ctx := context.Background()

	require.NoError(t, s.d.LoadClubsEvents(ctx))
	before := len(s.d.ClubsEvents())
	require.NotZero(t, before)

	s.d.Forms.ClubEvent = ui.ClubEventForm{Name: "Robotics", Type: "club"}
	assert.Equal(t, ui.Succeeded, s.d.AddClubEvent(ctx))
	assert.Equal(t, "Club added successfully", s.message(t))
	items := s.d.ClubsEvents()
	require.Len(t, items, before+1)

	var robotics client.ClubEvent
	for _, it := range items {
		if it.Name == "Robotics" {
			robotics = it
		}
	}
	require.NotZero(t, robotics.ID)

	s.d.EditClubEvent(robotics)
	assert.True(t, s.d.Modals[ModalEditClubEvent].IsOpen())
	s.d.Forms.EditClub.Name = "Robotics Club"
	assert.Equal(t, ui.Succeeded, s.d.UpdateClubEvent(ctx))
	assert.False(t, s.d.Modals[ModalEditClubEvent].IsOpen())

	assert.Equal(t, ui.Succeeded, s.d.DeleteClubEvent(ctx, robotics.ID))
	assert.Equal(t, []string{"Are you sure you want to delete this club/event?"}, s.asked)
	assert.Len(t, s.d.ClubsEvents(), before)

	s.mock.Add(time.Minute)
	time.Sleep(5 * time.Millisecond)
	assert.Zero(t, s.reloads.Load())
}

func TestAdminEditAndDeleteUser(t *testing.T) {
	srv := newPortal(t)
	s := open(t, srv, "admin", "admin123", auth.RoleAdmin)
	ctx := context.Background()

	students := client.UsersFrom(s.d.Page().Get("dashboard.students"))
	require.NotEmpty(t, students)
	target := students[0]

	require.NoError(t, s.d.EditUser(ctx, target.ID))
	assert.True(t, s.d.Modals[ModalEditUser].IsOpen())
	assert.Equal(t, target.Name, s.d.Forms.EditUser.Name)

	s.d.Forms.EditUser.Name = "Renamed"
	assert.Equal(t, ui.Succeeded, s.d.UpdateUser(ctx))
	assert.False(t, s.d.Modals[ModalEditUser].IsOpen())
	s.waitReload(t, time.Second)

	assert.Error(t, s.d.EditUser(ctx, 9999))
	assert.Equal(t, "Error loading user data", s.message(t))

	assert.Equal(t, ui.Succeeded, s.d.DeleteUser(ctx, target.ID, auth.RoleStudent))
	assert.Equal(t, "Student deleted successfully", s.message(t))
	assert.Equal(t, "Are you sure you want to delete this student?", s.asked[len(s.asked)-1])
}

func TestFacultyAttendanceAndPermissions(t *testing.T) {
	srv := newPortal(t)
	s := open(t, srv, "faculty1", "faculty123", auth.RoleFaculty)
	ctx := context.Background()

	assert.Equal(t, ui.Invalid, s.d.MarkAttendance(ctx))
	assert.Equal(t, "Please mark attendance for at least one student", s.message(t))

	students := client.UsersFrom(s.d.Page().Get("dashboard.students"))
	require.NotEmpty(t, students)
	var disabled []string
	s.d.Guard.Watch(func(c ui.Control) {
		if c.Disabled {
			disabled = append(disabled, c.Name)
		}
	})
	s.d.Forms.Attendance.Mark(students[0].ID, "absent")
	assert.Equal(t, ui.Succeeded, s.d.MarkAttendance(ctx))
	assert.Equal(t, "Attendance saved successfully!", s.message(t))
	assert.Equal(t, []string{ControlSaveAttendance}, disabled)

	s.mock.Add(time.Minute)
	time.Sleep(5 * time.Millisecond)
	assert.Zero(t, s.reloads.Load())

	perm := s.d.Page().Get("dashboard.permissions.0.id").Int()
	require.NotZero(t, perm)
	assert.Equal(t, ui.Succeeded, s.d.UpdatePermissionStatus(ctx, perm, "approved"))
	assert.Equal(t, "Permission approved successfully!", s.message(t))
	s.waitReload(t, time.Second)
	assert.Equal(t, "approved", s.d.Page().Get("dashboard.permissions.0.status").String())
}

func TestStudentPermissionAndPassword(t *testing.T) {
	srv := newPortal(t)
	s := open(t, srv, "student1", "student123", auth.RoleStudent)
	ctx := context.Background()

	s.d.Modals[ModalApplyPermission].Open()
	s.d.Forms.Permission = ui.PermissionForm{Date: "2024-03-20", Reason: "Medical appointment"}
	assert.Equal(t, ui.Succeeded, s.d.ApplyPermission(ctx))
	assert.Equal(t, "Permission request submitted successfully!", s.message(t))
	assert.False(t, s.d.Modals[ModalApplyPermission].IsOpen())
	s.waitReload(t, time.Second)

	s.d.Forms.Password = ui.PasswordForm{CurrentPassword: "student123", NewPassword: "n1", ConfirmPassword: "n2"}
	assert.Equal(t, ui.Invalid, s.d.ChangePassword(ctx))
	assert.Equal(t, "New passwords do not match", s.message(t))

	s.d.Forms.Password = ui.PasswordForm{CurrentPassword: "wrong", NewPassword: "n1", ConfirmPassword: "n1"}
	assert.Equal(t, ui.Rejected, s.d.ChangePassword(ctx))
	assert.Equal(t, "Error: Current password is incorrect", s.message(t))

	s.d.Modals[ModalChangePassword].Open()
	s.d.Forms.Password.CurrentPassword = "student123"
	assert.Equal(t, ui.Succeeded, s.d.ChangePassword(ctx))
	assert.False(t, s.d.Modals[ModalChangePassword].IsOpen())
	assert.Equal(t, ui.PasswordForm{}, s.d.Forms.Password)

	api := client.New(srv.URL)
	res, err := api.Login(ctx, "student1", "n1", auth.RoleStudent)
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestExclusiveNotificationsOnRoleDashboards(t *testing.T) {
	assert.True(t, DefaultConfig(auth.RoleAdmin).Notifications.Exclusive)
	assert.False(t, DefaultConfig("").Notifications.Exclusive)
	assert.Equal(t, time.Second, DefaultConfig(auth.RoleStudent).ShortReload)
	assert.Equal(t, 2*time.Second, DefaultConfig(auth.RoleAdmin).LongReload)
}
