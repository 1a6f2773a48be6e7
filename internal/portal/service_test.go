package portal

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"collegeportal/internal/auth"
	"collegeportal/internal/store"
)

type fakeProofs struct {
	got []string
	err error
}

func (f *fakeProofs) StoreProof(_ context.Context, dataURL string) (string, error) {
	f.got = append(f.got, dataURL)
	if f.err != nil {
		return "", f.err
	}
	return "https://cdn.example/proof.png", nil
}

func newTestService(t *testing.T, proofs ProofStore) *Service {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "portal.db") + "?_foreign_keys=on"
	db, err := store.NewDB(context.Background(), "sqlite3", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	svc := NewService(NewRepository(db.Client), proofs, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC) }
	return svc
}

func kindOf(t *testing.T, err error) error {
	t.Helper()
	var perr *Error
	require.True(t, errors.As(err, &perr), "expected *portal.Error, got %v", err)
	return perr.Kind
}

func TestAddStudentRejectsDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	id, err := svc.AddStudent(ctx, NewUser{Username: "jdoe", Password: "x", Name: "J Doe", Email: "j@x.com", Class: "10A"})
	require.NoError(t, err)

	u, err := svc.GetUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleStudent, u.Role)
	assert.Equal(t, "10A", u.Class)
	assert.NotEqual(t, "x", u.Password)

	_, err = svc.AddFaculty(ctx, NewUser{Username: "jdoe", Password: "y", Name: "Other"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, "Username already exists", err.Error())

	_, err = svc.AddStudent(ctx, NewUser{Username: "nobody"})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	_, err := svc.AddFaculty(ctx, NewUser{Username: "prof", Password: "secret", Name: "Prof"})
	require.NoError(t, err)

	u, err := svc.Authenticate(ctx, "prof", "secret", auth.RoleFaculty)
	require.NoError(t, err)
	assert.Equal(t, "Prof", u.Name)

	_, err = svc.Authenticate(ctx, "prof", "wrong", auth.RoleFaculty)
	assert.ErrorIs(t, err, ErrDenied)
	_, err = svc.Authenticate(ctx, "prof", "secret", auth.RoleStudent)
	assert.ErrorIs(t, err, ErrDenied)
}

func TestUpdateUserAppliesRoleFields(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	sid, err := svc.AddStudent(ctx, NewUser{Username: "s", Password: "p", Name: "S"})
	require.NoError(t, err)
	fid, err := svc.AddFaculty(ctx, NewUser{Username: "f", Password: "p", Name: "F"})
	require.NoError(t, err)

	require.NoError(t, svc.UpdateUser(ctx, sid, UserUpdate{Role: auth.RoleStudent, Name: "S2", Class: "B.Tech", RollNo: "007", Section: "C"}))
	s, err := svc.GetUser(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, "S2", s.Name)
	assert.Equal(t, "007", s.RollNo)

	// stored role decides when none is given; faculty never get a roll number
	require.NoError(t, svc.UpdateUser(ctx, fid, UserUpdate{Name: "F2", RollNo: "999", Department: "Physics"}))
	f, err := svc.GetUser(ctx, fid)
	require.NoError(t, err)
	assert.Equal(t, "F2", f.Name)
	assert.Equal(t, "Physics", f.Department)
	assert.Empty(t, f.RollNo)

	err = svc.UpdateUser(ctx, 9999, UserUpdate{Role: auth.RoleStudent, Name: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.DeleteUser(ctx, sid))
	assert.ErrorIs(t, svc.DeleteUser(ctx, sid), ErrNotFound)
}

func TestApplyPermission(t *testing.T) {
	ctx := context.Background()
	proofs := &fakeProofs{}
	svc := newTestService(t, proofs)
	sid, err := svc.AddStudent(ctx, NewUser{Username: "s", Password: "p", Name: "S", RollNo: "001"})
	require.NoError(t, err)

	_, err = svc.ApplyPermission(ctx, sid, NewPermission{Date: "2024-03-20", Reason: "Fever"})
	require.Error(t, err)
	assert.Equal(t, "No faculty found", err.Error())
	assert.Equal(t, ErrNotFound, kindOf(t, err))

	fid, err := svc.AddFaculty(ctx, NewUser{Username: "f1", Password: "p", Name: "First"})
	require.NoError(t, err)
	_, err = svc.AddFaculty(ctx, NewUser{Username: "f2", Password: "p", Name: "Second"})
	require.NoError(t, err)

	p, err := svc.ApplyPermission(ctx, sid, NewPermission{Date: "2024-03-20", Reason: "Fever", Proof: "data:image/png;base64,AAAA"})
	require.NoError(t, err)
	require.NotNil(t, p.FacultyID)
	assert.Equal(t, fid, *p.FacultyID)
	assert.Equal(t, StatusPending, p.Status)
	assert.Equal(t, "https://cdn.example/proof.png", p.Proof)
	assert.Len(t, proofs.got, 1)

	_, err = svc.ApplyPermission(ctx, sid, NewPermission{Date: "20/03/2024", Reason: "Fever"})
	assert.ErrorIs(t, err, ErrInvalid)

	proofs.err = errors.New("cdn down")
	_, err = svc.ApplyPermission(ctx, sid, NewPermission{Date: "2024-03-21", Reason: "Trip", Proof: "data:image/png;base64,BBBB"})
	require.Error(t, err)
	var perr *Error
	assert.False(t, errors.As(err, &perr))

	fv, err := svc.FacultyDashboard(ctx, fid)
	require.NoError(t, err)
	require.Len(t, fv.Permissions, 1)
	assert.Equal(t, "S", fv.Permissions[0].StudentName)
	assert.Equal(t, "001", fv.Permissions[0].RollNo)
	assert.Equal(t, 1, fv.PendingPermissions)

	require.NoError(t, svc.DecidePermission(ctx, p.ID, StatusApproved))
	assert.ErrorIs(t, svc.DecidePermission(ctx, p.ID, "maybe"), ErrInvalid)
	assert.ErrorIs(t, svc.DecidePermission(ctx, 12345, StatusRejected), ErrNotFound)

	sv, err := svc.StudentDashboard(ctx, sid)
	require.NoError(t, err)
	require.Len(t, sv.Permissions, 1)
	assert.Equal(t, StatusApproved, sv.Permissions[0].Status)
	assert.Equal(t, "First", sv.Permissions[0].FacultyName)
	assert.Zero(t, sv.PendingPermissions)
}

func TestMarkAttendanceReplacesTodaysSheet(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	fid, err := svc.AddFaculty(ctx, NewUser{Username: "f", Password: "p", Name: "F"})
	require.NoError(t, err)
	s1, err := svc.AddStudent(ctx, NewUser{Username: "s1", Password: "p", Name: "One"})
	require.NoError(t, err)
	s2, err := svc.AddStudent(ctx, NewUser{Username: "s2", Password: "p", Name: "Two"})
	require.NoError(t, err)

	_, err = svc.MarkAttendance(ctx, fid, map[string]string{"1": Present})
	require.Error(t, err)
	assert.Equal(t, "No classes assigned to faculty", err.Error())

	_, err = svc.repo.CreateClass(ctx, Class{Name: "Maths", FacultyID: &fid})
	require.NoError(t, err)

	n, err := svc.MarkAttendance(ctx, fid, map[string]string{
		itoa(s1): Present,
		itoa(s2): "late",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = svc.MarkAttendance(ctx, fid, map[string]string{
		itoa(s1): Absent,
		itoa(s2): Present,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	day, err := svc.repo.AttendanceForDay(ctx, fid, "2024-03-14")
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{s1: Absent, s2: Present}, day)

	sv, err := svc.StudentDashboard(ctx, s2)
	require.NoError(t, err)
	assert.Equal(t, 100.0, sv.AttendancePercentage)
	require.Len(t, sv.Attendance, 1)
	assert.Equal(t, "Maths", sv.Attendance[0].Subject)
	assert.Equal(t, "F", sv.Attendance[0].Marker)

	_, err = svc.MarkAttendance(ctx, fid, map[string]string{"abc": Present})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	id, err := svc.AddStudent(ctx, NewUser{Username: "s", Password: "old", Name: "S"})
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, id, "nope", "new", "new")
	require.Error(t, err)
	assert.Equal(t, "Current password is incorrect", err.Error())
	err = svc.ChangePassword(ctx, id, "old", "new", "other")
	require.Error(t, err)
	assert.Equal(t, "New passwords do not match", err.Error())

	require.NoError(t, svc.ChangePassword(ctx, id, "old", "new", "new"))
	_, err = svc.Authenticate(ctx, "s", "new", auth.RoleStudent)
	assert.NoError(t, err)
}

func TestClubsEvents(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	id, err := svc.AddClubEvent(ctx, "Chess Club", KindClub)
	require.NoError(t, err)
	_, err = svc.AddClubEvent(ctx, "Hackathon", KindEvent)
	require.NoError(t, err)
	_, err = svc.AddClubEvent(ctx, "Party", "gathering")
	assert.ErrorIs(t, err, ErrInvalid)

	items, err := svc.ClubsEvents(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Chess Club", items[0].Name)
	assert.True(t, items[0].IsActive)

	require.NoError(t, svc.UpdateClubEvent(ctx, id, "Chess Society", KindClub))
	require.NoError(t, svc.DeleteClubEvent(ctx, id))
	assert.ErrorIs(t, svc.DeleteClubEvent(ctx, id), ErrNotFound)

	items, err = svc.ClubsEvents(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, KindEvent, items[0].Type)
	assert.Equal(t, "Event", KindTitle(items[0].Type))
}

func TestSeedAndDashboards(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	seeded, err := svc.Seed(ctx)
	require.NoError(t, err)
	assert.True(t, seeded)
	seeded, err = svc.Seed(ctx)
	require.NoError(t, err)
	assert.False(t, seeded)

	admin, err := svc.AdminDashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, admin.StudentsCount)
	assert.Equal(t, 2, admin.FacultyCount)
	assert.Equal(t, 1, admin.PendingPermissions)
	assert.Equal(t, 2, admin.EventsCount)
	assert.Equal(t, "001", admin.Students[0].RollNo)

	f, err := svc.Authenticate(ctx, "faculty1", "faculty123", auth.RoleFaculty)
	require.NoError(t, err)
	fv, err := svc.FacultyDashboard(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fv.ClassesCount)
	assert.Equal(t, "Mathematics", fv.Classes[0].Name)
	assert.Len(t, fv.TodayAttendance, 2)

	s, err := svc.Authenticate(ctx, "student1", "student123", auth.RoleStudent)
	require.NoError(t, err)
	sv, err := svc.StudentDashboard(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, sv.Clubs, len(defaultClubs))
	assert.Equal(t, 2, sv.EventsCount)
	assert.Equal(t, 100.0, sv.AttendancePercentage)
	assert.Equal(t, 1, sv.PendingPermissions)
	assert.Equal(t, "John Doe", sv.Student.Name)
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0.0, Percentage(0, 0))
	assert.Equal(t, 66.7, Percentage(2, 3))
	assert.Equal(t, 50.0, Percentage(1, 2))
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
