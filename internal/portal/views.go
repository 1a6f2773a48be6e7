package portal

import (
	"context"
	"fmt"
	"math"

	"collegeportal/internal/auth"
)

// AdminView is the data behind the admin dashboard.
type AdminView struct {
	StudentsCount      int    `json:"students_count"`
	FacultyCount       int    `json:"faculty_count"`
	PendingPermissions int    `json:"pending_permissions"`
	EventsCount        int    `json:"events_count"`
	Students           []User `json:"students"`
	Faculty            []User `json:"faculty"`
}

// FacultyView is the data behind the faculty dashboard. TodayAttendance maps
// student id to the status this faculty member recorded today.
type FacultyView struct {
	ClassesCount       int              `json:"classes_count"`
	StudentsCount      int              `json:"students_count"`
	PendingPermissions int              `json:"pending_permissions"`
	Permissions        []Permission     `json:"permissions"`
	Classes            []Class          `json:"classes"`
	Students           []User           `json:"students"`
	TodayAttendance    map[int64]string `json:"today_attendance"`
}

// StudentView is the data behind the student dashboard.
type StudentView struct {
	Clubs                []ClubEvent        `json:"clubs"`
	Events               []ClubEvent        `json:"events"`
	AttendancePercentage float64            `json:"attendance_percentage"`
	PendingPermissions   int                `json:"pending_permissions"`
	EventsCount          int                `json:"events_count"`
	Attendance           []AttendanceRecord `json:"attendance"`
	Permissions          []Permission       `json:"permissions"`
	Student              User               `json:"student"`
}

// AdminDashboard collects counts and user lists.
func (s *Service) AdminDashboard(ctx context.Context) (AdminView, error) {
	var v AdminView
	var err error
	if v.StudentsCount, err = s.repo.CountUsers(ctx, auth.RoleStudent); err != nil {
		return v, fmt.Errorf("count students: %w", err)
	}
	if v.FacultyCount, err = s.repo.CountUsers(ctx, auth.RoleFaculty); err != nil {
		return v, fmt.Errorf("count faculty: %w", err)
	}
	if v.PendingPermissions, err = s.repo.CountPermissions(ctx, PermissionFilter{Status: StatusPending}); err != nil {
		return v, fmt.Errorf("count permissions: %w", err)
	}
	if v.EventsCount, err = s.repo.CountClubsEvents(ctx, KindEvent); err != nil {
		return v, fmt.Errorf("count events: %w", err)
	}
	if v.Students, err = s.repo.ListUsers(ctx, auth.RoleStudent); err != nil {
		return v, fmt.Errorf("list students: %w", err)
	}
	if v.Faculty, err = s.repo.ListUsers(ctx, auth.RoleFaculty); err != nil {
		return v, fmt.Errorf("list faculty: %w", err)
	}
	v.Students, v.Faculty = nonNil(v.Students), nonNil(v.Faculty)
	return v, nil
}

// FacultyDashboard collects what facultyID needs to review requests and take
// attendance.
func (s *Service) FacultyDashboard(ctx context.Context, facultyID int64) (FacultyView, error) {
	var v FacultyView
	var err error
	if v.Classes, err = s.repo.ClassesForFaculty(ctx, facultyID); err != nil {
		return v, fmt.Errorf("list classes: %w", err)
	}
	v.ClassesCount = len(v.Classes)
	if v.StudentsCount, err = s.repo.CountUsers(ctx, auth.RoleStudent); err != nil {
		return v, fmt.Errorf("count students: %w", err)
	}
	if v.PendingPermissions, err = s.repo.CountPermissions(ctx, PermissionFilter{Status: StatusPending, FacultyID: facultyID}); err != nil {
		return v, fmt.Errorf("count permissions: %w", err)
	}
	if v.Permissions, err = s.repo.PermissionsForFaculty(ctx, facultyID); err != nil {
		return v, fmt.Errorf("list permissions: %w", err)
	}
	if v.Students, err = s.repo.ListUsers(ctx, auth.RoleStudent); err != nil {
		return v, fmt.Errorf("list students: %w", err)
	}
	if v.TodayAttendance, err = s.repo.AttendanceForDay(ctx, facultyID, s.today()); err != nil {
		return v, fmt.Errorf("today's attendance: %w", err)
	}
	v.Classes, v.Permissions, v.Students = nonNil(v.Classes), nonNil(v.Permissions), nonNil(v.Students)
	return v, nil
}

// StudentDashboard collects a student's profile, attendance and requests.
func (s *Service) StudentDashboard(ctx context.Context, studentID int64) (StudentView, error) {
	var v StudentView
	var err error
	if v.Student, err = s.GetUser(ctx, studentID); err != nil {
		return v, err
	}
	items, err := s.repo.ListClubsEvents(ctx, true)
	if err != nil {
		return v, fmt.Errorf("list clubs/events: %w", err)
	}
	v.Clubs, v.Events = []ClubEvent{}, []ClubEvent{}
	for _, ce := range items {
		if ce.Type == KindClub {
			v.Clubs = append(v.Clubs, ce)
		} else {
			v.Events = append(v.Events, ce)
		}
	}
	v.EventsCount = len(v.Events)

	present, total, err := s.repo.AttendanceTally(ctx, studentID)
	if err != nil {
		return v, fmt.Errorf("attendance tally: %w", err)
	}
	v.AttendancePercentage = Percentage(present, total)

	if v.PendingPermissions, err = s.repo.CountPermissions(ctx, PermissionFilter{Status: StatusPending, StudentID: studentID}); err != nil {
		return v, fmt.Errorf("count permissions: %w", err)
	}
	if v.Attendance, err = s.repo.AttendanceHistory(ctx, studentID, 50); err != nil {
		return v, fmt.Errorf("attendance history: %w", err)
	}
	if v.Permissions, err = s.repo.PermissionsForStudent(ctx, studentID); err != nil {
		return v, fmt.Errorf("list permissions: %w", err)
	}
	v.Attendance, v.Permissions = nonNil(v.Attendance), nonNil(v.Permissions)
	return v, nil
}

// Percentage returns present/total as a percentage rounded to one decimal,
// or 0 when there are no records.
func Percentage(present, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(present)*1000/float64(total)) / 10
}
