package portal

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"collegeportal/internal/auth"
)

var defaultClubs = []string{
	"Coders Club – Code Architects",
	"Creators Club",
	"Cultural Club – Prathiba Yogyata",
	"Eco Club",
	"Fitness Club – Yogyata",
	"Gamers Club",
	"Handlers Club – Robo Tech",
	"Literary and Fine Arts Club – Literati & Euphoria",
	"Multimedia Club – Trinetra",
	"NSS Club – Devna",
	"SPHN Radio Club",
	"Sports Club – Sankalp",
	"Women’s Chapter Club",
}

var defaultEvents = []string{
	"Tech Fest 2023",
	"Career Guidance Workshop",
}

type seedUser struct {
	role     string
	password string
	user     NewUser
}

var seedUsers = []seedUser{
	{auth.RoleAdmin, "admin123", NewUser{Username: "admin", Name: "System Administrator", Email: "admin@college.edu"}},
	{auth.RoleFaculty, "faculty123", NewUser{Username: "faculty1", Name: "Dr. Robert Brown", Email: "robert@college.edu", Department: "Computer Science"}},
	{auth.RoleFaculty, "faculty123", NewUser{Username: "faculty2", Name: "Dr. Sarah Wilson", Email: "sarah@college.edu", Department: "Electronics"}},
	{auth.RoleStudent, "student123", NewUser{Username: "student1", Name: "John Doe", Email: "john@college.edu", Class: "B.Tech CSE", RollNo: "001", Section: "A", Department: "Computer Science"}},
	{auth.RoleStudent, "student123", NewUser{Username: "student2", Name: "Jane Smith", Email: "jane@college.edu", Class: "B.Tech ECE", RollNo: "002", Section: "B", Department: "Electronics"}},
}

// Seed fills an empty database with the default admin, sample faculty and
// students, their classes, the default clubs and a pending request. It does
// nothing when any user exists.
func (s *Service) Seed(ctx context.Context) (bool, error) {
	n, err := s.repo.CountUsers(ctx, "")
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	ids := make(map[string]int64, len(seedUsers))
	for _, su := range seedUsers {
		su.user.Password = su.password
		id, err := s.addUser(ctx, su.role, su.user)
		if err != nil {
			return false, fmt.Errorf("seed %s: %w", su.user.Username, err)
		}
		ids[su.user.Username] = id
	}

	f1, f2 := ids["faculty1"], ids["faculty2"]
	classes := []Class{
		{Name: "Mathematics", FacultyID: &f1, Schedule: "Mon, Wed 9:00-10:00", Room: "Room 101"},
		{Name: "Physics", FacultyID: &f2, Schedule: "Tue, Thu 11:00-12:00", Room: "Room 205"},
	}
	var mathID int64
	for i, c := range classes {
		id, err := s.repo.CreateClass(ctx, c)
		if err != nil {
			return false, fmt.Errorf("seed class %s: %w", c.Name, err)
		}
		if i == 0 {
			mathID = id
		}
	}

	for _, name := range defaultClubs {
		if _, err := s.repo.CreateClubEvent(ctx, name, KindClub); err != nil {
			return false, fmt.Errorf("seed club %s: %w", name, err)
		}
	}
	for _, name := range defaultEvents {
		if _, err := s.repo.CreateClubEvent(ctx, name, KindEvent); err != nil {
			return false, fmt.Errorf("seed event %s: %w", name, err)
		}
	}

	sheet := map[int64]string{ids["student1"]: Present, ids["student2"]: Present}
	if err := s.repo.ReplaceAttendance(ctx, f1, mathID, s.today(), sheet); err != nil {
		return false, fmt.Errorf("seed attendance: %w", err)
	}

	if _, err := s.repo.CreatePermission(ctx, Permission{
		StudentID: ids["student1"],
		FacultyID: &f1,
		Date:      "2023-10-25",
		Reason:    "Medical appointment",
		Status:    StatusPending,
	}); err != nil {
		return false, fmt.Errorf("seed permission: %w", err)
	}

	s.log.Info("database seeded", zap.Int("users", len(seedUsers)), zap.Int("clubs", len(defaultClubs)))
	return true, nil
}
