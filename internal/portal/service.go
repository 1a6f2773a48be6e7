package portal

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"collegeportal/internal/auth"
	"collegeportal/internal/store"
)

// ProofStore keeps permission attachments somewhere other than the database
// and returns a reference to them.
type ProofStore interface {
	StoreProof(ctx context.Context, dataURL string) (string, error)
}

// Service implements the portal's business rules on top of a Repository.
type Service struct {
	repo   *Repository
	proofs ProofStore
	jobs   ProofJobs
	log    *zap.Logger
	now    func() time.Time
}

// NewService creates a service. proofs may be nil, in which case proof
// attachments are stored inline.
func NewService(repo *Repository, proofs ProofStore, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, proofs: proofs, log: log, now: time.Now}
}

func (s *Service) today() string {
	return s.now().Format(time.DateOnly)
}

// Authenticate checks credentials for the requested role.
func (s *Service) Authenticate(ctx context.Context, username, password, role string) (*User, error) {
	if username == "" || password == "" || role == "" {
		return nil, fail(ErrInvalid, "Username, password and role are required")
	}
	u, err := s.repo.FindLogin(ctx, username, role)
	if err != nil {
		return nil, fmt.Errorf("find login: %w", err)
	}
	if u == nil || !auth.CheckPassword(u.Password, password) {
		return nil, fail(ErrDenied, "Invalid credentials. Please try again.")
	}
	return u, nil
}

// AddStudent creates a student account.
func (s *Service) AddStudent(ctx context.Context, in NewUser) (int64, error) {
	return s.addUser(ctx, auth.RoleStudent, in)
}

// AddFaculty creates a faculty account.
func (s *Service) AddFaculty(ctx context.Context, in NewUser) (int64, error) {
	in.Class, in.RollNo, in.Section = "", "", ""
	return s.addUser(ctx, auth.RoleFaculty, in)
}

func (s *Service) addUser(ctx context.Context, role string, in NewUser) (int64, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Name = strings.TrimSpace(in.Name)
	if in.Username == "" || in.Password == "" || in.Name == "" {
		return 0, fail(ErrInvalid, "Username, password and name are required")
	}
	taken, err := s.repo.UsernameTaken(ctx, in.Username)
	if err != nil {
		return 0, fmt.Errorf("check username: %w", err)
	}
	if taken {
		return 0, fail(ErrDuplicate, "Username already exists")
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	id, err := s.repo.CreateUser(ctx, User{
		Username:   in.Username,
		Password:   hash,
		Role:       role,
		Name:       in.Name,
		Email:      in.Email,
		Class:      in.Class,
		RollNo:     in.RollNo,
		Section:    in.Section,
		Department: in.Department,
	})
	if err != nil {
		if store.IsUniqueViolation(err) {
			return 0, fail(ErrDuplicate, "Username already exists")
		}
		return 0, fmt.Errorf("create %s: %w", role, err)
	}
	s.log.Info("user created", zap.Int64("id", id), zap.String("role", role), zap.String("username", in.Username))
	return id, nil
}

// GetUser returns one account.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return User{}, fail(ErrNotFound, "User not found")
	}
	return *u, nil
}

// UpdateUser edits a profile. When in.Role is empty the stored role decides
// which fields apply.
func (s *Service) UpdateUser(ctx context.Context, id int64, in UserUpdate) error {
	if strings.TrimSpace(in.Name) == "" {
		return fail(ErrInvalid, "Name is required")
	}
	role := in.Role
	if role == "" {
		u, err := s.GetUser(ctx, id)
		if err != nil {
			return err
		}
		role = u.Role
	}
	var ok bool
	var err error
	if role == auth.RoleStudent {
		ok, err = s.repo.UpdateStudent(ctx, id, in)
	} else {
		ok, err = s.repo.UpdateStaff(ctx, id, in)
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if !ok {
		return fail(ErrNotFound, "User not found")
	}
	return nil
}

// DeleteUser removes an account together with its permissions and
// attendance.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	ok, err := s.repo.DeleteUser(ctx, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if !ok {
		return fail(ErrNotFound, "User not found")
	}
	s.log.Info("user deleted", zap.Int64("id", id))
	return nil
}

// ApplyPermission files a request for studentID. Requests are routed to the
// first faculty member. Data URL proofs are moved to the proof store when
// one is configured.
func (s *Service) ApplyPermission(ctx context.Context, studentID int64, in NewPermission) (Permission, error) {
	in.Reason = strings.TrimSpace(in.Reason)
	if in.Date == "" || in.Reason == "" {
		return Permission{}, fail(ErrInvalid, "Date and reason are required")
	}
	if _, err := time.Parse(time.DateOnly, in.Date); err != nil {
		return Permission{}, fail(ErrInvalid, "Invalid date %q, expected YYYY-MM-DD", in.Date)
	}
	faculty, err := s.repo.FirstFaculty(ctx)
	if err != nil {
		return Permission{}, fmt.Errorf("find faculty: %w", err)
	}
	if faculty == nil {
		return Permission{}, fail(ErrNotFound, "No faculty found")
	}

	proof := in.Proof
	if s.jobs == nil && s.proofs != nil && isDataURL(proof) {
		ref, err := s.proofs.StoreProof(ctx, proof)
		if err != nil {
			return Permission{}, fmt.Errorf("store proof: %w", err)
		}
		proof = ref
	}

	p := Permission{
		StudentID: studentID,
		FacultyID: &faculty.ID,
		Date:      in.Date,
		Reason:    in.Reason,
		Proof:     proof,
		Status:    StatusPending,
	}
	id, err := s.repo.CreatePermission(ctx, p)
	if err != nil {
		return Permission{}, fmt.Errorf("create permission: %w", err)
	}
	p.ID = id
	if s.jobs != nil && isDataURL(proof) {
		s.enqueueProof(ctx, id)
	}
	return p, nil
}

// DecidePermission sets a request's status.
func (s *Service) DecidePermission(ctx context.Context, permissionID int64, status string) error {
	switch status {
	case StatusPending, StatusApproved, StatusRejected:
	default:
		return fail(ErrInvalid, "Invalid status %q", status)
	}
	ok, err := s.repo.SetPermissionStatus(ctx, permissionID, status)
	if err != nil {
		return fmt.Errorf("update permission: %w", err)
	}
	if !ok {
		return fail(ErrNotFound, "Permission not found")
	}
	return nil
}

// MarkAttendance replaces today's sheet recorded by facultyID. Keys are
// student ids; entries that are not present or absent are skipped. It
// returns the number of rows written.
func (s *Service) MarkAttendance(ctx context.Context, facultyID int64, sheet map[string]string) (int, error) {
	classes, err := s.repo.ClassesForFaculty(ctx, facultyID)
	if err != nil {
		return 0, fmt.Errorf("list classes: %w", err)
	}
	if len(classes) == 0 {
		return 0, fail(ErrNotFound, "No classes assigned to faculty")
	}

	entries := make(map[int64]string, len(sheet))
	for key, status := range sheet {
		if status != Present && status != Absent {
			continue
		}
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return 0, fail(ErrInvalid, "Invalid student id %q", key)
		}
		entries[id] = status
	}
	if err := s.repo.ReplaceAttendance(ctx, facultyID, classes[0].ID, s.today(), entries); err != nil {
		return 0, fmt.Errorf("save attendance: %w", err)
	}
	return len(entries), nil
}

// ChangePassword replaces userID's password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, next, confirm string) error {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if u == nil || !auth.CheckPassword(u.Password, current) {
		return fail(ErrInvalid, "Current password is incorrect")
	}
	if next != confirm {
		return fail(ErrInvalid, "New passwords do not match")
	}
	if next == "" {
		return fail(ErrInvalid, "New password is required")
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// ClubsEvents lists the active clubs and events.
func (s *Service) ClubsEvents(ctx context.Context) ([]ClubEvent, error) {
	items, err := s.repo.ListClubsEvents(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list clubs/events: %w", err)
	}
	return nonNil(items), nil
}

func checkClubEvent(name, kind string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fail(ErrInvalid, "Name is required")
	}
	if kind != KindClub && kind != KindEvent {
		return "", fail(ErrInvalid, "Type must be club or event")
	}
	return name, nil
}

// AddClubEvent creates an active club or event.
func (s *Service) AddClubEvent(ctx context.Context, name, kind string) (int64, error) {
	name, err := checkClubEvent(name, kind)
	if err != nil {
		return 0, err
	}
	id, err := s.repo.CreateClubEvent(ctx, name, kind)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", kind, err)
	}
	return id, nil
}

// UpdateClubEvent renames or retypes an entry.
func (s *Service) UpdateClubEvent(ctx context.Context, id int64, name, kind string) error {
	name, err := checkClubEvent(name, kind)
	if err != nil {
		return err
	}
	ok, err := s.repo.UpdateClubEvent(ctx, id, name, kind)
	if err != nil {
		return fmt.Errorf("update club/event: %w", err)
	}
	if !ok {
		return fail(ErrNotFound, "Club/event not found")
	}
	return nil
}

// DeleteClubEvent removes an entry.
func (s *Service) DeleteClubEvent(ctx context.Context, id int64) error {
	ok, err := s.repo.DeleteClubEvent(ctx, id)
	if err != nil {
		return fmt.Errorf("delete club/event: %w", err)
	}
	if !ok {
		return fail(ErrNotFound, "Club/event not found")
	}
	return nil
}

// KindTitle returns "Club" or "Event" for use in messages.
func KindTitle(kind string) string {
	if kind == "" {
		return ""
	}
	return strings.ToUpper(kind[:1]) + kind[1:]
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
