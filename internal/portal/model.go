package portal

import (
	"errors"
	"fmt"
	"time"
)

// Permission statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Attendance statuses.
const (
	Present = "present"
	Absent  = "absent"
)

// Club/event kinds.
const (
	KindClub  = "club"
	KindEvent = "event"
)

// User is a portal account. Password holds the bcrypt hash and never leaves
// the server.
type User struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Password   string    `json:"-"`
	Role       string    `json:"role"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	RollNo     string    `json:"rollno"`
	Section    string    `json:"section"`
	Department string    `json:"department"`
	Class      string    `json:"class"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewUser is the input for creating a student or faculty account.
type NewUser struct {
	Username   string
	Password   string
	Name       string
	Email      string
	Class      string
	RollNo     string
	Section    string
	Department string
}

// UserUpdate carries editable profile fields. Role selects which of them
// apply: students keep class, roll number and section; faculty do not.
type UserUpdate struct {
	Role       string
	Name       string
	Email      string
	Class      string
	RollNo     string
	Section    string
	Department string
}

// Permission is a leave/absence request.
type Permission struct {
	ID          int64     `json:"id"`
	StudentID   int64     `json:"student_id"`
	FacultyID   *int64    `json:"faculty_id,omitempty"`
	Date        string    `json:"date"`
	Reason      string    `json:"reason"`
	Proof       string    `json:"proof"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	StudentName string    `json:"student_name,omitempty"`
	RollNo      string    `json:"rollno,omitempty"`
	FacultyName string    `json:"faculty_name,omitempty"`
}

// NewPermission is what a student submits.
type NewPermission struct {
	Date   string
	Reason string
	Proof  string
}

// ClubEvent is an administratively managed club or event.
type ClubEvent struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Class is a teaching session owned by a faculty member.
type Class struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	FacultyID *int64 `json:"faculty_id,omitempty"`
	Schedule  string `json:"schedule"`
	Room      string `json:"room"`
}

// AttendanceRecord is one student's status for a session.
type AttendanceRecord struct {
	ID        int64  `json:"id"`
	StudentID int64  `json:"student_id"`
	ClassID   *int64 `json:"class_id,omitempty"`
	Date      string `json:"date"`
	Status    string `json:"status"`
	MarkedBy  *int64 `json:"marked_by,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Marker    string `json:"marked_by_name,omitempty"`
}

// ImportReport summarizes a roster upload.
type ImportReport struct {
	Added  int      `json:"added"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors,omitempty"`
}

// Error kinds returned by the service.
var (
	ErrInvalid   = errors.New("invalid request")
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
	ErrDenied    = errors.New("denied")
)

// Error is a failure whose message is meant for the person using the portal.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func fail(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
