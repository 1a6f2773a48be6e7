package ui

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"

	"collegeportal/internal/client"
)

// Resetter is a form that can be cleared after a successful submit.
type Resetter interface {
	Reset()
}

// StudentForm is the add-student form.
type StudentForm struct {
	Username string `validate:"required" label:"Username"`
	Password string `validate:"required" label:"Password"`
	Name     string `validate:"required" label:"Name"`
	Email      string
	Class      string
	RollNo     string
	Section    string
	Department string
}

func (f *StudentForm) Reset() { *f = StudentForm{} }

func (f *StudentForm) Payload() client.UserInput {
	return client.UserInput{
		Username: f.Username,
		Password: f.Password,
		Name:     f.Name,
		Email:    f.Email,
		Class:    f.Class,
		RollNo:     f.RollNo,
		Section:    f.Section,
		Department: f.Department,
	}
}

// FacultyForm is the add-faculty form.
type FacultyForm struct {
	Username   string `validate:"required" label:"Username"`
	Password   string `validate:"required" label:"Password"`
	Name       string `validate:"required" label:"Name"`
	Email      string
	Department string
}

func (f *FacultyForm) Reset() { *f = FacultyForm{} }

func (f *FacultyForm) Payload() client.UserInput {
	return client.UserInput{
		Username:   f.Username,
		Password:   f.Password,
		Name:       f.Name,
		Email:      f.Email,
		Department: f.Department,
	}
}

// UploadForm holds a roster workbook picked for upload.
type UploadForm struct {
	Filename string `validate:"required" msg:"Please select an Excel file (.xlsx or .xls)"`
	Content  []byte
}

func (f *UploadForm) Reset() { *f = UploadForm{} }

// ClubEventForm is the add and edit form for clubs and events.
type ClubEventForm struct {
	ID   int64
	Name string `validate:"required" label:"Name"`
	Type string `validate:"required" label:"Type"`
}

func (f *ClubEventForm) Reset() { *f = ClubEventForm{} }

func (f *ClubEventForm) Payload() client.ClubEventInput {
	return client.ClubEventInput{Name: f.Name, Type: f.Type}
}

// EditUserForm is the edit form populated from get_user.
type EditUserForm struct {
	ID         int64
	Role       string
	Username   string
	Name       string `validate:"required" label:"Name"`
	Email      string
	RollNo     string
	Section    string
	Department string
	Class      string
}

func (f *EditUserForm) Reset() { *f = EditUserForm{} }

// Populate fills the form from a fetched user.
func (f *EditUserForm) Populate(u client.User) {
	*f = EditUserForm{
		ID:         u.ID,
		Role:       u.Role,
		Username:   u.Username,
		Name:       u.Name,
		Email:      u.Email,
		RollNo:     u.RollNo,
		Section:    u.Section,
		Department: u.Department,
		Class:      u.Class,
	}
}

func (f *EditUserForm) Payload() client.UserUpdate {
	return client.UserUpdate{
		Role:       f.Role,
		Name:       f.Name,
		Email:      f.Email,
		Class:      f.Class,
		RollNo:     f.RollNo,
		Section:    f.Section,
		Department: f.Department,
	}
}

// PermissionForm is the student's leave request form. Proof is an optional
// data URL.
type PermissionForm struct {
	Date   string `validate:"required" label:"Date"`
	Reason string `validate:"required" label:"Reason"`
	Proof  string
}

func (f *PermissionForm) Reset() { *f = PermissionForm{} }

func (f *PermissionForm) Payload() client.PermissionInput {
	return client.PermissionInput{Date: f.Date, Reason: f.Reason, Proof: f.Proof}
}

// PasswordForm is the change-password form.
type PasswordForm struct {
	CurrentPassword string `validate:"required" label:"Current password"`
	NewPassword     string `validate:"required" label:"New password"`
	ConfirmPassword string `validate:"eqfield=NewPassword" msg:"New passwords do not match"`
}

func (f *PasswordForm) Reset() { *f = PasswordForm{} }

func (f *PasswordForm) Payload() client.PasswordChange {
	return client.PasswordChange{
		CurrentPassword: f.CurrentPassword,
		NewPassword:     f.NewPassword,
		ConfirmPassword: f.ConfirmPassword,
	}
}

// AttendanceSheet is the faculty's per-student marks for today.
type AttendanceSheet struct {
	mu    sync.Mutex
	marks map[int64]string
}

// Mark records status (present or absent) for a student. An empty status
// clears the mark.
func (s *AttendanceSheet) Mark(studentID int64, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.marks == nil {
		s.marks = make(map[int64]string)
	}
	if status == "" {
		delete(s.marks, studentID)
		return
	}
	s.marks[studentID] = status
}

// Len returns the number of marked students.
func (s *AttendanceSheet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.marks)
}

// Payload returns the marks keyed by decimal student id.
func (s *AttendanceSheet) Payload() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.marks))
	for id, status := range s.marks {
		out[strconv.FormatInt(id, 10)] = status
	}
	return out
}

func (s *AttendanceSheet) Reset() {
	s.mu.Lock()
	s.marks = nil
	s.mu.Unlock()
}

// Forms only check that required fields are present and that the new
// password is confirmed; formats and file types are left to the server.
var formValidate = validator.New()

// Validate checks form's validate tags and returns an error whose message is
// fit for a notification.
func Validate(form any) error {
	err := formValidate.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	return errors.New(fieldMessage(form, verrs[0]))
}

func fieldMessage(form any, fe validator.FieldError) string {
	t := reflect.TypeOf(form)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	label := fe.Field()
	if sf, ok := t.FieldByName(fe.StructField()); ok {
		if msg := sf.Tag.Get("msg"); msg != "" {
			return msg
		}
		if l := sf.Tag.Get("label"); l != "" {
			label = l
		}
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", label)
	case "eqfield":
		return fmt.Sprintf("%s does not match", label)
	default:
		return fmt.Sprintf("%s is invalid", label)
	}
}
