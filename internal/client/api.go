package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
)

// UserInput is the body of add_user and add_faculty.
type UserInput struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Class      string `json:"class,omitempty"`
	RollNo     string `json:"rollno,omitempty"`
	Section    string `json:"section,omitempty"`
	Department string `json:"department,omitempty"`
}

// UserUpdate is the body of update_user.
type UserUpdate struct {
	Role       string `json:"role,omitempty"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Class      string `json:"class,omitempty"`
	RollNo     string `json:"rollno,omitempty"`
	Section    string `json:"section,omitempty"`
	Department string `json:"department,omitempty"`
}

// ClubEventInput is the body of add_club_event and update_club_event.
type ClubEventInput struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// PermissionInput is the body of add_permission.
type PermissionInput struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
	Proof  string `json:"proof,omitempty"`
}

// PasswordChange is the body of change_password.
type PasswordChange struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// User is an account as returned by get_user and the dashboards.
type User struct {
	ID         int64
	Username   string
	Role       string
	Name       string
	Email      string
	RollNo     string
	Section    string
	Department string
	Class      string
}

// ClubEvent is one entry of get_clubs_events.
type ClubEvent struct {
	ID       int64
	Name     string
	Type     string
	IsActive bool
}

// UserFrom decodes a user object, e.g. Result.Get("user").
func UserFrom(v gjson.Result) User {
	return User{
		ID:         v.Get("id").Int(),
		Username:   v.Get("username").String(),
		Role:       v.Get("role").String(),
		Name:       v.Get("name").String(),
		Email:      v.Get("email").String(),
		RollNo:     v.Get("rollno").String(),
		Section:    v.Get("section").String(),
		Department: v.Get("department").String(),
		Class:      v.Get("class").String(),
	}
}

// UsersFrom decodes an array of users.
func UsersFrom(v gjson.Result) []User {
	var res []User
	v.ForEach(func(_, item gjson.Result) bool {
		res = append(res, UserFrom(item))
		return true
	})
	return res
}

// ClubEventsFrom decodes an array of clubs/events.
func ClubEventsFrom(v gjson.Result) []ClubEvent {
	var res []ClubEvent
	v.ForEach(func(_, item gjson.Result) bool {
		res = append(res, ClubEvent{
			ID:       item.Get("id").Int(),
			Name:     item.Get("name").String(),
			Type:     item.Get("type").String(),
			IsActive: item.Get("is_active").Bool(),
		})
		return true
	})
	return res
}

// Login authenticates and, on success, keeps the issued token on c.
func (c *Client) Login(ctx context.Context, username, password, role string) (Result, error) {
	res, err := c.sendJSON(ctx, http.MethodPost, "/login", map[string]string{
		"username": username,
		"password": password,
		"role":     role,
	})
	if err == nil && res.Success {
		c.Token = res.Get("token").String()
	}
	return res, err
}

// Logout ends the session server-side and forgets the token.
func (c *Client) Logout(ctx context.Context) (Result, error) {
	res, err := c.sendJSON(ctx, http.MethodPost, "/logout", nil)
	if err == nil {
		c.Token = ""
	}
	return res, err
}

// Dashboard fetches the data behind the caller's dashboard; it is what a
// page reload re-reads.
func (c *Client) Dashboard(ctx context.Context) (Result, error) {
	return c.sendJSON(ctx, http.MethodGet, "/api/dashboard", nil)
}

// AddUser creates a student.
func (c *Client) AddUser(ctx context.Context, in UserInput) (Result, error) {
	return c.sendJSON(ctx, http.MethodPost, "/api/add_user", in)
}

// AddFaculty creates a faculty member.
func (c *Client) AddFaculty(ctx context.Context, in UserInput) (Result, error) {
	return c.sendJSON(ctx, http.MethodPost, "/api/add_faculty", in)
}

// UploadStudents imports a student roster workbook.
func (c *Client) UploadStudents(ctx context.Context, filename string, r io.Reader) (Result, error) {
	return c.upload(ctx, "/api/upload_students", filename, r)
}

// UploadFaculty imports a faculty roster workbook.
func (c *Client) UploadFaculty(ctx context.Context, filename string, r io.Reader) (Result, error) {
	return c.upload(ctx, "/api/upload_faculty", filename, r)
}

// GetUser fetches one account; the user object is under "user".
func (c *Client) GetUser(ctx context.Context, id int64) (Result, error) {
	return c.sendJSON(ctx, http.MethodGet, "/api/get_user/"+strconv.FormatInt(id, 10), nil)
}

// UpdateUser edits an account.
func (c *Client) UpdateUser(ctx context.Context, id int64, in UserUpdate) (Result, error) {
	return c.sendJSON(ctx, http.MethodPut, "/api/update_user/"+strconv.FormatInt(id, 10), in)
}

// DeleteUser removes an account.
func (c *Client) DeleteUser(ctx context.Context, id int64) (Result, error) {
	return c.sendJSON(ctx, http.MethodDelete, "/api/delete_user/"+strconv.FormatInt(id, 10), nil)
}

// ClubsEvents lists active clubs and events under "items".
func (c *Client) ClubsEvents(ctx context.Context) (Result, error) {
	return c.sendJSON(ctx, http.MethodGet, "/api/get_clubs_events", nil)
}

// AddClubEvent creates a club or event.
func (c *Client) AddClubEvent(ctx context.Context, in ClubEventInput) (Result, error) {
	return c.sendJSON(ctx, http.MethodPost, "/api/add_club_event", in)
}

// UpdateClubEvent edits a club or event.
func (c *Client) UpdateClubEvent(ctx context.Context, id int64, in ClubEventInput) (Result, error) {
	return c.sendJSON(ctx, http.MethodPut, "/api/update_club_event/"+strconv.FormatInt(id, 10), in)
}

// DeleteClubEvent removes a club or event.
func (c *Client) DeleteClubEvent(ctx context.Context, id int64) (Result, error) {
	return c.sendJSON(ctx, http.MethodDelete, "/api/delete_club_event/"+strconv.FormatInt(id, 10), nil)
}

// AddPermission files a permission request as the logged-in student.
func (c *Client) AddPermission(ctx context.Context, in PermissionInput) (Result, error) {
	return c.sendJSON(ctx, http.MethodPost, "/api/add_permission", in)
}

// UpdatePermissionStatus approves or rejects a request.
func (c *Client) UpdatePermissionStatus(ctx context.Context, id int64, status string) (Result, error) {
	return c.sendJSON(ctx, http.MethodPost, "/api/update_permission_status", map[string]any{
		"permission_id": id,
		"status":        status,
	})
}

// MarkAttendance saves today's sheet, keyed by student id.
func (c *Client) MarkAttendance(ctx context.Context, sheet map[string]string) (Result, error) {
	return c.sendJSON(ctx, http.MethodPost, "/api/mark_attendance", map[string]any{"attendance": sheet})
}

// ChangePassword changes the logged-in user's password.
func (c *Client) ChangePassword(ctx context.Context, in PasswordChange) (Result, error) {
	return c.sendJSON(ctx, http.MethodPost, "/api/change_password", in)
}

// upload posts r as the multipart "file" part.
func (c *Client) upload(ctx context.Context, path, filename string, r io.Reader) (Result, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return Result{}, fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return Result{}, fmt.Errorf("read %s: %w", filename, err)
	}
	if err := w.Close(); err != nil {
		return Result{}, fmt.Errorf("build upload: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, &buf, w.FormDataContentType())
}

// ExpiresAt returns the expiry carried by a login reply, or the zero time.
func ExpiresAt(r Result) time.Time {
	if v := r.Get("expires_at"); v.Exists() {
		return time.Unix(v.Int(), 0)
	}
	return time.Time{}
}
