package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"collegeportal/internal/auth"
	"collegeportal/internal/portal"
)

type addUserRequest struct {
	Username   string `json:"username" validate:"required"`
	Password   string `json:"password" validate:"required"`
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"omitempty,email"`
	Class      string `json:"class"`
	RollNo     string `json:"rollno"`
	Section    string `json:"section"`
	Department string `json:"department"`
}

func (r addUserRequest) newUser() portal.NewUser {
	return portal.NewUser{
		Username:   r.Username,
		Password:   r.Password,
		Name:       r.Name,
		Email:      r.Email,
		Class:      r.Class,
		RollNo:     r.RollNo,
		Section:    r.Section,
		Department: r.Department,
	}
}

type updateUserRequest struct {
	Role       string `json:"role" validate:"omitempty,oneof=student faculty admin"`
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"omitempty,email"`
	Class      string `json:"class"`
	RollNo     string `json:"rollno"`
	Section    string `json:"section"`
	Department string `json:"department"`
}

func (h *Handler) addUser(c *gin.Context) {
	const action = "add_user"
	var req addUserRequest
	if !h.bindJSON(c, action, &req) {
		return
	}
	id, err := h.svc.AddStudent(c.Request.Context(), req.newUser())
	if err != nil {
		h.fail(c, action, err, "Error adding student")
		return
	}
	h.ok(c, action, "Student added successfully", gin.H{"id": id})
}

func (h *Handler) addFaculty(c *gin.Context) {
	const action = "add_faculty"
	var req addUserRequest
	if !h.bindJSON(c, action, &req) {
		return
	}
	id, err := h.svc.AddFaculty(c.Request.Context(), req.newUser())
	if err != nil {
		h.fail(c, action, err, "Error adding faculty")
		return
	}
	h.ok(c, action, "Faculty added successfully", gin.H{"id": id})
}

func (h *Handler) getUser(c *gin.Context) {
	const action = "get_user"
	id, ok := h.pathID(c, action)
	if !ok {
		return
	}
	u, err := h.svc.GetUser(c.Request.Context(), id)
	if err != nil {
		h.fail(c, action, err, "Error loading user")
		return
	}
	h.ok(c, action, "", gin.H{"user": u})
}

func (h *Handler) updateUser(c *gin.Context) {
	const action = "update_user"
	id, ok := h.pathID(c, action)
	if !ok {
		return
	}
	var req updateUserRequest
	if !h.bindJSON(c, action, &req) {
		return
	}
	err := h.svc.UpdateUser(c.Request.Context(), id, portal.UserUpdate{
		Role:       req.Role,
		Name:       req.Name,
		Email:      req.Email,
		Class:      req.Class,
		RollNo:     req.RollNo,
		Section:    req.Section,
		Department: req.Department,
	})
	if err != nil {
		h.fail(c, action, err, "Error updating user")
		return
	}
	h.ok(c, action, "User updated successfully", nil)
}

func (h *Handler) deleteUser(c *gin.Context) {
	const action = "delete_user"
	id, ok := h.pathID(c, action)
	if !ok {
		return
	}
	if id == claims(c).UserID {
		h.reject(c, action, http.StatusBadRequest, "You cannot delete your own account")
		return
	}
	if err := h.svc.DeleteUser(c.Request.Context(), id); err != nil {
		h.fail(c, action, err, "Error deleting user")
		return
	}
	h.ok(c, action, "User deleted successfully", nil)
}

func (h *Handler) uploadStudents(c *gin.Context) {
	h.upload(c, "upload_students", auth.RoleStudent, "students", h.svc.ImportStudents)
}

func (h *Handler) uploadFaculty(c *gin.Context) {
	h.upload(c, "upload_faculty", auth.RoleFaculty, "faculty members", h.svc.ImportFaculty)
}

type importer func(ctx context.Context, filename string, r io.Reader) (portal.ImportReport, error)

// upload reads the multipart "file" part, bounded by UploadMaxBytes, and
// feeds it to imp.
func (h *Handler) upload(c *gin.Context, action, role, noun string, imp importer) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.UploadMaxBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.reject(c, action, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		h.reject(c, action, http.StatusBadRequest, "No file uploaded")
		return
	}
	if fh.Filename == "" {
		h.reject(c, action, http.StatusBadRequest, "No file selected")
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.fail(c, action, err, "Error processing file")
		return
	}
	defer f.Close()

	report, err := imp(c.Request.Context(), fh.Filename, f)
	if err != nil {
		h.fail(c, action, err, "Error processing file")
		return
	}
	h.metrics.Roster(role, report.Added, report.Failed)
	h.ok(c, action, report.Summary(noun), gin.H{
		"added":  report.Added,
		"failed": report.Failed,
		"errors": report.Errors,
	})
}
