package handler

import (
	"github.com/gin-gonic/gin"

	"collegeportal/internal/portal"
)

type permissionRequest struct {
	Date   string `json:"date" validate:"required,datetime=2006-01-02"`
	Reason string `json:"reason" validate:"required"`
	Proof  string `json:"proof"`
}

type permissionStatusRequest struct {
	PermissionID int64  `json:"permission_id" validate:"required"`
	Status       string `json:"status" validate:"required,oneof=pending approved rejected"`
}

type attendanceRequest struct {
	Attendance map[string]string `json:"attendance" validate:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

func (h *Handler) addPermission(c *gin.Context) {
	const action = "add_permission"
	var req permissionRequest
	if !h.bindJSON(c, action, &req) {
		return
	}
	p, err := h.svc.ApplyPermission(c.Request.Context(), claims(c).UserID, portal.NewPermission{
		Date:   req.Date,
		Reason: req.Reason,
		Proof:  req.Proof,
	})
	if err != nil {
		h.fail(c, action, err, "Error submitting permission")
		return
	}
	h.ok(c, action, "Permission request submitted successfully", gin.H{"id": p.ID})
}

func (h *Handler) updatePermissionStatus(c *gin.Context) {
	const action = "update_permission_status"
	var req permissionStatusRequest
	if !h.bindJSON(c, action, &req) {
		return
	}
	if err := h.svc.DecidePermission(c.Request.Context(), req.PermissionID, req.Status); err != nil {
		h.fail(c, action, err, "Error updating permission")
		return
	}
	h.ok(c, action, "Permission updated successfully", nil)
}

func (h *Handler) markAttendance(c *gin.Context) {
	const action = "mark_attendance"
	var req attendanceRequest
	if !h.bindJSON(c, action, &req) {
		return
	}
	n, err := h.svc.MarkAttendance(c.Request.Context(), claims(c).UserID, req.Attendance)
	if err != nil {
		h.fail(c, action, err, "Error marking attendance")
		return
	}
	h.ok(c, action, "Attendance marked successfully", gin.H{"saved": n})
}

func (h *Handler) changePassword(c *gin.Context) {
	const action = "change_password"
	var req changePasswordRequest
	if !h.bindJSON(c, action, &req) {
		return
	}
	err := h.svc.ChangePassword(c.Request.Context(), claims(c).UserID, req.CurrentPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		h.fail(c, action, err, "Error changing password")
		return
	}
	h.ok(c, action, "Password changed successfully", nil)
}
