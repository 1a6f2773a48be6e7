package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"collegeportal/internal/auth"
)

type loginRequest struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
	Role     string `json:"role" form:"role" validate:"required,oneof=admin faculty student"`
}

// login accepts JSON or a classic form post and issues a session token,
// returned in the body and as an HTTP-only cookie.
func (h *Handler) login(c *gin.Context) {
	const action = "login"
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		h.reject(c, action, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !h.check(c, action, &req) {
		return
	}
	u, err := h.svc.Authenticate(c.Request.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		h.fail(c, action, err, "Login failed")
		return
	}
	s, err := auth.Issue(u.ID, u.Username, u.Name, u.Role, h.opts.Issuer, h.opts.SigningKey, h.opts.SessionTTL)
	if err != nil {
		h.fail(c, action, err, "Login failed")
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, s.Token, int(h.opts.SessionTTL.Seconds()), "/", "", h.opts.SecureCookie, true)
	h.log.Info("login", zap.Int64("user_id", u.ID), zap.String("role", u.Role))
	h.ok(c, action, "Login successful", gin.H{
		"token":      s.Token,
		"expires_at": s.ExpiresAt.Unix(),
		"role":       u.Role,
		"name":       u.Name,
	})
}

// logout revokes the current session until it would have expired.
func (h *Handler) logout(c *gin.Context) {
	const action = "logout"
	cl := claims(c)
	if h.revoker != nil && cl.ExpiresAt != nil {
		if err := h.revoker.Revoke(c.Request.Context(), cl.ID, cl.ExpiresAt.Time); err != nil {
			h.log.Warn("session revocation failed", zap.Error(err), zap.String("session", cl.ID))
		}
	}
	c.SetCookie(auth.CookieName, "", -1, "/", "", h.opts.SecureCookie, true)
	h.ok(c, action, "Logged out", nil)
}

// dashboard returns the data behind the caller's dashboard.
func (h *Handler) dashboard(c *gin.Context) {
	const action = "dashboard"
	cl := claims(c)
	ctx := c.Request.Context()
	var (
		view any
		err  error
	)
	switch cl.Role {
	case auth.RoleAdmin:
		view, err = h.svc.AdminDashboard(ctx)
	case auth.RoleFaculty:
		view, err = h.svc.FacultyDashboard(ctx, cl.UserID)
	case auth.RoleStudent:
		view, err = h.svc.StudentDashboard(ctx, cl.UserID)
	default:
		h.reject(c, action, http.StatusForbidden, "Unauthorized")
		return
	}
	if err != nil {
		h.fail(c, action, err, "Error loading dashboard")
		return
	}
	h.ok(c, action, "", gin.H{
		"role":      cl.Role,
		"user":      gin.H{"id": cl.UserID, "username": cl.Username, "name": cl.Name},
		"dashboard": view,
	})
}
