package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"collegeportal/internal/auth"
	"collegeportal/internal/metrics"
	"collegeportal/internal/portal"
)

// Options configures sessions and uploads.
type Options struct {
	Issuer         string
	SigningKey     string
	SessionTTL     time.Duration
	UploadMaxBytes int64
	SecureCookie   bool
}

// Handler serves the portal's JSON API. Every reply carries at least
// {"success": bool, "message": string}.
type Handler struct {
	svc      *portal.Service
	opts     Options
	revoker  auth.Revoker
	metrics  *metrics.Metrics
	log      *zap.Logger
	validate *validator.Validate
}

// New creates a handler. revoker and m may be nil.
func New(svc *portal.Service, opts Options, revoker auth.Revoker, m *metrics.Metrics, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.UploadMaxBytes <= 0 {
		opts.UploadMaxBytes = 8 << 20
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &Handler{svc: svc, opts: opts, revoker: revoker, metrics: m, log: log, validate: v}
}

// Register mounts every route on r. Sessions must already be attached by
// auth.Sessions.
func (h *Handler) Register(r gin.IRouter) {
	admin := auth.RequireRole(auth.RoleAdmin)
	faculty := auth.RequireRole(auth.RoleFaculty)
	student := auth.RequireRole(auth.RoleStudent)
	anyone := auth.RequireRole()

	r.POST("/login", h.login)
	r.POST("/logout", anyone, h.logout)

	api := r.Group("/api")
	api.GET("/dashboard", anyone, h.dashboard)

	api.POST("/add_user", admin, h.addUser)
	api.POST("/add_faculty", admin, h.addFaculty)
	api.POST("/upload_students", admin, h.uploadStudents)
	api.POST("/upload_faculty", admin, h.uploadFaculty)
	api.GET("/get_user/:id", admin, h.getUser)
	api.PUT("/update_user/:id", admin, h.updateUser)
	api.DELETE("/delete_user/:id", admin, h.deleteUser)

	api.GET("/get_clubs_events", h.listClubsEvents)
	api.POST("/add_club_event", admin, h.addClubEvent)
	api.PUT("/update_club_event/:id", admin, h.updateClubEvent)
	api.DELETE("/delete_club_event/:id", admin, h.deleteClubEvent)

	api.POST("/add_permission", student, h.addPermission)
	api.POST("/update_permission_status", faculty, h.updatePermissionStatus)
	api.POST("/mark_attendance", faculty, h.markAttendance)

	api.POST("/change_password", anyone, h.changePassword)
}

// ok replies 200 with success true, message and any extra fields.
func (h *Handler) ok(c *gin.Context, action, message string, extra gin.H) {
	h.metrics.Action(action, true)
	body := gin.H{"success": true, "message": message}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// reject replies with success false and a message meant for the user.
func (h *Handler) reject(c *gin.Context, action string, status int, message string) {
	h.metrics.Action(action, false)
	c.JSON(status, gin.H{"success": false, "message": message})
}

// fail maps a service error to a reply. Domain errors carry their own
// message; anything else is logged and answered with fallback.
func (h *Handler) fail(c *gin.Context, action string, err error, fallback string) {
	var perr *portal.Error
	if errors.As(err, &perr) {
		h.reject(c, action, statusFor(perr.Kind), perr.Message)
		return
	}
	h.log.Error(action+" failed",
		zap.Error(err),
		zap.String("path", c.FullPath()),
	)
	_ = c.Error(err)
	h.reject(c, action, http.StatusInternalServerError, fallback)
}

func statusFor(kind error) int {
	switch {
	case errors.Is(kind, portal.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(kind, portal.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(kind, portal.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(kind, portal.ErrDenied):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// bindJSON decodes and validates the request body into dst.
func (h *Handler) bindJSON(c *gin.Context, action string, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.reject(c, action, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return h.check(c, action, dst)
}

func (h *Handler) check(c *gin.Context, action string, dst any) bool {
	if err := h.validate.Struct(dst); err != nil {
		h.reject(c, action, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "oneof":
		return fe.Field() + " must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "datetime":
		return fe.Field() + " must be a date (YYYY-MM-DD)"
	}
	return fe.Field() + " is invalid"
}

func (h *Handler) pathID(c *gin.Context, action string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.reject(c, action, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}

func claims(c *gin.Context) auth.Claims {
	cl, _ := auth.FromContext(c)
	return cl
}
