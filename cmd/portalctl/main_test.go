package main

import (
	"bufio"
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"collegeportal/internal/auth"
	"collegeportal/internal/client"
	"collegeportal/internal/handler"
	"collegeportal/internal/metrics"
	"collegeportal/internal/portal"
	"collegeportal/internal/store"
	"collegeportal/internal/ui"
)

type noRevoke struct{}

func (noRevoke) Revoke(context.Context, string, time.Time) error { return nil }
func (noRevoke) Revoked(context.Context, string) (bool, error)   { return false, nil }

func newPortal(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	db, err := store.NewDB(ctx, "sqlite3", "file:"+filepath.Join(t.TempDir(), "portal.db")+"?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	svc := portal.NewService(portal.NewRepository(db.Client), nil, zap.NewNop())
	_, err = svc.Seed(ctx)
	require.NoError(t, err)

	const key, issuer = "portalctl-test", "college-portal-test"
	h := handler.New(svc, handler.Options{Issuer: issuer, SigningKey: key, SessionTTL: time.Hour, UploadMaxBytes: 1 << 20},
		noRevoke{}, metrics.New(prometheus.NewRegistry()), zap.NewNop())
	r := gin.New()
	r.Use(auth.Sessions(key, issuer, noRevoke{}, zap.NewNop()))
	h.Register(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

type run struct {
	out, errOut string
	err         error
}

func execute(t *testing.T, srv *httptest.Server, sessionFile, stdin string, args ...string) run {
	t.Helper()
	color.NoColor = true
	var out, errOut bytes.Buffer
	a := &app{v: viper.New(), in: bufio.NewReader(strings.NewReader(stdin)), out: &out, errOut: &errOut}
	cmd := a.rootCmd()
	cmd.SetArgs(append([]string{"--url", srv.URL, "--session-file", sessionFile}, args...))
	err := cmd.ExecuteContext(context.Background())
	return run{out: out.String(), errOut: errOut.String(), err: err}
}

func TestLoginAddStudentAndReload(t *testing.T) {
	srv := newPortal(t)
	session := filepath.Join(t.TempDir(), "session.yaml")

	r := execute(t, srv, session, "", "login", "-u", "admin", "-p", "wrong", "-r", "admin")
	assert.ErrorIs(t, r.err, errReported)
	assert.Contains(t, r.errOut, "Error: Invalid credentials. Please try again.")

	r = execute(t, srv, session, "admin123\n", "login", "-u", "admin", "-r", "admin")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "Logged in as System Administrator (admin)")

	s, err := client.LoadSession(session)
	require.NoError(t, err)
	assert.Equal(t, "admin", s.Role)
	assert.Equal(t, srv.URL, s.URL)

	r = execute(t, srv, session, "", "student", "add", "--username", "jdoe", "--password", "x", "--name", "J Doe", "--email", "j@x.com", "--class", "10A")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "Student added successfully!")
	assert.Contains(t, r.out, "Students: 3")
	assert.Contains(t, r.out, "J Doe")

	r = execute(t, srv, session, "", "student", "add", "--username", "jdoe", "--password", "x", "--name", "J Doe")
	assert.ErrorIs(t, r.err, errReported)
	assert.Contains(t, r.errOut, "Error: Username already exists")
}

func TestClubsAndConfirmation(t *testing.T) {
	srv := newPortal(t)
	session := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, execute(t, srv, session, "", "login", "-u", "admin", "-p", "admin123", "-r", "admin").err)

	r := execute(t, srv, session, "", "clubs", "add", "--name", "Robotics", "--type", "club")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "Club added successfully")
	assert.Contains(t, r.out, "Robotics")

	r = execute(t, srv, session, "", "clubs", "list")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "Tech Fest 2023")

	// declined confirmation sends nothing
	r = execute(t, srv, session, "n\n", "clubs", "delete", "1")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "Are you sure you want to delete this club/event? [y/N]")
	assert.NotContains(t, r.out, "Deleted successfully")

	r = execute(t, srv, session, "", "--yes", "clubs", "delete", "1")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "Deleted successfully")
}

func TestPasswordMismatchAndLogout(t *testing.T) {
	srv := newPortal(t)
	session := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, execute(t, srv, session, "", "login", "-u", "student1", "-p", "student123").err)

	r := execute(t, srv, session, "", "password", "--current", "student123", "--new", "a", "--confirm", "b")
	assert.ErrorIs(t, r.err, errReported)
	assert.Contains(t, r.errOut, "New passwords do not match")

	r = execute(t, srv, session, "", "logout")
	require.NoError(t, r.err)
	r = execute(t, srv, session, "", "dashboard")
	assert.EqualError(t, r.err, "not logged in; run portalctl login")
}

func TestLogoutLogsFailedRequest(t *testing.T) {
	srv := newPortal(t)
	session := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, execute(t, srv, session, "", "login", "-u", "admin", "-p", "admin123", "-r", "admin").err)
	srv.Close()

	core, logs := observer.New(zap.DebugLevel)
	var out, errOut bytes.Buffer
	a := &app{
		v:        viper.New(),
		debugLog: func() (*zap.Logger, error) { return zap.New(core), nil },
		in:       bufio.NewReader(strings.NewReader("")),
		out:      &out,
		errOut:   &errOut,
	}
	cmd := a.rootCmd()
	cmd.SetArgs([]string{"--url", srv.URL, "--session-file", session, "--debug", "logout"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	entries := logs.FilterMessage("logout request failed").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap(), "error")

	r := execute(t, srv, session, "", "dashboard")
	assert.EqualError(t, r.err, "not logged in; run portalctl login")
}

func TestRendererShowsNotificationsByKind(t *testing.T) {
	color.NoColor = true
	var out, errOut bytes.Buffer
	r := newRenderer(&out, &errOut)
	r.Shown(ui.Notification{Message: "Saved 100%", Kind: ui.KindSuccess})
	r.Shown(ui.Notification{Message: "Error: nope", Kind: ui.KindError})
	assert.Equal(t, "Saved 100%\n", out.String())
	assert.Equal(t, "Error: nope\n", errOut.String())

	out.Reset()
	r.ClubsEvents([]client.ClubEvent{{ID: 2, Name: "Fest", Type: "event", IsActive: true}, {ID: 1, Name: "Chess", Type: "club", IsActive: true}})
	assert.Less(t, strings.Index(out.String(), "Chess"), strings.Index(out.String(), "Fest"))
}
