// Command portalctl drives the college portal dashboards from a terminal.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"collegeportal/internal/client"
	"collegeportal/internal/config"
	"collegeportal/internal/dashboard"
	"collegeportal/internal/ui"
)

// errReported means the failure was already shown as a notification.
var errReported = errors.New("action failed")

type app struct {
	v          *viper.Viper
	configFile string
	urlFlag    bool
	cfg        config.Client
	log        *zap.Logger
	// debugLog builds the --debug logger; nil means zap.NewDevelopment.
	debugLog func() (*zap.Logger, error)
	in         *bufio.Reader
	out        io.Writer
	errOut     io.Writer
}

func main() {
	a := &app{v: viper.New(), in: bufio.NewReader(os.Stdin), out: os.Stdout, errOut: os.Stderr}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := a.rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		}
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "portalctl",
		Short:         "Manage students, faculty, attendance and permissions on the college portal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.urlFlag = cmd.Flags().Changed("url") || os.Getenv("PORTAL_URL") != ""
			return a.load()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	config.ClientDefaults(a.v)
	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default $HOME/.portalctl.yaml)")
	flags.String("url", "", "portal base URL")
	flags.String("session-file", "", "where the login session is kept")
	flags.Duration("request-timeout", 0, "per-request timeout (0 means none)")
	flags.BoolP("yes", "y", false, "answer yes to confirmations")
	flags.Bool("debug", false, "log transport diagnostics")
	for _, name := range []string{"url", "session-file", "request-timeout", "yes", "debug"} {
		_ = a.v.BindPFlag(strings.ReplaceAll(name, "-", "_"), flags.Lookup(name))
	}

	root.AddCommand(
		a.loginCmd(),
		a.logoutCmd(),
		a.dashboardCmd(),
		a.studentCmd(),
		a.facultyCmd(),
		a.userCmd(),
		a.clubsCmd(),
		a.permissionCmd(),
		a.attendanceCmd(),
		a.passwordCmd(),
	)
	return root
}

func (a *app) load() error {
	cfg, err := config.LoadClient(a.v, a.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg
	a.log = zap.NewNop()
	if cfg.Debug {
		build := a.debugLog
		if build == nil {
			build = func() (*zap.Logger, error) { return zap.NewDevelopment() }
		}
		if l, err := build(); err == nil {
			a.log = l
		}
	}
	return nil
}

func (a *app) newClient(token string) *client.Client {
	return client.New(a.cfg.URL,
		client.WithTimeout(a.cfg.RequestTimeout),
		client.WithToken(token),
		client.WithLogger(a.log.Named("client")),
	)
}

// session returns the stored login, or an error asking the user to log in.
func (a *app) session() (client.Session, error) {
	s, err := client.LoadSession(a.cfg.SessionFile)
	if err != nil {
		return s, err
	}
	if !s.Valid(time.Now()) {
		return s, errors.New("not logged in; run portalctl login")
	}
	if s.URL != "" && !a.urlFlag {
		a.cfg.URL = s.URL
	}
	return s, nil
}

// open builds the dashboard for the logged-in user and loads it.
func (a *app) open(ctx context.Context) (*dashboard.Dashboard, *renderer, error) {
	s, err := a.session()
	if err != nil {
		return nil, nil, err
	}
	cfg := dashboard.DefaultConfig(s.Role)
	cfg.Notifications.TTL = a.cfg.NotificationTTL
	cfg.Notifications.Exclusive = a.cfg.ExclusiveNotification

	r := newRenderer(a.out, a.errOut)
	d := dashboard.New(a.newClient(s.Token), cfg, clock.New(), a.confirmer(), a.log.Named("dashboard"), r)
	if err := d.Reload(ctx); err != nil {
		return nil, nil, err
	}
	return d, r, nil
}

func (a *app) confirmer() ui.Confirmer {
	return ui.ConfirmFunc(func(prompt string) bool {
		if a.cfg.AssumeYes {
			return true
		}
		fmt.Fprintf(a.out, "%s [y/N] ", prompt)
		line, _ := a.in.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		}
		return false
	})
}

// settle turns an outcome into the command result. When the action
// reloads, it waits for the reload and renders the refreshed dashboard.
func (a *app) settle(d *dashboard.Dashboard, r *renderer, out ui.Outcome, reloads bool) error {
	defer d.Close()
	switch out {
	case ui.Succeeded:
	case ui.Declined:
		return nil
	default:
		return errReported
	}
	if !reloads {
		return nil
	}
	done := make(chan client.Result, 1)
	d.OnReload(func(res client.Result) {
		select {
		case done <- res:
		default:
		}
	})
	select {
	case res := <-done:
		r.Dashboard(res)
	case <-time.After(10 * time.Second):
		a.log.Debug("reload did not complete")
	}
	return nil
}

func (a *app) prompt(label string) string {
	fmt.Fprintf(a.out, "%s: ", label)
	line, _ := a.in.ReadString('\n')
	return strings.TrimSpace(line)
}
