package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"collegeportal/internal/client"
	"collegeportal/internal/dashboard"
	"collegeportal/internal/ui"
)

func (a *app) loginCmd() *cobra.Command {
	var username, password, role string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and keep the session for later commands",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if username == "" {
				username = a.prompt("Username")
			}
			if password == "" {
				password = a.prompt("Password")
			}
			api := a.newClient("")
			res, err := api.Login(cmd.Context(), username, password, role)
			if err != nil {
				return err
			}
			if !res.Success {
				fmt.Fprintln(a.errOut, color.RedString("Error: %s", res.Message))
				return errReported
			}
			s := client.Session{
				URL:       a.cfg.URL,
				Token:     api.Token,
				Role:      res.Get("role").String(),
				Name:      res.Get("name").String(),
				ExpiresAt: client.ExpiresAt(res),
			}
			if err := client.SaveSession(a.cfg.SessionFile, s); err != nil {
				return err
			}
			fmt.Fprintln(a.out, color.GreenString("Logged in as %s (%s)", s.Name, s.Role))
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when empty)")
	cmd.Flags().StringVarP(&role, "role", "r", "student", "admin, faculty or student")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if s, err := a.session(); err == nil {
				if _, err := a.newClient(s.Token).Logout(cmd.Context()); err != nil {
					a.log.Debug("logout request failed", zap.Error(err))
				}
			}
			if err := client.ClearSession(a.cfg.SessionFile); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}

func (a *app) dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "dashboard",
		Aliases: []string{"dash"},
		Short:   "Show the dashboard for the logged-in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, r, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()
			r.Dashboard(d.Page())
			return nil
		},
	}
}

func (a *app) studentCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "student", Short: "Add or import students"}

	var f ui.StudentForm
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a student",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, r, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			d.Forms.Student = f
			return a.settle(d, r, d.AddUser(cmd.Context()), true)
		},
	}
	add.Flags().StringVar(&f.Username, "username", "", "login name")
	add.Flags().StringVar(&f.Password, "password", "", "initial password")
	add.Flags().StringVar(&f.Name, "name", "", "full name")
	add.Flags().StringVar(&f.Email, "email", "", "email address")
	add.Flags().StringVar(&f.Class, "class", "", "class")
	add.Flags().StringVar(&f.RollNo, "rollno", "", "roll number")
	add.Flags().StringVar(&f.Section, "section", "", "section")
	add.Flags().StringVar(&f.Department, "department", "", "department")

	upload := &cobra.Command{
		Use:   "upload FILE",
		Short: "Import students from an Excel roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.uploadRoster(cmd, args[0], (*dashboard.Dashboard).UploadStudents)
		},
	}
	cmd.AddCommand(add, upload)
	return cmd
}

func (a *app) facultyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "faculty", Short: "Add or import faculty"}

	var f ui.FacultyForm
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a faculty member",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, r, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			d.Forms.Faculty = f
			return a.settle(d, r, d.AddFaculty(cmd.Context()), true)
		},
	}
	add.Flags().StringVar(&f.Username, "username", "", "login name")
	add.Flags().StringVar(&f.Password, "password", "", "initial password")
	add.Flags().StringVar(&f.Name, "name", "", "full name")
	add.Flags().StringVar(&f.Email, "email", "", "email address")
	add.Flags().StringVar(&f.Department, "department", "", "department")

	upload := &cobra.Command{
		Use:   "upload FILE",
		Short: "Import faculty from an Excel roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.uploadRoster(cmd, args[0], (*dashboard.Dashboard).UploadFaculty)
		},
	}
	cmd.AddCommand(add, upload)
	return cmd
}

func (a *app) uploadRoster(cmd *cobra.Command, path string, submit func(*dashboard.Dashboard, context.Context) ui.Outcome) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	d, r, err := a.open(cmd.Context())
	if err != nil {
		return err
	}
	d.Forms.Upload = ui.UploadForm{Filename: filepath.Base(path), Content: content}
	return a.settle(d, r, submit(d, cmd.Context()), true)
}

func (a *app) userCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Edit or delete students and faculty"}

	var f ui.EditUserForm
	edit := &cobra.Command{
		Use:   "edit ID",
		Short: "Update a user's details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			d, r, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := d.EditUser(cmd.Context(), id); err != nil {
				d.Close()
				return errReported
			}
			form := &d.Forms.EditUser
			for name, v := range map[string][2]*string{
				"name":       {&form.Name, &f.Name},
				"email":      {&form.Email, &f.Email},
				"class":      {&form.Class, &f.Class},
				"rollno":     {&form.RollNo, &f.RollNo},
				"section":    {&form.Section, &f.Section},
				"department": {&form.Department, &f.Department},
			} {
				if cmd.Flags().Changed(name) {
					*v[0] = *v[1]
				}
			}
			return a.settle(d, r, d.UpdateUser(cmd.Context()), true)
		},
	}
	edit.Flags().StringVar(&f.Name, "name", "", "full name")
	edit.Flags().StringVar(&f.Email, "email", "", "email address")
	edit.Flags().StringVar(&f.Class, "class", "", "class")
	edit.Flags().StringVar(&f.RollNo, "rollno", "", "roll number")
	edit.Flags().StringVar(&f.Section, "section", "", "section")
	edit.Flags().StringVar(&f.Department, "department", "", "department")

	var role string
	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			d, r, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			return a.settle(d, r, d.DeleteUser(cmd.Context(), id, role), true)
		},
	}
	del.Flags().StringVar(&role, "role", "student", "student or faculty")

	cmd.AddCommand(edit, del)
	return cmd
}

func (a *app) clubsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "clubs", Aliases: []string{"events"}, Short: "List and manage clubs and events"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List active clubs and events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, r, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()
			if err := d.LoadClubsEvents(cmd.Context()); err != nil {
				return err
			}
			r.ClubsEvents(d.ClubsEvents())
			return nil
		},
	}

	var f ui.ClubEventForm
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a club or event",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, r, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			d.Forms.ClubEvent = f
			return a.settleList(d, r, d.AddClubEvent(cmd.Context()))
		},
	}
	add.Flags().StringVar(&f.Name, "name", "", "name")
	add.Flags().StringVar(&f.Type, "type", "club", "club or event")

	var u ui.ClubEventForm
	update := &cobra.Command{
		Use:   "update ID",
		Short: "Rename or retype a club or event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			d, r, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := d.LoadClubsEvents(cmd.Context()); err != nil {
				d.Close()
				return err
			}
			item := client.ClubEvent{ID: id}
			for _, it := range d.ClubsEvents() {
				if it.ID == id {
					item = it
				}
			}
			d.EditClubEvent(item)
			if cmd.Flags().Changed("name") {
				d.Forms.EditClub.Name = u.Name
			}
			if cmd.Flags().Changed("type") {
				d.Forms.EditClub.Type = u.Type
			}
			return a.settleList(d, r, d.UpdateClubEvent(cmd.Context()))
		},
	}
	update.Flags().StringVar(&u.Name, "name", "", "new name")
	update.Flags().StringVar(&u.Type, "type", "", "club or event")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a club or event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			d, r, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			return a.settleList(d, r, d.DeleteClubEvent(cmd.Context(), id))
		},
	}

	cmd.AddCommand(list, add, update, del)
	return cmd
}

// settleList settles a club/event action, which refreshes the list in place.
func (a *app) settleList(d *dashboard.Dashboard, r *renderer, out ui.Outcome) error {
	if err := a.settle(d, r, out, false); err != nil {
		return err
	}
	if out == ui.Succeeded {
		r.ClubsEvents(d.ClubsEvents())
	}
	return nil
}

func (a *app) permissionCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "permission", Aliases: []string{"perm"}, Short: "Apply for or decide on permissions"}

	var f ui.PermissionForm
	var proofFile string
	apply := &cobra.Command{
		Use:   "apply",
		Short: "Submit a permission request",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if proofFile != "" {
				proof, err := dataURL(proofFile)
				if err != nil {
					return err
				}
				f.Proof = proof
			}
			d, r, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			d.Forms.Permission = f
			return a.settle(d, r, d.ApplyPermission(cmd.Context()), true)
		},
	}
	apply.Flags().StringVar(&f.Date, "date", time.Now().Format(time.DateOnly), "date (YYYY-MM-DD)")
	apply.Flags().StringVar(&f.Reason, "reason", "", "reason")
	apply.Flags().StringVar(&proofFile, "proof", "", "supporting document")

	decide := func(use, status string) *cobra.Command {
		return &cobra.Command{
			Use:   use + " ID",
			Short: "Mark a permission request " + status,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				d, r, err := a.open(cmd.Context())
				if err != nil {
					return err
				}
				return a.settle(d, r, d.UpdatePermissionStatus(cmd.Context(), id, status), true)
			},
		}
	}

	cmd.AddCommand(apply, decide("approve", "approved"), decide("reject", "rejected"))
	return cmd
}

func (a *app) attendanceCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "attendance", Short: "Record today's attendance"}

	var present, absent []int64
	mark := &cobra.Command{
		Use:   "mark",
		Short: "Mark students present or absent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, r, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range present {
				d.Forms.Attendance.Mark(id, "present")
			}
			for _, id := range absent {
				d.Forms.Attendance.Mark(id, "absent")
			}
			return a.settle(d, r, d.MarkAttendance(cmd.Context()), false)
		},
	}
	mark.Flags().Int64SliceVar(&present, "present", nil, "student ids present")
	mark.Flags().Int64SliceVar(&absent, "absent", nil, "student ids absent")
	cmd.AddCommand(mark)
	return cmd
}

func (a *app) passwordCmd() *cobra.Command {
	var f ui.PasswordForm
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Change your password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.CurrentPassword == "" {
				f.CurrentPassword = a.prompt("Current password")
			}
			if f.NewPassword == "" {
				f.NewPassword = a.prompt("New password")
			}
			if f.ConfirmPassword == "" {
				f.ConfirmPassword = a.prompt("Confirm new password")
			}
			d, r, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			d.Forms.Password = f
			return a.settle(d, r, d.ChangePassword(cmd.Context()), false)
		},
	}
	cmd.Flags().StringVar(&f.CurrentPassword, "current", "", "current password")
	cmd.Flags().StringVar(&f.NewPassword, "new", "", "new password")
	cmd.Flags().StringVar(&f.ConfirmPassword, "confirm", "", "repeat the new password")
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// dataURL encodes a file the way a browser file input would.
func dataURL(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	mime, _, _ := strings.Cut(http.DetectContentType(b), ";")
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(b), nil
}
