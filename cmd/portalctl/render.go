package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/tidwall/gjson"

	"collegeportal/internal/client"
	"collegeportal/internal/ui"
)

// renderer prints notifications and dashboards.
type renderer struct {
	out    io.Writer
	errOut io.Writer
}

func newRenderer(out, errOut io.Writer) *renderer {
	return &renderer{out: out, errOut: errOut}
}

func (r *renderer) Shown(n ui.Notification) {
	switch n.Kind {
	case ui.KindSuccess:
		fmt.Fprintln(r.out, color.GreenString("%s", n.Message))
	case ui.KindError:
		fmt.Fprintln(r.errOut, color.RedString("%s", n.Message))
	default:
		fmt.Fprintln(r.out, color.CyanString("%s", n.Message))
	}
}

func (r *renderer) Dismissed(ui.Notification) {}

func (r *renderer) table(header []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Fprintln(r.out, color.New(color.Faint).Sprint("  (none)"))
		return
	}
	t := tablewriter.NewWriter(r.out)
	t.SetHeader(header)
	t.SetAutoWrapText(false)
	t.SetBorder(false)
	t.AppendBulk(rows)
	t.Render()
}

func (r *renderer) heading(s string) {
	fmt.Fprintln(r.out)
	color.New(color.Bold).Fprintln(r.out, s)
}

func statusText(s string) string {
	switch s {
	case "approved", "present":
		return color.GreenString("%s", s)
	case "rejected", "absent":
		return color.RedString("%s", s)
	case "pending":
		return color.YellowString("%s", s)
	default:
		return s
	}
}

// Dashboard prints a /api/dashboard reply for its role.
func (r *renderer) Dashboard(res client.Result) {
	d := res.Get("dashboard")
	user := res.Get("user.name").String()
	color.New(color.FgCyan, color.Bold).Fprintf(r.out, "%s dashboard: %s\n", res.Get("role").String(), user)

	switch res.Get("role").String() {
	case "admin":
		fmt.Fprintf(r.out, "Students: %d  Faculty: %d  Pending permissions: %d  Events: %d\n",
			d.Get("students_count").Int(), d.Get("faculty_count").Int(),
			d.Get("pending_permissions").Int(), d.Get("events_count").Int())
		r.heading("Students")
		r.users(d.Get("students"), true)
		r.heading("Faculty")
		r.users(d.Get("faculty"), false)
	case "faculty":
		fmt.Fprintf(r.out, "Classes: %d  Students: %d  Pending permissions: %d\n",
			d.Get("classes_count").Int(), d.Get("students_count").Int(), d.Get("pending_permissions").Int())
		r.heading("Permission requests")
		r.permissions(d.Get("permissions"), true)
		r.heading("Today's attendance")
		r.roll(d.Get("students"), d.Get("today_attendance"))
	case "student":
		fmt.Fprintf(r.out, "Attendance: %.1f%%  Pending permissions: %d  Events: %d\n",
			d.Get("attendance_percentage").Float(), d.Get("pending_permissions").Int(), d.Get("events_count").Int())
		r.heading("Permission requests")
		r.permissions(d.Get("permissions"), false)
		r.heading("Recent attendance")
		var rows [][]string
		d.Get("attendance").ForEach(func(_, a gjson.Result) bool {
			rows = append(rows, []string{a.Get("date").String(), a.Get("subject").String(), statusText(a.Get("status").String()), a.Get("marked_by_name").String()})
			return true
		})
		r.table([]string{"Date", "Subject", "Status", "Marked by"}, rows)
		r.heading("Clubs and events")
		r.ClubsEvents(append(client.ClubEventsFrom(d.Get("clubs")), client.ClubEventsFrom(d.Get("events"))...))
	}
}

func (r *renderer) users(v gjson.Result, students bool) {
	var rows [][]string
	for _, u := range client.UsersFrom(v) {
		id := strconv.FormatInt(u.ID, 10)
		if students {
			rows = append(rows, []string{id, u.RollNo, u.Name, u.Class, u.Section, u.Email})
		} else {
			rows = append(rows, []string{id, u.Username, u.Name, u.Department, u.Email})
		}
	}
	if students {
		r.table([]string{"ID", "Roll No", "Name", "Class", "Section", "Email"}, rows)
		return
	}
	r.table([]string{"ID", "Username", "Name", "Department", "Email"}, rows)
}

func (r *renderer) permissions(v gjson.Result, withStudent bool) {
	var rows [][]string
	v.ForEach(func(_, p gjson.Result) bool {
		row := []string{p.Get("id").String()}
		if withStudent {
			row = append(row, p.Get("student_name").String(), p.Get("rollno").String())
		} else {
			row = append(row, p.Get("faculty_name").String())
		}
		row = append(row, p.Get("date").String(), p.Get("reason").String(), statusText(p.Get("status").String()))
		rows = append(rows, row)
		return true
	})
	if withStudent {
		r.table([]string{"ID", "Student", "Roll No", "Date", "Reason", "Status"}, rows)
		return
	}
	r.table([]string{"ID", "Faculty", "Date", "Reason", "Status"}, rows)
}

func (r *renderer) roll(students, marks gjson.Result) {
	var rows [][]string
	for _, u := range client.UsersFrom(students) {
		id := strconv.FormatInt(u.ID, 10)
		status := marks.Get(id).String()
		if status == "" {
			status = "-"
		}
		rows = append(rows, []string{id, u.RollNo, u.Name, statusText(status)})
	}
	r.table([]string{"ID", "Roll No", "Name", "Status"}, rows)
}

// ClubsEvents prints clubs before events, each sorted by name.
func (r *renderer) ClubsEvents(items []client.ClubEvent) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Type != items[j].Type {
			return items[i].Type < items[j].Type
		}
		return items[i].Name < items[j].Name
	})
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		active := "yes"
		if !it.IsActive {
			active = "no"
		}
		rows = append(rows, []string{strconv.FormatInt(it.ID, 10), it.Name, it.Type, active})
	}
	r.table([]string{"ID", "Name", "Type", "Active"}, rows)
}
