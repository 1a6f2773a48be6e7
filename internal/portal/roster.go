package portal

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"collegeportal/internal/auth"
)

// maxReportedErrors caps how many row errors the summary message lists.
const maxReportedErrors = 5

var studentHeaders = map[string][]string{
	"name":       {"Name", "name", "Student Name", "student_name"},
	"rollno":     {"RollNo", "rollno", "Roll Number", "roll_number", "ID", "Id"},
	"email":      {"Email Id", "Email", "email", "Email ID"},
	"section":    {"Section", "section"},
	"department": {"Dept", "Department", "department", "dept"},
	"password":   {"Password", "password"},
}

var facultyHeaders = map[string][]string{
	"name":       {"Name", "name", "Faculty Name", "faculty_name"},
	"email":      {"Email Id", "Email", "email", "Email ID"},
	"department": {"Dept", "Department", "department", "dept"},
	"password":   {"Password", "password"},
}

var (
	studentRequired = []string{"name", "rollno", "email", "section", "department", "password"}
	facultyRequired = []string{"name", "email", "department", "password"}
)

// RosterFileAllowed reports whether filename has a spreadsheet extension the
// upload endpoints accept.
func RosterFileAllowed(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xls":
		return true
	}
	return false
}

// Summary renders the report the way the upload endpoints reply, e.g.
// "Successfully added 3 students. 1 failed. Errors: Row 4: ...".
func (r ImportReport) Summary(noun string) string {
	msg := fmt.Sprintf("Successfully added %d %s.", r.Added, noun)
	if r.Failed > 0 {
		msg += fmt.Sprintf(" %d failed.", r.Failed)
		if len(r.Errors) > 0 {
			errs := r.Errors
			if len(errs) > maxReportedErrors {
				errs = errs[:maxReportedErrors]
			}
			msg += " Errors: " + strings.Join(errs, "; ")
		}
	}
	return msg
}

// ImportStudents adds one student per data row of the first worksheet.
// Usernames are the roll numbers.
func (s *Service) ImportStudents(ctx context.Context, filename string, r io.Reader) (ImportReport, error) {
	return s.importRoster(ctx, filename, r, studentHeaders, studentRequired, func(i int, row map[string]string) NewUser {
		return NewUser{
			Username:   row["rollno"],
			Password:   row["password"],
			Name:       row["name"],
			Email:      row["email"],
			RollNo:     row["rollno"],
			Section:    row["section"],
			Department: row["department"],
		}
	}, auth.RoleStudent)
}

// ImportFaculty adds one faculty member per data row. Usernames are derived
// from the name and the row index, e.g. "dr.jane.roe0".
func (s *Service) ImportFaculty(ctx context.Context, filename string, r io.Reader) (ImportReport, error) {
	return s.importRoster(ctx, filename, r, facultyHeaders, facultyRequired, func(i int, row map[string]string) NewUser {
		return NewUser{
			Username:   strings.ReplaceAll(strings.ToLower(row["name"]), " ", ".") + strconv.Itoa(i),
			Password:   row["password"],
			Name:       row["name"],
			Email:      row["email"],
			Department: row["department"],
		}
	}, auth.RoleFaculty)
}

func (s *Service) importRoster(
	ctx context.Context,
	filename string,
	r io.Reader,
	headers map[string][]string,
	required []string,
	build func(i int, row map[string]string) NewUser,
	role string,
) (ImportReport, error) {
	var report ImportReport
	if !RosterFileAllowed(filename) {
		return report, fail(ErrInvalid, "Invalid file type")
	}
	rows, err := readSheet(r)
	if err != nil {
		return report, fail(ErrInvalid, "Error processing file: %v", err)
	}
	if len(rows) == 0 {
		return report, fail(ErrInvalid, "Error processing file: workbook is empty")
	}

	columns := resolveColumns(rows[0], headers)
	var missing []string
	for _, name := range required {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return report, fail(ErrInvalid, "Missing required columns: %s", strings.Join(missing, ", "))
	}

	for i, cells := range rows[1:] {
		if blank(cells) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		row := make(map[string]string, len(columns))
		for name, idx := range columns {
			if idx < len(cells) {
				row[name] = strings.TrimSpace(cells[idx])
			}
		}
		in := build(i, row)
		if err := s.importOne(ctx, role, in); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("Row %d: %s", i+2, err.Error()))
			continue
		}
		report.Added++
	}
	s.log.Info("roster imported",
		zap.String("role", role),
		zap.String("file", filename),
		zap.Int("added", report.Added),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (s *Service) importOne(ctx context.Context, role string, in NewUser) error {
	if in.Username == "" || in.Name == "" || in.Password == "" {
		return fail(ErrInvalid, "Missing name, password or username")
	}
	taken, err := s.repo.UsernameTaken(ctx, in.Username)
	if err != nil {
		return err
	}
	if taken {
		return fail(ErrDuplicate, "Username %s already exists", in.Username)
	}
	_, err = s.addUser(ctx, role, in)
	return err
}

// readSheet returns every row of the workbook's first sheet.
func readSheet(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no worksheets")
	}
	return f.GetRows(sheets[0])
}

// resolveColumns maps each canonical column to the index of the first header
// cell that matches one of its aliases.
func resolveColumns(header []string, aliases map[string][]string) map[string]int {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if _, seen := pos[h]; !seen {
			pos[h] = i
		}
	}
	res := make(map[string]int, len(aliases))
	for name, candidates := range aliases {
		for _, c := range candidates {
			if idx, ok := pos[c]; ok {
				res[name] = idx
				break
			}
		}
	}
	return res
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
