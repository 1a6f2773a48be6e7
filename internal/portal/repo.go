package portal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Repository persists portal data. Queries use $n placeholders in ascending
// order so they run unchanged on Postgres (pgx) and SQLite.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, username, password, role, name, email, rollno, section, department, class_name, created_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Password, &u.Role, &u.Name, &u.Email, &u.RollNo, &u.Section, &u.Department, &u.Class, &u.CreatedAt)
	return u, err
}

// CreateUser inserts an account and returns its id.
func (r *Repository) CreateUser(ctx context.Context, u User) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (username, password, role, name, email, rollno, section, department, class_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, u.Username, u.Password, u.Role, u.Name, u.Email, u.RollNo, u.Section, u.Department, u.Class).Scan(&id)
	return id, err
}

// GetUser returns a user by id, or nil when it does not exist.
func (r *Repository) GetUser(ctx context.Context, id int64) (*User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// FindLogin returns the account matching username and role, or nil.
func (r *Repository) FindLogin(ctx context.Context, username, role string) (*User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1 AND role = $2`, username, role))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// UsernameTaken reports whether an account already uses username.
func (r *Repository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE username = $1`, username).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListUsers returns all users with role, students ordered by roll number.
func (r *Repository) ListUsers(ctx context.Context, role string) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE role = $1 ORDER BY rollno, name`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// CountUsers counts accounts with role; an empty role counts everyone.
func (r *Repository) CountUsers(ctx context.Context, role string) (int, error) {
	var n int
	var err error
	if role == "" {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	} else {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, role).Scan(&n)
	}
	return n, err
}

// UpdateStudent writes the student profile fields.
func (r *Repository) UpdateStudent(ctx context.Context, id int64, u UserUpdate) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET name = $1, email = $2, class_name = $3, rollno = $4, section = $5, department = $6
		WHERE id = $7
	`, u.Name, u.Email, u.Class, u.RollNo, u.Section, u.Department, id)
	return affected(res, err)
}

// UpdateStaff writes the faculty/admin profile fields.
func (r *Repository) UpdateStaff(ctx context.Context, id int64, u UserUpdate) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET name = $1, email = $2, department = $3 WHERE id = $4
	`, u.Name, u.Email, u.Department, id)
	return affected(res, err)
}

// UpdatePassword stores a new password hash.
func (r *Repository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET password = $1 WHERE id = $2`, hash, id)
	return err
}

// DeleteUser removes an account; dependent rows follow the schema's
// ON DELETE rules.
func (r *Repository) DeleteUser(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	return affected(res, err)
}

// FirstFaculty returns the faculty member new permissions are routed to.
func (r *Repository) FirstFaculty(ctx context.Context) (*User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE role = $1 ORDER BY id LIMIT 1`, "faculty"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// CreatePermission inserts a pending request.
func (r *Repository) CreatePermission(ctx context.Context, p Permission) (int64, error) {
	if p.Status == "" {
		p.Status = StatusPending
	}
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO permissions (student_id, faculty_id, date, reason, proof, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, p.StudentID, p.FacultyID, p.Date, p.Reason, p.Proof, p.Status).Scan(&id)
	return id, err
}

// SetPermissionStatus records a decision.
func (r *Repository) SetPermissionStatus(ctx context.Context, id int64, status string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE permissions SET status = $1 WHERE id = $2`, status, id)
	return affected(res, err)
}

// PermissionProof returns the stored proof of a request; ok is false when
// the request does not exist.
func (r *Repository) PermissionProof(ctx context.Context, id int64) (proof string, ok bool, err error) {
	err = r.db.QueryRowContext(ctx, `SELECT proof FROM permissions WHERE id = $1`, id).Scan(&proof)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return proof, true, nil
}

// SetPermissionProof replaces a request's proof.
func (r *Repository) SetPermissionProof(ctx context.Context, id int64, proof string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE permissions SET proof = $1 WHERE id = $2`, proof, id)
	return affected(res, err)
}

// PermissionsForFaculty lists requests routed to a faculty member with the
// requester's name and roll number.
func (r *Repository) PermissionsForFaculty(ctx context.Context, facultyID int64) ([]Permission, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.student_id, p.faculty_id, p.date, p.reason, p.proof, p.status, p.created_at, u.name, u.rollno
		FROM permissions p
		JOIN users u ON p.student_id = u.id
		WHERE p.faculty_id = $1
		ORDER BY p.created_at DESC, p.id DESC
	`, facultyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.StudentID, &p.FacultyID, &p.Date, &p.Reason, &p.Proof, &p.Status, &p.CreatedAt, &p.StudentName, &p.RollNo); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// PermissionsForStudent lists a student's own requests with the faculty name.
func (r *Repository) PermissionsForStudent(ctx context.Context, studentID int64) ([]Permission, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.student_id, p.faculty_id, p.date, p.reason, p.proof, p.status, p.created_at, COALESCE(u.name, '')
		FROM permissions p
		LEFT JOIN users u ON p.faculty_id = u.id
		WHERE p.student_id = $1
		ORDER BY p.created_at DESC, p.id DESC
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.StudentID, &p.FacultyID, &p.Date, &p.Reason, &p.Proof, &p.Status, &p.CreatedAt, &p.FacultyName); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// PermissionFilter narrows CountPermissions. Zero fields are ignored.
type PermissionFilter struct {
	Status    string
	FacultyID int64
	StudentID int64
}

// CountPermissions counts requests matching the filter.
func (r *Repository) CountPermissions(ctx context.Context, f PermissionFilter) (int, error) {
	query := `SELECT COUNT(*) FROM permissions`
	var args []any
	var clauses []string
	if f.Status != "" {
		args = append(args, f.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.FacultyID != 0 {
		args = append(args, f.FacultyID)
		clauses = append(clauses, fmt.Sprintf("faculty_id = $%d", len(args)))
	}
	if f.StudentID != 0 {
		args = append(args, f.StudentID)
		clauses = append(clauses, fmt.Sprintf("student_id = $%d", len(args)))
	}
	for i, c := range clauses {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	var n int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

// CreateClass inserts a class.
func (r *Repository) CreateClass(ctx context.Context, c Class) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO classes (name, faculty_id, schedule, room) VALUES ($1, $2, $3, $4) RETURNING id
	`, c.Name, c.FacultyID, c.Schedule, c.Room).Scan(&id)
	return id, err
}

// ClassesForFaculty lists the classes a faculty member teaches, oldest first.
func (r *Repository) ClassesForFaculty(ctx context.Context, facultyID int64) ([]Class, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, faculty_id, schedule, room FROM classes WHERE faculty_id = $1 ORDER BY id
	`, facultyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Class
	for rows.Next() {
		var c Class
		if err := rows.Scan(&c.ID, &c.Name, &c.FacultyID, &c.Schedule, &c.Room); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// ReplaceAttendance swaps a faculty member's records for date with entries,
// atomically. entries maps student id to status.
func (r *Repository) ReplaceAttendance(ctx context.Context, facultyID, classID int64, date string, entries map[int64]string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM attendance WHERE date = $1 AND marked_by = $2`, date, facultyID); err != nil {
		return err
	}
	for studentID, status := range entries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO attendance (student_id, class_id, date, status, marked_by) VALUES ($1, $2, $3, $4, $5)
		`, studentID, classID, date, status, facultyID); err != nil {
			return fmt.Errorf("student %d: %w", studentID, err)
		}
	}
	return tx.Commit()
}

// AttendanceForDay returns what a faculty member marked on date.
func (r *Repository) AttendanceForDay(ctx context.Context, facultyID int64, date string) (map[int64]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT student_id, status FROM attendance WHERE date = $1 AND marked_by = $2`, date, facultyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := make(map[int64]string)
	for rows.Next() {
		var id int64
		var status string
		if err := rows.Scan(&id, &status); err != nil {
			return nil, err
		}
		res[id] = status
	}
	return res, rows.Err()
}

// AttendanceHistory returns a student's latest records with subject and
// marker names.
func (r *Repository) AttendanceHistory(ctx context.Context, studentID int64, limit int) ([]AttendanceRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.student_id, a.class_id, a.date, a.status, a.marked_by, COALESCE(c.name, ''), COALESCE(u.name, '')
		FROM attendance a
		LEFT JOIN classes c ON a.class_id = c.id
		LEFT JOIN users u ON a.marked_by = u.id
		WHERE a.student_id = $1
		ORDER BY a.date DESC, a.id DESC
		LIMIT $2
	`, studentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []AttendanceRecord
	for rows.Next() {
		var a AttendanceRecord
		if err := rows.Scan(&a.ID, &a.StudentID, &a.ClassID, &a.Date, &a.Status, &a.MarkedBy, &a.Subject, &a.Marker); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// AttendanceTally returns how many of a student's records are present and
// how many exist in total.
func (r *Repository) AttendanceTally(ctx context.Context, studentID int64) (present, total int, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(CASE WHEN status = 'present' THEN 1 END), COUNT(*) FROM attendance WHERE student_id = $1
	`, studentID).Scan(&present, &total)
	return present, total, err
}

// ListClubsEvents returns clubs and events ordered by type then name.
func (r *Repository) ListClubsEvents(ctx context.Context, activeOnly bool) ([]ClubEvent, error) {
	query := `SELECT id, name, type, is_active, created_at FROM clubs_events`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY type, name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []ClubEvent
	for rows.Next() {
		var ce ClubEvent
		if err := rows.Scan(&ce.ID, &ce.Name, &ce.Type, &ce.IsActive, &ce.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, ce)
	}
	return res, rows.Err()
}

// CountClubsEvents counts entries of one kind.
func (r *Repository) CountClubsEvents(ctx context.Context, kind string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clubs_events WHERE type = $1`, kind).Scan(&n)
	return n, err
}

// CreateClubEvent inserts an active club or event.
func (r *Repository) CreateClubEvent(ctx context.Context, name, kind string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `INSERT INTO clubs_events (name, type) VALUES ($1, $2) RETURNING id`, name, kind).Scan(&id)
	return id, err
}

// UpdateClubEvent renames or retypes an entry.
func (r *Repository) UpdateClubEvent(ctx context.Context, id int64, name, kind string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE clubs_events SET name = $1, type = $2 WHERE id = $3`, name, kind, id)
	return affected(res, err)
}

// DeleteClubEvent removes an entry.
func (r *Repository) DeleteClubEvent(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM clubs_events WHERE id = $1`, id)
	return affected(res, err)
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
