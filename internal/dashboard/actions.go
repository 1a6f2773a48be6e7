package dashboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"collegeportal/internal/client"
	"collegeportal/internal/ui"
)

// AddUser submits the add-student form.
func (d *Dashboard) AddUser(ctx context.Context) ui.Outcome {
	f := &d.Forms.Student
	return d.Submit.Submit(ctx, ui.Action{
		Name:      "add_user",
		Form:      f,
		Controls:  []string{ControlSubmit},
		Send:      func(ctx context.Context) (client.Result, error) { return d.api.AddUser(ctx, f.Payload()) },
		Success:   ui.Fixed("Student added successfully!"),
		Fallback:  "An error occurred while adding student.",
		Modal:     d.modal(ModalAddUser),
		ResetForm: true,
		ReloadIn:  d.cfg.ShortReload,
	})
}

// AddFaculty submits the add-faculty form.
func (d *Dashboard) AddFaculty(ctx context.Context) ui.Outcome {
	f := &d.Forms.Faculty
	return d.Submit.Submit(ctx, ui.Action{
		Name:      "add_faculty",
		Form:      f,
		Controls:  []string{ControlSubmit},
		Send:      func(ctx context.Context) (client.Result, error) { return d.api.AddFaculty(ctx, f.Payload()) },
		Fallback:  "An error occurred while adding faculty.",
		Modal:     d.modal(ModalAddFaculty),
		ResetForm: true,
		ReloadIn:  d.cfg.LongReload,
	})
}

// UploadStudents submits the picked roster as students.
func (d *Dashboard) UploadStudents(ctx context.Context) ui.Outcome {
	return d.upload(ctx, "upload_students", ModalUploadStudents, "An error occurred while uploading students.", d.api.UploadStudents)
}

// UploadFaculty submits the picked roster as faculty.
func (d *Dashboard) UploadFaculty(ctx context.Context) ui.Outcome {
	return d.upload(ctx, "upload_faculty", ModalUploadFaculty, "An error occurred while uploading faculty.", d.api.UploadFaculty)
}

func (d *Dashboard) upload(ctx context.Context, name, modal, fallback string, send func(context.Context, string, io.Reader) (client.Result, error)) ui.Outcome {
	f := &d.Forms.Upload
	return d.Submit.Submit(ctx, ui.Action{
		Name:     name,
		Form:     f,
		Controls: []string{ControlUpload},
		Send: func(ctx context.Context) (client.Result, error) {
			return send(ctx, f.Filename, bytes.NewReader(f.Content))
		},
		Fallback:  fallback,
		Modal:     d.modal(modal),
		ResetForm: true,
		ReloadIn:  d.cfg.LongReload,
	})
}

// LoadClubsEvents refreshes the club/event list.
func (d *Dashboard) LoadClubsEvents(ctx context.Context) error {
	res, err := d.api.ClubsEvents(ctx)
	if err != nil {
		d.log.Debug("error loading clubs and events", zap.Error(err))
		return err
	}
	if err := res.Err(); err != nil {
		return err
	}
	items := client.ClubEventsFrom(res.Get("items"))
	d.mu.Lock()
	d.clubsEvents = items
	d.mu.Unlock()
	return nil
}

// AddClubEvent submits the add club/event form.
func (d *Dashboard) AddClubEvent(ctx context.Context) ui.Outcome {
	f := &d.Forms.ClubEvent
	return d.Submit.Submit(ctx, ui.Action{
		Name:      "add_club_event",
		Form:      f,
		Controls:  []string{ControlSubmit},
		Send:      func(ctx context.Context) (client.Result, error) { return d.api.AddClubEvent(ctx, f.Payload()) },
		Fallback:  "An error occurred while adding club/event.",
		Modal:     d.modal(ModalAddClubEvent),
		ResetForm: true,
		Refresh:   d.LoadClubsEvents,
	})
}

// EditClubEvent opens the edit form for item.
func (d *Dashboard) EditClubEvent(item client.ClubEvent) {
	d.Forms.EditClub = ui.ClubEventForm{ID: item.ID, Name: item.Name, Type: item.Type}
	d.modal(ModalEditClubEvent).Open()
}

// UpdateClubEvent submits the edit club/event form.
func (d *Dashboard) UpdateClubEvent(ctx context.Context) ui.Outcome {
	f := &d.Forms.EditClub
	return d.Submit.Submit(ctx, ui.Action{
		Name:     "update_club_event",
		Form:     f,
		Controls: []string{ControlSubmit},
		Send: func(ctx context.Context) (client.Result, error) {
			return d.api.UpdateClubEvent(ctx, f.ID, f.Payload())
		},
		Fallback: "An error occurred while updating club/event.",
		Modal:    d.modal(ModalEditClubEvent),
		Refresh:  d.LoadClubsEvents,
	})
}

// DeleteClubEvent removes a club/event after confirmation.
func (d *Dashboard) DeleteClubEvent(ctx context.Context, id int64) ui.Outcome {
	return d.Submit.Submit(ctx, ui.Action{
		Name:     "delete_club_event",
		Confirm:  "Are you sure you want to delete this club/event?",
		Controls: []string{ControlSubmit},
		Send:     func(ctx context.Context) (client.Result, error) { return d.api.DeleteClubEvent(ctx, id) },
		Fallback: "An error occurred while deleting club/event.",
		Refresh:  d.LoadClubsEvents,
	})
}

// EditUser fetches a user into the edit form and opens it.
func (d *Dashboard) EditUser(ctx context.Context, id int64) error {
	res, err := d.api.GetUser(ctx, id)
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		d.log.Debug("error loading user", zap.Int64("id", id), zap.Error(err))
		d.Notify.Show("Error loading user data", ui.KindError)
		return err
	}
	d.Forms.EditUser.Populate(client.UserFrom(res.Get("user")))
	d.modal(ModalEditUser).Open()
	return nil
}

// UpdateUser submits the edit-user form.
func (d *Dashboard) UpdateUser(ctx context.Context) ui.Outcome {
	f := &d.Forms.EditUser
	return d.Submit.Submit(ctx, ui.Action{
		Name:     "update_user",
		Form:     f,
		Controls: []string{ControlSubmit},
		Send: func(ctx context.Context) (client.Result, error) {
			return d.api.UpdateUser(ctx, f.ID, f.Payload())
		},
		Fallback: "An error occurred while updating user.",
		Modal:    d.modal(ModalEditUser),
		ReloadIn: d.cfg.ShortReload,
	})
}

// DeleteUser removes a student or faculty member after confirmation.
func (d *Dashboard) DeleteUser(ctx context.Context, id int64, role string) ui.Outcome {
	return d.Submit.Submit(ctx, ui.Action{
		Name:     "delete_user",
		Confirm:  fmt.Sprintf("Are you sure you want to delete this %s?", role),
		Controls: []string{ControlSubmit},
		Send:     func(ctx context.Context) (client.Result, error) { return d.api.DeleteUser(ctx, id) },
		Success:  ui.Fixed(titleCase(role) + " deleted successfully"),
		Fallback: "An error occurred while deleting user.",
		ReloadIn: d.cfg.ShortReload,
	})
}

// ApplyPermission submits the student's permission request.
func (d *Dashboard) ApplyPermission(ctx context.Context) ui.Outcome {
	f := &d.Forms.Permission
	return d.Submit.Submit(ctx, ui.Action{
		Name:      "add_permission",
		Form:      f,
		Controls:  []string{ControlSubmit},
		Send:      func(ctx context.Context) (client.Result, error) { return d.api.AddPermission(ctx, f.Payload()) },
		Success:   ui.Fixed("Permission request submitted successfully!"),
		Fallback:  "An error occurred while submitting permission request.",
		Modal:     d.modal(ModalApplyPermission),
		ResetForm: true,
		ReloadIn:  d.cfg.ShortReload,
	})
}

// UpdatePermissionStatus approves or rejects a request.
func (d *Dashboard) UpdatePermissionStatus(ctx context.Context, id int64, status string) ui.Outcome {
	return d.Submit.Submit(ctx, ui.Action{
		Name:     "update_permission_status",
		Controls: []string{ControlSubmit},
		Send: func(ctx context.Context) (client.Result, error) {
			return d.api.UpdatePermissionStatus(ctx, id, status)
		},
		Success:  ui.Fixed(fmt.Sprintf("Permission %s successfully!", status)),
		Fallback: "An error occurred while updating permission status.",
		ReloadIn: d.cfg.ShortReload,
	})
}

var errEmptySheet = errors.New("Please mark attendance for at least one student")

// MarkAttendance saves the attendance sheet. Only the save control is
// guarded and the page is not reloaded.
func (d *Dashboard) MarkAttendance(ctx context.Context) ui.Outcome {
	sheet := &d.Forms.Attendance
	return d.Submit.Submit(ctx, ui.Action{
		Name: "mark_attendance",
		Check: func() error {
			if sheet.Len() == 0 {
				return errEmptySheet
			}
			return nil
		},
		Controls: []string{ControlSaveAttendance},
		Send: func(ctx context.Context) (client.Result, error) {
			return d.api.MarkAttendance(ctx, sheet.Payload())
		},
		Success:  ui.Fixed("Attendance saved successfully!"),
		Fallback: "An error occurred while saving attendance.",
	})
}

// ChangePassword submits the change-password form.
func (d *Dashboard) ChangePassword(ctx context.Context) ui.Outcome {
	f := &d.Forms.Password
	return d.Submit.Submit(ctx, ui.Action{
		Name:      "change_password",
		Form:      f,
		Controls:  []string{ControlSubmit},
		Send:      func(ctx context.Context) (client.Result, error) { return d.api.ChangePassword(ctx, f.Payload()) },
		Fallback:  "An error occurred while changing password.",
		Modal:     d.modal(ModalChangePassword),
		ResetForm: true,
	})
}
