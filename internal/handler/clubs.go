package handler

import (
	"github.com/gin-gonic/gin"

	"collegeportal/internal/portal"
)

type clubEventRequest struct {
	Name string `json:"name" validate:"required"`
	Type string `json:"type" validate:"required,oneof=club event"`
}

// listClubsEvents is public: the student permission form needs it before
// any admin action.
func (h *Handler) listClubsEvents(c *gin.Context) {
	const action = "get_clubs_events"
	items, err := h.svc.ClubsEvents(c.Request.Context())
	if err != nil {
		h.fail(c, action, err, "Error loading clubs and events")
		return
	}
	h.ok(c, action, "", gin.H{"items": items})
}

func (h *Handler) addClubEvent(c *gin.Context) {
	const action = "add_club_event"
	var req clubEventRequest
	if !h.bindJSON(c, action, &req) {
		return
	}
	id, err := h.svc.AddClubEvent(c.Request.Context(), req.Name, req.Type)
	if err != nil {
		h.fail(c, action, err, "Error adding "+req.Type)
		return
	}
	h.ok(c, action, portal.KindTitle(req.Type)+" added successfully", gin.H{"id": id})
}

func (h *Handler) updateClubEvent(c *gin.Context) {
	const action = "update_club_event"
	id, ok := h.pathID(c, action)
	if !ok {
		return
	}
	var req clubEventRequest
	if !h.bindJSON(c, action, &req) {
		return
	}
	if err := h.svc.UpdateClubEvent(c.Request.Context(), id, req.Name, req.Type); err != nil {
		h.fail(c, action, err, "Error updating "+req.Type)
		return
	}
	h.ok(c, action, "Updated successfully", nil)
}

func (h *Handler) deleteClubEvent(c *gin.Context) {
	const action = "delete_club_event"
	id, ok := h.pathID(c, action)
	if !ok {
		return
	}
	if err := h.svc.DeleteClubEvent(c.Request.Context(), id); err != nil {
		h.fail(c, action, err, "Error deleting club/event")
		return
	}
	h.ok(c, action, "Deleted successfully", nil)
}
