package handlers

import (
	"net/http"

	"github.com/gespadel/gespadel/services"
)

type DashboardHandler struct {
	actorResolver
	dashboardService services.DashboardService
}

func NewDashboardHandler(is *services.IdentityService, ds services.DashboardService) *DashboardHandler {
	return &DashboardHandler{actorResolver: actorResolver{identity: is}, dashboardService: ds}
}

func (h *DashboardHandler) PlayerHandler(w http.ResponseWriter, r *http.Request) {
	player, err := h.actor(r)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	dash, err := h.dashboardService.PlayerDashboard(r.Context(), player)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, dash, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *DashboardHandler) OrganizerHandler(w http.ResponseWriter, r *http.Request) {
	organizer, err := h.actor(r)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	dash, err := h.dashboardService.OrganizerDashboard(r.Context(), organizer)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, dash, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
