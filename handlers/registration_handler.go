package handlers

import (
	"net/http"

	"github.com/gespadel/gespadel/services"
)

type RegistrationHandler struct {
	actorResolver
	registrationService *services.RegistrationService
}

func NewRegistrationHandler(is *services.IdentityService, rs *services.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{
		actorResolver:       actorResolver{identity: is},
		registrationService: rs,
	}
}

// RegisterHandler handles POST /tournaments/{tournamentID}/registrations
func (h *RegistrationHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	registrant, err := h.actor(r)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	var selection services.Selection
	if err := readJSON(w, r, &selection); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	normalizeCategory(&selection.Category)

	registration, err := h.registrationService.Register(r.Context(), tournamentID, registrant, selection)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"registration": registration}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ReviewHandler handles GET /tournaments/{tournamentID}/registrations and
// returns active registrations grouped by gender and category.
func (h *RegistrationHandler) ReviewHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	organizer, err := h.actor(r)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	groups, err := h.registrationService.GroupForReview(r.Context(), tournamentID, organizer)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"groups": groups}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CancelHandler handles POST /registrations/{registrationID}/cancel
func (h *RegistrationHandler) CancelHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "registrationID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, err := h.actor(r)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	registration, err := h.registrationService.Cancel(r.Context(), id, actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"registration": registration}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
