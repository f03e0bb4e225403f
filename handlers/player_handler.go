package handlers

import (
	"net/http"
	"time"

	"github.com/gespadel/gespadel/middleware"
	"github.com/gespadel/gespadel/models"
	"github.com/gespadel/gespadel/services"
)

// viewCookie remembers the last dashboard an organizer_player picked.
const viewCookie = "gespadel_view"

type PlayerHandler struct {
	actorResolver
	identityService     *services.IdentityService
	playerService       *services.PlayerService
	registrationService *services.RegistrationService
}

func NewPlayerHandler(is *services.IdentityService, ps *services.PlayerService, rs *services.RegistrationService) *PlayerHandler {
	return &PlayerHandler{
		actorResolver:       actorResolver{identity: is},
		identityService:     is,
		playerService:       ps,
		registrationService: rs,
	}
}

// SessionHandler handles POST /session?as=organizer|player. It is the first
// call after sign-in and the only one that honours the organizer hint.
func (h *PlayerHandler) SessionHandler(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.GetIdentityFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, errUnauthenticated.Error())
		return
	}

	intended := models.RolePlayer
	if r.URL.Query().Get("as") == string(models.RoleOrganizer) {
		intended = models.RoleOrganizer
	}

	player, err := h.identityService.ResolveOrCreatePlayer(r.Context(), identity, intended)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	view := services.ResolveView(player, nil, lastView(r))
	if err := writeJSON(w, http.StatusOK, jsonResponse{"player": player, "view": view}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PlayerHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	player, err := h.actor(r)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"player": player}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PlayerHandler) UpdateMeHandler(w http.ResponseWriter, r *http.Request) {
	player, err := h.actor(r)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	var input services.ProfileInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	normalizeCategory(input.Category)

	updated, err := h.playerService.UpdateProfile(r.Context(), player, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"player": updated}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PlayerHandler) UploadPictureHandler(w http.ResponseWriter, r *http.Request) {
	player, err := h.actor(r)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	file, contentType, err := readUpload(w, r, "picture")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	defer file.Close()

	updated, err := h.playerService.UpdateProfilePicture(r.Context(), player, contentType, file)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"player": updated}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ViewHandler handles GET /me/view?view=player|organizer. A valid explicit
// choice by an organizer_player is remembered in a cookie.
func (h *PlayerHandler) ViewHandler(w http.ResponseWriter, r *http.Request) {
	player, err := h.actor(r)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	var explicit *models.View
	if raw := r.URL.Query().Get("view"); raw != "" {
		v := models.View(raw)
		if !v.Valid() {
			errorResponse(w, r, http.StatusUnprocessableEntity, string(services.KindValidation), "unknown view "+raw)
			return
		}
		explicit = &v
	}

	view := services.ResolveView(player, explicit, lastView(r))
	if explicit != nil && player.Role == models.RoleOrganizerPlayer {
		http.SetCookie(w, &http.Cookie{
			Name:     viewCookie,
			Value:    string(view),
			Path:     "/",
			MaxAge:   int((365 * 24 * time.Hour).Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"view": view}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PlayerHandler) MyRegistrationsHandler(w http.ResponseWriter, r *http.Request) {
	player, err := h.actor(r)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	regs, err := h.registrationService.ListActiveForPlayer(r.Context(), player.ID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"registrations": regs}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PlayerHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	viewer, err := h.actor(r)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	player, err := h.playerService.GetPlayer(r.Context(), id, viewer)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"player": player}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func lastView(r *http.Request) *models.View {
	c, err := r.Cookie(viewCookie)
	if err != nil {
		return nil
	}
	v := models.View(c.Value)
	return &v
}
