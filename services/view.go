package services

import "github.com/gespadel/gespadel/models"

// ResolveView picks the dashboard for the player. Only organizer_player can
// choose; an explicit choice wins over the remembered one. A nil player is
// treated as a plain player.
func ResolveView(player *models.Player, explicit, lastChosen *models.View) models.View {
	if player == nil {
		return models.ViewPlayer
	}
	switch player.Role {
	case models.RoleOrganizer:
		return models.ViewOrganizer
	case models.RolePlayer:
		return models.ViewPlayer
	case models.RoleOrganizerPlayer:
		if explicit != nil && explicit.Valid() {
			return *explicit
		}
		if lastChosen != nil && lastChosen.Valid() {
			return *lastChosen
		}
		return models.ViewPlayer
	default:
		return models.ViewPlayer
	}
}
