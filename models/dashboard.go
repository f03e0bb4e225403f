package models

// View is the dashboard a player sees.
type View string

const (
	ViewPlayer    View = "player"
	ViewOrganizer View = "organizer"
)

func (v View) Valid() bool {
	return v == ViewPlayer || v == ViewOrganizer
}

type TournamentSummary struct {
	Tournament          Tournament `json:"tournament"`
	ActiveRegistrations int        `json:"active_registrations"`
}

type OrganizerDashboard struct {
	Tournaments []TournamentSummary `json:"tournaments"`
}

type PlayerTournament struct {
	Tournament   Tournament   `json:"tournament"`
	Registration Registration `json:"registration"`
}

type PlayerDashboard struct {
	Registered []PlayerTournament `json:"registered"`
	Available  []Tournament       `json:"available"`
}
