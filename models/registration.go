package models

import (
	"fmt"
	"time"
)

type RegistrationStatus string

const (
	RegistrationActive    RegistrationStatus = "ACTIVE"
	RegistrationCancelled RegistrationStatus = "CANCELLED"
)

type PartnerKind string

const (
	PartnerReferenced   PartnerKind = "referenced"
	PartnerUnregistered PartnerKind = "unregistered"
)

// Partner is either a reference to a stored player or a free-text
// contact for someone who has no account.
type Partner struct {
	Kind     PartnerKind `json:"kind"`
	PlayerID string      `json:"player_id,omitempty"`
	Name     string      `json:"name,omitempty"`
	Phone    *string     `json:"phone,omitempty"`
}

func ReferencedPartner(playerID string) *Partner {
	return &Partner{Kind: PartnerReferenced, PlayerID: playerID}
}

func UnregisteredPartner(name string, phone *string) *Partner {
	return &Partner{Kind: PartnerUnregistered, Name: name, Phone: phone}
}

const DateLayout = "2006-01-02"

// TimeSlot is one hour on one day. Slots compare by value.
type TimeSlot struct {
	Date string `json:"date"`
	Hour int    `json:"hour"`
}

func (s TimeSlot) String() string {
	return fmt.Sprintf("%s %02d:00", s.Date, s.Hour)
}

// Validate checks the slot shape only, not its relation to a tournament.
func (s TimeSlot) Validate() error {
	if _, err := time.Parse(DateLayout, s.Date); err != nil {
		return fmt.Errorf("invalid slot date %q", s.Date)
	}
	if s.Hour < 0 || s.Hour > 23 {
		return fmt.Errorf("invalid slot hour %d", s.Hour)
	}
	return nil
}

type Registration struct {
	ID               string             `json:"id"`
	TournamentID     string             `json:"tournament_id"`
	Player1ID        string             `json:"player1_id"`
	Partner          *Partner           `json:"partner,omitempty"`
	Gender           Gender             `json:"gender"`
	Category         Category           `json:"category"`
	RegistrationDate time.Time          `json:"registration_date"`
	Status           RegistrationStatus `json:"status"`
	TimePreferences  []TimeSlot         `json:"time_preferences"`
	CancelledAt      *time.Time         `json:"cancelled_at,omitempty"`
	CancelledBy      *string            `json:"cancelled_by,omitempty"`
}

func (r *Registration) IsActive() bool {
	return r.Status == RegistrationActive
}

// Involves reports whether the player is the registrant or the referenced partner.
func (r *Registration) Involves(playerID string) bool {
	if r.Player1ID == playerID {
		return true
	}
	return r.Partner != nil && r.Partner.Kind == PartnerReferenced && r.Partner.PlayerID == playerID
}
