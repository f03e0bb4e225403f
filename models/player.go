package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

type Role string

const (
	RolePlayer          Role = "player"
	RoleOrganizer       Role = "organizer"
	RoleOrganizerPlayer Role = "organizer_player"
)

func (r Role) Valid() bool {
	switch r {
	case RolePlayer, RoleOrganizer, RoleOrganizerPlayer:
		return true
	}
	return false
}

// CanOrganize reports whether the role may manage tournaments.
func (r Role) CanOrganize() bool {
	return r == RoleOrganizer || r == RoleOrganizerPlayer
}

// CanPlay reports whether the role may register for tournaments.
func (r Role) CanPlay() bool {
	return r == RolePlayer || r == RoleOrganizerPlayer
}

type Gender string

const (
	GenderMasculine Gender = "masculine"
	GenderFeminine  Gender = "feminine"
)

// Genders lists genders in review order.
var Genders = []Gender{GenderMasculine, GenderFeminine}

func (g Gender) Valid() bool {
	return g == GenderMasculine || g == GenderFeminine
}

type Player struct {
	ID             string    `json:"id"`
	IdentityID     *string   `json:"-"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          *string   `json:"phone,omitempty"`
	Gender         *Gender   `json:"gender,omitempty"`
	Category       *Category `json:"category,omitempty"`
	Role           Role      `json:"role"`
	ProfilePicture *string   `json:"profile_picture,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Claimed reports whether the record is bound to an authenticated identity.
// Partners registered by email stay unclaimed until their owner signs in.
func (p *Player) Claimed() bool {
	return p.IdentityID != nil && *p.IdentityID != ""
}

func NewID() string {
	return uuid.NewString()
}

var emailFolder = cases.Fold()

// NormalizeEmail returns the form used for email comparison and storage.
func NormalizeEmail(email string) string {
	return emailFolder.String(norm.NFC.String(strings.TrimSpace(email)))
}
