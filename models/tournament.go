package models

import (
	"time"
)

type TournamentStatus string

const (
	StatusOpen       TournamentStatus = "OPEN"
	StatusClosed     TournamentStatus = "CLOSED"
	StatusInProgress TournamentStatus = "IN_PROGRESS"
	StatusFinished   TournamentStatus = "FINISHED"
)

var allowedTransitions = map[TournamentStatus]TournamentStatus{
	StatusOpen:       StatusClosed,
	StatusClosed:     StatusInProgress,
	StatusInProgress: StatusFinished,
}

func (s TournamentStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusClosed, StatusInProgress, StatusFinished:
		return true
	}
	return false
}

// Next returns the only status reachable from s.
func (s TournamentStatus) Next() (TournamentStatus, bool) {
	next, ok := allowedTransitions[s]
	return next, ok
}

func (s TournamentStatus) CanTransitionTo(next TournamentStatus) bool {
	allowed, ok := allowedTransitions[s]
	return ok && allowed == next
}

func (s TournamentStatus) IsTerminal() bool {
	_, ok := allowedTransitions[s]
	return s.Valid() && !ok
}

// CategoryOffer lists the categories opened for each gender.
type CategoryOffer struct {
	Masculine []Category `json:"masculine"`
	Feminine  []Category `json:"feminine"`
}

func (o CategoryOffer) For(g Gender) []Category {
	switch g {
	case GenderMasculine:
		return o.Masculine
	case GenderFeminine:
		return o.Feminine
	}
	return nil
}

func (o CategoryOffer) Contains(g Gender, c Category) bool {
	for _, offered := range o.For(g) {
		if offered == c {
			return true
		}
	}
	return false
}

func (o CategoryOffer) Empty() bool {
	return len(o.Masculine) == 0 && len(o.Feminine) == 0
}

// Normalized drops duplicates and sorts each list by rank.
func (o CategoryOffer) Normalized() CategoryOffer {
	return CategoryOffer{
		Masculine: dedupeCategories(o.Masculine),
		Feminine:  dedupeCategories(o.Feminine),
	}
}

func dedupeCategories(in []Category) []Category {
	seen := make(map[Category]bool, len(in))
	out := make([]Category, 0, len(in))
	for _, c := range in {
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	SortCategories(out)
	return out
}

type Tournament struct {
	ID                   string           `json:"id"`
	Name                 string           `json:"name"`
	ClubName             string           `json:"club_name"`
	Description          string           `json:"description"`
	ContactPhone         string           `json:"contact_phone"`
	ContactEmail         string           `json:"contact_email"`
	InscriptionStartDate time.Time        `json:"inscription_start_date"`
	StartDate            time.Time        `json:"start_date"`
	EndDate              time.Time        `json:"end_date"`
	Categories           CategoryOffer    `json:"categories"`
	Price                float64          `json:"price"`
	PosterImage          *string          `json:"poster_image,omitempty"`
	RulesPdfURL          *string          `json:"rules_pdf_url,omitempty"`
	Status               TournamentStatus `json:"status"`
	OrganizerID          string           `json:"organizer_id"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// Offers reports whether the tournament opened the category for the gender.
func (t *Tournament) Offers(g Gender, c Category) bool {
	return t.Categories.Contains(g, c)
}

// Days lists the calendar days from StartDate through EndDate, inclusive.
func (t *Tournament) Days() []string {
	start := dateOnly(t.StartDate)
	end := dateOnly(t.EndDate)
	var days []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DateLayout))
	}
	return days
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
