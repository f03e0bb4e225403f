package models

import (
	"net/url"
	"strings"
)

const calendarBaseURL = "https://calendar.google.com/calendar/render"

// CalendarURL builds an "add to calendar" link for the tournament days.
// The end date is exclusive, so the last day is included.
func CalendarURL(t *Tournament) string {
	start := dateOnly(t.StartDate)
	end := dateOnly(t.EndDate)
	if end.Before(start) {
		end = start
	}
	end = end.AddDate(0, 0, 1)

	var details strings.Builder
	details.WriteString(t.Description)
	if t.ClubName != "" {
		details.WriteString("\n\nClub: " + t.ClubName)
	}
	if t.ContactPhone != "" {
		details.WriteString("\nTel: " + t.ContactPhone)
	}
	if t.ContactEmail != "" {
		details.WriteString("\nEmail: " + t.ContactEmail)
	}

	q := url.Values{}
	q.Set("action", "TEMPLATE")
	q.Set("text", "Torneo: "+t.Name)
	q.Set("dates", start.Format("20060102")+"/"+end.Format("20060102"))
	q.Set("details", strings.TrimSpace(details.String()))
	q.Set("location", t.ClubName)
	return calendarBaseURL + "?" + q.Encode()
}
