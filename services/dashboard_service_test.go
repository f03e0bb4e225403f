package services

import (
	"testing"

	"github.com/gespadel/gespadel/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardsFollowTheFeed(t *testing.T) {
	f := newFixture(t)
	one := f.createTournament(t, "One", masculine(models.Category1))
	two := f.createTournament(t, "Two", masculine(models.Category1))

	s := sel(models.GenderMasculine, models.Category1)
	s.Partner = &PartnerInput{Email: f.bruno.Email}
	reg, err := f.registrations.Register(f.ctx, one.ID, f.ana, s)
	require.NoError(t, err)

	dash, err := f.dashboards.PlayerDashboard(f.ctx, f.bruno)
	require.NoError(t, err)
	require.Len(t, dash.Registered, 1)
	assert.Equal(t, one.ID, dash.Registered[0].Tournament.ID)
	assert.Equal(t, reg.ID, dash.Registered[0].Registration.ID)
	require.Len(t, dash.Available, 1)
	assert.Equal(t, two.ID, dash.Available[0].ID)

	org, err := f.dashboards.OrganizerDashboard(f.ctx, f.organizer)
	require.NoError(t, err)
	require.Len(t, org.Tournaments, 2)
	counts := map[string]int{}
	for _, sum := range org.Tournaments {
		counts[sum.Tournament.ID] = sum.ActiveRegistrations
	}
	assert.Equal(t, map[string]int{one.ID: 1, two.ID: 0}, counts)

	_, err = f.tournaments.TransitionStatus(f.ctx, two.ID, models.StatusClosed, f.organizer)
	require.NoError(t, err)
	_, err = f.registrations.Cancel(f.ctx, reg.ID, f.ana)
	require.NoError(t, err)

	dash, err = f.dashboards.PlayerDashboard(f.ctx, f.bruno)
	require.NoError(t, err)
	assert.Empty(t, dash.Registered)
	require.Len(t, dash.Available, 1)
	assert.Equal(t, one.ID, dash.Available[0].ID)

	require.NoError(t, f.tournaments.DeleteTournament(f.ctx, one.ID, f.organizer))
	org, err = f.dashboards.OrganizerDashboard(f.ctx, f.organizer)
	require.NoError(t, err)
	require.Len(t, org.Tournaments, 1)
	assert.Equal(t, two.ID, org.Tournaments[0].Tournament.ID)
}

func TestDashboardRoles(t *testing.T) {
	f := newFixture(t)

	_, err := f.dashboards.OrganizerDashboard(f.ctx, f.ana)
	assert.ErrorIs(t, err, ErrAuthorization)

	_, err = f.dashboards.PlayerDashboard(f.ctx, f.organizer)
	assert.ErrorIs(t, err, ErrAuthorization)

	_, err = f.dashboards.PlayerDashboard(f.ctx, nil)
	assert.ErrorIs(t, err, ErrAuthorization)
}
