package services

import (
	"context"

	"github.com/gespadel/gespadel/mirror"
	"github.com/gespadel/gespadel/models"
)

type DashboardService interface {
	PlayerDashboard(ctx context.Context, actor *models.Player) (models.PlayerDashboard, error)
	OrganizerDashboard(ctx context.Context, actor *models.Player) (models.OrganizerDashboard, error)
}

type dashboardService struct {
	mirror *mirror.Mirror
}

// NewDashboardService serves dashboards from the mirror instead of the store.
func NewDashboardService(m *mirror.Mirror) DashboardService {
	return &dashboardService{mirror: m}
}

func (s *dashboardService) PlayerDashboard(ctx context.Context, actor *models.Player) (models.PlayerDashboard, error) {
	if actor == nil || !actor.Role.CanPlay() {
		return models.PlayerDashboard{}, ErrAuthorization
	}
	return s.mirror.PlayerDashboard(actor.ID), nil
}

func (s *dashboardService) OrganizerDashboard(ctx context.Context, actor *models.Player) (models.OrganizerDashboard, error) {
	if err := requireOrganizer(actor); err != nil {
		return models.OrganizerDashboard{}, err
	}
	return s.mirror.OrganizerDashboard(), nil
}
