package repository

import (
	"context"
	"time"

	"github.com/arthurwhennig/asterix/internal/models"
)

type Filter struct {
	Limit  int
	Offset int
	Since  *time.Time
	Status *models.SessionStatus
}

type SessionRepository interface {
	SaveSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	SessionExists(ctx context.Context, id string) (bool, error)
	ListSessions(ctx context.Context, opts Filter) ([]models.Session, error)
}

type ReportRepository interface {
	SaveReport(ctx context.Context, sessionID string, r *models.ConsequenceReport) error
	GetReport(ctx context.Context, sessionID string) (*models.ConsequenceReport, error)
}
