package service

import (
	"context"
	"time"

	"smartschedule/core/errors"
	"smartschedule/core/logger"
	"smartschedule/modules/calendar/dto"
	"smartschedule/modules/calendar/entity"
	"smartschedule/modules/calendar/repository"

	"github.com/google/uuid"
)

type ConnectionService interface {
	List(ctx context.Context, userID uuid.UUID) (*dto.CalendarConnectionListResponse, error)
	Disconnect(ctx context.Context, userID, connectionID uuid.UUID) error
}

type connectionService struct {
	connections repository.ConnectionRepository
}

func NewConnectionService(connections repository.ConnectionRepository) ConnectionService {
	return &connectionService{connections: connections}
}

func (s *connectionService) List(ctx context.Context, userID uuid.UUID) (*dto.CalendarConnectionListResponse, error) {
	conns, err := s.connections.ListByUser(ctx, userID, "")
	if err != nil {
		logger.Error("ConnectionService:List:Error", "user_id", userID, "error", err)
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to load calendar connections", err)
	}

	resp := &dto.CalendarConnectionListResponse{Connections: make([]dto.CalendarConnectionResponse, 0, len(conns))}
	for i := range conns {
		resp.Connections = append(resp.Connections, connectionResponse(&conns[i]))
	}
	return resp, nil
}

// Disconnect removes the connection and its mirrored events. Stored tokens are discarded, not revoked.
func (s *connectionService) Disconnect(ctx context.Context, userID, connectionID uuid.UUID) error {
	deleted, err := s.connections.Delete(ctx, userID, connectionID)
	if err != nil {
		logger.Error("ConnectionService:Disconnect:Error", "connection_id", connectionID, "error", err)
		return errors.NewAppError(errors.ErrInternalServer, "failed to disconnect calendar", err)
	}
	if !deleted {
		return errors.NewAppError(errors.ErrNotFound, "calendar connection not found", nil)
	}
	logger.Info("ConnectionService:Disconnect:Success", "connection_id", connectionID, "user_id", userID)
	return nil
}

func connectionResponse(c *entity.Connection) dto.CalendarConnectionResponse {
	return dto.CalendarConnectionResponse{
		ID:            c.ID.String(),
		Provider:      c.Provider,
		ProviderEmail: c.ProviderEmail,
		SyncStatus:    string(c.SyncStatus),
		SyncError:     c.SyncError,
		LastSyncedAt:  c.LastSyncedAt,
		Timezone:      c.Settings.Timezone,
		CalendarIDs:   c.SubscribedCalendars(),
		ConnectedAt:   c.CreatedAt.Format(time.RFC3339),
	}
}
