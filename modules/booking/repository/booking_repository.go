package repository

import (
	"context"
	"database/sql"
	"errors"

	"smartschedule/core/database"
	"smartschedule/core/logger"
	"smartschedule/modules/booking/entity"

	"github.com/google/uuid"
)

type BookingRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	UpdateMeeting(ctx context.Context, id uuid.UUID, status entity.BookingStatus, meetingLink, providerEventID *string) error
}

type bookingRepository struct {
	db database.IDatabase
}

func NewBookingRepository(db database.IDatabase) BookingRepository {
	return &bookingRepository{db: db}
}

func (r *bookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	query := `
		SELECT id, host_id, title, description, status, timezone, start_date, end_date,
		       meeting_link, provider_event_id, preferences, created_at, updated_at
		FROM bookings WHERE id = $1
	`

	var booking entity.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logger.Error("BookingRepository:GetByID", "booking_id", id, "error", err)
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) UpdateMeeting(ctx context.Context, id uuid.UUID, status entity.BookingStatus, meetingLink, providerEventID *string) error {
	query := `
		UPDATE bookings
		SET status = $2, meeting_link = COALESCE($3, meeting_link),
		    provider_event_id = COALESCE($4, provider_event_id), updated_at = NOW()
		WHERE id = $1
	`
	return r.db.ExecContext(ctx, query, id, status, meetingLink, providerEventID)
}
