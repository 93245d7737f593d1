package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"smartschedule/core/crypto"
	"smartschedule/core/database"
	"smartschedule/modules/calendar/entity"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type ConnectionRepository interface {
	Create(ctx context.Context, conn *entity.Connection) (*entity.Connection, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Connection, error)
	GetByUserAndProvider(ctx context.Context, userID uuid.UUID, provider string) (*entity.Connection, error)
	ListByUser(ctx context.Context, userID uuid.UUID, provider string) ([]entity.Connection, error)
	ListSyncableIDs(ctx context.Context) ([]uuid.UUID, error)
	Update(ctx context.Context, conn *entity.Connection) error
	UpdateTokens(ctx context.Context, id uuid.UUID, accessToken, refreshToken string, expiresAt time.Time) error
	UpdateSyncStatus(ctx context.Context, id uuid.UUID, status entity.SyncStatus, syncError *string) error
	MarkSynced(ctx context.Context, id uuid.UUID, syncedAt time.Time, settings entity.ConnectionSettings) error
	Delete(ctx context.Context, userID, id uuid.UUID) (bool, error)
}

const connectionColumns = `id, user_id, provider, provider_email, provider_account_id, access_token, refresh_token,
	token_expires_at, sync_status, last_synced_at, sync_error, settings, created_at, updated_at`

type connectionRepository struct {
	db     database.IDatabase
	cipher crypto.TokenCipher
}

func NewConnectionRepository(db database.IDatabase, cipher crypto.TokenCipher) ConnectionRepository {
	return &connectionRepository{db: db, cipher: cipher}
}

func (r *connectionRepository) seal(access, refresh string) (string, string, error) {
	sealedAccess, err := r.cipher.Seal(access)
	if err != nil {
		return "", "", fmt.Errorf("seal access token: %w", err)
	}
	sealedRefresh, err := r.cipher.Seal(refresh)
	if err != nil {
		return "", "", fmt.Errorf("seal refresh token: %w", err)
	}
	return sealedAccess, sealedRefresh, nil
}

func (r *connectionRepository) open(conn *entity.Connection) error {
	var err error
	if conn.AccessToken, err = r.cipher.Open(conn.AccessToken); err != nil {
		return fmt.Errorf("open access token: %w", err)
	}
	if conn.RefreshToken, err = r.cipher.Open(conn.RefreshToken); err != nil {
		return fmt.Errorf("open refresh token: %w", err)
	}
	return nil
}

func (r *connectionRepository) Create(ctx context.Context, conn *entity.Connection) (*entity.Connection, error) {
	access, refresh, err := r.seal(conn.AccessToken, conn.RefreshToken)
	if err != nil {
		return nil, err
	}
	if conn.SyncStatus == "" {
		conn.SyncStatus = entity.SyncStatusPending
	}

	query := `
		INSERT INTO calendar_connections (user_id, provider, provider_email, provider_account_id, access_token,
			refresh_token, token_expires_at, sync_status, settings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	err = r.db.QueryRowContext(ctx, query,
		conn.UserID, conn.Provider, conn.ProviderEmail, conn.ProviderAccountID, access,
		refresh, conn.TokenExpiresAt, conn.SyncStatus, conn.Settings,
	).Scan(&conn.ID, &conn.CreatedAt, &conn.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (r *connectionRepository) getOne(ctx context.Context, query string, args ...any) (*entity.Connection, error) {
	var conn entity.Connection
	if err := r.db.GetContext(ctx, &conn, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := r.open(&conn); err != nil {
		return nil, err
	}
	return &conn, nil
}

// GetByID returns nil, nil when the connection does not exist.
func (r *connectionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Connection, error) {
	return r.getOne(ctx, `SELECT `+connectionColumns+` FROM calendar_connections WHERE id = $1`, id)
}

func (r *connectionRepository) GetByUserAndProvider(ctx context.Context, userID uuid.UUID, provider string) (*entity.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM calendar_connections
		WHERE user_id = $1 AND provider = $2
		ORDER BY created_at DESC
		LIMIT 1`
	return r.getOne(ctx, query, userID, provider)
}

// ListByUser lists a user's connections, optionally restricted to one provider.
func (r *connectionRepository) ListByUser(ctx context.Context, userID uuid.UUID, provider string) ([]entity.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM calendar_connections
		WHERE user_id = $1 AND ($2 = '' OR provider = $2)
		ORDER BY created_at ASC`

	var connections []entity.Connection
	if err := r.db.SelectContext(ctx, &connections, query, userID, provider); err != nil {
		return nil, err
	}
	for i := range connections {
		if err := r.open(&connections[i]); err != nil {
			return nil, err
		}
	}
	return connections, nil
}

func (r *connectionRepository) ListSyncableIDs(ctx context.Context) ([]uuid.UUID, error) {
	query := `SELECT id FROM calendar_connections WHERE refresh_token <> '' ORDER BY id`
	var ids []uuid.UUID
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *connectionRepository) Update(ctx context.Context, conn *entity.Connection) error {
	access, refresh, err := r.seal(conn.AccessToken, conn.RefreshToken)
	if err != nil {
		return err
	}
	query := `
		UPDATE calendar_connections
		SET provider_email = $1, provider_account_id = $2, access_token = $3, refresh_token = $4,
			token_expires_at = $5, sync_status = $6, sync_error = $7, settings = $8, updated_at = NOW()
		WHERE id = $9
	`
	return r.db.ExecContext(ctx, query,
		conn.ProviderEmail, conn.ProviderAccountID, access, refresh,
		conn.TokenExpiresAt, conn.SyncStatus, conn.SyncError, conn.Settings, conn.ID,
	)
}

// UpdateTokens stores refreshed credentials and clears any recorded sync error.
func (r *connectionRepository) UpdateTokens(ctx context.Context, id uuid.UUID, accessToken, refreshToken string, expiresAt time.Time) error {
	access, refresh, err := r.seal(accessToken, refreshToken)
	if err != nil {
		return err
	}
	query := `
		UPDATE calendar_connections
		SET access_token = $1, refresh_token = $2, token_expires_at = $3, sync_error = NULL, updated_at = NOW()
		WHERE id = $4
	`
	return r.db.ExecContext(ctx, query, access, refresh, expiresAt, id)
}

func (r *connectionRepository) UpdateSyncStatus(ctx context.Context, id uuid.UUID, status entity.SyncStatus, syncError *string) error {
	query := `
		UPDATE calendar_connections
		SET sync_status = $1, sync_error = $2, updated_at = NOW()
		WHERE id = $3
	`
	return r.db.ExecContext(ctx, query, status, syncError, id)
}

func (r *connectionRepository) MarkSynced(ctx context.Context, id uuid.UUID, syncedAt time.Time, settings entity.ConnectionSettings) error {
	query := `
		UPDATE calendar_connections
		SET sync_status = $1, last_synced_at = $2, sync_error = NULL, settings = $3, updated_at = NOW()
		WHERE id = $4
	`
	return r.db.ExecContext(ctx, query, entity.SyncStatusSynced, syncedAt, settings, id)
}

// Delete removes a user's connection together with its mirrored events.
func (r *connectionRepository) Delete(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	var deleted bool
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM calendar_events WHERE connection_id = $1
				AND EXISTS (SELECT 1 FROM calendar_connections WHERE id = $1 AND user_id = $2)`,
			id, userID,
		); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM calendar_connections WHERE id = $1 AND user_id = $2`, id, userID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		deleted = n > 0
		return nil
	})
	return deleted, err
}
