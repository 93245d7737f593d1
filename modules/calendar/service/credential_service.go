package service

import (
	"context"
	"time"

	"smartschedule/core/config"
	"smartschedule/core/logger"
	"smartschedule/modules/calendar/entity"
	"smartschedule/modules/calendar/repository"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	DefaultTokenRefreshBuffer = 5 * time.Minute
	defaultTokenLifetime      = 3600 * time.Second
)

var GoogleCalendarScopes = []string{
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/calendar.readonly",
	"https://www.googleapis.com/auth/calendar.events",
}

// NewGoogleOAuthConfig builds the OAuth client used for handshakes and refreshes.
func NewGoogleOAuthConfig(cfg config.GoogleAPIConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       GoogleCalendarScopes,
		Endpoint:     google.Endpoint,
	}
}

// TokenRefresher trades a refresh token for a fresh access token.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

type oauthRefresher struct {
	cfg *oauth2.Config
}

func NewOAuthRefresher(cfg *oauth2.Config) TokenRefresher {
	return &oauthRefresher{cfg: cfg}
}

func (r *oauthRefresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	return r.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
}

type CredentialService interface {
	// GetValidAccessToken returns a usable access token for conn, refreshing and
	// persisting it when it expires within the buffer. conn is updated in place.
	GetValidAccessToken(ctx context.Context, conn *entity.Connection) (string, error)
}

type credentialService struct {
	repo      repository.ConnectionRepository
	refresher TokenRefresher
	buffer    time.Duration
	now       func() time.Time
}

func NewCredentialService(repo repository.ConnectionRepository, refresher TokenRefresher, buffer time.Duration, now func() time.Time) CredentialService {
	if buffer <= 0 {
		buffer = DefaultTokenRefreshBuffer
	}
	if now == nil {
		now = time.Now
	}
	return &credentialService{repo: repo, refresher: refresher, buffer: buffer, now: now}
}

func (s *credentialService) GetValidAccessToken(ctx context.Context, conn *entity.Connection) (string, error) {
	if conn.TokenValidAt(s.now(), s.buffer) {
		return conn.AccessToken, nil
	}

	if conn.RefreshToken == "" {
		return "", s.fail(ctx, conn, "no refresh token stored, reconnect the calendar", nil)
	}

	logger.Info("CredentialService:GetValidAccessToken:Refreshing", "connection_id", conn.ID, "user_id", conn.UserID)

	token, err := s.refresher.Refresh(ctx, conn.RefreshToken)
	if err != nil {
		return "", s.fail(ctx, conn, "token refresh rejected", err)
	}
	if token.AccessToken == "" {
		return "", s.fail(ctx, conn, "token refresh returned no access token", nil)
	}

	expiresAt := token.Expiry
	if expiresAt.IsZero() {
		expiresAt = s.now().Add(defaultTokenLifetime)
	}
	refreshToken := conn.RefreshToken
	if token.RefreshToken != "" {
		refreshToken = token.RefreshToken
	}

	if err := s.repo.UpdateTokens(ctx, conn.ID, token.AccessToken, refreshToken, expiresAt); err != nil {
		logger.Error("CredentialService:GetValidAccessToken:PersistError", "connection_id", conn.ID, "error", err)
		return "", err
	}

	conn.AccessToken = token.AccessToken
	conn.RefreshToken = refreshToken
	conn.TokenExpiresAt = expiresAt
	conn.SyncError = nil

	logger.Info("CredentialService:GetValidAccessToken:Refreshed", "connection_id", conn.ID, "expires_at", expiresAt)
	return conn.AccessToken, nil
}

func (s *credentialService) fail(ctx context.Context, conn *entity.Connection, reason string, cause error) error {
	authErr := &AuthError{ConnectionID: conn.ID, Reason: reason, Err: cause}
	msg := authErr.Error()

	logger.Error("CredentialService:GetValidAccessToken:Failed", "connection_id", conn.ID, "reason", reason, "error", cause)

	if err := s.repo.UpdateSyncStatus(ctx, conn.ID, entity.SyncStatusError, &msg); err != nil {
		logger.Error("CredentialService:GetValidAccessToken:MarkError", "connection_id", conn.ID, "error", err)
	}
	conn.SyncStatus = entity.SyncStatusError
	conn.SyncError = &msg
	return authErr
}
