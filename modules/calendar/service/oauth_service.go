package service

import (
	"context"
	stderrors "errors"
	"net"
	"net/url"
	"strings"
	"time"

	"smartschedule/core/errors"
	"smartschedule/core/logger"
	"smartschedule/modules/calendar/dto"
	"smartschedule/modules/calendar/entity"
	"smartschedule/modules/calendar/provider"
	"smartschedule/modules/calendar/repository"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

type HandshakeState string

const (
	HandshakeAwaitingCode HandshakeState = "awaiting_code"
	HandshakeExchanging   HandshakeState = "exchanging"
	HandshakeConnected    HandshakeState = "connected"
	HandshakeFailed       HandshakeState = "failed"
)

// HandshakeErrorCode is the fixed set of failure codes reported to the browser.
type HandshakeErrorCode string

const (
	HandshakeAccessDenied        HandshakeErrorCode = "access_denied"
	HandshakeInvalidScope        HandshakeErrorCode = "invalid_scope"
	HandshakeInvalidClient       HandshakeErrorCode = "invalid_client"
	HandshakeInvalidGrant        HandshakeErrorCode = "invalid_grant"
	HandshakeTokenExchangeFailed HandshakeErrorCode = "token_exchange_failed"
	HandshakeMissingParams       HandshakeErrorCode = "missing_params"
	HandshakeInvalidState        HandshakeErrorCode = "invalid_state"
	HandshakePopupBlocked        HandshakeErrorCode = "popup_blocked"
	HandshakeNetworkError        HandshakeErrorCode = "network_error"
)

type HandshakeOutcome struct {
	State        HandshakeState     `json:"state"`
	ErrorCode    HandshakeErrorCode `json:"error,omitempty"`
	ConnectionID uuid.UUID          `json:"connection_id,omitempty"`
	RedirectURL  string             `json:"redirect_url,omitempty"`
}

// SyncEnqueuer schedules the first sync of a newly connected calendar.
type SyncEnqueuer interface {
	EnqueueConnectionSync(ctx context.Context, connectionID uuid.UUID) error
}

type OAuthService interface {
	AuthorizationURL(ctx context.Context, userID uuid.UUID, redirectURL string) (*dto.OAuthURLResponse, error)
	HandleCallback(ctx context.Context, params dto.OAuthCallbackParams) *HandshakeOutcome
}

type oauthService struct {
	oauthCfg    *oauth2.Config
	states      *StateCodec
	connections repository.ConnectionRepository
	accounts    provider.AccountFetcher
	enqueuer    SyncEnqueuer
	allowedHost string
	now         func() time.Time
}

func NewOAuthService(
	oauthCfg *oauth2.Config,
	states *StateCodec,
	connections repository.ConnectionRepository,
	accounts provider.AccountFetcher,
	enqueuer SyncEnqueuer,
	allowedHost string,
	now func() time.Time,
) OAuthService {
	if now == nil {
		now = time.Now
	}
	return &oauthService{
		oauthCfg:    oauthCfg,
		states:      states,
		connections: connections,
		accounts:    accounts,
		enqueuer:    enqueuer,
		allowedHost: allowedHost,
		now:         now,
	}
}

func (s *oauthService) AuthorizationURL(ctx context.Context, userID uuid.UUID, redirectURL string) (*dto.OAuthURLResponse, error) {
	if redirectURL != "" {
		u, err := url.Parse(redirectURL)
		if err != nil || (u.IsAbs() && s.allowedHost != "" && !strings.EqualFold(u.Host, s.allowedHost)) {
			return nil, errors.NewAppError(errors.ErrInvalidInput, "redirect_url is not allowed", err)
		}
	}

	state, err := s.states.Encode(ctx, userID, redirectURL)
	if err != nil {
		logger.Error("OAuthService:AuthorizationURL:EncodeState", "user_id", userID, "error", err)
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to start calendar connection", err)
	}

	logger.Info("OAuthService:AuthorizationURL:Issued", "user_id", userID, "state", HandshakeAwaitingCode)
	return &dto.OAuthURLResponse{
		URL:   s.oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce),
		State: state,
	}, nil
}

func failed(code HandshakeErrorCode, redirectURL string) *HandshakeOutcome {
	return &HandshakeOutcome{State: HandshakeFailed, ErrorCode: code, RedirectURL: redirectURL}
}

func (s *oauthService) HandleCallback(ctx context.Context, params dto.OAuthCallbackParams) *HandshakeOutcome {
	if params.Error != "" {
		logger.Warn("OAuthService:HandleCallback:ProviderError", "error", params.Error)
		return failed(providerErrorCode(params.Error), "")
	}
	if params.Code == "" || params.State == "" {
		return failed(HandshakeMissingParams, "")
	}

	state, err := s.states.Decode(ctx, params.State)
	if err != nil {
		logger.Warn("OAuthService:HandleCallback:InvalidState", "error", err)
		return failed(HandshakeInvalidState, "")
	}

	logger.Info("OAuthService:HandleCallback:Exchanging", "user_id", state.UserID, "state", HandshakeExchanging)
	token, err := s.oauthCfg.Exchange(ctx, params.Code)
	if err != nil {
		code := exchangeErrorCode(err)
		logger.Error("OAuthService:HandleCallback:ExchangeError", "user_id", state.UserID, "code", code, "error", err)
		return failed(code, state.RedirectURL)
	}

	conn, err := s.saveConnection(ctx, state.UserID, token)
	if err != nil {
		logger.Error("OAuthService:HandleCallback:SaveConnection", "user_id", state.UserID, "error", err)
		return failed(HandshakeTokenExchangeFailed, state.RedirectURL)
	}

	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueConnectionSync(ctx, conn.ID); err != nil {
			logger.Warn("OAuthService:HandleCallback:EnqueueSync", "connection_id", conn.ID, "error", err)
		}
	}

	logger.Info("OAuthService:HandleCallback:Connected", "user_id", state.UserID, "connection_id", conn.ID, "state", HandshakeConnected)
	return &HandshakeOutcome{State: HandshakeConnected, ConnectionID: conn.ID, RedirectURL: state.RedirectURL}
}

// saveConnection updates the user's existing connection in place or creates one.
func (s *oauthService) saveConnection(ctx context.Context, userID uuid.UUID, token *oauth2.Token) (*entity.Connection, error) {
	var account provider.Account
	if s.accounts != nil {
		acct, err := s.accounts.FetchAccount(ctx, token.AccessToken)
		if err != nil {
			logger.Warn("OAuthService:SaveConnection:FetchAccount", "user_id", userID, "error", err)
		} else {
			account = *acct
		}
	}

	expiresAt := token.Expiry
	if expiresAt.IsZero() {
		expiresAt = s.now().Add(defaultTokenLifetime)
	}

	existing, err := s.connections.GetByUserAndProvider(ctx, userID, entity.ProviderGoogle)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		existing.AccessToken = token.AccessToken
		if token.RefreshToken != "" {
			existing.RefreshToken = token.RefreshToken
		}
		existing.TokenExpiresAt = expiresAt
		if account.Email != "" {
			existing.ProviderEmail = account.Email
		}
		if account.ID != "" {
			existing.ProviderAccountID = account.ID
		}
		existing.SyncStatus = entity.SyncStatusPending
		existing.SyncError = nil

		if err := s.connections.Update(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	return s.connections.Create(ctx, &entity.Connection{
		UserID:            userID,
		Provider:          entity.ProviderGoogle,
		ProviderEmail:     account.Email,
		ProviderAccountID: account.ID,
		AccessToken:       token.AccessToken,
		RefreshToken:      token.RefreshToken,
		TokenExpiresAt:    expiresAt,
		SyncStatus:        entity.SyncStatusPending,
	})
}

func providerErrorCode(providerErr string) HandshakeErrorCode {
	switch HandshakeErrorCode(providerErr) {
	case HandshakeInvalidScope, HandshakeInvalidClient, HandshakeInvalidGrant:
		return HandshakeErrorCode(providerErr)
	default:
		return HandshakeAccessDenied
	}
}

func exchangeErrorCode(err error) HandshakeErrorCode {
	var retrieveErr *oauth2.RetrieveError
	if stderrors.As(err, &retrieveErr) {
		switch HandshakeErrorCode(retrieveErr.ErrorCode) {
		case HandshakeInvalidGrant, HandshakeInvalidClient, HandshakeInvalidScope:
			return HandshakeErrorCode(retrieveErr.ErrorCode)
		}
		return HandshakeTokenExchangeFailed
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return HandshakeNetworkError
	}
	return HandshakeTokenExchangeFailed
}
