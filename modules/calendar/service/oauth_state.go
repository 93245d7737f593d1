package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"smartschedule/core/cache"
	"smartschedule/core/utils"

	"github.com/google/uuid"
)

const oauthStatePrefix = "calendar:oauth_state:"

var (
	ErrInvalidState = stderrors.New("invalid oauth state")
	ErrExpiredState = stderrors.New("expired oauth state")
	ErrReusedState  = stderrors.New("oauth state already used")
)

// OAuthState is carried through the provider's authorization redirect.
type OAuthState struct {
	UserID      uuid.UUID `json:"user_id"`
	RedirectURL string    `json:"redirect_url"`
	Nonce       string    `json:"nonce"`
	IssuedAt    int64     `json:"issued_at"`
	Sig         string    `json:"sig,omitempty"`
}

// StateCodec signs states with HMAC-SHA256 and allows each nonce to be redeemed once.
type StateCodec struct {
	secret []byte
	ttl    time.Duration
	nonces cache.Cache
	now    func() time.Time
}

func NewStateCodec(secret string, ttl time.Duration, nonces cache.Cache, now func() time.Time) *StateCodec {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &StateCodec{secret: []byte(secret), ttl: ttl, nonces: nonces, now: now}
}

func (c *StateCodec) sign(s OAuthState) string {
	s.Sig = ""
	canonical, _ := json.Marshal(s)
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *StateCodec) Encode(ctx context.Context, userID uuid.UUID, redirectURL string) (string, error) {
	state := OAuthState{
		UserID:      userID,
		RedirectURL: redirectURL,
		Nonce:       utils.GenerateRandomString(24),
		IssuedAt:    c.now().Unix(),
	}
	state.Sig = c.sign(state)

	if err := c.nonces.Set(ctx, oauthStatePrefix+state.Nonce, userID.String(), c.ttl); err != nil {
		return "", fmt.Errorf("store state nonce: %w", err)
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Decode verifies the signature and age of an encoded state and consumes its nonce.
func (c *StateCodec) Decode(ctx context.Context, encoded string) (*OAuthState, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalidState
	}
	var state OAuthState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, ErrInvalidState
	}
	if state.UserID == uuid.Nil || state.Nonce == "" {
		return nil, ErrInvalidState
	}
	if !hmac.Equal([]byte(state.Sig), []byte(c.sign(state))) {
		return nil, ErrInvalidState
	}

	age := c.now().Sub(time.Unix(state.IssuedAt, 0))
	if age > c.ttl || age < -time.Minute {
		return nil, ErrExpiredState
	}

	owner, err := c.nonces.GetDel(ctx, oauthStatePrefix+state.Nonce)
	if err != nil {
		if stderrors.Is(err, cache.ErrCacheMiss) {
			return nil, ErrReusedState
		}
		return nil, fmt.Errorf("redeem state nonce: %w", err)
	}
	if owner != state.UserID.String() {
		return nil, ErrInvalidState
	}
	return &state, nil
}
