package service

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"smartschedule/modules/calendar/entity"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

func tokenServer(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.PostForm.Get("refresh_token"); got != "refresh-1" {
			t.Errorf("refresh_token = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func refresherFor(srv *httptest.Server) TokenRefresher {
	return NewOAuthRefresher(&oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: srv.URL + "/token", AuthStyle: oauth2.AuthStyleInParams},
	})
}

func TestGetValidAccessTokenRefreshesInsideBuffer(t *testing.T) {
	srv, calls := tokenServer(t, http.StatusOK, `{"access_token":"access-2","token_type":"Bearer","expires_in":3600}`)

	conn := newConnection(uuid.New())
	conn.TokenExpiresAt = fixedNow.Add(4 * time.Minute)
	repo := newFakeConnections(conn)
	svc := NewCredentialService(repo, refresherFor(srv), 5*time.Minute, clock)

	token, err := svc.GetValidAccessToken(context.Background(), conn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "access-2" {
		t.Fatalf("token = %q, want access-2", token)
	}
	if atomic.LoadInt32(calls) != 1 {
		t.Fatalf("token endpoint called %d times", *calls)
	}
	stored := repo.get(conn.ID)
	if stored.AccessToken != "access-2" || stored.RefreshToken != "refresh-1" {
		t.Fatalf("stored tokens = %q/%q", stored.AccessToken, stored.RefreshToken)
	}
	if conn.AccessToken != "access-2" {
		t.Fatalf("connection not updated in place")
	}
}

func TestGetValidAccessTokenReusesOutsideBuffer(t *testing.T) {
	srv, calls := tokenServer(t, http.StatusOK, `{"access_token":"unused","expires_in":3600}`)

	conn := newConnection(uuid.New())
	conn.TokenExpiresAt = fixedNow.Add(6 * time.Minute)
	repo := newFakeConnections(conn)
	svc := NewCredentialService(repo, refresherFor(srv), 5*time.Minute, clock)

	token, err := svc.GetValidAccessToken(context.Background(), conn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "access-1" {
		t.Fatalf("token = %q, want access-1", token)
	}
	if atomic.LoadInt32(calls) != 0 || repo.tokenWrites != 0 {
		t.Fatalf("expected no refresh, got %d calls and %d writes", *calls, repo.tokenWrites)
	}
}

func TestGetValidAccessTokenRejectedRefreshMarksError(t *testing.T) {
	srv, _ := tokenServer(t, http.StatusBadRequest, `{"error":"invalid_grant","error_description":"Token has been revoked."}`)

	conn := newConnection(uuid.New())
	conn.TokenExpiresAt = fixedNow.Add(-time.Minute)
	repo := newFakeConnections(conn)
	svc := NewCredentialService(repo, refresherFor(srv), 0, clock)

	_, err := svc.GetValidAccessToken(context.Background(), conn)
	var authErr *AuthError
	if !stderrors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if authErr.ConnectionID != conn.ID {
		t.Fatalf("auth error connection = %s", authErr.ConnectionID)
	}
	stored := repo.get(conn.ID)
	if stored.SyncStatus != entity.SyncStatusError || stored.SyncError == nil {
		t.Fatalf("connection status = %s, error = %v", stored.SyncStatus, stored.SyncError)
	}
	if repo.tokenWrites != 0 {
		t.Fatalf("tokens must not be written after a failed refresh")
	}
}

func TestGetValidAccessTokenWithoutRefreshToken(t *testing.T) {
	conn := newConnection(uuid.New())
	conn.TokenExpiresAt = fixedNow
	conn.RefreshToken = ""
	refresher := &fakeRefresher{}
	svc := NewCredentialService(newFakeConnections(conn), refresher, 0, clock)

	_, err := svc.GetValidAccessToken(context.Background(), conn)
	var authErr *AuthError
	if !stderrors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if refresher.calls != 0 {
		t.Fatalf("refresher should not be called without a refresh token")
	}
}

func TestGetValidAccessTokenKeepsRotatedRefreshToken(t *testing.T) {
	conn := newConnection(uuid.New())
	conn.TokenExpiresAt = fixedNow
	repo := newFakeConnections(conn)
	refresher := &fakeRefresher{token: &oauth2.Token{AccessToken: "access-3", RefreshToken: "refresh-2"}}
	svc := NewCredentialService(repo, refresher, 0, clock)

	if _, err := svc.GetValidAccessToken(context.Background(), conn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored := repo.get(conn.ID)
	if stored.RefreshToken != "refresh-2" {
		t.Fatalf("refresh token = %q, want refresh-2", stored.RefreshToken)
	}
	if !stored.TokenExpiresAt.Equal(fixedNow.Add(time.Hour)) {
		t.Fatalf("expiry = %v, want default lifetime", stored.TokenExpiresAt)
	}
}
