package service

import (
	"fmt"

	"github.com/google/uuid"
)

// AuthError means a connection has no usable credentials; the user must reconnect.
type AuthError struct {
	ConnectionID uuid.UUID
	Reason       string
	Err          error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("calendar auth failed for connection %s: %s: %v", e.ConnectionID, e.Reason, e.Err)
	}
	return fmt.Sprintf("calendar auth failed for connection %s: %s", e.ConnectionID, e.Reason)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ErrMsgSyncInProgress is the SyncResult error when another sync holds the connection lock.
const ErrMsgSyncInProgress = "sync already in progress"
