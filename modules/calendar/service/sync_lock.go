package service

import (
	"context"
	"time"

	"smartschedule/core/cache"
	"smartschedule/core/logger"
	"smartschedule/core/utils"

	"github.com/google/uuid"
)

const syncLockPrefix = "calendar:sync_lock:"

// SyncLocker serializes syncs of the same connection across processes.
type SyncLocker interface {
	Acquire(ctx context.Context, connectionID uuid.UUID) (release func(), acquired bool, err error)
}

type redisSyncLocker struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewSyncLocker(c cache.Cache, ttl time.Duration) SyncLocker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &redisSyncLocker{cache: c, ttl: ttl}
}

func (l *redisSyncLocker) Acquire(ctx context.Context, connectionID uuid.UUID) (func(), bool, error) {
	key := syncLockPrefix + connectionID.String()
	token := utils.GenerateRandomString(24)

	ok, err := l.cache.SetNX(ctx, key, token, l.ttl)
	if err != nil || !ok {
		return func() {}, false, err
	}

	release := func() {
		// the caller's context may already be cancelled
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := l.cache.CompareAndDelete(releaseCtx, key, token); err != nil {
			logger.Warn("SyncLocker:Release:Error", "connection_id", connectionID, "error", err)
		}
	}
	return release, true, nil
}
