package jobs

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"smartschedule/core/logger"
	"smartschedule/core/worker"
	"smartschedule/modules/calendar/repository"
	"smartschedule/modules/calendar/service"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	TypeSyncAll        = "calendar:sync_all"
	TypeSyncConnection = "calendar:sync_connection"
)

type SyncConnectionPayload struct {
	ConnectionID uuid.UUID `json:"connection_id"`
	SyncDays     int       `json:"sync_days,omitempty"`
}

func NewSyncConnectionTask(connectionID uuid.UUID, syncDays int) (*asynq.Task, error) {
	payload, err := json.Marshal(SyncConnectionPayload{ConnectionID: connectionID, SyncDays: syncDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSyncConnection, payload), nil
}

// Registrar is the part of the worker the jobs attach to.
type Registrar interface {
	HandleFunc(taskType string, handler func(context.Context, *asynq.Task) error)
	Schedule(cronspec string, task *asynq.Task, opts ...asynq.Option) error
}

type SyncJobs struct {
	connections repository.ConnectionRepository
	syncs       service.SyncService
	enqueuer    worker.Enqueuer
	uniqueFor   time.Duration
}

func NewSyncJobs(connections repository.ConnectionRepository, syncs service.SyncService, enqueuer worker.Enqueuer, uniqueFor time.Duration) *SyncJobs {
	if uniqueFor <= 0 {
		uniqueFor = 5 * time.Minute
	}
	return &SyncJobs{connections: connections, syncs: syncs, enqueuer: enqueuer, uniqueFor: uniqueFor}
}

// Register attaches the task handlers and, when cronspec is set, the periodic fan-out.
func (j *SyncJobs) Register(r Registrar, cronspec string) error {
	r.HandleFunc(TypeSyncAll, j.HandleSyncAll)
	r.HandleFunc(TypeSyncConnection, j.HandleSyncConnection)
	if cronspec == "" {
		return nil
	}
	return r.Schedule(cronspec, asynq.NewTask(TypeSyncAll, nil), asynq.Unique(j.uniqueFor))
}

// EnqueueConnectionSync queues one sync; a sync already queued for the connection counts as success.
func (j *SyncJobs) EnqueueConnectionSync(ctx context.Context, connectionID uuid.UUID) error {
	task, err := NewSyncConnectionTask(connectionID, 0)
	if err != nil {
		return err
	}
	err = j.enqueuer.Enqueue(ctx, task, asynq.Unique(j.uniqueFor), asynq.MaxRetry(3))
	if err != nil && !stderrors.Is(err, asynq.ErrDuplicateTask) {
		return err
	}
	return nil
}

func (j *SyncJobs) HandleSyncAll(ctx context.Context, _ *asynq.Task) error {
	ids, err := j.connections.ListSyncableIDs(ctx)
	if err != nil {
		return fmt.Errorf("list connections: %w", err)
	}

	var failed int
	for _, id := range ids {
		if err := j.EnqueueConnectionSync(ctx, id); err != nil {
			failed++
			logger.Error("SyncJobs:HandleSyncAll:EnqueueError", "connection_id", id, "error", err)
		}
	}
	logger.Info("SyncJobs:HandleSyncAll:Done", "connections", len(ids), "failed", failed)
	return nil
}

func (j *SyncJobs) HandleSyncConnection(ctx context.Context, task *asynq.Task) error {
	var p SyncConnectionPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil || p.ConnectionID == uuid.Nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}

	result, err := j.syncs.SyncConnectionByID(ctx, p.ConnectionID, p.SyncDays)
	if err != nil {
		return fmt.Errorf("sync %s: %v: %w", p.ConnectionID, err, asynq.SkipRetry)
	}
	if !result.OK() {
		logger.Warn("SyncJobs:HandleSyncConnection:Failed", "connection_id", p.ConnectionID, "error", result.Error)
		if result.Error == service.ErrMsgSyncInProgress {
			return nil
		}
		// the next scheduled run retries
		return fmt.Errorf("sync %s: %s: %w", p.ConnectionID, result.Error, asynq.SkipRetry)
	}
	return nil
}
