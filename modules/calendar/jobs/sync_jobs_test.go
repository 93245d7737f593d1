package jobs

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	"smartschedule/modules/calendar/dto"
	"smartschedule/modules/calendar/repository"
	"smartschedule/modules/calendar/service"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type stubConnections struct {
	repository.ConnectionRepository
	ids []uuid.UUID
}

func (s *stubConnections) ListSyncableIDs(context.Context) ([]uuid.UUID, error) {
	return s.ids, nil
}

type stubSyncs struct {
	service.SyncService
	result dto.SyncResult
	err    error
	calls  []SyncConnectionPayload
}

func (s *stubSyncs) SyncConnectionByID(_ context.Context, id uuid.UUID, days int) (dto.SyncResult, error) {
	s.calls = append(s.calls, SyncConnectionPayload{ConnectionID: id, SyncDays: days})
	return s.result, s.err
}

type recordingEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (e *recordingEnqueuer) Enqueue(_ context.Context, task *asynq.Task, _ ...asynq.Option) error {
	e.tasks = append(e.tasks, task)
	return e.err
}

type recordingRegistrar struct {
	handlers  map[string]bool
	scheduled []string
}

func (r *recordingRegistrar) HandleFunc(taskType string, _ func(context.Context, *asynq.Task) error) {
	r.handlers[taskType] = true
}

func (r *recordingRegistrar) Schedule(cronspec string, task *asynq.Task, _ ...asynq.Option) error {
	r.scheduled = append(r.scheduled, cronspec+" "+task.Type())
	return nil
}

func TestHandleSyncAllFansOut(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	enq := &recordingEnqueuer{}
	jobs := NewSyncJobs(&stubConnections{ids: ids}, &stubSyncs{}, enq, 0)

	if err := jobs.HandleSyncAll(context.Background(), asynq.NewTask(TypeSyncAll, nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(enq.tasks) != len(ids) {
		t.Fatalf("enqueued %d tasks, want %d", len(enq.tasks), len(ids))
	}
	for i, task := range enq.tasks {
		var p SyncConnectionPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			t.Fatalf("payload: %v", err)
		}
		if task.Type() != TypeSyncConnection || p.ConnectionID != ids[i] {
			t.Fatalf("task %d = %s %+v", i, task.Type(), p)
		}
	}
}

func TestEnqueueConnectionSyncIgnoresDuplicates(t *testing.T) {
	jobs := NewSyncJobs(&stubConnections{}, &stubSyncs{}, &recordingEnqueuer{err: asynq.ErrDuplicateTask}, 0)

	if err := jobs.EnqueueConnectionSync(context.Background(), uuid.New()); err != nil {
		t.Fatalf("duplicate should be ignored, got %v", err)
	}
}

func TestHandleSyncConnection(t *testing.T) {
	id := uuid.New()
	task, err := NewSyncConnectionTask(id, 14)
	if err != nil {
		t.Fatalf("task: %v", err)
	}

	tests := []struct {
		name      string
		result    dto.SyncResult
		err       error
		wantErr   bool
		skipRetry bool
	}{
		{name: "synced", result: dto.SyncResult{ConnectionID: id, EventCount: 3}},
		{name: "already running", result: dto.SyncResult{ConnectionID: id, Error: service.ErrMsgSyncInProgress}},
		{name: "failed", result: dto.SyncResult{ConnectionID: id, Error: "all calendars failed to sync"}, wantErr: true, skipRetry: true},
		{name: "missing connection", err: stderrors.New("calendar connection not found"), wantErr: true, skipRetry: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			syncs := &stubSyncs{result: tt.result, err: tt.err}
			jobs := NewSyncJobs(&stubConnections{}, syncs, &recordingEnqueuer{}, 0)

			err := jobs.HandleSyncConnection(context.Background(), task)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.skipRetry && !stderrors.Is(err, asynq.SkipRetry) {
				t.Fatalf("expected SkipRetry, got %v", err)
			}
			if len(syncs.calls) != 1 || syncs.calls[0].SyncDays != 14 {
				t.Fatalf("calls = %+v", syncs.calls)
			}
		})
	}
}

func TestHandleSyncConnectionInvalidPayload(t *testing.T) {
	jobs := NewSyncJobs(&stubConnections{}, &stubSyncs{}, &recordingEnqueuer{}, 0)

	err := jobs.HandleSyncConnection(context.Background(), asynq.NewTask(TypeSyncConnection, []byte("not json")))
	if !stderrors.Is(err, asynq.SkipRetry) {
		t.Fatalf("err = %v", err)
	}
}

func TestRegister(t *testing.T) {
	r := &recordingRegistrar{handlers: map[string]bool{}}
	jobs := NewSyncJobs(&stubConnections{}, &stubSyncs{}, &recordingEnqueuer{}, 0)

	if err := jobs.Register(r, "*/15 * * * *"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if !r.handlers[TypeSyncAll] || !r.handlers[TypeSyncConnection] {
		t.Fatalf("handlers = %v", r.handlers)
	}
	if len(r.scheduled) != 1 || r.scheduled[0] != "*/15 * * * * "+TypeSyncAll {
		t.Fatalf("scheduled = %v", r.scheduled)
	}
}
