package service

import (
	"context"
	"sync"
	"time"

	"smartschedule/modules/calendar/entity"
	"smartschedule/modules/calendar/provider"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type fakeConnections struct {
	mu          sync.Mutex
	conns       map[uuid.UUID]*entity.Connection
	statuses    []entity.SyncStatus
	tokenWrites int
	synced      int
}

func newFakeConnections(conns ...*entity.Connection) *fakeConnections {
	f := &fakeConnections{conns: map[uuid.UUID]*entity.Connection{}}
	for _, c := range conns {
		f.conns[c.ID] = c
	}
	return f
}

func (f *fakeConnections) Create(_ context.Context, conn *entity.Connection) (*entity.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if conn.ID == uuid.Nil {
		conn.ID = uuid.New()
	}
	c := *conn
	f.conns[c.ID] = &c
	return conn, nil
}

func (f *fakeConnections) GetByID(_ context.Context, id uuid.UUID) (*entity.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conns[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeConnections) GetByUserAndProvider(_ context.Context, userID uuid.UUID, providerName string) (*entity.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		if c.UserID == userID && c.Provider == providerName {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeConnections) ListByUser(_ context.Context, userID uuid.UUID, providerName string) ([]entity.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Connection
	for _, c := range f.conns {
		if c.UserID == userID && (providerName == "" || c.Provider == providerName) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeConnections) ListSyncableIDs(_ context.Context) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for id := range f.conns {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeConnections) Update(_ context.Context, conn *entity.Connection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *conn
	f.conns[c.ID] = &c
	return nil
}

func (f *fakeConnections) UpdateTokens(_ context.Context, id uuid.UUID, access, refresh string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenWrites++
	if c, ok := f.conns[id]; ok {
		c.AccessToken, c.RefreshToken, c.TokenExpiresAt, c.SyncError = access, refresh, expiresAt, nil
	}
	return nil
}

func (f *fakeConnections) UpdateSyncStatus(_ context.Context, id uuid.UUID, status entity.SyncStatus, syncError *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	if c, ok := f.conns[id]; ok {
		c.SyncStatus, c.SyncError = status, syncError
	}
	return nil
}

func (f *fakeConnections) MarkSynced(_ context.Context, id uuid.UUID, syncedAt time.Time, settings entity.ConnectionSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synced++
	f.statuses = append(f.statuses, entity.SyncStatusSynced)
	if c, ok := f.conns[id]; ok {
		c.SyncStatus, c.SyncError, c.LastSyncedAt, c.Settings = entity.SyncStatusSynced, nil, &syncedAt, settings
	}
	return nil
}

func (f *fakeConnections) Delete(_ context.Context, userID, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conns[id]
	if !ok || c.UserID != userID {
		return false, nil
	}
	delete(f.conns, id)
	return true, nil
}

func (f *fakeConnections) get(id uuid.UUID) entity.Connection {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.conns[id]
}

// fakeEvents keeps rows keyed by (connection, external id), replacing by overlap like the SQL repository.
type fakeEvents struct {
	mu      sync.Mutex
	rows    map[string]entity.MirroredEvent
	deleted []string
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{rows: map[string]entity.MirroredEvent{}}
}

func eventKey(connID uuid.UUID, extID string) string {
	return connID.String() + "/" + extID
}

func (f *fakeEvents) ReplaceWindow(_ context.Context, connID uuid.UUID, calendarID string, start, end time.Time, events []entity.MirroredEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, row := range f.rows {
		if row.ConnectionID == connID && row.CalendarID == calendarID && row.StartTime.Before(end) && row.EndTime.After(start) {
			delete(f.rows, k)
		}
	}
	for _, ev := range events {
		f.rows[eventKey(ev.ConnectionID, ev.ExternalEventID)] = ev
	}
	return nil
}

func (f *fakeEvents) DeleteWindowExcept(_ context.Context, connID uuid.UUID, keep []string, start, end time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := map[string]bool{}
	for _, id := range keep {
		kept[id] = true
	}
	for k, row := range f.rows {
		if row.ConnectionID == connID && !kept[row.CalendarID] && row.StartTime.Before(end) && row.EndTime.After(start) {
			delete(f.rows, k)
		}
	}
	return nil
}

func (f *fakeEvents) Upsert(_ context.Context, ev *entity.MirroredEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[eventKey(ev.ConnectionID, ev.ExternalEventID)] = *ev
	return nil
}

func (f *fakeEvents) DeleteByExternalID(_ context.Context, connID uuid.UUID, extID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, extID)
	delete(f.rows, eventKey(connID, extID))
	return nil
}

func (f *fakeEvents) ListBusyBetween(_ context.Context, connIDs []uuid.UUID, start, end time.Time) ([]entity.MirroredEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := map[uuid.UUID]bool{}
	for _, id := range connIDs {
		wanted[id] = true
	}
	var out []entity.MirroredEvent
	for _, row := range f.rows {
		if wanted[row.ConnectionID] && row.IsBusy && row.StartTime.Before(end) && row.EndTime.After(start) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeEvents) snapshot() map[string]entity.MirroredEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]entity.MirroredEvent, len(f.rows))
	for k, v := range f.rows {
		out[k] = v
	}
	return out
}

type fakeClient struct {
	mu          sync.Mutex
	events      map[string][]provider.RawEvent
	listErr     map[string]error
	calendars   []provider.CalendarRef
	timezone    string
	timezoneErr error
	created     []provider.EventPayload
	createResp  *provider.RawEvent
	createErr   error
	deleteErr   error
	tokens      []string
	// blockList makes ListEvents wait for the context to end.
	blockList   bool
}

func (f *fakeClient) record(token string) {
	f.mu.Lock()
	f.tokens = append(f.tokens, token)
	f.mu.Unlock()
}

func (f *fakeClient) ListEvents(ctx context.Context, token, calendarID string, _, _ time.Time) ([]provider.RawEvent, error) {
	f.record(token)
	if f.blockList {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := f.listErr[calendarID]; err != nil {
		return nil, err
	}
	return f.events[calendarID], nil
}

func (f *fakeClient) ListCalendars(_ context.Context, token string) ([]provider.CalendarRef, error) {
	f.record(token)
	return f.calendars, nil
}

func (f *fakeClient) GetTimezone(_ context.Context, token string) (string, error) {
	f.record(token)
	return f.timezone, f.timezoneErr
}

func (f *fakeClient) CreateEvent(_ context.Context, token, _ string, payload provider.EventPayload) (*provider.RawEvent, error) {
	f.record(token)
	f.mu.Lock()
	f.created = append(f.created, payload)
	f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	ev := *f.createResp
	return &ev, nil
}

func (f *fakeClient) UpdateEvent(_ context.Context, token, _, eventID string, payload provider.EventPayload) (*provider.RawEvent, error) {
	f.record(token)
	return &provider.RawEvent{ID: eventID, Title: payload.Title, Start: payload.Start, End: payload.End, IsBusy: true}, nil
}

func (f *fakeClient) DeleteEvent(_ context.Context, token, _, _ string) error {
	f.record(token)
	return f.deleteErr
}

type fakeLocker struct {
	held bool
}

func (l *fakeLocker) Acquire(context.Context, uuid.UUID) (func(), bool, error) {
	if l.held {
		return func() {}, false, nil
	}
	return func() {}, true, nil
}

type fakeRefresher struct {
	token *oauth2.Token
	err   error
	calls int
}

func (r *fakeRefresher) Refresh(context.Context, string) (*oauth2.Token, error) {
	r.calls++
	return r.token, r.err
}

func newConnection(userID uuid.UUID) *entity.Connection {
	c := &entity.Connection{
		UserID:         userID,
		Provider:       entity.ProviderGoogle,
		ProviderEmail:  "host@example.com",
		AccessToken:    "access-1",
		RefreshToken:   "refresh-1",
		TokenExpiresAt: fixedNow.Add(time.Hour),
		SyncStatus:     entity.SyncStatusPending,
	}
	c.ID = uuid.New()
	return c
}
