package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scoutpluse/scoutsync/internal/bus"
	"github.com/scoutpluse/scoutsync/internal/errs"
	"github.com/scoutpluse/scoutsync/internal/mirror"
	"github.com/scoutpluse/scoutsync/internal/model"
	"github.com/scoutpluse/scoutsync/internal/repository"
	"github.com/scoutpluse/scoutsync/internal/repository/sqlite"
	"github.com/scoutpluse/scoutsync/internal/store"
)

var dbSeq atomic.Int64

func openKV(t *testing.T) repository.KV {
	t.Helper()
	dsn := fmt.Sprintf("file:mgrtest%d?mode=memory&cache=shared", dbSeq.Add(1))
	kv, err := sqlite.Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func newManager(t *testing.T, handler http.Handler) (*Manager, *store.Store, *bus.Bus) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	kv := openKV(t)
	b := bus.New()
	st := store.New(kv, b, zap.NewNop(), "")
	client := mirror.New(srv.URL, "secret", time.Second, b, zap.NewNop())
	return New(st, client, b, zap.NewNop()), st, b
}

func serverWith(events []model.Event) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"events": events, "totalEvents": len(events)},
		})
	}
}

func failing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}
}

func validEvent() model.Event {
	return model.Event{
		Title: "Hike", Description: "d", Date: "2025-03-01", Time: "08:00",
		Location: "Trailhead", Category: "ramita", MaxAttendees: 10,
	}
}

func TestManager_InitSeedsFromServer(t *testing.T) {
	m, st, _ := newManager(t, serverWith([]model.Event{{ID: "srv1", Title: "Remote"}}))
	require.NoError(t, m.Init(context.Background()))

	events := st.GetEvents(context.Background())
	require.Len(t, events, 1)
	require.Equal(t, "srv1", events[0].ID)
	require.Equal(t, events, m.Events())
}

func TestManager_InitFallsBackToDemoData(t *testing.T) {
	m, st, _ := newManager(t, failing())
	require.NoError(t, m.Init(context.Background()))

	require.Len(t, st.GetEvents(context.Background()), len(DemoEvents()))
	users := st.GetUsers(context.Background())
	require.Len(t, users, len(DemoUsers()))
	require.Contains(t, users, "admin@scouts.org")
}

func TestManager_InitKeepsExistingData(t *testing.T) {
	m, st, _ := newManager(t, serverWith([]model.Event{{ID: "srv1"}}))
	ctx := context.Background()
	require.NoError(t, st.SaveEvents(ctx, []model.Event{{ID: "local1", Title: "Mine"}}))

	require.NoError(t, m.Init(ctx))
	events := st.GetEvents(ctx)
	require.Len(t, events, 1)
	require.Equal(t, "local1", events[0].ID, "a populated store must not be overwritten at startup")
}

func TestManager_AddEvent(t *testing.T) {
	m, _, b := newManager(t, failing())
	ctx := context.Background()
	require.NoError(t, m.Init(ctx))
	ch, cancel := b.Subscribe(bus.EventAdded)
	defer cancel()

	added, err := m.AddEvent(ctx, validEvent())
	require.NoError(t, err)
	require.NotEmpty(t, added.ID)
	require.Equal(t, added.ID, m.Events()[0].ID, "new events lead the list")

	n := <-ch
	require.Equal(t, added.ID, n.EventID)
}

func TestManager_AddEvent_RejectsInvalid(t *testing.T) {
	m, st, b := newManager(t, failing())
	ctx := context.Background()
	require.NoError(t, m.Init(ctx))
	before := len(st.GetEvents(ctx))
	ch, cancel := b.Subscribe(bus.EventAddError)
	defer cancel()

	bad := validEvent()
	bad.Title = ""
	_, err := m.AddEvent(ctx, bad)
	require.Error(t, err)
	require.Contains(t, err.Error(), "title")
	require.Len(t, st.GetEvents(ctx), before, "invalid events are never persisted")
	require.NotEmpty(t, (<-ch).Err)
}

func TestManager_DeleteEvent(t *testing.T) {
	m, st, b := newManager(t, failing())
	ctx := context.Background()
	require.NoError(t, m.Init(ctx))
	ch, cancel := b.Subscribe(bus.EventDeleted, bus.EventDeleteError)
	defer cancel()

	require.NoError(t, m.DeleteEvent(ctx, "1"))
	require.Equal(t, bus.EventDeleted, (<-ch).Kind)
	require.Len(t, st.GetEvents(ctx), len(DemoEvents())-1)

	err := m.DeleteEvent(ctx, "1")
	require.ErrorIs(t, err, errs.ErrEventNotFound)
	require.Equal(t, bus.EventDeleteError, (<-ch).Kind)
}

func TestManager_JoinLeave(t *testing.T) {
	m, _, b := newManager(t, failing())
	ctx := context.Background()
	require.NoError(t, m.Init(ctx))
	ch, cancel := b.Subscribe(bus.EventJoined, bus.EventLeft)
	defer cancel()

	// demo event 1 has attendees 1 and 2
	joined, err := m.JoinEvent(ctx, "1", "3")
	require.NoError(t, err)
	require.Contains(t, joined.Attendees, "3")
	require.Equal(t, bus.EventJoined, (<-ch).Kind)
	require.Contains(t, m.Users()["scout@scouts.org"].JoinedEvents, "1")

	_, err = m.JoinEvent(ctx, "1", "3")
	require.ErrorIs(t, err, errs.ErrAlreadyJoined)

	left, err := m.LeaveEvent(ctx, "1", "3")
	require.NoError(t, err)
	require.NotContains(t, left.Attendees, "3")
	require.Equal(t, bus.EventLeft, (<-ch).Kind)
}

func TestManager_UpdateEvent(t *testing.T) {
	m, _, _ := newManager(t, failing())
	ctx := context.Background()
	require.NoError(t, m.Init(ctx))

	loc := "New Hall"
	updated, err := m.UpdateEvent(ctx, "3", model.EventPatch{Location: &loc})
	require.NoError(t, err)
	require.Equal(t, "New Hall", updated.Location)

	_, err = m.UpdateEvent(ctx, "ghost", model.EventPatch{Location: &loc})
	require.ErrorIs(t, err, errs.ErrEventNotFound)
}

func TestManager_TestConnection(t *testing.T) {
	m, _, b := newManager(t, failing())
	ctx := context.Background()
	require.NoError(t, m.Init(ctx))
	ch, cancel := b.Subscribe(bus.ConnectionTested)
	defer cancel()

	check := m.TestConnection(ctx)
	require.True(t, check.Success, check.Message)
	require.NotEmpty(t, (<-ch).Message)
}

func TestManager_WatchSeesForeignWrites(t *testing.T) {
	srv := httptest.NewServer(failing())
	t.Cleanup(srv.Close)
	kv := openKV(t)

	b := bus.New()
	st := store.New(kv, b, zap.NewNop(), "")
	client := mirror.New(srv.URL, "secret", time.Second, b, zap.NewNop())
	m := New(st, client, b, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Init(ctx))

	ch, unsub := b.Subscribe(bus.EventsRealTimeUpdate)
	defer unsub()
	m.Watch(ctx, 10*time.Millisecond)

	// a second store on its own bus stands in for another process
	foreign := store.New(kv, bus.New(), zap.NewNop(), "")
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, foreign.SaveEvents(ctx, []model.Event{{ID: "ext1", Title: "External"}}))

	select {
	case n := <-ch:
		require.Equal(t, bus.SourceExternal, n.Source)
		require.Equal(t, 1, n.Count)
		require.Equal(t, "ext1", m.Events()[0].ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no real-time update observed")
	}
}

func TestManager_WatchIgnoresOwnWrites(t *testing.T) {
	m, _, b := newManager(t, failing())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Init(ctx))

	ch, unsub := b.Subscribe(bus.EventsRealTimeUpdate)
	defer unsub()
	m.Watch(ctx, 10*time.Millisecond)

	_, err := m.AddEvent(ctx, validEvent())
	require.NoError(t, err)

	select {
	case n := <-ch:
		t.Fatalf("own write flagged as external: %+v", n)
	case <-time.After(100 * time.Millisecond):
	}
}
