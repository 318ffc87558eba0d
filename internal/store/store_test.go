package store

import (
	"context"
	"fmt"
	"regexp"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scoutpluse/scoutsync/internal/bus"
	"github.com/scoutpluse/scoutsync/internal/errs"
	"github.com/scoutpluse/scoutsync/internal/model"
	"github.com/scoutpluse/scoutsync/internal/repository/sqlite"
)

var dbSeq atomic.Int64

func newTestStore(t *testing.T) (*Store, *bus.Bus) {
	t.Helper()
	dsn := fmt.Sprintf("file:storetest%d?mode=memory&cache=shared", dbSeq.Add(1))
	kv, err := sqlite.Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	b := bus.New()
	return New(kv, b, zap.NewNop(), ""), b
}

func seedEvent(id string, max int, attendees ...string) model.Event {
	if attendees == nil {
		attendees = []string{}
	}
	return model.Event{
		ID:           id,
		Title:        "Camp",
		Description:  "desc",
		Date:         "2025-01-20",
		Time:         "09:00",
		Location:     "Hall",
		Category:     "ramita",
		MaxAttendees: max,
		Attendees:    attendees,
		Status:       model.StatusUpcoming,
	}
}

func TestStore_RoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	// empty array round-trips as empty, not nil-ish junk
	require.NoError(t, s.SaveEvents(ctx, []model.Event{}))
	require.Empty(t, s.GetEvents(ctx))

	in := []model.Event{seedEvent("e1", 10, "1"), seedEvent("e2", 5)}
	require.NoError(t, s.SaveEvents(ctx, in))
	require.Equal(t, in, s.GetEvents(ctx))
}

func TestStore_GetEventsDefaults(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.Empty(t, s.GetEvents(ctx), "absent key must read as empty")
}

func TestStore_SaveEventsNotification(t *testing.T) {
	s, b := newTestStore(t)
	ch, cancel := b.Subscribe(bus.EventsUpdated)
	defer cancel()

	require.NoError(t, s.SaveEvents(context.Background(), []model.Event{seedEvent("e1", 3)}))
	n := <-ch
	require.Equal(t, bus.EventsUpdated, n.Kind)
	require.Equal(t, bus.SourceLocal, n.Source)
	require.Equal(t, 1, n.Count)
}

func TestStore_AddEvent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveEvents(ctx, []model.Event{}))

	added, err := s.AddEvent(ctx, model.Event{
		Title: "Camp", Description: "d", Date: "2025-02-01", Time: "10:00",
		Location: "Hall", Category: "ramita", MaxAttendees: 2,
	})
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^event_\d+_[0-9a-z]{9}$`), added.ID)
	require.Equal(t, model.StatusUpcoming, added.Status)
	require.Empty(t, added.Attendees)
	require.NotEmpty(t, added.CreatedAt)

	events := s.GetEvents(ctx)
	require.Len(t, events, 1)
	require.Equal(t, added.ID, events[0].ID)
}

func TestStore_AddEventPrepends(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveEvents(ctx, []model.Event{seedEvent("old", 5)}))

	added, err := s.AddEvent(ctx, seedEvent("", 5))
	require.NoError(t, err)

	events := s.GetEvents(ctx)
	require.Len(t, events, 2)
	require.Equal(t, added.ID, events[0].ID, "newest event must come first")
	require.Equal(t, "old", events[1].ID)
}

func TestStore_UpdateEvent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	base := seedEvent("e1", 5)
	base.UpdatedAt = "2020-01-01T00:00:00Z"
	require.NoError(t, s.SaveEvents(ctx, []model.Event{base}))

	title := "Renamed"
	got, err := s.UpdateEvent(ctx, "e1", model.EventPatch{Title: &title})
	require.NoError(t, err)
	require.Equal(t, "Renamed", got.Title)
	require.NotEqual(t, "2020-01-01T00:00:00Z", got.UpdatedAt)

	_, err = s.UpdateEvent(ctx, "nope", model.EventPatch{Title: &title})
	require.ErrorIs(t, err, errs.ErrEventNotFound)
}

func TestStore_DeleteEvent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveEvents(ctx, []model.Event{seedEvent("e1", 5), seedEvent("e2", 5)}))

	require.NoError(t, s.DeleteEvent(ctx, "e1"))
	events := s.GetEvents(ctx)
	require.Len(t, events, 1)
	require.Equal(t, "e2", events[0].ID)

	// deleting a missing id fails and leaves the array untouched, in order
	err := s.DeleteEvent(ctx, "e1")
	require.ErrorIs(t, err, errs.ErrEventNotFound)
	require.Equal(t, events, s.GetEvents(ctx))
}

func TestStore_JoinEvent_Capacity(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveEvents(ctx, []model.Event{seedEvent("e1", 1, "u1")}))

	_, err := s.JoinEvent(ctx, "e1", "u2")
	require.ErrorIs(t, err, errs.ErrEventFull)

	got := s.GetEvents(ctx)[0]
	require.Equal(t, []string{"u1"}, got.Attendees, "store must be unchanged")
}

func TestStore_JoinEvent_Duplicate(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveEvents(ctx, []model.Event{seedEvent("e1", 5)}))

	first, err := s.JoinEvent(ctx, "e1", "u1")
	require.NoError(t, err)
	require.Equal(t, []string{"u1"}, first.Attendees)

	_, err = s.JoinEvent(ctx, "e1", "u1")
	require.ErrorIs(t, err, errs.ErrAlreadyJoined)

	got := s.GetEvents(ctx)[0]
	require.Equal(t, []string{"u1"}, got.Attendees, "u1 must appear exactly once")
}

func TestStore_JoinEvent_NeverExceedsCapacity(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveEvents(ctx, []model.Event{seedEvent("e1", 2)}))

	for i, want := range []error{nil, nil, errs.ErrEventFull} {
		_, err := s.JoinEvent(ctx, "e1", fmt.Sprintf("u%d", i))
		if want == nil {
			require.NoError(t, err)
		} else {
			require.ErrorIs(t, err, want)
		}
	}
	got := s.GetEvents(ctx)[0]
	require.LessOrEqual(t, len(got.Attendees), got.MaxAttendees)
}

func TestStore_LeaveEvent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveEvents(ctx, []model.Event{seedEvent("e1", 5, "u1", "u2")}))

	got, err := s.LeaveEvent(ctx, "e1", "u1")
	require.NoError(t, err)
	require.Equal(t, []string{"u2"}, got.Attendees)

	_, err = s.LeaveEvent(ctx, "e1", "u1")
	require.ErrorIs(t, err, errs.ErrNotJoined)

	_, err = s.LeaveEvent(ctx, "ghost", "u1")
	require.ErrorIs(t, err, errs.ErrEventNotFound)
}

func TestStore_JoinLeaveBackReference(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveEvents(ctx, []model.Event{seedEvent("e1", 5)}))
	require.NoError(t, s.SaveUsers(ctx, map[string]model.User{
		"scout@scouts.org": {ID: "u1", Email: "scout@scouts.org", Role: model.RoleMember},
	}))

	_, err := s.JoinEvent(ctx, "e1", "u1")
	require.NoError(t, err)
	require.Equal(t, []string{"e1"}, s.GetUsers(ctx)["scout@scouts.org"].JoinedEvents)

	_, err = s.LeaveEvent(ctx, "e1", "u1")
	require.NoError(t, err)
	require.Empty(t, s.GetUsers(ctx)["scout@scouts.org"].JoinedEvents)
}

func TestStore_UsersAndSettingsDefaults(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.Empty(t, s.GetUsers(ctx))
	require.Empty(t, s.GetSettings(ctx))

	users := map[string]model.User{"a@b.c": {ID: "1", Email: "a@b.c"}}
	require.NoError(t, s.SaveUsers(ctx, users))
	require.Equal(t, users, s.GetUsers(ctx))

	settings := map[string]string{"theme": "dark"}
	require.NoError(t, s.SaveSettings(ctx, settings))
	require.Equal(t, settings, s.GetSettings(ctx))
}

func TestStore_SyncSettings(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.Zero(t, s.GetSyncSettings(ctx).IntervalMS)

	require.NoError(t, s.SaveSyncSettings(ctx, model.SyncSettings{Enabled: true, IntervalMS: 15000}))
	got := s.GetSyncSettings(ctx)
	require.True(t, got.Enabled)
	require.Equal(t, int64(15000), got.IntervalMS)
	require.NotEmpty(t, got.LastUpdate)
}

func TestStore_ClearAll(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveEvents(ctx, []model.Event{seedEvent("e1", 5)}))
	require.NoError(t, s.SaveUsers(ctx, map[string]model.User{"a@b.c": {ID: "1"}}))
	require.NoError(t, s.SaveSettings(ctx, map[string]string{"k": "v"}))

	require.NoError(t, s.ClearAll(ctx))
	require.Empty(t, s.GetEvents(ctx))
	require.Empty(t, s.GetUsers(ctx))
	require.Empty(t, s.GetSettings(ctx))
}

func TestStore_ExportImport(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveEvents(ctx, []model.Event{seedEvent("e1", 5)}))
	require.NoError(t, s.SaveUsers(ctx, map[string]model.User{"a@b.c": {ID: "1", Email: "a@b.c"}}))
	require.NoError(t, s.SaveSettings(ctx, map[string]string{"lang": "en"}))

	snap := s.Export(ctx)
	require.Equal(t, model.SnapshotVersion, snap.Version)
	require.NotEmpty(t, snap.ExportDate)

	other, _ := newTestStore(t)
	require.NoError(t, other.Import(ctx, snap))
	require.Equal(t, s.GetEvents(ctx), other.GetEvents(ctx))
	require.Equal(t, s.GetUsers(ctx), other.GetUsers(ctx))
	require.Equal(t, s.GetSettings(ctx), other.GetSettings(ctx))

	// idempotent
	require.NoError(t, other.Import(ctx, snap))
	require.Equal(t, s.GetEvents(ctx), other.GetEvents(ctx))
}

func TestStore_ImportPartial(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveUsers(ctx, map[string]model.User{"keep@x.y": {ID: "9"}}))

	require.NoError(t, s.Import(ctx, model.Snapshot{Events: []model.Event{seedEvent("e1", 5)}}))
	require.Len(t, s.GetEvents(ctx), 1)
	require.Len(t, s.GetUsers(ctx), 1, "absent sections must not be overwritten")
}

func TestStore_SelfTest(t *testing.T) {
	s, _ := newTestStore(t)
	check := s.SelfTest(context.Background())
	require.True(t, check.Success, check.Message)
}

func TestStore_Stats(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveEvents(ctx, []model.Event{seedEvent("e1", 5)}))
	require.NoError(t, s.SaveUsers(ctx, map[string]model.User{"a@b.c": {ID: "1"}}))

	stats := s.Stats(ctx)
	require.Equal(t, 1, stats.TotalEvents)
	require.Equal(t, 1, stats.TotalUsers)
	require.False(t, stats.HasSettings)
	require.Positive(t, stats.UsedBytes)
}

func TestStore_EnvelopeCountMatches(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveEvents(ctx, []model.Event{seedEvent("e1", 5), seedEvent("e2", 5)}))
	require.NotEmpty(t, s.EnvelopeLastUpdated(ctx))

	ts, ok := s.EventsModifiedAt(ctx)
	require.True(t, ok)
	require.False(t, ts.IsZero())
}
