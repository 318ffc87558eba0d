// Package store implements the persistent store: durable, namespaced storage
// of events, users, and settings on top of a key-value backend.
//
// Read paths are failure-tolerant and always produce a usable default.
// Mutations that violate a business rule return sentinel errors from errs;
// low-level storage failures are returned wrapped and never panic.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/scoutpluse/scoutsync/internal/bus"
	"github.com/scoutpluse/scoutsync/internal/errs"
	"github.com/scoutpluse/scoutsync/internal/model"
	"github.com/scoutpluse/scoutsync/internal/repository"
)

// DefaultPrefix namespaces every key the store writes.
const DefaultPrefix = "scoutpluse_"

// Store mediates all access to the durable key-value backend.
type Store struct {
	kv     repository.KV
	bus    *bus.Bus
	log    *zap.Logger
	prefix string
	now    func() time.Time
}

// New constructs a Store. A nil prefix argument is expressed by passing "".
func New(kv repository.KV, b *bus.Bus, log *zap.Logger, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{kv: kv, bus: b, log: log, prefix: prefix, now: time.Now}
}

func (s *Store) eventsKey() string   { return s.prefix + "events" }
func (s *Store) usersKey() string    { return s.prefix + "users" }
func (s *Store) settingsKey() string { return s.prefix + "settings" }
func (s *Store) syncKey() string     { return s.prefix + "sync_settings" }

func (s *Store) timestamp() string { return s.now().UTC().Format(time.RFC3339) }

// SaveEvents wraps the array in the storage envelope and writes it in one
// operation, then announces the update with a local source tag.
func (s *Store) SaveEvents(ctx context.Context, events []model.Event) error {
	if events == nil {
		events = []model.Event{}
	}
	env := model.EventsEnvelope{
		Events:      events,
		LastUpdated: s.timestamp(),
		TotalEvents: len(events),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		s.log.Error("marshal events", zap.Error(err))
		return fmt.Errorf("save events: %w", err)
	}
	if err := s.kv.Set(ctx, s.eventsKey(), raw); err != nil {
		s.log.Error("save events", zap.Error(err))
		return fmt.Errorf("save events: %w", err)
	}
	s.log.Debug("saved events", zap.Int("count", len(events)))
	s.bus.Publish(bus.Notification{
		Kind:   bus.EventsUpdated,
		Source: bus.SourceLocal,
		Events: events,
		Count:  len(events),
	})
	return nil
}

// GetEvents reads the envelope. Absent, corrupt, or unreadable data yields
// an empty slice, never an error.
func (s *Store) GetEvents(ctx context.Context) []model.Event {
	raw, ok, err := s.kv.Get(ctx, s.eventsKey())
	if err != nil {
		s.log.Error("load events", zap.Error(err))
		return []model.Event{}
	}
	if !ok {
		return []model.Event{}
	}
	var env model.EventsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.log.Error("parse stored events", zap.Error(err))
		return []model.Event{}
	}
	if env.Events == nil {
		return []model.Event{}
	}
	return env.Events
}

// AddEvent assigns identity and defaults, prepends the event (most recent
// first), and persists the new array.
func (s *Store) AddEvent(ctx context.Context, data model.Event) (model.Event, error) {
	events := s.GetEvents(ctx)

	e := data
	if e.ID == "" {
		e.ID = model.NewEventID()
	}
	e.Attendees = []string{}
	e.Status = model.StatusUpcoming
	now := s.timestamp()
	e.CreatedAt = now
	e.UpdatedAt = now

	events = append([]model.Event{e}, events...)
	if err := s.SaveEvents(ctx, events); err != nil {
		return model.Event{}, fmt.Errorf("save new event: %w", err)
	}
	s.log.Info("added event", zap.String("id", e.ID), zap.String("title", e.Title))
	return e, nil
}

// UpdateEvent shallow-merges the patch over the stored record and bumps
// updatedAt. The id is immutable.
func (s *Store) UpdateEvent(ctx context.Context, id string, patch model.EventPatch) (model.Event, error) {
	events := s.GetEvents(ctx)
	idx := -1
	for i := range events {
		if events[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return model.Event{}, errs.ErrEventNotFound
	}

	patch.Apply(&events[idx])
	events[idx].UpdatedAt = s.timestamp()

	if err := s.SaveEvents(ctx, events); err != nil {
		return model.Event{}, fmt.Errorf("update event: %w", err)
	}
	return events[idx].Clone(), nil
}

// DeleteEvent removes the event by id.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	events := s.GetEvents(ctx)
	filtered := events[:0:0]
	for _, e := range events {
		if e.ID != id {
			filtered = append(filtered, e)
		}
	}
	if len(filtered) == len(events) {
		return errs.ErrEventNotFound
	}
	if err := s.SaveEvents(ctx, filtered); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	s.log.Info("deleted event", zap.String("id", id))
	return nil
}

// JoinEvent adds userID to the attendee set, enforcing capacity and
// uniqueness, then records the back-reference on the user. The two writes
// are not transactional; a crash between them leaves the user list behind
// until the next join/leave of the same pair.
func (s *Store) JoinEvent(ctx context.Context, eventID, userID string) (model.Event, error) {
	events := s.GetEvents(ctx)
	idx := -1
	for i := range events {
		if events[i].ID == eventID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return model.Event{}, errs.ErrEventNotFound
	}
	e := &events[idx]
	if e.HasAttendee(userID) {
		return model.Event{}, errs.ErrAlreadyJoined
	}
	if len(e.Attendees) >= e.MaxAttendees {
		return model.Event{}, errs.ErrEventFull
	}
	e.Attendees = append(e.Attendees, userID)
	e.UpdatedAt = s.timestamp()

	if err := s.SaveEvents(ctx, events); err != nil {
		return model.Event{}, fmt.Errorf("join event: %w", err)
	}
	s.addJoinedEvent(ctx, userID, eventID)
	s.log.Info("user joined event", zap.String("user", userID), zap.String("event", eventID))
	return e.Clone(), nil
}

// LeaveEvent removes userID from the attendee set.
func (s *Store) LeaveEvent(ctx context.Context, eventID, userID string) (model.Event, error) {
	events := s.GetEvents(ctx)
	idx := -1
	for i := range events {
		if events[i].ID == eventID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return model.Event{}, errs.ErrEventNotFound
	}
	e := &events[idx]
	pos := -1
	for i, id := range e.Attendees {
		if id == userID {
			pos = i
			break
		}
	}
	if pos == -1 {
		return model.Event{}, errs.ErrNotJoined
	}
	e.Attendees = append(e.Attendees[:pos], e.Attendees[pos+1:]...)
	e.UpdatedAt = s.timestamp()

	if err := s.SaveEvents(ctx, events); err != nil {
		return model.Event{}, fmt.Errorf("leave event: %w", err)
	}
	s.removeJoinedEvent(ctx, userID, eventID)
	s.log.Info("user left event", zap.String("user", userID), zap.String("event", eventID))
	return e.Clone(), nil
}

// addJoinedEvent maintains the denormalized User.JoinedEvents list.
// Best-effort: the user map may not contain the attendee at all.
func (s *Store) addJoinedEvent(ctx context.Context, userID, eventID string) {
	users := s.GetUsers(ctx)
	for email, u := range users {
		if u.ID != userID {
			continue
		}
		for _, id := range u.JoinedEvents {
			if id == eventID {
				return
			}
		}
		u.JoinedEvents = append(u.JoinedEvents, eventID)
		users[email] = u
		if err := s.SaveUsers(ctx, users); err != nil {
			s.log.Warn("record joinedEvents", zap.Error(err))
		}
		return
	}
}

func (s *Store) removeJoinedEvent(ctx context.Context, userID, eventID string) {
	users := s.GetUsers(ctx)
	for email, u := range users {
		if u.ID != userID {
			continue
		}
		kept := u.JoinedEvents[:0:0]
		for _, id := range u.JoinedEvents {
			if id != eventID {
				kept = append(kept, id)
			}
		}
		u.JoinedEvents = kept
		users[email] = u
		if err := s.SaveUsers(ctx, users); err != nil {
			s.log.Warn("record joinedEvents", zap.Error(err))
		}
		return
	}
}

// SaveUsers writes the email-keyed user map.
func (s *Store) SaveUsers(ctx context.Context, users map[string]model.User) error {
	if users == nil {
		users = map[string]model.User{}
	}
	raw, err := json.Marshal(users)
	if err != nil {
		s.log.Error("marshal users", zap.Error(err))
		return fmt.Errorf("save users: %w", err)
	}
	if err := s.kv.Set(ctx, s.usersKey(), raw); err != nil {
		s.log.Error("save users", zap.Error(err))
		return fmt.Errorf("save users: %w", err)
	}
	return nil
}

// GetUsers reads the user map; any failure yields an empty map.
func (s *Store) GetUsers(ctx context.Context) map[string]model.User {
	raw, ok, err := s.kv.Get(ctx, s.usersKey())
	if err != nil || !ok {
		if err != nil {
			s.log.Error("load users", zap.Error(err))
		}
		return map[string]model.User{}
	}
	var users map[string]model.User
	if err := json.Unmarshal(raw, &users); err != nil || users == nil {
		if err != nil {
			s.log.Error("parse stored users", zap.Error(err))
		}
		return map[string]model.User{}
	}
	return users
}

// SaveSettings writes the flat settings map.
func (s *Store) SaveSettings(ctx context.Context, settings map[string]string) error {
	if settings == nil {
		settings = map[string]string{}
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	if err := s.kv.Set(ctx, s.settingsKey(), raw); err != nil {
		s.log.Error("save settings", zap.Error(err))
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// GetSettings reads the settings map; any failure yields an empty map.
func (s *Store) GetSettings(ctx context.Context) map[string]string {
	raw, ok, err := s.kv.Get(ctx, s.settingsKey())
	if err != nil || !ok {
		return map[string]string{}
	}
	var settings map[string]string
	if err := json.Unmarshal(raw, &settings); err != nil || settings == nil {
		return map[string]string{}
	}
	return settings
}

// SaveSyncSettings persists the polling configuration.
func (s *Store) SaveSyncSettings(ctx context.Context, cfg model.SyncSettings) error {
	cfg.LastUpdate = s.timestamp()
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("save sync settings: %w", err)
	}
	if err := s.kv.Set(ctx, s.syncKey(), raw); err != nil {
		return fmt.Errorf("save sync settings: %w", err)
	}
	return nil
}

// GetSyncSettings reads the polling configuration; the zero value means
// "use defaults".
func (s *Store) GetSyncSettings(ctx context.Context) model.SyncSettings {
	raw, ok, err := s.kv.Get(ctx, s.syncKey())
	if err != nil || !ok {
		return model.SyncSettings{}
	}
	var cfg model.SyncSettings
	if err := json.Unmarshal(raw, &cfg); err != nil {
		s.log.Warn("parse sync settings, using defaults", zap.Error(err))
		return model.SyncSettings{}
	}
	return cfg
}

// EventsModifiedAt exposes the events key's last write time so another
// process sharing the database can poll for external changes.
func (s *Store) EventsModifiedAt(ctx context.Context) (time.Time, bool) {
	ts, ok, err := s.kv.ModifiedAt(ctx, s.eventsKey())
	if err != nil {
		s.log.Error("events modified-at", zap.Error(err))
		return time.Time{}, false
	}
	return ts, ok
}

// ClearAll removes the three data keys.
func (s *Store) ClearAll(ctx context.Context) error {
	for _, key := range []string{s.eventsKey(), s.usersKey(), s.settingsKey()} {
		if err := s.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("clear data: %w", err)
		}
	}
	s.log.Info("cleared all local data")
	return nil
}
