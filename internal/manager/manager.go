// Package manager is the façade the application surface talks to. It owns
// the in-memory copy of the current events and users, delegates mutation to
// the persistent store, and republishes results as notifications.
package manager

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scoutpluse/scoutsync/internal/bus"
	"github.com/scoutpluse/scoutsync/internal/mirror"
	"github.com/scoutpluse/scoutsync/internal/model"
	"github.com/scoutpluse/scoutsync/internal/store"
)

// DefaultWatchInterval is how often the watcher polls for writes made by
// another process sharing the database.
const DefaultWatchInterval = 2 * time.Second

// Manager mediates between callers and the persistent store.
type Manager struct {
	store  *store.Store
	client *mirror.Client
	bus    *bus.Bus
	log    *zap.Logger

	mu     sync.RWMutex
	events []model.Event
	users  map[string]model.User
	seen   time.Time
}

// New constructs a Manager. Call Init before use.
func New(st *store.Store, client *mirror.Client, b *bus.Bus, log *zap.Logger) *Manager {
	return &Manager{
		store:  st,
		client: client,
		bus:    b,
		log:    log,
		users:  map[string]model.User{},
	}
}

// Init loads events and users from the store. An empty store is filled from
// the mirror; if the mirror is unreachable the demo data seeds it instead,
// so the application always starts with something to show.
func (m *Manager) Init(ctx context.Context) error {
	events := m.store.GetEvents(ctx)
	if len(events) == 0 {
		if result, err := m.client.ReadEvents(ctx); err == nil && len(result.Events) > 0 {
			events = result.Events
			m.log.Info("seeded store from server", zap.Int("count", len(events)))
		} else {
			if err != nil {
				m.log.Warn("initial server read failed, using demo data", zap.Error(err))
			}
			events = DemoEvents()
		}
		if err := m.store.SaveEvents(ctx, events); err != nil {
			return err
		}
	}

	users := m.store.GetUsers(ctx)
	if len(users) == 0 {
		users = DemoUsers()
		if err := m.store.SaveUsers(ctx, users); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.events = events
	m.users = users
	m.mu.Unlock()
	if ts, ok := m.store.EventsModifiedAt(ctx); ok {
		m.setSeen(ts)
	}

	m.log.Info("data manager initialized",
		zap.Int("events", len(events)), zap.Int("users", len(users)))
	m.bus.Publish(bus.Notification{
		Kind:   bus.EventsLoaded,
		Source: bus.SourceLocal,
		Events: events,
		Count:  len(events),
	})
	return nil
}

// Events returns the cached events array.
func (m *Manager) Events() []model.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Event, len(m.events))
	for i, e := range m.events {
		out[i] = e.Clone()
	}
	return out
}

// Users returns the cached user map.
func (m *Manager) Users() map[string]model.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]model.User, len(m.users))
	for k, v := range m.users {
		out[k] = v
	}
	return out
}

func (m *Manager) cacheEvents(ctx context.Context) []model.Event {
	events := m.store.GetEvents(ctx)
	m.mu.Lock()
	m.events = events
	m.mu.Unlock()
	if ts, ok := m.store.EventsModifiedAt(ctx); ok {
		m.setSeen(ts)
	}
	return events
}

// ReadEvents reloads the cache from the store.
func (m *Manager) ReadEvents(ctx context.Context) []model.Event {
	events := m.cacheEvents(ctx)
	m.bus.Publish(bus.Notification{
		Kind:   bus.EventsLoaded,
		Source: bus.SourceLocal,
		Events: events,
		Count:  len(events),
	})
	return events
}

// WriteEvents replaces the whole collection.
func (m *Manager) WriteEvents(ctx context.Context, events []model.Event) error {
	if err := m.store.SaveEvents(ctx, events); err != nil {
		m.bus.Publish(bus.Notification{Kind: bus.EventsSaveError, Err: err.Error()})
		return err
	}
	m.cacheEvents(ctx)
	m.bus.Publish(bus.Notification{Kind: bus.EventsSaved, Count: len(events)})
	return nil
}

// AddEvent validates and stores a new event.
func (m *Manager) AddEvent(ctx context.Context, data model.Event) (model.Event, error) {
	if err := model.ValidateEvent(data); err != nil {
		m.bus.Publish(bus.Notification{Kind: bus.EventAddError, Err: err.Error()})
		return model.Event{}, err
	}
	added, err := m.store.AddEvent(ctx, data)
	if err != nil {
		m.bus.Publish(bus.Notification{Kind: bus.EventAddError, Err: err.Error()})
		return model.Event{}, err
	}
	m.cacheEvents(ctx)
	m.bus.Publish(bus.Notification{Kind: bus.EventAdded, Event: &added, EventID: added.ID})
	return added, nil
}

// UpdateEvent applies a patch to a stored event.
func (m *Manager) UpdateEvent(ctx context.Context, id string, patch model.EventPatch) (model.Event, error) {
	updated, err := m.store.UpdateEvent(ctx, id, patch)
	if err != nil {
		return model.Event{}, err
	}
	m.cacheEvents(ctx)
	m.bus.Publish(bus.Notification{Kind: bus.EventsUpdated, Source: bus.SourceLocal, EventID: id})
	return updated, nil
}

// DeleteEvent removes an event by id.
func (m *Manager) DeleteEvent(ctx context.Context, id string) error {
	if err := m.store.DeleteEvent(ctx, id); err != nil {
		m.bus.Publish(bus.Notification{Kind: bus.EventDeleteError, EventID: id, Err: err.Error()})
		return err
	}
	m.cacheEvents(ctx)
	m.bus.Publish(bus.Notification{Kind: bus.EventDeleted, EventID: id})
	return nil
}

// JoinEvent adds the user to the event's attendees.
func (m *Manager) JoinEvent(ctx context.Context, eventID, userID string) (model.Event, error) {
	updated, err := m.store.JoinEvent(ctx, eventID, userID)
	if err != nil {
		return model.Event{}, err
	}
	m.refreshUsers(ctx)
	m.cacheEvents(ctx)
	m.bus.Publish(bus.Notification{Kind: bus.EventJoined, Event: &updated, EventID: eventID})
	return updated, nil
}

// LeaveEvent removes the user from the event's attendees.
func (m *Manager) LeaveEvent(ctx context.Context, eventID, userID string) (model.Event, error) {
	updated, err := m.store.LeaveEvent(ctx, eventID, userID)
	if err != nil {
		return model.Event{}, err
	}
	m.refreshUsers(ctx)
	m.cacheEvents(ctx)
	m.bus.Publish(bus.Notification{Kind: bus.EventLeft, Event: &updated, EventID: eventID})
	return updated, nil
}

func (m *Manager) refreshUsers(ctx context.Context) {
	users := m.store.GetUsers(ctx)
	m.mu.Lock()
	m.users = users
	m.mu.Unlock()
}

// TestConnection probes the storage backend and reports the outcome
// without failing.
func (m *Manager) TestConnection(ctx context.Context) store.Check {
	check := m.store.SelfTest(ctx)
	m.bus.Publish(bus.Notification{
		Kind:    bus.ConnectionTested,
		Message: check.Message,
		Count:   check.EventsCount,
	})
	return check
}

func (m *Manager) setSeen(ts time.Time) {
	m.mu.Lock()
	if ts.After(m.seen) {
		m.seen = ts
	}
	m.mu.Unlock()
}

func (m *Manager) seenAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.seen
}

// Watch polls the events key's modification time so writes made by another
// process become visible here. Writes made through this process advance the
// marker before the watcher can observe them, so only foreign writes
// produce a real-time-update notification. The goroutine exits with ctx.
func (m *Manager) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	own, cancel := m.bus.Subscribe(bus.EventsUpdated)
	go func() {
		defer cancel()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-own:
				if ts, ok := m.store.EventsModifiedAt(ctx); ok {
					m.setSeen(ts)
				}
			case <-ticker.C:
				// account for queued own-write notifications before
				// comparing timestamps
			drain:
				for {
					select {
					case <-own:
						if ts, ok := m.store.EventsModifiedAt(ctx); ok {
							m.setSeen(ts)
						}
					default:
						break drain
					}
				}
				ts, ok := m.store.EventsModifiedAt(ctx)
				if !ok || !ts.After(m.seenAt()) {
					continue
				}
				m.setSeen(ts)
				events := m.store.GetEvents(ctx)
				m.mu.Lock()
				m.events = events
				m.mu.Unlock()
				m.log.Info("data changed outside this process", zap.Int("count", len(events)))
				m.bus.Publish(bus.Notification{
					Kind:   bus.EventsRealTimeUpdate,
					Source: bus.SourceExternal,
					Events: events,
					Count:  len(events),
				})
			}
		}
	}()
}
