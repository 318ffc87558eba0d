// Package bus provides the in-process notification bus. Components publish
// fire-and-forget notifications; any number of subscribers receive them on
// buffered channels. A slow subscriber drops notifications instead of
// blocking the publisher.
package bus

import (
	"sync"
	"time"

	"github.com/scoutpluse/scoutsync/internal/model"
)

// Kind identifies a notification type.
type Kind string

// Store and data-manager notifications.
const (
	EventsUpdated        Kind = "eventsUpdated"
	EventsLoaded         Kind = "eventsLoaded"
	EventsSaved          Kind = "eventsSaved"
	EventsSaveError      Kind = "eventsSaveError"
	EventAdded           Kind = "eventAdded"
	EventAddError        Kind = "eventAddError"
	EventDeleted         Kind = "eventDeleted"
	EventDeleteError     Kind = "eventDeleteError"
	EventJoined          Kind = "eventJoined"
	EventLeft            Kind = "eventLeft"
	EventsRealTimeUpdate Kind = "eventsRealTimeUpdate"
	ConnectionTested     Kind = "connectionTested"
)

// Mirror-client and auto-sync notifications.
const (
	NetworkStatusChanged Kind = "networkStatusChanged"
	EventsLoadError      Kind = "eventsLoadError"
	DataUpdated          Kind = "dataUpdated"
	SyncError            Kind = "syncError"
	SyncDisabled         Kind = "syncDisabled"
	SyncEnabled          Kind = "syncEnabled"
	PollStarted          Kind = "pollStarted"
	PollStopped          Kind = "pollStopped"
	ManualSync           Kind = "manualSync"
	IntervalChanged      Kind = "intervalChanged"
)

// Source tags for data notifications.
const (
	SourceLocal    = "local"
	SourceServer   = "server"
	SourceExternal = "external"
)

// Notification carries what changed. Only the fields relevant to the Kind
// are populated.
type Notification struct {
	Kind    Kind
	Source  string
	Events  []model.Event
	Event   *model.Event
	EventID string
	Count   int
	Message string
	Err     string
	Time    time.Time
}

const subscriberBuffer = 16

type subscriber struct {
	kinds map[Kind]struct{} // nil means all kinds
	ch    chan Notification
}

// Bus is safe for concurrent use.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*subscriber
	next int
}

// New constructs an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Subscribe registers interest in the given kinds (all kinds if none given)
// and returns the delivery channel plus a cancel function. The channel is
// closed on cancel.
func (b *Bus) Subscribe(kinds ...Kind) (<-chan Notification, func()) {
	s := &subscriber{ch: make(chan Notification, subscriberBuffer)}
	if len(kinds) > 0 {
		s.kinds = make(map[Kind]struct{}, len(kinds))
		for _, k := range kinds {
			s.kinds[k] = struct{}{}
		}
	}

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = s
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(s.ch)
		})
	}
	return s.ch, cancel
}

// Publish delivers n to every matching subscriber without blocking.
func (b *Bus) Publish(n Notification) {
	if n.Time.IsZero() {
		n.Time = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if s.kinds != nil {
			if _, ok := s.kinds[n.Kind]; !ok {
				continue
			}
		}
		select {
		case s.ch <- n:
		default: // subscriber is not keeping up
		}
	}
}
