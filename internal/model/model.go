// Package model defines domain entities shared by the store, the mirror
// client, and the mirror server.
package model

import "time"

// Event statuses.
const (
	StatusUpcoming  = "upcoming"
	StatusPast      = "past"
	StatusCancelled = "cancelled"
)

// User roles, ordered by privilege.
const (
	RoleGuest  = "guest"
	RoleMember = "member"
	RoleLeader = "leader"
	RoleAdmin  = "admin"
)

// Categories is the fixed set of event categories (troop sections).
var Categories = []string{"ramita", "ma3lola", "sergila", "bousra"}

// Event is a schedulable activity. Date is an ISO calendar date
// (YYYY-MM-DD), Time is HH:MM. Timestamps are strings on the wire because
// the client writes RFC 3339 and the server writes "2006-01-02 15:04:05";
// neither side interprets the other's format.
type Event struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Date         string   `json:"date"`
	Time         string   `json:"time"`
	Location     string   `json:"location"`
	Attendees    []string `json:"attendees"`
	MaxAttendees int      `json:"maxAttendees"`
	Category     string   `json:"category"`
	Image        string   `json:"image,omitempty"`
	Status       string   `json:"status"`
	Troop        string   `json:"troop,omitempty"`
	CreatedBy    string   `json:"createdBy,omitempty"`
	CreatedAt    string   `json:"createdAt,omitempty"`
	UpdatedAt    string   `json:"updatedAt,omitempty"`
}

// HasAttendee reports whether userID is on the attendee list.
func (e *Event) HasAttendee(userID string) bool {
	for _, id := range e.Attendees {
		if id == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so cached slices never alias stored state.
func (e Event) Clone() Event {
	e.Attendees = append([]string(nil), e.Attendees...)
	return e
}

// EventPatch is a shallow merge applied by Store.UpdateEvent. Nil fields are
// left untouched; the event id is immutable and has no patch field.
type EventPatch struct {
	Title        *string
	Description  *string
	Date         *string
	Time         *string
	Location     *string
	Category     *string
	Image        *string
	MaxAttendees *int
	Status       *string
	Troop        *string
}

// Apply merges the patch over the event.
func (p EventPatch) Apply(e *Event) {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Time != nil {
		e.Time = *p.Time
	}
	if p.Location != nil {
		e.Location = *p.Location
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Image != nil {
		e.Image = *p.Image
	}
	if p.MaxAttendees != nil {
		e.MaxAttendees = *p.MaxAttendees
	}
	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.Troop != nil {
		e.Troop = *p.Troop
	}
}

// User is an authenticated actor. The password is plaintext in the manifest;
// credential comparison is a plain equality check by design.
type User struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Password     string   `json:"password,omitempty"`
	Role         string   `json:"role"`
	Troop        string   `json:"troop,omitempty"`
	Phone        string   `json:"phone,omitempty"`
	JoinDate     string   `json:"joinDate,omitempty"`
	Bio          string   `json:"bio,omitempty"`
	Badges       []string `json:"badges,omitempty"`
	JoinedEvents []string `json:"joinedEvents,omitempty"`
}

// EventsEnvelope is the on-device serialized form of the events store.
// TotalEvents always equals len(Events) at write time.
type EventsEnvelope struct {
	Events      []Event `json:"events"`
	LastUpdated string  `json:"lastUpdated"`
	TotalEvents int     `json:"totalEvents"`
}

// SyncSettings is the persisted slice of the sync state: only the interval
// survives reloads; everything else is process-wide.
type SyncSettings struct {
	Enabled    bool   `json:"enabled"`
	IntervalMS int64  `json:"interval"`
	LastUpdate string `json:"lastUpdate"`
}

// Interval converts the stored millisecond value.
func (s SyncSettings) Interval() time.Duration {
	return time.Duration(s.IntervalMS) * time.Millisecond
}

// Snapshot is the full-state export/import form.
type Snapshot struct {
	Events     []Event           `json:"events,omitempty"`
	Users      map[string]User   `json:"users,omitempty"`
	Settings   map[string]string `json:"settings,omitempty"`
	Version    string            `json:"version"`
	ExportDate string            `json:"exportDate"`
}

// SnapshotVersion is the schema version written by Store.Export.
const SnapshotVersion = "1.0.0"
