package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/scoutpluse/scoutsync/internal/model"
)

// Export returns a full-state snapshot.
func (s *Store) Export(ctx context.Context) model.Snapshot {
	return model.Snapshot{
		Events:     s.GetEvents(ctx),
		Users:      s.GetUsers(ctx),
		Settings:   s.GetSettings(ctx),
		Version:    model.SnapshotVersion,
		ExportDate: s.timestamp(),
	}
}

// Import overwrites whichever sections the snapshot carries. Importing the
// same snapshot twice is a no-op the second time.
func (s *Store) Import(ctx context.Context, snap model.Snapshot) error {
	if snap.Events != nil {
		if err := s.SaveEvents(ctx, snap.Events); err != nil {
			return fmt.Errorf("import events: %w", err)
		}
	}
	if snap.Users != nil {
		if err := s.SaveUsers(ctx, snap.Users); err != nil {
			return fmt.Errorf("import users: %w", err)
		}
	}
	if snap.Settings != nil {
		if err := s.SaveSettings(ctx, snap.Settings); err != nil {
			return fmt.Errorf("import settings: %w", err)
		}
	}
	return nil
}

// Check is the result of a diagnostic probe.
type Check struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	EventsCount int    `json:"eventsCount,omitempty"`
	Timestamp   string `json:"timestamp"`
}

// SelfTest writes a throwaway probe value, reads it back, and deletes it.
// Diagnostic only; not part of normal operation.
func (s *Store) SelfTest(ctx context.Context) Check {
	key := s.prefix + "test"
	probe := fmt.Sprintf(`{"test":true,"timestamp":%d}`, time.Now().UnixMilli())

	fail := func(err error) Check {
		return Check{Success: false, Message: err.Error(), Timestamp: s.timestamp()}
	}
	if err := s.kv.Set(ctx, key, []byte(probe)); err != nil {
		return fail(err)
	}
	got, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return fail(err)
	}
	_ = s.kv.Delete(ctx, key)
	if !ok || string(got) != probe {
		return Check{Success: false, Message: "probe value did not round-trip", Timestamp: s.timestamp()}
	}
	return Check{Success: true, Message: "local storage is working properly", Timestamp: s.timestamp()}
}

// Stats summarizes what the store holds.
type Stats struct {
	TotalEvents int    `json:"totalEvents"`
	TotalUsers  int    `json:"totalUsers"`
	HasSettings bool   `json:"hasSettings"`
	UsedBytes   int    `json:"usedBytes"`
	LastUpdate  string `json:"lastUpdate"`
}

// Stats reports storage statistics across the namespaced keys.
func (s *Store) Stats(ctx context.Context) Stats {
	used := 0
	for _, key := range []string{s.eventsKey(), s.usersKey(), s.settingsKey(), s.syncKey()} {
		if raw, ok, err := s.kv.Get(ctx, key); err == nil && ok {
			used += len(raw)
		}
	}
	settings := s.GetSettings(ctx)
	return Stats{
		TotalEvents: len(s.GetEvents(ctx)),
		TotalUsers:  len(s.GetUsers(ctx)),
		HasSettings: len(settings) > 0,
		UsedBytes:   used,
		LastUpdate:  s.timestamp(),
	}
}

// EnvelopeLastUpdated returns the lastUpdated stamp of the stored envelope,
// or "" when no envelope exists.
func (s *Store) EnvelopeLastUpdated(ctx context.Context) string {
	raw, ok, err := s.kv.Get(ctx, s.eventsKey())
	if err != nil || !ok {
		return ""
	}
	var env model.EventsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ""
	}
	return env.LastUpdated
}
