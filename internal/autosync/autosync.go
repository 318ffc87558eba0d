// Package autosync runs the background polling loop that keeps the local
// store aligned with the remote mirror.
//
// Each cycle checks cheap modification metadata first, falls back to a
// content hash over the fetched body, and only then persists. An empty
// fetched array is never applied; stale local data beats no data.
package autosync

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scoutpluse/scoutsync/internal/bus"
	"github.com/scoutpluse/scoutsync/internal/errs"
	"github.com/scoutpluse/scoutsync/internal/mirror"
	"github.com/scoutpluse/scoutsync/internal/model"
	"github.com/scoutpluse/scoutsync/internal/store"
)

// Status is the controller's current state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusPaused  Status = "paused"
)

// Options tunes the polling loop. Zero fields take the defaults.
type Options struct {
	// Interval between cycles.
	Interval time.Duration
	// MinInterval is the enforced floor for SetInterval.
	MinInterval time.Duration
	// MaxErrors is the consecutive-failure ceiling; reaching it disables
	// the controller until Enable is called.
	MaxErrors int
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = 15 * time.Second
	}
	if o.MinInterval <= 0 {
		o.MinInterval = 5 * time.Second
	}
	if o.MaxErrors <= 0 {
		o.MaxErrors = 5
	}
}

// Info is a snapshot of the controller state for diagnostics.
type Info struct {
	Status       Status        `json:"status"`
	Enabled      bool          `json:"enabled"`
	Paused       bool          `json:"paused"`
	Interval     time.Duration `json:"interval"`
	ErrorCount   int           `json:"errorCount"`
	LastModified string        `json:"lastModified"`
	LastHash     string        `json:"lastHash"`
	LastSync     time.Time     `json:"lastSync"`
}

// Controller owns the polling goroutine. All exported methods are safe for
// concurrent use; cycles never overlap.
type Controller struct {
	store  *store.Store
	client *mirror.Client
	bus    *bus.Bus
	log    *zap.Logger

	mu           sync.Mutex
	opts         Options
	enabled      bool
	paused       bool
	status       Status
	lastModified string
	lastHash     string
	errorCount   int
	inFlight     bool
	lastSync     time.Time

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// New constructs a Controller. Call Start to begin polling.
func New(st *store.Store, client *mirror.Client, b *bus.Bus, log *zap.Logger, opts Options) *Controller {
	opts.defaults()
	return &Controller{
		store:   st,
		client:  client,
		bus:     b,
		log:     log,
		opts:    opts,
		enabled: true,
		status:  StatusIdle,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start restores the persisted interval, runs one cycle immediately, and
// launches the polling loop. Start must be called at most once.
func (c *Controller) Start(ctx context.Context) {
	if saved := c.store.GetSyncSettings(ctx); saved.IntervalMS > 0 {
		d := saved.Interval()
		if d < c.opts.MinInterval {
			d = c.opts.MinInterval
		}
		c.mu.Lock()
		c.opts.Interval = d
		c.mu.Unlock()
	}
	c.log.Info("auto sync started", zap.Duration("interval", c.interval()))
	c.bus.Publish(bus.Notification{Kind: bus.PollStarted})
	go c.run(ctx)
}

// Stop terminates the polling loop and waits for it to exit.
func (c *Controller) Stop() {
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
	<-c.done
	c.bus.Publish(bus.Notification{Kind: bus.PollStopped})
}

func (c *Controller) run(ctx context.Context) {
	defer close(c.done)
	c.cycle(ctx)
	for {
		timer := time.NewTimer(c.delay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-c.stop:
			timer.Stop()
			return
		case <-c.wake:
			timer.Stop()
		case <-timer.C:
			c.cycle(ctx)
		}
	}
}

// delay is the time until the next cycle: the configured interval, doubled
// while consecutive errors persist.
func (c *Controller) delay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.opts.Interval
	if c.errorCount > 0 {
		d *= 2
	}
	return d
}

func (c *Controller) interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts.Interval
}

// cycle runs one scheduled poll, skipping when disabled, paused, offline,
// or when a previous cycle is still in flight.
func (c *Controller) cycle(ctx context.Context) {
	c.mu.Lock()
	if !c.enabled || c.paused || c.inFlight {
		c.mu.Unlock()
		return
	}
	c.inFlight = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	if !c.client.Online() {
		return
	}
	if err := c.syncOnce(ctx); err != nil {
		c.recordFailure(err)
	}
}

// SyncNow runs one cycle outside the schedule. The timer is not altered.
func (c *Controller) SyncNow(ctx context.Context) error {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return nil
	}
	c.inFlight = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	c.bus.Publish(bus.Notification{Kind: bus.ManualSync})
	if !c.client.Online() {
		return errs.ErrOffline
	}
	if err := c.syncOnce(ctx); err != nil {
		c.recordFailure(err)
		return err
	}
	return nil
}

// syncOnce performs the metadata probe, the conditional fetch, the hash
// compare, and the guarded persist, in that order.
func (c *Controller) syncOnce(ctx context.Context) error {
	c.setStatus(StatusSyncing)

	marker, err := c.client.Head(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	unchanged := marker != "" && marker == c.lastModified
	c.mu.Unlock()
	if unchanged {
		c.log.Debug("remote unchanged", zap.String("lastModified", marker))
		c.recordSuccess()
		return nil
	}

	result, err := c.client.ReadEvents(ctx)
	if err != nil {
		return err
	}
	body, err := json.Marshal(result.Events)
	if err != nil {
		return err
	}
	hash := contentHash(body)

	c.mu.Lock()
	sameContent := hash == c.lastHash && c.lastHash != ""
	c.mu.Unlock()
	if sameContent {
		c.rememberMarker(marker, hash)
		c.recordSuccess()
		return nil
	}

	if len(result.Events) == 0 {
		// an empty remote document is treated as suspect, never applied
		c.log.Warn("skipping update, remote returned no events")
		c.rememberMarker(marker, hash)
		c.recordSuccess()
		return nil
	}

	if err := c.store.SaveEvents(ctx, result.Events); err != nil {
		return err
	}
	c.rememberMarker(marker, hash)
	c.recordSuccess()
	c.log.Info("applied remote update", zap.Int("count", len(result.Events)))
	c.bus.Publish(bus.Notification{
		Kind:   bus.DataUpdated,
		Source: bus.SourceServer,
		Events: result.Events,
		Count:  len(result.Events),
	})
	return nil
}

func (c *Controller) rememberMarker(marker, hash string) {
	c.mu.Lock()
	c.lastModified = marker
	c.lastHash = hash
	c.mu.Unlock()
}

func (c *Controller) recordSuccess() {
	c.mu.Lock()
	c.errorCount = 0
	c.status = StatusSuccess
	c.lastSync = time.Now()
	c.mu.Unlock()
}

func (c *Controller) recordFailure(err error) {
	c.mu.Lock()
	c.errorCount++
	c.status = StatusError
	count := c.errorCount
	ceiling := count >= c.opts.MaxErrors
	if ceiling {
		c.enabled = false
	}
	c.mu.Unlock()

	if ceiling {
		c.log.Error("auto sync disabled after repeated failures",
			zap.Int("errors", count), zap.Error(err))
		c.bus.Publish(bus.Notification{Kind: bus.SyncDisabled, Count: count, Err: err.Error()})
		return
	}
	c.log.Warn("sync cycle failed", zap.Int("errors", count), zap.Error(err))
	c.bus.Publish(bus.Notification{Kind: bus.SyncError, Count: count, Err: err.Error()})
}

func (c *Controller) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

// SetOnline pauses polling while offline and resumes with a fresh cycle
// when connectivity returns.
func (c *Controller) SetOnline(ctx context.Context, online bool) {
	c.client.SetOnline(online)
	c.mu.Lock()
	wasPaused := c.paused
	c.paused = !online
	if !online {
		c.status = StatusPaused
	}
	c.mu.Unlock()

	if online && wasPaused {
		c.log.Info("connectivity restored, resuming sync")
		c.cycle(ctx)
	}
}

// SetInterval applies and persists a new polling interval, clamped to the
// configured floor. The running timer is rescheduled.
func (c *Controller) SetInterval(ctx context.Context, d time.Duration) time.Duration {
	c.mu.Lock()
	if d < c.opts.MinInterval {
		d = c.opts.MinInterval
	}
	c.opts.Interval = d
	enabled := c.enabled
	c.mu.Unlock()

	if err := c.store.SaveSyncSettings(ctx, model.SyncSettings{
		Enabled:    enabled,
		IntervalMS: d.Milliseconds(),
	}); err != nil {
		c.log.Warn("persist sync interval", zap.Error(err))
	}
	c.bus.Publish(bus.Notification{Kind: bus.IntervalChanged, Message: d.String()})
	select {
	case c.wake <- struct{}{}:
	default:
	}
	return d
}

// Enable clears the error state and re-enables polling after a
// self-disable.
func (c *Controller) Enable() {
	c.mu.Lock()
	c.enabled = true
	c.errorCount = 0
	c.status = StatusIdle
	c.mu.Unlock()
	c.bus.Publish(bus.Notification{Kind: bus.SyncEnabled})
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// ResetErrors clears the consecutive-failure counter without changing the
// enabled flag.
func (c *Controller) ResetErrors() {
	c.mu.Lock()
	c.errorCount = 0
	c.mu.Unlock()
}

// Info returns a snapshot of the controller state.
func (c *Controller) Info() Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Info{
		Status:       c.status,
		Enabled:      c.enabled,
		Paused:       c.paused,
		Interval:     c.opts.Interval,
		ErrorCount:   c.errorCount,
		LastModified: c.lastModified,
		LastHash:     c.lastHash,
		LastSync:     c.lastSync,
	}
}

// contentHash computes a 32-bit rolling hash over the body and renders it
// in decimal, matching the historical format stored alongside the data.
func contentHash(b []byte) string {
	var h int32
	for _, c := range b {
		h = (h << 5) - h + int32(c)
	}
	return strconv.FormatInt(int64(h), 10)
}
