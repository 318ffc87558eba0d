// Command scoutsync is a CLI client for the events synchronization core.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/scoutpluse/scoutsync/internal/autosync"
	"github.com/scoutpluse/scoutsync/internal/bus"
	"github.com/scoutpluse/scoutsync/internal/config"
	"github.com/scoutpluse/scoutsync/internal/manager"
	"github.com/scoutpluse/scoutsync/internal/mirror"
	"github.com/scoutpluse/scoutsync/internal/model"
	"github.com/scoutpluse/scoutsync/internal/repository/sqlite"
	"github.com/scoutpluse/scoutsync/internal/store"
)

// ---- config/token store ----

type tokenFile struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "scoutsync")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "scoutsync")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tok string, exp time.Time) error {
	_ = os.MkdirAll(cfgDir(), 0o700)
	f, err := os.Create(tokenPath())
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{Token: tok, ExpiresAt: exp})
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.Token == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (login required)")
	}
	return tf.Token, nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func usage() {
	fmt.Fprintf(os.Stderr, `scoutsync CLI
Usage:
  scoutsync [-url URL] [-token TOKEN] [-db file] [-v] <cmd> [args]

Commands:
  version
  login        -e <email> -p <password>      (saves session token)
  list
  add          -title T -desc D -date YYYY-MM-DD -time HH:MM -location L -category C -max N
  rm           -id <event-id>
  join         -id <event-id> -user <user-id>
  leave        -id <event-id> -user <user-id>
  pull                                       (one sync cycle from the server)
  push                                       (replace the server document with local data)
  sync                                       (alias for pull)
  watch                                      (poll continuously, print notifications)
  export       -file <path>
  import       -file <path>
  set-interval -d <duration>
  test
  stats
`)
	os.Exit(2)
}

// ---- wiring ----

type app struct {
	store  *store.Store
	client *mirror.Client
	mgr    *manager.Manager
	ctrl   *autosync.Controller
	bus    *bus.Bus
	log    *zap.Logger
	close  func()
}

func newApp(ctx context.Context, cfg *config.Config, baseURL, token, dbPath string, verbose bool) (*app, error) {
	logger := zap.NewNop()
	if verbose {
		logger, _ = zap.NewDevelopment()
	}

	if dbPath == "" {
		_ = os.MkdirAll(cfgDir(), 0o700)
		dbPath = filepath.Join(cfgDir(), "scoutsync.db")
	}
	kv, err := sqlite.Open(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	b := bus.New()
	st := store.New(kv, b, logger, cfg.Storage.Prefix)
	client := mirror.New(baseURL, token, cfg.Mirror.Timeout, b, logger)
	mgr := manager.New(st, client, b, logger)
	ctrl := autosync.New(st, client, b, logger, autosync.Options{
		Interval:    cfg.Sync.Interval,
		MinInterval: cfg.Sync.MinInterval,
		MaxErrors:   cfg.Sync.MaxErrors,
	})
	return &app{
		store:  st,
		client: client,
		mgr:    mgr,
		ctrl:   ctrl,
		bus:    b,
		log:    logger,
		close:  func() { _ = kv.Close() },
	}, nil
}

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands over the shared wiring.
func main() {
	cfg := config.Load()

	baseURL := flag.String("url", cfg.Mirror.BaseURL, "server base URL")
	token := flag.String("token", cfg.Mirror.Token, "security token")
	dbPath := flag.String("db", "", "local database path")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)

	if cmd == "version" {
		fmt.Printf("scoutsync %s (%s)\n", version, buildDate)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// a saved session token supersedes the shared secret
	if t, err := loadToken(); err == nil {
		*token = t
	}

	a, err := newApp(ctx, cfg, *baseURL, *token, *dbPath, *verbose)
	if err != nil {
		fail(err)
	}
	defer a.close()

	if err := run(ctx, a, cmd, flag.Args()[1:]); err != nil {
		fail(err)
	}
}

func run(ctx context.Context, a *app, cmd string, args []string) error {
	switch cmd {

	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		email := fs.String("e", "", "email")
		password := fs.String("p", "", "password")
		_ = fs.Parse(args)
		if *email == "" || *password == "" {
			return errors.New("need -e and -p")
		}
		result, err := a.client.Login(ctx, *email, *password)
		if err != nil {
			return err
		}
		if err := saveToken(result.Token, result.ExpiresAt); err != nil {
			return err
		}
		fmt.Printf("logged in as %s (%s)\n", result.User.Name, result.User.Role)

	case "list":
		if err := a.mgr.Init(ctx); err != nil {
			return err
		}
		printJSON(a.mgr.Events())

	case "add":
		fs := flag.NewFlagSet("add", flag.ExitOnError)
		title := fs.String("title", "", "title")
		desc := fs.String("desc", "", "description")
		date := fs.String("date", "", "date (YYYY-MM-DD)")
		tm := fs.String("time", "", "time (HH:MM)")
		loc := fs.String("location", "", "location")
		cat := fs.String("category", "", "category")
		max := fs.Int("max", 0, "max attendees")
		troop := fs.String("troop", "", "troop")
		_ = fs.Parse(args)

		if err := a.mgr.Init(ctx); err != nil {
			return err
		}
		added, err := a.mgr.AddEvent(ctx, model.Event{
			Title:        *title,
			Description:  *desc,
			Date:         *date,
			Time:         *tm,
			Location:     *loc,
			Category:     *cat,
			MaxAttendees: *max,
			Troop:        *troop,
		})
		if err != nil {
			return err
		}
		printJSON(added)

	case "rm":
		fs := flag.NewFlagSet("rm", flag.ExitOnError)
		id := fs.String("id", "", "event id")
		_ = fs.Parse(args)
		if *id == "" {
			return errors.New("need -id")
		}
		if err := a.mgr.Init(ctx); err != nil {
			return err
		}
		if err := a.mgr.DeleteEvent(ctx, *id); err != nil {
			return err
		}
		fmt.Println("deleted", *id)

	case "join", "leave":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "event id")
		user := fs.String("user", "", "user id")
		_ = fs.Parse(args)
		if *id == "" || *user == "" {
			return errors.New("need -id and -user")
		}
		if err := a.mgr.Init(ctx); err != nil {
			return err
		}
		var updated model.Event
		var err error
		if cmd == "join" {
			updated, err = a.mgr.JoinEvent(ctx, *id, *user)
		} else {
			updated, err = a.mgr.LeaveEvent(ctx, *id, *user)
		}
		if err != nil {
			return err
		}
		printJSON(updated)

	case "pull", "sync":
		if err := a.ctrl.SyncNow(ctx); err != nil {
			return err
		}
		printJSON(a.ctrl.Info())

	case "push":
		events := a.store.GetEvents(ctx)
		result, err := a.client.WriteEvents(ctx, events)
		if err != nil {
			return err
		}
		printJSON(result)

	case "watch":
		return watch(a)

	case "export":
		fs := flag.NewFlagSet("export", flag.ExitOnError)
		file := fs.String("file", "", "output path")
		_ = fs.Parse(args)
		if *file == "" {
			return errors.New("need -file")
		}
		snap := a.store.Export(ctx)
		raw, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(*file, raw, 0o600); err != nil {
			return err
		}
		fmt.Println("exported to", *file)

	case "import":
		fs := flag.NewFlagSet("import", flag.ExitOnError)
		file := fs.String("file", "", "input path")
		_ = fs.Parse(args)
		if *file == "" {
			return errors.New("need -file")
		}
		raw, err := os.ReadFile(*file)
		if err != nil {
			return err
		}
		var snap model.Snapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return err
		}
		if err := a.store.Import(ctx, snap); err != nil {
			return err
		}
		fmt.Printf("imported %d events\n", len(snap.Events))

	case "set-interval":
		fs := flag.NewFlagSet("set-interval", flag.ExitOnError)
		d := fs.Duration("d", 0, "polling interval")
		_ = fs.Parse(args)
		if *d <= 0 {
			return errors.New("need -d")
		}
		applied := a.ctrl.SetInterval(ctx, *d)
		fmt.Println("interval set to", applied)

	case "test":
		printJSON(map[string]any{
			"storage": a.store.SelfTest(ctx),
			"server":  a.client.TestConnection(ctx),
		})

	case "stats":
		printJSON(map[string]any{
			"storage": a.store.Stats(ctx),
			"sync":    a.ctrl.Info(),
		})

	default:
		usage()
	}
	return nil
}

// watch runs the polling loop and the cross-process watcher until
// interrupted, printing every notification.
func watch(a *app) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.mgr.Init(ctx); err != nil {
		return err
	}
	ch, cancel := a.bus.Subscribe(
		bus.DataUpdated, bus.EventsRealTimeUpdate, bus.SyncError,
		bus.SyncDisabled, bus.NetworkStatusChanged, bus.IntervalChanged,
	)
	defer cancel()

	a.mgr.Watch(ctx, manager.DefaultWatchInterval)
	a.ctrl.Start(ctx)
	defer a.ctrl.Stop()

	fmt.Println("watching (ctrl-c to stop)")
	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-ch:
			line := fmt.Sprintf("%s  %s", n.Time.Format(time.RFC3339), n.Kind)
			if n.Source != "" {
				line += "  source=" + n.Source
			}
			if n.Count > 0 {
				line += fmt.Sprintf("  count=%d", n.Count)
			}
			if n.Err != "" {
				line += "  err=" + n.Err
			}
			if n.Message != "" {
				line += "  " + n.Message
			}
			fmt.Println(line)
		}
	}
}
