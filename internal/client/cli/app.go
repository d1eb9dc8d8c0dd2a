package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/dmitrijs2005/lifekeeper/internal/client/backup"
	"github.com/dmitrijs2005/lifekeeper/internal/client/client"
	"github.com/dmitrijs2005/lifekeeper/internal/client/config"
	"github.com/dmitrijs2005/lifekeeper/internal/client/connectivity"
	"github.com/dmitrijs2005/lifekeeper/internal/client/domains"
	"github.com/dmitrijs2005/lifekeeper/internal/client/metrics"
	"github.com/dmitrijs2005/lifekeeper/internal/client/repositories/kv"
	"github.com/dmitrijs2005/lifekeeper/internal/client/services"
	"github.com/dmitrijs2005/lifekeeper/internal/client/session"
	"github.com/dmitrijs2005/lifekeeper/internal/filex"
	"github.com/dmitrijs2005/lifekeeper/internal/logging"

	_ "modernc.org/sqlite"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// registry is the part of *domains.Registry the app uses.
type registry interface {
	Names() []string
	Get(name string) (domains.Binding, error)
	SyncAll(ctx context.Context) (map[string]services.SyncResult, error)
	Pending(ctx context.Context) (map[string]int, error)
	Close()
}

// network is the part of *connectivity.Monitor the app uses.
type network interface {
	Online() bool
	Check(ctx context.Context) bool
	Run(ctx context.Context)
}

type backupService interface {
	Backup(ctx context.Context) (string, error)
	Restore(ctx context.Context, key string) (int, error)
	List(ctx context.Context) ([]string, error)
}

type App struct {
	config      *config.Config
	authService services.AuthService
	domains     registry
	net         network
	backups     backupService
	metrics     *metrics.Collector
	log         logging.Logger

	userName string
	loggedIn bool
	reader   *bufio.Reader
	out      io.Writer

	closers []func() error
}

// NewApp opens the local database and wires every client component.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	for _, p := range []string{c.DatabasePath, c.LogFile} {
		if _, err := filex.EnsureParentDir(p); err != nil {
			return nil, err
		}
	}

	log, err := newLogger(c)
	if err != nil {
		return nil, err
	}

	db, err := client.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		log.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}

	store := kv.NewSQLiteStore(db)
	sess := session.NewManager(store, log)

	api, err := client.NewHTTPClient(client.Options{
		BaseURL:           c.ServerURL,
		Timeout:           c.RequestTimeout,
		RequestsPerSecond: c.RequestsPerSecond,
		Tokens:            sess,
		Logger:            log,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &App{
		config:      c,
		authService: services.NewAuthService(api, sess, store, log),
		metrics:     metrics.NewCollector("lifekeeper"),
		log:         log,
		reader:      bufio.NewReader(os.Stdin),
		out:         os.Stdout,
		closers:     []func() error{db.Close},
	}
	if z, ok := log.(*logging.ZapLogger); ok {
		a.closers = append([]func() error{z.Sync}, a.closers...)
	}

	prober, err := a.newProber(api)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	monitor := connectivity.NewMonitor(prober, c.OnlineCheckInterval, log)
	a.net = monitor

	a.domains = domains.NewRegistry(ctx, domains.Deps{
		Store:       store,
		Client:      api,
		Net:         monitor,
		Metrics:     a.metrics,
		Logger:      log,
		MaxAttempts: c.MaxAttempts,
		Debounce:    c.SyncDebounce,
	})

	if c.BackupEnabled() {
		s3c, err := backup.NewS3Client(ctx, backup.S3Config{
			Region:    c.Backup.Region,
			Endpoint:  c.Backup.Endpoint,
			AccessKey: c.Backup.AccessKey,
			SecretKey: c.Backup.SecretKey,
		})
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.backups = backup.NewService(store, s3c, c.Backup.Bucket, c.Backup.Prefix, log)
	}

	return a, nil
}

func newLogger(c *config.Config) (logging.Logger, error) {
	if c.LogFile == "" {
		return logging.NewTextSlogLogger(os.Stderr, c.LogLevel), nil
	}
	return logging.NewZapFromOptions(logging.ZapOptions{Level: c.LogLevel, File: c.LogFile})
}

func (a *App) newProber(api client.Client) (connectivity.Prober, error) {
	if a.config.HealthCheck != config.HealthCheckGRPC {
		return connectivity.NewHTTPProber(api), nil
	}
	p, err := connectivity.NewGRPCProber(a.config.GRPCHealthAddr, "")
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, p.Close)
	return p, nil
}

// Run starts the optional metrics endpoint and backup schedule, then the
// REPL. It returns when the user exits.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	if a.config.MetricsAddr != "" {
		a.serveMetrics(ctx)
	}

	if a.backups != nil && a.config.Backup.Schedule != "" {
		sched, err := backup.NewScheduler(ctx, a.config.Backup.Schedule, a.backups, a.log)
		if err != nil {
			return err
		}
		sched.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			sched.Stop(stopCtx)
		}()
	}

	a.Root(ctx)
	return nil
}

func (a *App) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	srv := &http.Server{Addr: a.config.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error(ctx, "metrics server stopped", "error", err)
		}
	}()

	a.closers = append(a.closers, func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// Close waits for background syncs, then releases resources in reverse
// order of acquisition.
func (a *App) Close() error {
	if a.domains != nil {
		a.domains.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && !errors.Is(err, sql.ErrConnDone) {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) mode() Mode {
	if a.net != nil && a.net.Online() {
		return ModeOnline
	}
	return ModeOffline
}

func (a *App) isLoggedIn() bool {
	return a.loggedIn
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
