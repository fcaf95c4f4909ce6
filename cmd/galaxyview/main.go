package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/galaxycore/galaxyview/internal/api"
	"github.com/galaxycore/galaxyview/internal/archive"
	"github.com/galaxycore/galaxyview/internal/config"
	"github.com/galaxycore/galaxyview/internal/controls"
	"github.com/galaxycore/galaxyview/internal/dispatcher"
	"github.com/galaxycore/galaxyview/internal/influx"
	"github.com/galaxycore/galaxyview/internal/logging"
	"github.com/galaxycore/galaxyview/internal/notice"
	"github.com/galaxycore/galaxyview/internal/notify"
	intOtel "github.com/galaxycore/galaxyview/internal/otel"
	"github.com/galaxycore/galaxyview/internal/poller"
	"github.com/galaxycore/galaxyview/internal/render/ebitenview"
	"github.com/galaxycore/galaxyview/internal/session"
	"github.com/galaxycore/galaxyview/internal/snapshot"
	"github.com/galaxycore/galaxyview/pkg/core"
	"github.com/galaxycore/galaxyview/pkg/streaming"

	"github.com/joho/godotenv"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	AppName string = "galaxyview"
)

// global variables
var (
	SessionStartTime time.Time = time.Now()

	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	LogFile    *os.File
	MetricFile *os.File

	// Services
	apiClient       *api.Client
	snapshotCache   *snapshot.Cache
	archiveStore    archive.Store
	influxManager   *influx.Manager
	pollerService   *poller.Service
	notifyListener  *notify.Listener
	eventDispatcher *dispatcher.Dispatcher
	inbox           *notice.Inbox
	gameSession     *session.Session

	playerID core.PlayerID
)

// sessionRef lets logging read the session before it exists.
type sessionRef struct {
	s atomic.Pointer[session.Session]
}

func (r *sessionRef) LogState() (int, string) {
	if s := r.s.Load(); s != nil {
		return s.LogState()
	}
	return 0, ""
}

func main() {
	configDir := flag.String("config", ".", "directory containing "+config.FileName)
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	if err := run(*configDir, *envFile); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

func run(configDir, envFile string) error {
	// a missing .env file is fine
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}

	ref := &sessionRef{}
	if err := setupLogging(configDir, ref); err != nil {
		return err
	}
	defer shutdownLogging()

	Logger.Info("Starting up...", "version", CurrentVersion, "buildDate", BuildDate)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := initServices(ctx); err != nil {
		return err
	}
	defer closeServices()

	ref.s.Store(gameSession)

	g, gctx := errgroup.WithContext(ctx)
	if err := pollerService.Start(); err != nil {
		return fmt.Errorf("start poller: %w", err)
	}
	if notifyListener != nil {
		if err := notifyListener.Start(); err != nil {
			// the poller still keeps the cache fresh
			Logger.Warn("Notify listener not started", "error", err)
		}
	}
	if addr := config.GetString("debugAddr"); addr != "" {
		srv := newDebugServer(addr)
		g.Go(func() error { return serveDebug(gctx, srv) })
	}

	win := config.GetWindowConfig()
	game := ebitenview.New(gameSession, controls.New(gameSession, controls.DefaultSettings()), Logger)
	go func() {
		<-gctx.Done()
		game.Quit()
	}()

	// ebiten must own the main goroutine
	runErr := ebitenview.Run(game, win.Title, win.Width, win.Height)
	stop()
	if err := g.Wait(); err != nil {
		Logger.Error("Background service failed", "error", err)
	}
	if runErr != nil {
		return fmt.Errorf("run window: %w", runErr)
	}
	Logger.Info("Shut down cleanly")
	return nil
}

func setupLogging(configDir string, ref *sessionRef) error {
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "info", nil)
	Logger = SlogManager.Logger()

	if err := config.Load(configDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config", "dir", configDir)
	}

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("create logs dir: %w", err)
	}
	path := logging.LogFilePath(logsDir, AppName, SessionStartTime)
	var err error
	LogFile, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", path, err)
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		metricsPath := filepath.Join(logsDir, fmt.Sprintf("%s.%s.metrics.json", AppName, SessionStartTime.Format("20060102_150405")))
		MetricFile, err = os.OpenFile(metricsPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			Logger.Error("Failed to open metrics file", "error", err, "path", metricsPath)
		}
		cfg := intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    LogFile,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		}
		if MetricFile != nil {
			cfg.MetricWriter = MetricFile
		}
		OTelProvider, err = intOtel.New(cfg)
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			Logger.Info("OTel provider initialized", "file", path, "endpoint", otelCfg.Endpoint)
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}

	level := config.GetString("logLevel")
	var extra []slog.Handler
	if gl := config.GetGraylogConfig(); gl.Enabled {
		w, err := logging.NewGELFWriter(gl.Address)
		if err != nil {
			Logger.Error("Failed to set up Graylog", "error", err, "address", gl.Address)
		} else {
			extra = append(extra, logging.NewGELFHandler(w, level))
		}
	}

	SlogManager.Session = ref
	SlogManager.Setup(LogFile, level, otelLogProvider, extra...)
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", path)
	return nil
}

func initServices(ctx context.Context) error {
	var err error

	playerID = core.PlayerID(config.GetString("playerId"))
	if env := os.Getenv("GALAXYVIEW_PLAYER"); env != "" {
		playerID = core.PlayerID(env)
	}

	apiCfg := config.GetAPIConfig()
	if env := os.Getenv("GALAXYVIEW_TOKEN"); env != "" {
		apiCfg.Token = env
	}
	apiClient = api.New(apiCfg.ServerURL, apiCfg.Token).WithTimeout(apiCfg.Timeout)
	if err := apiClient.Healthcheck(ctx); err != nil {
		// keep going, the cache reports itself stale until the backend answers
		Logger.Warn("Backend healthcheck failed", "error", err, "url", apiCfg.ServerURL)
	}

	snapshotCache, err = snapshot.New(apiClient, Logger.With("component", "snapshot"))
	if err != nil {
		return fmt.Errorf("create snapshot cache: %w", err)
	}

	if err := initArchive(ctx); err != nil {
		Logger.Error("Snapshot archive unavailable", "error", err)
	}
	initTelemetry(ctx)

	eventDispatcher, err = dispatcher.New(logging.NewDispatcherLogger(SlogManager.Zerolog("dispatcher")))
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}

	pollCfg := config.GetPollConfig()
	pollerService = poller.NewService(poller.Dependencies{
		Cache:         snapshotCache,
		Logger:        Logger.With("component", "poller"),
		Interval:      pollCfg.Interval,
		RetryInterval: pollCfg.RetryInterval,
		Limit:         rate.Limit(pollCfg.MaxPerSecond),
		Burst:         pollCfg.Burst,
		OnResult: func(err error) {
			if influxManager != nil {
				influxManager.RecordRefresh(snapshotCache.Status().Turn, err)
			}
		},
	})

	inbox = notice.NewInbox(5, 6*time.Second)
	if pollCfg.NotifyEnabled {
		initNotify(apiCfg, pollCfg)
	}

	win := config.GetWindowConfig()
	deps := session.Dependencies{
		Cache:         snapshotCache,
		Submitter:     apiClient,
		Dispatcher:    eventDispatcher,
		Inbox:         inbox,
		Logger:        Logger.With("component", "session"),
		Refresh:       pollerService.Trigger,
		Viewport:      config.GetViewportConfig(),
		Layout:        config.GetLayoutConfig(),
		Width:         float64(win.Width),
		Height:        float64(win.Height),
		SubmitTimeout: apiCfg.SubmitTimeout,
	}
	if influxManager != nil {
		deps.Telemetry = influxManager
	}
	gameSession, err = session.New(deps)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func initTelemetry(ctx context.Context) {
	cfg := config.GetInfluxConfig()
	if !cfg.Enabled {
		return
	}
	backup := filepath.Join(config.GetString("logsDir"),
		fmt.Sprintf("%s.%s.influx.gz", AppName, SessionStartTime.Format("20060102_150405")))
	m := influx.NewManager(cfg, SlogManager.Zerolog("influx"), backup)
	if err := m.Connect(ctx); err != nil {
		Logger.Error("Failed to set up InfluxDB telemetry", "error", err)
		return
	}
	influxManager = m
}

func initNotify(apiCfg config.APIConfig, pollCfg config.PollConfig) {
	url, err := notify.URLFromBase(apiCfg.ServerURL, pollCfg.NotifyPath)
	if err != nil {
		Logger.Error("Invalid notify URL, relying on polling", "error", err)
		return
	}
	notifyListener = notify.New(notify.Options{
		URL:            url,
		Token:          apiCfg.Token,
		PlayerID:       playerID,
		InitialBackoff: pollCfg.InitialBackoff,
		MaxBackoff:     pollCfg.MaxBackoff,
	}, Logger.With("component", "notify"))
	notifyListener.OnSnapshotChanged(func(turn int) {
		Logger.Debug("Snapshot changed", "turn", turn)
		pollerService.Trigger()
	})
	notifyListener.OnReconnect(pollerService.Trigger)
	notifyListener.OnCommandResolved(func(p streaming.CommandResolvedPayload) {
		pollerService.Trigger()
		if p.OK {
			// the submit path already showed the acceptance
			Logger.Debug("Command resolved", "kind", p.Kind)
			return
		}
		inbox.Post(resolvedNotice(p, time.Now()))
	})
}

// resolvedNotice reports a late rejection in place of the command's
// earlier acceptance.
func resolvedNotice(p streaming.CommandResolvedPayload, at time.Time) notice.Notice {
	n := notice.Notice{Level: notice.Rejected, Kind: p.Kind, Message: p.Message, At: at, Ref: notice.CommandRef(p.Kind)}
	if n.Message == "" {
		n.Message = p.Kind + " " + n.Level.String()
	}
	return n
}

func closeServices() {
	if notifyListener != nil {
		if err := notifyListener.Close(); err != nil {
			Logger.Warn("Failed to close notify listener", "error", err)
		}
	}
	if pollerService != nil {
		pollerService.Stop()
	}
	if gameSession != nil {
		gameSession.Close()
	}
	if eventDispatcher != nil {
		eventDispatcher.Close()
	}
	if archiveStore != nil {
		if err := archiveStore.Close(); err != nil {
			Logger.Warn("Failed to close archive", "error", err)
		}
	}
	if influxManager != nil {
		if err := influxManager.Close(); err != nil {
			Logger.Warn("Failed to close InfluxDB telemetry", "error", err)
		}
	}
}

func shutdownLogging() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := SlogManager.Flush(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "flush logs: %v\n", err)
	}
	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "otel shutdown: %v\n", err)
		}
	}
	for _, f := range []*os.File{MetricFile, LogFile} {
		if f != nil {
			_ = f.Close()
		}
	}
}
