// Command zoneremote is an HTTP remote control for the zones of an audio
// core.
//
// The remote pairs with one core (found via mDNS or given by address),
// tracks its zones and exposes them over HTTP:
//   - Zone listing and lookup by display name
//   - Transport commands and output muting
//   - Browse chains into the core's hierarchy
//   - A websocket event feed
//   - An optional SQLite command journal
//
// Usage:
//
//	zoneremote [flags]
//
// Flags:
//
//	-config string        Configuration file path (YAML)
//	-listen string        HTTP listen address (default ":3000")
//	-core string          Core address host:port (default: discover via mDNS)
//	-core-id string       Only pair with the discovered core with this ID
//	-interface string     Network interface for mDNS
//	-history string       SQLite command journal path
//	-state-file string    Remember the paired core in this file
//	-reset                Forget the remembered core before starting
//	-protocol-log string  Capture protocol events to this file
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-interactive          Enable interactive command mode
//	-version              Print version and exit
//
// Examples:
//
//	# Discover the core on the local network
//	zoneremote
//
//	# Connect to a known core and keep a command journal
//	zoneremote -core 192.168.1.20:9330 -history /var/lib/zoneremote/history.db
//
// HTTP API:
//
//	GET  /api?command=<cmd>&zone=<name>        Send a command (compatibility)
//	GET  /api?webradio=1&zone=<name>           Start the default radio station
//	GET  /api?fetch=1                          List zones
//	GET  /api/v1/health                        Remote status
//	GET  /api/v1/zones                         List zones
//	GET  /api/v1/zones/{zone}                  Get a zone by name or ID
//	POST /api/v1/zones/{zone}/commands/{cmd}   Send a command
//	POST /api/v1/zones/{zone}/browse           Browse (item_key, pop_all, ...)
//	POST /api/v1/zones/{zone}/play             Browse to item_key and play
//	GET  /api/v1/browse                        Cached browse list
//	GET  /api/v1/history                       Command journal
//	GET  /api/v1/events                        Websocket event feed
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zoneremote/zoneremote-go/cmd/zoneremote/interactive"
	"github.com/zoneremote/zoneremote-go/pkg/config"
	"github.com/zoneremote/zoneremote-go/pkg/core"
	"github.com/zoneremote/zoneremote-go/pkg/discovery"
	"github.com/zoneremote/zoneremote-go/pkg/history"
	"github.com/zoneremote/zoneremote-go/pkg/log"
	"github.com/zoneremote/zoneremote-go/pkg/persistence"
	"github.com/zoneremote/zoneremote-go/pkg/service"
	"github.com/zoneremote/zoneremote-go/pkg/transport"
)

// version is set at build time.
var version = "dev"

var (
	configFile  = flag.String("config", "", "Configuration file path (YAML)")
	listen      = flag.String("listen", "", "HTTP listen address (default \":3000\")")
	coreAddr    = flag.String("core", "", "Core address host:port (default: discover via mDNS)")
	coreID      = flag.String("core-id", "", "Only pair with the discovered core with this ID")
	iface       = flag.String("interface", "", "Network interface for mDNS")
	historyPath = flag.String("history", "", "SQLite command journal path")
	stateFile   = flag.String("state-file", "", "Remember the paired core in this file")
	reset       = flag.Bool("reset", false, "Forget the remembered core before starting")
	protocolLog = flag.String("protocol-log", "", "Capture protocol events to this file")
	logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error (default \"info\")")
	interact    = flag.Bool("interactive", false, "Enable interactive command mode")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("zoneremote %s\n", version)
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var console *interactive.Console
	var logOut io.Writer = os.Stderr
	if *interact {
		if console, err = interactive.New(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		// Route log output through readline to keep the prompt intact.
		logOut = console.Stdout()
	}

	level, _ := cfg.Log.SlogLevel()
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(cfg, logger, console); err != nil {
		logger.Error("zoneremote failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			return nil, err
		}
	}

	if *listen != "" {
		cfg.Listen = *listen
	}
	if *coreAddr != "" {
		cfg.Core.Address = *coreAddr
	}
	if *historyPath != "" {
		cfg.History.Path = *historyPath
	}
	if *stateFile != "" {
		cfg.Core.StateFile = *stateFile
	}
	if *protocolLog != "" {
		cfg.Log.ProtocolLog = *protocolLog
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cfg *config.Config, logger *slog.Logger, console *interactive.Console) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("zoneremote starting", "version", version, "listen", cfg.Listen)

	// Command journal
	var store *history.Store
	svcConfig := service.DefaultConfig()
	svcConfig.Hierarchy = cfg.Browse.Hierarchy
	svcConfig.PageSize = cfg.Browse.PageSize
	svcConfig.DefaultItemKey = cfg.Browse.DefaultItemKey
	svcConfig.RequestTimeout = cfg.Core.RequestTimeout
	svcConfig.Logger = logger

	if cfg.History.Path != "" {
		var err error
		store, err = history.NewStore(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("opening history: %w", err)
		}
		defer store.Close()

		if cfg.History.Retention > 0 {
			n, err := store.Prune(ctx, time.Now().Add(-cfg.History.Retention))
			if err != nil {
				logger.Warn("history prune failed", "error", err)
			} else if n > 0 {
				logger.Info("history pruned", "entries", n)
			}
		}
		svcConfig.History = store
		logger.Info("command history enabled", "path", cfg.History.Path)
	}

	// Protocol capture
	var protoLogger log.Logger
	if cfg.Log.ProtocolLog != "" {
		fileLogger, err := log.NewFileLogger(cfg.Log.ProtocolLog)
		if err != nil {
			return fmt.Errorf("opening protocol log: %w", err)
		}
		defer fileLogger.Close()
		protoLogger = fileLogger
		if logger.Enabled(ctx, slog.LevelDebug) {
			protoLogger = log.NewMultiLogger(fileLogger, log.NewSlogAdapter(logger))
		}
		logger.Info("protocol logging enabled", "path", cfg.Log.ProtocolLog)
	}

	// Pairing state
	pairedCoreID := *coreID
	var stateStore *persistence.StateStore
	if cfg.Core.StateFile != "" {
		stateStore = persistence.NewStateStore(cfg.Core.StateFile)
		if *reset {
			if err := stateStore.Clear(); err != nil {
				return fmt.Errorf("clearing state: %w", err)
			}
			logger.Info("pairing state cleared", "path", stateStore.Path())
		}
		state, err := stateStore.Load()
		if err != nil {
			logger.Warn("ignoring unreadable state file", "path", stateStore.Path(), "error", err)
		} else if state != nil && pairedCoreID == "" {
			pairedCoreID = state.PairedCoreID
			logger.Info("restored pairing", "core_id", state.PairedCoreID, "core", state.CoreName)
		}
	}

	svc := service.New(svcConfig)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("starting service: %w", err)
	}
	defer svc.Stop()

	if stateStore != nil {
		events, unsubscribe := svc.Subscribe(8)
		defer unsubscribe()
		go rememberPairing(ctx, events, stateStore, logger)
	}

	// Core session
	coreCfg := core.Config{
		RequestTimeout: cfg.Core.RequestTimeout,
		KeepAlive:      cfg.Core.KeepAlive,
		Logger:         logger,
		ProtocolLogger: protoLogger,
	}
	if cfg.Core.TLS != nil {
		tc, err := transport.NewClientTLSConfig(*cfg.Core.TLS)
		if err != nil {
			return fmt.Errorf("core TLS: %w", err)
		}
		coreCfg.TLSConfig = tc
	}

	var resolver core.Resolver
	if cfg.Core.Address != "" {
		resolver = core.StaticResolver(cfg.Core.Address)
		logger.Info("using core address", "address", cfg.Core.Address)
	} else {
		browser := discovery.NewBrowser(discovery.BrowserConfig{
			Interface: *iface,
			Timeout:   cfg.Core.DiscoveryTimeout,
			CoreID:    pairedCoreID,
			Logger:    logger,
		})
		defer browser.Stop()
		resolver = browser
		logger.Info("discovering core", "service", discovery.ServiceType)
	}

	runner := core.NewRunner(coreCfg, resolver, svc, cfg.Core.Reconnect)
	go func() {
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("core runner stopped", "error", err)
		}
	}()

	// HTTP server
	var hist History
	if store != nil {
		hist = store
	}
	srv := NewServer(ServerConfig{Listen: cfg.Listen, Version: version, Logger: logger}, svc, hist)

	srvErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "address", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
	}()

	if console != nil {
		go console.Run(ctx, svc, cancel)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info("received signal", "signal", sig)
	case err := <-srvErr:
		runErr = fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}

	return runErr
}

// rememberPairing saves every pairing to store until ctx is done.
func rememberPairing(ctx context.Context, events <-chan service.Event, store *persistence.StateStore, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Type != service.EventPaired || ev.Core == nil {
				continue
			}
			state := &persistence.RemoteState{
				PairedCoreID: ev.Core.CoreID,
				CoreName:     ev.Core.DisplayName,
				PairedAt:     ev.Time,
			}
			if err := store.Save(state); err != nil {
				logger.Warn("saving pairing state failed", "error", err)
			}
		}
	}
}
