package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/shepherd/cmd"
	"github.com/smazurov/shepherd/internal/api"
	"github.com/smazurov/shepherd/internal/config"
	"github.com/smazurov/shepherd/internal/events"
	"github.com/smazurov/shepherd/internal/logging"
	"github.com/smazurov/shepherd/internal/metrics"
	"github.com/smazurov/shepherd/internal/metrics/exporters"
	"github.com/smazurov/shepherd/internal/queue"
	"github.com/smazurov/shepherd/internal/state"
	"github.com/smazurov/shepherd/internal/supervisor"
	"github.com/smazurov/shepherd/internal/systemd"
	"github.com/smazurov/shepherd/internal/worker"
)

// stateFieldOutputFolder holds the configured archive folder in the shared
// state so required-ness predicates (and config reload) see one value.
const stateFieldOutputFolder = "output_folder"

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`
	Debug  bool   `help:"Interruptible worker iterations and verbose diagnostics" default:"false" toml:"debug" env:"DEBUG"`

	// Server settings
	Port string `help:"API port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Upstream settings
	UpstreamHost string `help:"Upstream service host" default:"127.0.0.1" toml:"upstream.host" env:"UPSTREAM_HOST"`
	UpstreamPort int    `help:"Upstream service port" default:"9999" toml:"upstream.port" env:"UPSTREAM_PORT"`

	// Archive settings
	OutputFolder string `help:"Folder for channel snapshots, empty disables the archiver" default:"" toml:"archive.output_folder" env:"OUTPUT_FOLDER"`

	// Supervisor settings
	PoolSize    int    `help:"Maximum concurrent workers" default:"8" toml:"supervisor.pool_size" env:"POOL_SIZE"`
	TickDelay   string `help:"Supervisor tick delay" default:"100ms" toml:"supervisor.tick_delay" env:"TICK_DELAY"`
	SettleDelay string `help:"Settle delay after a spawn" default:"5s" toml:"supervisor.settle_delay" env:"SETTLE_DELAY"`
	GracePeriod string `help:"Shutdown drain grace period" default:"10s" toml:"supervisor.grace_period" env:"GRACE_PERIOD"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel      string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat     string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingSupervisor string `help:"Supervisor logging level" default:"info" toml:"logging.supervisor" env:"LOGGING_SUPERVISOR"`
	LoggingPool       string `help:"Worker pool logging level" default:"info" toml:"logging.pool" env:"LOGGING_POOL"`
	LoggingStatus     string `help:"Status monitor logging level" default:"info" toml:"logging.status" env:"LOGGING_STATUS"`
	LoggingAPI        string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP       string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
}

// fileConfig is the subset of the TOML config the hot-reload path cares
// about. Logging levels are re-read separately via LoadLoggingConfig.
type fileConfig struct {
	Archive struct {
		OutputFolder string `toml:"output_folder"`
	} `toml:"archive"`
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// parseDelay parses a user-supplied duration, falling back on garbage.
func parseDelay(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func main() {
	// Declared before the handler closure so it can hand the parsed root
	// command to the config loader; the handler only runs inside cli.Run().
	var cli humacli.CLI

	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Flags the user set on the command line must survive file and env
		// values, so the loader needs the parsed flag set.
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		level := opts.LoggingLevel
		if opts.Debug {
			level = "debug"
		}
		logging.Initialize(logging.Config{
			Level:  level,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"supervisor": opts.LoggingSupervisor,
				"pool":       opts.LoggingPool,
				"status":     opts.LoggingStatus,
				"api":        opts.LoggingAPI,
				"http":       opts.LoggingHTTP,
			},
		})

		logger := logging.GetLogger("main")

		// Core plumbing: shared state, FIFO queue, broadcast bus
		store := state.New()
		q := queue.New()
		bus := events.New()

		store.Set(stateFieldOutputFolder, opts.OutputFolder)

		// Every log entry also goes to SSE subscribers
		logging.SetLogCallback(func(entry logging.LogEntry) {
			bus.Publish(events.LogEntryEvent{
				Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		})

		pool := supervisor.NewPool(opts.PoolSize, store, q, bus, logging.GetLogger("pool"))

		specs := []supervisor.Spec{
			{
				Name: "status",
				New: func(deps worker.Deps) worker.Worker {
					m := worker.NewStatusMonitor(deps, opts.UpstreamHost, opts.UpstreamPort)
					m.SetInterruptible(opts.Debug)
					return m
				},
			},
			{
				Name: "pump",
				New: func(deps worker.Deps) worker.Worker {
					return worker.NewEventPump(deps, bus)
				},
			},
			{
				Name: "archiver",
				Required: func(s *state.Store) bool {
					folder, _ := s.Get(stateFieldOutputFolder)
					dir, _ := folder.(string)
					return dir != ""
				},
				New: func(deps worker.Deps) worker.Worker {
					folder, _ := store.Get(stateFieldOutputFolder)
					dir, _ := folder.(string)
					return worker.NewArchiver(deps, dir)
				},
			},
		}

		notifier := systemd.NewNotifier(logging.GetLogger("systemd"))
		recorder := metrics.NewRecorder(bus, pool, q)

		sup := supervisor.New(specs, store, pool, bus, logging.GetLogger("supervisor"), supervisor.Options{
			TickDelay:   parseDelay(opts.TickDelay, supervisor.DefaultTickDelay),
			SettleDelay: parseDelay(opts.SettleDelay, supervisor.DefaultSettleDelay),
			GracePeriod: parseDelay(opts.GracePeriod, supervisor.DefaultGracePeriod),
			// Watchdog pings ride the tick loop
			OnTick: notifier.Keepalive,
		})

		server := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Pool:              pool,
			Store:             store,
			Queue:             q,
			Bus:               bus,
			PrometheusHandler: exporters.HTTPHandler(),
		})

		// Hot-reload: archive folder changes flip the archiver's
		// required-ness on the next tick, logging levels re-apply live
		watcher := config.NewConfigWatcher(
			opts.Config,
			loadFileConfig,
			logging.GetLogger("config"),
		)
		watcher.OnReload(func(cfg fileConfig) {
			store.Set(stateFieldOutputFolder, cfg.Archive.OutputFolder)
			logCfg := config.LoadLoggingConfig(opts.Config)
			// --debug outranks whatever the file says, on reload too
			if opts.Debug {
				logCfg.Level = "debug"
			}
			logging.Initialize(logCfg)
			logger.Info("Configuration reloaded", "output_folder", cfg.Archive.OutputFolder)
		})

		supCtx, supCancel := context.WithCancel(context.Background())
		supDone := make(chan struct{})

		hooks.OnStart(func() {
			if _, statErr := os.Stat(opts.Config); statErr == nil {
				if watchErr := watcher.Start(); watchErr != nil {
					logger.Warn("Config watcher not started", "error", watchErr)
				}
			}

			recorder.Start(supCtx)

			go func() {
				defer close(supDone)
				if runErr := sup.Run(supCtx); runErr != nil {
					logger.Error("Supervisor stopped with error", "error", runErr)
				}
			}()

			notifier.Ready()

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			notifier.Stopping()
			logger.Info("Shutting down")

			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			// Supervisor drains the pool on cancellation
			supCancel()
			select {
			case <-supDone:
			case <-time.After(parseDelay(opts.GracePeriod, supervisor.DefaultGracePeriod) + 5*time.Second):
				logger.Error("Supervisor did not drain in time")
			}

			recorder.Stop()
			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Warn("Error stopping config watcher", "error", stopErr)
			}
		})
	})

	cli.Root().AddCommand(cmd.CreateCheckCmd())

	cli.Run()
}
