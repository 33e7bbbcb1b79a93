package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/statikd/statikd"
	"github.com/statikd/statikd/cache"
	"github.com/statikd/statikd/eventlog"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	// CLI flags
	configFlag         string
	portFlag           int
	rootFlag           string
	ttlFlag            int
	maxItemsFlag       int
	maxBytesFlag       int64
	disableCacheFlag   bool
	eventsDBFlag       string
	verbosityTraceFlag bool
	logFilenameFlag    string

	// this is set by goreleaser
	version string
)

func init() {
	flag.StringVar(&configFlag, "config", "", "Path to YAML config file")
	flag.IntVar(&portFlag, "port", 0, "Port to listen on (overrides config)")
	flag.StringVar(&rootFlag, "root", "", "Directory to serve files from (overrides config)")
	flag.IntVar(&ttlFlag, "ttl", -1, "Cache TTL in seconds, 0 for no expiry (overrides config)")
	flag.IntVar(&maxItemsFlag, "max-items", -1, "Maximum cached files, 0 for unbounded (overrides config)")
	flag.Int64Var(&maxBytesFlag, "max-bytes", -1, "Maximum cached bytes, 0 for unbounded (overrides config)")
	flag.BoolVar(&disableCacheFlag, "no-cache", false, "Disable the content cache")
	flag.StringVar(&eventsDBFlag, "events-db", "", "SQLite file for request events (overrides config)")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	config := statikd.DefaultConfig()
	if configFlag != "" {
		var err error
		config, err = statikd.LoadConfig(configFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not load config file")
		}
	}

	// flags win over the config file
	if portFlag > 0 {
		config.Listen = fmt.Sprintf(":%d", portFlag)
	}
	if rootFlag != "" {
		config.Root = rootFlag
	}
	if ttlFlag >= 0 {
		config.Cache.DefaultTTLSeconds = ttlFlag
	}
	if maxItemsFlag >= 0 {
		config.Cache.MaxItems = maxItemsFlag
	}
	if maxBytesFlag >= 0 {
		config.Cache.MaxBytes = maxBytesFlag
	}
	if disableCacheFlag {
		config.Cache.Disabled = true
	}
	if eventsDBFlag != "" {
		config.EventsDB = eventsDBFlag
	}
	if logFilenameFlag != "" {
		config.LogFile = logFilenameFlag
	}

	// set log level
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	multiWriter, err := logWriter(config.LogFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", config.LogFile).Msg("Cannot open log file")
	}
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", version).Logger()

	var engine *cache.Engine
	if !config.Cache.Disabled {
		engine = cache.New(cache.Config{
			MaxItems: config.Cache.MaxItems,
			MaxBytes: config.Cache.MaxBytes,
		})
	}

	var events eventlog.Recorder = eventlog.Nop{}
	var sqliteLog *eventlog.SQLiteLog
	if config.EventsDB != "" {
		sqliteLog, err = eventlog.NewSQLiteLog(config.EventsDB)
		if err != nil {
			log.Fatal().Err(err).Str("db", config.EventsDB).Msg("Could not open events database")
		}
		defer sqliteLog.Close()
		events = sqliteLog
	}

	server, err := statikd.New(statikd.Config{
		Root:               config.Root,
		Cache:              engine,
		DefaultTTL:         time.Duration(config.Cache.DefaultTTLSeconds) * time.Second,
		StreamingThreshold: config.StreamingThresholdBytes,
		ChunkSize:          config.ChunkSizeBytes,
		MaxAge:             config.MaxAgeSeconds,
		Events:             events,
		Logger:             &log.Logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Could not create server")
	}

	router := chi.NewRouter()
	router.Use(hlog.NewHandler(log.Logger))
	router.Route("/.statikd", func(r chi.Router) {
		r.Handle("/metrics", promhttp.Handler())
		r.Get("/stats", server.StatsHandler)
	})
	router.Handle("/*", server)

	httpServer := &http.Server{
		Addr:    config.Listen,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Msgf("Serving %s on %s (cache disabled: %v)", config.Root, config.Listen, config.Cache.Disabled)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	if sqliteLog != nil && config.EventsRetentionDays > 0 {
		retention := time.Duration(config.EventsRetentionDays) * 24 * time.Hour
		g.Go(func() error {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					pruned, err := sqliteLog.Prune(retention)
					if err != nil {
						log.Warn().Err(err).Msg("Could not prune request events")
					} else if pruned > 0 {
						log.Debug().Int64("events", pruned).Msg("Pruned old request events")
					}
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("Server error")
	}
	log.Info().Msg("Server stopped")
}

// logWriter builds the server log destination: stdout, plus a copy to
// logFilename when one is configured.
func logWriter(logFilename string) (io.Writer, error) {
	logOutputs := []io.Writer{zerolog.ConsoleWriter{Out: os.Stdout}}
	if logFilename != "" {
		logFileOutput, err := os.OpenFile(logFilename, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
		if err != nil {
			return nil, err
		}
		logOutputs = append(logOutputs, logFileOutput)
	}
	return zerolog.MultiLevelWriter(logOutputs...), nil
}
