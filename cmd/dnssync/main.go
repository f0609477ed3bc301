// dnssync projects the DNS intent declared by locally running Docker
// containers onto a shared, etcd-backed zone, continuously reconciling
// desired records against what is actually present across the cluster.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/docker/docker/client"

	"github.com/kprice-io/dnssync/internal/config"
	"github.com/kprice-io/dnssync/internal/dockerevents"
	"github.com/kprice-io/dnssync/internal/etcdregistry"
	"github.com/kprice-io/dnssync/internal/health"
	"github.com/kprice-io/dnssync/internal/labels"
	"github.com/kprice-io/dnssync/internal/metrics"
	"github.com/kprice-io/dnssync/internal/reconcile"
	"github.com/kprice-io/dnssync/internal/record"
	"github.com/kprice-io/dnssync/internal/state"
	"github.com/kprice-io/dnssync/internal/syncloop"
	"github.com/kprice-io/dnssync/internal/validate"
)

// Version and BuildDate are set via ldflags during build.
// Example: -ldflags="-X main.Version=v1.0.0 -X main.BuildDate=2026-01-03"
var (
	Version   = "dev"
	BuildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()
	if *configPath == "" {
		*configPath = os.Getenv("DNSSYNC_CONFIG")
	}

	if *showVersion {
		fmt.Printf("dnssync %s (built %s)\n", Version, BuildDate)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		slog.Error("fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := setupLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	metrics.BuildInfo.WithLabelValues(Version, runtime.Version()).Set(1)

	logger.Info("dnssync starting",
		slog.String("version", Version),
		slog.String("build_date", BuildDate),
		slog.String("hostname", cfg.Hostname),
		slog.String("etcd_path_prefix", cfg.EtcdPathPrefix),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return fmt.Errorf("creating docker client: %w", err)
	}
	defer dockerClient.Close()

	defaults, err := labels.LoadDefaultsFile(cfg.LabelDefaultsFile)
	if err != nil {
		return fmt.Errorf("loading label defaults file: %w", err)
	}

	allowedTypes := make([]record.Type, 0, len(cfg.AllowedRecordTypes))
	for _, t := range cfg.AllowedRecordTypes {
		allowedTypes = append(allowedTypes, record.Type(t))
	}
	builder := labels.New(cfg.DockerLabelPrefix, cfg.HostIP, cfg.Hostname, allowedTypes,
		labels.WithLogger(logger),
		labels.WithDefaults(defaults),
	)

	reg, err := etcdregistry.New(etcdregistry.Config{
		Endpoints:         []string{fmt.Sprintf("%s:%d", cfg.EtcdHost, cfg.EtcdPort)},
		PathPrefix:        cfg.EtcdPathPrefix,
		LockTTL:           cfg.EtcdLockTTL,
		LockTimeout:       cfg.EtcdLockTimeout,
		LockRetryInterval: cfg.EtcdLockRetryInterval,
	}, logger)
	if err != nil {
		return fmt.Errorf("connecting to etcd registry: %w", err)
	}
	defer reg.Close()

	tracker := state.New()
	validator := validate.New(logger)
	recorder := metrics.NewRecorder()
	reconciler := reconcile.New(validator, logger, recorder)
	source := dockerevents.New(dockerClient, dockerevents.WithLogger(logger))

	loop := syncloop.New(source, builder, tracker, reconciler, reg, syncloop.Config{
		Hostname:     cfg.Hostname,
		PollInterval: cfg.PollInterval,
		StaleTTL:     cfg.StaleTTL,
	}, syncloop.WithLogger(logger))

	healthServer := health.New(cfg.HealthPort, health.WithLogger(logger))
	healthServer.RegisterChecker("registry", func(ctx context.Context) error {
		_, err := reg.List(ctx)
		return err
	})
	degradedThreshold := cfg.PollInterval * 3
	startedAt := time.Now()
	healthServer.RegisterDegradedChecker("reconcile_pass", func(_ context.Context) (bool, string) {
		lastErr, lastSuccess := loop.Status()
		if lastSuccess.IsZero() {
			lastSuccess = startedAt
		}
		if age := time.Since(lastSuccess); age > degradedThreshold {
			msg := fmt.Sprintf("no successful reconcile pass in %s", age.Round(time.Second))
			if lastErr != nil {
				msg += fmt.Sprintf(" (last error: %s)", lastErr)
			}
			return true, msg
		}
		return false, ""
	})
	if err := healthServer.Start(); err != nil {
		return fmt.Errorf("starting health server: %w", err)
	}

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		loop.Run(ctx)
	}()

	logger.Info("dnssync initialized, watching for container events",
		slog.Duration("poll_interval", cfg.PollInterval),
		slog.Int("health_port", cfg.HealthPort),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("received shutdown signal", slog.String("signal", sig.String()))

	cancel()
	<-loopDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("health server shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("dnssync shutdown complete")
	return nil
}

func setupLogger(level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(level)}))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "DEBUG", "debug":
		return slog.LevelDebug
	case "WARN", "warn", "warning":
		return slog.LevelWarn
	case "ERROR", "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
