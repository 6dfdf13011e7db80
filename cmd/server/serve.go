package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"authcore/backend/internal/audit"
	"authcore/backend/internal/config"
	"authcore/backend/internal/logging"
	"authcore/backend/internal/metrics"
	"authcore/backend/internal/security"
	"authcore/backend/internal/server"
	"authcore/backend/internal/session/service"
	"authcore/backend/internal/telemetry"
	telemetryotel "authcore/backend/internal/telemetry/otel"
	"authcore/backend/internal/telemetry/producer"
)

const (
	serviceName     = "authcore"
	shutdownTimeout = 15 * time.Second
)

type serveFlags struct {
	grpcAddr    string
	metricsAddr string
}

func newRootCmd() *cobra.Command {
	var flags serveFlags
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the authcore gRPC API",
		Long: `Run the authcore gRPC API. Configuration is read from the environment and an
optional .env file; flags override the listen addresses.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("grpc-addr") {
				cfg.GRPCAddr = flags.grpcAddr
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.MetricsAddr = flags.metricsAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&flags.grpcAddr, "grpc-addr", "", "gRPC listen address (overrides GRPC_ADDR)")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "metrics listen address, empty to disable (overrides METRICS_ADDR)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := logging.SetDefault(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.LogFormat,
		Level:   cfg.LogLevel,
	})

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure)
	if err != nil {
		return err
	}
	providers.SetGlobal()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	codec, err := buildCodec(cfg)
	if err != nil {
		return err
	}

	sinks := telemetry.Multi{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	if st.audit != nil {
		sinks = append(sinks, audit.NewLogger(st.audit))
	}
	var brokers []producer.Producer
	if kafka := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.SessionEventsTopic); kafka != nil {
		sinks = append(sinks, kafka)
		brokers = append(brokers, kafka)
		logger.Info("session events publishing to kafka", "topic", cfg.SessionEventsTopic)
	}
	events := telemetry.NewAsyncEmitter(sinks, logger)

	metricsSrv := metrics.NewServer(cfg.MetricsAddr, nil)

	mgr := service.NewManager(service.Deps{
		Accounts:    st.accounts,
		Ledger:      st.ledger,
		Codec:       codec,
		Passwords:   security.NewHasher(cfg.BcryptCost),
		Credentials: security.NewCredentialHasher(),
		Events:      events,
		Metrics:     metricsSrv.Metrics(),
		Logger:      logger,
	}, service.Config{
		MaxActiveSessions: cfg.MaxActiveSessions,
		AccessTTL:         cfg.AccessTTL(),
		RefreshTTL:        cfg.RefreshTTL(),
	})

	grpcSrv, health := server.NewServer(server.Deps{
		Sessions:      mgr,
		AuditRepo:     st.audit,
		HealthPingers: st.pingers,
		Logger:        logger,
	})

	metricsSrv.SetReadiness(health.Ready)
	var metricsErr <-chan error
	if cfg.MetricsAddr != "" {
		if metricsErr, err = metricsSrv.Start(); err != nil {
			return err
		}
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return oops.Code("LISTEN_FAILED").With("addr", cfg.GRPCAddr).Wrap(err)
	}
	grpcErr := make(chan error, 1)
	go func() {
		logger.Info("grpc server listening",
			"addr", lis.Addr().String(),
			"session_store", cfg.SessionStore,
			"credential_format", cfg.CredentialFormat,
			"max_active_sessions", mgr.Config().MaxActiveSessions)
		grpcErr <- grpcSrv.Serve(lis)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-grpcErr:
		runErr = oops.Code("GRPC_SERVE_FAILED").Wrap(err)
	case err, ok := <-metricsErr:
		if ok {
			runErr = oops.Code("METRICS_SERVE_FAILED").Wrap(err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		grpcSrv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		logger.Warn("graceful stop timed out, forcing")
		grpcSrv.Stop()
	}

	drainCtx, drainCancel := context.WithTimeout(shutdownCtx, telemetry.ShutdownDrainDuration)
	if err := events.Drain(drainCtx); err != nil {
		logger.Warn("session events not fully drained", "error", err)
	}
	drainCancel()

	var errs []error
	errs = append(errs, runErr)
	if err := metricsSrv.Stop(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	for _, p := range brokers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		slog.Error("server exited with errors", "error", err)
		return err
	}
	logger.Info("server stopped")
	return nil
}
