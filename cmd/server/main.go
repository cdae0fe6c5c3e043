// Command kvmux-server runs the networked key-value service: it loads
// configuration, wires storage, broker, pipeline hooks, and the
// TLS+yamux acceptor, then serves until an interrupt or SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	_ "go.uber.org/automaxprocs"

	"kvmux/internal/broker"
	"kvmux/internal/config"
	"kvmux/internal/obs"
	"kvmux/internal/obs/guard"
	"kvmux/internal/pipeline"
	"kvmux/internal/pipeline/hooks"
	"kvmux/internal/store"
	"kvmux/internal/tlsconf"
	"kvmux/internal/transport"
)

func main() {
	debug := flag.Bool("debug", false, "enable debug logging (overrides KVMUX_LOG_LEVEL)")
	flag.Parse()

	startupLogger := log.New(os.Stdout, "[kvmux] ", log.LstdFlags)

	cfg, err := config.Load(nil)
	if err != nil {
		startupLogger.Fatalf("load configuration: %v", err)
	}
	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := obs.NewLogger(obs.LoggerConfig{Level: cfg.LogLevel, Format: cfg.LogFormat})
	cfg.LogConfig(logger)

	engine, err := openEngine(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("open storage engine")
	}
	defer engine.Close()

	registry := prometheus.NewRegistry()
	metrics := obs.NewMetrics(registry)

	b := broker.New(broker.WithMetrics(metrics))

	opts := []pipeline.Option{pipeline.WithAfterSend(hooks.MetricsHook(metrics))}

	var replicator *hooks.Replicator
	if len(cfg.ReplicationBrokers) > 0 {
		replicator, err = hooks.NewReplicator(hooks.ReplicationConfig{
			Brokers: cfg.ReplicationBrokers,
			Topic:   cfg.ReplicationTopic,
			Logger:  logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("start replication hook")
		}
		defer replicator.Close()
		opts = append(opts, pipeline.WithAfterSend(replicator.AfterSend))
	}

	p := pipeline.New(engine, b, opts...)

	tlsCfg, err := tlsconf.ServerTLSConfig(tlsconf.ServerOptions{
		CertFile:          cfg.TLSCertFile,
		KeyFile:           cfg.TLSKeyFile,
		ClientCAFile:      cfg.TLSClientCA,
		RequireClientCert: cfg.RequireClientCert,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("build TLS configuration")
	}

	g := guard.New(guard.Config{
		MaxConnections:     cfg.AdmissionMaxConnections,
		MaxGoroutines:      cfg.AdmissionMaxConnections * cfg.AdmissionMaxStreamsPerConn,
		ConnRatePerSec:     cfg.AdmissionConnRatePerSec,
		CPURejectThreshold: cfg.AdmissionCPURejectThreshold,
	}, logger)

	srv := transport.NewServer(transport.ServerConfig{
		Addr:              cfg.Addr,
		TLS:               tlsCfg,
		Guard:             g,
		Metrics:           metrics,
		MaxStreamsPerConn: cfg.AdmissionMaxStreamsPerConn,
	}, p, logger)

	adminSrv := &http.Server{Addr: cfg.AdminAddr, Handler: obs.Handler(registry)}
	go func() {
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("admin server stopped")
		}
	}()

	go func() {
		if err := srv.Serve(); err != nil {
			logger.Error().Err(err).Msg("server stopped")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("admin server shutdown")
	}
	if err := srv.Close(); err != nil {
		logger.Warn().Err(err).Msg("server shutdown")
	}
}

func openEngine(cfg *config.Config) (store.Engine, error) {
	switch cfg.StorageEngine {
	case config.EngineMemory:
		return store.NewMemory(), nil
	case config.EngineTree:
		return store.OpenTree(cfg.StoragePath)
	default:
		return nil, fmt.Errorf("unknown storage engine %q", cfg.StorageEngine)
	}
}
