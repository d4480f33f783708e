package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"tckt/internal/platform/config"
	"tckt/internal/platform/health"
	"tckt/internal/platform/logger"
	"tckt/internal/platform/otel"
	"tckt/internal/registry"
	"tckt/internal/registry/handler"
	"tckt/internal/registry/metrics"
	"tckt/internal/registry/tracer"
	"tckt/internal/registry/transport"
	httptransport "tckt/internal/transport/http"
	"tckt/pkg/domain"
	"tckt/pkg/platform/circuit"
	"tckt/pkg/platform/middleware/request"
)

const serviceName = "tckt-registry"

// backend is what main needs from a registry caller beyond registry.Caller.
type backend interface {
	registry.Caller
	Health(ctx context.Context, chainID domain.ChainID) error
}

// main wires dependencies, serves the HTTP router, and shuts down gracefully
// on SIGINT or SIGTERM.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	registryMetrics := metrics.New(reg)

	shutdownTracing, err := otel.Setup(ctx, serviceName, cfg.Environment, cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("trace flush failed", "error", err)
		}
	}()
	tr := tracer.NewOTel()

	caller, closeCaller, err := newBackend(ctx, cfg, registryMetrics, tr, log)
	if err != nil {
		return err
	}
	defer closeCaller()

	client := registry.New(caller,
		registry.WithContract(cfg.Contract),
		registry.WithChainContracts(cfg.ChainContracts),
		registry.WithSignersContract(cfg.SignersContract),
		registry.WithDefaultChain(cfg.DefaultChain),
		registry.WithExposureChain(cfg.ExposureChain),
		registry.WithLogger(log),
		registry.WithTracer(tr),
		registry.WithMetrics(registryMetrics),
	)

	hh := health.New(cfg.Environment)
	for _, chainID := range caller.Chains() {
		hh.RegisterCheck("chain:"+chainID.String(), func(ctx context.Context) error {
			return caller.Health(ctx, chainID)
		})
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Registry:       handler.New(client, log),
		Health:         hh,
		Gatherer:       reg,
		Metrics:        request.NewMetrics(reg),
		Logger:         log,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info("starting tckt registry server",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"backend", cfg.Backend,
		"default_chain", cfg.DefaultChain.String(),
		"exposure_chain", cfg.ExposureChain.String(),
		"chains", len(caller.Chains()),
		"tracing", cfg.OTelEndpoint != "",
	)

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newBackend(ctx context.Context, cfg config.Server, m *metrics.Metrics, tr tracer.Tracer, log *slog.Logger) (backend, func(), error) {
	if cfg.Backend == config.BackendMemory {
		chains := cfg.Chains()
		for _, id := range []domain.ChainID{cfg.DefaultChain, cfg.ExposureChain} {
			if !slices.Contains(chains, id) {
				chains = append(chains, id)
			}
		}
		log.Warn("using in-memory registry backend; every lookup answers from empty contract state")
		return transport.NewMemory(chains...), func() {}, nil
	}

	rpc, err := transport.DialRPC(ctx, cfg.NodeURLs,
		transport.WithTimeout(cfg.CallTimeout),
		transport.WithBreaker(
			circuit.WithFailureThreshold(cfg.BreakerThreshold),
			circuit.WithCooldown(cfg.BreakerCooldown),
		),
		transport.WithMetrics(m),
		transport.WithTracer(tr),
		transport.WithLogger(log),
	)
	if err != nil {
		return nil, nil, err
	}
	return rpc, rpc.Close, nil
}
