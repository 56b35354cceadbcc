package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Marketen/duties-traffic-generator/internal/adapters"
	"github.com/Marketen/duties-traffic-generator/internal/application/domain"
	"github.com/Marketen/duties-traffic-generator/internal/application/ports"
	"github.com/Marketen/duties-traffic-generator/internal/application/services"
	"github.com/Marketen/duties-traffic-generator/internal/config"
	"github.com/Marketen/duties-traffic-generator/internal/logger"
	"github.com/Marketen/duties-traffic-generator/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config: %v", err)
		os.Exit(1)
	}

	logger.Info("Starting duties-traffic-generator")

	if cfg.BeaconNodeURL != "" {
		logger.Info("Beacon node URL: %s", cfg.BeaconNodeURL)
		if err := applyNetworkProfile(cfg); err != nil {
			logger.Error("Failed to read network profile from beacon node: %v", err)
			os.Exit(1)
		}
	}

	params, err := newBuilder(cfg).BuildParams()
	if err != nil {
		logger.Error("Invalid generator parameters: %v", err)
		os.Exit(1)
	}

	// Decide which validator indices to simulate:
	// - If VALIDATOR_INDICES is set in config, use those.
	// - If empty, simulate the whole network.
	validators := domain.ValidatorRange(0, domain.ValidatorIndex(params.Params().TotalValidators()))
	if len(cfg.ValidatorIndices) > 0 {
		validators = domain.NewValidatorSet(cfg.ValidatorIndices...)
	}
	logger.Info("Simulating %d of %d validators on %d nodes", validators.Len(), params.Params().TotalValidators(), cfg.Nodes)

	m := metrics.NewMetrics()
	generatorMetrics := services.NewGeneratorMetrics()
	emitterMetrics := services.NewEmitterMetrics()
	if err := errors.Join(generatorMetrics.AttachMetrics(m), emitterMetrics.AttachMetrics(m)); err != nil {
		logger.Error("Failed to register metrics: %v", err)
		os.Exit(1)
	}

	network, err := services.NewNetwork(params, validators, cfg.Nodes,
		services.WithMaxQueueDepth(cfg.MaxQueueDepth),
		services.WithMetrics(generatorMetrics),
	)
	if err != nil {
		logger.Error("Failed to create generators: %v", err)
		os.Exit(1)
	}

	publisher, err := newPublisher(cfg)
	if err != nil {
		logger.Error("Failed to create %s publisher: %v", cfg.Publisher, err)
		os.Exit(1)
	}

	seed := cfg.PayloadSeed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	emitter := services.NewEmitter(
		adapters.NewSSZPayloadSynthesizer(seed, params.Params().SlotsPerEpoch()),
		publisher,
		cfg.PublishWorkers,
		services.WithEmitterMetrics(emitterMetrics),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr, m)
	}

	reporter := services.NewDutyReporter(params, params.Clock().SlotDuration(), validators)
	go reporter.Run(ctx)

	done := make(chan error, 1)
	go func() {
		done <- network.Run(ctx, emitter)
	}()

	// Handle SIGINT / SIGTERM for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-sigCh:
		logger.Warn("Received signal %s, shutting down...", sig)
		cancel()
		<-done
	case err := <-done:
		if err != nil {
			logger.Error("Generator stopped: %v", err)
			exitCode = 1
		}
		cancel()
	}

	if err := emitter.Stop(); err != nil {
		logger.Warn("Error closing publisher: %v", err)
	}
	os.Exit(exitCode)
}

// applyNetworkProfile fills the settings left unset from the beacon node.
func applyNetworkProfile(cfg *config.Config) error {
	beaconAdapter, err := adapters.NewBeaconHTTPAdapter(cfg.BeaconNodeURL)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	profile, err := beaconAdapter.GetNetworkProfile(ctx)
	if err != nil {
		return err
	}
	logger.Info("Beacon node reports %d active validators, %ds slots, %d slots per epoch",
		profile.ActiveValidators, profile.SecondsPerSlot, profile.SlotsPerEpoch)

	if cfg.TotalValidators == nil {
		cfg.TotalValidators = &profile.ActiveValidators
	}
	if cfg.SlotsPerEpoch == nil {
		cfg.SlotsPerEpoch = &profile.SlotsPerEpoch
	}
	if cfg.SlotDuration == nil {
		d := time.Duration(profile.SecondsPerSlot) * time.Second
		cfg.SlotDuration = &d
	}
	if cfg.GenesisTime == nil {
		cfg.GenesisTime = &profile.GenesisTime
	}
	return nil
}

func newBuilder(cfg *config.Config) *services.GeneratorBuilder {
	b := services.NewGeneratorBuilder()

	setters := []struct {
		value *uint64
		set   func(uint64) *services.GeneratorBuilder
	}{
		{cfg.TotalValidators, b.TotalValidators},
		{cfg.SlotsPerEpoch, b.SlotsPerEpoch},
		{cfg.AttestationSubnets, b.AttestationSubnets},
		{cfg.TargetAggregators, b.TargetAggregators},
		{cfg.SyncSubnetSize, b.SyncSubnetSize},
		{cfg.SyncCommitteeSubnets, b.SyncCommitteeSubnets},
		{cfg.EpochsPerSyncCommitteePeriod, b.EpochsPerSyncCommitteePeriod},
	}
	for _, s := range setters {
		if s.value != nil {
			s.set(*s.value)
		}
	}

	slotDuration := domain.DefaultSlotDuration
	if cfg.SlotDuration != nil {
		slotDuration = *cfg.SlotDuration
	}
	var genesis time.Duration
	if cfg.GenesisTime != nil {
		genesis = time.Duration(*cfg.GenesisTime) * time.Second
	}
	return b.SlotClock(cfg.GenesisSlot, genesis, slotDuration)
}

func newPublisher(cfg *config.Config) (ports.MessagePublisher, error) {
	switch cfg.Publisher {
	case config.PublisherGossipsub:
		return adapters.NewGossipPublisher(adapters.GossipConfig{
			ListenAddr: cfg.ListenAddr,
			Bootnodes:  cfg.Bootnodes,
			ForkDigest: cfg.ForkDigest,
		})
	default:
		return adapters.NewLogPublisher(logger.Component("publisher"), cfg.ForkDigest), nil
	}
}

func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Serving metrics on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Metrics server failed: %v", err)
	}
}
