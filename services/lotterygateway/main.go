package lotterygateway

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"blocklotto/config"
	"blocklotto/native/lottery"
	"blocklotto/observability/logging"
	telemetry "blocklotto/observability/otel"
	"blocklotto/services/lotteryd"
	"blocklotto/state"
	"blocklotto/storage"
)

// Main initialises and runs the public gateway. The gateway hosts the engine
// in-process together with the upkeep scheduler, fronting it with the player
// HTTP surface.
func Main() error {
	var nodeCfgPath, gwCfgPath string
	flag.StringVar(&nodeCfgPath, "config", "config.toml", "path to node configuration")
	flag.StringVar(&gwCfgPath, "gateway-config", "services/lotterygateway/config.yaml", "path to gateway configuration")
	flag.Parse()

	nodeCfg, err := config.Load(nodeCfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gwCfg, err := LoadConfig(gwCfgPath)
	if err != nil {
		return fmt.Errorf("load gateway config: %w", err)
	}

	env := strings.TrimSpace(nodeCfg.Environment)
	logger := logging.Setup("lottery-gateway", env)

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "lottery-gateway",
		Environment: env,
		Endpoint:    gwCfg.Telemetry.Endpoint,
		Insecure:    gwCfg.Telemetry.Insecure,
		Metrics:     gwCfg.Telemetry.Metrics,
		Traces:      gwCfg.Telemetry.Traces,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	if err := os.MkdirAll(nodeCfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(nodeCfg.DataDir, "lottery"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	authority, err := config.ParseAddress(nodeCfg.Authority)
	if err != nil {
		return fmt.Errorf("authority: %w", err)
	}
	beneficiary, err := config.ParseAddress(nodeCfg.Beneficiary)
	if err != nil {
		return fmt.Errorf("beneficiary: %w", err)
	}

	feed, err := lotteryd.NewConfigFeed(gwCfg.Rates)
	if err != nil {
		return fmt.Errorf("oracle rates: %w", err)
	}

	manager := state.NewManager(db)
	engine := lottery.NewEngine()
	engine.SetState(manager)
	engine.SetPaymentRail(lotteryd.NewLedgerRail(db))
	engine.SetPriceSource(lottery.NewFeedPricer(feed, "BTC/USD"))
	engine.SetAuthority(authority)
	engine.SetEmitter(lotteryd.NewLogEmitter(logger))

	if _, ok := manager.RegistryGet(); !ok {
		if err := engine.Initialize(authority, beneficiary, nodeCfg.FeePercentage); err != nil {
			return fmt.Errorf("initialise registry: %w", err)
		}
	}
	assets, err := nodeCfg.SupportedAssets()
	if err != nil {
		return fmt.Errorf("assets: %w", err)
	}
	for _, asset := range assets {
		if err := engine.AddSupportedAsset(authority, asset); err != nil && !errors.Is(err, lottery.ErrAssetAlreadyExists) {
			return fmt.Errorf("register asset %s: %w", asset.Symbol, err)
		}
	}

	service := lotteryd.NewService(engine, lotteryd.WithLogger(logger))

	store, err := NewStore(gwCfg.StorePath, nil)
	if err != nil {
		return fmt.Errorf("open gateway store: %w", err)
	}
	defer store.Close()

	authCfg, err := gwCfg.Auth.AuthConfig()
	if err != nil {
		return err
	}
	auth, err := NewAuthenticator(authCfg, logger)
	if err != nil {
		return err
	}

	server := NewServer(service, store, auth, NewRateLimiter(gwCfg.RateLimits()), logger)
	httpServer := &http.Server{
		Addr:         gwCfg.ListenAddress,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	metricsServer := &http.Server{
		Addr:    gwCfg.MetricsAddress,
		Handler: promhttp.Handler(),
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler := lotteryd.NewScheduler(service, 5*time.Second, logger)
	go func() {
		if err := scheduler.Run(stopCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("scheduler stopped", "error", err)
		}
	}()

	errs := make(chan error, 2)
	go func() {
		logger.Info("gateway listening", "address", gwCfg.ListenAddress)
		errs <- httpServer.ListenAndServe()
	}()
	go func() {
		logger.Info("metrics listening", "address", gwCfg.MetricsAddress)
		errs <- metricsServer.ListenAndServe()
	}()

	select {
	case <-stopCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
		}
		_ = metricsServer.Shutdown(shutdownCtx)
		return nil
	case err := <-errs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
