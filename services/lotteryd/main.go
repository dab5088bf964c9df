package lotteryd

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
	"blocklotto/state"
	"blocklotto/storage"
)

// Main initialises and runs the lottery daemon.
func Main() error {
	var nodeCfgPath, svcCfgPath string
	flag.StringVar(&nodeCfgPath, "config", "config.toml", "path to node configuration")
	flag.StringVar(&svcCfgPath, "service-config", "services/lotteryd/config.yaml", "path to lotteryd configuration")
	flag.Parse()

	nodeCfg, err := config.Load(nodeCfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svcCfg, err := LoadConfig(svcCfgPath)
	if err != nil {
		return fmt.Errorf("load service config: %w", err)
	}

	env := strings.TrimSpace(nodeCfg.Environment)
	logger := logging.Setup("lotteryd", env)

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "lotteryd",
		Environment: env,
		Endpoint:    svcCfg.Telemetry.Endpoint,
		Insecure:    svcCfg.Telemetry.Insecure,
		Metrics:     svcCfg.Telemetry.Metrics,
		Traces:      svcCfg.Telemetry.Traces,
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

	feed, err := NewConfigFeed(svcCfg.Rates)
	if err != nil {
		return fmt.Errorf("oracle rates: %w", err)
	}

	manager := state.NewManager(db)
	engine := lottery.NewEngine()
	engine.SetState(manager)
	engine.SetPaymentRail(NewLedgerRail(db))
	engine.SetPriceSource(lottery.NewFeedPricer(feed, "BTC/USD"))
	engine.SetRandomnessSource(NewVRFForwarder(svcCfg.VRF.Endpoint, svcCfg.VRF.Timeout.Duration))
	engine.SetAuthority(authority)
	engine.SetEmitter(NewLogEmitter(logger))

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
		if err := engine.AddSupportedAsset(authority, asset); err != nil {
			if errors.Is(err, lottery.ErrAssetAlreadyExists) {
				continue
			}
			return fmt.Errorf("register asset %s: %w", asset.Symbol, err)
		}
	}

	service := NewService(engine, WithLogger(logger))
	if svcCfg.PauseOnStart {
		if err := service.Pause(authority); err != nil {
			return fmt.Errorf("pause on start: %w", err)
		}
	}

	auth, err := NewAuthenticator(svcCfg.Admin)
	if err != nil {
		return fmt.Errorf("admin auth: %w", err)
	}
	adminServer := &http.Server{
		Addr:         svcCfg.ListenAddress,
		Handler:      auth.Middleware(NewAdminServer(service, authority)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	metricsServer := &http.Server{
		Addr:    svcCfg.MetricsAddress,
		Handler: promhttp.Handler(),
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler := NewScheduler(service, svcCfg.PollInterval.Duration, logger)
	go func() {
		if err := scheduler.Run(stopCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("scheduler stopped", "error", err)
		}
	}()

	errs := make(chan error, 2)
	go func() {
		logger.Info("admin API listening", "address", svcCfg.ListenAddress)
		errs <- adminServer.ListenAndServe()
	}()
	go func() {
		logger.Info("metrics listening", "address", svcCfg.MetricsAddress)
		errs <- metricsServer.ListenAndServe()
	}()

	select {
	case <-stopCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			_ = adminServer.Close()
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
