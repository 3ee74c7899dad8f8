// Command scan-node runs one wake cycle of the Wi-Fi scan node: scan or
// resend, deliver over LoRaWAN, stay awake for user input, then sleep.
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

	"go.uber.org/zap"

	"github.com/sweeney/scan-node/internal/button"
	"github.com/sweeney/scan-node/internal/config"
	"github.com/sweeney/scan-node/internal/logging"
	"github.com/sweeney/scan-node/internal/network"
	"github.com/sweeney/scan-node/internal/node"
	"github.com/sweeney/scan-node/internal/power"
	"github.com/sweeney/scan-node/internal/scan"
	"github.com/sweeney/scan-node/internal/status"
	"github.com/sweeney/scan-node/internal/store"
	"github.com/sweeney/scan-node/internal/web"
)

type options struct {
	configPath string
	printState bool
	erase      bool
	logLevel   string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "YAML config file (defaults when empty)")
	flag.BoolVar(&opts.printState, "print-state", false, "Print the stored payload and exit")
	flag.BoolVar(&opts.erase, "erase", false, "Erase the store, including join counters, and exit")
	flag.StringVar(&opts.logLevel, "log-level", "", "Override log.level from the config")

	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	kv, err := openKV(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer kv.Close()
	payloads := store.NewPayloadStore(kv, cfg.Node.MaxResults)

	if opts.printState {
		return printState(os.Stdout, payloads)
	}
	if opts.erase {
		if err := payloads.EraseAll(); err != nil {
			return fmt.Errorf("erase store: %w", err)
		}
		logger.Info("store erased", zap.String("namespace", cfg.Store.Namespace))
		return nil
	}

	creds, err := cfg.Credentials()
	if err != nil {
		return err
	}

	scanner, err := scan.NewCommandScanner(cfg.Scan.Command, cfg.Scan.Timeout, logger.Named("scan"))
	if err != nil {
		return fmt.Errorf("init scanner: %w", err)
	}

	stack := network.NewMQTTStack(network.Config{
		Broker:      cfg.LoRaWAN.Broker,
		ClientID:    cfg.LoRaWAN.ClientID,
		GatewayID:   cfg.LoRaWAN.GatewayID,
		Credentials: creds,
		JoinTimeout: cfg.LoRaWAN.JoinTimeout,
		AckTimeout:  cfg.LoRaWAN.AckTimeout,
	}, store.NewCounters(kv), logger.Named("lora"))
	defer stack.Close()

	buttons, err := button.NewRealSource(button.Config{
		Chip:        cfg.Button.Chip,
		Line:        cfg.Button.Line,
		ActiveLevel: cfg.Button.ActiveLevel,
		Debounce:    cfg.Button.Debounce,
		Timing: button.Timing{
			LongPress:   cfg.Button.LongPress,
			ClickWindow: cfg.Button.ClickWindow,
		},
	}, logger.Named("button"))
	if err != nil {
		return fmt.Errorf("init button: %w", err)
	}
	defer buttons.Close()

	ctrl := power.NewHostController(cfg.Button.Chip, logger.Named("power"))

	tracker := status.NewTracker(time.Now(), statusConfig(cfg))

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, logger.Named("http"))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("http server error", zap.Error(err))
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Info("http status server listening", zap.String("addr", cfg.HTTP.Addr))
	}

	ticker := node.NewTicker(cfg.Node.Tick)
	defer ticker.Stop()

	orch, err := node.New(cfg.NodeConfig(), node.Deps{
		Store:    payloads,
		Scanner:  scanner,
		Network:  stack,
		Activity: buttons,
		Power:    ctrl,
		Tracker:  tracker,
		Logger:   logger.Named("node"),
		Tick:     ticker,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("started",
		zap.Int("idle_ticks", cfg.Node.IdleTicks),
		zap.Duration("tick", cfg.Node.Tick),
		zap.Duration("sleep", cfg.Node.Sleep),
		zap.String("store", cfg.Store.Backend),
		zap.String("broker", cfg.LoRaWAN.Broker))

	return orch.Run(ctx)
}

func openKV(cfg config.StoreConfig) (store.KV, error) {
	switch cfg.Backend {
	case config.BackendFile:
		return store.NewFileKV(cfg.Dir, cfg.Namespace)
	case config.BackendRedis:
		return store.NewRedisKV(store.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Namespace)
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

func printState(w io.Writer, payloads *store.PayloadStore) error {
	rec, err := payloads.Load()
	if err != nil {
		return fmt.Errorf("load payload: %w", err)
	}
	if rec == nil {
		fmt.Fprintln(w, "no stored payload")
		return nil
	}

	fmt.Fprintf(w, "pending: %v\ncount: %d\nscanned_at: %s\n",
		rec.Pending, rec.Count, rec.ScannedAt.Format(time.RFC3339))
	for i, ap := range rec.Results {
		fmt.Fprintf(w, "ap %d: %s %q %d\n", i, ap.MAC(), ap.SSID, ap.RSSI)
	}
	return nil
}

func statusConfig(cfg config.Config) status.Config {
	return status.Config{
		IdleTicks:  cfg.Node.IdleTicks,
		TickMs:     cfg.Node.Tick.Milliseconds(),
		SleepMs:    cfg.Node.Sleep.Milliseconds(),
		MaxResults: cfg.Node.MaxResults,
		Broker:     cfg.LoRaWAN.Broker,
		GatewayID:  cfg.LoRaWAN.GatewayID,
		Store:      cfg.Store.Backend,
		HTTPAddr:   cfg.HTTP.Addr,
	}
}
