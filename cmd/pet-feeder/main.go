// Command pet-feeder runs the feeding schedule, drives the gate from the load
// cell and reports status to the remote controller over MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/pet-feeder/internal/config"
	"github.com/sweeney/pet-feeder/internal/feeder"
	"github.com/sweeney/pet-feeder/internal/gpio"
	"github.com/sweeney/pet-feeder/internal/logger"
	"github.com/sweeney/pet-feeder/internal/metrics"
	"github.com/sweeney/pet-feeder/internal/mqtt"
	"github.com/sweeney/pet-feeder/internal/status"
	"github.com/sweeney/pet-feeder/internal/store"
	"github.com/sweeney/pet-feeder/internal/timesync"
	"github.com/sweeney/pet-feeder/internal/web"
)

// printStateSettle lets the load cell sampler collect a few readings.
const printStateSettle = 500 * time.Millisecond

func main() {
	configPath := flag.String("config", "", "YAML config file (default $"+config.EnvConfigPath+")")
	printConfig := flag.Bool("print-config", false, "Print the effective configuration and exit")
	printState := flag.Bool("print-state", false, "Print current sensor readings and exit")

	flag.Parse()

	logger.Init(os.Stderr)
	log := logger.Named("main")
	ctx := context.Background()

	cfg, err := config.Load(ctx, *configPath)
	if err != nil {
		log.Error(ctx, "fatal", logger.Error(err))
		os.Exit(1)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "ignoring log level", logger.Error(err))
	}

	if *printConfig {
		if err := cfg.Dump(os.Stdout); err != nil {
			log.Error(ctx, "fatal", logger.Error(err))
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, cfg, *printState); err != nil {
		log.Error(ctx, "fatal", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, printState bool) error {
	log := logger.Named("main")

	board, err := gpio.NewBoard(boardConfig(cfg))
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer board.Close()

	if printState {
		time.Sleep(printStateSettle)
		return printReadings(board)
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	st, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	deviceID, err := feeder.DeviceID(ctx, st, cfg.DeviceID)
	if err != nil {
		return err
	}

	transport, err := mqtt.NewRealTransport(mqtt.Options{
		Broker:         cfg.Broker,
		Username:       cfg.Username,
		Password:       cfg.Password,
		DeviceID:       deviceID,
		PublishTimeout: cfg.PublishTimeout,
		Log:            logger.Named("mqtt"),
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer transport.Close()

	poller := timesync.NewPoller(
		timesync.NTPSource{Server: cfg.TimeServer},
		cfg.TimeSyncInterval, cfg.TimeRetryInterval,
		logger.Named("timesync"))

	mm := metrics.NewManager()
	tracker := status.NewTracker(time.Now(), status.Config{
		DeviceID:          deviceID,
		Broker:            cfg.Broker,
		HTTPAddr:          cfg.HTTP,
		Timezone:          cfg.Timezone,
		TickMs:            cfg.Tick.Milliseconds(),
		StatusIntervalMs:  cfg.StatusInterval.Milliseconds(),
		DispenseTimeoutMs: cfg.DispenseTimeout.Milliseconds(),
	})

	f, err := feeder.New(ctx, feeder.Config{
		Location:          loc,
		StatusInterval:    cfg.StatusInterval,
		DispenseTimeout:   cfg.DispenseTimeout,
		DisplayRefresh:    cfg.DisplayRefresh,
		AlertInterval:     cfg.AlertInterval,
		AlertPulses:       cfg.AlertPulses,
		SyncRetryInterval: cfg.SyncRetryInterval,
		Debounce:          cfg.Sensors.Debounce,
	}, feeder.Deps{
		Store:     st,
		Scale:     board.Scale,
		Gate:      board.Gate,
		Buzzer:    board.Buzzer,
		Sensors:   board.Sensors,
		Transport: transport,
		Time:      poller,
		Display:   tracker,
		Tracker:   tracker,
		Metrics:   mm,
		Log:       logger.Named("feeder"),
	})
	if err != nil {
		return fmt.Errorf("init feeder: %w", err)
	}

	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker, mm.Handler(), web.DefaultJSONTTL)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error(ctx, "http server error", logger.Error(err))
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info(ctx, "http status server listening", logger.String("addr", cfg.HTTP))
	}

	log.Info(ctx, "started",
		logger.String("device_id", deviceID),
		logger.String("broker", cfg.Broker),
		logger.String("tick", cfg.Tick.String()),
		logger.String("timezone", cfg.Timezone))

	ticker := time.NewTicker(cfg.Tick)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	boot := time.Now()
	uptime := func() time.Duration { return time.Since(boot) }
	return runLoop(ctx, f, uptime, ticker.C, sigCh)
}

// runLoop ticks the feeder until a signal arrives, then shuts it down.
func runLoop(ctx context.Context, f *feeder.Feeder, uptime func() time.Duration, tick <-chan time.Time, sig <-chan os.Signal) error {
	log := logger.Named("main")
	for {
		select {
		case s := <-sig:
			name := signalName(s)
			log.Info(ctx, "shutting down", logger.String("signal", name))
			if err := f.Shutdown(ctx, name); err != nil {
				log.Warn(ctx, "shutdown incomplete", logger.Error(err))
			}
			return nil

		case <-tick:
			f.Tick(ctx, uptime())
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

func boardConfig(cfg *config.Config) gpio.BoardConfig {
	return gpio.BoardConfig{
		Pins: gpio.Pins{
			Gate:     cfg.Pins.Gate,
			Buzzer:   cfg.Pins.Buzzer,
			Stock:    cfg.Pins.Stock,
			Water:    cfg.Pins.Water,
			ScaleDT:  cfg.Pins.ScaleDT,
			ScaleSCK: cfg.Pins.ScaleSCK,
		},
		Calibration: gpio.Calibration{
			Factor:      cfg.Scale.Factor,
			Offset:      cfg.Scale.Offset,
			TareSamples: cfg.Scale.TareSamples,
			ReadSamples: cfg.Scale.ReadSamples,
		},
		StockActiveLow: cfg.Sensors.StockActiveLow,
		WaterActiveLow: cfg.Sensors.WaterActiveLow,
	}
}

// openStore opens the SQLite state file, or an in-memory store when path is empty.
func openStore(path string) (store.Store, error) {
	if path == "" {
		return store.NewMemStore(), nil
	}
	st, err := store.OpenSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

func printReadings(board *gpio.Board) error {
	stock, water, err := board.Sensors.Read()
	if err != nil {
		return fmt.Errorf("read sensors: %w", err)
	}
	weight := "not ready"
	if g, err := board.Scale.Read(); err == nil {
		weight = fmt.Sprintf("%dg", g)
	}
	fmt.Printf("Stock: %s, Water: %s, Bowl: %s\n", levelString(stock), levelString(water), weight)
	return nil
}

func levelString(present bool) string {
	if present {
		return "OK"
	}
	return "LOW"
}
