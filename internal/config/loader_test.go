package config_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/sweeney/pet-feeder/internal/config"
)

var configEnvVars = []string{
	"PETFEEDER_CONFIG",
	"PETFEEDER_BROKER",
	"PETFEEDER_TICK",
	"PETFEEDER_DEVICE_ID",
	"PETFEEDER_PINS__GATE",
	"PETFEEDER_SCALE__TARE_SAMPLES",
	"PETFEEDER_SENSORS__STOCK_ACTIVE_LOW",
	"PETFEEDER_TIMEZONE",
}

func clearConfigEnvVars() {
	for _, k := range configEnvVars {
		_ = os.Unsetenv(k)
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Broker, convey.ShouldEqual, "tcp://localhost:1883")
				convey.So(cfg.Tick, convey.ShouldEqual, 50*time.Millisecond)
				convey.So(cfg.StatusInterval, convey.ShouldEqual, 30*time.Second)
				convey.So(cfg.DispenseTimeout, convey.ShouldEqual, 20*time.Second)
				convey.So(cfg.AlertPulses, convey.ShouldEqual, 3)
				convey.So(cfg.Pins.Gate, convey.ShouldEqual, 17)
				convey.So(cfg.Scale.TareSamples, convey.ShouldEqual, 20)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("PETFEEDER_BROKER", "tcp://10.0.0.2:1883")
			_ = os.Setenv("PETFEEDER_TICK", "100ms")
			_ = os.Setenv("PETFEEDER_PINS__GATE", "12")
			_ = os.Setenv("PETFEEDER_SCALE__TARE_SAMPLES", "10")
			_ = os.Setenv("PETFEEDER_SENSORS__STOCK_ACTIVE_LOW", "true")

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should override defaults, including nested keys", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Broker, convey.ShouldEqual, "tcp://10.0.0.2:1883")
				convey.So(cfg.Tick, convey.ShouldEqual, 100*time.Millisecond)
				convey.So(cfg.Pins.Gate, convey.ShouldEqual, 12)
				convey.So(cfg.Pins.Buzzer, convey.ShouldEqual, 27)
				convey.So(cfg.Scale.TareSamples, convey.ShouldEqual, 10)
				convey.So(cfg.Sensors.StockActiveLow, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			path := writeTempConfig(t, `
device_id: kitchen
status_interval: 1m
timezone: Europe/London
pins:
  stock: 24
scale:
  factor: 210.5
`)
			cfg, err := config.Load(ctx, path)

			convey.Convey("Then it should load from YAML and keep defaults elsewhere", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.DeviceID, convey.ShouldEqual, "kitchen")
				convey.So(cfg.StatusInterval, convey.ShouldEqual, time.Minute)
				convey.So(cfg.Timezone, convey.ShouldEqual, "Europe/London")
				convey.So(cfg.Pins.Stock, convey.ShouldEqual, 24)
				convey.So(cfg.Pins.Water, convey.ShouldEqual, 23)
				convey.So(cfg.Scale.Factor, convey.ShouldEqual, 210.5)
				convey.So(cfg.Scale.ReadSamples, convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When the file path comes from PETFEEDER_CONFIG and env also overrides", func() {
			path := writeTempConfig(t, "device_id: kitchen\ntick: 200ms\n")
			_ = os.Setenv("PETFEEDER_CONFIG", path)
			_ = os.Setenv("PETFEEDER_DEVICE_ID", "garage")

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.DeviceID, convey.ShouldEqual, "garage")
				convey.So(cfg.Tick, convey.ShouldEqual, 200*time.Millisecond)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			path := writeTempConfig(t, `invalid: yaml: content: [`)

			cfg, err := config.Load(ctx, path)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			cfg, err := config.Load(ctx, "/non/existent/file.yaml")

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the environment sets an invalid timezone", func() {
			_ = os.Setenv("PETFEEDER_TIMEZONE", "Mars/Olympus")

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "timezone")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestDotEnv(t *testing.T) {
	clearConfigEnvVars()
	defer clearConfigEnvVars()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("PETFEEDER_DEVICE_ID=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldWD) })

	convey.Convey("Given a .env file in the working directory", t, func() {
		cfg, err := config.Load(context.Background(), "")

		convey.Convey("Then its variables are applied", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.DeviceID, convey.ShouldEqual, "from-dotenv")
		})
	})
}

func TestDumpRoundTrip(t *testing.T) {
	clearConfigEnvVars()
	defer clearConfigEnvVars()

	convey.Convey("Given a customised config", t, func() {
		cfg := config.New()
		cfg.DeviceID = "kitchen"
		cfg.Password = "hunter2"
		cfg.StatusInterval = 45 * time.Second
		cfg.Pins.Gate = 4

		var buf bytes.Buffer
		convey.So(cfg.Dump(&buf), convey.ShouldBeNil)
		out := buf.String()

		convey.Convey("Then durations are human readable and the password masked", func() {
			convey.So(out, convey.ShouldContainSubstring, "status_interval: 45s")
			convey.So(out, convey.ShouldContainSubstring, "device_id: kitchen")
			convey.So(out, convey.ShouldNotContainSubstring, "hunter2")
		})

		convey.Convey("Then the dump loads back to the same values", func() {
			path := filepath.Join(t.TempDir(), "dump.yaml")
			convey.So(os.WriteFile(path, buf.Bytes(), 0o600), convey.ShouldBeNil)

			loaded, err := config.Load(context.Background(), path)
			convey.So(err, convey.ShouldBeNil)
			convey.So(loaded.DeviceID, convey.ShouldEqual, "kitchen")
			convey.So(loaded.StatusInterval, convey.ShouldEqual, 45*time.Second)
			convey.So(loaded.Pins.Gate, convey.ShouldEqual, 4)
			convey.So(loaded.Tick, convey.ShouldEqual, cfg.Tick)
		})
	})
}
