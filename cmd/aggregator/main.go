package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/leggler/PV-Aggregator/internal/busserver"
	"github.com/leggler/PV-Aggregator/internal/collector"
	"github.com/leggler/PV-Aggregator/internal/config"
	"github.com/leggler/PV-Aggregator/internal/mqtt"
	"github.com/leggler/PV-Aggregator/internal/server"
	"github.com/leggler/PV-Aggregator/internal/store"
	"github.com/leggler/PV-Aggregator/internal/supervisor"
	"github.com/leggler/PV-Aggregator/pkg/sun2000modbus"

	"github.com/carlmjohnson/versioninfo"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(1)
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	logger.Info("pv-aggregator starting", zap.String("version", versioninfo.Short()))

	// one source per configured inverter
	sources, err := buildSources(cfg, logger)
	if err != nil {
		logger.Fatal("could not create inverter readers", zap.Error(err))
	}

	st := store.NewStore()
	coll := collector.NewCollector(cfg.Monitor, sources, st, logger)

	bus, err := busserver.NewServer(cfg.BusServer, st, logger)
	if err != nil {
		logger.Fatal("could not create bus server", zap.Error(err))
	}

	var publisher *mqtt.Publisher
	if cfg.MQTT.Enable {
		publisher = mqtt.NewPublisher(cfg, logger)
		coll.OnPublish(publisher.PublishSnapshot)
	}

	api := server.NewServer(*cfg, st)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sup := supervisor.New(coll, bus, api, publisher, logger)
	if err := sup.Run(ctx); err != nil {
		logger.Fatal("fatal error", zap.Error(err))
	}
}

func initConfig() (*config.Config, error) {

	// alias PORT => PVAGG_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("PVAGG_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("pvagg")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func buildSources(cfg *config.Config, logger *zap.Logger) ([]*collector.Source, error) {
	sources := make([]*collector.Source, 0, len(cfg.Sources))
	for _, srcCfg := range cfg.Sources {
		port := srcCfg.Port
		if port == 0 {
			port = 502
		}
		reader, err := sun2000modbus.CreateSUN2000ModbusReader(srcCfg.Host, port,
			uint8(srcCfg.UnitId), cfg.Monitor.ReadTimeout(), logger, nil)
		if err != nil {
			return nil, err
		}
		sources = append(sources, collector.NewSource(srcCfg, reader, logger))
	}
	return sources, nil
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("port", 8080)
	viper.SetDefault("http_log", false)
	viper.SetDefault("bus_server.listen_address", "0.0.0.0")
	viper.SetDefault("bus_server.port", 502)
	viper.SetDefault("bus_server.unit_id", 1)
	viper.SetDefault("bus_server.max_clients", 5)
	viper.SetDefault("monitor.poll_interval_millis", 5000)
	viper.SetDefault("monitor.read_timeout_millis", 10000)
	viper.SetDefault("monitor.max_concurrent_polls", 4)
	viper.SetDefault("mqtt.enable", false)
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.base_topic", "pvagg")
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
