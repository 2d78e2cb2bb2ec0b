package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	adactor "github.com/berfenger/surplus2wallbox/internal/adapter/actor"
	"github.com/berfenger/surplus2wallbox/internal/adapter/telegram"
	"github.com/berfenger/surplus2wallbox/internal/adapter/telemetry"
	"github.com/berfenger/surplus2wallbox/internal/adapter/wallbox"
	"github.com/berfenger/surplus2wallbox/internal/config"
	"github.com/berfenger/surplus2wallbox/internal/core/actor"
	"github.com/berfenger/surplus2wallbox/internal/core/domain"
	"github.com/berfenger/surplus2wallbox/internal/core/service"
	"github.com/berfenger/surplus2wallbox/internal/server"
	"github.com/berfenger/surplus2wallbox/internal/util/actorutil"
	"github.com/berfenger/surplus2wallbox/internal/util/clock"
	"github.com/berfenger/surplus2wallbox/internal/util/logbuf"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, stopTelemetry context.CancelFunc, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")
	stopTelemetry()

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger, teed into the dashboard log buffer
	logs := logbuf.New(cfg.Monitor.LogLines)
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build(logs.Tee(zapCfg.Level)))
	defer logger.Sync()

	clk := clock.Real()

	// wallbox controller
	settings := service.NewControlSettings(cfg.Control.Domain())
	controller := service.NewWallboxController(wallbox.NewClient(cfg.Wallbox), settings, clk, logger)
	initCtx, initCancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := controller.Initialize(initCtx); err != nil {
		logger.Error("main: wallbox initialization failed, keeping defaults", zap.Error(err))
	}
	initCancel()

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	// notifier
	var sender adactor.MessageSender
	if cfg.Telegram.Enabled() {
		sender = telegram.NewClient(cfg.Telegram)
	}
	notifierPid, err := ctx.SpawnNamed(pactor.PropsFromProducer(func() pactor.Actor {
		return adactor.NewNotifierActor(sender, as.EventStream, clk, logger)
	}), domain.ACTOR_ID_NOTIFIER)
	if err != nil {
		logger.Error("main: cannot spawn notifier", zap.Error(err))
		return
	}
	notifier := adactor.NewActorNotifier(ctx, notifierPid)

	// control loop
	logic := &service.DefaultSurplusControlLogic{
		Settings: settings,
		Notifier: notifier,
		Clock:    clk,
		Logger:   logger.With(zap.String("component", "surplus_control")),
	}
	engine := service.NewSurplusEngine(service.NewEnergyMonitor(), controller, settings, logic,
		cfg.Monitor.HistorySize, clk, logger)

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, as.EventStream, mqttActorProvider(cfg, logger),
			notifierPid, engine, engine, logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		logger.Error("main: cannot spawn master", zap.Error(err))
		return
	}

	// telemetry
	telemetryCtx, stopTelemetry := context.WithCancel(context.Background())
	listener := telemetry.NewListener(cfg.Telemetry, clk, logger)
	telemetryDone := make(chan struct{})
	if err := listener.Open(); err != nil {
		logger.Error("main: telemetry listener failed to start, control loop disabled", zap.Error(err))
		engine.SetTelemetryHealthy(false)
		notifier.Notify(domain.TelemetryDownNotification(err))
		close(telemetryDone)
	} else {
		engine.SetTelemetryHealthy(true)
		go func() {
			defer close(telemetryDone)
			if err := listener.Run(telemetryCtx, engine); err != nil {
				logger.Error("main: telemetry listener stopped", zap.Error(err))
			}
			engine.SetTelemetryHealthy(false)
		}()
	}
	notifier.Notify(domain.StartedNotification())

	server := server.NewServer(*cfg, ctx, pid, engine, logs, logger)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, stopTelemetry, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	<-telemetryDone

	offCtx, offCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := engine.TurnOff(offCtx); err != nil {
		logger.Error("main: wallbox shutdown failed", zap.Error(err))
	}
	offCancel()
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	ctx.Stop(notifierPid)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => SURPLUS_PORT
	aliasEnv("PORT", "SURPLUS_PORT")
	// legacy names of the telegram credentials
	aliasEnv("API_KEY", "SURPLUS_TELEGRAM_BOT_TOKEN")
	aliasEnv("CHAT_ID", "SURPLUS_TELEGRAM_CHAT_ID")

	setConfigDefaults()

	viper.SetEnvPrefix("surplus")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
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

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	// check bounds
	if err := cfg.Control.Validate(); err != nil {
		return nil, err
	}
	if cfg.Wallbox.Host == "" {
		return nil, errors.New("config param wallbox.host is required")
	}
	if cfg.Monitor.HistorySize <= 0 || cfg.Monitor.LogLines <= 0 {
		return nil, errors.New("config params monitor.history_size and monitor.log_lines should be > 0")
	}

	return &cfg, nil
}

func aliasEnv(from, to string) {
	if v := os.Getenv(from); v != "" && os.Getenv(to) == "" {
		os.Setenv(to, v)
	}
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	if !cfg.MQTT.Enable {
		return nil
	}
	return func(eventStream *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, eventStream, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("port", 8080)
	viper.SetDefault("http_log", false)

	viper.SetDefault("mqtt.enable", false)
	viper.SetDefault("mqtt.host", "localhost")
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.base_topic", "surplus2wallbox")
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")

	viper.SetDefault("telemetry.group", "224.192.32.19")
	viper.SetDefault("telemetry.port", 22600)
	viper.SetDefault("telemetry.interface_ip", "")

	viper.SetDefault("wallbox.host", "")
	viper.SetDefault("wallbox.command_timeout", "3s")
	viper.SetDefault("wallbox.status_timeout", "5s")

	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.chat_id", "")
	viper.SetDefault("telegram.api_url", telegram.DEFAULT_API_URL)

	viper.SetDefault("control.headroom_power", 0)
	viper.SetDefault("control.protection_power", 300)
	viper.SetDefault("control.cooldown", "60s")
	viper.SetDefault("control.command_interval", "5s")
	viper.SetDefault("control.grace_period", "60s")
	viper.SetDefault("control.settle_delay", "500ms")
	viper.SetDefault("control.stale_after", "0s")
	viper.SetDefault("control.smoothing_factor", 0.5)
	viper.SetDefault("control.max_slew_per_second", 500)
	viper.SetDefault("control.single_phase.min_power", 1380)
	viper.SetDefault("control.single_phase.max_power", 7360)
	viper.SetDefault("control.three_phase.min_power", 4140)
	viper.SetDefault("control.three_phase.max_power", 22000)

	viper.SetDefault("monitor.history_size", 30)
	viper.SetDefault("monitor.log_lines", 50)
	viper.SetDefault("monitor.publish_interval_millis", 5000)
	viper.SetDefault("monitor.stream_interval_millis", 1000)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	cfg.Telegram.BotToken = "*redacted*"
	cfg.Telegram.ChatId = "*redacted*"
	slog.Info("Using", "config", cfg)
}
