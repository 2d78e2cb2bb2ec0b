package util

import (
	"time"

	"github.com/berfenger/surplus2wallbox/internal/adapter/telemetry"
	"github.com/berfenger/surplus2wallbox/internal/adapter/wallbox"
	"github.com/berfenger/surplus2wallbox/internal/config"
	"github.com/berfenger/surplus2wallbox/internal/core/domain"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "surplus2wallbox",
			HADiscoveryTopic: "homeassistant",
		},
		Telemetry: telemetry.ListenerConfig{
			Group: "224.192.32.19",
			Port:  22600,
		},
		Wallbox: wallbox.ClientConfig{
			Host:           "-.-.-.-",
			CommandTimeout: 3 * time.Second,
			StatusTimeout:  5 * time.Second,
		},
		Control: config.ControlConfig{
			ProtectionPower:  300,
			Cooldown:         60 * time.Second,
			CommandInterval:  5 * time.Second,
			GracePeriod:      60 * time.Second,
			SettleDelay:      500 * time.Millisecond,
			SmoothingFactor:  0.5,
			MaxSlewPerSecond: 500,
			SinglePhase:      domain.PowerBounds{Min: 1380, Max: 7360},
			ThreePhase:       domain.PowerBounds{Min: 4140, Max: 22000},
		},
		Monitor: config.MonitorConfig{
			HistorySize:           30,
			LogLines:              50,
			PublishIntervalMillis: 5000,
			StreamIntervalMillis:  1000,
		},
		Port: 8080,
	}
}
