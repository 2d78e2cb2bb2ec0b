package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/berfenger/surplus2wallbox/internal/adapter/telegram"
	"github.com/berfenger/surplus2wallbox/internal/adapter/telemetry"
	"github.com/berfenger/surplus2wallbox/internal/adapter/wallbox"
	"github.com/berfenger/surplus2wallbox/internal/core/domain"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel  zapcore.Level
	MQTT      MQTTConfig               `mapstructure:"mqtt"`
	Telemetry telemetry.ListenerConfig `mapstructure:"telemetry"`
	Wallbox   wallbox.ClientConfig     `mapstructure:"wallbox"`
	Telegram  telegram.Config          `mapstructure:"telegram"`
	Control   ControlConfig            `mapstructure:"control"`
	Monitor   MonitorConfig            `mapstructure:"monitor"`
	Port      uint                     `mapstructure:"port"`
	HttpLog   bool                     `mapstructure:"http_log"`
}

type ControlConfig struct {
	HeadroomPower    int                `mapstructure:"headroom_power"`
	ProtectionPower  int                `mapstructure:"protection_power"`
	Cooldown         time.Duration      `mapstructure:"cooldown"`
	CommandInterval  time.Duration      `mapstructure:"command_interval"`
	GracePeriod      time.Duration      `mapstructure:"grace_period"`
	SettleDelay      time.Duration      `mapstructure:"settle_delay"`
	StaleAfter       time.Duration      `mapstructure:"stale_after"`
	SmoothingFactor  float64            `mapstructure:"smoothing_factor"`
	MaxSlewPerSecond float64            `mapstructure:"max_slew_per_second"`
	SinglePhase      domain.PowerBounds `mapstructure:"single_phase"`
	ThreePhase       domain.PowerBounds `mapstructure:"three_phase"`
}

type MonitorConfig struct {
	HistorySize           int    `mapstructure:"history_size"`
	LogLines              int    `mapstructure:"log_lines"`
	PublishIntervalMillis uint32 `mapstructure:"publish_interval_millis"`
	StreamIntervalMillis  uint32 `mapstructure:"stream_interval_millis"`
}

type MQTTConfig struct {
	Enable            bool
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func (c ControlConfig) Domain() domain.ControlConfig {
	return domain.ControlConfig{
		HeadroomPower:    c.HeadroomPower,
		ProtectionPower:  c.ProtectionPower,
		Cooldown:         c.Cooldown,
		CommandInterval:  c.CommandInterval,
		GracePeriod:      c.GracePeriod,
		SettleDelay:      c.SettleDelay,
		StaleAfter:       c.StaleAfter,
		SmoothingFactor:  c.SmoothingFactor,
		MaxSlewPerSecond: c.MaxSlewPerSecond,
		SinglePhase:      c.SinglePhase,
		ThreePhase:       c.ThreePhase,
	}
}

// Validate checks the bounds that would make the controller misbehave.
func (c ControlConfig) Validate() error {
	if c.HeadroomPower < -domain.MAX_HEADROOM_POWER || c.HeadroomPower > domain.MAX_HEADROOM_POWER {
		return fmt.Errorf("config param control.headroom_power must be within [%d, %d]", -domain.MAX_HEADROOM_POWER, domain.MAX_HEADROOM_POWER)
	}
	if c.ProtectionPower < 0 || c.ProtectionPower > domain.MAX_PROTECTION_POWER {
		return fmt.Errorf("config param control.protection_power must be within [0, %d]", domain.MAX_PROTECTION_POWER)
	}
	if c.SmoothingFactor <= 0 || c.SmoothingFactor > 1 {
		return errors.New("config param control.smoothing_factor must be within (0, 1]")
	}
	if c.MaxSlewPerSecond < 0 {
		return errors.New("config param control.max_slew_per_second should be >= 0")
	}
	if c.Cooldown < 0 || c.CommandInterval < 0 || c.GracePeriod < 0 || c.SettleDelay < 0 || c.StaleAfter < 0 {
		return errors.New("config durations under control must not be negative")
	}
	if err := c.SinglePhase.Valid(); err != nil {
		return fmt.Errorf("config param control.single_phase: %w", err)
	}
	if err := c.ThreePhase.Valid(); err != nil {
		return fmt.Errorf("config param control.three_phase: %w", err)
	}
	return nil
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
