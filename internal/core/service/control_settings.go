package service

import (
	"errors"
	"fmt"
	"sync"

	"github.com/berfenger/surplus2wallbox/internal/core/domain"
)

var ErrSettingOutOfRange = errors.New("setting out of range")

// ControlSettings is the shared, read-mostly control configuration.
type ControlSettings struct {
	mu  sync.RWMutex
	cfg domain.ControlConfig
}

func NewControlSettings(cfg domain.ControlConfig) *ControlSettings {
	return &ControlSettings{cfg: cfg}
}

func (s *ControlSettings) Get() domain.ControlConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func ValidateHeadroomPower(watts int) error {
	if watts < -domain.MAX_HEADROOM_POWER || watts > domain.MAX_HEADROOM_POWER {
		return fmt.Errorf("%w: headroom power %dW not in [%d, %d]", ErrSettingOutOfRange, watts, -domain.MAX_HEADROOM_POWER, domain.MAX_HEADROOM_POWER)
	}
	return nil
}

func ValidateProtectionPower(watts int) error {
	if watts < 0 || watts > domain.MAX_PROTECTION_POWER {
		return fmt.Errorf("%w: protection power %dW not in [0, %d]", ErrSettingOutOfRange, watts, domain.MAX_PROTECTION_POWER)
	}
	return nil
}

func (s *ControlSettings) SetHeadroomPower(watts int) error {
	if err := ValidateHeadroomPower(watts); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.HeadroomPower = watts
	return nil
}

func (s *ControlSettings) SetProtectionPower(watts int) error {
	if err := ValidateProtectionPower(watts); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.ProtectionPower = watts
	return nil
}
