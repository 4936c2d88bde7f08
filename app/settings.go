package app

import (
	"encoding/json"
	"fmt"
	"os"
)

// Settings is the viewer configuration surface consumed from the UI side.
type Settings struct {
	FovDeg          float32 `json:"fov_degrees"`
	SpeedMultiplier float32 `json:"speed_multiplier"`
	PickToFocus     bool    `json:"pick_to_focus"`
}

func DefaultSettings() Settings {
	return Settings{
		FovDeg:          60,
		SpeedMultiplier: 1,
		PickToFocus:     true,
	}
}

func LoadSettings(filename string) (Settings, error) {
	s := DefaultSettings()
	data, err := os.ReadFile(filename)
	if err != nil {
		return s, fmt.Errorf("settings: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return DefaultSettings(), fmt.Errorf("settings: parse %s: %w", filename, err)
	}
	if s.FovDeg <= 0 || s.FovDeg >= 180 {
		s.FovDeg = DefaultSettings().FovDeg
	}
	if s.SpeedMultiplier <= 0 {
		s.SpeedMultiplier = 1
	}
	return s, nil
}

func SaveSettings(filename string, s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	return nil
}
