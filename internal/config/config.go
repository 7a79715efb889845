// Package config loads server configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds the demo server settings, loaded from KAOMASK_* environment
// variables with defaults
type Config struct {
	// Addr is the HTTP listen address
	Addr string `env:"KAOMASK_ADDR" envDefault:":8080"`
	// Device is the camera device ID
	Device int `env:"KAOMASK_DEVICE" envDefault:"0"`
	// SlotPath is the slot specification JSON file
	SlotPath string `env:"KAOMASK_SLOT" envDefault:"assets/slot.json"`
	// BackgroundPath is the character background image
	BackgroundPath string `env:"KAOMASK_BACKGROUND" envDefault:"assets/character.png"`
	// MaskPath is the soft-edged face mask image
	MaskPath string `env:"KAOMASK_MASK" envDefault:"assets/mask.png"`
	// DetectorURL is the websocket landmark detector endpoint
	DetectorURL string `env:"KAOMASK_DETECTOR_URL" envDefault:"ws://127.0.0.1:9001/landmarks"`
	// CanvasWidth and CanvasHeight size the destination surface, zero
	// defers to the slot spec preview dimensions
	CanvasWidth  int `env:"KAOMASK_CANVAS_WIDTH" envDefault:"0"`
	CanvasHeight int `env:"KAOMASK_CANVAS_HEIGHT" envDefault:"0"`
	// LogLevel is the logrus level name
	LogLevel string `env:"KAOMASK_LOG_LEVEL" envDefault:"info"`
}

// Load parses the configuration from the environment
func Load() (Config, error) {

	cfg := Config{}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("error loading config from environment: %w", err)
	}

	return cfg, nil
}
