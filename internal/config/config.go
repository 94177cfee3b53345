package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds the daemon settings. Everything has a default; the config
// file is optional.
type Config struct {
	PollInterval        time.Duration `mapstructure:"pollInterval"`
	InteractiveInterval time.Duration `mapstructure:"interactiveInterval"`

	SmoothTransitions bool          `mapstructure:"smoothTransitions"`
	StepDivisor       int           `mapstructure:"stepDivisor"`
	SlowStepDivisor   int           `mapstructure:"slowStepDivisor"`
	StepDelay         time.Duration `mapstructure:"stepDelay"`

	BrightnessFloor     float64 `mapstructure:"brightnessFloor"`
	AllowZeroBrightness bool    `mapstructure:"allowZeroBrightness"`

	DDCTries      int           `mapstructure:"ddcTries"`
	DDCExtraDelay time.Duration `mapstructure:"ddcExtraDelay"`

	AutoHide bool `mapstructure:"autoHide"`

	// Per-display overrides, keyed by persistent id.
	AvoidGamma []string `mapstructure:"avoidGamma"`
	DisableDDC []string `mapstructure:"disableDDC"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pollInterval", time.Second)
	v.SetDefault("interactiveInterval", 500*time.Millisecond)
	v.SetDefault("smoothTransitions", true)
	v.SetDefault("stepDivisor", 6)
	v.SetDefault("slowStepDivisor", 16)
	v.SetDefault("stepDelay", 20*time.Millisecond)
	v.SetDefault("brightnessFloor", 0.05)
	v.SetDefault("allowZeroBrightness", false)
	v.SetDefault("ddcTries", 3)
	v.SetDefault("ddcExtraDelay", 0)
	v.SetDefault("autoHide", true)
}

// Load reads $XDG_CONFIG_HOME/dankdisplay/config.yaml if present and fills
// in defaults for everything else.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	configDir, err := os.UserConfigDir()
	if err == nil {
		v.SetConfigFile(filepath.Join(configDir, "dankdisplay", "config.yaml"))
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(*os.PathError); !ok {
				if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
					// Unreadable but existing config is worth failing loudly on
					if _, statErr := os.Stat(v.ConfigFileUsed()); statErr == nil {
						return nil, err
					}
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.StepDivisor <= 0 {
		cfg.StepDivisor = 6
	}
	if cfg.SlowStepDivisor <= 0 {
		cfg.SlowStepDivisor = 16
	}
	if cfg.DDCTries <= 0 {
		cfg.DDCTries = 3
	}
	if cfg.BrightnessFloor < 0 || cfg.BrightnessFloor >= 1 {
		cfg.BrightnessFloor = 0.05
	}

	return &cfg, nil
}

// Default returns the built-in configuration without touching the
// filesystem. Tests use this.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}
