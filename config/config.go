package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Inference InferenceConfig
	Billing   BillingConfig
	Normalize NormalizeConfig
	Watchdog  WatchdogConfig
}

type ServerConfig struct {
	Host string
	Port string
}

type InferenceConfig struct {
	BaseURL string
}

type BillingConfig struct {
	BaseURL string
}

type NormalizeConfig struct {
	// ConvertQuality is the JPEG quality used when re-encoding camera
	// formats (TIFF/BMP/WebP) into a universally renderable one.
	ConvertQuality int
	// MaxImageEdge caps the long edge of converted images; 0 disables.
	MaxImageEdge int
}

type WatchdogConfig struct {
	// Schedule is a cron expression for the asset registry watchdog.
	Schedule string
}

func Load() (*Config, error) {
	viper.SetDefault("SERVER_HOST", "localhost")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("INFERENCE_BASE_URL", "http://127.0.0.1:8000")
	viper.SetDefault("BILLING_BASE_URL", "http://127.0.0.1:8000")
	viper.SetDefault("CONVERT_QUALITY", 80)
	viper.SetDefault("MAX_IMAGE_EDGE", 4096)
	viper.SetDefault("WATCHDOG_SCHEDULE", "@every 1m")

	viper.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("SERVER_HOST"),
			Port: viper.GetString("SERVER_PORT"),
		},
		Inference: InferenceConfig{
			BaseURL: viper.GetString("INFERENCE_BASE_URL"),
		},
		Billing: BillingConfig{
			BaseURL: viper.GetString("BILLING_BASE_URL"),
		},
		Normalize: NormalizeConfig{
			ConvertQuality: viper.GetInt("CONVERT_QUALITY"),
			MaxImageEdge:   viper.GetInt("MAX_IMAGE_EDGE"),
		},
		Watchdog: WatchdogConfig{
			Schedule: viper.GetString("WATCHDOG_SCHEDULE"),
		},
	}

	if cfg.Inference.BaseURL == "" {
		return nil, fmt.Errorf("INFERENCE_BASE_URL must not be empty")
	}
	if cfg.Normalize.ConvertQuality < 1 || cfg.Normalize.ConvertQuality > 100 {
		return nil, fmt.Errorf("CONVERT_QUALITY must be within [1,100], got %d", cfg.Normalize.ConvertQuality)
	}

	return cfg, nil
}
