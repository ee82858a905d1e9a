package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env               string        `mapstructure:"ENV"`
	Port              string        `mapstructure:"PORT"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	AdminKey          string        `mapstructure:"ADMIN_KEY"`
	DetectorURL       string        `mapstructure:"DETECTOR_URL"`
	TicketsAPIURL     string        `mapstructure:"TICKETS_API_URL"`
	CORSAllowed       string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout    time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	MaxUploadSizeMB   int64         `mapstructure:"MAX_UPLOAD_MB"`
	RefreshInterval   time.Duration `mapstructure:"REFRESH_INTERVAL"`
	PageSize          int           `mapstructure:"PAGE_SIZE"`
	Timezone          string        `mapstructure:"TIMEZONE"`
	GeocoderURL       string        `mapstructure:"GEOCODER_URL"`
	GeocoderUserAgent string        `mapstructure:"GEOCODER_USER_AGENT"`
	MetricsEnabled    bool          `mapstructure:"METRICS_ENABLED"`
	MockCaptureEvery  int           `mapstructure:"MOCK_CAPTURE_EVERY"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("ADMIN_KEY", "")
	v.SetDefault("DETECTOR_URL", "")
	v.SetDefault("TICKETS_API_URL", "http://127.0.0.1:8000")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("MAX_UPLOAD_MB", 20)
	v.SetDefault("REFRESH_INTERVAL", "5s")
	v.SetDefault("PAGE_SIZE", 10)
	v.SetDefault("TIMEZONE", "Local")
	v.SetDefault("GEOCODER_URL", "https://nominatim.openstreetmap.org")
	v.SetDefault("GEOCODER_USER_AGENT", "mdms-triage")
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("MOCK_CAPTURE_EVERY", 5)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Location resolves TIMEZONE; calendar-day filters are evaluated in it.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}
