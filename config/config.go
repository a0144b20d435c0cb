package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"shoppulse/anomaly"
)

type Config struct {
	Shoppulse ShoppulseConfig `yaml:"shoppulse"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Anomaly   AnomalyConfig   `yaml:"anomaly"`
	Report    ReportConfig    `yaml:"report"`
	Platform  PlatformConfig  `yaml:"platform"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ShoppulseConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type AnalyticsConfig struct {
	TopProducts    int    `yaml:"top_products"`
	BottomProducts int    `yaml:"bottom_products"`
	DefaultRange   string `yaml:"default_range"`
	Timezone       string `yaml:"timezone"`
}

type AnomalyConfig struct {
	LookbackDays int            `yaml:"lookback_days"`
	Thresholds   anomaly.Config `yaml:"thresholds"`
}

type ReportConfig struct {
	IntervalMinutes int      `yaml:"interval_minutes"`
	Stores          []string `yaml:"stores"`
	IncludeGeo      bool     `yaml:"include_geo"`
}

func (r ReportConfig) Interval() time.Duration {
	return time.Duration(r.IntervalMinutes) * time.Minute
}

type PlatformConfig struct {
	BaseURL           string `yaml:"base_url"`
	TimeoutSeconds    int    `yaml:"timeout_seconds"`
	RequestsPerSecond int    `yaml:"requests_per_second"`
	BurstSize         int    `yaml:"burst_size"`
}

func (p PlatformConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

type StorageConfig struct {
	S3    S3Config    `yaml:"s3"`
	Kafka KafkaConfig `yaml:"kafka"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Prefix          string `yaml:"prefix"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	Compression     string `yaml:"compression"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type LoggingConfig struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"`
	Output        string `yaml:"output"`
	MaxAge        int    `yaml:"max_age"`
	CloudWatch    bool   `yaml:"cloudwatch"`
	Namespace     string `yaml:"namespace"`
	DashboardName string `yaml:"dashboard_name"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(resolveEnvSpecificPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Analytics: AnalyticsConfig{
			TopProducts:    10,
			BottomProducts: 10,
			DefaultRange:   "last_7_days",
			Timezone:       "UTC",
		},
		Anomaly: AnomalyConfig{
			LookbackDays: 30,
		},
		Report: ReportConfig{
			IntervalMinutes: 24 * 60,
			IncludeGeo:      true,
		},
		Platform: PlatformConfig{
			TimeoutSeconds:    30,
			RequestsPerSecond: 2,
			BurstSize:         4,
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override S3 settings from environment variables if available
	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}

	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Shoppulse.Name == "" {
		return fmt.Errorf("shoppulse.name is required")
	}

	if cfg.Shoppulse.Version == "" {
		return fmt.Errorf("shoppulse.version is required")
	}

	if cfg.Analytics.TopProducts <= 0 {
		return fmt.Errorf("analytics.top_products must be greater than 0")
	}
	if cfg.Analytics.BottomProducts <= 0 {
		return fmt.Errorf("analytics.bottom_products must be greater than 0")
	}

	if cfg.Anomaly.LookbackDays <= 0 {
		return fmt.Errorf("anomaly.lookback_days must be greater than 0")
	}

	if cfg.Report.IntervalMinutes <= 0 {
		return fmt.Errorf("report.interval_minutes must be greater than 0")
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}

	if cfg.Storage.Kafka.Enabled {
		if len(cfg.Storage.Kafka.Brokers) == 0 {
			return fmt.Errorf("storage.kafka.brokers is required when Kafka is enabled")
		}
		if cfg.Storage.Kafka.Topic == "" {
			return fmt.Errorf("storage.kafka.topic is required when Kafka is enabled")
		}
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
