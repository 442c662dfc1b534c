package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// DatabaseURL selects the Postgres report store. Empty runs the service in
	// demo mode on the in-memory store seeded from the offline dataset.
	DatabaseURL  string
	ReportWindow time.Duration

	RefreshInterval  time.Duration
	MutationCooldown time.Duration

	// Traffic probe configuration.
	TrafficEnabled bool
	TrafficTimeout time.Duration
	// TrafficConcurrency caps simultaneous probes; zero runs every probe of
	// a cycle at once.
	TrafficConcurrency int
	BaiduAK            string
	BaiduTrafficURL    string

	// Optional snapshot sinks and change notifications.
	KafkaBrokers       []string
	KafkaSnapshotTopic string
	NATSURL            string
	NATSSubject        string
	S3Bucket           string
	S3Prefix           string
	S3Endpoint         string
	AWSRegion          string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	reportWindow, err := parsePositiveDuration("REPORT_WINDOW", "1h")
	if err != nil {
		return nil, err
	}
	refreshInterval, err := parsePositiveDuration("REFRESH_INTERVAL", "15s")
	if err != nil {
		return nil, err
	}
	trafficTimeout, err := parsePositiveDuration("TRAFFIC_TIMEOUT", "3s")
	if err != nil {
		return nil, err
	}
	cooldown, err := time.ParseDuration(sharedcfg.EnvOrDefault("MUTATION_COOLDOWN", "2s"))
	if err != nil || cooldown < 0 {
		return nil, errors.New("invalid MUTATION_COOLDOWN")
	}

	concurrency, err := parseTrafficConcurrency()
	if err != nil {
		return nil, err
	}

	baiduAK := os.Getenv("BAIDU_MAP_AK")
	trafficEnabled := baiduAK != ""
	if v := os.Getenv("TRAFFIC_ENABLED"); v != "" {
		trafficEnabled = v == "true"
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DatabaseURL:  os.Getenv("DATABASE_URL"),
		ReportWindow: reportWindow,

		RefreshInterval:  refreshInterval,
		MutationCooldown: cooldown,

		TrafficEnabled:     trafficEnabled,
		TrafficTimeout:     trafficTimeout,
		TrafficConcurrency: concurrency,
		BaiduAK:            baiduAK,
		BaiduTrafficURL:    sharedcfg.EnvOrDefault("BAIDU_TRAFFIC_URL", "https://api.map.baidu.com/traffic/v1/bound"),

		KafkaBrokers:       brokers,
		KafkaSnapshotTopic: sharedcfg.EnvOrDefault("KAFKA_SNAPSHOT_TOPIC", "checkpoint-status"),
		NATSURL:            os.Getenv("NATS_URL"),
		NATSSubject:        sharedcfg.EnvOrDefault("NATS_SUBJECT", "checkpoint.mutations"),
		S3Bucket:           os.Getenv("S3_BUCKET"),
		S3Prefix:           sharedcfg.EnvOrDefault("S3_PREFIX", "snapshots"),
		S3Endpoint:         os.Getenv("S3_ENDPOINT"),
		AWSRegion:          sharedcfg.EnvOrDefault("AWS_REGION", "ap-east-1"),
	}

	if cfg.TrafficEnabled && cfg.BaiduAK == "" {
		return nil, errors.New("TRAFFIC_ENABLED is true but BAIDU_MAP_AK is not set")
	}
	return cfg, nil
}

// KafkaEnabled reports whether snapshots are published to Kafka.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// DemoMode reports whether the in-memory store replaces Postgres.
func (c *Config) DemoMode() bool { return c.DatabaseURL == "" }

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return d, nil
}

func parseTrafficConcurrency() (int, error) {
	s := os.Getenv("TRAFFIC_CONCURRENCY")
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 64 {
		return 0, errors.New("invalid TRAFFIC_CONCURRENCY: must be between 0 (unbounded) and 64")
	}
	return n, nil
}
