package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	DBUrl       string `mapstructure:"DB_URL"`
	Port        string `mapstructure:"PORT"`
	MetricsPort string `mapstructure:"METRICS_PORT"`

	// Redis
	RedisAddr string `mapstructure:"REDIS_ADDR"`

	// Kafka
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	KafkaTopic   string `mapstructure:"KAFKA_TOPIC"`

	// Worker
	WorkerCount   int `mapstructure:"WORKER_COUNT"`
	MaxRetries    int `mapstructure:"MAX_RETRIES"`
	RetryDelaySec int `mapstructure:"RETRY_DELAY_SEC"`

	// Fraud thresholds
	FraudRateThreshold      int     `mapstructure:"FRAUD_RATE_THRESHOLD"`
	FraudMaxClicksPerIP     int     `mapstructure:"FRAUD_MAX_CLICKS_PER_IP"`
	FraudMaxClicksPerIPURL  int     `mapstructure:"FRAUD_MAX_CLICKS_PER_IP_URL"`
	FraudVelocitySec        float64 `mapstructure:"FRAUD_VELOCITY_SEC"`
	FraudWindowSec          int     `mapstructure:"FRAUD_WINDOW_SEC"`
	FraudMaxClicksPerWindow int     `mapstructure:"FRAUD_MAX_CLICKS_PER_WINDOW"`
	FraudMaxSequenceLength  int     `mapstructure:"FRAUD_MAX_SEQUENCE_LENGTH"`

	// Rate limiting (shorten/stats endpoints)
	RateLimit int `mapstructure:"RATE_LIMIT"`

	// Trending
	TrendingIntervalMin int `mapstructure:"TRENDING_INTERVAL_MIN"`
	TrendingTopN        int `mapstructure:"TRENDING_TOP_N"`

	// Geo lookup
	GeoEndpoint string `mapstructure:"GEO_ENDPOINT"`

	// MinIO archive (disabled when endpoint is empty)
	MinIOEndpoint  string `mapstructure:"MINIO_ENDPOINT"`
	MinIOAccessKey string `mapstructure:"MINIO_ACCESS_KEY"`
	MinIOSecretKey string `mapstructure:"MINIO_SECRET_KEY"`
	MinIOBucket    string `mapstructure:"MINIO_BUCKET"`

	// Logging
	LogLevel string `mapstructure:"LOG_LEVEL"`
	LogFile  string `mapstructure:"LOG_FILE"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()
	viper.AutomaticEnv()

	var c Config
	if err := viper.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

func (c *Config) GetKafkaBrokers() []string {
	return strings.Split(c.KafkaBrokers, ",")
}

func (c *Config) validate() error {
	if c.DBUrl == "" {
		return fmt.Errorf("DB_URL is required")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}
	if c.KafkaBrokers == "" {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.KafkaTopic == "" {
		c.KafkaTopic = "click-events"
	}
	if c.KafkaGroupID == "" {
		c.KafkaGroupID = "click-workers"
	}
	if c.Port == "" {
		c.Port = "5000"
	}
	if c.MetricsPort == "" {
		c.MetricsPort = "9090"
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = 8
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelaySec <= 0 {
		c.RetryDelaySec = 5
	}
	if c.FraudRateThreshold <= 0 {
		c.FraudRateThreshold = 10
	}
	if c.FraudMaxClicksPerIP <= 0 {
		c.FraudMaxClicksPerIP = 10
	}
	if c.FraudMaxClicksPerIPURL <= 0 {
		c.FraudMaxClicksPerIPURL = 5
	}
	if c.FraudVelocitySec <= 0 {
		c.FraudVelocitySec = 1.0
	}
	if c.FraudWindowSec <= 0 {
		c.FraudWindowSec = 10
	}
	if c.FraudMaxClicksPerWindow <= 0 {
		c.FraudMaxClicksPerWindow = 5
	}
	if c.FraudMaxSequenceLength <= 0 {
		c.FraudMaxSequenceLength = 5
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 10
	}
	if c.TrendingIntervalMin <= 0 {
		c.TrendingIntervalMin = 5
	}
	if c.TrendingTopN <= 0 {
		c.TrendingTopN = 10
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	return nil
}
