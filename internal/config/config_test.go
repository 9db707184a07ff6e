package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minimalConfig() *Config {
	return &Config{
		DBUrl:        "postgres://localhost/shortener",
		RedisAddr:    "localhost:6379",
		KafkaBrokers: "localhost:9092",
	}
}

func TestValidateAppliesDefaults(t *testing.T) {
	c := minimalConfig()
	require.NoError(t, c.validate())

	assert.Equal(t, "click-events", c.KafkaTopic)
	assert.Equal(t, "click-workers", c.KafkaGroupID)
	assert.Equal(t, "5000", c.Port)
	assert.Equal(t, "9090", c.MetricsPort)
	assert.Equal(t, 8, c.WorkerCount)
	assert.Equal(t, 3, c.MaxRetries)
	assert.Equal(t, 5, c.RetryDelaySec)
	assert.Equal(t, 10, c.FraudRateThreshold)
	assert.Equal(t, 5, c.FraudMaxClicksPerIPURL)
	assert.Equal(t, 1.0, c.FraudVelocitySec)
	assert.Equal(t, 10, c.RateLimit)
	assert.Equal(t, 5, c.TrendingIntervalMin)
	assert.Equal(t, 10, c.TrendingTopN)
	assert.Equal(t, "info", c.LogLevel)
}

func TestValidateKeepsExplicitValues(t *testing.T) {
	c := minimalConfig()
	c.WorkerCount = 2
	c.MetricsPort = "9100"
	c.KafkaTopic = "clicks"

	require.NoError(t, c.validate())
	assert.Equal(t, 2, c.WorkerCount)
	assert.Equal(t, "9100", c.MetricsPort)
	assert.Equal(t, "clicks", c.KafkaTopic)
}

func TestValidateRejectsMissingRequired(t *testing.T) {
	c := minimalConfig()
	c.DBUrl = ""
	assert.Error(t, c.validate())

	c = minimalConfig()
	c.RedisAddr = ""
	assert.Error(t, c.validate())

	c = minimalConfig()
	c.KafkaBrokers = ""
	assert.Error(t, c.validate())
}
