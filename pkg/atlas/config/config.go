// Package config loads ATLAS's configuration from file and
// environment variables via viper.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// APIConfig configures the HTTP surface.
type APIConfig struct {
	ListenAddress string        `mapstructure:"listen_address"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	EnableCORS    bool          `mapstructure:"enable_cors"`
	JWTSecret     string        `mapstructure:"jwt_secret"`
	JWTExpiration time.Duration `mapstructure:"jwt_expiration"`

	RateLimitPerMinute   int `mapstructure:"rate_limit_per_minute"`
	RateLimitBurstFactor int `mapstructure:"rate_limit_burst_factor"`
}

// ResilienceConfig configures the resilience fabric.
type ResilienceConfig struct {
	CircuitBreakerThreshold int           `mapstructure:"circuit_breaker_failure_threshold"`
	CircuitBreakerTimeout   time.Duration `mapstructure:"circuit_breaker_recovery_timeout"`
	HealthCheckInterval     time.Duration `mapstructure:"health_check_interval"`
	StateSnapshotDriver     string        `mapstructure:"state_snapshot_driver"`
	StateSnapshotDSN        string        `mapstructure:"state_snapshot_dsn"`
	LocalInferenceModelPath string        `mapstructure:"local_inference_model_path"`
	LocalLLMProvider        string        `mapstructure:"local_llm_provider"`
	LocalLLMModel           string        `mapstructure:"local_llm_model"`

	RedisURL          string `mapstructure:"redis_url"`
	DatabaseURL       string `mapstructure:"database_url"`
	QdrantHost        string `mapstructure:"qdrant_host"`
	QdrantPort        int    `mapstructure:"qdrant_port"`

	OfflineMaxQueueSize  int `mapstructure:"offline_max_queue_size"`
	OfflineSyncBatchSize int `mapstructure:"offline_sync_batch_size"`
}

// UnifiedConfig configures the unified intelligence core.
type UnifiedConfig struct {
	ConsciousnessLevel string        `mapstructure:"consciousness_level"`
	ReasoningDepth     int           `mapstructure:"reasoning_depth"`
	ReflectionInterval time.Duration `mapstructure:"reflection_interval"`
	PersonaConsistency float64       `mapstructure:"persona_consistency"`
	AttentionCapacity  float64       `mapstructure:"attention_capacity"`
	InterruptsPerSecond float64      `mapstructure:"interrupts_per_second"`
}

// Config is ATLAS's complete application configuration.
type Config struct {
	Environment string            `mapstructure:"environment"`
	API         APIConfig         `mapstructure:"api"`
	Resilience  ResilienceConfig  `mapstructure:"resilience"`
	Unified     UnifiedConfig     `mapstructure:"unified"`
}

// Load reads configuration from the file named by the ATLAS_CONFIG_FILE
// environment variable (default configs/config.yaml), overlays
// ATLAS_-prefixed environment variables, and unmarshals into a Config.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	configFile := os.Getenv("ATLAS_CONFIG_FILE")
	if configFile == "" {
		configFile = "configs/config.yaml"
	}
	v.SetConfigFile(configFile)

	v.SetEnvPrefix("ATLAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "dev")

	v.SetDefault("api.listen_address", ":8090")
	v.SetDefault("api.read_timeout", 30*time.Second)
	v.SetDefault("api.write_timeout", 30*time.Second)
	v.SetDefault("api.idle_timeout", 90*time.Second)
	v.SetDefault("api.enable_cors", true)
	v.SetDefault("api.jwt_expiration", 24*time.Hour)
	v.SetDefault("api.rate_limit_per_minute", 300)
	v.SetDefault("api.rate_limit_burst_factor", 2)

	v.SetDefault("resilience.circuit_breaker_failure_threshold", 3)
	v.SetDefault("resilience.circuit_breaker_recovery_timeout", 30*time.Second)
	v.SetDefault("resilience.health_check_interval", 15*time.Second)
	v.SetDefault("resilience.state_snapshot_driver", "postgres")
	v.SetDefault("resilience.local_llm_provider", "RuleBased")
	v.SetDefault("resilience.redis_url", "redis://localhost:6379/0")
	v.SetDefault("resilience.database_url", "")
	v.SetDefault("resilience.qdrant_host", "localhost")
	v.SetDefault("resilience.qdrant_port", 6333)
	v.SetDefault("resilience.offline_max_queue_size", 1000)
	v.SetDefault("resilience.offline_sync_batch_size", 50)

	v.SetDefault("unified.consciousness_level", "medium")
	v.SetDefault("unified.reasoning_depth", 10)
	v.SetDefault("unified.reflection_interval", time.Hour)
	v.SetDefault("unified.persona_consistency", 0.8)
	v.SetDefault("unified.attention_capacity", 1.0)
	v.SetDefault("unified.interrupts_per_second", 10.0)
}
