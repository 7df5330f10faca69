package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load reads config.yaml from the usual locations and overlays environment
// variables.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches
// ./configs, . and /app/configs.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		v.AddConfigPath("/app/configs")
	}

	setDefaults(v)

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Allow common env vars without APP_ prefix for Docker/VM deploys
	_ = v.BindEnv("http.port", "HTTP_PORT", "APP_HTTP_PORT")
	_ = v.BindEnv("database.url", "DATABASE_URL", "APP_DATABASE_URL")
	_ = v.BindEnv("redis.url", "REDIS_URL", "APP_REDIS_URL")
	_ = v.BindEnv("queue.url", "NATS_URL", "APP_QUEUE_URL")
	_ = v.BindEnv("jwt.secret", "JWT_SECRET", "APP_JWT_SECRET")
	_ = v.BindEnv("vault.token", "VAULT_TOKEN", "APP_VAULT_TOKEN")
	_ = v.BindEnv("app.environment", "APP_ENVIRONMENT")
	_ = v.BindEnv("logging.level", "LOG_LEVEL")
	_ = v.BindEnv("tts.language", "TTS_LANGUAGE", "APP_TTS_LANGUAGE")
	_ = v.BindEnv("tts.cache_path", "TTS_CACHE_PATH", "APP_TTS_CACHE_PATH")
	_ = v.BindEnv("model.descriptor_path", "MODEL_DESCRIPTOR_PATH", "APP_MODEL_DESCRIPTOR_PATH")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "voz-visible")
	v.SetDefault("app.version", "v1.0.0")
	v.SetDefault("app.environment", "development")

	v.SetDefault("http.port", 5000)
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.body_limit", 16<<20)
	v.SetDefault("grpc.port", 50051)

	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("vault.secret_path", "secret/data/voz-visible")
	v.SetDefault("opentelemetry.service_name", "voz-visible")
	v.SetDefault("opentelemetry.endpoint", "http://jaeger:14268/api/traces")
	v.SetDefault("logging.level", "info")
	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("model.descriptor_path", "models/sign_model.yaml")
	v.SetDefault("prediction.interval", 100*time.Millisecond)
	v.SetDefault("prediction.throttle_mode", "global")
	v.SetDefault("prediction.classify_timeout", 2*time.Second)

	v.SetDefault("detector.url", "http://localhost:8001")
	v.SetDefault("detector.max_width", 640)
	v.SetDefault("detector.timeout", 5*time.Second)

	v.SetDefault("tts.url", "http://localhost:8002")
	v.SetDefault("tts.language", "es-co")
	v.SetDefault("tts.slow", false)
	v.SetDefault("tts.timeout", 10*time.Second)
	v.SetDefault("tts.cache_backend", "file")
	v.SetDefault("tts.cache_path", "data/cache/tts")
	v.SetDefault("tts.memory_max_age", 24*time.Hour)

	v.SetDefault("ledger.dir", "logs")
	v.SetDefault("ledger.csv_file", "translations.csv")

	v.SetDefault("limits.min_image_bytes", 1024)
	v.SetDefault("limits.max_image_bytes", 10<<20)
	v.SetDefault("limits.max_text_length", 500)

	v.SetDefault("camera.max_fps", 15)
}
