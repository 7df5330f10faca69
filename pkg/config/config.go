package config

import "time"

type Config struct {
	App           AppConfig           `mapstructure:"app"`
	HTTP          HTTPConfig          `mapstructure:"http"`
	GRPC          GRPCConfig          `mapstructure:"grpc"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Queue         QueueConfig         `mapstructure:"queue"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Vault         VaultConfig         `mapstructure:"vault"`
	OpenTelemetry OpenTelemetryConfig `mapstructure:"opentelemetry"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	CORS          CORSConfig          `mapstructure:"cors"`
	Model         ModelConfig         `mapstructure:"model"`
	Prediction    PredictionConfig    `mapstructure:"prediction"`
	Detector      DetectorConfig      `mapstructure:"detector"`
	TTS           TTSConfig           `mapstructure:"tts"`
	Ledger        LedgerConfig        `mapstructure:"ledger"`
	Limits        LimitsConfig        `mapstructure:"limits"`
	Camera        CameraConfig        `mapstructure:"camera"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type HTTPConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	BodyLimit    int           `mapstructure:"body_limit"`
}

type GRPCConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type QueueConfig struct {
	// Driver is "nats", "rabbitmq" or empty to disable events.
	Driver string `mapstructure:"driver"`
	URL    string `mapstructure:"url"`
}

type JWTConfig struct {
	Secret   string `mapstructure:"secret"`
	Issuer   string `mapstructure:"issuer"`
	Audience string `mapstructure:"audience"`
}

type VaultConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Address    string `mapstructure:"address"`
	Token      string `mapstructure:"token"`
	SecretPath string `mapstructure:"secret_path"`
}

type OpenTelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	Endpoint    string `mapstructure:"endpoint"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	ExposeHeaders  []string `mapstructure:"expose_headers"`
	MaxAge         int      `mapstructure:"max_age"`
	Credentials    bool     `mapstructure:"credentials"`
}

type ModelConfig struct {
	DescriptorPath string `mapstructure:"descriptor_path"`
	// RuntimeLibrary is the onnxruntime shared library. Empty uses the
	// platform default.
	RuntimeLibrary string `mapstructure:"runtime_library"`
}

type PredictionConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	ThrottleMode    string        `mapstructure:"throttle_mode"`
	ClassifyTimeout time.Duration `mapstructure:"classify_timeout"`
}

type DetectorConfig struct {
	URL      string        `mapstructure:"url"`
	MaxWidth uint          `mapstructure:"max_width"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type TTSConfig struct {
	URL          string        `mapstructure:"url"`
	Language     string        `mapstructure:"language"`
	Slow         bool          `mapstructure:"slow"`
	Timeout      time.Duration `mapstructure:"timeout"`
	CacheBackend string        `mapstructure:"cache_backend"`
	CachePath    string        `mapstructure:"cache_path"`
	MemoryMaxAge time.Duration `mapstructure:"memory_max_age"`
}

type LedgerConfig struct {
	Dir     string `mapstructure:"dir"`
	CSVFile string `mapstructure:"csv_file"`
}

type LimitsConfig struct {
	MinImageBytes int `mapstructure:"min_image_bytes"`
	MaxImageBytes int `mapstructure:"max_image_bytes"`
	MaxTextLength int `mapstructure:"max_text_length"`
}

type CameraConfig struct {
	MaxFPS float64 `mapstructure:"max_fps"`
}
