package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Engine    EngineConfig
	Reference ReferenceConfig
	Template  TemplateConfig
	Publish   PublishConfig
	R2        R2Config
	Zitadel   ZitadelConfig
	Gateway   GatewayConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	SpeakPerHour int
	VoicePerHour int
}

// EngineConfig configures the external synthesis engine client
type EngineConfig struct {
	BaseURL               string
	APIKey                string
	PollIntervalMS        int
	PollRequestTimeoutSec int // per-poll HTTP timeout, distinct from the job timeout
	JobTimeoutSec         int // overall bound on awaiting one execution
	MaxPollRetries        int // consecutive transient poll failures tolerated
}

// ReferenceConfig configures reference voice resolution and staging
type ReferenceConfig struct {
	MaxBytes            int64
	DefaultPath         string
	FetchTimeoutSeconds int
	StagingDir          string
}

// TemplateConfig configures the template store
type TemplateConfig struct {
	Dir     string
	Default string
}

// PublishConfig selects how finished artifacts are delivered
type PublishConfig struct {
	Mode string // "inline" or "storage"
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type ZitadelConfig struct {
	Domain   string
	ClientID string
	Issuer   string
}

type GatewayConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("ENGINE_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("ZITADEL_CLIENT_ID")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.api_domain", "API_DOMAIN")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("ratelimit.speak_per_hour", "RATELIMIT_SPEAK_PER_HOUR")
	_ = viper.BindEnv("ratelimit.voice_per_hour", "RATELIMIT_VOICE_PER_HOUR")
	_ = viper.BindEnv("engine.base_url", "ENGINE_BASE_URL")
	_ = viper.BindEnv("engine.api_key", "ENGINE_API_KEY")
	_ = viper.BindEnv("engine.poll_interval_ms", "ENGINE_POLL_INTERVAL_MS")
	_ = viper.BindEnv("engine.poll_request_timeout_sec", "ENGINE_POLL_REQUEST_TIMEOUT_SEC")
	_ = viper.BindEnv("engine.job_timeout_sec", "ENGINE_JOB_TIMEOUT_SEC")
	_ = viper.BindEnv("engine.max_poll_retries", "ENGINE_MAX_POLL_RETRIES")
	_ = viper.BindEnv("reference.max_bytes", "REFERENCE_MAX_BYTES")
	_ = viper.BindEnv("reference.default_path", "REFERENCE_DEFAULT_PATH")
	_ = viper.BindEnv("reference.fetch_timeout_sec", "REFERENCE_FETCH_TIMEOUT_SEC")
	_ = viper.BindEnv("reference.staging_dir", "REFERENCE_STAGING_DIR")
	_ = viper.BindEnv("template.dir", "TEMPLATE_DIR")
	_ = viper.BindEnv("template.default", "TEMPLATE_DEFAULT")
	_ = viper.BindEnv("publish.mode", "PUBLISH_MODE")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("zitadel.domain", "ZITADEL_DOMAIN")
	_ = viper.BindEnv("zitadel.client_id", "ZITADEL_CLIENT_ID")
	_ = viper.BindEnv("zitadel.issuer", "ZITADEL_ISSUER")
	_ = viper.BindEnv("gateway.enabled", "GATEWAY_ENABLED")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("ratelimit.speak_per_hour", 30)
	viper.SetDefault("ratelimit.voice_per_hour", 50)

	// Engine defaults: synthesis runs take minutes, polls stay cheap
	viper.SetDefault("engine.base_url", "http://localhost:8188")
	viper.SetDefault("engine.poll_interval_ms", 2000)
	viper.SetDefault("engine.poll_request_timeout_sec", 15)
	viper.SetDefault("engine.job_timeout_sec", 300)
	viper.SetDefault("engine.max_poll_retries", 3)

	// Reference defaults
	viper.SetDefault("reference.max_bytes", 10*1024*1024)
	viper.SetDefault("reference.default_path", "input/default_voice.wav")
	viper.SetDefault("reference.fetch_timeout_sec", 30)
	viper.SetDefault("reference.staging_dir", filepath.Join(os.TempDir(), "voiceforge"))

	// Template defaults
	viper.SetDefault("template.dir", "templates")
	viper.SetDefault("template.default", "vibevoice-tts")

	// Publish defaults
	viper.SetDefault("publish.mode", "inline")

	// Gateway defaults
	viper.SetDefault("gateway.enabled", false)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			ApiDomain: viper.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			SpeakPerHour: viper.GetInt("ratelimit.speak_per_hour"),
			VoicePerHour: viper.GetInt("ratelimit.voice_per_hour"),
		},
		Engine: EngineConfig{
			BaseURL:               viper.GetString("engine.base_url"),
			APIKey:                viper.GetString("engine.api_key"),
			PollIntervalMS:        viper.GetInt("engine.poll_interval_ms"),
			PollRequestTimeoutSec: viper.GetInt("engine.poll_request_timeout_sec"),
			JobTimeoutSec:         viper.GetInt("engine.job_timeout_sec"),
			MaxPollRetries:        viper.GetInt("engine.max_poll_retries"),
		},
		Reference: ReferenceConfig{
			MaxBytes:            viper.GetInt64("reference.max_bytes"),
			DefaultPath:         viper.GetString("reference.default_path"),
			FetchTimeoutSeconds: viper.GetInt("reference.fetch_timeout_sec"),
			StagingDir:          viper.GetString("reference.staging_dir"),
		},
		Template: TemplateConfig{
			Dir:     viper.GetString("template.dir"),
			Default: viper.GetString("template.default"),
		},
		Publish: PublishConfig{
			Mode: viper.GetString("publish.mode"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		Zitadel: ZitadelConfig{
			Domain:   viper.GetString("zitadel.domain"),
			ClientID: viper.GetString("zitadel.client_id"),
			Issuer:   viper.GetString("zitadel.issuer"),
		},
		Gateway: GatewayConfig{
			Enabled: viper.GetBool("gateway.enabled"),
		},
	}

	return cfg, nil
}
