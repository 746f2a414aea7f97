package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Local store drivers.
const (
	LocalDriverFile   = "file"
	LocalDriverRedis  = "redis"
	LocalDriverMemory = "memory"
)

// Cloud document store drivers.
const (
	CloudDriverFirestore = "firestore"
	CloudDriverPostgres  = "postgres"
	CloudDriverNone      = "none"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Storage  StorageConfig
	Local    LocalStoreConfig
	Cloud    CloudConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Password PasswordConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Metrics  MetricsConfig
}

// StorageConfig drives the adapter's backend selection and connectivity monitor.
type StorageConfig struct {
	DefaultMode     string
	MonitorInterval time.Duration
	ProbeTimeout    time.Duration
}

// LocalStoreConfig selects the key-value store behind the local backend.
type LocalStoreConfig struct {
	Driver            string
	Path              string
	MirrorLegacyKeys  bool
	RedisKeyNamespace string
}

// CloudConfig selects the document store behind the cloud backend.
type CloudConfig struct {
	Driver          string
	ProjectID       string
	CredentialsFile string
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// PasswordConfig configures admin credential hashing.
type PasswordConfig struct {
	Algorithm       string
	BcryptCost      int
	DefaultPassword string
}

// JWTConfig signs the per-client access tokens issued on login.
type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

type MetricsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Storage = StorageConfig{
		DefaultMode:     strings.ToLower(v.GetString("STORAGE_MODE")),
		MonitorInterval: parseDuration(v.GetString("STORAGE_MONITOR_INTERVAL"), 30*time.Second),
		ProbeTimeout:    parseDuration(v.GetString("CLOUD_PROBE_TIMEOUT"), 5*time.Second),
	}

	cfg.Local = LocalStoreConfig{
		Driver:            strings.ToLower(v.GetString("LOCAL_STORE_DRIVER")),
		Path:              v.GetString("LOCAL_STORE_PATH"),
		MirrorLegacyKeys:  v.GetBool("LOCAL_MIRROR_LEGACY_KEYS"),
		RedisKeyNamespace: v.GetString("REDIS_KEY_PREFIX"),
	}

	cfg.Cloud = CloudConfig{
		Driver:          strings.ToLower(v.GetString("CLOUD_DRIVER")),
		ProjectID:       v.GetString("FIREBASE_PROJECT_ID"),
		CredentialsFile: v.GetString("FIREBASE_CREDENTIALS_FILE"),
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Password = PasswordConfig{
		Algorithm:       strings.ToLower(v.GetString("PASSWORD_HASH_ALGORITHM")),
		BcryptCost:      v.GetInt("PASSWORD_BCRYPT_COST"),
		DefaultPassword: v.GetString("ADMIN_DEFAULT_PASSWORD"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 12*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("STORAGE_MODE", "local")
	v.SetDefault("STORAGE_MONITOR_INTERVAL", "30s")
	v.SetDefault("CLOUD_PROBE_TIMEOUT", "5s")

	v.SetDefault("LOCAL_STORE_DRIVER", LocalDriverFile)
	v.SetDefault("LOCAL_STORE_PATH", "./data/local-store.json")
	v.SetDefault("LOCAL_MIRROR_LEGACY_KEYS", false)
	v.SetDefault("REDIS_KEY_PREFIX", "sms")

	v.SetDefault("CLOUD_DRIVER", CloudDriverFirestore)
	v.SetDefault("FIREBASE_PROJECT_ID", "")
	v.SetDefault("FIREBASE_CREDENTIALS_FILE", "")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "tutoring_center")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("PASSWORD_HASH_ALGORITHM", "bcrypt")
	v.SetDefault("PASSWORD_BCRYPT_COST", 10)
	v.SetDefault("ADMIN_DEFAULT_PASSWORD", "Elostaz@2025")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "12h")
	v.SetDefault("JWT_ISSUER", "sms-storage")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_METRICS", true)
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
