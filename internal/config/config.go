package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the configuration settings for the aerodrome client.
// It includes the environment, server port, backend location, geolocation
// settings, paging limits and the storage backend of the persisted state.
//
// Fields:
// - Env: The current environment (e.g., local, development, production).
// - Port: The port for the monitoring and control API server.
// - Backend: Base URL and client-side rate limit of the airport backend.
// - Locator: Which location capability to use (google, ip, static, none).
// - GeolocationTimeout: Upper bound of one geolocation attempt.
// - Fallback: The documented default city used when the device cannot be located.
// - Storage: Where the auth token and last selected city are persisted.
type Config struct {
	Env                string         // Env is the current environment: local, development, production.
	Port               int            // Port is the monitoring and control API port.
	Backend            BackendConfig  // Backend is the airport backend configuration.
	Locator            LocatorConfig  // Locator selects the location capability.
	GeolocationTimeout time.Duration  // Upper bound of one geolocation attempt.
	Fallback           FallbackConfig // Fallback is the default origin.
	PageSize           int            // Directory page size.
	NearestLimit       int            // Number of nearest airports to show.
	NoticeWindow       time.Duration  // How long the verification-sent notice stays up.
	CitiesFile         string         // Optional YAML city catalog.
	AllowedOrigins     []string       // CORS origins of the control API.
	Storage            StorageConfig  // Storage holds the persisted state configuration.
	Database           PostgresConfig // Database holds the postgres database configuration.
}

// BackendConfig describes the airport backend.
type BackendConfig struct {
	URL       string // Base URL of the backend.
	RateLimit int    // Client-side requests per second.
}

// LocatorConfig selects and configures the location capability.
type LocatorConfig struct {
	Type      string   // google, ip, static or none.
	APIKey    string   // Google Geolocation API key.
	Latitude  *float64 // Fixed latitude of the static locator.
	Longitude *float64 // Fixed longitude of the static locator.
}

// FallbackConfig is the default origin.
type FallbackConfig struct {
	City      string
	Latitude  float64
	Longitude float64
}

// StorageConfig selects the persisted state backend.
type StorageConfig struct {
	Type     string // file, redis or postgres.
	Path     string // State file of the file backend.
	RedisURL string // Connection URL of the redis backend.
}

// PostgresConfig struct holds the configuration details for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string // Host is the database server address.
	Port     string // Port is the database server port.
	User     string // User is the database user.
	Password string // Password is the database user's password.
	Name     string // Name is the name of the database.
}

// MustLoad loads the configuration from .env, the environment and an optional
// config file named by AERODROME_CONFIG_FILE, and returns a Config struct.
func MustLoad() *Config {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("AERODROME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	for key, env := range map[string]string{
		"db.host":     "DB_HOST",
		"db.port":     "DB_PORT",
		"db.username": "DB_USERNAME",
		"db.password": "DB_PASSWORD",
		"db.name":     "DB_NAME",
	} {
		_ = v.BindEnv(key, env)
	}

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			panic("failed to read configuration file")
		}
	}

	port, err := strconv.Atoi(v.GetString("port"))
	if err != nil {
		panic("failed to parse port for monitoring server from configuration")
	}

	rateLimit, err := strconv.Atoi(v.GetString("backend_rate_limit"))
	if err != nil {
		panic("failed to parse backend rate limit from configuration, must be an integer")
	}

	timeout, err := time.ParseDuration(v.GetString("geolocation_timeout"))
	if err != nil {
		panic("failed to parse geolocation timeout from configuration")
	}

	noticeWindow, err := time.ParseDuration(v.GetString("notice_window"))
	if err != nil {
		panic("failed to parse notice window from configuration")
	}

	pageSize, err := strconv.Atoi(v.GetString("page_size"))
	if err != nil || pageSize < 1 {
		panic("failed to parse page size from configuration, must be a positive integer")
	}

	nearestLimit, err := strconv.Atoi(v.GetString("nearest_limit"))
	if err != nil || nearestLimit < 1 {
		panic("failed to parse nearest limit from configuration, must be a positive integer")
	}

	fallbackLat, err := strconv.ParseFloat(v.GetString("fallback_latitude"), 64)
	if err != nil {
		panic("failed to parse fallback latitude from configuration")
	}

	fallbackLon, err := strconv.ParseFloat(v.GetString("fallback_longitude"), 64)
	if err != nil {
		panic("failed to parse fallback longitude from configuration")
	}

	return &Config{
		Env:  v.GetString("env"),
		Port: port,
		Backend: BackendConfig{
			URL:       v.GetString("backend_url"),
			RateLimit: rateLimit,
		},
		Locator: LocatorConfig{
			Type:      v.GetString("locator_type"),
			APIKey:    v.GetString("locator_api_key"),
			Latitude:  optionalFloat(v, "locator_latitude", "failed to parse static locator latitude from configuration"),
			Longitude: optionalFloat(v, "locator_longitude", "failed to parse static locator longitude from configuration"),
		},
		GeolocationTimeout: timeout,
		Fallback: FallbackConfig{
			City:      v.GetString("fallback_city"),
			Latitude:  fallbackLat,
			Longitude: fallbackLon,
		},
		PageSize:       pageSize,
		NearestLimit:   nearestLimit,
		NoticeWindow:   noticeWindow,
		CitiesFile:     v.GetString("cities_file"),
		AllowedOrigins: splitCSV(v.GetString("allowed_origins")),
		Storage: StorageConfig{
			Type:     v.GetString("storage_type"),
			Path:     v.GetString("storage_path"),
			RedisURL: v.GetString("redis_url"),
		},
		Database: PostgresConfig{
			Host:     v.GetString("db.host"),
			Port:     v.GetString("db.port"),
			User:     v.GetString("db.username"),
			Password: v.GetString("db.password"),
			Name:     v.GetString("db.name"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "production")
	v.SetDefault("port", "8080")
	v.SetDefault("backend_url", "http://localhost:8000")
	v.SetDefault("backend_rate_limit", "20")
	v.SetDefault("locator_type", "ip")
	v.SetDefault("locator_api_key", "")
	v.SetDefault("locator_latitude", "")
	v.SetDefault("locator_longitude", "")
	v.SetDefault("geolocation_timeout", "5s")
	v.SetDefault("fallback_city", "Moscow")
	v.SetDefault("fallback_latitude", "55.7558")
	v.SetDefault("fallback_longitude", "37.6173")
	v.SetDefault("page_size", "10")
	v.SetDefault("nearest_limit", "5")
	v.SetDefault("notice_window", "5s")
	v.SetDefault("cities_file", "")
	v.SetDefault("allowed_origins", "*")
	v.SetDefault("storage_type", "file")
	v.SetDefault("storage_path", "data/state.json")
	v.SetDefault("redis_url", "redis://localhost:6379/0")
	v.SetDefault("config_file", "")
}

func optionalFloat(v *viper.Viper, key, message string) *float64 {
	raw := v.GetString(key)
	if raw == "" {
		return nil
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		panic(message)
	}

	return &value
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}
