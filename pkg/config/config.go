package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/env"
)

// Config holds all configuration for the video service
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Cassandra    CassandraConfig
	Video        VideoConfig
	LiveKit      LiveKitConfig
	Services     ServicesConfig
	Statistics   StatisticsConfig
	Push         PushConfig
	JWT          JWTConfig
	Log          LogConfig
	Housekeeping HousekeepingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port               int
	Environment        string // development, staging, production
	ServiceName        string
	AllowedOrigins     []string
	MaxLiveConnections int
	ShutdownTimeout    time.Duration
}

// DatabaseConfig holds CockroachDB configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
	Timeout  time.Duration
}

// CassandraConfig holds Cassandra configuration
type CassandraConfig struct {
	Hosts    []string
	Keyspace string
	Username string
	Password string
	Timeout  time.Duration
}

// VideoConfig drives call identifiers and call URLs
type VideoConfig struct {
	ServerURL   string
	JWTSecret   string
	JWTAudience string
	JWTIssuer   string
	IDStore     string // memory, redis
	IDTTL       time.Duration
}

// LiveKitConfig holds the room provider settings. An empty URL disables provisioning.
type LiveKitConfig struct {
	URL          string
	APIKey       string
	APISecret    string
	EmptyTimeout time.Duration
}

// ServicesConfig holds the base URLs of collaborating services
type ServicesConfig struct {
	UserServiceURL    string
	MessageServiceURL string
	Timeout           time.Duration
	TechnicalToken    string // bearer token for calls without a user, e.g. provider webhooks
}

// StatisticsConfig selects the statistics sink
type StatisticsConfig struct {
	Sink       string // redis, cassandra, none
	Stream     string
	BufferSize int
}

// PushConfig selects the push provider
type PushConfig struct {
	Provider        string // fcm, none
	CredentialsPath string
}

// JWTConfig holds access token configuration
type JWTConfig struct {
	Secret   string
	Audience string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level    string
	Format   string
	Output   string
	FilePath string
}

// HousekeepingConfig holds scheduled cleanup settings
type HousekeepingConfig struct {
	Schedule      string
	RoomRetention time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:               env.GetInt("PORT", 8083),
			Environment:        env.GetString("ENV", "development"),
			ServiceName:        env.GetString("SERVICE_NAME", "video-service"),
			AllowedOrigins:     env.GetSlice("WS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			MaxLiveConnections: env.GetInt("WS_MAX_LIVE_CONNECTIONS", 1000),
			ShutdownTimeout:    env.GetDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     env.GetString("DB_HOST", "localhost"),
			Port:     env.GetInt("DB_PORT", 26257),
			User:     env.GetString("DB_USER", "root"),
			Password: env.GetStringFromFile("DB_PASSWORD", ""),
			Database: env.GetString("DB_NAME", "videoservice"),
			SSLMode:  env.GetString("DB_SSL_MODE", "disable"),
			MaxConns: env.GetInt("DB_MAX_CONNS", 25),
			MinConns: env.GetInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     env.GetString("REDIS_HOST", "localhost"),
			Port:     env.GetInt("REDIS_PORT", 6379),
			Password: env.GetStringFromFile("REDIS_PASSWORD", ""),
			DB:       env.GetInt("REDIS_DB", 0),
			PoolSize: env.GetInt("REDIS_POOL_SIZE", 10),
			Timeout:  env.GetDuration("REDIS_TIMEOUT", 5*time.Second),
		},
		Cassandra: CassandraConfig{
			Hosts:    env.GetSlice("CASSANDRA_HOSTS", []string{"localhost"}),
			Keyspace: env.GetString("CASSANDRA_KEYSPACE", "videoservice"),
			Username: env.GetString("CASSANDRA_USERNAME", ""),
			Password: env.GetStringFromFile("CASSANDRA_PASSWORD", ""),
			Timeout:  env.GetDuration("CASSANDRA_TIMEOUT", 600*time.Millisecond),
		},
		Video: VideoConfig{
			ServerURL:   env.GetString("VIDEO_CALL_SERVER_URL", "https://video.localhost"),
			JWTSecret:   env.GetStringFromFile("VIDEO_CALL_JWT_SECRET", ""),
			JWTAudience: env.GetString("VIDEO_CALL_JWT_AUDIENCE", "jitsi"),
			JWTIssuer:   env.GetString("VIDEO_CALL_JWT_ISSUER", "video-service"),
			IDStore:     env.GetString("VIDEO_CALL_ID_STORE", "redis"),
			IDTTL:       env.GetDuration("VIDEO_CALL_ID_TTL", 24*time.Hour),
		},
		LiveKit: LiveKitConfig{
			URL:          env.GetString("LIVEKIT_URL", ""),
			APIKey:       env.GetString("LIVEKIT_API_KEY", ""),
			APISecret:    env.GetStringFromFile("LIVEKIT_API_SECRET", ""),
			EmptyTimeout: env.GetDuration("LIVEKIT_EMPTY_TIMEOUT", 10*time.Minute),
		},
		Services: ServicesConfig{
			UserServiceURL:    env.GetString("USER_SERVICE_URL", "http://localhost:8081/service"),
			MessageServiceURL: env.GetString("MESSAGE_SERVICE_URL", "http://localhost:8082/service"),
			Timeout:           env.GetDuration("SERVICE_HTTP_TIMEOUT", 10*time.Second),
			TechnicalToken:    env.GetStringFromFile("SERVICE_TECHNICAL_TOKEN", ""),
		},
		Statistics: StatisticsConfig{
			Sink:       env.GetString("STATISTICS_SINK", "redis"),
			Stream:     env.GetString("STATISTICS_STREAM", "videocall:statistics"),
			BufferSize: env.GetInt("STATISTICS_BUFFER_SIZE", 256),
		},
		Push: PushConfig{
			Provider:        env.GetString("PUSH_PROVIDER", "none"),
			CredentialsPath: env.GetString("FIREBASE_CREDENTIALS_PATH", ""),
		},
		JWT: JWTConfig{
			Secret:   env.GetStringFromFile("JWT_SECRET", ""),
			Audience: env.GetString("JWT_AUDIENCE", "onlineberatung"),
		},
		Log: LogConfig{
			Level:    env.GetString("LOG_LEVEL", "info"),
			Format:   env.GetString("LOG_FORMAT", "json"),
			Output:   env.GetString("LOG_OUTPUT", "stdout"),
			FilePath: env.GetString("LOG_FILE_PATH", "/logs/video-service.log"),
		},
		Housekeeping: HousekeepingConfig{
			Schedule:      env.GetString("HOUSEKEEPING_SCHEDULE", "@every 1h"),
			RoomRetention: env.GetDuration("ROOM_RETENTION", 30*24*time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if c.Server.Environment == "production" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
	}
	if c.Video.JWTSecret == "" {
		return fmt.Errorf("VIDEO_CALL_JWT_SECRET must be set")
	}
	if _, err := url.ParseRequestURI(c.Video.ServerURL); err != nil {
		return fmt.Errorf("VIDEO_CALL_SERVER_URL is invalid: %w", err)
	}
	switch c.Video.IDStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("VIDEO_CALL_ID_STORE must be memory or redis, got %q", c.Video.IDStore)
	}
	switch c.Statistics.Sink {
	case "redis", "cassandra", "none":
	default:
		return fmt.Errorf("STATISTICS_SINK must be redis, cassandra or none, got %q", c.Statistics.Sink)
	}
	if c.LiveKit.URL != "" && (c.LiveKit.APIKey == "" || c.LiveKit.APISecret == "") {
		return fmt.Errorf("LIVEKIT_API_KEY and LIVEKIT_API_SECRET are required when LIVEKIT_URL is set")
	}
	return nil
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
