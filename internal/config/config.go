package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// APIServerConfig 保存 API 服务器特有的配置。
type APIServerConfig struct {
	Host         string        `mapstructure:"HOST"`
	Port         string        `mapstructure:"PORT"`
	ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
	CORS         CORSConfig    `mapstructure:"CORS"`
}

// CORSConfig holds configuration for CORS.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"ALLOWED_ORIGINS"`
	AllowedMethods   []string `mapstructure:"ALLOWED_METHODS"`
	AllowedHeaders   []string `mapstructure:"ALLOWED_HEADERS"`
	ExposedHeaders   []string `mapstructure:"EXPOSED_HEADERS"`
	AllowCredentials bool     `mapstructure:"ALLOW_CREDENTIALS"`
	MaxAge           int      `mapstructure:"MAX_AGE"`
}

// RedisConfig holds configuration for Redis.
type RedisConfig struct {
	Addr     string `mapstructure:"ADDR"`
	Password string `mapstructure:"PASSWORD"`
	DB       int    `mapstructure:"DB"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"LEVEL"`  // debug, info, warn, error
	Format string `mapstructure:"FORMAT"` // json or console
}

// Config holds all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	AppName   string          `mapstructure:"APP_NAME"`
	Log       LogConfig       `mapstructure:"LOG"`
	APIServer APIServerConfig `mapstructure:"API_SERVER"`
	Kafka     KafkaConfig     `mapstructure:"KAFKA"`
	Database  DatabaseConfig  `mapstructure:"DATABASE"`
	Storage   StorageConfig   `mapstructure:"STORAGE"`
	Auth      AuthConfig      `mapstructure:"AUTH"`
	Redis     RedisConfig     `mapstructure:"REDIS"`
	Message   MessageConfig   `mapstructure:"MESSAGE"`
}

// KafkaConfig holds configuration for Kafka.
type KafkaConfig struct {
	Enabled             bool     `mapstructure:"ENABLED"`
	Brokers             []string `mapstructure:"BROKERS"`
	ClientID            string   `mapstructure:"CLIENT_ID"`
	Protocol            string   `mapstructure:"PROTOCOL"`
	RelationEventsTopic string   `mapstructure:"RELATION_EVENTS_TOPIC"`
	ConsumerGroup       string   `mapstructure:"CONSUMER_GROUP"` // activity recorder group
}

// DatabaseConfig holds configuration for the database.
type DatabaseConfig struct {
	Type     string `mapstructure:"TYPE"` // "postgres", or "memory" for a throwaway in-process store
	Host     string `mapstructure:"HOST"`
	Port     int    `mapstructure:"PORT"`
	User     string `mapstructure:"USER"`
	Password string `mapstructure:"PASSWORD"`
	DBName   string `mapstructure:"DB_NAME"`
	SSLMode  string `mapstructure:"SSL_MODE"`
	LogSQL   bool   `mapstructure:"LOG_SQL"`
}

// DSN builds a key/value connection string understood by both pgx and lib/pq.
func (c DatabaseConfig) DSN() string {
	parts := []string{
		"host=" + c.Host,
		fmt.Sprintf("port=%d", c.Port),
		"user=" + c.User,
		"dbname=" + c.DBName,
	}
	if c.Password != "" {
		parts = append(parts, "password="+c.Password)
	}
	parts = append(parts, "sslmode="+c.SSLMode)
	return strings.Join(parts, " ")
}

// StorageConfig holds configuration for file storage.
type StorageConfig struct {
	Type                  string `mapstructure:"TYPE"` // only "local" for now
	LocalPath             string `mapstructure:"LOCAL_PATH"`
	BaseURL               string `mapstructure:"BASE_URL"`
	MaxFileSizeMB         int64  `mapstructure:"MAX_FILE_SIZE_MB"`
	DefaultProfilePicture string `mapstructure:"DEFAULT_PROFILE_PICTURE"`
}

// AuthConfig holds configuration for authentication (e.g., JWT).
type AuthConfig struct {
	JWTSecretKey string        `mapstructure:"JWT_SECRET_KEY"`
	JWTExpiry    time.Duration `mapstructure:"JWT_EXPIRY"`
}

// MessageConfig holds direct messaging limits.
type MessageConfig struct {
	EditWindow time.Duration `mapstructure:"EDIT_WINDOW"`
	MaxHistory int           `mapstructure:"MAX_HISTORY"`
}

// LoadConfig reads configuration from file or environment variables.
// A .env file in the working directory is loaded first when present.
func LoadConfig(path string) (config Config, err error) {
	if err = godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return
	}
	err = nil

	v := viper.New()

	v.SetDefault("APP_NAME", "socialnet")
	v.SetDefault("LOG.LEVEL", "info")
	v.SetDefault("LOG.FORMAT", "json")

	v.SetDefault("API_SERVER.HOST", "0.0.0.0")
	v.SetDefault("API_SERVER.PORT", "8081")
	v.SetDefault("API_SERVER.READ_TIMEOUT", 30*time.Second)
	v.SetDefault("API_SERVER.WRITE_TIMEOUT", 30*time.Second)
	v.SetDefault("API_SERVER.CORS.ALLOWED_ORIGINS", []string{"http://localhost:5173"})
	v.SetDefault("API_SERVER.CORS.ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("API_SERVER.CORS.ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"})
	v.SetDefault("API_SERVER.CORS.EXPOSED_HEADERS", []string{"Content-Length"})
	v.SetDefault("API_SERVER.CORS.ALLOW_CREDENTIALS", true)
	v.SetDefault("API_SERVER.CORS.MAX_AGE", 300)

	v.SetDefault("KAFKA.ENABLED", false)
	v.SetDefault("KAFKA.BROKERS", []string{"localhost:9092"})
	v.SetDefault("KAFKA.CLIENT_ID", "socialnet-api")
	v.SetDefault("KAFKA.PROTOCOL", "plaintext")
	v.SetDefault("KAFKA.RELATION_EVENTS_TOPIC", "socialnet-relation-events")
	v.SetDefault("KAFKA.CONSUMER_GROUP", "socialnet-activity-recorder")

	v.SetDefault("DATABASE.TYPE", "postgres")
	v.SetDefault("DATABASE.HOST", "localhost")
	v.SetDefault("DATABASE.PORT", 5432)
	v.SetDefault("DATABASE.USER", "postgres")
	v.SetDefault("DATABASE.PASSWORD", "password")
	v.SetDefault("DATABASE.DB_NAME", "socialnet")
	v.SetDefault("DATABASE.SSL_MODE", "disable")
	v.SetDefault("DATABASE.LOG_SQL", false)

	v.SetDefault("STORAGE.TYPE", "local")
	v.SetDefault("STORAGE.LOCAL_PATH", "./uploads")
	v.SetDefault("STORAGE.BASE_URL", "/uploads")
	v.SetDefault("STORAGE.MAX_FILE_SIZE_MB", 5)
	v.SetDefault("STORAGE.DEFAULT_PROFILE_PICTURE", "/Images/DefaultProfile.png")

	v.SetDefault("AUTH.JWT_SECRET_KEY", "a_very_secret_key_that_should_be_changed")
	v.SetDefault("AUTH.JWT_EXPIRY", 24*time.Hour)

	v.SetDefault("REDIS.ADDR", "localhost:6379")
	v.SetDefault("REDIS.PASSWORD", "")
	v.SetDefault("REDIS.DB", 0)

	v.SetDefault("MESSAGE.EDIT_WINDOW", 3*time.Minute)
	v.SetDefault("MESSAGE.MAX_HISTORY", 200)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// DATABASE_HOST overrides DATABASE.HOST and so on.
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		// defaults are enough to boot locally
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}
