package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the full application configuration loaded from environment
// variables or a .env file.
//
// It is composed of smaller structs that represent the different concerns of
// the system: the HTTP server, the column store, the trade log broker, the
// upstream market-data stream, and the ingestion pipeline itself.
type Config struct {
	Server   ServerConfig   // HTTP server configuration
	Postgres PostgresConfig // column store connection settings
	Kafka    KafkaConfig    // trade log broker settings
	Stream   StreamConfig   // upstream market-data stream settings
	Ingest   IngestConfig   // ingestion pipeline tuning
}

// ServerConfig holds HTTP server settings such as the port to listen on.
type ServerConfig struct {
	Port string // The TCP port the HTTP server will listen on (e.g., "8080")
}

// PostgresConfig defines connection details for the column store the
// aggregation engine queries.
//
// Fields:
//   - Host: hostname of the database server.
//   - Port: port number of the database server (default 5432).
//   - User: username for authentication.
//   - Password: password for authentication.
//   - DBName: target database name.
//   - SSLMode: SSL mode (e.g., "disable", "require").
//   - URL: computed DSN used by database/sql to connect.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	URL      string
}

// KafkaConfig defines the trade log broker endpoints.
//
// Fields:
//   - Brokers: bootstrap broker addresses (comma-separated in the env var).
//   - Topic: topic the publisher writes trade records to.
//   - GroupID: consumer group used by the sink loader.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// StreamConfig defines how to reach the upstream market-data stream.
//
// APIKey is an out-of-band secret (STREAM_API_KEY); it has no default and is
// only required in stream mode, so it is validated there rather than here.
type StreamConfig struct {
	URL    string
	APIKey string
}

// IngestConfig tunes the ingestion pipeline.
//
// FlushEvery is the number of published records between publisher flushes.
// Flushing less often raises throughput at the cost of worst-case end-to-end
// latency for the last unflushed batch.
type IngestConfig struct {
	FlushEvery int
}

// AppConfig is the globally accessible configuration instance.
//
// It is populated once via LoadConfig() and used throughout the application.
var AppConfig Config

// LoadConfig initializes the global AppConfig by reading from a .env file
// or directly from environment variables.
//
// Precedence (from lowest to highest):
//  1. Defaults set in this function.
//  2. Values from .env file (if present).
//  3. Environment variables.
//
// Behavior:
//   - Sets defaults for all required fields (except secrets).
//   - Reads environment variables automatically with viper.AutomaticEnv().
//   - Constructs the column store connection string (DSN).
//   - Calls validateConfig() to ensure required fields are present.
//
// Fatal exit:
//   - If required variables are missing, validateConfig() will terminate the
//     app with a descriptive log message.
func LoadConfig() {
	// Default values
	viper.SetDefault("SERVER_PORT", "8080")

	viper.SetDefault("POSTGRES_HOST", "localhost")
	viper.SetDefault("POSTGRES_PORT", 5432)
	viper.SetDefault("POSTGRES_USER", "postgres")
	viper.SetDefault("POSTGRES_PASSWORD", "postgres")
	viper.SetDefault("POSTGRES_DB", "cryptowatch")
	viper.SetDefault("POSTGRES_SSLMODE", "disable")

	viper.SetDefault("KAFKA_BROKERS", "localhost:9092")
	viper.SetDefault("KAFKA_TOPIC", "trades")
	viper.SetDefault("KAFKA_GROUP_ID", "trades-sink")

	viper.SetDefault("STREAM_URL", "wss://stream.cryptowat.ch/connect")
	// STREAM_API_KEY deliberately has no default.

	viper.SetDefault("FLUSH_EVERY", 1000)

	// Optionally read from .env if present (common in local dev)
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig() // ignore error if no .env

	// Read environment variables automatically
	viper.AutomaticEnv()

	// Populate global config instance
	AppConfig = Config{
		Server: ServerConfig{
			Port: viper.GetString("SERVER_PORT"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("POSTGRES_HOST"),
			Port:     viper.GetInt("POSTGRES_PORT"),
			User:     viper.GetString("POSTGRES_USER"),
			Password: viper.GetString("POSTGRES_PASSWORD"),
			DBName:   viper.GetString("POSTGRES_DB"),
			SSLMode:  viper.GetString("POSTGRES_SSLMODE"),
		},
		Kafka: KafkaConfig{
			Brokers: splitBrokers(viper.GetString("KAFKA_BROKERS")),
			Topic:   viper.GetString("KAFKA_TOPIC"),
			GroupID: viper.GetString("KAFKA_GROUP_ID"),
		},
		Stream: StreamConfig{
			URL:    viper.GetString("STREAM_URL"),
			APIKey: viper.GetString("STREAM_API_KEY"),
		},
		Ingest: IngestConfig{
			FlushEvery: viper.GetInt("FLUSH_EVERY"),
		},
	}

	if AppConfig.Ingest.FlushEvery < 1 {
		AppConfig.Ingest.FlushEvery = 1000
	}

	// Construct the column store DSN (used by database/sql)
	AppConfig.Postgres.URL = fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		AppConfig.Postgres.User,
		AppConfig.Postgres.Password,
		AppConfig.Postgres.Host,
		AppConfig.Postgres.Port,
		AppConfig.Postgres.DBName,
		AppConfig.Postgres.SSLMode,
	)

	// Validate critical fields
	validateConfig()
}

// splitBrokers turns a comma-separated broker list into addresses, dropping
// empty entries.
func splitBrokers(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// validateConfig ensures required variables are present and terminates
// the application if they are missing.
//
// This avoids unexpected runtime failures due to incomplete configuration.
func validateConfig() {
	var missing []string

	if AppConfig.Server.Port == "" {
		missing = append(missing, "SERVER_PORT")
	}
	if AppConfig.Postgres.Host == "" {
		missing = append(missing, "POSTGRES_HOST")
	}
	if AppConfig.Postgres.Port == 0 {
		missing = append(missing, "POSTGRES_PORT")
	}
	if AppConfig.Postgres.User == "" {
		missing = append(missing, "POSTGRES_USER")
	}
	if AppConfig.Postgres.Password == "" {
		missing = append(missing, "POSTGRES_PASSWORD")
	}
	if AppConfig.Postgres.DBName == "" {
		missing = append(missing, "POSTGRES_DB")
	}
	if len(AppConfig.Kafka.Brokers) == 0 {
		missing = append(missing, "KAFKA_BROKERS")
	}
	if AppConfig.Kafka.Topic == "" {
		missing = append(missing, "KAFKA_TOPIC")
	}
	if AppConfig.Stream.URL == "" {
		missing = append(missing, "STREAM_URL")
	}

	if len(missing) > 0 {
		log.Fatalf("missing required environment variables: %v\n", missing)
	}
}
