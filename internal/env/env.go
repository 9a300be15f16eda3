package env

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config はサーバー起動時の設定値
type Config struct {
	ServerPort        int
	DataDir           string
	StateBackend      string
	CatalogPath       string
	HeartbeatInterval time.Duration
	SubscriberBuffer  int
	DebugMode         bool
	ShutdownTimeout   time.Duration

	NATSURL           string
	NATSStream        string
	NATSSubjectPrefix string
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	// .env が無くてもエラーにしない
	_ = godotenv.Load()

	cfg := Config{
		DataDir:           getEnv("DATA_DIR", "data"),
		StateBackend:      strings.ToLower(getEnv("STATE_BACKEND", BackendFile)),
		CatalogPath:       os.Getenv("CATALOG_PATH"),
		NATSURL:           os.Getenv("NATS_URL"),
		NATSStream:        getEnv("NATS_STREAM", "ROULETTE_EVENTS"),
		NATSSubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "roulette.session"),
	}

	var err error
	if cfg.ServerPort, err = getEnvAsInt("SERVER_PORT", 5174); err != nil {
		return Config{}, err
	}
	if cfg.SubscriberBuffer, err = getEnvAsInt("SUBSCRIBER_BUFFER", 16); err != nil {
		return Config{}, err
	}
	if cfg.DebugMode, err = getEnvAsBool("DEBUG_MODE", false); err != nil {
		return Config{}, err
	}
	if cfg.HeartbeatInterval, err = getEnvAsDuration("HEARTBEAT_INTERVAL", 20*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = getEnvAsDuration("SHUTDOWN_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges that cannot be expressed by defaults.
func (c Config) Validate() error {
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("SERVER_PORT out of range: %d", c.ServerPort)
	}
	switch c.StateBackend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("STATE_BACKEND must be %q or %q, got %q", BackendFile, BackendSQLite, c.StateBackend)
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("HEARTBEAT_INTERVAL must be positive")
	}
	if c.SubscriberBuffer <= 0 {
		return fmt.Errorf("SUBSCRIBER_BUFFER must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

// 数値のみの場合は秒として扱う
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
