package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	StorageGridFS     = "gridfs"
	StorageFilesystem = "filesystem"
	StorageMemory     = "memory"
)

// Transcription providers
const (
	STTWhisper = "whisper"
	STTGoogle  = "google"
	STTGemini  = "gemini"
	STTMock    = "mock"
)

// Emotion providers
const (
	EmotionHume = "hume"
	EmotionMock = "mock"
	EmotionNone = "none"
)

type Server struct {
	Port           string        `yaml:"port"`
	JWTSecret      string        `yaml:"jwt_secret"`
	TokenTTL       time.Duration `yaml:"token_ttl"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	LogLevel       string        `yaml:"log_level"`
	// RequireToken disables the userId field fallback for owner identity
	RequireToken bool `yaml:"require_token"`
}

type Mongo struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type Storage struct {
	Backend string `yaml:"backend"`
	RootDir string `yaml:"root_dir"`
	Bucket  string `yaml:"bucket"`
}

type STT struct {
	Provider      string        `yaml:"provider"`
	Language      string        `yaml:"language"`
	OpenAIKey     string        `yaml:"openai_api_key"`
	OpenAIBaseURL string        `yaml:"openai_base_url"`
	OpenAIModel   string        `yaml:"openai_model"`
	GeminiKey     string        `yaml:"gemini_api_key"`
	GeminiModel   string        `yaml:"gemini_model"`
	Timeout       time.Duration `yaml:"timeout"`
}

type Emotion struct {
	Provider     string        `yaml:"provider"`
	HumeKey      string        `yaml:"hume_api_key"`
	HumeBaseURL  string        `yaml:"hume_base_url"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
	Timeout      time.Duration `yaml:"timeout"`
}

type Events struct {
	MQTTBroker     string `yaml:"mqtt_broker"`
	MQTTClientID   string `yaml:"mqtt_client_id"`
	MQTTUsername   string `yaml:"mqtt_username"`
	MQTTPassword   string `yaml:"mqtt_password"`
	MQTTTopic      string `yaml:"mqtt_topic"`
	ClickHouseAddr string `yaml:"clickhouse_addr"`
	ClickHouseDB   string `yaml:"clickhouse_db"`
	ClickHouseUser string `yaml:"clickhouse_user"`
	ClickHousePass string `yaml:"clickhouse_pass"`
}

// Config is the server configuration
type Config struct {
	Server  Server  `yaml:"server"`
	Mongo   Mongo   `yaml:"mongo"`
	Storage Storage `yaml:"storage"`
	STT     STT     `yaml:"stt"`
	Emotion Emotion `yaml:"emotion"`
	Events  Events  `yaml:"events"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: Server{
			Port:           "8080",
			TokenTTL:       7 * 24 * time.Hour,
			MaxUploadBytes: 50 << 20,
			LogLevel:       "info",
		},
		Mongo: Mongo{
			URI:      "mongodb://localhost:27017",
			Database: "tawa",
		},
		Storage: Storage{
			Backend: StorageGridFS,
			RootDir: "./data",
			Bucket:  "recordings",
		},
		STT: STT{
			Provider:      STTWhisper,
			Language:      "en-US",
			OpenAIBaseURL: "https://api.openai.com/v1",
			OpenAIModel:   "whisper-1",
			GeminiModel:   "gemini-2.5-flash",
			Timeout:       60 * time.Second,
		},
		Emotion: Emotion{
			Provider:     EmotionHume,
			HumeBaseURL:  "https://api.hume.ai/v0/batch/jobs",
			PollInterval: 5 * time.Second,
			MaxAttempts:  10,
			Timeout:      30 * time.Second,
		},
		Events: Events{
			MQTTClientID:   "tawa-server",
			MQTTTopic:      "tawa/ingest/{owner_id}",
			ClickHouseDB:   "tawa",
			ClickHouseUser: "default",
		},
	}
}

// Load reads .env, then the YAML file named by TAWA_CONFIG_FILE, then the
// environment. Later sources override earlier ones.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("TAWA_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.JWTSecret = getEnv("JWT_SECRET", c.Server.JWTSecret)
	c.Server.TokenTTL = getEnvDuration("JWT_TTL", c.Server.TokenTTL)
	c.Server.MaxUploadBytes = int64(getEnvInt("MAX_UPLOAD_BYTES", int(c.Server.MaxUploadBytes)))
	c.Server.LogLevel = getEnv("LOG_LEVEL", c.Server.LogLevel)
	c.Server.RequireToken = getEnvBool("REQUIRE_TOKEN", c.Server.RequireToken)

	c.Mongo.URI = getEnv("MONGODB_URI", c.Mongo.URI)
	c.Mongo.Database = getEnv("MONGODB_DATABASE", c.Mongo.Database)

	c.Storage.Backend = strings.ToLower(getEnv("STORAGE_BACKEND", c.Storage.Backend))
	c.Storage.RootDir = getEnv("STORAGE_ROOT", c.Storage.RootDir)
	c.Storage.Bucket = getEnv("STORAGE_BUCKET", c.Storage.Bucket)

	c.STT.Provider = strings.ToLower(getEnv("STT_PROVIDER", c.STT.Provider))
	c.STT.Language = getEnv("STT_LANGUAGE", c.STT.Language)
	c.STT.OpenAIKey = getEnv("OPENAI_API_KEY", c.STT.OpenAIKey)
	c.STT.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.STT.OpenAIBaseURL)
	c.STT.OpenAIModel = getEnv("OPENAI_TRANSCRIBE_MODEL", c.STT.OpenAIModel)
	c.STT.GeminiKey = getEnv("GEMINI_API_KEY", c.STT.GeminiKey)
	c.STT.GeminiModel = getEnv("GEMINI_MODEL", c.STT.GeminiModel)
	c.STT.Timeout = getEnvDuration("STT_TIMEOUT", c.STT.Timeout)

	c.Emotion.Provider = strings.ToLower(getEnv("EMOTION_PROVIDER", c.Emotion.Provider))
	c.Emotion.HumeKey = getEnv("HUME_AI_API_KEY", c.Emotion.HumeKey)
	c.Emotion.HumeBaseURL = getEnv("HUME_BASE_URL", c.Emotion.HumeBaseURL)
	c.Emotion.PollInterval = getEnvDuration("EMOTION_POLL_INTERVAL", c.Emotion.PollInterval)
	c.Emotion.MaxAttempts = getEnvInt("EMOTION_MAX_ATTEMPTS", c.Emotion.MaxAttempts)
	c.Emotion.Timeout = getEnvDuration("EMOTION_TIMEOUT", c.Emotion.Timeout)

	c.Events.MQTTBroker = getEnv("MQTT_BROKER", c.Events.MQTTBroker)
	c.Events.MQTTClientID = getEnv("MQTT_CLIENT_ID", c.Events.MQTTClientID)
	c.Events.MQTTUsername = getEnv("MQTT_USERNAME", c.Events.MQTTUsername)
	c.Events.MQTTPassword = getEnv("MQTT_PASSWORD", c.Events.MQTTPassword)
	c.Events.MQTTTopic = getEnv("MQTT_TOPIC", c.Events.MQTTTopic)
	c.Events.ClickHouseAddr = getEnv("CLICKHOUSE_ADDR", c.Events.ClickHouseAddr)
	c.Events.ClickHouseDB = getEnv("CLICKHOUSE_DB", c.Events.ClickHouseDB)
	c.Events.ClickHouseUser = getEnv("CLICKHOUSE_USER", c.Events.ClickHouseUser)
	c.Events.ClickHousePass = getEnv("CLICKHOUSE_PASS", c.Events.ClickHousePass)
}

// Validate checks provider names and numeric bounds
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case StorageGridFS, StorageFilesystem, StorageMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.STT.Provider {
	case STTWhisper, STTGoogle, STTGemini, STTMock:
	default:
		return fmt.Errorf("unknown stt provider %q", c.STT.Provider)
	}
	switch c.Emotion.Provider {
	case EmotionHume, EmotionMock, EmotionNone:
	default:
		return fmt.Errorf("unknown emotion provider %q", c.Emotion.Provider)
	}
	if c.Emotion.PollInterval <= 0 {
		return fmt.Errorf("emotion poll interval must be positive")
	}
	if c.Emotion.MaxAttempts <= 0 {
		return fmt.Errorf("emotion max attempts must be positive")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive")
	}
	if c.Server.RequireToken && c.Server.JWTSecret == "" {
		return fmt.Errorf("require_token needs a jwt secret")
	}
	return nil
}

// EventSinks returns the names of the configured event sinks
func (c *Config) EventSinks() []string {
	sinks := []string{"websocket"}
	if c.Events.MQTTBroker != "" {
		sinks = append(sinks, "mqtt")
	}
	if c.Events.ClickHouseAddr != "" {
		sinks = append(sinks, "clickhouse")
	}
	return sinks
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to parse %s as int, using default: %v\n", key, err)
		return defaultValue
	}
	return intValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to parse %s as bool, using default: %v\n", key, err)
		return defaultValue
	}
	return boolValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to parse %s as duration, using default: %v\n", key, err)
		return defaultValue
	}
	return d
}
