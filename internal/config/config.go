package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Transcription providers.
const (
	ProviderWhisper    = "whisper"
	ProviderDeepInfra  = "deepinfra"
	ProviderOpenAI     = "openai"
	ProviderElevenLabs = "elevenlabs"
)

// Checkpoint backends.
const (
	BackendCSV      = "csv"
	BackendPostgres = "postgres"
)

var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrUnknownBackend  = errors.New("unknown checkpoint backend")
)

type Config struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`

	// Model is the tier name; it is also the model half of the log identity.
	Model         string  `env:"MODEL" envDefault:"small"`
	WindowSeconds float64 `env:"WINDOW_SECONDS" envDefault:"30"`
	SampleRate    int     `env:"SAMPLE_RATE" envDefault:"16000"`

	InputDir  string `env:"INPUT_DIR" envDefault:"./data/input"`
	OutputDir string `env:"OUTPUT_DIR" envDefault:"./data/output"`
	LogDir    string `env:"LOG_DIR" envDefault:"./data/log"`

	Provider           string        `env:"PROVIDER" envDefault:"whisper"`
	WhisperURL         string        `env:"WHISPER_URL" envDefault:"http://localhost:8000/v1/audio/transcriptions"`
	WhisperModel       string        `env:"WHISPER_MODEL"` // server-side model id; defaults to the tier name
	ModelTimeout       time.Duration `env:"MODEL_TIMEOUT" envDefault:"10m"`
	Language           string        `env:"LANGUAGE"`
	Temperature        float64       `env:"TEMPERATURE" envDefault:"0"`
	Prompt             string        `env:"PROMPT"`
	DeepInfraAPIKey    string        `env:"DEEPINFRA_API_KEY"`
	DeepInfraModel     string        `env:"DEEPINFRA_MODEL" envDefault:"openai/whisper-large-v3-turbo"`
	OpenAIAPIKey       string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL      string        `env:"OPENAI_BASE_URL"`
	OpenAIModel        string        `env:"OPENAI_MODEL" envDefault:"whisper-1"`
	ElevenLabsAPIKey   string        `env:"ELEVENLABS_API_KEY"`
	ElevenLabsModel    string        `env:"ELEVENLABS_MODEL" envDefault:"scribe_v1"`
	ElevenLabsKeyterms string        `env:"ELEVENLABS_KEYTERMS"`
	PreprocessAudio    bool          `env:"PREPROCESS_AUDIO" envDefault:"false"`

	CheckpointBackend string `env:"CHECKPOINT_BACKEND" envDefault:"csv"`
	DatabaseURL       string `env:"DATABASE_URL"`

	S3 S3Config `envPrefix:"S3_"`

	MQTTBrokerURL   string `env:"MQTT_BROKER_URL"`
	MQTTClientID    string `env:"MQTT_CLIENT_ID" envDefault:"voice2txt"`
	MQTTTopicPrefix string `env:"MQTT_TOPIC_PREFIX" envDefault:"voice2txt"`
	MQTTUsername    string `env:"MQTT_USERNAME"`
	MQTTPassword    string `env:"MQTT_PASSWORD"`

	StatusAddr  string `env:"STATUS_ADDR"`
	StatusToken string `env:"STATUS_TOKEN"`
	Timezone    string `env:"TIMEZONE" envDefault:"Asia/Tokyo"`
	ProgressBar bool   `env:"PROGRESS_BAR" envDefault:"true"`
	OpenOutput  bool   `env:"OPEN_OUTPUT" envDefault:"false"`
}

// S3Config enables mirroring finished transcripts to an S3-compatible bucket.
type S3Config struct {
	Bucket        string        `env:"BUCKET"`
	Endpoint      string        `env:"ENDPOINT"`
	Region        string        `env:"REGION" envDefault:"us-east-1"`
	AccessKey     string        `env:"ACCESS_KEY"`
	SecretKey     string        `env:"SECRET_KEY"`
	Prefix        string        `env:"PREFIX"`
	PresignExpiry time.Duration `env:"PRESIGN_EXPIRY" envDefault:"1h"`
}

// Enabled reports whether a bucket is configured.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile           string
	LogLevel          string
	Model             string
	Provider          string
	Language          string
	InputDir          string
	OutputDir         string
	LogDir            string
	WhisperURL        string
	CheckpointBackend string
	StatusAddr        string
	OpenOutput        bool
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Non-empty values win
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.Model != "" {
		cfg.Model = overrides.Model
	}
	if overrides.Provider != "" {
		cfg.Provider = overrides.Provider
	}
	if overrides.Language != "" {
		cfg.Language = overrides.Language
	}
	if overrides.InputDir != "" {
		cfg.InputDir = overrides.InputDir
	}
	if overrides.OutputDir != "" {
		cfg.OutputDir = overrides.OutputDir
	}
	if overrides.LogDir != "" {
		cfg.LogDir = overrides.LogDir
	}
	if overrides.WhisperURL != "" {
		cfg.WhisperURL = overrides.WhisperURL
	}
	if overrides.CheckpointBackend != "" {
		cfg.CheckpointBackend = overrides.CheckpointBackend
	}
	if overrides.StatusAddr != "" {
		cfg.StatusAddr = overrides.StatusAddr
	}
	if overrides.OpenOutput {
		cfg.OpenOutput = true
	}

	cfg.Provider = strings.ToLower(cfg.Provider)
	cfg.CheckpointBackend = strings.ToLower(cfg.CheckpointBackend)

	return cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	if c.WindowSeconds <= 0 {
		return fmt.Errorf("WINDOW_SECONDS must be positive, got %v", c.WindowSeconds)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("SAMPLE_RATE must be positive, got %d", c.SampleRate)
	}

	switch c.Provider {
	case ProviderWhisper:
		if _, err := LookupTier(c.Model); err != nil {
			return err
		}
		if c.WhisperURL == "" {
			return fmt.Errorf("WHISPER_URL is required for the whisper provider")
		}
	case ProviderDeepInfra:
		if c.DeepInfraAPIKey == "" {
			return fmt.Errorf("DEEPINFRA_API_KEY is required for the deepinfra provider")
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" && c.OpenAIBaseURL == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
	case ProviderElevenLabs:
		if c.ElevenLabsAPIKey == "" {
			return fmt.Errorf("ELEVENLABS_API_KEY is required for the elevenlabs provider")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.Provider)
	}

	switch c.CheckpointBackend {
	case BackendCSV:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres checkpoint backend")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.CheckpointBackend)
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// IdentityModel is the model name used in log and transcript file names.
// For the whisper provider this is the tier; hosted providers use their
// model id with path separators flattened.
func (c *Config) IdentityModel() string {
	var m string
	switch c.Provider {
	case ProviderDeepInfra:
		m = c.DeepInfraModel
	case ProviderOpenAI:
		m = c.OpenAIModel
	case ProviderElevenLabs:
		m = c.ElevenLabsModel
	default:
		m = c.Model
	}
	return strings.NewReplacer("/", "-", "\\", "-", ":", "-").Replace(m)
}

// ServerModel returns the model id sent to the whisper server.
func (c *Config) ServerModel() string {
	if c.WhisperModel != "" {
		return c.WhisperModel
	}
	return c.Model
}

// Location resolves TIMEZONE for the completion estimate.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// EnsureDirs creates the input, output and log directories.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.InputDir, c.OutputDir, c.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	return nil
}
