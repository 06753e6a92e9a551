package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	StoreBackend          string `mapstructure:"STORE_BACKEND"`
	PatientsFile          string `mapstructure:"PATIENTS_FILE"`
	DatabaseURL           string `mapstructure:"DATABASE_URL"`
	PostgresNotifyChannel string `mapstructure:"POSTGRES_NOTIFY_CHANNEL"`

	Classifier        string        `mapstructure:"CLASSIFIER"`
	OpenAIAPIKey      string        `mapstructure:"OPENAI_API_KEY"`
	OpenAIBaseURL     string        `mapstructure:"OPENAI_BASE_URL"`
	OpenAIModelChat   string        `mapstructure:"OPENAI_MODEL_CHAT"`
	ClassifierTimeout time.Duration `mapstructure:"CLASSIFIER_TIMEOUT"`

	PhenoMLBase      string        `mapstructure:"PHENOML_BASE"`
	PhenoMLJWT       string        `mapstructure:"PHENOML_JWT"`
	GroundingTimeout time.Duration `mapstructure:"GROUNDING_TIMEOUT"`

	VoiceEnabled   bool   `mapstructure:"VOICE_ENABLED"`
	STTURL         string `mapstructure:"STT_URL"`
	TTSURL         string `mapstructure:"TTS_URL"`
	TTSAPIKey      string `mapstructure:"TTS_API_KEY"`
	TTSVoiceID     string `mapstructure:"TTS_VOICE_ID"`
	RecordCommand  string `mapstructure:"RECORD_COMMAND"`
	PlayCommand    string `mapstructure:"PLAY_COMMAND"`
	ListenAttempts int    `mapstructure:"LISTEN_ATTEMPTS"`

	Port        string   `mapstructure:"PORT"`
	CORSOrigins []string
	MetricsAddr string   `mapstructure:"METRICS_ADDR"`
}

var keys = []string{
	"ENV", "LOG_LEVEL",
	"STORE_BACKEND", "PATIENTS_FILE", "DATABASE_URL", "POSTGRES_NOTIFY_CHANNEL",
	"CLASSIFIER", "OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL_CHAT", "CLASSIFIER_TIMEOUT",
	"PHENOML_BASE", "PHENOML_JWT", "GROUNDING_TIMEOUT",
	"VOICE_ENABLED", "STT_URL", "TTS_URL", "TTS_API_KEY", "TTS_VOICE_ID",
	"RECORD_COMMAND", "PLAY_COMMAND", "LISTEN_ATTEMPTS",
	"PORT", "CORS_ORIGINS", "METRICS_ADDR",
}

// Load reads the configuration from the environment and an optional .env
// file in the working directory.
func Load() (*Config, error) {
	return load(".env")
}

func load(envFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_BACKEND", "file")
	v.SetDefault("PATIENTS_FILE", "patients.json")
	v.SetDefault("POSTGRES_NOTIFY_CHANNEL", "patients_changed")
	v.SetDefault("CLASSIFIER", "llm")
	v.SetDefault("OPENAI_MODEL_CHAT", "gpt-4o-mini")
	v.SetDefault("CLASSIFIER_TIMEOUT", "10s")
	v.SetDefault("GROUNDING_TIMEOUT", "15s")
	v.SetDefault("VOICE_ENABLED", false)
	v.SetDefault("LISTEN_ATTEMPTS", 3)
	v.SetDefault("PORT", "8080")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	for _, k := range keys {
		v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	// Values pasted from dashboards or Windows editors arrive quoted or with
	// stray CR/BOM characters.
	for _, k := range keys {
		if v.IsSet(k) {
			v.Set(k, Clean(v.GetString(k)))
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.CORSOrigins = SplitList(v.GetString("CORS_ORIGINS"))
	return cfg, nil
}

// Clean strips a BOM, carriage returns, surrounding whitespace and one pair
// of matching surrounding quotes.
func Clean(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}

// SplitList splits a comma-separated value, dropping empty items.
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the selected backends have what they need.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case "file":
		if c.PatientsFile == "" {
			return fmt.Errorf("PATIENTS_FILE is required when STORE_BACKEND is \"file\"")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is \"postgres\"")
		}
	case "memory":
	default:
		return fmt.Errorf("STORE_BACKEND must be \"file\", \"postgres\", or \"memory\", got %q", c.StoreBackend)
	}

	if c.Classifier != "llm" && c.Classifier != "regex" {
		return fmt.Errorf("CLASSIFIER must be \"llm\" or \"regex\", got %q", c.Classifier)
	}
	if c.ListenAttempts < 1 {
		return fmt.Errorf("LISTEN_ATTEMPTS must be at least 1, got %d", c.ListenAttempts)
	}
	if c.ClassifierTimeout <= 0 || c.GroundingTimeout <= 0 {
		return fmt.Errorf("CLASSIFIER_TIMEOUT and GROUNDING_TIMEOUT must be positive")
	}
	return nil
}
