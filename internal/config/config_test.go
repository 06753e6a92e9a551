package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(filepath.Join(t.TempDir(), ".env"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.StoreBackend != "file" {
		t.Errorf("expected default store backend file, got %s", cfg.StoreBackend)
	}
	if cfg.Classifier != "llm" {
		t.Errorf("expected default classifier llm, got %s", cfg.Classifier)
	}
	if cfg.ClassifierTimeout != 10*time.Second {
		t.Errorf("expected classifier timeout 10s, got %s", cfg.ClassifierTimeout)
	}
	if cfg.GroundingTimeout != 15*time.Second {
		t.Errorf("expected grounding timeout 15s, got %s", cfg.GroundingTimeout)
	}
	if cfg.ListenAttempts != 3 {
		t.Errorf("expected 3 listen attempts, got %d", cfg.ListenAttempts)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_EnvOverridesAndCleaning(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "\"sk-test\"\r")
	t.Setenv("CLASSIFIER", "\ufeffregex")
	t.Setenv("LISTEN_ATTEMPTS", "'5'")
	t.Setenv("VOICE_ENABLED", "true")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test,")

	cfg, err := load(filepath.Join(t.TempDir(), ".env"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OpenAIAPIKey != "sk-test" {
		t.Errorf("api key not cleaned: %q", cfg.OpenAIAPIKey)
	}
	if cfg.Classifier != "regex" {
		t.Errorf("classifier not cleaned: %q", cfg.Classifier)
	}
	if cfg.ListenAttempts != 5 {
		t.Errorf("expected 5 listen attempts, got %d", cfg.ListenAttempts)
	}
	if !cfg.VoiceEnabled {
		t.Error("expected voice enabled")
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.test" {
		t.Errorf("unexpected origins %v", cfg.CORSOrigins)
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "PHENOML_BASE=https://phenoml.test\r\nGROUNDING_TIMEOUT=2s\r\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PhenoMLBase != "https://phenoml.test" {
		t.Errorf("unexpected phenoml base %q", cfg.PhenoMLBase)
	}
	if cfg.GroundingTimeout != 2*time.Second {
		t.Errorf("unexpected grounding timeout %s", cfg.GroundingTimeout)
	}
}

func TestClean(t *testing.T) {
	tests := map[string]string{
		`"quoted"`:      "quoted",
		`'single'`:      "single",
		"value\r":       "value",
		"\ufeffbom":       "bom",
		`  " padded " `: "padded",
		`"unbalanced`:   `"unbalanced`,
		"":              "",
	}
	for in, want := range tests {
		if got := Clean(in); got != want {
			t.Errorf("Clean(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			StoreBackend:      "file",
			PatientsFile:      "patients.json",
			Classifier:        "llm",
			ListenAttempts:    3,
			ClassifierTimeout: time.Second,
			GroundingTimeout:  time.Second,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"memory backend", func(c *Config) { c.StoreBackend = "memory" }, true},
		{"postgres without url", func(c *Config) { c.StoreBackend = "postgres" }, false},
		{"postgres with url", func(c *Config) { c.StoreBackend = "postgres"; c.DatabaseURL = "postgres://x" }, true},
		{"unknown backend", func(c *Config) { c.StoreBackend = "redis" }, false},
		{"unknown classifier", func(c *Config) { c.Classifier = "bert" }, false},
		{"zero attempts", func(c *Config) { c.ListenAttempts = 0 }, false},
		{"zero timeout", func(c *Config) { c.GroundingTimeout = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			if err := c.Validate(); (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestConfig_IsDev(t *testing.T) {
	c := &Config{Env: "development"}
	if !c.IsDev() {
		t.Error("expected IsDev() to return true for development")
	}
	c.Env = "production"
	if c.IsDev() {
		t.Error("expected IsDev() to return false for production")
	}
}
