package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.DefaultModelID != "gemini-2.5-flash" {
		t.Errorf("DefaultModelID = %q, want %q", cfg.DefaultModelID, "gemini-2.5-flash")
	}
	if cfg.RequestTimeoutSeconds != 120 {
		t.Errorf("RequestTimeoutSeconds = %d, want 120", cfg.RequestTimeoutSeconds)
	}
	if cfg.MaxConcurrency != 4 {
		t.Errorf("MaxConcurrency = %d, want 4", cfg.MaxConcurrency)
	}
	if cfg.MaxTextChars != 100000 {
		t.Errorf("MaxTextChars = %d, want 100000", cfg.MaxTextChars)
	}
	if cfg.MaxExamples != 50 {
		t.Errorf("MaxExamples = %d, want 50", cfg.MaxExamples)
	}
	if cfg.MaxWorkers != 20 {
		t.Errorf("MaxWorkers = %d, want 20", cfg.MaxWorkers)
	}
	if cfg.ServiceAPIKey != "" {
		t.Errorf("ServiceAPIKey = %q, want empty", cfg.ServiceAPIKey)
	}
}

func TestConfig_RequestTimeout(t *testing.T) {
	cfg := &Config{RequestTimeoutSeconds: 30}
	if got := cfg.RequestTimeout(); got != 30*time.Second {
		t.Errorf("RequestTimeout() = %v, want 30s", got)
	}
}

func TestConfig_MissingSecrets(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		expected []string
	}{
		{
			name:     "both missing",
			cfg:      Config{},
			expected: []string{"SERVICE_API_KEY", "PROVIDER_API_KEY"},
		},
		{
			name:     "provider missing",
			cfg:      Config{ServiceAPIKey: "s"},
			expected: []string{"PROVIDER_API_KEY"},
		},
		{
			name:     "service missing",
			cfg:      Config{ProviderAPIKey: "p"},
			expected: []string{"SERVICE_API_KEY"},
		},
		{
			name:     "none missing",
			cfg:      Config{ServiceAPIKey: "s", ProviderAPIKey: "p"},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.MissingSecrets()
			if len(got) != len(tt.expected) {
				t.Fatalf("MissingSecrets() = %v, want %v", got, tt.expected)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("MissingSecrets()[%d] = %q, want %q", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestManager_ReloadNotifiesCallbacks(t *testing.T) {
	t.Cleanup(viper.Reset)

	cm, err := NewManager("")
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	var got *Config
	cm.OnChange(func(cfg *Config) {
		got = cfg
	})

	viper.Set("max_text_chars", 1234)
	cm.reload()

	if got == nil {
		t.Fatal("OnChange callback was not invoked")
	}
	if got.MaxTextChars != 1234 {
		t.Errorf("callback MaxTextChars = %d, want 1234", got.MaxTextChars)
	}
	if cm.Get().MaxTextChars != 1234 {
		t.Errorf("Get().MaxTextChars = %d, want 1234 after reload", cm.Get().MaxTextChars)
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Setenv("LEXGATE_TEST_SECRET", "resolved-value")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain value", "literal", "literal"},
		{"env reference", "${LEXGATE_TEST_SECRET}", "resolved-value"},
		{"embedded reference", "pre-${LEXGATE_TEST_SECRET}-post", "pre-resolved-value-post"},
		{"unset variable", "${LEXGATE_TEST_UNSET_VAR}", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveEnvVars(tt.input); got != tt.want {
				t.Errorf("ResolveEnvVars(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
