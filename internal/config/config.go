package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	visionquery "github.com/menta2k/vision-query"
	"github.com/menta2k/vision-query/pkg/types"
)

// EnvPrefix namespaces environment overrides, e.g. VQUERY_QUERY_MODEL.
const EnvPrefix = "VQUERY"

// DefaultPrompt asks for a short description of the image
const DefaultPrompt = "What do you see in this image? Describe it briefly."

// Config holds the application configuration. Credentials never live here;
// they are read from the environment on every query.
type Config struct {
	Query  QueryConfig  `mapstructure:"query" yaml:"query"`
	OpenAI OpenAIConfig `mapstructure:"openai" yaml:"openai"`
	Gemini GeminiConfig `mapstructure:"gemini" yaml:"gemini"`
	Ollama OllamaConfig `mapstructure:"ollama" yaml:"ollama"`
}

// QueryConfig holds the defaults for a single query
type QueryConfig struct {
	Provider  string `mapstructure:"provider" yaml:"provider"`
	Model     string `mapstructure:"model" yaml:"model"`
	Prompt    string `mapstructure:"prompt" yaml:"prompt"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens"`
	// SendSize is the max long side in pixels of the image sent, 0 = original.
	SendSize int `mapstructure:"send_size" yaml:"send_size"`
}

// OpenAIConfig holds OpenAI-compatible endpoint settings
type OpenAIConfig struct {
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"`
	APIKeyEnv string `mapstructure:"api_key_env" yaml:"api_key_env"`
}

// GeminiConfig holds Gemini settings
type GeminiConfig struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	APIKeyEnv string `mapstructure:"api_key_env" yaml:"api_key_env"`
}

// OllamaConfig holds Ollama settings
type OllamaConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Query: QueryConfig{
			Provider:  string(visionquery.ProviderOpenAI),
			Model:     "gpt-4o-mini",
			Prompt:    DefaultPrompt,
			MaxTokens: types.DefaultMaxTokens,
			SendSize:  0,
		},
		OpenAI: OpenAIConfig{
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Gemini: GeminiConfig{
			APIKeyEnv: "GOOGLE_API_KEY",
		},
	}
}

// Load reads the YAML file at path (optional when empty) on top of the
// defaults, then applies VQUERY_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
		dc.ErrorUnused = true
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(trimStrings)
	}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := visionquery.ParseProvider(c.Query.Provider); err != nil {
		return fmt.Errorf("query.provider: %w", err)
	}

	if c.Query.Model == "" {
		return fmt.Errorf("query.model cannot be empty")
	}

	if c.Query.Prompt == "" {
		return fmt.Errorf("query.prompt cannot be empty")
	}

	if c.Query.MaxTokens < 0 {
		return fmt.Errorf("query.max_tokens must not be negative")
	}

	if c.Query.SendSize < 0 {
		return fmt.Errorf("query.send_size must not be negative")
	}

	if c.OpenAI.APIKeyEnv == "" || c.Gemini.APIKeyEnv == "" {
		return fmt.Errorf("api_key_env cannot be empty")
	}

	return nil
}

// Options converts the provider sections into library options
func (c *Config) Options() visionquery.Options {
	return visionquery.Options{
		MaxTokens:       c.Query.MaxTokens,
		OpenAIBaseURL:   c.OpenAI.BaseURL,
		OpenAIAPIKeyEnv: c.OpenAI.APIKeyEnv,
		GeminiAPIKeyEnv: c.Gemini.APIKeyEnv,
		GeminiEndpoint:  c.Gemini.Endpoint,
		OllamaHost:      c.Ollama.Host,
	}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "vision-query", "config.yaml")
}

// setDefaults registers every key so AutomaticEnv can see it
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("query.provider", d.Query.Provider)
	v.SetDefault("query.model", d.Query.Model)
	v.SetDefault("query.prompt", d.Query.Prompt)
	v.SetDefault("query.max_tokens", d.Query.MaxTokens)
	v.SetDefault("query.send_size", d.Query.SendSize)
	v.SetDefault("openai.base_url", d.OpenAI.BaseURL)
	v.SetDefault("openai.api_key_env", d.OpenAI.APIKeyEnv)
	v.SetDefault("gemini.endpoint", d.Gemini.Endpoint)
	v.SetDefault("gemini.api_key_env", d.Gemini.APIKeyEnv)
	v.SetDefault("ollama.host", d.Ollama.Host)
}

func trimStrings(_, _ reflect.Kind, data any) (any, error) {
	if s, ok := data.(string); ok {
		return strings.TrimSpace(s), nil
	}
	return data, nil
}
