package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"

	"github.com/vpnda/akahu-sync/pkg/utils"
)

// DefaultPath is where the CLI looks for the configuration file.
const DefaultPath = "config.yaml"

// LoggingOptions controls the global logger
type LoggingOptions struct {
	Level string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
	// File additionally receives every log line when set.
	File string `yaml:"file"`
}

type AkahuOptions struct {
	Endpoint  string `yaml:"endpoint" default:"https://api.akahu.io/v1" validate:"url"`
	UserToken string `yaml:"userToken" validate:"required"`
	AppToken  string `yaml:"appToken" validate:"required"`
}

type YNABOptions struct {
	Enabled  *bool  `yaml:"enabled" default:"true"`
	Endpoint string `yaml:"endpoint" default:"https://api.ynab.com/v1" validate:"url"`
	Token    string `yaml:"token"`
	BudgetID string `yaml:"budgetId"`
}

func (o YNABOptions) IsEnabled() bool {
	return o.Enabled != nil && *o.Enabled
}

type ActualOptions struct {
	Enabled            *bool  `yaml:"enabled" default:"true"`
	Endpoint           string `yaml:"endpoint"`
	APIKey             string `yaml:"apiKey"`
	SyncID             string `yaml:"syncId"`
	EncryptionPassword string `yaml:"encryptionPassword"`
}

func (o ActualOptions) IsEnabled() bool {
	return o.Enabled != nil && *o.Enabled
}

type LLMOptions struct {
	Enabled   bool          `yaml:"enabled"`
	APIKey    string        `yaml:"apiKey"`
	BaseURL   string        `yaml:"baseUrl" validate:"omitempty,url"`
	Model     string        `yaml:"model" default:"gpt-4o"`
	MaxTokens int           `yaml:"maxTokens" default:"2" validate:"gte=1"`
	// Timeout bounds one completion round-trip. A timed out suggestion falls back to fuzzy matching.
	Timeout   time.Duration `yaml:"timeout" default:"20s" validate:"gt=0"`
}

type SyncOptions struct {
	// StartDate is the high-water mark for links that were never synced.
	StartDate string `yaml:"startDate" default:"2024-01-01T00:00:00Z" validate:"datetime=2006-01-02T15:04:05Z07:00"`
	// Timezone decides the calendar date transactions are posted on.
	Timezone string `yaml:"timezone" default:"Pacific/Auckland" validate:"timezone"`
}

// Location resolves Timezone, falling back to UTC.
func (o SyncOptions) Location() *time.Location {
	loc, err := time.LoadLocation(o.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type MetricsOptions struct {
	// Textfile receives a Prometheus textfile dump after each batch run.
	Textfile string `yaml:"textfile"`
}

type ServerOptions struct {
	Addr string `yaml:"addr" default:":8080"`
}

// Config holds the application configuration
type Config struct {
	MappingFile string         `yaml:"mappingFile" default:"akahu_budget_mapping.json"`
	DBPath      string         `yaml:"dbPath" default:"akahu_sync.db"`
	Logging     LoggingOptions `yaml:"logging"`
	Akahu       AkahuOptions   `yaml:"akahu"`
	YNAB        YNABOptions    `yaml:"ynab"`
	Actual      ActualOptions  `yaml:"actual"`
	LLM         LLMOptions     `yaml:"llm"`
	Sync        SyncOptions    `yaml:"sync"`
	Metrics     MetricsOptions `yaml:"metrics"`
	Server      ServerOptions  `yaml:"server"`
	// HTTPTimeout bounds every provider request.
	HTTPTimeout time.Duration  `yaml:"httpTimeout" default:"30s" validate:"gt=0"`
	DebugHTTP   bool           `yaml:"debugHttp"`
}

// LoadConfig loads the configuration from the specified YAML file. ${VAR}
// references are expanded from the environment before parsing.
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a validated configuration from YAML.
func Parse(data []byte) (*Config, error) {
	expanded := os.Expand(string(data), func(name string) string {
		return os.Getenv(name)
	})

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("error applying config defaults: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the static rules on every field and the settings each enabled
// target needs.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateYNAB, YNABOptions{})
	v.RegisterStructValidation(validateActual, ActualOptions{})
	v.RegisterStructValidation(validateLLM, LLMOptions{})
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func validateYNAB(sl validator.StructLevel) {
	o := sl.Current().Interface().(YNABOptions)
	if !o.IsEnabled() {
		return
	}
	if o.Token == "" {
		sl.ReportError(o.Token, "Token", "token", "required_when_enabled", "")
	}
	if o.BudgetID == "" {
		sl.ReportError(o.BudgetID, "BudgetID", "budgetId", "required_when_enabled", "")
	}
}

func validateActual(sl validator.StructLevel) {
	o := sl.Current().Interface().(ActualOptions)
	if !o.IsEnabled() {
		return
	}
	if o.Endpoint == "" {
		sl.ReportError(o.Endpoint, "Endpoint", "endpoint", "required_when_enabled", "")
	}
	if o.SyncID == "" {
		sl.ReportError(o.SyncID, "SyncID", "syncId", "required_when_enabled", "")
	}
}

func validateLLM(sl validator.StructLevel) {
	o := sl.Current().Interface().(LLMOptions)
	if o.Enabled && o.APIKey == "" {
		sl.ReportError(o.APIKey, "APIKey", "apiKey", "required_when_enabled", "")
	}
}

// Masked returns the configuration as YAML with every secret hidden.
func (c *Config) Masked() (string, error) {
	masked := *c
	masked.Akahu.UserToken = utils.Mask(c.Akahu.UserToken)
	masked.Akahu.AppToken = utils.Mask(c.Akahu.AppToken)
	masked.YNAB.Token = utils.Mask(c.YNAB.Token)
	masked.Actual.APIKey = utils.Mask(c.Actual.APIKey)
	masked.Actual.EncryptionPassword = utils.Mask(c.Actual.EncryptionPassword)
	masked.LLM.APIKey = utils.Mask(c.LLM.APIKey)

	data, err := yaml.Marshal(&masked)
	if err != nil {
		return "", fmt.Errorf("error marshalling config: %w", err)
	}
	return string(data), nil
}
