package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/natefinch/atomic"
	"github.com/spf13/viper"
)

// validate is the package-level validator instance. Errors name fields by
// their JSON keys so they match the config file.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// LogConfig controls the terminal log and the optional rotating log file.
type LogConfig struct {
	Level      string `json:"level" mapstructure:"level" validate:"oneof=debug info warn error"`
	Format     string `json:"format" mapstructure:"format" validate:"oneof=pretty json"`
	File       string `json:"file" mapstructure:"file"`
	MaxSizeMB  int    `json:"max_size_mb" mapstructure:"max_size_mb" validate:"min=1"`
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups" validate:"min=0"`
	MaxAgeDays int    `json:"max_age_days" mapstructure:"max_age_days" validate:"min=0"`
	Compress   bool   `json:"compress" mapstructure:"compress"`
}

// DatabaseConfig locates the SQLite file that caches the trained model.
type DatabaseConfig struct {
	Path string `json:"path" mapstructure:"path" validate:"required"`
}

// MarkovConfig holds the model and sampling settings.
type MarkovConfig struct {
	ModelName   string  `json:"model_name" mapstructure:"model_name" validate:"required"`
	StateSize   int     `json:"state_size" mapstructure:"state_size" validate:"min=1,max=8"`
	MaxChars    int     `json:"max_chars" mapstructure:"max_chars" validate:"min=1"`
	Tries       int     `json:"tries" mapstructure:"tries" validate:"min=1"`
	MaxTokens   int     `json:"max_tokens" mapstructure:"max_tokens" validate:"min=1"`
	Temperature float64 `json:"temperature" mapstructure:"temperature" validate:"min=0"`
	TopK        int     `json:"top_k" mapstructure:"top_k" validate:"min=0"`
	Originality bool    `json:"originality" mapstructure:"originality"`
}

// CorpusConfig locates the text files the quotes are made from.
type CorpusConfig struct {
	QuotesPath   string `json:"quotes_path" mapstructure:"quotes_path" validate:"required"`
	Limit        int64  `json:"limit_bytes" mapstructure:"limit_bytes" validate:"min=0"`
	DatasetPath  string `json:"dataset_path" mapstructure:"dataset_path"`
	SkipRows     int    `json:"skip_rows" mapstructure:"skip_rows" validate:"min=0"`
	AuthorsPath  string `json:"authors_path" mapstructure:"authors_path"`
	AuthorMaxLen int    `json:"author_max_len" mapstructure:"author_max_len" validate:"min=0"`
}

// BackgroundConfig selects and tunes the photo source.
type BackgroundConfig struct {
	Source       string  `json:"source" mapstructure:"source" validate:"oneof=unsplash dir"`
	Dir          string  `json:"dir" mapstructure:"dir" validate:"required_if=Source dir"`
	Width        int     `json:"width" mapstructure:"width" validate:"min=1"`
	Height       int     `json:"height" mapstructure:"height" validate:"min=1"`
	Query        string  `json:"query" mapstructure:"query"`
	BaseURL      string  `json:"base_url" mapstructure:"base_url" validate:"omitempty,url"`
	APIURL       string  `json:"api_url" mapstructure:"api_url" validate:"omitempty,url"`
	AccessKey    string  `json:"access_key" mapstructure:"access_key"`
	MaxRetries   int     `json:"max_retries" mapstructure:"max_retries" validate:"min=0"`
	RetryDelayMs int     `json:"retry_delay_ms" mapstructure:"retry_delay_ms" validate:"min=0"`
	TimeoutSec   int     `json:"timeout_sec" mapstructure:"timeout_sec" validate:"min=1"`
	RateLimit    float64 `json:"rate_limit" mapstructure:"rate_limit" validate:"gt=0"`
	RateBurst    int     `json:"rate_burst" mapstructure:"rate_burst" validate:"min=1"`
}

// RenderConfig holds the text layout.
type RenderConfig struct {
	// FontPath is a .ttf/.otf file; empty uses the built-in Go Regular.
	FontPath     string  `json:"font_path" mapstructure:"font_path"`
	FontSize     float64 `json:"font_size" mapstructure:"font_size" validate:"gt=0"`
	Color        string  `json:"color" mapstructure:"color" validate:"hexcolor"`
	Shadow       string  `json:"shadow" mapstructure:"shadow" validate:"hexcolor"`
	ShadowOffset int     `json:"shadow_offset" mapstructure:"shadow_offset"`
	Margin       int     `json:"margin" mapstructure:"margin" validate:"min=0"`
	LineHeight   int     `json:"line_height" mapstructure:"line_height" validate:"min=0"`
	AuthorMargin int     `json:"author_margin" mapstructure:"author_margin" validate:"min=0"`
	LineWidth    int     `json:"line_width" mapstructure:"line_width" validate:"min=1"`
	Quality      int     `json:"quality" mapstructure:"quality" validate:"min=1,max=100"`
	AuthorMode   string  `json:"author_mode" mapstructure:"author_mode" validate:"oneof=random default none quote"`
}

// OutputConfig says where images are written.
type OutputConfig struct {
	Dir string `json:"dir" mapstructure:"dir" validate:"required"`
}

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	Log        LogConfig        `json:"log" mapstructure:"log"`
	Database   DatabaseConfig   `json:"database" mapstructure:"database"`
	Markov     MarkovConfig     `json:"markov" mapstructure:"markov"`
	Corpus     CorpusConfig     `json:"corpus" mapstructure:"corpus"`
	Background BackgroundConfig `json:"background" mapstructure:"background"`
	Render     RenderConfig     `json:"render" mapstructure:"render"`
	Output     OutputConfig     `json:"output" mapstructure:"output"`
}

// DefaultConfig creates a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:      "info",
			Format:     "pretty",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Database: DatabaseConfig{
			Path: "./data/quotemaker.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
		},
		Markov: MarkovConfig{
			ModelName:   "quotes",
			StateSize:   3,
			MaxChars:    100,
			Tries:       10,
			MaxTokens:   100,
			Temperature: 1.0,
			Originality: true,
		},
		Corpus: CorpusConfig{
			QuotesPath:   "quotes.txt",
			Limit:        1_000_000,
			DatasetPath:  "quotes_all.csv",
			SkipRows:     2,
			AuthorsPath:  "authors.txt",
			AuthorMaxLen: 12,
		},
		Background: BackgroundConfig{
			Source:       "unsplash",
			Width:        900,
			Height:       500,
			BaseURL:      "https://source.unsplash.com",
			APIURL:       "https://api.unsplash.com",
			MaxRetries:   3,
			RetryDelayMs: 5000,
			TimeoutSec:   30,
			RateLimit:    1,
			RateBurst:    1,
		},
		Render: RenderConfig{
			FontSize:     50,
			Color:        "#ffffff",
			Shadow:       "#000000",
			ShadowOffset: 2,
			Margin:       50,
			LineHeight:   50,
			AuthorMargin: 50,
			LineWidth:    35,
			Quality:      75,
			AuthorMode:   "random",
		},
		Output: OutputConfig{Dir: "output"},
	}
}

// LoadConfig resolves configuration with precedence: defaults < file < env.
// Environment variables use the QUOTEMAKER_ prefix with dots replaced by
// underscores, e.g. QUOTEMAKER_BACKGROUND_ACCESS_KEY. If the file doesn't
// exist, it is created with default values.
func LoadConfig(path string) (*Config, error) {
	defaults, err := json.MarshalIndent(DefaultConfig(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal default config: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	if err = v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	file, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		if err = atomic.WriteFile(path, bytes.NewReader(defaults)); err != nil {
			// Still usable with defaults.
			fmt.Fprintf(os.Stderr, "warning: failed to write default config file: %v\n", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err = v.MergeConfig(bytes.NewReader(file)); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	v.SetEnvPrefix("quotemaker")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	config := &Config{}
	if err = v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err = config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

// formatValidationErrors converts validator errors to a readable format.
func formatValidationErrors(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	errs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		errs = append(errs, formatFieldError(e))
	}
	return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
}

func formatFieldError(e validator.FieldError) string {
	field := formatFieldPath(e.Namespace())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "required_if":
		return fmt.Sprintf("%s is required when %s", field, e.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "hexcolor":
		return fmt.Sprintf("%s must be a hex colour like #ffffff", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}

// formatFieldPath converts "Config.render.font_size" to "render.font_size".
func formatFieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, part := range parts {
		parts[i] = strings.ToLower(part)
	}
	return strings.Join(parts, ".")
}
