package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the websvc configuration
type Config struct {
	BaseAddress      string            `json:"baseAddress,omitempty" yaml:"baseAddress,omitempty"`
	Timeout          int               `json:"timeout,omitempty" yaml:"timeout,omitempty"` // milliseconds
	LogEnabled       *bool             `json:"logEnabled,omitempty" yaml:"logEnabled,omitempty"`
	LogLevel         string            `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
	Headers          map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"` // Default headers, may contain {{...}} templates
	FollowRedirects  *bool             `json:"followRedirects,omitempty" yaml:"followRedirects,omitempty"`
	MaxRedirects     int               `json:"maxRedirects,omitempty" yaml:"maxRedirects,omitempty"`
	ValidateSSL      *bool             `json:"validateSSL,omitempty" yaml:"validateSSL,omitempty"`
	Proxy            string            `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	RateLimit        float64           `json:"rateLimit,omitempty" yaml:"rateLimit,omitempty"` // requests per second
	ErrorCodePath    string            `json:"errorCodePath,omitempty" yaml:"errorCodePath,omitempty"`
	ErrorMessagePath string            `json:"errorMessagePath,omitempty" yaml:"errorMessagePath,omitempty"`
	ErrorContextPath string            `json:"errorContextPath,omitempty" yaml:"errorContextPath,omitempty"`
	StrictMultipart  *bool             `json:"strictMultipart,omitempty" yaml:"strictMultipart,omitempty"`
	MaxRetries       *int              `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty"`
	History          string            `json:"history,omitempty" yaml:"history,omitempty"` // sqlite journal path
	NoColor          *bool             `json:"noColor,omitempty" yaml:"noColor,omitempty"`
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}

// IntPtr returns a pointer to i.
func IntPtr(i int) *int {
	return &i
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetTimeout returns the request timeout, defaulting to DefaultTimeout.
func (c *Config) GetTimeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return time.Duration(c.Timeout) * time.Millisecond
}

// GetLogEnabled returns the request logging setting, defaulting to true
func (c *Config) GetLogEnabled() bool {
	return getBool(c.LogEnabled, true)
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetMaxRedirects returns the redirect ceiling, defaulting to DefaultMaxRedirects
func (c *Config) GetMaxRedirects() int {
	if c.MaxRedirects <= 0 {
		return DefaultMaxRedirects
	}
	return c.MaxRedirects
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

// GetStrictMultipart returns the strict multipart setting, defaulting to false
func (c *Config) GetStrictMultipart() bool {
	return getBool(c.StrictMultipart, false)
}

// GetMaxRetries returns the interruption retry ceiling, defaulting to DefaultMaxRetries
func (c *Config) GetMaxRetries() int {
	if c.MaxRetries == nil || *c.MaxRetries < 0 {
		return DefaultMaxRetries
	}
	return *c.MaxRetries
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// ErrorPaths returns the gjson paths of structured server errors, falling
// back to the defaults for unset paths.
func (c *Config) ErrorPaths() (code, message, context string) {
	code, message, context = DefaultErrorCodePath, DefaultErrorMessagePath, DefaultErrorContextPath
	if c.ErrorCodePath != "" {
		code = c.ErrorCodePath
	}
	if c.ErrorMessagePath != "" {
		message = c.ErrorMessagePath
	}
	if c.ErrorContextPath != "" {
		context = c.ErrorContextPath
	}
	return code, message, context
}

// ConfigFilenames contains the possible config file names, in search order
var ConfigFilenames = []string{
	".websvc.yaml",
	".websvc.yml",
	"websvc.config.yaml",
	"websvc.config.json",
	".websvcrc",
	".websvcrc.json",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	if path := FindConfigFile(dir); path != "" {
		return loadConfigFromFile(path)
	}

	return DefaultConfig(), nil
}

// FindConfigFile returns the first config file present in dir, or "".
func FindConfigFile(dir string) string {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}
	return ""
}

// loadConfigFromFile loads configuration from a specific file. ${VAR}
// references are expanded from the process environment before parsing.
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	config := DefaultConfig()
	if err := Parse(path, ExpandEnv(data), config); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return config, nil
}

var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnv replaces ${VAR} references with environment values. Bare $VAR
// is left alone so {{$VAR}} header templates survive until request time.
func ExpandEnv(data []byte) []byte {
	return envRefPattern.ReplaceAllFunc(data, func(m []byte) []byte {
		return []byte(os.Getenv(string(m[2 : len(m)-1])))
	})
}

// Parse decodes data into config, as YAML for .yaml/.yml files and as JSON otherwise.
func Parse(path string, data []byte, config *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, config)
	default:
		return json.Unmarshal(data, config)
	}
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c

	if other.BaseAddress != "" {
		result.BaseAddress = other.BaseAddress
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.LogLevel != "" {
		result.LogLevel = other.LogLevel
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.RateLimit > 0 {
		result.RateLimit = other.RateLimit
	}
	if other.ErrorCodePath != "" {
		result.ErrorCodePath = other.ErrorCodePath
	}
	if other.ErrorMessagePath != "" {
		result.ErrorMessagePath = other.ErrorMessagePath
	}
	if other.ErrorContextPath != "" {
		result.ErrorContextPath = other.ErrorContextPath
	}
	if other.History != "" {
		result.History = other.History
	}

	// Pointer fields - only override if explicitly set in other config
	if other.LogEnabled != nil {
		result.LogEnabled = other.LogEnabled
	}
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.StrictMultipart != nil {
		result.StrictMultipart = other.StrictMultipart
	}
	if other.MaxRetries != nil {
		result.MaxRetries = other.MaxRetries
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	if len(c.Headers) > 0 || len(other.Headers) > 0 {
		result.Headers = make(map[string]string, len(c.Headers)+len(other.Headers))
		for k, v := range c.Headers {
			result.Headers[k] = v
		}
		for k, v := range other.Headers {
			result.Headers[k] = v
		}
	}

	return &result
}

// SaveConfig saves the configuration to a file, as YAML or JSON by extension
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
