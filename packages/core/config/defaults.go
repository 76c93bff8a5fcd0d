package config

import "time"

const (
	DefaultTimeout      = 10 * time.Second
	DefaultMaxRedirects = 10
	DefaultMaxRetries   = 1

	DefaultErrorCodePath    = "error.code"
	DefaultErrorMessagePath = "error.message"
	DefaultErrorContextPath = "error.context"
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Timeout:         int(DefaultTimeout / time.Millisecond),
		LogEnabled:      BoolPtr(true),
		FollowRedirects: BoolPtr(true),
		MaxRedirects:    DefaultMaxRedirects,
		ValidateSSL:     BoolPtr(true),
		StrictMultipart: BoolPtr(false),
		MaxRetries:      IntPtr(DefaultMaxRetries),
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.BaseAddress == defaults.BaseAddress &&
		c.GetTimeout() == defaults.GetTimeout() &&
		c.GetLogEnabled() == defaults.GetLogEnabled() &&
		c.GetFollowRedirects() == defaults.GetFollowRedirects() &&
		c.GetMaxRedirects() == defaults.GetMaxRedirects() &&
		c.GetValidateSSL() == defaults.GetValidateSSL() &&
		c.GetStrictMultipart() == defaults.GetStrictMultipart() &&
		c.GetMaxRetries() == defaults.GetMaxRetries() &&
		c.Proxy == "" &&
		c.RateLimit == 0 &&
		c.History == "" &&
		len(c.Headers) == 0
}
