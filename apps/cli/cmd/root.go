package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configFlag   string
	envFileFlag  string
	baseFlag     string
	verboseFlag  int // 0=off, 1=-v, 2=-vv
	noColorFlag  bool
	logLevelFlag string
	proxyFlag    string
	insecureFlag bool
	rateFlag     float64
	historyFlag  string

	// Credential flags
	bearerFlag       string
	basicFlag        string
	apiKeyFlag       string
	apiKeyHeaderFlag string
	awsSigV4Flag     string

	oauth2TokenURLFlag     string
	oauth2ClientIDFlag     string
	oauth2ClientSecretFlag string
	oauth2ScopeFlag        []string
	oauth2UserFlag         string
)

var rootCmd = &cobra.Command{
	Use:   "websvc",
	Short: "Call HTTP APIs with shared defaults. No boilerplate.",
	Long: `websvc sends requests through a web service client that resolves
paths against a base address, injects default headers, normalizes
server errors and retries interrupted calls.

Defaults are read from .websvc.yaml (or --config) and may reference
environment variables and template functions such as {{uuid()}}.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.New(color.FgRed).Sprint("Error:"), err)
		os.Exit(exitCode(err))
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFlag, "config", getEnvString("WEBSVC_CONFIG", ""), "Path to config file (env: WEBSVC_CONFIG)")
	flags.StringVar(&envFileFlag, "env-file", getEnvString("WEBSVC_ENV_FILE", ""), "Path to .env file exported before loading config (env: WEBSVC_ENV_FILE)")
	flags.StringVarP(&baseFlag, "base", "b", getEnvString("WEBSVC_BASE", ""), "Base address, overrides the config file (env: WEBSVC_BASE)")
	flags.CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v logs requests, -vv adds debug logs)")
	flags.BoolVar(&noColorFlag, "no-color", getEnvBool("WEBSVC_NO_COLOR", false), "Disable colored output (env: WEBSVC_NO_COLOR)")
	flags.StringVar(&logLevelFlag, "log-level", getEnvString("WEBSVC_LOG_LEVEL", ""), "Log level: debug, info, warn, error (env: WEBSVC_LOG_LEVEL)")

	// Network flags
	flags.StringVar(&proxyFlag, "proxy", getEnvString("WEBSVC_PROXY", ""), "Proxy URL for HTTP requests (env: WEBSVC_PROXY)")
	flags.BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("WEBSVC_INSECURE", false), "Disable SSL certificate validation (env: WEBSVC_INSECURE)")
	flags.Float64Var(&rateFlag, "rate", getEnvFloat("WEBSVC_RATE", 0), "Maximum requests per second, 0 for unlimited (env: WEBSVC_RATE)")
	flags.StringVar(&historyFlag, "history", getEnvString("WEBSVC_HISTORY", ""), "SQLite database recording every attempt (env: WEBSVC_HISTORY)")

	// Credential flags
	flags.StringVar(&bearerFlag, "bearer", getEnvString("WEBSVC_TOKEN", ""), "Bearer token sent as Authorization (env: WEBSVC_TOKEN)")
	flags.StringVar(&basicFlag, "basic", "", "Basic credentials as user:password")
	flags.StringVar(&apiKeyFlag, "api-key", getEnvString("WEBSVC_API_KEY", ""), "API key (env: WEBSVC_API_KEY)")
	flags.StringVar(&apiKeyHeaderFlag, "api-key-header", "X-API-Key", "Header carrying --api-key")
	flags.StringVar(&awsSigV4Flag, "aws-sigv4", "", "Sign requests with AWS SigV4 as region:service, credentials from AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN")
	flags.StringVar(&oauth2TokenURLFlag, "oauth2-token-url", getEnvString("WEBSVC_OAUTH2_TOKEN_URL", ""), "Fetch a bearer token from this OAuth2 token endpoint (env: WEBSVC_OAUTH2_TOKEN_URL)")
	flags.StringVar(&oauth2ClientIDFlag, "oauth2-client-id", getEnvString("WEBSVC_OAUTH2_CLIENT_ID", ""), "OAuth2 client ID (env: WEBSVC_OAUTH2_CLIENT_ID)")
	flags.StringVar(&oauth2ClientSecretFlag, "oauth2-client-secret", getEnvString("WEBSVC_OAUTH2_CLIENT_SECRET", ""), "OAuth2 client secret (env: WEBSVC_OAUTH2_CLIENT_SECRET)")
	flags.StringSliceVar(&oauth2ScopeFlag, "oauth2-scope", nil, "OAuth2 scopes (repeatable)")
	flags.StringVar(&oauth2UserFlag, "oauth2-user", "", "Use the password grant with user:password")

	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
