package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/abdul-hamid-achik/webservice/packages/auth/oauth2"
	"github.com/abdul-hamid-achik/webservice/packages/core/config"
	"github.com/abdul-hamid-achik/webservice/packages/core/env"
	"github.com/abdul-hamid-achik/webservice/packages/headers"
	"github.com/abdul-hamid-achik/webservice/packages/history"
	httpclient "github.com/abdul-hamid-achik/webservice/packages/http"
	"github.com/abdul-hamid-achik/webservice/packages/interrupt"
	"github.com/abdul-hamid-achik/webservice/packages/logger"
	"github.com/abdul-hamid-achik/webservice/packages/metrics"
	"github.com/abdul-hamid-achik/webservice/packages/webservice"
)

// session is the client stack shared by every command that sends requests.
type session struct {
	cfg      *config.Config
	cfgPath  string
	logger   *zerolog.Logger
	resolver *env.Resolver
	defaults *headers.Static
	latency  *metrics.LatencyRecorder
	journal  *history.Journal
	router   *interrupt.Router
	service  *webservice.Service
	provider *webservice.Provider
}

type sessionOptions struct {
	strictMultipart *bool
	retryOn         []string
	logOut          io.Writer
}

// loadConfig exports the .env file and loads the config file, then applies
// flag overrides. Without --config the working directory is searched.
func loadConfig() (*config.Config, string, error) {
	envFiles := []string{".env"}
	if envFileFlag != "" {
		envFiles = []string{envFileFlag}
	}
	if _, err := env.Export(envFileFlag == "", envFiles...); err != nil {
		return nil, "", withExitCode(ExitConfigError, fmt.Errorf("failed to load env file: %w", err))
	}

	path := configFlag
	if path == "" {
		path = config.FindConfigFile(".")
	}

	cfg := config.DefaultConfig()
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, "", withExitCode(ExitConfigError, err)
		}
		cfg = loaded
	}
	applyFlagOverrides(cfg)
	return cfg, path, nil
}

func applyFlagOverrides(cfg *config.Config) {
	if baseFlag != "" {
		cfg.BaseAddress = baseFlag
	}
	if proxyFlag != "" {
		cfg.Proxy = proxyFlag
	}
	if insecureFlag {
		cfg.ValidateSSL = config.BoolPtr(false)
	}
	if rateFlag > 0 {
		cfg.RateLimit = rateFlag
	}
	if historyFlag != "" {
		cfg.History = historyFlag
	}
	if noColorFlag {
		cfg.NoColor = config.BoolPtr(true)
	}
	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
	}
	cfg.BaseAddress = strings.TrimRight(cfg.BaseAddress, "/")
}

func newLogger(cfg *config.Config, out io.Writer) (*zerolog.Logger, error) {
	level := cfg.LogLevel
	switch {
	case verboseFlag >= 2:
		level = "debug"
	case verboseFlag == 1:
		level = "info"
	case level == "":
		level = "warn"
	}
	return logger.New(logger.Options{
		Out:     out,
		Level:   level,
		Env:     "development",
		NoColor: cfg.GetNoColor(),
	})
}

func newSession(opts sessionOptions) (*session, error) {
	cfg, path, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if opts.logOut == nil {
		opts.logOut = os.Stderr
	}

	log, err := newLogger(cfg, opts.logOut)
	if err != nil {
		log.Warn().Err(err).Msg("Falling back to info level")
	}

	s := &session{
		cfg:      cfg,
		cfgPath:  path,
		logger:   log,
		resolver: env.NewResolver(),
		latency:  metrics.NewLatencyRecorder(),
	}
	s.resolver.SetVariables(env.SystemVariables("WEBSVC_VAR_"))
	s.resolver.SetWarnFunc(func(format string, args ...any) {
		log.Warn().Msgf(format, args...)
	})

	transport := httpclient.NewClient(
		httpclient.WithTimeout(cfg.GetTimeout()),
		httpclient.WithFollowRedirects(cfg.GetFollowRedirects()),
		httpclient.WithMaxRedirects(cfg.GetMaxRedirects()),
		httpclient.WithValidateSSL(cfg.GetValidateSSL()),
		httpclient.WithProxy(cfg.Proxy),
		httpclient.WithRateLimit(cfg.RateLimit),
	)

	strict := cfg.GetStrictMultipart()
	if opts.strictMultipart != nil {
		strict = *opts.strictMultipart
	}
	code, message, errContext := cfg.ErrorPaths()
	serviceOpts := []webservice.ServiceOption{
		webservice.WithLogger(log),
		webservice.WithLogEnabled(cfg.GetLogEnabled()),
		webservice.WithDefaultTimeout(cfg.GetTimeout()),
		webservice.WithErrorPaths(webservice.ErrorPaths{Code: code, Message: message, Context: errContext}),
		webservice.WithStrictMultipart(strict),
		webservice.WithObserver(s.latency),
	}

	if cfg.History != "" {
		journal, err := history.Open(cfg.History, history.WithLogger(log))
		if err != nil {
			return nil, withExitCode(ExitConfigError, fmt.Errorf("failed to open history: %w", err))
		}
		s.journal = journal
		serviceOpts = append(serviceOpts, webservice.WithObserver(journal))
	}
	s.service = webservice.NewService(transport, serviceOpts...)

	s.router = interrupt.NewRouter(
		interrupt.WithMaxRetries(uint(cfg.GetMaxRetries())),
		interrupt.WithLogger(log),
	)
	for _, code := range opts.retryOn {
		s.router.Handle(code, interrupt.Retry)
	}
	s.router.HandleDefault(interrupt.Notify(func(req *webservice.Request, code string) {
		log.Warn().Str("url", req.URL).Str("code", code).Msg("Request interrupted")
	}))

	credentials, err := credentialProviders(log)
	if err != nil {
		s.Close()
		return nil, withExitCode(ExitUsageError, err)
	}
	tokens, err := oauth2Source(log, transport)
	if err != nil {
		s.Close()
		return nil, withExitCode(ExitUsageError, err)
	}
	if tokens != nil {
		credentials = append(credentials, headers.Bearer(tokens.AccessToken))
	}
	s.defaults = headers.NewStatic(cfg.Headers, s.resolver)
	s.provider = webservice.NewProvider(s.service,
		webservice.WithBaseAddress(cfg.BaseAddress),
		webservice.WithHeaderProvider(headers.Chain(append([]webservice.HeaderProvider{s.defaults}, credentials...)...)),
		webservice.WithInterruptionHook(s.router),
	)
	return s, nil
}

// credentialProviders builds header providers from the credential flags.
// They are chained after the config headers and win over them.
func credentialProviders(log *zerolog.Logger) ([]webservice.HeaderProvider, error) {
	var providers []webservice.HeaderProvider
	if bearerFlag != "" {
		providers = append(providers, headers.Bearer(headers.StaticToken(bearerFlag)))
	}
	if basicFlag != "" {
		user, pass, ok := strings.Cut(basicFlag, ":")
		if !ok {
			return nil, fmt.Errorf("--basic must be user:password")
		}
		providers = append(providers, headers.Basic(user, pass))
	}
	if apiKeyFlag != "" {
		providers = append(providers, headers.APIKey(apiKeyHeaderFlag, apiKeyFlag))
	}
	if awsSigV4Flag != "" {
		region, service, ok := strings.Cut(awsSigV4Flag, ":")
		if !ok || region == "" || service == "" {
			return nil, fmt.Errorf("--aws-sigv4 must be region:service")
		}
		creds := headers.AWSCredentials{
			AccessKey:    os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretKey:    os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SessionToken: os.Getenv("AWS_SESSION_TOKEN"),
			Region:       region,
			Service:      service,
		}
		if creds.AccessKey == "" || creds.SecretKey == "" {
			return nil, fmt.Errorf("--aws-sigv4 requires AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY")
		}
		providers = append(providers, headers.NewAWSSigner(creds, log))
	}
	return providers, nil
}

// oauth2Source returns nil unless --oauth2-token-url is set. With --oauth2-user
// the password grant is used, otherwise client credentials.
func oauth2Source(log *zerolog.Logger, transport httpclient.Transport) (*oauth2.Source, error) {
	if oauth2TokenURLFlag == "" {
		return nil, nil
	}
	cfg := &oauth2.Config{
		TokenURL:     oauth2TokenURLFlag,
		ClientID:     oauth2ClientIDFlag,
		ClientSecret: oauth2ClientSecretFlag,
		Scopes:       oauth2ScopeFlag,
		GrantType:    oauth2.ClientCredentials,
	}
	if oauth2UserFlag != "" {
		user, pass, ok := strings.Cut(oauth2UserFlag, ":")
		if !ok {
			return nil, fmt.Errorf("--oauth2-user must be user:password")
		}
		cfg.GrantType = oauth2.Password
		cfg.Username, cfg.Password = user, pass
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return oauth2.NewSource(cfg, transport, oauth2.WithLogger(log)), nil
}

// watchConfig hot-reloads the base address and default headers until ctx
// is done. Flag overrides stay in effect across reloads.
func (s *session) watchConfig(ctx context.Context) {
	if s.cfgPath == "" {
		s.logger.Warn().Msg("No config file to watch")
		return
	}
	go func() {
		err := config.Watch(ctx, s.cfgPath, s.applyReload, func(err error) {
			s.logger.Warn().Err(err).Str("path", s.cfgPath).Msg("Config reload failed")
		})
		if err != nil {
			s.logger.Error().Err(err).Msg("Config watch stopped")
		}
	}()
}

func (s *session) applyReload(cfg *config.Config) {
	applyFlagOverrides(cfg)
	s.provider.UpdateBaseAddress(cfg.BaseAddress)
	s.defaults.Replace(cfg.Headers)
	s.logger.Info().
		Str("base", cfg.BaseAddress).
		Int("headers", len(cfg.Headers)).
		Msg("Config reloaded")
}

func (s *session) Close() {
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to close history")
		}
	}
}
