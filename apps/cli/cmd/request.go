package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/webservice/packages/output"
	"github.com/abdul-hamid-achik/webservice/packages/webservice"
)

var requestCmd = &cobra.Command{
	Use:     "request <method> <path>",
	Aliases: []string{"req"},
	Short:   "Send a request through the web service client",
	Long: `Send a request to a path resolved against the base address.

Params are given as key=value (string) or key:=json (raw JSON value). GET
params are sent as the query string, other methods encode them as the body.

Examples:
  websvc request GET users/1
  websvc request POST users -p name=ada -p admin:=true
  websvc request GET search -p q="hello world" --schema search.schema.json
  websvc request PUT settings --encoding url -p theme=dark
  websvc request GET health --repeat 200 --concurrency 10 --rate 50`,
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeMethod,
	RunE:              requestCommand,
}

var (
	paramFlags      []string
	headerFlags     []string
	outputFlag      string
	schemaFlag      string
	schemaPathFlag  string
	retryOnFlag     []string
	encodingFlag    string
	timeoutFlag     string
	cacheFlag       string
	repeatFlag      int
	concurrencyFlag int
	watchConfigFlag bool
	quietFlag       bool
)

// addCallFlags registers the flags shared by commands that send requests.
func addCallFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&paramFlags, "param", "p", nil, "Request param as key=value or key:=json (repeatable)")
	cmd.Flags().StringArrayVarP(&headerFlags, "header", "H", nil, "Request header as \"Name: value\" (repeatable, defaults win)")
	cmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("WEBSVC_OUTPUT", "console"), "Output format: console, json (env: WEBSVC_OUTPUT)")
	cmd.Flags().StringVar(&schemaFlag, "schema", "", "JSON Schema file the response body must match")
	cmd.Flags().StringVar(&schemaPathFlag, "schema-path", "", "Validate the value at this gjson path instead of the whole body")
	cmd.Flags().StringSliceVar(&retryOnFlag, "retry-on", nil, "Server error codes that retry the request (comma-separated)")
}

func init() {
	addCallFlags(requestCmd)
	requestCmd.Flags().StringVarP(&encodingFlag, "encoding", "e", "json", "Param encoding: json, url, xml")
	requestCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("WEBSVC_TIMEOUT", ""), "Per-request timeout, e.g. 5s (env: WEBSVC_TIMEOUT)")
	requestCmd.Flags().StringVar(&cacheFlag, "cache", "", "Cache policy: protocol, reload, return-else-load, return-dont-load")
	requestCmd.Flags().IntVarP(&repeatFlag, "repeat", "n", 1, "Send the request n times and report latency percentiles")
	requestCmd.Flags().IntVarP(&concurrencyFlag, "concurrency", "c", getEnvInt("WEBSVC_CONCURRENCY", 1), "Requests in flight when repeating (env: WEBSVC_CONCURRENCY)")
	requestCmd.Flags().BoolVarP(&watchConfigFlag, "watch-config", "w", false, "Reload base address and headers when the config file changes")
	requestCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "Only print the summary when repeating")
	registerCompletions(requestCmd)
}

func requestCommand(cmd *cobra.Command, args []string) error {
	method, err := webservice.ParseMethod(args[0])
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	encoding, err := webservice.ParseEncoding(encodingFlag)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	params, err := parseParams(paramFlags)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	callerHeaders, err := parseHeaders(headerFlags)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	cache, err := parseCachePolicy(cacheFlag)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	var timeout time.Duration
	if timeoutFlag != "" {
		timeout, err = time.ParseDuration(timeoutFlag)
		if err != nil {
			return withExitCode(ExitUsageError, fmt.Errorf("invalid timeout value %q: %w (use format like 30s, 1m, 500ms)", timeoutFlag, err))
		}
	}
	schema, err := loadSchema(schemaFlag, schemaPathFlag)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	s, err := newSession(sessionOptions{retryOn: retryOnFlag, logOut: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer s.Close()

	repeated := repeatFlag > 1
	formatter, err := newFormatter(outputFlag, cmd.OutOrStdout(), !repeated, s.cfg.GetNoColor())
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if watchConfigFlag {
		s.watchConfig(ctx)
	}

	send := func() output.Entry {
		req := webservice.NewRequest(method, args[1], encoding,
			webservice.WithParams(params),
			webservice.WithHeaders(callerHeaders.Clone()),
			webservice.WithTimeout(timeout),
		)
		req.Cache = cache
		res := s.provider.Do(ctx, req).Result()
		return checkResult(method, req.URL, res, schema)
	}

	var (
		mu sync.Mutex
		t  tally
	)
	runCalls(ctx, repeatFlag, concurrencyFlag, send, func(e output.Entry) {
		t.add(e)
		if repeated && quietFlag {
			return
		}
		mu.Lock()
		formatter.FormatResult(e)
		mu.Unlock()
	})

	return finish(formatter, s, repeated, &t)
}
