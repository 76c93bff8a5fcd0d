package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/abdul-hamid-achik/webservice/packages/metrics"
	"github.com/abdul-hamid-achik/webservice/packages/webservice"
)

// Entry is one completed call as seen by a formatter.
type Entry struct {
	Method        webservice.Method
	URL           string
	Result        *webservice.Result
	ValidationErr error
}

// Failed reports whether the call or its validation failed.
func (e Entry) Failed() bool {
	return e.Result == nil || e.Result.Err != nil || e.ValidationErr != nil
}

// formatBody shortens long bodies for display
func formatBody(body []byte, maxLen int) string {
	var pretty bytes.Buffer
	if json.Indent(&pretty, body, "", "  ") == nil {
		body = pretty.Bytes()
	}
	s := string(body)
	if maxLen > 0 && len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

type ConsoleFormatter struct {
	writer   io.Writer
	verbose  bool
	noColor  bool
	showBody bool
	maxBody  int
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer:  os.Stdout,
		maxBody: 4096,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

// WithBody prints response bodies after the status line.
func WithBody(show bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.showBody = show
	}
}

// WithMaxBody truncates printed bodies to n bytes. Zero prints everything.
func WithMaxBody(n int) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.maxBody = n
	}
}

func (f *ConsoleFormatter) FormatResult(e Entry) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	res := e.Result
	if res == nil {
		fmt.Fprintf(f.writer, "  %s %s %s %s\n", red("x"), bold(e.Method), e.URL, red("(no result)"))
		return
	}

	var duration string
	if res.Response != nil {
		duration = cyan(fmt.Sprintf("(%dms)", res.Response.Duration.Milliseconds()))
	}

	status := "---"
	if code := res.StatusCode(); code != 0 {
		status = fmt.Sprintf("%d", code)
	}

	switch {
	case res.Err != nil:
		fmt.Fprintf(f.writer, "  %s %s %s %s %s\n", red("✗"), red(status), bold(e.Method), e.URL, duration)
		fmt.Fprintf(f.writer, "    %s %s\n", red("→"), res.Err)
		if se, ok := webservice.AsServerError(res.Err); ok && f.verbose && len(se.Context) > 0 {
			keys := make([]string, 0, len(se.Context))
			for k := range se.Context {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(f.writer, "      %s: %v\n", k, se.Context[k])
			}
		}
	case e.ValidationErr != nil:
		fmt.Fprintf(f.writer, "  %s %s %s %s %s\n", yellow("!"), yellow(status), bold(e.Method), e.URL, duration)
		fmt.Fprintf(f.writer, "    %s %s\n", yellow("→"), e.ValidationErr)
	default:
		fmt.Fprintf(f.writer, "  %s %s %s %s %s\n", green("✓"), green(status), bold(e.Method), e.URL, duration)
	}

	if f.verbose && res.Response != nil {
		names := make([]string, 0, len(res.Response.Header))
		for name := range res.Response.Header {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(f.writer, "    %s: %s\n", name, strings.Join(res.Response.Header[name], ", "))
		}
	}

	if f.showBody && len(res.Body) > 0 {
		fmt.Fprintf(f.writer, "\n%s\n", formatBody(res.Body, f.maxBody))
	}
}

// FormatStats prints the latency summary of a repeated run.
func (f *ConsoleFormatter) FormatStats(overall metrics.Stats, endpoints []metrics.Stats) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	fmt.Fprintln(f.writer)
	bold.Fprintln(f.writer, "SUMMARY")
	fmt.Fprintln(f.writer, strings.Repeat("─", 40))

	fmt.Fprintf(f.writer, "Total:      ")
	bold.Fprintf(f.writer, "%d", overall.Total)
	fmt.Fprintf(f.writer, " requests\n")

	fmt.Fprintf(f.writer, "Success:    ")
	green.Fprintf(f.writer, "%d", overall.Total-overall.Failures)
	fmt.Fprintf(f.writer, " (%.1f%%)\n", (1-overall.FailureRate())*100)

	fmt.Fprintf(f.writer, "Failed:     ")
	if overall.Failures > 0 {
		red.Fprintf(f.writer, "%d", overall.Failures)
	} else {
		fmt.Fprintf(f.writer, "%d", overall.Failures)
	}
	fmt.Fprintf(f.writer, " (%.1f%%)\n", overall.FailureRate()*100)

	if len(overall.ByKind) > 0 {
		kinds := make([]string, 0, len(overall.ByKind))
		for kind, n := range overall.ByKind {
			kinds = append(kinds, fmt.Sprintf("%s=%d", kind, n))
		}
		sort.Strings(kinds)
		fmt.Fprintf(f.writer, "Errors:     %s\n", strings.Join(kinds, " "))
	}

	if overall.Samples > 0 {
		fmt.Fprintln(f.writer)
		bold.Fprintln(f.writer, "LATENCY")
		fmt.Fprintf(f.writer, "  p50: %-7s | p95: %-7s | p99: %-7s | max: %s\n",
			formatLatency(overall.P50), formatLatency(overall.P95),
			formatLatency(overall.P99), formatLatency(overall.Max))
		fmt.Fprintf(f.writer, "  min: %-7s | mean: %s\n", formatLatency(overall.Min), formatLatency(overall.Mean))
	}

	if f.verbose && len(endpoints) > 1 {
		fmt.Fprintln(f.writer)
		bold.Fprintln(f.writer, "PER-ENDPOINT BREAKDOWN")
		for _, s := range endpoints {
			fmt.Fprintf(f.writer, "  %s:\n", s.Name)
			fmt.Fprintf(f.writer, "    Total: %d | Failed: %d\n", s.Total, s.Failures)
			fmt.Fprintf(f.writer, "    p50: %s | p95: %s | p99: %s\n",
				formatLatency(s.P50), formatLatency(s.P95), formatLatency(s.P99))
		}
	}
	fmt.Fprintln(f.writer)
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

// formatLatency formats latency for display
func formatLatency(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dμs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
