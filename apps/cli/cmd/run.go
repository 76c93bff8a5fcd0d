package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/webservice/packages/metrics"
	"github.com/abdul-hamid-achik/webservice/packages/output"
	"github.com/abdul-hamid-achik/webservice/packages/validate"
	"github.com/abdul-hamid-achik/webservice/packages/webservice"
)

// Formatter interface for all output formatters
type Formatter interface {
	FormatResult(e output.Entry)
	FormatStats(overall metrics.Stats, endpoints []metrics.Stats)
	FormatError(err error)
}

// Flushable interface for formatters that need to flush output
type Flushable interface {
	Flush() error
}

func newFormatter(format string, w io.Writer, showBody, noColor bool) (Formatter, error) {
	switch strings.ToLower(format) {
	case "json":
		return output.NewJSONFormatter(output.JSONWithWriter(w)), nil
	case "console", "":
		return output.NewConsoleFormatter(
			output.WithWriter(w),
			output.WithVerbose(verboseFlag > 0),
			output.WithNoColor(noColor),
			output.WithBody(showBody),
		), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %q (use console or json)", format)
	}
}

func loadSchema(path, at string) (*validate.Schema, error) {
	if path == "" {
		return nil, nil
	}
	var opts []validate.Option
	if at != "" {
		opts = append(opts, validate.AtPath(at))
	}
	return validate.Load(path, opts...)
}

// checkResult builds the formatter entry for a completed call.
func checkResult(method webservice.Method, url string, res *webservice.Result, schema *validate.Schema) output.Entry {
	e := output.Entry{Method: method, URL: url, Result: res}
	if schema != nil && res != nil && res.Err == nil {
		e.ValidationErr = schema.Result(res)
	}
	return e
}

// tally counts failures by exit code class.
type tally struct {
	mu      sync.Mutex
	total   int
	network int
	failed  int
	invalid int
}

func (t *tally) add(e output.Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total++
	switch {
	case e.Result == nil:
		t.failed++
	case e.Result.Err != nil:
		if resultExitCode(e.Result.Err) == ExitNetworkError {
			t.network++
		} else {
			t.failed++
		}
	case e.ValidationErr != nil:
		t.invalid++
	}
}

// err returns nil when every call succeeded. Network failures take
// precedence over request failures, which take precedence over schema
// mismatches.
func (t *tally) err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	bad := t.network + t.failed + t.invalid
	if bad == 0 {
		return nil
	}
	msg := fmt.Errorf("%d of %d requests failed", bad, t.total)
	switch {
	case t.network > 0:
		return withExitCode(ExitNetworkError, msg)
	case t.failed > 0:
		return withExitCode(ExitRequestFailure, msg)
	default:
		return withExitCode(ExitValidationError, msg)
	}
}

// runCalls invokes send n times with at most concurrency calls in flight
// and reports every entry. It stops starting calls once ctx is done.
func runCalls(ctx context.Context, n, concurrency int, send func() output.Entry, report func(output.Entry)) {
	if n < 1 {
		n = 1
	}
	if concurrency < 1 {
		concurrency = 1
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			report(send())
		}()
	}
	wg.Wait()
}

// finish prints the summary of a run and flushes the formatter.
func finish(f Formatter, s *session, repeated bool, t *tally) error {
	if repeated {
		f.FormatStats(s.latency.Overall(), s.latency.Endpoints())
	}
	if flushable, ok := f.(Flushable); ok {
		if err := flushable.Flush(); err != nil {
			return fmt.Errorf("error writing output: %w", err)
		}
	}
	return t.err()
}
