package output

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/webservice/packages/metrics"
	"github.com/abdul-hamid-achik/webservice/packages/webservice"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Summary   JSONSummary   `json:"summary"`
	Results   []JSONResult  `json:"results"`
	Latency   *JSONLatency  `json:"latency,omitempty"`
	Endpoints []JSONLatency `json:"endpoints,omitempty"`
	Duration  float64       `json:"duration"`
	Time      string        `json:"time"`
}

// JSONSummary represents the run summary
type JSONSummary struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// JSONResult represents a single call
type JSONResult struct {
	Method     string          `json:"method"`
	URL        string          `json:"url"`
	Passed     bool            `json:"passed"`
	StatusCode int             `json:"statusCode,omitempty"`
	Duration   float64         `json:"duration"`
	Kind       string          `json:"kind,omitempty"`
	Code       string          `json:"code,omitempty"`
	Error      string          `json:"error,omitempty"`
	Validation string          `json:"validation,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
	Text       string          `json:"text,omitempty"`
}

// JSONLatency is a latency breakdown in milliseconds.
type JSONLatency struct {
	Name     string  `json:"name,omitempty"`
	Total    int64   `json:"total"`
	Failures int64   `json:"failures"`
	P50      float64 `json:"p50"`
	P95      float64 `json:"p95"`
	P99      float64 `json:"p99"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Mean     float64 `json:"mean"`
}

// JSONFormatter accumulates results and writes them as one JSON document
// on Flush. It is safe for concurrent use.
type JSONFormatter struct {
	mu        sync.Mutex
	writer    io.Writer
	results   []JSONResult
	latency   *JSONLatency
	endpoints []JSONLatency
	started   time.Time
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:  os.Stdout,
		results: make([]JSONResult, 0),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func (f *JSONFormatter) FormatResult(e Entry) {
	r := JSONResult{
		Method: e.Method.String(),
		URL:    e.URL,
		Passed: !e.Failed(),
	}
	if res := e.Result; res != nil {
		r.StatusCode = res.StatusCode()
		if res.Response != nil {
			r.Duration = ms(res.Response.Duration)
		}
		if res.Err != nil {
			r.Kind = string(webservice.KindOf(res.Err))
			r.Code = res.Code()
			r.Error = res.Err.Error()
		}
		if res.IsJSON() {
			r.Body = json.RawMessage(res.Body)
		} else if len(res.Body) > 0 {
			r.Text = string(res.Body)
		}
	}
	if e.ValidationErr != nil {
		r.Validation = e.ValidationErr.Error()
	}

	f.mu.Lock()
	f.results = append(f.results, r)
	f.mu.Unlock()
}

func latencyOf(s metrics.Stats) JSONLatency {
	return JSONLatency{
		Name:     s.Name,
		Total:    s.Total,
		Failures: s.Failures,
		P50:      ms(s.P50),
		P95:      ms(s.P95),
		P99:      ms(s.P99),
		Min:      ms(s.Min),
		Max:      ms(s.Max),
		Mean:     ms(s.Mean),
	}
}

func (f *JSONFormatter) FormatStats(overall metrics.Stats, endpoints []metrics.Stats) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := latencyOf(overall)
	f.latency = &l
	f.endpoints = f.endpoints[:0]
	for _, s := range endpoints {
		f.endpoints = append(f.endpoints, latencyOf(s))
	}
}

func (f *JSONFormatter) FormatError(err error) {
	// Errors are included in individual results
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var passed, failed int
	for _, r := range f.results {
		if r.Passed {
			passed++
		} else {
			failed++
		}
	}

	output := JSONOutput{
		Summary: JSONSummary{
			Total:  len(f.results),
			Passed: passed,
			Failed: failed,
		},
		Results:   f.results,
		Latency:   f.latency,
		Endpoints: f.endpoints,
		Duration:  ms(time.Since(f.started)),
		Time:      time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
