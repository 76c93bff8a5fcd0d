// Package metrics aggregates per-endpoint latency and outcome counts from
// webservice results.
package metrics

import (
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/abdul-hamid-achik/webservice/packages/webservice"
)

const (
	// Histogram range in microseconds: 1us to 60s, 3 significant digits.
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
	sigFigs      = 3
)

// LatencyRecorder is a webservice.Observer recording the round-trip time
// of every attempt that received a response, keyed by method and path.
type LatencyRecorder struct {
	mu        sync.Mutex
	total     *endpoint
	endpoints map[string]*endpoint
}

type endpoint struct {
	histogram *hdrhistogram.Histogram
	total     int64
	failures  int64
	byKind    map[webservice.ErrorKind]int64
}

func newEndpoint() *endpoint {
	return &endpoint{
		histogram: hdrhistogram.New(minLatencyUs, maxLatencyUs, sigFigs),
		byKind:    make(map[webservice.ErrorKind]int64),
	}
}

func (e *endpoint) record(res *webservice.Result) {
	e.total++
	if res.Err != nil {
		e.failures++
		e.byKind[webservice.KindOf(res.Err)]++
	}
	if res.Response == nil {
		return
	}
	latencyUs := res.Response.Duration.Microseconds()
	if latencyUs < minLatencyUs {
		latencyUs = minLatencyUs
	}
	if latencyUs > maxLatencyUs {
		latencyUs = maxLatencyUs
	}
	_ = e.histogram.RecordValue(latencyUs)
}

func NewLatencyRecorder() *LatencyRecorder {
	return &LatencyRecorder{
		total:     newEndpoint(),
		endpoints: make(map[string]*endpoint),
	}
}

// ObserveResult implements webservice.Observer.
func (r *LatencyRecorder) ObserveResult(method webservice.Method, rawURL string, res *webservice.Result) {
	if res == nil {
		return
	}
	key := Key(method, rawURL)

	r.mu.Lock()
	defer r.mu.Unlock()
	ep, ok := r.endpoints[key]
	if !ok {
		ep = newEndpoint()
		r.endpoints[key] = ep
	}
	ep.record(res)
	r.total.record(res)
}

// Key names the endpoint of a request: the method and the URL path without
// query. Unparseable URLs are used verbatim.
func Key(method webservice.Method, rawURL string) string {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		path = u.Host + u.EscapedPath()
	}
	return method.String() + " " + path
}

// Stats summarizes one endpoint, or all of them.
type Stats struct {
	Name     string
	Total    int64
	Failures int64
	ByKind   map[webservice.ErrorKind]int64
	Samples  int64
	Min      time.Duration
	Max      time.Duration
	Mean     time.Duration
	P50      time.Duration
	P95      time.Duration
	P99      time.Duration
}

// FailureRate is the share of attempts that ended with an error.
func (s Stats) FailureRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Failures) / float64(s.Total)
}

func (e *endpoint) stats(name string) Stats {
	h := e.histogram
	byKind := make(map[webservice.ErrorKind]int64, len(e.byKind))
	for k, v := range e.byKind {
		byKind[k] = v
	}
	s := Stats{
		Name:     name,
		Total:    e.total,
		Failures: e.failures,
		ByKind:   byKind,
		Samples:  h.TotalCount(),
	}
	if s.Samples == 0 {
		return s
	}
	s.Min = time.Duration(h.Min()) * time.Microsecond
	s.Max = time.Duration(h.Max()) * time.Microsecond
	s.Mean = time.Duration(h.Mean()) * time.Microsecond
	s.P50 = time.Duration(h.ValueAtQuantile(50)) * time.Microsecond
	s.P95 = time.Duration(h.ValueAtQuantile(95)) * time.Microsecond
	s.P99 = time.Duration(h.ValueAtQuantile(99)) * time.Microsecond
	return s
}

// Overall returns the stats across every endpoint.
func (r *LatencyRecorder) Overall() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total.stats("overall")
}

// Endpoints returns per-endpoint stats sorted by name.
func (r *LatencyRecorder) Endpoints() []Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Stats, 0, len(r.endpoints))
	for name, ep := range r.endpoints {
		out = append(out, ep.stats(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Reset discards everything recorded so far.
func (r *LatencyRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total = newEndpoint()
	r.endpoints = make(map[string]*endpoint)
}

var _ webservice.Observer = (*LatencyRecorder)(nil)
