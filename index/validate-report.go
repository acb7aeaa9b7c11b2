package index

import (
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Problem is one issue found by Validate.
type Problem struct {
	Kind    error
	Package string
	Path    string
	Msg     string
}

func (p Problem) Error() string {
	return p.Msg
}

// Reporter receives problems as Validate finds them.
type Reporter interface {
	Report(Problem)
}

// Collector keeps every reported problem.
type Collector struct {
	mu       sync.Mutex
	Problems []Problem
}

func (c *Collector) Report(p Problem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Problems = append(c.Problems, p)
}

// LogReporter writes each problem to a logger at error level.
type LogReporter struct {
	Logger *log.Logger
}

func (r LogReporter) Report(p Problem) {
	r.Logger.Error(p.Msg, "kind", kindLabel(p.Kind), "path", p.Path)
}

// Summary counts what a validation run looked at and found.
type Summary struct {
	Files    int
	Records  int
	Problems map[string]int
}

func newSummary() *Summary {
	return &Summary{Problems: make(map[string]int)}
}

func (s *Summary) add(p Problem) {
	s.Problems[kindLabel(p.Kind)]++
}

// Failed reports whether any problem was found.
func (s *Summary) Failed() bool {
	return s.Total() > 0
}

// Total is the number of problems of all kinds.
func (s *Summary) Total() int {
	n := 0
	for _, c := range s.Problems {
		n += c
	}
	return n
}

// Kinds returns the problem kinds found, sorted.
func (s *Summary) Kinds() []string {
	kinds := make([]string, 0, len(s.Problems))
	for k := range s.Problems {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// WriteMetrics writes the summary to path in the Prometheus text format, for
// the node exporter's textfile collector.
func (s *Summary) WriteMetrics(path string) error {
	reg := prometheus.NewRegistry()
	files := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "regindex_validate_files",
		Help: "Number of shard files checked by the last validation run.",
	})
	records := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "regindex_validate_records",
		Help: "Number of records parsed by the last validation run.",
	})
	problems := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "regindex_validate_problems",
		Help: "Number of problems found by the last validation run, by kind.",
	}, []string{"kind"})
	reg.MustRegister(files, records, problems)

	files.Set(float64(s.Files))
	records.Set(float64(s.Records))
	for kind, n := range s.Problems {
		problems.WithLabelValues(kind).Set(float64(n))
	}
	return errors.Wrapf(prometheus.WriteToTextfile(path, reg), "failed to write metrics to `%s`", path)
}
