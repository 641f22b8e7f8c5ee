package stats

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	log "github.com/sirupsen/logrus"
)

const (
	BYTE = 1 << (10 * iota)
	KILOBYTE
	MEGABYTE

	// StatsFile is the name of the file the reporter appends to.
	StatsFile = "stats"
)

// Reporter periodically logs the memory usage of the process together with
// the custody counters, and appends every gathered metric to the stats file
// in datadir once stopped.
type Reporter struct {
	interval time.Duration
	path     string
	gatherer prometheus.Gatherer

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	err    error
}

// NewReporter ...
func NewReporter(datadir string, interval time.Duration) *Reporter {
	return &Reporter{
		interval: interval,
		path:     filepath.Join(datadir, StatsFile),
		gatherer: prometheus.DefaultGatherer,
	}
}

// Start runs the reporting loop until ctx is done or Stop is called.
func (r *Reporter) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.logSnapshot()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the reporting loop and dumps the metrics. Only the first call
// has effect, later ones return the same result.
func (r *Reporter) Stop() error {
	r.once.Do(func() {
		if r.cancel != nil {
			r.cancel()
			<-r.done
		}
		r.logSnapshot()
		r.err = r.Dump()
	})
	return r.err
}

// Dump appends the gathered metrics to the stats file in text format.
func (r *Reporter) Dump() error {
	families, err := r.gatherer.Gather()
	if err != nil {
		return err
	}

	file, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(writer, mf); err != nil {
			return err
		}
	}
	return writer.Flush()
}

// Summary returns the total of every custody counter and the number of
// observations of every custody histogram, by metric name.
func (r *Reporter) Summary() (map[string]float64, error) {
	families, err := r.gatherer.Gather()
	if err != nil {
		return nil, err
	}

	summary := make(map[string]float64)
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), namespace+"_") {
			continue
		}
		summary[mf.GetName()] = total(mf)
	}
	return summary, nil
}

func (r *Reporter) logSnapshot() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	fields := log.Fields{
		"heap_mb":    float64(memStats.HeapAlloc) / MEGABYTE,
		"total_mb":   float64(memStats.TotalAlloc) / MEGABYTE,
		"goroutines": runtime.NumGoroutine(),
	}
	summary, err := r.Summary()
	if err != nil {
		log.WithError(err).Warn("failed to gather metrics")
	}
	names := make([]string, 0, len(summary))
	for name := range summary {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fields[strings.TrimPrefix(name, namespace+"_")] = summary[name]
	}
	log.WithFields(fields).Debug("runtime stats")
}

func total(mf *dto.MetricFamily) float64 {
	var sum float64
	for _, m := range mf.GetMetric() {
		switch mf.GetType() {
		case dto.MetricType_COUNTER:
			sum += m.GetCounter().GetValue()
		case dto.MetricType_GAUGE:
			sum += m.GetGauge().GetValue()
		case dto.MetricType_HISTOGRAM:
			sum += float64(m.GetHistogram().GetSampleCount())
		}
	}
	return sum
}
