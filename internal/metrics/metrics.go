// Package metrics holds the prometheus collectors for the ingestion and query pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Ingest outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

// Extraction outcomes.
const (
	ExtractionUpdated     = "updated"
	ExtractionEmpty       = "empty"
	ExtractionBlocked     = "blocked"
	ExtractionCallFailed  = "call_failed"
	ExtractionParseFailed = "parse_failed"
	ExtractionUnsupported = "unsupported"
	ExtractionWriteFailed = "write_failed"
	ExtractionQueued      = "queued"
)

// Pipeline groups the collectors. A nil *Pipeline records nothing.
type Pipeline struct {
	ingest       *prometheus.CounterVec
	extraction   *prometheus.CounterVec
	nlRounds     prometheus.Histogram
	cacheLookups *prometheus.CounterVec
}

// NewPipeline creates the collectors and registers them with reg.
func NewPipeline(reg prometheus.Registerer) (*Pipeline, error) {
	p := &Pipeline{
		ingest: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docintel_ingest_total",
				Help: "Document ingestion requests by outcome.",
			},
			[]string{"outcome"},
		),
		extraction: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docintel_extraction_total",
				Help: "Field extraction attempts by outcome.",
			},
			[]string{"outcome"},
		),
		nlRounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "docintel_nl_rounds",
			Help:    "Tool-call rounds used per natural-language query.",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 6, 7, 8},
		}),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docintel_cache_lookups_total",
				Help: "Document metadata cache lookups by result.",
			},
			[]string{"result"},
		),
	}

	for _, c := range []prometheus.Collector{p.ingest, p.extraction, p.nlRounds, p.cacheLookups} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Pipeline) Ingest(outcome string) {
	if p == nil {
		return
	}
	p.ingest.WithLabelValues(outcome).Inc()
}

func (p *Pipeline) Extraction(outcome string) {
	if p == nil {
		return
	}
	p.extraction.WithLabelValues(outcome).Inc()
}

func (p *Pipeline) NLRounds(rounds int) {
	if p == nil {
		return
	}
	p.nlRounds.Observe(float64(rounds))
}

func (p *Pipeline) CacheLookup(hit bool) {
	if p == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	p.cacheLookups.WithLabelValues(result).Inc()
}
