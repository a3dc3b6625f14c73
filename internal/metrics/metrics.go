// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics defines the Prometheus collectors for research-weaver.
// Collectors are usable before registration; Register exposes them.
package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "research_weaver"

var (
	// EvidenceIngested counts ingest calls by result: new or duplicate.
	EvidenceIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "evidence_ingested_total",
		Help:      "Evidence candidates ingested, by result",
	}, []string{"result"})

	// Directives counts served search directives by outcome:
	// productive, empty or timeout.
	Directives = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "directives_total",
		Help:      "Search directives served, by outcome",
	}, []string{"outcome"})

	// ProviderErrors counts failed provider searches.
	ProviderErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_errors_total",
		Help:      "Search provider failures, by provider",
	}, []string{"provider"})

	// PageFetches counts page fetches by result: ok or snippet.
	PageFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "page_fetches_total",
		Help:      "Page fetches, by result",
	}, []string{"result"})

	// GenerationRequests counts generation backend calls by status.
	GenerationRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "generation_requests_total",
		Help:      "Generation backend calls, by status",
	}, []string{"status"})

	// GenerationDuration observes generation call latency.
	GenerationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "generation_duration_seconds",
		Help:      "Generation backend call duration",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	// CitationsDropped counts citation markers removed from generated text.
	CitationsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "citations_dropped_total",
		Help:      "Unresolvable citation markers removed",
	})

	// Sections counts written sections by status.
	Sections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sections_total",
		Help:      "Sections produced, by status",
	}, []string{"status"})

	// PlannerRevisions counts completed outline revisions.
	PlannerRevisions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "planner_revisions_total",
		Help:      "Outline revisions applied",
	})

	// OutlineCompleteness reports the latest overall completeness.
	OutlineCompleteness = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "outline_completeness",
		Help:      "Overall completeness of the most recent outline revision",
	})

	// Runs counts finished research runs by stop reason.
	Runs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Research runs finished, by stop reason",
	}, []string{"stop_reason"})
)

var registerOnce sync.Once

// Collectors returns every collector defined by the package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		EvidenceIngested, Directives, ProviderErrors, PageFetches,
		GenerationRequests, GenerationDuration, CitationsDropped,
		Sections, PlannerRevisions, OutlineCompleteness, Runs,
	}
}

// Register registers all collectors with reg. Repeated calls are no-ops.
func Register(reg prometheus.Registerer) error {
	var err error
	registerOnce.Do(func() {
		for _, c := range Collectors() {
			if rerr := reg.Register(c); rerr != nil {
				var are prometheus.AlreadyRegisteredError
				if !errors.As(rerr, &are) {
					err = rerr
					return
				}
			}
		}
	})
	return err
}
