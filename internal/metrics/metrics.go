// Package metrics exposes process-wide prometheus counters for booking
// activity. Failures are observable only through logs and these counters;
// the process keeps retrying on its own cadence regardless.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Attempt outcomes used as label values.
const (
	OutcomeBooked       = "booked"
	OutcomeNoMatch      = "no_match"
	OutcomeProbeError   = "probe_error"
	OutcomeDetailsError = "details_error"
	OutcomeCommitError  = "commit_error"
	OutcomeShortCircuit = "short_circuit"
)

var (
	Attempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resysniper_booking_attempts_total",
		Help: "Booking attempts by outcome.",
	}, []string{"outcome"})

	Bookings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "resysniper_bookings_total",
		Help: "Successful bookings.",
	})

	SnipeBursts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "resysniper_snipe_bursts_total",
		Help: "Snipe burst windows opened.",
	})

	DiscoveryProbes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "resysniper_discovery_probes_total",
		Help: "Hourly calendar-visibility discovery probes.",
	})

	ReleaseDetections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "resysniper_release_detections_total",
		Help: "Release moments inferred from a calendar-visibility transition.",
	})
)
