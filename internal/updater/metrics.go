package updater

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clashprofile_update_cycles_total",
		Help: "Update cycles started.",
	})
	profileFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clashprofile_update_profile_failures_total",
		Help: "Profiles that failed to update, by profile.",
	}, []string{"profile"})
	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "clashprofile_update_duration_seconds",
		Help:    "Wall time of an update cycle.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})
	lastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "clashprofile_update_last_success_timestamp_seconds",
		Help: "Unix time of the last cycle without failures.",
	})
)
