package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clashprofile_fetch_attempts_total",
		Help: "Fetch attempts by kind and result.",
	}, []string{"kind", "result"})

	inflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "clashprofile_fetch_inflight",
		Help: "Fetches currently holding a download slot.",
	})
)
