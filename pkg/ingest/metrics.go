package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	agentGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vision",
		Subsystem: "ingest",
		Name:      "agents_connected",
		Help:      "Camera agents currently connected.",
	})

	frameCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vision",
		Subsystem: "ingest",
		Name:      "frames_received_total",
		Help:      "Frames received from camera agents.",
	})

	messageCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vision",
		Subsystem: "ingest",
		Name:      "messages_received_total",
		Help:      "WebSocket messages received from camera agents.",
	})
)
