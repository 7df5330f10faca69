package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Métricas do pipeline de predição
	PredictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vozvisible_predictions_total",
		Help: "Total de predições por resultado",
	}, []string{"outcome"})

	PredictionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vozvisible_prediction_latency_seconds",
		Help:    "Latência fim a fim de uma predição servida",
		Buckets: prometheus.DefBuckets,
	})

	// Métricas de áudio
	TTSCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vozvisible_tts_cache_requests_total",
		Help: "Consultas ao cache de áudio",
	}, []string{"result"})

	SynthesisLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vozvisible_synthesis_latency_seconds",
		Help:    "Latência da síntese de voz",
		Buckets: prometheus.DefBuckets,
	})

	// Métricas de infraestrutura
	LedgerWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vozvisible_ledger_writes_total",
		Help: "Escritas no registro de traduções",
	}, []string{"sink", "status"})

	OrchestratorState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vozvisible_orchestrator_state",
		Help: "Estado do orquestrador (0=uninitialized 1=ready 2=degraded 3=not_serving)",
	})
)
