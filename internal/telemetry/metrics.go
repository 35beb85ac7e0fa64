package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Chat outcomes recorded by ChatRequests.
const (
	OutcomeStreamed  = "streamed"
	OutcomeDenied    = "denied"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

var (
	ChatRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sqlsherpa_chat_requests_total",
		Help: "Chat requests by outcome",
	}, []string{"outcome"})

	ModerationDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sqlsherpa_moderation_denials_total",
		Help: "Messages denied by the moderation gate, by category",
	}, []string{"category"})

	ModerationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sqlsherpa_moderation_failures_total",
		Help: "Classifier failures by applied policy",
	}, []string{"policy"})

	RetrievalFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sqlsherpa_retrieval_failures_total",
		Help: "Retrieval calls that failed and degraded to empty context",
	})

	RetrievalDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sqlsherpa_retrieval_duration_seconds",
		Help:    "Latency of vector index retrieval",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	ToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sqlsherpa_tool_calls_total",
		Help: "Tool executions by tool and result",
	}, []string{"tool", "result"})

	AgentSteps = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sqlsherpa_agent_steps",
		Help:    "Model steps taken per chat request",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
	})

	EmbeddedChunks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sqlsherpa_embedded_chunks_total",
		Help: "Chunks processed by the embedding worker, by result",
	}, []string{"result"})
)
