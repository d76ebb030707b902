package metrics

import (
	"fmt"
	"sort"
	"strings"
)

// PrometheusExporter renders a Collector snapshot in Prometheus text
// exposition format.
//
// Design Principles:
// - Plain text exposition, no client library dependency
// - Deterministic output ordering for stable scrapes and tests
// - Namespace prefix on every metric
type PrometheusExporter struct {
	collector *Collector
	namespace string
}

// NewPrometheusExporter creates an exporter over the given collector.
func NewPrometheusExporter(collector *Collector, namespace string) *PrometheusExporter {
	if namespace == "" {
		namespace = "assistant"
	}
	return &PrometheusExporter{collector: collector, namespace: namespace}
}

// Export generates Prometheus text format output.
func (e *PrometheusExporter) Export() string {
	snap := e.collector.GetSnapshot()

	var b strings.Builder

	e.writeGauge(&b, "uptime_seconds", "Seconds since the collector started.", snap.UptimeSeconds)

	e.writeHeader(&b, "messages_total", "counter", "Inbound messages handled, by resolved intent.")
	for _, intent := range sortedKeys(snap.MessagesByIntent) {
		fmt.Fprintf(&b, "%s_messages_total{intent=%q} %d\n", e.namespace, intent, snap.MessagesByIntent[intent])
	}
	b.WriteString("\n")

	e.writeHeader(&b, "strategy_hits_total", "counter", "Accepted classifications, by strategy.")
	for _, strategy := range sortedKeys(snap.StrategyHits) {
		fmt.Fprintf(&b, "%s_strategy_hits_total{strategy=%q} %d\n", e.namespace, strategy, snap.StrategyHits[strategy])
	}
	b.WriteString("\n")

	e.writeCounter(&b, "conversations_started_total", "Multi-turn conversations started.", snap.ConversationsStarted)
	e.writeCounter(&b, "conversations_completed_total", "Conversations that reached their terminal action.", snap.ConversationsCompleted)
	e.writeCounter(&b, "conversations_cancelled_total", "Conversations cancelled by the user.", snap.ConversationsCancelled)
	e.writeCounter(&b, "conversations_expired_total", "Conversations dropped for idleness.", snap.ConversationsExpired)
	e.writeCounter(&b, "provider_failures_total", "Language provider call failures.", snap.ProviderFailures)
	e.writeCounter(&b, "delivery_failures_total", "Outbound message delivery failures.", snap.DeliveryFailures)
	e.writeGauge(&b, "handling_avg_milliseconds", "Average message handling latency.", snap.AvgHandlingMS)

	return b.String()
}

func (e *PrometheusExporter) writeHeader(b *strings.Builder, name, kind, help string) {
	fmt.Fprintf(b, "# HELP %s_%s %s\n", e.namespace, name, help)
	fmt.Fprintf(b, "# TYPE %s_%s %s\n", e.namespace, name, kind)
}

func (e *PrometheusExporter) writeCounter(b *strings.Builder, name, help string, value int64) {
	e.writeHeader(b, name, "counter", help)
	fmt.Fprintf(b, "%s_%s %d\n\n", e.namespace, name, value)
}

func (e *PrometheusExporter) writeGauge(b *strings.Builder, name, help string, value float64) {
	e.writeHeader(b, name, "gauge", help)
	fmt.Fprintf(b, "%s_%s %f\n\n", e.namespace, name, value)
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
