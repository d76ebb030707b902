package metrics

import (
	"sync"
	"time"
)

// Collector aggregates runtime metrics from message handling.
//
// Design Principles:
// - Thread-safe metric collection
// - Per-intent and per-strategy tracking
// - Export to Prometheus text format
//
// Tracked Metrics:
// - Messages handled, by intent
// - Classification strategy hit counts
// - Conversations started / completed / cancelled / expired
// - Provider and delivery failures
// - Message handling latency
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time

	messagesByIntent map[string]int64
	strategyHits     map[string]int64

	conversationsStarted   int64
	conversationsCompleted int64
	conversationsCancelled int64
	conversationsExpired   int64

	providerFailures int64
	deliveryFailures int64

	totalHandlingDuration time.Duration
	handledCount          int64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime:        time.Now(),
		messagesByIntent: make(map[string]int64),
		strategyHits:     make(map[string]int64),
	}
}

// RecordMessage records one handled inbound message.
func (c *Collector) RecordMessage(intent string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messagesByIntent[intent]++
	c.totalHandlingDuration += duration
	c.handledCount++
}

// RecordStrategyHit records which classification strategy produced the
// accepted result.
func (c *Collector) RecordStrategyHit(strategy string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.strategyHits[strategy]++
}

// RecordConversationStarted records a new multi-turn conversation.
func (c *Collector) RecordConversationStarted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conversationsStarted++
}

// RecordConversationCompleted records a conversation that reached its
// terminal action.
func (c *Collector) RecordConversationCompleted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conversationsCompleted++
}

// RecordConversationCancelled records a user-cancelled conversation.
func (c *Collector) RecordConversationCancelled() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conversationsCancelled++
}

// RecordConversationExpired records a conversation dropped for idleness.
func (c *Collector) RecordConversationExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conversationsExpired++
}

// RecordProviderFailure records a language provider error.
func (c *Collector) RecordProviderFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providerFailures++
}

// RecordDeliveryFailure records a failed outbound message delivery.
func (c *Collector) RecordDeliveryFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deliveryFailures++
}

// Snapshot is a point-in-time copy of all collected metrics.
type Snapshot struct {
	UptimeSeconds          float64
	MessagesByIntent       map[string]int64
	StrategyHits           map[string]int64
	ConversationsStarted   int64
	ConversationsCompleted int64
	ConversationsCancelled int64
	ConversationsExpired   int64
	ProviderFailures       int64
	DeliveryFailures       int64
	AvgHandlingMS          float64
	HandledCount           int64
}

// GetSnapshot returns a copy of all metrics.
func (c *Collector) GetSnapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	byIntent := make(map[string]int64, len(c.messagesByIntent))
	for k, v := range c.messagesByIntent {
		byIntent[k] = v
	}
	byStrategy := make(map[string]int64, len(c.strategyHits))
	for k, v := range c.strategyHits {
		byStrategy[k] = v
	}

	avgMS := 0.0
	if c.handledCount > 0 {
		avgMS = float64(c.totalHandlingDuration.Milliseconds()) / float64(c.handledCount)
	}

	return Snapshot{
		UptimeSeconds:          time.Since(c.startTime).Seconds(),
		MessagesByIntent:       byIntent,
		StrategyHits:           byStrategy,
		ConversationsStarted:   c.conversationsStarted,
		ConversationsCompleted: c.conversationsCompleted,
		ConversationsCancelled: c.conversationsCancelled,
		ConversationsExpired:   c.conversationsExpired,
		ProviderFailures:       c.providerFailures,
		DeliveryFailures:       c.deliveryFailures,
		AvgHandlingMS:          avgMS,
		HandledCount:           c.handledCount,
	}
}

// Reset resets all metrics (useful for testing).
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.startTime = time.Now()
	c.messagesByIntent = make(map[string]int64)
	c.strategyHits = make(map[string]int64)
	c.conversationsStarted = 0
	c.conversationsCompleted = 0
	c.conversationsCancelled = 0
	c.conversationsExpired = 0
	c.providerFailures = 0
	c.deliveryFailures = 0
	c.totalHandlingDuration = 0
	c.handledCount = 0
}
