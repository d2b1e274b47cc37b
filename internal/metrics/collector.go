package metrics

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/normanking/voxcmd/internal/bus"
	"github.com/normanking/voxcmd/pkg/command"
)

// Collector subscribes to the event bus and feeds the Prometheus
// instruments and the history store. Either may be nil.
type Collector struct {
	bus     *bus.Bus
	metrics *Metrics
	store   *Store
	log     zerolog.Logger

	mu      sync.Mutex
	subs    []bus.SubscriptionID
	stopped bool
}

// NewCollector creates a metrics collector.
func NewCollector(eventBus *bus.Bus, m *Metrics, store *Store, logger zerolog.Logger) *Collector {
	return &Collector{
		bus:     eventBus,
		metrics: m,
		store:   store,
		log:     logger,
	}
}

// Start begins listening to the event bus.
func (c *Collector) Start() {
	if c.bus == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || len(c.subs) > 0 {
		return
	}

	for _, typ := range []bus.EventType{
		bus.EventUtterance,
		bus.EventActivated,
		bus.EventTimeout,
		bus.EventCommandResult,
		bus.EventRegistryReloaded,
	} {
		c.subs = append(c.subs, c.bus.Subscribe(typ, c.HandleEvent))
	}
}

// Stop stops listening.
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}
	c.stopped = true

	for _, id := range c.subs {
		_ = c.bus.Unsubscribe(id)
	}
	c.subs = nil
}

// HandleEvent updates metrics for one event.
func (c *Collector) HandleEvent(event bus.Event) {
	switch event.Type {
	case bus.EventUtterance:
		if c.metrics != nil {
			c.metrics.Utterances.Inc()
		}
	case bus.EventActivated:
		if c.metrics != nil {
			c.metrics.Activations.Inc()
		}
	case bus.EventTimeout:
		if c.metrics != nil {
			c.metrics.Timeouts.Inc()
		}
	case bus.EventRegistryReloaded:
		if c.metrics != nil {
			c.metrics.RegistryCommands.Set(float64(event.Commands))
		}
	case bus.EventCommandResult:
		c.handleResult(event)
	}
}

func (c *Collector) handleResult(event bus.Event) {
	if event.Result == nil {
		return
	}
	res := event.Result

	if c.metrics != nil {
		c.metrics.Commands.WithLabelValues(res.Kind.String()).Inc()
		if res.Kind == command.Fuzzy {
			c.metrics.FuzzyConfidence.Observe(res.Confidence)
		}
		if event.Delay > 0 {
			c.metrics.ActivationDelay.Observe(event.Delay.Seconds())
		}
	}

	if c.store != nil {
		entry := &HistoryEntry{
			SessionID:  event.SessionID,
			Utterance:  res.Utterance,
			Kind:       res.Kind.String(),
			PatternKey: res.PatternKey,
			Response:   res.Response,
			Confidence: res.Confidence,
			Delay:      event.Delay,
			CreatedAt:  event.Timestamp,
		}
		if err := c.store.Record(entry); err != nil {
			c.log.Warn().Err(err).Msg("Failed to record command history")
		}
	}
}
