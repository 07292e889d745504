package hub

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"rates-app/internal/domain"
	"rates-app/internal/metrics"
	"rates-app/internal/util"
)

const (
	EventRatesSnapshot = "rates_snapshot"
	DefaultBufferSize  = 16
)

var ErrHubClosed = errors.New("broadcast hub is closed")

type Event struct {
	Timestamp time.Time
	Samples   []domain.Sample
}

type Subscriber struct {
	ID     string
	events chan Event
}

func (s *Subscriber) Events() <-chan Event {
	return s.events
}

type Hub struct {
	mu         sync.Mutex
	subs       map[string]*Subscriber
	bufferSize int
	closed     bool

	logger  *util.RatesLogger
	metrics *metrics.Metrics
}

func New(bufferSize int, logger *util.RatesLogger, m *metrics.Metrics) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		subs:       make(map[string]*Subscriber),
		bufferSize: bufferSize,
		logger:     logger,
		metrics:    m,
	}
}

func (h *Hub) Register() (*Subscriber, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	sub := &Subscriber{
		ID:     uuid.NewString(),
		events: make(chan Event, h.bufferSize),
	}
	h.subs[sub.ID] = sub
	h.metrics.SetSubscribers(len(h.subs))
	h.logger.LogEvent(util.LOG_LEVEL_DEBUG, "subscriber registered. id -", sub.ID, "total -", len(h.subs))
	return sub, nil
}

func (h *Hub) Unregister(sub *Subscriber) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub.ID]; !ok {
		return
	}
	delete(h.subs, sub.ID)
	close(sub.events)
	h.metrics.SetSubscribers(len(h.subs))
	h.logger.LogEvent(util.LOG_LEVEL_DEBUG, "subscriber unregistered. id -", sub.ID, "total -", len(h.subs))
}

// Publish drops the oldest queued event of a full subscriber.
func (h *Hub) Publish(ts time.Time, samples []domain.Sample) int {
	ev := Event{
		Timestamp: ts,
		Samples:   append([]domain.Sample(nil), samples...),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0
	}

	clean := 0
	for _, sub := range h.subs {
		if h.deliver(sub, ev) {
			clean++
		}
	}
	return clean
}

// must run under h.mu
func (h *Hub) deliver(sub *Subscriber, ev Event) bool {
	select {
	case sub.events <- ev:
		return true
	default:
	}

	select {
	case <-sub.events:
		h.metrics.ObserveDropped()
		h.logger.LogEvent(util.LOG_LEVEL_WARN, "subscriber buffer full, dropped oldest event. id -", sub.ID)
	default:
	}

	select {
	case sub.events <- ev:
	default:
		h.metrics.ObserveDropped()
	}
	return false
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		close(sub.events)
		delete(h.subs, id)
	}
	h.metrics.SetSubscribers(0)
	h.logger.LogEvent(util.LOG_LEVEL_INFO, "broadcast hub closed")
}
