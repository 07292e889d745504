package endpoints

import (
	"net/http"
	"time"

	"rates-app/internal/util"
)

type TickReporter interface {
	LastBroadcast() time.Time
}

type SourceReporter interface {
	State() string
}

type SubscriberCounter interface {
	Len() int
}

type healthStatus struct {
	LastBroadcast *time.Time `json:"last_broadcast,omitempty"`
	SourceState   string     `json:"source_state"`
	Subscribers   int        `json:"subscribers"`
}

type Health struct {
	Response    APIResponse
	logger      *util.RatesLogger
	ticks       TickReporter
	source      SourceReporter
	subscribers SubscriberCounter
}

func (h *Health) Init(ticks TickReporter, source SourceReporter, subscribers SubscriberCounter, webSlogger *util.RatesLogger) {
	h.ticks = ticks
	h.source = source
	h.subscribers = subscribers
	h.logger = webSlogger
}

func (h *Health) GetHealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.logger.LogEvent(util.LOG_LEVEL_ERROR, "Method Not Allowed. Only GET requests are supported", http.StatusMethodNotAllowed)
		h.Response.WriteErrorResponseWithStatusCode(w, ErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	status := healthStatus{
		SourceState: h.source.State(),
		Subscribers: h.subscribers.Len(),
	}
	if last := h.ticks.LastBroadcast(); !last.IsZero() {
		status.LastBroadcast = &last
	}

	h.Response.WriteResultResponse(w, status)
}
